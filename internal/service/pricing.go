package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/seatsync/internal/model"
)

// Pricer prices the seats of a claim, one price per seat in order.
type Pricer interface {
	Price(ctx context.Context, seats []model.EventObject) ([]decimal.Decimal, error)
}

// FlatPricer prices every seat at zero.  Pricing policy belongs to the
// payment collaborator.
type FlatPricer struct{}

func (FlatPricer) Price(_ context.Context, seats []model.EventObject) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(seats))
	for i := range out {
		out[i] = decimal.Zero
	}
	return out, nil
}

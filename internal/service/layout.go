package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/iliyamo/seatsync/internal/database"
	"github.com/iliyamo/seatsync/internal/model"
	"github.com/iliyamo/seatsync/internal/repository"
)

// LayoutMutator repositions objects.  Authorization is the caller's job.
type LayoutMutator struct {
	positions *repository.PositionRepo
}

func NewLayoutMutator(db *database.DB) *LayoutMutator {
	return &LayoutMutator{positions: repository.NewPositionRepo(db)}
}

func (m *LayoutMutator) MoveObject(ctx context.Context, eventID, objectID uuid.UUID, x, y, z float64) (*model.Position, error) {
	p, err := m.positions.Move(ctx, eventID, objectID, x, y, z)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errUnknownObject
	}
	if err != nil {
		return nil, fmt.Errorf("move object: %w", err)
	}
	return p, nil
}

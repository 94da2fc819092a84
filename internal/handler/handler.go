// Package handler exposes the HTTP surface: the websocket upgrade for an
// event room, the layout snapshot and the health check.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seatsync/internal/model"
	"github.com/iliyamo/seatsync/internal/repository"
)

// EventLookup finds the event a request targets.
type EventLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Event, error)
}

// loadEvent parses :event_id and reads the event, writing the 400/404/500
// reply itself.  A nil event means the reply was already sent.
func loadEvent(c echo.Context, events EventLookup) (*model.Event, error) {
	id, err := uuid.Parse(c.Param("event_id"))
	if err != nil {
		return nil, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ev, err := events.GetByID(c.Request().Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	}
	if err != nil {
		c.Logger().Errorf("event lookup %s: %v", id, err)
		return nil, c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return ev, nil
}

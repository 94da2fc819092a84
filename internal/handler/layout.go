package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seatsync/internal/model"
)

// LayoutLister reads the objects and positions of an event.
type LayoutLister interface {
	ListLayout(ctx context.Context, eventID uuid.UUID) ([]model.LayoutObject, error)
}

// LayoutHandler serves the snapshot a client loads before it joins the
// room.  Live changes arrive over the websocket afterwards.
type LayoutHandler struct {
	Events  EventLookup
	Objects LayoutLister
}

// GetLayout handles GET /v1/events/:event_id/layout.
func (h *LayoutHandler) GetLayout(c echo.Context) error {
	ev, err := loadEvent(c, h.Events)
	if ev == nil {
		return err
	}
	objects, err := h.Objects.ListLayout(c.Request().Context(), ev.ID)
	if err != nil {
		c.Logger().Errorf("layout %s: %v", ev.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"event_id": ev.ID,
		"name":     ev.Name,
		"objects":  objects,
	})
}

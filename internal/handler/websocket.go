package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seatsync/internal/config"
	"github.com/iliyamo/seatsync/internal/middleware"
	"github.com/iliyamo/seatsync/internal/realtime"
	"github.com/iliyamo/seatsync/internal/service"
)

// JoinRoles resolves the role a connection keeps for its lifetime.
type JoinRoles interface {
	JoinRole(ctx context.Context, id service.Identity, workspaceID uuid.UUID) service.Role
}

// ConnServer runs an upgraded connection.
type ConnServer interface {
	Serve(ctx context.Context, ws *websocket.Conn, c realtime.Client) error
}

// WebSocketHandler upgrades GET /ws/:event_id into a room connection.
type WebSocketHandler struct {
	Events   EventLookup
	Roles    JoinRoles
	Hub      ConnServer
	Log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(events EventLookup, roles JoinRoles, hub ConnServer, cfg config.WebSocketConfig, log *slog.Logger) *WebSocketHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebSocketHandler{
		Events: events,
		Roles:  roles,
		Hub:    hub,
		Log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
	}
}

// Connect validates the event before upgrading so a bad id or unknown
// event gets a plain HTTP error.  Identity comes from SessionIdentity.
func (h *WebSocketHandler) Connect(c echo.Context) error {
	ev, err := loadEvent(c, h.Events)
	if ev == nil {
		return err
	}
	id := middleware.IdentityFrom(c)
	role := h.Roles.JoinRole(c.Request().Context(), id, ev.WorkspaceID)

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already replied
		h.Log.Warn("websocket upgrade failed", "event_id", ev.ID, "err", err)
		return nil
	}
	client := realtime.Client{
		EventID:     ev.ID,
		WorkspaceID: ev.WorkspaceID,
		Identity:    id,
		Role:        role,
	}
	if err := h.Hub.Serve(c.Request().Context(), ws, client); err != nil {
		h.Log.Info("websocket closed", "event_id", ev.ID, "err", err)
	}
	return nil
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// Package router registers the HTTP routes and their middleware.
package router

import (
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/seatsync/internal/handler"
)

// Handlers groups what the routes dispatch to.
type Handlers struct {
	Health    *handler.HealthHandler
	WebSocket *handler.WebSocketHandler
	Layout    *handler.LayoutHandler
}

// Middleware groups the per-route middleware built from config.  Any
// field may be a pass-through.
type Middleware struct {
	RateLimit echo.MiddlewareFunc
	Identity  echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

// Register wires every route on e.
//
//	GET /healthz                     database and redis probe
//	GET /metrics                     prometheus scrape
//	GET /ws/:event_id                websocket upgrade, ?token= optional
//	GET /v1/events/:event_id/layout  layout snapshot
func Register(e *echo.Echo, h Handlers, m Middleware) {
	m = m.withDefaults()

	e.GET("/healthz", h.Health.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.GET("/ws/:event_id", h.WebSocket.Connect, m.RateLimit, m.Identity)

	e.GET(layoutRoute, h.Layout.GetLayout, m.RateLimit, m.Cache)
}

const layoutRoute = "/v1/events/:event_id/layout"

// LayoutPath is the request path of an event's layout snapshot, the key
// the snapshot is cached under.
func LayoutPath(eventID uuid.UUID) string {
	return strings.Replace(layoutRoute, ":event_id", eventID.String(), 1)
}

func (m Middleware) withDefaults() Middleware {
	pass := func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	if m.RateLimit == nil {
		m.RateLimit = pass
	}
	if m.Identity == nil {
		// every connection joins as a guest
		m.Identity = pass
	}
	if m.Cache == nil {
		m.Cache = pass
	}
	return m
}

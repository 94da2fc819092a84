// Package metrics registers the prometheus collectors of the seat server.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "seatsync_active_connections",
			Help: "Current number of websocket connections per event",
		},
		[]string{"event_id"},
	)

	commands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatsync_commands_total",
			Help: "Commands processed by action and result code",
		},
		[]string{"action", "code"},
	)

	broadcasts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatsync_broadcasts_total",
			Help: "Events published to rooms",
		},
	)

	laggedBroadcasts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatsync_lagged_broadcasts_total",
			Help: "Broadcasts skipped because a subscriber fell behind",
		},
	)

	sessionCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatsync_session_cache_total",
			Help: "Session cache lookups by result",
		},
		[]string{"result"},
	)

	reservationConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatsync_reservation_conflicts_total",
			Help: "Reservations rejected because a seat was no longer available",
		},
	)

	activityDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatsync_activity_dropped_total",
			Help: "Seat activity messages dropped before reaching the broker",
		},
	)
)

// open counts live connections per event so an event's series can be
// removed once its last connection closes.
var open = struct {
	sync.Mutex
	n map[string]int
}{n: map[string]int{}}

func ConnectionOpened(eventID string) {
	open.Lock()
	defer open.Unlock()
	open.n[eventID]++
	activeConnections.WithLabelValues(eventID).Set(float64(open.n[eventID]))
}

func ConnectionClosed(eventID string) {
	open.Lock()
	defer open.Unlock()
	if open.n[eventID] <= 1 {
		delete(open.n, eventID)
		activeConnections.DeleteLabelValues(eventID)
		return
	}
	open.n[eventID]--
	activeConnections.WithLabelValues(eventID).Set(float64(open.n[eventID]))
}

// Command counts one processed command; code is "ok" or the wire error code.
func Command(action, code string) { commands.WithLabelValues(action, code).Inc() }

func Broadcast()            { broadcasts.Inc() }
func Lagged(skipped uint64) { laggedBroadcasts.Add(float64(skipped)) }
func SessionCacheHit()      { sessionCache.WithLabelValues("hit").Inc() }
func SessionCacheMiss()     { sessionCache.WithLabelValues("miss").Inc() }
func ReservationConflict()  { reservationConflicts.Inc() }
func ActivityDropped()      { activityDropped.Inc() }

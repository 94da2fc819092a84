package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iliyamo/seatsync/internal/metrics"
	"github.com/iliyamo/seatsync/internal/model"
	"github.com/iliyamo/seatsync/internal/repository"
)

// Cache is the best-effort string cache in front of the session store.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// SessionStore is the durable session lookup.
type SessionStore interface {
	FindValid(ctx context.Context, token string, now time.Time) (*model.SessionInfo, error)
}

const cacheWriteTimeout = 2 * time.Second

// SessionValidator resolves opaque tokens to sessions, cache first.
//
// Cache writes after a store hit run on a detached goroutine and only log
// their failures, so validation never waits for or depends on Redis.  Wait
// blocks until the pending writes are done.
type SessionValidator struct {
	store  SessionStore
	cache  Cache // nil disables caching
	prefix string
	ttlCap time.Duration
	log    *slog.Logger
	now    func() time.Time

	writes sync.WaitGroup
}

func NewSessionValidator(store SessionStore, cache Cache, prefix string, ttlCap time.Duration, log *slog.Logger) *SessionValidator {
	if prefix == "" {
		prefix = "session"
	}
	if log == nil {
		log = slog.Default()
	}
	return &SessionValidator{
		store:  store,
		cache:  cache,
		prefix: prefix,
		ttlCap: ttlCap,
		log:    log,
		now:    time.Now,
	}
}

// Validate returns the session for token.  Unknown or expired tokens fail
// with an ErrUnauthorized classified error; store failures are returned
// as is.
func (v *SessionValidator) Validate(ctx context.Context, token string) (model.SessionInfo, error) {
	if token == "" {
		return model.SessionInfo{}, errInvalidSession
	}
	key := v.prefix + ":" + token
	now := v.now()

	if s, ok := v.cached(ctx, key, now); ok {
		metrics.SessionCacheHit()
		return s, nil
	}
	metrics.SessionCacheMiss()

	s, err := v.store.FindValid(ctx, token, now)
	if errors.Is(err, repository.ErrNotFound) {
		return model.SessionInfo{}, errInvalidSession
	}
	if err != nil {
		return model.SessionInfo{}, fmt.Errorf("session lookup: %w", err)
	}

	v.remember(ctx, key, *s, now)
	return *s, nil
}

// Wait blocks until every detached cache write has finished.
func (v *SessionValidator) Wait() { v.writes.Wait() }

func (v *SessionValidator) cached(ctx context.Context, key string, now time.Time) (model.SessionInfo, bool) {
	if v.cache == nil {
		return model.SessionInfo{}, false
	}
	raw, ok, err := v.cache.Get(ctx, key)
	if err != nil {
		v.log.Warn("session cache read failed", "err", err)
		return model.SessionInfo{}, false
	}
	if !ok {
		return model.SessionInfo{}, false
	}
	var s model.SessionInfo
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		v.log.Warn("session cache entry malformed", "err", err)
		return model.SessionInfo{}, false
	}
	if !s.Valid(now) {
		return model.SessionInfo{}, false
	}
	return s, true
}

func (v *SessionValidator) remember(ctx context.Context, key string, s model.SessionInfo, now time.Time) {
	if v.cache == nil {
		return
	}
	ttl := s.ExpiresAt.Sub(now).Truncate(time.Second)
	if v.ttlCap > 0 && ttl > v.ttlCap {
		ttl = v.ttlCap
	}
	if ttl <= 0 {
		return
	}
	body, err := json.Marshal(s)
	if err != nil {
		v.log.Warn("session cache encode failed", "err", err)
		return
	}

	v.writes.Add(1)
	go func() {
		defer v.writes.Done()
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheWriteTimeout)
		defer cancel()
		if err := v.cache.Set(wctx, key, string(body), ttl); err != nil {
			v.log.Warn("session cache write failed", "user_id", s.UserID, "err", err)
		}
	}()
}

package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/seatsync/internal/config"
	"github.com/iliyamo/seatsync/internal/realtime"
)

// captureWriter tees the response body into a bounded buffer.
type captureWriter struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if !cw.overflow {
		if cw.limit > 0 && cw.buf.Len()+len(b) > cw.limit {
			cw.overflow = true
			cw.buf.Reset()
		} else {
			cw.buf.Write(b)
		}
	}
	return cw.ResponseWriter.Write(b)
}

// The cached value is [4 bytes status][2 bytes content type length]
// [content type][body].
func encodeSnapshot(status int, contentType string, body []byte) []byte {
	out := make([]byte, 6+len(contentType)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint16(out[4:6], uint16(len(contentType)))
	copy(out[6:], contentType)
	copy(out[6+len(contentType):], body)
	return out
}

func decodeSnapshot(bs []byte) (status int, contentType string, body []byte, ok bool) {
	if len(bs) < 6 {
		return 0, "", nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	n := int(binary.BigEndian.Uint16(bs[4:6]))
	if 6+n > len(bs) {
		return 0, "", nil, false
	}
	return status, string(bs[6 : 6+n]), bs[6+n:], true
}

// cacheKey hashes the request path, optionally with the query, so
// different events never share an entry.
func cacheKey(cfg config.CacheConfig, r *http.Request) string {
	return keyFor(cfg, r.URL.Path, r.URL.RawQuery)
}

func keyFor(cfg config.CacheConfig, path, rawQuery string) string {
	tail := path
	if strings.ToLower(cfg.KeyStrategy) != "path" && rawQuery != "" {
		tail += "?" + rawQuery
	}
	sum := sha1.Sum([]byte(tail))
	return fmt.Sprintf("%s:%x", cfg.Prefix, sum[:])
}

// CacheInvalidator drops the cached snapshot of an event once a broadcast
// has changed it, so a client joining after the change never loads the
// old state.  It implements realtime.Notifier; deletes run detached.
type CacheInvalidator struct {
	cfg  config.CacheConfig
	rdb  redis.Cmdable
	path func(eventID uuid.UUID) string
	log  *slog.Logger
	dels sync.WaitGroup
}

func NewCacheInvalidator(cfg config.CacheConfig, rdb redis.Cmdable, path func(uuid.UUID) string, log *slog.Logger) *CacheInvalidator {
	if log == nil {
		log = slog.Default()
	}
	return &CacheInvalidator{cfg: cfg, rdb: rdb, path: path, log: log}
}

func (ci *CacheInvalidator) Notify(eventID uuid.UUID, _ realtime.EventPayload) {
	key := keyFor(ci.cfg, ci.path(eventID), "")
	ci.dels.Add(1)
	go func() {
		defer ci.dels.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := ci.rdb.Del(ctx, key).Err(); err != nil {
			ci.log.Warn("layout cache invalidation failed", "event_id", eventID, "key", key, "err", err)
		}
	}()
}

// Wait blocks until pending deletes finish.
func (ci *CacheInvalidator) Wait() { ci.dels.Wait() }

// ResponseCache caches successful responses of the configured methods in
// Redis for cfg.TTL.  A nil client or a disabled config passes through.
func ResponseCache(cfg config.CacheConfig, rdb redis.Cmdable, log *slog.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if log == nil {
		log = slog.Default()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !cfg.Methods[strings.ToUpper(req.Method)] {
				return next(c)
			}
			ctx := req.Context()
			key := cacheKey(cfg, req)

			if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
				if status, ct, body, ok := decodeSnapshot(bs); ok {
					res := c.Response()
					if ct != "" {
						res.Header().Set(echo.HeaderContentType, ct)
					}
					res.Header().Set("X-Cache", "HIT")
					res.WriteHeader(status)
					_, _ = res.Write(body)
					return nil
				}
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || cw.overflow {
				return nil
			}
			payload := encodeSnapshot(cw.status, c.Response().Header().Get(echo.HeaderContentType), cw.buf.Bytes())
			if err := rdb.Set(context.WithoutCancel(ctx), key, payload, ttl).Err(); err != nil {
				log.Warn("response cache write failed", "key", key, "err", err)
			}
			return nil
		}
	}
}

package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/pkg/web"
)

// IdempotencyKeyHeader names the header that makes a POST request replayable.
const IdempotencyKeyHeader = "Idempotency-Key"

const (
	idempotencyPrefix = "idempotency:v1:"
	inProgressMarker  = "__in_progress__"
	cacheTimeout      = 2 * time.Second
)

var (
	// ErrRequestInProgress indicates that a request with the same idempotency key is still being served.
	ErrRequestInProgress = errors.New("request with this idempotency key is in progress")
	// ErrIdempotencyStore indicates that the idempotency cache cannot be reached.
	ErrIdempotencyStore = errors.New("idempotency store failure")
)

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type recordingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response of a POST request that carries an
// already seen Idempotency-Key header. Requests without the header pass through.
//
// Server errors are not stored so the request can be retried with the same key.
func Idempotency(cache *redis.Client, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if c.Request.Method != http.MethodPost || key == "" {
			c.Next()
			return
		}

		l := zerolog.Ctx(c.Request.Context()).With().Str("idempotency_key", key).Logger()
		cacheKey := idempotencyPrefix + key

		ctx, cancel := context.WithTimeout(c.Request.Context(), cacheTimeout)
		defer cancel()

		reserved, err := cache.SetNX(ctx, cacheKey, inProgressMarker, ttl).Result()
		if err != nil {
			l.Error().Err(err).Msg("idempotency reservation failed")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, web.Error(ErrIdempotencyStore))

			return
		}

		if !reserved {
			replay(c, cache, cacheKey, l)
			return
		}

		w := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = w

		served := false

		// A panicking handler leaves no response to store. The reservation is
		// dropped and the panic keeps unwinding to the recovery middleware.
		defer func() {
			if served {
				return
			}

			delCtx, delCancel := context.WithTimeout(context.Background(), cacheTimeout)
			defer delCancel()

			if err := cache.Del(delCtx, cacheKey).Err(); err != nil {
				l.Error().Err(err).Msg("idempotency cleanup after panic failed")
			}
		}()

		c.Next()

		served = true

		persistCtx, persistCancel := context.WithTimeout(context.Background(), cacheTimeout)
		defer persistCancel()

		if w.Status() >= http.StatusInternalServerError {
			if err := cache.Del(persistCtx, cacheKey).Err(); err != nil {
				l.Error().Err(err).Msg("idempotency cleanup failed")
			}

			return
		}

		payload, err := json.Marshal(storedResponse{
			Status:      w.Status(),
			ContentType: w.Header().Get("Content-Type"),
			Body:        w.body.Bytes(),
		})
		if err != nil {
			l.Error().Err(err).Msg("failed to encode idempotent response")
			cache.Del(persistCtx, cacheKey)

			return
		}

		if err := cache.Set(persistCtx, cacheKey, payload, ttl).Err(); err != nil {
			l.Error().Err(err).Msg("failed to persist idempotent response")
			cache.Del(persistCtx, cacheKey)
		}
	}
}

func replay(c *gin.Context, cache *redis.Client, cacheKey string, l zerolog.Logger) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), cacheTimeout)
	defer cancel()

	cached, err := cache.Get(ctx, cacheKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Expired or cleaned up between SETNX and GET.
			c.AbortWithStatusJSON(http.StatusConflict, web.Error(ErrRequestInProgress))
			return
		}

		l.Error().Err(err).Msg("idempotency lookup failed")
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, web.Error(ErrIdempotencyStore))

		return
	}

	if cached == inProgressMarker {
		c.AbortWithStatusJSON(http.StatusConflict, web.Error(ErrRequestInProgress))
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(cached), &stored); err != nil {
		l.Warn().Err(err).Msg("failed to decode stored idempotent response")
		c.AbortWithStatusJSON(http.StatusConflict, web.Error(ErrRequestInProgress))

		return
	}

	l.Info().Int("status_code", stored.Status).Msg("replaying stored response")

	c.Header("Idempotent-Replayed", "true")
	c.Data(stored.Status, stored.ContentType, stored.Body)
	c.Abort()
}

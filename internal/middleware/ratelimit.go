package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/go-petr/pet-ledger/pkg/web"
)

// ErrTooManyRequests indicates that the client exceeded its request rate.
var ErrTooManyRequests = errors.New("too many requests, retry later")

// NewLimiter returns an in-memory limiter for a rate in the "<limit>-<period>"
// notation, e.g. "100-S" or "1000-M".
func NewLimiter(rate string) (*limiter.Limiter, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, err
	}

	return limiter.New(memory.NewStore(), r), nil
}

// RateLimit limits requests per client IP.
func RateLimit(l *limiter.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		log := zerolog.Ctx(ctx)
		ip := c.ClientIP()

		lctx, err := l.Get(ctx, ip)
		if err != nil {
			log.Error().Err(err).Str("ip", ip).Msg("rate limit check failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			log.Warn().Str("ip", ip).Int64("limit", lctx.Limit).Msg("rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, web.Error(ErrTooManyRequests))

			return
		}

		c.Next()
	}
}

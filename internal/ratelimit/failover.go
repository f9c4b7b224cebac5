package ratelimit

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// Failover consults primary until it errors, then serves from fallback and
// retries primary once per recoveryInterval.
type Failover struct {
	primary   Limiter
	fallback  Limiter
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	now       func() time.Time
}

func NewFailover(primary, fallback Limiter, logger *zerolog.Logger) *Failover {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Failover{primary: primary, fallback: fallback, logger: logger, now: time.Now}
}

func (f *Failover) Allow(ctx context.Context, key string) (bool, error) {
	if !f.isDown.Load() || f.now().Sub(time.Unix(0, f.lastCheck.Load())) > recoveryInterval {
		allowed, err := f.primary.Allow(ctx, key)
		if err == nil {
			if f.isDown.Swap(false) {
				f.logger.Info().Msg("primary rate limiter recovered")
			}
			return allowed, nil
		}
		if !f.isDown.Swap(true) {
			f.logger.Error().Err(err).Msg("primary rate limiter failed, falling back to memory")
		}
		f.lastCheck.Store(f.now().UnixNano())
	}

	return f.fallback.Allow(ctx, key)
}

// Degraded reports whether the fallback is currently serving.
func (f *Failover) Degraded() bool {
	return f.isDown.Load()
}

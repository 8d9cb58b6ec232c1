// Package sink mirrors accepted measures to MQTT and InfluxDB.
package sink

import (
	"context"
	"time"

	"capteur/internal/models"
	"capteur/internal/service"

	"github.com/sony/gobreaker"
)

// BreakerSettings trip the breaker after Failures consecutive errors and keep
// it open for OpenTimeout.
type BreakerSettings struct {
	Failures    uint32
	OpenTimeout time.Duration
	Interval    time.Duration
}

func (s BreakerSettings) withDefaults() BreakerSettings {
	if s.Failures == 0 {
		s.Failures = 3
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	if s.Interval <= 0 {
		s.Interval = time.Minute
	}
	return s
}

var (
	_ service.Sink = (*MQTT)(nil)
	_ service.Sink = (*Influx)(nil)
	_ service.Sink = (*Breaker)(nil)
)

// Breaker stops calling a failing sink until it has had time to recover.
type Breaker struct {
	inner service.Sink
	cb    *gobreaker.CircuitBreaker
}

func NewBreaker(inner service.Sink, st BreakerSettings) *Breaker {
	st = st.withDefaults()
	return &Breaker{
		inner: inner,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     inner.Name(),
			Interval: st.Interval,
			Timeout:  st.OpenTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= st.Failures
			},
		}),
	}
}

func (b *Breaker) Name() string { return b.inner.Name() }

// Write returns gobreaker.ErrOpenState without calling the sink while open.
func (b *Breaker) Write(ctx context.Context, rec models.MeasureRecord) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.inner.Write(ctx, rec)
	})
	return err
}

func (b *Breaker) State() gobreaker.State { return b.cb.State() }

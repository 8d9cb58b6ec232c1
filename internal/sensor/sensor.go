// Package sensor reads the node's temperature/humidity transducer.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"capteur/internal/models"
)

// Read failures. Callers log and skip the cycle; none of them is fatal.
var (
	ErrTimeout  = errors.New("sensor: read timed out")
	ErrChecksum = errors.New("sensor: checksum mismatch")
	ErrProtocol = errors.New("sensor: protocol error")
)

// DefaultReadTimeout bounds a single read when the configuration leaves it unset.
const DefaultReadTimeout = 1 * time.Second

// Sensor performs one timed read of the transducer.
type Sensor interface {
	Read(ctx context.Context) (models.Measurement, error)
}

type timeoutSensor struct {
	inner   Sensor
	timeout time.Duration
}

// WithTimeout bounds every Read of s to d. A read still running when d expires
// is abandoned and ErrTimeout is returned.
func WithTimeout(s Sensor, d time.Duration) Sensor {
	if d <= 0 {
		d = DefaultReadTimeout
	}
	return &timeoutSensor{inner: s, timeout: d}
}

type readResult struct {
	m   models.Measurement
	err error
}

func (t *timeoutSensor) Read(ctx context.Context) (models.Measurement, error) {
	rctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan readResult, 1)
	go func() {
		m, err := t.inner.Read(rctx)
		done <- readResult{m: m, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() == nil && errors.Is(rctx.Err(), context.DeadlineExceeded) {
			return models.Measurement{}, fmt.Errorf("%w after %s", ErrTimeout, t.timeout)
		}
		return r.m, r.err
	case <-rctx.Done():
		if ctx.Err() != nil {
			return models.Measurement{}, ctx.Err()
		}
		return models.Measurement{}, fmt.Errorf("%w after %s", ErrTimeout, t.timeout)
	}
}

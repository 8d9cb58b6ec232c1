package node

import (
	"context"
	"time"

	"capteur/internal/logger"
	"capteur/internal/mailbox"
	"capteur/internal/metrics"
	"capteur/internal/models"
	"capteur/internal/sensor"
)

const (
	DefaultSamplePeriod = 5 * time.Second
	DefaultWarmup       = 2 * time.Second
)

// MeasureConfig tunes the sampling loop. Zero values take the defaults.
type MeasureConfig struct {
	Period        time.Duration
	Warmup        time.Duration
	SensorTimeout time.Duration
}

// MeasureLoop samples the sensor once per period after the warm-up delay has
// elapsed and the node is ready, and posts every good reading to measures.
type MeasureLoop struct {
	sensor   sensor.Sensor
	measures *mailbox.Mailbox[models.Measurement]
	ready    *mailbox.Mailbox[bool]
	cfg      MeasureConfig
	log      *logger.Logger
}

func NewMeasureLoop(s sensor.Sensor, measures *mailbox.Mailbox[models.Measurement],
	ready *mailbox.Mailbox[bool], cfg MeasureConfig, log *logger.Logger) *MeasureLoop {
	if cfg.Period <= 0 {
		cfg.Period = DefaultSamplePeriod
	}
	if cfg.Warmup < 0 {
		cfg.Warmup = 0
	} else if cfg.Warmup == 0 {
		cfg.Warmup = DefaultWarmup
	}
	if log == nil {
		log = logger.Nop()
	}
	return &MeasureLoop{
		sensor:   sensor.WithTimeout(s, cfg.SensorTimeout),
		measures: measures,
		ready:    ready,
		cfg:      cfg,
		log:      log,
	}
}

// SleepFor returns how long to sleep after a cycle that took elapsed. Only
// whole seconds of elapsed count and the result never goes below zero.
func SleepFor(period, elapsed time.Duration) time.Duration {
	whole := elapsed.Truncate(time.Second)
	if whole >= period {
		return 0
	}
	return period - whole
}

// Run blocks until ctx is done. It never returns early on sensor errors.
func (l *MeasureLoop) Run(ctx context.Context) {
	if err := l.waitForStart(ctx); err != nil {
		return
	}
	l.log.Infow("sampling started", "period", l.cfg.Period)

	for {
		start := time.Now()
		l.sampleOnce(ctx)

		delay := SleepFor(l.cfg.Period, time.Since(start))
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// waitForStart returns once both the warm-up delay has elapsed and a true
// readiness value has been received. False values are consumed and ignored.
func (l *MeasureLoop) waitForStart(ctx context.Context) error {
	warm := time.NewTimer(l.cfg.Warmup)
	defer warm.Stop()

	for {
		ok, err := l.ready.Wait(ctx)
		if err != nil {
			return err
		}
		if ok {
			break
		}
	}

	select {
	case <-warm.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *MeasureLoop) sampleOnce(ctx context.Context) {
	m, err := l.sensor.Read(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.SamplesTotal.WithLabelValues(metrics.ResultError).Inc()
		l.log.Warnw("sensor read failed", "err", err)
		return
	}
	metrics.SamplesTotal.WithLabelValues(metrics.ResultOK).Inc()
	l.log.Debugw("measure", "temperature", m.Temperature, "humidity", m.Humidity)
	l.measures.Signal(m)
}

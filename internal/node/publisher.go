package node

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"capteur/internal/client"
	"capteur/internal/logger"
	"capteur/internal/mailbox"
	"capteur/internal/metrics"
	"capteur/internal/models"
	"capteur/internal/rtc"
)

// DefaultBodyCapacity is the size of the fixed request buffer on the device.
const DefaultBodyCapacity = 100

// ErrBodyOverflow is returned when the serialized measure does not fit.
var ErrBodyOverflow = errors.New("measure body exceeds capacity")

// Poster sends a JSON body to the collector.
type Poster interface {
	PostJSON(ctx context.Context, path string, body []byte) error
}

type measureBody struct {
	Timestamp   string      `json:"timestamp"`
	Temperature json.Number `json:"temperature"`
	Humidity    json.Number `json:"humidity"`
	CapteurID   string      `json:"capteur_id"`
}

// BuildBody renders the POST /measure payload. Temperature and humidity are
// written with two decimals.
func BuildBody(m models.Measurement, now models.DateTime, deviceID string, capacity int) ([]byte, error) {
	if capacity <= 0 {
		capacity = DefaultBodyCapacity
	}
	body, err := json.Marshal(measureBody{
		Timestamp:   now.ISO8601(),
		Temperature: json.Number(strconv.FormatFloat(m.Temperature, 'f', 2, 64)),
		Humidity:    json.Number(strconv.FormatFloat(m.Humidity, 'f', 2, 64)),
		CapteurID:   deviceID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal measure: %w", err)
	}
	if len(body) > capacity {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrBodyOverflow, len(body), capacity)
	}
	return body, nil
}

// Edge of the AM2301 range with the widest rendering.
var widestMeasurement = models.Measurement{Temperature: -40, Humidity: 100}

// CheckBodyCapacity returns ErrBodyOverflow when a reading at the edge of the
// sensor range would not fit in capacity bytes once stamped with deviceID.
func CheckBodyCapacity(deviceID string, capacity int) error {
	stamp := models.DateTime{Year: 2000, Month: 1, Day: 1}
	_, err := BuildBody(widestMeasurement, stamp, deviceID, capacity)
	return err
}

// PublisherConfig identifies the device on the wire.
type PublisherConfig struct {
	DeviceID     string
	BodyCapacity int
}

// Publisher forwards the latest measurement to the collector, stamped with
// the hardware clock. Delivery is best effort.
type Publisher struct {
	clock    rtc.Clock
	measures *mailbox.Mailbox[models.Measurement]
	api      Poster
	cfg      PublisherConfig
	log      *logger.Logger
}

func NewPublisher(clock rtc.Clock, measures *mailbox.Mailbox[models.Measurement], api Poster,
	cfg PublisherConfig, log *logger.Logger) *Publisher {
	if cfg.BodyCapacity <= 0 {
		cfg.BodyCapacity = DefaultBodyCapacity
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Publisher{clock: clock, measures: measures, api: api, cfg: cfg, log: log}
}

// Run publishes until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	for ctx.Err() == nil {
		_ = p.PublishOnce(ctx)
	}
}

// PublishOnce runs a single cycle: read the clock, wait for a measurement,
// send it. A failed cycle drops the measurement.
func (p *Publisher) PublishOnce(ctx context.Context) error {
	now, err := p.readClock(ctx)
	if err != nil {
		return err
	}

	m, err := p.measures.Wait(ctx)
	if err != nil {
		return err
	}

	body, err := BuildBody(m, now, p.cfg.DeviceID, p.cfg.BodyCapacity)
	if err != nil {
		metrics.PublishTotal.WithLabelValues(metrics.ResultDropped).Inc()
		p.log.Warnw("unable to build body, passing...", "err", err)
		return err
	}

	if err := p.api.PostJSON(ctx, client.PathMeasure, body); err != nil {
		metrics.PublishTotal.WithLabelValues(metrics.ResultFailed).Inc()
		p.log.Warnw("unable to send request, passing...", "err", err)
		return err
	}
	metrics.PublishTotal.WithLabelValues(metrics.ResultOK).Inc()
	p.log.Debugw("measure sent", "timestamp", now.ISO8601())
	return nil
}

// readClock retries until the clock answers or ctx is done.
func (p *Publisher) readClock(ctx context.Context) (models.DateTime, error) {
	for {
		now, err := p.clock.Now()
		if err == nil {
			return now, nil
		}
		metrics.ClockReadErrorsTotal.Inc()
		p.log.Errorw("RTC is not running", "err", err)
		if ctx.Err() != nil {
			return models.DateTime{}, ctx.Err()
		}
	}
}

package node

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"capteur/internal/client"
	"capteur/internal/logger"
	"capteur/internal/metrics"
	"capteur/internal/models"
	"capteur/internal/rtc"
)

// SyncErrorKind enumerates every way clock synchronization can fail.
type SyncErrorKind int

const (
	KindAPI             SyncErrorKind = iota + 1 // transport failure on GET /now
	KindInvalidResponse                          // body is not a RemoteTimeSample
	KindDateTime                                 // a date field is not numeric
	KindWeekday                                  // weekday outside 0..6 (strict mode only)
	KindRTC                                      // the clock rejected the value
)

// Sentinels matched by errors.Is against a *SyncError.
var (
	ErrAPI                = errors.New("api error")
	ErrInvalidAPIResponse = errors.New("invalid api response")
	ErrDateTime           = errors.New("invalid date time")
	ErrWeekday            = errors.New("invalid weekday")
	ErrRTC                = errors.New("rtc error")
)

func (k SyncErrorKind) sentinel() error {
	switch k {
	case KindAPI:
		return ErrAPI
	case KindInvalidResponse:
		return ErrInvalidAPIResponse
	case KindDateTime:
		return ErrDateTime
	case KindWeekday:
		return ErrWeekday
	case KindRTC:
		return ErrRTC
	default:
		return errors.New("unknown sync error")
	}
}

func (k SyncErrorKind) String() string { return k.sentinel().Error() }

// SyncError is the single error type returned by ClockSync.
type SyncError struct {
	Kind SyncErrorKind
	Err  error
}

func (e *SyncError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *SyncError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

func syncErr(kind SyncErrorKind, err error) *SyncError {
	return &SyncError{Kind: kind, Err: err}
}

// Fetcher reads a resource from the collector.
type Fetcher interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// ClockSync sets the hardware clock from the collector's /now endpoint.
type ClockSync struct {
	api           Fetcher
	clock         rtc.Clock
	strictWeekday bool
	log           *logger.Logger
}

// NewClockSync builds the synchronizer. With strictWeekday an out-of-range
// weekday fails with KindWeekday instead of falling back to Monday.
func NewClockSync(api Fetcher, clock rtc.Clock, strictWeekday bool, log *logger.Logger) *ClockSync {
	if log == nil {
		log = logger.Nop()
	}
	return &ClockSync{api: api, clock: clock, strictWeekday: strictWeekday, log: log}
}

// Sync runs the protocol once. Callers must not retry on error.
func (c *ClockSync) Sync(ctx context.Context) error {
	err := c.sync(ctx)
	if err != nil {
		metrics.ClockSyncTotal.WithLabelValues(metrics.ResultError).Inc()
		return err
	}
	metrics.ClockSyncTotal.WithLabelValues(metrics.ResultOK).Inc()
	return nil
}

func (c *ClockSync) sync(ctx context.Context) error {
	body, err := c.api.Fetch(ctx, client.PathNow)
	if err != nil {
		c.log.Warnw("error when requesting the time, passing...", "err", err)
		return syncErr(KindAPI, err)
	}

	sample, err := DecodeRemoteTime(body)
	if err != nil {
		return err
	}
	c.log.Infow("api response", "now", sample.Now, "weekday", sample.Weekday)

	dt, err := ParseRemoteTime(sample, c.strictWeekday)
	if err != nil {
		return err
	}
	if uint8(dt.DayOfWeek) != sample.Weekday {
		c.log.Warnw("weekday out of range, using Monday", "weekday", sample.Weekday)
	}

	if err := c.clock.SetDateTime(dt); err != nil {
		return syncErr(KindRTC, err)
	}
	return nil
}

// DecodeRemoteTime parses the /now body. Both fields are required.
func DecodeRemoteTime(body []byte) (models.RemoteTimeSample, error) {
	var raw struct {
		Now     *string `json:"now"`
		Weekday *uint8  `json:"weekday"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.RemoteTimeSample{}, syncErr(KindInvalidResponse, err)
	}
	if raw.Now == nil || raw.Weekday == nil {
		return models.RemoteTimeSample{}, syncErr(KindInvalidResponse, errors.New("missing now or weekday"))
	}
	return models.RemoteTimeSample{Now: *raw.Now, Weekday: *raw.Weekday}, nil
}

// Field offsets inside the "YYYY-MM-DDTHH:MM:SS" prefix of the date string.
const minDateLen = 19

// ParseRemoteTime extracts the clock value from fixed offsets of sample.Now.
// An out-of-range weekday becomes Monday unless strictWeekday is set.
func ParseRemoteTime(sample models.RemoteTimeSample, strictWeekday bool) (models.DateTime, error) {
	s := sample.Now
	if len(s) < minDateLen {
		return models.DateTime{}, syncErr(KindDateTime, fmt.Errorf("date %q shorter than %d bytes", s, minDateLen))
	}

	year, err := parseField(s, 0, 4, 16)
	if err != nil {
		return models.DateTime{}, err
	}
	month, err := parseField(s, 5, 7, 8)
	if err != nil {
		return models.DateTime{}, err
	}
	day, err := parseField(s, 8, 10, 8)
	if err != nil {
		return models.DateTime{}, err
	}
	hour, err := parseField(s, 11, 13, 8)
	if err != nil {
		return models.DateTime{}, err
	}
	minute, err := parseField(s, 14, 16, 8)
	if err != nil {
		return models.DateTime{}, err
	}
	second, err := parseField(s, 17, 19, 8)
	if err != nil {
		return models.DateTime{}, err
	}

	dow, ok := models.DayOfWeekFromUint8(sample.Weekday)
	if !ok {
		if strictWeekday {
			return models.DateTime{}, syncErr(KindWeekday, fmt.Errorf("weekday %d", sample.Weekday))
		}
		dow = models.Monday
	}

	return models.DateTime{
		Year:      uint16(year),
		Month:     uint8(month),
		Day:       uint8(day),
		DayOfWeek: dow,
		Hour:      uint8(hour),
		Minute:    uint8(minute),
		Second:    uint8(second),
	}, nil
}

func parseField(s string, from, to, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s[from:to], 10, bits)
	if err != nil {
		return 0, syncErr(KindDateTime, fmt.Errorf("field [%d,%d) of %q: %w", from, to, s, err))
	}
	return v, nil
}

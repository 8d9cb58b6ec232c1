package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"capteur/internal/logger"
	"capteur/internal/metrics"
	"capteur/internal/models"
	"capteur/internal/repository"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

const (
	defaultLatestTTL = 10 * time.Minute
	sinkWriteTimeout = 5 * time.Second
)

var (
	ErrInvalidMeasure   = errors.New("invalid measure")
	ErrInvalidTimeRange = errors.New("invalid time range: from must be <= to")
	ErrNotFound         = repository.ErrNotFound
)

// MeasureInput is the body a node posts to /measure.
type MeasureInput struct {
	Timestamp   time.Time
	CapteurID   string
	Temperature float64
	Humidity    float64
}

// MeasureFilter supports history filtering by time range and capteur.
type MeasureFilter struct {
	From    time.Time // inclusive; zero means no lower bound
	To      time.Time // inclusive; zero means no upper bound
	Capteur string
}

type MeasureService struct {
	repo   repository.MeasureRepo
	hub    *Hub
	sinks  []Sink
	latest *gocache.Cache
	log    *logger.Logger
	now    func() time.Time
}

func NewMeasureService(repo repository.MeasureRepo, hub *Hub, opts Options) *MeasureService {
	ttl := opts.LatestTTL
	if ttl <= 0 {
		ttl = defaultLatestTTL
	}
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	return &MeasureService{
		repo:   repo,
		hub:    hub,
		sinks:  opts.Sinks,
		latest: gocache.New(ttl, 2*ttl),
		log:    log,
		now:    time.Now,
	}
}

func validateInput(in MeasureInput) (MeasureInput, error) {
	in.CapteurID = strings.TrimSpace(in.CapteurID)
	switch {
	case in.CapteurID == "":
		return in, fmt.Errorf("%w: capteur_id is required", ErrInvalidMeasure)
	case in.Timestamp.IsZero():
		return in, fmt.Errorf("%w: timestamp is required", ErrInvalidMeasure)
	case math.IsNaN(in.Temperature) || math.IsInf(in.Temperature, 0):
		return in, fmt.Errorf("%w: temperature is not finite", ErrInvalidMeasure)
	case math.IsNaN(in.Humidity) || math.IsInf(in.Humidity, 0):
		return in, fmt.Errorf("%w: humidity is not finite", ErrInvalidMeasure)
	}
	in.Timestamp = in.Timestamp.UTC()
	return in, nil
}

// Record persists one measure, then updates the latest cache, the live
// stream and the mirror sinks. Only the database write can fail the call.
func (s *MeasureService) Record(ctx context.Context, in MeasureInput) (models.MeasureRecord, error) {
	in, err := validateInput(in)
	if err != nil {
		return models.MeasureRecord{}, err
	}

	rec := models.MeasureRecord{
		ID:          uuid.NewString(),
		Timestamp:   in.Timestamp,
		CapteurID:   in.CapteurID,
		Temperature: in.Temperature,
		Humidity:    in.Humidity,
		ReceivedAt:  s.now().UTC(),
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		return models.MeasureRecord{}, err
	}

	s.rememberLatest(rec)
	s.hub.Publish(rec)
	s.mirror(ctx, rec)
	return rec, nil
}

func (s *MeasureService) rememberLatest(rec models.MeasureRecord) {
	if cur, ok := s.latest.Get(rec.CapteurID); ok {
		if prev := cur.(models.MeasureRecord); prev.Timestamp.After(rec.Timestamp) {
			return
		}
	}
	s.latest.SetDefault(rec.CapteurID, rec)
}

func (s *MeasureService) mirror(ctx context.Context, rec models.MeasureRecord) {
	if len(s.sinks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkWriteTimeout)
	defer cancel()
	for _, sink := range s.sinks {
		if err := sink.Write(ctx, rec); err != nil {
			metrics.SinkWritesTotal.WithLabelValues(sink.Name(), metrics.ResultError).Inc()
			s.log.Warnw("sink_write_failed", "sink", sink.Name(), "capteur", rec.CapteurID, "err", err)
			continue
		}
		metrics.SinkWritesTotal.WithLabelValues(sink.Name(), metrics.ResultOK).Inc()
	}
}

func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

func (s *MeasureService) List(ctx context.Context, f MeasureFilter) ([]models.MeasureRecord, error) {
	from, to := normalizeToUTC(f.From), normalizeToUTC(f.To)
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return nil, ErrInvalidTimeRange
	}
	return s.repo.List(ctx, from, to, strings.TrimSpace(f.Capteur))
}

// Latest serves the newest measure of a capteur from cache, falling back to
// the repository.
func (s *MeasureService) Latest(ctx context.Context, capteur string) (models.MeasureRecord, error) {
	capteur = strings.TrimSpace(capteur)
	if v, ok := s.latest.Get(capteur); ok {
		return v.(models.MeasureRecord), nil
	}
	rec, err := s.repo.Latest(ctx, capteur)
	if err != nil {
		return models.MeasureRecord{}, err
	}
	s.latest.SetDefault(capteur, rec)
	return rec, nil
}

package service

import (
	"context"
	"time"

	"capteur/internal/logger"
	"capteur/internal/models"
	"capteur/internal/repository"
)

// Measures accepts readings from the nodes and serves them back.
type Measures interface {
	Record(ctx context.Context, in MeasureInput) (models.MeasureRecord, error)
	List(ctx context.Context, f MeasureFilter) ([]models.MeasureRecord, error)
	Latest(ctx context.Context, capteur string) (models.MeasureRecord, error)
}

// Clock answers the time-sync request of the nodes.
type Clock interface {
	Now() models.RemoteTimeSample
}

// Stream fans accepted measures out to live subscribers.
type Stream interface {
	Subscribe() (<-chan models.MeasureRecord, func())
}

// Sink mirrors accepted measures to a secondary store. Failures never reject
// the measure.
type Sink interface {
	Name() string
	Write(ctx context.Context, rec models.MeasureRecord) error
}

// Service aggregates the collector's sub-services.
type Service struct {
	Measures
	Clock
	Stream
}

// Options tune NewService. Zero values are valid.
type Options struct {
	LatestTTL time.Duration
	Sinks     []Sink
	Log       *logger.Logger
}

// NewService wires the repository layer into concrete services.
func NewService(repos *repository.Repository, opts Options) *Service {
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	hub := NewHub(opts.Log.Named("hub"))
	return &Service{
		Measures: NewMeasureService(repos.Measures, hub, opts),
		Clock:    NewClockService(time.Now),
		Stream:   hub,
	}
}

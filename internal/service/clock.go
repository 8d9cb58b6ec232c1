package service

import (
	"time"

	"capteur/internal/models"
)

type ClockService struct {
	now func() time.Time
}

func NewClockService(now func() time.Time) *ClockService {
	if now == nil {
		now = time.Now
	}
	return &ClockService{now: now}
}

// Now returns UTC now in RFC 3339 with nanoseconds and the weekday with
// Sunday as 0, the numbering of the node's clock.
func (s *ClockService) Now() models.RemoteTimeSample {
	now := s.now().UTC()
	return models.RemoteTimeSample{
		Now:     now.Format(time.RFC3339Nano),
		Weekday: uint8(now.Weekday()),
	}
}

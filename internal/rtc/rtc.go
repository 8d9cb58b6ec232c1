// Package rtc models the node's hardware real-time clock.
package rtc

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"capteur/internal/models"
)

var (
	// ErrNotRunning is returned by Now before the clock has been set.
	ErrNotRunning = errors.New("rtc: clock is not running")
	// ErrInvalidDateTime is returned by SetDateTime for out-of-range fields.
	ErrInvalidDateTime = errors.New("rtc: invalid date time")
)

// MaxYear is the largest year the 12-bit year register holds.
const MaxYear = 4095

// Clock is the hardware clock as seen by the node.
type Clock interface {
	Now() (models.DateTime, error)
	SetDateTime(dt models.DateTime) error
}

// Soft is a software clock counting from the last SetDateTime on the
// monotonic clock. The day of week is carried from the programmed value, not
// recomputed from the date.
type Soft struct {
	mu    sync.RWMutex
	base  models.DateTime
	setAt time.Time
	set   bool
	now   func() time.Time
}

// NewSoft returns a stopped clock.
func NewSoft() *Soft {
	return &Soft{now: time.Now}
}

// SetDateTime validates dt and starts the clock from it.
func (c *Soft) SetDateTime(dt models.DateTime) error {
	if err := Validate(dt); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = dt
	c.setAt = c.now()
	c.set = true
	return nil
}

// Now returns the current clock value.
func (c *Soft) Now() (models.DateTime, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.set {
		return models.DateTime{}, ErrNotRunning
	}

	start := c.base.Time()
	cur := start.Add(c.now().Sub(c.setAt))

	out := models.DateTimeFromTime(cur)
	days := daysBetween(start, cur)
	out.DayOfWeek = models.DayOfWeek((int(c.base.DayOfWeek) + days) % 7)
	return out, nil
}

// Validate checks dt against the ranges the clock registers accept.
func Validate(dt models.DateTime) error {
	switch {
	case dt.Year > MaxYear:
		return fmt.Errorf("%w: year %d", ErrInvalidDateTime, dt.Year)
	case dt.Month < 1 || dt.Month > 12:
		return fmt.Errorf("%w: month %d", ErrInvalidDateTime, dt.Month)
	case dt.Day < 1 || int(dt.Day) > daysIn(dt.Year, dt.Month):
		return fmt.Errorf("%w: day %d", ErrInvalidDateTime, dt.Day)
	case dt.DayOfWeek > models.Saturday:
		return fmt.Errorf("%w: day of week %d", ErrInvalidDateTime, dt.DayOfWeek)
	case dt.Hour > 23:
		return fmt.Errorf("%w: hour %d", ErrInvalidDateTime, dt.Hour)
	case dt.Minute > 59:
		return fmt.Errorf("%w: minute %d", ErrInvalidDateTime, dt.Minute)
	case dt.Second > 59:
		return fmt.Errorf("%w: second %d", ErrInvalidDateTime, dt.Second)
	}
	return nil
}

func daysIn(year uint16, month uint8) int {
	// day 0 of the next month is the last day of this one
	return time.Date(int(year), time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func daysBetween(from, to time.Time) int {
	y1, m1, d1 := from.Date()
	y2, m2, d2 := to.Date()
	a := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	b := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

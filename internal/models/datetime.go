package models

import (
	"fmt"
	"time"
)

// DayOfWeek follows the hardware clock numbering: Sunday is 0.
type DayOfWeek uint8

const (
	Sunday DayOfWeek = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

// DayOfWeekFromUint8 maps 0..6 to a day; ok is false for anything else.
func DayOfWeekFromUint8(v uint8) (DayOfWeek, bool) {
	if v > uint8(Saturday) {
		return 0, false
	}
	return DayOfWeek(v), true
}

func (d DayOfWeek) String() string {
	if d > Saturday {
		return fmt.Sprintf("DayOfWeek(%d)", uint8(d))
	}
	return time.Weekday(d).String()
}

// DateTime is the value held by the device real-time clock.
type DateTime struct {
	Year      uint16    `json:"year"`
	Month     uint8     `json:"month"`
	Day       uint8     `json:"day"`
	DayOfWeek DayOfWeek `json:"day_of_week"`
	Hour      uint8     `json:"hour"`
	Minute    uint8     `json:"minute"`
	Second    uint8     `json:"second"`
}

// Time converts the clock value to a UTC time.Time. DayOfWeek is not consulted.
func (dt DateTime) Time() time.Time {
	return time.Date(int(dt.Year), time.Month(dt.Month), int(dt.Day),
		int(dt.Hour), int(dt.Minute), int(dt.Second), 0, time.UTC)
}

// ISO8601 renders the zero-padded "YYYY-MM-DDTHH:MM:SSZ" form sent to the collector.
func (dt DateTime) ISO8601() string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02dZ",
		dt.Year, dt.Month, dt.Day, dt.Hour, dt.Minute, dt.Second)
}

// DateTimeFromTime builds a clock value from t in UTC, day of week included.
func DateTimeFromTime(t time.Time) DateTime {
	t = t.UTC()
	return DateTime{
		Year:      uint16(t.Year()),
		Month:     uint8(t.Month()),
		Day:       uint8(t.Day()),
		DayOfWeek: DayOfWeek(t.Weekday()),
		Hour:      uint8(t.Hour()),
		Minute:    uint8(t.Minute()),
		Second:    uint8(t.Second()),
	}
}

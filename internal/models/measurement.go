package models

import "time"

// Measurement is one successful temperature/humidity sample.
type Measurement struct {
	Temperature float64 `json:"temperature"` // °C
	Humidity    float64 `json:"humidity"`    // %RH
}

// MeasureRecord is a measurement accepted and stored by the collector.
type MeasureRecord struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	CapteurID   string    `json:"capteur_id"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	ReceivedAt  time.Time `json:"received_at"`
}

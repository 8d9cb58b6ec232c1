package sink

import (
	"context"
	"fmt"

	"capteur/internal/models"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

const influxMeasurement = "measure"

type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Influx writes each measure as one point tagged with the capteur.
type Influx struct {
	client influxdb2.Client
	api    api.WriteAPIBlocking
}

// NewInflux creates the write client. Caller should call Close when done.
func NewInflux(cfg InfluxConfig) *Influx {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Influx{client: client, api: client.WriteAPIBlocking(cfg.Org, cfg.Bucket)}
}

func (w *Influx) Name() string { return "influx" }

// Health checks that InfluxDB is reachable and the token is valid.
func (w *Influx) Health(ctx context.Context) error {
	_, err := w.client.Health(ctx)
	return err
}

func (w *Influx) Write(ctx context.Context, rec models.MeasureRecord) error {
	p := influxdb2.NewPointWithMeasurement(influxMeasurement).
		AddTag("capteur", rec.CapteurID).
		AddField("temperature", rec.Temperature).
		AddField("humidity", rec.Humidity).
		SetTime(rec.Timestamp)
	if err := w.api.WritePoint(ctx, p); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

func (w *Influx) Close() {
	w.client.Close()
}

package sink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"capteur/internal/models"
	"capteur/internal/service"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sony/gobreaker"
)

// ---- Test doubles ----

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type publishCall struct {
	topic   string
	qos     byte
	payload []byte
}

type fakePublisher struct {
	mu           sync.Mutex
	calls        []publishCall
	err          error
	disconnected bool
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, publishCall{topic: topic, qos: qos, payload: payload.([]byte)})
	return newFakeToken(p.err)
}

func (p *fakePublisher) Disconnect(uint) { p.disconnected = true }

type countingSink struct {
	err   error
	calls int
}

func (s *countingSink) Name() string { return "counting" }

func (s *countingSink) Write(ctx context.Context, rec models.MeasureRecord) error {
	s.calls++
	return s.err
}

var rec = models.MeasureRecord{
	ID:          "id-1",
	Timestamp:   time.Date(2024, 11, 14, 20, 15, 30, 0, time.UTC),
	CapteurID:   "capteur-01",
	Temperature: 21.5,
	Humidity:    45.25,
}

// ---- MQTT ----

func TestMQTT_PublishesJSONOnCapteurTopic(t *testing.T) {
	pub := &fakePublisher{}
	m := newMQTT(pub, "")

	if err := m.Write(context.Background(), rec); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(pub.calls) != 1 {
		t.Fatalf("publish calls = %d", len(pub.calls))
	}
	call := pub.calls[0]
	if call.topic != "capteur/capteur-01/measure" || call.qos != mqttQoS {
		t.Fatalf("topic/qos = %q/%d", call.topic, call.qos)
	}
	var got models.MeasureRecord
	if err := json.Unmarshal(call.payload, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.CapteurID != rec.CapteurID || got.Temperature != rec.Temperature {
		t.Fatalf("payload = %+v", got)
	}

	m.Close()
	if !pub.disconnected {
		t.Fatalf("Close did not disconnect")
	}
}

func TestMQTT_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("not connected")}
	if err := newMQTT(pub, "lab").Write(context.Background(), rec); err == nil || !strings.Contains(err.Error(), "not connected") {
		t.Fatalf("err = %v", err)
	}
}

// ---- Influx ----

func TestInflux_WritesLineProtocol(t *testing.T) {
	var (
		mu   sync.Mutex
		body string
		q    string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/write" {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		body, q = string(b), r.URL.RawQuery
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewInflux(InfluxConfig{URL: srv.URL, Token: "tok", Org: "lab", Bucket: "capteur"})
	defer w.Close()

	if err := w.Write(context.Background(), rec); err != nil {
		t.Fatalf("Write: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !strings.HasPrefix(body, "measure,capteur=capteur-01 ") {
		t.Fatalf("line = %q", body)
	}
	for _, want := range []string{"temperature=21.5", "humidity=45.25", "1731615330000000000"} {
		if !strings.Contains(body, want) {
			t.Fatalf("line %q missing %q", body, want)
		}
	}
	if !strings.Contains(q, "bucket=capteur") || !strings.Contains(q, "org=lab") {
		t.Fatalf("query = %q", q)
	}
}

func TestInflux_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"invalid","message":"bad point"}`))
	}))
	defer srv.Close()

	w := NewInflux(InfluxConfig{URL: srv.URL, Token: "tok", Org: "lab", Bucket: "capteur"})
	defer w.Close()

	if err := w.Write(context.Background(), rec); err == nil {
		t.Fatalf("expected error")
	}
}

// ---- Breaker ----

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &countingSink{err: errors.New("down")}
	b := NewBreaker(inner, BreakerSettings{Failures: 2, OpenTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		if err := b.Write(context.Background(), rec); err == nil {
			t.Fatalf("write %d: expected error", i)
		}
	}
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}

	err := b.Write(context.Background(), rec)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("err = %v, want ErrOpenState", err)
	}
	if inner.calls != 2 {
		t.Fatalf("inner calls = %d, want 2", inner.calls)
	}
	if b.Name() != "counting" {
		t.Fatalf("name = %q", b.Name())
	}
}

func TestBreaker_FeedsMeasureService(t *testing.T) {
	inner := &countingSink{}
	sinks := []service.Sink{NewBreaker(inner, BreakerSettings{})}
	if sinks[0].Name() != "counting" {
		t.Fatalf("name = %q", sinks[0].Name())
	}
}

func TestBreaker_PassesThroughWhenHealthy(t *testing.T) {
	inner := &countingSink{}
	b := NewBreaker(inner, BreakerSettings{})
	for i := 0; i < 10; i++ {
		if err := b.Write(context.Background(), rec); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if inner.calls != 10 || b.State() != gobreaker.StateClosed {
		t.Fatalf("calls = %d state = %v", inner.calls, b.State())
	}
}

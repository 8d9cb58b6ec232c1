package sensor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"capteur/internal/models"
)

// ---- Test doubles ----

type blockingSensor struct{}

func (blockingSensor) Read(ctx context.Context) (models.Measurement, error) {
	<-ctx.Done()
	return models.Measurement{}, ctx.Err()
}

type stuckSensor struct{ release chan struct{} }

func (s stuckSensor) Read(ctx context.Context) (models.Measurement, error) {
	<-s.release // ignores ctx, like a wedged bus
	return models.Measurement{Temperature: 1}, nil
}

type fixedSensor struct {
	m   models.Measurement
	err error
}

func (f fixedSensor) Read(ctx context.Context) (models.Measurement, error) { return f.m, f.err }

// ---- Tests ----

func TestWithTimeout_MapsDeadlineToErrTimeout(t *testing.T) {
	s := WithTimeout(blockingSensor{}, 20*time.Millisecond)
	_, err := s.Read(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestWithTimeout_AbandonsSensorIgnoringContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	s := WithTimeout(stuckSensor{release: release}, 20*time.Millisecond)
	start := time.Now()
	_, err := s.Read(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("read was not bounded by the timeout")
	}
}

func TestWithTimeout_PassesThroughResult(t *testing.T) {
	want := models.Measurement{Temperature: 20.5, Humidity: 40.1}
	got, err := WithTimeout(fixedSensor{m: want}, time.Second).Read(context.Background())
	if err != nil || got != want {
		t.Fatalf("got %+v, %v", got, err)
	}

	_, err = WithTimeout(fixedSensor{err: ErrChecksum}, time.Second).Read(context.Background())
	if !errors.Is(err, ErrChecksum) {
		t.Fatalf("expected ErrChecksum, got %v", err)
	}
}

func TestWithTimeout_ParentCancellationIsNotATimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := WithTimeout(blockingSensor{}, time.Second).Read(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSimulated_ReadsWithinPhysicalRange(t *testing.T) {
	s := NewSimulated(SimulatedConfig{Seed: 42, Latency: time.Millisecond})
	for i := 0; i < 20; i++ {
		m, err := s.Read(context.Background())
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if m.Temperature < AmbientC-DailySwingC-1 || m.Temperature > AmbientC+DailySwingC+1 {
			t.Fatalf("temperature out of range: %.2f", m.Temperature)
		}
		if m.Humidity < 0 || m.Humidity > 100 {
			t.Fatalf("humidity out of range: %.2f", m.Humidity)
		}
	}
}

func TestSimulated_FaultInjection(t *testing.T) {
	s := NewSimulated(SimulatedConfig{Seed: 1, FaultRate: 1, Latency: time.Millisecond})
	if _, err := s.Read(context.Background()); !errors.Is(err, ErrChecksum) {
		t.Fatalf("expected ErrChecksum, got %v", err)
	}
}

func TestSimulated_AdvanceRelaxesTowardTarget(t *testing.T) {
	s := NewSimulated(SimulatedConfig{Seed: 1})
	now := time.Date(2024, 11, 14, 15, 0, 0, 0, time.UTC)
	target := dailyTarget(now)
	s.tempC = target + 5

	s.advance(60, now)
	if s.tempC >= target+5 || s.tempC <= target {
		t.Fatalf("expected temperature between target and start, got %.3f (target %.3f)", s.tempC, target)
	}

	before := s.tempC
	s.advance(0, now)
	if s.tempC != before {
		t.Fatalf("zero elapsed must not change state")
	}
}

func TestIIO_Read(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, iioTempFile), "21300\n")
	writeFile(t, filepath.Join(dir, iioHumidityFile), "45600\n")

	m, err := NewIIO(dir).Read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if m.Temperature != 21.3 || m.Humidity != 45.6 {
		t.Fatalf("unexpected measurement %+v", m)
	}
}

func TestIIO_MalformedAndMissing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, iioTempFile), "garbage")

	if _, err := NewIIO(dir).Read(context.Background()); !errors.Is(err, ErrProtocol) {
		t.Fatalf("expected ErrProtocol for malformed value, got %v", err)
	}

	if _, err := NewIIO(t.TempDir()).Read(context.Background()); !errors.Is(err, ErrProtocol) {
		t.Fatalf("expected ErrProtocol for missing device, got %v", err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

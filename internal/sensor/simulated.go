package sensor

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"capteur/internal/models"
)

// ----------- Simulation constants -----------
const (
	AmbientC       = 21.0 // mean indoor temperature °C
	DailySwingC    = 3.0  // half amplitude of the day/night cycle °C
	AmbientRH      = 45.0 // mean relative humidity %
	RHPerDegreeC   = -2.0 // humidity falls as the room warms
	RelaxPerSec    = 0.01 // fraction of the gap to target closed per second
	NoiseC         = 0.05 // per-read temperature noise °C
	NoiseRH        = 0.3  // per-read humidity noise %
	ResolutionC    = 0.1  // AM2301 reports tenths
	ResolutionRH   = 0.1  // AM2301 reports tenths
	defaultLatency = 25 * time.Millisecond
)

// SimulatedConfig tunes the simulated AM2301.
type SimulatedConfig struct {
	FaultRate float64       // probability of a checksum failure per read, 0..1
	Latency   time.Duration // simulated bus transaction time
	Seed      int64         // 0 picks a time-based seed
}

// Simulated is an AM2301-like sensor drifting around a daily cycle.
type Simulated struct {
	mu        sync.Mutex
	rnd       *rand.Rand
	tempC     float64
	rh        float64
	last      time.Time
	faultRate float64
	latency   time.Duration
	now       func() time.Time
}

// NewSimulated returns a simulated sensor starting at ambient conditions.
func NewSimulated(cfg SimulatedConfig) *Simulated {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	latency := cfg.Latency
	if latency <= 0 {
		latency = defaultLatency
	}
	return &Simulated{
		rnd:       rand.New(rand.NewSource(seed)),
		tempC:     AmbientC,
		rh:        AmbientRH,
		faultRate: clamp(cfg.FaultRate, 0, 1),
		latency:   latency,
		now:       time.Now,
	}
}

// Read simulates one bus transaction and returns the current conditions.
func (s *Simulated) Read(ctx context.Context) (models.Measurement, error) {
	t := time.NewTimer(s.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return models.Measurement{}, ctx.Err()
	case <-t.C:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.faultRate > 0 && s.rnd.Float64() < s.faultRate {
		return models.Measurement{}, ErrChecksum
	}

	now := s.now()
	if !s.last.IsZero() {
		s.advance(now.Sub(s.last).Seconds(), now)
	}
	s.last = now

	return models.Measurement{
		Temperature: quantize(s.tempC+s.rnd.NormFloat64()*NoiseC, ResolutionC),
		Humidity:    quantize(clamp(s.rh+s.rnd.NormFloat64()*NoiseRH, 0, 100), ResolutionRH),
	}, nil
}

// advance relaxes temperature and humidity toward the time-of-day target.
func (s *Simulated) advance(elapsed float64, now time.Time) {
	if elapsed <= 0 {
		return
	}
	target := dailyTarget(now)
	k := 1 - math.Exp(-RelaxPerSec*elapsed)
	s.tempC += (target - s.tempC) * k

	targetRH := clamp(AmbientRH+(s.tempC-AmbientC)*RHPerDegreeC, 0, 100)
	s.rh += (targetRH - s.rh) * k
}

// dailyTarget peaks mid-afternoon and bottoms out before dawn.
func dailyTarget(now time.Time) float64 {
	h := float64(now.Hour()) + float64(now.Minute())/60
	return AmbientC + DailySwingC*math.Sin((h-9)/24*2*math.Pi)
}

// helpers
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func quantize(v, step float64) float64 {
	return math.Round(v/step) * step
}

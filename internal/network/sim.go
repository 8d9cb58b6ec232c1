package network

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const (
	simPumpInterval = 10 * time.Millisecond
	// simJoinStatus mimics the firmware's "no matching network" status.
	simJoinStatus = 15
)

// SimConfig tunes the simulated radio and stack.
type SimConfig struct {
	FailJoins   int           // Join fails this many times before succeeding
	JoinLatency time.Duration // time spent in each Join call
	DHCPDelay   time.Duration // time from association to a bound lease
}

// SimRadio is an in-process stand-in for the wireless chip.
type SimRadio struct {
	cfg   SimConfig
	stack *SimStack
	joins atomic.Int32

	mu       sync.Mutex
	powered  bool
	firmware bool
	mode     PowerMode
}

// SimStack is the IP stack paired with a SimRadio.
type SimStack struct {
	mu           sync.Mutex
	dhcpDelay    time.Duration
	associatedAt time.Time
	configUp     bool
	configCh     chan struct{}
	now          func() time.Time
}

// NewSimulated returns a linked radio/stack pair.
func NewSimulated(cfg SimConfig) (*SimRadio, *SimStack) {
	stack := &SimStack{
		dhcpDelay: cfg.DHCPDelay,
		configCh:  make(chan struct{}),
		now:       time.Now,
	}
	return &SimRadio{cfg: cfg, stack: stack}, stack
}

func (r *SimRadio) PowerUp(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.powered = true
	return ctx.Err()
}

func (r *SimRadio) LoadFirmware(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.firmware = r.powered
	return ctx.Err()
}

func (r *SimRadio) Init(ctx context.Context, mode PowerMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = mode
	return ctx.Err()
}

// Join fails FailJoins times, then associates.
func (r *SimRadio) Join(ctx context.Context, ssid, passphrase string) error {
	if r.cfg.JoinLatency > 0 {
		t := time.NewTimer(r.cfg.JoinLatency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	if int(r.joins.Add(1)) <= r.cfg.FailJoins {
		return &JoinError{Status: simJoinStatus}
	}
	r.stack.associate()
	return nil
}

// Joins reports how many times Join was called.
func (r *SimRadio) Joins() int { return int(r.joins.Load()) }

func (r *SimRadio) Run(ctx context.Context) {
	<-ctx.Done()
}

func (s *SimStack) associate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.associatedAt.IsZero() {
		s.associatedAt = s.now()
	}
}

func (s *SimStack) IsConfigUp() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configUp
}

func (s *SimStack) IsLinkUp() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.associatedAt.IsZero()
}

func (s *SimStack) WaitConfigUp(ctx context.Context) error {
	select {
	case <-s.configCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run advances the simulated DHCP exchange.
func (s *SimStack) Run(ctx context.Context) {
	t := time.NewTicker(simPumpInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.poll()
		}
	}
}

func (s *SimStack) poll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.configUp || s.associatedAt.IsZero() {
		return
	}
	if s.now().Sub(s.associatedAt) >= s.dhcpDelay {
		s.configUp = true
		close(s.configCh)
	}
}

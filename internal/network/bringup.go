package network

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"capteur/internal/logger"
	"capteur/internal/mailbox"
	"capteur/internal/metrics"

	"github.com/cenkalti/backoff/v4"
)

// Poll intervals used while waiting on the stack.
const (
	DefaultDHCPPollInterval = 100 * time.Millisecond
	DefaultLinkPollInterval = 500 * time.Millisecond
)

// Config holds the credentials and tuning of the bring-up sequence.
type Config struct {
	SSID             string
	Passphrase       string
	PowerMode        PowerMode
	DHCPPollInterval time.Duration
	LinkPollInterval time.Duration
}

// Bringup drives the radio and stack to a usable state, synchronizes the
// clock once, raises the readiness flag and then becomes the publisher.
type Bringup struct {
	radio     Radio
	stack     Stack
	cfg       Config
	syncer    ClockSyncer
	ready     *mailbox.Mailbox[bool]
	publisher Runner
	log       *logger.Logger

	state atomic.Int32
}

// NewBringup wires the state machine. ready is written exactly once.
func NewBringup(radio Radio, stack Stack, cfg Config, syncer ClockSyncer,
	ready *mailbox.Mailbox[bool], publisher Runner, log *logger.Logger) *Bringup {
	if cfg.DHCPPollInterval <= 0 {
		cfg.DHCPPollInterval = DefaultDHCPPollInterval
	}
	if cfg.LinkPollInterval <= 0 {
		cfg.LinkPollInterval = DefaultLinkPollInterval
	}
	if log == nil {
		log = logger.Nop()
	}
	b := &Bringup{
		radio:     radio,
		stack:     stack,
		cfg:       cfg,
		syncer:    syncer,
		ready:     ready,
		publisher: publisher,
		log:       log,
	}
	b.setState(RadioPowerUp)
	return b
}

// State returns the step the machine is currently in.
func (b *Bringup) State() State {
	return State(b.state.Load())
}

func (b *Bringup) setState(s State) {
	b.state.Store(int32(s))
	metrics.BringupState.Set(float64(s))
	b.log.Debugw("bringup_state", "state", s.String())
}

// Run executes the sequence. It returns a non-nil error only when the radio
// cannot be started, clock sync fails, or ctx is cancelled; otherwise it runs
// the publisher and never returns while ctx is live.
func (b *Bringup) Run(ctx context.Context) error {
	if err := b.radio.PowerUp(ctx); err != nil {
		return fmt.Errorf("radio power up: %w", err)
	}
	if err := b.radio.LoadFirmware(ctx); err != nil {
		return fmt.Errorf("load firmware: %w", err)
	}
	b.setState(FirmwareLoaded)

	go b.radio.Run(ctx)
	if err := b.radio.Init(ctx, b.cfg.PowerMode); err != nil {
		return fmt.Errorf("radio init: %w", err)
	}
	go b.stack.Run(ctx)
	b.setState(DriverRunning)

	if err := b.associate(ctx); err != nil {
		return err
	}
	b.setState(Associated)

	b.log.Infow("waiting for DHCP...")
	if err := pollUntil(ctx, b.cfg.DHCPPollInterval, b.stack.IsConfigUp); err != nil {
		return err
	}
	b.log.Infow("DHCP is now up!")
	b.setState(DhcpBound)

	b.log.Infow("waiting for link up...")
	if err := pollUntil(ctx, b.cfg.LinkPollInterval, b.stack.IsLinkUp); err != nil {
		return err
	}
	b.log.Infow("Link is up!")
	b.setState(LinkUp)

	b.log.Infow("waiting for stack to be up...")
	if err := b.stack.WaitConfigUp(ctx); err != nil {
		return fmt.Errorf("wait stack: %w", err)
	}
	b.log.Infow("Stack is up!")
	b.setState(StackReady)

	if err := b.syncer.Sync(ctx); err != nil {
		b.setState(Aborted)
		b.log.Errorw("rtc_init_failed", "err", err)
		return fmt.Errorf("clock sync: %w", err)
	}
	b.log.Infow("RTC successfully initialized.")
	b.setState(ClockSynced)

	b.ready.Signal(true)
	b.setState(Ready)

	b.publisher.Run(ctx)
	return ctx.Err()
}

// associate retries Join immediately and without bound until it succeeds.
func (b *Bringup) associate(ctx context.Context) error {
	attempt := 0
	op := func() error {
		attempt++
		metrics.AssociationAttemptsTotal.Inc()
		return b.radio.Join(ctx, b.cfg.SSID, b.cfg.Passphrase)
	}
	notify := func(err error, _ time.Duration) {
		var je *JoinError
		if errors.As(err, &je) {
			b.log.Infow("join failed", "status", je.Status, "attempt", attempt)
			return
		}
		b.log.Infow("join failed", "err", err, "attempt", attempt)
	}

	policy := backoff.WithContext(&backoff.ZeroBackOff{}, ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return fmt.Errorf("associate %q: %w", b.cfg.SSID, err)
	}
	b.log.Infow("joined network", "ssid", b.cfg.SSID, "attempts", attempt)
	return nil
}

// pollUntil checks pred every interval until it holds.
func pollUntil(ctx context.Context, interval time.Duration, pred func() bool) error {
	if pred() {
		return nil
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if pred() {
				return nil
			}
		}
	}
}

// Package node wires the sensing node: the measurement loop, the network
// bring-up, the clock synchronization and the publisher.
package node

import (
	"context"
	"errors"
	"sync"

	"capteur/internal/logger"
	"capteur/internal/mailbox"
	"capteur/internal/models"
	"capteur/internal/network"
	"capteur/internal/rtc"
	"capteur/internal/sensor"
)

// API is the collector as seen by the node.
type API interface {
	Fetcher
	Poster
}

type Config struct {
	DeviceID      string
	Network       network.Config
	Measure       MeasureConfig
	BodyCapacity  int
	StrictWeekday bool
}

// Deps are the drivers the node runs on.
type Deps struct {
	Sensor sensor.Sensor
	Radio  network.Radio
	Stack  network.Stack
	Clock  rtc.Clock
	API    API
}

// Node owns the two long-running tasks and the mailboxes between them.
type Node struct {
	Measures *mailbox.Mailbox[models.Measurement]
	Ready    *mailbox.Mailbox[bool]

	measure *MeasureLoop
	bringup *network.Bringup
	log     *logger.Logger
}

func New(deps Deps, cfg Config, log *logger.Logger) *Node {
	if log == nil {
		log = logger.Nop()
	}
	measures := mailbox.New[models.Measurement]()
	ready := mailbox.New[bool]()

	clockSync := NewClockSync(deps.API, deps.Clock, cfg.StrictWeekday, log.Named("clock"))
	pub := NewPublisher(deps.Clock, measures, deps.API, PublisherConfig{
		DeviceID:     cfg.DeviceID,
		BodyCapacity: cfg.BodyCapacity,
	}, log.Named("publisher"))

	return &Node{
		Measures: measures,
		Ready:    ready,
		measure:  NewMeasureLoop(deps.Sensor, measures, ready, cfg.Measure, log.Named("measure")),
		bringup:  network.NewBringup(deps.Radio, deps.Stack, cfg.Network, clockSync, ready, pub, log.Named("network")),
		log:      log,
	}
}

// State reports the bring-up progress.
func (n *Node) State() network.State { return n.bringup.State() }

// Run starts both tasks and blocks until ctx is done. If bring-up aborts the
// measurement loop stays gated and Run keeps waiting; the abort error is
// returned on shutdown.
func (n *Node) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		n.measure.Run(ctx)
	}()

	err := n.bringup.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		n.log.Errorw("network task stopped", "state", n.bringup.State().String(), "err", err)
	}
	<-ctx.Done()
	wg.Wait()

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

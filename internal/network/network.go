// Package network brings the node's wireless link up and hands over to telemetry.
package network

import (
	"context"
	"fmt"
)

// PowerMode selects the radio power management profile.
type PowerMode int

const (
	PowerSave PowerMode = iota
	Performance
	PowerNone
)

func (m PowerMode) String() string {
	switch m {
	case PowerSave:
		return "powersave"
	case Performance:
		return "performance"
	case PowerNone:
		return "none"
	default:
		return fmt.Sprintf("PowerMode(%d)", int(m))
	}
}

// ParsePowerMode maps a configuration string to a PowerMode; unknown values mean PowerSave.
func ParsePowerMode(s string) PowerMode {
	switch s {
	case "performance":
		return Performance
	case "none":
		return PowerNone
	default:
		return PowerSave
	}
}

// Radio is the wireless chip driver.
type Radio interface {
	// PowerUp energizes the chip and opens its bus.
	PowerUp(ctx context.Context) error
	// LoadFirmware uploads the chip firmware.
	LoadFirmware(ctx context.Context) error
	// Init uploads the regulatory data and applies the power mode. Needs Run.
	Init(ctx context.Context, mode PowerMode) error
	// Join associates with a WPA2 network.
	Join(ctx context.Context, ssid, passphrase string) error
	// Run pumps the driver I/O until ctx is done.
	Run(ctx context.Context)
}

// Stack is the IP stack bound to the radio.
type Stack interface {
	IsConfigUp() bool
	IsLinkUp() bool
	WaitConfigUp(ctx context.Context) error
	// Run pumps the stack I/O until ctx is done.
	Run(ctx context.Context)
}

// ClockSyncer performs the one-shot clock synchronization.
type ClockSyncer interface {
	Sync(ctx context.Context) error
}

// Runner is a task that runs until ctx is done.
type Runner interface {
	Run(ctx context.Context)
}

// JoinError is an association failure reported by the radio.
type JoinError struct {
	Status uint32
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("join failed with status=%d", e.Status)
}

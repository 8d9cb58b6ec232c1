package network

import "fmt"

// State is a bring-up step. States are entered in declaration order.
type State int32

const (
	RadioPowerUp State = iota
	FirmwareLoaded
	DriverRunning
	Associated
	DhcpBound
	LinkUp
	StackReady
	ClockSynced
	Ready
	// Aborted is terminal: clock sync failed and telemetry stays disabled.
	Aborted
)

var stateNames = [...]string{
	RadioPowerUp:   "RadioPowerUp",
	FirmwareLoaded: "FirmwareLoaded",
	DriverRunning:  "DriverRunning",
	Associated:     "Associated",
	DhcpBound:      "DhcpBound",
	LinkUp:         "LinkUp",
	StackReady:     "StackReady",
	ClockSynced:    "ClockSynced",
	Ready:          "Ready",
	Aborted:        "Aborted",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

package network

import (
	"context"
	"net"
	"time"
)

const hostPollInterval = 250 * time.Millisecond

// HostRadio is used when the operating system owns the wireless interface.
// Every step succeeds; association is whatever the OS has already done.
type HostRadio struct{}

func (HostRadio) PowerUp(ctx context.Context) error           { return ctx.Err() }
func (HostRadio) LoadFirmware(ctx context.Context) error      { return ctx.Err() }
func (HostRadio) Init(ctx context.Context, _ PowerMode) error { return ctx.Err() }
func (HostRadio) Join(ctx context.Context, _, _ string) error { return ctx.Err() }
func (HostRadio) Run(ctx context.Context)                     { <-ctx.Done() }

// HostStack reports link and address state of an OS network interface.
type HostStack struct {
	// Interface restricts the checks to one interface name; empty means any
	// non-loopback interface.
	Interface string

	interfaces func() ([]net.Interface, error)
	addrs      func(net.Interface) ([]net.Addr, error)
}

// NewHostStack returns a stack backed by the OS interface table.
func NewHostStack(iface string) *HostStack {
	return &HostStack{
		Interface:  iface,
		interfaces: net.Interfaces,
		addrs:      func(i net.Interface) ([]net.Addr, error) { return i.Addrs() },
	}
}

// IsLinkUp reports whether a candidate interface is administratively up and running.
func (s *HostStack) IsLinkUp() bool {
	for _, i := range s.candidates() {
		if i.Flags&net.FlagUp != 0 && i.Flags&net.FlagRunning != 0 {
			return true
		}
	}
	return false
}

// IsConfigUp reports whether an up candidate interface holds a unicast IPv4 address.
func (s *HostStack) IsConfigUp() bool {
	for _, i := range s.candidates() {
		if i.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := s.addrs(i)
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if ok && ipnet.IP.To4() != nil && ipnet.IP.IsGlobalUnicast() {
				return true
			}
		}
	}
	return false
}

func (s *HostStack) WaitConfigUp(ctx context.Context) error {
	return pollUntil(ctx, hostPollInterval, s.IsConfigUp)
}

func (s *HostStack) Run(ctx context.Context) { <-ctx.Done() }

func (s *HostStack) candidates() []net.Interface {
	all, err := s.interfaces()
	if err != nil {
		return nil
	}
	out := make([]net.Interface, 0, len(all))
	for _, i := range all {
		if i.Flags&net.FlagLoopback != 0 {
			continue
		}
		if s.Interface != "" && i.Name != s.Interface {
			continue
		}
		out = append(out, i)
	}
	return out
}

// Package resident lets a second a9i process hand a trigger to the daemon
// that is already running, over a line protocol on TCP loopback.
//
//	client: PING              server: PONG
//	client: TRIGGER <mode>    server: ACCEPTED | BUSY | ERROR\n<message>
package resident

import (
	"context"
	"errors"

	"a9i/src/messages"
)

const (
	DefaultPortStart = 49500
	DefaultPortEnd   = 49550

	residentHost = "127.0.0.1"
	pingRequest  = "PING\n"
	pongResponse = "PONG\n"
	triggerVerb  = "TRIGGER"

	statusAccepted = "ACCEPTED\n"
	statusBusy     = "BUSY\n"
	statusError    = "ERROR\n"
)

// ErrBusy is returned by Client.Trigger when the daemon rejected the trigger
// because a session is already in flight.
var ErrBusy = errors.New("a lookup is already in progress")

// PortRange is an inclusive loopback port range. The server binds Start;
// clients scan the whole range.
type PortRange struct {
	Start int
	End   int
}

// Normalize clamps the range to [1024, 65535] and orders it, falling back
// to the defaults for zero values.
func (r PortRange) Normalize() PortRange {
	if r.Start == 0 {
		r.Start = DefaultPortStart
	}
	if r.End == 0 {
		r.End = DefaultPortEnd
	}
	if r.Start < 1024 {
		r.Start = 1024
	}
	if r.End > 65535 {
		r.End = 65535
	}
	if r.End < r.Start {
		r.Start, r.End = r.End, r.Start
	}
	return r
}

// Server owns the TCP endpoint and hands trigger requests to the event loop.
type Server interface {
	// Start binds the first port of the range; failure means another daemon owns it.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next trigger request, or ctx error.
	Next(ctx context.Context) (Conn, error)
	Close() error
}

// Conn is one pending trigger request.
type Conn interface {
	Mode() messages.Mode
	RespondAccepted() error
	RespondBusy() error
	RespondError(msg string) error
	Close() error
}

// Client delegates a trigger to a resident daemon.
type Client interface {
	// Trigger returns delegated=false, err=nil when no daemon answered.
	Trigger(ctx context.Context, mode messages.Mode) (delegated bool, err error)
}

func NewServer(ports PortRange) Server { return newTCPServer(ports.Normalize()) }

func NewClient(ports PortRange) Client { return &tcpClient{ports: ports.Normalize()} }

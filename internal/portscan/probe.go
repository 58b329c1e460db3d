package portscan

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"
)

// State classifies the outcome of a single port probe.
type State string

const (
	StateOpen     State = "open"
	StateClosed   State = "closed"
	StateFiltered State = "filtered"
	StateError    State = "error"
)

// Cause tags the failure mode of an Error outcome.
type Cause string

const (
	CauseNone    Cause = ""
	CauseTimeout Cause = "timeout"
	CauseRefused Cause = "refused"
	CauseSocket  Cause = "socket"
)

// Outcome is the classified result of probing one port. Closed, filtered,
// and errored outcomes are data, never control flow: they are recorded and
// the scan continues.
type Outcome struct {
	Port  int
	State State
	Cause Cause
	Err   error
}

// Prober performs one bounded-timeout TCP connect attempt against a single
// port and classifies the result. Implementations must release the socket
// on every exit path.
type Prober interface {
	Probe(ctx context.Context, ip string, port int, timeout time.Duration) Outcome
}

// dialFunc abstracts the TCP dial so probes can run against stub
// connections in tests.
type dialFunc func(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error)

func netDial(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	dialer := net.Dialer{Timeout: timeout}
	return dialer.DialContext(ctx, "tcp", addr)
}

// ConnectProber is the default Prober, performing a full TCP handshake
// (connect scan). A successful connection is closed immediately; no payload
// is ever sent. The zero value dials real sockets.
type ConnectProber struct {
	dial dialFunc
}

// Probe dials ip:port with the given timeout and classifies the outcome:
// success is open, ECONNREFUSED is closed, a timeout is filtered (likely
// firewalled), and anything else is a non-fatal error tagged with its cause.
func (p ConnectProber) Probe(ctx context.Context, ip string, port int, timeout time.Duration) Outcome {
	dial := p.dial
	if dial == nil {
		dial = netDial
	}
	addr := net.JoinHostPort(ip, fmt.Sprintf("%d", port))

	conn, err := dial(ctx, addr, timeout)
	if err == nil {
		_ = conn.Close()
		return Outcome{Port: port, State: StateOpen}
	}
	return classifyDialError(port, err)
}

// classifyDialError maps a dial failure onto the probe state taxonomy.
func classifyDialError(port int, err error) Outcome {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Outcome{Port: port, State: StateFiltered, Cause: CauseTimeout, Err: err}
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return Outcome{Port: port, State: StateClosed, Cause: CauseRefused, Err: err}
	}
	return Outcome{Port: port, State: StateError, Cause: CauseSocket, Err: err}
}

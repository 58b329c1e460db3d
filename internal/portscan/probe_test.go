package portscan

import (
	"context"
	"errors"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassifyDialError(t *testing.T) {
	t.Run("timeout classifies as filtered", func(t *testing.T) {
		outcome := classifyDialError(443, &net.OpError{Err: timeoutError{}})
		assert.Equal(t, StateFiltered, outcome.State)
		assert.Equal(t, CauseTimeout, outcome.Cause)
		assert.Equal(t, 443, outcome.Port)
	})

	t.Run("connection refused classifies as closed", func(t *testing.T) {
		outcome := classifyDialError(80, &net.OpError{Err: syscall.ECONNREFUSED})
		assert.Equal(t, StateClosed, outcome.State)
		assert.Equal(t, CauseRefused, outcome.Cause)
	})

	t.Run("wrapped syscall error still classifies as closed", func(t *testing.T) {
		err := &net.OpError{Err: &net.OpError{Err: syscall.ECONNREFUSED}}
		outcome := classifyDialError(80, err)
		assert.Equal(t, StateClosed, outcome.State)
	})

	t.Run("canceled dial classifies as socket error", func(t *testing.T) {
		outcome := classifyDialError(22, context.Canceled)
		assert.Equal(t, StateError, outcome.State)
		assert.Equal(t, CauseSocket, outcome.Cause)
	})

	t.Run("generic failure classifies as socket error", func(t *testing.T) {
		outcome := classifyDialError(25, errors.New("no route to host"))
		assert.Equal(t, StateError, outcome.State)
		assert.Equal(t, CauseSocket, outcome.Cause)
		assert.Error(t, outcome.Err)
	})
}

func TestConnectProber(t *testing.T) {
	t.Run("listening port classifies as open", func(t *testing.T) {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer listener.Close()

		go func() {
			conn, acceptErr := listener.Accept()
			if acceptErr == nil {
				_ = conn.Close()
			}
		}()

		addr := listener.Addr().(*net.TCPAddr)
		outcome := ConnectProber{}.Probe(context.Background(), "127.0.0.1", addr.Port, time.Second)
		assert.Equal(t, StateOpen, outcome.State)
		assert.Equal(t, addr.Port, outcome.Port)
	})

	t.Run("unbound port classifies as closed", func(t *testing.T) {
		// Bind and release a port so nothing is listening on it.
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		port := listener.Addr().(*net.TCPAddr).Port
		require.NoError(t, listener.Close())

		outcome := ConnectProber{}.Probe(context.Background(), "127.0.0.1", port, time.Second)
		assert.Equal(t, StateClosed, outcome.State)
	})
}

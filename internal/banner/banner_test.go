package banner

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reconerrors "github.com/recondor/recondor/internal/errors"
)

func TestIdentifyService(t *testing.T) {
	cases := []struct {
		name   string
		banner string
		port   int
		want   string
	}{
		{"openssh banner", "SSH-2.0-OpenSSH_9.6p1 Ubuntu-3ubuntu13", 22, "OpenSSH"},
		{"generic ssh banner", "SSH-2.0-dropbear_2022.83", 22, "SSH Server"},
		{"apache server header", "HTTP/1.1 200 OK\r\nServer: Apache/2.4.58", 80, "Apache HTTP Server"},
		{"nginx server header", "HTTP/1.1 200 OK\r\nServer: nginx/1.25.3", 443, "Nginx"},
		{"iis server header", "HTTP/1.1 200 OK\r\nServer: Microsoft-IIS/10.0", 80, "Microsoft IIS"},
		{"vsftpd greeting", "220 (vsFTPd 3.0.5)", 21, "vsftpd"},
		{"proftpd greeting", "220 ProFTPD Server ready", 21, "ProFTPD"},
		{"postfix greeting", "220 mail.example.com ESMTP Postfix", 25, "Postfix"},
		{"mysql handshake", "5.7.44-MySQL Community Server", 3306, "MySQL"},
		{"postgres error", "FATAL: unsupported frontend protocol, PostgreSQL", 5432, "PostgreSQL"},
		{"redis reply", "-ERR unknown command, redis", 6379, "Redis"},
		{"opaque banner with port hint", "\x00\x01\x02", 110, "POP3"},
		{"opaque banner without hint", "garbage", 9999, "Unknown"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, identifyService(tc.banner, tc.port))
		})
	}
}

// startBannerListener serves a fixed greeting on an ephemeral port.
func startBannerListener(t *testing.T, greeting string) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		for {
			conn, acceptErr := listener.Accept()
			if acceptErr != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				if greeting != "" {
					_, _ = c.Write([]byte(greeting))
				}
				// Hold the connection open so reads time out
				// instead of erroring.
				time.Sleep(200 * time.Millisecond)
			}(conn)
		}
	}()

	return listener.Addr().(*net.TCPAddr).Port
}

func newTestGrabber() *Grabber {
	g := NewGrabber()
	g.resolve = func(target string) (string, error) {
		return "127.0.0.1", nil
	}
	return g
}

func TestGrabberRun(t *testing.T) {
	t.Run("collects banner from announcing service", func(t *testing.T) {
		port := startBannerListener(t, "SSH-2.0-OpenSSH_9.6\r\n")
		grabber := newTestGrabber()

		result, err := grabber.Run(context.Background(), "target.local", Config{
			Ports:   []int{port},
			Timeout: 300 * time.Millisecond,
		})
		require.NoError(t, err)

		require.Len(t, result.Banners, 1)
		assert.Equal(t, port, result.Banners[0].Port)
		assert.Equal(t, "SSH-2.0-OpenSSH_9.6", result.Banners[0].Banner)
		assert.Equal(t, "OpenSSH", result.Banners[0].Service)
		assert.Equal(t, "target.local", result.Target)
		assert.Equal(t, "127.0.0.1", result.ResolvedIP)
		assert.NotEmpty(t, result.ScanTime)
	})

	t.Run("closed port omitted silently", func(t *testing.T) {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		closedPort := listener.Addr().(*net.TCPAddr).Port
		require.NoError(t, listener.Close())

		grabber := newTestGrabber()
		result, err := grabber.Run(context.Background(), "target.local", Config{
			Ports:   []int{closedPort},
			Timeout: 300 * time.Millisecond,
		})
		require.NoError(t, err)
		assert.Empty(t, result.Banners)
	})

	t.Run("banners sorted by port", func(t *testing.T) {
		p1 := startBannerListener(t, "220 (vsFTPd 3.0.5)\r\n")
		p2 := startBannerListener(t, "SSH-2.0-OpenSSH_9.6\r\n")
		ports := []int{p1, p2}
		if p1 < p2 {
			ports = []int{p2, p1}
		}

		grabber := newTestGrabber()
		result, err := grabber.Run(context.Background(), "target.local", Config{
			Ports:   ports,
			Timeout: 300 * time.Millisecond,
		})
		require.NoError(t, err)

		require.Len(t, result.Banners, 2)
		assert.Less(t, result.Banners[0].Port, result.Banners[1].Port)
	})

	t.Run("long banner truncated", func(t *testing.T) {
		long := strings.Repeat("A", 900)
		port := startBannerListener(t, long)

		grabber := newTestGrabber()
		result, err := grabber.Run(context.Background(), "target.local", Config{
			Ports:   []int{port},
			Timeout: 300 * time.Millisecond,
		})
		require.NoError(t, err)

		require.Len(t, result.Banners, 1)
		assert.Len(t, result.Banners[0].Banner, maxBannerBytes)
	})

	t.Run("resolution failure is fatal", func(t *testing.T) {
		grabber := NewGrabber()
		grabber.resolve = func(target string) (string, error) {
			return "", reconerrors.ErrResolution(target, errors.New("no such host"))
		}

		result, err := grabber.Run(context.Background(), "nonexistent.invalid", Config{
			Ports: []int{80},
		})
		require.Error(t, err)
		assert.Nil(t, result)
		assert.True(t, reconerrors.IsCode(err, reconerrors.CodeResolution))
	})

	t.Run("invalid configuration rejected", func(t *testing.T) {
		grabber := newTestGrabber()

		_, err := grabber.Run(context.Background(), "target.local", Config{
			Ports:   []int{80},
			Workers: -5,
		})
		require.Error(t, err)
		assert.True(t, reconerrors.IsCode(err, reconerrors.CodeValidation))
	})

	t.Run("defaults applied when config is zero", func(t *testing.T) {
		cfg := Config{}.withDefaults()
		assert.Equal(t, DefaultTimeout, cfg.Timeout)
		assert.Equal(t, DefaultWorkers, cfg.Workers)
		assert.Equal(t, DefaultPorts, cfg.Ports)
	})
}

func TestGrabberHTTPFallback(t *testing.T) {
	// A silent HTTP server: sends nothing on connect, answers HEAD.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		for {
			conn, acceptErr := listener.Accept()
			if acceptErr != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				buf := make([]byte, 1024)
				n, readErr := c.Read(buf)
				if readErr != nil || n == 0 {
					return
				}
				if strings.HasPrefix(string(buf[:n]), "HEAD ") {
					_, _ = c.Write([]byte("HTTP/1.1 200 OK\r\nServer: nginx/1.25.3\r\n\r\n"))
				}
				time.Sleep(200 * time.Millisecond)
			}(conn)
		}
	}()

	grabber := newTestGrabber()
	// Route the HTTP probe at the test listener's port.
	grabber.dial = func(ctx context.Context, _ string, timeout time.Duration) (net.Conn, error) {
		d := net.Dialer{Timeout: timeout}
		return d.DialContext(ctx, "tcp", listener.Addr().String())
	}

	result, err := grabber.Run(context.Background(), "target.local", Config{
		Ports:   []int{80},
		Timeout: 300 * time.Millisecond,
	})
	require.NoError(t, err)

	require.Len(t, result.Banners, 1)
	assert.Equal(t, 80, result.Banners[0].Port)
	assert.Contains(t, result.Banners[0].Banner, "nginx")
	assert.Equal(t, "Nginx", result.Banners[0].Service)
}

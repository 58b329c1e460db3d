// Package banner grabs service banners from open TCP ports and makes a
// best-effort identification of the listening service from the banner
// text. Every per-port failure is silent: a port that yields no banner
// is simply absent from the result.
package banner

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/recondor/recondor/internal/errors"
	"github.com/recondor/recondor/internal/logging"
	"github.com/recondor/recondor/internal/metrics"
	"github.com/recondor/recondor/internal/portscan"
)

const (
	// DefaultTimeout bounds the connect and each read attempt per port.
	DefaultTimeout = 3 * time.Second
	// DefaultWorkers is the concurrency bound for banner grabbing.
	DefaultWorkers = 10

	maxBannerBytes = 500
	readChunkBytes = 1024

	scanTimeLayout = "2006-01-02 15:04:05"
)

// DefaultPorts lists the ports worth grabbing banners from when the
// caller does not supply a set.
var DefaultPorts = []int{21, 22, 25, 80, 110, 143, 443, 3306, 5432, 6379, 8080}

// httpPorts get a HEAD request when the service does not volunteer a
// banner on connect.
var httpPorts = map[int]bool{80: true, 443: true, 8080: true, 8443: true}

// Banner is one grabbed banner with the service identified from it.
type Banner struct {
	Port    int    `json:"port"`
	Banner  string `json:"banner"`
	Service string `json:"service"`
}

// Result holds the banners grabbed from a single target.
type Result struct {
	Target     string   `json:"target"`
	ResolvedIP string   `json:"resolved_ip"`
	Banners    []Banner `json:"banners"`
	ScanTime   string   `json:"scan_time"`
}

// Report is the serialization envelope for a banner-grab result.
type Report struct {
	BannerGrab *Result `json:"banner_grab"`
}

// Report wraps the result in its serialization envelope.
func (r *Result) Report() *Report {
	return &Report{BannerGrab: r}
}

// Config controls a banner-grabbing run.
type Config struct {
	Ports   []int
	Timeout time.Duration
	Workers int
}

func (c Config) withDefaults() Config {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if len(c.Ports) == 0 {
		c.Ports = append([]int(nil), DefaultPorts...)
	}
	return c
}

func (c Config) validate() error {
	if c.Timeout < 0 {
		return errors.NewConfigFieldError(errors.CodeValidation,
			"timeout must be positive", "timeout", c.Timeout)
	}
	if c.Workers < 1 {
		return errors.NewConfigFieldError(errors.CodeValidation,
			"workers must be at least 1", "workers", c.Workers)
	}
	return nil
}

type dialFunc func(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error)

// Grabber performs banner grabbing against a target.
type Grabber struct {
	dial    dialFunc
	resolve func(target string) (string, error)
}

// NewGrabber creates a grabber using the real dialer and resolver.
func NewGrabber() *Grabber {
	return &Grabber{
		dial: func(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
			d := net.Dialer{Timeout: timeout}
			return d.DialContext(ctx, "tcp", addr)
		},
		resolve: portscan.ResolveTarget,
	}
}

// Run resolves the target and grabs banners from the configured ports.
// Ports that refuse, time out, or stay silent are omitted; resolution
// failure and cancellation are the only errors.
func (g *Grabber) Run(ctx context.Context, target string, cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	ip, err := g.resolve(target)
	if err != nil {
		return nil, err
	}

	logger := logging.WithComponent("banner").WithTarget(target)
	logger.Info("Starting banner grab",
		"resolved_ip", ip,
		"ports", len(cfg.Ports),
		"workers", cfg.Workers)

	timer := metrics.NewTimer(metrics.MetricScanDuration, metrics.Labels{
		metrics.LabelScanType: "banner_grab",
		metrics.LabelTarget:   target,
	})
	start := time.Now()
	banners := g.runPool(ctx, ip, cfg)

	if err := ctx.Err(); err != nil {
		return nil, errors.ErrScanCanceled(target, err)
	}

	sort.Slice(banners, func(i, j int) bool { return banners[i].Port < banners[j].Port })

	for _, b := range banners {
		metrics.IncrementBannersGrabbed(b.Service)
	}

	result := &Result{
		Target:     target,
		ResolvedIP: ip,
		Banners:    banners,
		ScanTime:   time.Now().Format(scanTimeLayout),
	}

	metrics.RecordBannerDuration(target, timer.Stop())
	logging.InfoBanner("Banner grab completed", target,
		"banners", len(banners),
		"duration", time.Since(start))

	return result, nil
}

// runPool drains the port list through a bounded worker pool. The same
// shape as the port scanner's pool, with nil results dropped at the
// collector.
func (g *Grabber) runPool(ctx context.Context, ip string, cfg Config) []Banner {
	jobs := make(chan int, len(cfg.Ports))
	for _, port := range cfg.Ports {
		jobs <- port
	}
	close(jobs)

	results := make(chan *Banner, len(cfg.Ports))

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for port := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				results <- g.grab(ctx, ip, port, cfg.Timeout)
			}
		}()
	}

	var banners []Banner
	done := make(chan struct{})
	go func() {
		defer close(done)
		for b := range results {
			if b != nil {
				banners = append(banners, *b)
			}
		}
	}()

	wg.Wait()
	close(results)
	<-done

	return banners
}

// grab connects to one port and tries, in order: a passive read for
// services that announce themselves, a HEAD request on HTTP-ish ports,
// and a CRLF nudge. Returns nil when nothing was received.
func (g *Grabber) grab(ctx context.Context, ip string, port int, timeout time.Duration) *Banner {
	addr := net.JoinHostPort(ip, fmt.Sprintf("%d", port))
	conn, err := g.dial(ctx, addr, timeout)
	if err != nil {
		return nil
	}
	defer conn.Close()

	text := readBanner(conn, timeout)

	if text == "" && httpPorts[port] {
		request := fmt.Sprintf("HEAD / HTTP/1.1\r\nHost: %s\r\n\r\n", ip)
		if _, err := conn.Write([]byte(request)); err == nil {
			text = readBanner(conn, timeout)
		}
	}

	if text == "" {
		if _, err := conn.Write([]byte("\r\n")); err == nil {
			text = readBanner(conn, timeout)
		}
	}

	if text == "" {
		return nil
	}

	if len(text) > maxBannerBytes {
		text = text[:maxBannerBytes]
	}

	return &Banner{
		Port:    port,
		Banner:  text,
		Service: identifyService(text, port),
	}
}

// readBanner reads whatever the peer sends within the timeout. A timeout
// or read error yields an empty string.
func readBanner(conn net.Conn, timeout time.Duration) string {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return ""
	}
	buf := make([]byte, readChunkBytes)
	n, _ := conn.Read(buf)
	if n == 0 {
		return ""
	}
	return strings.TrimSpace(string(buf[:n]))
}

// portHints names the likely service when the banner itself gives
// nothing away.
var portHints = map[int]string{
	21:   "FTP",
	22:   "SSH",
	25:   "SMTP",
	80:   "HTTP",
	110:  "POP3",
	143:  "IMAP",
	443:  "HTTPS",
	3306: "MySQL",
	5432: "PostgreSQL",
	6379: "Redis",
	8080: "HTTP-Proxy",
}

// identifyService maps banner content to a service name, falling back to
// a port-number hint.
func identifyService(banner string, port int) string {
	b := strings.ToLower(banner)

	switch {
	// Web servers
	case strings.Contains(b, "apache"):
		return "Apache HTTP Server"
	case strings.Contains(b, "nginx"):
		return "Nginx"
	case strings.Contains(b, "iis"):
		return "Microsoft IIS"
	case strings.Contains(b, "lighttpd"):
		return "lighttpd"

	// SSH
	case strings.Contains(b, "openssh"):
		return "OpenSSH"
	case strings.Contains(b, "ssh"):
		return "SSH Server"

	// FTP
	case strings.Contains(b, "vsftpd"):
		return "vsftpd"
	case strings.Contains(b, "proftpd"):
		return "ProFTPD"
	case strings.Contains(b, "ftp"):
		return "FTP Server"

	// Mail
	case strings.Contains(b, "postfix"):
		return "Postfix"
	case strings.Contains(b, "exim"):
		return "Exim"
	case strings.Contains(b, "smtp"), strings.Contains(b, "mail"):
		return "Mail Server"

	// Databases
	case strings.Contains(b, "mysql"):
		return "MySQL"
	case strings.Contains(b, "postgres"):
		return "PostgreSQL"
	case strings.Contains(b, "redis"):
		return "Redis"
	case strings.Contains(b, "mongo"):
		return "MongoDB"
	}

	if hint, ok := portHints[port]; ok {
		return hint
	}
	return "Unknown"
}

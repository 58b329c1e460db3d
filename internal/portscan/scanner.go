package portscan

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/recondor/recondor/internal/errors"
	"github.com/recondor/recondor/internal/logging"
	"github.com/recondor/recondor/internal/metrics"
)

const (
	// ScanTypeConnect identifies the full-handshake TCP connect scan.
	ScanTypeConnect = "tcp_connect"

	// DefaultTimeout bounds a single connect attempt.
	DefaultTimeout = 1500 * time.Millisecond

	// DefaultWorkers caps concurrent probes.
	DefaultWorkers = 50

	scanTimeLayout = "2006-01-02 15:04:05"
)

// Config holds the tunables for one scan invocation.
type Config struct {
	// Timeout bounds each individual connect attempt. Defaults to
	// DefaultTimeout when zero.
	Timeout time.Duration

	// Workers caps the number of probes in flight. Defaults to
	// DefaultWorkers when zero.
	Workers int

	// Ports is the normalized port list to probe. Defaults to
	// DefaultPorts when empty. Use ParsePorts to build it from a
	// specification string.
	Ports []int

	// OnOutcome, when set, is invoked serially from the collector as
	// each probe completes. Completion order is non-deterministic;
	// the hook never affects the sorted final result.
	OnOutcome func(Outcome)
}

func (c Config) withDefaults() Config {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if len(c.Ports) == 0 {
		c.Ports = make([]int, len(DefaultPorts))
		copy(c.Ports, DefaultPorts)
	}
	return c
}

func (c Config) validate() error {
	if c.Timeout <= 0 {
		return errors.NewConfigFieldError(errors.CodeValidation,
			"probe timeout must be positive", "timeout", c.Timeout)
	}
	if c.Workers < 1 {
		return errors.NewConfigFieldError(errors.CodeValidation,
			"worker count must be at least 1", "workers", c.Workers)
	}
	return nil
}

// PortResult describes one open port in the final result.
type PortResult struct {
	Port    int    `json:"port"`
	Service string `json:"service"`
}

// Stats summarizes probe outcomes by classified state.
type Stats struct {
	Open     int
	Closed   int
	Filtered int
	Errors   int
}

// Result is the immutable outcome of one scan invocation. It is owned
// exclusively by the caller; no shared mutable state survives the call.
type Result struct {
	Target     string       `json:"target"`
	ResolvedIP string       `json:"resolved_ip"`
	ScanType   string       `json:"scan_type"`
	OpenPorts  []PortResult `json:"open_ports"`
	ScanTime   string       `json:"scan_time"`

	// Stats carries per-state counts for callers that want to surface
	// closed/filtered totals. Not part of the serialized report shape.
	Stats Stats `json:"-"`
}

// Report wraps a Result in the interchange envelope consumed by the
// report writers and the API.
type Report struct {
	PortScan *Result `json:"port_scan"`
}

// Report returns the result wrapped in its serialization envelope.
func (r *Result) Report() Report {
	return Report{PortScan: r}
}

// Scanner drives probes over a bounded worker pool. The zero value is not
// usable; construct with NewScanner.
type Scanner struct {
	prober Prober
	lookup func(string) ([]net.IP, error)
}

// NewScanner creates a scanner backed by the default connect prober and
// the system resolver.
func NewScanner() *Scanner {
	return &Scanner{
		prober: ConnectProber{},
		lookup: net.LookupIP,
	}
}

// Run performs a complete scan of target with the default scanner.
func Run(ctx context.Context, target string, cfg Config) (*Result, error) {
	return NewScanner().Run(ctx, target, cfg)
}

// Run resolves the target, probes every configured port exactly once with
// at most cfg.Workers probes in flight, and aggregates the open ports into
// a deterministic, port-sorted result. Resolution failure and invalid
// configuration abort before any probe is issued; per-probe failures are
// recorded and never abort the scan. Cancellation abandons the scan as a
// unit: no partial result is returned.
func (s *Scanner) Run(ctx context.Context, target string, cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	timer := metrics.NewTimer(metrics.MetricScanDuration, metrics.Labels{
		metrics.LabelScanType: ScanTypeConnect,
		metrics.LabelTarget:   target,
	})
	defer timer.Stop()

	metrics.IncrementActiveScans()
	defer metrics.DecrementActiveScans()

	ip, err := resolveWith(s.lookup, target)
	if err != nil {
		metrics.IncrementScanTotal(ScanTypeConnect, "resolution_failed")
		metrics.IncrementScanErrors(ScanTypeConnect, "resolution")
		return nil, err
	}

	logging.InfoScan("starting port scan", target,
		"resolved_ip", ip,
		"ports", len(cfg.Ports),
		"workers", cfg.Workers,
		"timeout", cfg.Timeout)

	outcomes := s.runPool(ctx, ip, cfg)
	if ctx.Err() != nil {
		metrics.IncrementScanTotal(ScanTypeConnect, "canceled")
		metrics.IncrementScanErrors(ScanTypeConnect, "canceled")
		return nil, errors.ErrScanCanceled(target, ctx.Err())
	}

	result := aggregate(target, ip, outcomes)

	metrics.IncrementScanTotal(ScanTypeConnect, "completed")
	metrics.IncrementPortsProbed(ScanTypeConnect, string(StateOpen), result.Stats.Open)
	metrics.IncrementPortsProbed(ScanTypeConnect, string(StateClosed), result.Stats.Closed)
	metrics.IncrementPortsProbed(ScanTypeConnect, string(StateFiltered), result.Stats.Filtered)
	metrics.IncrementPortsProbed(ScanTypeConnect, string(StateError), result.Stats.Errors)
	logging.InfoScan("port scan completed", target,
		"open_ports", len(result.OpenPorts),
		"closed", result.Stats.Closed,
		"filtered", result.Stats.Filtered,
		"errors", result.Stats.Errors)

	return result, nil
}

// runPool fans probes out across cfg.Workers goroutines draining a shared
// job queue. Each port is claimed by exactly one worker. The returned slice
// holds outcomes in completion order; on cancellation in-flight probes are
// abandoned and their partial outcomes discarded by the caller.
func (s *Scanner) runPool(ctx context.Context, ip string, cfg Config) []Outcome {
	jobs := make(chan int, len(cfg.Ports))
	for _, p := range cfg.Ports {
		jobs <- p
	}
	close(jobs)

	results := make(chan Outcome, len(cfg.Ports))

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
				results <- s.prober.Probe(ctx, ip, port, cfg.Timeout)
			}
		}()
	}

	// Collector: the outcome sink is append-only with a single reader,
	// so concurrent worker writes can never be lost or duplicated.
	collected := make([]Outcome, 0, len(cfg.Ports))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for outcome := range results {
			collected = append(collected, outcome)
			if cfg.OnOutcome != nil {
				cfg.OnOutcome(outcome)
			}
		}
	}()

	wg.Wait()
	close(results)
	<-done

	return collected
}

// aggregate filters the outcome multiset to open ports, attaches service
// names, and imposes the single authoritative ascending port order. This
// is the only point where ordering is restored; completion order never
// leaks into the result.
func aggregate(target, ip string, outcomes []Outcome) *Result {
	var stats Stats
	open := make([]PortResult, 0)
	for _, o := range outcomes {
		switch o.State {
		case StateOpen:
			stats.Open++
			open = append(open, PortResult{Port: o.Port, Service: ServiceName(o.Port)})
		case StateClosed:
			stats.Closed++
		case StateFiltered:
			stats.Filtered++
		default:
			stats.Errors++
		}
	}

	sort.Slice(open, func(i, j int) bool { return open[i].Port < open[j].Port })

	return &Result{
		Target:     target,
		ResolvedIP: ip,
		ScanType:   ScanTypeConnect,
		OpenPorts:  open,
		ScanTime:   time.Now().Format(scanTimeLayout),
		Stats:      stats,
	}
}

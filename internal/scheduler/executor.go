package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/recondor/recondor/internal/banner"
	"github.com/recondor/recondor/internal/config"
	"github.com/recondor/recondor/internal/dnsenum"
	"github.com/recondor/recondor/internal/errors"
	"github.com/recondor/recondor/internal/metrics"
	"github.com/recondor/recondor/internal/portscan"
	"github.com/recondor/recondor/internal/report"
	"github.com/recondor/recondor/internal/storage"
)

// Executor runs scheduled jobs against the recon modules, saving each
// result to the reports directory and, when a store is attached, to the
// scan history.
type Executor struct {
	cfg    *config.Config
	writer *report.Writer
	store  *storage.Store
}

// NewExecutor creates an executor. store may be nil when history
// storage is disabled.
func NewExecutor(cfg *config.Config, writer *report.Writer, store *storage.Store) *Executor {
	return &Executor{cfg: cfg, writer: writer, store: store}
}

// RunJob dispatches one job to its recon module. The recorded duration
// covers the whole pipeline: the module run, the report write, and the
// history insert.
func (e *Executor) RunJob(ctx context.Context, job config.ScheduledJob) error {
	var run func(context.Context, config.ScheduledJob) error
	switch job.Type {
	case "scan":
		run = e.runScan
	case "dns":
		run = e.runDNS
	case "banner":
		run = e.runBanner
	default:
		return errors.NewConfigFieldError(errors.CodeConfiguration,
			fmt.Sprintf("unknown job type %q", job.Type), "type", job.Type)
	}

	start := time.Now()
	err := run(ctx, job)
	metrics.RecordScanDuration("scheduled_"+job.Type, job.Target, time.Since(start))
	return err
}

func (e *Executor) runScan(ctx context.Context, job config.ScheduledJob) error {
	spec := job.Ports
	if spec == "" {
		spec = e.cfg.Scanning.DefaultPorts
	}
	ports, err := portscan.ParsePorts(spec)
	if err != nil {
		return err
	}

	result, err := portscan.Run(ctx, job.Target, portscan.Config{
		Timeout: e.cfg.Scanning.Timeout,
		Workers: e.cfg.Scanning.Workers,
		Ports:   ports,
	})
	if err != nil {
		return err
	}

	if _, err := e.writer.SaveJSON(job.Name, result.Report(), ""); err != nil {
		return err
	}
	return e.saveHistory(ctx, storage.KindPortScan, job.Target,
		result.ResolvedIP, len(result.OpenPorts), result.Report())
}

func (e *Executor) runDNS(ctx context.Context, job config.ScheduledJob) error {
	result, err := dnsenum.NewEnumerator().Run(ctx, job.Target, dnsenum.Config{
		Nameserver: e.cfg.DNS.Nameserver,
		Timeout:    e.cfg.DNS.Timeout,
		Types:      e.cfg.DNS.Types,
	})
	if err != nil {
		return err
	}

	if _, err := e.writer.SaveJSON(job.Name, result.Report(), ""); err != nil {
		return err
	}
	return e.saveHistory(ctx, storage.KindDNSLookup, job.Target, "", 0, result.Report())
}

func (e *Executor) runBanner(ctx context.Context, job config.ScheduledJob) error {
	var ports []int
	if job.Ports != "" {
		parsed, err := portscan.ParsePorts(job.Ports)
		if err != nil {
			return err
		}
		ports = parsed
	}

	result, err := banner.NewGrabber().Run(ctx, job.Target, banner.Config{
		Ports:   ports,
		Timeout: e.cfg.Banner.Timeout,
		Workers: e.cfg.Banner.Workers,
	})
	if err != nil {
		return err
	}

	if _, err := e.writer.SaveJSON(job.Name, result.Report(), ""); err != nil {
		return err
	}
	return e.saveHistory(ctx, storage.KindBannerGrab, job.Target,
		result.ResolvedIP, 0, result.Report())
}

func (e *Executor) saveHistory(ctx context.Context, kind, target, ip string, openPorts int, payload any) error {
	if e.store == nil {
		return nil
	}
	rec, err := storage.NewScanRecord(kind, target, ip, openPorts, payload)
	if err != nil {
		return err
	}
	return e.store.SaveScan(ctx, rec)
}

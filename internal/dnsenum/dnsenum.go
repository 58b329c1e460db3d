// Package dnsenum enumerates DNS records for a domain. Queries for the
// requested record types run concurrently against a single nameserver;
// record types with no answer are skipped rather than reported as errors,
// so the result only carries types that actually resolved.
package dnsenum

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"

	"github.com/recondor/recondor/internal/errors"
	"github.com/recondor/recondor/internal/logging"
	"github.com/recondor/recondor/internal/metrics"
)

const (
	// DefaultTimeout bounds each individual record-type query.
	DefaultTimeout = 4 * time.Second

	resolvConfPath     = "/etc/resolv.conf"
	fallbackNameserver = "8.8.8.8:53"
	lookupTimeLayout   = "2006-01-02 15:04:05"
)

// DefaultTypes lists the record types queried when the caller does not
// ask for specific ones.
var DefaultTypes = []string{"A", "AAAA", "MX", "NS", "TXT", "SOA", "CNAME"}

var recordTypes = map[string]uint16{
	"A":     dns.TypeA,
	"AAAA":  dns.TypeAAAA,
	"MX":    dns.TypeMX,
	"NS":    dns.TypeNS,
	"TXT":   dns.TypeTXT,
	"SOA":   dns.TypeSOA,
	"CNAME": dns.TypeCNAME,
	"PTR":   dns.TypePTR,
	"SRV":   dns.TypeSRV,
}

// Config controls a DNS enumeration run.
type Config struct {
	// Nameserver overrides the system resolver ("host" or "host:port").
	Nameserver string
	// Timeout bounds each record-type query. Defaults to DefaultTimeout.
	Timeout time.Duration
	// Types lists record types to query. Defaults to DefaultTypes.
	Types []string
}

func (c Config) withDefaults() Config {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if len(c.Types) == 0 {
		c.Types = append([]string(nil), DefaultTypes...)
	}
	return c
}

func (c Config) validate() error {
	if c.Timeout < 0 {
		return errors.NewConfigFieldError(errors.CodeValidation,
			"timeout must be positive", "timeout", c.Timeout)
	}
	for _, t := range c.Types {
		if _, ok := recordTypes[strings.ToUpper(t)]; !ok {
			return errors.NewConfigFieldError(errors.CodeValidation,
				fmt.Sprintf("unsupported record type %q", t), "types", t)
		}
	}
	return nil
}

// Result holds the records found for a domain, keyed by record type.
// Types that returned no records are absent from the map.
type Result struct {
	Domain     string              `json:"domain"`
	Nameserver string              `json:"nameserver"`
	Records    map[string][]string `json:"records"`
	LookupTime string              `json:"lookup_time"`
}

// Report is the serialization envelope for a DNS enumeration result.
type Report struct {
	DNSLookup *Result `json:"dns_lookup"`
}

// Report wraps the result in its serialization envelope.
func (r *Result) Report() *Report {
	return &Report{DNSLookup: r}
}

// exchanger is the querying side of a DNS client. *dns.Client satisfies
// it; tests substitute canned responses.
type exchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, addr string) (*dns.Msg, time.Duration, error)
}

// Enumerator performs DNS record enumeration.
type Enumerator struct {
	client     exchanger
	nameserver func(override string) (string, error)
}

// NewEnumerator creates an enumerator backed by a UDP DNS client and the
// system resolver configuration.
func NewEnumerator() *Enumerator {
	return &Enumerator{
		client:     &dns.Client{},
		nameserver: resolveNameserver,
	}
}

// Run queries the configured record types for domain and returns the
// records found. Record types that time out or return no answer are
// omitted from the result. A nameserver that cannot be determined is the
// only fatal condition.
func (e *Enumerator) Run(ctx context.Context, domain string, cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	server, err := e.nameserver(cfg.Nameserver)
	if err != nil {
		return nil, errors.ErrDNSLookup(domain, err)
	}

	logger := logging.WithComponent("dnsenum")
	logger.Info("Starting DNS enumeration",
		"domain", domain,
		"nameserver", server,
		"types", strings.Join(cfg.Types, ","))

	timer := metrics.NewTimer(metrics.MetricScanDuration, metrics.Labels{
		metrics.LabelScanType: "dns_enum",
		metrics.LabelTarget:   domain,
	})
	start := time.Now()

	records := make(map[string][]string)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, rtype := range cfg.Types {
		rtype := strings.ToUpper(rtype)
		wg.Add(1)
		go func() {
			defer wg.Done()
			qstart := time.Now()
			values := e.query(ctx, domain, rtype, server, cfg.Timeout)
			metrics.RecordDNSDuration(rtype, time.Since(qstart))
			if len(values) == 0 {
				metrics.IncrementDNSLookups(rtype, "empty")
				return
			}
			metrics.IncrementDNSLookups(rtype, "answered")
			metrics.IncrementDNSRecords(rtype, len(values))
			mu.Lock()
			records[rtype] = values
			mu.Unlock()
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.ErrScanCanceled(domain, err)
	}

	result := &Result{
		Domain:     domain,
		Nameserver: server,
		Records:    records,
		LookupTime: time.Now().Format(lookupTimeLayout),
	}

	timer.Stop()
	logging.InfoDNS("DNS enumeration completed", domain,
		"types_answered", len(records),
		"duration", time.Since(start))

	return result, nil
}

// query performs a single record-type lookup. All failures are treated
// as an empty answer.
func (e *Enumerator) query(ctx context.Context, domain, rtype, server string, timeout time.Duration) []string {
	qctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), recordTypes[rtype])
	msg.RecursionDesired = true

	resp, _, err := e.client.ExchangeContext(qctx, msg, server)
	if err != nil || resp == nil || resp.Rcode != dns.RcodeSuccess {
		return nil
	}

	var values []string
	for _, rr := range resp.Answer {
		if v := formatRecord(rr); v != "" {
			values = append(values, v)
		}
	}
	sort.Strings(values)
	return values
}

// formatRecord renders a resource record the way the toolkit reports it:
// bare values, MX as "preference exchange", TXT strings joined.
func formatRecord(rr dns.RR) string {
	switch r := rr.(type) {
	case *dns.A:
		return r.A.String()
	case *dns.AAAA:
		return r.AAAA.String()
	case *dns.MX:
		return fmt.Sprintf("%d %s", r.Preference, r.Mx)
	case *dns.NS:
		return r.Ns
	case *dns.TXT:
		return strings.Join(r.Txt, " ")
	case *dns.SOA:
		return fmt.Sprintf("%s %s %d %d %d %d %d",
			r.Ns, r.Mbox, r.Serial, r.Refresh, r.Retry, r.Expire, r.Minttl)
	case *dns.CNAME:
		return r.Target
	case *dns.PTR:
		return r.Ptr
	case *dns.SRV:
		return fmt.Sprintf("%d %d %d %s", r.Priority, r.Weight, r.Port, r.Target)
	default:
		header := rr.Header().String()
		return strings.TrimSpace(strings.TrimPrefix(rr.String(), header))
	}
}

// resolveNameserver picks the nameserver address to query: the override
// when given, otherwise the first server from /etc/resolv.conf, falling
// back to a public resolver when no system configuration is readable.
func resolveNameserver(override string) (string, error) {
	if override != "" {
		return ensurePort(override), nil
	}

	conf, err := dns.ClientConfigFromFile(resolvConfPath)
	if err != nil || len(conf.Servers) == 0 {
		return fallbackNameserver, nil
	}
	return net.JoinHostPort(conf.Servers[0], conf.Port), nil
}

func ensurePort(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(server, "53")
}

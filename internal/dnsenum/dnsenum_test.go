package dnsenum

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reconerrors "github.com/recondor/recondor/internal/errors"
)

// stubExchanger answers queries from a canned set of records keyed by
// question type and records every question it sees.
type stubExchanger struct {
	mu      sync.Mutex
	answers map[uint16][]dns.RR
	rcode   map[uint16]int
	err     error
	seen    []uint16
}

func (s *stubExchanger) ExchangeContext(_ context.Context, m *dns.Msg, _ string) (*dns.Msg, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	qtype := m.Question[0].Qtype
	s.seen = append(s.seen, qtype)

	if s.err != nil {
		return nil, 0, s.err
	}

	resp := new(dns.Msg)
	resp.SetReply(m)
	if rcode, ok := s.rcode[qtype]; ok {
		resp.Rcode = rcode
		return resp, 0, nil
	}
	resp.Answer = s.answers[qtype]
	return resp, 0, nil
}

func mustRR(t *testing.T, s string) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(s)
	require.NoError(t, err)
	return rr
}

func newTestEnumerator(stub *stubExchanger) *Enumerator {
	return &Enumerator{
		client: stub,
		nameserver: func(override string) (string, error) {
			if override != "" {
				return ensurePort(override), nil
			}
			return "198.51.100.53:53", nil
		},
	}
}

func TestEnumeratorRun(t *testing.T) {
	t.Run("collects and formats answered types", func(t *testing.T) {
		stub := &stubExchanger{
			answers: map[uint16][]dns.RR{
				dns.TypeA: {
					mustRR(t, "example.com. 300 IN A 93.184.216.34"),
				},
				dns.TypeMX: {
					mustRR(t, "example.com. 300 IN MX 10 mail.example.com."),
					mustRR(t, "example.com. 300 IN MX 20 backup.example.com."),
				},
				dns.TypeTXT: {
					mustRR(t, `example.com. 300 IN TXT "v=spf1" "-all"`),
				},
			},
		}
		enum := newTestEnumerator(stub)

		result, err := enum.Run(context.Background(), "example.com", Config{})
		require.NoError(t, err)

		assert.Equal(t, "example.com", result.Domain)
		assert.Equal(t, "198.51.100.53:53", result.Nameserver)
		assert.NotEmpty(t, result.LookupTime)

		assert.Equal(t, []string{"93.184.216.34"}, result.Records["A"])
		assert.Equal(t, []string{
			"10 mail.example.com.",
			"20 backup.example.com.",
		}, result.Records["MX"])
		assert.Equal(t, []string{"v=spf1 -all"}, result.Records["TXT"])
	})

	t.Run("unanswered types are omitted", func(t *testing.T) {
		stub := &stubExchanger{
			answers: map[uint16][]dns.RR{
				dns.TypeA: {mustRR(t, "example.com. 300 IN A 93.184.216.34")},
			},
		}
		enum := newTestEnumerator(stub)

		result, err := enum.Run(context.Background(), "example.com", Config{})
		require.NoError(t, err)

		assert.Contains(t, result.Records, "A")
		assert.NotContains(t, result.Records, "AAAA")
		assert.NotContains(t, result.Records, "SOA")
	})

	t.Run("nxdomain treated as empty answer", func(t *testing.T) {
		stub := &stubExchanger{
			rcode: map[uint16]int{dns.TypeA: dns.RcodeNameError},
		}
		enum := newTestEnumerator(stub)

		result, err := enum.Run(context.Background(), "nonexistent.invalid", Config{
			Types: []string{"A"},
		})
		require.NoError(t, err)
		assert.Empty(t, result.Records)
	})

	t.Run("query failures never abort the run", func(t *testing.T) {
		stub := &stubExchanger{err: errors.New("read udp: i/o timeout")}
		enum := newTestEnumerator(stub)

		result, err := enum.Run(context.Background(), "example.com", Config{})
		require.NoError(t, err)
		assert.Empty(t, result.Records)
	})

	t.Run("every requested type queried once", func(t *testing.T) {
		stub := &stubExchanger{}
		enum := newTestEnumerator(stub)

		_, err := enum.Run(context.Background(), "example.com", Config{
			Types: []string{"A", "MX", "NS"},
		})
		require.NoError(t, err)

		counts := make(map[uint16]int)
		for _, q := range stub.seen {
			counts[q]++
		}
		assert.Equal(t, map[uint16]int{
			dns.TypeA:  1,
			dns.TypeMX: 1,
			dns.TypeNS: 1,
		}, counts)
	})

	t.Run("record types are case insensitive", func(t *testing.T) {
		stub := &stubExchanger{
			answers: map[uint16][]dns.RR{
				dns.TypeNS: {mustRR(t, "example.com. 300 IN NS ns1.example.com.")},
			},
		}
		enum := newTestEnumerator(stub)

		result, err := enum.Run(context.Background(), "example.com", Config{
			Types: []string{"ns"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"ns1.example.com."}, result.Records["NS"])
	})

	t.Run("unsupported record type rejected", func(t *testing.T) {
		enum := newTestEnumerator(&stubExchanger{})

		_, err := enum.Run(context.Background(), "example.com", Config{
			Types: []string{"AXFR"},
		})
		require.Error(t, err)
		assert.True(t, reconerrors.IsCode(err, reconerrors.CodeValidation))
	})

	t.Run("nameserver override applied", func(t *testing.T) {
		stub := &stubExchanger{}
		enum := newTestEnumerator(stub)

		result, err := enum.Run(context.Background(), "example.com", Config{
			Nameserver: "9.9.9.9",
			Types:      []string{"A"},
		})
		require.NoError(t, err)
		assert.Equal(t, "9.9.9.9:53", result.Nameserver)
	})

	t.Run("nameserver discovery failure is fatal", func(t *testing.T) {
		enum := &Enumerator{
			client: &stubExchanger{},
			nameserver: func(string) (string, error) {
				return "", errors.New("resolv.conf unreadable")
			},
		}

		result, err := enum.Run(context.Background(), "example.com", Config{})
		require.Error(t, err)
		assert.Nil(t, result)
		assert.True(t, reconerrors.IsCode(err, reconerrors.CodeDNSLookup))
	})
}

func TestFormatRecord(t *testing.T) {
	cases := []struct {
		name string
		rr   string
		want string
	}{
		{"a record", "example.com. 300 IN A 93.184.216.34", "93.184.216.34"},
		{"aaaa record", "example.com. 300 IN AAAA 2606:2800:220:1::1", "2606:2800:220:1::1"},
		{"mx record", "example.com. 300 IN MX 10 mail.example.com.", "10 mail.example.com."},
		{"ns record", "example.com. 300 IN NS ns1.example.com.", "ns1.example.com."},
		{"cname record", "www.example.com. 300 IN CNAME example.com.", "example.com."},
		{
			"soa record",
			"example.com. 300 IN SOA ns1.example.com. admin.example.com. 2024010101 7200 3600 1209600 300",
			"ns1.example.com. admin.example.com. 2024010101 7200 3600 1209600 300",
		},
		{"srv record", "_sip._tcp.example.com. 300 IN SRV 10 60 5060 sip.example.com.", "10 60 5060 sip.example.com."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, formatRecord(mustRR(t, tc.rr)))
		})
	}
}

func TestEnsurePort(t *testing.T) {
	assert.Equal(t, "9.9.9.9:53", ensurePort("9.9.9.9"))
	assert.Equal(t, "9.9.9.9:5353", ensurePort("9.9.9.9:5353"))
	assert.Equal(t, "[2001:db8::1]:53", ensurePort("2001:db8::1"))
}

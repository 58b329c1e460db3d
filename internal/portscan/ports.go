package portscan

import (
	"sort"
	"strconv"
	"strings"

	"github.com/recondor/recondor/internal/errors"
)

const (
	portMin = 1
	portMax = 65535
)

// DefaultPorts is the curated set of commonly exposed ports probed when no
// specification is supplied.
var DefaultPorts = []int{
	21, 22, 23, 25, 53, 80, 110, 143, 443, 465,
	587, 993, 995, 3306, 3389, 5432, 8080, 8443,
}

// ParsePorts parses a port specification string into a deduplicated,
// ascending port list. Supported forms:
//   - single: "22"
//   - list: "22,80,443"
//   - range: "1-1024"
//   - mixed: "22,80,8000-8100"
//
// A malformed token (non-numeric, reversed range, out-of-bounds endpoint)
// fails the whole parse with an INVALID_PORT_SPEC error naming the token;
// bad tokens are never silently dropped. An empty specification yields
// DefaultPorts.
func ParsePorts(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		out := make([]int, len(DefaultPorts))
		copy(out, DefaultPorts)
		return out, nil
	}

	seen := make(map[int]struct{})
	for _, token := range strings.Split(spec, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, errors.ErrInvalidPortSpec(token)
		}

		if strings.Contains(token, "-") {
			bounds := strings.SplitN(token, "-", 2)
			start, err := parsePortNumber(bounds[0])
			if err != nil {
				return nil, errors.ErrInvalidPortSpec(token)
			}
			end, err := parsePortNumber(bounds[1])
			if err != nil {
				return nil, errors.ErrInvalidPortSpec(token)
			}
			if start > end {
				return nil, errors.ErrInvalidPortSpec(token)
			}
			for p := start; p <= end; p++ {
				seen[p] = struct{}{}
			}
			continue
		}

		p, err := parsePortNumber(token)
		if err != nil {
			return nil, errors.ErrInvalidPortSpec(token)
		}
		seen[p] = struct{}{}
	}

	ports := make([]int, 0, len(seen))
	for p := range seen {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports, nil
}

func parsePortNumber(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if p < portMin || p > portMax {
		return 0, errors.NewScanError(errors.CodeInvalidPortSpec, "port out of range")
	}
	return p, nil
}

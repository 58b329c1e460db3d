package portscan

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recondor/recondor/internal/errors"
)

func TestParsePorts(t *testing.T) {
	t.Run("parses comma separated list", func(t *testing.T) {
		ports, err := ParsePorts("22,80,443")
		require.NoError(t, err)
		assert.Equal(t, []int{22, 80, 443}, ports)
	})

	t.Run("parses inclusive range", func(t *testing.T) {
		ports, err := ParsePorts("8000-8004")
		require.NoError(t, err)
		assert.Equal(t, []int{8000, 8001, 8002, 8003, 8004}, ports)
	})

	t.Run("parses mixed list and ranges with whitespace", func(t *testing.T) {
		ports, err := ParsePorts(" 443, 22 , 80-82 ")
		require.NoError(t, err)
		assert.Equal(t, []int{22, 80, 81, 82, 443}, ports)
	})

	t.Run("deduplicates overlapping tokens", func(t *testing.T) {
		ports, err := ParsePorts("22,80-81,22,80,443")
		require.NoError(t, err)
		assert.Equal(t, []int{22, 80, 81, 443}, ports)
	})

	t.Run("single port range endpoints allowed", func(t *testing.T) {
		ports, err := ParsePorts("443-443")
		require.NoError(t, err)
		assert.Equal(t, []int{443}, ports)
	})

	t.Run("empty spec falls back to default ports", func(t *testing.T) {
		ports, err := ParsePorts("")
		require.NoError(t, err)
		assert.Equal(t, DefaultPorts, ports)
	})

	t.Run("returned defaults are a copy", func(t *testing.T) {
		ports, err := ParsePorts("")
		require.NoError(t, err)
		ports[0] = 9999
		assert.Equal(t, 21, DefaultPorts[0])
	})
}

func TestParsePortsInvalid(t *testing.T) {
	cases := []struct {
		name string
		spec string
	}{
		{"non numeric token", "b-c"},
		{"out of range port", "99999"},
		{"zero port", "0"},
		{"negative-ish range", "70000-70001"},
		{"reversed range", "10-5"},
		{"dangling range", "5-"},
		{"empty token", "22,,80"},
		{"plain text", "abc"},
		{"range upper out of bounds", "100-65536"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParsePorts(tc.spec)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeInvalidPortSpec),
				"expected INVALID_PORT_SPEC, got %v", err)
		})
	}
}

func TestParsePortsNamesOffendingToken(t *testing.T) {
	_, err := ParsePorts("22,70000,80")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "70000")
}

func TestDefaultPortsNormalized(t *testing.T) {
	assert.True(t, sort.IntsAreSorted(DefaultPorts))

	seen := make(map[int]bool)
	for _, p := range DefaultPorts {
		assert.False(t, seen[p], "duplicate default port %d", p)
		seen[p] = true
		assert.GreaterOrEqual(t, p, 1)
		assert.LessOrEqual(t, p, 65535)
	}
}

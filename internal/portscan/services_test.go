package portscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServiceName(t *testing.T) {
	t.Run("maps well-known ports", func(t *testing.T) {
		assert.Equal(t, "ssh", ServiceName(22))
		assert.Equal(t, "http", ServiceName(80))
		assert.Equal(t, "https", ServiceName(443))
		assert.Equal(t, "postgresql", ServiceName(5432))
	})

	t.Run("unmapped port returns sentinel", func(t *testing.T) {
		assert.Equal(t, UnknownService, ServiceName(49152))
	})

	t.Run("every default port has a catalog entry", func(t *testing.T) {
		for _, p := range DefaultPorts {
			assert.NotEqual(t, UnknownService, ServiceName(p), "port %d", p)
		}
	})
}

package cli

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	t.Run("registers all subcommands", func(t *testing.T) {
		names := make(map[string]bool)
		for _, cmd := range rootCmd.Commands() {
			names[cmd.Name()] = true
		}

		assert.True(t, names["scan"])
		assert.True(t, names["dns"])
		assert.True(t, names["banner"])
		assert.True(t, names["report"])
		assert.True(t, names["serve"])
	})

	t.Run("has global flags", func(t *testing.T) {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup("verbose"))
	})
}

func TestSetVersion(t *testing.T) {
	defer SetVersion("dev", "none", "unknown")

	SetVersion("1.2.3", "abc1234", "2026-08-24")
	assert.Contains(t, rootCmd.Version, "1.2.3")
	assert.Contains(t, rootCmd.Version, "abc1234")
}

func TestScanCommandFlags(t *testing.T) {
	flags := scanCmd.Flags()

	names := make(map[string]bool)
	flags.VisitAll(func(f *pflag.Flag) { names[f.Name] = true })
	for _, name := range []string{"ports", "timeout", "workers", "format", "output"} {
		assert.True(t, names[name], "missing flag %s", name)
	}

	format, err := flags.GetString("format")
	require.NoError(t, err)
	assert.Equal(t, "text", format)
}

func TestDNSCommandFlags(t *testing.T) {
	flags := dnsCmd.Flags()

	for _, name := range []string{"nameserver", "types", "timeout", "format", "output"} {
		assert.NotNil(t, flags.Lookup(name), "missing flag %s", name)
	}
}

func TestBannerCommandFlags(t *testing.T) {
	flags := bannerCmd.Flags()

	for _, name := range []string{"ports", "timeout", "workers", "format", "output"} {
		assert.NotNil(t, flags.Lookup(name), "missing flag %s", name)
	}
}

func TestCommandsRequireTarget(t *testing.T) {
	for _, cmd := range []string{"scan", "dns", "banner", "report"} {
		c, _, err := rootCmd.Find([]string{cmd})
		require.NoError(t, err)
		assert.Error(t, c.Args(c, nil), "%s must require a target argument", cmd)
	}
}

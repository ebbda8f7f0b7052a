package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/travliaq/popsync/internal/config"
)

func TestRootCommandRegistration(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"populate", "status", "serve"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "12345678", shortID("123456789abc"))
	assert.Equal(t, "short", shortID("short"))
}

func TestEngineOptionsFromConfig(t *testing.T) {
	loaded, err := config.Load()
	require.NoError(t, err)
	prev := cfg
	cfg = loaded
	t.Cleanup(func() { cfg = prev })

	opts := engineOptions(true, false)
	assert.Equal(t, "cities15000", opts.Dataset)
	assert.Equal(t, 30.0, opts.RadiusKm)
	assert.Equal(t, 0.94, opts.FuzzyThreshold)
	assert.Equal(t, 0.92, opts.FallbackThreshold)
	assert.Equal(t, 2000, opts.BatchSize)
	assert.Equal(t, 8, opts.Workers)
	assert.Equal(t, 4, opts.FallbackWorkers)
	assert.True(t, opts.OnlyMissing)
	assert.False(t, opts.DryRun)
}

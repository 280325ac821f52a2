package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturalo/go-afip-facturador/afip"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Address)
	assert.Equal(t, afip.Homologation, cfg.Environment)
	assert.Equal(t, "/tmp/afip_ticket_cache", cfg.TicketCacheDir)
	assert.Equal(t, 90*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.Debug)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("LISTEN_ADDRESS", ":9090")
	t.Setenv("AFIP_ENV", "prod")
	t.Setenv("TICKET_CACHE_DIR", "/var/cache/afip")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "30")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Address)
	assert.Equal(t, afip.Production, cfg.Environment)
	assert.Equal(t, "/var/cache/afip", cfg.TicketCacheDir)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.Debug)
}

func TestLoadRejectsUnknownEnvironment(t *testing.T) {
	t.Setenv("AFIP_ENV", "staging")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadIgnoresMalformedTimeout(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "ninety")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.RequestTimeout)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleClients = `
clients:
  zeta:
    name: Zeta Plumbing
    domain: WWW.Zeta.example
    keywords:
      - emergency plumber
      - " boiler repair "
      - emergency plumber
  alpha:
    domain: alpha.example
    keywords: [roof repair]
scraping:
  results_per_page: 50
  delay_between_requests: 1.5
  strategy: api
  api_key: secret
`

func TestParseClients_KeepsDocumentOrder(t *testing.T) {
	f, err := ParseClients([]byte(sampleClients))
	require.NoError(t, err)
	require.Len(t, f.Clients, 2)

	assert.Equal(t, "zeta", f.Clients[0].ID)
	assert.Equal(t, "alpha", f.Clients[1].ID)
	assert.Equal(t, "alpha", f.Clients[1].Name, "name defaults to id")
	assert.Equal(t, "zeta.example", f.Clients[0].Domain)
	assert.Equal(t, []string{"emergency plumber", "boiler repair"}, f.Clients[0].Keywords)
}

func TestParseClients_Apply(t *testing.T) {
	f, err := ParseClients([]byte(sampleClients))
	require.NoError(t, err)

	cfg := Load()
	f.Apply(cfg)
	assert.Equal(t, 50, cfg.Scraping.ResultsPerPage)
	assert.Equal(t, 1500*time.Millisecond, cfg.Scraping.DelayBetweenRequests)
	assert.Equal(t, "api", cfg.Scraping.Strategy)
	assert.Equal(t, "secret", cfg.Scraping.APIKey)
}

func TestParseClients_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", "clients: {}"},
		{"missing domain", "clients:\n  a:\n    keywords: [x]\n"},
		{"no keywords", "clients:\n  a:\n    domain: a.example\n    keywords: ['  ']\n"},
		{"bad yaml", "clients: ["},
		{"scheme only", "clients:\n  a:\n    domain: 'http://'\n    keywords: [x]\n"},
		{"path only", "clients:\n  a:\n    domain: /pricing\n    keywords: [x]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseClients([]byte(tt.doc))
			require.Error(t, err)
		})
	}

	_, err := ParseClients([]byte("scraping: {}"))
	require.ErrorIs(t, err, ErrNoClients)
}

func TestParseClients_NormalizesDomain(t *testing.T) {
	tests := []struct {
		domain string
		want   string
	}{
		{"https://Example.com/", "example.com"},
		{"example.com/path", "example.com"},
		{"http://www.example.com:8080/a?b=c", "example.com"},
		{"example.com:443", "example.com"},
		{" Shop.Example.com. ", "shop.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			doc := "clients:\n  a:\n    domain: '" + tt.domain + "'\n    keywords: [x]\n"
			f, err := ParseClients([]byte(doc))
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Clients[0].Domain)
		})
	}
}

func TestLoadClients_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clients.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleClients), 0o600))

	f, err := LoadClients(path)
	require.NoError(t, err)

	c, ok := f.Find("alpha")
	require.True(t, ok)
	assert.Equal(t, []string{"roof repair"}, c.Keywords)

	_, ok = f.Find("missing")
	assert.False(t, ok)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RANKWATCH_WORKERS", "4")
	t.Setenv("RANKWATCH_DELAY", "250ms")
	t.Setenv("RANKWATCH_API_KEYS", "a, b ,,c")

	cfg := Load()
	assert.Equal(t, 4, cfg.Tracker.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Scraping.DelayBetweenRequests)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Auth.APIKeys)
	assert.Equal(t, "http", cfg.Scraping.Strategy)
}

package bootstrap

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"StorefrontAPI/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegistersEveryProcessor(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	reg := Registry(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, []string{"midtrans", "orange_money", "paypal", "wave"}, reg.Names())

	for _, name := range reg.Names() {
		p, ok := reg.Get(name)
		require.True(t, ok)
		assert.False(t, p.IsConfigured(), name)
	}
}

func TestRegistryConfiguredFromEnv(t *testing.T) {
	t.Setenv("PAYMENTS_PROVIDERS_WAVE_SANDBOX_KEY", "wave-sk")
	cfg, err := config.Load("")
	require.NoError(t, err)

	reg := Registry(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p, ok := reg.Get("wave")
	require.True(t, ok)
	assert.True(t, p.IsConfigured())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&config.Config{LogLevel: "warn", LogFormat: "json"}, &buf)
	log.Info("hidden")
	log.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	log = NewLogger(&config.Config{LogLevel: "nonsense", LogFormat: "text"}, &buf)
	log.Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}

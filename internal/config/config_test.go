package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 18380, cfg.General.APIPort)
	assert.Equal(t, ModeAuto, cfg.Capture.Mode)
	assert.Equal(t, "BongoCat", cfg.Capture.WindowTitle)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.General.APIPort = 0 }},
		{"port too high", func(c *Config) { c.General.APIPort = 70000 }},
		{"unknown mode", func(c *Config) { c.Capture.Mode = "sniff" }},
		{"empty title", func(c *Config) { c.Capture.WindowTitle = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	m := NewManagerAt(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, m.Load())
	assert.Equal(t, DefaultConfig(), m.Get())
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	m := NewManagerAt(path)

	cfg := DefaultConfig()
	cfg.General.APIToken = "secret"
	cfg.Capture.Mode = ModeRaw
	m.Set(cfg)
	require.NoError(t, m.Save())

	other := NewManagerAt(path)
	require.NoError(t, other.Load())
	assert.Equal(t, cfg, other.Get())
}

func TestLoadPartialFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"capture":{"mode":"hook"}}`), 0644))

	m := NewManagerAt(path)
	require.NoError(t, m.Load())
	assert.Equal(t, ModeHook, m.Get().Capture.Mode)
	assert.Equal(t, "BongoCat", m.Get().Capture.WindowTitle)
	assert.Equal(t, 18380, m.Get().General.APIPort)
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"general":`},
		{"bad mode", `{"capture":{"mode":"sniff"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0644))

			m := NewManagerAt(path)
			assert.ErrorIs(t, m.Load(), ErrInvalidConfig)
			assert.Equal(t, DefaultConfig(), m.Get())
		})
	}
}

func TestChangeCallback(t *testing.T) {
	m := NewManagerAt(filepath.Join(t.TempDir(), "config.json"))
	calls := 0
	m.RegisterChangeCallback(func() { calls++ })

	m.Set(DefaultConfig())
	assert.Equal(t, 1, calls)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	m := NewManagerAt(path)
	require.NoError(t, m.Save())

	changed := make(chan struct{}, 8)
	m.RegisterChangeCallback(func() { changed <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Watch(ctx))

	require.NoError(t, os.WriteFile(path, []byte(`{"general":{"api_port":19000},"capture":{"mode":"both","window_title":"Cat"}}`), 0644))

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
	assert.Eventually(t, func() bool {
		cfg := m.Get()
		return cfg.General.APIPort == 19000 && cfg.Capture.Mode == ModeBoth
	}, 5*time.Second, 20*time.Millisecond)
}

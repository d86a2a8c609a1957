// Package config provides configuration management for the BongoCat input service.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Capture modes accepted in CaptureConfig.Mode
const (
	ModeAuto = "auto"
	ModeHook = "hook"
	ModeRaw  = "raw"
	ModeBoth = "both"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid config")

// Config represents the application configuration
type Config struct {
	// General contains general application settings
	General GeneralConfig `json:"general"`

	// Capture controls which listeners are armed
	Capture CaptureConfig `json:"capture"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	// APIPort is the loopback port for the event server (default: 18380)
	APIPort int `json:"api_port"`

	// APIToken is an optional authentication token for API and WebSocket requests
	APIToken string `json:"api_token,omitempty"`

	// ListenOnLaunch arms capture as soon as the server is up
	ListenOnLaunch bool `json:"listen_on_launch"`

	// Autostart registers the service to launch at login
	Autostart bool `json:"autostart"`
}

// CaptureConfig selects the capture variants
type CaptureConfig struct {
	// Mode is one of "auto", "hook", "raw" or "both"
	Mode string `json:"mode"`

	// WindowTitle is the title of the window that receives raw mouse input (Windows only)
	WindowTitle string `json:"window_title"`
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			APIPort:        18380,
			ListenOnLaunch: true,
		},
		Capture: CaptureConfig{
			Mode:        ModeAuto,
			WindowTitle: "BongoCat",
		},
	}
}

// Validate reports the first invalid field
func (c *Config) Validate() error {
	if c.General.APIPort < 1 || c.General.APIPort > 65535 {
		return fmt.Errorf("%w: api_port %d out of range", ErrInvalidConfig, c.General.APIPort)
	}
	switch c.Capture.Mode {
	case ModeAuto, ModeHook, ModeRaw, ModeBoth:
	default:
		return fmt.Errorf("%w: unknown capture mode %q", ErrInvalidConfig, c.Capture.Mode)
	}
	if c.Capture.WindowTitle == "" {
		return fmt.Errorf("%w: window_title is empty", ErrInvalidConfig)
	}
	return nil
}

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
	onChanged  func()
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return NewManagerAt(configPath), nil
}

// NewManagerAt creates a manager backed by an explicit file
func NewManagerAt(path string) *Manager {
	return &Manager{
		configPath: path,
		config:     DefaultConfig(),
	}
}

// Path returns the backing file
func (m *Manager) Path() string {
	return m.configPath
}

// getConfigPath returns the path to the configuration file
func getConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "bongocat")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "bongocat")
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config", "bongocat")
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}

	return filepath.Join(configDir, "config.json"), nil
}

// Load reads the configuration from disk. A missing file keeps the defaults.
// An invalid file leaves the current configuration untouched.
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.configPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.Set(cfg)
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return err
	}

	log.Printf("Config: Saving configuration to %s (%d bytes)", m.configPath, len(data))
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns the current configuration. Treat it as read-only; use Set to change it.
func (m *Manager) Get() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Set replaces the configuration
func (m *Manager) Set(config *Config) {
	m.mu.Lock()
	m.config = config
	fn := m.onChanged
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// RegisterChangeCallback registers a function to be called when config changes
func (m *Manager) RegisterChangeCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = fn
}

// Watch reloads the file whenever it is written until ctx is done.
// It returns once the watcher is armed.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// Editors often replace the file, so watch the directory
	if err := watcher.Add(filepath.Dir(m.configPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	go m.watchLoop(ctx, watcher)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	const debounceDelay = 100 * time.Millisecond
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(m.configPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, func() {
				if err := m.Load(); err != nil {
					log.Printf("Config: Reload of %s failed, keeping previous config: %v", m.configPath, err)
					return
				}
				log.Printf("Config: Reloaded %s", m.configPath)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Config: Watcher error: %v", err)
		}
	}
}

package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yok-tottii/ezdaw/internal/audio"
	"github.com/yok-tottii/ezdaw/internal/engine"
)

// Recording modes
const (
	ModePressToHold = "press-to-hold"
	ModeToggle      = "toggle"
)

// Config holds application configuration
type Config struct {
	Engine         EngineConfig `json:"engine"`
	Backend        string       `json:"backend"` // "portaudio" or "malgo"
	Hotkey         HotkeyConfig `json:"hotkey"`
	RecordingMode  string       `json:"recording_mode"`      // "press-to-hold" or "toggle"
	MaxRecordTime  int          `json:"max_record_time"`     // seconds, 0 = unlimited
	ServerPort     int          `json:"server_port"`         // 0 = random
	DebugLevel     string       `json:"debug_level"`         // e.g. "info,ENGN=debug"
	StatsInterval  int          `json:"stats_interval_sec"`  // 0 = disabled
	RecordPrealloc int          `json:"record_prealloc_sec"` // clip storage reserved up front
	mu             sync.RWMutex
}

// EngineConfig is the persisted engine descriptor. Empty device names select
// the host defaults.
type EngineConfig struct {
	LatencyMS    float64 `json:"latency_ms"`
	InputDevice  string  `json:"input_device"`
	OutputDevice string  `json:"output_device"`
}

// HotkeyConfig holds hotkey configuration
type HotkeyConfig struct {
	Ctrl  bool   `json:"ctrl"`
	Shift bool   `json:"shift"`
	Alt   bool   `json:"alt"`
	Cmd   bool   `json:"cmd"`
	Key   string `json:"key"` // e.g., "R"
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			LatencyMS: engine.DefaultLatencyMS,
		},
		Backend: audio.BackendPortAudio,
		Hotkey: HotkeyConfig{
			Ctrl: true,
			Alt:  true,
			Key:  "R",
		},
		RecordingMode:  ModeToggle,
		MaxRecordTime:  600,
		ServerPort:     18765,
		DebugLevel:     "info",
		StatsInterval:  10,
		RecordPrealloc: 10,
	}
}

// Load loads configuration from the specified path
func Load(path string) (*Config, error) {
	// If file doesn't exist, return default config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Fields missing from the file keep their defaults.
	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.Hotkey.Key == "" {
		config.Hotkey.Key = DefaultConfig().Hotkey.Key
	}

	return config, nil
}

// Save saves configuration to the specified path
func (c *Config) Save(path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, "Library", "Application Support", "ezdaw", "config.json")
}

// Update updates configuration fields. Values use the types produced by
// decoding JSON into a map. Nothing is changed when an update is invalid.
func (c *Config) Update(updates map[string]interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.cloneLocked()
	for key, value := range updates {
		switch key {
		case "engine":
			v, ok := value.(map[string]interface{})
			if !ok {
				return fmt.Errorf("invalid engine: %v", value)
			}
			if latency, ok := v["latency_ms"].(float64); ok {
				next.Engine.LatencyMS = latency
			}
			if dev, ok := v["input_device"].(string); ok {
				next.Engine.InputDevice = dev
			}
			if dev, ok := v["output_device"].(string); ok {
				next.Engine.OutputDevice = dev
			}
		case "backend":
			if v, ok := value.(string); ok {
				next.Backend = v
			}
		case "recording_mode":
			if v, ok := value.(string); ok {
				next.RecordingMode = v
			}
		case "max_record_time":
			if v, ok := value.(float64); ok {
				next.MaxRecordTime = int(v)
			}
		case "server_port":
			if v, ok := value.(float64); ok {
				next.ServerPort = int(v)
			}
		case "debug_level":
			if v, ok := value.(string); ok {
				next.DebugLevel = v
			}
		case "stats_interval_sec":
			if v, ok := value.(float64); ok {
				next.StatsInterval = int(v)
			}
		case "record_prealloc_sec":
			if v, ok := value.(float64); ok {
				next.RecordPrealloc = int(v)
			}
		case "hotkey":
			if v, ok := value.(map[string]interface{}); ok {
				if ctrl, ok := v["ctrl"].(bool); ok {
					next.Hotkey.Ctrl = ctrl
				}
				if shift, ok := v["shift"].(bool); ok {
					next.Hotkey.Shift = shift
				}
				if alt, ok := v["alt"].(bool); ok {
					next.Hotkey.Alt = alt
				}
				if cmd, ok := v["cmd"].(bool); ok {
					next.Hotkey.Cmd = cmd
				}
				if key, ok := v["key"].(string); ok {
					next.Hotkey.Key = key
				}
			}
		default:
			return fmt.Errorf("unknown setting: %s", key)
		}
	}

	if err := next.validateLocked(); err != nil {
		return err
	}
	c.copyFrom(next)
	return nil
}

// SetEngine replaces the persisted engine descriptor
func (c *Config) SetEngine(desc engine.Descriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Engine = EngineConfig{
		LatencyMS:    desc.LatencyMS,
		InputDevice:  desc.InputDevice,
		OutputDevice: desc.OutputDevice,
	}
}

// Descriptor returns the engine descriptor described by the configuration
func (c *Config) Descriptor() engine.Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return engine.Descriptor{
		LatencyMS:    c.Engine.LatencyMS,
		InputDevice:  c.Engine.InputDevice,
		OutputDevice: c.Engine.OutputDevice,
	}
}

// MaxRecordDuration returns the recording limit, zero meaning unlimited
func (c *Config) MaxRecordDuration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.MaxRecordTime) * time.Second
}

// StatsDuration returns the stats harvesting interval
func (c *Config) StatsDuration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.StatsInterval) * time.Second
}

// PreallocDuration returns how much clip storage is reserved up front
func (c *Config) PreallocDuration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.RecordPrealloc) * time.Second
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cloneLocked()
}

func (c *Config) cloneLocked() *Config {
	return &Config{
		Engine:         c.Engine,
		Backend:        c.Backend,
		Hotkey:         c.Hotkey,
		RecordingMode:  c.RecordingMode,
		MaxRecordTime:  c.MaxRecordTime,
		ServerPort:     c.ServerPort,
		DebugLevel:     c.DebugLevel,
		StatsInterval:  c.StatsInterval,
		RecordPrealloc: c.RecordPrealloc,
	}
}

func (c *Config) copyFrom(o *Config) {
	c.Engine = o.Engine
	c.Backend = o.Backend
	c.Hotkey = o.Hotkey
	c.RecordingMode = o.RecordingMode
	c.MaxRecordTime = o.MaxRecordTime
	c.ServerPort = o.ServerPort
	c.DebugLevel = o.DebugLevel
	c.StatsInterval = o.StatsInterval
	c.RecordPrealloc = o.RecordPrealloc
}

// Validate validates all configuration fields
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.validateLocked()
}

func (c *Config) validateLocked() error {
	latency := c.Engine.LatencyMS
	if math.IsNaN(latency) || latency <= 0 || latency > engine.MaxLatencyMS {
		return fmt.Errorf("invalid engine.latency_ms: %v (must be in (0, %v])", latency, engine.MaxLatencyMS)
	}

	if c.Backend != audio.BackendPortAudio && c.Backend != audio.BackendMalgo {
		return fmt.Errorf("invalid backend: %s (must be '%s' or '%s')", c.Backend,
			audio.BackendPortAudio, audio.BackendMalgo)
	}

	if c.RecordingMode != ModePressToHold && c.RecordingMode != ModeToggle {
		return fmt.Errorf("invalid recording_mode: %s (must be '%s' or '%s')", c.RecordingMode,
			ModePressToHold, ModeToggle)
	}

	if c.Hotkey.Key == "" {
		return fmt.Errorf("hotkey key cannot be empty")
	}

	if c.MaxRecordTime < 0 || c.MaxRecordTime > 3600 {
		return fmt.Errorf("invalid max_record_time: %d (must be between 0 and 3600 seconds)", c.MaxRecordTime)
	}

	if c.ServerPort < 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server_port: %d", c.ServerPort)
	}

	if c.StatsInterval < 0 {
		return fmt.Errorf("invalid stats_interval_sec: %d", c.StatsInterval)
	}

	if c.RecordPrealloc < 0 || c.RecordPrealloc > 600 {
		return fmt.Errorf("invalid record_prealloc_sec: %d (must be between 0 and 600)", c.RecordPrealloc)
	}

	return nil
}

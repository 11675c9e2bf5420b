// Package hotkey binds a global keyboard shortcut to the recording controls.
package hotkey

import (
	"context"
	"fmt"
	"sync"

	"github.com/decred/slog"
	"github.com/yok-tottii/ezdaw/internal/config"
	"github.com/yok-tottii/ezdaw/internal/recording"
	"golang.design/x/hotkey"
)

// RecordingMode defines how the hotkey triggers recording
type RecordingMode int

const (
	// PressToHold mode: record while key is held down
	PressToHold RecordingMode = iota
	// Toggle mode: each press flips the recording state
	Toggle
)

func (m RecordingMode) String() string {
	if m == Toggle {
		return config.ModeToggle
	}
	return config.ModePressToHold
}

// EventType represents the type of hotkey event
type EventType int

const (
	// Pressed indicates the hotkey was pressed in press-to-hold mode
	Pressed EventType = iota
	// Released indicates the hotkey was released in press-to-hold mode
	Released
	// Toggled indicates the hotkey was pressed in toggle mode
	Toggled
)

func (t EventType) String() string {
	switch t {
	case Pressed:
		return "pressed"
	case Released:
		return "released"
	case Toggled:
		return "toggled"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event represents a hotkey event
type Event struct {
	Type EventType
}

// Config holds hotkey configuration
type Config struct {
	Binding   config.HotkeyConfig
	Modifiers []hotkey.Modifier
	Key       hotkey.Key
	Mode      RecordingMode
}

// registration is the part of a system hotkey the manager uses
type registration interface {
	Register() error
	Unregister() error
	Keydown() <-chan hotkey.Event
	Keyup() <-chan hotkey.Event
}

// newRegistration creates system hotkeys. Tests replace it.
var newRegistration = func(mods []hotkey.Modifier, key hotkey.Key) registration {
	return hotkey.New(mods, key)
}

// Manager manages global hotkey registration and events
type Manager struct {
	hk        registration
	config    Config
	log       slog.Logger
	eventChan chan Event
	stopChan  chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	running   bool
}

// DefaultConfig returns the hotkey of the default application settings
func DefaultConfig() Config {
	def := config.DefaultConfig()
	cfg, err := FromSettings(def.Hotkey, def.RecordingMode)
	if err != nil {
		panic(err)
	}
	return cfg
}

// New creates a new hotkey manager with the default configuration
func New(log slog.Logger) *Manager {
	if log == nil {
		log = slog.Disabled
	}
	return &Manager{
		config:    DefaultConfig(),
		log:       log,
		eventChan: make(chan Event, 10),
		stopChan:  make(chan struct{}),
	}
}

// Register registers the hotkey with the system
func (m *Manager) Register(config Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("hotkey is already running, call Close() first")
	}

	m.config = config

	// Recreate channels (they may have been closed by a previous Close())
	m.stopChan = make(chan struct{})
	m.eventChan = make(chan Event, 10)

	hk := newRegistration(m.config.Modifiers, m.config.Key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("failed to register hotkey %s: %w", FormatHotkey(config.Binding), err)
	}

	m.hk = hk
	m.running = true

	m.wg.Add(1)
	go m.listen(hk, m.config.Mode, m.eventChan, m.stopChan)

	m.log.Infof("Registered hotkey %s (%s)", FormatHotkey(config.Binding), config.Mode)
	return nil
}

// RegisterDefault registers the current configuration
func (m *Manager) RegisterDefault() error {
	return m.Register(m.GetConfig())
}

// Reload replaces a running hotkey with a new configuration
func (m *Manager) Reload(config Config) error {
	if err := m.Close(); err != nil {
		m.log.Warnf("Unable to unregister previous hotkey: %v", err)
	}
	return m.Register(config)
}

// listen monitors hotkey events and sends them to the event channel
func (m *Manager) listen(hk registration, mode RecordingMode, events chan<- Event, stop <-chan struct{}) {
	defer m.wg.Done()

	send := func(e Event) bool {
		select {
		case events <- e:
			return true
		case <-stop:
			return false
		}
	}

	for {
		select {
		case <-hk.Keydown():
			e := Event{Type: Pressed}
			if mode == Toggle {
				e.Type = Toggled
			}
			if !send(e) {
				return
			}

		case <-hk.Keyup():
			if mode == PressToHold && !send(Event{Type: Released}) {
				return
			}

		case <-stop:
			return
		}
	}
}

// Events returns the event channel for receiving hotkey events
func (m *Manager) Events() <-chan Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eventChan
}

// Close unregisters the hotkey and stops listening
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	var unregisterErr error

	close(m.stopChan)
	m.wg.Wait()

	// Cleanup continues even if unregistering fails.
	if m.hk != nil {
		if err := m.hk.Unregister(); err != nil {
			unregisterErr = fmt.Errorf("failed to unregister hotkey: %w", err)
		}
		m.hk = nil
	}

	// Close event channel to notify consumers of shutdown
	close(m.eventChan)

	// A failed Unregister must not prevent the next Register.
	m.running = false

	return unregisterErr
}

// IsRunning returns whether the hotkey is currently registered and running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// GetConfig returns a deep copy of the current hotkey configuration
func (m *Manager) GetConfig() Config {
	m.mu.Lock()
	defer m.mu.Unlock()

	configCopy := m.config
	if m.config.Modifiers != nil {
		configCopy.Modifiers = make([]hotkey.Modifier, len(m.config.Modifiers))
		copy(configCopy.Modifiers, m.config.Modifiers)
	}

	return configCopy
}

// Recorder is the recording control driven by hotkey events
type Recorder interface {
	Start() (recording.ClipID, error)
	Stop() (recording.ClipID, error)
	Toggle() error
}

// Dispatch forwards hotkey events to rec until ctx is done or the event
// channel is closed.
func Dispatch(ctx context.Context, events <-chan Event, rec Recorder, log slog.Logger) {
	if log == nil {
		log = slog.Disabled
	}

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}

			var err error
			switch e.Type {
			case Pressed:
				_, err = rec.Start()
			case Released:
				_, err = rec.Stop()
			case Toggled:
				err = rec.Toggle()
			}
			if err != nil {
				log.Warnf("Hotkey %s: %v", e.Type, err)
			}
		}
	}
}

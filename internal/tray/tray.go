// Package tray shows the engine and recording state in the system tray and
// exposes the device and recording controls as menu items.
package tray

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/decred/slog"
	"github.com/getlantern/systray"
	"github.com/yok-tottii/ezdaw/internal/audio"
)

// State represents the current application state
type State int

const (
	// StateStopped means the engine is not running
	StateStopped State = iota
	// StateRunning means the engine is looping input to output
	StateRunning
	// StateRecording means the engine is running and capturing a clip
	StateRecording
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateRecording:
		return "recording"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const appName = "ezdaw"

// Config holds tray manager configuration
type Config struct {
	OnReady           func() // Called when systray is ready for initialization
	OnToggleEngine    func()
	OnToggleRecording func()
	OnSelectDevice    func(dir audio.Direction, name string) // Empty name selects the host default
	OnRefreshDevices  func()
	OnOpenStatus      func()
	OnQuit            func()
	Log               slog.Logger
}

// Device represents an audio device for the menu
type Device struct {
	Name      string // Empty for the host default
	Info      audio.DeviceInfo
	IsCurrent bool
}

// Label returns the menu title of the device
func (d Device) Label() string {
	prefix := ""
	if d.IsCurrent {
		prefix = "✓ "
	}
	if d.Name == "" {
		return prefix + "System Default"
	}
	return fmt.Sprintf("%s%s (%d Hz, %d ch)", prefix, d.Name, d.Info.SampleRate, d.Info.Channels)
}

// DevicesFromCatalog returns the menu entries for one direction of a
// catalog. The host default comes first, then devices sorted by name.
func DevicesFromCatalog(catalog audio.Catalog, dir audio.Direction, current string) []Device {
	devices := []Device{{IsCurrent: current == ""}}
	for _, name := range catalog.Names(dir) {
		info, _ := catalog.Lookup(dir, name)
		devices = append(devices, Device{Name: name, Info: info, IsCurrent: name == current})
	}
	return devices
}

// deviceMenu is a device submenu together with the goroutines serving its items
type deviceMenu struct {
	parent  *systray.MenuItem
	items   []*systray.MenuItem
	cancels []context.CancelFunc
}

// Manager manages the system tray icon and menu
type Manager struct {
	config Config
	log    slog.Logger

	stateMutex sync.RWMutex
	state      State
	ready      bool
	lastError  string

	menuStatus   *systray.MenuItem
	menuEngine   *systray.MenuItem
	menuRecord   *systray.MenuItem
	menuRefresh  *systray.MenuItem
	menuOpen     *systray.MenuItem
	menuQuit     *systray.MenuItem
	menuMu       sync.Mutex
	deviceMenus  map[audio.Direction]*deviceMenu
	pendingMenus map[audio.Direction][]Device

	// Icon cache
	iconStopped   []byte
	iconRunning   []byte
	iconRecording []byte
}

// NewManager creates a new tray manager
func NewManager(config Config) *Manager {
	log := config.Log
	if log == nil {
		log = slog.Disabled
	}
	m := &Manager{
		config:       config,
		log:          log,
		state:        StateStopped,
		deviceMenus:  make(map[audio.Direction]*deviceMenu),
		pendingMenus: make(map[audio.Direction][]Device),
	}

	// Load icons once at initialization
	m.iconStopped = m.loadIconData("stopped.png", dotIcon(color.NRGBA{0x9e, 0x9e, 0x9e, 0xff}))
	m.iconRunning = m.loadIconData("running.png", dotIcon(color.NRGBA{0x4c, 0xaf, 0x50, 0xff}))
	m.iconRecording = m.loadIconData("recording.png", dotIcon(color.NRGBA{0xe5, 0x39, 0x35, 0xff}))

	return m
}

// Run starts the system tray (blocking call)
func (m *Manager) Run() {
	systray.Run(m.onReady, m.onExit)
}

// onReady is called when systray is ready
func (m *Manager) onReady() {
	m.menuStatus = systray.AddMenuItem("Engine stopped", "Engine status")
	m.menuStatus.Disable()
	systray.AddSeparator()

	m.menuEngine = systray.AddMenuItem("Start Engine", "Start or stop audio loopback")
	m.menuRecord = systray.AddMenuItem("Start Recording", "Start or stop recording the input")

	m.menuMu.Lock()
	m.deviceMenus[audio.Input] = &deviceMenu{parent: systray.AddMenuItem("Input Device", "Select input device")}
	m.deviceMenus[audio.Output] = &deviceMenu{parent: systray.AddMenuItem("Output Device", "Select output device")}
	pending := m.pendingMenus
	m.pendingMenus = make(map[audio.Direction][]Device)
	m.menuMu.Unlock()

	m.menuRefresh = systray.AddMenuItem("Refresh Devices", "Enumerate audio devices again")
	m.menuOpen = systray.AddMenuItem("Open Status...", "Open the engine status in a browser")

	systray.AddSeparator()

	m.menuQuit = systray.AddMenuItem("Quit", "Quit the application")

	m.stateMutex.Lock()
	m.ready = true
	m.updateIcon()
	m.stateMutex.Unlock()

	for dir, devices := range pending {
		m.UpdateDeviceMenu(dir, devices)
	}

	go m.handleMenuEvents()

	if m.config.OnReady != nil {
		m.config.OnReady()
	}
}

// onExit is called when systray is exiting
func (m *Manager) onExit() {
	m.menuMu.Lock()
	defer m.menuMu.Unlock()
	for _, menu := range m.deviceMenus {
		for _, cancel := range menu.cancels {
			cancel()
		}
	}
}

func call(f func()) {
	if f != nil {
		f()
	}
}

// handleMenuEvents handles menu item clicks
func (m *Manager) handleMenuEvents() {
	for {
		select {
		case <-m.menuEngine.ClickedCh:
			call(m.config.OnToggleEngine)
		case <-m.menuRecord.ClickedCh:
			call(m.config.OnToggleRecording)
		case <-m.menuRefresh.ClickedCh:
			call(m.config.OnRefreshDevices)
		case <-m.menuOpen.ClickedCh:
			call(m.config.OnOpenStatus)
		case <-m.menuQuit.ClickedCh:
			call(m.config.OnQuit)
			systray.Quit()
			return
		}
	}
}

// SetState updates the tray icon and menu titles
func (m *Manager) SetState(state State) {
	m.stateMutex.Lock()
	defer m.stateMutex.Unlock()
	m.state = state
	m.updateIcon()
}

// SetError shows the last engine error in the status line. An empty
// message clears it.
func (m *Manager) SetError(message string) {
	m.stateMutex.Lock()
	defer m.stateMutex.Unlock()
	m.lastError = message
	m.updateIcon()
}

// GetState returns the displayed state
func (m *Manager) GetState() State {
	m.stateMutex.RLock()
	defer m.stateMutex.RUnlock()
	return m.state
}

// statusText returns the status line for the current state
func (m *Manager) statusText() string {
	text := "Engine " + m.state.String()
	if m.lastError != "" {
		text += ": " + m.lastError
	}
	return text
}

// updateIcon updates the tray icon based on the current state. The caller
// holds stateMutex.
func (m *Manager) updateIcon() {
	if !m.ready {
		return
	}

	switch m.state {
	case StateStopped:
		systray.SetIcon(m.iconStopped)
		m.menuEngine.SetTitle("Start Engine")
		m.menuRecord.SetTitle("Start Recording")
		m.menuRecord.Disable()
	case StateRunning:
		systray.SetIcon(m.iconRunning)
		m.menuEngine.SetTitle("Stop Engine")
		m.menuRecord.SetTitle("Start Recording")
		m.menuRecord.Enable()
	case StateRecording:
		systray.SetIcon(m.iconRecording)
		m.menuEngine.SetTitle("Stop Engine")
		m.menuRecord.SetTitle("Stop Recording")
		m.menuRecord.Enable()
	}
	systray.SetTooltip(appName + " - " + m.state.String())
	m.menuStatus.SetTitle(m.statusText())
}

// UpdateDeviceMenu replaces the entries of a device submenu. Before the tray
// is ready the entries are kept and shown once it is.
func (m *Manager) UpdateDeviceMenu(dir audio.Direction, devices []Device) {
	m.menuMu.Lock()
	defer m.menuMu.Unlock()

	menu, ok := m.deviceMenus[dir]
	if !ok {
		m.pendingMenus[dir] = devices
		return
	}

	for _, cancel := range menu.cancels {
		cancel()
	}
	menu.cancels = nil

	// systray cannot remove items, so stale entries are hidden
	for _, item := range menu.items {
		item.Hide()
	}
	menu.items = nil

	for _, device := range devices {
		tooltip := ""
		if device.Name == "" {
			tooltip = "Follow the system default device"
		}

		item := menu.parent.AddSubMenuItem(device.Label(), tooltip)
		menu.items = append(menu.items, item)

		ctx, cancel := context.WithCancel(context.Background())
		menu.cancels = append(menu.cancels, cancel)

		go func(name string, item *systray.MenuItem) {
			for {
				select {
				case <-ctx.Done():
					return
				case <-item.ClickedCh:
					if m.config.OnSelectDevice != nil {
						m.config.OnSelectDevice(dir, name)
					}
				}
			}
		}(device.Name, item)
	}

	m.log.Debugf("Updated %s device menu with %d entries", dir, len(devices))
}

// Quit quits the system tray
func (m *Manager) Quit() {
	systray.Quit()
}

// loadIconData loads an icon from the assets directory next to the
// executable, falling back to the generated icon.
func (m *Manager) loadIconData(filename string, fallback []byte) []byte {
	exe, err := os.Executable()
	if err != nil {
		m.log.Debugf("Unable to locate executable: %v", err)
		return fallback
	}

	iconPath := filepath.Join(filepath.Dir(exe), "assets", "icon", filename)
	data, err := os.ReadFile(iconPath)
	if err != nil {
		m.log.Tracef("Using generated icon for %s: %v", filename, err)
		return fallback
	}

	return data
}

// dotIcon renders a filled circle as a 22x22 PNG
func dotIcon(c color.NRGBA) []byte {
	const size = 22
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	center := float64(size-1) / 2
	radius := float64(size)/2 - 3
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := float64(x)-center, float64(y)-center
			if dx*dx+dy*dy <= radius*radius {
				img.SetNRGBA(x, y, c)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/yok-tottii/ezdaw/internal/api"
	"github.com/yok-tottii/ezdaw/internal/audio"
	"github.com/yok-tottii/ezdaw/internal/config"
	"github.com/yok-tottii/ezdaw/internal/engine"
	"github.com/yok-tottii/ezdaw/internal/hotkey"
	"github.com/yok-tottii/ezdaw/internal/logger"
	"github.com/yok-tottii/ezdaw/internal/notification"
	"github.com/yok-tottii/ezdaw/internal/permissions"
	"github.com/yok-tottii/ezdaw/internal/recording"
	"github.com/yok-tottii/ezdaw/internal/server"
	"github.com/yok-tottii/ezdaw/internal/tray"
)

// App holds all application state
type App struct {
	log        slog.Logger
	logs       *logger.Logger
	config     *config.Config
	configPath string
	headless   bool

	engine     *engine.Handle
	recorder   *recording.Manager
	httpServer *server.Server
	apiHandler *api.Handler
	trayMgr    *tray.Manager
	notifier   *notification.Notifier

	hotkeyMu  sync.Mutex
	hotkeyMgr *hotkey.Manager

	ctx          context.Context
	quit         context.CancelFunc
	shutdownOnce sync.Once
}

// checkPermissions warns about privacy permissions the engine or hotkey
// cannot work without.
func (a *App) checkPermissions() {
	report := permissions.Check()
	for _, kind := range report.Missing() {
		url, _ := permissions.SettingsURL(kind)
		a.log.Warnf("Permission %s missing (%s), grant it in %s", kind, report.Get(kind), url)
		if kind == permissions.Microphone {
			a.notifier.MicrophonePermissionDenied()
		}
	}
}

// startEngine starts the engine with the configured descriptor. A configured
// device that disappeared falls back to the host defaults without touching
// the saved configuration.
func (a *App) startEngine() {
	desc := a.config.Descriptor()
	err := a.engine.Start(a.ctx, desc)
	if errors.Is(err, audio.ErrDeviceNotFound) {
		a.log.Warnf("Configured device unavailable (%v), using the default devices", err)
		var cfgErr *engine.ConfigError
		if errors.As(err, &cfgErr) {
			a.notifier.DeviceNotFound(cfgErr.Device)
		}
		err = a.engine.Start(a.ctx, engine.Descriptor{LatencyMS: desc.LatencyMS})
	}
	if err != nil {
		a.log.Errorf("Unable to start engine: %v", err)
		a.notifier.EngineFailed(err.Error())
		return
	}
	a.log.Infof("Engine running: %s", a.engine.Descriptor())
}

// newTray creates the tray manager. Its menus appear once Run is called.
func (a *App) newTray() *tray.Manager {
	return tray.NewManager(tray.Config{
		OnReady:           a.onReady,
		OnToggleEngine:    a.handleToggleEngine,
		OnToggleRecording: a.handleToggleRecording,
		OnSelectDevice:    a.handleSelectDevice,
		OnRefreshDevices:  a.handleRefreshDevices,
		OnOpenStatus:      a.handleOpenStatus,
		OnQuit:            a.quit,
		Log:               a.logs.Logger(logger.SubsysTray),
	})
}

// onReady runs once the tray is up, on the main thread
func (a *App) onReady() {
	if err := a.registerHotkey(); err != nil {
		a.log.Errorf("Unable to register hotkey: %v", err)
		a.notifier.Error(fmt.Sprintf("Hotkey unavailable: %v", err))
	}
	a.refreshTray()
}

// registerHotkey registers the configured hotkey and starts dispatching its
// events to the recorder.
func (a *App) registerHotkey() error {
	binding, mode := a.hotkeySettings()
	hkConfig, err := hotkey.FromSettings(binding, mode)
	if err != nil {
		return err
	}

	a.hotkeyMu.Lock()
	defer a.hotkeyMu.Unlock()

	if a.hotkeyMgr == nil {
		a.hotkeyMgr = hotkey.New(a.logs.Logger(logger.SubsysHotkey))
	}
	if err := a.hotkeyMgr.Register(hkConfig); err != nil {
		return err
	}
	a.dispatchHotkey()

	if conflicts := hotkey.CheckConflicts(binding); len(conflicts) > 0 {
		a.log.Warnf("Hotkey %s conflicts with %s", hotkey.FormatHotkey(binding), conflicts[0].Name)
	}
	a.log.Infof("Hotkey %s registered (%s)", hotkey.FormatHotkey(binding), hkConfig.Mode)
	return nil
}

func (a *App) hotkeySettings() (config.HotkeyConfig, string) {
	snap := a.config.Clone()
	return snap.Hotkey, snap.RecordingMode
}

// dispatchHotkey forwards the events of the current registration. The
// goroutine ends when the registration is closed. The caller holds hotkeyMu.
func (a *App) dispatchHotkey() {
	events := a.hotkeyMgr.Events()
	rec := &trayRecorder{app: a}
	go hotkey.Dispatch(a.ctx, events, rec, a.logs.Logger(logger.SubsysHotkey))
}

// ReloadHotkey re-registers the hotkey from the current configuration. On
// failure the previous registration is restored.
func (a *App) ReloadHotkey() error {
	if a.headless {
		return nil
	}

	binding, mode := a.hotkeySettings()
	newConfig, err := hotkey.FromSettings(binding, mode)
	if err != nil {
		return err
	}

	a.hotkeyMu.Lock()
	defer a.hotkeyMu.Unlock()

	if a.hotkeyMgr == nil {
		a.hotkeyMgr = hotkey.New(a.logs.Logger(logger.SubsysHotkey))
	}
	oldConfig := a.hotkeyMgr.GetConfig()
	wasRunning := a.hotkeyMgr.IsRunning()

	if err := a.hotkeyMgr.Close(); err != nil {
		a.log.Warnf("Unable to unregister hotkey: %v", err)
	}

	if err := a.hotkeyMgr.Register(newConfig); err != nil {
		a.log.Errorf("Unable to register hotkey %s: %v", hotkey.FormatHotkey(binding), err)
		if wasRunning {
			if rbErr := a.hotkeyMgr.Register(oldConfig); rbErr != nil {
				return fmt.Errorf("hotkey registration failed: %w (restoring previous hotkey also failed: %v)", err, rbErr)
			}
			a.dispatchHotkey()
		}
		return fmt.Errorf("hotkey registration failed: %w", err)
	}
	a.dispatchHotkey()

	a.log.Infof("Hotkey reloaded: %s (%s)", hotkey.FormatHotkey(binding), newConfig.Mode)
	return nil
}

// trayRecorder drives the recorder and keeps the tray in sync
type trayRecorder struct {
	app *App
}

func (r *trayRecorder) Start() (recording.ClipID, error) {
	defer r.app.refreshTray()
	return r.app.recorder.Start()
}

func (r *trayRecorder) Stop() (recording.ClipID, error) {
	defer r.app.refreshTray()
	return r.app.recorder.Stop()
}

func (r *trayRecorder) Toggle() error {
	defer r.app.refreshTray()
	return r.app.recorder.Toggle()
}

// refreshTray brings the tray state, error line and device menus up to date
func (a *App) refreshTray() {
	if a.trayMgr == nil {
		return
	}

	state := tray.StateStopped
	switch {
	case a.recorder.GetState() == recording.Recording:
		state = tray.StateRecording
	case a.engine.IsRunning():
		state = tray.StateRunning
	}
	a.trayMgr.SetState(state)

	if err := a.engine.LastError(); err != nil {
		a.trayMgr.SetError(err.Error())
	} else {
		a.trayMgr.SetError("")
	}

	catalog := a.engine.Devices()
	desc := a.engine.Descriptor()
	a.trayMgr.UpdateDeviceMenu(audio.Input, tray.DevicesFromCatalog(catalog, audio.Input, desc.InputDevice))
	a.trayMgr.UpdateDeviceMenu(audio.Output, tray.DevicesFromCatalog(catalog, audio.Output, desc.OutputDevice))
}

func (a *App) handleToggleEngine() {
	defer a.refreshTray()

	if a.engine.IsRunning() {
		if a.recorder.GetState() == recording.Recording {
			if _, err := a.recorder.Stop(); err != nil {
				a.log.Warnf("Unable to finish recording: %v", err)
			}
		}
		if err := a.engine.Stop(); err != nil && !errors.Is(err, engine.ErrNotRunning) {
			a.log.Errorf("Unable to stop engine: %v", err)
		}
		return
	}

	if err := a.engine.Start(a.ctx, a.config.Descriptor()); err != nil {
		a.log.Errorf("Unable to start engine: %v", err)
		a.notifier.EngineFailed(err.Error())
	}
}

func (a *App) handleToggleRecording() {
	if err := (&trayRecorder{app: a}).Toggle(); err != nil {
		a.log.Warnf("Unable to toggle recording: %v", err)
	}
}

// handleSelectDevice restarts the engine on the chosen device and persists
// the choice once the engine accepted it.
func (a *App) handleSelectDevice(dir audio.Direction, name string) {
	defer a.refreshTray()

	desc := a.config.Descriptor()
	if a.engine.IsRunning() {
		desc = a.engine.Descriptor()
	}
	if dir == audio.Input {
		desc.InputDevice = name
	} else {
		desc.OutputDevice = name
	}

	ctx, cancel := context.WithTimeout(a.ctx, 10*time.Second)
	defer cancel()

	var err error
	if a.engine.IsRunning() {
		err = a.engine.Restart(ctx, desc)
	} else {
		err = a.engine.Start(ctx, desc)
	}
	if err != nil {
		a.log.Errorf("Unable to switch %s device: %v", dir, err)
		a.notifier.Error(fmt.Sprintf("Unable to use %q: %v", name, err))
		return
	}

	a.config.SetEngine(desc)
	if err := a.config.Save(a.configPath); err != nil {
		a.log.Errorf("Unable to save configuration: %v", err)
	}
}

func (a *App) handleRefreshDevices() {
	defer a.refreshTray()

	ctx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()
	if _, err := a.engine.RefreshDevices(ctx); err != nil {
		a.log.Warnf("Unable to refresh devices: %v", err)
	}
}

func (a *App) handleOpenStatus() {
	url := a.httpServer.URL() + "/api/engine"
	if err := exec.Command("open", url).Start(); err != nil {
		a.log.Errorf("Unable to open browser: %v", err)
		a.notifier.Error(fmt.Sprintf("Open %s manually", url))
	}
}

// announceClips logs every finished clip until the recorder is closed
func (a *App) announceClips() {
	lib := a.engine.Library()
	for id := range a.recorder.Clips() {
		clip, ok := lib.Get(id)
		if !ok {
			continue
		}
		a.log.Infof("Clip %s recorded (%v, %d frames)", id, clip.Duration().Round(time.Millisecond), clip.FrameCount())
		a.refreshTray()
		if !a.headless {
			a.notifier.ClipRecorded(clip.Duration())
		}
	}
}

// monitor keeps the tray in sync with engine state changes that happen
// without user action, like a device disappearing.
func (a *App) monitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr string
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := a.engine.LastError(); err != nil && err.Error() != lastErr {
			lastErr = err.Error()
			a.log.Warnf("Engine error: %v", err)
			if !a.engine.IsRunning() {
				a.notifier.EngineFailed(lastErr)
			}
		}
		a.refreshTray()
	}
}

// shutdown releases every component once, command sources first.
func (a *App) shutdown() error {
	var err error
	a.shutdownOnce.Do(func() {
		a.log.Info("Shutting down...")

		if a.httpServer != nil {
			if stopErr := a.httpServer.Stop(); stopErr != nil {
				a.log.Warnf("Unable to stop control API: %v", stopErr)
			}
		}

		a.hotkeyMu.Lock()
		if a.hotkeyMgr != nil {
			if closeErr := a.hotkeyMgr.Close(); closeErr != nil {
				a.log.Warnf("Unable to unregister hotkey: %v", closeErr)
			}
		}
		a.hotkeyMu.Unlock()

		if closeErr := a.recorder.Close(); closeErr != nil {
			a.log.Warnf("Unable to finish recording: %v", closeErr)
		}

		if stopErr := a.engine.Stop(); stopErr != nil && !errors.Is(stopErr, engine.ErrNotRunning) {
			err = fmt.Errorf("failed to stop engine: %w", stopErr)
		}

		if a.trayMgr != nil {
			a.trayMgr.Quit()
		}
	})
	return err
}

func (a *App) printBanner() {
	line := strings.Repeat("=", 50)
	fmt.Println(line)
	fmt.Printf("ezdaw v%s\n", version)
	fmt.Println(line)
	if a.engine.IsRunning() {
		fmt.Printf("Engine:   %s\n", a.engine.Descriptor())
	} else {
		fmt.Println("Engine:   stopped")
	}
	if a.httpServer.IsRunning() {
		fmt.Printf("Control:  %s\n", a.httpServer.URL())
	}
	if !a.headless {
		binding, mode := a.hotkeySettings()
		fmt.Printf("Hotkey:   %s (%s)\n", hotkey.FormatHotkey(binding), mode)
	}
	fmt.Println(line)
}

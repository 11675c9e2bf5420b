package tray

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/yok-tottii/ezdaw/internal/audio"
)

func TestNewManager(t *testing.T) {
	engineCalled := false
	recordCalled := false
	var selected string

	config := Config{
		OnToggleEngine: func() {
			engineCalled = true
		},
		OnToggleRecording: func() {
			recordCalled = true
		},
		OnSelectDevice: func(dir audio.Direction, name string) {
			selected = dir.String() + ":" + name
		},
	}

	manager := NewManager(config)

	if manager == nil {
		t.Fatal("Expected manager to be created")
	}

	if manager.GetState() != StateStopped {
		t.Errorf("Expected initial state to be StateStopped, got %v", manager.state)
	}

	call(manager.config.OnToggleEngine)
	if !engineCalled {
		t.Error("Expected OnToggleEngine callback to be called")
	}

	call(manager.config.OnToggleRecording)
	if !recordCalled {
		t.Error("Expected OnToggleRecording callback to be called")
	}

	manager.config.OnSelectDevice(audio.Input, "Mic")
	if selected != audio.Input.String()+":Mic" {
		t.Errorf("Unexpected device selection %q", selected)
	}
}

func TestCallbacksNil(t *testing.T) {
	manager := NewManager(Config{})

	// These should not panic even with nil callbacks
	call(manager.config.OnToggleEngine)
	call(manager.config.OnToggleRecording)
	call(manager.config.OnRefreshDevices)
	call(manager.config.OnOpenStatus)
	call(manager.config.OnQuit)
}

func TestSetState(t *testing.T) {
	manager := NewManager(Config{})

	for _, state := range []State{StateRunning, StateRecording, StateStopped} {
		manager.SetState(state)
		if manager.GetState() != state {
			t.Errorf("Expected state %v, got %v", state, manager.GetState())
		}
	}
}

func TestStatusText(t *testing.T) {
	manager := NewManager(Config{})

	manager.SetState(StateRunning)
	if got := manager.statusText(); got != "Engine running" {
		t.Errorf("Unexpected status %q", got)
	}

	manager.SetError("device unplugged")
	if got := manager.statusText(); got != "Engine running: device unplugged" {
		t.Errorf("Unexpected status %q", got)
	}

	manager.SetError("")
	if got := manager.statusText(); got != "Engine running" {
		t.Errorf("Unexpected status %q", got)
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateStopped:   "stopped",
		StateRunning:   "running",
		StateRecording: "recording",
		State(7):       "State(7)",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	}
}

func TestIcons(t *testing.T) {
	manager := NewManager(Config{})

	icons := [][]byte{manager.iconStopped, manager.iconRunning, manager.iconRecording}
	for i, icon := range icons {
		if len(icon) == 0 {
			t.Fatalf("Icon %d is empty", i)
		}
		img, err := png.Decode(bytes.NewReader(icon))
		if err != nil {
			t.Fatalf("Icon %d is not a PNG: %v", i, err)
		}
		if img.Bounds().Dx() != 22 {
			t.Errorf("Icon %d has width %d", i, img.Bounds().Dx())
		}
	}

	if bytes.Equal(icons[0], icons[1]) || bytes.Equal(icons[1], icons[2]) || bytes.Equal(icons[0], icons[2]) {
		t.Error("Expected icons to differ per state")
	}
}

func TestDevicesFromCatalog(t *testing.T) {
	catalog := audio.NewCatalog()
	catalog.Inputs["USB Mic"] = audio.DeviceInfo{SampleRate: 48000, Channels: 1, Format: audio.FormatI16}
	catalog.Inputs["Built-in"] = audio.DeviceInfo{SampleRate: 44100, Channels: 2, Format: audio.FormatF32}

	devices := DevicesFromCatalog(catalog, audio.Input, "USB Mic")
	if len(devices) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(devices))
	}

	if devices[0].Name != "" || devices[0].IsCurrent {
		t.Errorf("Expected default entry first and unselected, got %+v", devices[0])
	}
	if devices[1].Name != "Built-in" || devices[2].Name != "USB Mic" {
		t.Errorf("Expected devices sorted by name, got %q, %q", devices[1].Name, devices[2].Name)
	}
	if !devices[2].IsCurrent {
		t.Error("Expected USB Mic to be current")
	}

	if got := devices[2].Label(); got != "✓ USB Mic (48000 Hz, 1 ch)" {
		t.Errorf("Unexpected label %q", got)
	}
	if got := devices[0].Label(); got != "System Default" {
		t.Errorf("Unexpected label %q", got)
	}

	outputs := DevicesFromCatalog(catalog, audio.Output, "")
	if len(outputs) != 1 || !outputs[0].IsCurrent {
		t.Errorf("Expected only the selected default entry, got %+v", outputs)
	}
}

func TestUpdateDeviceMenuBeforeReady(t *testing.T) {
	manager := NewManager(Config{})

	devices := []Device{{IsCurrent: true}, {Name: "Mic"}}
	manager.UpdateDeviceMenu(audio.Input, devices)

	if got := manager.pendingMenus[audio.Input]; len(got) != 2 {
		t.Errorf("Expected pending menu to be kept, got %+v", got)
	}
}

func TestConcurrentStateUpdates(t *testing.T) {
	manager := NewManager(Config{})

	done := make(chan bool)

	for i := 0; i < 10; i++ {
		go func() {
			manager.SetState(StateRecording)
			time.Sleep(1 * time.Millisecond)
			manager.SetState(StateRunning)
			time.Sleep(1 * time.Millisecond)
			manager.SetState(StateStopped)
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	if manager.GetState() != StateStopped {
		t.Errorf("Expected final state StateStopped, got %v", manager.GetState())
	}
}

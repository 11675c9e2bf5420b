package engine

import (
	"fmt"

	"github.com/yok-tottii/ezdaw/internal/audio"
	"github.com/yok-tottii/ezdaw/internal/recording"
)

// Command is a request handled by the engine worker
type Command interface {
	fmt.Stringer
	command()
}

// RefreshDevices asks the worker to enumerate the host devices again
type RefreshDevices struct{}

// StartRecording asks the worker to start capturing the output signal
type StartRecording struct{}

// StopRecording asks the worker to stop capturing and store the clip
type StopRecording struct{}

func (RefreshDevices) command() {}
func (StartRecording) command() {}
func (StopRecording) command()  {}

func (RefreshDevices) String() string { return "RefreshDevices" }
func (StartRecording) String() string { return "StartRecording" }
func (StopRecording) String() string  { return "StopRecording" }

// Response is the answer of the worker to exactly one Command
type Response interface {
	response()
}

// DevicesRefreshed carries a complete new device catalog
type DevicesRefreshed struct {
	Catalog audio.Catalog
}

// RecordingStarted carries the ID of the clip being captured
type RecordingStarted struct {
	Clip recording.ClipID
}

// RecordingStopped carries the ID of the finished clip, now in the library
type RecordingStopped struct {
	Clip recording.ClipID
}

// Failed reports that a command could not be handled
type Failed struct {
	Err error
}

func (DevicesRefreshed) response() {}
func (RecordingStarted) response() {}
func (RecordingStopped) response() {}
func (Failed) response()           {}

// request pairs a command with the channel its response is delivered on.
// The reply channel is buffered so the worker never blocks on a caller that
// gave up waiting.
type request struct {
	cmd   Command
	reply chan Response
}

func newRequest(cmd Command) request {
	return request{cmd: cmd, reply: make(chan Response, 1)}
}

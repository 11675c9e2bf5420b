// Package engine runs the real-time loopback engine: an input stream looped
// to an output stream through a latency buffer, with the looped signal
// optionally captured into clips.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/decred/slog"

	"github.com/yok-tottii/ezdaw/internal/audio"
	"github.com/yok-tottii/ezdaw/internal/recording"
)

// config holds the tunables of a Handle
type config struct {
	log            slog.Logger
	statsInterval  time.Duration
	recordPrealloc time.Duration
	releaseTimeout time.Duration
	commandQueue   int
}

func fillConfig(opts ...Option) config {
	cfg := config{
		log:            slog.Disabled,
		statsInterval:  10 * time.Second,
		recordPrealloc: 10 * time.Second,
		releaseTimeout: recording.DefaultReleaseTimeout,
		commandQueue:   8,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Option is a functional engine option
type Option func(c *config)

// WithLogger sets the engine logger. Logger MUST NOT be nil.
func WithLogger(l slog.Logger) Option {
	return func(c *config) {
		c.log = l
	}
}

// WithStatsInterval sets how often the worker harvests the stream counters.
// Zero disables periodic harvesting; counters are still collected on stop.
func WithStatsInterval(d time.Duration) Option {
	return func(c *config) {
		c.statsInterval = d
	}
}

// WithRecordPrealloc sets how much clip storage is reserved when a recording
// starts, so the output callback rarely grows the clip.
func WithRecordPrealloc(d time.Duration) Option {
	return func(c *config) {
		c.recordPrealloc = d
	}
}

// WithReleaseTimeout bounds how long stopping a recording waits for the
// output callback to release the clip.
func WithReleaseTimeout(d time.Duration) Option {
	return func(c *config) {
		c.releaseTimeout = d
	}
}

// Status is a snapshot of the engine state
type Status struct {
	Running        bool               `json:"running"`
	Recording      bool               `json:"recording"`
	Descriptor     Descriptor         `json:"descriptor"`
	InputDevice    string             `json:"input_device,omitempty"`
	OutputDevice   string             `json:"output_device,omitempty"`
	Input          audio.StreamConfig `json:"input"`
	Output         audio.StreamConfig `json:"output"`
	Format         audio.Format       `json:"format"`
	LatencySamples int                `json:"latency_samples"`
	FramesPlayed   uint64             `json:"frames_played"`
	LastError      string             `json:"last_error,omitempty"`
}

// Handle is the caller side of the engine. All methods are safe for
// concurrent use; starting, restarting and stopping are serialized.
type Handle struct {
	cfg     config
	log     slog.Logger
	host    audio.Host
	library *recording.Library
	stats   *stats

	lifecycleMtx sync.Mutex

	mtx     sync.Mutex
	w       *worker
	desc    Descriptor
	catalog audio.Catalog
	lastErr error
	adopt   func(recording.ClipID)
}

// New creates a stopped engine on host. Finished clips are stored in library.
func New(host audio.Host, library *recording.Library, opts ...Option) *Handle {
	cfg := fillConfig(opts...)
	return &Handle{
		cfg:     cfg,
		log:     cfg.log,
		host:    host,
		library: library,
		stats:   newStats(),
		desc:    DefaultDescriptor(),
		catalog: audio.NewCatalog(),
	}
}

// Library returns the clip library the engine records into
func (h *Handle) Library() *recording.Library {
	return h.library
}

// MetricsHandler serves the engine metrics in the Prometheus format
func (h *Handle) MetricsHandler() http.Handler {
	return h.stats.handler()
}

// OnClipDetached registers f to be called with every clip the engine stored
// without a StopRecording call returning it: a recording cut short by a
// restart, a stop or a worker failure, or a stopped clip the output callback
// released late. f runs on its own goroutine.
func (h *Handle) OnClipDetached(f func(recording.ClipID)) {
	h.mtx.Lock()
	h.adopt = f
	h.mtx.Unlock()
}

func (h *Handle) clipDetached(id recording.ClipID) {
	h.mtx.Lock()
	f := h.adopt
	h.mtx.Unlock()
	if f != nil {
		go f(id)
	}
}

// Start starts the engine with desc. It fails with ErrAlreadyRunning if the
// engine runs; use Restart to switch descriptors.
func (h *Handle) Start(ctx context.Context, desc Descriptor) error {
	h.lifecycleMtx.Lock()
	defer h.lifecycleMtx.Unlock()

	if h.IsRunning() {
		return ErrAlreadyRunning
	}
	return h.restart(ctx, desc)
}

// Restart replaces the running worker with one built from desc.
//
// The new descriptor is resolved against freshly enumerated devices before
// the running worker is touched. If resolution fails the engine keeps
// running unchanged and the error is returned. If the new streams fail to
// open after the old worker was stopped, the previous descriptor is brought
// back when possible; otherwise the engine is left stopped. In both cases
// the error is returned and recorded as the last error.
func (h *Handle) Restart(ctx context.Context, desc Descriptor) error {
	h.lifecycleMtx.Lock()
	defer h.lifecycleMtx.Unlock()
	return h.restart(ctx, desc)
}

func (h *Handle) restart(ctx context.Context, desc Descriptor) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := prepare(h.host, desc, h.log)
	if err != nil {
		h.fail("restart", err)
		return err
	}

	h.mtx.Lock()
	old, oldDesc := h.w, h.desc
	h.mtx.Unlock()

	var stopErr error
	if old != nil {
		h.detach(old)
		if stopErr = old.stop(); stopErr != nil {
			h.fail("restart", stopErr)
			h.log.Errorf("Previous engine worker failed: %v", stopErr)
		}
	}

	w := newWorker(&h.cfg, h.host, h.library, h.stats, p, h.clipDetached)
	if err := w.start(); err != nil {
		h.fail("restart", err)
		h.log.Errorf("Unable to start engine (%s): %v", desc, err)
		if old != nil {
			h.revert(oldDesc)
		}
		return err
	}

	h.attach(w, desc, p.catalog)
	h.mtx.Lock()
	h.lastErr = stopErr
	h.mtx.Unlock()
	h.log.Infof("Engine running: %s (%s)", p, desc)
	return nil
}

// revert tries to bring back the engine with a previous descriptor after a
// failed restart.
func (h *Handle) revert(desc Descriptor) {
	p, err := prepare(h.host, desc, h.log)
	if err == nil {
		w := newWorker(&h.cfg, h.host, h.library, h.stats, p, h.clipDetached)
		if err = w.start(); err == nil {
			h.attach(w, desc, p.catalog)
			h.log.Warnf("Reverted engine to previous configuration (%s)", desc)
			return
		}
	}
	h.log.Errorf("Unable to revert engine to previous configuration: %v", err)
}

func (h *Handle) attach(w *worker, desc Descriptor, catalog audio.Catalog) {
	h.mtx.Lock()
	h.w = w
	h.desc = desc
	h.catalog = catalog.Clone()
	h.mtx.Unlock()

	h.stats.running.Set(1)
	h.stats.restarts.Inc()
	go h.watch(w)
}

// detach disassociates w from the handle if it is still the current worker.
func (h *Handle) detach(w *worker) bool {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	if h.w != w {
		return false
	}
	h.w = nil
	h.stats.running.Set(0)
	return true
}

// watch detaches a worker that exits on its own.
func (h *Handle) watch(w *worker) {
	<-w.done
	if w.err == nil || !h.detach(w) {
		return
	}
	h.log.Errorf("Engine stopped: %v", w.err)
	h.mtx.Lock()
	h.lastErr = w.err
	h.mtx.Unlock()
}

func (h *Handle) fail(op string, err error) {
	h.stats.cmdFailures.WithLabelValues(op).Inc()
	h.mtx.Lock()
	h.lastErr = err
	h.mtx.Unlock()
}

// Stop stops the engine and waits for the streams to be released.
func (h *Handle) Stop() error {
	h.lifecycleMtx.Lock()
	defer h.lifecycleMtx.Unlock()

	h.mtx.Lock()
	w := h.w
	h.mtx.Unlock()
	if w == nil {
		return ErrNotRunning
	}

	h.detach(w)
	if err := w.stop(); err != nil {
		h.fail("stop", err)
		return err
	}
	h.log.Infof("Engine stopped")
	return nil
}

// IsRunning reports whether a worker is associated with the handle
func (h *Handle) IsRunning() bool {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return h.w != nil
}

// Descriptor returns the descriptor of the running or last started engine
func (h *Handle) Descriptor() Descriptor {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return h.desc
}

// LastError returns the most recent start, restart or request failure. A
// successful start or restart clears it unless the worker it replaced
// failed while stopping.
func (h *Handle) LastError() error {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return h.lastErr
}

// Devices returns the last known device catalog
func (h *Handle) Devices() audio.Catalog {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return h.catalog.Clone()
}

// Status returns a snapshot of the engine state
func (h *Handle) Status() Status {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	st := Status{
		Running:    h.w != nil,
		Descriptor: h.desc,
	}
	if h.lastErr != nil {
		st.LastError = h.lastErr.Error()
	}
	if h.w == nil {
		return st
	}

	p := h.w.plan
	st.Recording = h.w.capture.Active()
	st.InputDevice = p.input.name
	st.OutputDevice = p.output.name
	st.Input = p.input.config
	st.Output = p.output.config
	st.Format = p.format
	st.LatencySamples = p.latency
	// The pair is set before start returns and never replaced.
	if pair := h.w.pair; pair != nil {
		st.FramesPlayed = pair.FramesPlayed()
	}
	return st
}

// Do sends cmd to the running worker and waits for its response. The wait
// honors ctx, but the worker still handles a command it already received.
func (h *Handle) Do(ctx context.Context, cmd Command) (Response, error) {
	h.mtx.Lock()
	w := h.w
	h.mtx.Unlock()
	if w == nil {
		return nil, ErrNotRunning
	}

	req := newRequest(cmd)
	select {
	case w.cmds <- req:
	case <-w.done:
		return nil, ErrNotRunning
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case resp := <-req.reply:
		return resp, nil
	case <-w.done:
		select {
		case resp := <-req.reply:
			return resp, nil
		default:
			return nil, ErrNotRunning
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RefreshDevices enumerates the host devices and replaces the cached
// catalog. While stopped the host is queried directly.
func (h *Handle) RefreshDevices(ctx context.Context) (audio.Catalog, error) {
	resp, err := h.Do(ctx, RefreshDevices{})
	if errors.Is(err, ErrNotRunning) {
		catalog, _, qerr := audio.Enumerate(h.host, h.log)
		if qerr != nil {
			h.fail("refresh", qerr)
			return audio.Catalog{}, qerr
		}
		resp, err = DevicesRefreshed{Catalog: catalog}, nil
	}
	if err != nil {
		return audio.Catalog{}, err
	}

	switch r := resp.(type) {
	case DevicesRefreshed:
		h.mtx.Lock()
		h.catalog = r.Catalog.Clone()
		h.mtx.Unlock()
		return r.Catalog, nil
	case Failed:
		h.fail("refresh", r.Err)
		return audio.Catalog{}, r.Err
	default:
		return audio.Catalog{}, fmt.Errorf("unexpected response %T", resp)
	}
}

// StartRecording starts capturing the looped signal into a new clip
func (h *Handle) StartRecording(ctx context.Context) (recording.ClipID, error) {
	resp, err := h.Do(ctx, StartRecording{})
	if err != nil {
		return recording.ClipID{}, err
	}
	switch r := resp.(type) {
	case RecordingStarted:
		return r.Clip, nil
	case Failed:
		h.fail("start_recording", r.Err)
		return recording.ClipID{}, r.Err
	default:
		return recording.ClipID{}, fmt.Errorf("unexpected response %T", resp)
	}
}

// StopRecording stops capturing and returns the ID of the clip, which is
// then available from the library.
func (h *Handle) StopRecording(ctx context.Context) (recording.ClipID, error) {
	resp, err := h.Do(ctx, StopRecording{})
	if err != nil {
		return recording.ClipID{}, err
	}
	switch r := resp.(type) {
	case RecordingStopped:
		return r.Clip, nil
	case Failed:
		h.fail("stop_recording", r.Err)
		return recording.ClipID{}, r.Err
	default:
		return recording.ClipID{}, fmt.Errorf("unexpected response %T", resp)
	}
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/decred/slog"

	"github.com/yok-tottii/ezdaw/internal/audio"
	"github.com/yok-tottii/ezdaw/internal/recording"
)

// worker owns one generation of the engine: the stream pair opened from a
// plan and the goroutine that serves commands for it. A worker is started
// once and stopped once.
type worker struct {
	cfg     *config
	log     slog.Logger
	host    audio.Host
	library *recording.Library
	stats   *stats

	plan    *plan
	capture recording.Capture
	pair    *streamPair

	// detached is called with clips the worker stored without a
	// StopRecording reply carrying them.
	detached func(recording.ClipID)
	// retry fires while a stopped clip waits for the output callback.
	retry <-chan time.Time

	// released is only touched by the worker goroutine.
	released bool

	cmds   chan request
	cancel context.CancelFunc
	done   chan struct{}

	// err is the fatal error of the worker. It is written before done is
	// closed.
	err error
}

func newWorker(cfg *config, host audio.Host, library *recording.Library, st *stats, p *plan,
	detached func(recording.ClipID)) *worker {

	w := &worker{
		cfg:      cfg,
		log:      cfg.log,
		host:     host,
		library:  library,
		stats:    st,
		plan:     p,
		detached: detached,
		cmds:     make(chan request, cfg.commandQueue),
		done:     make(chan struct{}),
	}
	w.capture.ReleaseTimeout = cfg.releaseTimeout
	return w
}

// start opens the stream pair and launches the worker goroutine. It returns
// once the streams run or failed to open.
func (w *worker) start() error {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	ready := make(chan error, 1)
	go w.run(ctx, ready)

	select {
	case err := <-ready:
		if err != nil {
			cancel()
			<-w.done
			return err
		}
		return nil
	case <-w.done:
		cancel()
		return w.err
	}
}

// stop signals the worker goroutine, waits for it to release the streams and
// returns its fatal error, if any.
func (w *worker) stop() error {
	w.cancel()
	<-w.done
	return w.err
}

func (w *worker) run(ctx context.Context, ready chan<- error) {
	defer close(w.done)
	defer func() {
		if r := recover(); r != nil {
			w.err = fmt.Errorf("%w: %v", ErrWorkerPanic, r)
			w.log.Criticalf("Engine worker panicked: %v\n%s", r, debug.Stack())
			w.release()
		}
	}()

	pair, err := openStreamPair(w.host, w.plan, &w.capture, w.log)
	if err != nil {
		ready <- err
		return
	}
	w.pair = pair
	w.stats.latency.Set(float64(w.plan.latency))
	ready <- nil

	var ticker *time.Ticker
	var tickC <-chan time.Time
	if w.cfg.statsInterval > 0 {
		ticker = time.NewTicker(w.cfg.statsInterval)
		defer ticker.Stop()
		tickC = ticker.C
	}

	var (
		lastFrames uint64
		lastTick   = time.Now()
		overflowed bool
	)
	collect := func(now time.Time) {
		frames := pair.FramesPlayed()
		over, under := pair.ring.TakeCounters()
		h := harvest{
			overflows:  over,
			underflows: under,
			frames:     frames - lastFrames,
			recorded:   pair.recorded.Swap(0),
			dt:         now.Sub(lastTick),
		}
		lastFrames, lastTick = frames, now
		w.stats.add(h)

		if h.overflows > 0 && overflowed {
			w.log.Warnf("Latency buffer overflowed %d times in the last %s; "+
				"the output device is not keeping up", h.overflows, h.dt.Round(time.Millisecond))
		}
		overflowed = h.overflows > 0
		if h.frames > 0 {
			w.log.Debugf("Stats for the last %s: %d frames, %d overflows, %d underflows, %d recorded",
				h.dt.Round(time.Millisecond), h.frames, h.overflows, h.underflows, h.recorded)
		}
	}

	for {
		select {
		case <-ctx.Done():
			collect(time.Now())
			w.release()
			return

		case req := <-w.cmds:
			resp := w.handle(req.cmd)
			if f, ok := resp.(Failed); ok {
				w.log.Debugf("%s failed: %v", req.cmd, f.Err)
			}
			req.reply <- resp

		case <-w.retry:
			w.finishPending()

		case now := <-tickC:
			collect(now)
		}
	}
}

// release closes the stream pair. A clip still being recorded, or stopped
// but not yet released by the output callback, is kept in the library.
func (w *worker) release() {
	if w.pair != nil && !w.released {
		w.released = true
		if err := w.pair.close(); err != nil {
			w.log.Errorf("Unable to close streams: %v", err)
		}
	}

	w.retry = nil
	if clip := w.capture.Detach(); clip != nil {
		w.store(clip)
		w.log.Infof("Stored unfinished recording %s (%s)", clip.ID, clip.Duration())
		w.notifyDetached(clip.ID)
	}
}

// finishPending retries handing off a stopped clip the output callback did
// not release in time.
func (w *worker) finishPending() {
	w.retry = nil
	clip, err := w.capture.Stop()
	switch {
	case errors.Is(err, recording.ErrCaptureBusy):
		w.log.Warnf("Output callback still holds the stopped clip")
		w.scheduleRetry()
		return
	case err != nil:
		return
	}
	w.store(clip)
	w.log.Infof("Recorded clip %s after delayed release: %d frames (%s)",
		clip.ID, clip.FrameCount(), clip.Duration())
	w.notifyDetached(clip.ID)
}

func (w *worker) scheduleRetry() {
	d := w.cfg.releaseTimeout
	if d <= 0 {
		d = recording.DefaultReleaseTimeout
	}
	w.retry = time.After(d)
}

func (w *worker) store(clip *recording.Clip) {
	w.stats.recording.Set(0)
	w.library.Add(clip)
}

func (w *worker) notifyDetached(id recording.ClipID) {
	if w.detached != nil {
		w.detached(id)
	}
}

// handle serves one command. It runs on the worker goroutine, never on an
// audio callback.
func (w *worker) handle(cmd Command) Response {
	switch cmd.(type) {
	case RefreshDevices:
		catalog, _, err := audio.Enumerate(w.host, w.log)
		if err != nil {
			return Failed{Err: err}
		}
		return DevicesRefreshed{Catalog: catalog.Clone()}

	case StartRecording:
		prealloc := int(w.cfg.recordPrealloc.Seconds() * float64(w.plan.format.SamplesPerSecond()))
		clip, err := w.capture.Start(w.plan.format, prealloc)
		if err != nil {
			return Failed{Err: err}
		}
		w.stats.recording.Set(1)
		w.log.Infof("Recording clip %s", clip.ID)
		return RecordingStarted{Clip: clip.ID}

	case StopRecording:
		clip, err := w.capture.Stop()
		if errors.Is(err, recording.ErrCaptureBusy) && w.retry == nil {
			w.scheduleRetry()
		}
		if err != nil {
			return Failed{Err: err}
		}
		w.store(clip)
		w.log.Infof("Recorded clip %s: %d frames (%s)", clip.ID, clip.FrameCount(), clip.Duration())
		return RecordingStopped{Clip: clip.ID}

	default:
		return Failed{Err: fmt.Errorf("unknown command %T", cmd)}
	}
}

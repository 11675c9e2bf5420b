package engine

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/decred/slog"

	"github.com/yok-tottii/ezdaw/internal/audio"
	"github.com/yok-tottii/ezdaw/internal/recording"
)

// streamPair is an open input stream looped back to an open output stream
// through a latency buffer.
type streamPair struct {
	format  audio.Format
	ring    *audio.LatencyBuffer
	capture *recording.Capture

	input  audio.Stream
	output audio.Stream

	// Position of the next output slot. Only the output callback touches
	// these.
	channel int
	frame   uint64

	framesPlayed atomic.Uint64
	recorded     atomic.Uint64
}

// openStreamPair opens and starts both streams described by p.
func openStreamPair(host audio.Host, p *plan, capture *recording.Capture, log slog.Logger) (*streamPair, error) {
	sp := &streamPair{
		format:  p.format,
		ring:    audio.NewLatencyBuffer(p.latency),
		capture: capture,
	}

	var err error
	sp.input, err = host.OpenStream(p.input.device, audio.Input, p.input.config,
		sp.inputCallback(p.input.config.Format))
	if err != nil {
		return nil, &ConfigError{Direction: audio.Input, Device: p.input.name, Err: err}
	}

	sp.output, err = host.OpenStream(p.output.device, audio.Output, p.output.config,
		sp.outputCallback(p.output.config.Format))
	if err != nil {
		sp.input.Close()
		return nil, &ConfigError{Direction: audio.Output, Device: p.output.name, Err: err}
	}

	if err := sp.output.Start(); err != nil {
		sp.close()
		return nil, fmt.Errorf("failed to start output stream: %w", err)
	}
	if err := sp.input.Start(); err != nil {
		sp.close()
		return nil, fmt.Errorf("failed to start input stream: %w", err)
	}

	log.Infof("Looping %q (%d Hz, %d ch, %s) to %q (%d Hz, %d ch, %s) with %d samples of latency",
		p.input.name, p.input.config.SampleRate, p.input.config.Channels, p.input.config.Format,
		p.output.name, p.output.config.SampleRate, p.output.config.Channels, p.output.config.Format,
		p.latency)

	return sp, nil
}

// close stops and releases both streams, output first.
func (sp *streamPair) close() error {
	var errs []error
	if sp.output != nil {
		if err := sp.output.Close(); err != nil {
			errs = append(errs, fmt.Errorf("output: %w", err))
		}
	}
	if sp.input != nil {
		if err := sp.input.Close(); err != nil {
			errs = append(errs, fmt.Errorf("input: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (sp *streamPair) inputCallback(format audio.SampleFormat) any {
	switch format {
	case audio.FormatU16:
		return func(in []uint16) {
			for _, v := range in {
				sp.ring.Push(audio.U16ToFloat(v))
			}
		}
	case audio.FormatI16:
		return func(in []int16) {
			for _, v := range in {
				sp.ring.Push(audio.I16ToFloat(v))
			}
		}
	default:
		return func(in []float32) {
			for _, v := range in {
				sp.ring.Push(v)
			}
		}
	}
}

func (sp *streamPair) outputCallback(format audio.SampleFormat) any {
	switch format {
	case audio.FormatU16:
		return func(out []uint16) {
			clip := sp.capture.Begin()
			for i := range out {
				out[i] = audio.FloatToU16(sp.next(clip))
			}
			sp.endPeriod()
		}
	case audio.FormatI16:
		return func(out []int16) {
			clip := sp.capture.Begin()
			for i := range out {
				out[i] = audio.FloatToI16(sp.next(clip))
			}
			sp.endPeriod()
		}
	default:
		return func(out []float32) {
			clip := sp.capture.Begin()
			for i := range out {
				out[i] = sp.next(clip)
			}
			sp.endPeriod()
		}
	}
}

// next produces the sample for the current output slot. A clip only starts
// taking samples on the first channel of a frame.
func (sp *streamPair) next(clip *recording.Clip) float32 {
	v, _ := sp.ring.Pop()
	if clip != nil && (sp.channel == 0 || !clip.IsEmpty()) {
		clip.PushSample(v)
		sp.recorded.Add(1)
	}

	sp.channel++
	if sp.channel >= sp.format.Channels {
		sp.channel = 0
		sp.frame++
	}
	return v
}

func (sp *streamPair) endPeriod() {
	sp.capture.End()
	sp.framesPlayed.Store(sp.frame)
}

// FramesPlayed returns the number of complete frames written to the output
func (sp *streamPair) FramesPlayed() uint64 {
	return sp.framesPlayed.Load()
}

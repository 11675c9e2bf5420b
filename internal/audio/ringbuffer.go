package audio

import (
	"math"
	"sync/atomic"
)

// LatencyBuffer is a fixed-capacity circular buffer of normalized samples
// connecting the input callback (producer) to the output callback (consumer).
//
// Exactly one goroutine may call Push and exactly one goroutine may call Pop.
// Neither call blocks, allocates or takes a lock. The buffer is created with
// latency samples of silence already queued, which fixes the delay between a
// sample arriving on the input and leaving on the output.
type LatencyBuffer struct {
	buf     []float32
	size    uint64
	latency int

	// head is only written by the consumer, tail only by the producer.
	head atomic.Uint64
	tail atomic.Uint64

	overflows  atomic.Uint64
	underflows atomic.Uint64
}

// LatencySamples converts a latency in milliseconds to a count of interleaved
// samples for a stream with the given rate and channel count.
func LatencySamples(latencyMS float64, sampleRate, channels int) int {
	if latencyMS <= 0 || sampleRate <= 0 || channels <= 0 {
		return 0
	}
	frames := math.Round(latencyMS / 1000 * float64(sampleRate))
	return int(frames) * channels
}

// NewLatencyBuffer creates a buffer with capacity for twice latency samples,
// prefilled with latency samples of silence.
func NewLatencyBuffer(latency int) *LatencyBuffer {
	if latency < 0 {
		latency = 0
	}
	size := 2 * latency
	if size < 2 {
		size = 2
	}

	b := &LatencyBuffer{
		buf:     make([]float32, size),
		size:    uint64(size),
		latency: latency,
	}
	// The slice is already zeroed; publishing the tail is the prefill.
	b.tail.Store(uint64(latency))
	return b
}

// Push appends v. It returns false and drops v when the buffer is full.
func (b *LatencyBuffer) Push(v float32) bool {
	tail := b.tail.Load()
	if tail-b.head.Load() >= b.size {
		b.overflows.Add(1)
		return false
	}
	b.buf[tail%b.size] = v
	b.tail.Store(tail + 1)
	return true
}

// Pop removes the oldest sample. It returns silence and false when the buffer
// is empty.
func (b *LatencyBuffer) Pop() (float32, bool) {
	head := b.head.Load()
	if head == b.tail.Load() {
		b.underflows.Add(1)
		return 0, false
	}
	v := b.buf[head%b.size]
	b.head.Store(head + 1)
	return v, true
}

// Len returns the number of queued samples. The value is a snapshot when
// called concurrently with Push or Pop.
func (b *LatencyBuffer) Len() int {
	return int(b.tail.Load() - b.head.Load())
}

// Cap returns the capacity in samples.
func (b *LatencyBuffer) Cap() int {
	return int(b.size)
}

// Latency returns the number of silence samples the buffer was primed with.
func (b *LatencyBuffer) Latency() int {
	return b.latency
}

// Overflows returns the number of samples dropped by Push.
func (b *LatencyBuffer) Overflows() uint64 {
	return b.overflows.Load()
}

// Underflows returns the number of Pop calls that found the buffer empty.
func (b *LatencyBuffer) Underflows() uint64 {
	return b.underflows.Load()
}

// TakeCounters returns the overflow and underflow counts accumulated since
// the previous call and resets them.
func (b *LatencyBuffer) TakeCounters() (overflows, underflows uint64) {
	return b.overflows.Swap(0), b.underflows.Swap(0)
}

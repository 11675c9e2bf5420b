package audio

import (
	"sync"
	"testing"
)

func TestLatencySamples(t *testing.T) {
	tests := []struct {
		name     string
		ms       float64
		rate     int
		channels int
		want     int
	}{
		{"5ms stereo 48k", 5, 48000, 2, 480},
		{"rounds frames", 1, 44100, 2, 88},
		{"rounds up", 0.5, 44100, 1, 22},
		{"mono", 10, 16000, 1, 160},
		{"zero latency", 0, 48000, 2, 0},
		{"bad rate", 5, 0, 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LatencySamples(tt.ms, tt.rate, tt.channels); got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestLatencyBuffer_Prefill(t *testing.T) {
	b := NewLatencyBuffer(4)

	if b.Cap() != 8 {
		t.Errorf("Expected capacity 8, got %d", b.Cap())
	}
	if b.Len() != 4 {
		t.Errorf("Expected 4 queued samples, got %d", b.Len())
	}
	if b.Latency() != 4 {
		t.Errorf("Expected latency 4, got %d", b.Latency())
	}

	empty := NewLatencyBuffer(0)
	if empty.Cap() != 2 || empty.Len() != 0 {
		t.Errorf("Expected cap 2 len 0, got cap %d len %d", empty.Cap(), empty.Len())
	}
}

func TestLatencyBuffer_Offset(t *testing.T) {
	const latency = 6
	b := NewLatencyBuffer(latency)

	var out []float32
	for i := 1; i <= 50; i++ {
		if !b.Push(float32(i)) {
			t.Fatalf("push %d overflowed", i)
		}
		v, ok := b.Pop()
		if !ok {
			t.Fatalf("pop %d underflowed", i)
		}
		out = append(out, v)
	}

	for i, v := range out {
		want := float32(0)
		if i >= latency {
			want = float32(i - latency + 1)
		}
		if v != want {
			t.Fatalf("pop %d: expected %v, got %v", i, want, v)
		}
	}
}

func TestLatencyBuffer_Overflow(t *testing.T) {
	b := NewLatencyBuffer(2)

	// Two silence samples are queued, so only two more fit.
	for i := 1; i <= 5; i++ {
		b.Push(float32(i))
	}
	if b.Overflows() != 3 {
		t.Errorf("Expected 3 overflows, got %d", b.Overflows())
	}

	want := []float32{0, 0, 1, 2}
	for i, w := range want {
		v, ok := b.Pop()
		if !ok || v != w {
			t.Fatalf("pop %d: expected %v, got %v (ok=%v)", i, w, v, ok)
		}
	}
}

func TestLatencyBuffer_Underflow(t *testing.T) {
	b := NewLatencyBuffer(1)

	b.Pop()
	for i := 0; i < 3; i++ {
		v, ok := b.Pop()
		if ok || v != 0 {
			t.Fatalf("Expected silence on empty buffer, got %v (ok=%v)", v, ok)
		}
	}
	if b.Underflows() != 3 {
		t.Errorf("Expected 3 underflows, got %d", b.Underflows())
	}

	b.Push(0.25)
	b.Push(0.5)
	if v, _ := b.Pop(); v != 0.25 {
		t.Errorf("Expected 0.25 after underflow, got %v", v)
	}
	if v, _ := b.Pop(); v != 0.5 {
		t.Errorf("Expected 0.5, got %v", v)
	}

	over, under := b.TakeCounters()
	if over != 0 || under != 3 {
		t.Errorf("Expected counters 0/3, got %d/%d", over, under)
	}
	if b.Underflows() != 0 {
		t.Error("TakeCounters should reset the counters")
	}
}

func TestLatencyBuffer_Concurrent(t *testing.T) {
	const n = 100000
	b := NewLatencyBuffer(64)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= n; {
			if b.Push(float32(i)) {
				i++
			}
		}
	}()

	next := float32(1)
	for next <= n {
		v, ok := b.Pop()
		if !ok || v == 0 {
			continue
		}
		if v != next {
			t.Fatalf("Expected %v, got %v", next, v)
		}
		next++
	}
	wg.Wait()
}

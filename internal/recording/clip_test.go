package recording

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/yok-tottii/ezdaw/internal/audio"
)

func TestPushSample(t *testing.T) {
	clip := NewClip(audio.Format{FrameRate: 48000, Channels: 2}, 0)
	if !clip.IsEmpty() {
		t.Fatal("New clip should be empty")
	}

	for _, v := range []float32{0.1, 0.2, 0.3} {
		clip.PushSample(v)
	}

	frames := clip.Frames()
	if len(frames) != 2 {
		t.Fatalf("Expected 2 frames, got %d", len(frames))
	}
	if len(frames[0]) != 2 || frames[0][0] != 0.1 || frames[0][1] != 0.2 {
		t.Errorf("Unexpected first frame %v", frames[0])
	}
	if len(frames[1]) != 1 || frames[1][0] != 0.3 {
		t.Errorf("Unexpected second frame %v", frames[1])
	}
}

func TestClipShape(t *testing.T) {
	for channels := 1; channels <= 6; channels++ {
		for n := 0; n <= 25; n++ {
			clip := NewClip(audio.Format{FrameRate: 1000, Channels: channels}, n)
			var want []float32
			for i := 0; i < n; i++ {
				v := float32(i) / 100
				clip.PushSample(v)
				want = append(want, v)
			}

			frames := clip.Frames()
			if exp := (n + channels - 1) / channels; len(frames) != exp {
				t.Fatalf("%d samples, %d channels: expected %d frames, got %d",
					n, channels, exp, len(frames))
			}

			var got []float32
			for i, f := range frames {
				if i < len(frames)-1 && len(f) != channels {
					t.Fatalf("Frame %d has %d samples, want %d", i, len(f), channels)
				}
				if len(f) == 0 || len(f) > channels {
					t.Fatalf("Frame %d has invalid size %d", i, len(f))
				}
				got = append(got, f...)
			}
			if len(got) != len(want) {
				t.Fatalf("Expected %d samples, got %d", len(want), len(got))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("Sample %d: expected %v, got %v", i, want[i], got[i])
				}
			}
		}
	}
}

func TestClipSample(t *testing.T) {
	clip := NewClip(audio.Format{FrameRate: 10, Channels: 2}, 0)
	for _, v := range []float32{0.1, 0.2, 0.3, 0.4, 0.5} {
		clip.PushSample(v)
	}

	var src Source = clip
	tests := []struct {
		name    string
		t       float64
		channel int
		want    float32
	}{
		{"first frame left", 0, 0, 0.1},
		{"first frame right", 0.05, 1, 0.2},
		{"second frame", 0.1, 1, 0.4},
		{"partial frame missing channel", 0.2, 1, 0},
		{"past the end", 1, 0, 0},
		{"negative time", -1, 0, 0},
		{"bad channel", 0, 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := src.Sample(tt.t, tt.channel); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}

	if d := clip.Duration(); d != 300*time.Millisecond {
		t.Errorf("Expected 300ms, got %v", d)
	}
}

func TestClipID(t *testing.T) {
	id := NewClipID()
	if id.IsZero() {
		t.Fatal("New ID should not be zero")
	}

	parsed, err := ParseClipID(id.String())
	if err != nil || parsed != id {
		t.Errorf("ParseClipID(%q) = %s, %v", id, parsed, err)
	}
	if _, err := ParseClipID("not-a-uuid"); err == nil {
		t.Error("Expected error for invalid ID")
	}

	data, err := json.Marshal(struct {
		ID ClipID `json:"id"`
	}{id})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"id":"`+id.String()+`"}` {
		t.Errorf("Unexpected JSON %s", data)
	}
}

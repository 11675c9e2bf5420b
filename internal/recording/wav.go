package recording

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/yok-tottii/ezdaw/internal/audio"
)

const (
	wavBitDepth  = 16
	wavPCMFormat = 1
)

// EncodeWAV writes clip to w as 16-bit PCM WAV. A trailing partial frame is
// padded with silence.
func EncodeWAV(w io.Writer, clip *Clip) error {
	if clip.Format.FrameRate <= 0 || clip.Format.Channels <= 0 {
		return fmt.Errorf("invalid clip format: %+v", clip.Format)
	}

	channels := clip.Format.Channels
	data := make([]int, clip.FrameCount()*channels)
	for i, v := range clip.Samples() {
		data[i] = int(audio.FloatToI16(v))
	}

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: channels,
			SampleRate:  clip.Format.FrameRate,
		},
		Data:           data,
		SourceBitDepth: wavBitDepth,
	}

	// The encoder seeks back to patch the header sizes.
	ws := &writeSeeker{}
	enc := wav.NewEncoder(ws, clip.Format.FrameRate, wavBitDepth, channels, wavPCMFormat)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to encode clip: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize wav: %w", err)
	}

	_, err := w.Write(ws.buf)
	return err
}

// writeSeeker is an in-memory io.WriteSeeker
type writeSeeker struct {
	buf []byte
	pos int
}

func (ws *writeSeeker) Write(p []byte) (int, error) {
	end := ws.pos + len(p)
	if end > len(ws.buf) {
		if end > cap(ws.buf) {
			grown := make([]byte, end, 2*end)
			copy(grown, ws.buf)
			ws.buf = grown
		} else {
			ws.buf = ws.buf[:end]
		}
	}
	copy(ws.buf[ws.pos:], p)
	ws.pos = end
	return len(p), nil
}

func (ws *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(ws.pos) + offset
	case io.SeekEnd:
		abs = int64(len(ws.buf)) + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("negative position")
	}
	ws.pos = int(abs)
	return abs, nil
}

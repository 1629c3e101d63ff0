package capture

import (
	"encoding/binary"
	"errors"
	"testing"

	"librarian/audio"
	"librarian/encoder"
)

func rampPCM(nSamples int) []byte {
	pcm := make([]byte, nSamples*2)
	for i := 0; i < nSamples; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(i%2000))
	}
	return pcm
}

func TestRecorderStartStop(t *testing.T) {
	nSamples := encoder.SampleRate // 1s of audio
	ctx := audio.NewFakeContext(rampPCM(nSamples))
	dev, err := ctx.NewCapture(nil, audio.CaptureConfig{SampleRate: encoder.SampleRate, Channels: 1})
	if err != nil {
		t.Fatalf("NewCapture: %v", err)
	}

	var levels int
	rec := NewRecorder(dev, func(rms float64) { levels++ })

	if rec.Recording() {
		t.Fatal("Recording() true before Start")
	}
	if err := rec.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !rec.Recording() {
		t.Fatal("Recording() false after Start")
	}

	buf, err := rec.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if buf == nil {
		t.Fatal("Stop returned nil buffer after recording")
	}
	if rec.Recording() {
		t.Fatal("Recording() true after Stop")
	}
	if buf.Frames != uint64(nSamples) {
		t.Errorf("Frames = %d, want %d", buf.Frames, nSamples)
	}
	if buf.Empty() {
		t.Error("1s buffer reported empty")
	}
	if buf.ContentType != "audio/flac" {
		t.Errorf("ContentType = %q", buf.ContentType)
	}
	if len(buf.Data) < 4 || string(buf.Data[:4]) != "fLaC" {
		t.Error("buffer payload is not FLAC")
	}
	if buf.StoppedAt.IsZero() {
		t.Error("StoppedAt not set")
	}
	if levels == 0 {
		t.Error("level callback never invoked")
	}
}

func TestRecorderDoubleStart(t *testing.T) {
	ctx := audio.NewFakeContext(rampPCM(encoder.BlockSize))
	dev, _ := ctx.NewCapture(nil, audio.CaptureConfig{})
	rec := NewRecorder(dev, nil)

	if err := rec.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := rec.Start(); !errors.Is(err, ErrAlreadyRecording) {
		t.Fatalf("second Start err = %v, want ErrAlreadyRecording", err)
	}
	if _, err := rec.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestRecorderStopWithoutStart(t *testing.T) {
	ctx := audio.NewFakeContext(nil)
	dev, _ := ctx.NewCapture(nil, audio.CaptureConfig{})
	rec := NewRecorder(dev, nil)

	buf, err := rec.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if buf != nil {
		t.Fatal("Stop without Start should return nil buffer")
	}
}

func TestRecorderDeviceUnavailable(t *testing.T) {
	ctx := audio.NewFailingContext(errors.New("no mic"))
	dev, _ := ctx.NewCapture(nil, audio.CaptureConfig{})
	rec := NewRecorder(dev, nil)

	err := rec.Start()
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("Start err = %v, want ErrDeviceUnavailable", err)
	}
	if rec.Recording() {
		t.Fatal("Recording() true after failed Start")
	}
	// A fresh Start must not be blocked by the failed attempt.
	if err := rec.Start(); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("retry Start err = %v, want ErrDeviceUnavailable", err)
	}
}

func TestBufferEmpty(t *testing.T) {
	// Under 100ms of frames counts as empty.
	short := &Buffer{Frames: encoder.SampleRate / 20}
	if !short.Empty() {
		t.Error("50ms buffer should be empty")
	}
	ok := &Buffer{Frames: encoder.SampleRate / 5}
	if ok.Empty() {
		t.Error("200ms buffer should not be empty")
	}
	var nilBuf *Buffer
	if !nilBuf.Empty() {
		t.Error("nil buffer should be empty")
	}
}

func TestRecorderShortTapIsEmpty(t *testing.T) {
	ctx := audio.NewFakeContext(rampPCM(encoder.SampleRate / 50)) // 20ms
	dev, _ := ctx.NewCapture(nil, audio.CaptureConfig{})
	rec := NewRecorder(dev, nil)

	if err := rec.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	buf, err := rec.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !buf.Empty() {
		t.Errorf("20ms recording should be empty, got %d frames", buf.Frames)
	}
}

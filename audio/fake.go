package audio

import (
	"errors"
	"sync"
)

// FakeContext hands out FakeCapture devices that replay canned PCM.
// Used by tests and by the -replay flag.
type FakeContext struct {
	pcm     []byte
	openErr error
}

func NewFakeContext(pcm []byte) *FakeContext {
	return &FakeContext{pcm: pcm}
}

// NewFailingContext returns a context whose captures cannot be started.
func NewFailingContext(err error) *FakeContext {
	if err == nil {
		err = errors.New("capture unavailable")
	}
	return &FakeContext{openErr: err}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	return &FakeCapture{pcm: f.pcm, startErr: f.openErr}, nil
}

func (f *FakeContext) Close() {}

const fakeChunkBytes = 2048 // 1024 frames of 16-bit mono

type FakeCapture struct {
	pcm      []byte
	startErr error

	mu      sync.Mutex
	cb      DataCallback
	started bool
}

func (f *FakeCapture) Start() error {
	if f.startErr != nil {
		return f.startErr
	}

	f.mu.Lock()
	cb := f.cb
	f.started = true
	f.mu.Unlock()

	// Replay synchronously: callers observe the same callback ordering a
	// real device produces, without wall-clock pacing.
	if cb != nil {
		for pos := 0; pos < len(f.pcm); pos += fakeChunkBytes {
			end := min(pos+fakeChunkBytes, len(f.pcm))
			chunk := make([]byte, end-pos)
			copy(chunk, f.pcm[pos:end])
			cb(chunk, uint32(len(chunk)/2))
		}
	}
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	f.started = false
	f.mu.Unlock()
}

func (f *FakeCapture) Close() {}

func (f *FakeCapture) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

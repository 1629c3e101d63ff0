// Package capture owns the microphone resource and turns one
// record/stop cycle into a single encoded audio buffer.
package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"librarian/audio"
	"librarian/encoder"
)

var (
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	ErrAlreadyRecording  = errors.New("already recording")
)

// Buffer is the immutable result of one finished recording.
type Buffer struct {
	Data        []byte
	ContentType string
	Frames      uint64
	StoppedAt   time.Time
}

// Empty reports whether the recording is too short to contain speech.
// Anything under 100ms is treated as an accidental tap.
func (b *Buffer) Empty() bool {
	return b == nil || b.Frames < encoder.SampleRate/10
}

func (b *Buffer) Duration() time.Duration {
	if b == nil {
		return 0
	}
	return time.Duration(float64(b.Frames) / float64(encoder.SampleRate) * float64(time.Second))
}

// LevelFunc receives the RMS level of each arriving fragment, for UI meters.
type LevelFunc func(rms float64)

// Recorder drives a capture device through record/stop cycles. At most
// one recording is active at a time; incoming PCM fragments are encoded
// concurrently so Stop only has to flush the tail.
type Recorder struct {
	device     audio.CaptureDevice
	newEncoder func() (encoder.Encoder, error)
	level      LevelFunc
	now        func() time.Time

	mu         sync.Mutex
	recording  bool
	enc        encoder.Encoder
	sampleBuf  []int16
	frames     uint64
	blockChan  chan []int16
	encodeDone chan struct{}
	encodeErr  error
}

func NewRecorder(device audio.CaptureDevice, level LevelFunc) *Recorder {
	return &Recorder{
		device:     device,
		newEncoder: func() (encoder.Encoder, error) { return encoder.NewFlac() },
		level:      level,
		now:        time.Now,
	}
}

// Recording reports whether a capture is active.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Start acquires the device and begins accumulating audio.
func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		return ErrAlreadyRecording
	}

	enc, err := r.newEncoder()
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("init encoder: %w", err)
	}

	r.enc = enc
	r.sampleBuf = nil
	r.frames = 0
	r.encodeErr = nil
	r.blockChan = make(chan []int16, 64)
	r.encodeDone = make(chan struct{})
	blockChan := r.blockChan
	encodeDone := r.encodeDone
	r.mu.Unlock()

	go func() {
		defer close(encodeDone)
		for block := range blockChan {
			if err := enc.EncodeBlock(block); err != nil {
				r.mu.Lock()
				if r.encodeErr == nil {
					r.encodeErr = err
				}
				r.mu.Unlock()
				return
			}
		}
	}()

	r.device.SetCallback(r.feed)
	if err := r.device.Start(); err != nil {
		r.device.ClearCallback()
		close(blockChan)
		<-encodeDone
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	r.mu.Lock()
	r.recording = true
	r.mu.Unlock()
	return nil
}

// Stop finalizes the recording into one Buffer and releases the device.
// Calling Stop when not recording is a no-op returning nil.
func (r *Recorder) Stop() (*Buffer, error) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return nil, nil
	}
	r.recording = false
	r.mu.Unlock()

	r.device.Stop()
	r.device.ClearCallback()

	r.mu.Lock()
	if len(r.sampleBuf) > 0 {
		tail := make([]int16, len(r.sampleBuf))
		copy(tail, r.sampleBuf)
		r.sampleBuf = nil
		r.mu.Unlock()
		r.blockChan <- tail
		r.mu.Lock()
	}
	blockChan := r.blockChan
	encodeDone := r.encodeDone
	enc := r.enc
	r.blockChan = nil
	r.encodeDone = nil
	r.enc = nil
	r.mu.Unlock()

	close(blockChan)
	<-encodeDone

	r.mu.Lock()
	encodeErr := r.encodeErr
	frames := r.frames
	r.mu.Unlock()

	if encodeErr != nil {
		return nil, fmt.Errorf("encode: %w", encodeErr)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalize encoder: %w", err)
	}

	return &Buffer{
		Data:        enc.Bytes(),
		ContentType: enc.ContentType(),
		Frames:      frames,
		StoppedAt:   r.now(),
	}, nil
}

// Abort discards an active recording without producing a buffer.
func (r *Recorder) Abort() {
	_, _ = r.Stop()
}

func (r *Recorder) feed(data []byte, frameCount uint32) {
	r.mu.Lock()
	if r.blockChan == nil {
		r.mu.Unlock()
		return
	}
	r.frames += uint64(frameCount)
	for i := 0; i+1 < len(data); i += 2 {
		r.sampleBuf = append(r.sampleBuf, int16(binary.LittleEndian.Uint16(data[i:])))
	}
	var blocks [][]int16
	for len(r.sampleBuf) >= encoder.BlockSize {
		block := make([]int16, encoder.BlockSize)
		copy(block, r.sampleBuf[:encoder.BlockSize])
		r.sampleBuf = r.sampleBuf[encoder.BlockSize:]
		blocks = append(blocks, block)
	}
	blockChan := r.blockChan
	r.mu.Unlock()

	for _, block := range blocks {
		blockChan <- block
	}

	if r.level != nil && len(data) > 1 {
		var sumSquares float64
		for i := 0; i+1 < len(data); i += 2 {
			sample := int16(binary.LittleEndian.Uint16(data[i:]))
			normalized := float64(sample) / 32768.0
			sumSquares += normalized * normalized
		}
		r.level(math.Sqrt(sumSquares / float64(len(data)/2)))
	}
}

// Package turn serializes the chat pipeline: at most one turn — typed
// or voice — is in flight at a time, and a voice turn walks its stages
// strictly in order.
package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"librarian/capture"
	"librarian/chat"
	"librarian/log"
	"librarian/transcribe"
)

// ErrTurnInProgress rejects any attempt to begin a turn while another
// has not settled.
var ErrTurnInProgress = errors.New("another turn is in progress")

type State string

const (
	StateIdle        State = "idle"
	StateRecording   State = "recording"
	StateUploading   State = "uploading"
	StateCreatingJob State = "creating_job"
	StatePolling     State = "polling"
	StateDispatching State = "dispatching"
	StateError       State = "error"
)

type Origin string

const (
	OriginTyped Origin = "typed"
	OriginVoice Origin = "voice"
)

// VoiceLabelPrefix marks voice-originated prompts in the echoed user
// message. Display-only; never sent to the backend.
const VoiceLabelPrefix = "(Voice) "

// Turn is one user-initiated request/response cycle.
type Turn struct {
	ID     string
	Origin Origin
	Phase  State
}

// Recorder is the capture surface the sequencer drives.
type Recorder interface {
	Start() error
	Stop() (*capture.Buffer, error)
	Recording() bool
	Abort()
}

// Transcriber is the three-stage speech-to-text surface.
type Transcriber interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
	CreateJob(ctx context.Context, audioURL string) (*transcribe.Job, error)
	Poll(ctx context.Context, jobID string, stoppedAt time.Time) (string, error)
}

// Dispatcher performs the backend round trip and history appends.
type Dispatcher interface {
	Dispatch(ctx context.Context, prompt string, opts chat.Options) error
	ReportFailure(text string)
}

// Observer is notified after every state change. Called outside the
// sequencer lock; the turn pointer is nil once settled.
type Observer func(state State, turn *Turn)

// Sequencer is the single gatekeeper in front of the dispatch flow.
type Sequencer struct {
	rec     Recorder
	stt     Transcriber
	disp    Dispatcher
	observe Observer

	mu       sync.Mutex
	state    State
	current  *Turn
	stopping bool
}

func NewSequencer(rec Recorder, stt Transcriber, disp Dispatcher, observe Observer) *Sequencer {
	return &Sequencer{
		rec:     rec,
		stt:     stt,
		disp:    disp,
		observe: observe,
		state:   StateIdle,
	}
}

func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SubmitText runs one typed turn. A whitespace-only prompt is a no-op:
// no turn is created and nothing is appended.
func (s *Sequencer) SubmitText(ctx context.Context, prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return nil
	}

	if err := s.begin(OriginTyped, StateDispatching); err != nil {
		return err
	}

	err := s.disp.Dispatch(ctx, prompt, chat.Options{EchoUser: true})
	s.settle(err)
	return err
}

// StartVoice begins a voice turn by acquiring the microphone.
func (s *Sequencer) StartVoice() error {
	if err := s.begin(OriginVoice, StateRecording); err != nil {
		return err
	}

	if err := s.rec.Start(); err != nil {
		// Capture errors surface to the caller before any network
		// stage; nothing is appended to history.
		s.settle(err)
		return err
	}
	return nil
}

// StopVoice finalizes capture and runs the remaining voice stages to
// settlement. Calling it when no recording is active, or while another
// call already claimed the stop, is a no-op.
func (s *Sequencer) StopVoice(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateRecording || s.stopping {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	s.mu.Unlock()

	buf, err := s.rec.Stop()
	if err != nil {
		s.voiceFail(fmt.Sprintf("Recording failed: %v", err))
		return err
	}
	if buf.Empty() {
		// Nothing worth transcribing: end the turn with no dispatch.
		s.settle(nil)
		return nil
	}

	started := time.Now()

	s.advance(StateUploading)
	audioURL, err := s.stt.Upload(ctx, buf.Data, buf.ContentType)
	if err != nil {
		s.voiceFail(fmt.Sprintf("Transcription failed: %v", err))
		return err
	}

	s.advance(StateCreatingJob)
	job, err := s.stt.CreateJob(ctx, audioURL)
	if err != nil {
		s.voiceFail(fmt.Sprintf("Transcription failed: %v", err))
		return err
	}

	s.advance(StatePolling)
	text, err := s.stt.Poll(ctx, job.ID, buf.StoppedAt)
	if err != nil {
		s.voiceFail(fmt.Sprintf("Transcription failed: %v", err))
		return err
	}
	log.Transcription(job.ID, buf.Duration().Seconds(), float64(len(buf.Data))/1024, time.Since(started))

	if strings.TrimSpace(text) == "" {
		s.settle(nil)
		return nil
	}

	s.advance(StateDispatching)
	err = s.disp.Dispatch(ctx, text, chat.Options{EchoUser: true, LabelPrefix: VoiceLabelPrefix})
	s.settle(err)
	return err
}

// Reset forces the sequencer back to Idle, discarding any active
// recording. Used on logout.
func (s *Sequencer) Reset() {
	if s.rec != nil && s.rec.Recording() {
		s.rec.Abort()
	}

	s.mu.Lock()
	s.current = nil
	s.state = StateIdle
	s.stopping = false
	s.mu.Unlock()
	s.notify(StateIdle, nil)
}

// begin is the Idle gate: the only place a new turn can be created.
func (s *Sequencer) begin(origin Origin, first State) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrTurnInProgress
	}
	t := &Turn{ID: uuid.NewString(), Origin: origin, Phase: first}
	s.current = t
	s.state = first
	s.mu.Unlock()

	log.TurnState(t.ID, string(origin), string(first))
	s.notify(first, t)
	return nil
}

// advance moves the active turn to its next stage. Stages never repeat
// and never skip within a turn.
func (s *Sequencer) advance(next State) {
	s.mu.Lock()
	t := s.current
	s.state = next
	if t != nil {
		t.Phase = next
	}
	s.mu.Unlock()

	if t != nil {
		log.TurnState(t.ID, string(t.Origin), string(next))
	}
	s.notify(next, t)
}

// settle ends the active turn. A failure passes through the transient
// Error state before resting at Idle.
func (s *Sequencer) settle(err error) {
	s.mu.Lock()
	t := s.current
	s.current = nil
	s.stopping = false
	s.mu.Unlock()

	if err != nil {
		if t != nil {
			log.TurnState(t.ID, string(t.Origin), string(StateError))
		}
		s.mu.Lock()
		s.state = StateError
		s.mu.Unlock()
		s.notify(StateError, t)
	}

	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()
	if t != nil {
		log.TurnState(t.ID, string(t.Origin), string(StateIdle))
	}
	s.notify(StateIdle, nil)
}

// voiceFail ends a voice turn with a terminal assistant message so the
// chat never trails off silently.
func (s *Sequencer) voiceFail(message string) {
	s.disp.ReportFailure(message)
	s.settle(errors.New(message))
}

func (s *Sequencer) notify(state State, t *Turn) {
	if s.observe != nil {
		s.observe(state, t)
	}
}

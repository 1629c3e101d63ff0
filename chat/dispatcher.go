package chat

import (
	"context"
	"encoding/base64"
	"strings"

	"librarian/log"
)

// NoMatchReply is appended when the backend returns an empty message.
const NoMatchReply = "Hmm, I couldn't find a good match. Try specifying genre, tone, or audience."

// Speaker is the speech-output collaborator: fire-and-forget, no
// completion signal is consumed.
type Speaker interface {
	Speak(text string)
	Supported() bool
}

// Sender is the backend round trip behind Dispatch.
type Sender interface {
	Send(ctx context.Context, prompt string, generateImage bool, token string) (*Reply, error)
}

// Options control how one dispatch presents itself in history.
type Options struct {
	// EchoUser appends the prompt as a user message before the request.
	EchoUser bool
	// LabelPrefix is a display-only annotation prepended to the echoed
	// text, never to the prompt sent to the backend.
	LabelPrefix string
}

// Prefs are the user-facing toggles read at dispatch time.
type Prefs struct {
	GenerateImage bool
	SpeakReplies  bool
}

// Dispatcher sends one prompt to the backend and appends the outcome to
// history. Every dispatch terminates with at least one assistant
// message, success or failure.
type Dispatcher struct {
	sender  Sender
	history *History
	speaker Speaker
	token   func() string
	prefs   func() Prefs
}

func NewDispatcher(sender Sender, history *History, speaker Speaker, token func() string, prefs func() Prefs) *Dispatcher {
	if token == nil {
		token = func() string { return "" }
	}
	if prefs == nil {
		prefs = func() Prefs { return Prefs{} }
	}
	return &Dispatcher{
		sender:  sender,
		history: history,
		speaker: speaker,
		token:   token,
		prefs:   prefs,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, prompt string, opts Options) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil
	}

	if opts.EchoUser {
		d.history.Append(TextMessage(RoleUser, opts.LabelPrefix+prompt))
	}

	prefs := d.prefs()
	reply, err := d.sender.Send(ctx, prompt, prefs.GenerateImage, d.token())
	if err != nil {
		log.Errorf("dispatch failed: %v", err)
		d.history.Append(ErrorMessage("Error: " + err.Error()))
		return err
	}

	text := strings.TrimSpace(reply.Message)
	if text == "" {
		text = NoMatchReply
	}
	d.history.Append(TextMessage(RoleAssistant, text))

	if prefs.SpeakReplies && d.speaker != nil && d.speaker.Supported() {
		d.speaker.Speak(text)
	}

	if prefs.GenerateImage && reply.ImageB64 != "" {
		data, err := base64.StdEncoding.DecodeString(reply.ImageB64)
		if err != nil {
			log.Warnf("discarding undecodable image payload: %v", err)
		} else {
			d.history.Append(ImageMessage(RoleAssistant, data, "png"))
		}
	}
	return nil
}

// ReportFailure appends a terminal assistant message for a turn that
// failed before reaching dispatch, so a voice turn never ends silently.
func (d *Dispatcher) ReportFailure(text string) {
	d.history.Append(ErrorMessage(text))
}

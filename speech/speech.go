// Package speech plays assistant replies through the system speech
// synthesizer. Playback is fire-and-forget: nothing waits on it and a
// failed utterance is never retried.
package speech

import (
	"os/exec"

	"librarian/log"
)

// System shells out to the platform synthesizer found at startup.
type System struct {
	path string
	args func(text string) []string
}

// NewSystem locates the platform synthesizer. The returned speaker
// reports Supported() == false when none is installed.
func NewSystem() *System {
	return newPlatformSpeaker()
}

func (s *System) Supported() bool {
	return s != nil && s.path != ""
}

func (s *System) Speak(text string) {
	if !s.Supported() || text == "" {
		return
	}
	cmd := exec.Command(s.path, s.args(text)...)
	if err := cmd.Start(); err != nil {
		log.Warnf("speech: %v", err)
		return
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Warnf("speech: %v", err)
		}
	}()
}

// Null is a speaker that does nothing, for -mute and unsupported hosts.
type Null struct{}

func (Null) Supported() bool { return false }
func (Null) Speak(string)    {}

// Fake records utterances for tests.
type Fake struct {
	Enabled bool
	Spoken  []string
}

func (f *Fake) Supported() bool { return f.Enabled }

func (f *Fake) Speak(text string) {
	f.Spoken = append(f.Spoken, text)
}

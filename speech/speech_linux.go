//go:build linux

package speech

import "os/exec"

func newPlatformSpeaker() *System {
	// spd-say talks to speech-dispatcher, espeak is the usual fallback.
	if path, err := exec.LookPath("spd-say"); err == nil {
		return &System{
			path: path,
			args: func(text string) []string { return []string{"--", text} },
		}
	}
	if path, err := exec.LookPath("espeak"); err == nil {
		return &System{
			path: path,
			args: func(text string) []string { return []string{text} },
		}
	}
	return &System{}
}

//go:build darwin

package speech

import "os/exec"

func newPlatformSpeaker() *System {
	path, err := exec.LookPath("say")
	if err != nil {
		return &System{}
	}
	return &System{
		path: path,
		args: func(text string) []string { return []string{text} },
	}
}

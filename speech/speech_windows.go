//go:build windows

package speech

import (
	"os/exec"
	"strings"
)

func newPlatformSpeaker() *System {
	path, err := exec.LookPath("powershell")
	if err != nil {
		return &System{}
	}
	return &System{
		path: path,
		args: func(text string) []string {
			escaped := strings.ReplaceAll(text, "'", "''")
			script := "Add-Type -AssemblyName System.Speech; " +
				"(New-Object System.Speech.Synthesis.SpeechSynthesizer).Speak('" + escaped + "')"
			return []string{"-NoProfile", "-Command", script}
		},
	}
}

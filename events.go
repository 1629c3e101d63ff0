package main

import (
	"librarian/turn"
)

// EventSink abstracts the display layer so the pipeline never touches
// Bubble Tea directly. A headless sink can replace the TUI in tests.
type EventSink interface {
	TurnChanged(state turn.State, t *turn.Turn)
	HistoryChanged()
	AudioLevel(level float64)
}

// TUI message types
type TurnChangedMsg struct {
	State turn.State
	Turn  *turn.Turn
}
type HistoryChangedMsg struct{}
type AudioLevelMsg struct{ Level float64 }

// tuiSink forwards pipeline events into the running Bubble Tea program.
type tuiSink struct{}

func (tuiSink) TurnChanged(state turn.State, t *turn.Turn) {
	tuiSend(TurnChangedMsg{State: state, Turn: t})
}

func (tuiSink) HistoryChanged() {
	tuiSend(HistoryChangedMsg{})
}

func (tuiSink) AudioLevel(level float64) {
	tuiSend(AudioLevelMsg{Level: level})
}

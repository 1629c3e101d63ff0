// Package chat holds the conversation model and the dispatch flow that
// turns a prompt into appended history messages.
package chat

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Message is one immutable history entry. Content is a tagged variant:
// either text or an image payload, never both, so image data can never
// be mistaken for text that happens to start with a marker.
type Message struct {
	Role        Role
	Kind        Kind
	Text        string // KindText only
	Image       []byte // KindImage only, decoded bytes
	ImageFormat string // KindImage only, e.g. "png"
	Error       bool   // marks a failure report, for display emphasis
}

func TextMessage(role Role, text string) Message {
	return Message{Role: role, Kind: KindText, Text: text}
}

// ErrorMessage is an assistant message reporting a failed turn.
func ErrorMessage(text string) Message {
	return Message{Role: RoleAssistant, Kind: KindText, Text: text, Error: true}
}

func ImageMessage(role Role, data []byte, format string) Message {
	return Message{Role: role, Kind: KindImage, Image: data, ImageFormat: format}
}

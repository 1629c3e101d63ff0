package transcribe

import (
	"context"
	"time"
)

// Fake satisfies the same surface as Client for tests and the -replay
// flag: each stage either succeeds with canned values or returns the
// injected error.
type Fake struct {
	Text      string
	UploadErr error
	CreateErr error
	PollErr   error

	Uploads       int
	Creates       int
	Polls         int
	LastStoppedAt time.Time
}

func NewFake(text string) *Fake {
	return &Fake{Text: text}
}

func (f *Fake) Upload(_ context.Context, _ []byte, _ string) (string, error) {
	f.Uploads++
	if f.UploadErr != nil {
		return "", f.UploadErr
	}
	return "https://fake.invalid/upload/1", nil
}

func (f *Fake) CreateJob(_ context.Context, _ string) (*Job, error) {
	f.Creates++
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	return &Job{ID: "fake-job", Status: StatusQueued, CreatedAt: time.Now()}, nil
}

func (f *Fake) Poll(_ context.Context, _ string, stoppedAt time.Time) (string, error) {
	f.Polls++
	f.LastStoppedAt = stoppedAt
	if f.PollErr != nil {
		return "", f.PollErr
	}
	return f.Text, nil
}

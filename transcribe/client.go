// Package transcribe drives the external speech-to-text job lifecycle:
// upload the audio, create a transcription job, poll until it settles.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultBaseURL     = "https://api.assemblyai.com/v2"
	DefaultSpeechModel = "best"

	DefaultPollInterval = 1500 * time.Millisecond
	DefaultPollDeadline = 90 * time.Second
)

// Job statuses reported by the service.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// ErrTimeout reports that a job did not settle within the poll deadline.
// The deadline is anchored at recording-stop time, not at the first poll.
var ErrTimeout = errors.New("transcription timed out")

type UploadError struct {
	Status int
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("audio upload failed: status %d", e.Status)
}

type JobCreateError struct {
	Status int
}

func (e *JobCreateError) Error() string {
	return fmt.Sprintf("transcript job create failed: status %d", e.Status)
}

type JobError struct {
	Detail string
}

func (e *JobError) Error() string {
	if e.Detail == "" {
		return "transcription failed"
	}
	return "transcription failed: " + e.Detail
}

// Job is one asynchronous unit of speech-to-text work.
type Job struct {
	ID        string
	Status    string
	Text      string
	Detail    string
	CreatedAt time.Time
}

type Config struct {
	APIKey       string
	BaseURL      string
	SpeechModel  string
	PollInterval time.Duration
	PollDeadline time.Duration
	HTTPClient   *http.Client
	Clock        Clock
}

type Client struct {
	apiKey       string
	baseURL      string
	speechModel  string
	pollInterval time.Duration
	pollDeadline time.Duration
	client       *http.Client
	clock        Clock
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = DefaultSpeechModel
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.PollDeadline <= 0 {
		cfg.PollDeadline = DefaultPollDeadline
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		}
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}
	return &Client{
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		speechModel:  cfg.SpeechModel,
		pollInterval: cfg.PollInterval,
		pollDeadline: cfg.PollDeadline,
		client:       cfg.HTTPClient,
		clock:        cfg.Clock,
	}
}

// Upload sends the raw audio payload and returns its storage URL.
func (c *Client) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", contentType)

	body, status, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("audio upload: %w", err)
	}
	if status < 200 || status > 299 {
		return "", &UploadError{Status: status}
	}

	var parsed struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if parsed.UploadURL == "" {
		return "", errors.New("upload response missing upload_url")
	}
	return parsed.UploadURL, nil
}

// CreateJob submits an uploaded audio URL for transcription.
func (c *Client) CreateJob(ctx context.Context, audioURL string) (*Job, error) {
	payload, err := json.Marshal(map[string]string{
		"audio_url":    audioURL,
		"speech_model": c.speechModel,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcript", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	body, status, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("transcript job create: %w", err)
	}
	if status < 200 || status > 299 {
		return nil, &JobCreateError{Status: status}
	}

	var parsed struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode job create response: %w", err)
	}
	if parsed.ID == "" {
		return nil, errors.New("job create response missing id")
	}
	return &Job{ID: parsed.ID, Status: parsed.Status, CreatedAt: c.clock.Now()}, nil
}

// Poll fetches job status at a fixed interval until the job completes,
// fails, or the deadline anchored at stoppedAt elapses. Each incomplete
// poll waits the interval before retrying; the deadline is computed once
// and never reset.
func (c *Client) Poll(ctx context.Context, jobID string, stoppedAt time.Time) (string, error) {
	deadline := stoppedAt.Add(c.pollDeadline)

	for {
		if !c.clock.Now().Before(deadline) {
			return "", ErrTimeout
		}

		job, err := c.fetchJob(ctx, jobID)
		if err != nil {
			return "", err
		}

		switch job.Status {
		case StatusCompleted:
			return job.Text, nil
		case StatusError:
			return "", &JobError{Detail: job.Detail}
		}

		if err := c.clock.Sleep(ctx, c.pollInterval); err != nil {
			return "", err
		}
	}
}

func (c *Client) fetchJob(ctx context.Context, jobID string) (*Job, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transcript/"+jobID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.apiKey)

	body, status, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("transcript poll: %w", err)
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("transcript poll: status %d", status)
	}

	var parsed struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Text   string `json:"text"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode poll response: %w", err)
	}
	return &Job{ID: parsed.ID, Status: parsed.Status, Text: parsed.Text, Detail: parsed.Error}, nil
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

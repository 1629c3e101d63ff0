package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultBaseURL = "http://127.0.0.1:8000"

type BackendError struct {
	Status int
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error: status %d", e.Status)
}

type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth failed: status %d", e.Status)
}

// Reply is the backend's answer to one prompt.
type Reply struct {
	Message  string `json:"message"`
	ImageB64 string `json:"image_b64"`
}

// Client talks to the recommendation backend's chat and auth endpoints.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{baseURL: baseURL, client: httpClient}
}

// Send posts one prompt and returns the assistant reply. Non-2xx
// responses collapse into a single opaque BackendError.
func (c *Client) Send(ctx context.Context, prompt string, generateImage bool, token string) (*Reply, error) {
	payload, err := json.Marshal(map[string]any{
		"prompt":         prompt,
		"generate_image": generateImage,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	body, status, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	if status < 200 || status > 299 {
		return nil, &BackendError{Status: status}
	}

	var reply Reply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	return &reply, nil
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, name, password string) (string, error) {
	body, status, err := c.postJSON(ctx, "/login", map[string]string{
		"name": name, "password": password,
	})
	if err != nil {
		return "", fmt.Errorf("login request: %w", err)
	}
	if status < 200 || status > 299 {
		return "", &AuthError{Status: status}
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("login response missing access_token")
	}
	return parsed.AccessToken, nil
}

// Signup registers a new account. Success carries no payload.
func (c *Client) Signup(ctx context.Context, name, password string) error {
	_, status, err := c.postJSON(ctx, "/signup", map[string]string{
		"name": name, "password": password,
	})
	if err != nil {
		return fmt.Errorf("signup request: %w", err)
	}
	if status < 200 || status > 299 {
		return &AuthError{Status: status}
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) ([]byte, int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
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

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendChat(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(Reply{Message: "Try 'Eragon' by Christopher Paolini."})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	reply, err := c.Send(context.Background(), "fantasy book with dragons", true, "tok-123")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply.Message != "Try 'Eragon' by Christopher Paolini." {
		t.Fatalf("message = %q", reply.Message)
	}
	if gotAuth != "Bearer tok-123" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotBody["prompt"] != "fantasy book with dragons" || gotBody["generate_image"] != true {
		t.Fatalf("request body = %v", gotBody)
	}
}

func TestSendWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h := r.Header.Get("Authorization"); h != "" {
			t.Errorf("Authorization = %q, want unset", h)
		}
		json.NewEncoder(w).Encode(Reply{Message: "ok"})
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, nil).Send(context.Background(), "hi", false, ""); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestSendBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).Send(context.Background(), "hi", false, "")
	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("err = %v, want *BackendError", err)
	}
	if be.Status != http.StatusBadGateway {
		t.Fatalf("status = %d", be.Status)
	}
}

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/login" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var creds map[string]string
		json.NewDecoder(r.Body).Decode(&creds)
		if creds["name"] != "reader" || creds["password"] != "hunter2" {
			t.Errorf("credentials = %v", creds)
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-abc"})
	}))
	defer srv.Close()

	token, err := NewClient(srv.URL, nil).Login(context.Background(), "reader", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token != "tok-abc" {
		t.Fatalf("token = %q", token)
	}
}

func TestLoginRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).Login(context.Background(), "reader", "wrong")
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want *AuthError", err)
	}
	if ae.Status != http.StatusUnauthorized {
		t.Fatalf("status = %d", ae.Status)
	}
}

func TestLoginMissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, nil).Login(context.Background(), "reader", "hunter2"); err == nil {
		t.Fatal("Login succeeded without access_token")
	}
}

func TestSignup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/signup" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL, nil).Signup(context.Background(), "reader", "hunter2"); err != nil {
		t.Fatalf("Signup: %v", err)
	}
}

func TestSignupConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, nil).Signup(context.Background(), "reader", "hunter2")
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want *AuthError", err)
	}
}

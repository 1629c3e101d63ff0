package session

import (
	"os"
	"path/filepath"
	"testing"
)

func useTempFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.json")
	t.Setenv("LIBRARIAN_SESSION_FILE", path)
	return path
}

func TestSaveLoadClear(t *testing.T) {
	path := useTempFile(t)

	s := &Session{Name: "ada", Token: "tok-123"}
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("session file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("session file perm = %o, want 600", perm)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil || loaded.Name != "ada" || loaded.Token != "tok-123" {
		t.Fatalf("Load = %+v", loaded)
	}
	if !loaded.Authenticated() {
		t.Error("Authenticated() false for loaded session")
	}

	if err := Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("session file still exists after Clear")
	}

	// Clearing again is a no-op.
	if err := Clear(); err != nil {
		t.Fatalf("second Clear: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	useTempFile(t)

	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s != nil {
		t.Fatalf("Load = %+v, want nil for missing file", s)
	}
}

func TestLoadEmptyToken(t *testing.T) {
	path := useTempFile(t)
	if err := os.WriteFile(path, []byte(`{"name":"ada","access_token":""}`), 0600); err != nil {
		t.Fatal(err)
	}

	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s != nil {
		t.Fatal("session without token should load as nil")
	}
}

func TestAuthenticatedNil(t *testing.T) {
	var s *Session
	if s.Authenticated() {
		t.Error("nil session reported authenticated")
	}
}

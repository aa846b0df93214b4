package runtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/Tausifislam01/Alyve/internal/config"
	"github.com/Tausifislam01/Alyve/internal/convstore"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSessionHistoryEndpoint(t *testing.T) {
	cfg := config.StoreConfig{Path: filepath.Join(t.TempDir(), "conv.db"), RetentionMode: "session"}
	store, err := convstore.Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.AppendSession(context.Background(), "s1", "user-7", false); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := store.AppendMessage(context.Background(), "s1", "user", "tell me a story"); err != nil {
		t.Fatalf("append message: %v", err)
	}
	if err := store.AppendMessage(context.Background(), "s1", "reply", "once upon a time."); err != nil {
		t.Fatalf("append message: %v", err)
	}

	srv := httptest.NewServer(handleSessionHistory(store, newLogger()))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/sessions/s1")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var turns []struct {
		Role string `json:"role"`
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&turns); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != "user" || turns[1].Text != "once upon a time." {
		t.Fatalf("unexpected history: %+v", turns)
	}
}

func TestSessionHistoryUnknownSession(t *testing.T) {
	cfg := config.StoreConfig{Path: filepath.Join(t.TempDir(), "conv.db"), RetentionMode: "session"}
	store, err := convstore.Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	srv := httptest.NewServer(handleSessionHistory(store, newLogger()))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/sessions/nope")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var turns []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&turns); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected empty history, got %d turns", len(turns))
	}
}

func TestSessionHistoryRejectsBadPaths(t *testing.T) {
	cfg := config.StoreConfig{RetentionMode: "ephemeral"}
	store, err := convstore.Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	srv := httptest.NewServer(handleSessionHistory(store, newLogger()))
	t.Cleanup(srv.Close)

	for _, path := range []string{"/sessions/", "/sessions/a/b"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, resp.StatusCode)
		}
	}
}

package convstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/Tausifislam01/Alyve/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeral(t *testing.T) {
	cfg := config.StoreConfig{RetentionMode: "ephemeral"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.AppendSession(context.Background(), "s1", "user-7", false); err != nil {
		t.Fatalf("ephemeral append session: %v", err)
	}
	if err := s.AppendMessage(context.Background(), "s1", "reply", "hello"); err != nil {
		t.Fatalf("ephemeral append message: %v", err)
	}
	msgs, err := s.ListSessionMessages(context.Background(), "s1", 10)
	if err != nil {
		t.Fatalf("ephemeral list: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("ephemeral store should retain nothing, got %d messages", len(msgs))
	}
}

func TestAppendAndList(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.StoreConfig{Path: filepath.Join(tmp, "conv.db"), RetentionMode: "session"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	sessionID := "session-123"
	if err := s.AppendSession(context.Background(), sessionID, "user-7", false); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := s.AppendMessage(context.Background(), sessionID, "user", "tell me a story"); err != nil {
		t.Fatalf("append message: %v", err)
	}
	if err := s.AppendMessage(context.Background(), sessionID, "reply", "once upon a time."); err != nil {
		t.Fatalf("append message: %v", err)
	}

	msgs, err := s.ListSessionMessages(context.Background(), sessionID, 10)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[1].Role != "reply" {
		t.Fatalf("messages out of order: %+v", msgs)
	}
	if msgs[1].Text != "once upon a time." {
		t.Fatalf("unexpected text: %q", msgs[1].Text)
	}
}

func TestAnonymousSessionRow(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.StoreConfig{Path: filepath.Join(tmp, "conv.db"), RetentionMode: "session"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.AppendSession(context.Background(), "anon-1", "", true); err != nil {
		t.Fatalf("append anonymous session: %v", err)
	}
	// Re-appending the same session must upsert, not fail.
	if err := s.AppendSession(context.Background(), "anon-1", "", true); err != nil {
		t.Fatalf("re-append session: %v", err)
	}
}

func TestPruneByDaysAndSessions(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.StoreConfig{
		Path:          filepath.Join(tmp, "conv.db"),
		RetentionMode: "persistent",
		RetentionDays: 1,
		MaxSessions:   1,
	}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	s.clock = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := s.AppendSession(context.Background(), "old-session", "user-7", false); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := s.AppendMessage(context.Background(), "old-session", "reply", "hi"); err != nil {
		t.Fatalf("append message: %v", err)
	}

	s.clock = func() time.Time { return time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := s.AppendSession(context.Background(), "new-session", "user-7", false); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := s.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	msgs, err := s.ListSessionMessages(context.Background(), "old-session", 10)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected old session pruned, got %d messages", len(msgs))
	}
}

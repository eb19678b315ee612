package callback

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/actionfleet/actionfleet/internal/engine"
	bolt "go.etcd.io/bbolt"
)

func TestLogSink_Notify_DoesNotPanicOnUnknownPayload(t *testing.T) {
	sink := NewLogSink(slog.Default())
	sink.Notify(engine.EvStatusChanged, 42)
}

func TestLogSink_Notify_FormatsAction(t *testing.T) {
	sink := NewLogSink(slog.Default())
	a := engine.NewAction("start")
	a.Status = engine.Done
	sink.Notify(engine.EvComplete, a)
}

func TestAuditSink_RecordsTerminalActionsOnly(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewAuditSink(filepath.Join(dir, "audit.db"))
	if err != nil {
		t.Fatalf("NewAuditSink: %v", err)
	}
	defer sink.Close()

	a := engine.NewAction("start")
	a.Status = engine.Done

	sink.Notify(engine.EvStarted, a)  // ignored, not EvComplete
	sink.Notify(engine.EvComplete, a) // recorded

	var count int
	err = sink.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(completedActionsBucket).ForEach(func(k, v []byte) error {
			count++
			return nil
		})
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if count != 1 {
		t.Fatalf("recorded %d entries, want 1 (EvStarted should be ignored)", count)
	}
}

func TestAuditSink_ReopenDoesNotError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.db")
	s1, err := NewAuditSink(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	s2, err := NewAuditSink(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
}

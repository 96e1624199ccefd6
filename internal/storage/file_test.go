package storage

import (
	"os"
	"path/filepath"
	"testing"

	"engagement-bot/internal/ledger"
)

func testSnapshot() ledger.Snapshot {
	return ledger.Snapshot{
		"c1": {
			"a": {Username: "alice", Messages: 3, ReactionsReceived: 1, Points: 4},
			"b": {Username: "bob", ReactionsGiven: 1, Points: 1},
		},
		"c2": {
			"z": {Username: "zed", Messages: 1, Points: 1},
		},
	}
}

func TestLedgerFileRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "engagement.json")
	f, err := NewLedgerFile(p)
	if err != nil {
		t.Fatalf("init: %v", err)
	}

	want := testSnapshot()
	if err := f.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got := f.Load()
	if len(got) != len(want) {
		t.Fatalf("chat count mismatch: %d vs %d", len(got), len(want))
	}
	for chatID, users := range want {
		for userID, rec := range users {
			if got[chatID][userID] != rec {
				t.Fatalf("record %s/%s mismatch: %+v vs %+v", chatID, userID, got[chatID][userID], rec)
			}
		}
	}
}

func TestLedgerFileLoadMissing(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nope", "engagement.json")
	f, err := NewLedgerFile(p)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	got := f.Load()
	if got == nil || len(got) != 0 {
		t.Fatalf("missing file should load as empty ledger, got %+v", got)
	}
}

func TestLedgerFileLoadCorrupt(t *testing.T) {
	p := filepath.Join(t.TempDir(), "engagement.json")
	if err := os.WriteFile(p, []byte(`{"c1": ["not", "a", "mapping"]}`), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}
	f, err := NewLedgerFile(p)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	got := f.Load()
	if len(got) != 0 {
		t.Fatalf("corrupt file should load as empty ledger, got %+v", got)
	}
}

func TestWriteFileAtomicKeepsOldFileOnFailure(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "engagement.json")
	previous := []byte(`{"c1":{}}`)
	if err := os.WriteFile(p, previous, 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// A channel is not marshalable, so the write fails before any rename.
	if err := writeFileAtomic(p, make(chan int)); err == nil {
		t.Fatalf("expected encode failure")
	}

	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != string(previous) {
		t.Fatalf("canonical file changed on failed save: %q", data)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp leftovers after failed save: %v", entries)
	}
}

func TestWriteFileAtomicCleansTempOnRenameFailure(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "target")
	// A non-empty directory at the canonical path makes the rename fail.
	if err := os.MkdirAll(filepath.Join(p, "occupied"), 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if err := writeFileAtomic(p, testSnapshot()); err == nil {
		t.Fatalf("expected rename failure")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp file not cleaned up: %v", entries)
	}
}

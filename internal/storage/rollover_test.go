package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"engagement-bot/internal/ledger"
)

func newTestManager(t *testing.T) (*Manager, *ledger.Store, *ArchiveFile) {
	t.Helper()
	dir := t.TempDir()
	ledgers, err := NewLedgerFile(filepath.Join(dir, "engagement.json"))
	if err != nil {
		t.Fatalf("ledger file: %v", err)
	}
	archive, err := NewArchiveFile(filepath.Join(dir, "history.json"))
	if err != nil {
		t.Fatalf("archive file: %v", err)
	}
	store := ledger.NewStore(nil, 0, ledger.IgnoreRemovals)
	return NewManager(store, ledgers, archive), store, archive
}

func TestRolloverFirstRunOnlySetsMarker(t *testing.T) {
	m, _, archive := newTestManager(t)

	out, err := m.CheckAndRollover("2024-02")
	if err != nil {
		t.Fatalf("rollover: %v", err)
	}
	if out.Archived {
		t.Fatalf("first run must not archive, got %+v", out)
	}
	arch := archive.Load()
	if arch.LastReset != "2024-02" {
		t.Fatalf("marker not set: %q", arch.LastReset)
	}
	if len(arch.Periods) != 0 {
		t.Fatalf("unexpected archive entries: %+v", arch.Periods)
	}
}

func TestRolloverArchivesAndResets(t *testing.T) {
	m, store, archive := newTestManager(t)
	if _, err := m.CheckAndRollover("2024-02"); err != nil {
		t.Fatalf("init marker: %v", err)
	}

	store.RecordMessage("c1", "a", "alice", "m1")
	store.RecordMessage("c1", "a", "alice", "m2")
	store.RecordReaction("c1", "b", "bob", "m1", true)

	out, err := m.CheckAndRollover("2024-03")
	if err != nil {
		t.Fatalf("rollover: %v", err)
	}
	if !out.Archived || out.Period != "2024-02" {
		t.Fatalf("expected 2024-02 archived, got %+v", out)
	}

	arch := archive.Load()
	if arch.LastReset != "2024-03" {
		t.Fatalf("marker not advanced: %q", arch.LastReset)
	}
	snap := arch.Periods["2024-02"]
	if snap == nil {
		t.Fatalf("snapshot missing: %+v", arch.Periods)
	}
	if a := snap["c1"]["a"]; a.Messages != 2 || a.ReactionsReceived != 1 || a.Points != 3 {
		t.Fatalf("archived record wrong: %+v", a)
	}

	live := store.Snapshot()
	for userID, rec := range live["c1"] {
		if rec.Points != 0 || rec.Messages != 0 || rec.ReactionsGiven != 0 || rec.ReactionsReceived != 0 {
			t.Fatalf("live counters not reset for %s: %+v", userID, rec)
		}
		if rec.Username == "" {
			t.Fatalf("username lost for %s", userID)
		}
	}
}

func TestRolloverIdempotent(t *testing.T) {
	m, store, archive := newTestManager(t)
	if _, err := m.CheckAndRollover("2024-02"); err != nil {
		t.Fatalf("init marker: %v", err)
	}
	store.RecordMessage("c1", "a", "alice", "m1")
	if _, err := m.CheckAndRollover("2024-03"); err != nil {
		t.Fatalf("first rollover: %v", err)
	}

	store.RecordMessage("c1", "a", "alice", "m2")
	before := store.Snapshot()

	out, err := m.CheckAndRollover("2024-03")
	if err != nil {
		t.Fatalf("second rollover: %v", err)
	}
	if out.Archived {
		t.Fatalf("repeat check must be a no-op, got %+v", out)
	}
	if a := store.Snapshot()["c1"]["a"]; a != before["c1"]["a"] {
		t.Fatalf("no-op check mutated ledger: %+v", a)
	}
	arch := archive.Load()
	if len(arch.Periods) != 1 {
		t.Fatalf("archive gained entries on no-op: %+v", arch.Periods)
	}
	// The archived month keeps its original snapshot.
	if a := arch.Periods["2024-02"]["c1"]["a"]; a.Messages != 1 {
		t.Fatalf("archived snapshot overwritten: %+v", a)
	}
}

func TestRolloverOlderPeriodIsNoOp(t *testing.T) {
	m, _, _ := newTestManager(t)
	if _, err := m.CheckAndRollover("2024-03"); err != nil {
		t.Fatalf("init marker: %v", err)
	}
	out, err := m.CheckAndRollover("2024-02")
	if err != nil {
		t.Fatalf("older period check: %v", err)
	}
	if out.Archived {
		t.Fatalf("older period must not roll over: %+v", out)
	}
}

// failingArchive loads fine but refuses every save, like a full disk would.
type failingArchive struct {
	inner *ArchiveFile
}

func (f failingArchive) Load() Archive        { return f.inner.Load() }
func (f failingArchive) Save(a Archive) error { return errors.New("disk full") }

func TestRolloverAbortsResetWhenArchiveFails(t *testing.T) {
	dir := t.TempDir()
	ledgers, err := NewLedgerFile(filepath.Join(dir, "engagement.json"))
	if err != nil {
		t.Fatalf("ledger file: %v", err)
	}
	archive, err := NewArchiveFile(filepath.Join(dir, "history.json"))
	if err != nil {
		t.Fatalf("archive file: %v", err)
	}
	store := ledger.NewStore(nil, 0, ledger.IgnoreRemovals)
	if _, err := NewManager(store, ledgers, archive).CheckAndRollover("2024-02"); err != nil {
		t.Fatalf("init marker: %v", err)
	}
	store.RecordMessage("c1", "a", "alice", "m1")

	m := NewManager(store, ledgers, failingArchive{inner: archive})
	if _, err := m.CheckAndRollover("2024-03"); err == nil {
		t.Fatalf("expected archive failure")
	}
	if a := store.Snapshot()["c1"]["a"]; a.Messages != 1 || a.Points != 1 {
		t.Fatalf("live ledger reset without a durable archive: %+v", a)
	}
	if arch := archive.Load(); arch.LastReset != "2024-02" {
		t.Fatalf("marker advanced despite failed save: %q", arch.LastReset)
	}
}

// mutatingArchive records an event while the archive write is in flight,
// like the dispatch loop running concurrently with the rollover does.
type mutatingArchive struct {
	inner *ArchiveFile
	store *ledger.Store
	fired bool
}

func (m *mutatingArchive) Load() Archive { return m.inner.Load() }

func (m *mutatingArchive) Save(a Archive) error {
	if !m.fired {
		m.fired = true
		m.store.RecordMessage("c1", "b", "bob", "m-during")
	}
	return m.inner.Save(a)
}

func TestRolloverKeepsEventsRecordedDuringArchiveWrite(t *testing.T) {
	dir := t.TempDir()
	ledgers, err := NewLedgerFile(filepath.Join(dir, "engagement.json"))
	if err != nil {
		t.Fatalf("ledger file: %v", err)
	}
	archive, err := NewArchiveFile(filepath.Join(dir, "history.json"))
	if err != nil {
		t.Fatalf("archive file: %v", err)
	}
	store := ledger.NewStore(nil, 0, ledger.IgnoreRemovals)
	if _, err := NewManager(store, ledgers, archive).CheckAndRollover("2024-02"); err != nil {
		t.Fatalf("init marker: %v", err)
	}
	store.RecordMessage("c1", "a", "alice", "m1")

	m := NewManager(store, ledgers, &mutatingArchive{inner: archive, store: store})
	out, err := m.CheckAndRollover("2024-03")
	if err != nil {
		t.Fatalf("rollover: %v", err)
	}
	if !out.Archived || out.Period != "2024-02" {
		t.Fatalf("unexpected outcome: %+v", out)
	}

	// The snapshot taken before the write is what gets archived.
	arch := archive.Load()
	if rec, ok := arch.Periods["2024-02"]["c1"]["b"]; ok {
		t.Fatalf("mid-write event leaked into the archive: %+v", rec)
	}

	// The mid-write event survives into the new period.
	live := store.Snapshot()
	if b := live["c1"]["b"]; b.Messages != 1 || b.Points != 1 {
		t.Fatalf("mid-write event lost from the live ledger: %+v", b)
	}
	if a := live["c1"]["a"]; a.Messages != 0 || a.Points != 0 {
		t.Fatalf("archived counters not reset: %+v", a)
	}
}

func TestHistoryReturnsLatestArchivedPeriod(t *testing.T) {
	m, store, _ := newTestManager(t)
	if _, err := m.CheckAndRollover("2024-01"); err != nil {
		t.Fatalf("init marker: %v", err)
	}
	store.RecordMessage("c1", "a", "alice", "m1")
	if _, err := m.CheckAndRollover("2024-02"); err != nil {
		t.Fatalf("rollover jan: %v", err)
	}
	store.RecordMessage("c1", "a", "alice", "m2")
	store.RecordMessage("c1", "a", "alice", "m3")
	if _, err := m.CheckAndRollover("2024-03"); err != nil {
		t.Fatalf("rollover feb: %v", err)
	}

	period, users, ok := m.History("c1")
	if !ok {
		t.Fatalf("history missing")
	}
	if period != "2024-02" {
		t.Fatalf("want latest period 2024-02, got %s", period)
	}
	if a := users["a"]; a.Messages != 2 {
		t.Fatalf("wrong snapshot served: %+v", a)
	}

	if _, _, ok := m.History("unknown"); ok {
		t.Fatalf("unknown chat should have no history")
	}
}

package storage

import (
	"fmt"
	"time"

	"engagement-bot/internal/ledger"
)

// Outcome reports what a rollover check did. Archived is false for a no-op
// check; Period names the month that was snapshotted.
type Outcome struct {
	Archived bool
	Period   string
}

// LedgerRepo persists the live ledger document.
type LedgerRepo interface {
	Save(ledger.Snapshot) error
}

// ArchiveRepo persists the history archive.
type ArchiveRepo interface {
	Load() Archive
	Save(Archive) error
}

// Manager owns the monthly archive-and-reset transition. The check is
// idempotent: periods compare lexicographically ("YYYY-MM" is zero-padded),
// and a period at or before the last_reset marker does nothing.
type Manager struct {
	store   *ledger.Store
	ledgers LedgerRepo
	archive ArchiveRepo
}

func NewManager(store *ledger.Store, ledgers LedgerRepo, archive ArchiveRepo) *Manager {
	return &Manager{store: store, ledgers: ledgers, archive: archive}
}

// CurrentPeriod formats a time as a ledger period id.
func CurrentPeriod(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// CheckAndRollover archives the ended period and subtracts the archived
// counters from the live ledger when currentPeriod is newer than the
// last_reset marker. The snapshot is keyed by the marker's old value: that
// is the period the data accrued in. The archive write must succeed durably
// before anything is reset; on the very first run there is no ended period,
// so only the marker is set.
func (m *Manager) CheckAndRollover(currentPeriod string) (Outcome, error) {
	arch := m.archive.Load()
	if arch.LastReset != "" && currentPeriod <= arch.LastReset {
		return Outcome{}, nil
	}
	prev := arch.LastReset
	if arch.Periods == nil {
		arch.Periods = make(map[string]ledger.Snapshot)
	}
	var snap ledger.Snapshot
	if prev != "" {
		var exists bool
		if snap, exists = arch.Periods[prev]; !exists {
			snap = m.store.Snapshot()
			arch.Periods[prev] = snap
		}
	}
	arch.LastReset = currentPeriod
	if err := m.archive.Save(arch); err != nil {
		// No confirmed archive, no reset.
		return Outcome{}, fmt.Errorf("rollover to %s: %w", currentPeriod, err)
	}
	if prev == "" {
		return Outcome{}, nil
	}
	// Subtract exactly what was archived: the dispatch loop keeps running
	// while the archive write is in flight, and anything it recorded in the
	// meantime belongs to the new period.
	m.store.SubtractSnapshot(snap)
	if err := m.ledgers.Save(m.store.Snapshot()); err != nil {
		return Outcome{Archived: true, Period: prev}, fmt.Errorf("persist reset ledger: %w", err)
	}
	return Outcome{Archived: true, Period: prev}, nil
}

// History returns the most recently archived snapshot for a chat.
func (m *Manager) History(chat string) (string, map[string]ledger.Record, bool) {
	arch := m.archive.Load()
	period, ok := arch.Latest()
	if !ok {
		return "", nil, false
	}
	users, ok := arch.Periods[period][chat]
	if !ok || len(users) == 0 {
		return "", nil, false
	}
	return period, users, true
}

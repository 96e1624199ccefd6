package storage

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"engagement-bot/internal/ledger"
)

// lastResetKey is reserved in the archive document; every other top-level
// key is a "YYYY-MM" period holding a full ledger snapshot.
const lastResetKey = "last_reset"

// Archive holds the monthly snapshots plus the marker of the most recently
// started period. Period entries are write-once.
type Archive struct {
	LastReset string
	Periods   map[string]ledger.Snapshot
}

func (a Archive) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(a.Periods)+1)
	if a.LastReset != "" {
		doc[lastResetKey] = a.LastReset
	}
	for period, snap := range a.Periods {
		doc[period] = snap
	}
	return json.Marshal(doc)
}

func (a *Archive) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	a.LastReset = ""
	a.Periods = make(map[string]ledger.Snapshot, len(doc))
	for key, raw := range doc {
		if key == lastResetKey {
			if err := json.Unmarshal(raw, &a.LastReset); err != nil {
				return fmt.Errorf("%s: %w", lastResetKey, err)
			}
			continue
		}
		var snap ledger.Snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return fmt.Errorf("period %s: %w", key, err)
		}
		a.Periods[key] = snap
	}
	return nil
}

// Latest returns the most recent archived period id, if any.
func (a Archive) Latest() (string, bool) {
	periods := make([]string, 0, len(a.Periods))
	for period := range a.Periods {
		periods = append(periods, period)
	}
	if len(periods) == 0 {
		return "", false
	}
	sort.Strings(periods)
	return periods[len(periods)-1], true
}

// ArchiveFile persists the history archive with the same atomic-write
// discipline as the ledger file.
type ArchiveFile struct {
	path string
	mu   sync.Mutex
}

func NewArchiveFile(path string) (*ArchiveFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	return &ArchiveFile{path: path}, nil
}

func (f *ArchiveFile) Save(a Archive) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := writeFileAtomic(f.path, a); err != nil {
		return fmt.Errorf("save archive: %w", err)
	}
	return nil
}

func (f *ArchiveFile) Load() Archive {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("load archive %s: %v; starting empty", f.path, err)
		}
		return Archive{Periods: make(map[string]ledger.Snapshot)}
	}
	var a Archive
	if err := a.UnmarshalJSON(data); err != nil {
		log.Printf("load archive %s: %v; starting empty", f.path, fmt.Errorf("%w: %v", ErrMalformedData, err))
		return Archive{Periods: make(map[string]ledger.Snapshot)}
	}
	return a
}

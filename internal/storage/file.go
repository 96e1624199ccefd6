package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"engagement-bot/internal/ledger"
)

// ErrMalformedData marks a persisted document that exists but fails
// structural validation.
var ErrMalformedData = errors.New("malformed data file")

// LedgerFile persists the engagement ledger as a single JSON document.
// Saves go through a temp file, fsync and atomic rename, so a crash mid-write
// can never leave a truncated canonical file behind.
type LedgerFile struct {
	path string
	mu   sync.Mutex
}

func NewLedgerFile(path string) (*LedgerFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	return &LedgerFile{path: path}, nil
}

func (f *LedgerFile) Save(snap ledger.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := writeFileAtomic(f.path, snap); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

// Load returns the persisted ledger, or an empty one when the file is
// missing or unreadable. A corrupt file is logged and discarded: the bot
// stays available and starts counting fresh.
func (f *LedgerFile) Load() ledger.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, err := readLedger(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("load ledger %s: %v; starting empty", f.path, err)
		}
		return ledger.Snapshot{}
	}
	return snap
}

func readLedger(path string) (ledger.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap ledger.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedData, err)
	}
	if snap == nil {
		snap = ledger.Snapshot{}
	}
	return snap, nil
}

// writeFileAtomic makes the rename the only operation that can publish a new
// version of path. The temp file lives in the same directory so the rename
// stays on one filesystem.
func writeFileAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func(stage string, cause error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%s: %w", stage, cause)
	}
	if _, err := tmp.Write(data); err != nil {
		return cleanup("write temp", err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup("sync temp", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

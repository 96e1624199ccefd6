package ledger

import (
	"sort"
	"sync"
)

// Record holds one user's engagement counters for a single chat and period.
// Points is accumulated alongside the other counters and always equals
// Messages + ReactionsGiven + ReactionsReceived.
type Record struct {
	Username          string `json:"username"`
	Messages          int    `json:"messages"`
	ReactionsGiven    int    `json:"reactions_given"`
	ReactionsReceived int    `json:"reactions_received"`
	Points            int    `json:"points"`
}

// Snapshot is the persisted document shape: chat id -> user id -> record.
type Snapshot map[string]map[string]Record

// Entry is one leaderboard row.
type Entry struct {
	UserID string
	Record Record
}

// Leaderboard sizes used by the command surface.
const (
	StatsLimit      = 5
	HistoryLimit    = 10
	AdminStatsLimit = 25
)

// RemovalPolicy selects what happens when a reaction is removed.
type RemovalPolicy int

const (
	// IgnoreRemovals keeps counters grow-only: removals are a no-op.
	IgnoreRemovals RemovalPolicy = iota
	// DecrementOnRemoval reverses the matching addition, never below zero.
	DecrementOnRemoval
)

type chatTable struct {
	records map[string]*Record
	order   []string // user ids in first-seen order, leaderboard tie-break
}

// Store owns the in-memory engagement tables and the message attribution
// cache. All access is serialized by a single mutex.
type Store struct {
	mu      sync.Mutex
	chats   map[string]*chatTable
	cache   *attributionCache
	removal RemovalPolicy
}

// NewStore builds a store seeded from a previously persisted snapshot.
// cacheSize bounds the message attribution cache across all chats.
func NewStore(initial Snapshot, cacheSize int, removal RemovalPolicy) *Store {
	s := &Store{
		chats:   make(map[string]*chatTable),
		cache:   newAttributionCache(cacheSize),
		removal: removal,
	}
	for chatID, users := range initial {
		ct := &chatTable{records: make(map[string]*Record, len(users))}
		for userID := range users {
			ct.order = append(ct.order, userID)
		}
		// Snapshot maps carry no order; sort for a deterministic tie-break.
		sort.Strings(ct.order)
		for userID, rec := range users {
			r := rec
			ct.records[userID] = &r
		}
		s.chats[chatID] = ct
	}
	return s
}

func (s *Store) ensure(chat, user, username string) *Record {
	ct := s.chats[chat]
	if ct == nil {
		ct = &chatTable{records: make(map[string]*Record)}
		s.chats[chat] = ct
	}
	rec := ct.records[user]
	if rec == nil {
		rec = &Record{}
		ct.records[user] = rec
		ct.order = append(ct.order, user)
	}
	if username != "" {
		rec.Username = username
	}
	return rec
}

// RecordMessage credits a sent message and remembers who authored it so a
// later reaction can be attributed.
func (s *Store) RecordMessage(chat, user, username, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.ensure(chat, user, username)
	rec.Messages++
	rec.Points++
	s.cache.put(chat, messageID, user)
}

// RecordReaction credits a reaction to the reactor and, when the message is
// still in the attribution cache, to the message author. An unknown message
// id credits the reactor only. Removals follow the configured RemovalPolicy.
func (s *Store) RecordReaction(chat, reactor, reactorUsername, messageID string, added bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !added {
		if s.removal == IgnoreRemovals {
			return
		}
		s.decrementReaction(chat, reactor, messageID)
		return
	}
	rec := s.ensure(chat, reactor, reactorUsername)
	rec.ReactionsGiven++
	rec.Points++
	if author, ok := s.cache.get(chat, messageID); ok {
		target := s.ensure(chat, author, "")
		target.ReactionsReceived++
		target.Points++
	}
}

// decrementReaction reverses one addition as a unit: if the reactor has
// nothing to reverse the removal is spurious and the author side is left
// alone too.
func (s *Store) decrementReaction(chat, reactor, messageID string) {
	ct := s.chats[chat]
	if ct == nil {
		return
	}
	rec := ct.records[reactor]
	if rec == nil || rec.ReactionsGiven == 0 {
		return
	}
	rec.ReactionsGiven--
	rec.Points--
	author, ok := s.cache.get(chat, messageID)
	if !ok {
		return
	}
	if target := ct.records[author]; target != nil && target.ReactionsReceived > 0 {
		target.ReactionsReceived--
		target.Points--
	}
}

// Leaderboard returns up to limit entries for a chat, points descending.
// Equal points keep their first-seen order so repeated calls agree.
func (s *Store) Leaderboard(chat string, limit int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	ct := s.chats[chat]
	if ct == nil {
		return nil
	}
	entries := make([]Entry, 0, len(ct.order))
	for _, userID := range ct.order {
		entries = append(entries, Entry{UserID: userID, Record: *ct.records[userID]})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Record.Points > entries[j].Record.Points
	})
	if limit < len(entries) {
		entries = entries[:limit]
	}
	return entries
}

// Top ranks a snapshot chat table outside a live store, used for archived
// periods. Snapshots carry no insertion order, so ties break by user id to
// stay deterministic.
func Top(users map[string]Record, limit int) []Entry {
	entries := make([]Entry, 0, len(users))
	for userID, rec := range users {
		entries = append(entries, Entry{UserID: userID, Record: rec})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Record.Points != entries[j].Record.Points {
			return entries[i].Record.Points > entries[j].Record.Points
		}
		return entries[i].UserID < entries[j].UserID
	})
	if limit < len(entries) {
		entries = entries[:limit]
	}
	return entries
}

// Snapshot deep-copies the tables for persistence or archiving.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(Snapshot, len(s.chats))
	for chatID, ct := range s.chats {
		users := make(map[string]Record, len(ct.records))
		for userID, rec := range ct.records {
			users[userID] = *rec
		}
		out[chatID] = users
	}
	return out
}

// SubtractSnapshot removes an archived snapshot's counters from the live
// records while keeping usernames. Only the rollover path calls this, after
// the snapshot is durably archived: subtracting rather than zeroing means
// events recorded while the archive write was in flight carry into the new
// period instead of being lost. Counters floor at zero and points are
// re-derived from the three parts, so the invariant survives any skew.
func (s *Store) SubtractSnapshot(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for chatID, users := range snap {
		ct := s.chats[chatID]
		if ct == nil {
			continue
		}
		for userID, old := range users {
			rec := ct.records[userID]
			if rec == nil {
				continue
			}
			rec.Messages = floorSub(rec.Messages, old.Messages)
			rec.ReactionsGiven = floorSub(rec.ReactionsGiven, old.ReactionsGiven)
			rec.ReactionsReceived = floorSub(rec.ReactionsReceived, old.ReactionsReceived)
			rec.Points = rec.Messages + rec.ReactionsGiven + rec.ReactionsReceived
		}
	}
}

func floorSub(a, b int) int {
	if a < b {
		return 0
	}
	return a - b
}

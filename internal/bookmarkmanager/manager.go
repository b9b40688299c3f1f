// Package bookmarkmanager implements SPEC_FULL §4.2's default in-memory
// bookmark manager: a thread-safe union of per-database bookmark sets,
// shared across sessions so causal consistency survives session boundaries.
package bookmarkmanager

import "sync"

// Manager tracks the latest known bookmarks per database and lets callers
// supply extra bookmarks to union in before a transaction begins.
type Manager interface {
	GetBookmarks(database string) []string
	GetAllBookmarks() []string
	UpdateBookmarks(database string, previous, new []string)
}

type inMemory struct {
	mu        sync.RWMutex
	perDB     map[string]map[string]struct{}
	onUpdate  func(database string, bookmarks []string)
}

// New returns the default bookmark manager described in SPEC_FULL §4.2.
// onUpdate, if non-nil, is invoked after every UpdateBookmarks call with the
// new full bookmark set for that database (for callers persisting bookmarks
// externally).
func New(onUpdate func(database string, bookmarks []string)) Manager {
	return &inMemory{perDB: make(map[string]map[string]struct{}), onUpdate: onUpdate}
}

func (m *inMemory) GetBookmarks(database string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := m.perDB[database]
	out := make([]string, 0, len(set))
	for bm := range set {
		out = append(out, bm)
	}
	return out
}

func (m *inMemory) GetAllBookmarks() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for _, set := range m.perDB {
		for bm := range set {
			out = append(out, bm)
		}
	}
	return out
}

// UpdateBookmarks removes previous (the bookmarks a transaction started
// with, now superseded) and adds new (the bookmark(s) it produced).
func (m *inMemory) UpdateBookmarks(database string, previous, newBookmarks []string) {
	m.mu.Lock()
	set, ok := m.perDB[database]
	if !ok {
		set = make(map[string]struct{})
		m.perDB[database] = set
	}
	for _, bm := range previous {
		delete(set, bm)
	}
	for _, bm := range newBookmarks {
		if bm != "" {
			set[bm] = struct{}{}
		}
	}
	var snapshot []string
	for bm := range set {
		snapshot = append(snapshot, bm)
	}
	cb := m.onUpdate
	m.mu.Unlock()

	if cb != nil {
		cb(database, snapshot)
	}
}

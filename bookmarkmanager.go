package gobolt

import "github.com/boltstream/gobolt/internal/bookmarkmanager"

// BookmarkManager supplies and updates a cross-session view of a database's
// latest bookmarks (spec §6 "bookmark_manager"). It is a Session-scoped
// config option, not driver-wide: a Session only consults one if
// SessionConfig.BookmarkManager is set, and a manager shared by several
// sessions augments the bookmarks each of them sends to the server without
// ever being reflected back through any one session's LastBookmarks
// (spec §4.6, §8).
type BookmarkManager interface {
	GetBookmarks(database string) []string
	GetAllBookmarks() []string
	UpdateBookmarks(database string, previous, next []string)
}

// NewBookmarkManager returns the default in-memory BookmarkManager described
// in spec §6: a thread-safe union of per-database bookmark sets. Pass the
// same instance to several SessionConfig.BookmarkManager fields to chain
// causal consistency across sessions.
func NewBookmarkManager() BookmarkManager {
	return bookmarkmanager.New(nil)
}

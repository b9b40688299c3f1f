package gobolt

// Bookmarks is an opaque set of bookmark tokens used to enforce causal
// consistency between sessions (spec §3 "Bookmark").
type Bookmarks []string

// CombineBookmarks merges several bookmark sets into one, dropping empty
// entries, for passing to SessionConfig.Bookmarks when chaining sessions.
func CombineBookmarks(sets ...Bookmarks) Bookmarks {
	var out Bookmarks
	for _, set := range sets {
		for _, bm := range set {
			if bm != "" {
				out = append(out, bm)
			}
		}
	}
	return out
}

func cleanupBookmarks(bookmarks []string) []string {
	hasEmpty := false
	for _, b := range bookmarks {
		if b == "" {
			hasEmpty = true
			break
		}
	}
	if !hasEmpty {
		return bookmarks
	}
	cleaned := make([]string, 0, len(bookmarks))
	for _, b := range bookmarks {
		if b != "" {
			cleaned = append(cleaned, b)
		}
	}
	return cleaned
}

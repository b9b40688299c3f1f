package bookmarkmanager

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sortedStrings(ss []string) []string {
	out := append([]string(nil), ss...)
	sort.Strings(out)
	return out
}

func TestUpdateBookmarksReplacesPrevious(t *testing.T) {
	m := New(nil)
	m.UpdateBookmarks("neo4j", nil, []string{"bm1"})
	require.Equal(t, []string{"bm1"}, sortedStrings(m.GetBookmarks("neo4j")))

	m.UpdateBookmarks("neo4j", []string{"bm1"}, []string{"bm2"})
	assert.Equal(t, []string{"bm2"}, sortedStrings(m.GetBookmarks("neo4j")))
}

func TestGetAllBookmarksSpansDatabases(t *testing.T) {
	m := New(nil)
	m.UpdateBookmarks("neo4j", nil, []string{"bm1"})
	m.UpdateBookmarks("system", nil, []string{"bm2"})
	assert.Equal(t, []string{"bm1", "bm2"}, sortedStrings(m.GetAllBookmarks()))
}

func TestUpdateBookmarksInvokesCallbackWithFullSet(t *testing.T) {
	var gotDB string
	var gotBookmarks []string
	m := New(func(database string, bookmarks []string) {
		gotDB = database
		gotBookmarks = bookmarks
	})
	m.UpdateBookmarks("neo4j", nil, []string{"bm1"})
	require.Equal(t, "neo4j", gotDB)
	assert.Equal(t, []string{"bm1"}, gotBookmarks)
}

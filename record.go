package gobolt

import "github.com/boltstream/gobolt/internal/db"

// Record is one row of a Cypher result.
type Record struct {
	Keys   []string
	Values []any
}

// Get returns the value for key and whether it was present.
func (r *Record) Get(key string) (any, bool) {
	for i, k := range r.Keys {
		if k == key {
			return r.Values[i], true
		}
	}
	return nil, false
}

func newRecord(r *db.Record) *Record {
	if r == nil {
		return nil
	}
	return &Record{Keys: r.Keys, Values: r.Values}
}

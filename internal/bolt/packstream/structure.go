package packstream

import "fmt"

// Structure is a tagged PackStream structure: a one-byte tag followed by N
// field values. Bolt messages (HELLO, RUN, SUCCESS, RECORD, ...) and
// extension value types (nodes, relationships, temporal/spatial values) are
// all structures; this package only frames them, it does not know what a
// given tag means.
type Structure struct {
	Tag    byte
	Fields []any
}

func (s *Structure) String() string {
	return fmt.Sprintf("Structure{tag: 0x%02X, fields: %v}", s.Tag, s.Fields)
}

// Equal reports deep structural equality, used by round-trip property tests.
func (s *Structure) Equal(other *Structure) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.Tag != other.Tag || len(s.Fields) != len(other.Fields) {
		return false
	}
	for i := range s.Fields {
		if !valueEqual(s.Fields[i], other.Fields[i]) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	switch av := a.(type) {
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valueEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !valueEqual(v, bvv) {
				return false
			}
		}
		return true
	case *Structure:
		bv, ok := b.(*Structure)
		if !ok {
			return false
		}
		return av.Equal(bv)
	case []byte:
		bv, ok := b.([]byte)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

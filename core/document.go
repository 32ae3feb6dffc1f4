// Package core holds the types shared by the codec, the adapter and every
// backing store: the Document representation, typed errors and the helpers
// that operate on documents independently of where they are stored.
package core

// Document represents a single record retrieved from, or written to, a
// collection. Values are whatever encoding/json produces for a JSON object,
// plus any native types a backing store returns (for example time.Time).
type Document map[string]any

// Clone returns a shallow copy of the document. Nested maps and slices are
// shared with the original.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Snapshot is a document together with the id it is stored under.
type Snapshot struct {
	ID   string
	Data Document
}

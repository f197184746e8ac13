package index

import "strings"

// Posting records every occurrence of one term in one document.
type Posting struct {
	DocID     uint32
	Frequency uint32
	Positions []uint32
}

type PostingList []Posting

// Term is a normalised token qualified by the ordinal of its field.
type Term struct {
	Field int
	Token string
}

// Compare orders terms by field ordinal, then by token bytes.
func (t Term) Compare(o Term) int {
	if t.Field != o.Field {
		if t.Field < o.Field {
			return -1
		}
		return 1
	}
	return strings.Compare(t.Token, o.Token)
}

type TermEntry struct {
	Term     Term
	Postings PostingList
}

// Document maps field names to their values in caller order.
type Document map[string][]string

// Add appends value to field.
func (d Document) Add(field, value string) {
	d[field] = append(d[field], value)
}

// Snapshot is the sorted, immutable output of a Builder, ready to be
// serialised as one segment.
type Snapshot struct {
	DocCount uint32
	// NormFields is the number of indexed fields; Norms has one row of that
	// width per document.
	NormFields int
	Terms      []TermEntry
	Norms      [][]uint32
	Stored     []map[string][]string
}

// Package schema declares the fields of an index and how each one is
// handled. A Schema is fixed when the index is created and is persisted in
// the index manifest.
package schema

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	apperrors "github.com/Adithya-Monish-Kumar-K/scrapq/pkg/errors"
)

const (
	FieldTitle = "title"
	FieldBody  = "body"
)

// Field describes one named field.
type Field struct {
	Name    string `json:"name"`
	Indexed bool   `json:"indexed"`
	Stored  bool   `json:"stored"`
}

// Schema is an ordered set of uniquely named fields.
type Schema struct {
	fields  []Field
	ordinal map[string]int
}

// New validates fields and builds a Schema preserving their order.
func New(fields ...Field) (*Schema, error) {
	var result *multierror.Error
	if len(fields) == 0 {
		result = multierror.Append(result, fmt.Errorf("schema has no fields"))
	}
	ordinal := make(map[string]int, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			result = multierror.Append(result, fmt.Errorf("field %d has no name", i))
			continue
		}
		if _, dup := ordinal[f.Name]; dup {
			result = multierror.Append(result, fmt.Errorf("duplicate field %q", f.Name))
			continue
		}
		ordinal[f.Name] = i
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, apperrors.New(apperrors.ErrSchemaMismatch, err.Error())
	}
	return &Schema{
		fields:  append([]Field(nil), fields...),
		ordinal: ordinal,
	}, nil
}

// Default returns the title/body schema used for scrapbox pages.
func Default() *Schema {
	s, _ := New(
		Field{Name: FieldTitle, Indexed: true, Stored: true},
		Field{Name: FieldBody, Indexed: true, Stored: true},
	)
	return s
}

// Fields returns a copy of the fields in declaration order.
func (s *Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Len returns the number of declared fields.
func (s *Schema) Len() int {
	return len(s.fields)
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.ordinal[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Ordinal returns the position of name in the schema.
func (s *Schema) Ordinal(name string) (int, bool) {
	i, ok := s.ordinal[name]
	return i, ok
}

// FieldAt returns the field declared at ordinal i.
func (s *Schema) FieldAt(i int) Field {
	return s.fields[i]
}

// IndexedFields returns the ordinals of every indexed field, in order.
func (s *Schema) IndexedFields() []int {
	out := make([]int, 0, len(s.fields))
	for i, f := range s.fields {
		if f.Indexed {
			out = append(out, i)
		}
	}
	return out
}

// NormSlot returns the position of an indexed field among the indexed
// fields, which is how field lengths are laid out per document.
func (s *Schema) NormSlot(ordinal int) (int, bool) {
	slot := 0
	for i, f := range s.fields {
		if !f.Indexed {
			continue
		}
		if i == ordinal {
			return slot, true
		}
		slot++
	}
	return 0, false
}

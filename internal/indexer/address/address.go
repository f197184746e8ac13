// Package address defines DocAddress, the only external handle on an
// indexed document, and its "<segment_ord>:<local_doc_id>" text form.
package address

import (
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/scrapq/pkg/errors"
)

const separator = ":"

// DocAddress locates a document by segment ordinal and segment-local id.
type DocAddress struct {
	Segment uint32
	Doc     uint32
}

// String formats the address as "<segment_ord>:<local_doc_id>".
func (a DocAddress) String() string {
	return strconv.FormatUint(uint64(a.Segment), 10) + separator + strconv.FormatUint(uint64(a.Doc), 10)
}

// Less orders addresses by segment, then by document.
func (a DocAddress) Less(b DocAddress) bool {
	if a.Segment != b.Segment {
		return a.Segment < b.Segment
	}
	return a.Doc < b.Doc
}

// MarshalText implements encoding.TextMarshaler.
func (a DocAddress) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *DocAddress) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Parse reads an address produced by DocAddress.String.
func Parse(s string) (DocAddress, error) {
	segPart, docPart, found := strings.Cut(s, separator)
	if !found {
		return DocAddress{}, apperrors.Newf(apperrors.ErrInvalidAddress, "%q: missing %q separator", s, separator)
	}
	if strings.Contains(docPart, separator) {
		return DocAddress{}, apperrors.Newf(apperrors.ErrInvalidAddress, "%q: too many %q separators", s, separator)
	}
	seg, err := parseComponent(s, "segment ordinal", segPart)
	if err != nil {
		return DocAddress{}, err
	}
	doc, err := parseComponent(s, "document id", docPart)
	if err != nil {
		return DocAddress{}, err
	}
	return DocAddress{Segment: seg, Doc: doc}, nil
}

func parseComponent(s, name, part string) (uint32, error) {
	if part == "" {
		return 0, apperrors.Newf(apperrors.ErrInvalidAddress, "%q: empty %s", s, name)
	}
	for _, r := range part {
		if r < '0' || r > '9' {
			return 0, apperrors.Newf(apperrors.ErrInvalidAddress, "%q: %s %q is not a decimal number", s, name, part)
		}
	}
	v, err := strconv.ParseUint(part, 10, 32)
	if err != nil {
		return 0, apperrors.Newf(apperrors.ErrInvalidAddress, "%q: %s %q out of range", s, name, part)
	}
	return uint32(v), nil
}

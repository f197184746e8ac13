package scrapbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	apperrors "github.com/Adithya-Monish-Kumar-K/scrapq/pkg/errors"
)

// DecodeBundle reads one JSON bundle from r. source names the input in
// error messages.
func DecodeBundle(r io.Reader, source string) (*Bundle, error) {
	var b Bundle
	dec := json.NewDecoder(r)
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("%w: decoding bundle %s: %w", apperrors.ErrInvalidInput, source, err)
	}
	if dec.More() {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "decoding bundle %s: trailing data after JSON document", source)
	}
	return &b, nil
}

// ReadBundle decodes the bundle stored at path.
func ReadBundle(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.Newf(apperrors.ErrNotFound, "bundle file %s does not exist", path)
		}
		return nil, fmt.Errorf("%w: opening bundle %s: %w", apperrors.ErrIO, path, err)
	}
	defer f.Close()
	return DecodeBundle(f, path)
}

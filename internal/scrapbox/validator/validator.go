// Package validator checks decoded bundles before they are indexed and
// reports every problem with the page it belongs to.
package validator

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/scrapbox"
	apperrors "github.com/Adithya-Monish-Kumar-K/scrapq/pkg/errors"
)

const maxTitleLength = 1024

// ValidationError holds per-field validation failure messages, keyed by a
// path such as "pages[3].title".
type ValidationError struct {
	Source string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return fmt.Sprintf("invalid bundle %s: %s", e.Source, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

// ValidateBundle checks that pages are present and that no page title is
// longer than 1024 characters. Blank titles are allowed. source names the
// file in errors.
func ValidateBundle(b *scrapbox.Bundle, source string) error {
	errs := make(map[string]string)
	if b.Pages == nil {
		errs["pages"] = "pages is required"
	}
	for i, p := range b.Pages {
		if utf8.RuneCountInString(p.Title) > maxTitleLength {
			errs[fmt.Sprintf("pages[%d].title", i)] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Source: source, Fields: errs}
	}
	return nil
}

// UntitledPages returns the indexes of pages whose title is blank.
func UntitledPages(b *scrapbox.Bundle) []int {
	var out []int
	for i, p := range b.Pages {
		if strings.TrimSpace(p.Title) == "" {
			out = append(out, i)
		}
	}
	return out
}

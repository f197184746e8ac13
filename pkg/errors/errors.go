// Package errors defines the error taxonomy shared by the index engine and
// the scrapq command line. Engine failures are sentinel errors, optionally
// wrapped in an AppError carrying context, and ExitCode maps any of them to a
// process exit status.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrConfig         = errors.New("config error")
	ErrInvalidInput   = errors.New("invalid input")
	ErrSchemaMismatch = errors.New("schema mismatch")
	ErrBuilderClosed  = errors.New("builder closed")
	ErrIO             = errors.New("i/o error")
	ErrAlreadyExists  = errors.New("index already exists")
	ErrNotFound       = errors.New("not found")
	ErrCorruptIndex   = errors.New("corrupt index")
	ErrFieldNotFound  = errors.New("field not found")
	ErrIndexCorrupt   = errors.New("index postings corrupt")
	ErrInvalidAddress = errors.New("invalid document address")
	ErrInvalidQuery   = errors.New("invalid query")
)

// Exit codes follow sysexits(3) where one fits.
const (
	ExitFailure     = 1
	ExitUsage       = 64
	ExitDataErr     = 65
	ExitNoInput     = 66
	ExitCantCreate  = 73
	ExitIOErr       = 74
	ExitConfigError = 78
)

type AppError struct {
	Err     error
	Message string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, message string) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: message,
	}
}

func Newf(sentinel error, format string, args ...any) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: fmt.Sprintf(format, args...),
	}
}

// ParseError reports a query that could not be parsed. Position is the byte
// offset into the query text where the problem was detected.
type ParseError struct {
	Reason   string
	Position int
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d: %s", e.Position, e.Reason)
}

// Unwrap returns ErrInvalidQuery unless a more specific sentinel was set.
func (e *ParseError) Unwrap() error {
	if e.Err == nil {
		return ErrInvalidQuery
	}
	return e.Err
}

func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return ExitUsage
	}
	switch {
	case errors.Is(err, ErrConfig):
		return ExitConfigError
	case errors.Is(err, ErrInvalidAddress), errors.Is(err, ErrInvalidQuery),
		errors.Is(err, ErrFieldNotFound), errors.Is(err, ErrInvalidInput):
		return ExitUsage
	case errors.Is(err, ErrNotFound):
		return ExitNoInput
	case errors.Is(err, ErrCorruptIndex), errors.Is(err, ErrIndexCorrupt),
		errors.Is(err, ErrSchemaMismatch):
		return ExitDataErr
	case errors.Is(err, ErrAlreadyExists):
		return ExitCantCreate
	case errors.Is(err, ErrIO):
		return ExitIOErr
	default:
		return ExitFailure
	}
}

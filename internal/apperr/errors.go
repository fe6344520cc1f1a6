// Package apperr defines the error kinds shared across Jotter packages.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrParse        = errors.New("parse error")
	ErrStorage      = errors.New("storage error")
	ErrDuplicateKey = errors.New("duplicate timestamp")
	ErrInvalid      = errors.New("invalid input")
	// ErrStale means a partition file no longer matches the locations held in memory.
	ErrStale = fmt.Errorf("%w: stale location", ErrStorage)
)

// ParseError reports a malformed partition line.
type ParseError struct {
	File string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("parse line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("parse %s:%d: %v", e.File, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is makes every ParseError match ErrParse.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// Storage wraps err as an ErrStorage, keeping err in the chain.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

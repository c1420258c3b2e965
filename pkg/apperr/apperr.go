// Package apperr defines the error kinds shared by the storage, metadata and
// orchestration layers. Handlers map kinds to HTTP status codes; the kinds
// themselves carry no transport meaning.
package apperr

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Match with errors.Is.
var (
	ErrQuotaExceeded = errors.New("quota exceeded")
	ErrAlreadyExists = errors.New("already exists")
	ErrNotFound      = errors.New("not found")
	ErrStorageIO     = errors.New("storage i/o failure")
	ErrPersistence   = errors.New("persistence failure")
	ErrUnauthorized  = errors.New("unauthorized")
)

// Error carries an error kind plus enough context (operation, owner, file) to
// diagnose orphaned state from logs alone.
type Error struct {
	Kind  error
	Op    string
	Owner string
	File  string
	Err   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.Owner != "" {
		msg += fmt.Sprintf(" (owner=%s", e.Owner)
		if e.File != "" {
			msg += fmt.Sprintf(", file=%s", e.File)
		}
		msg += ")"
	} else if e.File != "" {
		msg += fmt.Sprintf(" (file=%s)", e.File)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return e.Kind == target }

// E builds an Error. owner and file may be empty when not applicable; err may
// be nil when the kind alone says enough.
func E(kind error, op, owner, file string, err error) error {
	return &Error{Kind: kind, Op: op, Owner: owner, File: file, Err: err}
}

package campaign

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("campaign not found")
	ErrAlreadySent       = errors.New("campaign already sent")
	ErrNoRecipients      = errors.New("campaign has no recipients")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrGroupNotFound     = errors.New("group not found")
)

// StoreError is an Entity Store failure. It always aborts the operation
// that hit it.
type StoreError struct {
	Op   string
	Kind string
	Key  string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s %q: %v", e.Op, e.Kind, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

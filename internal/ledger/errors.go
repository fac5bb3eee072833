// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"errors"
	"fmt"
)

// ErrPersistence is matched by every ledger read or write failure.
var ErrPersistence = errors.New("ledger persistence failure")

// PersistenceError reports which operation on which file failed. Prior
// on-disk state is left untouched when it is returned.
type PersistenceError struct {
	Op   string // "lock", "load", "save"
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("ledger %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

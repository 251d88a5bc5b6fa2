// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios: ErrNotFound for a missing row, ErrConflict for a unique-key
// violation. Every other error returned by a repository is a transient
// backing-store failure, which callers mark with StorageFailure.
package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the referenced row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert or update would violate a unique
// key, such as registering a username or email that is already taken.
var ErrConflict = errors.New("conflict")

// ErrStorageFailure marks a transient backing-store error. The operation
// did not produce a domain outcome and may be retried by the caller.
var ErrStorageFailure = errors.New("storage failure")

// StorageFailure marks err as ErrStorageFailure. Domain outcomes
// (ErrNotFound, ErrConflict) and already marked errors pass through.
func StorageFailure(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrStorageFailure) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStorageFailure, op, err)
}

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

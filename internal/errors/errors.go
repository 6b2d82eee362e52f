package errors

import (
	"errors"
	"fmt"
)

// ErrValidation reports malformed input.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return e.Field + ": " + e.Message
}

// ErrNotFound reports an unknown investor, transaction, tranche or backup.
type ErrNotFound struct {
	Entity string
	ID     string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// ErrConflict reports a unique-key violation.
type ErrConflict struct {
	Entity string
	Detail string
}

func (e *ErrConflict) Error() string {
	return fmt.Sprintf("%s conflict: %s", e.Entity, e.Detail)
}

// ErrInsufficientUnits reports a withdrawal exceeding the investor's unit balance.
type ErrInsufficientUnits struct {
	InvestorID int64
	Requested  string
	Available  string
}

func (e *ErrInsufficientUnits) Error() string {
	return fmt.Sprintf("investor %d holds %s units, %s requested", e.InvestorID, e.Available, e.Requested)
}

// ErrNotReversible reports an undo attempt on a non-terminal transaction.
type ErrNotReversible struct {
	TransactionID int64
	Reason        string
}

func (e *ErrNotReversible) Error() string {
	return fmt.Sprintf("transaction %d is not reversible: %s", e.TransactionID, e.Reason)
}

// ErrStaleConfirmation reports a fee confirm token that no longer matches the ledger.
type ErrStaleConfirmation struct {
	Expected string
	Got      string
}

func (e *ErrStaleConfirmation) Error() string {
	return "fee preview is stale, run preview again"
}

// ErrPreconditionFailed reports a missing acknowledgment or confirm phrase.
type ErrPreconditionFailed struct {
	Message string
}

func (e *ErrPreconditionFailed) Error() string {
	return e.Message
}

// ErrBusy reports that the write gate could not be acquired in time.
type ErrBusy struct {
	Timeout string
}

func (e *ErrBusy) Error() string {
	return "another mutation is in progress (waited " + e.Timeout + ")"
}

// ErrStorage wraps a persistence fault. Callers may retry.
type ErrStorage struct {
	Op  string
	Err error
}

func (e *ErrStorage) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *ErrStorage) Unwrap() error { return e.Err }

// ErrCorrupted reports a backup archive that fails checksum or schema validation.
type ErrCorrupted struct {
	BackupID string
	Detail   string
}

func (e *ErrCorrupted) Error() string {
	return fmt.Sprintf("backup %s is corrupted: %s", e.BackupID, e.Detail)
}

// IsNotFound reports whether err is an ErrNotFound anywhere in its chain.
func IsNotFound(err error) bool {
	var target *ErrNotFound
	return errors.As(err, &target)
}

// IsValidation reports whether err is an ErrValidation anywhere in its chain.
func IsValidation(err error) bool {
	var target *ErrValidation
	return errors.As(err, &target)
}

// IsConflict reports whether err is an ErrConflict anywhere in its chain.
func IsConflict(err error) bool {
	var target *ErrConflict
	return errors.As(err, &target)
}

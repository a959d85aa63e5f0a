package waddrmgr

import (
	"fmt"
	"strconv"
)

var (
	// errAlreadyExists is the common error description used for the
	// ErrAlreadyExists error code.
	errAlreadyExists = "the specified tracking store already exists"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific ManagerError.
const (
	// ErrDatabase indicates an error with the underlying database.
	ErrDatabase ErrorCode = iota

	// ErrUpgrade indicates the manager needs to be upgraded, or was
	// written by a newer version.
	ErrUpgrade

	// ErrCrypto indicates a failure of a cryptographic operation.
	ErrCrypto

	// ErrNoExist indicates that the specified store does not exist.
	ErrNoExist

	// ErrAlreadyExists indicates that the specified store already
	// exists.
	ErrAlreadyExists

	// ErrWrongPassphrase indicates that the passphrase does not match the
	// one the store was created with.
	ErrWrongPassphrase

	// ErrEmptyPassphrase indicates an empty passphrase was given.
	ErrEmptyPassphrase

	// ErrAccountNotFound indicates that the requested account does not
	// exist.
	ErrAccountNotFound

	// ErrDuplicateAccount indicates an account with the same name is
	// already tracked.
	ErrDuplicateAccount

	// ErrInvalidAccount indicates an account which can not be stored,
	// such as one with a reserved or empty name.
	ErrInvalidAccount

	// ErrClosed indicates the manager was closed.
	ErrClosed
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrDatabase:         "ErrDatabase",
	ErrUpgrade:          "ErrUpgrade",
	ErrCrypto:           "ErrCrypto",
	ErrNoExist:          "ErrNoExist",
	ErrAlreadyExists:    "ErrAlreadyExists",
	ErrWrongPassphrase:  "ErrWrongPassphrase",
	ErrEmptyPassphrase:  "ErrEmptyPassphrase",
	ErrAccountNotFound:  "ErrAccountNotFound",
	ErrDuplicateAccount: "ErrDuplicateAccount",
	ErrInvalidAccount:   "ErrInvalidAccount",
	ErrClosed:           "ErrClosed",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return "Unknown ErrorCode (" + strconv.Itoa(int(e)) + ")"
}

// ManagerError provides a single type for errors that can happen during
// tracking store operation.
type ManagerError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e ManagerError) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying error.
func (e ManagerError) Unwrap() error {
	return e.Err
}

// managerError creates a ManagerError given a set of arguments.
func managerError(c ErrorCode, desc string, err error) ManagerError {
	return ManagerError{ErrorCode: c, Description: desc, Err: err}
}

// IsError returns whether the error is a ManagerError with a matching error
// code.
func IsError(err error, code ErrorCode) bool {
	merr, ok := err.(ManagerError)
	return ok && merr.ErrorCode == code
}

// maybeConvertDbError converts the passed error to a ManagerError with an
// error code of ErrDatabase if it is not already a ManagerError.
func maybeConvertDbError(err error) error {
	// When the error is already a ManagerError, just return it.
	if _, ok := err.(ManagerError); ok {
		return err
	}

	return managerError(ErrDatabase, fmt.Sprintf("database error: %v", err),
		err)
}

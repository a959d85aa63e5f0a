package descriptor

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrGrammar indicates a descriptor string which does not follow the
	// descriptor grammar. Malformed strings are never partially accepted.
	ErrGrammar ErrorCode = iota

	// ErrKeyDerivation indicates an invalid child index, an attempt to
	// derive a hardened child from a public key or a bad key encoding.
	ErrKeyDerivation

	// ErrScriptBuild indicates a failure to assemble a script, including
	// miniscript type errors.
	ErrScriptBuild

	// ErrUncompressedKeyInWitnessContext indicates an uncompressed public
	// key was used for a witness output category.
	ErrUncompressedKeyInWitnessContext

	// ErrCategoryUnavailable indicates the requested output category can
	// not be produced. Taproot outputs are always reported this way.
	ErrCategoryUnavailable

	// ErrSingleKeyTemplate indicates a lock script was requested from a
	// single key template, which only ever produces public keys.
	ErrSingleKeyTemplate

	// ErrInvalidTemplate indicates template parameters which violate
	// construction rules, such as a multisig threshold above the number
	// of members.
	ErrInvalidTemplate
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrGrammar:                         "ErrGrammar",
	ErrKeyDerivation:                   "ErrKeyDerivation",
	ErrScriptBuild:                     "ErrScriptBuild",
	ErrUncompressedKeyInWitnessContext: "ErrUncompressedKeyInWitnessContext",
	ErrCategoryUnavailable:             "ErrCategoryUnavailable",
	ErrSingleKeyTemplate:               "ErrSingleKeyTemplate",
	ErrInvalidTemplate:                 "ErrInvalidTemplate",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error provides a single type for errors that can happen while parsing
// descriptors, deriving keys or building scripts.
type Error struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error, optional
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying error, if any.
func (e Error) Unwrap() error {
	return e.Err
}

func descError(c ErrorCode, desc string, err error) Error {
	return Error{ErrorCode: c, Description: desc, Err: err}
}

// IsError returns whether err is, or wraps, an Error with the given code.
func IsError(err error, code ErrorCode) bool {
	var derr Error
	if !errors.As(err, &derr) {
		return false
	}
	return derr.ErrorCode == code
}

package miniscript

import "errors"

var (
	// ErrParse is returned for malformed miniscript or policy text.
	ErrParse = errors.New("miniscript: parse error")

	// ErrTypeCheck is returned when a fragment is applied to arguments
	// of the wrong type.
	ErrTypeCheck = errors.New("miniscript: type check failed")

	// ErrCompile is returned when a policy has no miniscript rendering
	// the compiler knows of.
	ErrCompile = errors.New("miniscript: policy compilation failed")

	// ErrAbstractKey is returned when a tree holding abstract keys is
	// encoded to script.
	ErrAbstractKey = errors.New("miniscript: key has no serialization")

	// ErrUncompressedKey is returned when an uncompressed key is encoded
	// for a witness context.
	ErrUncompressedKey = errors.New("miniscript: uncompressed key in witness context")
)

package walletdb

import "errors"

// Driver registration and database lifecycle errors.
var (
	// ErrDbTypeRegistered is returned by RegisterDriver for a type name
	// that is already taken.
	ErrDbTypeRegistered = errors.New("database type already registered")

	// ErrDbUnknownType is returned by Create and Open for unregistered
	// types.
	ErrDbUnknownType = errors.New("unknown database type")

	ErrDbDoesNotExist = errors.New("database does not exist")
	ErrDbExists       = errors.New("database already exists")
	ErrDbNotOpen      = errors.New("database not open")

	// ErrDbAlreadyOpen is returned when the file lock of the database
	// could not be taken before the open timeout.
	ErrDbAlreadyOpen = errors.New("database already open")

	// ErrInvalid is returned when the file is not a database of the
	// driver.
	ErrInvalid = errors.New("invalid database")

	// ErrDryRunRollBack can be returned from an Update closure to discard
	// its writes. Update passes it through to the caller.
	ErrDryRunRollBack = errors.New("dry run only; should roll back")
)

// Transaction errors.
var (
	ErrTxClosed      = errors.New("tx closed")
	ErrTxNotWritable = errors.New("tx not writable")
)

// Bucket and value errors.
var (
	ErrBucketNotFound     = errors.New("bucket not found")
	ErrBucketExists       = errors.New("bucket already exists")
	ErrBucketNameRequired = errors.New("bucket name required")
	ErrKeyRequired        = errors.New("key required")
	ErrKeyTooLarge        = errors.New("key too large")
	ErrValueTooLarge      = errors.New("value too large")

	// ErrIncompatibleValue is returned when a bucket operation is applied
	// to a plain key or the other way round.
	ErrIncompatibleValue = errors.New("incompatible value")
)

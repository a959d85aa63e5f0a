// Package walletdb defines the transactional key/value store the profile
// lives in. Backends register a Driver and are selected by type name.
package walletdb

import (
	"io"
	"sort"
	"sync"
)

// ReadTx is a read-only transaction. It must be rolled back when done.
type ReadTx interface {
	// ReadBucket returns the named top level bucket, or nil.
	ReadBucket(key []byte) ReadBucket

	ForEachBucket(func(key []byte) error) error
	Rollback() error
}

// ReadWriteTx is a transaction that can modify the database.
type ReadWriteTx interface {
	ReadTx

	// ReadWriteBucket returns the named top level bucket, or nil.
	ReadWriteBucket(key []byte) ReadWriteBucket

	// CreateTopLevelBucket returns the named bucket, creating it first
	// when missing.
	CreateTopLevelBucket(key []byte) (ReadWriteBucket, error)
	DeleteTopLevelBucket(key []byte) error

	Commit() error

	// OnCommit registers a function run after a successful commit.
	OnCommit(func())
}

// ReadBucket is a read-only view of a bucket. Slices returned by its methods
// are only valid for the life of the transaction.
type ReadBucket interface {
	NestedReadBucket(key []byte) ReadBucket

	// ForEach calls the function for every key in byte order. Nested
	// buckets are passed with a nil value.
	ForEach(func(k, v []byte) error) error
	Get(key []byte) []byte
	ReadCursor() ReadCursor
}

// ReadWriteBucket is a bucket of a read-write transaction.
type ReadWriteBucket interface {
	ReadBucket

	NestedReadWriteBucket(key []byte) ReadWriteBucket
	CreateBucket(key []byte) (ReadWriteBucket, error)
	CreateBucketIfNotExists(key []byte) (ReadWriteBucket, error)
	DeleteNestedBucket(key []byte) error
	Put(key, value []byte) error
	Delete(key []byte) error
	ReadWriteCursor() ReadWriteCursor
	Tx() ReadWriteTx

	NextSequence() (uint64, error)
	SetSequence(v uint64) error
	Sequence() uint64
}

// ReadCursor walks the keys of a bucket.
type ReadCursor interface {
	First() (key, value []byte)
	Last() (key, value []byte)
	Next() (key, value []byte)
	Prev() (key, value []byte)
	Seek(seek []byte) (key, value []byte)
}

// ReadWriteCursor can delete the key it points at.
type ReadWriteCursor interface {
	ReadCursor

	Delete() error
}

// DB is an open database.
type DB interface {
	BeginReadTx() (ReadTx, error)
	BeginReadWriteTx() (ReadWriteTx, error)

	// Copy writes a consistent snapshot of the database to w.
	Copy(w io.Writer) error
	Close() error
	PrintStats() string

	// View runs f in a read transaction. reset is called before every
	// attempt so f can clear state of a previous try.
	View(f func(tx ReadTx) error, reset func()) error

	// Update runs f in a read-write transaction, committed when f returns
	// nil.
	Update(f func(tx ReadWriteTx) error, reset func()) error
}

// View runs f in a read transaction of db.
func View(db DB, f func(tx ReadTx) error) error {
	return db.View(f, func() {})
}

// Update runs f in a read-write transaction of db. An error returned by f
// rolls the transaction back and is returned as is.
func Update(db DB, f func(tx ReadWriteTx) error) error {
	return db.Update(f, func() {})
}

// Driver is a database backend. The arguments of Create and Open are
// backend specific.
type Driver struct {
	DBType string
	Create func(args ...interface{}) (DB, error)
	Open   func(args ...interface{}) (DB, error)
}

var (
	driversMtx sync.RWMutex
	drivers    = make(map[string]*Driver)
)

// RegisterDriver makes a backend available to Create and Open.
func RegisterDriver(driver Driver) error {
	driversMtx.Lock()
	defer driversMtx.Unlock()

	if _, exists := drivers[driver.DBType]; exists {
		return ErrDbTypeRegistered
	}
	drivers[driver.DBType] = &driver
	return nil
}

// SupportedDrivers returns the registered database types in name order.
func SupportedDrivers() []string {
	driversMtx.RLock()
	defer driversMtx.RUnlock()

	types := make([]string, 0, len(drivers))
	for t := range drivers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func driver(dbType string) (*Driver, error) {
	driversMtx.RLock()
	defer driversMtx.RUnlock()

	drv, ok := drivers[dbType]
	if !ok {
		return nil, ErrDbUnknownType
	}
	return drv, nil
}

// Create creates a new database with the driver registered as dbType.
func Create(dbType string, args ...interface{}) (DB, error) {
	drv, err := driver(dbType)
	if err != nil {
		return nil, err
	}
	return drv.Create(args...)
}

// Open opens an existing database with the driver registered as dbType.
func Open(dbType string, args ...interface{}) (DB, error) {
	drv, err := driver(dbType)
	if err != nil {
		return nil, err
	}
	return drv.Open(args...)
}

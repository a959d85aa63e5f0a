package bdb

import (
	"github.com/pandora-prime/bitcoin-pro/walletdb"
	"go.etcd.io/bbolt"
)

// transaction is a bbolt transaction seen through the walletdb interfaces.
// The same value serves read-only and read-write transactions.
type transaction struct {
	boltTx *bbolt.Tx
	done   bool
}

var _ walletdb.ReadWriteTx = (*transaction)(nil)

func (tx *transaction) bucket(key []byte) *bucket {
	boltBucket := tx.boltTx.Bucket(key)
	if boltBucket == nil {
		return nil
	}
	return (*bucket)(boltBucket)
}

// ReadBucket returns nil when the bucket does not exist.
func (tx *transaction) ReadBucket(key []byte) walletdb.ReadBucket {
	if b := tx.bucket(key); b != nil {
		return b
	}
	return nil
}

// ReadWriteBucket returns nil when the bucket does not exist.
func (tx *transaction) ReadWriteBucket(key []byte) walletdb.ReadWriteBucket {
	if b := tx.bucket(key); b != nil {
		return b
	}
	return nil
}

func (tx *transaction) ForEachBucket(fn func(key []byte) error) error {
	err := tx.boltTx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
		return fn(name)
	})
	return convertErr(err)
}

// CreateTopLevelBucket returns the named top level bucket, creating it if
// needed.
func (tx *transaction) CreateTopLevelBucket(key []byte) (walletdb.ReadWriteBucket, error) {
	boltBucket, err := tx.boltTx.CreateBucketIfNotExists(key)
	if err != nil {
		return nil, convertErr(err)
	}
	return (*bucket)(boltBucket), nil
}

func (tx *transaction) DeleteTopLevelBucket(key []byte) error {
	return convertErr(tx.boltTx.DeleteBucket(key))
}

func (tx *transaction) Commit() error {
	tx.done = true
	return convertErr(tx.boltTx.Commit())
}

func (tx *transaction) Rollback() error {
	tx.done = true
	return convertErr(tx.boltTx.Rollback())
}

// OnCommit registers f to run after a successful commit.
func (tx *transaction) OnCommit(f func()) {
	tx.boltTx.OnCommit(f)
}

// rollbackOnPanic releases the transaction when a closure panics, so the
// database lock is not held while the panic unwinds.
func (tx *transaction) rollbackOnPanic() {
	if !tx.done {
		_ = tx.boltTx.Rollback()
	}
}

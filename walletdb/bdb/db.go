// Package bdb implements the walletdb interface on top of bbolt. The driver
// is registered as "bdb" and takes the database path, a no-freelist-sync
// flag and the open timeout as arguments.
package bdb

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pandora-prime/bitcoin-pro/walletdb"
	"go.etcd.io/bbolt"
)

// db wraps a bbolt database as a walletdb.DB.
type db bbolt.DB

var _ walletdb.DB = (*db)(nil)

func (db *db) bolt() *bbolt.DB {
	return (*bbolt.DB)(db)
}

func (db *db) beginTx(writable bool) (*transaction, error) {
	boltTx, err := db.bolt().Begin(writable)
	if err != nil {
		return nil, convertErr(err)
	}
	return &transaction{boltTx: boltTx}, nil
}

func (db *db) BeginReadTx() (walletdb.ReadTx, error) {
	return db.beginTx(false)
}

func (db *db) BeginReadWriteTx() (walletdb.ReadWriteTx, error) {
	return db.beginTx(true)
}

// Copy writes a consistent snapshot of the database to w.
func (db *db) Copy(w io.Writer) error {
	err := db.bolt().View(func(tx *bbolt.Tx) error {
		_, err := tx.WriteTo(w)
		return err
	})
	return convertErr(err)
}

func (db *db) Close() error {
	return convertErr(db.bolt().Close())
}

// PrintStats returns a short summary of the bbolt statistics.
func (db *db) PrintStats() string {
	s := db.bolt().Stats()
	return fmt.Sprintf("free pages %d, pending pages %d, open read txs "+
		"%d, write txs %d", s.FreePageN, s.PendingPageN, s.OpenTxN,
		s.TxN)
}

// View runs f in a read-only transaction which is always rolled back.
func (db *db) View(f func(tx walletdb.ReadTx) error, reset func()) error {
	reset()

	tx, err := db.beginTx(false)
	if err != nil {
		return err
	}
	defer tx.rollbackOnPanic()

	if err := f(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Rollback()
}

// Update runs f in a read-write transaction. The transaction is committed
// when f returns nil and rolled back otherwise, with f's error returned
// unchanged.
func (db *db) Update(f func(tx walletdb.ReadWriteTx) error, reset func()) error {
	reset()

	tx, err := db.beginTx(true)
	if err != nil {
		return err
	}
	defer tx.rollbackOnPanic()

	if err := f(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func openDB(a *openArgs, create bool) (walletdb.DB, error) {
	exists, err := fileExists(a.path)
	if err != nil {
		return nil, err
	}
	switch {
	case !create && !exists:
		return nil, walletdb.ErrDbDoesNotExist
	case create && exists:
		return nil, walletdb.ErrDbExists
	}

	boltDB, err := bbolt.Open(a.path, 0600, &bbolt.Options{
		NoFreelistSync: a.noFreelistSync,
		FreelistType:   bbolt.FreelistMapType,
		Timeout:        a.timeout,
	})
	if err != nil {
		return nil, convertErr(err)
	}
	return (*db)(boltDB), nil
}

func fileExists(name string) (bool, error) {
	_, err := os.Stat(name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	}
	return false, err
}

// boltErrors maps bbolt errors to their walletdb counterpart.
var boltErrors = []struct {
	bolt, walletdb error
}{
	{bbolt.ErrDatabaseNotOpen, walletdb.ErrDbNotOpen},
	{bbolt.ErrInvalid, walletdb.ErrInvalid},
	{bbolt.ErrTimeout, walletdb.ErrDbAlreadyOpen},
	{bbolt.ErrTxNotWritable, walletdb.ErrTxNotWritable},
	{bbolt.ErrTxClosed, walletdb.ErrTxClosed},
	{bbolt.ErrBucketNotFound, walletdb.ErrBucketNotFound},
	{bbolt.ErrBucketExists, walletdb.ErrBucketExists},
	{bbolt.ErrBucketNameRequired, walletdb.ErrBucketNameRequired},
	{bbolt.ErrKeyRequired, walletdb.ErrKeyRequired},
	{bbolt.ErrKeyTooLarge, walletdb.ErrKeyTooLarge},
	{bbolt.ErrValueTooLarge, walletdb.ErrValueTooLarge},
	{bbolt.ErrIncompatibleValue, walletdb.ErrIncompatibleValue},
}

func convertErr(err error) error {
	if err == nil {
		return nil
	}
	for _, e := range boltErrors {
		if errors.Is(err, e.bolt) {
			return e.walletdb
		}
	}
	return err
}

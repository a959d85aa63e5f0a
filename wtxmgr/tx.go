// Package wtxmgr persists the unspent outputs discovered for a profile so
// they survive restarts and can be refreshed by later scans.
package wtxmgr

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/pandora-prime/bitcoin-pro/resolver"
	"github.com/pandora-prime/bitcoin-pro/walletdb"
)

var (
	// ErrNoExist is returned when opening a namespace without a store.
	ErrNoExist = errors.New("the unspent output store does not exist")

	// ErrAlreadyExists is returned when creating a store twice.
	ErrAlreadyExists = errors.New("the unspent output store already exists")

	// ErrData is returned when stored data can not be decoded.
	ErrData = errors.New("malformed unspent output store data")

	// ErrUnknownVersion is returned for stores written by a newer version.
	ErrUnknownVersion = errors.New("unknown unspent output store version")
)

// Store keeps the unspent outputs of a profile.
type Store struct {
	chainParams *chaincfg.Params
}

// Create initializes an empty store in ns.
func Create(ns walletdb.ReadWriteBucket) error {
	if ns.NestedReadBucket(bucketMeta) != nil {
		return ErrAlreadyExists
	}
	if _, err := ns.CreateBucket(bucketMeta); err != nil {
		return fmt.Errorf("failed to create meta bucket: %w", err)
	}
	if _, err := ns.CreateBucket(bucketUnspent); err != nil {
		return fmt.Errorf("failed to create unspent bucket: %w", err)
	}
	return putVersion(ns, latestVersion)
}

// Open checks the store in ns and returns a handle to it.
func Open(ns walletdb.ReadBucket, chainParams *chaincfg.Params) (*Store, error) {
	version, err := fetchVersion(ns)
	if err != nil {
		return nil, err
	}
	if version != latestVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnknownVersion, version)
	}
	return &Store{chainParams: chainParams}, nil
}

// InsertRecords stores the records not yet known and returns how many were
// added.
func (s *Store) InsertRecords(ns walletdb.ReadWriteBucket,
	records []resolver.Record) (int, error) {

	var added int
	for i := range records {
		if existsUnspent(ns, &records[i].OutPoint) {
			continue
		}
		if err := putUnspent(ns, &records[i]); err != nil {
			return added, err
		}
		added++
	}
	if added > 0 {
		log.Debugf("Stored %d new unspent outputs", added)
	}
	return added, nil
}

// Contains reports whether op is stored.
func (s *Store) Contains(ns walletdb.ReadBucket, op wire.OutPoint) bool {
	return existsUnspent(ns, &op)
}

// Load returns all stored records as a resolver set, ready to be extended
// by a scan.
func (s *Store) Load(ns walletdb.ReadBucket) (*resolver.Set, error) {
	set := resolver.NewSet()
	err := forEachUnspent(ns, func(r resolver.Record) error {
		set.Insert(r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

// Records returns the stored records in resolver order.
func (s *Store) Records(ns walletdb.ReadBucket) ([]resolver.Record, error) {
	set, err := s.Load(ns)
	if err != nil {
		return nil, err
	}
	return set.Records(), nil
}

// Balance sums the stored records.
func (s *Store) Balance(ns walletdb.ReadBucket) (btcutil.Amount, error) {
	var total btcutil.Amount
	err := forEachUnspent(ns, func(r resolver.Record) error {
		total += r.Amount
		return nil
	})
	return total, err
}

// DeleteDescriptor removes every record found for the generator desc and
// returns how many were removed.
func (s *Store) DeleteDescriptor(ns walletdb.ReadWriteBucket,
	desc string) (int, error) {

	var keys [][]byte
	err := forEachUnspent(ns, func(r resolver.Record) error {
		if r.Descriptor == desc {
			keys = append(keys, canonicalOutPoint(&r.OutPoint))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	// Keys are collected first since bbolt forbids mutation while
	// iterating.
	bucket := ns.NestedReadWriteBucket(bucketUnspent)
	for _, k := range keys {
		if err := bucket.Delete(k); err != nil {
			return 0, fmt.Errorf("failed to delete unspent output: %w",
				err)
		}
	}
	return len(keys), nil
}

// Clear removes all records and the sync state.
func (s *Store) Clear(ns walletdb.ReadWriteBucket) error {
	if err := ns.DeleteNestedBucket(bucketUnspent); err != nil {
		return err
	}
	if _, err := ns.CreateBucket(bucketUnspent); err != nil {
		return err
	}
	return ns.NestedReadWriteBucket(bucketMeta).Delete(keySyncState)
}

// SetSyncState records the last completed scan.
func (s *Store) SetSyncState(ns walletdb.ReadWriteBucket, state *SyncState) error {
	return putSyncState(ns, state)
}

// SyncState returns the last completed scan, or nil if the store was never
// synced.
func (s *Store) SyncState(ns walletdb.ReadBucket) (*SyncState, error) {
	return fetchSyncState(ns)
}

// ChainParams returns the network of the store.
func (s *Store) ChainParams() *chaincfg.Params {
	return s.chainParams
}

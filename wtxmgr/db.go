package wtxmgr

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/pandora-prime/bitcoin-pro/descriptor"
	"github.com/pandora-prime/bitcoin-pro/resolver"
	"github.com/pandora-prime/bitcoin-pro/walletdb"
)

var (
	// bucketMeta holds the version and sync state of the store.
	bucketMeta = []byte("meta")

	// bucketUnspent maps serialized outpoints to unspent records.
	bucketUnspent = []byte("u")

	keyVersion   = []byte("ver")
	keySyncState = []byte("sync")
)

const (
	// latestVersion is the layout written by Create.
	latestVersion = 1

	outPointSize = chainhash.HashSize + 4

	// height (4) || amount (8) || category (1) || index (4) || descriptor
	recordHeaderSize = 4 + 8 + 1 + 4
)

// canonicalOutPoint returns the 36 byte key of an outpoint: the hash in
// internal byte order followed by the big endian output index.
func canonicalOutPoint(op *wire.OutPoint) []byte {
	k := make([]byte, outPointSize)
	copy(k, op.Hash[:])
	binary.BigEndian.PutUint32(k[chainhash.HashSize:], op.Index)
	return k
}

func readCanonicalOutPoint(k []byte, op *wire.OutPoint) error {
	if len(k) != outPointSize {
		return fmt.Errorf("%w: outpoint key of %d bytes", ErrData, len(k))
	}
	copy(op.Hash[:], k[:chainhash.HashSize])
	op.Index = binary.BigEndian.Uint32(k[chainhash.HashSize:])
	return nil
}

func valueUnspent(r *resolver.Record) []byte {
	v := make([]byte, recordHeaderSize+len(r.Descriptor))
	binary.BigEndian.PutUint32(v[0:4], r.Height)
	binary.BigEndian.PutUint64(v[4:12], uint64(r.Amount))
	v[12] = byte(r.Category)
	binary.BigEndian.PutUint32(v[13:17], r.Index)
	copy(v[recordHeaderSize:], r.Descriptor)
	return v
}

func readUnspent(k, v []byte) (resolver.Record, error) {
	var r resolver.Record
	if err := readCanonicalOutPoint(k, &r.OutPoint); err != nil {
		return r, err
	}
	if len(v) < recordHeaderSize {
		return r, fmt.Errorf("%w: unspent record of %d bytes for %v",
			ErrData, len(v), r.OutPoint)
	}
	r.Height = binary.BigEndian.Uint32(v[0:4])
	r.Amount = btcutil.Amount(binary.BigEndian.Uint64(v[4:12]))
	r.Category = descriptor.Category(v[12])
	r.Index = binary.BigEndian.Uint32(v[13:17])
	r.Descriptor = string(v[recordHeaderSize:])
	return r, nil
}

func putUnspent(ns walletdb.ReadWriteBucket, r *resolver.Record) error {
	k := canonicalOutPoint(&r.OutPoint)
	err := ns.NestedReadWriteBucket(bucketUnspent).Put(k, valueUnspent(r))
	if err != nil {
		return fmt.Errorf("failed to store unspent output %v: %w",
			r.OutPoint, err)
	}
	return nil
}

func existsUnspent(ns walletdb.ReadBucket, op *wire.OutPoint) bool {
	return ns.NestedReadBucket(bucketUnspent).Get(canonicalOutPoint(op)) != nil
}

func forEachUnspent(ns walletdb.ReadBucket,
	fn func(resolver.Record) error) error {

	return ns.NestedReadBucket(bucketUnspent).ForEach(func(k, v []byte) error {
		r, err := readUnspent(k, v)
		if err != nil {
			return err
		}
		return fn(r)
	})
}

func fetchVersion(ns walletdb.ReadBucket) (uint32, error) {
	meta := ns.NestedReadBucket(bucketMeta)
	if meta == nil {
		return 0, ErrNoExist
	}
	v := meta.Get(keyVersion)
	if len(v) != 4 {
		return 0, fmt.Errorf("%w: missing store version", ErrData)
	}
	return binary.BigEndian.Uint32(v), nil
}

func putVersion(ns walletdb.ReadWriteBucket, version uint32) error {
	var v [4]byte
	binary.BigEndian.PutUint32(v[:], version)
	return ns.NestedReadWriteBucket(bucketMeta).Put(keyVersion, v[:])
}

// SyncState records the last completed scan.
type SyncState struct {
	// Height is the chain tip height seen by the scan, zero if the index
	// did not report one.
	Height uint32

	// Mode is the resolver mode the scan ran with.
	Mode string

	Timestamp int64
}

func putSyncState(ns walletdb.ReadWriteBucket, s *SyncState) error {
	v := make([]byte, 12+len(s.Mode))
	binary.BigEndian.PutUint32(v[0:4], s.Height)
	binary.BigEndian.PutUint64(v[4:12], uint64(s.Timestamp))
	copy(v[12:], s.Mode)
	return ns.NestedReadWriteBucket(bucketMeta).Put(keySyncState, v)
}

func fetchSyncState(ns walletdb.ReadBucket) (*SyncState, error) {
	v := ns.NestedReadBucket(bucketMeta).Get(keySyncState)
	if v == nil {
		return nil, nil
	}
	if len(v) < 12 {
		return nil, fmt.Errorf("%w: sync state of %d bytes", ErrData,
			len(v))
	}
	return &SyncState{
		Height:    binary.BigEndian.Uint32(v[0:4]),
		Timestamp: int64(binary.BigEndian.Uint64(v[4:12])),
		Mode:      string(v[12:]),
	}, nil
}

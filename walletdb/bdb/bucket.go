package bdb

import (
	"github.com/pandora-prime/bitcoin-pro/walletdb"
	"go.etcd.io/bbolt"
)

// bucket is a bbolt bucket seen as a walletdb bucket.
type bucket bbolt.Bucket

var _ walletdb.ReadWriteBucket = (*bucket)(nil)

func (b *bucket) boltBucket() *bbolt.Bucket {
	return (*bbolt.Bucket)(b)
}

// NestedReadBucket returns nil when the nested bucket does not exist.
func (b *bucket) NestedReadBucket(key []byte) walletdb.ReadBucket {
	return b.NestedReadWriteBucket(key)
}

func (b *bucket) NestedReadWriteBucket(key []byte) walletdb.ReadWriteBucket {
	boltBucket := b.boltBucket().Bucket(key)
	if boltBucket == nil {
		return nil
	}
	return (*bucket)(boltBucket)
}

func (b *bucket) CreateBucket(key []byte) (walletdb.ReadWriteBucket, error) {
	boltBucket, err := b.boltBucket().CreateBucket(key)
	if err != nil {
		return nil, convertErr(err)
	}
	return (*bucket)(boltBucket), nil
}

func (b *bucket) CreateBucketIfNotExists(key []byte) (walletdb.ReadWriteBucket, error) {
	boltBucket, err := b.boltBucket().CreateBucketIfNotExists(key)
	if err != nil {
		return nil, convertErr(err)
	}
	return (*bucket)(boltBucket), nil
}

func (b *bucket) DeleteNestedBucket(key []byte) error {
	return convertErr(b.boltBucket().DeleteBucket(key))
}

// ForEach calls f for every key of the bucket. Nested buckets are passed
// with a nil value.
func (b *bucket) ForEach(f func(k, v []byte) error) error {
	return convertErr(b.boltBucket().ForEach(f))
}

// Get returns nil for missing keys. The returned slice is only valid during
// the transaction.
func (b *bucket) Get(key []byte) []byte {
	return b.boltBucket().Get(key)
}

func (b *bucket) Put(key, value []byte) error {
	return convertErr(b.boltBucket().Put(key, value))
}

func (b *bucket) Delete(key []byte) error {
	return convertErr(b.boltBucket().Delete(key))
}

func (b *bucket) ReadCursor() walletdb.ReadCursor {
	return b.ReadWriteCursor()
}

func (b *bucket) ReadWriteCursor() walletdb.ReadWriteCursor {
	return (*cursor)(b.boltBucket().Cursor())
}

func (b *bucket) Tx() walletdb.ReadWriteTx {
	return &transaction{boltTx: b.boltBucket().Tx()}
}

func (b *bucket) NextSequence() (uint64, error) {
	seq, err := b.boltBucket().NextSequence()
	return seq, convertErr(err)
}

func (b *bucket) SetSequence(v uint64) error {
	return convertErr(b.boltBucket().SetSequence(v))
}

func (b *bucket) Sequence() uint64 {
	return b.boltBucket().Sequence()
}

// cursor iterates the keys of a bucket in byte order.
type cursor bbolt.Cursor

var _ walletdb.ReadWriteCursor = (*cursor)(nil)

func (c *cursor) boltCursor() *bbolt.Cursor {
	return (*bbolt.Cursor)(c)
}

func (c *cursor) First() (key, value []byte) {
	return c.boltCursor().First()
}

func (c *cursor) Last() (key, value []byte) {
	return c.boltCursor().Last()
}

func (c *cursor) Next() (key, value []byte) {
	return c.boltCursor().Next()
}

func (c *cursor) Prev() (key, value []byte) {
	return c.boltCursor().Prev()
}

func (c *cursor) Seek(seek []byte) (key, value []byte) {
	return c.boltCursor().Seek(seek)
}

func (c *cursor) Delete() error {
	return convertErr(c.boltCursor().Delete())
}

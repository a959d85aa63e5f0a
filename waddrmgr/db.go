package waddrmgr

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/pandora-prime/bitcoin-pro/walletdb"
)

var (
	// mainBucketName holds the versioning and key material of the store.
	mainBucketName = []byte("main")

	// accountBucketName maps account names to encrypted account rows.
	accountBucketName = []byte("accounts")

	mgrVersionName   = []byte("mgrver")
	masterPubKeyName = []byte("mpub")
	cryptoPubKeyName = []byte("cpub")
	birthdayName     = []byte("bday")
)

// accountRowVersion is the serialization version of account rows.
const accountRowVersion = 1

// dbAccountRow is the plaintext of a stored account.
type dbAccountRow struct {
	created      time.Time
	strictOrigin bool
	generator    string
}

func createManagerNS(ns walletdb.ReadWriteBucket) error {
	if _, err := ns.CreateBucket(mainBucketName); err != nil {
		str := "failed to create main bucket"
		return managerError(ErrDatabase, str, err)
	}
	if _, err := ns.CreateBucket(accountBucketName); err != nil {
		str := "failed to create account bucket"
		return managerError(ErrDatabase, str, err)
	}
	return nil
}

func mainBucket(ns walletdb.ReadBucket) (walletdb.ReadBucket, error) {
	bucket := ns.NestedReadBucket(mainBucketName)
	if bucket == nil {
		return nil, managerError(ErrDatabase, "missing main bucket", nil)
	}
	return bucket, nil
}

func fetchManagerVersion(ns walletdb.ReadBucket) (uint32, error) {
	bucket, err := mainBucket(ns)
	if err != nil {
		return 0, err
	}
	v := bucket.Get(mgrVersionName)
	if len(v) != 4 {
		str := "required version number not stored in database"
		return 0, managerError(ErrDatabase, str, nil)
	}
	return binary.LittleEndian.Uint32(v), nil
}

func putManagerVersion(ns walletdb.ReadWriteBucket, version uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], version)
	err := ns.NestedReadWriteBucket(mainBucketName).Put(mgrVersionName, buf[:])
	if err != nil {
		str := "failed to store version"
		return managerError(ErrDatabase, str, err)
	}
	return nil
}

func fetchMasterKeyParams(ns walletdb.ReadBucket) ([]byte, error) {
	bucket, err := mainBucket(ns)
	if err != nil {
		return nil, err
	}
	params := bucket.Get(masterPubKeyName)
	if params == nil {
		str := "required master public key parameters not stored " +
			"in database"
		return nil, managerError(ErrDatabase, str, nil)
	}
	return copyBytes(params), nil
}

func putMasterKeyParams(ns walletdb.ReadWriteBucket, pubParams []byte) error {
	err := ns.NestedReadWriteBucket(mainBucketName).Put(masterPubKeyName,
		pubParams)
	if err != nil {
		str := "failed to store master public key parameters"
		return managerError(ErrDatabase, str, err)
	}
	return nil
}

func fetchCryptoKey(ns walletdb.ReadBucket) ([]byte, error) {
	bucket, err := mainBucket(ns)
	if err != nil {
		return nil, err
	}
	enc := bucket.Get(cryptoPubKeyName)
	if enc == nil {
		str := "required encrypted crypto public key not stored in " +
			"database"
		return nil, managerError(ErrDatabase, str, nil)
	}
	return copyBytes(enc), nil
}

func putCryptoKey(ns walletdb.ReadWriteBucket, pubKeyEncrypted []byte) error {
	err := ns.NestedReadWriteBucket(mainBucketName).Put(cryptoPubKeyName,
		pubKeyEncrypted)
	if err != nil {
		str := "failed to store encrypted crypto public key"
		return managerError(ErrDatabase, str, err)
	}
	return nil
}

func fetchBirthday(ns walletdb.ReadBucket) (time.Time, error) {
	bucket, err := mainBucket(ns)
	if err != nil {
		return time.Time{}, err
	}
	v := bucket.Get(birthdayName)
	if len(v) != 8 {
		str := "malformed birthday stored in database"
		return time.Time{}, managerError(ErrDatabase, str, nil)
	}
	return time.Unix(int64(binary.BigEndian.Uint64(v)), 0), nil
}

func putBirthday(ns walletdb.ReadWriteBucket, t time.Time) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(t.Unix()))
	err := ns.NestedReadWriteBucket(mainBucketName).Put(birthdayName, buf[:])
	if err != nil {
		str := "failed to store birthday"
		return managerError(ErrDatabase, str, err)
	}
	return nil
}

// serializeAccountRow returns the plaintext layout of an account row:
//
//	version (1) || created unix (8) || strict origin (1) || generator
func serializeAccountRow(row *dbAccountRow) []byte {
	buf := make([]byte, 10+len(row.generator))
	buf[0] = accountRowVersion
	binary.LittleEndian.PutUint64(buf[1:9], uint64(row.created.Unix()))
	if row.strictOrigin {
		buf[9] = 1
	}
	copy(buf[10:], row.generator)
	return buf
}

func deserializeAccountRow(name string, serialized []byte) (*dbAccountRow, error) {
	if len(serialized) < 10 {
		str := fmt.Sprintf("malformed serialized account %q", name)
		return nil, managerError(ErrDatabase, str, nil)
	}
	if serialized[0] != accountRowVersion {
		str := fmt.Sprintf("unsupported version %d of account %q",
			serialized[0], name)
		return nil, managerError(ErrDatabase, str, nil)
	}
	return &dbAccountRow{
		created:      time.Unix(int64(binary.LittleEndian.Uint64(serialized[1:9])), 0),
		strictOrigin: serialized[9] == 1,
		generator:    string(serialized[10:]),
	}, nil
}

func putAccountRow(ns walletdb.ReadWriteBucket, name string, encrypted []byte) error {
	bucket := ns.NestedReadWriteBucket(accountBucketName)
	if err := bucket.Put([]byte(name), encrypted); err != nil {
		str := fmt.Sprintf("failed to store account %q", name)
		return managerError(ErrDatabase, str, err)
	}
	return nil
}

func fetchAccountRow(ns walletdb.ReadBucket, name string) []byte {
	bucket := ns.NestedReadBucket(accountBucketName)
	if bucket == nil {
		return nil
	}
	return copyBytes(bucket.Get([]byte(name)))
}

func deleteAccountRow(ns walletdb.ReadWriteBucket, name string) error {
	bucket := ns.NestedReadWriteBucket(accountBucketName)
	if err := bucket.Delete([]byte(name)); err != nil {
		str := fmt.Sprintf("failed to delete account %q", name)
		return managerError(ErrDatabase, str, err)
	}
	return nil
}

// forEachAccountRow calls fn for every stored account in name order.
func forEachAccountRow(ns walletdb.ReadBucket,
	fn func(name string, encrypted []byte) error) error {

	bucket := ns.NestedReadBucket(accountBucketName)
	if bucket == nil {
		return managerError(ErrDatabase, "missing account bucket", nil)
	}
	return bucket.ForEach(func(k, v []byte) error {
		return fn(string(k), copyBytes(v))
	})
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

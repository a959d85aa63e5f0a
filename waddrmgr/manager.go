// Package waddrmgr stores the tracking accounts of a profile: named output
// generators kept encrypted at rest in a walletdb namespace.
package waddrmgr

import (
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/pandora-prime/bitcoin-pro/internal/zero"
	"github.com/pandora-prime/bitcoin-pro/snacl"
	"github.com/pandora-prime/bitcoin-pro/walletdb"
)

var (
	DefaultScryptOptions = ScryptOptions{
		N: snacl.DefaultN,
		R: snacl.DefaultR,
		P: snacl.DefaultP,
	}
)

var (
	secretKeyGen    = defaultNewSecretKey
	secretKeyGenMtx sync.RWMutex

	newCryptoKey = defaultNewCryptoKey
)

func defaultNewSecretKey(passphrase *[]byte,
	config *ScryptOptions) (*snacl.SecretKey, error) {
	return snacl.NewSecretKey(passphrase, config.N, config.R, config.P)
}

// SetSecretKeyGen replaces the function generating master keys and returns
// the previous one.
func SetSecretKeyGen(keyGen func(passphrase *[]byte,
	config *ScryptOptions) (*snacl.SecretKey, error)) func(*[]byte,
	*ScryptOptions) (*snacl.SecretKey, error) {

	secretKeyGenMtx.Lock()
	oldKeyGen := secretKeyGen
	secretKeyGen = keyGen
	secretKeyGenMtx.Unlock()

	return oldKeyGen
}

// EncryptorDecryptor is the key encrypting account rows.
type EncryptorDecryptor interface {
	Encrypt(in []byte) ([]byte, error)
	Decrypt(in []byte) ([]byte, error)
	Bytes() []byte
	CopyBytes([]byte)
	Zero()
}

// ScryptOptions are the scrypt parameters deriving the master key from the
// passphrase.
type ScryptOptions struct {
	N, R, P int
}

// FastScryptOptions trade security for speed and are only meant for tests.
var FastScryptOptions = ScryptOptions{
	N: 16,
	R: 8,
	P: 1,
}

// Manager gives access to the tracking accounts of a namespace.
//
// The passphrase derives a master key whose only use is to encrypt a
// random crypto key, and the crypto key encrypts the account rows.
type Manager struct {
	mtx sync.RWMutex

	chainParams  *chaincfg.Params
	masterKeyPub *snacl.SecretKey
	cryptoKeyPub EncryptorDecryptor
	birthday     time.Time

	closed bool
}

// Create initializes a new tracking store in ns.
func Create(ns walletdb.ReadWriteBucket, pubPassphrase []byte,
	config *ScryptOptions, birthday time.Time) error {

	if managerExists(ns) {
		return managerError(ErrAlreadyExists, errAlreadyExists, nil)
	}
	if len(pubPassphrase) == 0 {
		str := "passphrase may not be empty"
		return managerError(ErrEmptyPassphrase, str, nil)
	}

	if err := createManagerNS(ns); err != nil {
		return maybeConvertDbError(err)
	}

	if config == nil {
		config = &DefaultScryptOptions
	}

	masterKeyPub, err := newSecretKey(&pubPassphrase, config)
	if err != nil {
		str := "failed to create master public key"
		return managerError(ErrCrypto, str, err)
	}
	defer masterKeyPub.Zero()

	cryptoKeyPub, err := newCryptoKey()
	if err != nil {
		str := "failed to generate crypto public key"
		return managerError(ErrCrypto, str, err)
	}
	defer cryptoKeyPub.Zero()

	rawCryptoKey := cryptoKeyPub.Bytes()
	defer zero.Bytes(rawCryptoKey)
	cryptoKeyPubEnc, err := masterKeyPub.Encrypt(rawCryptoKey)
	if err != nil {
		str := "failed to encrypt crypto public key"
		return managerError(ErrCrypto, str, err)
	}

	if err := putMasterKeyParams(ns, masterKeyPub.Marshal()); err != nil {
		return maybeConvertDbError(err)
	}
	if err := putCryptoKey(ns, cryptoKeyPubEnc); err != nil {
		return maybeConvertDbError(err)
	}
	if err := putManagerVersion(ns, latestMgrVersion); err != nil {
		return maybeConvertDbError(err)
	}

	log.Infof("Created tracking store (version %d)", latestMgrVersion)
	return putBirthday(ns, birthday)
}

// Open loads the tracking store of ns, unlocking it with pubPassphrase.
func Open(ns walletdb.ReadBucket, pubPassphrase []byte,
	chainParams *chaincfg.Params) (*Manager, error) {

	if !managerExists(ns) {
		str := "the specified tracking store does not exist"
		return nil, managerError(ErrNoExist, str, nil)
	}

	return loadManager(ns, pubPassphrase, chainParams)
}

func managerExists(ns walletdb.ReadBucket) bool {
	if ns == nil {
		return false
	}
	mainBucket := ns.NestedReadBucket(mainBucketName)
	return mainBucket != nil
}

func loadManager(ns walletdb.ReadBucket, pubPassphrase []byte,
	chainParams *chaincfg.Params) (*Manager, error) {

	version, err := fetchManagerVersion(ns)
	if err != nil {
		str := "failed to fetch manager version"
		return nil, managerError(ErrDatabase, str, err)
	}

	if version < latestMgrVersion {
		str := "database upgrade required"
		return nil, managerError(ErrUpgrade, str, nil)
	} else if version > latestMgrVersion {
		str := "database version is greater than latest understood version"
		return nil, managerError(ErrUpgrade, str, nil)
	}

	masterKeyPubParams, err := fetchMasterKeyParams(ns)
	if err != nil {
		return nil, maybeConvertDbError(err)
	}
	cryptoKeyPubEnc, err := fetchCryptoKey(ns)
	if err != nil {
		return nil, maybeConvertDbError(err)
	}
	birthday, err := fetchBirthday(ns)
	if err != nil {
		return nil, maybeConvertDbError(err)
	}

	var masterKeyPub snacl.SecretKey
	if err := masterKeyPub.Unmarshal(masterKeyPubParams); err != nil {
		str := "failed to unmarshal master public key"
		return nil, managerError(ErrCrypto, str, err)
	}
	if err := masterKeyPub.DeriveKey(&pubPassphrase); err != nil {
		str := "invalid passphrase for master public key"
		return nil, managerError(ErrWrongPassphrase, str, err)
	}

	cryptoKeyPubCT, err := masterKeyPub.Decrypt(cryptoKeyPubEnc)
	if err != nil {
		str := "failed to decrypt crypto public key"
		return nil, managerError(ErrCrypto, str, err)
	}
	cryptoKeyPub := cryptoKeyFromBytes(cryptoKeyPubCT)
	zero.Bytes(cryptoKeyPubCT)

	return &Manager{
		chainParams:  chainParams,
		masterKeyPub: &masterKeyPub,
		cryptoKeyPub: cryptoKeyPub,
		birthday:     birthday,
	}, nil
}

// ChangePassphrase re-encrypts the crypto key under a master key derived
// from newPassphrase. Account rows are left untouched.
func (m *Manager) ChangePassphrase(ns walletdb.ReadWriteBucket, oldPassphrase,
	newPassphrase []byte, config *ScryptOptions) error {

	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.closed {
		return managerError(ErrClosed, "tracking store is closed", nil)
	}
	if len(newPassphrase) == 0 {
		str := "passphrase may not be empty"
		return managerError(ErrEmptyPassphrase, str, nil)
	}
	if err := m.masterKeyPub.DeriveKey(&oldPassphrase); err != nil {
		str := "invalid passphrase for master public key"
		return managerError(ErrWrongPassphrase, str, err)
	}

	if config == nil {
		config = &DefaultScryptOptions
	}
	newMasterKey, err := newSecretKey(&newPassphrase, config)
	if err != nil {
		str := "failed to create new master public key"
		return managerError(ErrCrypto, str, err)
	}

	rawCryptoKey := m.cryptoKeyPub.Bytes()
	defer zero.Bytes(rawCryptoKey)
	encrypted, err := newMasterKey.Encrypt(rawCryptoKey)
	if err != nil {
		str := "failed to encrypt crypto public key"
		return managerError(ErrCrypto, str, err)
	}
	if err := putMasterKeyParams(ns, newMasterKey.Marshal()); err != nil {
		return maybeConvertDbError(err)
	}
	if err := putCryptoKey(ns, encrypted); err != nil {
		return maybeConvertDbError(err)
	}

	m.masterKeyPub.Zero()
	m.masterKeyPub = newMasterKey
	return nil
}

// Birthday returns the creation time of the store.
func (m *Manager) Birthday() time.Time {
	return m.birthday
}

// ChainParams returns the network the store was opened for.
func (m *Manager) ChainParams() *chaincfg.Params {
	return m.chainParams
}

// Close zeroes the key material held in memory. The manager can not be used
// afterwards.
func (m *Manager) Close() {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.closed {
		return
	}
	m.cryptoKeyPub.Zero()
	m.masterKeyPub.Zero()
	m.closed = true
}

func newSecretKey(passphrase *[]byte, config *ScryptOptions) (*snacl.SecretKey, error) {
	secretKeyGenMtx.RLock()
	defer secretKeyGenMtx.RUnlock()

	return secretKeyGen(passphrase, config)
}

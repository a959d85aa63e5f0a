package waddrmgr

import "github.com/pandora-prime/bitcoin-pro/snacl"

// cryptoKey is the snacl key encrypting account rows.
type cryptoKey struct {
	snacl.CryptoKey
}

var _ EncryptorDecryptor = (*cryptoKey)(nil)

// cryptoKeyFromBytes returns a key holding a copy of raw.
func cryptoKeyFromBytes(raw []byte) *cryptoKey {
	ck := new(cryptoKey)
	ck.CopyBytes(raw)
	return ck
}

// Bytes returns a copy of the raw key. Callers zero it when done.
func (ck *cryptoKey) Bytes() []byte {
	return append([]byte(nil), ck.CryptoKey[:]...)
}

// CopyBytes replaces the key with from.
func (ck *cryptoKey) CopyBytes(from []byte) {
	copy(ck.CryptoKey[:], from)
}

func defaultNewCryptoKey() (EncryptorDecryptor, error) {
	key, err := snacl.GenerateCryptoKey()
	if err != nil {
		return nil, err
	}
	return &cryptoKey{CryptoKey: *key}, nil
}

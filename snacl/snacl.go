// Package snacl encrypts data with a scrypt derived key and NaCl
// secretbox.
package snacl

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"io"
	"runtime/debug"

	"github.com/pandora-prime/bitcoin-pro/internal/zero"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	KeySize   = 32
	NonceSize = 24

	// Overhead is the number of bytes Encrypt adds to its input.
	Overhead = NonceSize + secretbox.Overhead

	// paramsVersion leads the serialized Parameters.
	paramsVersion = 1

	// paramsSize is the length of serialized Parameters: version, salt,
	// digest and the three scrypt costs as uint32.
	paramsSize = 1 + KeySize + sha256.Size + 3*4
)

// Scrypt costs for production use.
const (
	DefaultN = 262144
	DefaultR = 8
	DefaultP = 1
)

// prng is swapped by tests.
var prng io.Reader = rand.Reader

var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrMalformed       = errors.New("malformed data")
	ErrDecryptFailed   = errors.New("unable to decrypt")
)

// CryptoKey is a secretbox key.
type CryptoKey [KeySize]byte

// Encrypt seals in under a random nonce. The nonce leads the output.
func (ck *CryptoKey) Encrypt(in []byte) ([]byte, error) {
	var nonce [NonceSize]byte
	if _, err := io.ReadFull(prng, nonce[:]); err != nil {
		return nil, err
	}
	out := make([]byte, NonceSize, len(in)+Overhead)
	copy(out, nonce[:])
	return secretbox.Seal(out, in, &nonce, (*[KeySize]byte)(ck)), nil
}

// Decrypt opens data sealed by Encrypt.
func (ck *CryptoKey) Decrypt(in []byte) ([]byte, error) {
	if len(in) < Overhead {
		return nil, ErrMalformed
	}

	var nonce [NonceSize]byte
	copy(nonce[:], in)
	opened, ok := secretbox.Open(nil, in[NonceSize:], &nonce,
		(*[KeySize]byte)(ck))
	if !ok {
		return nil, ErrDecryptFailed
	}
	return opened, nil
}

// Zero clears the key.
func (ck *CryptoKey) Zero() {
	zero.Bytea32((*[KeySize]byte)(ck))
}

// GenerateCryptoKey returns a random key.
func GenerateCryptoKey() (*CryptoKey, error) {
	key := new(CryptoKey)
	if _, err := io.ReadFull(prng, key[:]); err != nil {
		return nil, err
	}
	return key, nil
}

// Parameters are the scrypt inputs of a SecretKey together with the digest
// of the derived key, which is used to check passwords.
type Parameters struct {
	Salt   [KeySize]byte
	Digest [sha256.Size]byte
	N      int
	R      int
	P      int
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (p *Parameters) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, paramsSize)
	buf = append(buf, paramsVersion)
	buf = append(buf, p.Salt[:]...)
	buf = append(buf, p.Digest[:]...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(p.N))
	buf = binary.BigEndian.AppendUint32(buf, uint32(p.R))
	buf = binary.BigEndian.AppendUint32(buf, uint32(p.P))
	return buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (p *Parameters) UnmarshalBinary(b []byte) error {
	if len(b) != paramsSize || b[0] != paramsVersion {
		return ErrMalformed
	}
	b = b[1:]
	b = b[copy(p.Salt[:], b):]
	b = b[copy(p.Digest[:], b):]
	p.N = int(binary.BigEndian.Uint32(b[0:4]))
	p.R = int(binary.BigEndian.Uint32(b[4:8]))
	p.P = int(binary.BigEndian.Uint32(b[8:12]))
	return nil
}

// SecretKey is a CryptoKey derived from a password.
type SecretKey struct {
	Key        *CryptoKey
	Parameters Parameters
}

// NewSecretKey derives a key from password under a random salt.
func NewSecretKey(password *[]byte, n, r, p int) (*SecretKey, error) {
	sk := &SecretKey{
		Key:        new(CryptoKey),
		Parameters: Parameters{N: n, R: r, P: p},
	}
	if _, err := io.ReadFull(prng, sk.Parameters.Salt[:]); err != nil {
		return nil, err
	}
	if err := sk.deriveKey(password); err != nil {
		return nil, err
	}
	sk.Parameters.Digest = sha256.Sum256(sk.Key[:])
	return sk, nil
}

func (sk *SecretKey) Encrypt(in []byte) ([]byte, error) {
	return sk.Key.Encrypt(in)
}

func (sk *SecretKey) Decrypt(in []byte) ([]byte, error) {
	return sk.Key.Decrypt(in)
}

// Marshal returns the parameters needed to derive the key again. The key
// itself is not part of the output.
func (sk *SecretKey) Marshal() []byte {
	b, _ := sk.Parameters.MarshalBinary()
	return b
}

// Unmarshal restores parameters written by Marshal. DeriveKey must be
// called before the key is usable.
func (sk *SecretKey) Unmarshal(marshalled []byte) error {
	if err := sk.Parameters.UnmarshalBinary(marshalled); err != nil {
		return err
	}
	if sk.Key == nil {
		sk.Key = new(CryptoKey)
	}
	return nil
}

func (sk *SecretKey) Zero() {
	sk.Key.Zero()
}

// DeriveKey derives the key from password and checks it against the stored
// digest.
func (sk *SecretKey) DeriveKey(password *[]byte) error {
	if err := sk.deriveKey(password); err != nil {
		return err
	}

	digest := sha256.Sum256(sk.Key[:])
	if subtle.ConstantTimeCompare(digest[:], sk.Parameters.Digest[:]) != 1 {
		return ErrInvalidPassword
	}
	return nil
}

func (sk *SecretKey) deriveKey(password *[]byte) error {
	params := &sk.Parameters
	key, err := scrypt.Key(*password, params.Salt[:], params.N, params.R,
		params.P, KeySize)
	if err != nil {
		return err
	}
	copy(sk.Key[:], key)
	zero.Bytes(key)

	// Release the scrypt working memory.
	debug.FreeOSMemory()
	return nil
}

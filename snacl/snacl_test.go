package snacl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Cheap scrypt parameters so tests run fast.
const (
	testN = 16
	testR = 8
	testP = 1
)

func TestParameters_Binary(t *testing.T) {
	params := Parameters{N: testN, R: testR, P: testP}
	params.Salt[0], params.Digest[31] = 7, 9

	b, err := params.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, b, paramsSize)

	var restored Parameters
	require.NoError(t, restored.UnmarshalBinary(b))
	assert.Equal(t, params, restored)

	b[0] = paramsVersion + 1
	assert.ErrorIs(t, restored.UnmarshalBinary(b), ErrMalformed)
	assert.ErrorIs(t, restored.UnmarshalBinary(b[:10]), ErrMalformed)
}

func TestCryptoKey_Open(t *testing.T) {
	cryptoKey, err := GenerateCryptoKey()
	require.NoError(t, err)

	msg := []byte("Hello World")
	encryptedMsg, err := cryptoKey.Encrypt(msg)
	require.NoError(t, err)
	assert.Len(t, encryptedMsg, len(msg)+Overhead)

	msg2, err := cryptoKey.Decrypt(encryptedMsg)
	require.NoError(t, err)
	assert.Equal(t, msg, msg2)

	// Nonces are random, so equal plaintexts encrypt differently.
	again, err := cryptoKey.Encrypt(msg)
	require.NoError(t, err)
	assert.NotEqual(t, encryptedMsg, again)

	encryptedMsg[len(encryptedMsg)-1] ^= 1
	_, err = cryptoKey.Decrypt(encryptedMsg)
	assert.ErrorIs(t, err, ErrDecryptFailed)

	_, err = cryptoKey.Decrypt(make([]byte, Overhead-1))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestSecretKey_MarshalUnmarshal(t *testing.T) {
	password := []byte("sikrit")
	sk, err := NewSecretKey(&password, testN, testR, testP)
	require.NoError(t, err)

	blob, err := sk.Encrypt([]byte("payload"))
	require.NoError(t, err)

	var restored SecretKey
	require.NoError(t, restored.Unmarshal(sk.Marshal()))
	assert.Equal(t, sk.Parameters, restored.Parameters)

	require.NoError(t, restored.DeriveKey(&password))
	plain, err := restored.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), plain)

	wrong := []byte("wrong")
	assert.ErrorIs(t, restored.DeriveKey(&wrong), ErrInvalidPassword)

	assert.ErrorIs(t, restored.Unmarshal([]byte{1, 2}), ErrMalformed)
}

func TestSecretKey_Zero(t *testing.T) {
	password := []byte("sikrit")
	sk, err := NewSecretKey(&password, testN, testR, testP)
	require.NoError(t, err)

	sk.Zero()
	assert.Equal(t, CryptoKey{}, *sk.Key)
}

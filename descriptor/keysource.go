package descriptor

import (
	"bytes"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
)

// PublicKey is a secp256k1 public key together with the serialization
// form it was given in. Keys derived from extended keys are always
// compressed.
type PublicKey struct {
	Key        *btcec.PublicKey
	Compressed bool
}

// Serialize returns the key in its original serialization form.
func (p PublicKey) Serialize() []byte {
	if p.Compressed {
		return p.Key.SerializeCompressed()
	}
	return p.Key.SerializeUncompressed()
}

// Bytes is an alias of Serialize, used when the key is placed in a script.
func (p PublicKey) Bytes() []byte {
	return p.Serialize()
}

// IsEqual reports whether both keys share the same serialization.
func (p PublicKey) IsEqual(o PublicKey) bool {
	return bytes.Equal(p.Serialize(), o.Serialize())
}

func (p PublicKey) String() string {
	return hex.EncodeToString(p.Serialize())
}

// KeySource is anything able to produce a public key for a child index.
// All derivation and script building is written against this interface.
type KeySource interface {
	// DerivePublicKey returns the public key for the given child index.
	// Sources which are not hierarchical ignore the index.
	DerivePublicKey(index uint32) (PublicKey, error)

	// Count returns the number of distinct keys the source covers.
	Count() uint32

	// String returns the descriptor grammar form of the source.
	String() string

	keySource()
}

// ParseOptions tunes key source parsing.
type ParseOptions struct {
	// StrictOrigin rejects single keys whose [fingerprint/path] origin
	// prefix is malformed. By default such a prefix is dropped and only
	// the bare key is kept.
	StrictOrigin bool
}

// ParseKeySource parses either the single key form or the HD derivation
// form of a key source, trying the single key form first.
func ParseKeySource(s string, opts ParseOptions) (KeySource, error) {
	if parts, ok := splitSingleKeyString(s); ok {
		return newFixedKeyFromParts(s, parts, opts)
	}

	return ParseDerivationComponents(s)
}

// minCount returns the smallest count among hierarchical sources. Fixed
// keys do not limit the index, so a set of only fixed keys counts as one.
func minCount(keys []KeySource) uint32 {
	count, found := uint32(1), false
	for _, key := range keys {
		if _, ok := key.(*FixedKey); ok {
			continue
		}
		if c := key.Count(); !found || c < count {
			count, found = c, true
		}
	}
	return count
}

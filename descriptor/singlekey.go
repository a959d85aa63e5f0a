package descriptor

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/btcsuite/btcd/btcec/v2"
)

// KeyOrigin is the display-only origin of a fixed key: the fingerprint of
// the key it was derived from and the derivation path used.
type KeyOrigin struct {
	Fingerprint uint32
	Path        Path
}

func (o KeyOrigin) String() string {
	return fmt.Sprintf("%08x/%s", o.Fingerprint, o.Path)
}

// FixedKey is a single, non-hierarchical public key.
type FixedKey struct {
	key    PublicKey
	origin *KeyOrigin
}

var _ KeySource = (*FixedKey)(nil)

// NewFixedKey returns a fixed key source. The origin may be nil.
func NewFixedKey(key PublicKey, origin *KeyOrigin) *FixedKey {
	if origin != nil {
		o := KeyOrigin{
			Fingerprint: origin.Fingerprint,
			Path:        append(Path{}, origin.Path...),
		}
		origin = &o
	}
	return &FixedKey{key: key, origin: origin}
}

// ParseFixedKey parses `[fingerprint/path]pubkeyHex`, optionally wrapped in
// a script function such as pk(...) or pkh(...).
func ParseFixedKey(s string, opts ParseOptions) (*FixedKey, error) {
	parts, ok := splitSingleKeyString(s)
	if !ok {
		str := "malformed single key " + strconv.Quote(s)
		return nil, descError(ErrGrammar, str, nil)
	}
	return newFixedKeyFromParts(s, parts, opts)
}

func newFixedKeyFromParts(s string, parts singleKeyParts,
	opts ParseOptions) (*FixedKey, error) {

	if parts.malformedOrigin {
		if opts.StrictOrigin {
			str := "malformed key origin in " + strconv.Quote(s)
			return nil, descError(ErrGrammar, str, nil)
		}
		log.Warnf("Dropping malformed key origin from %q", s)
	}

	raw, err := hex.DecodeString(parts.pubkey)
	if err != nil {
		str := "invalid public key hex"
		return nil, descError(ErrGrammar, str, err)
	}
	pub, err := btcec.ParsePubKey(raw)
	if err != nil {
		str := "invalid public key encoding"
		return nil, descError(ErrKeyDerivation, str, err)
	}

	fixed := &FixedKey{
		key: PublicKey{Key: pub, Compressed: len(raw) == btcec.PubKeyBytesLenCompressed},
	}
	if !parts.hasOrigin {
		return fixed, nil
	}

	fp, err := hex.DecodeString(parts.fingerprint)
	if err != nil {
		return nil, descError(ErrGrammar, "invalid key fingerprint", err)
	}
	path, err := ParsePath(parts.path)
	if err != nil {
		if opts.StrictOrigin {
			return nil, err
		}
		log.Warnf("Dropping unparsable key origin path from %q: %v", s, err)
		return fixed, nil
	}

	fixed.origin = &KeyOrigin{
		Fingerprint: binary.BigEndian.Uint32(fp),
		Path:        path,
	}
	return fixed, nil
}

// DerivePublicKey returns the key, ignoring the index.
func (f *FixedKey) DerivePublicKey(uint32) (PublicKey, error) {
	return f.key, nil
}

// Count is always one.
func (f *FixedKey) Count() uint32 {
	return 1
}

// PublicKey returns the wrapped key.
func (f *FixedKey) PublicKey() PublicKey {
	return f.key
}

// Origin returns the display-only origin, or nil.
func (f *FixedKey) Origin() *KeyOrigin {
	return f.origin
}

func (f *FixedKey) String() string {
	if f.origin == nil {
		return f.key.String()
	}
	return "[" + f.origin.String() + "]" + f.key.String()
}

func (f *FixedKey) keySource() {}

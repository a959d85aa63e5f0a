package descriptor

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

var (
	xpubVersion = [4]byte{0x04, 0x88, 0xb2, 0x1e}
	tpubVersion = [4]byte{0x04, 0x35, 0x87, 0xcf}
)

// slip132Public maps SLIP-132 public key versions onto the plain BIP32
// version of the same network.
var slip132Public = map[[4]byte][4]byte{
	{0x04, 0x9d, 0x7c, 0xb2}: xpubVersion, // ypub
	{0x04, 0xb2, 0x47, 0x46}: xpubVersion, // zpub
	{0x02, 0x95, 0xb4, 0x3f}: xpubVersion, // Ypub
	{0x02, 0xaa, 0x7e, 0xd3}: xpubVersion, // Zpub
	{0x04, 0x4a, 0x52, 0x62}: tpubVersion, // upub
	{0x04, 0x5f, 0x1c, 0xf6}: tpubVersion, // vpub
	{0x02, 0x42, 0x89, 0xef}: tpubVersion, // Upub
	{0x02, 0x57, 0x54, 0x83}: tpubVersion, // Vpub
}

var slip132Private = map[[4]byte]struct{}{
	{0x04, 0x88, 0xad, 0xe4}: {}, // xprv
	{0x04, 0x9d, 0x78, 0x78}: {}, // yprv
	{0x04, 0xb2, 0x43, 0x0c}: {}, // zprv
	{0x02, 0x95, 0xb0, 0x05}: {}, // Yprv
	{0x02, 0xaa, 0x7a, 0x99}: {}, // Zprv
	{0x04, 0x35, 0x83, 0x94}: {}, // tprv
	{0x04, 0x4a, 0x4e, 0x28}: {}, // uprv
	{0x04, 0x5f, 0x18, 0xbc}: {}, // vprv
	{0x02, 0x42, 0x85, 0xb5}: {}, // Uprv
	{0x02, 0x57, 0x50, 0x48}: {}, // Vprv
}

// normalizeSLIP132 rewrites a SLIP-132 extended public key into its plain
// xpub or tpub form. Keys with a BIP32 version are returned unchanged.
func normalizeSLIP132(key string) (string, error) {
	payload, first, err := base58.CheckDecode(key)
	if err != nil {
		str := "invalid extended key encoding"
		return "", descError(ErrKeyDerivation, str, err)
	}
	if len(payload) < 3 {
		return "", descError(ErrKeyDerivation, "invalid extended key length", nil)
	}

	var version [4]byte
	version[0] = first
	copy(version[1:], payload[:3])

	if _, ok := slip132Private[version]; ok {
		str := "private key material is not accepted"
		return "", descError(ErrKeyDerivation, str, nil)
	}

	plain, ok := slip132Public[version]
	if !ok {
		return key, nil
	}

	log.Debugf("Normalizing SLIP-132 key version %s", hex.EncodeToString(version[:]))
	rewritten := make([]byte, len(payload))
	copy(rewritten, payload)
	copy(rewritten[:3], plain[1:])
	return base58.CheckEncode(rewritten, plain[0]), nil
}

// DecodeExtendedPublicKey parses a base58 extended public key, accepting
// SLIP-132 versions.
func DecodeExtendedPublicKey(s string) (*hdkeychain.ExtendedKey, error) {
	normalized, err := normalizeSLIP132(s)
	if err != nil {
		return nil, err
	}

	key, err := hdkeychain.NewKeyFromString(normalized)
	if err != nil {
		str := "unable to decode extended public key"
		return nil, descError(ErrKeyDerivation, str, err)
	}
	if key.IsPrivate() {
		str := "private key material is not accepted"
		return nil, descError(ErrKeyDerivation, str, nil)
	}

	return key, nil
}

package descriptor

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// OutputKind tags the shape of a generated output.
type OutputKind uint8

const (
	OutputPk OutputKind = iota
	OutputPkh
	OutputShWpkh
	OutputWpkh
	OutputBare
	OutputSh
	OutputShWsh
	OutputWsh
)

var outputKindNames = map[OutputKind]string{
	OutputPk:     "pk",
	OutputPkh:    "pkh",
	OutputShWpkh: "sh_wpkh",
	OutputWpkh:   "wpkh",
	OutputBare:   "bare",
	OutputSh:     "sh",
	OutputShWsh:  "sh_wsh",
	OutputWsh:    "wsh",
}

var outputKindCategories = map[OutputKind]Category{
	OutputPk:     Bare,
	OutputPkh:    Hashed,
	OutputShWpkh: Nested,
	OutputWpkh:   SegWit,
	OutputBare:   Bare,
	OutputSh:     Hashed,
	OutputShWsh:  Nested,
	OutputWsh:    SegWit,
}

func (k OutputKind) String() string {
	if name, ok := outputKindNames[k]; ok {
		return name
	}
	return "OutputKind(" + strconv.Itoa(int(k)) + ")"
}

// Category returns the category producing outputs of this kind.
func (k OutputKind) Category() Category {
	return outputKindCategories[k]
}

// IsKeyOutput reports whether the kind pays to a public key rather than a
// lock script.
func (k OutputKind) IsKeyOutput() bool {
	return k <= OutputWpkh
}

// Output is one generated output. Key outputs carry PubKey and script
// outputs carry LockScript.
type Output struct {
	Kind       OutputKind
	PubKey     PublicKey
	LockScript []byte
}

func witnessV0Program(hash []byte) []byte {
	script, _ := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).AddData(hash).Script()
	return script
}

func p2shScript(redeem []byte) []byte {
	script, _ := txscript.NewScriptBuilder().
		AddOp(txscript.OP_HASH160).AddData(btcutil.Hash160(redeem)).
		AddOp(txscript.OP_EQUAL).Script()
	return script
}

func p2pkhScript(pubKeyHash []byte) []byte {
	script, _ := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).AddOp(txscript.OP_HASH160).
		AddData(pubKeyHash).AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).Script()
	return script
}

func p2pkScript(pubKey []byte) []byte {
	script, _ := txscript.NewScriptBuilder().
		AddData(pubKey).AddOp(txscript.OP_CHECKSIG).Script()
	return script
}

func (o Output) pubKeyHash() []byte {
	return btcutil.Hash160(o.PubKey.Serialize())
}

func (o Output) scriptHash() []byte {
	h := sha256.Sum256(o.LockScript)
	return h[:]
}

// PkScript returns the scriptPubKey of the output.
func (o Output) PkScript() []byte {
	switch o.Kind {
	case OutputPk:
		return p2pkScript(o.PubKey.Serialize())
	case OutputPkh:
		return p2pkhScript(o.pubKeyHash())
	case OutputShWpkh:
		return p2shScript(witnessV0Program(o.pubKeyHash()))
	case OutputWpkh:
		return witnessV0Program(o.pubKeyHash())
	case OutputBare:
		return append([]byte{}, o.LockScript...)
	case OutputSh:
		return p2shScript(o.LockScript)
	case OutputShWsh:
		return p2shScript(witnessV0Program(o.scriptHash()))
	case OutputWsh:
		return witnessV0Program(o.scriptHash())
	}
	return nil
}

// RedeemScript returns the P2SH redeem script, or nil for outputs which are
// not P2SH.
func (o Output) RedeemScript() []byte {
	switch o.Kind {
	case OutputShWpkh:
		return witnessV0Program(o.pubKeyHash())
	case OutputSh:
		return append([]byte{}, o.LockScript...)
	case OutputShWsh:
		return witnessV0Program(o.scriptHash())
	}
	return nil
}

// WitnessScript returns the witness script for P2WSH outputs.
func (o Output) WitnessScript() []byte {
	if o.Kind == OutputShWsh || o.Kind == OutputWsh {
		return append([]byte{}, o.LockScript...)
	}
	return nil
}

// Address encodes the output for the network. Bare scripts have no
// address.
func (o Output) Address(params *chaincfg.Params) (btcutil.Address, error) {
	var (
		addr btcutil.Address
		err  error
	)
	switch o.Kind {
	case OutputPk:
		addr, err = btcutil.NewAddressPubKey(o.PubKey.Serialize(), params)
	case OutputPkh:
		addr, err = btcutil.NewAddressPubKeyHash(o.pubKeyHash(), params)
	case OutputShWpkh, OutputSh, OutputShWsh:
		addr, err = btcutil.NewAddressScriptHash(o.RedeemScript(), params)
	case OutputWpkh:
		addr, err = btcutil.NewAddressWitnessPubKeyHash(o.pubKeyHash(), params)
	case OutputWsh:
		addr, err = btcutil.NewAddressWitnessScriptHash(o.scriptHash(), params)
	default:
		str := o.Kind.String() + " outputs have no address"
		return nil, descError(ErrCategoryUnavailable, str, nil)
	}
	if err != nil {
		return nil, descError(ErrScriptBuild, "unable to encode address", err)
	}
	return addr, nil
}

// String returns the kind with the key or lock script in hex.
func (o Output) String() string {
	if o.Kind.IsKeyOutput() {
		return o.Kind.String() + "(" + o.PubKey.String() + ")"
	}
	return o.Kind.String() + "(" + hex.EncodeToString(o.LockScript) + ")"
}

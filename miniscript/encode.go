package miniscript

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
)

// Context is the script context a tree is encoded for.
type Context uint8

const (
	// ContextLegacy is bare or P2SH script, where uncompressed keys are
	// allowed.
	ContextLegacy Context = iota

	// ContextWitnessV0 is P2WSH or P2SH-P2WSH script.
	ContextWitnessV0
)

func (c Context) String() string {
	if c == ContextWitnessV0 {
		return "witness v0"
	}
	return "legacy"
}

type instrKind uint8

const (
	instrOp instrKind = iota
	instrData
	instrNum
)

type instr struct {
	kind instrKind
	op   byte
	data []byte
	num  int64
}

func op(code byte) instr {
	return instr{kind: instrOp, op: code}
}

func data(b []byte) instr {
	return instr{kind: instrData, data: b}
}

func num(n int64) instr {
	return instr{kind: instrNum, num: n}
}

// Script encodes the tree to Bitcoin script. Every key must be a
// ConcreteKey.
func (n *Node) Script(ctx Context) ([]byte, error) {
	ops, err := n.encode(ctx)
	if err != nil {
		return nil, err
	}

	b := txscript.NewScriptBuilder()
	for _, in := range ops {
		switch in.kind {
		case instrOp:
			b.AddOp(in.op)
		case instrData:
			b.AddData(in.data)
		case instrNum:
			b.AddInt64(in.num)
		}
	}
	return b.Script()
}

func keyBytes(key Key, ctx Context) ([]byte, error) {
	concrete, ok := key.(ConcreteKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAbstractKey, key)
	}
	raw := concrete.Bytes()
	if ctx == ContextWitnessV0 && len(raw) != btcec.PubKeyBytesLenCompressed {
		return nil, fmt.Errorf("%w: %s", ErrUncompressedKey, key)
	}
	return raw, nil
}

func (n *Node) encodeSub(i int, ctx Context) ([]instr, error) {
	return n.Subs[i].encode(ctx)
}

func (n *Node) encode(ctx Context) ([]instr, error) {
	switch n.Fragment {
	case FragFalse:
		return []instr{op(txscript.OP_0)}, nil

	case FragTrue:
		return []instr{op(txscript.OP_1)}, nil

	case FragPkK:
		raw, err := keyBytes(n.Keys[0], ctx)
		if err != nil {
			return nil, err
		}
		return []instr{data(raw)}, nil

	case FragPkH:
		raw, err := keyBytes(n.Keys[0], ctx)
		if err != nil {
			return nil, err
		}
		return []instr{
			op(txscript.OP_DUP), op(txscript.OP_HASH160),
			data(btcutil.Hash160(raw)), op(txscript.OP_EQUALVERIFY),
		}, nil

	case FragOlder:
		return []instr{num(int64(n.K)), op(txscript.OP_CHECKSEQUENCEVERIFY)}, nil

	case FragAfter:
		return []instr{num(int64(n.K)), op(txscript.OP_CHECKLOCKTIMEVERIFY)}, nil

	case FragSha256, FragHash256, FragRipemd160, FragHash160:
		hashOp := map[Fragment]byte{
			FragSha256:    txscript.OP_SHA256,
			FragHash256:   txscript.OP_HASH256,
			FragRipemd160: txscript.OP_RIPEMD160,
			FragHash160:   txscript.OP_HASH160,
		}[n.Fragment]
		return []instr{
			op(txscript.OP_SIZE), num(32), op(txscript.OP_EQUALVERIFY),
			op(hashOp), data(n.Hash), op(txscript.OP_EQUAL),
		}, nil

	case FragMulti:
		out := []instr{num(int64(n.K))}
		for _, key := range n.Keys {
			raw, err := keyBytes(key, ctx)
			if err != nil {
				return nil, err
			}
			out = append(out, data(raw))
		}
		return append(out, num(int64(len(n.Keys))),
			op(txscript.OP_CHECKMULTISIG)), nil

	case FragThresh:
		var out []instr
		for i := range n.Subs {
			sub, err := n.encodeSub(i, ctx)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
			if i > 0 {
				out = append(out, op(txscript.OP_ADD))
			}
		}
		return append(out, num(int64(n.K)), op(txscript.OP_EQUAL)), nil
	}

	subs := make([][]instr, len(n.Subs))
	for i := range n.Subs {
		sub, err := n.encodeSub(i, ctx)
		if err != nil {
			return nil, err
		}
		subs[i] = sub
	}

	var out []instr
	switch n.Fragment {
	case FragAndOr:
		out = append(out, subs[0]...)
		out = append(out, op(txscript.OP_NOTIF))
		out = append(out, subs[2]...)
		out = append(out, op(txscript.OP_ELSE))
		out = append(out, subs[1]...)
		out = append(out, op(txscript.OP_ENDIF))

	case FragAndV:
		out = append(append(out, subs[0]...), subs[1]...)

	case FragAndB:
		out = append(append(out, subs[0]...), subs[1]...)
		out = append(out, op(txscript.OP_BOOLAND))

	case FragOrB:
		out = append(append(out, subs[0]...), subs[1]...)
		out = append(out, op(txscript.OP_BOOLOR))

	case FragOrC:
		out = append(out, subs[0]...)
		out = append(out, op(txscript.OP_NOTIF))
		out = append(out, subs[1]...)
		out = append(out, op(txscript.OP_ENDIF))

	case FragOrD:
		out = append(out, subs[0]...)
		out = append(out, op(txscript.OP_IFDUP), op(txscript.OP_NOTIF))
		out = append(out, subs[1]...)
		out = append(out, op(txscript.OP_ENDIF))

	case FragOrI:
		out = append(out, op(txscript.OP_IF))
		out = append(out, subs[0]...)
		out = append(out, op(txscript.OP_ELSE))
		out = append(out, subs[1]...)
		out = append(out, op(txscript.OP_ENDIF))

	case FragWrapA:
		out = append(out, op(txscript.OP_TOALTSTACK))
		out = append(out, subs[0]...)
		out = append(out, op(txscript.OP_FROMALTSTACK))

	case FragWrapS:
		out = append(out, op(txscript.OP_SWAP))
		out = append(out, subs[0]...)

	case FragWrapC:
		out = append(out, subs[0]...)
		out = append(out, op(txscript.OP_CHECKSIG))

	case FragWrapD:
		out = append(out, op(txscript.OP_DUP), op(txscript.OP_IF))
		out = append(out, subs[0]...)
		out = append(out, op(txscript.OP_ENDIF))

	case FragWrapV:
		out = verify(subs[0])

	case FragWrapJ:
		out = append(out, op(txscript.OP_SIZE), op(txscript.OP_0NOTEQUAL),
			op(txscript.OP_IF))
		out = append(out, subs[0]...)
		out = append(out, op(txscript.OP_ENDIF))

	case FragWrapN:
		out = append(out, subs[0]...)
		out = append(out, op(txscript.OP_0NOTEQUAL))

	default:
		return nil, fmt.Errorf("%w: can't encode %s", ErrTypeCheck, n.Fragment)
	}

	return out, nil
}

// verifyForms maps opcodes onto their VERIFY variants.
var verifyForms = map[byte]byte{
	txscript.OP_CHECKSIG:      txscript.OP_CHECKSIGVERIFY,
	txscript.OP_CHECKMULTISIG: txscript.OP_CHECKMULTISIGVERIFY,
	txscript.OP_EQUAL:         txscript.OP_EQUALVERIFY,
	txscript.OP_NUMEQUAL:      txscript.OP_NUMEQUALVERIFY,
}

func verify(ops []instr) []instr {
	out := append([]instr{}, ops...)
	last := out[len(out)-1]
	if last.kind == instrOp {
		if v, ok := verifyForms[last.op]; ok {
			out[len(out)-1] = op(v)
			return out
		}
	}
	return append(out, op(txscript.OP_VERIFY))
}

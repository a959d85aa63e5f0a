package miniscript

import (
	"fmt"

	"github.com/btcsuite/btcd/txscript"
)

// BaseType is one of the four miniscript basic types.
type BaseType uint8

const (
	TypeB BaseType = iota + 1
	TypeV
	TypeK
	TypeW
)

func (t BaseType) String() string {
	switch t {
	case TypeB:
		return "B"
	case TypeV:
		return "V"
	case TypeK:
		return "K"
	case TypeW:
		return "W"
	}
	return "?"
}

// Type is the basic type and correctness properties of a node.
//
//	z: consumes exactly 0 stack elements
//	o: consumes exactly 1 stack element
//	n: nonzero, the top stack element is never zero when satisfied
//	d: has a dissatisfaction
//	u: leaves exactly 1 on the stack when satisfied
type Type struct {
	Base          BaseType
	Z, O, N, D, U bool
}

func (t Type) String() string {
	s := t.Base.String()
	for _, p := range []struct {
		set  bool
		name string
	}{{t.Z, "z"}, {t.O, "o"}, {t.N, "n"}, {t.D, "d"}, {t.U, "u"}} {
		if p.set {
			s += p.name
		}
	}
	return s
}

func typeError(n *Node, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s: %s", ErrTypeCheck, n.Fragment,
		fmt.Sprintf(format, args...))
}

// check computes and stores the type of every node in the tree.
func (n *Node) check() error {
	for _, sub := range n.Subs {
		if err := sub.check(); err != nil {
			return err
		}
	}

	t, err := n.computeType()
	if err != nil {
		return err
	}
	n.typ = t
	return nil
}

// CheckTopLevel type checks the tree and requires a B typed root.
func (n *Node) CheckTopLevel() error {
	if err := n.check(); err != nil {
		return err
	}
	if n.typ.Base != TypeB {
		return typeError(n, "top level expression has type %s, want B", n.typ)
	}
	return nil
}

func (n *Node) sub(i int) Type {
	return n.Subs[i].typ
}

func (n *Node) computeType() (Type, error) {
	switch n.Fragment {
	case FragFalse:
		return Type{Base: TypeB, Z: true, U: true, D: true}, nil

	case FragTrue:
		return Type{Base: TypeB, Z: true, U: true}, nil

	case FragPkK:
		return Type{Base: TypeK, O: true, N: true, D: true, U: true}, nil

	case FragPkH:
		return Type{Base: TypeK, N: true, D: true, U: true}, nil

	case FragOlder, FragAfter:
		if n.K == 0 || n.K >= 1<<31 {
			return Type{}, typeError(n, "timelock %d out of range", n.K)
		}
		return Type{Base: TypeB, Z: true}, nil

	case FragSha256, FragHash256:
		if len(n.Hash) != 32 {
			return Type{}, typeError(n, "hash must be 32 bytes")
		}
		return Type{Base: TypeB, O: true, N: true, D: true, U: true}, nil

	case FragRipemd160, FragHash160:
		if len(n.Hash) != 20 {
			return Type{}, typeError(n, "hash must be 20 bytes")
		}
		return Type{Base: TypeB, O: true, N: true, D: true, U: true}, nil

	case FragAndOr:
		x, y, z := n.sub(0), n.sub(1), n.sub(2)
		if x.Base != TypeB || !x.D || !x.U {
			return Type{}, typeError(n, "first argument must be Bdu, got %s", x)
		}
		if y.Base != z.Base || (y.Base != TypeB && y.Base != TypeK && y.Base != TypeV) {
			return Type{}, typeError(n, "branches must share type B, K or V")
		}
		return Type{
			Base: y.Base,
			Z:    x.Z && y.Z && z.Z,
			O:    (x.Z && y.O && z.O) || (x.O && y.Z && z.Z),
			U:    y.U && z.U,
			D:    z.D,
		}, nil

	case FragAndV:
		x, y := n.sub(0), n.sub(1)
		if x.Base != TypeV {
			return Type{}, typeError(n, "first argument must be V, got %s", x)
		}
		if y.Base != TypeB && y.Base != TypeK && y.Base != TypeV {
			return Type{}, typeError(n, "second argument must be B, K or V")
		}
		return Type{
			Base: y.Base,
			Z:    x.Z && y.Z,
			O:    (x.Z && y.O) || (x.O && y.Z),
			N:    x.N || (x.Z && y.N),
			U:    y.U,
		}, nil

	case FragAndB:
		x, y := n.sub(0), n.sub(1)
		if x.Base != TypeB || y.Base != TypeW {
			return Type{}, typeError(n, "arguments must be B and W")
		}
		return Type{
			Base: TypeB,
			Z:    x.Z && y.Z,
			O:    (x.Z && y.O) || (x.O && y.Z),
			N:    x.N || (x.Z && y.N),
			D:    x.D && y.D,
			U:    true,
		}, nil

	case FragOrB:
		x, z := n.sub(0), n.sub(1)
		if x.Base != TypeB || !x.D || z.Base != TypeW || !z.D {
			return Type{}, typeError(n, "arguments must be Bd and Wd")
		}
		return Type{
			Base: TypeB,
			Z:    x.Z && z.Z,
			O:    (x.Z && z.O) || (x.O && z.Z),
			D:    true,
			U:    true,
		}, nil

	case FragOrC:
		x, z := n.sub(0), n.sub(1)
		if x.Base != TypeB || !x.D || !x.U || z.Base != TypeV {
			return Type{}, typeError(n, "arguments must be Bdu and V")
		}
		return Type{
			Base: TypeV,
			Z:    x.Z && z.Z,
			O:    x.O && z.Z,
		}, nil

	case FragOrD:
		x, z := n.sub(0), n.sub(1)
		if x.Base != TypeB || !x.D || !x.U || z.Base != TypeB {
			return Type{}, typeError(n, "arguments must be Bdu and B")
		}
		return Type{
			Base: TypeB,
			Z:    x.Z && z.Z,
			O:    x.O && z.Z,
			D:    z.D,
			U:    z.U,
		}, nil

	case FragOrI:
		x, z := n.sub(0), n.sub(1)
		if x.Base != z.Base || (x.Base != TypeB && x.Base != TypeK && x.Base != TypeV) {
			return Type{}, typeError(n, "branches must share type B, K or V")
		}
		return Type{
			Base: x.Base,
			O:    x.Z && z.Z,
			U:    x.U && z.U,
			D:    x.D || z.D,
		}, nil

	case FragThresh:
		if len(n.Subs) == 0 || n.K == 0 || int(n.K) > len(n.Subs) {
			return Type{}, typeError(n, "threshold %d out of range 1..%d",
				n.K, len(n.Subs))
		}
		allZ, ones := true, 0
		for i := range n.Subs {
			s := n.sub(i)
			want := TypeW
			if i == 0 {
				want = TypeB
			}
			if s.Base != want || !s.D || !s.U {
				return Type{}, typeError(n, "argument %d must be %sdu, got %s",
					i, want, s)
			}
			if !s.Z {
				allZ = false
				if s.O {
					ones++
				} else {
					ones = len(n.Subs) + 1
				}
			}
		}
		return Type{
			Base: TypeB,
			Z:    allZ,
			O:    !allZ && ones == 1,
			D:    true,
			U:    true,
		}, nil

	case FragMulti:
		if len(n.Keys) == 0 || len(n.Keys) > txscript.MaxPubKeysPerMultiSig {
			return Type{}, typeError(n, "%d keys out of range 1..%d",
				len(n.Keys), txscript.MaxPubKeysPerMultiSig)
		}
		if n.K == 0 || int(n.K) > len(n.Keys) {
			return Type{}, typeError(n, "threshold %d out of range 1..%d",
				n.K, len(n.Keys))
		}
		return Type{Base: TypeB, N: true, D: true, U: true}, nil

	case FragWrapA:
		x := n.sub(0)
		if x.Base != TypeB {
			return Type{}, typeError(n, "argument must be B, got %s", x)
		}
		return Type{Base: TypeW, D: x.D, U: x.U}, nil

	case FragWrapS:
		x := n.sub(0)
		if x.Base != TypeB || !x.O {
			return Type{}, typeError(n, "argument must be Bo, got %s", x)
		}
		return Type{Base: TypeW, O: x.O, D: x.D, U: x.U}, nil

	case FragWrapC:
		x := n.sub(0)
		if x.Base != TypeK {
			return Type{}, typeError(n, "argument must be K, got %s", x)
		}
		return Type{Base: TypeB, O: x.O, N: x.N, D: x.D, U: true}, nil

	case FragWrapD:
		x := n.sub(0)
		if x.Base != TypeV || !x.Z {
			return Type{}, typeError(n, "argument must be Vz, got %s", x)
		}
		return Type{Base: TypeB, O: true, N: true, D: true, U: true}, nil

	case FragWrapV:
		x := n.sub(0)
		if x.Base != TypeB {
			return Type{}, typeError(n, "argument must be B, got %s", x)
		}
		return Type{Base: TypeV, Z: x.Z, O: x.O, N: x.N}, nil

	case FragWrapJ:
		x := n.sub(0)
		if x.Base != TypeB || !x.N {
			return Type{}, typeError(n, "argument must be Bn, got %s", x)
		}
		return Type{Base: TypeB, O: x.O, N: true, D: true, U: x.U}, nil

	case FragWrapN:
		x := n.sub(0)
		if x.Base != TypeB {
			return Type{}, typeError(n, "argument must be B, got %s", x)
		}
		return Type{Base: TypeB, Z: x.Z, O: x.O, N: x.N, D: x.D, U: true}, nil
	}

	return Type{}, typeError(n, "unknown fragment")
}

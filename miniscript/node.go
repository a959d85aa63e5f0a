// Package miniscript implements the subset of miniscript needed to describe
// spending conditions over abstract keys: parsing, type checking, key
// translation, script encoding and a small deterministic policy compiler.
package miniscript

import (
	"encoding/hex"
	"strconv"
	"strings"
)

// Key is an opaque key placeholder. Keys only need a textual form until
// the tree is encoded, at which point they must be ConcreteKey values.
type Key interface {
	String() string
}

// ConcreteKey is a key with a known serialization.
type ConcreteKey interface {
	Key
	Bytes() []byte
}

// Fragment identifies a miniscript fragment.
type Fragment uint8

const (
	FragFalse Fragment = iota
	FragTrue
	FragPkK
	FragPkH
	FragOlder
	FragAfter
	FragSha256
	FragHash256
	FragRipemd160
	FragHash160
	FragAndOr
	FragAndV
	FragAndB
	FragOrB
	FragOrC
	FragOrD
	FragOrI
	FragThresh
	FragMulti
	FragWrapA
	FragWrapS
	FragWrapC
	FragWrapD
	FragWrapV
	FragWrapJ
	FragWrapN
)

var fragmentNames = map[Fragment]string{
	FragFalse:     "0",
	FragTrue:      "1",
	FragPkK:       "pk_k",
	FragPkH:       "pk_h",
	FragOlder:     "older",
	FragAfter:     "after",
	FragSha256:    "sha256",
	FragHash256:   "hash256",
	FragRipemd160: "ripemd160",
	FragHash160:   "hash160",
	FragAndOr:     "andor",
	FragAndV:      "and_v",
	FragAndB:      "and_b",
	FragOrB:       "or_b",
	FragOrC:       "or_c",
	FragOrD:       "or_d",
	FragOrI:       "or_i",
	FragThresh:    "thresh",
	FragMulti:     "multi",
}

var wrapperLetters = map[Fragment]byte{
	FragWrapA: 'a',
	FragWrapS: 's',
	FragWrapC: 'c',
	FragWrapD: 'd',
	FragWrapV: 'v',
	FragWrapJ: 'j',
	FragWrapN: 'n',
}

func (f Fragment) isWrapper() bool {
	_, ok := wrapperLetters[f]
	return ok
}

func (f Fragment) String() string {
	if name, ok := fragmentNames[f]; ok {
		return name
	}
	if l, ok := wrapperLetters[f]; ok {
		return string(l) + ":"
	}
	return "Fragment(" + strconv.Itoa(int(f)) + ")"
}

// Node is a miniscript expression. Nodes are built by the parser, the
// policy compiler or the constructors below and are treated as immutable.
type Node struct {
	Fragment Fragment
	Keys     []Key
	K        uint32
	Hash     []byte
	Subs     []*Node

	typ Type
}

// Type returns the type computed for the node when it was checked.
func (n *Node) Type() Type {
	return n.typ
}

// AllKeys returns every key referenced by the tree, left to right.
func (n *Node) AllKeys() []Key {
	var keys []Key
	n.walk(func(node *Node) {
		keys = append(keys, node.Keys...)
	})
	return keys
}

func (n *Node) walk(f func(*Node)) {
	f(n)
	for _, sub := range n.Subs {
		sub.walk(f)
	}
}

// Translate returns a copy of the tree with every key replaced by the
// result of f. The copy is type checked again.
func (n *Node) Translate(f func(Key) (Key, error)) (*Node, error) {
	out, err := n.translate(f)
	if err != nil {
		return nil, err
	}
	if err := out.check(); err != nil {
		return nil, err
	}
	return out, nil
}

func (n *Node) translate(f func(Key) (Key, error)) (*Node, error) {
	out := &Node{
		Fragment: n.Fragment,
		K:        n.K,
		Hash:     n.Hash,
	}
	if len(n.Keys) > 0 {
		out.Keys = make([]Key, len(n.Keys))
		for i, key := range n.Keys {
			translated, err := f(key)
			if err != nil {
				return nil, err
			}
			out.Keys[i] = translated
		}
	}
	if len(n.Subs) > 0 {
		out.Subs = make([]*Node, len(n.Subs))
		for i, sub := range n.Subs {
			translated, err := sub.translate(f)
			if err != nil {
				return nil, err
			}
			out.Subs[i] = translated
		}
	}
	return out, nil
}

// IsSingleKey reports whether the tree is a bare pk(K) and returns the key.
func (n *Node) IsSingleKey() (Key, bool) {
	switch {
	case n.Fragment == FragPkK:
		return n.Keys[0], true
	case n.Fragment == FragWrapC && n.Subs[0].Fragment == FragPkK:
		return n.Subs[0].Keys[0], true
	}
	return nil, false
}

// IsMultisig reports whether the tree is a bare multi(k, ...) and returns
// its threshold and keys.
func (n *Node) IsMultisig() (uint32, []Key, bool) {
	if n.Fragment != FragMulti {
		return 0, nil, false
	}
	return n.K, append([]Key{}, n.Keys...), true
}

// String returns the miniscript expression. c:pk_k and c:pk_h are printed
// with their pk and pkh aliases.
func (n *Node) String() string {
	var b strings.Builder
	n.format(&b)
	return b.String()
}

func (n *Node) format(b *strings.Builder) {
	if n.Fragment.isWrapper() {
		var letters []byte
		node := n
		for node.Fragment.isWrapper() {
			if node.Fragment == FragWrapC && isKeyFragment(node.Subs[0]) {
				break
			}
			letters = append(letters, wrapperLetters[node.Fragment])
			node = node.Subs[0]
		}
		if len(letters) > 0 {
			b.Write(letters)
			b.WriteByte(':')
		}
		if node.Fragment == FragWrapC {
			alias := "pk"
			if node.Subs[0].Fragment == FragPkH {
				alias = "pkh"
			}
			b.WriteString(alias + "(" + node.Subs[0].Keys[0].String() + ")")
			return
		}
		node.format(b)
		return
	}

	switch n.Fragment {
	case FragFalse, FragTrue:
		b.WriteString(n.Fragment.String())
		return
	}

	b.WriteString(n.Fragment.String())
	b.WriteByte('(')
	var args []string
	switch n.Fragment {
	case FragPkK, FragPkH:
		args = append(args, n.Keys[0].String())
	case FragOlder, FragAfter:
		args = append(args, strconv.FormatUint(uint64(n.K), 10))
	case FragSha256, FragHash256, FragRipemd160, FragHash160:
		args = append(args, hex.EncodeToString(n.Hash))
	case FragMulti:
		args = append(args, strconv.FormatUint(uint64(n.K), 10))
		for _, key := range n.Keys {
			args = append(args, key.String())
		}
	case FragThresh:
		args = append(args, strconv.FormatUint(uint64(n.K), 10))
		fallthrough
	default:
		for _, sub := range n.Subs {
			args = append(args, sub.String())
		}
	}
	b.WriteString(strings.Join(args, ","))
	b.WriteByte(')')
}

func isKeyFragment(n *Node) bool {
	return n.Fragment == FragPkK || n.Fragment == FragPkH
}

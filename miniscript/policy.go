package miniscript

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/txscript"
)

// PolicyKind identifies a policy fragment.
type PolicyKind uint8

const (
	PolicyKey PolicyKind = iota
	PolicyAfter
	PolicyOlder
	PolicySha256
	PolicyHash256
	PolicyRipemd160
	PolicyHash160
	PolicyAnd
	PolicyOr
	PolicyThresh
)

// Policy is a spending policy: a tree of keys, timelocks and hash locks
// combined with and, or and thresh.
type Policy struct {
	Kind PolicyKind
	Key  Key
	K    uint32
	Hash []byte
	Subs []*Policy

	// Weights holds the relative probability of each branch of an or.
	Weights []uint32
}

var policyHashKinds = map[string]PolicyKind{
	"sha256":    PolicySha256,
	"hash256":   PolicyHash256,
	"ripemd160": PolicyRipemd160,
	"hash160":   PolicyHash160,
}

// ParsePolicy parses policy text such as
// or(pk(A),and(pk(B),older(1000))).
func ParsePolicy(s string, parseKey KeyParser) (*Policy, error) {
	if parseKey == nil {
		parseKey = ParseStringKey
	}
	return parsePolicy(strings.TrimSpace(s), parseKey)
}

func parsePolicy(s string, parseKey KeyParser) (*Policy, error) {
	call, err := splitCall(s)
	if err != nil {
		return nil, err
	}

	switch call.name {
	case "pk":
		if len(call.args) == 0 {
			return nil, parseError("pk expects one key")
		}
		key, err := parseKey(strings.Join(call.args, ","))
		if err != nil {
			return nil, err
		}
		return &Policy{Kind: PolicyKey, Key: key}, nil

	case "after", "older":
		if len(call.args) != 1 {
			return nil, parseError("%s expects one number", call.name)
		}
		k, err := parseNum(call.name, call.args[0])
		if err != nil {
			return nil, err
		}
		if k == 0 || k >= 1<<31 {
			return nil, parseError("%s value %d out of range", call.name, k)
		}
		if call.name == "after" {
			return &Policy{Kind: PolicyAfter, K: k}, nil
		}
		return &Policy{Kind: PolicyOlder, K: k}, nil

	case "sha256", "hash256", "ripemd160", "hash160":
		if len(call.args) != 1 {
			return nil, parseError("%s expects one hash", call.name)
		}
		h, err := hex.DecodeString(call.args[0])
		if err != nil {
			return nil, parseError("invalid hash in %s: %v", call.name, err)
		}
		return &Policy{Kind: policyHashKinds[call.name], Hash: h}, nil

	case "and", "or":
		if len(call.args) != 2 {
			return nil, parseError("%s expects two arguments", call.name)
		}
		p := &Policy{Kind: PolicyAnd}
		if call.name == "or" {
			p.Kind = PolicyOr
		}
		for _, arg := range call.args {
			weight := uint32(1)
			if at := strings.IndexByte(arg, '@'); at > 0 && at < strings.IndexByte(arg+"(", '(') {
				if p.Kind != PolicyOr {
					return nil, parseError("weights are only allowed in or")
				}
				w, err := parseNum("or", arg[:at])
				if err != nil || w == 0 {
					return nil, parseError("invalid or weight %q", arg[:at])
				}
				weight, arg = w, arg[at+1:]
			}
			sub, err := parsePolicy(arg, parseKey)
			if err != nil {
				return nil, err
			}
			p.Subs = append(p.Subs, sub)
			if p.Kind == PolicyOr {
				p.Weights = append(p.Weights, weight)
			}
		}
		return p, nil

	case "thresh":
		if len(call.args) < 2 {
			return nil, parseError("thresh expects a threshold and arguments")
		}
		k, err := parseNum(call.name, call.args[0])
		if err != nil {
			return nil, err
		}
		p := &Policy{Kind: PolicyThresh, K: k}
		for _, arg := range call.args[1:] {
			sub, err := parsePolicy(arg, parseKey)
			if err != nil {
				return nil, err
			}
			p.Subs = append(p.Subs, sub)
		}
		if k == 0 || int(k) > len(p.Subs) {
			return nil, parseError("thresh threshold %d out of range 1..%d",
				k, len(p.Subs))
		}
		return p, nil
	}

	return nil, parseError("unknown policy fragment %q", call.name)
}

func (p *Policy) String() string {
	switch p.Kind {
	case PolicyKey:
		return "pk(" + p.Key.String() + ")"
	case PolicyAfter:
		return "after(" + strconv.FormatUint(uint64(p.K), 10) + ")"
	case PolicyOlder:
		return "older(" + strconv.FormatUint(uint64(p.K), 10) + ")"
	case PolicySha256, PolicyHash256, PolicyRipemd160, PolicyHash160:
		for name, kind := range policyHashKinds {
			if kind == p.Kind {
				return name + "(" + hex.EncodeToString(p.Hash) + ")"
			}
		}
	}

	var args []string
	name := "and"
	switch p.Kind {
	case PolicyOr:
		name = "or"
	case PolicyThresh:
		name = "thresh"
		args = append(args, strconv.FormatUint(uint64(p.K), 10))
	}
	for i, sub := range p.Subs {
		arg := sub.String()
		if p.Kind == PolicyOr && p.Weights[i] != 1 {
			arg = strconv.FormatUint(uint64(p.Weights[i]), 10) + "@" + arg
		}
		args = append(args, arg)
	}
	return name + "(" + strings.Join(args, ",") + ")"
}

// CompilePolicy parses and compiles policy text in one step.
func CompilePolicy(s string, parseKey KeyParser) (*Node, error) {
	p, err := ParsePolicy(s, parseKey)
	if err != nil {
		return nil, err
	}
	return p.Compile()
}

// Compile lowers the policy to a type checked miniscript tree. The
// compiler is deterministic and favours small scripts for the common
// shapes (key, multisig, and/or chains) without searching for an optimal
// satisfaction cost. Or weights do not influence the result.
func (p *Policy) Compile() (*Node, error) {
	node, err := p.compile()
	if err != nil {
		return nil, err
	}
	if err := node.CheckTopLevel(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompile, err)
	}
	return node, nil
}

func (p *Policy) compile() (*Node, error) {
	switch p.Kind {
	case PolicyKey:
		return typed(Check(PkK(p.Key)))

	case PolicyAfter:
		return typed(&Node{Fragment: FragAfter, K: p.K})

	case PolicyOlder:
		return typed(&Node{Fragment: FragOlder, K: p.K})

	case PolicySha256, PolicyHash256, PolicyRipemd160, PolicyHash160:
		frag := map[PolicyKind]Fragment{
			PolicySha256:    FragSha256,
			PolicyHash256:   FragHash256,
			PolicyRipemd160: FragRipemd160,
			PolicyHash160:   FragHash160,
		}[p.Kind]
		return typed(&Node{Fragment: frag, Hash: p.Hash})

	case PolicyAnd:
		return compileAnd(p.Subs)

	case PolicyOr:
		return compileOr(p.Subs)

	case PolicyThresh:
		return compileThresh(p.K, p.Subs)
	}

	return nil, fmt.Errorf("%w: unknown policy kind %d", ErrCompile, p.Kind)
}

func typed(n *Node) (*Node, error) {
	if err := n.check(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompile, err)
	}
	return n, nil
}

func compileAll(subs []*Policy) ([]*Node, error) {
	nodes := make([]*Node, len(subs))
	for i, sub := range subs {
		node, err := sub.compile()
		if err != nil {
			return nil, err
		}
		nodes[i] = node
	}
	return nodes, nil
}

// compileAnd chains and_v(v:X, Y) from the right.
func compileAnd(subs []*Policy) (*Node, error) {
	nodes, err := compileAll(subs)
	if err != nil {
		return nil, err
	}

	acc := nodes[len(nodes)-1]
	for i := len(nodes) - 2; i >= 0; i-- {
		acc, err = typed(&Node{
			Fragment: FragAndV,
			Subs:     []*Node{Verify(nodes[i]), acc},
		})
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// compileOr uses or_d when either branch is dissatisfiable as a unit and
// falls back to or_i.
func compileOr(subs []*Policy) (*Node, error) {
	nodes, err := compileAll(subs)
	if err != nil {
		return nil, err
	}

	acc := nodes[len(nodes)-1]
	for i := len(nodes) - 2; i >= 0; i-- {
		x, z := nodes[i], acc
		var node *Node
		switch {
		case x.typ.D && x.typ.U:
			node = &Node{Fragment: FragOrD, Subs: []*Node{x, z}}
		case z.typ.D && z.typ.U:
			node = &Node{Fragment: FragOrD, Subs: []*Node{z, x}}
		default:
			node = &Node{Fragment: FragOrI, Subs: []*Node{x, z}}
		}
		acc, err = typed(node)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func compileThresh(k uint32, subs []*Policy) (*Node, error) {
	n := uint32(len(subs))

	allKeys := len(subs) <= txscript.MaxPubKeysPerMultiSig
	for _, sub := range subs {
		if sub.Kind != PolicyKey {
			allKeys = false
			break
		}
	}
	switch {
	case allKeys:
		keys := make([]Key, len(subs))
		for i, sub := range subs {
			keys[i] = sub.Key
		}
		return Multi(k, keys)

	case k == n:
		return compileAnd(subs)

	case k == 1:
		return compileOr(subs)
	}

	nodes, err := compileAll(subs)
	if err != nil {
		return nil, err
	}
	for i, node := range nodes {
		node, err = unitDissatisfiable(node)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			node, err = toWrapped(node)
			if err != nil {
				return nil, err
			}
		}
		nodes[i] = node
	}
	return typed(&Node{Fragment: FragThresh, K: k, Subs: nodes})
}

// unitDissatisfiable wraps a B expression until it has the d and u
// properties required by thresh arguments.
func unitDissatisfiable(x *Node) (*Node, error) {
	switch {
	case x.typ.D && x.typ.U:
		return x, nil
	case x.typ.Z:
		return typed(&Node{Fragment: FragWrapD, Subs: []*Node{Verify(x)}})
	case x.typ.N:
		j, err := typed(&Node{Fragment: FragWrapJ, Subs: []*Node{x}})
		if err != nil || j.typ.U {
			return j, err
		}
		return typed(&Node{Fragment: FragWrapN, Subs: []*Node{j}})
	}
	return nil, fmt.Errorf("%w: %s can't be made dissatisfiable", ErrCompile, x)
}

// toWrapped turns a B expression into a W expression.
func toWrapped(x *Node) (*Node, error) {
	if x.typ.O {
		return typed(&Node{Fragment: FragWrapS, Subs: []*Node{x}})
	}
	return typed(&Node{Fragment: FragWrapA, Subs: []*Node{x}})
}

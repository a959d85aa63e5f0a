package miniscript

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// KeyParser turns the textual form of a key argument into a Key.
type KeyParser func(string) (Key, error)

// StringKey is a Key which is nothing but its text. It is the default key
// type of the parser.
type StringKey string

func (k StringKey) String() string {
	return string(k)
}

// ParseStringKey is the KeyParser producing StringKey values.
func ParseStringKey(s string) (Key, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty key", ErrParse)
	}
	return StringKey(s), nil
}

// Parse parses a miniscript expression and type checks it as a top level
// expression.
func Parse(s string, parseKey KeyParser) (*Node, error) {
	if parseKey == nil {
		parseKey = ParseStringKey
	}

	node, err := parseExpr(strings.TrimSpace(s), parseKey)
	if err != nil {
		return nil, err
	}
	if err := node.CheckTopLevel(); err != nil {
		return nil, err
	}
	return node, nil
}

func parseError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrParse, fmt.Sprintf(format, args...))
}

// expr is a parsed `name(args)` call.
type expr struct {
	name string
	args []string
}

func splitCall(s string) (expr, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 {
		return expr{name: s}, nil
	}
	if !strings.HasSuffix(s, ")") {
		return expr{}, parseError("unbalanced parentheses in %q", s)
	}

	inner := s[open+1 : len(s)-1]
	depth := 0
	for i := 0; i < len(inner); i++ {
		switch inner[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth < 0 {
			return expr{}, parseError("unbalanced parentheses in %q", s)
		}
	}
	if depth != 0 {
		return expr{}, parseError("unbalanced parentheses in %q", s)
	}

	return expr{name: s[:open], args: splitArgs(inner)}, nil
}

func splitArgs(s string) []string {
	if s == "" {
		return nil
	}

	var (
		args  []string
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, s[start:i])
				start = i + 1
			}
		}
	}
	return append(args, s[start:])
}

// joinKeyArgs glues index range continuations back onto the preceding
// extended key argument, as in [xpub]/0/0,5.
func joinKeyArgs(args []string) []string {
	var out []string
	for _, arg := range args {
		if n := len(out); n > 0 && isRangeContinuation(arg) &&
			strings.HasPrefix(out[n-1], "[") {

			out[n-1] += "," + arg
			continue
		}
		out = append(out, arg)
	}
	return out
}

func isRangeContinuation(s string) bool {
	if s == "" || len(s) >= 66 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if (s[i] < '0' || s[i] > '9') && s[i] != '-' {
			return false
		}
	}
	return true
}

func parseExpr(s string, parseKey KeyParser) (*Node, error) {
	// Wrappers are a run of letters followed by a colon ahead of any
	// parenthesis.
	colon := strings.IndexByte(s, ':')
	open := strings.IndexByte(s, '(')
	if colon > 0 && (open < 0 || colon < open) {
		letters, rest := s[:colon], s[colon+1:]
		inner, err := parseExpr(rest, parseKey)
		if err != nil {
			return nil, err
		}
		for i := len(letters) - 1; i >= 0; i-- {
			inner, err = wrap(letters[i], inner)
			if err != nil {
				return nil, err
			}
		}
		return inner, nil
	}

	call, err := splitCall(s)
	if err != nil {
		return nil, err
	}

	switch call.name {
	case "0":
		return &Node{Fragment: FragFalse}, noArgs(call)
	case "1":
		return &Node{Fragment: FragTrue}, noArgs(call)

	case "pk_k", "pk_h", "pk", "pkh":
		if len(call.args) == 0 {
			return nil, parseError("%s expects one key", call.name)
		}
		key, err := parseKey(strings.Join(call.args, ","))
		if err != nil {
			return nil, err
		}
		switch call.name {
		case "pk_k":
			return PkK(key), nil
		case "pk_h":
			return PkH(key), nil
		case "pk":
			return Check(PkK(key)), nil
		default:
			return Check(PkH(key)), nil
		}

	case "older", "after":
		if len(call.args) != 1 {
			return nil, parseError("%s expects one number", call.name)
		}
		k, err := parseNum(call.name, call.args[0])
		if err != nil {
			return nil, err
		}
		if call.name == "older" {
			return &Node{Fragment: FragOlder, K: k}, nil
		}
		return &Node{Fragment: FragAfter, K: k}, nil

	case "sha256", "hash256", "ripemd160", "hash160":
		if len(call.args) != 1 {
			return nil, parseError("%s expects one hash", call.name)
		}
		h, err := hex.DecodeString(call.args[0])
		if err != nil {
			return nil, parseError("invalid hash in %s: %v", call.name, err)
		}
		return &Node{Fragment: hashFragments[call.name], Hash: h}, nil

	case "multi":
		if len(call.args) < 2 {
			return nil, parseError("multi expects a threshold and keys")
		}
		k, err := parseNum(call.name, call.args[0])
		if err != nil {
			return nil, err
		}
		node := &Node{Fragment: FragMulti, K: k}
		for _, arg := range joinKeyArgs(call.args[1:]) {
			key, err := parseKey(arg)
			if err != nil {
				return nil, err
			}
			node.Keys = append(node.Keys, key)
		}
		return node, nil

	case "thresh":
		if len(call.args) < 2 {
			return nil, parseError("thresh expects a threshold and arguments")
		}
		k, err := parseNum(call.name, call.args[0])
		if err != nil {
			return nil, err
		}
		subs, err := parseSubs(call.args[1:], parseKey)
		if err != nil {
			return nil, err
		}
		return &Node{Fragment: FragThresh, K: k, Subs: subs}, nil
	}

	frag, arity, ok := combinator(call.name)
	if !ok {
		return nil, parseError("unknown fragment %q", call.name)
	}
	if len(call.args) != arity {
		return nil, parseError("%s expects %d arguments, got %d",
			call.name, arity, len(call.args))
	}
	subs, err := parseSubs(call.args, parseKey)
	if err != nil {
		return nil, err
	}

	switch call.name {
	case "and_n":
		subs = append(subs, &Node{Fragment: FragFalse})
	}
	return &Node{Fragment: frag, Subs: subs}, nil
}

var hashFragments = map[string]Fragment{
	"sha256":    FragSha256,
	"hash256":   FragHash256,
	"ripemd160": FragRipemd160,
	"hash160":   FragHash160,
}

func combinator(name string) (Fragment, int, bool) {
	switch name {
	case "andor":
		return FragAndOr, 3, true
	case "and_v":
		return FragAndV, 2, true
	case "and_b":
		return FragAndB, 2, true
	case "and_n":
		return FragAndOr, 2, true
	case "or_b":
		return FragOrB, 2, true
	case "or_c":
		return FragOrC, 2, true
	case "or_d":
		return FragOrD, 2, true
	case "or_i":
		return FragOrI, 2, true
	}
	return 0, 0, false
}

func noArgs(call expr) error {
	if len(call.args) != 0 {
		return parseError("%s takes no arguments", call.name)
	}
	return nil
}

func parseNum(name, s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, parseError("invalid number in %s: %v", name, err)
	}
	return uint32(n), nil
}

func parseSubs(args []string, parseKey KeyParser) ([]*Node, error) {
	subs := make([]*Node, 0, len(args))
	for _, arg := range args {
		sub, err := parseExpr(arg, parseKey)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// wrap applies the wrapper named by letter. t, l and u are shorthands for
// and_v(X,1), or_i(0,X) and or_i(X,0).
func wrap(letter byte, x *Node) (*Node, error) {
	switch letter {
	case 'a':
		return &Node{Fragment: FragWrapA, Subs: []*Node{x}}, nil
	case 's':
		return &Node{Fragment: FragWrapS, Subs: []*Node{x}}, nil
	case 'c':
		return Check(x), nil
	case 'd':
		return &Node{Fragment: FragWrapD, Subs: []*Node{x}}, nil
	case 'v':
		return Verify(x), nil
	case 'j':
		return &Node{Fragment: FragWrapJ, Subs: []*Node{x}}, nil
	case 'n':
		return &Node{Fragment: FragWrapN, Subs: []*Node{x}}, nil
	case 't':
		return &Node{Fragment: FragAndV, Subs: []*Node{x, {Fragment: FragTrue}}}, nil
	case 'l':
		return &Node{Fragment: FragOrI, Subs: []*Node{{Fragment: FragFalse}, x}}, nil
	case 'u':
		return &Node{Fragment: FragOrI, Subs: []*Node{x, {Fragment: FragFalse}}}, nil
	}
	return nil, parseError("unknown wrapper %q", string(letter))
}

// PkK returns pk_k(key).
func PkK(key Key) *Node {
	return &Node{Fragment: FragPkK, Keys: []Key{key}}
}

// PkH returns pk_h(key).
func PkH(key Key) *Node {
	return &Node{Fragment: FragPkH, Keys: []Key{key}}
}

// Check returns c:x.
func Check(x *Node) *Node {
	return &Node{Fragment: FragWrapC, Subs: []*Node{x}}
}

// Verify returns v:x.
func Verify(x *Node) *Node {
	return &Node{Fragment: FragWrapV, Subs: []*Node{x}}
}

// Multi returns multi(k, keys...) after type checking it.
func Multi(k uint32, keys []Key) (*Node, error) {
	node := &Node{Fragment: FragMulti, K: k, Keys: append([]Key{}, keys...)}
	if err := node.check(); err != nil {
		return nil, err
	}
	return node, nil
}

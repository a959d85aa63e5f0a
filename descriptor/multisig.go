package descriptor

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/txscript"
)

// MultiSig is a k-of-n threshold over key sources.
type MultiSig struct {
	threshold *uint8
	members   []KeySource
	sorted    bool
}

// NewMultiSig validates a multisig template. A nil threshold requires
// every member to sign.
func NewMultiSig(threshold *uint8, members []KeySource, sorted bool) (*MultiSig, error) {
	n := len(members)
	if n == 0 {
		return nil, descError(ErrInvalidTemplate, "multisig without keys", nil)
	}
	if n > txscript.MaxPubKeysPerMultiSig {
		str := fmt.Sprintf("multisig with %d keys exceeds the limit of %d",
			n, txscript.MaxPubKeysPerMultiSig)
		return nil, descError(ErrInvalidTemplate, str, nil)
	}

	m := &MultiSig{
		members: append([]KeySource{}, members...),
		sorted:  sorted,
	}
	if threshold != nil {
		k := *threshold
		if k == 0 || int(k) > n {
			str := fmt.Sprintf("multisig threshold %d out of range 1..%d", k, n)
			return nil, descError(ErrInvalidTemplate, str, nil)
		}
		m.threshold = &k
	}

	return m, nil
}

// Threshold returns the number of required signatures, defaulting to the
// number of members.
func (m *MultiSig) Threshold() uint8 {
	if m.threshold == nil {
		return uint8(len(m.members))
	}
	return *m.threshold
}

// HasExplicitThreshold reports whether the threshold was given.
func (m *MultiSig) HasExplicitThreshold() bool {
	return m.threshold != nil
}

// Members returns the member key sources in their given order.
func (m *MultiSig) Members() []KeySource {
	return append([]KeySource{}, m.members...)
}

// Sorted reports whether derived keys are sorted before use.
func (m *MultiSig) Sorted() bool {
	return m.sorted
}

// Count returns the smallest member count, as every member must produce a
// key for an index to be usable.
func (m *MultiSig) Count() uint32 {
	return minCount(m.members)
}

// DeriveKeys derives each member at index. Sorted multisigs return the keys
// in ascending order of their serialization.
func (m *MultiSig) DeriveKeys(index uint32) ([]PublicKey, error) {
	keys, err := m.deriveUnsorted(index)
	if err != nil {
		return nil, err
	}
	if m.sorted {
		sortKeys(keys)
	}
	return keys, nil
}

func (m *MultiSig) deriveUnsorted(index uint32) ([]PublicKey, error) {
	keys := make([]PublicKey, 0, len(m.members))
	for _, member := range m.members {
		key, err := member.DerivePublicKey(index)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func sortKeys(keys []PublicKey) {
	sort.SliceStable(keys, func(i, j int) bool {
		return bytes.Compare(keys[i].Serialize(), keys[j].Serialize()) < 0
	})
}

func (m *MultiSig) String() string {
	name := "multi"
	if m.sorted {
		name = "sortedmulti"
	}

	args := make([]string, 0, len(m.members)+1)
	if m.threshold != nil {
		args = append(args, strconv.Itoa(int(*m.threshold)))
	}
	for _, member := range m.members {
		args = append(args, member.String())
	}
	return name + "(" + strings.Join(args, ",") + ")"
}

// ParseMultiSig parses multi(k,key,...) and sortedmulti(k,key,...). The
// threshold may be omitted.
func ParseMultiSig(s string, opts ParseOptions) (*MultiSig, error) {
	var (
		sorted bool
		inner  string
		ok     bool
	)
	switch {
	case strings.HasPrefix(s, "sortedmulti("):
		sorted = true
		inner, ok = unwrapCall(s, "sortedmulti")
	default:
		inner, ok = unwrapCall(s, "multi")
	}
	if !ok {
		str := "malformed multisig " + strconv.Quote(s)
		return nil, descError(ErrGrammar, str, nil)
	}

	args := splitKeyArgs(inner)
	if len(args) == 0 {
		return nil, descError(ErrGrammar, "multisig without arguments", nil)
	}

	var threshold *uint8
	if isNumber(args[0]) {
		k, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil {
			str := "invalid multisig threshold " + strconv.Quote(args[0])
			return nil, descError(ErrGrammar, str, err)
		}
		k8 := uint8(k)
		threshold = &k8
		args = args[1:]
	}

	members := make([]KeySource, 0, len(args))
	for _, arg := range args {
		member, err := ParseKeySource(arg, opts)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}

	return NewMultiSig(threshold, members, sorted)
}

// unwrapCall strips `name(` and the matching final `)`.
func unwrapCall(s, name string) (string, bool) {
	if !strings.HasPrefix(s, name+"(") || !strings.HasSuffix(s, ")") {
		return "", false
	}
	return s[len(name)+1 : len(s)-1], true
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

// splitKeyArgs splits a comma separated list of key sources. Commas also
// separate index ranges inside HD keys, so a bare number or a-b token
// following an HD key is glued back onto it.
func splitKeyArgs(s string) []string {
	if s == "" {
		return nil
	}

	var args []string
	for _, tok := range splitTopLevel(s) {
		if n := len(args); n > 0 && isRangeToken(tok) &&
			strings.HasPrefix(args[n-1], "[") {

			args[n-1] += "," + tok
			continue
		}
		args = append(args, tok)
	}
	return args
}

func isRangeToken(s string) bool {
	if s == "" || len(s) >= 66 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) && s[i] != '-' {
			return false
		}
	}
	return true
}

// splitTopLevel splits on commas which are not nested in parentheses.
func splitTopLevel(s string) []string {
	var (
		parts []string
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
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

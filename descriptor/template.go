package descriptor

import (
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/txscript"
	"github.com/pandora-prime/bitcoin-pro/miniscript"
)

// ContentKind tags the content of a Template.
type ContentKind uint8

const (
	// ContentSingleKey is a single key source producing public keys.
	ContentSingleKey ContentKind = iota

	// ContentMultiSig is a threshold multisig over key sources.
	ContentMultiSig

	// ContentScript is any other script over key sources.
	ContentScript
)

func (k ContentKind) String() string {
	switch k {
	case ContentSingleKey:
		return "singlekey"
	case ContentMultiSig:
		return "multisig"
	case ContentScript:
		return "script"
	}
	return "ContentKind(" + strconv.Itoa(int(k)) + ")"
}

// Template is the content a generator produces outputs for. Exactly one of
// the variant fields is set, selected by the kind.
type Template struct {
	kind   ContentKind
	key    KeySource
	multi  *MultiSig
	script *CustomScript
}

// NewSingleKeyTemplate wraps a key source.
func NewSingleKeyTemplate(key KeySource) Template {
	return Template{kind: ContentSingleKey, key: key}
}

// NewMultiSigTemplate wraps a multisig.
func NewMultiSigTemplate(m *MultiSig) Template {
	return Template{kind: ContentMultiSig, multi: m}
}

// NewCustomScriptTemplate wraps a custom script as is, without classification.
func NewCustomScriptTemplate(c *CustomScript) Template {
	return Template{kind: ContentScript, script: c}
}

// ClassifyScript picks the simplest template for a custom script: a root
// pk(K) becomes a single key, a root multi(k,...) becomes an unsorted
// multisig and everything else stays a script.
func ClassifyScript(c *CustomScript) (Template, error) {
	tree := c.Miniscript()
	if tree == nil {
		return NewCustomScriptTemplate(c), nil
	}

	if key, ok := tree.IsSingleKey(); ok {
		return NewSingleKeyTemplate(key.(KeySource)), nil
	}

	if k, keys, ok := tree.IsMultisig(); ok {
		members := make([]KeySource, len(keys))
		for i, key := range keys {
			members[i] = key.(KeySource)
		}
		threshold := uint8(k)
		m, err := NewMultiSig(&threshold, members, false)
		if err != nil {
			return Template{}, err
		}
		return NewMultiSigTemplate(m), nil
	}

	return NewCustomScriptTemplate(c), nil
}

// ParseTemplate parses multi(...), sortedmulti(...), policy(...),
// miniscript(...) and script(...) forms, and otherwise reads a key source.
// Policies and miniscript are classified into simpler kinds where
// possible.
func ParseTemplate(s string, opts ParseOptions) (Template, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "multi("), strings.HasPrefix(s, "sortedmulti("):
		m, err := ParseMultiSig(s, opts)
		if err != nil {
			return Template{}, err
		}
		return NewMultiSigTemplate(m), nil

	case strings.HasPrefix(s, "policy("), strings.HasPrefix(s, "miniscript("):
		c, err := ParseCustomScript(s, opts)
		if err != nil {
			return Template{}, err
		}
		return ClassifyScript(c)

	case strings.HasPrefix(s, "script("):
		c, err := ParseCustomScript(s, opts)
		if err != nil {
			return Template{}, err
		}
		return NewCustomScriptTemplate(c), nil
	}

	key, err := ParseKeySource(s, opts)
	if err != nil {
		return Template{}, err
	}
	return NewSingleKeyTemplate(key), nil
}

// Kind returns the content kind.
func (t Template) Kind() ContentKind {
	return t.kind
}

// KeySource returns the key of a single key template.
func (t Template) KeySource() (KeySource, bool) {
	return t.key, t.kind == ContentSingleKey
}

// MultiSig returns the multisig of a multisig template.
func (t Template) MultiSig() (*MultiSig, bool) {
	return t.multi, t.kind == ContentMultiSig
}

// Script returns the custom script of a script template.
func (t Template) Script() (*CustomScript, bool) {
	return t.script, t.kind == ContentScript
}

// Keys returns the key sources used by the template.
func (t Template) Keys() []KeySource {
	switch t.kind {
	case ContentSingleKey:
		return []KeySource{t.key}
	case ContentMultiSig:
		return t.multi.Members()
	case ContentScript:
		return t.script.Keys()
	}
	return nil
}

// Covers reports whether index lies within the ranges of every
// hierarchical key of the template.
func (t Template) Covers(index uint32) bool {
	for _, key := range t.Keys() {
		d, ok := key.(*DerivationComponents)
		if ok && !d.indexRanges.Contains(index) {
			return false
		}
	}
	return true
}

// Count returns the number of indices the template covers.
func (t Template) Count() uint32 {
	switch t.kind {
	case ContentSingleKey:
		return t.key.Count()
	case ContentMultiSig:
		return t.multi.Count()
	case ContentScript:
		return t.script.Count()
	}
	return 0
}

func (t Template) String() string {
	switch t.kind {
	case ContentSingleKey:
		return t.key.String()
	case ContentMultiSig:
		return t.multi.String()
	case ContentScript:
		return t.script.String()
	}
	return ""
}

// LockScript returns the script placed in a bare output, a P2SH redeem
// script or a witness script for the category. Single key templates have
// no lock script.
func (t Template) LockScript(index uint32, cat Category) ([]byte, error) {
	if cat == Taproot {
		return nil, descError(ErrCategoryUnavailable,
			"taproot lock scripts are not supported", nil)
	}

	ctx := miniscript.ContextLegacy
	if cat.IsWitness() {
		ctx = miniscript.ContextWitnessV0
	}

	switch t.kind {
	case ContentSingleKey:
		return nil, descError(ErrSingleKeyTemplate,
			"single key templates have no lock script", nil)

	case ContentMultiSig:
		// Bare multisig always uses the member order.
		var (
			keys []PublicKey
			err  error
		)
		if cat == Bare {
			keys, err = t.multi.deriveUnsorted(index)
		} else {
			keys, err = t.multi.DeriveKeys(index)
		}
		if err != nil {
			return nil, err
		}
		return multisigScript(t.multi.Threshold(), keys, ctx)

	case ContentScript:
		return t.script.LockScript(index, ctx)
	}

	str := "unknown template kind " + t.kind.String()
	return nil, descError(ErrInvalidTemplate, str, nil)
}

func multisigScript(k uint8, keys []PublicKey, ctx miniscript.Context) ([]byte, error) {
	members := make([]miniscript.Key, len(keys))
	for i, key := range keys {
		if ctx == miniscript.ContextWitnessV0 && !key.Compressed {
			return nil, uncompressedKeyError(key)
		}
		members[i] = key
	}

	node, err := miniscript.Multi(uint32(k), members)
	if err != nil {
		return nil, descError(ErrInvalidTemplate, "invalid multisig", err)
	}
	script, err := node.Script(ctx)
	if err != nil {
		return nil, descError(ErrScriptBuild, "unable to encode multisig", err)
	}
	return script, nil
}

// checkScriptSize enforces the push limit for redeem and witness scripts.
func checkScriptSize(script []byte, cat Category) error {
	limit := txscript.MaxScriptElementSize
	if cat == SegWit || cat == Nested {
		limit = txscript.MaxScriptSize
	}
	if cat == Bare || len(script) <= limit {
		return nil
	}
	str := "lock script of " + strconv.Itoa(len(script)) + " bytes exceeds the " +
		cat.String() + " limit of " + strconv.Itoa(limit)
	return descError(ErrScriptBuild, str, nil)
}

package descriptor

import (
	"encoding/hex"
	"errors"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/pandora-prime/bitcoin-pro/miniscript"
)

// pubKeyBytesLenUncompressed is the length of a serialized uncompressed
// public key.
const pubKeyBytesLenUncompressed = 65

// ElementKind tags a script template element.
type ElementKind uint8

const (
	ElementOp ElementKind = iota
	ElementData
	ElementKey
)

// TemplateElement is one opcode, data push or key placeholder of a raw
// script template.
type TemplateElement struct {
	Kind ElementKind
	Op   byte
	Data []byte
	Key  KeySource
}

// ScriptTemplate is a raw script with key placeholders which are replaced
// by derived keys when the script is built.
type ScriptTemplate struct {
	elements []TemplateElement
}

// opcodeNames maps opcodes back to one canonical name.
var opcodeNames = func() map[byte]string {
	aliases := map[string]bool{
		"OP_FALSE": true,
		"OP_TRUE":  true,
		"OP_NOP2":  true,
		"OP_NOP3":  true,
	}
	names := make(map[byte]string, len(txscript.OpcodeByName))
	for name, code := range txscript.OpcodeByName {
		if aliases[name] {
			continue
		}
		if prev, ok := names[code]; ok && prev < name {
			continue
		}
		names[code] = name
	}
	return names
}()

// NewScriptTemplate returns a template holding the elements.
func NewScriptTemplate(elements []TemplateElement) *ScriptTemplate {
	return &ScriptTemplate{elements: append([]TemplateElement{}, elements...)}
}

// ParseScriptTemplate parses whitespace separated tokens: opcode names
// (OP_DUP), hex data pushes and key sources in braces ({[xpub]/0/*}).
func ParseScriptTemplate(s string, opts ParseOptions) (*ScriptTemplate, error) {
	tokens := strings.Fields(s)
	if len(tokens) == 0 {
		return nil, descError(ErrGrammar, "empty script template", nil)
	}

	elements := make([]TemplateElement, 0, len(tokens))
	for _, tok := range tokens {
		switch {
		case strings.HasPrefix(tok, "{") && strings.HasSuffix(tok, "}"):
			key, err := ParseKeySource(tok[1:len(tok)-1], opts)
			if err != nil {
				return nil, err
			}
			elements = append(elements, TemplateElement{Kind: ElementKey, Key: key})

		case strings.HasPrefix(tok, "OP_"):
			code, ok := txscript.OpcodeByName[tok]
			if !ok {
				str := "unknown opcode " + strconv.Quote(tok)
				return nil, descError(ErrGrammar, str, nil)
			}
			elements = append(elements, TemplateElement{Kind: ElementOp, Op: code})

		default:
			data, err := hex.DecodeString(tok)
			if err != nil {
				str := "invalid script template token " + strconv.Quote(tok)
				return nil, descError(ErrGrammar, str, err)
			}
			elements = append(elements, TemplateElement{Kind: ElementData, Data: data})
		}
	}

	return NewScriptTemplate(elements), nil
}

// ScriptTemplateFromScript lifts a serialized script into a template.
// Pushes holding a valid public key become fixed key placeholders.
func ScriptTemplateFromScript(script []byte) (*ScriptTemplate, error) {
	var elements []TemplateElement
	tokenizer := txscript.MakeScriptTokenizer(0, script)
	for tokenizer.Next() {
		code := tokenizer.Opcode()
		if code < txscript.OP_DATA_1 || code > txscript.OP_PUSHDATA4 {
			elements = append(elements, TemplateElement{Kind: ElementOp, Op: code})
			continue
		}

		data := append([]byte{}, tokenizer.Data()...)
		if len(data) == btcec.PubKeyBytesLenCompressed ||
			len(data) == pubKeyBytesLenUncompressed {

			if pub, err := btcec.ParsePubKey(data); err == nil {
				key := NewFixedKey(PublicKey{
					Key:        pub,
					Compressed: len(data) == btcec.PubKeyBytesLenCompressed,
				}, nil)
				elements = append(elements, TemplateElement{Kind: ElementKey, Key: key})
				continue
			}
		}
		elements = append(elements, TemplateElement{Kind: ElementData, Data: data})
	}
	if err := tokenizer.Err(); err != nil {
		return nil, descError(ErrGrammar, "malformed script", err)
	}
	if len(elements) == 0 {
		return nil, descError(ErrGrammar, "empty script template", nil)
	}

	return NewScriptTemplate(elements), nil
}

// Elements returns a copy of the template elements.
func (t *ScriptTemplate) Elements() []TemplateElement {
	return append([]TemplateElement{}, t.elements...)
}

// Keys returns the key placeholders in order.
func (t *ScriptTemplate) Keys() []KeySource {
	var keys []KeySource
	for _, e := range t.elements {
		if e.Kind == ElementKey {
			keys = append(keys, e.Key)
		}
	}
	return keys
}

// Script builds the script for index.
func (t *ScriptTemplate) Script(index uint32, ctx miniscript.Context) ([]byte, error) {
	b := txscript.NewScriptBuilder()
	for _, e := range t.elements {
		switch e.Kind {
		case ElementOp:
			b.AddOp(e.Op)
		case ElementData:
			b.AddData(e.Data)
		case ElementKey:
			key, err := e.Key.DerivePublicKey(index)
			if err != nil {
				return nil, err
			}
			if ctx == miniscript.ContextWitnessV0 && !key.Compressed {
				return nil, uncompressedKeyError(key)
			}
			b.AddData(key.Serialize())
		}
	}

	script, err := b.Script()
	if err != nil {
		return nil, descError(ErrScriptBuild, "unable to assemble script", err)
	}
	return script, nil
}

func (t *ScriptTemplate) String() string {
	tokens := make([]string, len(t.elements))
	for i, e := range t.elements {
		switch e.Kind {
		case ElementOp:
			tokens[i] = opcodeNames[e.Op]
		case ElementData:
			tokens[i] = hex.EncodeToString(e.Data)
		case ElementKey:
			tokens[i] = "{" + e.Key.String() + "}"
		}
	}
	return strings.Join(tokens, " ")
}

func uncompressedKeyError(key PublicKey) error {
	str := "uncompressed key " + key.String() + " in witness context"
	return descError(ErrUncompressedKeyInWitnessContext, str, nil)
}

// ScriptKind tags the source of a custom script.
type ScriptKind uint8

const (
	// ScriptKindTemplate is a raw script template.
	ScriptKindTemplate ScriptKind = iota

	// ScriptKindMiniscript is a miniscript expression.
	ScriptKindMiniscript

	// ScriptKindPolicy is a policy compiled to miniscript, keeping the
	// policy text for display.
	ScriptKindPolicy
)

func (k ScriptKind) String() string {
	switch k {
	case ScriptKindTemplate:
		return "script"
	case ScriptKindMiniscript:
		return "miniscript"
	case ScriptKindPolicy:
		return "policy"
	}
	return "ScriptKind(" + strconv.Itoa(int(k)) + ")"
}

// CustomScript is a script over key sources that is neither a single key
// nor a plain multisig.
type CustomScript struct {
	kind     ScriptKind
	template *ScriptTemplate
	tree     *miniscript.Node
	source   string
}

// NewTemplateScript wraps a raw script template.
func NewTemplateScript(t *ScriptTemplate) *CustomScript {
	return &CustomScript{kind: ScriptKindTemplate, template: t}
}

func keyParser(opts ParseOptions) miniscript.KeyParser {
	return func(s string) (miniscript.Key, error) {
		return ParseKeySource(s, opts)
	}
}

// NewMiniscript parses and type checks a miniscript expression over key
// sources.
func NewMiniscript(text string, opts ParseOptions) (*CustomScript, error) {
	tree, err := miniscript.Parse(text, keyParser(opts))
	if err != nil {
		return nil, scriptError("invalid miniscript", err)
	}
	return &CustomScript{kind: ScriptKindMiniscript, tree: tree}, nil
}

// NewPolicyScript compiles a policy right away. The policy text is kept
// for display since compiled miniscript does not map back to it.
func NewPolicyScript(text string, opts ParseOptions) (*CustomScript, error) {
	tree, err := miniscript.CompilePolicy(text, keyParser(opts))
	if err != nil {
		return nil, scriptError("unable to compile policy", err)
	}
	log.Debugf("Compiled policy %s to %s", text, tree)
	return &CustomScript{
		kind:   ScriptKindPolicy,
		tree:   tree,
		source: strings.TrimSpace(text),
	}, nil
}

// scriptError maps miniscript failures onto descriptor errors, keeping
// key errors raised by the key parser intact.
func scriptError(desc string, err error) error {
	var derr Error
	if errors.As(err, &derr) {
		return err
	}
	if errors.Is(err, miniscript.ErrParse) {
		return descError(ErrGrammar, desc, err)
	}
	return descError(ErrScriptBuild, desc, err)
}

// Kind returns the source kind of the script.
func (c *CustomScript) Kind() ScriptKind {
	return c.kind
}

// Miniscript returns the compiled tree, or nil for raw templates.
func (c *CustomScript) Miniscript() *miniscript.Node {
	return c.tree
}

// Source returns the policy text for policy scripts and the canonical
// textual form otherwise.
func (c *CustomScript) Source() string {
	switch c.kind {
	case ScriptKindTemplate:
		return c.template.String()
	case ScriptKindMiniscript:
		return c.tree.String()
	case ScriptKindPolicy:
		return c.source
	}
	return ""
}

// Keys returns the key sources used by the script.
func (c *CustomScript) Keys() []KeySource {
	switch c.kind {
	case ScriptKindTemplate:
		return c.template.Keys()
	case ScriptKindMiniscript, ScriptKindPolicy:
		var keys []KeySource
		for _, key := range c.tree.AllKeys() {
			keys = append(keys, key.(KeySource))
		}
		return keys
	}
	return nil
}

// Count returns the smallest key count of the script.
func (c *CustomScript) Count() uint32 {
	return minCount(c.Keys())
}

// LockScript builds the script for index in the given context.
func (c *CustomScript) LockScript(index uint32, ctx miniscript.Context) ([]byte, error) {
	switch c.kind {
	case ScriptKindTemplate:
		return c.template.Script(index, ctx)

	case ScriptKindMiniscript, ScriptKindPolicy:
		return encodeTree(c.tree, index, ctx)
	}

	str := "unknown script kind " + c.kind.String()
	return nil, descError(ErrScriptBuild, str, nil)
}

// encodeTree replaces every key of the tree with its child at index and
// encodes the result.
func encodeTree(tree *miniscript.Node, index uint32,
	ctx miniscript.Context) ([]byte, error) {

	concrete, err := tree.Translate(func(k miniscript.Key) (miniscript.Key, error) {
		source, ok := k.(KeySource)
		if !ok {
			str := "key " + k.String() + " is not a key source"
			return nil, descError(ErrScriptBuild, str, nil)
		}
		key, err := source.DerivePublicKey(index)
		if err != nil {
			return nil, err
		}
		if ctx == miniscript.ContextWitnessV0 && !key.Compressed {
			return nil, uncompressedKeyError(key)
		}
		return key, nil
	})
	if err != nil {
		return nil, scriptError("unable to translate keys", err)
	}

	script, err := concrete.Script(ctx)
	switch {
	case errors.Is(err, miniscript.ErrUncompressedKey):
		return nil, descError(ErrUncompressedKeyInWitnessContext,
			"uncompressed key in witness context", err)
	case err != nil:
		return nil, descError(ErrScriptBuild, "unable to encode script", err)
	}
	return script, nil
}

func (c *CustomScript) String() string {
	return c.kind.String() + "(" + c.Source() + ")"
}

// ParseCustomScript parses script(...), miniscript(...) and policy(...).
func ParseCustomScript(s string, opts ParseOptions) (*CustomScript, error) {
	if inner, ok := unwrapCall(s, "script"); ok {
		if isHexString(inner) {
			raw, _ := hex.DecodeString(inner)
			t, err := ScriptTemplateFromScript(raw)
			if err != nil {
				return nil, err
			}
			return NewTemplateScript(t), nil
		}
		t, err := ParseScriptTemplate(inner, opts)
		if err != nil {
			return nil, err
		}
		return NewTemplateScript(t), nil
	}
	if inner, ok := unwrapCall(s, "miniscript"); ok {
		return NewMiniscript(inner, opts)
	}
	if inner, ok := unwrapCall(s, "policy"); ok {
		return NewPolicyScript(inner, opts)
	}

	str := "unknown script source " + strconv.Quote(s)
	return nil, descError(ErrGrammar, str, nil)
}

func isHexString(s string) bool {
	if s == "" || len(s)%2 != 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isHex(s[i]) {
			return false
		}
	}
	return true
}

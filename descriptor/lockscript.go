package descriptor

import (
	"fmt"
)

// outputBuilder produces the output of a template at an index for one
// category.
type outputBuilder func(t Template, index uint32) (Output, error)

// outputStrategies holds the builder for every supported content kind and
// category pair. Pairs without an entry, which includes every taproot
// pair, are unavailable.
var outputStrategies = map[ContentKind]map[Category]outputBuilder{
	ContentSingleKey: {
		Bare:   keyOutput(OutputPk),
		Hashed: keyOutput(OutputPkh),
		Nested: keyOutput(OutputShWpkh),
		SegWit: keyOutput(OutputWpkh),
	},
	ContentMultiSig: {
		Bare:   scriptOutput(OutputBare),
		Hashed: scriptOutput(OutputSh),
		Nested: scriptOutput(OutputShWsh),
		SegWit: scriptOutput(OutputWsh),
	},
	ContentScript: {
		Bare:   scriptOutput(OutputBare),
		Hashed: scriptOutput(OutputSh),
		Nested: scriptOutput(OutputShWsh),
		SegWit: scriptOutput(OutputWsh),
	},
}

func keyOutput(kind OutputKind) outputBuilder {
	return func(t Template, index uint32) (Output, error) {
		key, err := t.key.DerivePublicKey(index)
		if err != nil {
			return Output{}, err
		}
		if kind.Category().IsWitness() && !key.Compressed {
			return Output{}, uncompressedKeyError(key)
		}
		return Output{Kind: kind, PubKey: key}, nil
	}
}

func scriptOutput(kind OutputKind) outputBuilder {
	return func(t Template, index uint32) (Output, error) {
		cat := kind.Category()
		script, err := t.LockScript(index, cat)
		if err != nil {
			return Output{}, err
		}
		if err := checkScriptSize(script, cat); err != nil {
			return Output{}, err
		}
		return Output{Kind: kind, LockScript: script}, nil
	}
}

// BuildOutput builds the output of the template at index for a category.
func BuildOutput(t Template, index uint32, cat Category) (Output, error) {
	build, ok := outputStrategies[t.kind][cat]
	if !ok {
		str := fmt.Sprintf("%s outputs are not available for %s "+
			"templates", cat, t.kind)
		return Output{}, descError(ErrCategoryUnavailable, str, nil)
	}
	return build(t, index)
}

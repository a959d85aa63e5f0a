package descriptor

import (
	"fmt"
	"sort"
	"strings"
)

// Generator produces outputs for every enabled category of a template.
type Generator struct {
	Variants VariantSet
	Template Template
}

// NewGenerator returns a generator. At least one category must be enabled.
func NewGenerator(variants VariantSet, t Template) (*Generator, error) {
	if variants.IsEmpty() {
		return nil, descError(ErrInvalidTemplate,
			"generator without output categories", nil)
	}
	return &Generator{Variants: variants, Template: t}, nil
}

// ParseGenerator parses `variants<template>`, as in
// hashed|segwit<[xpub...]/0/*>.
func ParseGenerator(s string, opts ParseOptions) (*Generator, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '<')
	if open <= 0 || !strings.HasSuffix(s, ">") {
		return nil, descError(ErrGrammar,
			fmt.Sprintf("malformed generator %q", s), nil)
	}

	variants, err := ParseVariantSet(s[:open])
	if err != nil {
		return nil, err
	}
	t, err := ParseTemplate(s[open+1:len(s)-1], opts)
	if err != nil {
		return nil, err
	}
	return NewGenerator(variants, t)
}

// CategoryErrors collects the failure of each category that could not be
// produced.
type CategoryErrors map[Category]error

func (e CategoryErrors) categories() []Category {
	cats := make([]Category, 0, len(e))
	for cat := range e {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats
}

func (e CategoryErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, cat := range e.categories() {
		parts = append(parts, cat.String()+": "+e[cat].Error())
	}
	return "unable to build outputs: " + strings.Join(parts, "; ")
}

// Unwrap returns the individual category errors.
func (e CategoryErrors) Unwrap() []error {
	errs := make([]error, 0, len(e))
	for _, cat := range e.categories() {
		errs = append(errs, e[cat])
	}
	return errs
}

// Outputs builds the output of every enabled category at index. Categories
// fail independently: the map holds every category which succeeded and
// the error, when not nil, is a CategoryErrors naming the others.
func (g *Generator) Outputs(index uint32) (map[Category]Output, error) {
	outputs := make(map[Category]Output, g.Variants.Count())
	failed := make(CategoryErrors)
	for _, cat := range g.Variants.Enabled() {
		out, err := BuildOutput(g.Template, index, cat)
		if err != nil {
			failed[cat] = err
			continue
		}
		outputs[cat] = out
	}

	if len(failed) > 0 {
		return outputs, failed
	}
	return outputs, nil
}

// PkScripts returns the scriptPubKey of every enabled category at index,
// with the same partial success rules as Outputs.
func (g *Generator) PkScripts(index uint32) (map[Category][]byte, error) {
	outputs, err := g.Outputs(index)
	scripts := make(map[Category][]byte, len(outputs))
	for cat, out := range outputs {
		scripts[cat] = out.PkScript()
	}
	return scripts, err
}

// PkScriptCount returns the number of scripts produced per index.
func (g *Generator) PkScriptCount() int {
	return g.Variants.Count()
}

// HasMatch reports whether the generator produces the category.
func (g *Generator) HasMatch(cat Category) bool {
	return g.Variants.Has(cat)
}

// Count returns the number of indices the template covers.
func (g *Generator) Count() uint32 {
	return g.Template.Count()
}

// Covers reports whether index is within the ranges of the template keys.
func (g *Generator) Covers(index uint32) bool {
	return g.Template.Covers(index)
}

// TypeName describes the kind of the template.
func (g *Generator) TypeName() string {
	switch g.Template.Kind() {
	case ContentSingleKey:
		return "Single-sig."
	case ContentMultiSig:
		return "Multi-sig."
	}
	return "Custom script"
}

func (g *Generator) String() string {
	return g.Variants.String() + "<" + g.Template.String() + ">"
}

var (
	singleKeyNames = map[Category]string{
		Bare:    "pk",
		Hashed:  "pkh",
		Nested:  "sh_wpkh",
		SegWit:  "wpkh",
		Taproot: "tpk",
	}
	scriptNames = map[Category]string{
		Bare:    "bare",
		Hashed:  "sh",
		Nested:  "sh_wsh",
		SegWit:  "wsh",
		Taproot: "tpk",
	}
)

// Descriptor returns a summary such as pkh|wpkh(key) or
// sh|wsh(thresh_m(2,key1,key2)). It is meant for display only.
func (g *Generator) Descriptor() string {
	names := scriptNames
	if g.Template.Kind() == ContentSingleKey {
		names = singleKeyNames
	}

	enabled := g.Variants.Enabled()
	types := make([]string, len(enabled))
	for i, cat := range enabled {
		types[i] = names[cat]
	}

	var data string
	switch g.Template.Kind() {
	case ContentMultiSig:
		m := g.Template.multi
		keys := make([]string, len(m.members))
		for i, member := range m.members {
			keys[i] = member.String()
		}
		data = fmt.Sprintf("thresh_m(%d,%s)", m.Threshold(),
			strings.Join(keys, ","))
	case ContentScript:
		data = g.Template.script.Source()
	default:
		data = g.Template.String()
	}

	return strings.Join(types, "|") + "(" + data + ")"
}

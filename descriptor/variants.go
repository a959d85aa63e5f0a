package descriptor

import (
	"strconv"
	"strings"
)

// Category is an output encoding for a template.
type Category uint8

const (
	// Bare places the lock script (or P2PK) directly in the output.
	Bare Category = iota

	// Hashed is P2PKH or P2SH.
	Hashed

	// Nested is P2SH wrapped witness v0 (P2SH-P2WPKH or P2SH-P2WSH).
	Nested

	// SegWit is native witness v0 (P2WPKH or P2WSH).
	SegWit

	// Taproot is reserved. Taproot outputs are never produced.
	Taproot
)

// Categories lists all categories in their canonical order.
var Categories = []Category{Bare, Hashed, Nested, SegWit, Taproot}

var categoryNames = map[Category]string{
	Bare:    "bare",
	Hashed:  "hashed",
	Nested:  "nested",
	SegWit:  "segwit",
	Taproot: "taproot",
}

// categoryAliases accepts the script type names used by descriptor
// strings as category names.
var categoryAliases = map[string]Category{
	"bare":    Bare,
	"pk":      Bare,
	"hashed":  Hashed,
	"pkh":     Hashed,
	"sh":      Hashed,
	"nested":  Nested,
	"sh_wpkh": Nested,
	"sh_wsh":  Nested,
	"segwit":  SegWit,
	"wpkh":    SegWit,
	"wsh":     SegWit,
	"taproot": Taproot,
	"tr":      Taproot,
	"tpk":     Taproot,
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "Category(" + strconv.Itoa(int(c)) + ")"
}

// ParseCategory parses a category name or one of its script type aliases.
func ParseCategory(s string) (Category, error) {
	c, ok := categoryAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		str := "unknown output category " + strconv.Quote(s)
		return 0, descError(ErrGrammar, str, nil)
	}
	return c, nil
}

// IsWitness reports whether the category places scripts in a witness.
func (c Category) IsWitness() bool {
	return c == Nested || c == SegWit || c == Taproot
}

// VariantSet selects the categories produced for a template.
type VariantSet struct {
	Bare    bool
	Hashed  bool
	Nested  bool
	SegWit  bool
	Taproot bool
}

// NewVariantSet enables the given categories.
func NewVariantSet(categories ...Category) VariantSet {
	var v VariantSet
	for _, c := range categories {
		v.set(c)
	}
	return v
}

func (v *VariantSet) set(c Category) {
	switch c {
	case Bare:
		v.Bare = true
	case Hashed:
		v.Hashed = true
	case Nested:
		v.Nested = true
	case SegWit:
		v.SegWit = true
	case Taproot:
		v.Taproot = true
	}
}

// Has reports whether the category is enabled.
func (v VariantSet) Has(c Category) bool {
	switch c {
	case Bare:
		return v.Bare
	case Hashed:
		return v.Hashed
	case Nested:
		return v.Nested
	case SegWit:
		return v.SegWit
	case Taproot:
		return v.Taproot
	}
	return false
}

// Enabled returns the enabled categories in canonical order.
func (v VariantSet) Enabled() []Category {
	var out []Category
	for _, c := range Categories {
		if v.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Count returns the number of enabled categories.
func (v VariantSet) Count() int {
	return len(v.Enabled())
}

// IsEmpty reports whether no category is enabled.
func (v VariantSet) IsEmpty() bool {
	return v.Count() == 0
}

// String joins the enabled category names with "|".
func (v VariantSet) String() string {
	enabled := v.Enabled()
	names := make([]string, len(enabled))
	for i, c := range enabled {
		names[i] = c.String()
	}
	return strings.Join(names, "|")
}

// ParseVariantSet parses "|" separated category names.
func ParseVariantSet(s string) (VariantSet, error) {
	var v VariantSet
	for _, name := range strings.Split(s, "|") {
		c, err := ParseCategory(name)
		if err != nil {
			return VariantSet{}, err
		}
		v.set(c)
	}
	return v, nil
}

package descriptor

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// DerivationComponents describes a range of child keys of an extended
// public key: master key, optional hardened branch path with the branch
// key derived along it, a non-hardened terminal path and the index ranges
// appended to the terminal path.
//
// The value is immutable once constructed.
type DerivationComponents struct {
	masterKey    *hdkeychain.ExtendedKey
	branchPath   Path
	branchKey    *hdkeychain.ExtendedKey
	terminalPath Path
	indexRanges  IndexRangeSet
}

var _ KeySource = (*DerivationComponents)(nil)

// NewDerivationComponents validates and assembles derivation components.
// The branch key is trusted to be the master key derived along branchPath.
// A nil branchKey means the branch is the master key itself, in which case
// branchPath must be empty.
func NewDerivationComponents(masterKey *hdkeychain.ExtendedKey,
	branchPath Path, branchKey *hdkeychain.ExtendedKey, terminalPath Path,
	indexRanges IndexRangeSet) (*DerivationComponents, error) {

	if masterKey == nil {
		return nil, descError(ErrKeyDerivation, "missing master key", nil)
	}
	if masterKey.IsPrivate() {
		str := "private key material is not accepted"
		return nil, descError(ErrKeyDerivation, str, nil)
	}
	if branchKey == nil {
		branchKey = masterKey
	}
	if branchKey.IsPrivate() {
		str := "private key material is not accepted"
		return nil, descError(ErrKeyDerivation, str, nil)
	}

	sameKey := branchKey.String() == masterKey.String()
	switch {
	case sameKey && len(branchPath) > 0:
		str := "branch path given without a distinct branch key"
		return nil, descError(ErrInvalidTemplate, str, nil)
	case !sameKey && len(branchPath) == 0:
		str := "distinct branch key given without a branch path"
		return nil, descError(ErrInvalidTemplate, str, nil)
	}

	if terminalPath.IsHardened() {
		str := "terminal derivation path must not contain hardened keys"
		return nil, descError(ErrKeyDerivation, str, nil)
	}
	if indexRanges != nil && len(indexRanges) == 0 {
		str := "empty index range set"
		return nil, descError(ErrGrammar, str, nil)
	}
	for _, r := range indexRanges {
		if _, err := NewIndexRange(r.Start, r.End); err != nil {
			return nil, err
		}
	}

	return &DerivationComponents{
		masterKey:    masterKey,
		branchPath:   append(Path{}, branchPath...),
		branchKey:    branchKey,
		terminalPath: append(Path{}, terminalPath...),
		indexRanges:  copyRanges(indexRanges),
	}, nil
}

func copyRanges(s IndexRangeSet) IndexRangeSet {
	if s == nil {
		return nil
	}
	return append(IndexRangeSet{}, s...)
}

// ParseDerivationComponents parses the HD form
// `[xpub]branchPath=[branchXpub]terminalPath/ranges`. The branch clause is
// optional: `[xpub]terminalPath/ranges` derives straight from the master.
func ParseDerivationComponents(s string) (*DerivationComponents, error) {
	sections := strings.Split(s, "=")
	if len(sections) > 2 {
		str := "more than one branch separator in " + strconv.Quote(s)
		return nil, descError(ErrGrammar, str, nil)
	}

	terminal, ok := splitDerivationString(sections[len(sections)-1])
	if !ok {
		str := "malformed derivation string " + strconv.Quote(s)
		return nil, descError(ErrGrammar, str, nil)
	}
	terminalPath, err := ParsePath(terminal.derivation)
	if err != nil {
		return nil, err
	}
	if terminalPath.IsHardened() {
		str := "terminal derivation path must not contain hardened keys"
		return nil, descError(ErrKeyDerivation, str, nil)
	}

	var ranges IndexRangeSet
	if terminal.hasRanges {
		ranges, err = ParseIndexRanges(terminal.ranges)
		if err != nil {
			return nil, err
		}
	}

	branchKey, err := DecodeExtendedPublicKey(terminal.key)
	if err != nil {
		return nil, err
	}

	masterKey := branchKey
	var branchPath Path
	if len(sections) == 2 {
		branch, ok := splitDerivationString(sections[0])
		if !ok || branch.hasRanges {
			str := "malformed branch clause " + strconv.Quote(sections[0])
			return nil, descError(ErrGrammar, str, nil)
		}
		branchPath, err = ParsePath(branch.derivation)
		if err != nil {
			return nil, err
		}
		masterKey, err = DecodeExtendedPublicKey(branch.key)
		if err != nil {
			return nil, err
		}
	}

	return NewDerivationComponents(
		masterKey, branchPath, branchKey, terminalPath, ranges,
	)
}

// MasterKey returns the master extended public key.
func (d *DerivationComponents) MasterKey() *hdkeychain.ExtendedKey {
	return d.masterKey
}

// BranchKey returns the extended key at the end of the branch path.
func (d *DerivationComponents) BranchKey() *hdkeychain.ExtendedKey {
	return d.branchKey
}

// BranchPath returns a copy of the branch path.
func (d *DerivationComponents) BranchPath() Path {
	return append(Path{}, d.branchPath...)
}

// TerminalPath returns a copy of the terminal path.
func (d *DerivationComponents) TerminalPath() Path {
	return append(Path{}, d.terminalPath...)
}

// IndexRanges returns a copy of the index ranges. Nil means unbounded.
func (d *DerivationComponents) IndexRanges() IndexRangeSet {
	return copyRanges(d.indexRanges)
}

// Count returns the number of child indices covered by the ranges.
func (d *DerivationComponents) Count() uint32 {
	return d.indexRanges.Count()
}

// DerivationPath is the branch path followed by the terminal path.
func (d *DerivationComponents) DerivationPath() Path {
	return d.branchPath.extend(d.terminalPath)
}

// MasterFingerprint returns the BIP32 fingerprint of the master key.
func (d *DerivationComponents) MasterFingerprint() uint32 {
	return fingerprint(d.masterKey)
}

func fingerprint(key *hdkeychain.ExtendedKey) uint32 {
	pub, err := key.ECPubKey()
	if err != nil {
		panic(fmt.Sprintf("extended key without public key: %v", err))
	}
	return binary.BigEndian.Uint32(btcutil.Hash160(pub.SerializeCompressed())[:4])
}

// Child derives the public key at terminalPath/index from the branch key.
// Non-hardened public derivation can not fail for a valid key, so a failure
// here is a broken invariant and panics. The index must not be hardened.
func (d *DerivationComponents) Child(index uint32) PublicKey {
	key := d.branchKey
	for _, step := range d.terminalPath.extend(Path{index}) {
		var err error
		key, err = key.Derive(step)
		if err != nil {
			panic(fmt.Sprintf("public derivation of %s at step %d "+
				"failed: %v", d, step, err))
		}
	}

	pub, err := key.ECPubKey()
	if err != nil {
		panic(fmt.Sprintf("derived key without public key: %v", err))
	}
	return PublicKey{Key: pub, Compressed: true}
}

// DerivePublicKey returns the child key at index, rejecting hardened
// indices.
func (d *DerivationComponents) DerivePublicKey(index uint32) (PublicKey, error) {
	if index >= hdkeychain.HardenedKeyStart {
		str := fmt.Sprintf("can't derive hardened index %d from a "+
			"public key", index)
		return PublicKey{}, descError(ErrKeyDerivation, str, hdkeychain.ErrDeriveHardFromPublic)
	}
	return d.Child(index), nil
}

// Equal reports whether both components describe the same keys with the
// same textual structure.
func (d *DerivationComponents) Equal(o *DerivationComponents) bool {
	return d.masterKey.String() == o.masterKey.String() &&
		d.branchKey.String() == o.branchKey.String() &&
		d.branchPath.Equal(o.branchPath) &&
		d.terminalPath.Equal(o.terminalPath) &&
		d.indexRanges.Equal(o.indexRanges)
}

func (d *DerivationComponents) hasBranch() bool {
	return d.branchKey.String() != d.masterKey.String()
}

// String formats the components in the grammar accepted by
// ParseDerivationComponents.
func (d *DerivationComponents) String() string {
	var b strings.Builder
	b.WriteString("[" + d.masterKey.String() + "]")
	if len(d.branchPath) > 0 {
		b.WriteString("/" + d.branchPath.String())
	}
	if d.hasBranch() {
		b.WriteString("=[" + d.branchKey.String() + "]")
	}
	if len(d.terminalPath) > 0 {
		b.WriteString("/" + d.terminalPath.String())
	}
	b.WriteString("/" + d.indexRanges.String())
	return b.String()
}

// CompactString replaces the master key with its fingerprint and drops the
// branch key. It is meant for display and does not parse back.
func (d *DerivationComponents) CompactString() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%08x]", d.MasterFingerprint())
	if len(d.branchPath) > 0 {
		b.WriteString("/" + d.branchPath.String())
	}
	if len(d.terminalPath) > 0 {
		b.WriteString("/" + d.terminalPath.String())
	}
	b.WriteString("/" + d.indexRanges.String())
	return b.String()
}

func (d *DerivationComponents) keySource() {}

package descriptor

import (
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// Path is a sequence of BIP32 child numbers. Hardened steps carry the
// hdkeychain.HardenedKeyStart offset.
type Path []uint32

// ParsePath decodes a slash separated derivation path such as 44'/0'/1h/5.
// A leading "m/" or "/" is accepted. The empty string and "m" are the
// empty path.
func ParsePath(s string) (Path, error) {
	switch {
	case s == "" || s == "m":
		return Path{}, nil
	case strings.HasPrefix(s, "m/"):
		s = s[2:]
	case strings.HasPrefix(s, "/"):
		s = s[1:]
	}

	steps := strings.Split(s, "/")
	path := make(Path, 0, len(steps))
	for _, step := range steps {
		hardened := false
		switch {
		case strings.HasSuffix(step, "'"), strings.HasSuffix(step, "h"):
			hardened = true
			step = step[:len(step)-1]
		}

		if step == "" || step[0] == '+' || step[0] == '-' {
			str := "invalid derivation path step in " + strconv.Quote(s)
			return nil, descError(ErrGrammar, str, nil)
		}
		n, err := strconv.ParseUint(step, 10, 32)
		if err != nil || n >= hdkeychain.HardenedKeyStart {
			str := "invalid derivation path step in " + strconv.Quote(s)
			return nil, descError(ErrGrammar, str, err)
		}

		idx := uint32(n)
		if hardened {
			idx += hdkeychain.HardenedKeyStart
		}
		path = append(path, idx)
	}

	return path, nil
}

// String returns the path without a leading "m", using ' for hardened
// steps.
func (p Path) String() string {
	var b strings.Builder
	for i, idx := range p {
		if i > 0 {
			b.WriteByte('/')
		}
		if idx >= hdkeychain.HardenedKeyStart {
			b.WriteString(strconv.FormatUint(uint64(idx-hdkeychain.HardenedKeyStart), 10))
			b.WriteByte('\'')
			continue
		}
		b.WriteString(strconv.FormatUint(uint64(idx), 10))
	}
	return b.String()
}

// IsHardened reports whether any step of the path is hardened.
func (p Path) IsHardened() bool {
	for _, idx := range p {
		if idx >= hdkeychain.HardenedKeyStart {
			return true
		}
	}
	return false
}

// Equal reports whether both paths hold the same steps.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

func (p Path) extend(tail Path) Path {
	out := make(Path, 0, len(p)+len(tail))
	out = append(out, p...)
	return append(out, tail...)
}

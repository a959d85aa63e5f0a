package descriptor

import (
	"strings"
)

const (
	// xpubMinLen and xpubMaxLen bound the length of a base58 encoded
	// extended key inside square brackets.
	xpubMinLen = 111
	xpubMaxLen = 112

	base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

	derivationChars = "0123456789*/h',-"
)

// derivationParts is the raw tokenization of `[xpub]path/range`.
type derivationParts struct {
	key        string
	derivation string
	ranges     string
	hasRanges  bool
}

func isBase58(c byte) bool {
	return strings.IndexByte(base58Alphabet, c) >= 0
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// splitDerivationString scans s left to right. The bracketed key section is
// validated position by position and the range token is located only
// after the whole string passed validation.
func splitDerivationString(s string) (derivationParts, bool) {
	closing := -1
	for pos := 0; pos < len(s); pos++ {
		c := s[pos]
		switch {
		case pos == 0:
			if c != '[' {
				return derivationParts{}, false
			}

		case pos <= xpubMinLen:
			if !isBase58(c) {
				return derivationParts{}, false
			}

		case closing < 0:
			// Only offsets 112 and 113 reach this branch.
			if c == ']' {
				closing = pos
			} else if pos > xpubMaxLen || !isBase58(c) {
				return derivationParts{}, false
			}

		case pos == closing+1:
			if c != '/' {
				return derivationParts{}, false
			}

		case pos == closing+2:
			if !isDigit(c) && c != '*' {
				return derivationParts{}, false
			}

		default:
			if strings.IndexByte(derivationChars, c) < 0 {
				return derivationParts{}, false
			}
		}
	}

	// Can't end on the closing bracket or its slash.
	if closing < 0 || len(s) < closing+3 {
		return derivationParts{}, false
	}

	parts := derivationParts{key: s[1:closing]}
	start := closing + 2

	marker := strings.LastIndexAny(s, "*,-")
	switch {
	case marker < start:
		parts.derivation = s[start:]

	case s[marker] == '*':
		if marker != len(s)-1 {
			return derivationParts{}, false
		}
		if marker > start {
			if s[marker-1] != '/' {
				return derivationParts{}, false
			}
			parts.derivation = s[start : marker-1]
		}
		parts.ranges = "*"
		parts.hasRanges = true

	default:
		slash := strings.LastIndexByte(s[start:], '/')
		if slash < 0 {
			return derivationParts{}, false
		}
		parts.derivation = s[start : start+slash]
		parts.ranges = s[start+slash+1:]
		parts.hasRanges = true
	}

	return parts, true
}

// singleKeyParts is the raw tokenization of `[fingerprint/path]pubkey`.
type singleKeyParts struct {
	pubkey          string
	fingerprint     string
	path            string
	hasOrigin       bool
	malformedOrigin bool
}

// splitSingleKeyString reads s right to left: the last parenthesis
// delimited token holds the key, and the last bracket delimited piece of
// that token is the hex public key.
func splitSingleKeyString(s string) (singleKeyParts, bool) {
	token, _ := lastField(s, "()")
	if token == "" {
		return singleKeyParts{}, false
	}

	pubkey, prefix := lastField(token, "[]")
	if len(pubkey) != 66 && len(pubkey) != 130 {
		return singleKeyParts{}, false
	}
	if pubkey[0] != '0' {
		return singleKeyParts{}, false
	}
	for i := 0; i < len(pubkey); i++ {
		if !isHex(pubkey[i]) {
			return singleKeyParts{}, false
		}
	}

	parts := singleKeyParts{pubkey: pubkey}
	if prefix == "" {
		return parts, true
	}

	fingerprint, path, found := strings.Cut(prefix, "/")
	if !found || !validFingerprint(fingerprint) || !validOriginPath(path) {
		parts.malformedOrigin = true
		return parts, true
	}

	parts.fingerprint = fingerprint
	parts.path = path
	parts.hasOrigin = true
	return parts, true
}

// lastField splits s on any of the separator characters, dropping empty
// pieces, and returns the rightmost piece with the one before it.
func lastField(s, seps string) (string, string) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(seps, r)
	})
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[len(fields)-1], fields[len(fields)-2]
	}
}

func validFingerprint(s string) bool {
	if len(s) != 8 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isHex(s[i]) {
			return false
		}
	}
	return true
}

func validOriginPath(s string) bool {
	if s == "" || !isDigit(s[0]) {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isDigit(c) && c != '/' && c != '\'' && c != 'h' {
			return false
		}
	}
	return true
}

package descriptor

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// IndexRange is an inclusive range of non-hardened child indices.
type IndexRange struct {
	Start uint32
	End   uint32
}

// NewIndexRange validates and returns the range [start, end].
func NewIndexRange(start, end uint32) (IndexRange, error) {
	if start > end {
		str := fmt.Sprintf("range start %d is above range end %d", start, end)
		return IndexRange{}, descError(ErrGrammar, str, nil)
	}
	if end >= hdkeychain.HardenedKeyStart {
		str := fmt.Sprintf("range end %d is a hardened index", end)
		return IndexRange{}, descError(ErrKeyDerivation, str, nil)
	}
	return IndexRange{Start: start, End: end}, nil
}

// Count returns the number of indices in the range.
func (r IndexRange) Count() uint32 {
	return r.End - r.Start + 1
}

// Contains reports whether idx falls in the range.
func (r IndexRange) Contains(idx uint32) bool {
	return idx >= r.Start && idx <= r.End
}

func (r IndexRange) String() string {
	if r.Start == r.End {
		return strconv.FormatUint(uint64(r.Start), 10)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// IndexRangeSet is an ordered list of index ranges. A nil set is
// unbounded.
type IndexRangeSet []IndexRange

// ParseIndexRanges decodes a comma separated list of indices and inclusive
// a-b ranges. The lone token "*" is the unbounded (nil) set.
func ParseIndexRanges(s string) (IndexRangeSet, error) {
	if s == "*" {
		return nil, nil
	}
	if s == "" {
		return nil, descError(ErrGrammar, "empty index range", nil)
	}

	items := strings.Split(s, ",")
	set := make(IndexRangeSet, 0, len(items))
	for _, item := range items {
		bounds := strings.Split(item, "-")
		if len(bounds) > 2 {
			str := "malformed index range " + strconv.Quote(item)
			return nil, descError(ErrGrammar, str, nil)
		}

		start, err := parseIndex(bounds[0])
		if err != nil {
			return nil, err
		}
		end := start
		if len(bounds) == 2 {
			end, err = parseIndex(bounds[1])
			if err != nil {
				return nil, err
			}
		}

		r, err := NewIndexRange(start, end)
		if err != nil {
			return nil, err
		}
		set = append(set, r)
	}

	return set, nil
}

func parseIndex(s string) (uint32, error) {
	if s == "" || s[0] < '0' || s[0] > '9' {
		str := "malformed index " + strconv.Quote(s)
		return 0, descError(ErrGrammar, str, nil)
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		str := "malformed index " + strconv.Quote(s)
		return 0, descError(ErrGrammar, str, err)
	}
	return uint32(n), nil
}

// IsUnbounded reports whether the set places no limit on indices.
func (s IndexRangeSet) IsUnbounded() bool {
	return s == nil
}

// Count sums the size of all ranges, saturating at math.MaxUint32. The
// unbounded set has the maximum count.
func (s IndexRangeSet) Count() uint32 {
	if s == nil {
		return math.MaxUint32
	}

	var total uint64
	for _, r := range s {
		total += uint64(r.Count())
		if total >= math.MaxUint32 {
			return math.MaxUint32
		}
	}
	return uint32(total)
}

// Contains reports whether idx is covered by any range of the set.
func (s IndexRangeSet) Contains(idx uint32) bool {
	if s == nil {
		return idx < hdkeychain.HardenedKeyStart
	}
	for _, r := range s {
		if r.Contains(idx) {
			return true
		}
	}
	return false
}

// Equal compares two sets range by range, keeping order significant.
func (s IndexRangeSet) Equal(o IndexRangeSet) bool {
	if (s == nil) != (o == nil) || len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

func (s IndexRangeSet) String() string {
	if s == nil {
		return "*"
	}
	items := make([]string, len(s))
	for i, r := range s {
		items[i] = r.String()
	}
	return strings.Join(items, ",")
}

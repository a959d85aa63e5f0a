package resolver

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

var (
	// ErrInvalidInteger is returned when the count of a mode directive is
	// not a decimal integer.
	ErrInvalidInteger = errors.New("unable to parse resolver mode count")

	// ErrHardenedIndex is returned when the count of a mode directive
	// falls into the hardened index range.
	ErrHardenedIndex = errors.New("resolver mode count is a hardened index")

	// ErrUnrecognizedMode is returned for unknown mode names.
	ErrUnrecognizedMode = errors.New("unrecognized resolver mode name")
)

// DefaultBatchSize is the number of indices scanned per batch in While
// mode when no other size is configured.
const DefaultBatchSize = 20

// ModeType selects how the scanner walks the index space.
type ModeType uint8

const (
	// While scans batches starting at index zero until a batch yields no
	// new records.
	While ModeType = iota

	// First scans the single batch [0, n).
	First

	// Random scans a single batch of n pseudo-random indices.
	Random
)

// Mode is a resolver mode. Count is ignored for While.
type Mode struct {
	Type  ModeType
	Count uint32
}

// ParseMode decodes "while", "first", "firstN", "random" or "randomN".
// Bare first and random mean a count of one.
func ParseMode(s string) (Mode, error) {
	var (
		typ  ModeType
		rest string
	)
	switch {
	case s == "while":
		return Mode{Type: While}, nil
	case strings.HasPrefix(s, "first"):
		typ, rest = First, strings.TrimPrefix(s, "first")
	case strings.HasPrefix(s, "random"):
		typ, rest = Random, strings.TrimPrefix(s, "random")
	default:
		return Mode{}, fmt.Errorf("%w %q", ErrUnrecognizedMode, s)
	}

	if rest == "" {
		return Mode{Type: typ, Count: 1}, nil
	}
	n, err := strconv.ParseUint(rest, 10, 32)
	if err != nil {
		return Mode{}, fmt.Errorf("%w %q: %v", ErrInvalidInteger, s, err)
	}
	if n >= hdkeychain.HardenedKeyStart {
		return Mode{}, fmt.Errorf("%w: %d", ErrHardenedIndex, n)
	}
	return Mode{Type: typ, Count: uint32(n)}, nil
}

func (m Mode) String() string {
	switch m.Type {
	case First:
		return "first" + strconv.FormatUint(uint64(m.Count), 10)
	case Random:
		return "random" + strconv.FormatUint(uint64(m.Count), 10)
	}
	return "while"
}

// IsWhile reports whether the mode scans until exhaustion.
func (m Mode) IsWhile() bool {
	return m.Type == While
}

// BatchSize returns the number of indices in each batch. While uses
// batchSize, the other modes their own count.
func (m Mode) BatchSize(batchSize uint32) uint32 {
	if m.Type == While {
		if batchSize == 0 {
			return DefaultBatchSize
		}
		return batchSize
	}
	return m.Count
}

// Batches returns a fresh iterator over the index batches of the mode. A
// nil rng is replaced by a time seeded one.
func (m Mode) Batches(batchSize uint32, rng *rand.Rand) *BatchIterator {
	if rng == nil && m.Type == Random {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &BatchIterator{
		mode: m,
		size: m.BatchSize(batchSize),
		rng:  rng,
	}
}

// BatchIterator yields the batches of a scan. It is finite and can not be
// restarted; a new scan needs a new iterator.
type BatchIterator struct {
	mode    Mode
	size    uint32
	rng     *rand.Rand
	offset  uint32
	started bool
	done    bool
}

// Next returns the indices of the following batch, or false once the scan
// is over. prevNew is the number of new records the previous batch
// produced and is ignored on the first call.
func (it *BatchIterator) Next(prevNew int) ([]uint32, bool) {
	if it.done {
		return nil, false
	}
	if it.started {
		if !it.mode.IsWhile() || prevNew == 0 {
			it.done = true
			return nil, false
		}
	}
	it.started = true

	size := it.size
	if remaining := hdkeychain.HardenedKeyStart - it.offset; size >= remaining {
		size = remaining
		it.done = true
	}
	if size == 0 {
		it.done = true
		return nil, false
	}

	batch := make([]uint32, size)
	for i := range batch {
		if it.mode.Type == Random {
			batch[i] = uint32(it.rng.Int31())
			continue
		}
		batch[i] = it.offset + uint32(i)
	}
	it.offset += size

	if !it.mode.IsWhile() {
		it.done = true
	}
	return batch, true
}

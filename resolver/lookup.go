package resolver

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/pandora-prime/bitcoin-pro/descriptor"
)

// LookupError is returned when a scan batch fails. Records of the failed
// batch are discarded while those of earlier batches stay in the set.
type LookupError struct {
	// Offset is the index being derived, or the first index of the batch
	// for a failed index query.
	Offset uint32

	// Descriptor is the generator that failed. It is empty when the
	// index query itself failed.
	Descriptor string

	Err error
}

func (e *LookupError) Error() string {
	if e.Descriptor == "" {
		return fmt.Sprintf("unable to query unspent outputs for batch "+
			"at index %d: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("unable to generate key with index %d for "+
		"descriptor %s: %v", e.Offset, e.Descriptor, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// Config holds the collaborators of a Scanner.
type Config struct {
	// Index answers the unspent output queries.
	Index Index

	// BatchSize is the number of indices per While batch. Zero selects
	// DefaultBatchSize.
	BatchSize uint32

	// CacheSize is the number of script entries to cache. Zero selects
	// DefaultScriptCacheSize.
	CacheSize uint64

	// Rand supplies the indices of Random scans. Optional.
	Rand *rand.Rand
}

// Scanner discovers the unspent outputs of generators.
type Scanner struct {
	cfg   Config
	cache *scriptCache
}

// NewScanner returns a scanner using the configured index.
func NewScanner(cfg Config) (*Scanner, error) {
	if cfg.Index == nil {
		return nil, errors.New("scanner requires a blockchain index")
	}
	return &Scanner{
		cfg:   cfg,
		cache: newScriptCache(cfg.CacheSize),
	}, nil
}

// origin tags a queried script with where it came from.
type origin struct {
	descriptor string
	category   descriptor.Category
	index      uint32
}

// Scan walks the batches of mode for all generators, inserting every
// unspent output found into set. It returns the number of records which
// were new to the set. On error, the records of completed batches remain
// in the set and the count covers them.
func (s *Scanner) Scan(set *Set, generators []*descriptor.Generator,
	mode Mode) (int, error) {

	descs := make([]string, len(generators))
	for i, g := range generators {
		descs[i] = g.String()
	}

	var (
		total int
		fresh int
	)
	batches := mode.Batches(s.cfg.BatchSize, s.cfg.Rand)
	for {
		indices, ok := batches.Next(fresh)
		if !ok {
			break
		}

		var err error
		fresh, err = s.scanBatch(set, generators, descs, indices)
		if err != nil {
			return total, err
		}
		total += fresh

		log.Debugf("Scanned indices %d..%d of %d generators: %d new "+
			"outputs", indices[0], indices[len(indices)-1],
			len(generators), fresh)
	}

	log.Infof("Scan (%v) found %d new outputs, %d known in total", mode,
		total, set.Len())
	return total, nil
}

// scanBatch queries a single batch and merges the results into set only
// once the whole batch succeeded.
func (s *Scanner) scanBatch(set *Set, generators []*descriptor.Generator,
	descs []string, indices []uint32) (int, error) {

	var (
		scripts [][]byte
		origins []origin
	)
	for i, g := range generators {
		for _, index := range indices {
			if !g.Covers(index) {
				continue
			}
			pkScripts, err := s.cache.pkScripts(g, descs[i], index)
			if err := skipUnavailable(descs[i], index, err); err != nil {
				return 0, &LookupError{
					Offset:     index,
					Descriptor: descs[i],
					Err:        err,
				}
			}

			for _, cat := range g.Variants.Enabled() {
				script, ok := pkScripts[cat]
				if !ok {
					continue
				}
				scripts = append(scripts, script)
				origins = append(origins, origin{descs[i], cat, index})
			}
		}
	}
	if len(scripts) == 0 {
		return 0, nil
	}

	results, err := s.cfg.Index.BatchQueryUnspent(scripts)
	if err != nil {
		return 0, &LookupError{Offset: indices[0], Err: err}
	}
	if len(results) != len(scripts) {
		err := fmt.Errorf("index returned %d results for %d scripts",
			len(results), len(scripts))
		return 0, &LookupError{Offset: indices[0], Err: err}
	}

	var fresh int
	for i, unspents := range results {
		for _, u := range unspents {
			r := Record{
				OutPoint:   u.OutPoint,
				Height:     u.Height,
				Amount:     u.Amount,
				Descriptor: origins[i].descriptor,
				Category:   origins[i].category,
				Index:      origins[i].index,
			}
			if set.Insert(r) {
				fresh++
			}
		}
	}
	return fresh, nil
}

// skipUnavailable drops category failures caused by unavailable output
// categories, returning any other failure.
func skipUnavailable(desc string, index uint32, err error) error {
	if err == nil {
		return nil
	}

	var catErrs descriptor.CategoryErrors
	if !errors.As(err, &catErrs) {
		return err
	}
	for cat, cerr := range catErrs {
		if !descriptor.IsError(cerr, descriptor.ErrCategoryUnavailable) {
			return cerr
		}
		if index == 0 {
			log.Warnf("Skipping %v outputs of %s: %v", cat, desc, cerr)
		}
	}
	return nil
}

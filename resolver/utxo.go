package resolver

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/pandora-prime/bitcoin-pro/descriptor"
)

// Record is an unspent output found by a scan, tagged with the generator,
// category and index whose script received it.
type Record struct {
	OutPoint   wire.OutPoint
	Height     uint32
	Amount     btcutil.Amount
	Descriptor string
	Category   descriptor.Category
	Index      uint32
}

// String returns the record as amount@txid:vout, with the amount in
// satoshi.
func (r Record) String() string {
	return fmt.Sprintf("%d@%v", int64(r.Amount), r.OutPoint)
}

// Set is a collection of records deduplicated by outpoint. Records are only
// ever added. Readers may run concurrently with each other but not with a
// writer scanning into the set.
type Set struct {
	mtx     sync.RWMutex
	records map[wire.OutPoint]Record
}

// NewSet returns an empty set, optionally seeded with records.
func NewSet(records ...Record) *Set {
	s := &Set{records: make(map[wire.OutPoint]Record, len(records))}
	for _, r := range records {
		s.Insert(r)
	}
	return s
}

// Insert adds the record unless its outpoint is already known and reports
// whether it was new.
func (s *Set) Insert(r Record) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.records == nil {
		s.records = make(map[wire.OutPoint]Record)
	}
	if _, ok := s.records[r.OutPoint]; ok {
		return false
	}
	s.records[r.OutPoint] = r
	return true
}

// Contains reports whether an output is in the set.
func (s *Set) Contains(op wire.OutPoint) bool {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	_, ok := s.records[op]
	return ok
}

// Len returns the number of records.
func (s *Set) Len() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return len(s.records)
}

// Balance sums the amounts of all records.
func (s *Set) Balance() btcutil.Amount {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	var total btcutil.Amount
	for _, r := range s.records {
		total += r.Amount
	}
	return total
}

// Records returns the records ordered by descriptor, index, category and
// outpoint.
func (s *Set) Records() []Record {
	s.mtx.RLock()
	records := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		records = append(records, r)
	}
	s.mtx.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		switch {
		case a.Descriptor != b.Descriptor:
			return a.Descriptor < b.Descriptor
		case a.Index != b.Index:
			return a.Index < b.Index
		case a.Category != b.Category:
			return a.Category < b.Category
		}
		if c := bytes.Compare(a.OutPoint.Hash[:], b.OutPoint.Hash[:]); c != 0 {
			return c < 0
		}
		return a.OutPoint.Index < b.OutPoint.Index
	})
	return records
}

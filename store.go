package mapdiff

import (
	"github.com/pkg/errors"
)

// Store is an in-memory feature set partitioned by zoom range. It owns the
// rule table all of its features' type codes refer to.
type Store struct {
	// Name is the map index name. When empty, WriteFile derives one from
	// the target file name.
	Name string

	rules     *RuleTable
	parts     map[ZoomRange]map[int64]*Feature
	order     []ZoomRange
	timestamp int64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		rules: NewRuleTable(),
		parts: make(map[ZoomRange]map[int64]*Feature),
	}
}

// Rules returns the store's rule table.
func (s *Store) Rules() *RuleTable { return s.rules }

// Partition returns the features of a zoom range, creating an empty
// partition when absent.
func (s *Store) Partition(zr ZoomRange) map[int64]*Feature {
	if part, ok := s.parts[zr]; ok {
		return part
	}

	part := make(map[int64]*Feature)
	s.parts[zr] = part
	s.order = append(s.order, zr)
	return part
}

// Lookup returns the features of a zoom range without creating it.
func (s *Store) Lookup(zr ZoomRange) (map[int64]*Feature, bool) {
	part, ok := s.parts[zr]
	return part, ok
}

// Ranges returns the zoom ranges in the order they were first created.
func (s *Store) Ranges() []ZoomRange {
	return append([]ZoomRange(nil), s.order...)
}

// Len returns the number of partitions.
func (s *Store) Len() int { return len(s.order) }

// Count returns the number of features across all partitions.
func (s *Store) Count() int {
	n := 0
	for _, part := range s.parts {
		n += len(part)
	}
	return n
}

// Put adopts the type codes of f from src into the store's rule table and
// stores it under its id. With override false an existing feature with the
// same id is kept.
func (s *Store) Put(zr ZoomRange, src *RuleTable, f *Feature, override bool) error {
	if !zr.IsValid() {
		return errors.Errorf("mapdiff: invalid zoom range %s", zr)
	}

	if err := f.checkPoints(); err != nil {
		return errors.Wrapf(err, "mapdiff: feature %d", f.ID)
	}

	adopted, err := s.adopt(src, f)
	if err != nil {
		return errors.Wrapf(err, "mapdiff: feature %d", f.ID)
	}

	part := s.Partition(zr)
	if _, exists := part[f.ID]; exists && !override {
		return nil
	}
	part[f.ID] = adopted
	return nil
}

func (s *Store) adopt(src *RuleTable, f *Feature) (*Feature, error) {
	if src == s.rules {
		return f, nil
	}

	main, err := AdoptCode(f.MainType, src, s.rules)
	if err != nil {
		return nil, err
	}

	var extra []uint32
	if len(f.ExtraTypes) != 0 {
		extra = make([]uint32, len(f.ExtraTypes))
		for i, code := range f.ExtraTypes {
			if extra[i], err = AdoptCode(code, src, s.rules); err != nil {
				return nil, err
			}
		}
	}

	adopted := *f
	adopted.MainType = main
	adopted.ExtraTypes = extra
	return &adopted, nil
}

// Delete removes a feature from a partition.
func (s *Store) Delete(zr ZoomRange, id int64) {
	if part, ok := s.parts[zr]; ok {
		delete(part, id)
	}
}

// FilterBelow removes every partition whose max zoom is below zoom.
func (s *Store) FilterBelow(zoom int) {
	kept := s.order[:0]
	for _, zr := range s.order {
		if zr.Max < zoom {
			delete(s.parts, zr)
			continue
		}
		kept = append(kept, zr)
	}
	s.order = kept
}

// Timestamp returns the creation time in epoch milliseconds, 0 when unset.
func (s *Store) Timestamp() int64 { return s.timestamp }

// BumpTimestamp raises the creation time to ts if it is later.
func (s *Store) BumpTimestamp(ts int64) {
	if ts > s.timestamp {
		s.timestamp = ts
	}
}

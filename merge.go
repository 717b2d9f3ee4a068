package mapdiff

import (
	"github.com/bsm/mapdiff/container"
	"github.com/bsm/mapdiff/rtree"
	"github.com/pkg/errors"
)

// MergeOptions configure Merge.
type MergeOptions struct {
	// InsertOnly keeps features already in the store instead of replacing
	// them with later ones of the same id.
	InsertOnly bool
}

// Merge reads every map index of the named containers, in order, into the
// store. Compressed containers are expanded next to the original and the
// expanded copy is removed again. The first error aborts the merge and
// leaves the store partially populated; callers should discard it. Index
// names of the inputs are not carried over to the store.
func (s *Store) Merge(o *MergeOptions, names ...string) error {
	override := o == nil || !o.InsertOnly
	for _, name := range names {
		if err := s.mergeFile(name, override); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) mergeFile(name string, override bool) (err error) {
	r, err := container.Open(name)
	if err != nil {
		return errors.Wrapf(err, "mapdiff: open %s", name)
	}
	defer func() {
		if cerr := r.Close(); err == nil && cerr != nil {
			err = errors.Wrapf(cerr, "mapdiff: close %s", name)
		}
	}()

	for _, mi := range r.MapIndexes() {
		if err := s.mergeMapIndex(r, mi, override); err != nil {
			return errors.Wrapf(err, "mapdiff: merge %s", name)
		}
	}
	s.BumpTimestamp(r.DateCreated())
	return nil
}

func (s *Store) mergeMapIndex(r *container.Reader, mi *container.MapIndex, override bool) error {
	src, err := ruleTableOf(mi.Rules)
	if err != nil {
		return err
	}

	for _, lvl := range mi.Levels {
		zr, err := NewZoomRange(lvl.MinZoom, lvl.MaxZoom)
		if err != nil {
			return err
		}
		s.Partition(zr)

		if err := r.Query(lvl, rtree.World, zr.Min, func(o *container.Object) error {
			return s.Put(zr, src, featureOf(o), override)
		}); err != nil {
			return errors.Wrapf(err, "zoom %s", zr)
		}
	}
	return nil
}

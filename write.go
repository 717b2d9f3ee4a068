package mapdiff

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/bsm/mapdiff/blocktable"
	"github.com/bsm/mapdiff/container"
	"github.com/bsm/mapdiff/rtree"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// WriteOptions configure WriteFile.
type WriteOptions struct {
	// Backend is the scratch store used while building spatial trees.
	// Default: rtree.LevelDB.
	Backend rtree.Backend

	// NodeCapacity is the spatial tree fan-out.
	// Default: 16.
	NodeCapacity int

	// Payload configures the feature payload blocks.
	Payload *blocktable.WriterOptions
}

// LevelStats describe a written level block.
type LevelStats struct {
	Range    ZoomRange
	Bounds   r2.Rect
	Features int
}

// WriteFile writes the store as a container to target. Targets ending in
// ".gz" or ".sz" are compressed as a whole. The file's modification time is
// set to the store's timestamp, which defaults to the current time when
// unset. Empty partitions produce no level block. On failure no target is
// left behind.
//
// Scratch files for the spatial trees are created next to target and
// removed before WriteFile returns; the process-wide tree cache is cleared.
func (s *Store) WriteFile(target string, o *WriteOptions) (levels []LevelStats, err error) {
	if o == nil {
		o = new(WriteOptions)
	}
	defer rtree.ClearCache()

	if s.timestamp == 0 {
		s.timestamp = time.Now().UnixNano() / int64(time.Millisecond)
	}

	f, err := container.CreateFile(target)
	if err != nil {
		return nil, errors.Wrapf(err, "mapdiff: create %s", target)
	}
	defer func() {
		if err != nil {
			_ = f.Abort()
		}
	}()

	w := container.NewWriter(f, &container.WriterOptions{Payload: o.Payload})
	if err := w.WriteHeader(s.timestamp); err != nil {
		return nil, err
	}

	if len(s.order) != 0 {
		name := s.Name
		if name == "" {
			name = indexName(target)
		}
		if err := w.BeginMapIndex(capitalize(name)); err != nil {
			return nil, err
		}
		if err := w.WriteRules(s.rules.Rules()); err != nil {
			return nil, err
		}
		for _, zr := range s.order {
			st, ok, err := s.writeLevel(w, target, zr, o)
			if err != nil {
				return nil, errors.Wrapf(err, "mapdiff: write zoom %s", zr)
			}
			if ok {
				levels = append(levels, st)
			}
		}
		if err := w.EndMapIndex(); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	if err := f.Commit(time.Unix(0, s.timestamp*int64(time.Millisecond))); err != nil {
		return nil, errors.Wrapf(err, "mapdiff: commit %s", target)
	}
	return levels, nil
}

func (s *Store) writeLevel(w *container.Writer, target string, zr ZoomRange, o *WriteOptions) (LevelStats, bool, error) {
	part := s.parts[zr]
	if len(part) == 0 {
		return LevelStats{}, false, nil
	}

	nonpack := container.ScratchPath(target, fmt.Sprintf("nonpack%d", zr.Min), ".rtree")
	pack := container.ScratchPath(target, fmt.Sprintf("pack%d", zr.Min), ".rtree")
	defer os.RemoveAll(nonpack)
	defer os.Remove(pack)

	b, err := rtree.NewBuilder(nonpack, &rtree.Options{
		Backend:      o.Backend,
		NodeCapacity: o.NodeCapacity,
	})
	if err != nil {
		return LevelStats{}, false, err
	}
	defer b.Close()

	objs := make([]*container.Object, 0, len(part))
	for id, f := range part {
		if err := f.checkPoints(); err != nil {
			return LevelStats{}, false, errors.Wrapf(err, "mapdiff: feature %d", id)
		}
		if err := b.Insert(f.Bounds(), id); err != nil {
			return LevelStats{}, false, err
		}
		objs = append(objs, f.object())
	}

	tree, err := b.Pack(pack)
	if err != nil {
		return LevelStats{}, false, err
	}
	defer tree.Close()

	bounds, ok, err := tree.Bounds()
	if err != nil {
		return LevelStats{}, false, err
	}
	if !ok {
		return LevelStats{}, false, errors.New("mapdiff: no root bounds for a non-empty partition")
	}

	if err := w.BeginLevel(zr.Min, zr.Max, bounds); err != nil {
		return LevelStats{}, false, err
	}
	if err := w.WriteTree(tree); err != nil {
		return LevelStats{}, false, err
	}
	if err := w.WritePayload(objs); err != nil {
		return LevelStats{}, false, err
	}
	if err := w.EndLevel(); err != nil {
		return LevelStats{}, false, err
	}
	return LevelStats{Range: zr, Bounds: bounds, Features: len(part)}, true, nil
}

// indexName is the base name of target up to its first dot.
func indexName(target string) string {
	name := filepath.Base(target)
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	return name
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

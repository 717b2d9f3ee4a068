package rtree

import (
	"encoding/binary"
	"os"

	"github.com/bsm/mapdiff/blocktable"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// Builder collects entries in a scratch store and packs them into a Tree.
type Builder struct {
	dir   string
	o     *Options
	store scratch
	count int

	key []byte
	val []byte
}

// NewBuilder creates a builder with a fresh scratch store at dir. Any
// leftover store at dir is removed first. Close must be called to release
// and delete the scratch store.
func NewBuilder(dir string, o *Options) (*Builder, error) {
	o = o.norm()
	if err := removeScratch(dir); err != nil {
		return nil, err
	}

	store, err := openScratch(o.Backend, dir)
	if err != nil {
		return nil, err
	}
	return &Builder{
		dir:   dir,
		o:     o,
		store: store,
		key:   make([]byte, 16),
	}, nil
}

// Len returns the number of inserted entries.
func (b *Builder) Len() int { return b.count }

// Insert adds an entry. Entries sharing both an id and a Hilbert value
// collapse into one.
func (b *Builder) Insert(rect r2.Rect, id int64) error {
	if b.store == nil {
		return errPacked
	}
	if rect.IsEmpty() {
		return errors.Errorf("rtree: empty rectangle for id %d", id)
	}

	binary.BigEndian.PutUint64(b.key[0:], hilbertOf(rect))
	binary.BigEndian.PutUint64(b.key[8:], uint64(id))
	b.val = appendRect(b.val[:0], rect)
	if err := b.store.Put(b.key, b.val); err != nil {
		return errors.Wrapf(err, "rtree: insert %d", id)
	}
	b.count++
	return nil
}

// Pack writes the packed tree to dst and returns it opened. The scratch
// store is released afterwards, whatever the outcome; the builder can no
// longer be used. The caller owns dst and must close the returned Tree.
func (b *Builder) Pack(dst string) (*Tree, error) {
	if b.store == nil {
		return nil, errPacked
	}
	defer b.release()

	f, err := os.Create(dst)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := b.pack(f); err != nil {
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return OpenFile(dst)
}

func (b *Builder) pack(f *os.File) error {
	w := blocktable.NewWriter(f, &blocktable.WriterOptions{
		Compression: blocktable.SnappyCompression,
	})

	var (
		next   = uint64(1)
		level  []entry // parents of the nodes written so far
		cur    = &node{leaf: true}
		height int
		buf    []byte
	)

	emit := func(n *node) error {
		buf = n.encode(buf[:0])
		if err := w.Append(next, buf); err != nil {
			return err
		}
		level = append(level, entry{rect: n.bounds(), ref: next})
		next++
		return nil
	}

	count := 0
	err := b.store.Iterate(func(key, val []byte) error {
		rect, _, ok := readRect(val)
		if !ok || len(key) != 16 {
			return errBadNode
		}
		id := binary.BigEndian.Uint64(key[8:])
		cur.entries = append(cur.entries, entry{rect: rect, ref: id})
		count++

		if len(cur.entries) == b.o.NodeCapacity {
			if err := emit(cur); err != nil {
				return err
			}
			cur = &node{leaf: true}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "rtree: pack leaves")
	}
	if len(cur.entries) != 0 {
		if err := emit(cur); err != nil {
			return err
		}
	}
	if len(level) != 0 {
		height = 1
	}

	for len(level) > 1 {
		children := level
		level = nil
		for start := 0; start < len(children); start += b.o.NodeCapacity {
			end := start + b.o.NodeCapacity
			if end > len(children) {
				end = len(children)
			}
			if err := emit(&node{entries: children[start:end]}); err != nil {
				return err
			}
		}
		height++
	}

	m := meta{height: height, count: count}
	if len(level) == 1 {
		m.root = level[0].ref
	}
	if err := w.Append(metaKey, m.encode()); err != nil {
		return err
	}
	return w.Close()
}

// Close releases the scratch store and deletes it from disk.
func (b *Builder) Close() error {
	return b.release()
}

func (b *Builder) release() error {
	var err error
	if b.store != nil {
		err = b.store.Close()
		b.store = nil
	}
	if rerr := removeScratch(b.dir); err == nil {
		err = rerr
	}
	return err
}

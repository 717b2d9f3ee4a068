package rtree

import (
	"io"
	"os"

	"github.com/bsm/mapdiff/blocktable"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// Tree is a read-only packed tree.
type Tree struct {
	id   uint64
	src  io.ReaderAt
	size int64
	tbl  *blocktable.Reader
	meta meta

	file *os.File // set when the tree owns its file
}

// Open opens a packed tree stored in the first size bytes of r.
func Open(r io.ReaderAt, size int64) (*Tree, error) {
	tbl, err := blocktable.NewReader(r, size)
	if err != nil {
		return nil, errors.Wrap(err, "rtree: open")
	}

	raw, err := tbl.Get(metaKey)
	if err == blocktable.ErrNotFound {
		return nil, errBadMeta
	} else if err != nil {
		return nil, errors.Wrap(err, "rtree: read meta")
	}
	m, err := decodeMeta(raw)
	if err != nil {
		return nil, err
	}

	return &Tree{
		id:   nextTreeID(),
		src:  r,
		size: size,
		tbl:  tbl,
		meta: m,
	}, nil
}

// OpenFile opens a packed tree file. The tree must be closed after use.
func OpenFile(name string) (*Tree, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	t, err := Open(f, fi.Size())
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	t.file = f
	return t, nil
}

// Len returns the number of leaf entries.
func (t *Tree) Len() int { return t.meta.count }

// Height returns the number of node levels, 0 for an empty tree.
func (t *Tree) Height() int { return t.meta.height }

// Size returns the packed size in bytes.
func (t *Tree) Size() int64 { return t.size }

// Bounds returns the bounding box of the root node. It reports false for an
// empty tree.
func (t *Tree) Bounds() (r2.Rect, bool, error) {
	if t.meta.root == 0 {
		return r2.EmptyRect(), false, nil
	}
	root, err := t.node(t.meta.root)
	if err != nil {
		return r2.EmptyRect(), false, err
	}
	return root.bounds(), true, nil
}

// Search calls fn with the id of every entry whose rectangle intersects
// rect. Returning an error from fn stops the search.
func (t *Tree) Search(rect r2.Rect, fn func(id int64) error) error {
	if t.meta.root == 0 {
		return nil
	}

	stack := []uint64{t.meta.root}
	for len(stack) != 0 {
		key := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n, err := t.node(key)
		if err != nil {
			return err
		}
		for _, e := range n.entries {
			if !e.rect.Intersects(rect) {
				continue
			}
			if !n.leaf {
				stack = append(stack, e.ref)
			} else if err := fn(int64(e.ref)); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteTo copies the packed bytes to w.
func (t *Tree) WriteTo(w io.Writer) (int64, error) {
	return io.Copy(w, io.NewSectionReader(t.src, 0, t.size))
}

// Close releases the underlying file, if the tree owns one.
func (t *Tree) Close() error {
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	return err
}

func (t *Tree) node(key uint64) (*node, error) {
	ck := cacheKey{tree: t.id, node: key}
	if v, ok := nodeCache.Get(ck); ok {
		return v.(*node), nil
	}

	raw, err := t.tbl.Get(key)
	if err == blocktable.ErrNotFound {
		return nil, errors.Wrapf(errBadNode, "rtree: missing node %d", key)
	} else if err != nil {
		return nil, err
	}
	n, err := decodeNode(raw)
	if err != nil {
		return nil, err
	}
	nodeCache.Add(ck, n)
	return n, nil
}

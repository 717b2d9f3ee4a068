package rtree

import (
	"encoding/binary"
	"math"

	"github.com/golang/geo/r2"
)

// metaKey holds the tree meta record; node keys count up from 1.
const metaKey = math.MaxUint64

const flagLeaf = 1

type entry struct {
	rect r2.Rect
	ref  uint64 // child node key, or the id of a leaf entry
}

type node struct {
	leaf    bool
	entries []entry
}

func (n *node) bounds() r2.Rect {
	rect := r2.EmptyRect()
	for _, e := range n.entries {
		rect = rect.Union(e.rect)
	}
	return rect
}

func appendRect(dst []byte, rect r2.Rect) []byte {
	minX, minY, maxX, maxY := Coords(rect)
	dst = binary.AppendUvarint(dst, uint64(minX))
	dst = binary.AppendUvarint(dst, uint64(maxX-minX))
	dst = binary.AppendUvarint(dst, uint64(minY))
	dst = binary.AppendUvarint(dst, uint64(maxY-minY))
	return dst
}

func readRect(src []byte) (r2.Rect, int, bool) {
	var v [4]uint64
	read := 0
	for i := range v {
		x, n := binary.Uvarint(src[read:])
		if n <= 0 {
			return r2.Rect{}, 0, false
		}
		v[i] = x
		read += n
	}
	return NewRect(uint32(v[0]), uint32(v[2]), uint32(v[0]+v[1]), uint32(v[2]+v[3])), read, true
}

func (n *node) encode(dst []byte) []byte {
	var flags byte
	if n.leaf {
		flags |= flagLeaf
	}
	dst = append(dst, flags)
	dst = binary.AppendUvarint(dst, uint64(len(n.entries)))
	for _, e := range n.entries {
		dst = appendRect(dst, e.rect)
		if n.leaf {
			dst = binary.AppendVarint(dst, int64(e.ref))
		} else {
			dst = binary.AppendUvarint(dst, e.ref)
		}
	}
	return dst
}

func decodeNode(src []byte) (*node, error) {
	if len(src) < 2 {
		return nil, errBadNode
	}

	n := &node{leaf: src[0]&flagLeaf != 0}
	cnt, read := binary.Uvarint(src[1:])
	if read <= 0 || cnt > uint64(len(src)) {
		return nil, errBadNode
	}
	read++

	n.entries = make([]entry, 0, int(cnt))
	for i := uint64(0); i < cnt; i++ {
		rect, sz, ok := readRect(src[read:])
		if !ok {
			return nil, errBadNode
		}
		read += sz

		var ref uint64
		if n.leaf {
			id, sz := binary.Varint(src[read:])
			if sz <= 0 {
				return nil, errBadNode
			}
			ref, read = uint64(id), read+sz
		} else {
			key, sz := binary.Uvarint(src[read:])
			if sz <= 0 {
				return nil, errBadNode
			}
			ref, read = key, read+sz
		}
		n.entries = append(n.entries, entry{rect: rect, ref: ref})
	}
	return n, nil
}

// meta describes a packed tree.
type meta struct {
	root   uint64 // root node key, 0 when empty
	height int
	count  int
}

func (m meta) encode() []byte {
	dst := binary.AppendUvarint(nil, m.root)
	dst = binary.AppendUvarint(dst, uint64(m.height))
	return binary.AppendUvarint(dst, uint64(m.count))
}

func decodeMeta(src []byte) (meta, error) {
	var v [3]uint64
	read := 0
	for i := range v {
		x, n := binary.Uvarint(src[read:])
		if n <= 0 {
			return meta{}, errBadMeta
		}
		v[i] = x
		read += n
	}
	return meta{root: v[0], height: int(v[1]), count: int(v[2])}, nil
}

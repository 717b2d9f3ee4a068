package blocktable

import (
	"bytes"
	"encoding/binary"
	"io"
	"sort"
	"sync"

	"github.com/golang/snappy"
)

// Reader instances can seek and iterate across data in tables.
type Reader struct {
	r io.ReaderAt

	index     []blockInfo
	count     uint64
	maxOffset int64
}

// NewReader opens a reader over a table of the given size.
func NewReader(r io.ReaderAt, size int64) (*Reader, error) {
	if size < footerLen {
		return nil, errShort
	}

	tmp := make([]byte, footerLen)
	footerOffset := size - footerLen
	if _, err := r.ReadAt(tmp, footerOffset); err != nil {
		return nil, err
	}
	if !bytes.Equal(tmp[16:24], magic) {
		return nil, errBadMagic
	}
	indexOffset := int64(binary.LittleEndian.Uint64(tmp[0:8]))
	count := binary.LittleEndian.Uint64(tmp[8:16])
	if indexOffset < 0 || indexOffset > footerOffset {
		return nil, errCorrupt
	}

	raw := make([]byte, int(footerOffset-indexOffset))
	if _, err := r.ReadAt(raw, indexOffset); err != nil {
		return nil, err
	}

	var index []blockInfo
	var info blockInfo
	for pos := 0; pos < len(raw); {
		u1, n := binary.Uvarint(raw[pos:])
		if n <= 0 {
			return nil, errCorrupt
		}
		pos += n

		u2, n := binary.Uvarint(raw[pos:])
		if n <= 0 {
			return nil, errCorrupt
		}
		pos += n

		info.MaxKey += u1
		info.Offset += int64(u2)
		index = append(index, info)
	}

	return &Reader{
		r:         r,
		index:     index,
		count:     count,
		maxOffset: indexOffset,
	}, nil
}

// Len returns the number of stored entries.
func (r *Reader) Len() uint64 { return r.count }

// NumBlocks returns the number of stored blocks.
func (r *Reader) NumBlocks() int { return len(r.index) }

// Append retrieves the value for key and appends it to dst.
// It may return an ErrNotFound error.
func (r *Reader) Append(dst []byte, key uint64) ([]byte, error) {
	iter, err := r.Seek(key)
	if err != nil {
		return dst, err
	}
	defer iter.Release()

	if !iter.Next() {
		if err := iter.Err(); err != nil {
			return dst, err
		}
		return dst, ErrNotFound
	}
	if iter.Key() != key {
		return dst, ErrNotFound
	}
	return append(dst, iter.Value()...), nil
}

// Get is a shortcut for Append(nil, key).
func (r *Reader) Get(key uint64) ([]byte, error) {
	return r.Append(nil, key)
}

// Seek returns an iterator positioned before the first entry >= key.
func (r *Reader) Seek(key uint64) (*Iterator, error) {
	iter := &Iterator{r: r}
	if bpos := r.blockFor(key, 0); bpos < len(r.index) {
		if err := iter.load(bpos, key); err != nil {
			return nil, err
		}
	}
	return iter, nil
}

// blockFor returns the first block at or after from that may hold key.
func (r *Reader) blockFor(key uint64, from int) int {
	return from + sort.Search(len(r.index)-from, func(i int) bool {
		return r.index[from+i].MaxKey >= key
	})
}

func (r *Reader) readBlock(bpos int) (*block, error) {
	min := r.index[bpos].Offset
	max := r.maxOffset
	if next := bpos + 1; next < len(r.index) {
		max = r.index[next].Offset
	}
	if max-min < 5 {
		return nil, errCorrupt
	}

	raw := fetchBuffer(int(max - min))
	if _, err := r.r.ReadAt(raw, min); err != nil {
		releaseBuffer(raw)
		return nil, err
	}

	var data []byte
	switch cpos := len(raw) - 1; raw[cpos] {
	case blockPlain:
		data = raw[:cpos]
	case blockSnappy:
		defer releaseBuffer(raw)

		sz, err := snappy.DecodedLen(raw[:cpos])
		if err != nil {
			return nil, err
		}
		plain := fetchBuffer(sz)
		if data, err = snappy.Decode(plain, raw[:cpos]); err != nil {
			releaseBuffer(plain)
			return nil, err
		}
	default:
		releaseBuffer(raw)
		return nil, errBadCompression
	}

	if len(data) < 4 {
		releaseBuffer(data)
		return nil, errCorrupt
	}
	ngroups := int(binary.LittleEndian.Uint32(data[len(data)-4:]))
	if ngroups < 1 || ngroups*4 > len(data) {
		releaseBuffer(data)
		return nil, errCorrupt
	}
	return &block{
		data:    data,
		pos:     bpos,
		ngroups: ngroups,
		end:     len(data) - ngroups*4,
	}, nil
}

// --------------------------------------------------------------------

type block struct {
	data    []byte
	pos     int // block position within the table
	ngroups int // restart group count
	end     int // end of the entry region
}

func (b *block) groupOffset(i int) int {
	if i <= 0 {
		return 0
	} else if i >= b.ngroups {
		return b.end
	}
	nn := b.end + (i-1)*4
	return int(binary.LittleEndian.Uint32(b.data[nn:]))
}

func (b *block) release() { releaseBuffer(b.data) }

// --------------------------------------------------------------------

// Iterator iterates forward over entries across block boundaries.
type Iterator struct {
	r *Reader
	b *block

	grp int // next restart group
	off int // read offset within the block

	key uint64
	val []byte
	err error
}

// Key returns the key of the current entry.
func (i *Iterator) Key() uint64 { return i.key }

// Value returns the value of the current entry. Values are temporary buffers
// and must be copied if used beyond the next cursor move.
func (i *Iterator) Value() []byte { return i.val }

// Next advances the cursor to the next entry and returns true if successful.
func (i *Iterator) Next() bool {
	for i.err == nil && i.b != nil {
		if i.next() {
			return true
		}
		if n := i.b.pos + 1; n < i.r.NumBlocks() {
			b, err := i.r.readBlock(n)
			i.b.release()
			i.b, i.grp, i.off, i.err = b, 0, 0, err
			continue
		}
		return false
	}
	return false
}

func (i *Iterator) next() bool {
	if i.b == nil || i.off >= i.b.end {
		return false
	}

	inc, n := binary.Uvarint(i.b.data[i.off:])
	if n <= 0 {
		i.err = errCorrupt
		return false
	}
	if i.off == i.b.groupOffset(i.grp) {
		i.key = inc
		i.grp++
	} else {
		i.key += inc
	}
	i.off += n

	vln, n := binary.Uvarint(i.b.data[i.off:])
	if n <= 0 || i.off+n > i.b.end || vln > uint64(i.b.end-i.off-n) {
		i.err = errCorrupt
		return false
	}
	i.off += n
	i.val = i.b.data[i.off : i.off+int(vln)]
	i.off += int(vln)
	return true
}

// Advance moves the cursor to the first entry after the current one with a
// key >= key and returns true if successful. Blocks that cannot hold key are
// skipped without being read.
func (i *Iterator) Advance(key uint64) bool {
	if i.err != nil || i.b == nil {
		return false
	}
	if key > i.r.index[i.b.pos].MaxKey {
		bpos := i.r.blockFor(key, i.b.pos+1)
		if bpos >= len(i.r.index) {
			i.Release()
			return false
		}
		if i.err = i.load(bpos, key); i.err != nil {
			return false
		}
	}

	for i.Next() {
		if i.key >= key {
			return true
		}
	}
	return false
}

// load reads block bpos and positions the cursor before its first entry
// >= key.
func (i *Iterator) load(bpos int, key uint64) error {
	b, err := i.r.readBlock(bpos)
	if err != nil {
		return err
	}
	if i.b != nil {
		i.b.release()
	}

	grp := sort.Search(b.ngroups, func(n int) bool {
		first, _ := binary.Uvarint(b.data[b.groupOffset(n):])
		return first > key
	}) - 1
	if grp < 0 {
		grp = 0
	}

	i.b, i.grp, i.off = b, grp, b.groupOffset(grp)
	for {
		grp, off, k, v := i.grp, i.off, i.key, i.val
		if !i.next() {
			break
		}
		if i.key >= key {
			i.grp, i.off, i.key, i.val = grp, off, k, v
			break
		}
	}
	return nil
}

// Err exposes iterator errors, if any.
func (i *Iterator) Err() error { return i.err }

// Release frees up resources. The iterator must not be used after this
// method is called.
func (i *Iterator) Release() {
	if i.b != nil {
		i.b.release()
		i.b = nil
	}
	i.val = nil
}

// --------------------------------------------------------------------

var bufPool sync.Pool

func fetchBuffer(sz int) []byte {
	if v := bufPool.Get(); v != nil {
		if p := v.([]byte); sz <= cap(p) {
			return p[:sz]
		}
	}
	return make([]byte, sz)
}

func releaseBuffer(p []byte) {
	if cap(p) != 0 {
		bufPool.Put(p)
	}
}

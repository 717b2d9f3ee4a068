package container

import (
	"bufio"
	"encoding/binary"
	"io"
	"sort"

	"github.com/bsm/mapdiff/blocktable"
	"github.com/bsm/mapdiff/rtree"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Section is a framed section of a container.
type Section struct {
	Kind   SectionKind
	Offset int64 // body start
	Length int64 // body length

	// Map is set for map index sections.
	Map *MapIndex
}

// MapIndex is a parsed map index section.
type MapIndex struct {
	Name   string
	Rules  []Rule
	Levels []*Level
}

// Level is a level block of a map index. Tree and payload stay on disk
// until queried.
type Level struct {
	MinZoom, MaxZoom int
	Bounds           r2.Rect

	treeOffset, treeLength       int64
	payloadOffset, payloadLength int64
}

// Reader reads a container.
type Reader struct {
	r    io.ReaderAt
	size int64

	version     int
	dateCreated int64
	sections    []*Section

	closer func() error
}

// NewReader parses the container framing of the first size bytes of r.
func NewReader(r io.ReaderAt, size int64) (*Reader, error) {
	rd := &Reader{r: r, size: size}
	if err := rd.parse(); err != nil {
		return nil, err
	}
	return rd, nil
}

// Version returns the declared format version.
func (r *Reader) Version() int { return r.version }

// DateCreated returns the declared creation time in epoch milliseconds.
func (r *Reader) DateCreated() int64 { return r.dateCreated }

// Sections returns all sections in file order.
func (r *Reader) Sections() []*Section { return r.sections }

// MapIndexes returns the map index sections.
func (r *Reader) MapIndexes() []*MapIndex {
	var res []*MapIndex
	for _, s := range r.sections {
		if s.Map != nil {
			res = append(res, s.Map)
		}
	}
	return res
}

// Query calls fn for every object of the level whose bounding box
// intersects bbox. Levels that do not cover zoom yield nothing.
func (r *Reader) Query(lvl *Level, bbox r2.Rect, zoom int, fn func(*Object) error) error {
	if zoom < lvl.MinZoom || zoom > lvl.MaxZoom {
		return nil
	}

	tree, err := rtree.Open(io.NewSectionReader(r.r, lvl.treeOffset, lvl.treeLength), lvl.treeLength)
	if err != nil {
		return errors.Wrapf(err, "container: level %d-%d tree", lvl.MinZoom, lvl.MaxZoom)
	}
	payload, err := blocktable.NewReader(io.NewSectionReader(r.r, lvl.payloadOffset, lvl.payloadLength), lvl.payloadLength)
	if err != nil {
		return errors.Wrapf(err, "container: level %d-%d payload", lvl.MinZoom, lvl.MaxZoom)
	}

	var ids []uint64
	if err := tree.Search(bbox, func(id int64) error {
		ids = append(ids, uint64(id))
		return nil
	}); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	// visit the payload in key order so each block is decoded once
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	iter, err := payload.Seek(ids[0])
	if err != nil {
		return errors.Wrapf(err, "container: level %d-%d payload", lvl.MinZoom, lvl.MaxZoom)
	}
	defer iter.Release()

	for n, id := range ids {
		if n > 0 && id == ids[n-1] {
			continue
		}
		if !iter.Advance(id) || iter.Key() != id {
			if err := iter.Err(); err != nil {
				return errors.Wrapf(err, "container: object %d", int64(id))
			}
			return errors.Wrapf(blocktable.ErrNotFound, "container: object %d", int64(id))
		}
		obj, err := DecodeObject(iter.Value())
		if err != nil {
			return errors.Wrapf(err, "container: object %d", int64(id))
		}
		if err := fn(obj); err != nil {
			return err
		}
	}
	return nil
}

// Close releases resources held by a reader returned from Open.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer()
	r.closer = nil
	return err
}

func (r *Reader) parse() error {
	s := newScanner(r.r, 0, r.size)

	num, typ, err := s.tag()
	if err != nil {
		return err
	}
	if num != fieldVersion || typ != protowire.VarintType {
		return ErrBadFraming
	}
	version, err := s.uvarint()
	if err != nil {
		return err
	}
	r.version = int(version)
	if r.version != Version {
		return errors.Wrapf(ErrUnsupportedVersion, "container: version %d", r.version)
	}

	for {
		num, typ, err := s.tag()
		if err != nil {
			return err
		}

		switch {
		case num == fieldDateCreated && typ == protowire.VarintType:
			v, err := s.uvarint()
			if err != nil {
				return err
			}
			r.dateCreated = int64(v)
		case num == fieldVersionConfirm && typ == protowire.VarintType:
			v, err := s.uvarint()
			if err != nil {
				return err
			}
			if int(v) != r.version || s.pos != r.size {
				return ErrBadFraming
			}
			return nil
		case typ == protowire.BytesType:
			sec, err := r.parseSection(s, SectionKind(num))
			if err != nil {
				return err
			}
			r.sections = append(r.sections, sec)
		case typ == protowire.VarintType:
			if _, err := s.uvarint(); err != nil {
				return err
			}
		default:
			return ErrBadFraming
		}
	}
}

func (r *Reader) parseSection(s *scanner, kind SectionKind) (*Section, error) {
	length, err := s.frame()
	if err != nil {
		return nil, err
	}

	sec := &Section{Kind: kind, Offset: s.pos, Length: length}
	if kind == MapSection {
		if sec.Map, err = r.parseMapIndex(sec.Offset, length); err != nil {
			return nil, err
		}
	}
	if err := s.skip(length); err != nil {
		return nil, err
	}
	return sec, nil
}

func (r *Reader) parseMapIndex(off, length int64) (*MapIndex, error) {
	s := newScanner(r.r, off, length)
	mi := new(MapIndex)

	for !s.eof() {
		num, typ, err := s.tag()
		if err != nil {
			return nil, err
		}

		switch {
		case num == fieldMapName && typ == protowire.BytesType:
			b, err := s.bytes()
			if err != nil {
				return nil, err
			}
			mi.Name = string(b)
		case num == fieldMapRule && typ == protowire.BytesType:
			b, err := s.bytes()
			if err != nil {
				return nil, err
			}
			rule, err := decodeRule(b)
			if err != nil {
				return nil, err
			}
			mi.Rules = append(mi.Rules, rule)
		case num == fieldMapLevel && typ == protowire.BytesType:
			n, err := s.frame()
			if err != nil {
				return nil, err
			}
			lvl, err := r.parseLevel(s.pos, n)
			if err != nil {
				return nil, err
			}
			mi.Levels = append(mi.Levels, lvl)
			if err := s.skip(n); err != nil {
				return nil, err
			}
		default:
			return nil, ErrBadFraming
		}
	}
	return mi, nil
}

func (r *Reader) parseLevel(off, length int64) (*Level, error) {
	s := newScanner(r.r, off, length)
	lvl := new(Level)

	var coords [4]uint32
	var hasTree, hasPayload bool
	for !s.eof() {
		num, typ, err := s.tag()
		if err != nil {
			return nil, err
		}

		switch {
		case typ == protowire.VarintType && num >= fieldLevelMinZoom && num <= fieldLevelBottom:
			v, err := s.uvarint()
			if err != nil {
				return nil, err
			}
			switch num {
			case fieldLevelMinZoom:
				lvl.MinZoom = int(v)
			case fieldLevelMaxZoom:
				lvl.MaxZoom = int(v)
			default:
				coords[num-fieldLevelLeft] = uint32(v)
			}
		case num == fieldLevelTree && typ == protowire.BytesType:
			n, err := s.frame()
			if err != nil {
				return nil, err
			}
			lvl.treeOffset, lvl.treeLength, hasTree = s.pos, n, true
			if err := s.skip(n); err != nil {
				return nil, err
			}
		case num == fieldLevelPayload && typ == protowire.BytesType:
			n, err := s.frame()
			if err != nil {
				return nil, err
			}
			lvl.payloadOffset, lvl.payloadLength, hasPayload = s.pos, n, true
			if err := s.skip(n); err != nil {
				return nil, err
			}
		default:
			return nil, ErrBadFraming
		}
	}
	if !hasTree || !hasPayload {
		return nil, ErrBadFraming
	}

	// left, right, top, bottom
	lvl.Bounds = rtree.NewRect(coords[0], coords[2], coords[1], coords[3])
	return lvl, nil
}

// --------------------------------------------------------------------

// scanner reads fields sequentially from a window of an io.ReaderAt.
type scanner struct {
	br  *bufio.Reader
	pos int64 // absolute position
	end int64
}

func newScanner(r io.ReaderAt, off, length int64) *scanner {
	return &scanner{
		br:  bufio.NewReader(io.NewSectionReader(r, off, length)),
		pos: off,
		end: off + length,
	}
}

func (s *scanner) eof() bool { return s.pos >= s.end }

func (s *scanner) ReadByte() (byte, error) {
	c, err := s.br.ReadByte()
	if err != nil {
		return 0, truncated(err)
	}
	s.pos++
	return c, nil
}

func (s *scanner) uvarint() (uint64, error) {
	return binary.ReadUvarint(s)
}

func (s *scanner) tag() (protowire.Number, protowire.Type, error) {
	v, err := s.uvarint()
	if err != nil {
		return 0, 0, err
	}
	num, typ := protowire.DecodeTag(v)
	if !num.IsValid() {
		return 0, 0, ErrBadFraming
	}
	return num, typ, nil
}

func (s *scanner) frame() (int64, error) {
	var buf [frameLen]byte
	if _, err := io.ReadFull(s.br, buf[:]); err != nil {
		return 0, truncated(err)
	}
	s.pos += frameLen

	n := int64(binary.BigEndian.Uint32(buf[:]))
	if s.pos+n > s.end {
		return 0, ErrTruncated
	}
	return n, nil
}

func (s *scanner) bytes() ([]byte, error) {
	n, err := s.uvarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(s.end-s.pos) {
		return nil, ErrTruncated
	}

	buf := make([]byte, int(n))
	if _, err := io.ReadFull(s.br, buf); err != nil {
		return nil, truncated(err)
	}
	s.pos += int64(n)
	return buf, nil
}

func (s *scanner) skip(n int64) error {
	for n > 0 {
		chunk := n
		if chunk > 1<<30 {
			chunk = 1 << 30
		}
		m, err := s.br.Discard(int(chunk))
		s.pos += int64(m)
		n -= int64(m)
		if err != nil {
			return truncated(err)
		}
	}
	return nil
}

func truncated(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrTruncated
	}
	return err
}

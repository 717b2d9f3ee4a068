package container

import (
	"encoding/binary"
	"io"
	"math"
	"sort"

	"github.com/bsm/mapdiff/blocktable"
	"github.com/bsm/mapdiff/rtree"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// WriterAt is the destination of a Writer. Section lengths are patched in
// place once a section ends.
type WriterAt interface {
	io.Writer
	io.WriterAt
}

// WriterOptions define writer specific options.
type WriterOptions struct {
	// Version is the format version tag.
	// Default: Version.
	Version int

	// Payload configures the payload blocktable of each level.
	Payload *blocktable.WriterOptions
}

func (o *WriterOptions) norm() *WriterOptions {
	var oo WriterOptions
	if o != nil {
		oo = *o
	}

	if oo.Version < 1 {
		oo.Version = Version
	}
	return &oo
}

// Writer writes a container. Calls must follow the layout:
//
//	WriteHeader
//	  BeginMapIndex, WriteRules, (BeginLevel, WriteTree, WritePayload, EndLevel)*, EndMapIndex
//	Close
type Writer struct {
	w   WriterAt
	o   *WriterOptions
	pos int64

	open []int64 // offsets of pending length frames
	buf  []byte
	done bool
}

// NewWriter wraps w and returns a Writer.
func NewWriter(w WriterAt, o *WriterOptions) *Writer {
	return &Writer{w: w, o: o.norm()}
}

// WriteHeader writes the version tag and the creation timestamp in epoch
// milliseconds.
func (w *Writer) WriteHeader(dateCreated int64) error {
	if w.done {
		return errClosed
	}
	if w.pos != 0 {
		return errors.New("container: header already written")
	}

	w.buf = protowire.AppendTag(w.buf[:0], fieldVersion, protowire.VarintType)
	w.buf = protowire.AppendVarint(w.buf, uint64(w.o.Version))
	w.buf = protowire.AppendTag(w.buf, fieldDateCreated, protowire.VarintType)
	w.buf = protowire.AppendVarint(w.buf, uint64(dateCreated))
	return w.write(w.buf)
}

// BeginMapIndex opens a map index section.
func (w *Writer) BeginMapIndex(name string) error {
	if err := w.expectDepth(0); err != nil {
		return err
	}
	if err := w.begin(protowire.Number(MapSection)); err != nil {
		return err
	}

	w.buf = protowire.AppendTag(w.buf[:0], fieldMapName, protowire.BytesType)
	w.buf = protowire.AppendString(w.buf, name)
	return w.write(w.buf)
}

// WriteRules writes the encoding rule table of the open map index.
func (w *Writer) WriteRules(rules []Rule) error {
	if err := w.expectDepth(1); err != nil {
		return err
	}

	w.buf = w.buf[:0]
	for _, r := range rules {
		w.buf = appendRule(w.buf, r)
	}
	return w.write(w.buf)
}

// BeginLevel opens a level block for a zoom range.
func (w *Writer) BeginLevel(minZoom, maxZoom int, bounds r2.Rect) error {
	if err := w.expectDepth(1); err != nil {
		return err
	}
	if err := w.begin(fieldMapLevel); err != nil {
		return err
	}

	left, top, right, bottom := rtree.Coords(bounds)
	w.buf = w.buf[:0]
	for _, f := range []struct {
		num protowire.Number
		val uint64
	}{
		{fieldLevelMinZoom, uint64(minZoom)},
		{fieldLevelMaxZoom, uint64(maxZoom)},
		{fieldLevelLeft, uint64(left)},
		{fieldLevelRight, uint64(right)},
		{fieldLevelTop, uint64(top)},
		{fieldLevelBottom, uint64(bottom)},
	} {
		w.buf = protowire.AppendTag(w.buf, f.num, protowire.VarintType)
		w.buf = protowire.AppendVarint(w.buf, f.val)
	}
	return w.write(w.buf)
}

// WriteTree copies a packed spatial tree into the open level block.
func (w *Writer) WriteTree(t *rtree.Tree) error {
	if err := w.expectDepth(2); err != nil {
		return err
	}
	if err := w.begin(fieldLevelTree); err != nil {
		return err
	}
	if _, err := t.WriteTo(writerFunc(w.write)); err != nil {
		return err
	}
	return w.end()
}

// WritePayload writes the object records of the open level block, keyed
// by id. Ids must be unique.
func (w *Writer) WritePayload(objs []*Object) error {
	if err := w.expectDepth(2); err != nil {
		return err
	}
	if err := w.begin(fieldLevelPayload); err != nil {
		return err
	}

	sorted := make([]*Object, len(objs))
	copy(sorted, objs)
	sort.Slice(sorted, func(i, j int) bool { return uint64(sorted[i].ID) < uint64(sorted[j].ID) })

	tw := blocktable.NewWriter(writerFunc(w.write), w.o.Payload)
	var rec []byte
	for _, o := range sorted {
		rec = AppendObject(rec[:0], o)
		if err := tw.Append(uint64(o.ID), rec); err != nil {
			return errors.Wrapf(err, "container: payload object %d", o.ID)
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return w.end()
}

// EndLevel closes the open level block.
func (w *Writer) EndLevel() error {
	if err := w.expectDepth(2); err != nil {
		return err
	}
	return w.end()
}

// EndMapIndex closes the open map index section.
func (w *Writer) EndMapIndex() error {
	if err := w.expectDepth(1); err != nil {
		return err
	}
	return w.end()
}

// Close writes the version confirmation. It does not close the underlying
// writer.
func (w *Writer) Close() error {
	if w.done {
		return errClosed
	}
	if len(w.open) != 0 {
		return errNesting
	}

	w.buf = protowire.AppendTag(w.buf[:0], fieldVersionConfirm, protowire.VarintType)
	w.buf = protowire.AppendVarint(w.buf, uint64(w.o.Version))
	if err := w.write(w.buf); err != nil {
		return err
	}
	w.done = true
	return nil
}

func (w *Writer) expectDepth(n int) error {
	if w.done {
		return errClosed
	}
	if w.pos == 0 {
		return errors.New("container: header not written")
	}
	if len(w.open) != n {
		return errNesting
	}
	return nil
}

func (w *Writer) begin(num protowire.Number) error {
	w.buf = protowire.AppendTag(w.buf[:0], num, protowire.BytesType)
	if err := w.write(w.buf); err != nil {
		return err
	}

	w.open = append(w.open, w.pos)
	var frame [frameLen]byte
	return w.write(frame[:])
}

func (w *Writer) end() error {
	off := w.open[len(w.open)-1]
	w.open = w.open[:len(w.open)-1]

	size := w.pos - off - frameLen
	if size > math.MaxUint32 {
		return errTooLarge
	}

	var frame [frameLen]byte
	binary.BigEndian.PutUint32(frame[:], uint32(size))
	_, err := w.w.WriteAt(frame[:], off)
	return err
}

func (w *Writer) write(p []byte) error {
	n, err := w.w.Write(p)
	w.pos += int64(n)
	return err
}

type writerFunc func([]byte) error

func (f writerFunc) Write(p []byte) (int, error) {
	if err := f(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

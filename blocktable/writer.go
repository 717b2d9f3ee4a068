package blocktable

import (
	"encoding/binary"
	"io"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// WriterOptions define writer specific options.
type WriterOptions struct {
	// BlockSize is the minimum uncompressed size in bytes of each block.
	// Default: 16KiB.
	BlockSize int

	// RestartInterval is the number of keys between restart points
	// for delta encoding of keys.
	// Default: 16.
	RestartInterval int

	// The compression codec to use.
	// Default: SnappyCompression.
	Compression Compression
}

func (o *WriterOptions) norm() *WriterOptions {
	var oo WriterOptions
	if o != nil {
		oo = *o
	}

	if oo.BlockSize < 1 {
		oo.BlockSize = 1 << 14
	}
	if oo.RestartInterval < 1 {
		oo.RestartInterval = 16
	}
	if !oo.Compression.isValid() {
		oo.Compression = SnappyCompression
	}
	return &oo
}

// Writer writes a table to an underlying stream. Keys must be appended in
// strictly increasing order.
type Writer struct {
	w io.Writer
	o *WriterOptions

	pos     int64  // bytes written so far
	lastKey uint64 // last appended key
	count   uint64 // total entries

	start  int64 // offset of the current block
	nblock int   // entries in the current block
	groups []int // restart group offsets in the current block

	buf []byte // plain block buffer
	snp []byte // snappy buffer
	tmp []byte // scratch

	index []blockInfo
}

// NewWriter wraps w and returns a Writer.
func NewWriter(w io.Writer, o *WriterOptions) *Writer {
	return &Writer{
		w:   w,
		o:   o.norm(),
		tmp: make([]byte, 2*binary.MaxVarintLen64),
	}
}

// Len returns the number of appended entries.
func (w *Writer) Len() uint64 { return w.count }

// Append appends a value under key.
func (w *Writer) Append(key uint64, value []byte) error {
	if w.tmp == nil {
		return errClosed
	}
	if w.count != 0 && key <= w.lastKey {
		return errors.Errorf("blocktable: out-of-order append, %d must be > %d", key, w.lastKey)
	}

	if len(w.buf) != 0 && len(w.buf)+len(value)+2*binary.MaxVarintLen64 > w.o.BlockSize {
		if err := w.flush(); err != nil {
			return err
		}
	}

	delta := key
	if w.nblock%w.o.RestartInterval == 0 {
		w.groups = append(w.groups, len(w.buf))
	} else {
		delta -= w.lastKey
	}

	n := binary.PutUvarint(w.tmp, delta)
	n += binary.PutUvarint(w.tmp[n:], uint64(len(value)))
	w.buf = append(w.buf, w.tmp[:n]...)
	w.buf = append(w.buf, value...)

	w.nblock++
	w.count++
	w.lastKey = key
	return nil
}

// Close flushes pending data and writes the index and footer. It does not
// close the underlying writer.
func (w *Writer) Close() error {
	if w.tmp == nil {
		return errClosed
	}
	if err := w.flush(); err != nil {
		return err
	}

	indexOffset := w.pos
	if err := w.writeIndex(); err != nil {
		return err
	}

	binary.LittleEndian.PutUint64(w.tmp[0:], uint64(indexOffset))
	binary.LittleEndian.PutUint64(w.tmp[8:], w.count)
	if err := w.write(w.tmp[:16]); err != nil {
		return err
	}
	if err := w.write(magic); err != nil {
		return err
	}

	w.tmp = nil
	return nil
}

func (w *Writer) writeIndex() error {
	var prev blockInfo
	for i, ent := range w.index {
		key, off := ent.MaxKey, ent.Offset
		if i != 0 {
			key -= prev.MaxKey
			off -= prev.Offset
		}
		prev = ent

		n := binary.PutUvarint(w.tmp, key)
		n += binary.PutUvarint(w.tmp[n:], uint64(off))
		if err := w.write(w.tmp[:n]); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) write(p []byte) error {
	n, err := w.w.Write(p)
	w.pos += int64(n)
	return err
}

func (w *Writer) flush() error {
	if len(w.buf) == 0 {
		return nil
	}

	for _, off := range w.groups[1:] {
		binary.LittleEndian.PutUint32(w.tmp, uint32(off))
		w.buf = append(w.buf, w.tmp[:4]...)
	}
	binary.LittleEndian.PutUint32(w.tmp, uint32(len(w.groups)))
	w.buf = append(w.buf, w.tmp[:4]...)

	block := append(w.buf, blockPlain)
	if w.o.Compression == SnappyCompression {
		w.snp = snappy.Encode(w.snp[:cap(w.snp)], w.buf)
		// keep snappy only when it saves at least a quarter
		if len(w.snp) < len(w.buf)-len(w.buf)/4 {
			block = append(w.snp, blockSnappy)
		}
	}

	w.index = append(w.index, blockInfo{MaxKey: w.lastKey, Offset: w.start})
	w.buf = w.buf[:0]
	w.groups = w.groups[:0]
	w.nblock = 0

	if err := w.write(block); err != nil {
		return err
	}
	w.start = w.pos
	return nil
}

package container

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// codec is a whole-file compression format selected by file suffix.
type codec struct {
	suffix    string
	newReader func(io.Reader) (io.ReadCloser, error)
	newWriter func(io.Writer) io.WriteCloser
}

var codecs = []codec{
	{
		suffix: ".gz",
		newReader: func(r io.Reader) (io.ReadCloser, error) {
			return gzip.NewReader(r)
		},
		newWriter: func(w io.Writer) io.WriteCloser {
			return gzip.NewWriter(w)
		},
	},
	{
		suffix: ".sz",
		newReader: func(r io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(snappy.NewReader(r)), nil
		},
		newWriter: func(w io.Writer) io.WriteCloser {
			return snappy.NewBufferedWriter(w)
		},
	},
}

func codecFor(name string) *codec {
	for i := range codecs {
		if strings.HasSuffix(name, codecs[i].suffix) {
			return &codecs[i]
		}
	}
	return nil
}

// PlainName returns the sibling path used for the uncompressed form of a
// compressed container, or name itself.
func PlainName(name string) string {
	if c := codecFor(name); c != nil {
		return strings.TrimSuffix(name, c.suffix)
	}
	return name
}

// IsCompressed reports whether name carries a whole-file compression
// suffix.
func IsCompressed(name string) bool { return codecFor(name) != nil }

// Open opens a container file. Compressed files are first expanded into
// their uncompressed sibling, which is removed again by Close or when
// opening fails.
func Open(name string) (*Reader, error) {
	plain := name
	cleanup := func() error { return nil }

	if c := codecFor(name); c != nil {
		plain = PlainName(name)
		cleanup = func() error { return removeFile(plain) }

		if err := expand(c, name, plain); err != nil {
			_ = cleanup()
			return nil, errors.Wrapf(err, "container: decompress %s", name)
		}
	}

	f, err := os.Open(plain)
	if err != nil {
		_ = cleanup()
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		_ = cleanup()
		return nil, err
	}

	r, err := NewReader(f, fi.Size())
	if err != nil {
		_ = f.Close()
		_ = cleanup()
		return nil, errors.Wrapf(err, "container: read %s", name)
	}

	r.closer = func() error {
		err := f.Close()
		if rerr := cleanup(); err == nil {
			err = rerr
		}
		return err
	}
	return r, nil
}

func expand(c *codec, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	zr, err := c.newReader(in)
	if err != nil {
		return err
	}
	defer zr.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, zr); err != nil {
		return err
	}
	return out.Close()
}

// --------------------------------------------------------------------

// File is a container file being written. Compressed targets are written
// to their uncompressed sibling first and compressed on Commit.
type File struct {
	f      *os.File
	target string
	plain  string
	codec  *codec
}

// CreateFile creates a container file for target, truncating any
// existing file.
func CreateFile(target string) (*File, error) {
	c := codecFor(target)
	plain := PlainName(target)

	f, err := os.Create(plain)
	if err != nil {
		return nil, err
	}
	return &File{f: f, target: target, plain: plain, codec: c}, nil
}

// Name returns the target name.
func (f *File) Name() string { return f.target }

// Write implements io.Writer.
func (f *File) Write(p []byte) (int, error) { return f.f.Write(p) }

// WriteAt implements io.WriterAt.
func (f *File) WriteAt(p []byte, off int64) (int, error) { return f.f.WriteAt(p, off) }

// Commit closes the file, compresses it when required and sets the
// modification time of the target to modTime.
func (f *File) Commit(modTime time.Time) error {
	if err := f.f.Close(); err != nil {
		f.discard()
		return err
	}

	if f.codec != nil {
		if err := os.Chtimes(f.plain, modTime, modTime); err != nil {
			f.discard()
			return err
		}
		if err := f.compress(); err != nil {
			f.discard()
			return errors.Wrapf(err, "container: compress %s", f.target)
		}
		if err := removeFile(f.plain); err != nil {
			return err
		}
	}
	return os.Chtimes(f.target, modTime, modTime)
}

// Abort closes the file and removes everything written so far.
func (f *File) Abort() error {
	_ = f.f.Close()
	return f.discard()
}

func (f *File) discard() error {
	err := removeFile(f.plain)
	if f.codec != nil {
		if rerr := removeFile(f.target); err == nil {
			err = rerr
		}
	}
	return err
}

func (f *File) compress() error {
	in, err := os.Open(f.plain)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(f.target)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := f.codec.newWriter(out)
	if _, err := io.Copy(zw, in); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return out.Close()
}

func removeFile(name string) error {
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ScratchPath returns a path in the directory of target for a temporary
// file named prefix + "." + base(target) + suffix.
func ScratchPath(target, prefix, suffix string) string {
	return filepath.Join(filepath.Dir(target), prefix+"."+filepath.Base(target)+suffix)
}

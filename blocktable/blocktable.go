package blocktable

import "github.com/pkg/errors"

var magic = []byte{0x6d, 0x64, 0x62, 0x74, 0x0b, 0x1e, 0x5a, 0xc3}

const footerLen = 24

const (
	blockPlain  = 0
	blockSnappy = 1
)

// ErrNotFound is returned by the reader when a key cannot be found.
var ErrNotFound = errors.New("blocktable: not found")

var (
	errClosed         = errors.New("blocktable: is closed")
	errBadMagic       = errors.New("blocktable: bad magic byte sequence")
	errBadCompression = errors.New("blocktable: bad compression codec")
	errShort          = errors.New("blocktable: table too short")
	errCorrupt        = errors.New("blocktable: corrupt data")
)

type blockInfo struct {
	MaxKey uint64 // last key in the block
	Offset int64  // block start
}

// Compression is the block compression codec.
type Compression byte

func (c Compression) isValid() bool {
	return c >= SnappyCompression && c < unknownCompression
}

// Supported compression codecs.
const (
	SnappyCompression Compression = iota
	NoCompression
	unknownCompression
)

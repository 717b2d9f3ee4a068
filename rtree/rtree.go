// Package rtree builds packed R-trees over (rectangle, id) pairs.
//
// Construction happens in two steps. A Builder collects entries in a scratch
// key/value store on disk, ordered by the Hilbert value of each rectangle's
// centre. Pack then groups consecutive entries bottom-up into nodes and
// writes them as a blocktable page file, leaves first and the root last.
// The page file is what a map container embeds per zoom level.
package rtree

import (
	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// Backend selects the scratch store used during construction.
type Backend string

// Supported scratch backends.
const (
	LevelDB Backend = "leveldb"
	Badger  Backend = "badger"
)

var (
	errBadMeta    = errors.New("rtree: bad meta record")
	errBadNode    = errors.New("rtree: bad node")
	errBadBackend = errors.New("rtree: unknown scratch backend")
	errPacked     = errors.New("rtree: builder is already packed")
)

// Options configure a Builder.
type Options struct {
	// Backend is the scratch store.
	// Default: LevelDB.
	Backend Backend

	// NodeCapacity is the maximum number of children per node.
	// Default: 16.
	NodeCapacity int
}

func (o *Options) norm() *Options {
	var oo Options
	if o != nil {
		oo = *o
	}

	if oo.Backend == "" {
		oo.Backend = LevelDB
	}
	if oo.NodeCapacity < 2 {
		oo.NodeCapacity = 16
	}
	return &oo
}

// NewRect returns the rectangle spanning the given tile coordinates.
func NewRect(minX, minY, maxX, maxY uint32) r2.Rect {
	return r2.Rect{
		X: r1.Interval{Lo: float64(minX), Hi: float64(maxX)},
		Y: r1.Interval{Lo: float64(minY), Hi: float64(maxY)},
	}
}

// Coords returns the integer tile bounds of a rectangle built by NewRect.
func Coords(rect r2.Rect) (minX, minY, maxX, maxY uint32) {
	return uint32(rect.X.Lo), uint32(rect.Y.Lo), uint32(rect.X.Hi), uint32(rect.Y.Hi)
}

// World is the rectangle covering every 31-bit tile coordinate.
var World = NewRect(0, 0, 1<<31-1, 1<<31-1)

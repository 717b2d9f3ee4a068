package mapdiff

import (
	"fmt"

	"github.com/pkg/errors"
)

// MaxZoom is the highest supported zoom level.
const MaxZoom = 31

// ZoomRange is an inclusive range of zoom levels.
type ZoomRange struct {
	Min, Max int
}

// NewZoomRange validates and returns a zoom range.
func NewZoomRange(min, max int) (ZoomRange, error) {
	zr := ZoomRange{Min: min, Max: max}
	if !zr.IsValid() {
		return zr, errors.Errorf("mapdiff: invalid zoom range %s", zr)
	}
	return zr, nil
}

// IsValid reports whether 0 <= Min <= Max <= MaxZoom.
func (zr ZoomRange) IsValid() bool {
	return zr.Min >= 0 && zr.Min <= zr.Max && zr.Max <= MaxZoom
}

// Contains reports whether zoom falls within the range.
func (zr ZoomRange) Contains(zoom int) bool {
	return zoom >= zr.Min && zoom <= zr.Max
}

func (zr ZoomRange) String() string {
	return fmt.Sprintf("%d-%d", zr.Min, zr.Max)
}

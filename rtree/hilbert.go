package rtree

import "github.com/golang/geo/r2"

const hilbertSide = uint32(1) << 31

// hilbert maps a point in the 31-bit tile plane to its distance along a
// Hilbert curve of the same order.
func hilbert(x, y uint32) uint64 {
	x &= hilbertSide - 1
	y &= hilbertSide - 1

	var d uint64
	for s := hilbertSide / 2; s > 0; s /= 2 {
		var rx, ry uint32
		if x&s != 0 {
			rx = 1
		}
		if y&s != 0 {
			ry = 1
		}
		d += uint64(s) * uint64(s) * uint64((3*rx)^ry)

		if ry == 0 {
			if rx == 1 {
				x = hilbertSide - 1 - x
				y = hilbertSide - 1 - y
			}
			x, y = y, x
		}
	}
	return d
}

func hilbertOf(rect r2.Rect) uint64 {
	c := rect.Center()
	return hilbert(uint32(c.X), uint32(c.Y))
}

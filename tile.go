package mapdiff

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// tileZoom is the zoom at which map tiles and tile coordinates coincide.
const tileZoom maptile.Zoom = 31

// TileLatLng converts a 31-bit tile position to the geographic position of
// its north-west corner on the spherical mercator projection.
func TileLatLng(p Point) s2.LatLng {
	b := maptile.New(p.X, p.Y, tileZoom).Bound()
	return s2.LatLngFromDegrees(b.Max.Lat(), b.Min.Lon())
}

// LatLngTile converts a geographic position to a 31-bit tile position.
// Positions beyond the mercator range snap to the outermost tile.
func LatLngTile(ll s2.LatLng) Point {
	t := maptile.At(orb.Point{ll.Lng.Degrees(), ll.Lat.Degrees()}, tileZoom)
	return Point{X: clampTile(t.X), Y: clampTile(t.Y)}
}

func clampTile(v uint32) uint32 {
	if v > MaxCoord {
		return MaxCoord
	}
	return v
}

// BoundsLatLng converts an inclusive tile rectangle to geographic bounds
// covering all of its tiles.
func BoundsLatLng(rect r2.Rect) s2.Rect {
	lo := maptile.New(uint32(rect.X.Lo), uint32(rect.Y.Lo), tileZoom).Bound()
	hi := maptile.New(uint32(rect.X.Hi), uint32(rect.Y.Hi), tileZoom).Bound()
	b := lo.Union(hi)

	return s2.RectFromLatLng(s2.LatLngFromDegrees(b.Min.Lat(), b.Min.Lon())).
		AddPoint(s2.LatLngFromDegrees(b.Max.Lat(), b.Max.Lon()))
}

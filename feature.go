package mapdiff

import (
	"sort"

	"github.com/bsm/mapdiff/container"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// Point is a position in 31-bit tile coordinates.
type Point = container.Point

// MaxCoord is the highest tile coordinate.
const MaxCoord = 1<<31 - 1

// Feature is a point, line or area with typed tags. Features are shared
// between stores and must not be modified once stored.
type Feature struct {
	ID         int64
	Points     []Point
	Area       bool
	MainType   uint32
	ExtraTypes []uint32
	Name       string // empty when absent
}

func featureOf(o *container.Object) *Feature { return (*Feature)(o) }

func (f *Feature) object() *container.Object { return (*container.Object)(f) }

// checkPoints rejects coordinates outside the 31-bit tile space.
func (f *Feature) checkPoints() error {
	for _, p := range f.Points {
		if p.X > MaxCoord || p.Y > MaxCoord {
			return errors.Errorf("mapdiff: point %d,%d outside tile range", p.X, p.Y)
		}
	}
	return nil
}

// Bounds returns the axis-aligned bounding box of the feature's points.
func (f *Feature) Bounds() r2.Rect {
	rect := r2.EmptyRect()
	for _, p := range f.Points {
		rect = rect.AddPoint(r2.Point{X: float64(p.X), Y: float64(p.Y)})
	}
	return rect
}

// Equal reports whether f, typed by rules, is binary-equal to other, typed
// by otherRules: same points, area flag, main type, set of extra types and
// name. Types are compared by tag and value when the tables differ.
func (f *Feature) Equal(rules *RuleTable, other *Feature, otherRules *RuleTable) bool {
	if f.Area != other.Area || f.Name != other.Name {
		return false
	}
	if len(f.Points) != len(other.Points) || len(f.ExtraTypes) != len(other.ExtraTypes) {
		return false
	}
	for i, p := range f.Points {
		if other.Points[i] != p {
			return false
		}
	}

	if rules == otherRules {
		return f.MainType == other.MainType && sameCodes(f.ExtraTypes, other.ExtraTypes)
	}

	if !sameRule(f.MainType, rules, other.MainType, otherRules) {
		return false
	}
	return sameRuleSet(f.ExtraTypes, rules, other.ExtraTypes, otherRules)
}

func sameCodes(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]uint32(nil), a...)
	bs := append([]uint32(nil), b...)
	sort.Slice(as, func(i, j int) bool { return as[i] < as[j] })
	sort.Slice(bs, func(i, j int) bool { return bs[i] < bs[j] })
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func sameRule(a uint32, at *RuleTable, b uint32, bt *RuleTable) bool {
	ra, aok := at.Lookup(a)
	rb, bok := bt.Lookup(b)
	if !aok || !bok {
		return !aok && !bok && a == b
	}
	return ra == rb
}

func sameRuleSet(a []uint32, at *RuleTable, b []uint32, bt *RuleTable) bool {
	if len(a) != len(b) {
		return false
	}

	counts := make(map[Rule]int, len(a))
	for _, code := range a {
		r, ok := at.Lookup(code)
		if !ok {
			return false
		}
		counts[r]++
	}
	for _, code := range b {
		r, ok := bt.Lookup(code)
		if !ok || counts[r] == 0 {
			return false
		}
		counts[r]--
	}
	return true
}

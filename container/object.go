package container

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Point is a position in 31-bit tile coordinates.
type Point struct {
	X, Y uint32
}

// Rule is one entry of an encoding rule table.
type Rule struct {
	Code  uint32
	Tag   string
	Value string
}

// Object is a decoded map object record. Type codes refer to the rule table
// of the map index the record was read from.
type Object struct {
	ID         int64
	Points     []Point
	Area       bool
	MainType   uint32
	ExtraTypes []uint32
	Name       string
}

// object record fields
const (
	fieldObjectID     protowire.Number = 1
	fieldObjectArea   protowire.Number = 2
	fieldObjectPoints protowire.Number = 3
	fieldObjectType   protowire.Number = 4
	fieldObjectExtra  protowire.Number = 5
	fieldObjectName   protowire.Number = 6
)

var errNoPoints = errors.New("container: object without points")

// AppendObject appends the encoded record of o to dst.
func AppendObject(dst []byte, o *Object) []byte {
	dst = protowire.AppendTag(dst, fieldObjectID, protowire.VarintType)
	dst = protowire.AppendVarint(dst, protowire.EncodeZigZag(o.ID))

	if o.Area {
		dst = protowire.AppendTag(dst, fieldObjectArea, protowire.VarintType)
		dst = protowire.AppendVarint(dst, protowire.EncodeBool(true))
	}

	// coordinates are delta encoded against the previous point
	var pts []byte
	var px, py int64
	for _, p := range o.Points {
		pts = protowire.AppendVarint(pts, protowire.EncodeZigZag(int64(p.X)-px))
		pts = protowire.AppendVarint(pts, protowire.EncodeZigZag(int64(p.Y)-py))
		px, py = int64(p.X), int64(p.Y)
	}
	dst = protowire.AppendTag(dst, fieldObjectPoints, protowire.BytesType)
	dst = protowire.AppendBytes(dst, pts)

	dst = protowire.AppendTag(dst, fieldObjectType, protowire.VarintType)
	dst = protowire.AppendVarint(dst, uint64(o.MainType))

	if len(o.ExtraTypes) != 0 {
		var extra []byte
		for _, t := range o.ExtraTypes {
			extra = protowire.AppendVarint(extra, uint64(t))
		}
		dst = protowire.AppendTag(dst, fieldObjectExtra, protowire.BytesType)
		dst = protowire.AppendBytes(dst, extra)
	}

	if o.Name != "" {
		dst = protowire.AppendTag(dst, fieldObjectName, protowire.BytesType)
		dst = protowire.AppendString(dst, o.Name)
	}
	return dst
}

// DecodeObject decodes a single object record.
func DecodeObject(src []byte) (*Object, error) {
	o := new(Object)
	for len(src) != 0 {
		num, typ, n := protowire.ConsumeTag(src)
		if n < 0 {
			return nil, errors.Wrap(protowire.ParseError(n), "container: object tag")
		}
		src = src[n:]

		switch {
		case num == fieldObjectID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(src)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), "container: object id")
			}
			o.ID = protowire.DecodeZigZag(v)
			src = src[n:]
		case num == fieldObjectArea && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(src)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), "container: object area")
			}
			o.Area = protowire.DecodeBool(v)
			src = src[n:]
		case num == fieldObjectPoints && typ == protowire.BytesType:
			b, n := protowire.ConsumeBytes(src)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), "container: object points")
			}
			pts, err := decodePoints(b)
			if err != nil {
				return nil, err
			}
			o.Points = pts
			src = src[n:]
		case num == fieldObjectType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(src)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), "container: object type")
			}
			o.MainType = uint32(v)
			src = src[n:]
		case num == fieldObjectExtra && typ == protowire.BytesType:
			b, n := protowire.ConsumeBytes(src)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), "container: object extra types")
			}
			for len(b) != 0 {
				v, m := protowire.ConsumeVarint(b)
				if m < 0 {
					return nil, errors.Wrap(protowire.ParseError(m), "container: object extra type")
				}
				o.ExtraTypes = append(o.ExtraTypes, uint32(v))
				b = b[m:]
			}
			src = src[n:]
		case num == fieldObjectName && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(src)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), "container: object name")
			}
			o.Name = s
			src = src[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, src)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), "container: object field")
			}
			src = src[n:]
		}
	}

	if len(o.Points) == 0 {
		return nil, errNoPoints
	}
	return o, nil
}

func decodePoints(b []byte) ([]Point, error) {
	var pts []Point
	var px, py int64
	for len(b) != 0 {
		dx, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, errors.Wrap(protowire.ParseError(n), "container: point x")
		}
		b = b[n:]

		dy, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, errors.Wrap(protowire.ParseError(n), "container: point y")
		}
		b = b[n:]

		px += protowire.DecodeZigZag(dx)
		py += protowire.DecodeZigZag(dy)
		pts = append(pts, Point{X: uint32(px), Y: uint32(py)})
	}
	return pts, nil
}

func appendRule(dst []byte, r Rule) []byte {
	var body []byte
	body = protowire.AppendTag(body, fieldRuleCode, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(r.Code))
	body = protowire.AppendTag(body, fieldRuleTag, protowire.BytesType)
	body = protowire.AppendString(body, r.Tag)
	body = protowire.AppendTag(body, fieldRuleValue, protowire.BytesType)
	body = protowire.AppendString(body, r.Value)

	dst = protowire.AppendTag(dst, fieldMapRule, protowire.BytesType)
	return protowire.AppendBytes(dst, body)
}

func decodeRule(src []byte) (Rule, error) {
	var r Rule
	for len(src) != 0 {
		num, typ, n := protowire.ConsumeTag(src)
		if n < 0 {
			return r, errors.Wrap(protowire.ParseError(n), "container: rule tag")
		}
		src = src[n:]

		switch {
		case num == fieldRuleCode && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(src)
			if n < 0 {
				return r, errors.Wrap(protowire.ParseError(n), "container: rule code")
			}
			r.Code = uint32(v)
			src = src[n:]
		case num == fieldRuleTag && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(src)
			if n < 0 {
				return r, errors.Wrap(protowire.ParseError(n), "container: rule tag value")
			}
			r.Tag = s
			src = src[n:]
		case num == fieldRuleValue && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(src)
			if n < 0 {
				return r, errors.Wrap(protowire.ParseError(n), "container: rule value")
			}
			r.Value = s
			src = src[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, src)
			if n < 0 {
				return r, errors.Wrap(protowire.ParseError(n), "container: rule field")
			}
			src = src[n:]
		}
	}
	return r, nil
}

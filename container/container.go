/*
Package container reads and writes map containers.

A container is a stream of protobuf-tagged fields. Sections are framed with
a fixed four byte big-endian length so they can be streamed to disk and
patched once their size is known.

    Container:
    +-------------+------------------+------------+-----+------------+---------------------+
    | 1: version  | 18: date created | section 1  | ... | section n  | 32: version confirm |
    +-------------+------------------+------------+-----+------------+---------------------+

    Section:
    +----------------------+------------------------+------+
    | tag (kind, bytes)    |  length (4 bytes, BE)  | body |
    +----------------------+------------------------+------+

Only map index sections are understood; other kinds are exposed as raw
sections and skipped. A map index holds a name, the encoding rules and one
level block per zoom range, each carrying its bounds, a packed spatial tree
and a blocktable payload of object records keyed by id.

Files ending in ".gz" or ".sz" are compressed as a whole with gzip or the
snappy framing format.
*/
package container

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Version is the container format version written by this package.
const Version = 2

// SectionKind identifies a section by its field number.
type SectionKind protowire.Number

// Known section kinds.
const (
	TransportSection SectionKind = 4
	MapSection       SectionKind = 6
	POISection       SectionKind = 8
	RoutingSection   SectionKind = 9
)

func (k SectionKind) String() string {
	switch k {
	case TransportSection:
		return "transport"
	case MapSection:
		return "map"
	case POISection:
		return "poi"
	case RoutingSection:
		return "routing"
	}
	return "unknown"
}

const (
	fieldVersion        protowire.Number = 1
	fieldDateCreated    protowire.Number = 18
	fieldVersionConfirm protowire.Number = 32
)

// map index fields
const (
	fieldMapName  protowire.Number = 2
	fieldMapRule  protowire.Number = 4
	fieldMapLevel protowire.Number = 5
)

// rule fields
const (
	fieldRuleCode  protowire.Number = 1
	fieldRuleTag   protowire.Number = 3
	fieldRuleValue protowire.Number = 5
)

// level fields
const (
	fieldLevelMinZoom protowire.Number = 1
	fieldLevelMaxZoom protowire.Number = 2
	fieldLevelLeft    protowire.Number = 3
	fieldLevelRight   protowire.Number = 4
	fieldLevelTop     protowire.Number = 5
	fieldLevelBottom  protowire.Number = 6
	fieldLevelTree    protowire.Number = 7
	fieldLevelPayload protowire.Number = 15
)

const frameLen = 4

var (
	// ErrTruncated is returned when a container ends unexpectedly.
	ErrTruncated = errors.New("container: truncated")
	// ErrBadFraming is returned when the framing or version confirmation
	// does not match.
	ErrBadFraming = errors.New("container: bad framing")
	// ErrUnsupportedVersion is returned for containers of another version.
	ErrUnsupportedVersion = errors.New("container: unsupported version")
)

var (
	errNesting  = errors.New("container: unbalanced section")
	errClosed   = errors.New("container: writer is closed")
	errTooLarge = errors.New("container: section exceeds 4GiB")
)

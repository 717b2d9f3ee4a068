package container_test

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/bsm/mapdiff/blocktable"
	"github.com/bsm/mapdiff/container"
	"github.com/bsm/mapdiff/rtree"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

var _ = Describe("Reader", func() {
	var dir, name string
	var subject *container.Reader

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "container-test")
		Expect(err).NotTo(HaveOccurred())

		name = filepath.Join(dir, "test.obf")
		seedFile(dir, name)

		subject, err = container.Open(name)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(subject.Close()).To(Succeed())
		rtree.ClearCache()
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	It("should parse the header", func() {
		Expect(subject.Version()).To(Equal(container.Version))
		Expect(subject.DateCreated()).To(Equal(int64(1500000000000)))
		Expect(subject.Sections()).To(HaveLen(1))
		Expect(subject.Sections()[0].Kind).To(Equal(container.MapSection))
	})

	It("should parse map indexes", func() {
		Expect(subject.MapIndexes()).To(HaveLen(1))
		mi := subject.MapIndexes()[0]
		Expect(mi.Name).To(Equal("Test"))
		Expect(mi.Rules).To(Equal(testRules))
		Expect(mi.Levels).To(HaveLen(2))
		Expect(mi.Levels[0].MinZoom).To(Equal(15))
		Expect(mi.Levels[0].MaxZoom).To(Equal(16))
		Expect(mi.Levels[0].Bounds).To(Equal(rtree.NewRect(5, 5, 120, 50)))
		Expect(mi.Levels[1].MinZoom).To(Equal(17))
		Expect(mi.Levels[1].Bounds).To(Equal(rtree.NewRect(10, 10, 10, 10)))
	})

	It("should query levels", func() {
		mi := subject.MapIndexes()[0]
		Expect(queryAll(subject, mi.Levels[0])).To(ConsistOf(testObjects[0], testObjects[1], testObjects[2]))
		Expect(queryAll(subject, mi.Levels[1])).To(ConsistOf(testObjects[0]))

		var ids []int64
		Expect(subject.Query(mi.Levels[0], rtree.NewRect(0, 0, 9, 9), 16, func(o *container.Object) error {
			ids = append(ids, o.ID)
			return nil
		})).To(Succeed())
		Expect(ids).To(ConsistOf(int64(12)))
	})

	It("should query payloads spanning many blocks", func() {
		objs := make([]*container.Object, 0, 300)
		for i := 0; i < 300; i++ {
			x, y := uint32(i%20)*10, uint32(i/20)*10
			objs = append(objs, &container.Object{
				ID:       int64(i*3 - 450),
				Points:   []container.Point{{X: x, Y: y}, {X: x + 5, Y: y + 5}},
				MainType: 1,
			})
		}

		many := filepath.Join(dir, "many.obf")
		f, err := container.CreateFile(many)
		Expect(err).NotTo(HaveOccurred())
		w := container.NewWriter(f, &container.WriterOptions{
			Payload: &blocktable.WriterOptions{BlockSize: 128, RestartInterval: 4},
		})
		Expect(w.WriteHeader(1500000000000)).To(Succeed())
		Expect(w.BeginMapIndex("Many")).To(Succeed())
		Expect(w.WriteRules(testRules)).To(Succeed())
		writeLevel(w, dir, 15, 16, objs)
		Expect(w.EndMapIndex()).To(Succeed())
		Expect(w.Close()).To(Succeed())
		Expect(f.Commit(timeOf(1500000000000))).To(Succeed())

		r, err := container.Open(many)
		Expect(err).NotTo(HaveOccurred())
		defer r.Close()

		lvl := r.MapIndexes()[0].Levels[0]
		Expect(queryAll(r, lvl)).To(ConsistOf(objs))

		// rows 2-3, columns 0-1
		var ids []int64
		Expect(r.Query(lvl, rtree.NewRect(0, 20, 15, 35), 15, func(o *container.Object) error {
			ids = append(ids, o.ID)
			return nil
		})).To(Succeed())
		Expect(ids).To(ConsistOf(
			int64(40*3-450), int64(41*3-450),
			int64(60*3-450), int64(61*3-450),
		))
	})

	It("should not query outside the zoom range", func() {
		mi := subject.MapIndexes()[0]
		Expect(subject.Query(mi.Levels[0], rtree.World, 14, func(*container.Object) error {
			Fail("unexpected object")
			return nil
		})).To(Succeed())
	})

	Describe("framing", func() {
		var raw []byte

		BeforeEach(func() {
			var err error
			raw, err = os.ReadFile(name)
			Expect(err).NotTo(HaveOccurred())
		})

		read := func(b []byte) error {
			_, err := container.NewReader(bytes.NewReader(b), int64(len(b)))
			return err
		}

		It("should detect truncation", func() {
			Expect(read(nil)).To(MatchError(container.ErrTruncated))
			Expect(read(raw[:3])).To(MatchError(container.ErrTruncated))
			Expect(read(raw[:len(raw)-2])).To(MatchError(container.ErrTruncated))
		})

		It("should detect a mismatching confirmation", func() {
			b := append([]byte(nil), raw...)
			b[len(b)-1] = byte(container.Version + 1)
			Expect(read(b)).To(MatchError(container.ErrBadFraming))
		})

		It("should reject other versions", func() {
			var b []byte
			b = protowire.AppendTag(b, 1, protowire.VarintType)
			b = protowire.AppendVarint(b, 99)
			Expect(errors.Cause(read(b))).To(Equal(container.ErrUnsupportedVersion))
		})

		It("should reject oversized field lengths", func() {
			var body []byte
			body = protowire.AppendTag(body, 4, protowire.BytesType)
			body = protowire.AppendVarint(body, ^uint64(0))

			var b []byte
			b = protowire.AppendTag(b, 1, protowire.VarintType)
			b = protowire.AppendVarint(b, container.Version)
			b = protowire.AppendTag(b, protowire.Number(container.MapSection), protowire.BytesType)
			b = binary.BigEndian.AppendUint32(b, uint32(len(body)))
			b = append(b, body...)
			b = protowire.AppendTag(b, 32, protowire.VarintType)
			b = protowire.AppendVarint(b, container.Version)

			Expect(read(b)).To(MatchError(container.ErrTruncated))
		})

		It("should skip unknown sections", func() {
			var b []byte
			b = protowire.AppendTag(b, 1, protowire.VarintType)
			b = protowire.AppendVarint(b, container.Version)
			b = protowire.AppendTag(b, protowire.Number(container.POISection), protowire.BytesType)
			b = binary.BigEndian.AppendUint32(b, 3)
			b = append(b, "poi"...)
			b = protowire.AppendTag(b, 32, protowire.VarintType)
			b = protowire.AppendVarint(b, container.Version)

			r, err := container.NewReader(bytes.NewReader(b), int64(len(b)))
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Sections()).To(HaveLen(1))
			Expect(r.Sections()[0].Kind).To(Equal(container.POISection))
			Expect(r.Sections()[0].Length).To(Equal(int64(3)))
			Expect(r.MapIndexes()).To(BeEmpty())
		})
	})
})

package blocktable_test

import (
	"bytes"
	"fmt"

	"github.com/bsm/mapdiff/blocktable"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Reader", func() {
	var subject *blocktable.Reader

	BeforeEach(func() {
		var err error
		subject, err = seedReader(100, blocktable.NoCompression)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should init", func() {
		Expect(subject.Len()).To(Equal(uint64(100)))
		Expect(subject.NumBlocks()).To(BeNumerically(">", 1))
	})

	It("should reject garbage", func() {
		_, err := blocktable.NewReader(bytes.NewReader([]byte("short")), 5)
		Expect(err).To(MatchError(`blocktable: table too short`))

		junk := bytes.Repeat([]byte{1}, 64)
		_, err = blocktable.NewReader(bytes.NewReader(junk), int64(len(junk)))
		Expect(err).To(MatchError(`blocktable: bad magic byte sequence`))
	})

	It("should Get/Append", func() {
		for i := uint64(0); i <= 396; i += 4 {
			sfx := fmt.Sprintf("%04d", i)
			Expect(subject.Get(i)).To(HaveSuffix(sfx), "for %d", i)
		}

		_, err := subject.Get(1)
		Expect(err).To(MatchError(blocktable.ErrNotFound))
		_, err = subject.Get(395)
		Expect(err).To(MatchError(blocktable.ErrNotFound))
		_, err = subject.Get(400)
		Expect(err).To(MatchError(blocktable.ErrNotFound))

		dst, err := subject.Append([]byte("x"), 8)
		Expect(err).NotTo(HaveOccurred())
		Expect(dst).To(HavePrefix("x"))
		Expect(dst).To(HaveSuffix("0008"))
	})

	It("should read snappy compressed tables", func() {
		compressed, err := seedReader(300, blocktable.SnappyCompression)
		Expect(err).NotTo(HaveOccurred())
		Expect(compressed.Get(1196)).To(HaveSuffix("1196"))
	})

	Describe("Iterator", func() {
		It("should iterate from beginning", func() {
			iter, err := subject.Seek(0)
			Expect(err).NotTo(HaveOccurred())
			defer iter.Release()

			var keys []uint64
			for iter.Next() {
				Expect(iter.Value()).To(HaveSuffix(fmt.Sprintf("%04d", iter.Key())))
				Expect(decodeID(iter.Value())).To(Equal(int64(iter.Key())))
				keys = append(keys, iter.Key())
			}
			Expect(iter.Err()).NotTo(HaveOccurred())
			Expect(keys).To(HaveLen(100))
			Expect(keys[0]).To(Equal(uint64(0)))
			Expect(keys[99]).To(Equal(uint64(396)))
		})

		It("should iterate from middle", func() {
			iter, err := subject.Seek(199)
			Expect(err).NotTo(HaveOccurred())
			defer iter.Release()

			Expect(iter.Next()).To(BeTrue())
			Expect(iter.Key()).To(Equal(uint64(200)))
			Expect(iter.Next()).To(BeTrue())
			Expect(iter.Key()).To(Equal(uint64(204)))
		})

		It("should iterate from last entry", func() {
			iter, err := subject.Seek(396)
			Expect(err).NotTo(HaveOccurred())
			defer iter.Release()

			Expect(iter.Next()).To(BeTrue())
			Expect(iter.Key()).To(Equal(uint64(396)))
			Expect(iter.Next()).To(BeFalse())
			Expect(iter.Err()).NotTo(HaveOccurred())
		})

		It("should advance across blocks", func() {
			iter, err := subject.Seek(8)
			Expect(err).NotTo(HaveOccurred())
			defer iter.Release()

			for _, key := range []uint64{8, 12, 100, 101, 352, 396} {
				Expect(iter.Advance(key)).To(BeTrue(), "for %d", key)
				want := (key + 3) / 4 * 4
				Expect(iter.Key()).To(Equal(want))
				Expect(decodeID(iter.Value())).To(Equal(int64(want)))
			}
			Expect(iter.Advance(397)).To(BeFalse())
			Expect(iter.Err()).NotTo(HaveOccurred())
		})

		It("should not advance backwards", func() {
			iter, err := subject.Seek(200)
			Expect(err).NotTo(HaveOccurred())
			defer iter.Release()

			Expect(iter.Advance(200)).To(BeTrue())
			Expect(iter.Advance(0)).To(BeTrue())
			Expect(iter.Key()).To(Equal(uint64(204)))
		})

		It("should not iterate when past the end", func() {
			iter, err := subject.Seek(1000)
			Expect(err).NotTo(HaveOccurred())
			defer iter.Release()

			Expect(iter.Next()).To(BeFalse())
			Expect(iter.Err()).NotTo(HaveOccurred())
		})
	})
})

package rtree_test

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/bsm/mapdiff/rtree"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
)

var _ = Describe("Tree", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "rtree-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		rtree.ClearCache()
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	for _, backend := range []rtree.Backend{rtree.LevelDB, rtree.Badger} {
		backend := backend

		Context("with "+string(backend)+" scratch", func() {
			var subject *rtree.Tree

			BeforeEach(func() {
				var err error
				subject, err = seedTree(dir, 20, &rtree.Options{Backend: backend, NodeCapacity: 4})
				Expect(err).NotTo(HaveOccurred())
			})

			AfterEach(func() {
				Expect(subject.Close()).To(Succeed())
			})

			It("should pack", func() {
				Expect(subject.Len()).To(Equal(400))
				Expect(subject.Height()).To(Equal(5))
				Expect(dirEntries(dir)).To(ConsistOf("pack.rtree"))
			})

			It("should compute root bounds", func() {
				bounds, ok, err := subject.Bounds()
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(BeTrue())
				Expect(bounds).To(Equal(rtree.NewRect(0, 0, 191, 191)))
			})

			It("should search", func() {
				Expect(searchIDs(subject, rtree.NewRect(0, 0, 5, 5))).To(Equal([]int64{0}))
				Expect(searchIDs(subject, rtree.NewRect(9, 9, 10, 10))).To(Equal([]int64{21}))
				Expect(searchIDs(subject, rtree.NewRect(5, 5, 8, 8))).To(BeEmpty())
				Expect(searchIDs(subject, rtree.NewRect(0, 185, 15, 200))).To(Equal([]int64{380, 381}))
				Expect(searchIDs(subject, rtree.World)).To(HaveLen(400))
			})

			It("should stop on callback errors", func() {
				stop := errors.New("stop")
				seen := 0
				err := subject.Search(rtree.World, func(int64) error {
					seen++
					return stop
				})
				Expect(err).To(MatchError(stop))
				Expect(seen).To(Equal(1))
			})

			It("should re-open from raw bytes", func() {
				buf := new(bytes.Buffer)
				n, err := subject.WriteTo(buf)
				Expect(err).NotTo(HaveOccurred())
				Expect(n).To(Equal(subject.Size()))

				reopened, err := rtree.Open(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
				Expect(err).NotTo(HaveOccurred())
				Expect(reopened.Len()).To(Equal(400))
				Expect(searchIDs(reopened, rtree.NewRect(190, 190, 191, 191))).To(Equal([]int64{399}))
			})

			It("should cache nodes until cleared", func() {
				rtree.ClearCache()
				Expect(searchIDs(subject, rtree.World)).To(HaveLen(400))
				Expect(rtree.CacheLen()).To(BeNumerically(">", 0))

				rtree.ClearCache()
				Expect(rtree.CacheLen()).To(Equal(0))
			})
		})
	}

	It("should pack empty trees", func() {
		b, err := rtree.NewBuilder(filepath.Join(dir, "nonpack.rtree"), nil)
		Expect(err).NotTo(HaveOccurred())
		defer b.Close()

		tree, err := b.Pack(filepath.Join(dir, "pack.rtree"))
		Expect(err).NotTo(HaveOccurred())
		defer tree.Close()

		Expect(tree.Len()).To(Equal(0))
		_, ok, err := tree.Bounds()
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
		Expect(searchIDs(tree, rtree.World)).To(BeEmpty())
	})

	It("should pack a single entry into a leaf root", func() {
		b, err := rtree.NewBuilder(filepath.Join(dir, "nonpack.rtree"), nil)
		Expect(err).NotTo(HaveOccurred())
		defer b.Close()

		Expect(b.Insert(rtree.NewRect(7, 8, 7, 8), -42)).To(Succeed())
		tree, err := b.Pack(filepath.Join(dir, "pack.rtree"))
		Expect(err).NotTo(HaveOccurred())
		defer tree.Close()

		Expect(tree.Height()).To(Equal(1))
		Expect(searchIDs(tree, rtree.NewRect(7, 8, 7, 8))).To(Equal([]int64{-42}))
	})

	It("should refuse use after pack", func() {
		b, err := rtree.NewBuilder(filepath.Join(dir, "nonpack.rtree"), nil)
		Expect(err).NotTo(HaveOccurred())
		tree, err := b.Pack(filepath.Join(dir, "pack.rtree"))
		Expect(err).NotTo(HaveOccurred())
		Expect(tree.Close()).To(Succeed())

		Expect(b.Insert(rtree.NewRect(1, 1, 2, 2), 1)).To(MatchError(`rtree: builder is already packed`))
		Expect(b.Close()).To(Succeed())
	})

	It("should remove the scratch store on close", func() {
		scratch := filepath.Join(dir, "nonpack.rtree")
		b, err := rtree.NewBuilder(scratch, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(b.Insert(rtree.NewRect(1, 1, 2, 2), 1)).To(Succeed())
		Expect(scratch).To(BeADirectory())

		Expect(b.Close()).To(Succeed())
		Expect(scratch).NotTo(BeAnExistingFile())
	})

	It("should reject unknown backends", func() {
		_, err := rtree.NewBuilder(filepath.Join(dir, "nonpack.rtree"), &rtree.Options{Backend: "bolt"})
		Expect(err).To(MatchError(`rtree: unknown scratch backend`))
	})

	It("should reject corrupt trees", func() {
		junk := bytes.Repeat([]byte{7}, 40)
		_, err := rtree.Open(bytes.NewReader(junk), int64(len(junk)))
		Expect(err).To(HaveOccurred())
	})
})

package container_test

import (
	"github.com/bsm/mapdiff/container"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Object", func() {
	It("should encode and decode", func() {
		for _, o := range testObjects {
			rec := container.AppendObject(nil, o)
			Expect(container.DecodeObject(rec)).To(Equal(o))
		}
	})

	It("should delta encode coordinates compactly", func() {
		o := &container.Object{ID: 1, MainType: 1}
		for i := 0; i < 100; i++ {
			o.Points = append(o.Points, container.Point{X: 1<<30 + uint32(i), Y: 1<<30 - uint32(i)})
		}
		Expect(len(container.AppendObject(nil, o))).To(BeNumerically("<", 250))
	})

	It("should reject records without points", func() {
		rec := container.AppendObject(nil, &container.Object{ID: 1, MainType: 1})
		_, err := container.DecodeObject(rec)
		Expect(err).To(MatchError(`container: object without points`))
	})

	It("should reject truncated records", func() {
		rec := container.AppendObject(nil, testObjects[0])
		_, err := container.DecodeObject(rec[:len(rec)-3])
		Expect(err).To(HaveOccurred())
	})
})

package mapdiff_test

import (
	"github.com/bsm/mapdiff"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("ZoomRange", func() {
	It("should validate", func() {
		zr, err := mapdiff.NewZoomRange(15, 16)
		Expect(err).NotTo(HaveOccurred())
		Expect(zr).To(Equal(z1516))
		Expect(zr.String()).To(Equal("15-16"))

		_, err = mapdiff.NewZoomRange(16, 15)
		Expect(err).To(MatchError("mapdiff: invalid zoom range 16-15"))
		_, err = mapdiff.NewZoomRange(-1, 3)
		Expect(err).To(HaveOccurred())
		_, err = mapdiff.NewZoomRange(10, 32)
		Expect(err).To(HaveOccurred())
	})

	It("should check containment", func() {
		Expect(z1416.Contains(14)).To(BeTrue())
		Expect(z1416.Contains(16)).To(BeTrue())
		Expect(z1416.Contains(13)).To(BeFalse())
		Expect(z1416.Contains(17)).To(BeFalse())
	})
})

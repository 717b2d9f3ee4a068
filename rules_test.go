package mapdiff_test

import (
	"github.com/bsm/mapdiff"
	"github.com/bsm/mapdiff/container"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("RuleTable", func() {
	var subject *mapdiff.RuleTable

	BeforeEach(func() {
		subject = mapdiff.NewRuleTable()
		Expect(subject.Register(1, "highway", "primary")).To(Succeed())
		Expect(subject.Register(4, "building", "yes")).To(Succeed())
	})

	It("should register", func() {
		Expect(subject.Len()).To(Equal(2))
		Expect(subject.MaxCode()).To(Equal(uint32(4)))
		rule, ok := subject.Lookup(4)
		Expect(ok).To(BeTrue())
		Expect(rule).To(Equal(mapdiff.Rule{Tag: "building", Value: "yes"}))

		_, ok = subject.Lookup(2)
		Expect(ok).To(BeFalse())
	})

	It("should reject conflicting bindings", func() {
		Expect(subject.Register(0, "a", "b")).To(MatchError("mapdiff: rule code 0 is reserved"))
		Expect(subject.Register(1, "highway", "primary")).To(Succeed())
		Expect(subject.Register(1, "highway", "secondary")).To(MatchError("mapdiff: rule code 1 already bound to highway=primary"))
	})

	It("should add", func() {
		Expect(subject.Add("highway", "primary")).To(Equal(uint32(1)))
		Expect(subject.Add("oneway", "yes")).To(Equal(uint32(5)))
		code, ok := subject.Code("oneway", "yes")
		Expect(ok).To(BeTrue())
		Expect(code).To(Equal(uint32(5)))
		Expect(subject.Len()).To(Equal(3))
	})

	It("should list rules by code", func() {
		subject.Add("oneway", "yes")
		Expect(subject.Rules()).To(Equal([]container.Rule{
			{Code: 1, Tag: "highway", Value: "primary"},
			{Code: 4, Tag: "building", Value: "yes"},
			{Code: 5, Tag: "oneway", Value: "yes"},
		}))
	})

	It("should adopt codes", func() {
		other := mapdiff.NewRuleTable()
		Expect(other.Register(1, "building", "yes")).To(Succeed())
		Expect(other.Register(2, "shop", "bakery")).To(Succeed())

		Expect(mapdiff.AdoptCode(1, other, subject)).To(Equal(uint32(4)))
		Expect(mapdiff.AdoptCode(2, other, subject)).To(Equal(uint32(5)))
		Expect(mapdiff.AdoptCode(2, other, subject)).To(Equal(uint32(5)))
		Expect(mapdiff.AdoptCode(7, subject, subject)).To(Equal(uint32(7)))

		_, err := mapdiff.AdoptCode(3, other, subject)
		Expect(err).To(MatchError("mapdiff: unknown rule code 3"))
	})
})

package blocktable_test

import (
	"bytes"
	"math/rand"

	"github.com/bsm/mapdiff/blocktable"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Writer", func() {
	var buf *bytes.Buffer
	var subject *blocktable.Writer
	var testdata = []byte("testdata")

	BeforeEach(func() {
		buf = new(bytes.Buffer)
		subject = blocktable.NewWriter(buf, nil)
	})

	AfterEach(func() {
		_ = subject.Close()
	})

	It("should write empty", func() {
		Expect(subject.Close()).To(Succeed())
		Expect(buf.Len()).To(Equal(24))
	})

	It("should refuse writes after close", func() {
		Expect(subject.Close()).To(Succeed())
		Expect(subject.Append(1, testdata)).To(MatchError(`blocktable: is closed`))
		Expect(subject.Close()).To(MatchError(`blocktable: is closed`))
	})

	It("should prevent out-of-order appends", func() {
		Expect(subject.Append(20, testdata)).To(Succeed())
		Expect(subject.Append(19, testdata)).To(MatchError(`blocktable: out-of-order append, 19 must be > 20`))
		Expect(subject.Append(22, testdata)).To(Succeed())
		Expect(subject.Append(22, testdata)).To(MatchError(`blocktable: out-of-order append, 22 must be > 22`))
		Expect(subject.Append(23, testdata)).To(Succeed())
		Expect(subject.Len()).To(Equal(uint64(3)))
	})

	It("should accept zero as the first key", func() {
		Expect(subject.Append(0, testdata)).To(Succeed())
		Expect(subject.Append(0, testdata)).To(HaveOccurred())
	})

	It("should compress well-compressable data", func() {
		val := bytes.Repeat(testdata, 16)
		for key := uint64(0); key < 10000; key += 2 {
			Expect(subject.Append(key, val)).To(Succeed())
		}
		Expect(subject.Close()).To(Succeed())
		Expect(buf.Len()).To(BeNumerically("<", 5000*len(val)/4))
		Expect(buf.String()[buf.Len()-8:]).To(Equal("\x6d\x64\x62\x74\x0b\x1e\x5a\xc3"))
	})

	It("should store incompressable data plain", func() {
		rnd := rand.New(rand.NewSource(1))
		val := make([]byte, 128)
		for key := uint64(0); key < 1000; key++ {
			_, err := rnd.Read(val)
			Expect(err).NotTo(HaveOccurred())
			Expect(subject.Append(key, val)).To(Succeed())
		}
		Expect(subject.Close()).To(Succeed())
		Expect(buf.Len()).To(BeNumerically(">", 1000*128))
	})
})

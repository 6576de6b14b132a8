package sse

import (
	"errors"
	"io"
	"strings"
	"testing/iotest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func drain(r *Reader) ([]string, error) {
	var out []string
	for {
		rec, err := r.Next()
		if err != nil {
			return out, err
		}
		out = append(out, rec.Data)
	}
}

var _ = Describe("Reader", func() {
	It("reads OpenAI-style chunks up to EOF", func() {
		input := "data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\n" +
			"data: {\"choices\":[{\"delta\":{\"content\":\" there\"}}]}\n\n" +
			"data: [DONE]\n\n"
		r := NewReader(strings.NewReader(input))

		out, err := drain(r)
		Expect(err).To(MatchError(io.EOF))
		Expect(out).To(HaveLen(3))
		Expect(out[2]).To(Equal(DoneSentinel))
		Expect(r.Fragments).To(BeNumerically(">=", 1))
	})

	It("reassembles records delivered one byte per read", func() {
		input := "data: alpha\n\ndata: beta\n\n"
		r := NewReader(iotest.OneByteReader(strings.NewReader(input)))

		out, err := drain(r)
		Expect(err).To(MatchError(io.EOF))
		Expect(out).To(Equal([]string{"alpha", "beta"}))
		Expect(r.Fragments).To(Equal(len(input)))
	})

	It("flushes a final line without a newline", func() {
		r := NewReader(strings.NewReader("data: one\ndata: [DONE]"))

		out, err := drain(r)
		Expect(err).To(MatchError(io.EOF))
		Expect(out).To(Equal([]string{"one", DoneSentinel}))
	})

	It("returns records read before a transport error, then the error", func() {
		boom := errors.New("connection reset")
		src := io.MultiReader(strings.NewReader("data: partial\n"), iotest.ErrReader(boom))
		r := NewReader(src)

		rec, err := r.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Data).To(Equal("partial"))

		_, err = r.Next()
		Expect(err).To(MatchError(boom))
	})

	It("returns io.EOF on empty input", func() {
		_, err := NewReader(strings.NewReader("")).Next()
		Expect(err).To(MatchError(io.EOF))
	})
})

package sse

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Reader", func() {
	Describe("Next", func() {
		Context("with standard SSE events", func() {
			It("parses a single event", func() {
				src := strings.NewReader("data: hello world\n\n")
				r := NewReader(src)

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("hello world"))
				Expect(ev.Type).To(BeEmpty())
				Expect(ev.ID).To(BeEmpty())

				ev, err = r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev).To(BeNil())
			})

			It("parses multiple events", func() {
				src := strings.NewReader("data: first\n\ndata: second\n\n")
				r := NewReader(src)

				ev1, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev1.Data).To(Equal("first"))

				ev2, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev2.Data).To(Equal("second"))

				ev3, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev3).To(BeNil())
			})

			It("parses event type", func() {
				src := strings.NewReader("event: token\ndata: {\"token\":\"hi\"}\n\n")
				r := NewReader(src)

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Type).To(Equal("token"))
				Expect(ev.Data).To(Equal("{\"token\":\"hi\"}"))
			})

			It("parses event ID", func() {
				src := strings.NewReader("id: 42\ndata: hello\n\n")
				r := NewReader(src)

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.ID).To(Equal("42"))
				Expect(ev.Data).To(Equal("hello"))
			})

			It("joins multiple data lines with newline", func() {
				src := strings.NewReader("data: line one\ndata: line two\n\n")
				r := NewReader(src)

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("line one\nline two"))
			})
		})

		Context("with irregular input", func() {
			It("skips comment lines", func() {
				src := strings.NewReader(": keep-alive\ndata: payload\n\n")
				r := NewReader(src)

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("payload"))
			})

			It("skips leading blank lines", func() {
				src := strings.NewReader("\n\ndata: payload\n\n")
				r := NewReader(src)

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("payload"))
			})

			It("yields an in-progress event when the stream ends without a blank line", func() {
				src := strings.NewReader("data: trailing")
				r := NewReader(src)

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("trailing"))

				ev, err = r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev).To(BeNil())
			})

			It("returns nil for an empty stream", func() {
				r := NewReader(strings.NewReader(""))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev).To(BeNil())
			})
		})
	})
})

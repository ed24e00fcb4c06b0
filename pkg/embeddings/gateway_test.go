package embeddings_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/coldbrewlabs/engram/pkg/embeddings"
	testutils "github.com/coldbrewlabs/engram/pkg/utils/test"
)

var _ = Describe("Gateway", func() {
	var (
		embedder *testutils.MockEmbedder
		gateway  *embeddings.Gateway
		ctx      context.Context
	)

	BeforeEach(func() {
		embedder = testutils.NewMockEmbedder()
		gateway = embeddings.NewGateway(embedder, 8, zap.NewNop())
		ctx = context.Background()
	})

	It("zero-pads native vectors up to the configured width", func() {
		embedder.Embeddings["hello"] = []float32{1, 2, 3}

		vec, err := gateway.Embed(ctx, "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(vec).To(HaveLen(8))
		Expect(vec[:3]).To(Equal([]float32{1, 2, 3}))
		Expect(vec[3:]).To(Equal([]float32{0, 0, 0, 0, 0}))
	})

	It("returns vectors unchanged when the native width matches", func() {
		native := []float32{1, 2, 3, 4, 5, 6, 7, 8}
		embedder.Embeddings["exact"] = native

		vec, err := gateway.Embed(ctx, "exact")
		Expect(err).NotTo(HaveOccurred())
		Expect(vec).To(Equal(native))
	})

	It("rejects vectors wider than the configured width", func() {
		embedder.Embeddings["wide"] = make([]float32, 9)

		vec, err := gateway.Embed(ctx, "wide")
		Expect(vec).To(BeNil())

		var widthErr embeddings.ErrWidthExceeded
		Expect(err).To(BeAssignableToTypeOf(widthErr))
		Expect(err.(embeddings.ErrWidthExceeded).Native).To(Equal(9))
		Expect(err.(embeddings.ErrWidthExceeded).Width).To(Equal(8))
	})

	It("skips empty input without calling the backend", func() {
		embedder.FailOn = ""

		vec, err := gateway.Embed(ctx, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(vec).To(BeNil())
	})

	It("propagates backend failures", func() {
		embedder.FailOn = "boom"

		vec, err := gateway.Embed(ctx, "boom")
		Expect(err).To(HaveOccurred())
		Expect(vec).To(BeNil())
	})

	It("treats an empty backend vector as no embedding", func() {
		embedder.Embeddings["void"] = []float32{}

		vec, err := gateway.Embed(ctx, "void")
		Expect(err).NotTo(HaveOccurred())
		Expect(vec).To(BeNil())
	})

	It("falls back to the default width when none is configured", func() {
		g := embeddings.NewGateway(embedder, 0, zap.NewNop())
		Expect(g.Width()).To(Equal(embeddings.DefaultWidth))
	})
})

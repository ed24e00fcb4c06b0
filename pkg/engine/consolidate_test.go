package engine_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/coldbrewlabs/engram/pkg/embeddings"
	"github.com/coldbrewlabs/engram/pkg/engine"
	"github.com/coldbrewlabs/engram/pkg/storage"
	"github.com/coldbrewlabs/engram/pkg/storage/inmemory"
	testutils "github.com/coldbrewlabs/engram/pkg/utils/test"
)

const consolidateMarker = "memory consolidation agent"

var _ = Describe("Consolidate", func() {
	var (
		store     *inmemory.Driver
		generator *testutils.ScriptedClient
		embedder  *testutils.MockEmbedder
		eng       *engine.Engine
		ctx       context.Context
	)

	BeforeEach(func() {
		store = inmemory.NewDriver()
		generator = testutils.NewScriptedClient("")
		generator.RespondWith(consolidateMarker, "Alice plans trips and orders widgets.")
		embedder = testutils.NewMockEmbedder()

		var err error
		eng, err = engine.New(engine.Options{
			Store:     store,
			Generator: generator,
			Embedder:  embeddings.NewGateway(embedder, 8, zap.NewNop()),
			Publisher: testutils.NewMockPublisher(),
			Logger:    zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())

		ctx = context.Background()
	})

	seed := func(sessionID string, lines ...string) {
		for i, line := range lines {
			role := storage.RoleUser
			if i%2 == 1 {
				role = storage.RoleAssistant
			}
			_, err := store.AppendEvent(ctx, sessionID, role, line)
			Expect(err).NotTo(HaveOccurred())
		}
	}

	It("is a no-op for an empty session set", func() {
		summary, err := eng.Consolidate(ctx, "alice", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary).To(BeEmpty())
		Expect(store.SummaryCount()).To(BeZero())
		Expect(generator.CallCount()).To(BeZero())
	})

	It("is a no-op when the sessions have no events", func() {
		summary, err := eng.Consolidate(ctx, "alice", []string{"empty-1", "empty-2"})
		Expect(err).NotTo(HaveOccurred())
		Expect(summary).To(BeEmpty())
		Expect(store.SummaryCount()).To(BeZero())
	})

	It("stores one summary row spanning the session window", func() {
		seed("s1", "I want to go to Japan", "Great choice!")
		seed("s2", "Acme ordered widgets", "Noted.")

		summary, err := eng.Consolidate(ctx, "alice", []string{"s1", "s2"})
		Expect(err).NotTo(HaveOccurred())
		Expect(summary).To(Equal("Alice plans trips and orders widgets."))

		stored, err := store.RecentSummaries(ctx, "alice", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored).To(HaveLen(1))
		Expect(stored[0].SessionWindow).To(Equal(2))
		Expect(stored[0].Summary).To(Equal(summary))
		Expect(stored[0].Embedding).To(HaveLen(8))
	})

	It("feeds the model the interleaved transcript", func() {
		seed("s1", "question one", "answer one")

		_, err := eng.Consolidate(ctx, "alice", []string{"s1"})
		Expect(err).NotTo(HaveOccurred())

		Expect(generator.Calls).To(HaveLen(1))
		prompt := generator.Calls[0][0].Text
		Expect(prompt).To(ContainSubstring("[user] question one"))
		Expect(prompt).To(ContainSubstring("[assistant] answer one"))
	})

	It("accumulates summaries instead of replacing them", func() {
		seed("s1", "hello", "hi")

		for i := 0; i < 2; i++ {
			_, err := eng.Consolidate(ctx, "alice", []string{"s1"})
			Expect(err).NotTo(HaveOccurred())
		}

		Expect(store.SummaryCount()).To(Equal(2))
	})

	It("stores the summary without a vector when embedding fails", func() {
		seed("s1", "hello", "hi")
		embedder.FailOn = "Alice plans trips and orders widgets."

		summary, err := eng.Consolidate(ctx, "alice", []string{"s1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(summary).NotTo(BeEmpty())

		stored, err := store.RecentSummaries(ctx, "alice", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored).To(HaveLen(1))
		Expect(stored[0].Embedding).To(BeNil())
	})

	It("stores no row when the synthesis comes back empty", func() {
		seed("s1", "hello", "hi")

		client := testutils.NewScriptedClient("")
		client.RespondWith(consolidateMarker, "  \n")

		quiet, err := engine.New(engine.Options{
			Store:     store,
			Generator: client,
			Embedder:  embeddings.NewGateway(embedder, 8, zap.NewNop()),
			Publisher: testutils.NewMockPublisher(),
			Logger:    zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())

		summary, err := quiet.Consolidate(ctx, "alice", []string{"s1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(summary).To(BeEmpty())
		Expect(store.SummaryCount()).To(BeZero())
	})

	It("fails the whole call when the synthesis call errors", func() {
		seed("s1", "hello", "hi")

		client := testutils.NewScriptedClient("")
		client.FailWith(consolidateMarker, errors.New("model down"))

		broken, err := engine.New(engine.Options{
			Store:     store,
			Generator: client,
			Embedder:  embeddings.NewGateway(embedder, 8, zap.NewNop()),
			Publisher: testutils.NewMockPublisher(),
			Logger:    zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = broken.Consolidate(ctx, "alice", []string{"s1"})
		Expect(err).To(HaveOccurred())
		Expect(store.SummaryCount()).To(BeZero())
	})
})

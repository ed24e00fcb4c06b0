package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/coldbrewlabs/engram/pkg/storage"
	"github.com/coldbrewlabs/engram/pkg/storage/sqlite"
)

var _ = Describe("Driver", func() {
	var (
		driver *sqlite.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		dbPath := filepath.Join(GinkgoT().TempDir(), "engram.db")

		var err error
		driver, err = sqlite.NewDriver(ctx, dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	Describe("transcript events", func() {
		It("assigns identity and monotonic seq on append", func() {
			first, err := driver.AppendEvent(ctx, "s1", storage.RoleUser, "hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(first.EventID).NotTo(BeEmpty())
			Expect(first.CreatedAt).NotTo(BeZero())

			second, err := driver.AppendEvent(ctx, "s1", storage.RoleAssistant, "hi there")
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Seq).To(BeNumerically(">", first.Seq))
		})

		It("returns recent events oldest first, bounded by n", func() {
			for i := 0; i < 5; i++ {
				_, err := driver.AppendEvent(ctx, "s1", storage.RoleUser, fmt.Sprintf("msg %d", i))
				Expect(err).NotTo(HaveOccurred())
			}

			events, err := driver.RecentEvents(ctx, "s1", 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(3))
			Expect(events[0].Content).To(Equal("msg 2"))
			Expect(events[2].Content).To(Equal("msg 4"))
		})

		It("does not leak events across sessions", func() {
			_, err := driver.AppendEvent(ctx, "s1", storage.RoleUser, "mine")
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.AppendEvent(ctx, "s2", storage.RoleUser, "theirs")
			Expect(err).NotTo(HaveOccurred())

			events, err := driver.RecentEvents(ctx, "s1", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
			Expect(events[0].Content).To(Equal("mine"))
		})

		It("interleaves events chronologically across sessions", func() {
			_, err := driver.AppendEvent(ctx, "s1", storage.RoleUser, "a")
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.AppendEvent(ctx, "s2", storage.RoleUser, "b")
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.AppendEvent(ctx, "s1", storage.RoleAssistant, "c")
			Expect(err).NotTo(HaveOccurred())

			events, err := driver.EventsAcross(ctx, []string{"s1", "s2"})
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(3))
			Expect(events[0].Content).To(Equal("a"))
			Expect(events[1].Content).To(Equal("b"))
			Expect(events[2].Content).To(Equal("c"))
		})

		It("returns nothing for an empty session list", func() {
			events, err := driver.EventsAcross(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(BeEmpty())
		})
	})

	Describe("memories", func() {
		mem := func(sessionID, text string) storage.Memory {
			return storage.Memory{
				MemoryID:   fmt.Sprintf("m-%s-%s", sessionID, text),
				SessionID:  sessionID,
				Kind:       storage.KindReflection,
				Text:       text,
				Importance: 0.5,
				Embedding:  []float32{1, 2, 3},
			}
		}

		It("round-trips a memory with its embedding", func() {
			Expect(driver.CreateMemory(ctx, mem("s1", "likes widgets"))).To(Succeed())

			memories, err := driver.RecentMemories(ctx, "s1", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(memories).To(HaveLen(1))
			Expect(memories[0].Text).To(Equal("likes widgets"))
			Expect(memories[0].Kind).To(Equal(storage.KindReflection))
			Expect(memories[0].Importance).To(Equal(0.5))
			Expect(memories[0].Embedding).To(Equal([]float32{1, 2, 3}))
		})

		It("lists globally across sessions", func() {
			Expect(driver.CreateMemory(ctx, mem("s1", "one"))).To(Succeed())
			Expect(driver.CreateMemory(ctx, mem("s2", "two"))).To(Succeed())

			memories, err := driver.GlobalMemories(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(memories).To(HaveLen(2))
		})

		It("deletes a session's memories and reports the count", func() {
			Expect(driver.CreateMemory(ctx, mem("s1", "one"))).To(Succeed())
			Expect(driver.CreateMemory(ctx, mem("s1", "two"))).To(Succeed())
			Expect(driver.CreateMemory(ctx, mem("s2", "keep"))).To(Succeed())

			deleted, err := driver.DeleteMemories(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(Equal(int64(2)))

			remaining, err := driver.GlobalMemories(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(remaining).To(HaveLen(1))
		})

		It("reports zero deletions for an empty session", func() {
			deleted, err := driver.DeleteMemories(ctx, "none")
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(BeZero())
		})
	})

	Describe("summaries", func() {
		It("round-trips a summary per user", func() {
			Expect(driver.CreateSummary(ctx, storage.MemorySummary{
				SummaryID:     "sum-1",
				UserID:        "alice",
				SessionWindow: 2,
				Summary:       "Prefers morning meetings.",
				Embedding:     []float32{0.5, 0.5},
			})).To(Succeed())

			sums, err := driver.RecentSummaries(ctx, "alice", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(sums).To(HaveLen(1))
			Expect(sums[0].Summary).To(Equal("Prefers morning meetings."))
			Expect(sums[0].SessionWindow).To(Equal(2))
			Expect(sums[0].Embedding).To(Equal([]float32{0.5, 0.5}))

			other, err := driver.RecentSummaries(ctx, "bob", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(other).To(BeEmpty())
		})

		It("stores summaries without embeddings", func() {
			Expect(driver.CreateSummary(ctx, storage.MemorySummary{
				SummaryID:     "sum-2",
				UserID:        "alice",
				SessionWindow: 1,
				Summary:       "Short on detail.",
			})).To(Succeed())

			sums, err := driver.RecentSummaries(ctx, "alice", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(sums[0].Embedding).To(BeNil())
		})
	})

	Describe("business records", func() {
		It("upserts customers idempotently, preserving the first industry", func() {
			inserted, err := driver.UpsertCustomer(ctx, "Acme", "manufacturing")
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeTrue())

			inserted, err = driver.UpsertCustomer(ctx, "Acme", "retail")
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeFalse())

			c, err := driver.FindCustomer(ctx, "Acme")
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Industry).To(Equal("manufacturing"))
		})

		It("reports unknown customers as not found", func() {
			_, err := driver.FindCustomer(ctx, "Nobody")

			var nf storage.NotFoundError
			Expect(errors.As(err, &nf)).To(BeTrue())
			Expect(nf.Kind).To(Equal("customer"))
		})

		It("deduplicates orders on customer, title, and status", func() {
			_, err := driver.UpsertCustomer(ctx, "Acme", "manufacturing")
			Expect(err).NotTo(HaveOccurred())
			c, err := driver.FindCustomer(ctx, "Acme")
			Expect(err).NotTo(HaveOccurred())

			inserted, err := driver.InsertOrder(ctx, c.CustomerID, "500 widgets", "pending")
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeTrue())

			inserted, err = driver.InsertOrder(ctx, c.CustomerID, "500 widgets", "pending")
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeFalse())

			inserted, err = driver.InsertOrder(ctx, c.CustomerID, "500 widgets", "shipped")
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeTrue())
		})

		It("renders the business digest from joined rows", func() {
			_, err := driver.UpsertCustomer(ctx, "Acme", "manufacturing")
			Expect(err).NotTo(HaveOccurred())
			c, err := driver.FindCustomer(ctx, "Acme")
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.InsertOrder(ctx, c.CustomerID, "500 widgets", "pending")
			Expect(err).NotTo(HaveOccurred())

			digest, err := driver.RecentBusinessContext(ctx, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(digest).To(ContainSubstring("Acme (manufacturing): 500 widgets [pending]"))
		})

		It("renders an empty digest when there are no orders", func() {
			digest, err := driver.RecentBusinessContext(ctx, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(digest).To(BeEmpty())
		})
	})
})

package inmemory_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/coldbrewlabs/engram/pkg/storage"
	"github.com/coldbrewlabs/engram/pkg/storage/inmemory"
)

var _ = Describe("Driver", func() {
	var (
		driver *inmemory.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		driver = inmemory.NewDriver()
		ctx = context.Background()
	})

	Describe("transcript store", func() {
		It("assigns identity and ordering on append", func() {
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
			_, err = driver.AppendEvent(ctx, "s3", storage.RoleUser, "ignored")
			Expect(err).NotTo(HaveOccurred())

			events, err := driver.EventsAcross(ctx, []string{"s1", "s2"})
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(3))
			Expect(events[0].Content).To(Equal("a"))
			Expect(events[1].Content).To(Equal("b"))
			Expect(events[2].Content).To(Equal("c"))
		})

		It("returns nothing for unknown sessions", func() {
			events, err := driver.EventsAcross(ctx, []string{"nope"})
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(BeEmpty())
		})
	})

	Describe("memory store", func() {
		mem := func(session, text string) storage.Memory {
			return storage.Memory{
				MemoryID:   "id-" + text,
				SessionID:  session,
				Kind:       storage.KindReflection,
				Text:       text,
				Importance: 0.5,
				Embedding:  []float32{1, 2, 3},
			}
		}

		It("returns session memories newest first", func() {
			Expect(driver.CreateMemory(ctx, mem("s1", "older"))).To(Succeed())
			Expect(driver.CreateMemory(ctx, mem("s1", "newer"))).To(Succeed())
			Expect(driver.CreateMemory(ctx, mem("s2", "other"))).To(Succeed())

			memories, err := driver.RecentMemories(ctx, "s1", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(memories).To(HaveLen(2))
			Expect(memories[0].Text).To(Equal("newer"))
			Expect(memories[1].Text).To(Equal("older"))
		})

		It("returns global memories across sessions", func() {
			Expect(driver.CreateMemory(ctx, mem("s1", "one"))).To(Succeed())
			Expect(driver.CreateMemory(ctx, mem("s2", "two"))).To(Succeed())

			memories, err := driver.GlobalMemories(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(memories).To(HaveLen(2))
			Expect(memories[0].Text).To(Equal("two"))
		})

		It("deletes memories and reports the exact count", func() {
			Expect(driver.CreateMemory(ctx, mem("s1", "one"))).To(Succeed())
			Expect(driver.CreateMemory(ctx, mem("s1", "two"))).To(Succeed())
			Expect(driver.CreateMemory(ctx, mem("s2", "keep"))).To(Succeed())

			deleted, err := driver.DeleteMemories(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(Equal(int64(2)))

			remaining, err := driver.GlobalMemories(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(remaining).To(HaveLen(1))
			Expect(remaining[0].Text).To(Equal("keep"))
		})

		It("reports zero deletions for a session with no memories", func() {
			deleted, err := driver.DeleteMemories(ctx, "empty")
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(BeZero())
		})
	})

	Describe("summary store", func() {
		It("returns a user's summaries newest first", func() {
			Expect(driver.CreateSummary(ctx, storage.MemorySummary{
				SummaryID: "a", UserID: "alice", SessionWindow: 2, Summary: "first",
			})).To(Succeed())
			Expect(driver.CreateSummary(ctx, storage.MemorySummary{
				SummaryID: "b", UserID: "alice", SessionWindow: 1, Summary: "second",
			})).To(Succeed())
			Expect(driver.CreateSummary(ctx, storage.MemorySummary{
				SummaryID: "c", UserID: "bob", SessionWindow: 1, Summary: "other",
			})).To(Succeed())

			summaries, err := driver.RecentSummaries(ctx, "alice", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(summaries).To(HaveLen(2))
			Expect(summaries[0].Summary).To(Equal("second"))
			Expect(summaries[0].SessionWindow).To(Equal(1))
		})
	})

	Describe("domain store", func() {
		It("upserts customers idempotently by name", func() {
			inserted, err := driver.UpsertCustomer(ctx, "Acme", "manufacturing")
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeTrue())

			inserted, err = driver.UpsertCustomer(ctx, "Acme", "retail")
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeFalse())

			// The original industry survives the attempted re-insert.
			customer, err := driver.FindCustomer(ctx, "Acme")
			Expect(err).NotTo(HaveOccurred())
			Expect(customer.Industry).To(Equal("manufacturing"))
		})

		It("returns a typed error for unknown customers", func() {
			_, err := driver.FindCustomer(ctx, "Ghost Corp")

			var notFound storage.NotFoundError
			Expect(errors.As(err, &notFound)).To(BeTrue())
			Expect(notFound.Key).To(Equal("Ghost Corp"))
		})

		It("dedupes orders on customer, title, and status", func() {
			_, err := driver.UpsertCustomer(ctx, "Acme", "manufacturing")
			Expect(err).NotTo(HaveOccurred())
			customer, err := driver.FindCustomer(ctx, "Acme")
			Expect(err).NotTo(HaveOccurred())

			inserted, err := driver.InsertOrder(ctx, customer.CustomerID, "500 widgets", "pending")
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeTrue())

			inserted, err = driver.InsertOrder(ctx, customer.CustomerID, "500 widgets", "pending")
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeFalse())

			// A different status is a distinct row.
			inserted, err = driver.InsertOrder(ctx, customer.CustomerID, "500 widgets", "shipped")
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeTrue())

			Expect(driver.OrderCount()).To(Equal(2))
		})

		It("renders the business digest newest first", func() {
			_, err := driver.UpsertCustomer(ctx, "Acme", "manufacturing")
			Expect(err).NotTo(HaveOccurred())
			customer, err := driver.FindCustomer(ctx, "Acme")
			Expect(err).NotTo(HaveOccurred())

			_, err = driver.InsertOrder(ctx, customer.CustomerID, "500 widgets", "pending")
			Expect(err).NotTo(HaveOccurred())

			digest, err := driver.RecentBusinessContext(ctx, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(digest).To(ContainSubstring("Recent business activity:"))
			Expect(digest).To(ContainSubstring("Acme (manufacturing): 500 widgets [pending]"))
		})

		It("renders an empty digest when no orders exist", func() {
			digest, err := driver.RecentBusinessContext(ctx, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(digest).To(BeEmpty())
		})
	})
})

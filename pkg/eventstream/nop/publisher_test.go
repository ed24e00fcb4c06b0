package nop_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/coldbrewlabs/engram/pkg/eventstream"
	"github.com/coldbrewlabs/engram/pkg/eventstream/nop"
)

var _ = Describe("Publisher", func() {
	It("accepts a valid turn event", func() {
		p := nop.NewPublisher()
		err := p.PublishTurn(context.Background(), &eventstream.TurnCompletedEvent{
			SchemaVersion: eventstream.SchemaVersionV1,
			EventType:     eventstream.EventTypeTurnCompleted,
			SessionID:     "s1",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Close()).To(Succeed())
	})

	It("rejects a nil turn event", func() {
		p := nop.NewPublisher()
		err := p.PublishTurn(context.Background(), nil)
		Expect(err).To(MatchError(eventstream.ErrNilTurnEvent))
	})
})

package kafka_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/coldbrewlabs/engram/pkg/eventstream"
	"github.com/coldbrewlabs/engram/pkg/eventstream/kafka"
)

var _ = Describe("Publisher", func() {
	It("requires at least one broker", func() {
		_, err := kafka.NewPublisher(kafka.Config{})
		Expect(err).To(HaveOccurred())
	})

	It("defaults the topic when none is configured", func() {
		p, err := kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}})
		Expect(err).NotTo(HaveOccurred())
		defer p.Close()

		Expect(p.Topic()).To(Equal(kafka.DefaultTopic))
	})

	It("rejects a nil turn event before touching the wire", func() {
		p, err := kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}})
		Expect(err).NotTo(HaveOccurred())
		defer p.Close()

		Expect(p.PublishTurn(context.Background(), nil)).To(MatchError(eventstream.ErrNilTurnEvent))
	})
})

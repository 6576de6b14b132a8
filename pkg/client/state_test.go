package client_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/hellochat/pkg/client"
)

var _ = Describe("State", func() {
	DescribeTable("transitions",
		func(from, to client.State, allowed bool) {
			Expect(client.CanTransition(from, to)).To(Equal(allowed))
		},
		Entry("idle to requesting", client.StateIdle, client.StateRequesting, true),
		Entry("requesting to streaming", client.StateRequesting, client.StateStreaming, true),
		Entry("requesting to failed", client.StateRequesting, client.StateFailed, true),
		Entry("streaming to completed", client.StateStreaming, client.StateCompleted, true),
		Entry("streaming to failed", client.StateStreaming, client.StateFailed, true),
		Entry("idle to streaming", client.StateIdle, client.StateStreaming, false),
		Entry("completed is terminal", client.StateCompleted, client.StateRequesting, false),
		Entry("failed does not retry", client.StateFailed, client.StateRequesting, false),
	)

	It("marks completed and failed as terminal", func() {
		Expect(client.StateCompleted.Terminal()).To(BeTrue())
		Expect(client.StateFailed.Terminal()).To(BeTrue())
		Expect(client.StateStreaming.Terminal()).To(BeFalse())
	})

	It("names states", func() {
		Expect(client.StateStreaming.String()).To(Equal("streaming"))
		Expect(client.State(42).String()).To(Equal("state(42)"))
	})
})

var _ = Describe("ProgressiveView", func() {
	It("never shrinks while not done", func() {
		var v client.ProgressiveView
		Expect(v.Apply("Hello", false)).To(BeTrue())
		Expect(v.Apply("Hel", false)).To(BeFalse())

		text, done := v.Snapshot()
		Expect(text).To(Equal("Hello"))
		Expect(done).To(BeFalse())
	})

	It("freezes once done", func() {
		var v client.ProgressiveView
		Expect(v.Apply("Hello", true)).To(BeTrue())
		Expect(v.Apply("Hello world", false)).To(BeFalse())

		text, done := v.Snapshot()
		Expect(text).To(Equal("Hello"))
		Expect(done).To(BeTrue())
	})

	It("replaces the text on failure", func() {
		var v client.ProgressiveView
		v.Apply("a partial answer that is long", false)
		v.Fail(client.ApologyMessage)

		text, done := v.Snapshot()
		Expect(text).To(Equal(client.ApologyMessage))
		Expect(done).To(BeTrue())
	})
})

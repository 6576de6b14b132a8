package worker

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/hellochat/pkg/eventstream"
	"github.com/papercomputeco/hellochat/pkg/llm"
	"github.com/papercomputeco/hellochat/pkg/logger"
)

// recordingPublisher collects published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.CompletionEvent
	err    error
	block  chan struct{}
}

func (r *recordingPublisher) PublishCompletion(_ context.Context, event *eventstream.CompletionEvent) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) published() []*eventstream.CompletionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*eventstream.CompletionEvent(nil), r.events...)
}

func newEvent(callID string) *eventstream.CompletionEvent {
	return eventstream.NewCompletionEvent(
		eventstream.EventSource{Provider: "deepseek", Mode: "one_shot"},
		eventstream.CompletionRequestMeta{CallID: callID, Model: "deepseek-chat"},
		llm.AggregatedResult{Content: "hi", IsComplete: true},
	)
}

var _ = Describe("Worker Pool", func() {
	var pub *recordingPublisher

	BeforeEach(func() {
		pub = &recordingPublisher{}
	})

	It("requires a publisher", func() {
		_, err := NewPool(&Config{Logger: logger.Nop()})
		Expect(err).To(HaveOccurred())
	})

	It("applies defaults", func() {
		cfg := &Config{Publisher: pub}
		wp, err := NewPool(cfg)
		Expect(err).NotTo(HaveOccurred())
		defer wp.Close()

		Expect(cfg.NumWorkers).To(Equal(defaultNumWorkers))
		Expect(cfg.QueueSize).To(Equal(defaultJobQueueSize))
		Expect(cfg.PublishTimeout).To(Equal(defaultPublishTimeout))
	})

	Describe("Enqueue", func() {
		It("returns true when the queue has capacity", func() {
			wp, err := NewPool(&Config{Publisher: pub, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())

			Expect(wp.Enqueue(Job{Event: newEvent("a")})).To(BeTrue())
			wp.Close()

			Expect(pub.published()).To(HaveLen(1))
			Expect(pub.published()[0].RequestMeta.CallID).To(Equal("a"))
		})

		It("rejects jobs without an event", func() {
			wp, err := NewPool(&Config{Publisher: pub, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())
			defer wp.Close()

			Expect(wp.Enqueue(Job{})).To(BeFalse())
		})

		It("drops jobs when the queue is full", func() {
			pub.block = make(chan struct{})
			wp, err := NewPool(&Config{
				Publisher:  pub,
				NumWorkers: 1,
				QueueSize:  1,
				Logger:     logger.Nop(),
			})
			Expect(err).NotTo(HaveOccurred())

			// The single worker picks up the first job and blocks; the second
			// fills the queue.
			Expect(wp.Enqueue(Job{Event: newEvent("1")})).To(BeTrue())
			Eventually(func() int { return len(wp.queue) }).Should(BeZero())
			Expect(wp.Enqueue(Job{Event: newEvent("2")})).To(BeTrue())
			Expect(wp.Enqueue(Job{Event: newEvent("3")})).To(BeFalse())

			close(pub.block)
			wp.Close()
			Expect(pub.published()).To(HaveLen(2))
		})
	})

	Describe("Close", func() {
		It("drains queued jobs", func() {
			wp, err := NewPool(&Config{Publisher: pub, NumWorkers: 1, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())

			for _, id := range []string{"a", "b", "c"} {
				Expect(wp.Enqueue(Job{Event: newEvent(id)})).To(BeTrue())
			}
			wp.Close()

			Expect(pub.published()).To(HaveLen(3))
		})

		It("is safe to call twice", func() {
			wp, err := NewPool(&Config{Publisher: pub, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())
			wp.Close()
			Expect(wp.Close).NotTo(Panic())
		})

		It("keeps running after publish failures", func() {
			pub.err = errors.New("broker down")
			wp, err := NewPool(&Config{Publisher: pub, NumWorkers: 1, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())

			Expect(wp.Enqueue(Job{Event: newEvent("a")})).To(BeTrue())
			Expect(wp.Enqueue(Job{Event: newEvent("b")})).To(BeTrue())
			wp.Close()

			Expect(pub.published()).To(BeEmpty())
		})
	})
})

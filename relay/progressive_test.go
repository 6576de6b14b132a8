package relay

import (
	"context"
	"net/http"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// update is one onUpdate invocation.
type update struct {
	content  string
	complete bool
}

// updateRecorder collects onUpdate calls.
type updateRecorder struct {
	mu      sync.Mutex
	updates []update
}

func (u *updateRecorder) record(content string, complete bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.updates = append(u.updates, update{content: content, complete: complete})
}

func (u *updateRecorder) all() []update {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]update(nil), u.updates...)
}

func (u *updateRecorder) count() int {
	return len(u.all())
}

var _ = Describe("CompleteProgressive", func() {
	var (
		ctx      context.Context
		upstream *fakeUpstream
		r        *Relay
	)

	BeforeEach(func() {
		ctx = context.Background()
	})

	AfterEach(func() {
		if r != nil {
			r.Close()
			r = nil
		}
		if upstream != nil {
			upstream.Close()
			upstream = nil
		}
	})

	It("reports the full accumulated content after every delta", func() {
		upstream = newFakeUpstream(streamLines(
			deltaLine("Hel"),
			deltaLine("lo"),
			deltaLine(" world"),
			doneLine,
		))
		r, _ = newTestRelay(upstream.URL)
		rec := &updateRecorder{}

		res, err := r.CompleteProgressive(ctx, "conv-1", r.ProgressiveRequest("a long enough message to skip the short message cache", ""), rec.record)
		Expect(err).NotTo(HaveOccurred())

		Expect(rec.all()).To(Equal([]update{
			{content: "Hel"},
			{content: "Hello"},
			{content: "Hello world"},
			{content: "Hello world", complete: true},
		}))
		Expect(res.Content).To(Equal("Hello world"))
		Expect(res.IsComplete).To(BeTrue())
	})

	It("produces monotonic updates ending with the buffered result", func() {
		lines := []string{deltaLine("a"), deltaLine("bc"), usageLine(1, 2), deltaLine("def"), doneLine}

		upstream = newFakeUpstream(streamLines(lines...))
		r, _ = newTestRelay(upstream.URL, func(c *Config) { c.ShortMessageThreshold = -1 })

		buffered, err := r.Complete(ctx, r.OneShotRequest("q", ""))
		Expect(err).NotTo(HaveOccurred())

		rec := &updateRecorder{}
		_, err = r.CompleteProgressive(ctx, "", r.ProgressiveRequest("q", ""), rec.record)
		Expect(err).NotTo(HaveOccurred())

		updates := rec.all()
		Expect(updates).NotTo(BeEmpty())
		for i := 1; i < len(updates); i++ {
			Expect(updates[i].content).To(HavePrefix(updates[i-1].content))
		}
		last := updates[len(updates)-1]
		Expect(last.complete).To(BeTrue())
		Expect(last.content).To(Equal(buffered.Content))
		Expect(upstream.hits.Load()).To(Equal(int32(2)))
	})

	It("uses the progressive policy", func() {
		upstream = newFakeUpstream(streamLines(deltaLine("x"), doneLine))
		r, _ = newTestRelay(upstream.URL)

		_, err := r.CompleteProgressive(ctx, "", r.ProgressiveRequest("hello", ""), func(string, bool) {})
		Expect(err).NotTo(HaveOccurred())
		Expect(upstream.body().MaxTokens).To(Equal(2000))
		Expect(upstream.body().Temperature).To(Equal(0.7))
	})

	It("reports a cache hit as a single complete update", func() {
		upstream = newFakeUpstream(streamLines(deltaLine("cached"), doneLine))
		r, _ = newTestRelay(upstream.URL)

		_, err := r.Complete(ctx, r.OneShotRequest("hi", ""))
		Expect(err).NotTo(HaveOccurred())

		rec := &updateRecorder{}
		res, err := r.CompleteProgressive(ctx, "conv", r.ProgressiveRequest("hi", ""), rec.record)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Content).To(Equal("cached"))
		Expect(rec.all()).To(Equal([]update{{content: "cached", complete: true}}))
		Expect(upstream.hits.Load()).To(Equal(int32(1)))
	})

	It("does not report completion for an incomplete stream", func() {
		upstream = newFakeUpstream(streamLines(deltaLine("a"), deltaLine("b")))
		r, _ = newTestRelay(upstream.URL)
		rec := &updateRecorder{}

		_, err := r.CompleteProgressive(ctx, "", r.ProgressiveRequest("hello", ""), rec.record)
		Expect(err).To(MatchError(ErrIncompleteStream))
		for _, u := range rec.all() {
			Expect(u.complete).To(BeFalse())
		}
	})

	It("honors the progressive timeout", func() {
		upstream = newFakeUpstream(func(_ http.ResponseWriter, req *http.Request, _ upstreamBody) {
			<-req.Context().Done()
		})
		r, _ = newTestRelay(upstream.URL, func(c *Config) { c.Progressive.Timeout = 100 * time.Millisecond })

		start := time.Now()
		_, err := r.CompleteProgressive(ctx, "", r.ProgressiveRequest("hello", ""), func(string, bool) {})
		Expect(err).To(MatchError(ErrUpstreamTimeout))
		Expect(time.Since(start)).To(BeNumerically("<", time.Second+100*time.Millisecond))
	})

	Describe("slot supersession", func() {
		BeforeEach(func() {
			upstream = newFakeUpstream(func(w http.ResponseWriter, req *http.Request, body upstreamBody) {
				w.Header().Set("Content-Type", "text/event-stream")
				flusher := w.(http.Flusher)

				if body.userMessage() == "slow question" {
					_, _ = w.Write([]byte(deltaLine("first ") + "\n"))
					flusher.Flush()
					<-req.Context().Done()
					return
				}

				for _, line := range []string{deltaLine("second"), doneLine} {
					_, _ = w.Write([]byte(line + "\n"))
					flusher.Flush()
				}
			})
			r, _ = newTestRelay(upstream.URL)
		})

		It("cancels the prior call and suppresses its updates", func() {
			first := &updateRecorder{}
			firstErr := make(chan error, 1)
			go func() {
				defer GinkgoRecover()
				_, err := r.CompleteProgressive(ctx, "conv", r.ProgressiveRequest("slow question", ""), first.record)
				firstErr <- err
			}()

			Eventually(first.count).Should(Equal(1))

			second := &updateRecorder{}
			res, err := r.CompleteProgressive(ctx, "conv", r.ProgressiveRequest("fast question", ""), second.record)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Content).To(Equal("second"))

			Eventually(firstErr).Should(Receive(MatchError(ErrSuperseded)))
			Expect(first.all()).To(Equal([]update{{content: "first "}}))
			Expect(second.all()).To(ContainElement(update{content: "second", complete: true}))
		})

		It("supersedes a call whose update consumer is blocked", func() {
			first := &updateRecorder{}
			firstErr := make(chan error, 1)
			unblock := make(chan struct{})
			var once sync.Once
			unblockFirst := func() { once.Do(func() { close(unblock) }) }
			DeferCleanup(unblockFirst)

			go func() {
				defer GinkgoRecover()
				_, err := r.CompleteProgressive(ctx, "conv", r.ProgressiveRequest("slow question", ""), func(content string, complete bool) {
					first.record(content, complete)
					<-unblock
				})
				firstErr <- err
			}()
			Eventually(first.count).Should(Equal(1))

			secondDone := make(chan error, 1)
			go func() {
				defer GinkgoRecover()
				_, err := r.CompleteProgressive(ctx, "conv", r.ProgressiveRequest("fast question", ""), func(string, bool) {})
				secondDone <- err
			}()
			Eventually(secondDone, 2*time.Second).Should(Receive(BeNil()))

			unblockFirst()
			Eventually(firstErr).Should(Receive(MatchError(ErrSuperseded)))
			Expect(first.all()).To(Equal([]update{{content: "first "}}))
		})

		It("leaves other slots alone", func() {
			first := &updateRecorder{}
			firstErr := make(chan error, 1)
			cctx, cancel := context.WithCancel(ctx)
			defer cancel()

			go func() {
				defer GinkgoRecover()
				_, err := r.CompleteProgressive(cctx, "conv-a", r.ProgressiveRequest("slow question", ""), first.record)
				firstErr <- err
			}()
			Eventually(first.count).Should(Equal(1))

			_, err := r.CompleteProgressive(ctx, "conv-b", r.ProgressiveRequest("fast question", ""), func(string, bool) {})
			Expect(err).NotTo(HaveOccurred())
			Consistently(firstErr, 100*time.Millisecond).ShouldNot(Receive())

			cancel()
			Eventually(firstErr).Should(Receive(MatchError(context.Canceled)))
		})
	})
})

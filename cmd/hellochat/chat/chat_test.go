package chatcmder

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/hellochat/pkg/client"
	"github.com/papercomputeco/hellochat/pkg/config"
)

// scriptedSource answers each message with a fixed list of progressive
// updates, or fails with err.
type scriptedSource struct {
	mu       sync.Mutex
	updates  []string
	err      error
	messages []string
	models   []string
}

func (s *scriptedSource) Stream(_ context.Context, message, model string, onUpdate client.UpdateFunc) (string, error) {
	s.mu.Lock()
	s.messages = append(s.messages, message)
	s.models = append(s.models, model)
	s.mu.Unlock()

	if s.err != nil {
		return "", s.err
	}
	for i, u := range s.updates {
		onUpdate(u, i == len(s.updates)-1)
	}
	return s.updates[len(s.updates)-1], nil
}

var _ = Describe("NewChatCmd", func() {
	It("registers the client flags with config defaults", func() {
		cmd := NewChatCmd()
		Expect(cmd.Use).To(Equal("chat"))

		defaults := config.NewDefaultConfig()
		f := cmd.Flags().Lookup("target")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("t"))
		Expect(f.DefValue).To(Equal(defaults.Client.Target))

		Expect(cmd.Flags().Lookup("reveal-delay").DefValue).To(Equal("20ms"))
		for _, name := range []string{"model", "buffered", "slot", "render"} {
			Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), name)
		}
	})
})

var _ = Describe("chatCommander", func() {
	var (
		c   *chatCommander
		out *bytes.Buffer
	)

	BeforeEach(func() {
		c = &chatCommander{model: "deepseek-chat"}
		out = &bytes.Buffer{}
	})

	Describe("source", func() {
		It("streams live by default on a stable slot", func() {
			c.target = "http://relay:8787/"
			src, ok := c.source().(*client.LiveSource)
			Expect(ok).To(BeTrue())
			Expect(src.BaseURL).To(Equal("http://relay:8787"))
			Expect(src.Slot).NotTo(BeEmpty())
		})

		It("keeps an explicit slot", func() {
			c.slot = "tab-1"
			src := c.source().(*client.LiveSource)
			Expect(src.Slot).To(Equal("tab-1"))
		})

		It("reveals buffered answers from the GraphQL endpoint", func() {
			c.target = "http://relay:8787"
			c.buffered = true
			c.revealDelay = -1
			src, ok := c.source().(*client.GraphQLSource)
			Expect(ok).To(BeTrue())
			Expect(src.Endpoint).To(Equal("http://relay:8787/graphql"))
			Expect(src.RevealDelay).To(BeNumerically("<", 0))
		})
	})

	Describe("loop", func() {
		It("prints each answer once as it grows", func() {
			src := &scriptedSource{updates: []string{"", "Hel", "Hello", "Hello!"}}
			in := strings.NewReader("hi\n\n/exit\nnever sent\n")

			Expect(c.loop(context.Background(), in, out, src)).To(Succeed())

			Expect(src.messages).To(Equal([]string{"hi"}))
			Expect(src.models).To(Equal([]string{"deepseek-chat"}))
			Expect(strings.Count(out.String(), "Hello!")).To(Equal(1))
			Expect(out.String()).NotTo(ContainSubstring("HelHello"))
		})

		It("shows the apology and keeps reading after a failure", func() {
			src := &scriptedSource{err: errors.New("connection refused")}
			in := strings.NewReader("one\ntwo\n")

			Expect(c.loop(context.Background(), in, out, src)).To(Succeed())

			Expect(src.messages).To(Equal([]string{"one", "two"}))
			Expect(strings.Count(out.String(), client.ApologyMessage)).To(Equal(2))
		})

		It("re-renders finished answers as markdown", func() {
			c.render = true
			src := &scriptedSource{updates: []string{"# Heading", "# Heading\n\nbody"}}

			Expect(c.loop(context.Background(), strings.NewReader("md\n"), out, src)).To(Succeed())
			Expect(strings.Count(out.String(), "Heading")).To(BeNumerically(">=", 2))
		})

		It("stops when the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			src := &scriptedSource{err: context.Canceled}

			Expect(c.loop(ctx, strings.NewReader("hi\nagain\n"), out, src)).To(Succeed())
			Expect(src.messages).To(Equal([]string{"hi"}))
		})
	})
})

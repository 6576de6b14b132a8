package relay

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"

	. "github.com/onsi/gomega"

	"github.com/papercomputeco/hellochat/pkg/cache/memory"
	"github.com/papercomputeco/hellochat/pkg/eventstream"
	"github.com/papercomputeco/hellochat/pkg/logger"
)

// upstreamBody is the provider request as seen by the fake upstream.
type upstreamBody struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Stream      bool    `json:"stream"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

func (b upstreamBody) userMessage() string {
	for _, m := range b.Messages {
		if m.Role == "user" {
			return m.Content
		}
	}
	return ""
}

// fakeUpstream is an httptest DeepSeek stand-in that counts hits and records
// the last request.
type fakeUpstream struct {
	*httptest.Server

	hits atomic.Int32

	mu       sync.Mutex
	lastBody upstreamBody
	lastAuth string
}

// newFakeUpstream serves handle for every request after decoding its body.
func newFakeUpstream(handle func(w http.ResponseWriter, r *http.Request, body upstreamBody)) *fakeUpstream {
	f := &fakeUpstream{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)

		var body upstreamBody
		_ = json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		f.lastBody = body
		f.lastAuth = r.Header.Get("Authorization")
		f.mu.Unlock()

		handle(w, r, body)
	}))
	return f
}

// streamLines returns a handler that writes each line followed by a newline,
// flushing after every line.
func streamLines(lines ...string) func(http.ResponseWriter, *http.Request, upstreamBody) {
	return func(w http.ResponseWriter, _ *http.Request, _ upstreamBody) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprint(w, line+"\n")
			flusher.Flush()
		}
	}
}

func (f *fakeUpstream) body() upstreamBody {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastBody
}

func (f *fakeUpstream) auth() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAuth
}

func deltaLine(text string) string {
	payload, err := json.Marshal(map[string]any{
		"model": "deepseek-chat",
		"choices": []map[string]any{
			{"index": 0, "delta": map[string]string{"content": text}},
		},
	})
	Expect(err).NotTo(HaveOccurred())
	return "data: " + string(payload)
}

func usageLine(prompt, completion int) string {
	return fmt.Sprintf(`data: {"model":"deepseek-chat","choices":[],"usage":{"prompt_tokens":%d,"completion_tokens":%d,"total_tokens":%d}}`,
		prompt, completion, prompt+completion)
}

const doneLine = "data: [DONE]"

// newTestRelay creates a Relay pointed at upstreamURL with an in-memory cache.
func newTestRelay(upstreamURL string, mutate ...func(*Config)) (*Relay, *memory.Cache) {
	return newTestRelayWithPublisher(upstreamURL, nil, mutate...)
}

func newTestRelayWithPublisher(upstreamURL string, pub eventstream.Publisher, mutate ...func(*Config)) (*Relay, *memory.Cache) {
	cfg := Config{
		APIURL: upstreamURL,
		APIKey: "sk-test",
	}
	for _, m := range mutate {
		m(&cfg)
	}

	mem := memory.New(memory.Config{})
	r, err := New(cfg, mem, pub, logger.Nop())
	Expect(err).NotTo(HaveOccurred())
	return r, mem
}

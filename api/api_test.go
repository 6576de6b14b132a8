package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/hellochat/pkg/llm"
	"github.com/papercomputeco/hellochat/pkg/logger"
	"github.com/papercomputeco/hellochat/relay"
)

// readSSEContents returns the decoded data payloads of an SSE body, with the
// terminal marker as the literal "[DONE]".
func readSSEContents(body io.Reader) []string {
	raw, err := io.ReadAll(body)
	Expect(err).NotTo(HaveOccurred())

	var out []string
	for _, line := range strings.Split(string(raw), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		out = append(out, strings.TrimPrefix(line, "data: "))
	}
	return out
}

var _ = Describe("Server", func() {
	var (
		server   *Server
		r        *relay.Relay
		upstream *httptest.Server
		hits     atomic.Int32
	)

	BeforeEach(func() {
		hits.Store(0)
		upstream = newSSEUpstream(&hits, "Hel", "lo")
		server, r = newTestServer(upstream.URL, "sk-test")
	})

	AfterEach(func() {
		server.Shutdown()
		r.Close()
		upstream.Close()
	})

	It("requires a relay", func() {
		_, err := NewServer(Config{}, nil, logger.Nop())
		Expect(err).To(HaveOccurred())
	})

	Describe("GET /health", func() {
		It("reports ok with a timestamp and uptime", func() {
			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var health HealthResponse
			Expect(json.NewDecoder(resp.Body).Decode(&health)).To(Succeed())
			Expect(health.Status).To(Equal("ok"))
			Expect(health.Timestamp).NotTo(BeEmpty())
			Expect(health.Uptime).To(BeNumerically(">=", 0))
		})
	})

	Describe("CORS", func() {
		It("allows configured origins", func() {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set("Origin", "http://localhost:3000")

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("http://localhost:3000"))
			Expect(resp.Header.Get("Access-Control-Allow-Credentials")).To(Equal("true"))
		})

		It("does not allow unknown origins", func() {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set("Origin", "https://evil.example")

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(BeEmpty())
		})

		It("drops credentials for a wildcard allow-list", func() {
			cfg := corsConfig([]string{"*"})
			Expect(cfg.AllowCredentials).To(BeFalse())
			Expect(cfg.AllowOrigins).To(Equal("*"))
		})
	})

	Describe("/stream", func() {
		It("streams the accumulated content and terminates with [DONE]", func() {
			req := httptest.NewRequest(http.MethodGet, "/stream?message="+url.QueryEscape("a message that is long enough to skip the cache entirely"), nil)

			resp, err := server.app.Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream"))

			records := readSSEContents(resp.Body)
			Expect(records).To(Equal([]string{
				`{"content":"Hel"}`,
				`{"content":"Hello"}`,
				`{"content":"Hello"}`,
				"[DONE]",
			}))
		})

		It("returns 400 when the message is missing", func() {
			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/stream", nil))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			var body llm.ErrorResponse
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body.Error).To(Equal("message is required"))
		})

		It("returns 405 for other methods", func() {
			resp, err := server.app.Test(httptest.NewRequest(http.MethodPost, "/stream?message=hi", nil))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusMethodNotAllowed))
			Expect(resp.Header.Get("Allow")).To(Equal(http.MethodGet))
		})

		It("returns 500 without an API key", func() {
			noKey, noKeyRelay := newTestServer(upstream.URL, "")
			defer noKeyRelay.Close()

			resp, err := noKey.app.Test(httptest.NewRequest(http.MethodGet, "/stream?message=hi", nil))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(hits.Load()).To(BeZero())
		})

		It("writes an error record when the relay fails mid-stream", func() {
			broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				_, _ = w.Write([]byte(`data: {"choices":[{"delta":{"content":"part"}}]}` + "\n\n"))
			}))
			defer broken.Close()

			s, br := newTestServer(broken.URL, "sk-test")
			defer br.Close()

			resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/stream?message=hi", nil), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			records := readSSEContents(resp.Body)
			Expect(records).To(HaveLen(3))
			Expect(records[0]).To(Equal(`{"content":"part"}`))
			Expect(records[1]).To(ContainSubstring(relay.ErrIncompleteStream.Error()))
			Expect(records[2]).To(Equal("[DONE]"))
		})
	})
})

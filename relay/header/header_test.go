package header

import (
	"net/http"
	"net/http/httptest"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("SetUpstreamRequestHeaders", func() {
	var hh *Handler

	BeforeEach(func() {
		hh = NewHandler()
	})

	It("sets the bearer credential", func() {
		req, _ := http.NewRequest(http.MethodPost, "http://upstream/v1/chat/completions", nil)
		hh.SetUpstreamRequestHeaders(req, "sk-test")
		Expect(req.Header.Get("Authorization")).To(Equal("Bearer sk-test"))
	})

	It("asks for a JSON request and an event stream response", func() {
		req, _ := http.NewRequest(http.MethodPost, "http://upstream/v1/chat/completions", nil)
		hh.SetUpstreamRequestHeaders(req, "sk-test")
		Expect(req.Header.Get("Content-Type")).To(Equal("application/json"))
		Expect(req.Header.Get("Accept")).To(Equal(EventStreamContentType))
	})

	It("does not set Accept-Encoding", func() {
		req, _ := http.NewRequest(http.MethodPost, "http://upstream/v1/chat/completions", nil)
		hh.SetUpstreamRequestHeaders(req, "sk-test")
		Expect(req.Header.Get("Accept-Encoding")).To(BeEmpty())
	})

	It("identifies the relay", func() {
		req, _ := http.NewRequest(http.MethodPost, "http://upstream/v1/chat/completions", nil)
		hh.SetUpstreamRequestHeaders(req, "")
		Expect(req.Header.Get("User-Agent")).To(HavePrefix("hellochat/"))
		Expect(req.Header.Get("Authorization")).To(BeEmpty())
	})
})

var _ = Describe("SetStreamResponseHeaders", func() {
	var (
		app *fiber.App
		hh  *Handler
	)

	BeforeEach(func() {
		app = fiber.New()
		hh = NewHandler()
	})

	AfterEach(func() {
		app.Shutdown()
	})

	It("marks the response as an uncached event stream", func() {
		app.Get("/stream", func(c *fiber.Ctx) error {
			hh.SetStreamResponseHeaders(c)
			return c.SendString("data: [DONE]\n\n")
		})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/stream", nil))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		Expect(resp.Header.Get("Content-Type")).To(Equal(EventStreamContentType))
		Expect(resp.Header.Get("Cache-Control")).To(Equal("no-cache"))
		Expect(resp.Header.Get("X-Accel-Buffering")).To(Equal("no"))
	})
})

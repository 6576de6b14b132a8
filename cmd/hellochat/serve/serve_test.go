package servecmder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	"github.com/papercomputeco/hellochat/pkg/config"
	"github.com/papercomputeco/hellochat/pkg/logger"
)

var _ = Describe("NewServeCmd", func() {
	It("registers the relay flags with config defaults", func() {
		cmd := NewServeCmd()
		Expect(cmd.Use).To(Equal("serve"))

		f := cmd.Flags().Lookup("listen")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("l"))
		Expect(f.DefValue).To(Equal(config.NewDefaultConfig().Server.Listen))

		for _, name := range []string{
			"cors-origins", "api-url", "model", "one-shot-timeout", "progressive-timeout",
			"cache-provider", "cache-size", "cache-ttl", "redis-addr",
			"events-provider", "kafka-brokers", "kafka-topic", "log-file",
		} {
			Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), name)
		}
	})
})

var _ = Describe("newStack", func() {
	var (
		tmpDir string
		v      *viper.Viper
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "serve-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(tmpDir) })

		v, err = config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		v.Set("upstream.api_key", "")
	})

	start := func() string {
		s, err := newStack(v, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		go func() { _ = s.serve(listener) }()
		DeferCleanup(func() { s.close(logger.Nop()) })

		base := "http://" + listener.Addr().String()
		Eventually(func() error {
			resp, err := http.Get(base + "/health")
			if err != nil {
				return err
			}
			resp.Body.Close()
			return nil
		}).Should(Succeed())
		return base
	}

	It("serves the health check with the default wiring", func() {
		base := start()

		resp, err := http.Get(base + "/health")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	It("relays buffered answers from the configured upstream", func() {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer sk-serve" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "text/event-stream")
			for _, part := range []string{"Hel", "lo"} {
				fmt.Fprintf(w, "data: {\"model\":\"deepseek-chat\",\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", part)
			}
			fmt.Fprint(w, "data: [DONE]\n\n")
		}))
		DeferCleanup(upstream.Close)

		v.Set("upstream.api_url", upstream.URL)
		v.Set("upstream.api_key", "sk-serve")
		v.Set("cache.provider", "none")
		base := start()

		body, _ := json.Marshal(map[string]any{"query": `{ chat(message: "hi") { content isComplete } }`})
		resp, err := http.Post(base+"/graphql", "application/json", bytes.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(ContainSubstring(`"content":"Hello"`))
		Expect(string(raw)).To(ContainSubstring(`"isComplete":true`))
	})

	It("rejects a stream request when no API key is configured", func() {
		base := start()

		resp, err := http.Get(base + "/stream?message=hi")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
	})

	It("fails on an unknown cache provider", func() {
		v.Set("cache.provider", "memcached")
		_, err := newStack(v, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("unsupported cache provider")))
	})

	It("fails on an unknown events provider", func() {
		v.Set("events.provider", "pulsar")
		_, err := newStack(v, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("unsupported events provider")))
	})

	It("requires brokers for the kafka events provider", func() {
		v.Set("events.provider", config.EventsProviderKafka)
		_, err := newStack(v, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("creating kafka publisher")))
	})
})

var _ = Describe("newLogger", func() {
	It("appends JSON records to the log file", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "relay.log")

		c := &serveCommander{logFile: path}
		log, closeLog, err := c.newLogger()
		Expect(err).NotTo(HaveOccurred())

		log.Info("relay ready", "listen", ":8787")
		Expect(closeLog()).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		line := strings.TrimSpace(string(data))
		Expect(line).To(HavePrefix("{"))
		Expect(line).To(ContainSubstring(`"msg":"relay ready"`))
	})
})

// Package api provides the hellochat HTTP server: a GraphQL query surface, a
// server-sent events endpoint and a health check, all backed by the relay.
package api

import "time"

// streamWriteSlack is added to the relay's progressive timeout to bound how
// long a response write may take when no WriteTimeout is configured.
const streamWriteSlack = 5 * time.Second

// DefaultCORSOrigins are the browser origins allowed when none are configured.
var DefaultCORSOrigins = []string{
	"http://localhost:3000",
	"https://hello-chat-frontend.pages.dev",
}

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// CORSOrigins is the browser origin allow-list.
	CORSOrigins []string

	// WriteTimeout bounds writing one response, including a whole /stream
	// body. Zero means the relay's progressive timeout plus a small slack.
	WriteTimeout time.Duration
}

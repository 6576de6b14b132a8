package api

import (
	"errors"
	"log/slog"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	graphql "github.com/graph-gophers/graphql-go"
	gqlrelay "github.com/graph-gophers/graphql-go/relay"

	"github.com/papercomputeco/hellochat/relay"
	"github.com/papercomputeco/hellochat/relay/header"
)

// Server is the API server in front of the completion relay.
type Server struct {
	config        Config
	relay         *relay.Relay
	schema        *graphql.Schema
	headerHandler *header.Handler
	logger        *slog.Logger
	app           *fiber.App
	startedAt     time.Time
}

// NewServer creates a new API server.
// The relay is injected so that its cache and worker pool outlive the server.
func NewServer(config Config, r *relay.Relay, logger *slog.Logger) (*Server, error) {
	if r == nil {
		return nil, errors.New("relay is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if len(config.CORSOrigins) == 0 {
		config.CORSOrigins = DefaultCORSOrigins
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = r.Config().Progressive.Timeout + streamWriteSlack
	}

	s := &Server{
		config:        config,
		relay:         r,
		headerHandler: header.NewHandler(),
		logger:        logger,
		startedAt:     time.Now(),
	}

	schema, err := newSchema(s)
	if err != nil {
		return nil, err
	}
	s.schema = schema

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// A client that stops reading cannot hold a stream open forever.
		WriteTimeout: config.WriteTimeout,
	})

	app.Use(fiberrecover.New())
	app.Use(cors.New(corsConfig(config.CORSOrigins)))

	app.Get("/health", s.handleHealth)
	app.All("/stream", s.handleStream)
	app.Get("/graphql", s.handleGraphQLGet)
	app.Post("/graphql", adaptor.HTTPHandler(&gqlrelay.Handler{Schema: schema}))

	s.app = app
	return s, nil
}

// corsConfig allows credentials unless the allow-list is a wildcard, which
// browsers reject in combination with credentials.
func corsConfig(origins []string) cors.Config {
	wildcard := slices.Contains(origins, "*")
	return cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept," + header.SlotHeader,
		AllowCredentials: !wildcard,
	}
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
		"upstream", s.relay.Config().APIURL,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the API server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting API server",
		"listen", listener.Addr().String(),
		"upstream", s.relay.Config().APIURL,
	)
	return s.app.Listener(listener)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

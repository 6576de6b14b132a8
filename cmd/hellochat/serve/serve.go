// Package servecmder provides the serve command, which runs the relay server.
package servecmder

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/hellochat/api"
	"github.com/papercomputeco/hellochat/pkg/cache"
	cacheutils "github.com/papercomputeco/hellochat/pkg/cache/utils"
	"github.com/papercomputeco/hellochat/pkg/config"
	"github.com/papercomputeco/hellochat/pkg/eventstream"
	"github.com/papercomputeco/hellochat/pkg/eventstream/kafka"
	"github.com/papercomputeco/hellochat/pkg/eventstream/nop"
	"github.com/papercomputeco/hellochat/pkg/logger"
	"github.com/papercomputeco/hellochat/relay"
)

type serveCommander struct {
	flags config.FlagSet
	debug bool

	logFile string

	flagValues struct {
		listen, apiURL, model              string
		cacheProvider, cacheTTL, redisAddr string
		eventsProvider, kafkaTopic         string
		corsOrigins, kafkaBrokers          []string
		cacheSize                          int
		oneShotTimeout, progressiveTimeout time.Duration
	}

	logger *slog.Logger
	viper  *viper.Viper
}

var serveFlags = config.FlagSet{
	config.FlagListen:             {Name: "listen", Shorthand: "l", ViperKey: "server.listen", Description: "Address for the relay server to listen on"},
	config.FlagCORSOrigins:        {Name: "cors-origins", ViperKey: "server.cors_origins", Description: "Comma separated browser origins allowed by CORS"},
	config.FlagAPIURL:             {Name: "api-url", ViperKey: "upstream.api_url", Description: "DeepSeek chat completions endpoint"},
	config.FlagModel:              {Name: "model", Shorthand: "m", ViperKey: "upstream.model", Description: "Model used when a request names none"},
	config.FlagOneShotTimeout:     {Name: "one-shot-timeout", ViperKey: "relay.one_shot_timeout", Description: "Timeout for buffered (GraphQL chat) calls"},
	config.FlagProgressiveTimeout: {Name: "progressive-timeout", ViperKey: "relay.progressive_timeout", Description: "Timeout for progressive (streamed) calls"},
	config.FlagCacheProvider:      {Name: "cache-provider", ViperKey: "cache.provider", Description: "Result cache (memory, redis, none)"},
	config.FlagCacheSize:          {Name: "cache-size", ViperKey: "cache.size", Description: "Maximum entries held by the memory cache"},
	config.FlagCacheTTL:           {Name: "cache-ttl", ViperKey: "cache.ttl", Description: "Lifetime of cached results"},
	config.FlagRedisAddr:          {Name: "redis-addr", ViperKey: "cache.redis_addr", Description: "Redis address for the redis cache"},
	config.FlagEventsProvider:     {Name: "events-provider", ViperKey: "events.provider", Description: "Completion event sink (none, kafka)"},
	config.FlagKafkaBrokers:       {Name: "kafka-brokers", ViperKey: "events.kafka_brokers", Description: "Comma separated Kafka brokers"},
	config.FlagKafkaTopic:         {Name: "kafka-topic", ViperKey: "events.kafka_topic", Description: "Kafka topic for completion events"},
}

var serveFlagKeys = []string{
	config.FlagListen,
	config.FlagCORSOrigins,
	config.FlagAPIURL,
	config.FlagModel,
	config.FlagOneShotTimeout,
	config.FlagProgressiveTimeout,
	config.FlagCacheProvider,
	config.FlagCacheSize,
	config.FlagCacheTTL,
	config.FlagRedisAddr,
	config.FlagEventsProvider,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
}

const serveLongDesc string = `Run the hellochat relay server.

The server exposes:
  GET  /health     Liveness and uptime
  GET  /stream     Progressive answers as Server-Sent Events
  POST /graphql    chat and chatStream queries

The DeepSeek API key is read from DEEPSEEK_API_KEY, HELLOCHAT_UPSTREAM_API_KEY
or upstream.api_key in config.toml. Without it the server starts but every
completion fails.

Examples:
  hellochat serve
  hellochat serve --listen :9000 --cache-provider redis --redis-addr localhost:6379
  hellochat serve --events-provider kafka --kafka-brokers localhost:9092`

const serveShortDesc string = "Run the hellochat relay server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{
		flags: serveFlags,
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, cmder.flags, serveFlagKeys)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run()
		},
	}

	// Flag values are read back through viper so config.toml and
	// environment variables apply when a flag is not set.
	f := &cmder.flagValues
	config.AddStringFlag(cmd, cmder.flags, config.FlagListen, &f.listen)
	config.AddStringSliceFlag(cmd, cmder.flags, config.FlagCORSOrigins, &f.corsOrigins)
	config.AddStringFlag(cmd, cmder.flags, config.FlagAPIURL, &f.apiURL)
	config.AddStringFlag(cmd, cmder.flags, config.FlagModel, &f.model)
	config.AddDurationFlag(cmd, cmder.flags, config.FlagOneShotTimeout, &f.oneShotTimeout)
	config.AddDurationFlag(cmd, cmder.flags, config.FlagProgressiveTimeout, &f.progressiveTimeout)
	config.AddStringFlag(cmd, cmder.flags, config.FlagCacheProvider, &f.cacheProvider)
	config.AddIntFlag(cmd, cmder.flags, config.FlagCacheSize, &f.cacheSize)
	config.AddStringFlag(cmd, cmder.flags, config.FlagCacheTTL, &f.cacheTTL)
	config.AddStringFlag(cmd, cmder.flags, config.FlagRedisAddr, &f.redisAddr)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEventsProvider, &f.eventsProvider)
	config.AddStringSliceFlag(cmd, cmder.flags, config.FlagKafkaBrokers, &f.kafkaBrokers)
	config.AddStringFlag(cmd, cmder.flags, config.FlagKafkaTopic, &f.kafkaTopic)

	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

// stack is the wired relay server and the resources it owns.
type stack struct {
	server    *api.Server
	relay     *relay.Relay
	cache     cache.Cache
	publisher eventstream.Publisher
}

func (c *serveCommander) run() error {
	var closeLog func() error
	var err error
	c.logger, closeLog, err = c.newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	s, err := newStack(c.viper, c.logger)
	if err != nil {
		return err
	}
	defer s.close(c.logger)

	listener, err := net.Listen("tcp", c.viper.GetString("server.listen"))
	if err != nil {
		return fmt.Errorf("listening: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.serve(listener); err != nil {
			errChan <- fmt.Errorf("relay server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return nil
	}
}

// newLogger builds the server logger. With --log-file, records also go to
// the file as JSON.
func (c *serveCommander) newLogger() (*slog.Logger, func() error, error) {
	console := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))
	if c.logFile == "" {
		return console, func() error { return nil }, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	file := logger.New(logger.WithDebug(c.debug), logger.WithJSON(true), logger.WithWriter(f))
	return logger.Multi(console, file), f.Close, nil
}

// newStack wires the cache, the event publisher, the relay and the API server
// from v.
func newStack(v *viper.Viper, log *slog.Logger) (*stack, error) {
	s := &stack{}

	if v.GetString("upstream.api_key") == "" {
		log.Warn("no DeepSeek API key configured; completions will fail",
			"env", "DEEPSEEK_API_KEY",
		)
	}

	var err error
	s.cache, err = cacheutils.NewCache(&cacheutils.NewCacheOpts{
		ProviderType: v.GetString("cache.provider"),
		Size:         v.GetInt("cache.size"),
		TTL:          v.GetDuration("cache.ttl"),
		RedisAddr:    v.GetString("cache.redis_addr"),
	})
	if err != nil {
		return nil, err
	}
	log.Info("result cache", "provider", v.GetString("cache.provider"))

	s.publisher, err = newPublisher(v, log)
	if err != nil {
		s.close(log)
		return nil, err
	}

	s.relay, err = relay.New(relay.Config{
		APIURL:       v.GetString("upstream.api_url"),
		APIKey:       v.GetString("upstream.api_key"),
		SystemPrompt: v.GetString("upstream.system_prompt"),
		Model:        v.GetString("upstream.model"),
		OneShot: relay.Policy{
			Timeout:     v.GetDuration("relay.one_shot_timeout"),
			MaxTokens:   v.GetInt("relay.one_shot_max_tokens"),
			Temperature: v.GetFloat64("relay.one_shot_temperature"),
		},
		Progressive: relay.Policy{
			Timeout:     v.GetDuration("relay.progressive_timeout"),
			MaxTokens:   v.GetInt("relay.progressive_max_tokens"),
			Temperature: v.GetFloat64("relay.progressive_temperature"),
		},
		ShortMessageThreshold: v.GetInt("cache.short_message_threshold"),
	}, s.cache, s.publisher, log)
	if err != nil {
		s.close(log)
		return nil, fmt.Errorf("creating relay: %w", err)
	}

	s.server, err = api.NewServer(api.Config{
		ListenAddr:  v.GetString("server.listen"),
		CORSOrigins: config.GetList(v, "server.cors_origins"),
	}, s.relay, log)
	if err != nil {
		s.close(log)
		return nil, fmt.Errorf("creating relay server: %w", err)
	}

	return s, nil
}

func newPublisher(v *viper.Viper, log *slog.Logger) (eventstream.Publisher, error) {
	switch provider := v.GetString("events.provider"); provider {
	case config.EventsProviderNone, "":
		return nop.NewPublisher(), nil
	case config.EventsProviderKafka:
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: config.GetList(v, "events.kafka_brokers"),
			Topic:   v.GetString("events.kafka_topic"),
			Logger:  log,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		log.Info("publishing completion events", "provider", provider, "topic", p.Topic())
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported events provider: %s", provider)
	}
}

// serve runs the server on listener until it is shut down.
func (s *stack) serve(listener net.Listener) error {
	return s.server.RunWithListener(listener)
}

// close shuts the server down, drains queued events and releases the
// cache. Nil members are skipped.
func (s *stack) close(log *slog.Logger) {
	var errs []error
	if s.server != nil {
		errs = append(errs, s.server.Shutdown())
	}
	if s.relay != nil {
		errs = append(errs, s.relay.Close())
	}
	for _, c := range []io.Closer{s.publisher, s.cache} {
		if c != nil {
			errs = append(errs, c.Close())
		}
	}
	if err := errors.Join(errs...); err != nil {
		log.Warn("shutdown", "error", err)
	}
}

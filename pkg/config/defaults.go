package config

import (
	"github.com/papercomputeco/hellochat/pkg/cache"
	"github.com/papercomputeco/hellochat/pkg/eventstream/kafka"
	"github.com/papercomputeco/hellochat/pkg/llm"
	"github.com/papercomputeco/hellochat/pkg/llm/deepseek"
)

const (
	defaultListen = ":8787"

	defaultOneShotTimeout         = "15s"
	defaultProgressiveTimeout     = "30s"
	defaultOneShotMaxTokens       = 500
	defaultProgressiveMaxTokens   = 2000
	defaultOneShotTemperature     = 0.1
	defaultProgressiveTemperature = 0.7

	defaultCacheSize             = 1024
	defaultCacheTTL              = "1h"
	defaultShortMessageThreshold = 50

	// EventsProviderNone disables completion event publishing.
	EventsProviderNone = "none"
	// EventsProviderKafka publishes completion events to Kafka.
	EventsProviderKafka = "kafka"

	defaultClientTarget = "http://localhost:8787"
	defaultRevealDelay  = "20ms"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Server: ServerConfig{
			Listen:      defaultListen,
			CORSOrigins: []string{"http://localhost:3000", "https://hello-chat-frontend.pages.dev"},
		},
		Upstream: UpstreamConfig{
			APIURL: deepseek.DefaultAPIURL,
			Model:  llm.DefaultModel,
		},
		Relay: RelayConfig{
			OneShotTimeout:         defaultOneShotTimeout,
			ProgressiveTimeout:     defaultProgressiveTimeout,
			OneShotMaxTokens:       defaultOneShotMaxTokens,
			ProgressiveMaxTokens:   defaultProgressiveMaxTokens,
			OneShotTemperature:     defaultOneShotTemperature,
			ProgressiveTemperature: defaultProgressiveTemperature,
		},
		Cache: CacheConfig{
			Provider:              cache.ProviderMemory,
			Size:                  defaultCacheSize,
			TTL:                   defaultCacheTTL,
			ShortMessageThreshold: defaultShortMessageThreshold,
		},
		Events: EventsConfig{
			Provider:   EventsProviderNone,
			KafkaTopic: kafka.DefaultTopic,
		},
		Client: ClientConfig{
			Target:      defaultClientTarget,
			RevealDelay: defaultRevealDelay,
		},
	}
}

// Package configcmder provides the config command for managing persistent
// hellochat configuration stored in the .hellochat/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/hellochat/pkg/cliui"
	"github.com/papercomputeco/hellochat/pkg/config"
)

const configLongDesc string = `Manage persistent hellochat configuration.

Configuration is stored as config.toml in the .hellochat/ directory and
provides default values for command flags. CLI flags and environment
variables (HELLOCHAT_<SECTION>_<KEY>, DEEPSEEK_API_KEY, DEEPSEEK_API_URL)
take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  server.listen, server.cors_origins,
  upstream.api_url, upstream.api_key, upstream.model, upstream.system_prompt,
  relay.one_shot_timeout, relay.progressive_timeout,
  relay.one_shot_max_tokens, relay.progressive_max_tokens,
  relay.one_shot_temperature, relay.progressive_temperature,
  cache.provider, cache.size, cache.ttl, cache.short_message_threshold, cache.redis_addr,
  events.provider, events.kafka_brokers, events.kafka_topic,
  client.target, client.reveal_delay

Use subcommands to get, set, or list configuration values:
  hellochat config set <key> <value>    Set a configuration value
  hellochat config get <key>            Get a configuration value
  hellochat config list                 List all configuration values

Examples:
  hellochat config set cache.provider redis
  hellochat config set server.cors_origins http://localhost:3000,https://chat.example
  hellochat config get relay.progressive_timeout
  hellochat config list`

const configShortDesc string = "Manage persistent hellochat configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

// completeKeys offers config keys for the first positional argument.
func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

// displayValue masks secrets and marks unset values.
func displayValue(key, value string) string {
	if value == "" {
		return cliui.DimStyle.Render("<not set>")
	}
	if config.IsSecretConfigKey(key) {
		return cliui.ValueStyle.Render(cliui.MaskSecret(value))
	}
	return cliui.ValueStyle.Render(value)
}

func printTarget(w io.Writer, target string) {
	if target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
		return
	}
	fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}

func unknownKeyError(key string) error {
	return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
		key, strings.Join(config.ValidConfigKeys(), ", "))
}

// Package hellochatcmder is the root hellochat command.
package hellochatcmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/hellochat/cmd/hellochat/chat"
	configcmder "github.com/papercomputeco/hellochat/cmd/hellochat/config"
	initcmder "github.com/papercomputeco/hellochat/cmd/hellochat/init"
	servecmder "github.com/papercomputeco/hellochat/cmd/hellochat/serve"
	versioncmder "github.com/papercomputeco/hellochat/cmd/version"
)

const hellochatLongDesc string = `hellochat relays chat completions from DeepSeek to browsers and terminals.

The relay server exposes progressive answers over Server-Sent Events and
buffered answers over GraphQL:
  hellochat serve                Run the relay server
  hellochat chat                 Chat with a running relay from the terminal
  hellochat init                 Create a local .hellochat/ directory
  hellochat config list          Show the effective configuration`

const hellochatShortDesc string = "hellochat - streaming chat completion relay"

func NewHellochatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "hellochat",
		Short:        hellochatShortDesc,
		Long:         hellochatLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .hellochat/ config directory")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}

// Package chatcmder provides the chat command, an interactive terminal client
// for a running hellochat relay.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/hellochat/pkg/client"
	"github.com/papercomputeco/hellochat/pkg/cliui"
	"github.com/papercomputeco/hellochat/pkg/config"
	"github.com/papercomputeco/hellochat/pkg/logger"
)

type chatCommander struct {
	flags config.FlagSet
	debug bool

	target      string
	model       string
	revealDelay time.Duration
	buffered    bool
	slot        string
	render      bool

	logger *slog.Logger
	viper  *viper.Viper
}

var chatFlags = config.FlagSet{
	config.FlagTarget:      {Name: "target", Shorthand: "t", ViperKey: "client.target", Description: "hellochat relay URL"},
	config.FlagModel:       {Name: "model", Shorthand: "m", ViperKey: "upstream.model", Description: "Model to ask"},
	config.FlagRevealDelay: {Name: "reveal-delay", ViperKey: "client.reveal_delay", Description: "Pause between revealed characters with --buffered"},
}

var chatFlagKeys = []string{
	config.FlagTarget,
	config.FlagModel,
	config.FlagRevealDelay,
}

const chatLongDesc string = `Start an interactive chat session with a running hellochat relay.

By default answers stream live from the relay's /stream endpoint. With
--buffered the full answer is fetched through GraphQL and revealed
character by character.

Sending a new message while an answer is still arriving cancels it.
If the relay cannot be reached the answer is replaced with an apology.

Examples:
  hellochat chat
  hellochat chat --target http://localhost:9000 --model deepseek-reasoner
  hellochat chat --buffered --reveal-delay 5ms --render`

const chatShortDesc string = "Chat with a hellochat relay"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{
		flags: chatFlags,
	}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, cmder.flags, chatFlagKeys)
			cmder.viper = v
			cmder.target = v.GetString("client.target")
			cmder.model = v.GetString("upstream.model")
			cmder.revealDelay = v.GetDuration("client.reveal_delay")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return cmder.run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	config.AddStringFlag(cmd, cmder.flags, config.FlagTarget, &cmder.target)
	config.AddStringFlag(cmd, cmder.flags, config.FlagModel, &cmder.model)
	config.AddDurationFlag(cmd, cmder.flags, config.FlagRevealDelay, &cmder.revealDelay)
	cmd.Flags().BoolVar(&cmder.buffered, "buffered", false, "Fetch whole answers over GraphQL and reveal them locally")
	cmd.Flags().StringVar(&cmder.slot, "slot", "", "Conversation slot on the relay (default: random per session)")
	cmd.Flags().BoolVar(&cmder.render, "render", false, "Re-render each finished answer as markdown")

	return cmd
}

func (c *chatCommander) run(ctx context.Context, in io.Reader, out io.Writer) error {
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithWriter(os.Stderr),
	)

	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render("Relay:"), cliui.ValueStyle.Render(c.target))
	fmt.Fprintf(out, "  %s %s\n\n", cliui.KeyStyle.Render("Model:"), cliui.NameStyle.Render(c.model))
	fmt.Fprintf(out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	return c.loop(ctx, in, out, c.source())
}

// source picks the live or buffered transport.
func (c *chatCommander) source() client.Source {
	base := strings.TrimRight(c.target, "/")
	if c.buffered {
		return &client.GraphQLSource{
			Endpoint:    base + "/graphql",
			RevealDelay: c.revealDelay,
		}
	}

	slot := c.slot
	if slot == "" {
		slot = uuid.NewString()
	}
	return &client.LiveSource{
		BaseURL: base,
		Slot:    slot,
	}
}

// loop reads one message per line from in and prints each answer to out as
// it arrives.
func (c *chatCommander) loop(ctx context.Context, in io.Reader, out io.Writer, src client.Source) error {
	if c.logger == nil {
		c.logger = logger.Nop()
	}
	p := &turnPrinter{w: out}

	session, err := client.NewSession(client.SessionConfig{
		Source:   src,
		Model:    c.model,
		OnChange: p.onChange,
		Logger:   c.logger,
	})
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, cliui.UserPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		fmt.Fprint(out, cliui.AssistantPrompt)
		p.reset()

		turn, err := session.Send(ctx, input)
		fmt.Fprintln(out)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}

		if c.render {
			text, _ := turn.View.Snapshot()
			rendered, err := cliui.RenderMarkdown(text)
			if err != nil {
				c.logger.Debug("rendering markdown", "error", err)
			}
			fmt.Fprint(out, rendered)
		}
		fmt.Fprintln(out)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(out)
	return nil
}

// turnPrinter writes the growing tail of the current turn's view.
type turnPrinter struct {
	w       io.Writer
	printed int
	failed  bool
}

func (p *turnPrinter) reset() {
	p.printed = 0
	p.failed = false
}

func (p *turnPrinter) onChange(turn *client.Turn) {
	text, _ := turn.View.Snapshot()

	if turn.State() == client.StateFailed {
		if !p.failed {
			p.failed = true
			fmt.Fprintf(p.w, "\n  %s %s", cliui.FailMark, text)
		}
		return
	}

	runes := []rune(text)
	if len(runes) <= p.printed {
		return
	}
	fmt.Fprint(p.w, string(runes[p.printed:]))
	p.printed = len(runes)
}

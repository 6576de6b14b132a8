// Package initcmder provides the init command for initializing a local
// .hellochat directory in the current working directory.
package initcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/hellochat/pkg/cliui"
	"github.com/papercomputeco/hellochat/pkg/config"
	"github.com/papercomputeco/hellochat/pkg/dotdir"
)

const remoteFetchTimeout = 10 * time.Second

const initLongDesc string = `Initialize a new .hellochat/ directory in the current working directory.

Creates a local .hellochat/ directory, which takes precedence over
~/.hellochat/, and writes a config.toml. An existing config.toml is kept
unless --preset is given.

--preset accepts a named preset or an http(s) URL serving a config.toml:
  local      In-memory cache, no completion events (the defaults)
  shared     Redis cache and Kafka completion events for several replicas
  nocache    Every message goes upstream

Examples:
  hellochat init
  hellochat init --preset shared
  hellochat init --preset https://example.com/hellochat/config.toml`

const initShortDesc string = "Initialize a local .hellochat/ directory"

type initCommander struct {
	preset string
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "",
		fmt.Sprintf("Preset name (%s) or URL of a config.toml", strings.Join(config.ValidPresetNames(), ", ")))

	return cmd
}

func (c *initCommander) run(ctx context.Context, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}
	dir := filepath.Join(cwd, dotdir.DirName)

	// Resolve the preset before touching the filesystem.
	var cfg *config.Config
	if c.preset != "" {
		cfg, err = c.resolvePreset(ctx, w)
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .hellochat directory: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg == nil {
		if _, err := os.Stat(cfger.GetTarget()); err == nil {
			fmt.Fprintf(w, "  %s Already initialized: %s\n", cliui.SuccessMark, cliui.DimStyle.Render(dir))
			return nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("reading config: %w", err)
		}
		cfg = config.NewDefaultConfig()
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "  %s Initialized %s\n", cliui.SuccessMark, cliui.DimStyle.Render(cfger.GetTarget()))
	return nil
}

func (c *initCommander) resolvePreset(ctx context.Context, w io.Writer) (*config.Config, error) {
	if !strings.HasPrefix(c.preset, "http://") && !strings.HasPrefix(c.preset, "https://") {
		return config.PresetConfig(c.preset)
	}

	var cfg *config.Config
	err := cliui.Step(w, "Fetching "+c.preset, func() error {
		var err error
		cfg, err = fetchRemoteConfig(ctx, c.preset)
		return err
	})
	return cfg, err
}

// fetchRemoteConfig downloads and validates a config.toml.
func fetchRemoteConfig(ctx context.Context, url string) (*config.Config, error) {
	ctx, cancel := context.WithTimeout(ctx, remoteFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	return config.ParseConfigTOML(data)
}

// Package cli implements the weavemint command tree.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"weavemint.dev/weavemint/config"
	"weavemint.dev/weavemint/logging"
)

// RootOptions holds global flags and the state PersistentPreRunE prepares for
// subcommands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string

	Config *config.Config
	Logger *slog.Logger

	logFile io.Closer
}

// NewRootCommand creates the weavemint command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "weavemint",
		Short: "Publish images to permanent storage and mint them as tokens",
		Long: `weavemint fits an image to a byte budget, uploads it to the storage
gateway as a signed transaction, and encodes the token metadata that points
at it. The encoded metadata can be minted directly with --mint.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.teardown()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default $"+config.EnvPath+")")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	cmd.AddCommand(NewPublishCommand(opts))
	cmd.AddCommand(NewProbeCommand(opts))
	cmd.AddCommand(NewCompressCommand(opts))
	cmd.AddCommand(NewEncodeCommand(opts))
	cmd.AddCommand(NewDecodeCommand(opts))
	cmd.AddCommand(NewKeyCommand(opts))
	cmd.AddCommand(NewMintCommand(opts))

	return cmd
}

func (o *RootOptions) setup(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	if o.ConfigPath != "" {
		cfg, err = config.LoadFile(o.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	o.Config = cfg

	level := cfg.Log.Level
	if o.LogLevel != "" {
		level = o.LogLevel
	}
	logOpts := logging.Options{Level: level, Writer: cmd.ErrOrStderr()}
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		o.logFile = f
		logOpts.JSON = f
	}
	logger, _, err := logging.New(logOpts)
	if err != nil {
		return err
	}
	o.Logger = logger.With("command", cmd.Name())
	return nil
}

func (o *RootOptions) teardown() error {
	if o.logFile == nil {
		return nil
	}
	err := o.logFile.Close()
	o.logFile = nil
	return err
}

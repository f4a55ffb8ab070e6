package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"thingcode-go/services/config"
	"thingcode-go/x/logx"
)

// RootOptions holds the global flags and what they resolve to.
type RootOptions struct {
	ConfigPath string
	Board      string
	LogLevel   string
	Protocol   string

	Config config.Config
	Log    *slog.Logger
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "shadething",
		Short: "Shadow-synchronised thing runner",
		Long: `shadething drives a thing through wake cycles against a device shadow:
fetch the desired state, reconcile at most one operation, report, sleep.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.resolve(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file (.yaml, .yml or .toml); default is the embedded board config")
	pf.StringVar(&opts.Board, "board", config.BoardHost, "embedded board config used when --config is not set")
	pf.StringVarP(&opts.LogLevel, "loglevel", "l", "", "log level (error|warn|info|debug); overrides logging.level")
	pf.StringVar(&opts.Protocol, "protocol", "", "shadow transport (http|ws|file); overrides transport.protocol")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewHubCommand(opts))
	cmd.AddCommand(NewStateCommand(opts))
	cmd.AddCommand(NewJournalCommand(opts))
	return cmd
}

func (o *RootOptions) resolve(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigPath, o.Board)
	if err != nil {
		return err
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
	if o.Protocol != "" {
		cfg.Transport.Protocol = o.Protocol
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, err := logx.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("--loglevel: %w", err)
	}
	o.Config = cfg
	o.Log = logx.New(cmd.ErrOrStderr(), level)
	return nil
}

// Package cli wires configuration, storage and the refresh pipeline into
// the zhuhaibay commands.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/summerlia/zhuhaibay/config"
	"github.com/summerlia/zhuhaibay/utils"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

type rootOptions struct {
	logLevel string
}

// NewRootCmd builds the zhuhaibay command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "zhuhaibay",
		Short:         "Track available presale units in Zhuhai",
		Long:          "zhuhaibay fetches the Zhuhai presale listing feed, stores daily snapshots and serves them over HTTP.",
		Version:       Version,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Flags parsed fine; errors from here on are runtime ones.
			cmd.SilenceUsage = true
		},
	}
	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	cmd.AddCommand(newServeCmd(opts), newRefreshCmd(opts))
	return cmd
}

// loadConfig reads the environment and applies flag overrides.
func (o *rootOptions) loadConfig() (*config.Config, *utils.Logger) {
	cfg := config.Load()
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, utils.NewLogger(utils.ParseLevel(cfg.LogLevel))
}

// Package commands wires the vetdw pipeline stages into a CLI. The
// commands are thin orchestration over the staging and warehouse
// packages; all algorithmic work lives there.
package commands

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openvetdata/vetdw/pkg/config"
	"github.com/openvetdata/vetdw/pkg/logging"
)

// Version is set at build time via ldflags.
var Version = "dev"

type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCmd builds the vetdw command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	var configPath string

	root := &cobra.Command{
		Use:           "vetdw",
		Short:         "Veterinary adverse-event warehouse pipeline",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.LogLevel)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")

	root.AddCommand(
		newMigrateCmd(a),
		newStageCmd(a),
		newLoadCmd(a),
		newStatsCmd(a),
	)
	return root
}

package commands

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openvetdata/vetdw/pkg/breedmatch"
	"github.com/openvetdata/vetdw/pkg/database"
	"github.com/openvetdata/vetdw/pkg/metrics"
	"github.com/openvetdata/vetdw/pkg/staging"
	"github.com/openvetdata/vetdw/pkg/warehouse"
)

func newLoadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Load staged records into the warehouse star schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := staging.Open(a.cfg.StagingDB, a.logger)
			if err != nil {
				return err
			}
			defer store.Close()

			// Migrations get their own connection; the migrate instance
			// closes it on completion.
			migDB, err := database.Open(a.cfg.WarehouseDB)
			if err != nil {
				return err
			}
			if err := database.RunMigrations(migDB, a.cfg.MigrationsPath, a.logger); err != nil {
				return err
			}

			db, err := database.Open(a.cfg.WarehouseDB)
			if err != nil {
				return err
			}
			defer db.Close()

			m := metrics.NewLoaderMetrics()
			if a.cfg.MetricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", m.Handler())
				go func() {
					if err := http.ListenAndServe(a.cfg.MetricsAddr, mux); err != nil {
						a.logger.Warn("Metrics server stopped", zap.Error(err))
					}
				}()
			}

			breeds, err := store.Breeds(ctx)
			if err != nil {
				return err
			}
			events, err := store.Events(ctx)
			if err != nil {
				return err
			}

			resolver := warehouse.NewResolver(db, m)
			loader := warehouse.NewLoader(db, resolver, breedmatch.NewMatcher(breeds), a.logger, m)

			if _, err := loader.LoadBreeds(ctx, breeds); err != nil {
				return err
			}

			summary, err := loader.Load(ctx, events)
			if err != nil {
				return err
			}

			fmt.Printf("run %s: inserted=%d skipped=%d duplicates=%d errors=%d\n",
				summary.RunID, summary.Inserted, summary.Skipped, summary.Duplicates, summary.Errors)
			for _, reason := range summary.Reasons {
				fmt.Printf("  %s [%s]: %s\n", reason.ReportID, reason.Step, reason.Reason)
			}
			return nil
		},
	}
}

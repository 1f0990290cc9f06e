package commands

import (
	"github.com/spf13/cobra"

	"github.com/openvetdata/vetdw/pkg/database"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending warehouse schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Open(a.cfg.WarehouseDB)
			if err != nil {
				return err
			}
			defer db.Close()

			return database.RunMigrations(db, a.cfg.MigrationsPath, a.logger)
		},
	}
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openvetdata/vetdw/pkg/analytics"
	"github.com/openvetdata/vetdw/pkg/database"
)

func newStatsCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print aggregate statistics from the warehouse",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			db, err := database.Open(a.cfg.WarehouseDB)
			if err != nil {
				return err
			}
			defer db.Close()

			q := analytics.New(db)

			reactions, err := q.TopReactions(ctx, limit)
			if err != nil {
				return err
			}
			fmt.Println("Top reactions:")
			for _, r := range reactions {
				fmt.Printf("  %-40s %d\n", r.Name, r.Events)
			}

			ingredients, err := q.TopIngredients(ctx, limit)
			if err != nil {
				return err
			}
			fmt.Println("Top active ingredients:")
			for _, i := range ingredients {
				fmt.Printf("  %-40s %d\n", i.Name, i.Events)
			}

			outcomes, err := q.OutcomeDistribution(ctx)
			if err != nil {
				return err
			}
			fmt.Println("Outcomes:")
			for _, o := range outcomes {
				fmt.Printf("  %-40s %d\n", o.Name, o.Events)
			}

			geos, err := q.EventsByGeography(ctx, limit)
			if err != nil {
				return err
			}
			fmt.Println("Events by geography:")
			for _, g := range geos {
				fmt.Printf("  %-20s %-20s %d\n", g.State, g.Country, g.Events)
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "rows per section")
	return cmd
}

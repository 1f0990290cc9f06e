package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openvetdata/vetdw/pkg/staging"
)

func newStageCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stage",
		Short: "Normalize raw extracted files into the staging database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := staging.Open(a.cfg.StagingDB, a.logger)
			if err != nil {
				return err
			}
			defer store.Close()

			staged, dropped, err := store.StageEventsFile(ctx, a.cfg.RawEventsFile)
			if err != nil {
				return err
			}

			dogs, err := store.StageDogBreedsFile(ctx, a.cfg.RawDogBreedsFile)
			if err != nil {
				return err
			}
			cats, err := store.StageCatBreedsFile(ctx, a.cfg.RawCatBreedsFile)
			if err != nil {
				return err
			}

			fmt.Printf("staged %d events (%d dropped), %d dog breeds, %d cat breeds\n",
				staged, dropped, dogs, cats)
			return nil
		},
	}
}

package warehouse

import (
	"context"

	"go.uber.org/zap"

	"github.com/openvetdata/vetdw/pkg/breedmatch"
	"github.com/openvetdata/vetdw/pkg/models"
)

// LoadBreeds seeds dim_breed from the staged breed reference rows, with
// the reference group/purpose attached as enrichment. Resolution goes
// through the same get-or-create path as event breeds, so re-running is
// idempotent and FDA-sourced rows pick up enrichment when the reference
// names them.
func (l *Loader) LoadBreeds(ctx context.Context, refs []models.BreedRef) (int, error) {
	loaded := 0
	for _, ref := range refs {
		enr := &breedmatch.Enrichment{Group: ref.Group, Purpose: ref.Purpose}
		if _, err := l.resolver.ResolveBreed(ctx, ref.Species, ref.Name, enr, ref.Source); err != nil {
			return loaded, err
		}
		loaded++
	}
	l.logger.Info("Loaded breed reference", zap.Int("breeds", loaded))
	return loaded, nil
}

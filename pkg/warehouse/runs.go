package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/openvetdata/vetdw/pkg/apperrors"
	"github.com/openvetdata/vetdw/pkg/models"
)

// recordRunStart registers the run before any record is processed. A
// warehouse that cannot even record the run is unavailable, so this is
// fatal to the batch.
func (l *Loader) recordRunStart(ctx context.Context, summary *models.LoadSummary) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO load_runs (run_id, started_at) VALUES (?, ?)`,
		summary.RunID.String(), summary.StartedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("%w: record load run: %v", apperrors.ErrStorageUnavailable, err)
	}
	return nil
}

func (l *Loader) recordRunFinish(ctx context.Context, summary *models.LoadSummary) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE load_runs
		SET finished_at = ?, inserted = ?, skipped = ?, duplicates = ?, errors = ?
		WHERE run_id = ?`,
		summary.FinishedAt.Format(time.RFC3339),
		summary.Inserted,
		summary.Skipped,
		summary.Duplicates,
		summary.Errors,
		summary.RunID.String())
	if err != nil {
		return fmt.Errorf("update load run %s: %w", summary.RunID, err)
	}
	return nil
}

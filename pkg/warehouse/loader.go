package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openvetdata/vetdw/pkg/apperrors"
	"github.com/openvetdata/vetdw/pkg/breedmatch"
	"github.com/openvetdata/vetdw/pkg/metrics"
	"github.com/openvetdata/vetdw/pkg/models"
)

// Loader moves staged events into the star schema. Dimension resolution
// for each event happens first, serialized through the Resolver; the fact
// row and its bridge rows are then written in a single transaction so a
// failure never leaves a partially-loaded fact behind.
type Loader struct {
	db       *sql.DB
	resolver *Resolver
	matcher  *breedmatch.Matcher
	logger   *zap.Logger
	metrics  *metrics.LoaderMetrics // optional
}

// NewLoader creates a Loader. matcher and m may be nil; without a matcher
// breeds load without enrichment.
func NewLoader(db *sql.DB, resolver *Resolver, matcher *breedmatch.Matcher, logger *zap.Logger, m *metrics.LoaderMetrics) *Loader {
	return &Loader{db: db, resolver: resolver, matcher: matcher, logger: logger, metrics: m}
}

type loadResult string

const (
	resultInserted  loadResult = "inserted"
	resultDuplicate loadResult = "duplicate"
	resultSkipped   loadResult = "skipped"
	resultError     loadResult = "error"
)

// Load processes staged events in input order and returns a summary of
// the run. Record-local failures are counted and recorded, never fatal;
// only systemic storage unavailability aborts the batch. Re-running the
// same input is idempotent: report ids already present are no-op
// successes.
func (l *Loader) Load(ctx context.Context, events []models.StagedEvent) (*models.LoadSummary, error) {
	summary := &models.LoadSummary{
		RunID:     uuid.New(),
		StartedAt: time.Now().UTC(),
	}

	if err := l.recordRunStart(ctx, summary); err != nil {
		return summary, err
	}

	for _, event := range events {
		if err := ctx.Err(); err != nil {
			l.finishRun(summary)
			return summary, err
		}

		result, outcome, err := l.loadOne(ctx, event)
		if err != nil {
			l.finishRun(summary)
			return summary, err
		}

		switch result {
		case resultInserted:
			summary.Inserted++
		case resultDuplicate:
			summary.Duplicates++
		case resultSkipped:
			summary.Skipped++
		case resultError:
			summary.Errors++
		}
		if outcome != nil {
			summary.Reasons = append(summary.Reasons, *outcome)
			l.logger.Warn("Record not loaded",
				zap.String("report_id", outcome.ReportID),
				zap.String("step", outcome.Step),
				zap.String("reason", outcome.Reason))
		}
		if l.metrics != nil {
			l.metrics.EventsProcessed.WithLabelValues(string(result)).Inc()
		}
	}

	l.finishRun(summary)
	l.logger.Info("Load run complete",
		zap.String("run_id", summary.RunID.String()),
		zap.Int("inserted", summary.Inserted),
		zap.Int("skipped", summary.Skipped),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("errors", summary.Errors))
	return summary, nil
}

// loadOne walks one event through the per-record state machine:
// unloaded -> dimensions-resolved -> fact-inserted -> bridges-inserted.
// The returned error is non-nil only for systemic storage failures.
func (l *Loader) loadOne(ctx context.Context, e models.StagedEvent) (loadResult, *models.RecordOutcome, error) {
	if e.ReportID == "" {
		return resultSkipped, &models.RecordOutcome{
			Step:   models.StepIdentity,
			Reason: apperrors.ErrMissingReportID.Error(),
		}, nil
	}

	keys, err := l.resolveDimensions(ctx, e)
	if err != nil {
		return l.recordFailure(ctx, e.ReportID, models.StepDimensions, err)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return resultError, nil, fmt.Errorf("%w: begin tx for %s: %v", apperrors.ErrStorageUnavailable, e.ReportID, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO fact_event (
			report_id, breed_key, geo_key, species, gender,
			reproductive_status, weight_kg, days_to_reaction, event_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ReportID,
		keys.breed,
		keys.geo,
		nullable(e.Species),
		nullable(e.Gender),
		nullable(e.ReproductiveStatus),
		e.WeightKg,
		e.DaysToReaction,
		nullable(e.EventDate),
	)
	if err != nil {
		return l.recordFailure(ctx, e.ReportID, models.StepFact, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return l.recordFailure(ctx, e.ReportID, models.StepFact, err)
	}
	if affected == 0 {
		// Already loaded on a previous run.
		return resultDuplicate, nil, nil
	}

	eventKey, err := res.LastInsertId()
	if err != nil {
		return l.recordFailure(ctx, e.ReportID, models.StepFact, err)
	}

	if err := l.insertBridges(ctx, tx, eventKey, keys); err != nil {
		return l.recordFailure(ctx, e.ReportID, models.StepBridges, err)
	}

	if err := tx.Commit(); err != nil {
		return resultError, nil, fmt.Errorf("%w: commit %s: %v", apperrors.ErrStorageUnavailable, e.ReportID, err)
	}
	return resultInserted, nil, nil
}

// eventKeys holds all dimension keys resolved for one staged event.
type eventKeys struct {
	breed       any // int64 or nil when the event names no breed
	geo         int64
	reactions   []int64
	outcomes    []int64
	ingredients []int64
}

func (l *Loader) resolveDimensions(ctx context.Context, e models.StagedEvent) (*eventKeys, error) {
	keys := &eventKeys{}

	if e.BreedName != "" {
		var enr *breedmatch.Enrichment
		if l.matcher != nil {
			if match, ok := l.matcher.Enrich(e.BreedName); ok {
				enr = &match
			}
		}
		key, err := l.resolver.ResolveBreed(ctx, e.Species, e.BreedName, enr, "openfda")
		if err != nil {
			return nil, err
		}
		keys.breed = key
	}

	geo, err := l.resolver.ResolveGeo(ctx, e.State, e.Country)
	if err != nil {
		return nil, err
	}
	keys.geo = geo

	for _, term := range e.Reactions {
		key, err := l.resolver.ResolveReaction(ctx, term)
		if err != nil {
			return nil, err
		}
		keys.reactions = append(keys.reactions, key)
	}
	for _, name := range e.Outcomes {
		key, err := l.resolver.ResolveOutcome(ctx, name)
		if err != nil {
			return nil, err
		}
		keys.outcomes = append(keys.outcomes, key)
	}
	for _, ing := range e.Ingredients {
		key, err := l.resolver.ResolveIngredient(ctx, ing.Name)
		if err != nil {
			return nil, err
		}
		keys.ingredients = append(keys.ingredients, key)
	}

	return keys, nil
}

func (l *Loader) insertBridges(ctx context.Context, tx *sql.Tx, eventKey int64, keys *eventKeys) error {
	for _, bridge := range []struct {
		table  string
		column string
		keys   []int64
	}{
		{"bridge_event_reaction", "reaction_key", keys.reactions},
		{"bridge_event_outcome", "outcome_key", keys.outcomes},
		{"bridge_event_ingredient", "ingredient_key", keys.ingredients},
	} {
		insert := fmt.Sprintf(`INSERT OR IGNORE INTO %s (event_key, %s) VALUES (?, ?)`, bridge.table, bridge.column)
		for _, dimKey := range bridge.keys {
			res, err := tx.ExecContext(ctx, insert, eventKey, dimKey)
			if err != nil {
				return fmt.Errorf("insert %s: %w", bridge.table, err)
			}
			if l.metrics != nil {
				if n, err := res.RowsAffected(); err == nil && n > 0 {
					l.metrics.BridgeRows.WithLabelValues(bridge.table).Inc()
				}
			}
		}
	}
	return nil
}

// recordFailure classifies a storage error: when the warehouse itself is
// still reachable the failure is record-local and the batch continues;
// otherwise the batch aborts.
func (l *Loader) recordFailure(ctx context.Context, reportID, step string, err error) (loadResult, *models.RecordOutcome, error) {
	if pingErr := l.db.PingContext(ctx); pingErr != nil {
		return resultError, nil, fmt.Errorf("%w: %s at %s: %v", apperrors.ErrStorageUnavailable, reportID, step, err)
	}
	return resultError, &models.RecordOutcome{
		ReportID: reportID,
		Step:     step,
		Reason:   err.Error(),
	}, nil
}

func (l *Loader) finishRun(summary *models.LoadSummary) {
	summary.FinishedAt = time.Now().UTC()
	if err := l.recordRunFinish(context.Background(), summary); err != nil {
		l.logger.Warn("Failed to record load run", zap.Error(err))
	}
}

// Package staging normalizes raw extracted records into flat, typed
// intermediate relations, one per source. The staging store is read-only
// input to the warehouse loader and is never mutated by it.
package staging

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/openvetdata/vetdw/pkg/database"
	"github.com/openvetdata/vetdw/pkg/models"
)

// Store persists staged records in a SQLite database separate from the
// warehouse. Restaging a source replaces that source's rows wholesale, so
// staging the same raw input twice is idempotent.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if necessary) the staging database at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, err
	}

	schema := `
		CREATE TABLE IF NOT EXISTS staging_events (
			seq                 INTEGER PRIMARY KEY AUTOINCREMENT,
			report_id           TEXT NOT NULL,
			species             TEXT,
			breed_name          TEXT,
			gender              TEXT,
			reproductive_status TEXT,
			weight_kg           REAL,
			event_date          TEXT,
			days_to_reaction    INTEGER,
			ingredients         TEXT NOT NULL,
			reactions           TEXT NOT NULL,
			outcomes            TEXT NOT NULL,
			state               TEXT,
			country             TEXT
		);
		CREATE TABLE IF NOT EXISTS staging_dog_breeds (
			seq         INTEGER PRIMARY KEY AUTOINCREMENT,
			name        TEXT NOT NULL,
			breed_group TEXT,
			purpose     TEXT,
			source      TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS staging_cat_breeds (
			seq         INTEGER PRIMARY KEY AUTOINCREMENT,
			name        TEXT NOT NULL,
			breed_group TEXT,
			purpose     TEXT,
			source      TEXT NOT NULL
		);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create staging tables: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle for tests.
func (s *Store) DB() *sql.DB { return s.db }

// StageEventsFile parses the raw adverse-event file at path and replaces
// the staged events with the result. Records without a report id are
// dropped and logged, not fatal to the batch. It returns the number of
// staged and dropped records.
func (s *Store) StageEventsFile(ctx context.Context, path string) (int, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("read raw events: %w", err)
	}
	records, err := decodeRecords(data)
	if err != nil {
		return 0, 0, err
	}

	events := make([]models.StagedEvent, 0, len(records))
	dropped := 0
	for i, record := range records {
		event, err := parseEvent(record)
		if err != nil {
			dropped++
			s.logger.Warn("Dropping identity-less record",
				zap.Int("record", i+1),
				zap.Error(err))
			continue
		}
		events = append(events, event)
	}

	if err := s.ReplaceEvents(ctx, events); err != nil {
		return 0, 0, err
	}
	s.logger.Info("Staged adverse events",
		zap.String("path", path),
		zap.Int("staged", len(events)),
		zap.Int("dropped", dropped))
	return len(events), dropped, nil
}

// StageDogBreedsFile parses the raw dog breed reference file at path and
// replaces the staged dog breeds with the result.
func (s *Store) StageDogBreedsFile(ctx context.Context, path string) (int, error) {
	return s.stageBreedsFile(ctx, path, "staging_dog_breeds", "dog", SourceDogAPI)
}

// StageCatBreedsFile parses the raw cat breed reference file at path and
// replaces the staged cat breeds with the result.
func (s *Store) StageCatBreedsFile(ctx context.Context, path string) (int, error) {
	return s.stageBreedsFile(ctx, path, "staging_cat_breeds", "cat", SourceCatAPI)
}

func (s *Store) stageBreedsFile(ctx context.Context, path, table, species, source string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read raw breeds: %w", err)
	}
	records, err := decodeRecords(data)
	if err != nil {
		return 0, err
	}
	refs := parseBreedRefs(records, species, source)

	if err := s.replaceBreeds(ctx, table, refs); err != nil {
		return 0, err
	}
	s.logger.Info("Staged breed reference",
		zap.String("path", path),
		zap.String("source", source),
		zap.Int("staged", len(refs)))
	return len(refs), nil
}

// ReplaceEvents replaces all staged events in one transaction, preserving
// input order.
func (s *Store) ReplaceEvents(ctx context.Context, events []models.StagedEvent) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin staging tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM staging_events`); err != nil {
		return fmt.Errorf("clear staged events: %w", err)
	}

	const insert = `
		INSERT INTO staging_events (
			report_id, species, breed_name, gender, reproductive_status,
			weight_kg, event_date, days_to_reaction,
			ingredients, reactions, outcomes, state, country
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for _, e := range events {
		ingredients, err := json.Marshal(e.Ingredients)
		if err != nil {
			return fmt.Errorf("encode ingredients for %s: %w", e.ReportID, err)
		}
		reactions, err := json.Marshal(e.Reactions)
		if err != nil {
			return fmt.Errorf("encode reactions for %s: %w", e.ReportID, err)
		}
		outcomes, err := json.Marshal(e.Outcomes)
		if err != nil {
			return fmt.Errorf("encode outcomes for %s: %w", e.ReportID, err)
		}

		if _, err := tx.ExecContext(ctx, insert,
			e.ReportID,
			nullable(e.Species),
			nullable(e.BreedName),
			nullable(e.Gender),
			nullable(e.ReproductiveStatus),
			e.WeightKg,
			nullable(e.EventDate),
			e.DaysToReaction,
			string(ingredients),
			string(reactions),
			string(outcomes),
			nullable(e.State),
			nullable(e.Country),
		); err != nil {
			return fmt.Errorf("insert staged event %s: %w", e.ReportID, err)
		}
	}

	return tx.Commit()
}

func (s *Store) replaceBreeds(ctx context.Context, table string, refs []models.BreedRef) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin staging tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}

	insert := `INSERT INTO ` + table + ` (name, breed_group, purpose, source) VALUES (?, ?, ?, ?)`
	for _, ref := range refs {
		if _, err := tx.ExecContext(ctx, insert,
			ref.Name, nullable(ref.Group), nullable(ref.Purpose), ref.Source,
		); err != nil {
			return fmt.Errorf("insert staged breed %s: %w", ref.Name, err)
		}
	}

	return tx.Commit()
}

// Events returns all staged events in staging order.
func (s *Store) Events(ctx context.Context) ([]models.StagedEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT report_id, species, breed_name, gender, reproductive_status,
		       weight_kg, event_date, days_to_reaction,
		       ingredients, reactions, outcomes, state, country
		FROM staging_events
		ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query staged events: %w", err)
	}
	defer rows.Close()

	var events []models.StagedEvent
	for rows.Next() {
		var (
			e                                  models.StagedEvent
			species, breed, gender, repro      sql.NullString
			eventDate, state, country          sql.NullString
			weight                             sql.NullFloat64
			days                               sql.NullInt64
			ingredients, reactions, outcomes   string
		)
		if err := rows.Scan(
			&e.ReportID, &species, &breed, &gender, &repro,
			&weight, &eventDate, &days,
			&ingredients, &reactions, &outcomes, &state, &country,
		); err != nil {
			return nil, fmt.Errorf("scan staged event: %w", err)
		}

		e.Species = species.String
		e.BreedName = breed.String
		e.Gender = gender.String
		e.ReproductiveStatus = repro.String
		e.EventDate = eventDate.String
		e.State = state.String
		e.Country = country.String
		if weight.Valid {
			e.WeightKg = &weight.Float64
		}
		if days.Valid {
			d := int(days.Int64)
			e.DaysToReaction = &d
		}
		if err := json.Unmarshal([]byte(ingredients), &e.Ingredients); err != nil {
			return nil, fmt.Errorf("decode ingredients for %s: %w", e.ReportID, err)
		}
		if err := json.Unmarshal([]byte(reactions), &e.Reactions); err != nil {
			return nil, fmt.Errorf("decode reactions for %s: %w", e.ReportID, err)
		}
		if err := json.Unmarshal([]byte(outcomes), &e.Outcomes); err != nil {
			return nil, fmt.Errorf("decode outcomes for %s: %w", e.ReportID, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate staged events: %w", err)
	}
	return events, nil
}

// Breeds returns all staged breed reference rows, dogs first.
func (s *Store) Breeds(ctx context.Context) ([]models.BreedRef, error) {
	var refs []models.BreedRef
	for _, src := range []struct {
		table   string
		species string
	}{
		{"staging_dog_breeds", "dog"},
		{"staging_cat_breeds", "cat"},
	} {
		rows, err := s.db.QueryContext(ctx,
			`SELECT name, breed_group, purpose, source FROM `+src.table+` ORDER BY seq`)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", src.table, err)
		}
		for rows.Next() {
			var (
				ref            models.BreedRef
				group, purpose sql.NullString
			)
			if err := rows.Scan(&ref.Name, &group, &purpose, &ref.Source); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan %s: %w", src.table, err)
			}
			ref.Species = src.species
			ref.Group = group.String
			ref.Purpose = purpose.String
			refs = append(refs, ref)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterate %s: %w", src.table, err)
		}
		rows.Close()
	}
	return refs, nil
}

// nullable maps empty strings to NULL so absent source fields stay absent
// in the staging relation.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

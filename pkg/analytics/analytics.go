// Package analytics provides read-only aggregate queries over the
// finished warehouse for dashboards and reports. It only touches the star
// schema, never the staging store.
package analytics

import (
	"context"
	"database/sql"
	"fmt"
)

// Analytics runs aggregate queries against a warehouse handle.
type Analytics struct {
	db *sql.DB
}

// New creates an Analytics over the warehouse handle.
func New(db *sql.DB) *Analytics {
	return &Analytics{db: db}
}

// NameCount is one (name, events) aggregation row.
type NameCount struct {
	Name   string `json:"name"`
	Events int    `json:"events"`
}

// GeoCount is one (state, country, events) aggregation row.
type GeoCount struct {
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
	Events  int    `json:"events"`
}

// BreedReactionCount is one (breed, reaction, events) aggregation row.
type BreedReactionCount struct {
	BreedName string `json:"breed_name"`
	Species   string `json:"species"`
	Reaction  string `json:"reaction"`
	Events    int    `json:"events"`
}

// TopReactions returns the most reported reaction terms.
func (a *Analytics) TopReactions(ctx context.Context, limit int) ([]NameCount, error) {
	return a.nameCounts(ctx, `
		SELECT r.reaction_name, COUNT(DISTINCT br.event_key) AS events
		FROM bridge_event_reaction br
		JOIN dim_reaction r ON r.reaction_key = br.reaction_key
		GROUP BY r.reaction_name
		ORDER BY events DESC, r.reaction_name
		LIMIT ?`, limit)
}

// TopIngredients returns the active ingredients implicated in the most
// events.
func (a *Analytics) TopIngredients(ctx context.Context, limit int) ([]NameCount, error) {
	return a.nameCounts(ctx, `
		SELECT i.ingredient_name, COUNT(DISTINCT bi.event_key) AS events
		FROM bridge_event_ingredient bi
		JOIN dim_ingredient i ON i.ingredient_key = bi.ingredient_key
		GROUP BY i.ingredient_name
		ORDER BY events DESC, i.ingredient_name
		LIMIT ?`, limit)
}

// OutcomeDistribution returns event counts per reported outcome.
func (a *Analytics) OutcomeDistribution(ctx context.Context) ([]NameCount, error) {
	return a.nameCounts(ctx, `
		SELECT o.outcome_name, COUNT(DISTINCT bo.event_key) AS events
		FROM bridge_event_outcome bo
		JOIN dim_outcome o ON o.outcome_key = bo.outcome_key
		GROUP BY o.outcome_name
		ORDER BY events DESC, o.outcome_name`)
}

// EventsByMonth returns event counts grouped by receive month
// (YYYY-MM), oldest first. Events without a parsable date are excluded.
func (a *Analytics) EventsByMonth(ctx context.Context) ([]NameCount, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT substr(event_date, 1, 7) AS month, COUNT(*) AS events
		FROM fact_event
		WHERE event_date IS NOT NULL
		GROUP BY month
		ORDER BY month`)
	if err != nil {
		return nil, fmt.Errorf("query events by month: %w", err)
	}
	return scanNameCounts(rows)
}

// EventsByGeography returns event counts per (state, country).
func (a *Analytics) EventsByGeography(ctx context.Context, limit int) ([]GeoCount, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT COALESCE(g.state, ''), COALESCE(g.country, ''), COUNT(*) AS events
		FROM fact_event f
		JOIN dim_geo g ON g.geo_key = f.geo_key
		GROUP BY g.state, g.country
		ORDER BY events DESC, g.country, g.state
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events by geography: %w", err)
	}
	defer rows.Close()

	var out []GeoCount
	for rows.Next() {
		var gc GeoCount
		if err := rows.Scan(&gc.State, &gc.Country, &gc.Events); err != nil {
			return nil, fmt.Errorf("scan geography count: %w", err)
		}
		out = append(out, gc)
	}
	return out, rows.Err()
}

// TopReactionsByBreed returns the most common reactions per breed across
// the warehouse.
func (a *Analytics) TopReactionsByBreed(ctx context.Context, limit int) ([]BreedReactionCount, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT b.breed_name, b.species, r.reaction_name, COUNT(*) AS events
		FROM fact_event f
		JOIN dim_breed b ON b.breed_key = f.breed_key
		JOIN bridge_event_reaction br ON br.event_key = f.event_key
		JOIN dim_reaction r ON r.reaction_key = br.reaction_key
		GROUP BY b.breed_name, b.species, r.reaction_name
		ORDER BY events DESC, b.breed_name, r.reaction_name
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query reactions by breed: %w", err)
	}
	defer rows.Close()

	var out []BreedReactionCount
	for rows.Next() {
		var brc BreedReactionCount
		if err := rows.Scan(&brc.BreedName, &brc.Species, &brc.Reaction, &brc.Events); err != nil {
			return nil, fmt.Errorf("scan breed reaction count: %w", err)
		}
		out = append(out, brc)
	}
	return out, rows.Err()
}

func (a *Analytics) nameCounts(ctx context.Context, query string, args ...any) ([]NameCount, error) {
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query aggregation: %w", err)
	}
	return scanNameCounts(rows)
}

func scanNameCounts(rows *sql.Rows) ([]NameCount, error) {
	defer rows.Close()
	var out []NameCount
	for rows.Next() {
		var nc NameCount
		if err := rows.Scan(&nc.Name, &nc.Events); err != nil {
			return nil, fmt.Errorf("scan aggregation row: %w", err)
		}
		out = append(out, nc)
	}
	return out, rows.Err()
}

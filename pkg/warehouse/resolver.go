// Package warehouse owns the star schema: dimension resolution, the
// fact/bridge loader, and the breed reference load. All writes go through
// a single store handle; nothing here touches the staging database.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/openvetdata/vetdw/pkg/breedmatch"
	"github.com/openvetdata/vetdw/pkg/metrics"
)

// Dimension identifies one dimension table.
type Dimension string

const (
	DimBreed      Dimension = "breed"
	DimReaction   Dimension = "reaction"
	DimOutcome    Dimension = "outcome"
	DimIngredient Dimension = "ingredient"
	DimGeo        Dimension = "geo"
)

// UnknownNaturalKey is the reserved natural key used when a source value
// is absent. It resolves like any other key, so every dimension has at
// most one "unknown" row with a stable surrogate.
const UnknownNaturalKey = "unknown"

// Resolver allocates and reuses surrogate keys for dimension values,
// deduplicating by natural key. Resolution is get-or-create: the same
// natural key always yields the same surrogate key, and no mapping is
// ever deleted during a load. A mutex serializes resolution per resolver
// so concurrent callers cannot both allocate a key for an unseen value.
type Resolver struct {
	db      *sql.DB
	metrics *metrics.LoaderMetrics // optional

	mu    sync.Mutex
	cache map[Dimension]map[string]int64
}

// NewResolver creates a Resolver over the warehouse handle. metrics may
// be nil.
func NewResolver(db *sql.DB, m *metrics.LoaderMetrics) *Resolver {
	return &Resolver{
		db:      db,
		metrics: m,
		cache:   make(map[Dimension]map[string]int64),
	}
}

// NormalizeNaturalKey case-folds and whitespace-trims a natural key.
// Empty values map to the reserved unknown key.
func NormalizeNaturalKey(s string) string {
	key := strings.Join(strings.Fields(strings.ToLower(s)), " ")
	if key == "" {
		return UnknownNaturalKey
	}
	return key
}

// ResolveReaction returns the surrogate key for a reaction term.
func (r *Resolver) ResolveReaction(ctx context.Context, term string) (int64, error) {
	return r.resolveNamed(ctx, DimReaction, "dim_reaction", "reaction_key", "reaction_name", term)
}

// ResolveOutcome returns the surrogate key for an outcome term.
func (r *Resolver) ResolveOutcome(ctx context.Context, name string) (int64, error) {
	return r.resolveNamed(ctx, DimOutcome, "dim_outcome", "outcome_key", "outcome_name", name)
}

// ResolveIngredient returns the surrogate key for an active ingredient.
func (r *Resolver) ResolveIngredient(ctx context.Context, name string) (int64, error) {
	return r.resolveNamed(ctx, DimIngredient, "dim_ingredient", "ingredient_key", "ingredient_name", name)
}

func (r *Resolver) resolveNamed(ctx context.Context, dim Dimension, table, keyCol, nameCol, name string) (int64, error) {
	naturalKey := NormalizeNaturalKey(name)
	display := strings.TrimSpace(name)
	if naturalKey == UnknownNaturalKey {
		display = "Unknown"
	}

	insert := fmt.Sprintf(`INSERT INTO %s (natural_key, %s) VALUES (?, ?)`, table, nameCol)
	key, _, err := r.resolve(ctx, dim, table, keyCol, naturalKey, insert, naturalKey, display)
	return key, err
}

// ResolveGeo returns the surrogate key for a (state, country) pair. Both
// absent resolves to the reserved unknown row.
func (r *Resolver) ResolveGeo(ctx context.Context, state, country string) (int64, error) {
	stateKey := strings.Join(strings.Fields(strings.ToUpper(state)), " ")
	countryKey := strings.Join(strings.Fields(strings.ToUpper(country)), " ")

	naturalKey := UnknownNaturalKey
	if stateKey != "" || countryKey != "" {
		naturalKey = stateKey + "|" + countryKey
	}

	insert := `INSERT INTO dim_geo (natural_key, state, country) VALUES (?, ?, ?)`
	key, _, err := r.resolve(ctx, DimGeo, "dim_geo", "geo_key", naturalKey,
		insert, naturalKey, nullable(stateKey), nullable(countryKey))
	return key, err
}

// ResolveBreed returns the surrogate key for a (species, breed) pair,
// merging in any enrichment attributes. Enrichment is last-write but a
// non-null value is never overwritten with null.
func (r *Resolver) ResolveBreed(ctx context.Context, species, name string, enr *breedmatch.Enrichment, source string) (int64, error) {
	naturalKey := NormalizeNaturalKey(species) + "|" + NormalizeNaturalKey(name)
	display := strings.TrimSpace(name)
	if display == "" {
		display = "Unknown"
	}

	var group, purpose any
	if enr != nil {
		group = nullable(enr.Group)
		purpose = nullable(enr.Purpose)
	}

	insert := `INSERT INTO dim_breed (natural_key, breed_name, species, breed_group, purpose, source) VALUES (?, ?, ?, ?, ?, ?)`
	key, created, err := r.resolve(ctx, DimBreed, "dim_breed", "breed_key", naturalKey,
		insert, naturalKey, display, NormalizeNaturalKey(species), group, purpose, nullable(source))
	if err != nil {
		return 0, err
	}

	if !created && enr != nil && (group != nil || purpose != nil) {
		if _, err := r.db.ExecContext(ctx, `
			UPDATE dim_breed
			SET breed_group = COALESCE(breed_group, ?),
			    purpose = COALESCE(purpose, ?)
			WHERE breed_key = ?`, group, purpose, key); err != nil {
			return 0, fmt.Errorf("merge breed enrichment for %q: %w", naturalKey, err)
		}
	}
	return key, nil
}

// resolve is the shared get-or-create. The caller's insert statement must
// include the natural_key column.
func (r *Resolver) resolve(ctx context.Context, dim Dimension, table, keyCol, naturalKey, insert string, args ...any) (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if key, ok := r.cache[dim][naturalKey]; ok {
		return key, false, nil
	}

	var key int64
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE natural_key = ?`, keyCol, table)
	err := r.db.QueryRowContext(ctx, query, naturalKey).Scan(&key)
	switch {
	case err == nil:
		r.remember(dim, naturalKey, key)
		return key, false, nil
	case err != sql.ErrNoRows:
		return 0, false, fmt.Errorf("look up %s %q: %w", dim, naturalKey, err)
	}

	res, err := r.db.ExecContext(ctx, insert, args...)
	if err != nil {
		return 0, false, fmt.Errorf("insert %s %q: %w", dim, naturalKey, err)
	}
	key, err = res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("surrogate key for %s %q: %w", dim, naturalKey, err)
	}

	r.remember(dim, naturalKey, key)
	if r.metrics != nil {
		r.metrics.DimensionRows.WithLabelValues(string(dim)).Inc()
	}
	return key, true, nil
}

func (r *Resolver) remember(dim Dimension, naturalKey string, key int64) {
	if r.cache[dim] == nil {
		r.cache[dim] = make(map[string]int64)
	}
	r.cache[dim][naturalKey] = key
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

package warehouse

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openvetdata/vetdw/pkg/breedmatch"
	"github.com/openvetdata/vetdw/pkg/models"
)

func newTestLoader(t *testing.T, db *sql.DB, refs []models.BreedRef) *Loader {
	t.Helper()
	resolver := NewResolver(db, nil)
	return NewLoader(db, resolver, breedmatch.NewMatcher(refs), zap.NewNop(), nil)
}

func testBreedRefs() []models.BreedRef {
	return []models.BreedRef{
		{Name: "Beagle", Species: "dog", Group: "Hound", Purpose: "Rabbit hunting", Source: "thedogapi"},
		{Name: "Labrador Retriever", Species: "dog", Group: "Sporting", Source: "thedogapi"},
	}
}

func weight(v float64) *float64 { return &v }

func testEvents() []models.StagedEvent {
	return []models.StagedEvent{
		{
			ReportID:    "USA-2023-000001",
			Species:     "Dog",
			BreedName:   "Beagle",
			Gender:      "Female",
			WeightKg:    weight(12.5),
			EventDate:   "2023-03-01",
			Ingredients: []models.Ingredient{{Name: "Fipronil"}, {Name: "Ivermectin"}},
			Reactions:   []string{"Vomiting", "Lethargy", "Anorexia"},
			Outcomes:    []string{"Recovered"},
			State:       "CA",
			Country:     "USA",
		},
		{
			ReportID:  "USA-2023-000002",
			Species:   "Dog",
			BreedName: "Labrador Retriever",
			Reactions: []string{"Vomiting"},
		},
		{
			ReportID: "USA-2023-000003",
			Species:  "Cat",
			// No breed, no geography, nothing to bridge.
		},
	}
}

func TestLoadBridgesEveryAssociation(t *testing.T) {
	db := newTestWarehouse(t)
	loader := newTestLoader(t, db, testBreedRefs())
	ctx := context.Background()

	summary, err := loader.Load(ctx, testEvents())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Inserted)
	assert.Zero(t, summary.Skipped)
	assert.Zero(t, summary.Duplicates)
	assert.Zero(t, summary.Errors)
	assert.Empty(t, summary.Reasons)

	assert.Equal(t, 3, countRows(t, db, "fact_event"))
	assert.Equal(t, 4, countRows(t, db, "bridge_event_reaction"))
	assert.Equal(t, 1, countRows(t, db, "bridge_event_outcome"))
	assert.Equal(t, 2, countRows(t, db, "bridge_event_ingredient"))

	// "Vomiting" appears in two events but is one dimension row.
	assert.Equal(t, 3, countRows(t, db, "dim_reaction"))

	// The breedless cat event still resolves a geo key (unknown) but no breed.
	var breedKey sql.NullInt64
	var geoKey int64
	require.NoError(t, db.QueryRow(
		`SELECT breed_key, geo_key FROM fact_event WHERE report_id = ?`,
		"USA-2023-000003").Scan(&breedKey, &geoKey))
	assert.False(t, breedKey.Valid)
	assert.NotZero(t, geoKey)
}

func TestLoadIsIdempotent(t *testing.T) {
	db := newTestWarehouse(t)
	loader := newTestLoader(t, db, testBreedRefs())
	ctx := context.Background()

	first, err := loader.Load(ctx, testEvents())
	require.NoError(t, err)
	assert.Equal(t, 3, first.Inserted)

	second, err := loader.Load(ctx, testEvents())
	require.NoError(t, err)
	assert.Zero(t, second.Inserted)
	assert.Equal(t, 3, second.Duplicates)
	assert.Zero(t, second.Errors)

	// No table grew on the re-run.
	assert.Equal(t, 3, countRows(t, db, "fact_event"))
	assert.Equal(t, 4, countRows(t, db, "bridge_event_reaction"))
	assert.Equal(t, 3, countRows(t, db, "dim_reaction"))
}

func TestLoadSkipsIdentityless(t *testing.T) {
	db := newTestWarehouse(t)
	loader := newTestLoader(t, db, nil)
	ctx := context.Background()

	events := []models.StagedEvent{
		{ReportID: "USA-2023-000010", Species: "Dog"},
		{Species: "Dog", Reactions: []string{"Vomiting"}},
		{ReportID: "USA-2023-000011", Species: "Cat"},
	}

	summary, err := loader.Load(ctx, events)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Inserted)
	assert.Equal(t, 1, summary.Skipped)

	require.Len(t, summary.Reasons, 1)
	assert.Equal(t, models.StepIdentity, summary.Reasons[0].Step)

	// The skipped record left nothing behind, not even its dimensions.
	assert.Equal(t, 2, countRows(t, db, "fact_event"))
	assert.Zero(t, countRows(t, db, "dim_reaction"))
}

func TestLoadUnmatchedBreedStillLoads(t *testing.T) {
	db := newTestWarehouse(t)
	loader := newTestLoader(t, db, testBreedRefs())
	ctx := context.Background()

	summary, err := loader.Load(ctx, []models.StagedEvent{{
		ReportID:  "USA-2023-000020",
		Species:   "Dog",
		BreedName: "Unknown Mix Breed XYZ",
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Inserted)

	var group, purpose sql.NullString
	require.NoError(t, db.QueryRow(`
		SELECT b.breed_group, b.purpose
		FROM fact_event f JOIN dim_breed b ON b.breed_key = f.breed_key
		WHERE f.report_id = ?`, "USA-2023-000020").Scan(&group, &purpose))
	assert.False(t, group.Valid)
	assert.False(t, purpose.Valid)
}

func TestLoadAttachesEnrichmentFromMatcher(t *testing.T) {
	db := newTestWarehouse(t)
	loader := newTestLoader(t, db, testBreedRefs())
	ctx := context.Background()

	_, err := loader.Load(ctx, []models.StagedEvent{{
		ReportID:  "USA-2023-000021",
		Species:   "Dog",
		BreedName: "Retriever - Labrador",
	}})
	require.NoError(t, err)

	var group sql.NullString
	require.NoError(t, db.QueryRow(`
		SELECT b.breed_group
		FROM fact_event f JOIN dim_breed b ON b.breed_key = f.breed_key
		WHERE f.report_id = ?`, "USA-2023-000021").Scan(&group))
	assert.Equal(t, "Sporting", group.String)
}

func TestLoadBreedsIdempotent(t *testing.T) {
	db := newTestWarehouse(t)
	loader := newTestLoader(t, db, nil)
	ctx := context.Background()

	refs := testBreedRefs()
	n, err := loader.LoadBreeds(ctx, refs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = loader.LoadBreeds(ctx, refs)
	require.NoError(t, err)
	assert.Equal(t, 2, countRows(t, db, "dim_breed"))
}

func TestLoadRecordsRun(t *testing.T) {
	db := newTestWarehouse(t)
	loader := newTestLoader(t, db, nil)
	ctx := context.Background()

	summary, err := loader.Load(ctx, testEvents())
	require.NoError(t, err)

	var inserted, skipped int
	var finishedAt sql.NullString
	require.NoError(t, db.QueryRow(
		`SELECT inserted, skipped, finished_at FROM load_runs WHERE run_id = ?`,
		summary.RunID.String()).Scan(&inserted, &skipped, &finishedAt))
	assert.Equal(t, summary.Inserted, inserted)
	assert.Equal(t, summary.Skipped, skipped)
	assert.True(t, finishedAt.Valid)
}

func TestLoadHonorsContextCancellation(t *testing.T) {
	db := newTestWarehouse(t)
	loader := newTestLoader(t, db, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := loader.Load(ctx, testEvents())
	require.Error(t, err)
	assert.Zero(t, summary.Inserted)
}

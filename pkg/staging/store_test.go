package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openvetdata/vetdw/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "staging.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func ptrFloat(v float64) *float64 { return &v }
func ptrInt(v int) *int           { return &v }

func TestReplaceEventsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	in := []models.StagedEvent{
		{
			ReportID:           "USA-2023-000001",
			Species:            "Dog",
			BreedName:          "Beagle",
			Gender:             "Female",
			ReproductiveStatus: "Spayed",
			WeightKg:           ptrFloat(12.5),
			EventDate:          "2023-03-01",
			DaysToReaction:     ptrInt(2),
			Ingredients:        []models.Ingredient{{Name: "Fipronil", Dosage: ptrFloat(9.8), DosageUnit: "mg"}},
			Reactions:          []string{"Vomiting", "Lethargy"},
			Outcomes:           []string{"Recovered"},
			State:              "CA",
			Country:            "USA",
		},
		{
			// Sparse record: every optional field absent.
			ReportID: "USA-2023-000002",
		},
	}
	require.NoError(t, store.ReplaceEvents(ctx, in))

	out, err := store.Events(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, in[0].ReportID, out[0].ReportID)
	assert.Equal(t, "Beagle", out[0].BreedName)
	assert.Equal(t, "2023-03-01", out[0].EventDate)
	require.NotNil(t, out[0].WeightKg)
	assert.InDelta(t, 12.5, *out[0].WeightKg, 0.001)
	require.NotNil(t, out[0].DaysToReaction)
	assert.Equal(t, 2, *out[0].DaysToReaction)
	assert.Equal(t, []string{"Vomiting", "Lethargy"}, out[0].Reactions)
	require.Len(t, out[0].Ingredients, 1)
	assert.Equal(t, "Fipronil", out[0].Ingredients[0].Name)

	sparse := out[1]
	assert.Equal(t, "USA-2023-000002", sparse.ReportID)
	assert.Empty(t, sparse.Species)
	assert.Nil(t, sparse.WeightKg)
	assert.Nil(t, sparse.DaysToReaction)
	assert.Empty(t, sparse.Reactions)
	assert.Empty(t, sparse.Ingredients)
}

func TestReplaceEventsIsWholesale(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.ReplaceEvents(ctx, []models.StagedEvent{
		{ReportID: "old-1"}, {ReportID: "old-2"}, {ReportID: "old-3"},
	}))
	require.NoError(t, store.ReplaceEvents(ctx, []models.StagedEvent{
		{ReportID: "new-1"},
	}))

	out, err := store.Events(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "new-1", out[0].ReportID)
}

func TestStageEventsFileDropsIdentityless(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "events.jsonl")
	raw := `{"unique_aer_id_number": "USA-2023-000010", "animal": {"species": "Cat"}}
{"animal": {"species": "Dog"}}
{"report_id": "USA-2023-000011"}
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	staged, dropped, err := store.StageEventsFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, staged)
	assert.Equal(t, 1, dropped)

	out, err := store.Events(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "USA-2023-000010", out[0].ReportID)
	assert.Equal(t, "USA-2023-000011", out[1].ReportID)
}

func TestStageBreedFilesAndOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	dogPath := filepath.Join(dir, "dogs.json")
	catPath := filepath.Join(dir, "cats.json")
	require.NoError(t, os.WriteFile(dogPath, []byte(
		`[{"name": "Beagle", "breed_group": "Hound", "bred_for": "Rabbit hunting"},
		  {"name": "Labrador Retriever", "breed_group": "Sporting"}]`), 0o644))
	require.NoError(t, os.WriteFile(catPath, []byte(
		`[{"name": "Persian", "origin": "Iran"}]`), 0o644))

	dogs, err := store.StageDogBreedsFile(ctx, dogPath)
	require.NoError(t, err)
	assert.Equal(t, 2, dogs)

	cats, err := store.StageCatBreedsFile(ctx, catPath)
	require.NoError(t, err)
	assert.Equal(t, 1, cats)

	refs, err := store.Breeds(ctx)
	require.NoError(t, err)
	require.Len(t, refs, 3)

	// Dogs come back first, in staging order.
	assert.Equal(t, "Beagle", refs[0].Name)
	assert.Equal(t, "dog", refs[0].Species)
	assert.Equal(t, "Hound", refs[0].Group)
	assert.Equal(t, "Rabbit hunting", refs[0].Purpose)
	assert.Equal(t, SourceDogAPI, refs[0].Source)

	assert.Equal(t, "Labrador Retriever", refs[1].Name)
	assert.Empty(t, refs[1].Purpose)

	assert.Equal(t, "Persian", refs[2].Name)
	assert.Equal(t, "cat", refs[2].Species)
	assert.Equal(t, "Iran", refs[2].Purpose)
	assert.Equal(t, SourceCatAPI, refs[2].Source)
}

func TestStageEventsFileMissing(t *testing.T) {
	store := newTestStore(t)

	_, _, err := store.StageEventsFile(context.Background(), filepath.Join(t.TempDir(), "nope.jsonl"))
	assert.Error(t, err)
}

package staging

import "github.com/openvetdata/vetdw/pkg/models"

// Breed reference sources. The purpose attribute differs between the two
// APIs: the dog API reports what the breed was bred for, the cat API only
// its origin.
const (
	SourceDogAPI = "thedogapi"
	SourceCatAPI = "thecatapi"
)

// parseBreedRefs normalizes one breed API response into reference rows.
// Entries without a name are dropped.
func parseBreedRefs(records []map[string]any, species, source string) []models.BreedRef {
	var refs []models.BreedRef
	for _, record := range records {
		name := stringField(record, "name")
		if name == "" {
			continue
		}
		ref := models.BreedRef{
			Name:    name,
			Species: species,
			Group:   stringField(record, "breed_group"),
			Source:  source,
		}
		switch source {
		case SourceDogAPI:
			ref.Purpose = stringField(record, "bred_for")
		case SourceCatAPI:
			ref.Purpose = stringField(record, "origin")
		}
		refs = append(refs, ref)
	}
	return refs
}

package staging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/openvetdata/vetdw/pkg/apperrors"
	"github.com/openvetdata/vetdw/pkg/models"
)

// Source field values that stand in for redacted data. They are treated as
// absent everywhere rather than parsed.
func masked(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MSK", "MASKED":
		return true
	}
	return false
}

// decodeRecords accepts the three raw layouts the upstream extractors
// produce: a JSONL stream, a bare JSON array, or an object wrapping the
// records in a "results" list.
func decodeRecords(data []byte) ([]map[string]any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	switch trimmed[0] {
	case '[':
		var records []map[string]any
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("decode record array: %w", err)
		}
		return records, nil
	case '{':
		// Either a single JSONL line or a results envelope.
		if !bytes.ContainsRune(trimmed, '\n') {
			var envelope struct {
				Results []map[string]any `json:"results"`
			}
			if err := json.Unmarshal(trimmed, &envelope); err == nil && envelope.Results != nil {
				return envelope.Results, nil
			}
		}
	}

	var records []map[string]any
	for i, line := range bytes.Split(trimmed, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("decode jsonl line %d: %w", i+1, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// parseEvent normalizes one raw adverse-event object into a StagedEvent.
// Every field except the report id is optional; unparsable values degrade
// to their zero form instead of failing the record.
func parseEvent(raw map[string]any) (models.StagedEvent, error) {
	reportID := stringField(raw, "unique_aer_id_number", "unique_number", "report_id")
	if reportID == "" {
		return models.StagedEvent{}, apperrors.ErrMissingReportID
	}

	animal := mapField(raw, "animal")

	event := models.StagedEvent{
		ReportID:           reportID,
		Species:            stringField(animal, "species"),
		BreedName:          breedName(animal),
		Gender:             titleWords(stringField(animal, "gender")),
		ReproductiveStatus: titleWords(stringField(animal, "reproductive_status")),
		WeightKg:           weightKg(animal),
		EventDate:          isoDate(stringField(raw, "original_receive_date")),
		DaysToReaction:     daysToReaction(raw),
		Ingredients:        ingredients(raw),
		Reactions:          termList(raw, "reaction", "veddra_term_name", "veddra_term", "reaction_name", "name"),
		Outcomes:           termList(raw, "outcome", "medical_status", "outcome", "outcome_name", "name"),
	}

	event.State = stringField(raw, "state")
	event.Country = stringField(raw, "country")
	if event.State == "" && event.Country == "" {
		receiver := mapField(raw, "receiver")
		event.State = stringField(receiver, "state")
		event.Country = stringField(receiver, "country")
	}

	return event, nil
}

// breedName digs the reported breed out of the animal block. The source
// uses a bare string, an object, or a list of components; the first
// component wins.
func breedName(animal map[string]any) string {
	switch breed := animal["breed"].(type) {
	case string:
		if masked(breed) {
			return ""
		}
		return strings.TrimSpace(breed)
	case map[string]any:
		for _, key := range []string{"breed_component", "breed_name", "name"} {
			switch value := breed[key].(type) {
			case string:
				if s := strings.TrimSpace(value); s != "" && !masked(s) {
					return s
				}
			case []any:
				if len(value) > 0 {
					if s, ok := value[0].(string); ok && strings.TrimSpace(s) != "" && !masked(s) {
						return strings.TrimSpace(s)
					}
				}
			}
		}
	}
	return ""
}

// weightKg normalizes the animal weight to kilograms. The source reports
// either a {min,max,value,unit} object or a scalar with a sibling
// weight_unit field.
func weightKg(animal map[string]any) *float64 {
	value := animal["weight"]
	unit := stringField(animal, "weight_unit")

	if obj, ok := value.(map[string]any); ok {
		if u := stringField(obj, "unit"); u != "" {
			unit = u
		}
		value = firstPresent(obj, "min", "max", "value", "weight")
	}

	v := numeric(value)
	if v == nil {
		return nil
	}

	kg := *v
	switch u := strings.ToLower(unit); {
	case strings.Contains(u, "lb") || strings.Contains(u, "pound"):
		kg *= 0.45359237
	case strings.Contains(u, "oz") || strings.Contains(u, "ounce"):
		kg *= 0.0283495
	case u == "g" || strings.Contains(u, "gram"):
		kg /= 1000.0
	}
	return &kg
}

// daysToReaction derives the onset delay in days. The explicit timing
// block wins; when it is absent the delay falls back to the distance
// between the receive and onset dates.
func daysToReaction(raw map[string]any) *int {
	if timing := mapField(raw, "time_between_drug_administration_and_reaction"); len(timing) > 0 {
		if v := numeric(timing["time_value"]); v != nil {
			var days float64
			switch unit := strings.ToLower(stringField(timing, "time_unit")); {
			case strings.HasPrefix(unit, "day"):
				days = *v
			case strings.HasPrefix(unit, "week"):
				days = *v * 7
			case strings.HasPrefix(unit, "month"):
				days = *v * 30
			default:
				return nil
			}
			d := int(math.Round(days))
			return &d
		}
	}

	received, err1 := time.Parse("2006-01-02", isoDate(stringField(raw, "original_receive_date")))
	onset, err2 := time.Parse("2006-01-02", isoDate(stringField(raw, "onset_date")))
	if err1 != nil || err2 != nil {
		return nil
	}
	d := int(math.Abs(received.Sub(onset).Hours() / 24))
	return &d
}

// ingredients flattens the drug list into ordered (ingredient, dosage)
// pairs, deduplicated by name within the record. A drug without an
// ingredient list contributes its brand name instead.
func ingredients(raw map[string]any) []models.Ingredient {
	var out []models.Ingredient
	seen := make(map[string]bool)

	add := func(ing models.Ingredient) {
		key := strings.ToLower(ing.Name)
		if ing.Name == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, ing)
	}

	for _, item := range sliceField(raw, "drug") {
		drug, ok := item.(map[string]any)
		if !ok {
			continue
		}

		list := sliceField(drug, "active_ingredients")
		if len(list) == 0 {
			list = sliceField(drug, "active_ingredient")
		}
		if len(list) == 0 {
			if brand := stringField(drug, "brand_name"); brand != "" {
				add(models.Ingredient{Name: brand})
			}
			continue
		}

		for _, entry := range list {
			switch v := entry.(type) {
			case string:
				if !masked(v) {
					add(models.Ingredient{Name: strings.TrimSpace(v)})
				}
			case map[string]any:
				name := stringField(v, "name")
				if name == "" {
					continue
				}
				ing := models.Ingredient{Name: name}
				if dose := mapField(v, "dose"); len(dose) > 0 {
					ing.Dosage = numeric(dose["numerator"])
					ing.DosageUnit = stringField(dose, "numerator_unit")
				}
				add(ing)
			}
		}
	}
	return out
}

// termList extracts an ordered, deduplicated list of names from a list
// field whose items are either strings or objects carrying the name under
// one of several keys.
func termList(raw map[string]any, field string, keys ...string) []string {
	var out []string
	seen := make(map[string]bool)

	add := func(s string) {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || masked(s) || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, s)
	}

	for _, item := range sliceField(raw, field) {
		switch v := item.(type) {
		case string:
			add(v)
		case map[string]any:
			for _, key := range keys {
				if s := stringField(v, key); s != "" {
					add(s)
					break
				}
			}
		}
	}
	return out
}

// isoDate canonicalizes the FDA YYYYMMDD date format (already-ISO values
// pass through). Unparsable dates come back empty.
func isoDate(s string) string {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("20060102", s); err == nil {
		return t.Format("2006-01-02")
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.Format("2006-01-02")
	}
	return ""
}

// numeric coerces a loosely-typed JSON value to a float. Masked and
// unparsable values come back nil rather than failing.
func numeric(v any) *float64 {
	switch value := v.(type) {
	case float64:
		return &value
	case string:
		if masked(value) {
			return nil
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return &f
		}
	}
	return nil
}

func stringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok {
			s = strings.TrimSpace(s)
			if s != "" && !masked(s) {
				return s
			}
		}
	}
	return ""
}

func mapField(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return nil
}

func sliceField(m map[string]any, key string) []any {
	if v, ok := m[key].([]any); ok {
		return v
	}
	return nil
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := m[key]; ok && v != nil && v != "" {
			return v
		}
	}
	return nil
}

// titleWords matches the source convention for gender and reproductive
// status ("male" -> "Male", "NEUTERED" -> "Neutered").
func titleWords(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

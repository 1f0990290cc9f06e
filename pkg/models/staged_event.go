package models

// Ingredient is one (active ingredient, dosage) pair reported for an event.
// Dosage is nil when the source value is missing or masked (e.g. "MSK").
type Ingredient struct {
	Name       string   `json:"name"`
	Dosage     *float64 `json:"dosage,omitempty"`
	DosageUnit string   `json:"dosage_unit,omitempty"`
}

// StagedEvent is one normalized adverse-event record. It is produced once
// per raw source record by the staging store and is immutable afterwards;
// every downstream component consumes only this typed form.
type StagedEvent struct {
	// ReportID is the source-assigned identity of the event. Records
	// without one are dropped at the staging boundary.
	ReportID string `json:"report_id"`

	Species            string `json:"species,omitempty"`
	BreedName          string `json:"breed_name,omitempty"`
	Gender             string `json:"gender,omitempty"`
	ReproductiveStatus string `json:"reproductive_status,omitempty"`

	// WeightKg is the animal weight normalized to kilograms, nil when the
	// source value is absent, masked, or unparsable.
	WeightKg *float64 `json:"weight_kg,omitempty"`

	// EventDate is the original receive date in ISO format (2006-01-02),
	// empty when the source date does not parse.
	EventDate string `json:"event_date,omitempty"`

	// DaysToReaction is the delay in days between drug administration and
	// the reaction, nil when it cannot be derived.
	DaysToReaction *int `json:"days_to_reaction,omitempty"`

	Ingredients []Ingredient `json:"ingredients,omitempty"`
	Reactions   []string     `json:"reactions,omitempty"`
	Outcomes    []string     `json:"outcomes,omitempty"`

	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
}

// BreedRef is one breed reference record from an external breed API.
type BreedRef struct {
	Name    string `json:"name"`
	Species string `json:"species"` // "dog" or "cat"
	Group   string `json:"group,omitempty"`
	Purpose string `json:"purpose,omitempty"`
	Source  string `json:"source"` // "thedogapi" or "thecatapi"
}

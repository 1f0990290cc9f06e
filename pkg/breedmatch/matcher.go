// Package breedmatch joins FDA-reported breed names against the external
// breed reference data by normalized name matching. The merge is best
// effort: an unmatched breed simply yields no enrichment.
package breedmatch

import (
	"sort"
	"strings"

	"github.com/openvetdata/vetdw/pkg/models"
)

// Enrichment carries the reference attributes attached to a matched breed.
type Enrichment struct {
	Group   string
	Purpose string
}

type candidate struct {
	normalized string
	enrichment Enrichment
}

// Matcher resolves FDA breed strings to breed reference entries. It is
// read-only with respect to the reference data and safe for concurrent use
// once built.
type Matcher struct {
	// exact maps normalized reference names to their enrichment.
	exact map[string]Enrichment
	// ordered holds candidates sorted by (length, lexicographic) so the
	// containment fallback is deterministic: shortest normalized
	// candidate wins, ties break lexicographically.
	ordered []candidate
}

// NewMatcher builds a Matcher from breed reference rows. Rows without a
// name are ignored. When the same normalized name appears twice, the first
// occurrence wins and later enrichment only fills fields still empty.
func NewMatcher(refs []models.BreedRef) *Matcher {
	m := &Matcher{exact: make(map[string]Enrichment, len(refs))}
	for _, ref := range refs {
		key := Normalize(ref.Name)
		if key == "" {
			continue
		}
		enr, ok := m.exact[key]
		if !ok {
			m.exact[key] = Enrichment{Group: ref.Group, Purpose: ref.Purpose}
			continue
		}
		if enr.Group == "" {
			enr.Group = ref.Group
		}
		if enr.Purpose == "" {
			enr.Purpose = ref.Purpose
		}
		m.exact[key] = enr
	}

	m.ordered = make([]candidate, 0, len(m.exact))
	for key, enr := range m.exact {
		m.ordered = append(m.ordered, candidate{normalized: key, enrichment: enr})
	}
	sort.Slice(m.ordered, func(i, j int) bool {
		a, b := m.ordered[i].normalized, m.ordered[j].normalized
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	})
	return m
}

// Enrich returns the enrichment attributes for the best reference match of
// the given FDA breed name, or false when no candidate matches. Exact
// matches on the normalized name are tried first, then containment in
// either direction.
func (m *Matcher) Enrich(breedName string) (Enrichment, bool) {
	key := Normalize(breedName)
	if key == "" {
		return Enrichment{}, false
	}

	if enr, ok := m.exact[key]; ok {
		return enr, true
	}

	for _, c := range m.ordered {
		if strings.Contains(key, c.normalized) || strings.Contains(c.normalized, key) {
			return c.enrichment, true
		}
	}
	return Enrichment{}, false
}

// Normalize canonicalizes a breed name for matching: "Group - Breed"
// hyphen forms are swapped to "Breed Group" (the FDA convention, e.g.
// "Retriever - Labrador"), punctuation is stripped, and the result is
// lower-cased with whitespace collapsed to single spaces.
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	if parts := strings.Split(name, " - "); len(parts) == 2 {
		name = parts[1] + " " + parts[0]
	}

	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

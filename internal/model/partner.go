package model

import (
	"time"
)

// ServiceLocation is one place where a partner provides care. Coordinates are
// nullable: a location without both of them is skipped by the distance filter.
type ServiceLocation struct {
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
	Address string   `json:"address"`
}

// HasCoordinates reports whether the location carries a full coordinate pair.
func (l ServiceLocation) HasCoordinates() bool {
	return l.Lat != nil && l.Lon != nil
}

// Partner is a care provider eligible for matching. Partner records are
// owned by the onboarding process and read-only here; embeddings are
// precomputed during onboarding.
type Partner struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Services  []string          `json:"services"`
	Locations []ServiceLocation `json:"locations"`

	// SymptomEmbedding and ServiceEmbedding are precomputed vectors over the
	// partner's symptom and service descriptors. A partner with neither is
	// never scored.
	SymptomEmbedding []float32 `json:"symptom_embedding,omitempty"`
	ServiceEmbedding []float32 `json:"service_embedding,omitempty"`

	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasEmbeddings reports whether the partner can be scored at all.
func (p *Partner) HasEmbeddings() bool {
	return len(p.SymptomEmbedding) > 0 || len(p.ServiceEmbedding) > 0
}

package entity

import (
	"time"

	"github.com/joseph-ayodele/order-transformer/constants"
)

// MappingEntry maps a raw partner identifier to a canonical one.
type MappingEntry struct {
	ID             int64             `json:"id"`
	Source         constants.Source  `json:"source"`
	KeyType        constants.KeyType `json:"key_type"`
	RawValue       string            `json:"raw_value"`
	CanonicalValue string            `json:"canonical_value"`
	Priority       int               `json:"priority"`
	Active         bool              `json:"active"`
	Vendor         string            `json:"vendor,omitempty"`
	Description    string            `json:"description,omitempty"`
	Notes          string            `json:"notes,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// DefaultMappingPriority is used when a seeded entry has no explicit priority.
const DefaultMappingPriority = 100

// Preferred reports whether e wins over other for the same raw value and key type:
// lower priority number first, then most recently updated, then highest id.
func (e MappingEntry) Preferred(other MappingEntry) bool {
	if e.Priority != other.Priority {
		return e.Priority < other.Priority
	}
	if !e.UpdatedAt.Equal(other.UpdatedAt) {
		return e.UpdatedAt.After(other.UpdatedAt)
	}
	return e.ID > other.ID
}

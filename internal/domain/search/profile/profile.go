package profile

import (
	"fmt"
	"strconv"
	"time"
)

// DefaultKeyField is the authoritative key column used when a profile does not name one.
const DefaultKeyField = "id"

// Field is a boosted query field.
type Field struct {
	Name   string
	Weight float64
}

// String renders the field in query_string notation (title^100).
// A weight of 0 or 1 renders the bare name.
func (f Field) String() string {
	if f.Weight == 0 || f.Weight == 1 {
		return f.Name
	}
	return f.Name + "^" + strconv.FormatFloat(f.Weight, 'f', -1, 64)
}

// RecencyMode selects how the default recency window is applied.
type RecencyMode string

// Recency modes.
const (
	// Include adds a lower bound so only documents newer than the window match.
	Include RecencyMode = "include"
	// Exclude adds a required exclusion of documents older than the window.
	Exclude RecencyMode = "exclude"
)

// Recency is an implicit time-window filter on a unix-seconds field.
type Recency struct {
	Field  string
	Window time.Duration
	Mode   RecencyMode
}

// Profile is the static per-document-type search configuration.
type Profile struct {
	DocType  string
	KeyField string
	Boost    []Field
	Recency  *Recency
}

// Validate checks the profile for consistency.
func (p Profile) Validate() error {
	if p.DocType == "" {
		return fmt.Errorf("profile document type is required")
	}
	for i, f := range p.Boost {
		if f.Name == "" {
			return fmt.Errorf("profile %s: boost field %d has no name", p.DocType, i)
		}
		if f.Weight < 0 {
			return fmt.Errorf("profile %s: boost weight for %s must not be negative", p.DocType, f.Name)
		}
	}
	if r := p.Recency; r != nil {
		if r.Field == "" {
			return fmt.Errorf("profile %s: recency field is required", p.DocType)
		}
		if r.Window <= 0 {
			return fmt.Errorf("profile %s: recency window must be positive", p.DocType)
		}
		if r.Mode != Include && r.Mode != Exclude {
			return fmt.Errorf("profile %s: recency mode must be %q or %q, got %q",
				p.DocType, Include, Exclude, r.Mode)
		}
	}
	return nil
}

// Set holds profiles keyed by document type.
type Set struct {
	byType map[string]Profile
}

// NewSet validates profiles and indexes them by document type.
func NewSet(profiles ...Profile) (Set, error) {
	byType := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return Set{}, err
		}
		if _, dup := byType[p.DocType]; dup {
			return Set{}, fmt.Errorf("duplicate profile for document type %q", p.DocType)
		}
		if p.KeyField == "" {
			p.KeyField = DefaultKeyField
		}
		byType[p.DocType] = p
	}
	return Set{byType: byType}, nil
}

// Lookup returns the profile for a document type.
func (s Set) Lookup(docType string) (Profile, bool) {
	p, ok := s.byType[docType]
	return p, ok
}

// KeyField returns the authoritative key column for a document type.
func (s Set) KeyField(docType string) string {
	if p, ok := s.byType[docType]; ok {
		return p.KeyField
	}
	return DefaultKeyField
}

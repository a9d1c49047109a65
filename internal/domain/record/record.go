package record

import (
	"fmt"
	"maps"
)

// Record is an authoritative row as returned by the record store.
type Record struct {
	id      string
	docType string
	fields  map[string]any
}

// New creates a record. The fields map is copied.
func New(id, docType string, fields map[string]any) (Record, error) {
	if id == "" {
		return Record{}, fmt.Errorf("record id is required")
	}
	if docType == "" {
		return Record{}, fmt.Errorf("document type is required for record %q", id)
	}
	return Record{id: id, docType: docType, fields: maps.Clone(fields)}, nil
}

// Reconstruct builds a record from trusted storage without validation.
func Reconstruct(id, docType string, fields map[string]any) Record {
	return Record{id: id, docType: docType, fields: fields}
}

// ID returns the authoritative identifier.
func (r Record) ID() string { return r.id }

// Type returns the document type the record is indexed under.
func (r Record) Type() string { return r.docType }

// Fields returns the record attributes.
func (r Record) Fields() map[string]any { return r.fields }

// Key returns the typed identifier of the record.
func (r Record) Key() Key { return Key{Type: r.docType, ID: r.id} }

// Key identifies an indexed document by type and id.
type Key struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// FieldProjector projects a record into its searchable document as-is.
type FieldProjector struct{}

// Searchable returns a copy of the record fields.
func (FieldProjector) Searchable(r Record) (map[string]any, error) {
	return maps.Clone(r.fields), nil
}

// DocType returns the record's own document type.
func (FieldProjector) DocType(r Record) string { return r.docType }

package db

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// BulkAction is the kind of a bulk operation.
type BulkAction string

// Bulk actions.
const (
	// ActionUpsert updates a document or inserts it when missing.
	ActionUpsert BulkAction = "update"
	// ActionDelete removes a document.
	ActionDelete BulkAction = "delete"
)

// BulkOp is a single index mutation.
type BulkOp struct {
	Action  BulkAction
	Index   string
	DocType string
	ID      string
	Doc     map[string]any
}

// BulkRequest is a finalised, read-only list of operations.
type BulkRequest struct {
	ops []BulkOp
}

// Ops returns a copy of the operations in insertion order.
func (r *BulkRequest) Ops() []BulkOp { return slices.Clone(r.ops) }

// Len returns the number of operations.
func (r *BulkRequest) Len() int { return len(r.ops) }

// BulkBuilder assembles a bulk request and finalises it once.
type BulkBuilder struct {
	index string
	ops   []BulkOp
	errs  []error
	built bool
}

// NewBulk starts a bulk request against the given index.
func NewBulk(index string) *BulkBuilder {
	return &BulkBuilder{index: index}
}

// Upsert adds an update-or-insert operation. The document is copied.
func (b *BulkBuilder) Upsert(docType, id string, doc map[string]any) *BulkBuilder {
	if doc == nil {
		doc = map[string]any{}
	}
	return b.add(BulkOp{Action: ActionUpsert, Index: b.index, DocType: docType, ID: id, Doc: maps.Clone(doc)})
}

// Delete adds a delete operation.
func (b *BulkBuilder) Delete(docType, id string) *BulkBuilder {
	return b.add(BulkOp{Action: ActionDelete, Index: b.index, DocType: docType, ID: id})
}

func (b *BulkBuilder) add(op BulkOp) *BulkBuilder {
	switch {
	case b.built:
		b.errs = append(b.errs, errors.New("bulk request already built"))
	case op.ID == "":
		b.errs = append(b.errs, fmt.Errorf("%s operation %d: id is required", op.Action, len(b.ops)))
	case op.DocType == "":
		b.errs = append(b.errs, fmt.Errorf("%s operation %d: document type is required", op.Action, len(b.ops)))
	default:
		b.ops = append(b.ops, op)
	}
	return b
}

// Len returns the number of operations added so far.
func (b *BulkBuilder) Len() int { return len(b.ops) }

// Build validates and returns the request. A builder can be built only once.
func (b *BulkBuilder) Build() (*BulkRequest, error) {
	if b.built {
		return nil, errors.New("bulk request already built")
	}
	if b.index == "" {
		return nil, errors.New("bulk index is required")
	}
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	b.built = true
	return &BulkRequest{ops: slices.Clone(b.ops)}, nil
}

// BulkItem is the backend outcome of a single bulk operation.
type BulkItem struct {
	Action BulkAction
	ID     string
	Status int
	Error  string
}

// Failed reports whether the operation did not take effect.
// A delete of an already-missing document counts as success.
func (i BulkItem) Failed() bool {
	if i.Action == ActionDelete && i.Status == 404 {
		return false
	}
	return i.Status >= 300 || i.Error != ""
}

// BulkResult is the backend response to a bulk request.
type BulkResult struct {
	Items []BulkItem
}

// Failed returns the items that did not take effect.
func (r *BulkResult) Failed() []BulkItem {
	if r == nil {
		return nil
	}
	var out []BulkItem
	for _, it := range r.Items {
		if it.Failed() {
			out = append(out, it)
		}
	}
	return out
}

package searchcore

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// Operation names one kind of bulk write against the search cluster.
type Operation int

const (
	OpIndex Operation = iota
	OpUpsert
	OpDelete
)

// String returns the wire name of the bulk action.
func (op Operation) String() string {
	switch op {
	case OpIndex:
		return "index"
	case OpUpsert:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// ReferenceSource produces the serialized document body on demand. It may
// return ErrShouldBeDeleted when the entity's current state indicates the
// document must be removed from the index instead.
type ReferenceSource func() (json.RawMessage, error)

// DocumentReference names one unit of index/upsert/delete work. Immutable
// once constructed; consumed exactly once by the BulkIndexer (or re-queued
// by the caller on failure).
type DocumentReference struct {
	Op        Operation
	IndexName string
	ID        string
	Routing   string // optional
	Body      json.RawMessage

	// Source, when set and Body is nil, is called at process time to
	// produce the body.
	Source ReferenceSource `json:"-"`
}

// AsDelete returns a delete reference for the same document.
func (ref DocumentReference) AsDelete() DocumentReference {
	return DocumentReference{
		Op:        OpDelete,
		IndexName: ref.IndexName,
		ID:        ref.ID,
		Routing:   ref.Routing,
	}
}

// resolveBody returns the serialized document body, calling Source when the
// body was not provided up front.
func (ref DocumentReference) resolveBody() (json.RawMessage, error) {
	if ref.Body != nil {
		return ref.Body, nil
	}
	if ref.Source == nil {
		return nil, errors.Errorf("reference %s/%s has no body or source", ref.IndexName, ref.ID)
	}
	return ref.Source()
}

type actionMeta struct {
	Index   string `json:"_index"`
	ID      string `json:"_id"`
	Routing string `json:"routing,omitempty"`
}

// encode renders the reference as NDJSON lines for the bulk API, targeted
// at indexName: an action line, then a document line for index/upsert.
// Every line ends with the newline the wire format requires, so len() of
// the result is the exact payload cost of the operation.
func (ref DocumentReference) encode(indexName string) ([]byte, error) {
	meta, err := json.Marshal(map[string]actionMeta{
		ref.Op.String(): {Index: indexName, ID: ref.ID, Routing: ref.Routing},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal action line")
	}

	var buf bytes.Buffer
	buf.Write(meta)
	buf.WriteByte('\n')

	if ref.Op == OpDelete {
		return buf.Bytes(), nil
	}

	body, err := ref.resolveBody()
	if err != nil {
		return nil, err
	}

	var doc []byte
	switch ref.Op {
	case OpIndex:
		doc = body
	case OpUpsert:
		doc, err = json.Marshal(map[string]any{
			"doc":           body,
			"doc_as_upsert": true,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal upsert document")
		}
	default:
		return nil, errors.Wrapf(ErrUnsupportedOperation, "operation %d", ref.Op)
	}

	buf.Write(doc)
	buf.WriteByte('\n')

	return buf.Bytes(), nil
}

package escluster

import (
	"encoding/json"
	"io"
)

// SearchRequest represents Elasticsearch search request.
type SearchRequest struct {
	Index              string    // Index name or pattern
	Body               io.Reader // Query body (JSON)
	Routing            string    // Optional routing key
	Size               *int      // Number of results to return
	From               *int      // Offset for pagination
	WithTrackTotalHits bool      // Track total hits accurately
}

// Hit is a single document returned by a search.
type Hit struct {
	Index     string              `json:"_index"`
	ID        string              `json:"_id"`
	Score     *float64            `json:"_score"`
	Routing   string              `json:"_routing,omitempty"`
	Source    json.RawMessage     `json:"_source"`
	Highlight map[string][]string `json:"highlight,omitempty"`

	// MatchedQueries lists the _name of every clause the hit satisfied.
	MatchedQueries []string `json:"matched_queries,omitempty"`
}

// SearchResponse represents Elasticsearch search response.
type SearchResponse struct {
	Took     int  `json:"took"`
	TimedOut bool `json:"timed_out"`
	Hits     struct {
		Total struct {
			Value    int    `json:"value"`
			Relation string `json:"relation"`
		} `json:"total"`
		MaxScore *float64 `json:"max_score"`
		Hits     []Hit    `json:"hits"`
	} `json:"hits"`
	Aggregations json.RawMessage `json:"aggregations,omitempty"`
}

// BulkRequest represents Elasticsearch bulk request.
type BulkRequest struct {
	Index string    // Default index name
	Body  io.Reader // Bulk operations body (NDJSON)
}

// BulkOpResult is the per-operation result inside a bulk response item.
type BulkOpResult struct {
	Index  string     `json:"_index"`
	ID     string     `json:"_id"`
	Result string     `json:"result"`
	Status int        `json:"status"`
	Error  *BulkError `json:"error,omitempty"`
}

// BulkError carries details of a failed bulk operation.
type BulkError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// BulkResponse represents Elasticsearch bulk response. Items appear in
// request order; each item is keyed by its operation type ("index",
// "update" or "delete").
type BulkResponse struct {
	Took   int                       `json:"took"`
	Errors bool                      `json:"errors"`
	Items  []map[string]BulkOpResult `json:"items"`
}

// CountRequest represents count request.
type CountRequest struct {
	Index string    // Index name or pattern
	Body  io.Reader // Query body (JSON), optional
}

// CountResponse represents count response.
type CountResponse struct {
	Count  int                    `json:"count"`
	Shards map[string]interface{} `json:"_shards"`
}

// AliasIndex is one concrete index generation backing an alias.
type AliasIndex struct {
	Name         string
	IsWriteIndex bool
}

// AliasInfo describes which index generations back a logical alias.
type AliasInfo struct {
	Alias   string
	Indices []AliasIndex
}

// WriteIndex returns the current write target, or empty string if the
// alias has none.
func (ai *AliasInfo) WriteIndex() string {
	for _, idx := range ai.Indices {
		if idx.IsWriteIndex {
			return idx.Name
		}
	}
	return ""
}

// CreateIndexRequest represents create index request.
type CreateIndexRequest struct {
	Index string    // Index name
	Body  io.Reader // Mappings and settings (JSON)
}

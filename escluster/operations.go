package escluster

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
)

// Client provides typed Elasticsearch operations on top of ESClient.
type Client struct {
	es      ESClient
	baseURL *url.URL
}

// NewClient creates a typed client wrapper around ESClient.
func NewClient(es ESClient, baseURL string) (*Client, error) {
	u, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		es:      es,
		baseURL: u,
	}, nil
}

// Search performs search request.
func (c *Client) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	if req.Index == "" {
		return nil, errors.New("index name is required")
	}

	path := fmt.Sprintf("/%s/_search", req.Index)
	query := url.Values{}

	if req.Size != nil {
		query.Set("size", strconv.Itoa(*req.Size))
	}
	if req.From != nil {
		query.Set("from", strconv.Itoa(*req.From))
	}
	if req.Routing != "" {
		query.Set("routing", req.Routing)
	}
	if req.WithTrackTotalHits {
		query.Set("track_total_hits", "true")
	}

	u := newURL(c.baseURL, path, query)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), req.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create search request")
	}
	contentTypeJSON(httpReq)

	var resp SearchResponse
	status, err := doJSON(ctx, c.es, httpReq, &resp)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, &StatusError{Op: "search", StatusCode: status}
	}

	return &resp, nil
}

// Bulk performs bulk operations.
func (c *Client) Bulk(ctx context.Context, req *BulkRequest) (*BulkResponse, error) {
	path := "/_bulk"
	if req.Index != "" {
		path = fmt.Sprintf("/%s/_bulk", req.Index)
	}

	u := newURL(c.baseURL, path, nil)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), req.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create bulk request")
	}
	httpReq.Header.Set("Content-Type", "application/x-ndjson")

	var resp BulkResponse
	status, err := doJSON(ctx, c.es, httpReq, &resp)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, &StatusError{Op: "bulk", StatusCode: status}
	}
	return &resp, nil
}

// Count counts documents matching query.
func (c *Client) Count(ctx context.Context, req *CountRequest) (*CountResponse, error) {
	if req.Index == "" {
		return nil, errors.New("index name is required")
	}

	path := fmt.Sprintf("/%s/_count", req.Index)
	u := newURL(c.baseURL, path, nil)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), req.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create count request")
	}
	if req.Body != nil {
		contentTypeJSON(httpReq)
	}

	var resp CountResponse
	status, err := doJSON(ctx, c.es, httpReq, &resp)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, &StatusError{Op: "count", StatusCode: status}
	}

	return &resp, nil
}

// Aliases returns the concrete index generations backing an alias and
// which of them is the current write target.
func (c *Client) Aliases(ctx context.Context, alias string) (*AliasInfo, error) {
	if alias == "" {
		return nil, errors.New("alias name is required")
	}

	path := fmt.Sprintf("/_alias/%s", alias)
	u := newURL(c.baseURL, path, nil)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create alias request")
	}

	// index name -> {"aliases": {alias name -> {"is_write_index": bool}}}
	var raw map[string]struct {
		Aliases map[string]struct {
			IsWriteIndex bool `json:"is_write_index"`
		} `json:"aliases"`
	}

	status, err := doJSON(ctx, c.es, httpReq, &raw)
	if err != nil {
		return nil, err
	}

	if status == http.StatusNotFound {
		return &AliasInfo{Alias: alias}, nil
	}
	if status != http.StatusOK {
		return nil, &StatusError{Op: "aliases", StatusCode: status}
	}

	info := &AliasInfo{Alias: alias}
	for indexName, entry := range raw {
		aliasEntry, ok := entry.Aliases[alias]
		if !ok {
			continue
		}
		info.Indices = append(info.Indices, AliasIndex{
			Name:         indexName,
			IsWriteIndex: aliasEntry.IsWriteIndex,
		})
	}

	return info, nil
}

// CreateIndex creates a new index with mappings and settings.
func (c *Client) CreateIndex(ctx context.Context, req *CreateIndexRequest) error {
	if req.Index == "" {
		return errors.New("index name is required")
	}

	path := fmt.Sprintf("/%s", req.Index)
	u := newURL(c.baseURL, path, nil)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, u.String(), req.Body)
	if err != nil {
		return errors.Wrap(err, "failed to create index request")
	}
	contentTypeJSON(httpReq)

	status, err := doJSON(ctx, c.es, httpReq, nil)
	if err != nil {
		return err
	}

	if status != http.StatusOK && status != http.StatusCreated {
		return &StatusError{Op: "create_index", StatusCode: status}
	}

	return nil
}

// DeleteIndex deletes an index.
func (c *Client) DeleteIndex(ctx context.Context, indexName string) error {
	if indexName == "" {
		return errors.New("index name is required")
	}

	path := fmt.Sprintf("/%s", indexName)
	u := newURL(c.baseURL, path, nil)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, u.String(), nil)
	if err != nil {
		return errors.Wrap(err, "failed to create delete index request")
	}

	status, err := doJSON(ctx, c.es, httpReq, nil)
	if err != nil {
		return err
	}

	if status != http.StatusOK {
		return &StatusError{Op: "delete_index", StatusCode: status}
	}

	return nil
}

// IndexExists checks if index exists.
func (c *Client) IndexExists(ctx context.Context, indexName string) (bool, error) {
	if indexName == "" {
		return false, errors.New("index name is required")
	}

	path := fmt.Sprintf("/%s", indexName)
	u := newURL(c.baseURL, path, nil)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodHead, u.String(), nil)
	if err != nil {
		return false, errors.Wrap(err, "failed to create index exists request")
	}

	status, err := doJSON(ctx, c.es, httpReq, nil)
	if err != nil {
		return false, err
	}

	return status == http.StatusOK, nil
}

// Refresh makes recent writes visible to search.
func (c *Client) Refresh(ctx context.Context, indexName string) error {
	if indexName == "" {
		return errors.New("index name is required")
	}

	path := fmt.Sprintf("/%s/_refresh", indexName)
	u := newURL(c.baseURL, path, nil)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return errors.Wrap(err, "failed to create refresh request")
	}

	status, err := doJSON(ctx, c.es, httpReq, nil)
	if err != nil {
		return err
	}

	if status != http.StatusOK {
		return &StatusError{Op: "refresh", StatusCode: status}
	}

	return nil
}

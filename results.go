package searchcore

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/forgehq/search-core/escluster"
)

// Highlight markers requested by BlobQuery. Deliberately not HTML tags:
// indexed content can itself contain markup.
const (
	HighlightPreTag  = "search_hit→"
	HighlightPostTag = "←search_hit"
)

// DefaultCountLimit is the display ceiling for counts. Past this scale
// exact counts are neither computed nor displayed.
const DefaultCountLimit = 10000

// SearchClient is the slice of the cluster client the aggregator needs.
// *escluster.Client satisfies it.
type SearchClient interface {
	Search(ctx context.Context, req *escluster.SearchRequest) (*escluster.SearchResponse, error)
}

// Result is one raw hit mapped into a domain-consumable shape.
type Result struct {
	ID        string
	Score     float64
	Source    json.RawMessage
	Highlight map[string][]string
}

// ResultPage is one page of results for one scope. Immutable after
// construction.
type ResultPage struct {
	Items      []Result
	TotalCount int
	Page       int
	PerPage    int
}

// PreloadFunc lets the caller enrich a page of results (eager-loading
// associated data) before it is returned.
type PreloadFunc func(items []Result)

// AggregatorConfig configures an Aggregator.
type AggregatorConfig struct {
	Client  SearchClient
	Builder *Builder

	// Indices maps scope name to index alias. Unmapped scopes default to
	// the scope name itself.
	Indices map[string]string

	// CountLimit overrides DefaultCountLimit.
	CountLimit int

	Logger Logger
}

type memoKey struct {
	scope     string
	countOnly bool
}

// Aggregator executes built queries per scope, paginates, and maps raw
// hits back into domain-shaped results. Request-scoped: construct one per
// incoming search request; searches are memoized per (scope, countOnly)
// so count and page fetches never duplicate cluster round-trips.
type Aggregator struct {
	client     SearchClient
	builder    *Builder
	indices    map[string]string
	countLimit int
	log        Logger

	query string
	opts  QueryOptions

	memo map[memoKey]*escluster.SearchResponse
}

// NewAggregator creates an aggregator for one search request.
func NewAggregator(cfg AggregatorConfig, query string, opts QueryOptions) (*Aggregator, error) {
	if cfg.Client == nil {
		return nil, errors.New("search client is required")
	}
	if cfg.Builder == nil {
		return nil, errors.New("query builder is required")
	}
	if cfg.CountLimit == 0 {
		cfg.CountLimit = DefaultCountLimit
	}

	return &Aggregator{
		client:     cfg.Client,
		builder:    cfg.Builder,
		indices:    cfg.Indices,
		countLimit: cfg.CountLimit,
		log:        safeLogger(cfg.Logger),
		query:      query,
		opts:       opts,
		memo:       make(map[memoKey]*escluster.SearchResponse),
	}, nil
}

// Objects returns one page of results for the scope. Unknown scopes yield
// an empty page, not an error; cluster failures propagate.
func (a *Aggregator) Objects(ctx context.Context, scope string, page, perPage int, preload PreloadFunc) (*ResultPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	resp, known, err := a.execute(ctx, scope, page, perPage, false)
	if err != nil {
		return nil, err
	}
	if !known {
		return &ResultPage{Page: page, PerPage: perPage}, nil
	}

	items := make([]Result, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		var score float64
		if hit.Score != nil {
			score = *hit.Score
		}
		items = append(items, Result{
			ID:        hit.ID,
			Score:     score,
			Source:    hit.Source,
			Highlight: hit.Highlight,
		})
	}

	if preload != nil {
		preload(items)
	}

	return &ResultPage{
		Items:      items,
		TotalCount: resp.Hits.Total.Value,
		Page:       page,
		PerPage:    perPage,
	}, nil
}

// Count returns the total hit count for the scope. A page fetch already
// executed for the scope is reused rather than re-querying: a second query
// with different pagination can report a different count on some cluster
// configurations.
func (a *Aggregator) Count(ctx context.Context, scope string) (int, error) {
	if resp, ok := a.memo[memoKey{scope: scope, countOnly: false}]; ok {
		return resp.Hits.Total.Value, nil
	}

	resp, known, err := a.execute(ctx, scope, 1, 0, true)
	if err != nil {
		return 0, err
	}
	if !known {
		return 0, nil
	}

	return resp.Hits.Total.Value, nil
}

// FormattedCount returns the display string for the scope's count, capped
// at the configured ceiling ("10000+" at or above it).
func (a *Aggregator) FormattedCount(ctx context.Context, scope string) (string, error) {
	count, err := a.Count(ctx, scope)
	if err != nil {
		return "", err
	}

	if count >= a.countLimit {
		return fmt.Sprintf("%d+", a.countLimit), nil
	}

	return fmt.Sprintf("%d", count), nil
}

// Aggregations returns the raw aggregations section for the scope in
// aggregation mode.
func (a *Aggregator) Aggregations(ctx context.Context, scope string) (json.RawMessage, error) {
	resp, known, err := a.execute(ctx, scope, 1, 0, false)
	if err != nil {
		return nil, err
	}
	if !known {
		return nil, nil
	}

	return resp.Aggregations, nil
}

func (a *Aggregator) execute(ctx context.Context, scope string, page, perPage int, countOnly bool) (*escluster.SearchResponse, bool, error) {
	key := memoKey{scope: scope, countOnly: countOnly}
	if resp, ok := a.memo[key]; ok {
		return resp, true, nil
	}

	q, known := a.buildQuery(ctx, scope, countOnly)
	if !known {
		a.log.DebugWithCtx(ctx, "unknown search scope", "scope", scope)
		return nil, false, nil
	}

	body, err := escluster.EncodeQuery(q)
	if err != nil {
		return nil, true, err
	}

	from := (page - 1) * perPage
	size := perPage
	if countOnly {
		from = 0
		size = 0
	}

	resp, err := a.client.Search(ctx, &escluster.SearchRequest{
		Index:              a.indexFor(scope),
		Body:               body,
		From:               &from,
		Size:               &size,
		WithTrackTotalHits: true,
	})
	if err != nil {
		return nil, true, err
	}

	a.memo[key] = resp
	return resp, true, nil
}

func (a *Aggregator) buildQuery(ctx context.Context, scope string, countOnly bool) (QueryHash, bool) {
	opts := a.opts
	opts.CountOnly = countOnly

	switch scope {
	case "issues":
		return a.builder.IssueQuery(ctx, a.query, opts), true
	case "merge_requests":
		return a.builder.MergeRequestQuery(ctx, a.query, opts), true
	case "projects":
		return a.builder.ProjectQuery(ctx, a.query, opts), true
	case "users":
		return a.builder.UserQuery(ctx, a.query, opts), true
	case "blobs":
		return a.builder.BlobQuery(ctx, a.query, FeatureRepository, opts), true
	case "wiki_blobs":
		return a.builder.BlobQuery(ctx, a.query, FeatureWiki, opts), true
	default:
		return nil, false
	}
}

func (a *Aggregator) indexFor(scope string) string {
	if name, ok := a.indices[scope]; ok {
		return name
	}
	return scope
}

// FoundBlob is a parsed file-content hit.
type FoundBlob struct {
	Path     string
	Basename string
	Ref      string
	Data     string

	// Startline is the 1-based line number of the first line of Data.
	Startline int

	// HighlightLine is the 1-based matched line, 0 when the query matched
	// without highlighting (e.g., on a non-highlighted field).
	HighlightLine int

	// ProjectID is 0 for group-level documents; GroupID identifies the
	// owning group either way.
	ProjectID int64
	GroupID   int64
}

// BlobParseOptions bound the content window around the matched line.
type BlobParseOptions struct {
	// ContextLines above and below the highlight; clamped to
	// [0, MaxContextLines], default DefaultContextLines.
	ContextLines int
}

const (
	DefaultContextLines = 2
	MaxContextLines     = 5
)

// ParseBlobHit extracts path, basename, and a bounded content window
// around the first highlighted line from a raw blob hit. Group-level and
// project-level documents are distinguished by presence of a project id.
func ParseBlobHit(hit escluster.Hit, opts BlobParseOptions) (*FoundBlob, error) {
	var src struct {
		Path      string `json:"path"`
		Content   string `json:"content"`
		Ref       string `json:"ref"`
		ProjectID *int64 `json:"project_id"`
		GroupID   *int64 `json:"group_id"`
	}

	if err := json.Unmarshal(hit.Source, &src); err != nil {
		return nil, errors.Wrap(err, "failed to decode blob hit source")
	}

	context := opts.ContextLines
	if context == 0 {
		context = DefaultContextLines
	}
	if context < 0 {
		context = 0
	}
	if context > MaxContextLines {
		context = MaxContextLines
	}

	highlightLine := 0
	if fragments, ok := hit.Highlight["content"]; ok && len(fragments) > 0 {
		for i, line := range strings.Split(fragments[0], "\n") {
			if strings.Contains(line, HighlightPreTag) {
				highlightLine = i + 1
				break
			}
		}
	}

	lines := strings.Split(src.Content, "\n")

	start := 0
	if highlightLine > 0 {
		start = highlightLine - 1 - context
		if start < 0 {
			start = 0
		}
	}

	end := start + 2*context + 1
	if highlightLine > 0 {
		end = highlightLine + context
	}
	if end > len(lines) {
		end = len(lines)
	}

	blob := &FoundBlob{
		Path:          src.Path,
		Basename:      strings.TrimSuffix(src.Path, filepath.Ext(src.Path)),
		Ref:           src.Ref,
		Data:          strings.Join(lines[start:end], "\n"),
		Startline:     start + 1,
		HighlightLine: highlightLine,
	}

	if src.ProjectID != nil {
		blob.ProjectID = *src.ProjectID
	}
	if src.GroupID != nil {
		blob.GroupID = *src.GroupID
	}

	return blob, nil
}

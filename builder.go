package searchcore

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

// Feature flags and migration gates consulted by the builders.
const (
	// FlagMergeRequestsHiddenFilter gates the not-hidden filter for merge
	// requests while the hidden field backfill rolls out.
	FlagMergeRequestsHiddenFilter = "search_merge_requests_hidden_filter"

	// FlagIssuesArchivedMigration reports whether the archived field
	// backfill for issue documents has completed.
	FlagIssuesArchivedMigration = "search_issues_archived_migration"

	// FlagIssuesLabelsMigration reports whether label ids are indexed on
	// issue documents.
	FlagIssuesLabelsMigration = "search_issues_labels_migration"

	// FlagAdvancedQuerySyntax allows the simple-query-string strategy for
	// queries carrying advanced operators.
	FlagAdvancedQuerySyntax = "search_advanced_query_syntax"
)

// FlagChecker answers feature flag and migration-completion lookups.
// A nil checker treats every flag as enabled.
type FlagChecker interface {
	Enabled(ctx context.Context, flag string) bool
}

// Builder turns a free-text query string plus options into a complete,
// executable QueryHash for one entity type. Stateless with respect to
// shared mutable state; safe for concurrent use.
type Builder struct {
	flags FlagChecker
	log   Logger
}

// NewBuilder creates a builder. flags may be nil (all gates open).
func NewBuilder(flags FlagChecker, log Logger) *Builder {
	return &Builder{
		flags: flags,
		log:   safeLogger(log),
	}
}

func (b *Builder) enabled(ctx context.Context, flag string) bool {
	if b.flags == nil {
		return true
	}
	return b.flags.Enabled(ctx, flag)
}

// entityOptions are the per-entity extras merged into every filter call.
type entityOptions struct {
	docType        string
	feature        Feature
	fields         []string
	projectIDField string
	noJoinProject  bool

	// useTraversalIDs stays false for merge requests: traversal-id
	// authorization has a known cross-project visibility issue there.
	// Intentional limitation, keep until resolved upstream.
	useTraversalIDs bool

	refPrefix byte // reference shortcut sigil, 0 = none
}

var issueEntity = entityOptions{
	docType:         "issue",
	feature:         FeatureIssues,
	fields:          []string{"iid^3", "title^2", "description"},
	projectIDField:  "project_id",
	noJoinProject:   true,
	useTraversalIDs: true,
	refPrefix:       '#',
}

var mergeRequestEntity = entityOptions{
	docType: "merge_request",
	feature: FeatureMergeRequests,
	fields:  []string{"iid^3", "title^2", "description"},
	// merge requests live under the target project
	projectIDField:  "target_project_id",
	noJoinProject:   true,
	useTraversalIDs: false,
	refPrefix:       '!',
}

var projectEntity = entityOptions{
	docType:         "project",
	feature:         FeatureRepository,
	fields:          []string{"name^10", "name_with_namespace^2", "path_with_namespace", "path^9", "description"},
	projectIDField:  "id",
	noJoinProject:   true,
	useTraversalIDs: true,
}

var userEntity = entityOptions{
	docType: "user",
	fields:  []string{"name", "username", "public_email"},
}

var blobEntity = entityOptions{
	docType:         "blob",
	feature:         FeatureRepository,
	fields:          []string{"content", "path^2", "file_name^3"},
	projectIDField:  "project_id",
	noJoinProject:   true,
	useTraversalIDs: true,
}

func applyEntity(opts *QueryOptions, entity entityOptions) {
	opts.DocType = entity.docType
	opts.Feature = entity.feature
	opts.ProjectIDField = entity.projectIDField
	opts.NoJoinProject = entity.noJoinProject
	opts.UseTraversalIDs = entity.useTraversalIDs
}

// IssueQuery builds the executable query for issue search.
func (b *Builder) IssueQuery(ctx context.Context, query string, opts QueryOptions) QueryHash {
	applyEntity(&opts, issueEntity)

	q := b.baseQuery(ctx, query, issueEntity)

	q = FilterAuthorization(q, &opts)
	q = FilterConfidential(q, &opts)
	q = FilterState(q, &opts)
	q = FilterNotHidden(q, &opts)
	if b.enabled(ctx, FlagIssuesArchivedMigration) {
		q = FilterArchived(q, &opts)
	}
	if b.enabled(ctx, FlagIssuesLabelsMigration) {
		q = FilterLabelIDs(q, &opts)
	}

	if opts.Aggregation {
		return labelAggregation(q)
	}

	return applySort(q, opts.Sort)
}

// MergeRequestQuery builds the executable query for merge request search.
func (b *Builder) MergeRequestQuery(ctx context.Context, query string, opts QueryOptions) QueryHash {
	applyEntity(&opts, mergeRequestEntity)

	q := b.baseQuery(ctx, query, mergeRequestEntity)

	q = FilterAuthorization(q, &opts)
	q = FilterState(q, &opts)
	if b.enabled(ctx, FlagMergeRequestsHiddenFilter) {
		q = FilterNotHidden(q, &opts)
	}
	q = FilterArchived(q, &opts)

	return applySort(q, opts.Sort)
}

// ProjectQuery builds the executable query for project search.
func (b *Builder) ProjectQuery(ctx context.Context, query string, opts QueryOptions) QueryHash {
	applyEntity(&opts, projectEntity)

	q := b.baseQuery(ctx, query, projectEntity)

	q = FilterAuthorization(q, &opts)
	q = FilterArchived(q, &opts)

	return applySort(q, opts.Sort)
}

// UserQuery builds the executable query for user search.
func (b *Builder) UserQuery(ctx context.Context, query string, opts QueryOptions) QueryHash {
	opts.DocType = userEntity.docType

	q := b.baseQuery(ctx, query, userEntity)

	if opts.Actor == nil || !opts.Actor.CanReadAllResources() {
		q.AddFilter(namedTerm("in_forbidden_state", false, "filters:not_forbidden"))
	}

	return applySort(q, opts.Sort)
}

// BlobQuery builds the executable query for file content search (wiki and
// repository blobs share the shape; feature picks the gate). Highlighting
// is requested so the results aggregator can window matched content.
func (b *Builder) BlobQuery(ctx context.Context, query string, feature Feature, opts QueryOptions) QueryHash {
	entity := blobEntity
	entity.feature = feature
	applyEntity(&opts, entity)

	q := b.baseQuery(ctx, query, entity)

	q = FilterAuthorization(q, &opts)
	q = FilterArchived(q, &opts)

	q["highlight"] = map[string]any{
		"fields": map[string]any{
			"content": map[string]any{},
		},
		"number_of_fragments": 0,
		"pre_tags":            []any{HighlightPreTag},
		"post_tags":           []any{HighlightPostTag},
	}

	return applySort(q, opts.Sort)
}

// baseQuery builds the doc-type scoped full-text (or reference lookup)
// core every entity query starts from.
func (b *Builder) baseQuery(ctx context.Context, query string, entity entityOptions) QueryHash {
	q := NewQueryHash()

	if iid, ok := referenceLookup(query, entity.refPrefix); ok {
		// Exact reference lookups bypass relevance scoring entirely.
		q.AddMust(namedTerm("iid", iid, "query:related:iid"))
	} else {
		b.fullText(ctx, q, query, entity.fields)
	}

	q.AddFilter(namedTerm("type", entity.docType, "filters:doc:is_a:"+entity.docType))

	return q
}

var (
	referencePattern      = regexp.MustCompile(`([#!])(\d+)$`)
	advancedSyntaxPattern = regexp.MustCompile(`[+\-|*()~"]`)
)

// referenceLookup detects the reference syntax shortcut: a query ending in
// the entity's sigil plus a numeric id.
func referenceLookup(query string, prefix byte) (int64, bool) {
	if prefix == 0 {
		return 0, false
	}

	m := referencePattern.FindStringSubmatch(strings.TrimSpace(query))
	if m == nil || m[1][0] != prefix {
		return 0, false
	}

	iid, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return 0, false
	}

	return iid, true
}

// fullText appends the scored text clause. A blank query still produces a
// valid match-all, score-tracked query: search UIs list everything
// matching the filters when no text is given. The strategy choice must be
// deterministic so identical input always yields the same query shape.
func (b *Builder) fullText(ctx context.Context, q QueryHash, query string, fields []string) {
	fieldsAny := make([]any, 0, len(fields))
	for _, f := range fields {
		fieldsAny = append(fieldsAny, f)
	}

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		q.AddMust(map[string]any{
			"match_all": map[string]any{
				"_name": "query:match:all",
			},
		})
		q["track_scores"] = true
		return
	}

	if advancedSyntaxPattern.MatchString(trimmed) && b.enabled(ctx, FlagAdvancedQuerySyntax) {
		// simple_query_string understands quoting and boolean operators
		// the multi-match path does not.
		q.AddMust(map[string]any{
			"simple_query_string": map[string]any{
				"_name":            "query:simple_query_string",
				"fields":           fieldsAny,
				"query":            trimmed,
				"default_operator": "and",
			},
		})
		return
	}

	q.AddMust(map[string]any{
		"multi_match": map[string]any{
			"_name":    "query:multi_match",
			"fields":   fieldsAny,
			"query":    trimmed,
			"operator": "and",
		},
	})
}

// labelAggregation short-circuits to an aggregation-only response shape.
func labelAggregation(q QueryHash) QueryHash {
	q["size"] = 0
	q["aggs"] = map[string]any{
		"labels": map[string]any{
			"terms": map[string]any{
				"field": "label_ids",
				"size":  500,
			},
		},
	}
	return q
}

// applySort appends the final sort stage. Relevance is the default and
// needs no explicit sort key.
func applySort(q QueryHash, sort string) QueryHash {
	var key, order string

	switch sort {
	case SortCreatedAsc:
		key, order = "created_at", "asc"
	case SortCreatedDesc:
		key, order = "created_at", "desc"
	case SortUpdatedAsc:
		key, order = "updated_at", "asc"
	case SortUpdatedDesc:
		key, order = "updated_at", "desc"
	default:
		return q
	}

	q["sort"] = []any{
		map[string]any{
			key: map[string]any{"order": order},
		},
	}
	return q
}

package searchcore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFlagChecker struct {
	disabled map[string]bool
}

func (f *fakeFlagChecker) Enabled(ctx context.Context, flag string) bool {
	return !f.disabled[flag]
}

func adminOpts() QueryOptions {
	return QueryOptions{Actor: &fakeActor{id: 1, admin: true}}
}

func TestBuilder_ReferenceLookup(t *testing.T) {
	b := NewBuilder(nil, nil)
	ctx := context.Background()

	t.Run("issue reference bypasses full text", func(t *testing.T) {
		q := b.IssueQuery(ctx, "fix the login bug #42", adminOpts())

		js := queryJSON(t, q)
		assert.Contains(t, js, "query:related:iid")
		assert.Contains(t, js, `"iid":{"_name":"query:related:iid","value":42}`)
		assert.NotContains(t, js, "multi_match")
	})

	t.Run("wrong sigil stays full text", func(t *testing.T) {
		q := b.IssueQuery(ctx, "!42", adminOpts())

		js := queryJSON(t, q)
		assert.NotContains(t, js, "query:related:iid")
		assert.Contains(t, js, "multi_match")
	})

	t.Run("merge request sigil is the bang", func(t *testing.T) {
		q := b.MergeRequestQuery(ctx, "!42", adminOpts())
		assert.Contains(t, queryJSON(t, q), "query:related:iid")

		q = b.MergeRequestQuery(ctx, "#42", adminOpts())
		assert.NotContains(t, queryJSON(t, q), "query:related:iid")
	})

	t.Run("sigil not at the end stays full text", func(t *testing.T) {
		q := b.IssueQuery(ctx, "#42 is broken", adminOpts())
		assert.NotContains(t, queryJSON(t, q), "query:related:iid")
	})

	t.Run("projects have no reference syntax", func(t *testing.T) {
		q := b.ProjectQuery(ctx, "#42", adminOpts())
		assert.NotContains(t, queryJSON(t, q), "query:related:iid")
	})
}

func TestBuilder_BlankQueryMatchesAll(t *testing.T) {
	b := NewBuilder(nil, nil)

	q := b.IssueQuery(context.Background(), "   ", adminOpts())

	js := queryJSON(t, q)
	assert.Contains(t, js, `"match_all":{"_name":"query:match:all"}`)
	assert.Contains(t, js, `"track_scores":true`)
	assert.NotContains(t, js, "multi_match")
}

func TestBuilder_QueryStrategy(t *testing.T) {
	b := NewBuilder(nil, nil)
	ctx := context.Background()

	t.Run("plain text uses multi_match with and", func(t *testing.T) {
		q := b.IssueQuery(ctx, "login bug", adminOpts())

		js := queryJSON(t, q)
		assert.Contains(t, js, "query:multi_match")
		assert.Contains(t, js, `"operator":"and"`)
		assert.Contains(t, js, `"fields":["iid^3","title^2","description"]`)
	})

	t.Run("advanced operators switch to simple_query_string", func(t *testing.T) {
		q := b.IssueQuery(ctx, `"login bug" -flaky`, adminOpts())

		js := queryJSON(t, q)
		assert.Contains(t, js, "query:simple_query_string")
		assert.Contains(t, js, `"default_operator":"and"`)
		assert.NotContains(t, js, "multi_match")
	})

	t.Run("advanced syntax gated by flag", func(t *testing.T) {
		gated := NewBuilder(&fakeFlagChecker{disabled: map[string]bool{
			FlagAdvancedQuerySyntax: true,
		}}, nil)

		q := gated.IssueQuery(ctx, `"login bug" -flaky`, adminOpts())
		assert.Contains(t, queryJSON(t, q), "query:multi_match")
	})
}

func TestBuilder_DocTypeFilter(t *testing.T) {
	b := NewBuilder(nil, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		build   func() QueryHash
		docType string
	}{
		{"issue", func() QueryHash { return b.IssueQuery(ctx, "x", adminOpts()) }, "issue"},
		{"merge request", func() QueryHash { return b.MergeRequestQuery(ctx, "x", adminOpts()) }, "merge_request"},
		{"project", func() QueryHash { return b.ProjectQuery(ctx, "x", adminOpts()) }, "project"},
		{"user", func() QueryHash { return b.UserQuery(ctx, "x", adminOpts()) }, "user"},
		{"blob", func() QueryHash { return b.BlobQuery(ctx, "x", FeatureRepository, adminOpts()) }, "blob"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			js := queryJSON(t, tt.build())
			assert.Contains(t, js, `"type":{"_name":"filters:doc:is_a:`+tt.docType+`","value":"`+tt.docType+`"}`)
		})
	}
}

func TestBuilder_Deterministic(t *testing.T) {
	b := NewBuilder(nil, nil)
	ctx := context.Background()

	opts := QueryOptions{
		Actor:    &fakeActor{id: 7, memberProjects: []int64{1, 2}},
		Projects: Projects(1, 2, 3),
		State:    StateOpened,
		LabelIDs: []int64{4, 5},
		Sort:     SortUpdatedDesc,
	}

	first, err := json.Marshal(b.IssueQuery(ctx, "login bug", opts))
	require.NoError(t, err)
	second, err := json.Marshal(b.IssueQuery(ctx, "login bug", opts))
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
}

func TestBuilder_IssueAggregationMode(t *testing.T) {
	b := NewBuilder(nil, nil)

	opts := adminOpts()
	opts.Aggregation = true
	opts.Sort = SortCreatedDesc
	opts.LabelIDs = []int64{1}

	q := b.IssueQuery(context.Background(), "x", opts)

	assert.Equal(t, 0, q["size"])
	assert.NotContains(t, q, "sort")

	js := queryJSON(t, q)
	assert.Contains(t, js, `"labels":{"terms":{"field":"label_ids","size":500}}`)
	// Label filtering would skew the label histogram.
	assert.NotContains(t, js, "filters:label_ids")
}

func TestBuilder_Sort(t *testing.T) {
	b := NewBuilder(nil, nil)
	ctx := context.Background()

	tests := []struct {
		sort string
		want string
	}{
		{SortCreatedAsc, `"sort":[{"created_at":{"order":"asc"}}]`},
		{SortCreatedDesc, `"sort":[{"created_at":{"order":"desc"}}]`},
		{SortUpdatedAsc, `"sort":[{"updated_at":{"order":"asc"}}]`},
		{SortUpdatedDesc, `"sort":[{"updated_at":{"order":"desc"}}]`},
	}

	for _, tt := range tests {
		t.Run(tt.sort, func(t *testing.T) {
			opts := adminOpts()
			opts.Sort = tt.sort
			assert.Contains(t, queryJSON(t, b.IssueQuery(ctx, "x", opts)), tt.want)
		})
	}

	t.Run("relevance has no sort key", func(t *testing.T) {
		q := b.IssueQuery(ctx, "x", adminOpts())
		assert.NotContains(t, q, "sort")
	})
}

func TestBuilder_MergeRequestHiddenFilterFlag(t *testing.T) {
	ctx := context.Background()
	opts := QueryOptions{Actor: &fakeActor{id: 1}, Projects: Projects(1)}

	t.Run("applied when flag is on", func(t *testing.T) {
		b := NewBuilder(nil, nil)
		q := b.MergeRequestQuery(ctx, "x", opts)
		assert.Contains(t, queryJSON(t, q), "filters:not_hidden")
	})

	t.Run("skipped while backfill incomplete", func(t *testing.T) {
		b := NewBuilder(&fakeFlagChecker{disabled: map[string]bool{
			FlagMergeRequestsHiddenFilter: true,
		}}, nil)
		q := b.MergeRequestQuery(ctx, "x", opts)
		assert.NotContains(t, queryJSON(t, q), "filters:not_hidden")
	})
}

func TestBuilder_IssueMigrationFlags(t *testing.T) {
	ctx := context.Background()
	opts := QueryOptions{
		Actor:    &fakeActor{id: 1},
		Projects: Projects(1, 2),
		LabelIDs: []int64{9},
	}

	t.Run("archived and labels applied when migrated", func(t *testing.T) {
		b := NewBuilder(nil, nil)
		js := queryJSON(t, b.IssueQuery(ctx, "x", opts))
		assert.Contains(t, js, "filters:non_archived")
		assert.Contains(t, js, "filters:label_ids")
	})

	t.Run("skipped while migrations run", func(t *testing.T) {
		b := NewBuilder(&fakeFlagChecker{disabled: map[string]bool{
			FlagIssuesArchivedMigration: true,
			FlagIssuesLabelsMigration:   true,
		}}, nil)
		js := queryJSON(t, b.IssueQuery(ctx, "x", opts))
		assert.NotContains(t, js, "filters:non_archived")
		assert.NotContains(t, js, "filters:label_ids")
	})
}

func TestBuilder_MergeRequestProjectIDField(t *testing.T) {
	b := NewBuilder(nil, nil)

	q := b.MergeRequestQuery(context.Background(), "x", QueryOptions{
		Projects: Projects(3),
	})

	// Merge requests live under the target project.
	js := queryJSON(t, q)
	assert.Contains(t, js, `"target_project_id":[3]`)
	assert.NotContains(t, js, `"project_id"`)
}

func TestBuilder_UserQueryForbiddenState(t *testing.T) {
	b := NewBuilder(nil, nil)
	ctx := context.Background()

	t.Run("regular actor excludes forbidden users", func(t *testing.T) {
		q := b.UserQuery(ctx, "alice", QueryOptions{Actor: &fakeActor{id: 1}})
		assert.Contains(t, queryJSON(t, q), "filters:not_forbidden")
	})

	t.Run("admin sees everyone", func(t *testing.T) {
		q := b.UserQuery(ctx, "alice", adminOpts())
		assert.NotContains(t, queryJSON(t, q), "filters:not_forbidden")
	})
}

func TestBuilder_BlobHighlighting(t *testing.T) {
	b := NewBuilder(nil, nil)

	q := b.BlobQuery(context.Background(), "func main", FeatureRepository, adminOpts())

	highlight, ok := q["highlight"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0, highlight["number_of_fragments"])
	assert.Equal(t, []any{HighlightPreTag}, highlight["pre_tags"])
	assert.Equal(t, []any{HighlightPostTag}, highlight["post_tags"])

	fields := highlight["fields"].(map[string]any)
	assert.Contains(t, fields, "content")
}

func TestBuilder_WikiBlobUsesWikiFeature(t *testing.T) {
	b := NewBuilder(nil, nil)

	q := b.BlobQuery(context.Background(), "setup", FeatureWiki, QueryOptions{
		Actor: &fakeActor{id: 1},
	})

	assert.Contains(t, queryJSON(t, q), "wiki_access_level")
}

func TestReferenceLookup(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		prefix byte
		iid    int64
		ok     bool
	}{
		{"bare reference", "#42", '#', 42, true},
		{"reference at end", "login bug #42", '#', 42, true},
		{"trailing whitespace tolerated", "#42  ", '#', 42, true},
		{"wrong sigil", "!42", '#', 0, false},
		{"no digits", "#", '#', 0, false},
		{"reference mid-query", "#42 is broken", '#', 0, false},
		{"no sigil configured", "#42", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iid, ok := referenceLookup(tt.query, tt.prefix)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.iid, iid)
		})
	}
}

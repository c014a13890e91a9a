package searchcore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryHash_AddFilter_CreatesLevels(t *testing.T) {
	q := NewQueryHash()

	q.AddFilter(namedTerm("hidden", false, "filters:not_hidden"))

	expectedJSON := `{
		"query": {
			"bool": {
				"filter": [
					{"term": {"hidden": {"value": false, "_name": "filters:not_hidden"}}}
				]
			}
		}
	}`

	actualJSON, err := json.Marshal(q)
	require.NoError(t, err)
	assert.JSONEq(t, expectedJSON, string(actualJSON))
}

func TestQueryHash_AddFilter_AppendsToExistingList(t *testing.T) {
	q := NewQueryHash()

	q.AddFilter(namedTerm("hidden", false, "a"))
	q.AddFilter(namedTerm("archived", false, "b"))

	boolMap := q["query"].(map[string]any)["bool"].(map[string]any)
	filters := boolMap["filter"].([]any)
	assert.Len(t, filters, 2)
}

func TestQueryHash_AddFilter_ConvertsBareObject(t *testing.T) {
	q := QueryHash{
		"query": map[string]any{
			"bool": map[string]any{
				"filter": map[string]any{"term": map[string]any{"state": "opened"}},
			},
		},
	}

	q.AddFilter(namedTerm("hidden", false, "a"))

	boolMap := q["query"].(map[string]any)["bool"].(map[string]any)
	filters := boolMap["filter"].([]any)
	assert.Len(t, filters, 2)
}

func TestQueryHash_AddMustNot(t *testing.T) {
	q := NewQueryHash()

	q.AddMustNot(namedTerm("confidential", true, "reject"))

	boolMap := q["query"].(map[string]any)["bool"].(map[string]any)
	mustNot := boolMap["must_not"].([]any)
	assert.Len(t, mustNot, 1)
}

func TestQueryHash_AddShouldFilter(t *testing.T) {
	q := NewQueryHash()

	q.AddShouldFilter("filters:non_archived", 1,
		namedTerm("archived", false, "explicit"),
		namedTerm("archived", true, "other"),
	)

	expectedJSON := `{
		"query": {
			"bool": {
				"filter": [
					{
						"bool": {
							"_name": "filters:non_archived",
							"minimum_should_match": 1,
							"should": [
								{"term": {"archived": {"value": false, "_name": "explicit"}}},
								{"term": {"archived": {"value": true, "_name": "other"}}}
							]
						}
					}
				]
			}
		}
	}`

	actualJSON, err := json.Marshal(q)
	require.NoError(t, err)
	assert.JSONEq(t, expectedJSON, string(actualJSON))
}

func TestNamedTerms(t *testing.T) {
	clause := namedTerms("project_id", []int64{1, 2, 3}, "filters:project")

	actualJSON, err := json.Marshal(clause)
	require.NoError(t, err)
	assert.JSONEq(t, `{"terms": {"_name": "filters:project", "project_id": [1, 2, 3]}}`, string(actualJSON))
}

func TestNamedTerms_Empty(t *testing.T) {
	clause := namedTerms("project_id", nil, "filters:project")

	actualJSON, err := json.Marshal(clause)
	require.NoError(t, err)
	assert.JSONEq(t, `{"terms": {"_name": "filters:project", "project_id": []}}`, string(actualJSON))
}

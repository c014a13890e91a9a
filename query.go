package searchcore

// QueryHash is the nested boolean-query structure filters append into.
// It is caller-owned and never shared across concurrent requests.
type QueryHash map[string]any

// NewQueryHash returns an empty query.
func NewQueryHash() QueryHash {
	return QueryHash{}
}

// boolClause returns query.bool, creating intermediate levels as needed.
func (q QueryHash) boolClause() map[string]any {
	queryMap, ok := q["query"].(map[string]any)
	if !ok {
		queryMap = map[string]any{}
		q["query"] = queryMap
	}

	boolMap, ok := queryMap["bool"].(map[string]any)
	if !ok {
		boolMap = map[string]any{}
		queryMap["bool"] = boolMap
	}

	return boolMap
}

// AddMust appends a clause to query.bool.must.
func (q QueryHash) AddMust(clause map[string]any) QueryHash {
	appendClause(q.boolClause(), "must", clause)
	return q
}

// AddFilter appends a clause to query.bool.filter.
func (q QueryHash) AddFilter(clause map[string]any) QueryHash {
	appendClause(q.boolClause(), "filter", clause)
	return q
}

// AddMustNot appends a clause to query.bool.must_not.
func (q QueryHash) AddMustNot(clause map[string]any) QueryHash {
	appendClause(q.boolClause(), "must_not", clause)
	return q
}

// AddShouldFilter appends a named bool-should wrapper to query.bool.filter.
func (q QueryHash) AddShouldFilter(name string, minimumShouldMatch int, clauses ...map[string]any) QueryHash {
	should := make([]any, 0, len(clauses))
	for _, c := range clauses {
		should = append(should, c)
	}

	return q.AddFilter(map[string]any{
		"bool": map[string]any{
			"_name":                name,
			"should":               should,
			"minimum_should_match": minimumShouldMatch,
		},
	})
}

// appendClause appends into a bool sub-list, converting a bare object
// entry into a list first.
func appendClause(boolMap map[string]any, key string, clause map[string]any) {
	existing, ok := boolMap[key]
	if !ok {
		boolMap[key] = []any{clause}
		return
	}

	switch v := existing.(type) {
	case []any:
		boolMap[key] = append(v, clause)
	case map[string]any:
		boolMap[key] = []any{v, clause}
	default:
		boolMap[key] = []any{clause}
	}
}

// namedTerm builds a term clause carrying a _name for diagnostics. Clause
// naming is a debuggability contract: a failing or matching clause must be
// attributable in the matched_queries section of a hit.
func namedTerm(field string, value any, name string) map[string]any {
	return map[string]any{
		"term": map[string]any{
			field: map[string]any{
				"value": value,
				"_name": name,
			},
		},
	}
}

// namedTerms builds a terms clause carrying a _name.
func namedTerms(field string, values []int64, name string) map[string]any {
	list := make([]any, 0, len(values))
	for _, v := range values {
		list = append(list, v)
	}

	return map[string]any{
		"terms": map[string]any{
			"_name": name,
			field:   list,
		},
	}
}

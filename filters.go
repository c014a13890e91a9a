package searchcore

// Filter appends zero or more clauses implementing one authorization or
// state constraint. Filters are pure: same inputs, same output, no hidden
// mutation beyond the QueryHash passed in. Composition order affects only
// clause ordering in the emitted query, not semantics.
type Filter func(q QueryHash, opts *QueryOptions) QueryHash

// FilterNotHidden excludes soft-moderated content from normal search
// regardless of other permissions. Admins see hidden items.
func FilterNotHidden(q QueryHash, opts *QueryOptions) QueryHash {
	if opts.Actor != nil && opts.Actor.CanReadAllResources() {
		return q
	}

	return q.AddFilter(namedTerm("hidden", false, "filters:not_hidden"))
}

// FilterState matches a recognized, non-"all" state option. Absent or
// unrecognized state is a no-op: "user didn't ask" and "user asked for
// everything" both mean no filtering.
func FilterState(q QueryHash, opts *QueryOptions) QueryHash {
	switch opts.State {
	case StateOpened, StateClosed, StateMerged:
	default:
		return q
	}

	return q.AddFilter(map[string]any{
		"match": map[string]any{
			"state": map[string]any{
				"query": opts.State,
				"_name": "filters:state",
			},
		},
	})
}

// FilterArchived excludes documents from archived projects. Older indexed
// documents predate the archived field entirely, so absence of the field
// must also match. Skipped when the caller asked for archived items or the
// search is scoped to a single project.
func FilterArchived(q QueryHash, opts *QueryOptions) QueryHash {
	if opts.IncludeArchived {
		return q
	}
	if opts.Projects.Kind == ScopeIDs && len(opts.Projects.IDs) == 1 {
		return q
	}

	return q.AddShouldFilter("filters:non_archived", 1,
		map[string]any{
			"bool": map[string]any{
				"filter": namedTerm("archived", false, "filters:non_archived:explicit"),
			},
		},
		map[string]any{
			"bool": map[string]any{
				"_name": "filters:non_archived:field_missing",
				"must_not": map[string]any{
					"exists": map[string]any{"field": "archived"},
				},
			},
		},
	)
}

// FilterLabelIDs requires every requested label id to be present (AND
// semantics, not OR). Labels do not change counts or aggregations, so the
// filter is skipped entirely for those query modes.
func FilterLabelIDs(q QueryHash, opts *QueryOptions) QueryHash {
	if opts.CountOnly || opts.Aggregation {
		return q
	}
	if len(opts.LabelIDs) == 0 {
		return q
	}

	terms := make([]any, 0, len(opts.LabelIDs))
	for _, id := range opts.LabelIDs {
		terms = append(terms, id)
	}

	return q.AddFilter(map[string]any{
		"terms_set": map[string]any{
			"label_ids": map[string]any{
				"_name": "filters:label_ids",
				"terms": terms,
				"minimum_should_match_script": map[string]any{
					"source": "params.num_terms",
				},
			},
		},
	})
}

// FilterConfidential restricts confidential items to actors who authored
// them, are assigned to them, or hold reporter-or-above membership in the
// owning project. Applied even without an explicit confidential option:
// default visibility of confidential items depends on actor identity.
func FilterConfidential(q QueryHash, opts *QueryOptions) QueryHash {
	if opts.Confidential != nil {
		q.AddFilter(namedTerm("confidential", *opts.Confidential, "filters:confidential"))
	}

	actor := opts.Actor
	if actor != nil && actor.CanReadAllResources() {
		return q
	}

	// Projects where the actor may read confidential items: the scoped
	// ids when a scope is given, otherwise the actor's memberships.
	var authorized []int64
	if actor != nil {
		candidates := opts.Projects.IDs
		if opts.Projects.Kind != ScopeIDs {
			candidates = actor.AuthorizedProjects(opts.Feature)
		}

		for _, id := range candidates {
			if actor.CanReadConfidential(id) {
				authorized = append(authorized, id)
			}
		}

		// Fully authorized for every in-scope project: nothing to hide.
		if opts.Projects.Kind == ScopeIDs && len(authorized) == len(opts.Projects.IDs) {
			return q
		}
	}

	nonConfidential := namedTerm("confidential", false, "filters:confidentiality:non_confidential")

	var access []map[string]any
	if actor != nil && !actor.IsAnonymous() {
		access = append(access,
			namedTerm("author_id", actor.ID(), "filters:confidentiality:as_author"),
			namedTerm("assignee_id", actor.ID(), "filters:confidentiality:as_assignee"),
		)
	}
	if len(authorized) > 0 {
		access = append(access,
			namedTerms(opts.projectIDField(), authorized, "filters:confidentiality:project:membership:id"))
	}

	// No identity and no memberships: the confidential branch can never
	// match, only non-confidential items are visible.
	if len(access) == 0 {
		return q.AddFilter(nonConfidential)
	}

	accessAny := make([]any, 0, len(access))
	for _, c := range access {
		accessAny = append(accessAny, c)
	}

	confidential := map[string]any{
		"bool": map[string]any{
			"must": []any{
				namedTerm("confidential", true, "filters:confidentiality:confidential"),
				map[string]any{
					"bool": map[string]any{
						"should":               accessAny,
						"minimum_should_match": 1,
					},
				},
			},
		},
	}

	return q.AddShouldFilter("filters:confidentiality", 1, nonConfidential, confidential)
}

// FilterAuthorization selects which projects' and groups' documents are
// visible at all. Prefers the traversal-id prefix path when group ids and
// the per-entity traversal gate allow and the project scope is
// unrestricted; an explicit or empty scope always takes the project-id
// path, so the empty scope keeps matching nothing.
func FilterAuthorization(q QueryHash, opts *QueryOptions) QueryHash {
	actor := opts.Actor

	if actor != nil && actor.CanReadAllResources() {
		// Admins skip project enumeration, but disabled features still
		// exclude the document: the underlying data may be stale.
		if opts.Projects.Kind == ScopeIDs {
			q.AddFilter(namedTerms(opts.projectIDField(), opts.Projects.IDs, "filters:project"))
		}
		return q.AddMustNot(
			namedTerm(opts.featureAccessField(), FeatureAccessDisabled, "filters:feature:not_disabled"))
	}

	if opts.UseTraversalIDs && len(opts.GroupIDs) > 0 && opts.Projects.Kind == ScopeUnrestricted && actor != nil {
		if namespaces := actor.AuthorizedNamespaces(opts.GroupIDs); len(namespaces) > 0 {
			return namespaceVisibilityFilter(q, opts, namespaces)
		}
	}

	return projectVisibilityFilter(q, opts)
}

// namespaceVisibilityFilter matches on hierarchical traversal-id prefixes
// of authorized namespaces, minus specific projects deliberately excluded
// from that namespace-level access.
func namespaceVisibilityFilter(q QueryHash, opts *QueryOptions, namespaces []Namespace) QueryHash {
	prefixes := make([]map[string]any, 0, len(namespaces))
	nsIDs := make([]int64, 0, len(namespaces))
	for _, ns := range namespaces {
		nsIDs = append(nsIDs, ns.ID)
		prefixes = append(prefixes, map[string]any{
			"prefix": map[string]any{
				"traversal_ids": map[string]any{
					"value": ns.TraversalPath,
					"_name": "filters:namespace:ancestry_filter:descendants",
				},
			},
		})
	}

	q.AddShouldFilter("filters:namespace_visibility", 1, prefixes...)

	if excluded := opts.Actor.ExcludedProjects(nsIDs); len(excluded) > 0 {
		q.AddMustNot(namedTerms(opts.projectIDField(), excluded, "filters:reject_projects"))
	}

	return q
}

// projectVisibilityFilter enumerates visible projects. Anonymous actors
// see only documents matching an exact id list; at least one condition
// must be present, so an unrestricted anonymous query picks no projects.
// Authenticated actors get membership-based access unioned with
// public-and-internal visibility (internal skipped for external actors),
// every branch gated on the entity feature being enabled.
func projectVisibilityFilter(q QueryHash, opts *QueryOptions) QueryHash {
	actor := opts.Actor
	idField := opts.projectIDField()

	if opts.Projects.Kind == ScopeEmpty {
		return q.AddFilter(namedTerms(idField, nil, "filters:project"))
	}

	if actor == nil || actor.IsAnonymous() {
		if opts.Projects.Kind == ScopeIDs {
			return q.AddFilter(namedTerms(idField, opts.Projects.IDs, "filters:project"))
		}
		return q.AddFilter(namedTerms(idField, nil, "filters:project"))
	}

	featureField := opts.featureAccessField()
	innerIDField := idField
	if !opts.NoJoinProject {
		// Joined documents check project conditions on the parent, where
		// the project's own id field applies.
		innerIDField = "id"
	}

	membership := actor.AuthorizedProjects(opts.Feature)
	if opts.Projects.Kind == ScopeIDs {
		membership = intersectIDs(membership, opts.Projects.IDs)
	}

	var branches []map[string]any

	if len(membership) > 0 {
		branches = append(branches, map[string]any{
			"bool": map[string]any{
				"_name": "filters:project:membership:id",
				"must": []any{
					namedTerms(innerIDField, membership, "filters:project:membership:id:terms"),
					map[string]any{
						"terms": map[string]any{
							featureField: []any{FeatureAccessEnabled, FeatureAccessPrivate},
						},
					},
				},
			},
		})
	}

	levels := []int{VisibilityPublic}
	if !actor.IsExternal() {
		levels = append(levels, VisibilityInternal)
	}

	for _, level := range levels {
		must := []any{
			namedTerm("visibility_level", level, "filters:project:visibility:level"),
			map[string]any{
				"term": map[string]any{
					featureField: FeatureAccessEnabled,
				},
			},
		}
		if opts.Projects.Kind == ScopeIDs {
			must = append(must, namedTerms(innerIDField, opts.Projects.IDs, "filters:project:scoped"))
		}

		branches = append(branches, map[string]any{
			"bool": map[string]any{
				"_name": "filters:project:visibility",
				"must":  must,
			},
		})
	}

	if len(branches) == 0 {
		return q.AddFilter(namedTerms(idField, nil, "filters:project"))
	}

	if !opts.NoJoinProject {
		branchesAny := make([]any, 0, len(branches))
		for _, b := range branches {
			branchesAny = append(branchesAny, b)
		}

		return q.AddFilter(map[string]any{
			"has_parent": map[string]any{
				"_name":       "filters:project:parent",
				"parent_type": "project",
				"query": map[string]any{
					"bool": map[string]any{
						"should":               branchesAny,
						"minimum_should_match": 1,
					},
				},
			},
		})
	}

	return q.AddShouldFilter("filters:project", 1, branches...)
}

func intersectIDs(a, b []int64) []int64 {
	set := make(map[int64]struct{}, len(b))
	for _, id := range b {
		set[id] = struct{}{}
	}

	var out []int64
	for _, id := range a {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

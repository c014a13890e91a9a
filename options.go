package searchcore

// ScopeKind distinguishes "no restriction" from "no projects" from an
// explicit id list. The sentinel must stay a separate state: an empty id
// list means no results, not everything.
type ScopeKind int

const (
	ScopeUnrestricted ScopeKind = iota
	ScopeEmpty
	ScopeIDs
)

// ProjectScope is the three-state project restriction for a query.
type ProjectScope struct {
	Kind ScopeKind
	IDs  []int64
}

// AnyProjects is the no-restriction scope.
func AnyProjects() ProjectScope {
	return ProjectScope{Kind: ScopeUnrestricted}
}

// NoProjects is the match-nothing scope.
func NoProjects() ProjectScope {
	return ProjectScope{Kind: ScopeEmpty}
}

// Projects restricts the query to an explicit id list.
func Projects(ids ...int64) ProjectScope {
	if len(ids) == 0 {
		return NoProjects()
	}
	return ProjectScope{Kind: ScopeIDs, IDs: ids}
}

// Feature names a per-project feature whose access level gates document
// visibility. Disabled features exclude documents even for privileged
// actors: the underlying data may be stale.
type Feature string

const (
	FeatureIssues        Feature = "issues"
	FeatureMergeRequests Feature = "merge_requests"
	FeatureRepository    Feature = "repository"
	FeatureWiki          Feature = "wiki"
)

// Feature access levels as indexed on project documents.
const (
	FeatureAccessDisabled = 0
	FeatureAccessPrivate  = 10
	FeatureAccessEnabled  = 20
)

// Project visibility levels as indexed on project documents.
const (
	VisibilityPrivate  = 0
	VisibilityInternal = 10
	VisibilityPublic   = 20
)

// Namespace pairs a namespace id with its hierarchical traversal path
// ("1-42-87-"), used for prefix-based authorization filtering.
type Namespace struct {
	ID            int64
	TraversalPath string
}

// Actor is the authorization boundary. A nil Actor means anonymous.
type Actor interface {
	ID() int64
	IsAnonymous() bool
	IsExternal() bool

	// CanReadAllResources reports an admin-all-resources capability.
	CanReadAllResources() bool

	// CanReadConfidential reports reporter-or-above membership in the
	// project, which grants access to its confidential items.
	CanReadConfidential(projectID int64) bool

	// AuthorizedProjects returns project ids the actor is a member of,
	// for the given feature.
	AuthorizedProjects(feature Feature) []int64

	// AuthorizedNamespaces returns, of the given namespace ids, those the
	// actor is authorized into, with their traversal paths.
	AuthorizedNamespaces(ids []int64) []Namespace

	// ExcludedProjects returns project ids inside the given namespaces
	// that were deliberately excluded from the actor's namespace-level
	// access.
	ExcludedProjects(namespaceIDs []int64) []int64
}

// Recognized state option values. StateAll is a sentinel meaning "user
// asked for everything": it disables state filtering just like an absent
// state, but an unrecognized value is also a no-op, distinguishing "user
// didn't ask" from garbage input.
const (
	StateOpened = "opened"
	StateClosed = "closed"
	StateMerged = "merged"
	StateAll    = "all"
)

// Sort option values. Empty means relevance.
const (
	SortCreatedAsc  = "created_asc"
	SortCreatedDesc = "created_desc"
	SortUpdatedAsc  = "updated_asc"
	SortUpdatedDesc = "updated_desc"
)

// QueryOptions is the per-request configuration threaded through every
// filter. Unset fields have explicit zero-value defaults; there is no
// open-ended options map.
type QueryOptions struct {
	Actor    Actor
	Projects ProjectScope
	GroupIDs []int64

	State           string
	Confidential    *bool
	LabelIDs        []int64
	IncludeArchived bool

	CountOnly   bool
	Aggregation bool

	Sort    string
	Page    int
	PerPage int

	// Per-entity extras, set by the query builders.
	DocType         string
	Feature         Feature
	ProjectIDField  string // field holding the owning project id
	NoJoinProject   bool   // documents carry a denormalized project id
	UseTraversalIDs bool   // traversal-id authorization enabled for entity
}

// projectIDField defaults to "project_id".
func (o *QueryOptions) projectIDField() string {
	if o.ProjectIDField == "" {
		return "project_id"
	}
	return o.ProjectIDField
}

// featureAccessField is the indexed per-project access level field, e.g.
// "issues_access_level".
func (o *QueryOptions) featureAccessField() string {
	return string(o.Feature) + "_access_level"
}

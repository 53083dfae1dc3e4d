package rbac

// Evaluator decides whether a permission set satisfies a requirement. It holds
// no mutable state and is safe for concurrent use.
type Evaluator struct {
	hierarchy Hierarchy
}

var defaultEvaluator = NewEvaluator(DefaultHierarchy())

// NewEvaluator returns an Evaluator backed by the given hierarchy.
func NewEvaluator(h Hierarchy) *Evaluator {
	return &Evaluator{hierarchy: h}
}

// Authorize reports whether granted satisfies any of the required
// permissions. Manage Users satisfies everything; otherwise a permission is
// satisfied by direct membership or by an elevated permission that implies
// it. An empty granted set or an empty requirement never authorizes.
func (e *Evaluator) Authorize(granted Set, required ...Permission) bool {
	if granted.Len() == 0 || len(required) == 0 {
		return false
	}
	if e.IsAdmin(granted) {
		return true
	}
	for _, p := range required {
		if granted.Has(p) || e.hierarchy.satisfiedBy(p, granted) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether granted holds the administrative override.
func (e *Evaluator) IsAdmin(granted Set) bool {
	return granted.Has(ManageUsers)
}

// Hierarchy returns the implication table used by e.
func (e *Evaluator) Hierarchy() Hierarchy {
	return e.hierarchy
}

// Authorize evaluates against the default hierarchy.
func Authorize(granted Set, required ...Permission) bool {
	return defaultEvaluator.Authorize(granted, required...)
}

// IsAdmin reports whether granted holds Manage Users.
func IsAdmin(granted Set) bool {
	return defaultEvaluator.IsAdmin(granted)
}

package rbac

// Hierarchy maps a base permission to the elevated permissions that imply it.
// A Hierarchy is immutable once built.
type Hierarchy struct {
	implied map[Permission][]Permission
}

var defaultHierarchy = buildDefaultHierarchy()

// DefaultHierarchy returns the deploy-time implication table shared by every
// evaluator in the process.
func DefaultHierarchy() Hierarchy {
	return defaultHierarchy
}

// NewHierarchy copies rules into a Hierarchy.
func NewHierarchy(rules map[Permission][]Permission) Hierarchy {
	h := Hierarchy{implied: make(map[Permission][]Permission, len(rules))}
	for base, elevated := range rules {
		cp := make([]Permission, len(elevated))
		copy(cp, elevated)
		h.implied[base] = cp
	}
	return h
}

// Implied returns the elevated permissions that satisfy base.
func (h Hierarchy) Implied(base Permission) []Permission {
	elevated := h.implied[base]
	out := make([]Permission, len(elevated))
	copy(out, elevated)
	return out
}

// Bases lists every permission that has at least one implication rule, in
// vocabulary order.
func (h Hierarchy) Bases() []Permission {
	bases := make([]Permission, 0, len(h.implied))
	for _, p := range vocabulary {
		if _, ok := h.implied[p]; ok {
			bases = append(bases, p)
		}
	}
	return bases
}

func (h Hierarchy) satisfiedBy(base Permission, granted Set) bool {
	for _, e := range h.implied[base] {
		if granted.Has(e) {
			return true
		}
	}
	return false
}

func buildDefaultHierarchy() Hierarchy {
	return NewHierarchy(map[Permission][]Permission{
		ViewMovies:        {CreateMovies, UpdateMovies, DeleteMovies},
		ViewSubscriptions: {CreateSubscriptions, UpdateSubscriptions, DeleteSubscriptions},
		ViewMembers:       {CreateMembers, UpdateMembers, DeleteMembers},
		ViewUsers:         {CreateUsers, UpdateUsers, DeleteUsers, ManageUsers},
		CreateUsers:       {ManageUsers},
		UpdateUsers:       {ManageUsers},
		DeleteUsers:       {ManageUsers},
	})
}

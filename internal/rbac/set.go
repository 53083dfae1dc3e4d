package rbac

import (
	"errors"
	"sort"
	"strings"
)

// Set is an unordered collection of distinct permissions. The zero value is
// an empty set.
type Set struct {
	items map[Permission]struct{}
}

// NewSet builds a Set from the given permissions, dropping duplicates.
func NewSet(perms ...Permission) Set {
	s := Set{items: make(map[Permission]struct{}, len(perms))}
	for _, p := range perms {
		s.items[p] = struct{}{}
	}
	return s
}

// ParseSet validates raw labels and returns them as a Set. Blank entries are
// ignored; every unknown label is reported in the joined error.
func ParseSet(raw []string) (Set, error) {
	s := Set{items: make(map[Permission]struct{}, len(raw))}
	var errs []error
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		p, err := ParsePermission(r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.items[p] = struct{}{}
	}
	if len(errs) > 0 {
		return Set{}, errors.Join(errs...)
	}
	return s, nil
}

// Has reports whether p is literally present. Hierarchy is not consulted.
func (s Set) Has(p Permission) bool {
	_, ok := s.items[p]
	return ok
}

// Len returns the number of permissions in the set.
func (s Set) Len() int {
	return len(s.items)
}

// Slice returns the permissions sorted by vocabulary order.
func (s Set) Slice() []Permission {
	out := make([]Permission, 0, len(s.items))
	for p := range s.items {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return order(out[i]) < order(out[j])
	})
	return out
}

// Strings returns the labels sorted by vocabulary order.
func (s Set) Strings() []string {
	perms := s.Slice()
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

func order(p Permission) int {
	if i, ok := vocabularyIndex[p]; ok {
		return i
	}
	return len(vocabulary)
}

// Package role parses and classifies the role claims carried by a
// Bridgemark identity.
//
// The marketplace API transports role membership as a comma-separated
// string of numeric identifiers ("1,3"). That wire format is kept at the
// HTTP boundary only; everything above it works with a parsed [Set].
package role

import (
	"sort"
	"strings"
)

// ID is a single role identifier as issued by the marketplace API.
type ID string

const (
	// Admin is the back-office administrator role.
	Admin ID = "1"
	// Partner is the service-partner role.
	Partner ID = "2"
	// User is the consumer role.
	User ID = "3"
)

// Set is the parsed role membership of one identity. A Set is never
// mutated after Parse; treat it as a value.
type Set map[ID]struct{}

// Parse converts a comma-separated roleIds string into a Set. Blank
// segments and surrounding whitespace are tolerated, so "2, 3" and
// "2,,3" both parse to {Partner, User}. An empty input yields an empty,
// non-nil Set.
func Parse(roleIDs string) Set {
	set := make(Set)
	for _, part := range strings.Split(roleIDs, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		set[ID(part)] = struct{}{}
	}
	return set
}

// Has reports whether id is a member of the set.
func (s Set) Has(id ID) bool {
	_, ok := s[id]
	return ok
}

// IsAdmin reports whether the set includes the administrator role.
func (s Set) IsAdmin() bool { return s.Has(Admin) }

// IsPartner reports whether the set includes the partner role.
func (s Set) IsPartner() bool { return s.Has(Partner) }

// IsUser reports whether the set includes the consumer role.
func (s Set) IsUser() bool { return s.Has(User) }

// IsPurePartner reports whether the identity holds the partner role and
// not the consumer role. Partner-facing surfaces admit only pure
// partners; consumer-facing surfaces reject them.
func (s Set) IsPurePartner() bool { return s.IsPartner() && !s.IsUser() }

// String renders the set back into the wire format, with members in
// lexicographic order for stable output.
func (s Set) String() string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}

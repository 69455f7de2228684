package catalog

import "strings"

// Match reports whether an event type name matches a subscription pattern.
//
// Patterns are dot-separated names where "*" stands in for exactly one
// segment:
//
//	"invoice.created"  matches only "invoice.created"
//	"invoice.*"        matches "invoice.created", "invoice.paid", ...
//	"*"                matches every event type
func Match(pattern, name string) bool {
	if pattern == "*" || pattern == name {
		return true
	}

	pp := strings.Split(pattern, ".")
	np := strings.Split(name, ".")
	if len(pp) != len(np) {
		return false
	}

	for i := range pp {
		if pp[i] != "*" && pp[i] != np[i] {
			return false
		}
	}
	return true
}

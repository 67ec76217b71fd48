// Package match scores marketplace listings against filter criteria.
package match

import (
	"strings"

	"github.com/jbellec/marketwatch/internal/alert"
)

// Match reports whether a listing satisfies every defined criterion.
// Undefined criteria are skipped, price bounds are inclusive, and string
// comparison is case-insensitive. Match is total: malformed listings are
// rejected, never an error.
func Match(criteria alert.Criteria, listing alert.Listing) bool {
	if !listing.WellFormed() {
		return false
	}
	if !matchString(criteria.Brand, listing.Brand) {
		return false
	}
	if !matchString(criteria.Category, listing.Category) {
		return false
	}
	if !matchString(criteria.Size, listing.Size) {
		return false
	}
	if !matchString(criteria.Color, listing.Color) {
		return false
	}
	if !matchString(criteria.Condition, listing.Condition) {
		return false
	}
	if criteria.Keywords.Defined() && !contains(listing.Title, criteria.Keywords.Value) {
		return false
	}
	if criteria.MinPrice != nil && listing.Price < *criteria.MinPrice {
		return false
	}
	if criteria.MaxPrice != nil && listing.Price > *criteria.MaxPrice {
		return false
	}
	return true
}

// Select returns the subset of candidates matching the criteria, preserving
// the fetcher's ordering.
func Select(criteria alert.Criteria, candidates []alert.Listing) []alert.Listing {
	var out []alert.Listing
	for _, listing := range candidates {
		if Match(criteria, listing) {
			out = append(out, listing)
		}
	}
	return out
}

func matchString(c alert.StringCriterion, value string) bool {
	if !c.Defined() {
		return true
	}
	switch c.Kind {
	case alert.MatchContains:
		return contains(value, c.Value)
	default:
		return strings.EqualFold(value, c.Value)
	}
}

func contains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// Package matching decides whether a property and a client want belong
// together, and whether a compatible pair deserves the super-match flag.
package matching

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/corretorconnect/match-engine/pkg/models"
)

// Options toggles the optional parts of the predicate.
type Options struct {
	// EnforceNeighborhoods requires the property neighborhood to appear in the
	// client's desired neighborhood list when that list is non-empty.
	EnforceNeighborhoods bool
}

// Fold returns s trimmed, NFC-normalized and case-folded, so "São Paulo",
// " SÃO PAULO " and a decomposed "São Paulo" compare equal.
func Fold(s string) string {
	// Casers carry state, so each call gets its own.
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

// foldLoose additionally strips diacritics. Used for free-text neighborhoods.
func foldLoose(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		out = s
	}
	return cases.Fold().String(out)
}

// IsCompatible reports whether p satisfies every criterion of c. It is pure;
// price and bedroom bounds are inclusive.
func IsCompatible(p *models.Property, c *models.ClientWant, opts Options) bool {
	if p == nil || c == nil {
		return false
	}
	if p.AgentID == c.AgentID {
		return false
	}
	if !p.IsActive() || !c.IsActive() {
		return false
	}
	if p.Purpose != c.Purpose {
		return false
	}
	if Fold(p.City) != Fold(c.City) {
		return false
	}
	if !statesMatch(p.State, c.State) {
		return false
	}
	if p.Price < c.PriceMin || p.Price > c.PriceMax {
		return false
	}
	if p.Bedrooms < c.MinBedrooms {
		return false
	}
	if opts.EnforceNeighborhoods && !NeighborhoodMatches(p.Neighborhood, c.DesiredNeighborhoods) {
		return false
	}
	return true
}

// statesMatch applies strict null matching: an unset client state only
// accepts an unset property state.
func statesMatch(propertyState, clientState *string) bool {
	if clientState == nil || strings.TrimSpace(*clientState) == "" {
		return propertyState == nil || strings.TrimSpace(*propertyState) == ""
	}
	if propertyState == nil {
		return false
	}
	return Fold(*propertyState) == Fold(*clientState)
}

// NeighborhoodMatches reports whether neighborhood satisfies the comma
// separated desired list. An empty list accepts anything. Entries match as
// substrings in either direction, ignoring case and accents.
func NeighborhoodMatches(neighborhood, desired string) bool {
	entries := SplitNeighborhoods(desired)
	if len(entries) == 0 {
		return true
	}
	n := foldLoose(neighborhood)
	if n == "" {
		return false
	}
	for _, e := range entries {
		f := foldLoose(e)
		if strings.Contains(n, f) || strings.Contains(f, n) {
			return true
		}
	}
	return false
}

// SplitNeighborhoods splits the free-text list, dropping blank entries.
func SplitNeighborhoods(desired string) []string {
	var out []string
	for _, part := range strings.Split(desired, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

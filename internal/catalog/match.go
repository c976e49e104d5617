package catalog

import "strings"

// Matches reports whether c satisfies every clause of f. Each multi-valued
// clause passes when its set is empty or when any one requested value matches.
// f is expected to be normalized.
func Matches(c ProductCandidate, f FilterSpec) bool {
	price := c.PriceValue()
	if f.PriceMin != nil && price < *f.PriceMin {
		return false
	}
	if f.PriceMax != nil && price > *f.PriceMax {
		return false
	}

	if len(f.Colors) > 0 && !containsAny(Fold(c.Color), f.Colors) {
		return false
	}

	// Capacity tokens are matched exactly so "8GB" never matches "128GB".
	memory := FoldToken(c.Memory)
	if len(f.Memories) > 0 && !contains(f.Memories, memory) {
		return false
	}
	if len(f.RAM) > 0 && !contains(f.RAM, memory) {
		return false
	}

	if f.Status != nil && !strings.EqualFold(strings.TrimSpace(c.Status), *f.Status) {
		return false
	}

	if len(f.Attributes) > 0 && !containsAny(Fold(c.Attributes), f.Attributes) {
		return false
	}

	return true
}

// FilterCandidates keeps, in retrieval order, the first candidate per product
// name that satisfies f. A name is recorded only once a candidate carrying it
// is accepted, so a rejected variant never shadows a later matching one.
func FilterCandidates(candidates []ProductCandidate, f FilterSpec) []ProductCandidate {
	f = f.Normalize()

	out := make([]ProductCandidate, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		key := nameKey(c.Name)
		if _, dup := seen[key]; dup {
			continue
		}
		if !Matches(c, f) {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

func nameKey(name string) string {
	return strings.TrimSpace(name)
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

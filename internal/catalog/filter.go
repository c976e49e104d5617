// Package catalog defines the phone catalog domain: extracted search filters,
// retrieved product candidates, the filter predicate, and the context block format.
package catalog

import (
	"math"
	"sort"
	"strings"
)

// FilterSpec is the structured search criteria extracted from a free-text query.
// Every field is optional; the zero value is the identity filter.
type FilterSpec struct {
	PriceMin   *float64 `json:"price_min"`
	PriceMax   *float64 `json:"price_max"`
	Colors     []string `json:"colors"`
	Memories   []string `json:"memories"`
	RAM        []string `json:"ram"`
	Status     *string  `json:"status"`
	Attributes []string `json:"attributes"`
}

// IdentityFilter returns a FilterSpec with no constraints.
func IdentityFilter() FilterSpec {
	return FilterSpec{
		Colors:     []string{},
		Memories:   []string{},
		RAM:        []string{},
		Attributes: []string{},
	}
}

// IsIdentity reports whether f constrains nothing.
func (f FilterSpec) IsIdentity() bool {
	return f.PriceMin == nil &&
		f.PriceMax == nil &&
		len(f.Colors) == 0 &&
		len(f.Memories) == 0 &&
		len(f.RAM) == 0 &&
		f.Status == nil &&
		len(f.Attributes) == 0
}

// Normalize returns a canonical copy: prices that are not positive finite numbers
// are dropped, colors and attributes are case-folded, capacity tokens are
// folded with whitespace removed, status is upper-cased, and every set is
// de-duplicated with empty entries removed. Set order follows first appearance.
func (f FilterSpec) Normalize() FilterSpec {
	out := FilterSpec{
		PriceMin:   positivePrice(f.PriceMin),
		PriceMax:   positivePrice(f.PriceMax),
		Colors:     normalizeSet(f.Colors, Fold),
		Memories:   normalizeSet(f.Memories, FoldToken),
		RAM:        normalizeSet(f.RAM, FoldToken),
		Attributes: normalizeSet(f.Attributes, Fold),
	}

	if f.Status != nil {
		if s := strings.ToUpper(strings.TrimSpace(*f.Status)); s != "" && s != "NULL" {
			out.Status = &s
		}
	}

	return out
}

// Summary renders the active constraints as sorted key=value pairs for logs.
func (f FilterSpec) Summary() []string {
	var parts []string
	if f.PriceMin != nil {
		parts = append(parts, "price_min="+FormatNumber(*f.PriceMin))
	}
	if f.PriceMax != nil {
		parts = append(parts, "price_max="+FormatNumber(*f.PriceMax))
	}
	if len(f.Colors) > 0 {
		parts = append(parts, "colors="+strings.Join(f.Colors, ","))
	}
	if len(f.Memories) > 0 {
		parts = append(parts, "memories="+strings.Join(f.Memories, ","))
	}
	if len(f.RAM) > 0 {
		parts = append(parts, "ram="+strings.Join(f.RAM, ","))
	}
	if f.Status != nil {
		parts = append(parts, "status="+*f.Status)
	}
	if len(f.Attributes) > 0 {
		parts = append(parts, "attributes="+strings.Join(f.Attributes, ","))
	}
	sort.Strings(parts)
	return parts
}

func positivePrice(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return nil
	}
	return &v
}

func normalizeSet(values []string, fold func(string) string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		k := fold(v)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

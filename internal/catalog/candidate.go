package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Metadata keys written by the catalog sync and read back from the vector index.
const (
	MetaProductName = "ProductName"
	MetaColor       = "Color"
	MetaMemory      = "Memory"
	MetaPrice       = "Price"
	MetaStatus      = "Status"
	MetaAttributes  = "Attributes"
	MetaText        = "text"
)

// ProductCandidate is one product variant returned by similarity search.
type ProductCandidate struct {
	Name       string  `json:"name"`
	Color      string  `json:"color,omitempty"`
	Memory     string  `json:"memory,omitempty"`
	Price      string  `json:"price,omitempty"`
	Status     string  `json:"status,omitempty"`
	Attributes string  `json:"attributes,omitempty"`
	Score      float32 `json:"score,omitempty"`
}

// PriceValue returns the numeric price, or 0 when the raw value is unreadable.
func (c ProductCandidate) PriceValue() float64 {
	return ParsePrice(c.Price)
}

// Metadata returns the index metadata for c.
func (c ProductCandidate) Metadata() map[string]interface{} {
	return map[string]interface{}{
		MetaProductName: c.Name,
		MetaColor:       c.Color,
		MetaMemory:      c.Memory,
		MetaPrice:       c.Price,
		MetaStatus:      c.Status,
		MetaAttributes:  c.Attributes,
	}
}

// CandidateFromMetadata maps an index metadata record onto a ProductCandidate.
// Both the sync keys (ProductName, Color, ...) and lower-case aliases are read.
// A structured attribute mapping is flattened to "key: value; key: value" with
// keys sorted.
func CandidateFromMetadata(meta map[string]interface{}) ProductCandidate {
	return ProductCandidate{
		Name:       strings.TrimSpace(lookup(meta, MetaProductName, "name", "product_name")),
		Color:      strings.TrimSpace(lookup(meta, MetaColor, "color")),
		Memory:     strings.TrimSpace(lookup(meta, MetaMemory, "memory", "ram")),
		Price:      strings.TrimSpace(lookup(meta, MetaPrice, "price")),
		Status:     strings.TrimSpace(lookup(meta, MetaStatus, "status")),
		Attributes: strings.TrimSpace(lookup(meta, MetaAttributes, "attributes")),
	}
}

func lookup(meta map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		v, ok := meta[k]
		if !ok || v == nil {
			continue
		}
		if s := stringify(v); s != "" {
			return s
		}
	}
	return ""
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return FormatNumber(t)
	case float32:
		return FormatNumber(float64(t))
	case int:
		return fmt.Sprintf("%d", t)
	case int64:
		return fmt.Sprintf("%d", t)
	case map[string]interface{}:
		return flattenAttributes(t)
	case map[string]string:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[k] = val
		}
		return flattenAttributes(m)
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := stringify(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	default:
		return fmt.Sprint(t)
	}
}

func flattenAttributes(m map[string]interface{}) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, stringify(m[k])))
	}
	return strings.Join(parts, "; ")
}

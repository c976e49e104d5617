package catalog

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func names(cs []ProductCandidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Name)
	}
	return out
}

func TestFilterCandidates_RejectedVariantDoesNotShadowLaterMatch(t *testing.T) {
	candidates := []ProductCandidate{
		{Name: "A", Price: "100"},
		{Name: "A", Price: "150"},
		{Name: "B", Price: "200"},
	}

	got := FilterCandidates(candidates, FilterSpec{PriceMin: ptr(120.0)})

	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Name)
	assert.Equal(t, "150", got[0].Price)
	assert.Equal(t, "B", got[1].Name)

	context := FormatContext(got)
	assert.Equal(t, 2, strings.Count(context, blockSeparator))
}

func TestFilterCandidates_ColorSubstringAndExactRAM(t *testing.T) {
	candidates := []ProductCandidate{
		{Name: "X", Color: "Black Titanium", Memory: "8GB"},
		{Name: "Y", Color: "white", Memory: "8GB"},
	}

	got := FilterCandidates(candidates, FilterSpec{Colors: []string{"black"}, RAM: []string{"8GB"}})
	assert.Equal(t, []string{"X"}, names(got))
}

func TestFilterCandidates_MemoryTokensDoNotSubstringCollide(t *testing.T) {
	candidates := []ProductCandidate{
		{Name: "P1", Memory: "128GB"},
		{Name: "P2", Memory: "8 GB"},
	}

	got := FilterCandidates(candidates, FilterSpec{Memories: []string{"8gb"}})
	assert.Equal(t, []string{"P2"}, names(got))
}

func TestFilterCandidates_AttributeKeywordIsCaseInsensitiveSubstring(t *testing.T) {
	c := ProductCandidate{Name: "Z", Attributes: "5G; AMOLED; Snapdragon 8"}

	got := FilterCandidates([]ProductCandidate{c}, FilterSpec{Attributes: []string{"5g"}})
	require.Len(t, got, 1)

	assert.Equal(t, []string{"5G", "AMOLED", "Snapdragon 8"}, SplitAttributes(got[0].Attributes))
	block := FormatContext(got)
	assert.Contains(t, block, "- 5G\n- AMOLED\n- Snapdragon 8\n")
}

func TestFilterCandidates_Status(t *testing.T) {
	candidates := []ProductCandidate{
		{Name: "A", Status: "out_of_stock"},
		{Name: "B", Status: "available"},
	}

	got := FilterCandidates(candidates, FilterSpec{Status: ptr("AVAILABLE")})
	assert.Equal(t, []string{"B"}, names(got))
}

func TestFilterCandidates_UnparsablePriceFailsBounds(t *testing.T) {
	candidates := []ProductCandidate{
		{Name: "A", Price: "liên hệ"},
		{Name: "B", Price: "15000000"},
	}

	assert.Equal(t, []string{"B"}, names(FilterCandidates(candidates, FilterSpec{PriceMin: ptr(1.0)})))
	assert.Equal(t, []string{"A", "B"}, names(FilterCandidates(candidates, FilterSpec{PriceMax: ptr(20000000.0)})))
}

func TestFilterCandidates_InvertedRangeYieldsEmpty(t *testing.T) {
	candidates := []ProductCandidate{{Name: "A", Price: "150"}}
	got := FilterCandidates(candidates, FilterSpec{PriceMin: ptr(200.0), PriceMax: ptr(100.0)})
	assert.Empty(t, got)
}

func TestFilterCandidates_IdentityOnlyDeduplicates(t *testing.T) {
	candidates := []ProductCandidate{
		{Name: "A", Color: "red"},
		{Name: "B"},
		{Name: "A", Color: "blue"},
		{Name: " B "},
		{Name: "C"},
	}

	got := FilterCandidates(candidates, IdentityFilter())
	assert.Equal(t, []string{"A", "B", "C"}, names(got))
	assert.Equal(t, "red", got[0].Color)
}

func TestFilterCandidates_Idempotent(t *testing.T) {
	candidates := []ProductCandidate{
		{Name: "A", Price: "100", Color: "black"},
		{Name: "A", Price: "150", Color: "Black"},
		{Name: "B", Price: "200", Color: "white"},
		{Name: "C", Price: "300", Color: "BLACK"},
	}
	f := FilterSpec{Colors: []string{"Black"}, PriceMin: ptr(120.0)}

	once := FilterCandidates(candidates, f)
	twice := FilterCandidates(once, f)
	assert.Equal(t, once, twice)
}

func TestFilterCandidates_TighteningPriceNeverGrowsResult(t *testing.T) {
	candidates := []ProductCandidate{
		{Name: "A", Price: "5000000"},
		{Name: "B", Price: "12000000"},
		{Name: "C", Price: "18000000"},
		{Name: "D", Price: "25000000"},
	}

	prev := len(candidates) + 1
	for _, min := range []float64{1, 6000000, 13000000, 19000000, 30000000} {
		got := FilterCandidates(candidates, FilterSpec{PriceMin: ptr(min)})
		assert.LessOrEqual(t, len(got), prev, "price_min=%v", min)
		prev = len(got)
	}
}

func TestNormalize(t *testing.T) {
	f := FilterSpec{
		PriceMin:   ptr(0.0),
		PriceMax:   ptr(20000000.0),
		Colors:     []string{" Black ", "black", ""},
		Memories:   []string{"128 GB"},
		RAM:        []string{"8GB", "8gb"},
		Status:     ptr(" available "),
		Attributes: []string{"5G"},
	}

	n := f.Normalize()
	assert.Nil(t, n.PriceMin)
	require.NotNil(t, n.PriceMax)
	assert.Equal(t, 20000000.0, *n.PriceMax)
	assert.Equal(t, []string{"black"}, n.Colors)
	assert.Equal(t, []string{"128gb"}, n.Memories)
	assert.Equal(t, []string{"8gb"}, n.RAM)
	require.NotNil(t, n.Status)
	assert.Equal(t, "AVAILABLE", *n.Status)
	assert.Equal(t, []string{"5g"}, n.Attributes)
	assert.False(t, n.IsIdentity())

	assert.True(t, IdentityFilter().IsIdentity())
	assert.True(t, FilterSpec{Status: ptr("  ")}.Normalize().IsIdentity())
}

func TestParsePrice(t *testing.T) {
	tests := map[string]float64{
		"25990000":     25990000,
		"25990000.0":   25990000,
		"25,990,000":   25990000,
		"25.990.000":   25990000,
		"25.990.000 đ": 25990000,
		"12000000 VND": 12000000,
		"":             0,
		"liên hệ":      0,
		"-5":           0,
		"NaN":          0,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParsePrice(in), in)
	}
}

func TestFoldHandlesDecomposedVietnamese(t *testing.T) {
	composed := "X\u00e1m \u0110en"
	decomposed := "Xa\u0301m \u0110en"
	assert.Equal(t, Fold(composed), Fold(decomposed))
	assert.Equal(t, "x\u00e1m \u0111en", Fold(decomposed))
	assert.Equal(t, "8gb", FoldToken(" 8 GB "))
}

func TestFoldIsSafeForConcurrentUse(t *testing.T) {
	inputs := []string{"XÁM ĐEN", "Black Titanium", "  Tím  ", "Xanh Dương"}
	want := make([]string, len(inputs))
	for i, in := range inputs {
		want[i] = Fold(in)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 200; n++ {
				i := n % len(inputs)
				if got := Fold(inputs[i]); got != want[i] {
					t.Errorf("Fold(%q) = %q, want %q", inputs[i], got, want[i])
					return
				}
			}
		}()
	}
	wg.Wait()
}

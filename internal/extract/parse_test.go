package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain object",
			raw:  `{"colors": ["black"]}`,
			want: `{"colors": ["black"]}`,
		},
		{
			name: "leading prose and trailing commentary",
			raw:  "Here is the JSON:\n{\"ram\": [\"8GB\"]}\nHope this helps!",
			want: `{"ram": ["8GB"]}`,
		},
		{
			name: "markdown fence",
			raw:  "```json\n{\"status\": \"AVAILABLE\"}\n```",
			want: `{"status": "AVAILABLE"}`,
		},
		{
			name: "trailing commas",
			raw:  `{"colors": ["black", "white",], "ram": [],}`,
			want: `{"colors": ["black", "white"], "ram": []}`,
		},
		{
			name: "nested attribute object",
			raw:  `Result: {"attributes": {"display": "AMOLED", "network": "5G"}, "colors": []} done {ignored}`,
			want: `{"attributes": {"display": "AMOLED", "network": "5G"}, "colors": []}`,
		},
		{
			name: "duplicate closers",
			raw:  `{"colors": ["black"]], "ram": ["8GB"]}}`,
			want: `{"colors": ["black"], "ram": ["8GB"]}`,
		},
		{
			name: "braces inside strings",
			raw:  `{"attributes": ["chip {A17}", "a\"}b"]}`,
			want: `{"attributes": ["chip {A17}", "a\"}b"]}`,
		},
		{
			name: "truncated output is closed",
			raw:  `{"colors": ["black"], "ram": ["8GB"`,
			want: `{"colors": ["black"], "ram": ["8GB"]}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CleanJSON(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.True(t, json.Valid([]byte(got)), got)
		})
	}
}

func TestCleanJSON_Errors(t *testing.T) {
	_, err := CleanJSON("Xin lỗi, tôi không hiểu yêu cầu.")
	assert.ErrorIs(t, err, ErrNoJSONObject)

	_, err = CleanJSON(`{"colors": ["bla`)
	assert.Error(t, err)
}

func TestParseFilterSpec_FullExample(t *testing.T) {
	raw := `{
  "price_min": 10000000,
  "price_max": 20000000,
  "colors": ["Black"],
  "memories": [],
  "ram": ["8GB", "12 GB"],
  "status": "available",
  "attributes": ["5G"],
}`

	spec, err := ParseFilterSpec(raw)
	require.NoError(t, err)

	require.NotNil(t, spec.PriceMin)
	require.NotNil(t, spec.PriceMax)
	assert.Equal(t, 10000000.0, *spec.PriceMin)
	assert.Equal(t, 20000000.0, *spec.PriceMax)
	assert.Equal(t, []string{"black"}, spec.Colors)
	assert.Empty(t, spec.Memories)
	assert.Equal(t, []string{"8gb", "12gb"}, spec.RAM)
	require.NotNil(t, spec.Status)
	assert.Equal(t, "AVAILABLE", *spec.Status)
	assert.Equal(t, []string{"5g"}, spec.Attributes)
}

func TestParseFilterSpec_MissingKeysKeepIdentityDefaults(t *testing.T) {
	spec, err := ParseFilterSpec(`{"colors":["black"],"ram":["8GB"]}`)
	require.NoError(t, err)

	assert.Nil(t, spec.PriceMin)
	assert.Nil(t, spec.PriceMax)
	assert.Nil(t, spec.Status)
	assert.NotNil(t, spec.Memories)
	assert.Empty(t, spec.Memories)
	assert.Empty(t, spec.Attributes)
	assert.Equal(t, []string{"black"}, spec.Colors)
}

func TestParseFilterSpec_CoercesShapes(t *testing.T) {
	spec, err := ParseFilterSpec(`{
		"price_min": "10.000.000",
		"price_max": null,
		"colors": "white",
		"status": "",
		"attributes": {"display": "AMOLED", "nfc": true, "wireless_charging": false},
		"unknown": 1
	}`)
	require.NoError(t, err)

	require.NotNil(t, spec.PriceMin)
	assert.Equal(t, 10000000.0, *spec.PriceMin)
	assert.Nil(t, spec.PriceMax)
	assert.Equal(t, []string{"white"}, spec.Colors)
	assert.Nil(t, spec.Status)
	assert.Equal(t, []string{"amoled", "nfc"}, spec.Attributes)
}

func TestParseFilterSpec_NonPositivePricesDropped(t *testing.T) {
	spec, err := ParseFilterSpec(`{"price_min": 0, "price_max": -5}`)
	require.NoError(t, err)
	assert.True(t, spec.IsIdentity())
}

func TestParseFilterSpec_InvalidReturnsIdentity(t *testing.T) {
	spec, err := ParseFilterSpec(`{"colors": [black]}`)
	assert.Error(t, err)
	assert.True(t, spec.IsIdentity())
}

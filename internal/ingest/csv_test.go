package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/catalog"
)

func TestReadCatalogCSV_HeaderDriven(t *testing.T) {
	input := "\ufeffmemory_name,product_variant_name,color_name,price,attributes\n" +
		"8GB,Galaxy S24,Tím,22990000,\"Màn hình: AMOLED; Chip: Exynos 2400\"\n" +
		"6GB,iPhone 15,Đen,nan,\n"

	rows, err := ReadCatalogCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Galaxy S24", rows[0].ProductVariantName)
	assert.Equal(t, "8GB", rows[0].MemoryName)
	assert.Equal(t, "Tím", rows[0].ColorName)
	assert.Equal(t, "22990000", rows[0].Price)
	assert.Equal(t, "Màn hình: AMOLED; Chip: Exynos 2400", rows[0].Attributes)
	assert.Empty(t, rows[0].ProductVariantStatus)

	assert.Empty(t, rows[1].Price)
}

func TestReadCatalogCSV_Errors(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		_, err := ReadCatalogCSV(strings.NewReader(""))
		assert.Error(t, err)
	})

	t.Run("missing name column", func(t *testing.T) {
		_, err := ReadCatalogCSV(strings.NewReader("color_name,price\nĐen,100\n"))
		assert.ErrorIs(t, err, ErrMissingColumn)
	})
}

func TestBuildDocument(t *testing.T) {
	doc := BuildDocument(catalog.CatalogRow{
		ProductVariantName:     " Galaxy S24 ",
		ProductVariantDetailID: "101",
		ColorName:              "Tím",
		MemoryName:             "8GB",
		Price:                  "22990000",
		ProductVariantStatus:   "AVAILABLE",
		Attributes:             "Màn hình: AMOLED",
	})

	want := "Galaxy S24. Màu: Tím. RAM: 8GB. Giá: 22990000. Trạng thái: AVAILABLE. Thuộc tính: Màn hình: AMOLED"
	assert.Equal(t, want, doc.Text)
	assert.Equal(t, "pvd:101", doc.SourceKey)
	assert.Equal(t, "Galaxy S24", doc.Metadata[catalog.MetaProductName])
	assert.Equal(t, want, doc.Metadata[catalog.MetaText])

	c := catalog.CandidateFromMetadata(doc.Metadata)
	assert.Equal(t, "Galaxy S24", c.Name)
	assert.Equal(t, "8GB", c.Memory)
	assert.Equal(t, "22990000", c.Price)
}

func TestBuildDocument_UnknownPrice(t *testing.T) {
	doc := BuildDocument(catalog.CatalogRow{ProductVariantName: "Redmi 13", ProductVariantDetailName: "Redmi 13 - Xanh - 128GB"})
	assert.Contains(t, doc.Text, "Giá: Không rõ.")
	assert.Equal(t, "name:Redmi 13 - Xanh - 128GB", doc.SourceKey)
}

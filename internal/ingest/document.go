package ingest

import (
	"fmt"
	"strings"

	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/catalog"
)

const unknownValue = "Không rõ"

// Document is one embeddable catalog entry.
type Document struct {
	SourceKey string
	Text      string
	Metadata  map[string]interface{}
}

// BuildDocument renders a catalog row as index text plus the metadata read
// back by the retriever. The product name is the variant name.
func BuildDocument(row catalog.CatalogRow) Document {
	name := strings.TrimSpace(row.ProductVariantName)
	price := row.Price
	if price == "" {
		price = unknownValue
	}

	text := fmt.Sprintf("%s. Màu: %s. RAM: %s. Giá: %s. Trạng thái: %s. Thuộc tính: %s",
		name, row.ColorName, row.MemoryName, price, row.ProductVariantStatus, row.Attributes)

	return Document{
		SourceKey: sourceKey(row),
		Text:      text,
		Metadata: map[string]interface{}{
			catalog.MetaProductName: name,
			catalog.MetaColor:       row.ColorName,
			catalog.MetaMemory:      row.MemoryName,
			catalog.MetaPrice:       row.Price,
			catalog.MetaStatus:      row.ProductVariantStatus,
			catalog.MetaAttributes:  row.Attributes,
			catalog.MetaText:        text,
		},
	}
}

// sourceKey identifies a row across syncs. The variant detail id is preferred;
// exports without ids fall back to the detail name and then the rendered
// variant, color and memory.
func sourceKey(row catalog.CatalogRow) string {
	if id := strings.TrimSpace(row.ProductVariantDetailID); id != "" {
		return "pvd:" + id
	}
	if name := strings.TrimSpace(row.ProductVariantDetailName); name != "" {
		return "name:" + name
	}
	return "row:" + strings.Join([]string{
		strings.TrimSpace(row.ProductVariantName),
		strings.TrimSpace(row.ColorName),
		strings.TrimSpace(row.MemoryName),
	}, "|")
}

package catalog

// CSVHeader is the column order of the flat catalog export.
var CSVHeader = []string{
	"product_id",
	"product_name",
	"trademark_name",
	"product_variant_id",
	"product_variant_name",
	"product_variant_status",
	"product_variant_detail_id",
	"product_variant_detail_name",
	"price",
	"quantity",
	"sale",
	"color_name",
	"memory_name",
	"attributes",
}

// CatalogRow is one sellable variant detail (a variant in one color and memory).
type CatalogRow struct {
	ProductID                string
	ProductName              string
	TrademarkName            string
	ProductVariantID         string
	ProductVariantName       string
	ProductVariantStatus     string
	ProductVariantDetailID   string
	ProductVariantDetailName string
	Price                    string
	Quantity                 string
	Sale                     string
	ColorName                string
	MemoryName               string
	Attributes               string
}

// Record returns the row's fields in CSVHeader order.
func (r CatalogRow) Record() []string {
	return []string{
		r.ProductID,
		r.ProductName,
		r.TrademarkName,
		r.ProductVariantID,
		r.ProductVariantName,
		r.ProductVariantStatus,
		r.ProductVariantDetailID,
		r.ProductVariantDetailName,
		r.Price,
		r.Quantity,
		r.Sale,
		r.ColorName,
		r.MemoryName,
		r.Attributes,
	}
}

// RowFromFields builds a row from a column-name lookup. Missing columns stay empty.
func RowFromFields(get func(column string) string) CatalogRow {
	return CatalogRow{
		ProductID:                get("product_id"),
		ProductName:              get("product_name"),
		TrademarkName:            get("trademark_name"),
		ProductVariantID:         get("product_variant_id"),
		ProductVariantName:       get("product_variant_name"),
		ProductVariantStatus:     get("product_variant_status"),
		ProductVariantDetailID:   get("product_variant_detail_id"),
		ProductVariantDetailName: get("product_variant_detail_name"),
		Price:                    get("price"),
		Quantity:                 get("quantity"),
		Sale:                     get("sale"),
		ColorName:                get("color_name"),
		MemoryName:               get("memory_name"),
		Attributes:               get("attributes"),
	}
}

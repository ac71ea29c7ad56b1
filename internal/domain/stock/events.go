package stock

// StockAdjusted is published after every successful counter mutation so the
// external inventory mirror can follow along. Delta is zero for absolute sets.
type StockAdjusted struct {
	ProductSlug string `json:"product_slug"`
	VariantID   string `json:"variant_id,omitempty"`
	Delta       int    `json:"delta,omitempty"`
	Quantity    int    `json:"quantity"`
}

package pricing

import "butikpos/backend/internal/domain"

// Line is the resolved pricing for one cart line.
type Line struct {
	UnitPriceCents int64
	UnitCostCents  int64
	TaxRatePercent float64
}

// ResolveLine resolves effective price, cost, and tax rate for a product with
// an optional variant. A variant field overrides the product value only when
// it is set; nil inherits. An explicit zero tax rate is a real override and
// must not fall back to the product rate.
func ResolveLine(product domain.Product, variant *domain.Variant) Line {
	line := Line{
		UnitPriceCents: product.PriceCents,
		UnitCostCents:  product.CostCents,
		TaxRatePercent: product.TaxRatePercent,
	}
	if variant == nil {
		return line
	}
	if variant.PriceCents != nil {
		line.UnitPriceCents = *variant.PriceCents
	}
	if variant.CostCents != nil {
		line.UnitCostCents = *variant.CostCents
	}
	if variant.TaxRatePercent != nil {
		line.TaxRatePercent = *variant.TaxRatePercent
	}
	return line
}

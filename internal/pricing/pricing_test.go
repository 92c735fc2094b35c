package pricing

import (
	"testing"

	"butikpos/backend/internal/domain"
)

func TestResolveLineInheritsProductDefaults(t *testing.T) {
	product := domain.Product{PriceCents: 45000, CostCents: 27000, TaxRatePercent: 11}

	line := ResolveLine(product, nil)
	if line.UnitPriceCents != 45000 || line.UnitCostCents != 27000 {
		t.Fatalf("expected product pricing, got price=%d cost=%d", line.UnitPriceCents, line.UnitCostCents)
	}
	if line.TaxRatePercent != 11 {
		t.Fatalf("expected inherited tax rate 11, got %v", line.TaxRatePercent)
	}
}

func TestResolveLineVariantOverrides(t *testing.T) {
	product := domain.Product{PriceCents: 45000, CostCents: 27000, TaxRatePercent: 11}
	price := int64(52000)
	cost := int64(31000)
	rate := 8.5
	variant := &domain.Variant{PriceCents: &price, CostCents: &cost, TaxRatePercent: &rate}

	line := ResolveLine(product, variant)
	if line.UnitPriceCents != 52000 {
		t.Fatalf("expected variant price 52000, got %d", line.UnitPriceCents)
	}
	if line.UnitCostCents != 31000 {
		t.Fatalf("expected variant cost 31000, got %d", line.UnitCostCents)
	}
	if line.TaxRatePercent != 8.5 {
		t.Fatalf("expected variant tax rate 8.5, got %v", line.TaxRatePercent)
	}
}

func TestResolveLineExplicitZeroTaxDoesNotInherit(t *testing.T) {
	product := domain.Product{PriceCents: 45000, TaxRatePercent: 11}
	zero := 0.0
	variant := &domain.Variant{TaxRatePercent: &zero}

	line := ResolveLine(product, variant)
	if line.TaxRatePercent != 0 {
		t.Fatalf("explicit zero tax rate collapsed to product rate %v", line.TaxRatePercent)
	}
}

func TestResolveLineNilTaxInherits(t *testing.T) {
	product := domain.Product{PriceCents: 45000, TaxRatePercent: 11}
	variant := &domain.Variant{}

	line := ResolveLine(product, variant)
	if line.TaxRatePercent != 11 {
		t.Fatalf("nil variant tax rate should inherit 11, got %v", line.TaxRatePercent)
	}
}

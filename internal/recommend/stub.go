package recommend

import (
	"context"
	"fmt"
	"sort"

	"butikpos/backend/internal/reorder"
)

// StubProvider is the offline fallback used in development and whenever no
// provider URL is configured. It tiers products purely on projected stockout
// versus supplier lead time, so the output is deterministic for a given
// snapshot.
type StubProvider struct{}

func (StubProvider) Recommend(_ context.Context, req Request) (*Response, error) {
	resp := &Response{
		Critical:              []Recommendation{},
		Recommended:           []Recommendation{},
		Optional:              []Recommendation{},
		BudgetBySupplierCents: map[string]int64{},
	}

	products := make([]reorder.EnrichedProduct, len(req.Products))
	copy(products, req.Products)
	sort.SliceStable(products, func(i, j int) bool {
		return products[i].DaysOfStockLeft < products[j].DaysOfStockLeft
	})

	remaining := req.ReinvestableCashCents
	for _, ep := range products {
		qty := suggestedQty(ep)
		if qty <= 0 {
			continue
		}
		cost := int64(qty) * ep.Product.CostCents
		rec := Recommendation{
			ItemRef:            ep.Product.ID,
			ProductName:        ep.Product.Name,
			SupplierID:         ep.Product.SupplierID,
			SuggestedQty:       qty,
			EstimatedCostCents: cost,
		}

		leadTime := ep.SupplierLeadTimeDays
		switch {
		case ep.DaysOfStockLeft < leadTime:
			rec.Reason = fmt.Sprintf("projected stockout in %.0f days, supplier needs %.0f", ep.DaysOfStockLeft, leadTime)
			resp.Critical = append(resp.Critical, rec)
		case ep.DaysOfStockLeft < 2*leadTime:
			rec.Reason = fmt.Sprintf("stock covers %.0f days, under twice the %.0f day lead time", ep.DaysOfStockLeft, leadTime)
			resp.Recommended = append(resp.Recommended, rec)
		case ep.DaysOfStockLeft < 30:
			rec.Reason = fmt.Sprintf("stock covers %.0f days", ep.DaysOfStockLeft)
			resp.Optional = append(resp.Optional, rec)
		default:
			continue
		}

		if ep.Product.SupplierID != "" && remaining > 0 {
			allocated := cost
			if allocated > remaining {
				allocated = remaining
			}
			resp.BudgetBySupplierCents[ep.Product.SupplierID] += allocated
			remaining -= allocated
		}
	}

	if len(resp.Critical) > 0 {
		resp.Insights = append(resp.Insights,
			fmt.Sprintf("%d product(s) will run out before their supplier can deliver", len(resp.Critical)))
	}
	if req.ReinvestableCashCents == 0 {
		resp.Insights = append(resp.Insights, "no reinvestable cash this period; restock from reserves or defer")
	}
	return resp, nil
}

// suggestedQty restocks to cover lead time plus a 30 day sales horizon,
// falling back to the product's configured reorder quantity when there is no
// velocity to project from.
func suggestedQty(ep reorder.EnrichedProduct) int {
	if ep.Velocity.DailyAverage <= 0 {
		if ep.AvailableStock <= ep.Product.LowStockThreshold {
			return ep.Product.ReorderQty
		}
		return 0
	}
	horizon := ep.SupplierLeadTimeDays + 30
	target := int(ep.Velocity.DailyAverage*horizon + 0.5)
	qty := target - ep.AvailableStock
	if qty <= 0 {
		return 0
	}
	if ep.Product.ReorderQty > 0 && qty < ep.Product.ReorderQty {
		qty = ep.Product.ReorderQty
	}
	return qty
}

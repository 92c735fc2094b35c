package analytics

import (
	"testing"
	"time"

	"butikpos/backend/internal/domain"
)

func windowStart() time.Time {
	return time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
}

func completedOrder(id string, createdAt time.Time, items []domain.OrderItem) domain.Order {
	total := int64(0)
	for _, item := range items {
		total += item.LineTotalCents
	}
	return domain.Order{
		ID:            id,
		Status:        domain.OrderStatusCompleted,
		PaymentStatus: domain.PaymentStatusPaid,
		TotalCents:    total,
		PaidCents:     total,
		CreatedAt:     createdAt,
		Items:         items,
	}
}

func TestSummarizeBreakdownsSumToTopLine(t *testing.T) {
	from := windowStart()
	to := from.AddDate(0, 1, 0)

	orders := []domain.Order{
		completedOrder("o1", from.Add(10*time.Hour), []domain.OrderItem{
			{ItemRef: "p1", Name: "Linen Shirt", Category: "apparel", Qty: 2, UnitPriceCents: 45000, UnitCostCents: 27000, LineTotalCents: 90000},
			{ItemRef: "p2", Name: "Silk Scarf", Category: "accessories", Qty: 1, UnitPriceCents: 30000, UnitCostCents: 12000, LineTotalCents: 30000},
		}),
		completedOrder("o2", from.Add(30*time.Hour), []domain.OrderItem{
			{ItemRef: "p1", Name: "Linen Shirt", Category: "apparel", Qty: 1, UnitPriceCents: 45000, UnitCostCents: 27000, LineTotalCents: 45000},
		}),
		{
			ID:            "o3",
			Status:        domain.OrderStatusLayaway,
			PaymentStatus: domain.PaymentStatusPartial,
			TotalCents:    100000,
			PaidCents:     33333,
			CreatedAt:     from.Add(50 * time.Hour),
			Items: []domain.OrderItem{
				{ItemRef: "p3", Name: "Leather Bag", Category: "accessories", Qty: 1, UnitPriceCents: 70000, UnitCostCents: 40000, LineTotalCents: 70000},
				{ItemRef: "p2", Name: "Silk Scarf", Category: "accessories", Qty: 1, UnitPriceCents: 30000, UnitCostCents: 12000, LineTotalCents: 30000},
			},
		},
	}

	summary := Summarize(orders, from, to)

	var productRevenue, productCost int64
	for _, entry := range summary.ByProduct {
		productRevenue += entry.RevenueCents
		productCost += entry.CostCents
	}
	if productRevenue != summary.RevenueCents {
		t.Fatalf("per-product revenue %d != top line %d", productRevenue, summary.RevenueCents)
	}
	if productCost != summary.CostCents {
		t.Fatalf("per-product cost %d != top line %d", productCost, summary.CostCents)
	}

	var categoryRevenue int64
	for _, entry := range summary.ByCategory {
		categoryRevenue += entry.RevenueCents
	}
	if categoryRevenue != summary.RevenueCents {
		t.Fatalf("per-category revenue %d != top line %d", categoryRevenue, summary.RevenueCents)
	}

	var hourRevenue int64
	for _, bucket := range summary.ByHour {
		hourRevenue += bucket.RevenueCents
	}
	if hourRevenue != summary.RevenueCents {
		t.Fatalf("per-hour revenue %d != top line %d", hourRevenue, summary.RevenueCents)
	}

	if summary.ProfitCents != summary.RevenueCents-summary.CostCents {
		t.Fatalf("profit mismatch")
	}
}

func TestLayawayRecognizesPaidFraction(t *testing.T) {
	order := domain.Order{
		Status:     domain.OrderStatusLayaway,
		TotalCents: 200000,
		PaidCents:  50000,
		Items: []domain.OrderItem{
			{ItemRef: "p1", Qty: 2, UnitCostCents: 60000, LineTotalCents: 200000},
		},
	}

	if got := RecognizedRevenue(order); got != 50000 {
		t.Fatalf("expected recognized revenue 50000, got %d", got)
	}
	// orderCost 120000 * (50000/200000) = 30000
	if got := RecognizedCost(order); got != 30000 {
		t.Fatalf("expected recognized cost 30000, got %d", got)
	}
}

func TestLayawayZeroTotalGuard(t *testing.T) {
	order := domain.Order{Status: domain.OrderStatusLayaway, TotalCents: 0, PaidCents: 0}
	if got := RecognizedCost(order); got != 0 {
		t.Fatalf("expected zero recognized cost on zero-total layaway, got %d", got)
	}
	if got := RecognizedRevenue(order); got != 0 {
		t.Fatalf("expected zero recognized revenue, got %d", got)
	}
}

func TestCompletedLayawayRecognizesFullTotal(t *testing.T) {
	order := domain.Order{
		Status:     domain.OrderStatusCompleted,
		TotalCents: 200000,
		PaidCents:  200000,
		Items: []domain.OrderItem{
			{ItemRef: "p1", Qty: 2, UnitCostCents: 60000, LineTotalCents: 200000},
		},
	}
	if got := RecognizedRevenue(order); got != 200000 {
		t.Fatalf("expected full revenue after completion, got %d", got)
	}
	if got := RecognizedCost(order); got != 120000 {
		t.Fatalf("expected full cost after completion, got %d", got)
	}
}

func TestPercentChangeZeroBaseline(t *testing.T) {
	if got := PercentChange(12345, 0); got != 0 {
		t.Fatalf("expected 0%% change on zero baseline, got %v", got)
	}
	if got := PercentChange(150, 100); got != 50 {
		t.Fatalf("expected 50%% change, got %v", got)
	}
}

func TestSummarizeSkipsCancelledAndRefunded(t *testing.T) {
	from := windowStart()
	to := from.AddDate(0, 1, 0)
	orders := []domain.Order{
		{ID: "c1", Status: domain.OrderStatusCancelled, TotalCents: 99999, CreatedAt: from.Add(time.Hour)},
		{ID: "r1", Status: domain.OrderStatusRefunded, TotalCents: 88888, PaidCents: 88888, CreatedAt: from.Add(time.Hour)},
	}

	summary := Summarize(orders, from, to)
	if summary.Orders != 0 || summary.RevenueCents != 0 {
		t.Fatalf("expected empty summary, got orders=%d revenue=%d", summary.Orders, summary.RevenueCents)
	}
}

func TestWithComparison(t *testing.T) {
	current := Summary{RevenueCents: 200, ProfitCents: 100, Orders: 4}
	previous := Summary{RevenueCents: 100, ProfitCents: 100, Orders: 0}

	merged := WithComparison(current, previous)
	if merged.RevenueChangePct != 100 {
		t.Fatalf("expected revenue change 100%%, got %v", merged.RevenueChangePct)
	}
	if merged.ProfitChangePct != 0 {
		t.Fatalf("expected profit change 0%%, got %v", merged.ProfitChangePct)
	}
	if merged.OrdersChangePct != 0 {
		t.Fatalf("expected orders change 0%% on zero baseline, got %v", merged.OrdersChangePct)
	}
}

package recommend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"butikpos/backend/internal/domain"
	"butikpos/backend/internal/reorder"
)

func enriched(id string, supplierID string, daysLeft float64, leadTime float64, daily float64, stock int) reorder.EnrichedProduct {
	return reorder.EnrichedProduct{
		Product: domain.Product{
			ID:         id,
			Name:       "Product " + id,
			SupplierID: supplierID,
			CostCents:  10000,
			ReorderQty: 5,
			Active:     true,
		},
		Velocity:             reorder.Velocity{ItemRef: id, DailyAverage: daily},
		AvailableStock:       stock,
		DaysOfStockLeft:      daysLeft,
		SupplierLeadTimeDays: leadTime,
	}
}

func TestStubProviderTiers(t *testing.T) {
	req := Request{
		LocationID: "main",
		Products: []reorder.EnrichedProduct{
			enriched("p-critical", "s1", 3, 7, 2, 6),
			enriched("p-recommended", "s1", 10, 7, 2, 20),
			enriched("p-optional", "s2", 25, 7, 1, 25),
			enriched("p-healthy", "s2", 120, 7, 0.5, 60),
		},
		ReinvestableCashCents: 10_000_000,
	}

	resp, err := StubProvider{}.Recommend(context.Background(), req)
	if err != nil {
		t.Fatalf("stub provider: %v", err)
	}

	if len(resp.Critical) != 1 || resp.Critical[0].ItemRef != "p-critical" {
		t.Fatalf("critical tier wrong: %+v", resp.Critical)
	}
	if len(resp.Recommended) != 1 || resp.Recommended[0].ItemRef != "p-recommended" {
		t.Fatalf("recommended tier wrong: %+v", resp.Recommended)
	}
	if len(resp.Optional) != 1 || resp.Optional[0].ItemRef != "p-optional" {
		t.Fatalf("optional tier wrong: %+v", resp.Optional)
	}
	if len(resp.Insights) == 0 {
		t.Fatalf("expected a critical stockout insight")
	}
}

func TestStubProviderBudgetCappedByCash(t *testing.T) {
	req := Request{
		Products: []reorder.EnrichedProduct{
			enriched("p1", "s1", 2, 7, 3, 6),
		},
		ReinvestableCashCents: 50000,
	}

	resp, err := StubProvider{}.Recommend(context.Background(), req)
	if err != nil {
		t.Fatalf("stub provider: %v", err)
	}

	var total int64
	for _, cents := range resp.BudgetBySupplierCents {
		total += cents
	}
	if total > req.ReinvestableCashCents {
		t.Fatalf("budget %d exceeds reinvestable cash %d", total, req.ReinvestableCashCents)
	}
}

func TestStubProviderNoVelocityUsesReorderQty(t *testing.T) {
	ep := enriched("p1", "s1", reorder.NoStockoutSentinel, 7, 0, 2)
	ep.Product.LowStockThreshold = 5

	if qty := suggestedQty(ep); qty != ep.Product.ReorderQty {
		t.Fatalf("expected reorder qty %d below threshold, got %d", ep.Product.ReorderQty, qty)
	}

	ep.AvailableStock = 50
	if qty := suggestedQty(ep); qty != 0 {
		t.Fatalf("healthy stock with no velocity should suggest nothing, got %d", qty)
	}
}

func TestHTTPProviderRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/restock-recommendations" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(Response{
			Critical: []Recommendation{{ItemRef: "p1", SuggestedQty: 10}},
			Insights: []string{"restock p1"},
		})
	}))
	defer server.Close()

	provider := NewHTTPProvider(server.URL, 2*time.Second)
	resp, err := provider.Recommend(context.Background(), Request{LocationID: "main"})
	if err != nil {
		t.Fatalf("http provider: %v", err)
	}
	if len(resp.Critical) != 1 || resp.Critical[0].ItemRef != "p1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestHTTPProviderErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	provider := NewHTTPProvider(server.URL, 2*time.Second)
	if _, err := provider.Recommend(context.Background(), Request{}); err == nil {
		t.Fatalf("expected error on 503")
	}
}

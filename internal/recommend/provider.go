package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"butikpos/backend/internal/domain"
	"butikpos/backend/internal/reorder"
)

// Request is the full snapshot handed to a recommendation provider: enriched
// products, supplier roster, and the cash position to budget against.
type Request struct {
	LocationID            string                    `json:"location_id"`
	Products              []reorder.EnrichedProduct `json:"products"`
	Suppliers             []domain.Supplier         `json:"suppliers"`
	TrailingProfitCents   int64                     `json:"trailing_profit_cents"`
	ReinvestableCashCents int64                     `json:"reinvestable_cash_cents"`
}

type Recommendation struct {
	ItemRef            string `json:"item_ref"`
	ProductName        string `json:"product_name"`
	SupplierID         string `json:"supplier_id,omitempty"`
	SuggestedQty       int    `json:"suggested_qty"`
	EstimatedCostCents int64  `json:"estimated_cost_cents"`
	Reason             string `json:"reason"`
}

type Response struct {
	Critical              []Recommendation `json:"critical"`
	Recommended           []Recommendation `json:"recommended"`
	Optional              []Recommendation `json:"optional"`
	BudgetBySupplierCents map[string]int64 `json:"budget_by_supplier_cents"`
	Insights              []string         `json:"insights,omitempty"`
}

// Provider produces restock recommendations from a snapshot. Implementations
// may call out over the network; callers must treat any error as "no
// recommendations today", never as a failed dashboard.
type Provider interface {
	Recommend(ctx context.Context, req Request) (*Response, error)
}

// HTTPProvider posts the snapshot to an external recommendation service as
// JSON and decodes the tiers from its response.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProvider) Recommend(ctx context.Context, req Request) (*Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal recommendation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/restock-recommendations", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build recommendation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call recommendation provider: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, fmt.Errorf("recommendation provider returned %d: %s", httpResp.StatusCode, string(body))
	}

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode recommendation response: %w", err)
	}
	return &resp, nil
}

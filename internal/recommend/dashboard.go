package recommend

import (
	"time"

	"butikpos/backend/internal/reorder"
)

// Dashboard is the full restock view served to the UI. Recommendations is nil
// and ProviderDegraded true when the provider call failed; velocity and cash
// figures are always present.
type Dashboard struct {
	LocationID            string                    `json:"location_id"`
	GeneratedAt           time.Time                 `json:"generated_at"`
	TrailingProfitCents   int64                     `json:"trailing_profit_cents"`
	ReinvestableCashCents int64                     `json:"reinvestable_cash_cents"`
	Products              []reorder.EnrichedProduct `json:"products"`
	Recommendations       *Response                 `json:"recommendations,omitempty"`
	ProviderDegraded      bool                      `json:"provider_degraded"`
}

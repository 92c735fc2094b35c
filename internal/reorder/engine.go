package reorder

import (
	"time"

	"butikpos/backend/internal/domain"
)

const (
	// NoStockoutSentinel is reported instead of a division by zero when a
	// product has no sales velocity.
	NoStockoutSentinel = 999.0

	// DefaultLeadTimeDays is assumed for suppliers with no delivery history.
	DefaultLeadTimeDays = 7.0

	// DefaultReinvestmentRate is the fraction of trailing profit considered
	// available for restocking. Carried over from operator practice; keep it
	// a named policy knob, not an inline constant.
	DefaultReinvestmentRate = 0.7

	trendBand = 0.10
)

const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

type Velocity struct {
	ItemRef         string  `json:"item_ref"`
	Last30DaysUnits int     `json:"last_30_days_units"`
	Last60DaysUnits int     `json:"last_60_days_units"`
	DailyAverage    float64 `json:"daily_average"`
	Trend           string  `json:"trend"`
}

// EnrichedProduct bundles everything the recommendation provider needs to
// rank one product.
type EnrichedProduct struct {
	Product              domain.Product `json:"product"`
	Velocity             Velocity       `json:"velocity"`
	AvailableStock       int            `json:"available_stock"`
	DaysOfStockLeft      float64        `json:"days_of_stock_left"`
	SupplierLeadTimeDays float64        `json:"supplier_lead_time_days"`
}

// ComputeVelocities derives per-item sales velocity from the order ledger.
// The last-30-day window drives the daily average; the 30 days before it
// drive the trend comparison.
func ComputeVelocities(orders []domain.Order, now time.Time) map[string]Velocity {
	cutoff30 := now.AddDate(0, 0, -30)
	cutoff60 := now.AddDate(0, 0, -60)

	last30 := map[string]int{}
	prior30 := map[string]int{}

	for _, order := range orders {
		if order.Status != domain.OrderStatusCompleted && order.Status != domain.OrderStatusLayaway {
			continue
		}
		if order.CreatedAt.Before(cutoff60) || order.CreatedAt.After(now) {
			continue
		}
		for _, item := range order.Items {
			if order.CreatedAt.Before(cutoff30) {
				prior30[item.ItemRef] += item.Qty
			} else {
				last30[item.ItemRef] += item.Qty
			}
		}
	}

	velocities := make(map[string]Velocity, len(last30)+len(prior30))
	for ref := range last30 {
		velocities[ref] = buildVelocity(ref, last30[ref], prior30[ref])
	}
	for ref := range prior30 {
		if _, seen := velocities[ref]; !seen {
			velocities[ref] = buildVelocity(ref, 0, prior30[ref])
		}
	}
	return velocities
}

func buildVelocity(ref string, recent int, prior int) Velocity {
	daily := float64(recent) / 30.0
	priorDaily := float64(prior) / 30.0
	return Velocity{
		ItemRef:         ref,
		Last30DaysUnits: recent,
		Last60DaysUnits: recent + prior,
		DailyAverage:    daily,
		Trend:           TrendOf(daily, priorDaily),
	}
}

// TrendOf classifies the current daily average against the prior one with a
// ±10% stable band.
func TrendOf(current float64, previous float64) string {
	if previous <= 0 {
		if current > 0 {
			return TrendUp
		}
		return TrendStable
	}
	ratio := current / previous
	switch {
	case ratio > 1+trendBand:
		return TrendUp
	case ratio < 1-trendBand:
		return TrendDown
	default:
		return TrendStable
	}
}

// DaysOfStockLeft projects how long available stock lasts at the current
// velocity. Zero velocity yields the sentinel, never infinity.
func DaysOfStockLeft(available int, dailyAverage float64) float64 {
	if dailyAverage <= 0 {
		return NoStockoutSentinel
	}
	if available <= 0 {
		return 0
	}
	days := float64(available) / dailyAverage
	if days > NoStockoutSentinel {
		return NoStockoutSentinel
	}
	return days
}

// SupplierLeadTimes averages received_at − sent_at over completed purchase
// orders, per supplier. Suppliers without usable history are absent from the
// result; use LeadTimeOrDefault when reading.
func SupplierLeadTimes(purchaseOrders []domain.PurchaseOrder) map[string]float64 {
	totals := map[string]float64{}
	counts := map[string]int{}
	for _, po := range purchaseOrders {
		if po.Status != domain.PurchaseOrderReceived || po.SentAt == nil || po.ReceivedAt == nil {
			continue
		}
		days := po.ReceivedAt.Sub(*po.SentAt).Hours() / 24
		if days < 0 {
			continue
		}
		totals[po.SupplierID] += days
		counts[po.SupplierID]++
	}

	leadTimes := make(map[string]float64, len(totals))
	for supplierID, total := range totals {
		leadTimes[supplierID] = total / float64(counts[supplierID])
	}
	return leadTimes
}

func LeadTimeOrDefault(leadTimes map[string]float64, supplierID string) float64 {
	if days, ok := leadTimes[supplierID]; ok {
		return days
	}
	return DefaultLeadTimeDays
}

// ReinvestableCashCents is the restocking budget: a fixed fraction of
// trailing recognized profit, floored at zero.
func ReinvestableCashCents(trailingProfitCents int64, rate float64) int64 {
	if trailingProfitCents <= 0 {
		return 0
	}
	if rate <= 0 {
		rate = DefaultReinvestmentRate
	}
	return int64(float64(trailingProfitCents) * rate)
}

// Enrich joins velocity, stock, and supplier lead time for every active
// product.
func Enrich(
	products []domain.Product,
	velocities map[string]Velocity,
	availableStock map[string]int,
	leadTimes map[string]float64,
) []EnrichedProduct {
	enriched := make([]EnrichedProduct, 0, len(products))
	for _, product := range products {
		if !product.Active {
			continue
		}
		velocity, ok := velocities[product.ID]
		if !ok {
			velocity = Velocity{ItemRef: product.ID, Trend: TrendStable}
		}
		available := availableStock[product.ID]
		enriched = append(enriched, EnrichedProduct{
			Product:              product,
			Velocity:             velocity,
			AvailableStock:       available,
			DaysOfStockLeft:      DaysOfStockLeft(available, velocity.DailyAverage),
			SupplierLeadTimeDays: LeadTimeOrDefault(leadTimes, product.SupplierID),
		})
	}
	return enriched
}

package analytics

import (
	"slices"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"butikpos/backend/internal/domain"
)

type Breakdown struct {
	Key          string `json:"key"`
	Name         string `json:"name,omitempty"`
	RevenueCents int64  `json:"revenue_cents"`
	CostCents    int64  `json:"cost_cents"`
	ProfitCents  int64  `json:"profit_cents"`
	Units        int64  `json:"units"`
}

type HourBucket struct {
	Hour         int   `json:"hour"`
	RevenueCents int64 `json:"revenue_cents"`
	Orders       int64 `json:"orders"`
}

type DayBucket struct {
	Date         string `json:"date"`
	RevenueCents int64  `json:"revenue_cents"`
	ProfitCents  int64  `json:"profit_cents"`
	Orders       int64  `json:"orders"`
}

type Summary struct {
	From               time.Time   `json:"from"`
	To                 time.Time   `json:"to"`
	RevenueCents       int64       `json:"revenue_cents"`
	CostCents          int64       `json:"cost_cents"`
	ProfitCents        int64       `json:"profit_cents"`
	Orders             int64       `json:"orders"`
	AvgOrderValueCents int64       `json:"avg_order_value_cents"`
	RevenueChangePct   float64     `json:"revenue_change_pct"`
	ProfitChangePct    float64     `json:"profit_change_pct"`
	OrdersChangePct    float64     `json:"orders_change_pct"`
	ByProduct          []Breakdown `json:"by_product"`
	ByCategory         []Breakdown `json:"by_category"`
	ByHour             []HourBucket `json:"by_hour"`
	ByDay              []DayBucket  `json:"by_day"`
}

// recognitionRatio is the fraction of an order's value attributed to reports.
// Completed orders recognize in full. Layaway orders recognize only the paid
// fraction. A zero-total order recognizes nothing.
func recognitionRatio(order domain.Order) decimal.Decimal {
	if order.Status == domain.OrderStatusLayaway {
		if order.TotalCents <= 0 {
			return decimal.Zero
		}
		return decimal.NewFromInt(order.PaidCents).Div(decimal.NewFromInt(order.TotalCents))
	}
	return decimal.NewFromInt(1)
}

func countable(order domain.Order) bool {
	return order.Status == domain.OrderStatusCompleted || order.Status == domain.OrderStatusLayaway
}

// RecognizedRevenue returns the revenue an order contributes to a report.
func RecognizedRevenue(order domain.Order) int64 {
	if !countable(order) {
		return 0
	}
	if order.Status == domain.OrderStatusLayaway {
		return order.PaidCents
	}
	return order.TotalCents
}

// RecognizedCost scales the order's snapshot cost by the recognition ratio.
func RecognizedCost(order domain.Order) int64 {
	if !countable(order) {
		return 0
	}
	cost := int64(0)
	for _, item := range order.Items {
		cost += item.UnitCostCents * int64(item.Qty)
	}
	if order.Status != domain.OrderStatusLayaway {
		return cost
	}
	return decimal.NewFromInt(cost).Mul(recognitionRatio(order)).Round(0).IntPart()
}

// PercentChange returns the relative change in percent, and 0 when the
// baseline is 0 so an empty comparison window never yields infinity.
func PercentChange(current int64, previous int64) float64 {
	if previous == 0 {
		return 0
	}
	change := decimal.NewFromInt(current - previous).
		Div(decimal.NewFromInt(previous)).
		Mul(decimal.NewFromInt(100))
	result, _ := change.Round(2).Float64()
	return result
}

// allocate splits total across weights using largest-remainder rounding so
// the parts always sum back to total exactly. Zero weights fall back to an
// even split.
func allocate(total int64, weights []int64) []int64 {
	if len(weights) == 0 {
		return nil
	}
	sum := int64(0)
	for _, w := range weights {
		if w > 0 {
			sum += w
		}
	}
	effective := make([]int64, len(weights))
	if sum == 0 {
		for i := range effective {
			effective[i] = 1
		}
		sum = int64(len(weights))
	} else {
		for i, w := range weights {
			if w > 0 {
				effective[i] = w
			}
		}
	}

	parts := make([]int64, len(weights))
	fractions := make([]decimal.Decimal, len(weights))
	assigned := int64(0)
	totalDec := decimal.NewFromInt(total)
	sumDec := decimal.NewFromInt(sum)
	for i, w := range effective {
		exact := totalDec.Mul(decimal.NewFromInt(w)).Div(sumDec)
		floor := exact.Floor()
		parts[i] = floor.IntPart()
		fractions[i] = exact.Sub(floor)
		assigned += parts[i]
	}

	remainder := total - assigned
	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return fractions[order[a]].GreaterThan(fractions[order[b]])
	})
	for i := int64(0); i < remainder; i++ {
		parts[order[i%int64(len(order))]]++
	}
	return parts
}

// Summarize computes the top line and all breakdowns for orders inside
// [from, to). Breakdowns are allocated from the same recognized per-order
// figures as the top line, so they sum to it exactly.
func Summarize(orders []domain.Order, from time.Time, to time.Time) Summary {
	summary := Summary{
		From:      from,
		To:        to,
		ByProduct: make([]Breakdown, 0, 16),
		ByHour:    make([]HourBucket, 0, 24),
	}

	byProduct := map[string]*Breakdown{}
	byCategory := map[string]*Breakdown{}
	byHour := map[int]*HourBucket{}
	byDay := map[string]*DayBucket{}

	for _, order := range orders {
		if !countable(order) {
			continue
		}
		if order.CreatedAt.Before(from) || !order.CreatedAt.Before(to) {
			continue
		}

		revenue := RecognizedRevenue(order)
		cost := RecognizedCost(order)
		summary.RevenueCents += revenue
		summary.CostCents += cost
		summary.Orders++

		revenueWeights := make([]int64, len(order.Items))
		costWeights := make([]int64, len(order.Items))
		for i, item := range order.Items {
			revenueWeights[i] = item.LineTotalCents
			costWeights[i] = item.UnitCostCents * int64(item.Qty)
		}
		lineRevenue := allocate(revenue, revenueWeights)
		lineCost := allocate(cost, costWeights)

		for i, item := range order.Items {
			product := byProduct[item.ItemRef]
			if product == nil {
				product = &Breakdown{Key: item.ItemRef, Name: item.Name}
				byProduct[item.ItemRef] = product
			}
			product.RevenueCents += lineRevenue[i]
			product.CostCents += lineCost[i]
			product.Units += int64(item.Qty)

			category := byCategory[item.Category]
			if category == nil {
				category = &Breakdown{Key: item.Category}
				byCategory[item.Category] = category
			}
			category.RevenueCents += lineRevenue[i]
			category.CostCents += lineCost[i]
			category.Units += int64(item.Qty)
		}

		hour := order.CreatedAt.UTC().Hour()
		bucket := byHour[hour]
		if bucket == nil {
			bucket = &HourBucket{Hour: hour}
			byHour[hour] = bucket
		}
		bucket.RevenueCents += revenue
		bucket.Orders++

		date := order.CreatedAt.UTC().Format("2006-01-02")
		day := byDay[date]
		if day == nil {
			day = &DayBucket{Date: date}
			byDay[date] = day
		}
		day.RevenueCents += revenue
		day.ProfitCents += revenue - cost
		day.Orders++
	}

	summary.ProfitCents = summary.RevenueCents - summary.CostCents
	if summary.Orders > 0 {
		summary.AvgOrderValueCents = summary.RevenueCents / summary.Orders
	}

	for _, entry := range byProduct {
		entry.ProfitCents = entry.RevenueCents - entry.CostCents
		summary.ByProduct = append(summary.ByProduct, *entry)
	}
	slices.SortFunc(summary.ByProduct, func(a, b Breakdown) int {
		if a.RevenueCents == b.RevenueCents {
			return compareString(a.Key, b.Key)
		}
		if a.RevenueCents > b.RevenueCents {
			return -1
		}
		return 1
	})

	summary.ByCategory = make([]Breakdown, 0, len(byCategory))
	for _, entry := range byCategory {
		entry.ProfitCents = entry.RevenueCents - entry.CostCents
		summary.ByCategory = append(summary.ByCategory, *entry)
	}
	slices.SortFunc(summary.ByCategory, func(a, b Breakdown) int {
		return compareString(a.Key, b.Key)
	})

	for _, bucket := range byHour {
		summary.ByHour = append(summary.ByHour, *bucket)
	}
	slices.SortFunc(summary.ByHour, func(a, b HourBucket) int { return a.Hour - b.Hour })

	summary.ByDay = make([]DayBucket, 0, len(byDay))
	for _, day := range byDay {
		summary.ByDay = append(summary.ByDay, *day)
	}
	slices.SortFunc(summary.ByDay, func(a, b DayBucket) int {
		return compareString(a.Date, b.Date)
	})

	return summary
}

// WithComparison fills the change percentages on current from a previous
// window's summary.
func WithComparison(current Summary, previous Summary) Summary {
	current.RevenueChangePct = PercentChange(current.RevenueCents, previous.RevenueCents)
	current.ProfitChangePct = PercentChange(current.ProfitCents, previous.ProfitCents)
	current.OrdersChangePct = PercentChange(current.Orders, previous.Orders)
	return current
}

func compareString(a string, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

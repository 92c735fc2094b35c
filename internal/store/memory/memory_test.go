package memory

import (
	"context"
	"testing"
	"time"

	"butikpos/backend/internal/domain"
)

func TestOrderNumbersRestartPerDay(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	day1 := time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	makeOrder := func(token string, at time.Time) domain.Order {
		return domain.Order{
			OrderToken:    token,
			LocationID:    "main",
			Status:        domain.OrderStatusCompleted,
			PaymentStatus: domain.PaymentStatusPaid,
			CreatedAt:     at,
			Items: []domain.OrderItem{{
				ItemRef:        "prod-belt",
				ProductID:      "prod-belt",
				Qty:            1,
				UnitPriceCents: 28000,
				UnitCostCents:  14000,
				LineTotalCents: 28000,
			}},
			SubtotalCents: 28000,
			TotalCents:    28000,
			PaidCents:     28000,
			Payments: []domain.Payment{{
				Method:      "cash",
				AmountCents: 28000,
				Status:      domain.PaymentStatusPaid,
			}},
		}
	}

	first, err := s.CreateOrder(ctx, makeOrder("tok-seq-1", day1))
	if err != nil {
		t.Fatalf("create first order: %v", err)
	}
	second, err := s.CreateOrder(ctx, makeOrder("tok-seq-2", day1))
	if err != nil {
		t.Fatalf("create second order: %v", err)
	}
	nextDay, err := s.CreateOrder(ctx, makeOrder("tok-seq-3", day2))
	if err != nil {
		t.Fatalf("create next-day order: %v", err)
	}

	if first.OrderNumber != "ORD-20260309-0001" {
		t.Fatalf("first order number = %q, want ORD-20260309-0001", first.OrderNumber)
	}
	if second.OrderNumber != "ORD-20260309-0002" {
		t.Fatalf("second order number = %q, want ORD-20260309-0002", second.OrderNumber)
	}
	if nextDay.OrderNumber != "ORD-20260310-0001" {
		t.Fatalf("next-day counter should restart, got %q", nextDay.OrderNumber)
	}
}

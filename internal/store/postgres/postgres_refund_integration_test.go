package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"butikpos/backend/internal/domain"
)

func TestRefundOrderRestocksInventory(t *testing.T) {
	databaseURL := os.Getenv("BUTIKPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set BUTIKPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("prod-refund-it-%d", stamp)
	sku := fmt.Sprintf("SKU-REFUND-IT-%d", stamp)
	locationID := fmt.Sprintf("loc-refund-it-%d", stamp)
	token := fmt.Sprintf("tok-refund-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM stock_movements WHERE item_ref = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM order_items WHERE product_id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM payments WHERE order_id IN (SELECT id FROM orders WHERE order_token = $1)`, token)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM orders WHERE order_token = $1`, token)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM inventory_records WHERE item_ref = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM locations WHERE id = $1`, locationID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO locations (id, name) VALUES ($1, 'Refund IT Boutique')
	`, locationID); err != nil {
		t.Fatalf("insert location: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, sku, name, category, cost_cents, price_cents, tax_rate_percent, active)
		VALUES ($1, $2, 'Refund IT Shirt', 'apparel', 20000, 40000, 11, true)
	`, productID, sku); err != nil {
		t.Fatalf("insert product: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_records (item_ref, location_id, quantity) VALUES ($1, $2, 10)
	`, productID, locationID); err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	order := domain.Order{
		OrderToken:    token,
		LocationID:    locationID,
		Status:        domain.OrderStatusCompleted,
		PaymentStatus: domain.PaymentStatusPaid,
		SubtotalCents: 80000,
		TaxCents:      8800,
		TotalCents:    88800,
		PaidCents:     88800,
		Items: []domain.OrderItem{{
			ItemRef:        productID,
			ProductID:      productID,
			Name:           "Refund IT Shirt",
			SKU:            sku,
			Category:       "apparel",
			Qty:            2,
			UnitPriceCents: 40000,
			UnitCostCents:  20000,
			TaxRatePercent: 11,
			TaxCents:       8800,
			LineTotalCents: 88800,
		}},
		Payments: []domain.Payment{{
			Method:      "cash",
			AmountCents: 88800,
			Status:      domain.PaymentStatusPaid,
		}},
	}

	created, err := s.CreateOrder(ctx, order)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	inv, err := s.GetInventory(ctx, productID, locationID)
	if err != nil {
		t.Fatalf("get inventory after sale: %v", err)
	}
	if inv.Quantity != 8 {
		t.Fatalf("quantity after sale = %d, want 8", inv.Quantity)
	}

	refunded, err := s.RefundOrder(ctx, created.ID, "integration test refund", time.Now().UTC())
	if err != nil {
		t.Fatalf("refund order: %v", err)
	}
	if refunded.Status != domain.OrderStatusRefunded {
		t.Fatalf("status after refund = %q", refunded.Status)
	}

	inv, err = s.GetInventory(ctx, productID, locationID)
	if err != nil {
		t.Fatalf("get inventory after refund: %v", err)
	}
	if inv.Quantity != 10 {
		t.Fatalf("quantity after refund = %d, want 10", inv.Quantity)
	}
}

func TestCreateOrderOversellUsesAvailableStock(t *testing.T) {
	databaseURL := os.Getenv("BUTIKPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set BUTIKPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("prod-oversell-it-%d", stamp)
	sku := fmt.Sprintf("SKU-OVERSELL-IT-%d", stamp)
	locationID := fmt.Sprintf("loc-oversell-it-%d", stamp)
	token := fmt.Sprintf("tok-oversell-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM stock_movements WHERE item_ref = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM order_items WHERE product_id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM payments WHERE order_id IN (SELECT id FROM orders WHERE order_token = $1)`, token)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM orders WHERE order_token = $1`, token)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM inventory_records WHERE item_ref = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM locations WHERE id = $1`, locationID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO locations (id, name) VALUES ($1, 'Oversell IT Boutique')
	`, locationID); err != nil {
		t.Fatalf("insert location: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, sku, name, category, cost_cents, price_cents, tax_rate_percent, allow_backorder, active)
		VALUES ($1, $2, 'Oversell IT Scarf', 'accessories', 10000, 25000, 0, false, true)
	`, productID, sku); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	// 5 on hand but 4 reserved: only 1 is actually available, so selling 3
	// must flag the record even though raw quantity covers the line.
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_records (item_ref, location_id, quantity, reserved_qty) VALUES ($1, $2, 5, 4)
	`, productID, locationID); err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	order := domain.Order{
		OrderToken:    token,
		LocationID:    locationID,
		Status:        domain.OrderStatusCompleted,
		PaymentStatus: domain.PaymentStatusPaid,
		SubtotalCents: 75000,
		TotalCents:    75000,
		PaidCents:     75000,
		Items: []domain.OrderItem{{
			ItemRef:        productID,
			ProductID:      productID,
			Name:           "Oversell IT Scarf",
			SKU:            sku,
			Category:       "accessories",
			Qty:            3,
			UnitPriceCents: 25000,
			UnitCostCents:  10000,
			LineTotalCents: 75000,
		}},
		Payments: []domain.Payment{{
			Method:      "cash",
			AmountCents: 75000,
			Status:      domain.PaymentStatusPaid,
		}},
	}

	if _, err := s.CreateOrder(ctx, order); err != nil {
		t.Fatalf("create order: %v", err)
	}

	inv, err := s.GetInventory(ctx, productID, locationID)
	if err != nil {
		t.Fatalf("get inventory: %v", err)
	}
	if inv.Quantity != 2 {
		t.Fatalf("quantity after sale = %d, want 2", inv.Quantity)
	}
	if !inv.Flagged {
		t.Fatal("selling past available stock should flag the record")
	}

	var notes string
	if err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(notes, '') FROM stock_movements WHERE item_ref = $1 AND type = $2
	`, productID, domain.MovementSale).Scan(&notes); err != nil {
		t.Fatalf("query movement: %v", err)
	}
	if notes != "oversell, clamped" {
		t.Fatalf("movement notes = %q, want oversell marker", notes)
	}
}

func TestAddOrderPaymentDefaultsPaidStatus(t *testing.T) {
	databaseURL := os.Getenv("BUTIKPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set BUTIKPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("prod-layaway-it-%d", stamp)
	sku := fmt.Sprintf("SKU-LAYAWAY-IT-%d", stamp)
	locationID := fmt.Sprintf("loc-layaway-it-%d", stamp)
	token := fmt.Sprintf("tok-layaway-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM stock_movements WHERE item_ref = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM order_items WHERE product_id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM payments WHERE order_id IN (SELECT id FROM orders WHERE order_token = $1)`, token)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM orders WHERE order_token = $1`, token)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM inventory_records WHERE item_ref = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM locations WHERE id = $1`, locationID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO locations (id, name) VALUES ($1, 'Layaway IT Boutique')
	`, locationID); err != nil {
		t.Fatalf("insert location: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, sku, name, category, cost_cents, price_cents, tax_rate_percent, active)
		VALUES ($1, $2, 'Layaway IT Coat', 'apparel', 50000, 100000, 0, true)
	`, productID, sku); err != nil {
		t.Fatalf("insert product: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_records (item_ref, location_id, quantity) VALUES ($1, $2, 5)
	`, productID, locationID); err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	order := domain.Order{
		OrderToken:    token,
		LocationID:    locationID,
		Status:        domain.OrderStatusLayaway,
		PaymentStatus: domain.PaymentStatusPartial,
		SubtotalCents: 100000,
		TotalCents:    100000,
		PaidCents:     30000,
		LayawayName:   "Layaway IT Customer",
		Items: []domain.OrderItem{{
			ItemRef:        productID,
			ProductID:      productID,
			Name:           "Layaway IT Coat",
			SKU:            sku,
			Category:       "apparel",
			Qty:            1,
			UnitPriceCents: 100000,
			UnitCostCents:  50000,
			LineTotalCents: 100000,
		}},
		Payments: []domain.Payment{{
			Method:      "cash",
			AmountCents: 30000,
			Status:      domain.PaymentStatusPaid,
		}},
	}

	created, err := s.CreateOrder(ctx, order)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	settled, err := s.AddOrderPayment(ctx, created.ID, domain.Payment{
		Method:      "mpesa",
		AmountCents: 70000,
	})
	if err != nil {
		t.Fatalf("add payment: %v", err)
	}
	if settled.Status != domain.OrderStatusCompleted {
		t.Fatalf("status after settlement = %q", settled.Status)
	}

	last := settled.Payments[len(settled.Payments)-1]
	if last.Status != domain.PaymentStatusPaid {
		t.Fatalf("installment status = %q, want %q", last.Status, domain.PaymentStatusPaid)
	}
}

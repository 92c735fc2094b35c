package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"butikpos/backend/internal/cache"
	"butikpos/backend/internal/domain"
	"butikpos/backend/internal/recommend"
	"butikpos/backend/internal/search"
	"butikpos/backend/internal/store"
	"butikpos/backend/internal/store/memory"
)

func newTestService() *Service {
	repo := memory.NewSeeded()
	return New(repo, recommend.StubProvider{}, cache.NoopDashboardCache{}, time.Minute, search.NoopMirror{}, "main", 0.7)
}

func seedProduct(t *testing.T, svc *Service, priceCents int64, costCents int64, taxRate float64, stock int) domain.Product {
	t.Helper()
	product, err := svc.CreateProduct(context.Background(), domain.ProductCreateRequest{
		SKU:            fmt.Sprintf("TEST-%d-%d", priceCents, stock),
		Name:           "Test Product",
		Category:       "apparel",
		CostCents:      costCents,
		PriceCents:     priceCents,
		TaxRatePercent: taxRate,
		InitialStock:   stock,
		LocationID:     "main",
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func TestCheckoutCashChangeDue(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	product := seedProduct(t, svc, 1730, 900, 0, 10)

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		OrderToken: "tok-change",
		LocationID: "main",
		Items:      []domain.CheckoutItem{{ProductID: product.ID, Qty: 1}},
		Payments:   []domain.PaymentInput{{Method: "cash", AmountCents: 2000}},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if resp.TotalCents != 1730 {
		t.Fatalf("expected total 1730, got %d", resp.TotalCents)
	}
	if resp.ChangeCents != 270 {
		t.Fatalf("expected change 270, got %d", resp.ChangeCents)
	}
	if resp.PaidCents != 1730 {
		t.Fatalf("cash overpay should record paid=total, got %d", resp.PaidCents)
	}
	if resp.Status != domain.OrderStatusCompleted || resp.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("expected completed/paid, got %s/%s", resp.Status, resp.PaymentStatus)
	}
}

func TestCheckoutLoyaltyPoints(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	product := seedProduct(t, svc, 1499, 700, 0, 10)

	customer, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{Name: "Dewi"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}

	_, err = svc.Checkout(ctx, domain.CheckoutRequest{
		OrderToken: "tok-loyalty",
		LocationID: "main",
		CustomerID: customer.ID,
		Items:      []domain.CheckoutItem{{ProductID: product.ID, Qty: 1}},
		Payments:   []domain.PaymentInput{{Method: "cash", AmountCents: 1499}},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	updated, err := svc.GetCustomer(ctx, customer.ID)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if updated.LoyaltyPoints != 14 {
		t.Fatalf("1499 spent should earn exactly 14 points, got %d", updated.LoyaltyPoints)
	}
	if updated.TotalSpentCents != 1499 || updated.TotalOrders != 1 {
		t.Fatalf("customer counters wrong: spent=%d orders=%d", updated.TotalSpentCents, updated.TotalOrders)
	}
}

func TestCheckoutIdempotentReplay(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	product := seedProduct(t, svc, 5000, 2000, 0, 10)

	req := domain.CheckoutRequest{
		OrderToken: "tok-replay",
		LocationID: "main",
		Items:      []domain.CheckoutItem{{ProductID: product.ID, Qty: 2}},
		Payments:   []domain.PaymentInput{{Method: "cash", AmountCents: 10000}},
	}

	first, err := svc.Checkout(ctx, req)
	if err != nil {
		t.Fatalf("first checkout failed: %v", err)
	}
	second, err := svc.Checkout(ctx, req)
	if err != nil {
		t.Fatalf("replayed checkout failed: %v", err)
	}
	if !second.Duplicate {
		t.Fatalf("replay should be marked duplicate")
	}
	if second.OrderID != first.OrderID {
		t.Fatalf("replay returned a different order: %s vs %s", second.OrderID, first.OrderID)
	}

	avail, err := svc.Availability(ctx, product.ID, "main")
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if avail.Available != 8 {
		t.Fatalf("stock should be deducted exactly once, available=%d", avail.Available)
	}
}

func TestCheckoutInsufficientPayment(t *testing.T) {
	svc := newTestService()
	product := seedProduct(t, svc, 5000, 2000, 0, 10)

	_, err := svc.Checkout(context.Background(), domain.CheckoutRequest{
		OrderToken: "tok-short",
		LocationID: "main",
		Items:      []domain.CheckoutItem{{ProductID: product.ID, Qty: 1}},
		Payments:   []domain.PaymentInput{{Method: "cash", AmountCents: 4000}},
	})
	if !errors.Is(err, ErrInsufficientPayment) {
		t.Fatalf("expected insufficient payment error, got %v", err)
	}
}

func TestCheckoutNonCashOverpayRejected(t *testing.T) {
	svc := newTestService()
	product := seedProduct(t, svc, 5000, 2000, 0, 10)

	_, err := svc.Checkout(context.Background(), domain.CheckoutRequest{
		OrderToken: "tok-card-over",
		LocationID: "main",
		Items:      []domain.CheckoutItem{{ProductID: product.ID, Qty: 1}},
		Payments:   []domain.PaymentInput{{Method: "card", AmountCents: 6000, Reference: "CARD-1"}},
	})
	if !errors.Is(err, store.ErrInvalidOrder) {
		t.Fatalf("non-cash overpayment should be rejected, got %v", err)
	}
}

func TestCheckoutSplitPayment(t *testing.T) {
	svc := newTestService()
	product := seedProduct(t, svc, 1000, 400, 0, 10)

	// The method is recorded as given, not checked against a fixed list, so a
	// cash/mpesa split settles like any other.
	resp, err := svc.Checkout(context.Background(), domain.CheckoutRequest{
		OrderToken: "tok-split",
		LocationID: "main",
		Items:      []domain.CheckoutItem{{ProductID: product.ID, Qty: 1}},
		Payments: []domain.PaymentInput{
			{Method: "cash", AmountCents: 600},
			{Method: "mpesa", AmountCents: 400},
		},
	})
	if err != nil {
		t.Fatalf("split checkout failed: %v", err)
	}
	if resp.PaymentStatus != domain.PaymentStatusPaid || resp.PaidCents != 1000 {
		t.Fatalf("expected fully paid split, got %s paid=%d", resp.PaymentStatus, resp.PaidCents)
	}
	if resp.ChangeCents != 0 {
		t.Fatalf("exact split should owe no change, got %d", resp.ChangeCents)
	}
}

func TestCheckoutRejectsBlankPaymentMethod(t *testing.T) {
	svc := newTestService()
	product := seedProduct(t, svc, 1000, 400, 0, 10)

	_, err := svc.Checkout(context.Background(), domain.CheckoutRequest{
		OrderToken: "tok-blank-method",
		LocationID: "main",
		Items:      []domain.CheckoutItem{{ProductID: product.ID, Qty: 1}},
		Payments:   []domain.PaymentInput{{Method: "  ", AmountCents: 1000}},
	})
	if !errors.Is(err, store.ErrInvalidOrder) {
		t.Fatalf("blank payment method should be rejected, got %v", err)
	}
}

func TestCheckoutTaxWithOrderDiscount(t *testing.T) {
	svc := newTestService()
	product := seedProduct(t, svc, 10000, 5000, 11, 10)

	resp, err := svc.Checkout(context.Background(), domain.CheckoutRequest{
		OrderToken:         "tok-tax",
		LocationID:         "main",
		Items:              []domain.CheckoutItem{{ProductID: product.ID, Qty: 1}},
		OrderDiscountCents: 1000,
		Payments:           []domain.PaymentInput{{Method: "cash", AmountCents: 9990}},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	// taxBase 9000, tax = 9000 * 11% = 990
	if resp.TaxCents != 990 {
		t.Fatalf("expected tax 990, got %d", resp.TaxCents)
	}
	if resp.TotalCents != 9990 {
		t.Fatalf("expected total 9990, got %d", resp.TotalCents)
	}
}

func TestCheckoutVariantExplicitZeroTax(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	product := seedProduct(t, svc, 10000, 5000, 11, 10)

	zero := 0.0
	variant, err := svc.CreateVariant(ctx, domain.VariantCreateRequest{
		ProductID:      product.ID,
		SKU:            product.SKU + "-TAXFREE",
		Name:           "Tax Exempt Variant",
		TaxRatePercent: &zero,
	})
	if err != nil {
		t.Fatalf("create variant: %v", err)
	}
	if _, err := svc.AdjustStock(ctx, domain.StockAdjustmentRequest{
		ItemRef: variant.ID, LocationID: "main", QtyDelta: 5, Type: domain.MovementInitial,
	}); err != nil {
		t.Fatalf("stock variant: %v", err)
	}

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		OrderToken: "tok-zero-tax",
		LocationID: "main",
		Items:      []domain.CheckoutItem{{ProductID: product.ID, VariantID: variant.ID, Qty: 1}},
		Payments:   []domain.PaymentInput{{Method: "cash", AmountCents: 10000}},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if resp.TaxCents != 0 {
		t.Fatalf("explicit zero tax override must not inherit product rate, got tax=%d", resp.TaxCents)
	}
}

func TestCheckoutOversellFlagsInventory(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	product := seedProduct(t, svc, 5000, 2000, 0, 1)

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		OrderToken: "tok-oversell",
		LocationID: "main",
		Items:      []domain.CheckoutItem{{ProductID: product.ID, Qty: 3}},
		Payments:   []domain.PaymentInput{{Method: "cash", AmountCents: 15000}},
	})
	if err != nil {
		t.Fatalf("a paid sale must never be rejected for stock drift: %v", err)
	}
	if resp.Status != domain.OrderStatusCompleted {
		t.Fatalf("expected completed order, got %s", resp.Status)
	}

	avail, err := svc.Availability(ctx, product.ID, "main")
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if avail.Quantity != 0 {
		t.Fatalf("quantity must clamp at zero, got %d", avail.Quantity)
	}
	if !avail.Flagged {
		t.Fatalf("oversold record should be flagged for reconciliation")
	}
}

func TestLayawayOpenAndComplete(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	product := seedProduct(t, svc, 100000, 60000, 0, 5)

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		OrderToken: "tok-layaway",
		LocationID: "main",
		Items:      []domain.CheckoutItem{{ProductID: product.ID, Qty: 1}},
		Payments:   []domain.PaymentInput{{Method: "cash", AmountCents: 25000}},
		Layaway:    &domain.LayawayInfo{CustomerName: "Sari", CustomerPhone: "0812", DepositPercent: 25},
	})
	if err != nil {
		t.Fatalf("layaway checkout failed: %v", err)
	}
	if resp.Status != domain.OrderStatusLayaway || resp.PaymentStatus != domain.PaymentStatusPartial {
		t.Fatalf("expected layaway/partial, got %s/%s", resp.Status, resp.PaymentStatus)
	}

	// Stock is committed at checkout, not at completion.
	avail, err := svc.Availability(ctx, product.ID, "main")
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if avail.Available != 4 {
		t.Fatalf("layaway should deduct stock immediately, available=%d", avail.Available)
	}

	completed, err := svc.AddLayawayPayment(ctx, domain.LayawayPaymentRequest{
		OrderID:     resp.OrderID,
		Method:      "cash",
		AmountCents: 75000,
	})
	if err != nil {
		t.Fatalf("layaway completion failed: %v", err)
	}
	if completed.Status != domain.OrderStatusCompleted || completed.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("expected completed/paid, got %s/%s", completed.Status, completed.PaymentStatus)
	}
	if completed.CompletedAt == nil {
		t.Fatalf("completion timestamp should be set")
	}
}

func TestLayawayDepositBelowMinimumRejected(t *testing.T) {
	svc := newTestService()
	product := seedProduct(t, svc, 100000, 60000, 0, 5)

	_, err := svc.Checkout(context.Background(), domain.CheckoutRequest{
		OrderToken: "tok-low-deposit",
		LocationID: "main",
		Items:      []domain.CheckoutItem{{ProductID: product.ID, Qty: 1}},
		Payments:   []domain.PaymentInput{{Method: "cash", AmountCents: 10000}},
		Layaway:    &domain.LayawayInfo{CustomerName: "Sari", DepositPercent: 25},
	})
	if !errors.Is(err, ErrInsufficientPayment) {
		t.Fatalf("deposit below minimum should be rejected, got %v", err)
	}
}

func TestCancelLayawayRestocks(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	product := seedProduct(t, svc, 50000, 30000, 0, 5)

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		OrderToken: "tok-cancel",
		LocationID: "main",
		Items:      []domain.CheckoutItem{{ProductID: product.ID, Qty: 2}},
		Payments:   []domain.PaymentInput{{Method: "cash", AmountCents: 20000}},
		Layaway:    &domain.LayawayInfo{CustomerName: "Budi"},
	})
	if err != nil {
		t.Fatalf("layaway checkout failed: %v", err)
	}

	cancelled, err := svc.CancelOrder(ctx, resp.OrderID, "customer walked away")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}

	avail, err := svc.Availability(ctx, product.ID, "main")
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if avail.Available != 5 {
		t.Fatalf("cancel should restock, available=%d", avail.Available)
	}
}

func TestRefundRequiresAdmin(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	product := seedProduct(t, svc, 5000, 2000, 0, 5)

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		OrderToken: "tok-refund",
		LocationID: "main",
		Items:      []domain.CheckoutItem{{ProductID: product.ID, Qty: 1}},
		Payments:   []domain.PaymentInput{{Method: "cash", AmountCents: 5000}},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if _, err := svc.RefundOrder(ctx, resp.OrderID, "damaged"); err == nil {
		t.Fatalf("refund without admin actor should fail")
	}

	adminCtx := WithActor(ctx, domain.Actor{Username: "admin", Role: "admin"})
	refunded, err := svc.RefundOrder(adminCtx, resp.OrderID, "damaged")
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if refunded.Status != domain.OrderStatusRefunded {
		t.Fatalf("expected refunded, got %s", refunded.Status)
	}

	avail, err := svc.Availability(ctx, product.ID, "main")
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if avail.Available != 5 {
		t.Fatalf("refund should restock, available=%d", avail.Available)
	}
}

func TestAvailabilityUnknownLocation(t *testing.T) {
	svc := newTestService()

	_, err := svc.Availability(context.Background(), "prod-linen-shirt", "warehouse-9")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unconfigured location should be not found, got %v", err)
	}
}

func TestDailyReportCountsTodaySale(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	product := seedProduct(t, svc, 20000, 8000, 0, 5)

	_, err := svc.Checkout(ctx, domain.CheckoutRequest{
		OrderToken: "tok-report",
		LocationID: "main",
		Items:      []domain.CheckoutItem{{ProductID: product.ID, Qty: 1}},
		Payments:   []domain.PaymentInput{{Method: "cash", AmountCents: 20000}},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	report, err := svc.DailyReport(ctx, "main", time.Now().UTC().Format("2006-01-02"))
	if err != nil {
		t.Fatalf("daily report failed: %v", err)
	}
	if report.RevenueCents != 20000 || report.Orders != 1 {
		t.Fatalf("expected revenue 20000 over 1 order, got %d over %d", report.RevenueCents, report.Orders)
	}
	if report.ProfitCents != 12000 {
		t.Fatalf("expected profit 12000, got %d", report.ProfitCents)
	}
}

type failingProvider struct{}

func (failingProvider) Recommend(_ context.Context, _ recommend.Request) (*recommend.Response, error) {
	return nil, errors.New("provider down")
}

func TestReorderDashboardDegradesOnProviderFailure(t *testing.T) {
	repo := memory.NewSeeded()
	svc := New(repo, failingProvider{}, cache.NoopDashboardCache{}, time.Minute, search.NoopMirror{}, "main", 0.7)

	dashboard, err := svc.ReorderDashboard(context.Background(), "main")
	if err != nil {
		t.Fatalf("provider failure must not fail the dashboard: %v", err)
	}
	if !dashboard.ProviderDegraded {
		t.Fatalf("dashboard should be marked degraded")
	}
	if dashboard.Recommendations != nil {
		t.Fatalf("degraded dashboard should carry no recommendations")
	}
	if len(dashboard.Products) == 0 {
		t.Fatalf("enriched products should still be served")
	}
}

func TestReorderDashboardReinvestableCash(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	product := seedProduct(t, svc, 100000, 40000, 0, 20)

	_, err := svc.Checkout(ctx, domain.CheckoutRequest{
		OrderToken: "tok-cash",
		LocationID: "main",
		Items:      []domain.CheckoutItem{{ProductID: product.ID, Qty: 1}},
		Payments:   []domain.PaymentInput{{Method: "cash", AmountCents: 100000}},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	dashboard, err := svc.ReorderDashboard(ctx, "main")
	if err != nil {
		t.Fatalf("dashboard failed: %v", err)
	}
	if dashboard.TrailingProfitCents != 60000 {
		t.Fatalf("expected trailing profit 60000, got %d", dashboard.TrailingProfitCents)
	}
	if dashboard.ReinvestableCashCents != 42000 {
		t.Fatalf("expected 0.7 * 60000 = 42000 reinvestable, got %d", dashboard.ReinvestableCashCents)
	}
}

func TestPurchaseOrderLifecycleRestocks(t *testing.T) {
	svc := newTestService()
	ctx := WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
	product := seedProduct(t, svc, 45000, 27000, 0, 2)

	supplier, err := svc.CreateSupplier(ctx, domain.SupplierCreateRequest{Name: "Atelier"})
	if err != nil {
		t.Fatalf("create supplier: %v", err)
	}

	po, err := svc.CreatePurchaseOrder(ctx, domain.PurchaseOrderCreateRequest{
		LocationID: "main",
		SupplierID: supplier.ID,
		Items:      []domain.PurchaseOrderItem{{ItemRef: product.ID, Qty: 10, CostCents: 27000}},
	})
	if err != nil {
		t.Fatalf("create purchase order: %v", err)
	}
	if po.Status != domain.PurchaseOrderDraft {
		t.Fatalf("new purchase order should be draft, got %s", po.Status)
	}

	if _, err := svc.ReceivePurchaseOrder(ctx, po.ID, "admin"); err == nil {
		t.Fatalf("receiving a draft purchase order should fail")
	}

	sent, err := svc.SendPurchaseOrder(ctx, po.ID)
	if err != nil {
		t.Fatalf("send purchase order: %v", err)
	}
	if sent.Status != domain.PurchaseOrderSent || sent.SentAt == nil {
		t.Fatalf("expected sent status with timestamp")
	}

	received, err := svc.ReceivePurchaseOrder(ctx, po.ID, "admin")
	if err != nil {
		t.Fatalf("receive purchase order: %v", err)
	}
	if received.Status != domain.PurchaseOrderReceived || received.ReceivedAt == nil {
		t.Fatalf("expected received status with timestamp")
	}

	avail, err := svc.Availability(ctx, product.ID, "main")
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if avail.Available != 12 {
		t.Fatalf("receipt should restock 2+10=12, got %d", avail.Available)
	}
}

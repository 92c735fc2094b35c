package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"butikpos/backend/internal/analytics"
	"butikpos/backend/internal/cache"
	"butikpos/backend/internal/domain"
	"butikpos/backend/internal/pricing"
	"butikpos/backend/internal/recommend"
	"butikpos/backend/internal/reorder"
	"butikpos/backend/internal/search"
	"butikpos/backend/internal/store"
	"butikpos/backend/internal/xid"
)

// ErrInsufficientPayment is the user-visible checkout rejection for a direct
// sale whose payments do not cover the total.
var ErrInsufficientPayment = errors.New("insufficient payment")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo              store.Repository
	provider          recommend.Provider
	dashboards        cache.DashboardCache
	dashboardTTL      time.Duration
	mirror            search.Mirror
	defaultLocationID string
	reinvestmentRate  float64
}

func New(
	repo store.Repository,
	provider recommend.Provider,
	dashboards cache.DashboardCache,
	dashboardTTL time.Duration,
	mirror search.Mirror,
	defaultLocationID string,
	reinvestmentRate float64,
) *Service {
	if provider == nil {
		provider = recommend.StubProvider{}
	}
	if dashboards == nil {
		dashboards = cache.NoopDashboardCache{}
	}
	if dashboardTTL <= 0 {
		dashboardTTL = 60 * time.Second
	}
	if mirror == nil {
		mirror = search.NoopMirror{}
	}
	if reinvestmentRate <= 0 || reinvestmentRate > 1 {
		reinvestmentRate = reorder.DefaultReinvestmentRate
	}
	return &Service{
		repo:              repo,
		provider:          provider,
		dashboards:        dashboards,
		dashboardTTL:      dashboardTTL,
		mirror:            mirror,
		defaultLocationID: defaultLocationID,
		reinvestmentRate:  reinvestmentRate,
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if strings.TrimSpace(req.SKU) == "" || strings.TrimSpace(req.Name) == "" || req.PriceCents < 1 {
		return domain.Product{}, store.ErrInvalidOrder
	}
	if req.CostCents < 0 || req.TaxRatePercent < 0 || req.TaxRatePercent > 100 || req.InitialStock < 0 {
		return domain.Product{}, store.ErrInvalidOrder
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		SKU:               strings.TrimSpace(req.SKU),
		Name:              strings.TrimSpace(req.Name),
		Category:          defaultString(strings.TrimSpace(req.Category), "uncategorized"),
		CostCents:         req.CostCents,
		PriceCents:        req.PriceCents,
		TaxRatePercent:    req.TaxRatePercent,
		LowStockThreshold: req.LowStockThreshold,
		ReorderQty:        req.ReorderQty,
		SupplierID:        req.SupplierID,
		AllowBackorder:    req.AllowBackorder,
		Active:            true,
	})
	if err != nil {
		return domain.Product{}, err
	}

	if req.InitialStock > 0 {
		locationID := defaultString(req.LocationID, s.defaultLocationID)
		if _, err := s.repo.AdjustInventory(ctx, store.InventoryAdjustment{
			ItemRef:    created.ID,
			LocationID: locationID,
			QtyDelta:   req.InitialStock,
			Type:       domain.MovementInitial,
			Reference:  created.ID,
			Notes:      "initial stock",
		}); err != nil {
			return domain.Product{}, err
		}
	}

	search.IndexAsync(s.mirror, search.Document{Kind: "product", ID: created.ID, Body: created})
	s.logAudit(ctx, defaultString(req.LocationID, s.defaultLocationID), "product_create", "product", created.ID, fmt.Sprintf("sku=%s,price=%d", created.SKU, created.PriceCents))
	return *created, nil
}

func (s *Service) CreateVariant(ctx context.Context, req domain.VariantCreateRequest) (domain.Variant, error) {
	if strings.TrimSpace(req.ProductID) == "" || strings.TrimSpace(req.SKU) == "" || strings.TrimSpace(req.Name) == "" {
		return domain.Variant{}, store.ErrInvalidOrder
	}
	if req.PriceCents != nil && *req.PriceCents < 1 {
		return domain.Variant{}, store.ErrInvalidOrder
	}
	if req.TaxRatePercent != nil && (*req.TaxRatePercent < 0 || *req.TaxRatePercent > 100) {
		return domain.Variant{}, store.ErrInvalidOrder
	}

	created, err := s.repo.CreateVariant(ctx, domain.Variant{
		ProductID:      req.ProductID,
		SKU:            strings.TrimSpace(req.SKU),
		Name:           strings.TrimSpace(req.Name),
		CostCents:      req.CostCents,
		PriceCents:     req.PriceCents,
		TaxRatePercent: req.TaxRatePercent,
		Active:         true,
	})
	if err != nil {
		return domain.Variant{}, err
	}

	search.IndexAsync(s.mirror, search.Document{Kind: "variant", ID: created.ID, Body: created})
	s.logAudit(ctx, s.defaultLocationID, "variant_create", "variant", created.ID, fmt.Sprintf("product=%s,sku=%s", created.ProductID, created.SKU))
	return *created, nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:  strings.TrimSpace(req.Name),
		Phone: strings.TrimSpace(req.Phone),
	})
	if err != nil {
		return domain.Customer{}, err
	}
	search.IndexAsync(s.mirror, search.Document{Kind: "customer", ID: created.ID, Body: created})
	return *created, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

// Checkout runs the whole order pipeline: totals, payment status, persistence,
// stock deduction, and customer counters. It is idempotent on the client
// supplied order token, so a retried request replays the stored result instead
// of double-charging.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	if req.LocationID == "" {
		req.LocationID = s.defaultLocationID
	}
	if req.OrderToken == "" {
		req.OrderToken = xid.New("tok")
	}
	if len(req.Items) == 0 || req.OrderDiscountCents < 0 {
		return domain.CheckoutResponse{}, store.ErrInvalidOrder
	}

	if existing, err := s.repo.FindOrderByToken(ctx, req.OrderToken); err == nil {
		return toCheckoutResponse(existing, true), nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.CheckoutResponse{}, err
	}

	if _, err := s.repo.GetLocation(ctx, req.LocationID); err != nil {
		return domain.CheckoutResponse{}, err
	}

	productIDs := make([]string, 0, len(req.Items))
	variantIDs := make([]string, 0, 4)
	for _, item := range req.Items {
		if item.ProductID == "" || item.Qty < 1 || item.DiscountCents < 0 {
			return domain.CheckoutResponse{}, store.ErrInvalidOrder
		}
		productIDs = append(productIDs, item.ProductID)
		if item.VariantID != "" {
			variantIDs = append(variantIDs, item.VariantID)
		}
	}

	products, err := s.repo.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	variants, err := s.repo.GetVariantsByIDs(ctx, variantIDs)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	subtotal := int64(0)
	orderItems := make([]domain.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		product, ok := products[item.ProductID]
		if !ok {
			return domain.CheckoutResponse{}, store.ErrNotFound
		}

		itemRef := product.ID
		name := product.Name
		sku := product.SKU
		var variant *domain.Variant
		if item.VariantID != "" {
			v, ok := variants[item.VariantID]
			if !ok || v.ProductID != product.ID {
				return domain.CheckoutResponse{}, store.ErrNotFound
			}
			variant = &v
			itemRef = v.ID
			name = v.Name
			sku = v.SKU
		}

		line := pricing.ResolveLine(product, variant)
		if item.UnitPriceCents > 0 {
			line.UnitPriceCents = item.UnitPriceCents
		}
		if item.UnitCostCents > 0 {
			line.UnitCostCents = item.UnitCostCents
		}

		gross := line.UnitPriceCents * int64(item.Qty)
		if item.DiscountCents > gross {
			return domain.CheckoutResponse{}, store.ErrInvalidOrder
		}
		net := gross - item.DiscountCents
		subtotal += net

		orderItems = append(orderItems, domain.OrderItem{
			ItemRef:        itemRef,
			ProductID:      product.ID,
			VariantID:      item.VariantID,
			Name:           name,
			SKU:            sku,
			Category:       product.Category,
			Qty:            item.Qty,
			UnitPriceCents: line.UnitPriceCents,
			UnitCostCents:  line.UnitCostCents,
			DiscountCents:  item.DiscountCents,
			TaxRatePercent: line.TaxRatePercent,
			LineTotalCents: net,
		})
	}

	if req.OrderDiscountCents > subtotal {
		return domain.CheckoutResponse{}, store.ErrInvalidOrder
	}
	taxBase := subtotal - req.OrderDiscountCents

	// The order-level discount shrinks every line's tax base proportionally
	// before its own rate applies, so mixed-rate carts tax correctly.
	taxCents := int64(0)
	if subtotal > 0 {
		factor := decimal.NewFromInt(taxBase).Div(decimal.NewFromInt(subtotal))
		for i := range orderItems {
			lineTax := decimal.NewFromInt(orderItems[i].LineTotalCents).
				Mul(factor).
				Mul(decimal.NewFromFloat(orderItems[i].TaxRatePercent)).
				Div(decimal.NewFromInt(100)).
				Round(0).IntPart()
			orderItems[i].TaxCents = lineTax
			taxCents += lineTax
		}
	}
	totalCents := taxBase + taxCents

	// Payment handling records a method/amount/reference triple; the method is
	// free-form, only cash gets special change treatment.
	cashTendered := int64(0)
	otherTendered := int64(0)
	payments := make([]domain.Payment, 0, len(req.Payments))
	for _, p := range req.Payments {
		method := strings.ToLower(strings.TrimSpace(p.Method))
		if method == "" || p.AmountCents < 1 {
			return domain.CheckoutResponse{}, store.ErrInvalidOrder
		}
		if method == "cash" {
			cashTendered += p.AmountCents
		} else {
			otherTendered += p.AmountCents
		}
		payments = append(payments, domain.Payment{
			Method:      method,
			AmountCents: p.AmountCents,
			Reference:   strings.TrimSpace(p.Reference),
			Status:      domain.PaymentStatusPaid,
		})
	}

	// Only cash can overpay; the overage is handed back as change and the
	// order records paid = total. Non-cash overpayment is a malformed cart.
	if otherTendered > totalCents {
		return domain.CheckoutResponse{}, store.ErrInvalidOrder
	}
	tendered := cashTendered + otherTendered
	changeCents := int64(0)
	paidCents := tendered
	if tendered > totalCents {
		changeCents = tendered - totalCents
		if changeCents > cashTendered {
			return domain.CheckoutResponse{}, store.ErrInvalidOrder
		}
		paidCents = totalCents
	}

	status := domain.OrderStatusCompleted
	var layawayName, layawayPhone string
	var layawayDue *time.Time
	depositPercent := 0.0
	if req.Layaway != nil {
		status = domain.OrderStatusLayaway
		layawayName = strings.TrimSpace(req.Layaway.CustomerName)
		layawayPhone = strings.TrimSpace(req.Layaway.CustomerPhone)
		depositPercent = req.Layaway.DepositPercent
		if layawayName == "" {
			return domain.CheckoutResponse{}, store.ErrInvalidOrder
		}
		if req.Layaway.DueDate != "" {
			due, err := time.Parse("2006-01-02", req.Layaway.DueDate)
			if err != nil {
				return domain.CheckoutResponse{}, store.ErrInvalidOrder
			}
			layawayDue = &due
		}
		if depositPercent > 0 {
			minDeposit := decimal.NewFromInt(totalCents).
				Mul(decimal.NewFromFloat(depositPercent)).
				Div(decimal.NewFromInt(100)).
				Round(0).IntPart()
			if paidCents < minDeposit {
				return domain.CheckoutResponse{}, ErrInsufficientPayment
			}
		}
		if paidCents >= totalCents {
			status = domain.OrderStatusCompleted
		}
	} else if paidCents < totalCents {
		return domain.CheckoutResponse{}, ErrInsufficientPayment
	}

	paymentStatus := domain.PaymentStatusPending
	switch {
	case paidCents >= totalCents:
		paymentStatus = domain.PaymentStatusPaid
	case paidCents > 0:
		paymentStatus = domain.PaymentStatusPartial
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:             xid.New("ord"),
		OrderToken:     req.OrderToken,
		LocationID:     req.LocationID,
		CustomerID:     req.CustomerID,
		Status:         status,
		PaymentStatus:  paymentStatus,
		SubtotalCents:  subtotal,
		DiscountCents:  req.OrderDiscountCents,
		TaxCents:       taxCents,
		TotalCents:     totalCents,
		PaidCents:      paidCents,
		ChangeCents:    changeCents,
		LayawayName:    layawayName,
		LayawayPhone:   layawayPhone,
		LayawayDueDate: layawayDue,
		DepositPercent: depositPercent,
		CreatedAt:      now,
		Items:          orderItems,
		Payments:       payments,
	}
	if status == domain.OrderStatusCompleted {
		order.CompletedAt = &now
	}

	created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	s.invalidateDashboard(ctx, req.LocationID)
	s.logAudit(ctx, req.LocationID, "checkout", "order", created.ID,
		fmt.Sprintf("total=%d,paid=%d,status=%s,payment_status=%s,items=%d",
			created.TotalCents, created.PaidCents, created.Status, created.PaymentStatus, len(created.Items)))

	return toCheckoutResponse(created, false), nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return *order, nil
}

// AddLayawayPayment applies one more installment and completes the order when
// the balance reaches the total.
func (s *Service) AddLayawayPayment(ctx context.Context, req domain.LayawayPaymentRequest) (domain.Order, error) {
	method := strings.ToLower(strings.TrimSpace(req.Method))
	if req.OrderID == "" || req.AmountCents < 1 || method == "" {
		return domain.Order{}, store.ErrInvalidOrder
	}

	updated, err := s.repo.AddOrderPayment(ctx, req.OrderID, domain.Payment{
		Method:      method,
		AmountCents: req.AmountCents,
		Reference:   strings.TrimSpace(req.Reference),
		Status:      domain.PaymentStatusPaid,
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.logAudit(ctx, updated.LocationID, "layaway_payment", "order", updated.ID,
		fmt.Sprintf("amount=%d,paid=%d,status=%s", req.AmountCents, updated.PaidCents, updated.Status))
	return *updated, nil
}

func (s *Service) RefundOrder(ctx context.Context, orderID string, reason string) (domain.Order, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Order{}, fmt.Errorf("admin role required")
	}
	if orderID == "" {
		return domain.Order{}, store.ErrInvalidOrder
	}

	refunded, err := s.repo.RefundOrder(ctx, orderID, reason, time.Now().UTC())
	if err != nil {
		return domain.Order{}, err
	}

	s.invalidateDashboard(ctx, refunded.LocationID)
	s.logAudit(ctx, refunded.LocationID, "order_refund", "order", refunded.ID, fmt.Sprintf("reason=%s,total=%d", reason, refunded.TotalCents))
	return *refunded, nil
}

func (s *Service) CancelOrder(ctx context.Context, orderID string, reason string) (domain.Order, error) {
	if orderID == "" {
		return domain.Order{}, store.ErrInvalidOrder
	}

	cancelled, err := s.repo.CancelOrder(ctx, orderID, reason, time.Now().UTC())
	if err != nil {
		return domain.Order{}, err
	}

	s.invalidateDashboard(ctx, cancelled.LocationID)
	s.logAudit(ctx, cancelled.LocationID, "order_cancel", "order", cancelled.ID, fmt.Sprintf("reason=%s", reason))
	return *cancelled, nil
}

// Availability reports stock for one item. A missing inventory record is zero
// availability, not an error; a missing location is.
func (s *Service) Availability(ctx context.Context, itemRef string, locationID string) (domain.AvailabilityResponse, error) {
	if itemRef == "" {
		return domain.AvailabilityResponse{}, store.ErrInvalidOrder
	}
	locationID = defaultString(locationID, s.defaultLocationID)
	if _, err := s.repo.GetLocation(ctx, locationID); err != nil {
		return domain.AvailabilityResponse{}, err
	}

	record, err := s.repo.GetInventory(ctx, itemRef, locationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.AvailabilityResponse{ItemRef: itemRef, LocationID: locationID}, nil
		}
		return domain.AvailabilityResponse{}, err
	}

	return domain.AvailabilityResponse{
		ItemRef:    itemRef,
		LocationID: locationID,
		Quantity:   record.Quantity,
		Reserved:   record.ReservedQty,
		Available:  record.Available(),
		Flagged:    record.Flagged,
	}, nil
}

func (s *Service) AdjustStock(ctx context.Context, req domain.StockAdjustmentRequest) (domain.AvailabilityResponse, error) {
	if req.ItemRef == "" || req.QtyDelta == 0 {
		return domain.AvailabilityResponse{}, store.ErrInvalidOrder
	}
	switch req.Type {
	case domain.MovementAdjustment, domain.MovementDamage, domain.MovementReturn, domain.MovementInitial:
	default:
		return domain.AvailabilityResponse{}, store.ErrInvalidOrder
	}
	locationID := defaultString(req.LocationID, s.defaultLocationID)

	record, err := s.repo.AdjustInventory(ctx, store.InventoryAdjustment{
		ItemRef:    req.ItemRef,
		LocationID: locationID,
		QtyDelta:   req.QtyDelta,
		Type:       req.Type,
		Notes:      req.Notes,
	})
	if err != nil {
		return domain.AvailabilityResponse{}, err
	}

	search.IndexAsync(s.mirror, search.Document{Kind: "inventory", ID: record.ItemRef + ":" + record.LocationID, Body: record})
	s.logAudit(ctx, locationID, "stock_adjust", "inventory", req.ItemRef,
		fmt.Sprintf("delta=%d,type=%s,quantity=%d", req.QtyDelta, req.Type, record.Quantity))

	return domain.AvailabilityResponse{
		ItemRef:    record.ItemRef,
		LocationID: record.LocationID,
		Quantity:   record.Quantity,
		Reserved:   record.ReservedQty,
		Available:  record.Available(),
		Flagged:    record.Flagged,
	}, nil
}

func (s *Service) ListStockMovements(ctx context.Context, itemRef string, locationID string, limit int) ([]domain.StockMovement, error) {
	return s.repo.ListStockMovements(ctx, itemRef, defaultString(locationID, s.defaultLocationID), limit)
}

// AnalyticsSummary reports the window [from, to) with change percentages
// against the immediately preceding window of the same length.
func (s *Service) AnalyticsSummary(ctx context.Context, locationID string, from time.Time, to time.Time) (analytics.Summary, error) {
	if !from.Before(to) {
		return analytics.Summary{}, store.ErrInvalidOrder
	}
	locationID = defaultString(locationID, s.defaultLocationID)

	window := to.Sub(from)
	orders, err := s.repo.ListOrdersBetween(ctx, locationID, from.Add(-window), to)
	if err != nil {
		return analytics.Summary{}, err
	}

	current := analytics.Summarize(orders, from, to)
	previous := analytics.Summarize(orders, from.Add(-window), from)
	return analytics.WithComparison(current, previous), nil
}

func (s *Service) DailyReport(ctx context.Context, locationID string, date string) (analytics.Summary, error) {
	day, err := time.Parse("2006-01-02", defaultString(date, time.Now().UTC().Format("2006-01-02")))
	if err != nil {
		return analytics.Summary{}, store.ErrInvalidOrder
	}
	return s.AnalyticsSummary(ctx, locationID, day, day.AddDate(0, 0, 1))
}

// ReorderDashboard assembles velocity, stock projection, supplier lead time,
// and the financial snapshot, then asks the recommendation provider to rank
// it. A provider failure degrades to a dashboard without recommendations.
func (s *Service) ReorderDashboard(ctx context.Context, locationID string) (recommend.Dashboard, error) {
	locationID = defaultString(locationID, s.defaultLocationID)
	cacheKey := "butikpos:reorder:" + locationID
	if cached, ok, err := s.dashboards.Get(ctx, cacheKey); err == nil && ok {
		return *cached, nil
	}

	now := time.Now().UTC()
	orders, err := s.repo.ListOrdersBetween(ctx, locationID, now.AddDate(0, 0, -60), now)
	if err != nil {
		return recommend.Dashboard{}, err
	}
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return recommend.Dashboard{}, err
	}
	suppliers, err := s.repo.ListSuppliers(ctx)
	if err != nil {
		return recommend.Dashboard{}, err
	}
	purchaseOrders, err := s.repo.ListPurchaseOrders(ctx, locationID, "", 500)
	if err != nil {
		return recommend.Dashboard{}, err
	}

	stock := make(map[string]int, len(products))
	for _, product := range products {
		record, err := s.repo.GetInventory(ctx, product.ID, locationID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return recommend.Dashboard{}, err
		}
		stock[product.ID] = record.Available()
	}

	trailing := analytics.Summarize(orders, now.AddDate(0, 0, -30), now)
	cash := reorder.ReinvestableCashCents(trailing.ProfitCents, s.reinvestmentRate)

	enriched := reorder.Enrich(
		products,
		reorder.ComputeVelocities(orders, now),
		stock,
		reorder.SupplierLeadTimes(purchaseOrders),
	)

	dashboard := recommend.Dashboard{
		LocationID:            locationID,
		GeneratedAt:           now,
		TrailingProfitCents:   trailing.ProfitCents,
		ReinvestableCashCents: cash,
		Products:              enriched,
	}

	recommendations, err := s.provider.Recommend(ctx, recommend.Request{
		LocationID:            locationID,
		Products:              enriched,
		Suppliers:             suppliers,
		TrailingProfitCents:   trailing.ProfitCents,
		ReinvestableCashCents: cash,
	})
	if err != nil {
		log.Printf("[reorder] WARN: recommendation provider failed, serving dashboard without recommendations: %v", err)
		dashboard.ProviderDegraded = true
	} else {
		dashboard.Recommendations = recommendations
	}

	if err := s.dashboards.Set(ctx, cacheKey, &dashboard, s.dashboardTTL); err != nil {
		log.Printf("[reorder] WARN: failed to cache dashboard: %v", err)
	}
	return dashboard, nil
}

func (s *Service) invalidateDashboard(ctx context.Context, locationID string) {
	if err := s.dashboards.Invalidate(ctx, "butikpos:reorder:"+locationID); err != nil {
		log.Printf("[reorder] WARN: failed to invalidate dashboard cache: %v", err)
	}
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	if strings.TrimSpace(req.Name) == "" {
		return domain.Supplier{}, store.ErrInvalidOrder
	}
	created, err := s.repo.CreateSupplier(ctx, domain.Supplier{
		Name:  strings.TrimSpace(req.Name),
		Phone: strings.TrimSpace(req.Phone),
	})
	if err != nil {
		return domain.Supplier{}, err
	}
	search.IndexAsync(s.mirror, search.Document{Kind: "supplier", ID: created.ID, Body: created})
	s.logAudit(ctx, s.defaultLocationID, "supplier_create", "supplier", created.ID, "name="+created.Name)
	return *created, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) CreatePurchaseOrder(ctx context.Context, req domain.PurchaseOrderCreateRequest) (domain.PurchaseOrder, error) {
	if req.SupplierID == "" || len(req.Items) == 0 {
		return domain.PurchaseOrder{}, store.ErrInvalidOrder
	}
	for _, item := range req.Items {
		if item.ItemRef == "" || item.Qty < 1 || item.CostCents < 0 {
			return domain.PurchaseOrder{}, store.ErrInvalidOrder
		}
	}

	created, err := s.repo.CreatePurchaseOrder(ctx, domain.PurchaseOrder{
		LocationID: defaultString(req.LocationID, s.defaultLocationID),
		SupplierID: req.SupplierID,
		Items:      req.Items,
	})
	if err != nil {
		return domain.PurchaseOrder{}, err
	}

	s.logAudit(ctx, created.LocationID, "purchase_order_create", "purchase_order", created.ID,
		fmt.Sprintf("supplier=%s,items=%d", created.SupplierID, len(created.Items)))
	return *created, nil
}

func (s *Service) ListPurchaseOrders(ctx context.Context, status string) ([]domain.PurchaseOrder, error) {
	return s.repo.ListPurchaseOrders(ctx, s.defaultLocationID, strings.ToLower(strings.TrimSpace(status)), 200)
}

func (s *Service) SendPurchaseOrder(ctx context.Context, purchaseOrderID string) (domain.PurchaseOrder, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.PurchaseOrder{}, fmt.Errorf("admin role required")
	}
	if purchaseOrderID == "" {
		return domain.PurchaseOrder{}, store.ErrInvalidOrder
	}

	sent, err := s.repo.MarkPurchaseOrderSent(ctx, purchaseOrderID, time.Now().UTC())
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	s.logAudit(ctx, sent.LocationID, "purchase_order_send", "purchase_order", sent.ID, "supplier="+sent.SupplierID)
	return *sent, nil
}

// ReceivePurchaseOrder restocks every line through the inventory ledger and
// closes the purchase order, recording who received it.
func (s *Service) ReceivePurchaseOrder(ctx context.Context, purchaseOrderID string, receivedBy string) (domain.PurchaseOrder, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.PurchaseOrder{}, fmt.Errorf("admin role required")
	}
	if purchaseOrderID == "" {
		return domain.PurchaseOrder{}, store.ErrInvalidOrder
	}
	receivedBy = strings.TrimSpace(receivedBy)
	if receivedBy == "" {
		receivedBy = actor.Username
	}

	received, err := s.repo.ReceivePurchaseOrder(ctx, purchaseOrderID, receivedBy, time.Now().UTC())
	if err != nil {
		return domain.PurchaseOrder{}, err
	}

	s.invalidateDashboard(ctx, received.LocationID)
	s.logAudit(ctx, received.LocationID, "purchase_order_receive", "purchase_order", received.ID, "received_by="+receivedBy)
	return *received, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, locationID string, date string, limit int) ([]domain.AuditLog, error) {
	locationID = defaultString(locationID, s.defaultLocationID)
	day, err := time.Parse("2006-01-02", defaultString(date, time.Now().UTC().Format("2006-01-02")))
	if err != nil {
		return nil, store.ErrInvalidOrder
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, locationID, day, day.AddDate(0, 0, 1), limit)
}

func (s *Service) logAudit(ctx context.Context, locationID string, action string, entityType string, entityID string, detail string) {
	if locationID == "" {
		locationID = s.defaultLocationID
	}

	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		LocationID:    locationID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func toCheckoutResponse(order *domain.Order, duplicate bool) domain.CheckoutResponse {
	return domain.CheckoutResponse{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		SubtotalCents: order.SubtotalCents,
		DiscountCents: order.DiscountCents,
		TaxCents:      order.TaxCents,
		TotalCents:    order.TotalCents,
		PaidCents:     order.PaidCents,
		ChangeCents:   order.ChangeCents,
		Duplicate:     duplicate,
		CreatedAt:     order.CreatedAt.Format(time.RFC3339),
	}
}

func defaultString(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"butikpos/backend/internal/domain"
	"butikpos/backend/internal/store"
	"butikpos/backend/internal/xid"
)

type Store struct {
	mu                 sync.RWMutex
	products           map[string]domain.Product
	productIDBySKU     map[string]string
	variants           map[string]domain.Variant
	locations          map[string]domain.Location
	inventory          map[string]map[string]domain.InventoryRecord
	movements          []domain.StockMovement
	ordersByID         map[string]*domain.Order
	ordersByToken      map[string]*domain.Order
	customers          map[string]domain.Customer
	suppliersByID      map[string]domain.Supplier
	purchaseOrdersByID map[string]domain.PurchaseOrder
	auditLogs          []domain.AuditLog
	usersByUsername    map[string]domain.UserAccount
	orderSeqByDay      map[string]int
}

func New() *Store {
	return &Store{
		products:           map[string]domain.Product{},
		productIDBySKU:     map[string]string{},
		variants:           map[string]domain.Variant{},
		locations:          map[string]domain.Location{},
		inventory:          map[string]map[string]domain.InventoryRecord{},
		movements:          make([]domain.StockMovement, 0, 256),
		ordersByID:         map[string]*domain.Order{},
		ordersByToken:      map[string]*domain.Order{},
		customers:          map[string]domain.Customer{},
		suppliersByID:      map[string]domain.Supplier{},
		purchaseOrdersByID: map[string]domain.PurchaseOrder{},
		auditLogs:          make([]domain.AuditLog, 0, 128),
		usersByUsername:    map[string]domain.UserAccount{},
		orderSeqByDay:      map[string]int{},
	}
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD; unset
// variables fall back to hardcoded dev defaults with a warning. The memory
// store never runs in production (postgres is used when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	s := New()
	s.usersByUsername = seedUsers()

	now := time.Now().UTC()
	s.locations["main"] = domain.Location{ID: "main", Name: "Main Boutique", CreatedAt: now}

	suppliers := []domain.Supplier{
		{ID: "sup-atelier", Name: "Atelier Textiles", Phone: "+62-811-555-0101", CreatedAt: now},
		{ID: "sup-leather", Name: "Harness Leather Works", Phone: "+62-811-555-0102", CreatedAt: now},
	}
	for _, sup := range suppliers {
		s.suppliersByID[sup.ID] = sup
	}

	products := []domain.Product{
		{ID: "prod-linen-shirt", SKU: "BTQ-SHIRT-01", Name: "Linen Shirt", Category: "apparel", CostCents: 27000, PriceCents: 45000, TaxRatePercent: 11, LowStockThreshold: 6, ReorderQty: 12, SupplierID: "sup-atelier", Active: true},
		{ID: "prod-silk-scarf", SKU: "BTQ-SCARF-01", Name: "Silk Scarf", Category: "accessories", CostCents: 12000, PriceCents: 30000, TaxRatePercent: 11, LowStockThreshold: 4, ReorderQty: 10, SupplierID: "sup-atelier", Active: true},
		{ID: "prod-leather-bag", SKU: "BTQ-BAG-01", Name: "Leather Tote Bag", Category: "accessories", CostCents: 40000, PriceCents: 70000, TaxRatePercent: 11, LowStockThreshold: 3, ReorderQty: 6, SupplierID: "sup-leather", Active: true},
		{ID: "prod-wool-coat", SKU: "BTQ-COAT-01", Name: "Wool Coat", Category: "apparel", CostCents: 90000, PriceCents: 155000, TaxRatePercent: 11, LowStockThreshold: 2, ReorderQty: 4, SupplierID: "sup-atelier", AllowBackorder: true, Active: true},
		{ID: "prod-denim-jeans", SKU: "BTQ-JEANS-01", Name: "Raw Denim Jeans", Category: "apparel", CostCents: 38000, PriceCents: 65000, TaxRatePercent: 11, LowStockThreshold: 5, ReorderQty: 10, SupplierID: "sup-atelier", Active: true},
		{ID: "prod-belt", SKU: "BTQ-BELT-01", Name: "Leather Belt", Category: "accessories", CostCents: 14000, PriceCents: 28000, TaxRatePercent: 11, LowStockThreshold: 5, ReorderQty: 12, SupplierID: "sup-leather", Active: true},
	}
	seedStock := map[string]int{
		"prod-linen-shirt": 24,
		"prod-silk-scarf":  18,
		"prod-leather-bag": 8,
		"prod-wool-coat":   5,
		"prod-denim-jeans": 20,
		"prod-belt":        15,
	}

	s.inventory["main"] = map[string]domain.InventoryRecord{}
	for _, p := range products {
		s.products[p.ID] = p
		s.productIDBySKU[p.SKU] = p.ID
		qty := seedStock[p.ID]
		s.inventory["main"][p.ID] = domain.InventoryRecord{
			ItemRef: p.ID, LocationID: "main", Quantity: qty, UpdatedAt: now,
		}
		s.movements = append(s.movements, domain.StockMovement{
			ID: xid.New("mov"), ItemRef: p.ID, LocationID: "main",
			Type: domain.MovementInitial, QtyDelta: qty, Notes: "seed stock", CreatedAt: now,
		})
	}

	slimPrice := int64(48000)
	s.variants["var-linen-shirt-slim"] = domain.Variant{
		ID: "var-linen-shirt-slim", ProductID: "prod-linen-shirt", SKU: "BTQ-SHIRT-01-SLIM",
		Name: "Linen Shirt (Slim)", PriceCents: &slimPrice, Active: true,
	}
	s.inventory["main"]["var-linen-shirt-slim"] = domain.InventoryRecord{
		ItemRef: "var-linen-shirt-slim", LocationID: "main", Quantity: 10, UpdatedAt: now,
	}
	s.movements = append(s.movements, domain.StockMovement{
		ID: xid.New("mov"), ItemRef: "var-linen-shirt-slim", LocationID: "main",
		Type: domain.MovementInitial, QtyDelta: 10, Notes: "seed stock", CreatedAt: now,
	})

	s.customers["cust-walkin-regular"] = domain.Customer{
		ID: "cust-walkin-regular", Name: "Rina S.", Phone: "+62-812-555-0199", CreatedAt: now,
	}
	return s
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.Active {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})

	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.SKU == "" || product.Name == "" || product.Category == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidOrder
	}
	if product.TaxRatePercent < 0 || product.TaxRatePercent > 100 {
		return nil, store.ErrInvalidOrder
	}
	if _, exists := s.productIDBySKU[product.SKU]; exists {
		return nil, store.ErrInvalidOrder
	}

	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	product.Active = true
	s.products[product.ID] = product
	s.productIDBySKU[product.SKU] = product.ID
	created := product
	return &created, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok && p.Active {
			result[id] = p
		}
	}
	return result, nil
}

func (s *Store) CreateVariant(_ context.Context, variant domain.Variant) (*domain.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if variant.ProductID == "" || variant.SKU == "" || variant.Name == "" {
		return nil, store.ErrInvalidOrder
	}
	if _, exists := s.products[variant.ProductID]; !exists {
		return nil, store.ErrNotFound
	}
	if _, exists := s.productIDBySKU[variant.SKU]; exists {
		return nil, store.ErrInvalidOrder
	}

	if variant.ID == "" {
		variant.ID = xid.New("var")
	}
	variant.Active = true
	s.variants[variant.ID] = variant
	s.productIDBySKU[variant.SKU] = variant.ID
	created := variant
	return &created, nil
}

func (s *Store) GetVariantsByIDs(_ context.Context, ids []string) (map[string]domain.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Variant, len(ids))
	for _, id := range ids {
		if v, ok := s.variants[id]; ok && v.Active {
			result[id] = v
		}
	}
	return result, nil
}

func (s *Store) ListLocations(_ context.Context) ([]domain.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	locations := make([]domain.Location, 0, len(s.locations))
	for _, loc := range s.locations {
		locations = append(locations, loc)
	}
	slices.SortFunc(locations, func(a, b domain.Location) int { return cmpString(a.ID, b.ID) })
	return locations, nil
}

func (s *Store) GetLocation(_ context.Context, id string) (*domain.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loc, ok := s.locations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copyLoc := loc
	return &copyLoc, nil
}

func (s *Store) GetInventory(_ context.Context, itemRef string, locationID string) (*domain.InventoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, ok := s.inventory[locationID]
	if !ok {
		return nil, store.ErrNotFound
	}
	record, ok := records[itemRef]
	if !ok {
		return nil, store.ErrNotFound
	}
	copyRecord := record
	return &copyRecord, nil
}

func (s *Store) AdjustInventory(_ context.Context, adj store.InventoryAdjustment) (*domain.InventoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if adj.ItemRef == "" || adj.QtyDelta == 0 || adj.Type == "" {
		return nil, store.ErrInvalidOrder
	}
	if _, ok := s.locations[adj.LocationID]; !ok {
		return nil, store.ErrNotFound
	}

	record := s.applyDeltaLocked(adj.ItemRef, adj.LocationID, adj.QtyDelta, adj.Type, adj.Reference, adj.Notes, time.Now().UTC())
	copyRecord := record
	return &copyRecord, nil
}

// applyDeltaLocked creates the inventory record on first touch, clamps the
// resulting quantity at zero, and always appends a movement row carrying the
// requested delta. Callers hold s.mu.
func (s *Store) applyDeltaLocked(itemRef string, locationID string, delta int, movementType string, reference string, notes string, at time.Time) domain.InventoryRecord {
	records, ok := s.inventory[locationID]
	if !ok {
		records = map[string]domain.InventoryRecord{}
		s.inventory[locationID] = records
	}
	record := records[itemRef]
	record.ItemRef = itemRef
	record.LocationID = locationID
	record.Quantity += delta
	if record.Quantity < 0 {
		record.Quantity = 0
	}
	record.UpdatedAt = at
	records[itemRef] = record

	s.movements = append(s.movements, domain.StockMovement{
		ID:         xid.New("mov"),
		ItemRef:    itemRef,
		LocationID: locationID,
		Type:       movementType,
		QtyDelta:   delta,
		Reference:  reference,
		Notes:      notes,
		CreatedAt:  at,
	})
	return record
}

func (s *Store) flagInventoryLocked(itemRef string, locationID string) {
	records, ok := s.inventory[locationID]
	if !ok {
		return
	}
	record, ok := records[itemRef]
	if !ok {
		return
	}
	record.Flagged = true
	records[itemRef] = record
}

func (s *Store) ListStockMovements(_ context.Context, itemRef string, locationID string, limit int) ([]domain.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	result := make([]domain.StockMovement, 0, limit)
	for i := len(s.movements) - 1; i >= 0 && len(result) < limit; i-- {
		mov := s.movements[i]
		if itemRef != "" && mov.ItemRef != itemRef {
			continue
		}
		if locationID != "" && mov.LocationID != locationID {
			continue
		}
		result = append(result, mov)
	}
	return result, nil
}

func (s *Store) FindOrderByToken(_ context.Context, token string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.ordersByToken[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneOrder(order), nil
}

func (s *Store) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.ordersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneOrder(order), nil
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.OrderToken == "" {
		return nil, store.ErrInvalidOrder
	}
	if existing, ok := s.ordersByToken[order.OrderToken]; ok {
		return cloneOrder(existing), nil
	}
	if len(order.Items) == 0 {
		return nil, store.ErrInvalidOrder
	}
	if _, ok := s.locations[order.LocationID]; !ok {
		return nil, store.ErrNotFound
	}

	now := time.Now().UTC()
	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.OrderNumber == "" {
		day := order.CreatedAt.Format("20060102")
		s.orderSeqByDay[day]++
		order.OrderNumber = fmt.Sprintf("ORD-%s-%04d", day, s.orderSeqByDay[day])
	}

	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = xid.New("item")
		}
		order.Items[i].OrderID = order.ID
	}
	for i := range order.Payments {
		if order.Payments[i].ID == "" {
			order.Payments[i].ID = xid.New("pay")
		}
		order.Payments[i].OrderID = order.ID
		if order.Payments[i].CreatedAt.IsZero() {
			order.Payments[i].CreatedAt = order.CreatedAt
		}
	}

	// Deduct stock line by line. Once payment is taken the sale is never
	// rejected for stock drift: a non-backorder item going negative clamps
	// at zero and flags the record for reconciliation.
	for _, item := range order.Items {
		records := s.inventory[order.LocationID]
		available := 0
		if records != nil {
			available = records[item.ItemRef].Available()
		}
		product, hasProduct := s.products[item.ProductID]
		if available < item.Qty && hasProduct && !product.AllowBackorder {
			s.applyDeltaLocked(item.ItemRef, order.LocationID, -item.Qty, domain.MovementSale, order.ID, "oversell, clamped", order.CreatedAt)
			s.flagInventoryLocked(item.ItemRef, order.LocationID)
			continue
		}
		s.applyDeltaLocked(item.ItemRef, order.LocationID, -item.Qty, domain.MovementSale, order.ID, "", order.CreatedAt)
	}

	if order.CustomerID != "" {
		if customer, ok := s.customers[order.CustomerID]; ok {
			customer.TotalSpentCents += order.TotalCents
			customer.TotalOrders++
			customer.LoyaltyPoints += order.TotalCents / 100
			s.customers[order.CustomerID] = customer
		}
	}

	orderCopy := cloneOrder(&order)
	s.ordersByID[order.ID] = orderCopy
	s.ordersByToken[order.OrderToken] = orderCopy
	return cloneOrder(orderCopy), nil
}

func (s *Store) AddOrderPayment(_ context.Context, orderID string, payment domain.Payment) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.ordersByID[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if order.Status != domain.OrderStatusLayaway {
		return nil, store.ErrInvalidOrder
	}
	if payment.AmountCents < 1 {
		return nil, store.ErrInvalidOrder
	}
	if order.PaidCents+payment.AmountCents > order.TotalCents {
		return nil, store.ErrInvalidOrder
	}

	now := time.Now().UTC()
	if payment.ID == "" {
		payment.ID = xid.New("pay")
	}
	payment.OrderID = order.ID
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	if payment.Status == "" {
		payment.Status = domain.PaymentStatusPaid
	}

	order.Payments = append(order.Payments, payment)
	order.PaidCents += payment.AmountCents
	if order.PaidCents >= order.TotalCents {
		order.PaymentStatus = domain.PaymentStatusPaid
		order.Status = domain.OrderStatusCompleted
		order.CompletedAt = &now
	} else {
		order.PaymentStatus = domain.PaymentStatusPartial
	}

	return cloneOrder(order), nil
}

func (s *Store) RefundOrder(_ context.Context, orderID string, reason string, at time.Time) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.ordersByID[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if order.Status != domain.OrderStatusCompleted {
		return nil, store.ErrInvalidOrder
	}

	for _, item := range order.Items {
		notes := "refund restock"
		if reason != "" {
			notes = "refund restock: " + reason
		}
		s.applyDeltaLocked(item.ItemRef, order.LocationID, item.Qty, domain.MovementReturn, order.ID, notes, at)
	}

	order.Status = domain.OrderStatusRefunded
	order.PaymentStatus = domain.PaymentStatusRefunded
	return cloneOrder(order), nil
}

func (s *Store) CancelOrder(_ context.Context, orderID string, reason string, at time.Time) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.ordersByID[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if order.Status != domain.OrderStatusLayaway {
		return nil, store.ErrInvalidOrder
	}

	for _, item := range order.Items {
		notes := "layaway cancel restock"
		if reason != "" {
			notes = "layaway cancel restock: " + reason
		}
		s.applyDeltaLocked(item.ItemRef, order.LocationID, item.Qty, domain.MovementReturn, order.ID, notes, at)
	}

	order.Status = domain.OrderStatusCancelled
	return cloneOrder(order), nil
}

func (s *Store) ListOrdersBetween(_ context.Context, locationID string, from time.Time, to time.Time) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Order, 0, 64)
	for _, order := range s.ordersByID {
		if locationID != "" && order.LocationID != locationID {
			continue
		}
		if order.CreatedAt.Before(from) || !order.CreatedAt.Before(to) {
			continue
		}
		result = append(result, *cloneOrder(order))
	}
	slices.SortFunc(result, func(a, b domain.Order) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(customer.Name) == "" {
		return nil, store.ErrInvalidOrder
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	s.customers[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(supplier.Name) == "" {
		return nil, store.ErrInvalidOrder
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}
	s.suppliersByID[supplier.ID] = supplier
	created := supplier
	return &created, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliersByID))
	for _, sup := range s.suppliersByID {
		suppliers = append(suppliers, sup)
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int { return cmpString(a.Name, b.Name) })
	return suppliers, nil
}

func (s *Store) CreatePurchaseOrder(_ context.Context, po domain.PurchaseOrder) (*domain.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if po.SupplierID == "" || len(po.Items) == 0 {
		return nil, store.ErrInvalidOrder
	}
	if _, ok := s.suppliersByID[po.SupplierID]; !ok {
		return nil, store.ErrNotFound
	}
	if _, ok := s.locations[po.LocationID]; !ok {
		return nil, store.ErrNotFound
	}
	for _, item := range po.Items {
		if item.ItemRef == "" || item.Qty < 1 {
			return nil, store.ErrInvalidOrder
		}
	}

	if po.ID == "" {
		po.ID = xid.New("po")
	}
	if po.CreatedAt.IsZero() {
		po.CreatedAt = time.Now().UTC()
	}
	po.Status = domain.PurchaseOrderDraft
	s.purchaseOrdersByID[po.ID] = po
	created := clonePurchaseOrder(po)
	return &created, nil
}

func (s *Store) GetPurchaseOrderByID(_ context.Context, purchaseOrderID string) (*domain.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	po, ok := s.purchaseOrdersByID[purchaseOrderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copyPO := clonePurchaseOrder(po)
	return &copyPO, nil
}

func (s *Store) ListPurchaseOrders(_ context.Context, locationID string, status string, limit int) ([]domain.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	result := make([]domain.PurchaseOrder, 0, limit)
	for _, po := range s.purchaseOrdersByID {
		if locationID != "" && po.LocationID != locationID {
			continue
		}
		if status != "" && po.Status != status {
			continue
		}
		result = append(result, clonePurchaseOrder(po))
	}
	slices.SortFunc(result, func(a, b domain.PurchaseOrder) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) MarkPurchaseOrderSent(_ context.Context, purchaseOrderID string, at time.Time) (*domain.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	po, ok := s.purchaseOrdersByID[purchaseOrderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if po.Status != domain.PurchaseOrderDraft {
		return nil, store.ErrInvalidOrder
	}

	po.Status = domain.PurchaseOrderSent
	po.SentAt = &at
	s.purchaseOrdersByID[po.ID] = po
	copyPO := clonePurchaseOrder(po)
	return &copyPO, nil
}

func (s *Store) ReceivePurchaseOrder(_ context.Context, purchaseOrderID string, receivedBy string, at time.Time) (*domain.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	po, ok := s.purchaseOrdersByID[purchaseOrderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if po.Status != domain.PurchaseOrderSent {
		return nil, store.ErrInvalidOrder
	}

	for _, item := range po.Items {
		s.applyDeltaLocked(item.ItemRef, po.LocationID, item.Qty, domain.MovementPurchase, po.ID, "purchase order receipt", at)
	}

	po.Status = domain.PurchaseOrderReceived
	po.ReceivedAt = &at
	po.ReceivedBy = receivedBy
	s.purchaseOrdersByID[po.ID] = po
	copyPO := clonePurchaseOrder(po)
	return &copyPO, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, locationID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	result := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0 && len(result) < limit; i-- {
		entry := s.auditLogs[i]
		if locationID != "" && entry.LocationID != locationID {
			continue
		}
		if entry.CreatedAt.Before(from) || entry.CreatedAt.After(to) {
			continue
		}
		result = append(result, entry)
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" || user.Password == "" || user.Role == "" {
		return store.ErrInvalidOrder
	}
	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrInvalidOrder
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int { return cmpString(a.Username, b.Username) })
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cloneOrder(order *domain.Order) *domain.Order {
	copyOrder := *order
	copyOrder.Items = make([]domain.OrderItem, len(order.Items))
	copy(copyOrder.Items, order.Items)
	copyOrder.Payments = make([]domain.Payment, len(order.Payments))
	copy(copyOrder.Payments, order.Payments)
	return &copyOrder
}

func clonePurchaseOrder(po domain.PurchaseOrder) domain.PurchaseOrder {
	copyPO := po
	copyPO.Items = make([]domain.PurchaseOrderItem, len(po.Items))
	copy(copyPO.Items, po.Items)
	return copyPO
}

func cmpString(a string, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

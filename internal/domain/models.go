package domain

import "time"

type Product struct {
	ID                string  `json:"id"`
	SKU               string  `json:"sku"`
	Name              string  `json:"name"`
	Category          string  `json:"category"`
	CostCents         int64   `json:"cost_cents"`
	PriceCents        int64   `json:"price_cents"`
	TaxRatePercent    float64 `json:"tax_rate_percent"`
	LowStockThreshold int     `json:"low_stock_threshold"`
	ReorderQty        int     `json:"reorder_qty"`
	SupplierID        string  `json:"supplier_id,omitempty"`
	AllowBackorder    bool    `json:"allow_backorder"`
	Active            bool    `json:"active"`
}

// Variant overrides are pointers on purpose: nil inherits the product value,
// an explicit zero does not. Collapsing the two silently drops tax.
type Variant struct {
	ID             string   `json:"id"`
	ProductID      string   `json:"product_id"`
	SKU            string   `json:"sku"`
	Name           string   `json:"name"`
	CostCents      *int64   `json:"cost_cents,omitempty"`
	PriceCents     *int64   `json:"price_cents,omitempty"`
	TaxRatePercent *float64 `json:"tax_rate_percent,omitempty"`
	Active         bool     `json:"active"`
}

type Location struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type InventoryRecord struct {
	ItemRef     string    `json:"item_ref"`
	LocationID  string    `json:"location_id"`
	Quantity    int       `json:"quantity"`
	ReservedQty int       `json:"reserved_qty"`
	Flagged     bool      `json:"flagged"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Available is on-hand minus reserved, never reported below zero.
func (r InventoryRecord) Available() int {
	available := r.Quantity - r.ReservedQty
	if available < 0 {
		return 0
	}
	return available
}

const (
	MovementSale       = "sale"
	MovementAdjustment = "adjustment"
	MovementDamage     = "damage"
	MovementReturn     = "return"
	MovementPurchase   = "purchase"
	MovementInitial    = "initial"
)

// StockMovement is the append-only audit trail behind every quantity change.
// The delta recorded is always the requested delta, even when the inventory
// record itself was clamped at zero, so reconciliation can detect drift.
type StockMovement struct {
	ID         string    `json:"id"`
	ItemRef    string    `json:"item_ref"`
	LocationID string    `json:"location_id"`
	Type       string    `json:"type"`
	QtyDelta   int       `json:"qty_delta"`
	Reference  string    `json:"reference,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

const (
	OrderStatusCompleted = "completed"
	OrderStatusLayaway   = "layaway"
	OrderStatusCancelled = "cancelled"
	OrderStatusRefunded  = "refunded"
)

const (
	PaymentStatusPending  = "pending"
	PaymentStatusPartial  = "partial"
	PaymentStatusPaid     = "paid"
	PaymentStatusRefunded = "refunded"
)

type Order struct {
	ID             string     `json:"id"`
	OrderNumber    string     `json:"order_number"`
	OrderToken     string     `json:"order_token"`
	LocationID     string     `json:"location_id"`
	CustomerID     string     `json:"customer_id,omitempty"`
	Status         string     `json:"status"`
	PaymentStatus  string     `json:"payment_status"`
	SubtotalCents  int64      `json:"subtotal_cents"`
	DiscountCents  int64      `json:"discount_cents"`
	TaxCents       int64      `json:"tax_cents"`
	TotalCents     int64      `json:"total_cents"`
	PaidCents      int64      `json:"paid_cents"`
	ChangeCents    int64      `json:"change_cents"`
	LayawayName    string     `json:"layaway_name,omitempty"`
	LayawayPhone   string     `json:"layaway_phone,omitempty"`
	LayawayDueDate *time.Time `json:"layaway_due_date,omitempty"`
	DepositPercent float64    `json:"deposit_percent,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Items          []OrderItem `json:"items"`
	Payments       []Payment   `json:"payments"`
}

// OrderItem is a snapshot taken at sale time. It deliberately carries its own
// copy of name/sku/price/cost so later catalog edits never move history.
type OrderItem struct {
	ID             string  `json:"id"`
	OrderID        string  `json:"order_id"`
	ItemRef        string  `json:"item_ref"`
	ProductID      string  `json:"product_id"`
	VariantID      string  `json:"variant_id,omitempty"`
	Name           string  `json:"name"`
	SKU            string  `json:"sku"`
	Category       string  `json:"category"`
	Qty            int     `json:"qty"`
	UnitPriceCents int64   `json:"unit_price_cents"`
	UnitCostCents  int64   `json:"unit_cost_cents"`
	DiscountCents  int64   `json:"discount_cents"`
	TaxRatePercent float64 `json:"tax_rate_percent"`
	TaxCents       int64   `json:"tax_cents"`
	LineTotalCents int64   `json:"line_total_cents"`
}

type Payment struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	Method      string    `json:"method"`
	AmountCents int64     `json:"amount_cents"`
	Reference   string    `json:"reference,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

type Customer struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Phone           string    `json:"phone,omitempty"`
	TotalSpentCents int64     `json:"total_spent_cents"`
	TotalOrders     int64     `json:"total_orders"`
	LoyaltyPoints   int64     `json:"loyalty_points"`
	CreatedAt       time.Time `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type ProductCreateRequest struct {
	SKU               string  `json:"sku"`
	Name              string  `json:"name"`
	Category          string  `json:"category"`
	CostCents         int64   `json:"cost_cents"`
	PriceCents        int64   `json:"price_cents"`
	TaxRatePercent    float64 `json:"tax_rate_percent"`
	LowStockThreshold int     `json:"low_stock_threshold"`
	ReorderQty        int     `json:"reorder_qty"`
	SupplierID        string  `json:"supplier_id"`
	AllowBackorder    bool    `json:"allow_backorder"`
	InitialStock      int     `json:"initial_stock"`
	LocationID        string  `json:"location_id"`
}

type VariantCreateRequest struct {
	ProductID      string   `json:"product_id"`
	SKU            string   `json:"sku"`
	Name           string   `json:"name"`
	CostCents      *int64   `json:"cost_cents,omitempty"`
	PriceCents     *int64   `json:"price_cents,omitempty"`
	TaxRatePercent *float64 `json:"tax_rate_percent,omitempty"`
}

type CheckoutItem struct {
	ProductID      string `json:"product_id"`
	VariantID      string `json:"variant_id,omitempty"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents,omitempty"`
	UnitCostCents  int64  `json:"unit_cost_cents,omitempty"`
	DiscountCents  int64  `json:"discount_cents,omitempty"`
}

type PaymentInput struct {
	Method      string `json:"method"`
	AmountCents int64  `json:"amount_cents"`
	Reference   string `json:"reference,omitempty"`
}

type LayawayInfo struct {
	CustomerName   string `json:"customer_name"`
	CustomerPhone  string `json:"customer_phone"`
	DueDate        string `json:"due_date,omitempty"`
	DepositPercent float64 `json:"deposit_percent,omitempty"`
}

type CheckoutRequest struct {
	OrderToken         string         `json:"order_token"`
	CustomerID         string         `json:"customer_id,omitempty"`
	LocationID         string         `json:"location_id"`
	Items              []CheckoutItem `json:"items"`
	OrderDiscountCents int64          `json:"order_discount_cents"`
	Payments           []PaymentInput `json:"payments"`
	Layaway            *LayawayInfo   `json:"layaway,omitempty"`
}

type CheckoutResponse struct {
	OrderID       string `json:"order_id"`
	OrderNumber   string `json:"order_number"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	SubtotalCents int64  `json:"subtotal_cents"`
	DiscountCents int64  `json:"discount_cents"`
	TaxCents      int64  `json:"tax_cents"`
	TotalCents    int64  `json:"total_cents"`
	PaidCents     int64  `json:"paid_cents"`
	ChangeCents   int64  `json:"change_cents"`
	Duplicate     bool   `json:"duplicate"`
	CreatedAt     string `json:"created_at"`
}

type LayawayPaymentRequest struct {
	OrderID     string `json:"order_id"`
	Method      string `json:"method"`
	AmountCents int64  `json:"amount_cents"`
	Reference   string `json:"reference,omitempty"`
}

type AvailabilityResponse struct {
	ItemRef    string `json:"item_ref"`
	LocationID string `json:"location_id"`
	Quantity   int    `json:"quantity"`
	Reserved   int    `json:"reserved"`
	Available  int    `json:"available"`
	Flagged    bool   `json:"flagged"`
}

type StockAdjustmentRequest struct {
	ItemRef    string `json:"item_ref"`
	LocationID string `json:"location_id"`
	QtyDelta   int    `json:"qty_delta"`
	Type       string `json:"type"`
	Notes      string `json:"notes,omitempty"`
}

type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type SupplierCreateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

const (
	PurchaseOrderDraft    = "draft"
	PurchaseOrderSent     = "sent"
	PurchaseOrderReceived = "received"
)

type PurchaseOrderItem struct {
	ItemRef   string `json:"item_ref"`
	Qty       int    `json:"qty"`
	CostCents int64  `json:"cost_cents"`
}

type PurchaseOrder struct {
	ID         string              `json:"id"`
	LocationID string              `json:"location_id"`
	SupplierID string              `json:"supplier_id"`
	Status     string              `json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
	SentAt     *time.Time          `json:"sent_at,omitempty"`
	ReceivedAt *time.Time          `json:"received_at,omitempty"`
	ReceivedBy string              `json:"received_by,omitempty"`
	Items      []PurchaseOrderItem `json:"items"`
}

type PurchaseOrderCreateRequest struct {
	LocationID string              `json:"location_id"`
	SupplierID string              `json:"supplier_id"`
	Items      []PurchaseOrderItem `json:"items"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	LocationID    string    `json:"location_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

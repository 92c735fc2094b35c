package store

import (
	"context"
	"errors"
	"time"

	"butikpos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidOrder      = errors.New("invalid order")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("inventory conflict")
)

// InventoryAdjustment is one requested quantity change against the ledger.
// The movement row always records QtyDelta as requested; the inventory record
// itself is clamped at zero.
type InventoryAdjustment struct {
	ItemRef    string
	LocationID string
	QtyDelta   int
	Type       string
	Reference  string
	Notes      string
}

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	CreateVariant(ctx context.Context, variant domain.Variant) (*domain.Variant, error)
	GetVariantsByIDs(ctx context.Context, ids []string) (map[string]domain.Variant, error)

	ListLocations(ctx context.Context) ([]domain.Location, error)
	GetLocation(ctx context.Context, id string) (*domain.Location, error)

	GetInventory(ctx context.Context, itemRef string, locationID string) (*domain.InventoryRecord, error)
	AdjustInventory(ctx context.Context, adj InventoryAdjustment) (*domain.InventoryRecord, error)
	ListStockMovements(ctx context.Context, itemRef string, locationID string, limit int) ([]domain.StockMovement, error)

	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	FindOrderByToken(ctx context.Context, token string) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	AddOrderPayment(ctx context.Context, orderID string, payment domain.Payment) (*domain.Order, error)
	RefundOrder(ctx context.Context, orderID string, reason string, at time.Time) (*domain.Order, error)
	CancelOrder(ctx context.Context, orderID string, reason string, at time.Time) (*domain.Order, error)
	ListOrdersBetween(ctx context.Context, locationID string, from time.Time, to time.Time) ([]domain.Order, error)

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)

	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	CreatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) (*domain.PurchaseOrder, error)
	GetPurchaseOrderByID(ctx context.Context, purchaseOrderID string) (*domain.PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context, locationID string, status string, limit int) ([]domain.PurchaseOrder, error)
	MarkPurchaseOrderSent(ctx context.Context, purchaseOrderID string, at time.Time) (*domain.PurchaseOrder, error)
	ReceivePurchaseOrder(ctx context.Context, purchaseOrderID string, receivedBy string, at time.Time) (*domain.PurchaseOrder, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, locationID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

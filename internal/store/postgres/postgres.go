package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"butikpos/backend/internal/domain"
	"butikpos/backend/internal/store"
	"butikpos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx so loaders can run inside
// or outside a transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const productColumns = `id, sku, name, category, cost_cents, price_cents, tax_rate_percent,
	low_stock_threshold, reorder_qty, COALESCE(supplier_id, ''), allow_backorder, active`

func scanProduct(row interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Category, &p.CostCents, &p.PriceCents, &p.TaxRatePercent,
		&p.LowStockThreshold, &p.ReorderQty, &p.SupplierID, &p.AllowBackorder, &p.Active)
	return p, err
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE active = true
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.SKU == "" || product.Name == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidOrder
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	product.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (
			id, sku, name, category, cost_cents, price_cents, tax_rate_percent,
			low_stock_threshold, reorder_qty, supplier_id, allow_backorder, active,
			created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now(),now())
	`, product.ID, product.SKU, product.Name, product.Category, product.CostCents, product.PriceCents,
		product.TaxRatePercent, product.LowStockThreshold, product.ReorderQty, nullIfEmpty(product.SupplierID),
		product.AllowBackorder, product.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidOrder
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Store) CreateVariant(ctx context.Context, variant domain.Variant) (*domain.Variant, error) {
	if variant.ProductID == "" || variant.SKU == "" || variant.Name == "" {
		return nil, store.ErrInvalidOrder
	}
	if variant.ID == "" {
		variant.ID = xid.New("var")
	}
	variant.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO variants (id, product_id, sku, name, cost_cents, price_cents, tax_rate_percent, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
	`, variant.ID, variant.ProductID, variant.SKU, variant.Name,
		nullInt64(variant.CostCents), nullInt64(variant.PriceCents), nullFloat64(variant.TaxRatePercent), variant.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidOrder
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	created := variant
	return &created, nil
}

func (s *Store) GetVariantsByIDs(ctx context.Context, ids []string) (map[string]domain.Variant, error) {
	result := make(map[string]domain.Variant, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, sku, name, cost_cents, price_cents, tax_rate_percent, active
		FROM variants
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var v domain.Variant
		var cost, price sql.NullInt64
		var tax sql.NullFloat64
		if err := rows.Scan(&v.ID, &v.ProductID, &v.SKU, &v.Name, &cost, &price, &tax, &v.Active); err != nil {
			return nil, err
		}
		if cost.Valid {
			val := cost.Int64
			v.CostCents = &val
		}
		if price.Valid {
			val := price.Int64
			v.PriceCents = &val
		}
		if tax.Valid {
			val := tax.Float64
			v.TaxRatePercent = &val
		}
		result[v.ID] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Store) ListLocations(ctx context.Context) ([]domain.Location, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at
		FROM locations
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locations := make([]domain.Location, 0, 8)
	for rows.Next() {
		var loc domain.Location
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.CreatedAt); err != nil {
			return nil, err
		}
		loc.CreatedAt = loc.CreatedAt.UTC()
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return locations, nil
}

func (s *Store) GetLocation(ctx context.Context, id string) (*domain.Location, error) {
	var loc domain.Location
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_at
		FROM locations
		WHERE id = $1
	`, id).Scan(&loc.ID, &loc.Name, &loc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	loc.CreatedAt = loc.CreatedAt.UTC()
	return &loc, nil
}

func (s *Store) GetInventory(ctx context.Context, itemRef string, locationID string) (*domain.InventoryRecord, error) {
	return getInventory(ctx, s.db, itemRef, locationID)
}

func getInventory(ctx context.Context, q querier, itemRef string, locationID string) (*domain.InventoryRecord, error) {
	var rec domain.InventoryRecord
	err := q.QueryRowContext(ctx, `
		SELECT item_ref, location_id, quantity, reserved_qty, flagged, updated_at
		FROM inventory_records
		WHERE item_ref = $1 AND location_id = $2
	`, itemRef, locationID).Scan(&rec.ItemRef, &rec.LocationID, &rec.Quantity, &rec.ReservedQty, &rec.Flagged, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

// AdjustInventory applies one ledger adjustment inside a serializable
// transaction. The record quantity is clamped at zero; the movement row always
// keeps the requested delta.
func (s *Store) AdjustInventory(ctx context.Context, adj store.InventoryAdjustment) (*domain.InventoryRecord, error) {
	if adj.ItemRef == "" || adj.Type == "" {
		return nil, store.ErrInvalidOrder
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := assertLocationExists(ctx, tx, adj.LocationID); err != nil {
		return nil, err
	}

	rec, err := applyDeltaTx(ctx, tx, adj)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

func assertLocationExists(ctx context.Context, q querier, locationID string) error {
	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM locations WHERE id = $1)`, locationID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return nil
}

// applyDeltaTx locks the inventory row, clamps the resulting quantity at zero
// and records the movement with the requested delta. First touch of an item at
// a location creates the row.
func applyDeltaTx(ctx context.Context, tx *sql.Tx, adj store.InventoryAdjustment) (*domain.InventoryRecord, error) {
	now := time.Now().UTC()

	var rec domain.InventoryRecord
	err := tx.QueryRowContext(ctx, `
		SELECT item_ref, location_id, quantity, reserved_qty, flagged
		FROM inventory_records
		WHERE item_ref = $1 AND location_id = $2
		FOR UPDATE
	`, adj.ItemRef, adj.LocationID).Scan(&rec.ItemRef, &rec.LocationID, &rec.Quantity, &rec.ReservedQty, &rec.Flagged)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		rec = domain.InventoryRecord{ItemRef: adj.ItemRef, LocationID: adj.LocationID}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO inventory_records (item_ref, location_id, quantity, reserved_qty, flagged, updated_at)
			VALUES ($1,$2,0,0,false,$3)
		`, adj.ItemRef, adj.LocationID, now); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	newQty := rec.Quantity + adj.QtyDelta
	if newQty < 0 {
		newQty = 0
	}
	rec.Quantity = newQty
	rec.UpdatedAt = now

	if _, err := tx.ExecContext(ctx, `
		UPDATE inventory_records
		SET quantity = $3, updated_at = $4
		WHERE item_ref = $1 AND location_id = $2
	`, adj.ItemRef, adj.LocationID, newQty, now); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO stock_movements (id, item_ref, location_id, type, qty_delta, reference, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, xid.New("mov"), adj.ItemRef, adj.LocationID, adj.Type, adj.QtyDelta, nullIfEmpty(adj.Reference), nullIfEmpty(adj.Notes), now); err != nil {
		return nil, err
	}

	return &rec, nil
}

func flagInventoryTx(ctx context.Context, tx *sql.Tx, itemRef string, locationID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE inventory_records
		SET flagged = true, updated_at = now()
		WHERE item_ref = $1 AND location_id = $2
	`, itemRef, locationID)
	return err
}

func (s *Store) ListStockMovements(ctx context.Context, itemRef string, locationID string, limit int) ([]domain.StockMovement, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, item_ref, location_id, type, qty_delta, COALESCE(reference, ''), COALESCE(notes, ''), created_at
		FROM stock_movements
		WHERE ($1 = '' OR item_ref = $1)
		  AND ($2 = '' OR location_id = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, itemRef, locationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := make([]domain.StockMovement, 0, limit)
	for rows.Next() {
		var m domain.StockMovement
		if err := rows.Scan(&m.ID, &m.ItemRef, &m.LocationID, &m.Type, &m.QtyDelta, &m.Reference, &m.Notes, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.CreatedAt = m.CreatedAt.UTC()
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return movements, nil
}

// CreateOrder persists the order, its items, its payments and all stock
// deductions in one serializable transaction, so a crash can never leave a
// recorded sale without its ledger movements. The order token makes the call
// idempotent: a replay returns the stored order untouched.
func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if strings.TrimSpace(order.OrderToken) == "" || len(order.Items) == 0 {
		return nil, store.ErrInvalidOrder
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if existing, err := findOrderByToken(ctx, tx, order.OrderToken); err == nil {
		return existing, tx.Commit()
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if err := assertLocationExists(ctx, tx, order.LocationID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.OrderNumber == "" {
		number, err := nextOrderNumber(ctx, tx, order.CreatedAt)
		if err != nil {
			return nil, err
		}
		order.OrderNumber = number
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, order_number, order_token, location_id, customer_id, status, payment_status,
			subtotal_cents, discount_cents, tax_cents, total_cents, paid_cents, change_cents,
			layaway_name, layaway_phone, layaway_due_date, deposit_percent, created_at, completed_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	`, order.ID, order.OrderNumber, order.OrderToken, order.LocationID, nullIfEmpty(order.CustomerID),
		order.Status, order.PaymentStatus, order.SubtotalCents, order.DiscountCents, order.TaxCents,
		order.TotalCents, order.PaidCents, order.ChangeCents, nullIfEmpty(order.LayawayName),
		nullIfEmpty(order.LayawayPhone), nullTime(order.LayawayDueDate), order.DepositPercent,
		order.CreatedAt, nullTime(order.CompletedAt))
	if err != nil {
		if isUniqueViolation(err) {
			// Token raced in between the lookup and the insert; surface the winner.
			if existing, lookupErr := findOrderByToken(ctx, tx, order.OrderToken); lookupErr == nil {
				return existing, tx.Commit()
			}
			return nil, store.ErrConflict
		}
		return nil, err
	}

	backorder, err := backorderByProductID(ctx, tx, order.Items)
	if err != nil {
		return nil, err
	}

	for i := range order.Items {
		item := &order.Items[i]
		if item.ID == "" {
			item.ID = xid.New("item")
		}
		item.OrderID = order.ID

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (
				id, order_id, item_ref, product_id, variant_id, name, sku, category, qty,
				unit_price_cents, unit_cost_cents, discount_cents, tax_rate_percent, tax_cents, line_total_cents
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		`, item.ID, item.OrderID, item.ItemRef, item.ProductID, nullIfEmpty(item.VariantID), item.Name,
			item.SKU, item.Category, item.Qty, item.UnitPriceCents, item.UnitCostCents, item.DiscountCents,
			item.TaxRatePercent, item.TaxCents, item.LineTotalCents); err != nil {
			return nil, err
		}

		adj := store.InventoryAdjustment{
			ItemRef:    item.ItemRef,
			LocationID: order.LocationID,
			QtyDelta:   -item.Qty,
			Type:       domain.MovementSale,
			Reference:  order.ID,
		}
		before, err := getInventoryForUpdate(ctx, tx, item.ItemRef, order.LocationID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		available := 0
		if before != nil {
			available = before.Available()
		}
		if available < item.Qty && !backorder[item.ProductID] {
			adj.Notes = "oversell, clamped"
		}
		if _, err := applyDeltaTx(ctx, tx, adj); err != nil {
			return nil, err
		}
		if adj.Notes != "" {
			if err := flagInventoryTx(ctx, tx, item.ItemRef, order.LocationID); err != nil {
				return nil, err
			}
		}
	}

	for i := range order.Payments {
		payment := &order.Payments[i]
		if payment.ID == "" {
			payment.ID = xid.New("pay")
		}
		payment.OrderID = order.ID
		if payment.CreatedAt.IsZero() {
			payment.CreatedAt = now
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO payments (id, order_id, method, amount_cents, reference, status, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, payment.ID, payment.OrderID, payment.Method, payment.AmountCents, nullIfEmpty(payment.Reference),
			payment.Status, payment.CreatedAt); err != nil {
			return nil, err
		}
	}

	if order.CustomerID != "" {
		if _, err := tx.ExecContext(ctx, `
			UPDATE customers
			SET total_spent_cents = total_spent_cents + $2,
			    total_orders = total_orders + 1,
			    loyalty_points = loyalty_points + $3
			WHERE id = $1
		`, order.CustomerID, order.TotalCents, order.TotalCents/100); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := order
	return &created, nil
}

func getInventoryForUpdate(ctx context.Context, tx *sql.Tx, itemRef string, locationID string) (*domain.InventoryRecord, error) {
	var rec domain.InventoryRecord
	err := tx.QueryRowContext(ctx, `
		SELECT item_ref, location_id, quantity, reserved_qty, flagged, updated_at
		FROM inventory_records
		WHERE item_ref = $1 AND location_id = $2
		FOR UPDATE
	`, itemRef, locationID).Scan(&rec.ItemRef, &rec.LocationID, &rec.Quantity, &rec.ReservedQty, &rec.Flagged, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func backorderByProductID(ctx context.Context, q querier, items []domain.OrderItem) (map[string]bool, error) {
	ids := make([]string, 0, len(items))
	seen := map[string]bool{}
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	result := make(map[string]bool, len(ids))
	rows, err := q.QueryContext(ctx, `SELECT id, allow_backorder FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var allow bool
		if err := rows.Scan(&id, &allow); err != nil {
			return nil, err
		}
		result[id] = allow
	}
	return result, rows.Err()
}

func nextOrderNumber(ctx context.Context, q querier, at time.Time) (string, error) {
	dayStart := time.Date(at.UTC().Year(), at.UTC().Month(), at.UTC().Day(), 0, 0, 0, 0, time.UTC)
	var count int64
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM orders WHERE created_at >= $1 AND created_at < $2
	`, dayStart, dayStart.AddDate(0, 0, 1)).Scan(&count)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD-%s-%04d", at.UTC().Format("20060102"), count+1), nil
}

func (s *Store) FindOrderByToken(ctx context.Context, token string) (*domain.Order, error) {
	return findOrderByToken(ctx, s.db, token)
}

func findOrderByToken(ctx context.Context, q querier, token string) (*domain.Order, error) {
	return loadOrderWhere(ctx, q, `order_token = $1`, token)
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return loadOrderWhere(ctx, s.db, `id = $1`, id)
}

const orderColumns = `id, order_number, order_token, location_id, COALESCE(customer_id, ''), status, payment_status,
	subtotal_cents, discount_cents, tax_cents, total_cents, paid_cents, change_cents,
	COALESCE(layaway_name, ''), COALESCE(layaway_phone, ''), layaway_due_date, deposit_percent, created_at, completed_at`

func scanOrder(row interface{ Scan(...any) error }) (domain.Order, error) {
	var o domain.Order
	var dueDate, completedAt sql.NullTime
	err := row.Scan(&o.ID, &o.OrderNumber, &o.OrderToken, &o.LocationID, &o.CustomerID, &o.Status, &o.PaymentStatus,
		&o.SubtotalCents, &o.DiscountCents, &o.TaxCents, &o.TotalCents, &o.PaidCents, &o.ChangeCents,
		&o.LayawayName, &o.LayawayPhone, &dueDate, &o.DepositPercent, &o.CreatedAt, &completedAt)
	if err != nil {
		return o, err
	}
	o.CreatedAt = o.CreatedAt.UTC()
	if dueDate.Valid {
		val := dueDate.Time.UTC()
		o.LayawayDueDate = &val
	}
	if completedAt.Valid {
		val := completedAt.Time.UTC()
		o.CompletedAt = &val
	}
	return o, nil
}

func loadOrderWhere(ctx context.Context, q querier, where string, args ...any) (*domain.Order, error) {
	row := q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+where, args...)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	orders := []domain.Order{order}
	if err := attachOrderChildren(ctx, q, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// attachOrderChildren loads items and payments for a batch of orders with two
// queries instead of two per order.
func attachOrderChildren(ctx context.Context, q querier, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, 0, len(orders))
	index := make(map[string]int, len(orders))
	for i := range orders {
		ids = append(ids, orders[i].ID)
		index[orders[i].ID] = i
		orders[i].Items = nil
		orders[i].Payments = nil
	}

	itemRows, err := q.QueryContext(ctx, `
		SELECT id, order_id, item_ref, product_id, COALESCE(variant_id, ''), name, sku, category, qty,
			unit_price_cents, unit_cost_cents, discount_cents, tax_rate_percent, tax_cents, line_total_cents
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id
	`, ids)
	if err != nil {
		return err
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item domain.OrderItem
		if err := itemRows.Scan(&item.ID, &item.OrderID, &item.ItemRef, &item.ProductID, &item.VariantID,
			&item.Name, &item.SKU, &item.Category, &item.Qty, &item.UnitPriceCents, &item.UnitCostCents,
			&item.DiscountCents, &item.TaxRatePercent, &item.TaxCents, &item.LineTotalCents); err != nil {
			return err
		}
		if i, ok := index[item.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return err
	}

	paymentRows, err := q.QueryContext(ctx, `
		SELECT id, order_id, method, amount_cents, COALESCE(reference, ''), status, created_at
		FROM payments
		WHERE order_id = ANY($1)
		ORDER BY created_at, id
	`, ids)
	if err != nil {
		return err
	}
	defer paymentRows.Close()

	for paymentRows.Next() {
		var payment domain.Payment
		if err := paymentRows.Scan(&payment.ID, &payment.OrderID, &payment.Method, &payment.AmountCents,
			&payment.Reference, &payment.Status, &payment.CreatedAt); err != nil {
			return err
		}
		payment.CreatedAt = payment.CreatedAt.UTC()
		if i, ok := index[payment.OrderID]; ok {
			orders[i].Payments = append(orders[i].Payments, payment)
		}
	}
	return paymentRows.Err()
}

// AddOrderPayment appends an installment to a layaway order, completing it
// once the running total reaches the order total. Overshoot is rejected.
func (s *Store) AddOrderPayment(ctx context.Context, orderID string, payment domain.Payment) (*domain.Order, error) {
	if payment.AmountCents < 1 {
		return nil, store.ErrInvalidOrder
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	var paid, total int64
	err = tx.QueryRowContext(ctx, `
		SELECT status, paid_cents, total_cents FROM orders WHERE id = $1 FOR UPDATE
	`, orderID).Scan(&status, &paid, &total)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if status != domain.OrderStatusLayaway {
		return nil, store.ErrInvalidOrder
	}
	if paid+payment.AmountCents > total {
		return nil, store.ErrInvalidOrder
	}

	now := time.Now().UTC()
	if payment.ID == "" {
		payment.ID = xid.New("pay")
	}
	payment.OrderID = orderID
	if payment.Status == "" {
		payment.Status = domain.PaymentStatusPaid
	}
	payment.CreatedAt = now

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO payments (id, order_id, method, amount_cents, reference, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, payment.ID, payment.OrderID, payment.Method, payment.AmountCents, nullIfEmpty(payment.Reference),
		payment.Status, payment.CreatedAt); err != nil {
		return nil, err
	}

	newPaid := paid + payment.AmountCents
	if newPaid >= total {
		if _, err := tx.ExecContext(ctx, `
			UPDATE orders
			SET paid_cents = $2, payment_status = $3, status = $4, completed_at = $5
			WHERE id = $1
		`, orderID, newPaid, domain.PaymentStatusPaid, domain.OrderStatusCompleted, now); err != nil {
			return nil, err
		}
	} else {
		if _, err := tx.ExecContext(ctx, `
			UPDATE orders
			SET paid_cents = $2, payment_status = $3
			WHERE id = $1
		`, orderID, newPaid, domain.PaymentStatusPartial); err != nil {
			return nil, err
		}
	}

	order, err := loadOrderWhere(ctx, tx, `id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	return order, tx.Commit()
}

// RefundOrder reverses a completed sale: items return to stock through
// "return" movements and the order flips to refunded.
func (s *Store) RefundOrder(ctx context.Context, orderID string, reason string, at time.Time) (*domain.Order, error) {
	return s.reverseOrder(ctx, orderID, reason, at, domain.OrderStatusCompleted, domain.OrderStatusRefunded, domain.PaymentStatusRefunded)
}

// CancelOrder releases a layaway before completion; the reserved stock goes
// back the same way a refund does.
func (s *Store) CancelOrder(ctx context.Context, orderID string, reason string, at time.Time) (*domain.Order, error) {
	return s.reverseOrder(ctx, orderID, reason, at, domain.OrderStatusLayaway, domain.OrderStatusCancelled, domain.PaymentStatusRefunded)
}

func (s *Store) reverseOrder(ctx context.Context, orderID string, reason string, at time.Time, fromStatus string, toStatus string, paymentStatus string) (*domain.Order, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	order, err := loadOrderWhere(ctx, tx, `id = $1 FOR UPDATE`, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != fromStatus {
		return nil, store.ErrInvalidOrder
	}

	for _, item := range order.Items {
		adj := store.InventoryAdjustment{
			ItemRef:    item.ItemRef,
			LocationID: order.LocationID,
			QtyDelta:   item.Qty,
			Type:       domain.MovementReturn,
			Reference:  order.ID,
			Notes:      reason,
		}
		if _, err := applyDeltaTx(ctx, tx, adj); err != nil {
			return nil, err
		}
	}

	if at.IsZero() {
		at = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $2, payment_status = $3, completed_at = $4 WHERE id = $1
	`, orderID, toStatus, paymentStatus, at); err != nil {
		return nil, err
	}

	updated, err := loadOrderWhere(ctx, tx, `id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	return updated, tx.Commit()
}

func (s *Store) ListOrdersBetween(ctx context.Context, locationID string, from time.Time, to time.Time) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE created_at >= $1 AND created_at < $2
		  AND ($3 = '' OR location_id = $3)
		ORDER BY created_at
	`, from, to, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, 64)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := attachOrderChildren(ctx, s.db, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" {
		return nil, store.ErrInvalidOrder
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, total_spent_cents, total_orders, loyalty_points, created_at)
		VALUES ($1,$2,$3,0,0,0,$4)
	`, customer.ID, customer.Name, nullIfEmpty(customer.Phone), customer.CreatedAt)
	if err != nil {
		return nil, err
	}

	created := customer
	return &created, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(phone, ''), total_spent_cents, total_orders, loyalty_points, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Phone, &c.TotalSpentCents, &c.TotalOrders, &c.LoyaltyPoints, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if strings.TrimSpace(supplier.Name) == "" {
		return nil, store.ErrInvalidOrder
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, phone, created_at)
		VALUES ($1,$2,$3,$4)
	`, supplier.ID, supplier.Name, nullIfEmpty(supplier.Phone), supplier.CreatedAt)
	if err != nil {
		return nil, err
	}

	created := supplier
	return &created, nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(phone, ''), created_at
		FROM suppliers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 16)
	for rows.Next() {
		var sup domain.Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.Phone, &sup.CreatedAt); err != nil {
			return nil, err
		}
		sup.CreatedAt = sup.CreatedAt.UTC()
		suppliers = append(suppliers, sup)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return suppliers, nil
}

func (s *Store) CreatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) (*domain.PurchaseOrder, error) {
	if po.SupplierID == "" || po.LocationID == "" || len(po.Items) == 0 {
		return nil, store.ErrInvalidOrder
	}
	if po.ID == "" {
		po.ID = xid.New("po")
	}
	po.Status = domain.PurchaseOrderDraft
	if po.CreatedAt.IsZero() {
		po.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := assertLocationExists(ctx, tx, po.LocationID); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO purchase_orders (id, location_id, supplier_id, status, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, po.ID, po.LocationID, po.SupplierID, po.Status, po.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	for _, item := range po.Items {
		if item.Qty < 1 {
			return nil, store.ErrInvalidOrder
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO purchase_order_items (purchase_order_id, item_ref, qty, cost_cents)
			VALUES ($1,$2,$3,$4)
		`, po.ID, item.ItemRef, item.Qty, item.CostCents); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := po
	return &created, nil
}

func (s *Store) GetPurchaseOrderByID(ctx context.Context, purchaseOrderID string) (*domain.PurchaseOrder, error) {
	return loadPurchaseOrder(ctx, s.db, purchaseOrderID, false)
}

func loadPurchaseOrder(ctx context.Context, q querier, purchaseOrderID string, forUpdate bool) (*domain.PurchaseOrder, error) {
	query := `
		SELECT id, location_id, supplier_id, status, created_at, sent_at, received_at, COALESCE(received_by, '')
		FROM purchase_orders
		WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var po domain.PurchaseOrder
	var sentAt, receivedAt sql.NullTime
	err := q.QueryRowContext(ctx, query, purchaseOrderID).Scan(
		&po.ID, &po.LocationID, &po.SupplierID, &po.Status, &po.CreatedAt, &sentAt, &receivedAt, &po.ReceivedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	po.CreatedAt = po.CreatedAt.UTC()
	if sentAt.Valid {
		val := sentAt.Time.UTC()
		po.SentAt = &val
	}
	if receivedAt.Valid {
		val := receivedAt.Time.UTC()
		po.ReceivedAt = &val
	}

	rows, err := q.QueryContext(ctx, `
		SELECT item_ref, qty, cost_cents
		FROM purchase_order_items
		WHERE purchase_order_id = $1
		ORDER BY item_ref
	`, purchaseOrderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.PurchaseOrderItem
		if err := rows.Scan(&item.ItemRef, &item.Qty, &item.CostCents); err != nil {
			return nil, err
		}
		po.Items = append(po.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &po, nil
}

func (s *Store) ListPurchaseOrders(ctx context.Context, locationID string, status string, limit int) ([]domain.PurchaseOrder, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id
		FROM purchase_orders
		WHERE ($1 = '' OR location_id = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, locationID, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pos := make([]domain.PurchaseOrder, 0, len(ids))
	for _, id := range ids {
		po, err := loadPurchaseOrder(ctx, s.db, id, false)
		if err != nil {
			return nil, err
		}
		pos = append(pos, *po)
	}
	return pos, nil
}

func (s *Store) MarkPurchaseOrderSent(ctx context.Context, purchaseOrderID string, at time.Time) (*domain.PurchaseOrder, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE purchase_orders
		SET status = $2, sent_at = $3
		WHERE id = $1 AND status = $4
	`, purchaseOrderID, domain.PurchaseOrderSent, at, domain.PurchaseOrderDraft)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Either missing or not in draft; disambiguate for the caller.
		if _, err := loadPurchaseOrder(ctx, s.db, purchaseOrderID, false); err != nil {
			return nil, err
		}
		return nil, store.ErrInvalidOrder
	}

	return loadPurchaseOrder(ctx, s.db, purchaseOrderID, false)
}

// ReceivePurchaseOrder marks a sent order received and restocks every line
// through "purchase" movements, all in one transaction.
func (s *Store) ReceivePurchaseOrder(ctx context.Context, purchaseOrderID string, receivedBy string, at time.Time) (*domain.PurchaseOrder, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	po, err := loadPurchaseOrder(ctx, tx, purchaseOrderID, true)
	if err != nil {
		return nil, err
	}
	if po.Status != domain.PurchaseOrderSent {
		return nil, store.ErrInvalidOrder
	}

	for _, item := range po.Items {
		adj := store.InventoryAdjustment{
			ItemRef:    item.ItemRef,
			LocationID: po.LocationID,
			QtyDelta:   item.Qty,
			Type:       domain.MovementPurchase,
			Reference:  po.ID,
		}
		if _, err := applyDeltaTx(ctx, tx, adj); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE purchase_orders
		SET status = $2, received_at = $3, received_by = $4
		WHERE id = $1
	`, purchaseOrderID, domain.PurchaseOrderReceived, at, receivedBy); err != nil {
		return nil, err
	}

	updated, err := loadPurchaseOrder(ctx, tx, purchaseOrderID, false)
	if err != nil {
		return nil, err
	}
	return updated, tx.Commit()
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, location_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.LocationID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType,
		entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, locationID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, location_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		  AND ($3 = '' OR location_id = $3)
		ORDER BY created_at DESC
		LIMIT $4
	`, from, to, locationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.LocationID, &entry.ActorUsername, &entry.ActorRole,
			&entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || user.Password == "" || user.Role == "" {
		return store.ErrInvalidOrder
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.CreatedAt = u.CreatedAt.UTC()
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username)), password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}

func nullInt64(val *int64) any {
	if val == nil {
		return nil
	}
	return *val
}

func nullFloat64(val *float64) any {
	if val == nil {
		return nil
	}
	return *val
}

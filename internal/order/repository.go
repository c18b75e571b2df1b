package order

import (
	"context"
	"database/sql"
	"errors"

	"restohub-be/internal/product"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Repository is the persistence gateway for orders and their items. Every
// method takes the caller's restaurant id and never touches another
// restaurant's rows.
type Repository interface {
	ListOrders(ctx context.Context, restaurantID int64, filter ListFilter) ([]*Order, error)
	GetOrder(ctx context.Context, restaurantID, orderID int64) (*Order, error)
	CreateOrder(ctx context.Context, o *Order) error

	// MutateOrder locks the order row, hands the order with its items to
	// fn and persists the result in the same transaction. Items with a
	// zero ID are inserted.
	MutateOrder(
		ctx context.Context,
		restaurantID, orderID int64,
		fn func(o *Order) error,
	) (*Order, error)

	// MutateItem locks the item's order, hands both to fn and persists the
	// item status plus any order status change atomically.
	MutateItem(
		ctx context.Context,
		restaurantID, itemID int64,
		fn func(o *Order, it *OrderItem) error,
	) (*Order, *OrderItem, error)

	DeleteOrder(ctx context.Context, restaurantID, orderID int64) error
	TableExists(ctx context.Context, restaurantID, tableID int64) (bool, error)
	WaiterExists(ctx context.Context, restaurantID, waiterID int64) (bool, error)
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const orderColumns = `id, restaurant_id, table_id, waiter_id, status, total_amount, version, created_at, updated_at`

func storageErr(op string, err error) error {
	return newError(KindStorage, op, err)
}

func (r *repository) ListOrders(ctx context.Context, restaurantID int64, filter ListFilter) ([]*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE restaurant_id = $1`
	args := []interface{}{restaurantID}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		query += ` AND status = ANY($2)`
		args = append(args, pq.Array(statuses))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list orders", err)
	}
	defer rows.Close()

	var (
		orders []*Order
		ids    []int64
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, storageErr("scan order", err)
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list orders", err)
	}

	if len(orders) == 0 {
		return []*Order{}, nil
	}

	items, err := fetchItems(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		if its, ok := items[o.ID]; ok {
			o.Items = its
		}
	}

	return orders, nil
}

func (r *repository) GetOrder(ctx context.Context, restaurantID, orderID int64) (*Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1 AND restaurant_id = $2
	`, orderID, restaurantID)

	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, newError(KindNotFound, "get order", ErrOrderNotFound)
	}
	if err != nil {
		return nil, storageErr("get order", err)
	}

	items, err := fetchItems(ctx, r.db, []int64{o.ID})
	if err != nil {
		return nil, err
	}
	if its, ok := items[o.ID]; ok {
		o.Items = its
	}

	return o, nil
}

func (r *repository) CreateOrder(ctx context.Context, o *Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin tx", err)
	}
	defer tx.Rollback()

	// 1. Insert order
	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (restaurant_id, table_id, waiter_id, status, total_amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, version, created_at, updated_at
	`,
		o.RestaurantID,
		o.TableID,
		o.WaiterID,
		o.Status,
		o.TotalAmount,
	).Scan(&o.ID, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return storageErr("insert order", err)
	}

	// 2. Insert items
	for _, it := range o.Items {
		it.OrderID = o.ID
		it.RestaurantID = o.RestaurantID
		if err := insertItem(ctx, tx, it); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit", err)
	}
	return nil
}

func (r *repository) MutateOrder(
	ctx context.Context,
	restaurantID, orderID int64,
	fn func(o *Order) error,
) (*Order, error) {

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("begin tx", err)
	}
	defer tx.Rollback()

	o, err := lockOrder(ctx, tx, restaurantID, orderID)
	if err != nil {
		return nil, err
	}

	if err := fn(o); err != nil {
		return nil, err
	}

	for _, it := range o.Items {
		if it.ID != 0 {
			continue
		}
		it.OrderID = o.ID
		it.RestaurantID = o.RestaurantID
		if err := insertItem(ctx, tx, it); err != nil {
			return nil, err
		}
	}

	if err := saveOrder(ctx, tx, o); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit", err)
	}
	return o, nil
}

func (r *repository) MutateItem(
	ctx context.Context,
	restaurantID, itemID int64,
	fn func(o *Order, it *OrderItem) error,
) (*Order, *OrderItem, error) {

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, storageErr("begin tx", err)
	}
	defer tx.Rollback()

	// The item is only visible through an order of the same restaurant.
	var orderID int64
	err = tx.QueryRowContext(ctx, `
		SELECT i.order_id
		FROM order_items i
		JOIN orders o ON o.id = i.order_id
		WHERE i.id = $1 AND o.restaurant_id = $2
	`, itemID, restaurantID).Scan(&orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, newError(KindNotFound, "find item", ErrItemNotFound)
	}
	if err != nil {
		return nil, nil, storageErr("find item", err)
	}

	o, err := lockOrder(ctx, tx, restaurantID, orderID)
	if err != nil {
		return nil, nil, err
	}

	var item *OrderItem
	for _, it := range o.Items {
		if it.ID == itemID {
			item = it
			break
		}
	}
	if item == nil {
		// deleted between the lookup and the lock
		return nil, nil, newError(KindNotFound, "find item", ErrItemNotFound)
	}

	prevStatus := o.Status
	if err := fn(o, item); err != nil {
		return nil, nil, err
	}

	err = tx.QueryRowContext(ctx, `
		UPDATE order_items
		SET status = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2
		RETURNING version, updated_at
	`, item.Status, item.ID).Scan(&item.Version, &item.UpdatedAt)
	if err != nil {
		return nil, nil, storageErr("update item", err)
	}

	if o.Status != prevStatus {
		if err := saveOrder(ctx, tx, o); err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, storageErr("commit", err)
	}
	return o, item, nil
}

func (r *repository) DeleteOrder(ctx context.Context, restaurantID, orderID int64) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM orders
		WHERE id = $1 AND restaurant_id = $2
	`, orderID, restaurantID)
	if err != nil {
		return storageErr("delete order", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storageErr("delete order", err)
	}
	if affected == 0 {
		return newError(KindNotFound, "delete order", ErrOrderNotFound)
	}
	return nil
}

func (r *repository) TableExists(ctx context.Context, restaurantID, tableID int64) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM tables WHERE id = $1 AND restaurant_id = $2)`, tableID, restaurantID)
}

func (r *repository) WaiterExists(ctx context.Context, restaurantID, waiterID int64) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1 AND restaurant_id = $2)`, waiterID, restaurantID)
}

func (r *repository) exists(ctx context.Context, query string, id, restaurantID int64) (bool, error) {
	var ok bool
	if err := r.db.QueryRowContext(ctx, query, id, restaurantID).Scan(&ok); err != nil {
		return false, storageErr("check reference", err)
	}
	return ok, nil
}

// lockOrder loads the order FOR UPDATE together with its items.
func lockOrder(ctx context.Context, q querier, restaurantID, orderID int64) (*Order, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1 AND restaurant_id = $2
		FOR UPDATE
	`, orderID, restaurantID)

	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, newError(KindNotFound, "lock order", ErrOrderNotFound)
	}
	if err != nil {
		return nil, storageErr("lock order", err)
	}

	items, err := fetchItems(ctx, q, []int64{o.ID})
	if err != nil {
		return nil, err
	}
	if its, ok := items[o.ID]; ok {
		o.Items = its
	}

	return o, nil
}

func saveOrder(ctx context.Context, q querier, o *Order) error {
	err := q.QueryRowContext(ctx, `
		UPDATE orders
		SET status = $1, table_id = $2, waiter_id = $3, total_amount = $4,
			version = version + 1, updated_at = NOW()
		WHERE id = $5
		RETURNING version, updated_at
	`,
		o.Status,
		o.TableID,
		o.WaiterID,
		o.TotalAmount,
		o.ID,
	).Scan(&o.Version, &o.UpdatedAt)
	if err != nil {
		return storageErr("update order", err)
	}
	return nil
}

func insertItem(ctx context.Context, q querier, it *OrderItem) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO order_items (restaurant_id, order_id, product_id, quantity, price, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, version, created_at, updated_at
	`,
		it.RestaurantID,
		it.OrderID,
		it.ProductID,
		it.Quantity,
		it.Price,
		it.Status,
	).Scan(&it.ID, &it.Version, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return storageErr("insert order item", err)
	}
	return nil
}

// fetchItems loads the items of the given orders, keyed by order id,
// each with its product when the product still exists.
func fetchItems(ctx context.Context, q querier, orderIDs []int64) (map[int64][]*OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT i.id, i.restaurant_id, i.order_id, i.product_id, i.quantity, i.price,
			i.status, i.version, i.created_at, i.updated_at,
			p.id, p.name, p.price, p.requires_production
		FROM order_items i
		LEFT JOIN products p ON p.id = i.product_id
		WHERE i.order_id = ANY($1)
		ORDER BY i.id ASC
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, storageErr("fetch items", err)
	}
	defer rows.Close()

	out := make(map[int64][]*OrderItem, len(orderIDs))
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, storageErr("scan item", err)
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("fetch items", err)
	}

	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(s scanner) (*Order, error) {
	var (
		o        Order
		tableID  sql.NullInt64
		waiterID sql.NullInt64
	)
	if err := s.Scan(
		&o.ID,
		&o.RestaurantID,
		&tableID,
		&waiterID,
		&o.Status,
		&o.TotalAmount,
		&o.Version,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	o.TableID = nullInt64Ptr(tableID)
	o.WaiterID = nullInt64Ptr(waiterID)
	o.Items = []*OrderItem{}
	return &o, nil
}

func scanItem(s scanner) (*OrderItem, error) {
	var (
		it           OrderItem
		productRef   sql.NullInt64
		pID          sql.NullInt64
		pName        sql.NullString
		pPrice       decimal.NullDecimal
		pRequiresPrd sql.NullBool
	)
	if err := s.Scan(
		&it.ID,
		&it.RestaurantID,
		&it.OrderID,
		&productRef,
		&it.Quantity,
		&it.Price,
		&it.Status,
		&it.Version,
		&it.CreatedAt,
		&it.UpdatedAt,
		&pID,
		&pName,
		&pPrice,
		&pRequiresPrd,
	); err != nil {
		return nil, err
	}

	it.ProductID = nullInt64Ptr(productRef)
	if pID.Valid {
		it.Product = &product.Product{
			ID:                 pID.Int64,
			RestaurantID:       it.RestaurantID,
			Name:               pName.String,
			Price:              pPrice.Decimal,
			RequiresProduction: pRequiresPrd.Bool,
		}
	}
	return &it, nil
}

func nullInt64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

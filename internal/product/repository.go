package product

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// Repository is the read side of the product catalog, always scoped to
// one restaurant.
type Repository interface {
	GetByIDs(ctx context.Context, restaurantID int64, ids []int64) (map[int64]*Product, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const productColumns = `id, restaurant_id, name, price, category, requires_production, stock`

// GetByIDs returns the restaurant's products among ids. Ids belonging to
// another restaurant are simply absent from the map.
func (r *repository) GetByIDs(ctx context.Context, restaurantID int64, ids []int64) (map[int64]*Product, error) {
	out := make(map[int64]*Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE restaurant_id = $1 AND id = ANY($2)
	`, restaurantID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(s scanner) (*Product, error) {
	var (
		p        Product
		category sql.NullString
	)
	if err := s.Scan(
		&p.ID,
		&p.RestaurantID,
		&p.Name,
		&p.Price,
		&category,
		&p.RequiresProduction,
		&p.Stock,
	); err != nil {
		return nil, err
	}
	if category.Valid {
		p.Category = &category.String
	}
	return &p, nil
}

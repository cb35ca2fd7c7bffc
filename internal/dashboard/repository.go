// Package dashboard serves the fixed aggregation endpoints. These queries
// are parameterized SQL written by hand; they never pass through the NLQ
// pipeline or its validator.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RevenuePoint is one day of the revenue trend.
type RevenuePoint struct {
	Day     time.Time `json:"day"`
	Revenue float64   `json:"revenue"`
	Orders  int64     `json:"orders"`
}

// ProductSales ranks one product by revenue.
type ProductSales struct {
	ProductID int64   `json:"productId"`
	Name      string  `json:"name"`
	Units     int64   `json:"units"`
	Revenue   float64 `json:"revenue"`
}

// Summary aggregates the whole store.
type Summary struct {
	TotalRevenue   float64 `json:"totalRevenue"`
	TotalOrders    int64   `json:"totalOrders"`
	TotalCustomers int64   `json:"totalCustomers"`
	AvgOrderValue  float64 `json:"avgOrderValue"`
}

// Repository issues the dashboard aggregation queries.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RevenueTrend returns per-day revenue for the trailing window.
func (r *Repository) RevenueTrend(ctx context.Context, days int) ([]RevenuePoint, error) {
	if days < 1 || days > 365 {
		days = 30
	}

	rows, err := r.pool.Query(ctx, `
		SELECT date_trunc('day', o.placed_at) AS day,
		       COALESCE(SUM(o.total), 0) AS revenue,
		       COUNT(*) AS orders
		FROM orders o
		WHERE o.placed_at >= now() - make_interval(days => $1)
		  AND o.status NOT IN ('cancelled', 'refunded')
		GROUP BY 1
		ORDER BY 1`, days)
	if err != nil {
		return nil, fmt.Errorf("querying revenue trend: %w", err)
	}
	defer rows.Close()

	var out []RevenuePoint
	for rows.Next() {
		var p RevenuePoint
		if err := rows.Scan(&p.Day, &p.Revenue, &p.Orders); err != nil {
			return nil, fmt.Errorf("scanning revenue point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// TopProducts returns the highest-revenue products.
func (r *Repository) TopProducts(ctx context.Context, limit int) ([]ProductSales, error) {
	if limit < 1 || limit > 100 {
		limit = 10
	}

	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.name,
		       COALESCE(SUM(oi.quantity), 0) AS units,
		       COALESCE(SUM(oi.quantity * oi.unit_price), 0) AS revenue
		FROM products p
		JOIN order_items oi ON oi.product_id = p.id
		JOIN orders o ON o.id = oi.order_id
		WHERE o.status NOT IN ('cancelled', 'refunded')
		GROUP BY p.id, p.name
		ORDER BY revenue DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying top products: %w", err)
	}
	defer rows.Close()

	var out []ProductSales
	for rows.Next() {
		var p ProductSales
		if err := rows.Scan(&p.ProductID, &p.Name, &p.Units, &p.Revenue); err != nil {
			return nil, fmt.Errorf("scanning product sales: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SalesSummary returns store-wide aggregates.
func (r *Repository) SalesSummary(ctx context.Context) (*Summary, error) {
	var s Summary
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(o.total), 0),
		       COUNT(o.id),
		       COUNT(DISTINCT o.customer_id),
		       COALESCE(AVG(o.total), 0)
		FROM orders o
		WHERE o.status NOT IN ('cancelled', 'refunded')`).
		Scan(&s.TotalRevenue, &s.TotalOrders, &s.TotalCustomers, &s.AvgOrderValue)
	if err != nil {
		return nil, fmt.Errorf("querying sales summary: %w", err)
	}
	return &s, nil
}

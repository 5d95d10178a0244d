package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type analyticsRepository struct {
	db *sql.DB
}

// NewAnalyticsRepository создаёт PostgreSQL-реализацию AnalyticsRepository.
// Агрегаты считаются SQL-группировками по таблицам заказов.
func NewAnalyticsRepository(store *Store) domain.AnalyticsRepository {
	return &analyticsRepository{db: store.DB()}
}

func (r *analyticsRepository) Overview() (domain.AnalyticsOverview, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var overview domain.AnalyticsOverview
	if err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_minor), 0), COUNT(*)
		FROM orders
	`).Scan(&overview.RevenueMinor, &overview.OrdersCount); err != nil {
		return domain.AnalyticsOverview{}, fmt.Errorf("overview totals: %w", err)
	}

	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM users
	`).Scan(&overview.CustomersCount); err != nil {
		return domain.AnalyticsOverview{}, fmt.Errorf("overview customers: %w", err)
	}

	return overview, nil
}

func (r *analyticsRepository) OrdersPerDay(days int) ([]domain.DailyOrders, error) {
	if days <= 0 {
		days = 30
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT date_trunc('day', created_at) AS day,
		       COUNT(*),
		       COALESCE(SUM(total_minor), 0)
		FROM orders
		WHERE created_at >= NOW() - make_interval(days => $1)
		GROUP BY day
		ORDER BY day ASC
	`, days)
	if err != nil {
		return nil, fmt.Errorf("orders per day: %w", err)
	}
	defer rows.Close()

	result := make([]domain.DailyOrders, 0, days)
	for rows.Next() {
		var agg domain.DailyOrders
		if err := rows.Scan(&agg.Day, &agg.OrdersCount, &agg.RevenueMinor); err != nil {
			return nil, fmt.Errorf("scan daily orders: %w", err)
		}
		agg.Day = agg.Day.UTC()
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily orders: %w", err)
	}

	return result, nil
}

func (r *analyticsRepository) TopSellers(limit int) ([]domain.TopSeller, error) {
	if limit <= 0 {
		limit = 6
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id,
		       MAX(name),
		       SUM(qty)::bigint,
		       SUM(qty::bigint * unit_price_minor)
		FROM order_items
		GROUP BY product_id
		ORDER BY SUM(qty) DESC, product_id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("top sellers: %w", err)
	}
	defer rows.Close()

	result := make([]domain.TopSeller, 0, limit)
	for rows.Next() {
		var agg domain.TopSeller
		if err := rows.Scan(&agg.ProductID, &agg.Name, &agg.UnitsSold, &agg.RevenueMinor); err != nil {
			return nil, fmt.Errorf("scan top seller: %w", err)
		}
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top sellers: %w", err)
	}

	return result, nil
}

func (r *analyticsRepository) SalesDistribution() ([]domain.CategorySales, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT p.category,
		       SUM(oi.qty)::bigint,
		       SUM(oi.qty::bigint * oi.unit_price_minor)
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		GROUP BY p.category
		ORDER BY SUM(oi.qty) DESC, p.category ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("sales distribution: %w", err)
	}
	defer rows.Close()

	result := make([]domain.CategorySales, 0)
	for rows.Next() {
		var agg domain.CategorySales
		if err := rows.Scan(&agg.Category, &agg.UnitsSold, &agg.RevenueMinor); err != nil {
			return nil, fmt.Errorf("scan sales distribution: %w", err)
		}
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sales distribution: %w", err)
	}

	return result, nil
}

func (r *analyticsRepository) MonthlySales(year int) ([]domain.MonthlySales, error) {
	if year <= 0 {
		year = time.Now().UTC().Year()
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT EXTRACT(MONTH FROM created_at)::int,
		       COUNT(*),
		       COALESCE(SUM(total_minor), 0)
		FROM orders
		WHERE EXTRACT(YEAR FROM created_at)::int = $1
		GROUP BY 1
		ORDER BY 1 ASC
	`, year)
	if err != nil {
		return nil, fmt.Errorf("monthly sales: %w", err)
	}
	defer rows.Close()

	result := make([]domain.MonthlySales, 0, 12)
	for rows.Next() {
		var (
			month int
			agg   domain.MonthlySales
		)
		if err := rows.Scan(&month, &agg.OrdersCount, &agg.RevenueMinor); err != nil {
			return nil, fmt.Errorf("scan monthly sales: %w", err)
		}
		agg.Month = time.Month(month)
		agg.Year = year
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monthly sales: %w", err)
	}

	return result, nil
}

var _ domain.AnalyticsRepository = (*analyticsRepository)(nil)

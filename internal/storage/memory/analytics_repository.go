package memory

import (
	"fmt"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// analyticsRepositoryInMemory считает агрегаты map-reduce'ом по заказам.
// Для небольших объёмов локальной разработки этого достаточно; в Postgres
// те же агрегаты считаются SQL-группировками.
type analyticsRepositoryInMemory struct {
	orders   domain.OrderRepository
	products domain.ProductRepository
	users    domain.UserRepository
}

// NewAnalyticsRepository возвращает in-memory реализацию AnalyticsRepository
// поверх репозиториев заказов, каталога и пользователей.
func NewAnalyticsRepository(orders domain.OrderRepository, products domain.ProductRepository, users domain.UserRepository) domain.AnalyticsRepository {
	return &analyticsRepositoryInMemory{orders: orders, products: products, users: users}
}

func (r *analyticsRepositoryInMemory) Overview() (domain.AnalyticsOverview, error) {
	orders, err := r.orders.ListAll(0)
	if err != nil {
		return domain.AnalyticsOverview{}, fmt.Errorf("list orders: %w", err)
	}

	overview := domain.AnalyticsOverview{OrdersCount: len(orders)}
	for _, order := range orders {
		overview.RevenueMinor += order.TotalMinor
	}

	if r.users != nil {
		users, err := r.users.List()
		if err != nil {
			return domain.AnalyticsOverview{}, fmt.Errorf("list users: %w", err)
		}
		overview.CustomersCount = len(users)
	}

	return overview, nil
}

func (r *analyticsRepositoryInMemory) OrdersPerDay(days int) ([]domain.DailyOrders, error) {
	if days <= 0 {
		days = 30
	}

	orders, err := r.orders.ListAll(0)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	byDay := make(map[time.Time]domain.DailyOrders)
	for _, order := range orders {
		if order.CreatedAt.Before(since) {
			continue
		}
		day := order.CreatedAt.UTC().Truncate(24 * time.Hour)
		agg := byDay[day]
		agg.Day = day
		agg.OrdersCount++
		agg.RevenueMinor += order.TotalMinor
		byDay[day] = agg
	}

	result := make([]domain.DailyOrders, 0, len(byDay))
	for _, agg := range byDay {
		result = append(result, agg)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Day.Before(result[j].Day)
	})
	return result, nil
}

func (r *analyticsRepositoryInMemory) TopSellers(limit int) ([]domain.TopSeller, error) {
	if limit <= 0 {
		limit = 6
	}

	orders, err := r.orders.ListAll(0)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	byProduct := make(map[string]domain.TopSeller)
	for _, order := range orders {
		for _, item := range order.Items {
			agg := byProduct[item.ProductID]
			agg.ProductID = item.ProductID
			agg.Name = item.Name
			agg.UnitsSold += int64(item.Qty)
			agg.RevenueMinor += int64(item.Qty) * item.UnitPriceMinor
			byProduct[item.ProductID] = agg
		}
	}

	result := make([]domain.TopSeller, 0, len(byProduct))
	for _, agg := range byProduct {
		result = append(result, agg)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].UnitsSold != result[j].UnitsSold {
			return result[i].UnitsSold > result[j].UnitsSold
		}
		return result[i].ProductID < result[j].ProductID
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *analyticsRepositoryInMemory) SalesDistribution() ([]domain.CategorySales, error) {
	orders, err := r.orders.ListAll(0)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	ids := make([]string, 0)
	seen := make(map[string]bool)
	for _, order := range orders {
		for _, item := range order.Items {
			if !seen[item.ProductID] {
				seen[item.ProductID] = true
				ids = append(ids, item.ProductID)
			}
		}
	}

	catalog, err := r.products.GetMany(ids)
	if err != nil {
		return nil, fmt.Errorf("lookup products: %w", err)
	}

	byCategory := make(map[string]domain.CategorySales)
	for _, order := range orders {
		for _, item := range order.Items {
			product, ok := catalog[item.ProductID]
			if !ok {
				continue
			}
			agg := byCategory[product.Category]
			agg.Category = product.Category
			agg.UnitsSold += int64(item.Qty)
			agg.RevenueMinor += int64(item.Qty) * item.UnitPriceMinor
			byCategory[product.Category] = agg
		}
	}

	result := make([]domain.CategorySales, 0, len(byCategory))
	for _, agg := range byCategory {
		result = append(result, agg)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].UnitsSold != result[j].UnitsSold {
			return result[i].UnitsSold > result[j].UnitsSold
		}
		return result[i].Category < result[j].Category
	})
	return result, nil
}

func (r *analyticsRepositoryInMemory) MonthlySales(year int) ([]domain.MonthlySales, error) {
	if year <= 0 {
		year = time.Now().UTC().Year()
	}

	orders, err := r.orders.ListAll(0)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	byMonth := make(map[time.Month]domain.MonthlySales)
	for _, order := range orders {
		created := order.CreatedAt.UTC()
		if created.Year() != year {
			continue
		}
		agg := byMonth[created.Month()]
		agg.Month = created.Month()
		agg.Year = year
		agg.OrdersCount++
		agg.RevenueMinor += order.TotalMinor
		byMonth[created.Month()] = agg
	}

	result := make([]domain.MonthlySales, 0, len(byMonth))
	for _, agg := range byMonth {
		result = append(result, agg)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Month < result[j].Month
	})
	return result, nil
}

var _ domain.AnalyticsRepository = (*analyticsRepositoryInMemory)(nil)

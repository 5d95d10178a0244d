package api

import (
	"net/http"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/notify"
)

const (
	defaultAnalyticsDays  = 30
	defaultTopSellerLimit = 5
)

// AdminHandler — аналитика и справочник покупателей для админ-панели.
type AdminHandler struct {
	analytics domain.AnalyticsRepository
	users     domain.UserRepository
	hub       *notify.Hub
	logger    *log.Entry
}

func NewAdminHandler(analytics domain.AnalyticsRepository, users domain.UserRepository, hub *notify.Hub, logger *log.Entry) *AdminHandler {
	if logger == nil {
		logger = log.New().WithField("component", "api.admin")
	}
	return &AdminHandler{analytics: analytics, users: users, hub: hub, logger: logger}
}

type overviewResponse struct {
	RevenueMinor   int64 `json:"revenue_minor"`
	OrdersCount    int   `json:"orders_count"`
	CustomersCount int   `json:"customers_count"`
}

// Overview — GET /admin/analytics/overview.
func (h *AdminHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.analytics.Overview()
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, overviewResponse{
		RevenueMinor:   overview.RevenueMinor,
		OrdersCount:    overview.OrdersCount,
		CustomersCount: overview.CustomersCount,
	})
}

type dailyOrdersResponse struct {
	Day          string `json:"day"`
	OrdersCount  int    `json:"orders_count"`
	RevenueMinor int64  `json:"revenue_minor"`
}

// OrdersPerDay — GET /admin/analytics/orders-per-day?days=30.
func (h *AdminHandler) OrdersPerDay(w http.ResponseWriter, r *http.Request) {
	days := defaultAnalyticsDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			days = parsed
		}
	}

	daily, err := h.analytics.OrdersPerDay(days)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	result := make([]dailyOrdersResponse, 0, len(daily))
	for _, day := range daily {
		result = append(result, dailyOrdersResponse{
			Day:          day.Day.Format("2006-01-02"),
			OrdersCount:  day.OrdersCount,
			RevenueMinor: day.RevenueMinor,
		})
	}

	respondJSON(w, http.StatusOK, result)
}

type topSellerResponse struct {
	ProductID    string `json:"product_id"`
	Name         string `json:"name"`
	UnitsSold    int64  `json:"units_sold"`
	RevenueMinor int64  `json:"revenue_minor"`
}

// TopSellers — GET /admin/analytics/top-sellers?limit=5.
func (h *AdminHandler) TopSellers(w http.ResponseWriter, r *http.Request) {
	sellers, err := h.analytics.TopSellers(limitParam(r, defaultTopSellerLimit))
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	result := make([]topSellerResponse, 0, len(sellers))
	for _, seller := range sellers {
		result = append(result, topSellerResponse{
			ProductID:    seller.ProductID,
			Name:         seller.Name,
			UnitsSold:    seller.UnitsSold,
			RevenueMinor: seller.RevenueMinor,
		})
	}

	respondJSON(w, http.StatusOK, result)
}

type categorySalesResponse struct {
	Category     string `json:"category"`
	UnitsSold    int64  `json:"units_sold"`
	RevenueMinor int64  `json:"revenue_minor"`
}

// SalesDistribution — GET /admin/analytics/sales-distribution.
// Проданные единицы и выручка, сгруппированные по категориям каталога.
func (h *AdminHandler) SalesDistribution(w http.ResponseWriter, r *http.Request) {
	distribution, err := h.analytics.SalesDistribution()
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	result := make([]categorySalesResponse, 0, len(distribution))
	for _, category := range distribution {
		result = append(result, categorySalesResponse{
			Category:     category.Category,
			UnitsSold:    category.UnitsSold,
			RevenueMinor: category.RevenueMinor,
		})
	}

	respondJSON(w, http.StatusOK, result)
}

type monthlySalesResponse struct {
	Month        int   `json:"month"`
	Year         int   `json:"year"`
	OrdersCount  int   `json:"orders_count"`
	RevenueMinor int64 `json:"revenue_minor"`
}

// MonthlySales — GET /admin/analytics/monthly?year=2026.
func (h *AdminHandler) MonthlySales(w http.ResponseWriter, r *http.Request) {
	year := time.Now().UTC().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			year = parsed
		}
	}

	monthly, err := h.analytics.MonthlySales(year)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	result := make([]monthlySalesResponse, 0, len(monthly))
	for _, month := range monthly {
		result = append(result, monthlySalesResponse{
			Month:        int(month.Month),
			Year:         month.Year,
			OrdersCount:  month.OrdersCount,
			RevenueMinor: month.RevenueMinor,
		})
	}

	respondJSON(w, http.StatusOK, result)
}

type customerResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Online    bool      `json:"online"`
	CreatedAt time.Time `json:"created_at"`
}

// Customers — GET /admin/customers. Флаг online отражает активную
// подписку пользователя на поток событий.
func (h *AdminHandler) Customers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List()
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	result := make([]customerResponse, 0, len(users))
	for _, user := range users {
		online := false
		if h.hub != nil {
			online = h.hub.IsOnline(user.ID)
		}
		result = append(result, customerResponse{
			ID:        user.ID,
			Name:      user.Name,
			Email:     user.Email,
			Role:      string(user.Role),
			Online:    online,
			CreatedAt: user.CreatedAt,
		})
	}

	respondJSON(w, http.StatusOK, result)
}

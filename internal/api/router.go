package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/notify"
	cartsvc "github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	reviewsvc "github.com/vladislavdragonenkov/storefront/internal/service/review"
)

// Deps — зависимости HTTP-слоя. Личность запроса приходит из заголовков
// доверенного auth-шлюза; здесь выполняются только проверки роли и владения.
type Deps struct {
	Carts     *cartsvc.Service
	Checkout  *checkout.Service
	Reviews   *reviewsvc.Service
	Orders    domain.OrderRepository
	Analytics domain.AnalyticsRepository
	Users     domain.UserRepository
	Hub       *notify.Hub
	Logger    *log.Entry
}

// NewRouter собирает маршрутизатор витрины.
func NewRouter(deps Deps) *chi.Mux {
	logger := deps.Logger
	if logger == nil {
		logger = log.New().WithField("component", "api")
	}

	cartHandler := NewCartHandler(deps.Carts, logger)
	checkoutHandler := NewCheckoutHandler(deps.Checkout, logger)
	ordersHandler := NewOrdersHandler(deps.Orders, deps.Checkout, logger)
	adminHandler := NewAdminHandler(deps.Analytics, deps.Users, deps.Hub, logger)
	reviewsHandler := NewReviewsHandler(deps.Reviews, logger)
	eventsHandler := NewEventsHandler(deps.Hub, logger)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)

	router.Group(func(r chi.Router) {
		r.Use(Authenticate)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.Get)
			r.Delete("/", cartHandler.Clear)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{productID}/increase", cartHandler.Increase)
			r.Put("/items/{productID}/decrease", cartHandler.Decrease)
			r.Delete("/items/{productID}", cartHandler.Remove)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/begin", checkoutHandler.Begin)
			r.Post("/finalize", checkoutHandler.Finalize)
		})

		r.Get("/orders", ordersHandler.ListMine)

		r.Route("/products/{productID}/reviews", func(r chi.Router) {
			r.Post("/", reviewsHandler.Create)
			r.Get("/", reviewsHandler.List)
		})

		r.Get("/events", eventsHandler.Stream)

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin)

			r.Get("/orders", ordersHandler.ListAll)
			r.Patch("/orders/{orderID}/delivered", ordersHandler.MarkDelivered)
			r.Get("/customers", adminHandler.Customers)

			r.Route("/analytics", func(r chi.Router) {
				r.Get("/overview", adminHandler.Overview)
				r.Get("/orders-per-day", adminHandler.OrdersPerDay)
				r.Get("/top-sellers", adminHandler.TopSellers)
				r.Get("/sales-distribution", adminHandler.SalesDistribution)
				r.Get("/monthly", adminHandler.MonthlySales)
			})
		})
	})

	return router
}

// requestLogger пишет одну структурированную строку на запрос.
func requestLogger(logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(wrapped, r)

			logger.WithFields(log.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   wrapped.Status(),
				"duration": time.Since(start).String(),
			}).Info("http request")
		})
	}
}

package checkout

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/payment"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type recordingBroadcaster struct {
	events []string
}

func (b *recordingBroadcaster) Broadcast(event string, _ []byte) {
	b.events = append(b.events, event)
}

type failingClearCartRepository struct {
	domain.CartRepository
	clearErr error
}

func (r *failingClearCartRepository) Clear(userID string) error {
	if r.clearErr != nil {
		return r.clearErr
	}
	return r.CartRepository.Clear(userID)
}

type flakyOrderRepository struct {
	domain.OrderRepository
	failures int
}

func (r *flakyOrderRepository) Create(order domain.Order) error {
	if r.failures > 0 {
		r.failures--
		return errors.New("order store is down")
	}
	return r.OrderRepository.Create(order)
}

type checkoutFixture struct {
	carts     domain.CartRepository
	products  domain.ProductRepository
	orders    domain.OrderRepository
	authority *payment.MockAuthority
	broadcast *recordingBroadcaster
	service   *Service
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()

	fixture := &checkoutFixture{
		carts:     memory.NewCartRepository(),
		products:  memory.NewProductRepository(),
		orders:    memory.NewOrderRepository(),
		authority: payment.NewMockAuthority(),
		broadcast: &recordingBroadcaster{},
	}

	for _, product := range []domain.Product{
		{ID: "product-a", Name: "Keyboard", PriceMinor: 10, QuantityOnHand: 10, InStock: true},
		{ID: "product-b", Name: "Mouse", PriceMinor: 5, QuantityOnHand: 5, InStock: true},
	} {
		if err := fixture.products.Create(product); err != nil {
			t.Fatalf("seed product: %v", err)
		}
	}

	fixture.service = NewServiceWithoutMetrics(
		fixture.carts,
		fixture.products,
		fixture.orders,
		fixture.authority,
		memory.NewOutboxRepository(),
		memory.NewIdempotencyRepository(),
		fixture.broadcast,
		nil,
	)
	return fixture
}

func (f *checkoutFixture) fillCart(t *testing.T) {
	t.Helper()
	if _, err := f.carts.AddItem("user-1", "product-a", 2); err != nil {
		t.Fatalf("fill cart: %v", err)
	}
	if _, err := f.carts.AddItem("user-1", "product-b", 1); err != nil {
		t.Fatalf("fill cart: %v", err)
	}
}

func (f *checkoutFixture) finalizeRequest(key string) FinalizeRequest {
	return FinalizeRequest{
		UserID:             "user-1",
		IdempotencyKey:     key,
		AuthorizationID:    "auth-1",
		DeclaredTotalMinor: 25,
		Currency:           "USD",
		ShippingAddress: domain.ShippingAddress{
			Address:    "1 Main st",
			City:       "Springfield",
			PostalCode: "000001",
			Country:    "US",
		},
	}
}

func TestBeginEmptyCart(t *testing.T) {
	fixture := newCheckoutFixture(t)

	if _, err := fixture.service.Begin("user-1"); !errors.Is(err, domain.ErrCartEmpty) {
		t.Fatalf("expected cart empty error for missing cart, got %v", err)
	}

	if _, err := fixture.carts.AddItem("user-1", "product-a", 1); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if err := fixture.carts.Clear("user-1"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	if _, err := fixture.service.Begin("user-1"); !errors.Is(err, domain.ErrCartEmpty) {
		t.Fatalf("expected cart empty error for cleared cart, got %v", err)
	}
}

func TestBeginComputesTotalFromCatalog(t *testing.T) {
	fixture := newCheckoutFixture(t)
	fixture.fillCart(t)

	result, err := fixture.service.Begin("user-1")
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	if result.AmountMinor != 25 {
		t.Errorf("expected amount 25, got %d", result.AmountMinor)
	}
	if result.ClientSecret == "" {
		t.Error("expected client secret")
	}
	if result.IdempotencyKey == "" {
		t.Error("expected idempotency key")
	}
	if fixture.authority.LastAmountMinor != 25 || fixture.authority.LastCurrency != "USD" {
		t.Errorf("authorization called with %d %s", fixture.authority.LastAmountMinor, fixture.authority.LastCurrency)
	}

	// Ключ детерминирован по авторизации
	if result.IdempotencyKey != deriveIdempotencyKey(fixture.authority.Authorization.ID) {
		t.Error("idempotency key should derive from authorization id")
	}
}

func TestBeginAuthFailureLeavesCartIntact(t *testing.T) {
	fixture := newCheckoutFixture(t)
	fixture.fillCart(t)

	fixture.authority.Err = errors.New("provider unavailable")

	_, err := fixture.service.Begin("user-1")
	if !domain.IsPaymentProvider(err) {
		t.Fatalf("expected payment provider error, got %v", err)
	}

	cart, err := fixture.carts.Get("user-1")
	if err != nil {
		t.Fatalf("cart should survive auth failure: %v", err)
	}
	if len(cart.Items) != 2 {
		t.Fatalf("cart should be untouched, got %d items", len(cart.Items))
	}

	orders, err := fixture.orders.ListByUser("user-1", 0)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("no order should exist after auth failure, got %d", len(orders))
	}
}

func TestFinalizeSnapshotsCartAtCallTime(t *testing.T) {
	fixture := newCheckoutFixture(t)
	fixture.fillCart(t)

	order, err := fixture.service.Finalize(fixture.finalizeRequest("key-1"))
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	if order.TotalMinor != 25 {
		t.Errorf("expected total 25, got %d", order.TotalMinor)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 snapshot items, got %d", len(order.Items))
	}
	byProduct := make(map[string]domain.OrderItem)
	for _, item := range order.Items {
		byProduct[item.ProductID] = item
	}
	if item := byProduct["product-a"]; item.Name != "Keyboard" || item.Qty != 2 || item.UnitPriceMinor != 10 {
		t.Errorf("unexpected snapshot for product-a: %+v", item)
	}
	if item := byProduct["product-b"]; item.Name != "Mouse" || item.Qty != 1 || item.UnitPriceMinor != 5 {
		t.Errorf("unexpected snapshot for product-b: %+v", item)
	}
	if order.PaymentCapturedAt.IsZero() {
		t.Error("payment capture timestamp should be set")
	}

	// Последующее изменение цены не влияет на сохранённый заказ
	if err := fixture.products.Create(domain.Product{ID: "product-a", Name: "Keyboard", PriceMinor: 9999, QuantityOnHand: 8, InStock: true}); err != nil {
		t.Fatalf("update product: %v", err)
	}
	stored, err := fixture.orders.Get(order.ID)
	if err != nil {
		t.Fatalf("Get order failed: %v", err)
	}
	if stored.Items[0].UnitPriceMinor == 9999 || stored.TotalMinor != 25 {
		t.Errorf("order snapshot should be immutable, got %+v", stored)
	}

	// Корзина очищена, остатки списаны
	if _, err := fixture.carts.Get("user-1"); err == nil {
		cart, _ := fixture.carts.Get("user-1")
		if !cart.IsEmpty() {
			t.Errorf("cart should be empty after finalize, got %d items", len(cart.Items))
		}
	}
	productB, err := fixture.products.Get("product-b")
	if err != nil {
		t.Fatalf("Get product failed: %v", err)
	}
	if productB.QuantityOnHand != 4 {
		t.Errorf("expected stock 4 after decrement, got %d", productB.QuantityOnHand)
	}

	// Событие разослано подключенным клиентам
	if len(fixture.broadcast.events) == 0 || fixture.broadcast.events[0] != "order.created" {
		t.Errorf("expected order.created broadcast, got %v", fixture.broadcast.events)
	}
}

func TestFinalizeTotalMismatchPersistsNothing(t *testing.T) {
	fixture := newCheckoutFixture(t)
	fixture.fillCart(t)

	req := fixture.finalizeRequest("key-mismatch")
	req.DeclaredTotalMinor = 999

	if _, err := fixture.service.Finalize(req); !errors.Is(err, domain.ErrTotalMismatch) {
		t.Fatalf("expected total mismatch, got %v", err)
	}

	orders, err := fixture.orders.ListByUser("user-1", 0)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("nothing should be persisted on mismatch, got %d orders", len(orders))
	}

	cart, err := fixture.carts.Get("user-1")
	if err != nil {
		t.Fatalf("cart should be intact: %v", err)
	}
	if len(cart.Items) != 2 {
		t.Fatalf("cart should be untouched, got %d items", len(cart.Items))
	}
}

func TestFinalizeMissingProductRejectsWholeOrder(t *testing.T) {
	fixture := newCheckoutFixture(t)
	fixture.fillCart(t)
	if _, err := fixture.carts.AddItem("user-1", "product-ghost", 1); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	if _, err := fixture.service.Finalize(fixture.finalizeRequest("key-ghost")); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected product not found, got %v", err)
	}

	orders, err := fixture.orders.ListByUser("user-1", 0)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("no partial order should exist, got %d", len(orders))
	}
}

func TestFinalizeIdempotentReplay(t *testing.T) {
	fixture := newCheckoutFixture(t)
	fixture.fillCart(t)

	first, err := fixture.service.Finalize(fixture.finalizeRequest("key-replay"))
	if err != nil {
		t.Fatalf("first finalize failed: %v", err)
	}

	// Корзина уже очищена, но повторный вызов с тем же ключом
	// возвращает кешированный заказ, а не ошибку пустой корзины.
	second, err := fixture.service.Finalize(fixture.finalizeRequest("key-replay"))
	if err != nil {
		t.Fatalf("replay finalize failed: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("replay should return the same order: %s vs %s", first.ID, second.ID)
	}

	orders, err := fixture.orders.ListByUser("user-1", 0)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("exactly one order expected, got %d", len(orders))
	}
}

func TestFinalizeKeyReusedWithDifferentRequest(t *testing.T) {
	fixture := newCheckoutFixture(t)
	fixture.fillCart(t)

	if _, err := fixture.service.Finalize(fixture.finalizeRequest("key-reuse")); err != nil {
		t.Fatalf("first finalize failed: %v", err)
	}

	altered := fixture.finalizeRequest("key-reuse")
	altered.ShippingAddress.City = "Shelbyville"

	if _, err := fixture.service.Finalize(altered); !errors.Is(err, domain.ErrIdempotencyHashMismatch) {
		t.Fatalf("expected hash mismatch, got %v", err)
	}
}

func TestFinalizeReplaysCachedFailure(t *testing.T) {
	fixture := newCheckoutFixture(t)
	fixture.fillCart(t)

	req := fixture.finalizeRequest("key-failed")
	req.DeclaredTotalMinor = 999

	if _, err := fixture.service.Finalize(req); !errors.Is(err, domain.ErrTotalMismatch) {
		t.Fatalf("expected total mismatch, got %v", err)
	}

	_, err := fixture.service.Finalize(req)
	var replayed *ReplayedError
	if !errors.As(err, &replayed) {
		t.Fatalf("expected replayed error, got %v", err)
	}
	if replayed.StatusCode != 422 {
		t.Fatalf("expected cached status 422, got %d", replayed.StatusCode)
	}
}

func TestFinalizeStorageFailureFreesKeyForRetry(t *testing.T) {
	fixture := newCheckoutFixture(t)
	fixture.fillCart(t)

	flaky := &flakyOrderRepository{
		OrderRepository: fixture.orders,
		failures:        1,
	}
	fixture.service.orders = flaky

	if _, err := fixture.service.Finalize(fixture.finalizeRequest("key-flaky")); err == nil {
		t.Fatal("first finalize should fail while the order store is down")
	}

	// Хранилище восстановилось: повтор с тем же ключом выполняется
	// заново, а не воспроизводит старую ошибку.
	order, err := fixture.service.Finalize(fixture.finalizeRequest("key-flaky"))
	if err != nil {
		t.Fatalf("retry after recovery failed: %v", err)
	}

	orders, err := fixture.orders.ListByUser("user-1", 0)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != order.ID {
		t.Fatalf("exactly one order expected after retry, got %d", len(orders))
	}
}

func TestFinalizeDeterministicFailureReleasesAuthorization(t *testing.T) {
	fixture := newCheckoutFixture(t)
	fixture.fillCart(t)

	req := fixture.finalizeRequest("key-release")
	req.DeclaredTotalMinor = 999

	if _, err := fixture.service.Finalize(req); !errors.Is(err, domain.ErrTotalMismatch) {
		t.Fatalf("expected total mismatch, got %v", err)
	}

	// Детерминированный отказ кешируется, а удержание средств снимается.
	if len(fixture.authority.Released) != 1 || fixture.authority.Released[0] != "auth-1" {
		t.Fatalf("authorization should be released, got %v", fixture.authority.Released)
	}

	_, err := fixture.service.Finalize(req)
	var replayed *ReplayedError
	if !errors.As(err, &replayed) {
		t.Fatalf("expected replayed error, got %v", err)
	}
	if len(fixture.authority.Released) != 1 {
		t.Fatalf("replay should not release again, got %v", fixture.authority.Released)
	}
}

func TestFinalizeUnconfirmedAuthorizationAllowsRetry(t *testing.T) {
	fixture := newCheckoutFixture(t)
	fixture.fillCart(t)

	fixture.authority.ConfirmErr = domain.ErrAuthorizationNotConfirmed

	req := fixture.finalizeRequest("key-confirm")
	if _, err := fixture.service.Finalize(req); !errors.Is(err, domain.ErrAuthorizationNotConfirmed) {
		t.Fatalf("expected unconfirmed authorization error, got %v", err)
	}
	if len(fixture.authority.Released) != 0 {
		t.Fatalf("pending authorization must not be cancelled, got %v", fixture.authority.Released)
	}

	// Клиент завершил подтверждение и повторяет с тем же ключом.
	fixture.authority.ConfirmErr = nil
	if _, err := fixture.service.Finalize(req); err != nil {
		t.Fatalf("retry after confirmation failed: %v", err)
	}
}

func TestFinalizeMissingAuthorizationID(t *testing.T) {
	fixture := newCheckoutFixture(t)
	fixture.fillCart(t)

	req := fixture.finalizeRequest("key-no-auth")
	req.AuthorizationID = ""

	if _, err := fixture.service.Finalize(req); !errors.Is(err, domain.ErrAuthorizationRequired) {
		t.Fatalf("expected authorization required, got %v", err)
	}
}

func TestFinalizeMissingIdempotencyKey(t *testing.T) {
	fixture := newCheckoutFixture(t)
	fixture.fillCart(t)

	if _, err := fixture.service.Finalize(fixture.finalizeRequest("")); !errors.Is(err, domain.ErrIdempotencyKeyRequired) {
		t.Fatalf("expected idempotency key required, got %v", err)
	}
}

func TestFinalizeCartClearFailureKeepsOrder(t *testing.T) {
	fixture := newCheckoutFixture(t)
	fixture.fillCart(t)

	failingCarts := &failingClearCartRepository{
		CartRepository: fixture.carts,
		clearErr:       errors.New("cart store is down"),
	}
	fixture.service.carts = failingCarts

	order, err := fixture.service.Finalize(fixture.finalizeRequest("key-partial"))
	if err != nil {
		t.Fatalf("finalize should succeed despite clear failure: %v", err)
	}

	// Заказ сохранён и читается
	stored, err := fixture.orders.Get(order.ID)
	if err != nil {
		t.Fatalf("order should be durable: %v", err)
	}
	if stored.TotalMinor != 25 {
		t.Errorf("unexpected stored total: %d", stored.TotalMinor)
	}

	// Корзина осталась нетронутой
	cart, err := fixture.carts.Get("user-1")
	if err != nil {
		t.Fatalf("cart should still exist: %v", err)
	}
	if len(cart.Items) != 2 {
		t.Fatalf("cart should keep its items, got %d", len(cart.Items))
	}
}

func TestMarkDelivered(t *testing.T) {
	fixture := newCheckoutFixture(t)
	fixture.fillCart(t)

	order, err := fixture.service.Finalize(fixture.finalizeRequest("key-deliver"))
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	delivered, err := fixture.service.MarkDelivered(order.ID)
	if err != nil {
		t.Fatalf("MarkDelivered failed: %v", err)
	}
	if !delivered.Delivered || delivered.DeliveredAt.IsZero() {
		t.Fatalf("delivery fields not set: %+v", delivered)
	}
	if delivered.Version != order.Version+1 {
		t.Errorf("expected version bump, got %d", delivered.Version)
	}

	// Повторный вызов идемпотентен
	again, err := fixture.service.MarkDelivered(order.ID)
	if err != nil {
		t.Fatalf("second MarkDelivered failed: %v", err)
	}
	if again.Version != delivered.Version {
		t.Errorf("repeat delivery should not bump version: %d vs %d", again.Version, delivered.Version)
	}

	if _, err := fixture.service.MarkDelivered("missing-order"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected order not found, got %v", err)
	}
}

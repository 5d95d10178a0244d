package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора владельца корзины/заказа.
	ErrOwnerRequired = errors.New("owner_id is required")
	// Ошибка отсутствующего идентификатора товара.
	ErrProductIDRequired = errors.New("product_id is required")
	// Ошибка некорректного количества товара (<= 0).
	ErrQuantityInvalid = errors.New("quantity must be greater than zero")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка отрицательных денежных полей заказа.
	ErrAmountNegative = errors.New("amount_minor must be non-negative")
	// Ошибка несоответствия итоговой суммы заказа и сумм позиций.
	ErrTotalMismatch = errors.New("order total does not match recalculated amount")
	// Ошибка отсутствующего кода валюты.
	ErrCurrencyRequired = errors.New("currency is required")
	// Ошибка некорректной оценки в отзыве (допустимо 1..5).
	ErrRatingInvalid = errors.New("review rating must be between 1 and 5")

	// ErrCartNotFound возвращается, если у пользователя ещё нет корзины.
	ErrCartNotFound = errors.New("cart not found")
	// ErrCartItemNotFound возвращается, если позиции с таким товаром нет в корзине.
	ErrCartItemNotFound = errors.New("cart item not found")
	// ErrCartItemDuplicate — в корзине две позиции на один и тот же товар.
	ErrCartItemDuplicate = errors.New("cart contains duplicate product line")
	// ErrCartEmpty — попытка оформить заказ по пустой корзине.
	ErrCartEmpty = errors.New("cart is empty")

	// ErrProductNotFound возвращается, если товар отсутствует в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrUserNotFound возвращается, если пользователь отсутствует в справочнике.
	ErrUserNotFound = errors.New("user not found")

	// ErrPaymentProvider — платёжный провайдер недоступен или отклонил авторизацию.
	ErrPaymentProvider = errors.New("payment provider error")
	// ErrAuthorizationRequired — пустой authorization_id в запросе на оформление.
	ErrAuthorizationRequired = errors.New("authorization_id is required")
	// ErrAuthorizationNotConfirmed — провайдер ещё не подтвердил авторизацию;
	// клиент может завершить подтверждение и повторить запрос.
	ErrAuthorizationNotConfirmed = errors.New("payment authorization is not confirmed")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// ErrIdempotencyKeyRequired — пустой idempotency-key в запросе.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — пустой хеш запроса для записи идемпотентности.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists — запись с таким ключом уже создана.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — ключ повторно использован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
	// ErrIdempotencyKeyNotFound — запись по ключу отсутствует.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")

	// ErrCacheMiss возвращается кешем проекций, если значения нет.
	ErrCacheMiss = errors.New("cache miss")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsIdempotencyConflict проверяет, является ли ошибка конфликтом идемпотентности.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) ||
		errors.Is(err, ErrIdempotencyHashMismatch)
}

// IsPaymentProvider проверяет, вызвана ли ошибка платёжным провайдером.
func IsPaymentProvider(err error) bool {
	return errors.Is(err, ErrPaymentProvider)
}

// IsNotFound проверяет, относится ли ошибка к классу "объект не найден".
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCartNotFound) ||
		errors.Is(err, ErrCartItemNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrUserNotFound)
}

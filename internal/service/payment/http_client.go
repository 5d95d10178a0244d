package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const defaultRequestTimeout = 10 * time.Second

// HTTPAuthority обращается к внешнему платёжному провайдеру по HTTP.
// Провайдер резервирует средства и возвращает client secret
// для подтверждения платежа на стороне клиента.
type HTTPAuthority struct {
	client  *http.Client
	baseURL string
	apiKey  string
	logger  *log.Entry
}

// NewHTTPAuthority создаёт HTTP-адаптер платёжного провайдера.
func NewHTTPAuthority(baseURL, apiKey string, timeout time.Duration) *HTTPAuthority {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &HTTPAuthority{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  log.WithField("component", "payment-authority"),
	}
}

type createIntentRequest struct {
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
}

type createIntentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	AmountMinor  int64  `json:"amount_minor"`
	Currency     string `json:"currency"`
}

// CreateAuthorization резервирует сумму у провайдера и возвращает авторизацию.
func (a *HTTPAuthority) CreateAuthorization(amountMinor int64, currency string) (domain.Authorization, error) {
	if amountMinor < 0 {
		return domain.Authorization{}, domain.ErrAmountNegative
	}
	if currency == "" {
		return domain.Authorization{}, domain.ErrCurrencyRequired
	}

	body, err := json.Marshal(createIntentRequest{
		AmountMinor: amountMinor,
		Currency:    currency,
	})
	if err != nil {
		return domain.Authorization{}, fmt.Errorf("marshal payment intent request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, a.baseURL+"/v1/payment_intents", bytes.NewReader(body))
	if err != nil {
		return domain.Authorization{}, fmt.Errorf("build payment intent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.WithError(err).Warn("payment provider request failed")
		return domain.Authorization{}, fmt.Errorf("%w: %v", domain.ErrPaymentProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		a.logger.WithFields(log.Fields{
			"status": resp.StatusCode,
			"detail": string(detail),
		}).Warn("payment provider rejected authorization")
		return domain.Authorization{}, fmt.Errorf("%w: provider returned status %d", domain.ErrPaymentProvider, resp.StatusCode)
	}

	var intent createIntentResponse
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return domain.Authorization{}, fmt.Errorf("%w: decode provider response: %v", domain.ErrPaymentProvider, err)
	}

	if intent.ID == "" || intent.ClientSecret == "" {
		return domain.Authorization{}, fmt.Errorf("%w: provider response is missing id or client secret", domain.ErrPaymentProvider)
	}

	return domain.Authorization{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		AmountMinor:  amountMinor,
		Currency:     currency,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

type intentStatusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ConfirmAuthorization перечитывает авторизацию у провайдера. Заказ
// материализуется только по авторизации, которую провайдер действительно
// подтвердил: идентификатору из тела запроса клиента здесь не доверяют.
func (a *HTTPAuthority) ConfirmAuthorization(authorizationID string) error {
	if authorizationID == "" {
		return domain.ErrAuthorizationRequired
	}

	req, err := http.NewRequest(http.MethodGet, a.baseURL+"/v1/payment_intents/"+authorizationID, nil)
	if err != nil {
		return fmt.Errorf("build authorization status request: %w", err)
	}
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.WithError(err).Warn("payment provider status request failed")
		return fmt.Errorf("%w: %v", domain.ErrPaymentProvider, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrAuthorizationNotConfirmed
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: provider returned status %d", domain.ErrPaymentProvider, resp.StatusCode)
	}

	var intent intentStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return fmt.Errorf("%w: decode provider status response: %v", domain.ErrPaymentProvider, err)
	}

	switch intent.Status {
	case "succeeded", "requires_capture":
		return nil
	default:
		a.logger.WithFields(log.Fields{
			"authorization_id": authorizationID,
			"status":           intent.Status,
		}).Warn("payment authorization is not confirmed yet")
		return domain.ErrAuthorizationNotConfirmed
	}
}

// ReleaseAuthorization отменяет резерв средств. Отмена идемпотентна:
// провайдер отвечает 404 по уже отменённой или неизвестной авторизации.
func (a *HTTPAuthority) ReleaseAuthorization(authorizationID string) error {
	if authorizationID == "" {
		return nil
	}

	req, err := http.NewRequest(http.MethodPost, a.baseURL+"/v1/payment_intents/"+authorizationID+"/cancel", nil)
	if err != nil {
		return fmt.Errorf("build authorization cancel request: %w", err)
	}
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.WithError(err).Warn("payment provider cancel request failed")
		return fmt.Errorf("%w: %v", domain.ErrPaymentProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		a.logger.WithFields(log.Fields{
			"status": resp.StatusCode,
			"detail": string(detail),
		}).Warn("payment provider rejected cancellation")
		return fmt.Errorf("%w: provider returned status %d", domain.ErrPaymentProvider, resp.StatusCode)
	}

	return nil
}

var _ domain.PaymentAuthority = (*HTTPAuthority)(nil)

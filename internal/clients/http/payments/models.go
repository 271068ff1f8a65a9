package payments

import (
	"fmt"
	"net/http"
)

// CreateOrderRequest is the body of POST /orders. Amounts are in the smallest currency unit.
type CreateOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// Order is an order created on the processor.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// Payment statuses reported by the processor.
const (
	PaymentStatusCaptured   = "captured"
	PaymentStatusAuthorized = "authorized"
	PaymentStatusFailed     = "failed"
)

// Payment is a payment attempt against an order.
type Payment struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Amount  int64  `json:"amount"`
	Status  string `json:"status"`
}

// RefundRequest is the body of POST /payments/{paymentId}/refund.
type RefundRequest struct {
	Amount int64             `json:"amount"`
	Notes  map[string]string `json:"notes,omitempty"`
}

// Refund is an accepted refund.
type Refund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

// ErrorBody is the processor's error envelope content.
type ErrorBody struct {
	Code        *string `json:"code,omitempty"`
	Description *string `json:"description,omitempty"`
}

// APIError is returned for every 4xx/5xx answer.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payments API %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("payments API %d: %s", e.StatusCode, e.Message)
}

// Declined reports whether the processor refused the request rather than failing.
func (e *APIError) Declined() bool {
	return e.StatusCode == http.StatusPaymentRequired || e.StatusCode == http.StatusBadRequest
}

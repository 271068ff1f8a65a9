package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"
)

// Client talks to the payment processor's REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	keyID      string
	keySecret  string
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithCredentials sets the basic-auth key pair.
func WithCredentials(keyID, keySecret string) ClientOption {
	return func(c *Client) {
		c.keyID = strings.TrimSpace(keyID)
		c.keySecret = keySecret
	}
}

// RequestOption configures a single call.
type RequestOption func(*requestOptions)

type requestOptions struct {
	idempotencyKey string
}

// WithIdempotencyKey sets the Idempotency-Key header for the request.
func WithIdempotencyKey(key string) RequestOption {
	return func(opts *requestOptions) {
		opts.idempotencyKey = strings.TrimSpace(key)
	}
}

// NewClient instantiates the payments client with sane defaults.
func NewClient(baseURL string, httpClient *http.Client, opts ...ClientOption) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("payments base URL is required")
	}
	parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse payments base URL: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	client := &Client{baseURL: parsed, httpClient: httpClient}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// CreateOrder registers an order the payer completes on the processor's checkout.
func (c *Client) CreateOrder(ctx context.Context, body CreateOrderRequest, optFns ...RequestOption) (*Order, error) {
	var order Order
	if err := c.do(ctx, http.MethodPost, "orders", body, &order, optFns...); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetPayment fetches a payment by id.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	path, err := pathParam("paymentId", paymentID)
	if err != nil {
		return nil, err
	}
	var payment Payment
	if err := c.do(ctx, http.MethodGet, "payments/"+path, nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// RefundPayment refunds amount of a captured payment.
func (c *Client) RefundPayment(ctx context.Context, paymentID string, body RefundRequest, optFns ...RequestOption) (*Refund, error) {
	path, err := pathParam("paymentId", paymentID)
	if err != nil {
		return nil, err
	}
	var refund Refund
	if err := c.do(ctx, http.MethodPost, "payments/"+path+"/refund", body, &refund, optFns...); err != nil {
		return nil, err
	}
	return &refund, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, optFns ...RequestOption) error {
	if c == nil || c.httpClient == nil {
		return errors.New("payments client not configured")
	}
	var opts requestOptions
	for _, fn := range optFns {
		if fn != nil {
			fn(&opts)
		}
	}
	ref, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("build payments path: %w", err)
	}
	endpoint := c.baseURL.ResolveReference(ref)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode payments request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("build payments request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.keyID != "" {
		req.SetBasicAuth(c.keyID, c.keySecret)
	}
	if opts.idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", opts.idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call payments API: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read payments response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return newAPIError(resp, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode payments response: %w", err)
	}
	return nil
}

func pathParam(name, value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	encoded, err := runtime.StyleParamWithLocation("simple", false, name, runtime.ParamLocationPath, value)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	return encoded, nil
}

func newAPIError(resp *http.Response, raw []byte) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
	var envelope struct {
		Error *ErrorBody `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil {
		if envelope.Error.Code != nil {
			apiErr.Code = strings.TrimSpace(*envelope.Error.Code)
		}
		if envelope.Error.Description != nil {
			if msg := strings.TrimSpace(*envelope.Error.Description); msg != "" {
				apiErr.Message = msg
			}
		}
	}
	return apiErr
}

package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/emekandu/kasuwa-backend/pkg/config"
)

// Client wraps the Paystack transaction endpoints the platform depends on.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
}

// InitializeRequest carries the inputs for transaction initialization.
type InitializeRequest struct {
	Email       string `json:"email"`
	AmountKobo  int64  `json:"amount"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url,omitempty"`
}

// InitializeResult is the subset of the initialize response we consume.
type InitializeResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// VerifyResult is the subset of the verify response we consume.
type VerifyResult struct {
	Status     string
	Reference  string
	AmountKobo int64
	Currency   string
	PaidAt     string
	Channel    string
}

// Succeeded reports whether the gateway settled the transaction.
func (v VerifyResult) Succeeded() bool {
	return strings.EqualFold(v.Status, "success")
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// NewClient builds a Paystack client from configuration.
func NewClient(cfg config.PaystackConfig) (*Client, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, fmt.Errorf("paystack secret key is required")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("paystack base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		secretKey:  cfg.SecretKey,
	}, nil
}

// Initialize starts a hosted checkout transaction and returns the redirect URL.
func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	if req.Email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if req.AmountKobo <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	if req.Reference == "" {
		return nil, fmt.Errorf("reference is required")
	}

	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", req, &data); err != nil {
		return nil, err
	}
	return &InitializeResult{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}, nil
}

// Verify fetches the settled state of a transaction by reference.
func (c *Client) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, fmt.Errorf("reference is required")
	}

	var data struct {
		Status    string `json:"status"`
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		PaidAt    string `json:"paid_at"`
		Channel   string `json:"channel"`
	}
	path := "/transaction/verify/" + reference
	if err := c.do(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	return &VerifyResult{
		Status:     data.Status,
		Reference:  data.Reference,
		AmountKobo: data.Amount,
		Currency:   data.Currency,
		PaidAt:     data.PaidAt,
		Channel:    data.Channel,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal paystack payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build paystack request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paystack %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read paystack response: %w", err)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode paystack response (http %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !envelope.Status {
		return fmt.Errorf("paystack %s %s failed (http %d): %s", method, path, resp.StatusCode, envelope.Message)
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode paystack data: %w", err)
		}
	}
	return nil
}

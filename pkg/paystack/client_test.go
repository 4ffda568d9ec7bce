package paystack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/emekandu/kasuwa-backend/pkg/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(config.PaystackConfig{
		SecretKey: "sk_test_abc",
		BaseURL:   server.URL,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, server
}

func TestInitializeSendsAuthAndPayload(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/initialize" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test_abc" {
			t.Errorf("unexpected auth header %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["amount"] != float64(250000) {
			t.Errorf("unexpected amount %v", body["amount"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":  true,
			"message": "Authorization URL created",
			"data": map[string]any{
				"authorization_url": "https://checkout.paystack.com/abc123",
				"access_code":       "abc123",
				"reference":         "ord-1",
			},
		})
	})

	result, err := client.Initialize(context.Background(), InitializeRequest{
		Email:      "buyer@example.com",
		AmountKobo: 250000,
		Reference:  "ord-1",
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if result.AuthorizationURL != "https://checkout.paystack.com/abc123" {
		t.Fatalf("unexpected authorization url %q", result.AuthorizationURL)
	}
	if result.Reference != "ord-1" {
		t.Fatalf("unexpected reference %q", result.Reference)
	}
}

func TestInitializeValidatesInputs(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent for invalid input")
	})

	if _, err := client.Initialize(context.Background(), InitializeRequest{Email: "a@b.c", Reference: "r"}); err == nil {
		t.Fatal("expected zero amount to be rejected")
	}
	if _, err := client.Initialize(context.Background(), InitializeRequest{AmountKobo: 100, Reference: "r"}); err == nil {
		t.Fatal("expected missing email to be rejected")
	}
}

func TestVerifySuccess(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/verify/ord-2" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":  true,
			"message": "Verification successful",
			"data": map[string]any{
				"status":    "success",
				"reference": "ord-2",
				"amount":    110000,
				"currency":  "NGN",
				"channel":   "card",
			},
		})
	})

	result, err := client.Verify(context.Background(), "ord-2")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.Succeeded() {
		t.Fatal("expected success status")
	}
	if result.AmountKobo != 110000 {
		t.Fatalf("unexpected amount %d", result.AmountKobo)
	}
}

func TestVerifyGatewayFailure(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"status":  false,
			"message": "Transaction reference not found",
		})
	})

	if _, err := client.Verify(context.Background(), "missing-ref"); err == nil {
		t.Fatal("expected gateway failure to surface as error")
	}
}

func TestVerifyAbandonedIsNotSuccess(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status":  true,
			"message": "Verification successful",
			"data": map[string]any{
				"status":    "abandoned",
				"reference": "ord-3",
				"amount":    50000,
			},
		})
	})

	result, err := client.Verify(context.Background(), "ord-3")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Succeeded() {
		t.Fatal("abandoned transaction must not count as success")
	}
}

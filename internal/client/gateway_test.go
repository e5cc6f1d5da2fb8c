package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admissions-api/internal/models"
)

func newGatewayTestServer(t *testing.T, handler http.HandlerFunc) (*GatewayClient, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	client := NewGatewayClient(Config{BaseURL: srv.URL})
	return client, srv.Close
}

func TestCreateIntentRedirect(t *testing.T) {
	client, cleanup := newGatewayTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments", r.URL.Path)

		var req CreateIntentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a1", req.UserID)
		assert.Equal(t, 1500.0, req.Amount)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"payment":      map[string]string{"id": "pay-1"},
			"redirect_url": "https://checkout.test/pay-1",
		})
	})
	defer cleanup()

	batchID := "b1"
	receipt, err := client.CreateIntent(context.Background(), CreateIntentRequest{
		UserID:  "a1",
		BatchID: &batchID,
		Method:  "GCASH",
		Amount:  1500,
	})
	require.NoError(t, err)
	assert.Equal(t, "pay-1", receipt.PaymentID)
	assert.Equal(t, "https://checkout.test/pay-1", receipt.RedirectURL)
	assert.Empty(t, receipt.MockPaymentURL)
}

func TestCreateIntentDerivesMockURL(t *testing.T) {
	client, cleanup := newGatewayTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"payment": map[string]string{"id": "pay-2"},
			"mock":    true,
		})
	})
	defer cleanup()

	receipt, err := client.CreateIntent(context.Background(), CreateIntentRequest{UserID: "a1", Method: "CARD", Amount: 1500})
	require.NoError(t, err)
	assert.Contains(t, receipt.MockPaymentURL, "/payments/pay-2/mock")
}

func TestCreateIntentMissingPaymentID(t *testing.T) {
	client, cleanup := newGatewayTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	})
	defer cleanup()

	_, err := client.CreateIntent(context.Background(), CreateIntentRequest{UserID: "a1", Method: "CARD", Amount: 1500})
	require.Error(t, err)
}

func TestVerifyStatusMapping(t *testing.T) {
	cases := []struct {
		raw      string
		expected models.PaymentStatus
	}{
		{"paid", models.PaymentStatusPaid},
		{"PAID", models.PaymentStatusPaid},
		{"failed", models.PaymentStatusFailed},
		{"expired", models.PaymentStatusExpired},
		{"pending", models.PaymentStatusPending},
		{"created", models.PaymentStatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			client, cleanup := newGatewayTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/payments/pay-1/verify", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]string{"payment_status": tc.raw})
			})
			defer cleanup()

			status, err := client.Verify(context.Background(), "pay-1")
			require.NoError(t, err)
			assert.Equal(t, tc.expected, status)
		})
	}
}

func TestVerifyUnknownStatus(t *testing.T) {
	client, cleanup := newGatewayTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"payment_status": "refunded"})
	})
	defer cleanup()

	_, err := client.Verify(context.Background(), "pay-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown status")
}

func TestVerifyServerError(t *testing.T) {
	client, cleanup := newGatewayTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer cleanup()

	_, err := client.Verify(context.Background(), "pay-1")
	require.Error(t, err)
}

func TestProcessCash(t *testing.T) {
	client, cleanup := newGatewayTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/cash", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"payment":        map[string]string{"id": "pay-cash-1"},
			"receipt_number": "RCT-001",
		})
	})
	defer cleanup()

	result, err := client.ProcessCash(context.Background(), CashPaymentRequest{UserID: "a1", BatchID: "b1", Amount: 1500})
	require.NoError(t, err)
	assert.Equal(t, "pay-cash-1", result.PaymentID)
	assert.Equal(t, "RCT-001", result.ReceiptNumber)
}

func TestProcessCashIncompleteResponse(t *testing.T) {
	client, cleanup := newGatewayTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"payment": map[string]string{"id": "pay-cash-1"},
		})
	})
	defer cleanup()

	_, err := client.ProcessCash(context.Background(), CashPaymentRequest{UserID: "a1", BatchID: "b1", Amount: 1500})
	require.Error(t, err)
}

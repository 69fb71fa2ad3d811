package resourceserver_test

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402 "github.com/niklabh/x402-rs"
	"github.com/niklabh/x402-rs/resourceserver"
)

func TestPriceToMaxAmountRequired(t *testing.T) {
	amount := resourceserver.PriceToMaxAmountRequired(big.NewFloat(0.01), 6)
	assert.Equal(t, "10000", amount)
}

func testPayload(t *testing.T) string {
	t.Helper()
	transfer := x402.TransferAuthorization{
		From:        "0x857b06519E91e3A54538791bDbb0E22373e36b6",
		To:          "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb",
		Value:       "10000",
		ValidAfter:  "0",
		ValidBefore: "9999999999",
		Nonce:       "0xnonce",
		Signature:   "0x00",
	}
	raw, err := json.Marshal(transfer)
	require.NoError(t, err)
	payload := x402.PaymentPayload{
		X402Version: x402.X402Version,
		Scheme:      "exact",
		Network:     "8453",
		Payload:     raw,
	}
	encoded, err := x402.Encode(payload)
	require.NoError(t, err)
	return encoded
}

func TestPaymentMiddlewareReturns402WithoutHeader(t *testing.T) {
	facilitatorServer := httptest.NewServer(http.NotFoundHandler())
	defer facilitatorServer.Close()

	client := resourceserver.NewFacilitatorClient(resourceserver.FacilitatorClientConfig{BaseURL: facilitatorServer.URL})

	handler := resourceserver.PaymentMiddleware(big.NewFloat(0.01), "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb", 6,
		resourceserver.WithFacilitatorClient(client),
		resourceserver.WithAsset("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run without payment")
	}))

	req := httptest.NewRequest(http.MethodGet, "/weather", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	var body x402.PaymentRequiredResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Accepts, 1)
	assert.Equal(t, "10000", body.Accepts[0].MaxAmountRequired)
}

func TestPaymentMiddlewareProceedsOnValidPayment(t *testing.T) {
	facilitatorServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/verify":
			json.NewEncoder(w).Encode(x402.VerificationResponse{IsValid: true})
		case "/settle":
			json.NewEncoder(w).Encode(x402.SettlementResponse{TxHash: "0xdeadbeef", BlockNumber: 7})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer facilitatorServer.Close()

	client := resourceserver.NewFacilitatorClient(resourceserver.FacilitatorClientConfig{BaseURL: facilitatorServer.URL})

	handlerCalled := false
	handler := resourceserver.PaymentMiddleware(big.NewFloat(0.01), "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb", 6,
		resourceserver.WithFacilitatorClient(client),
		resourceserver.WithAsset("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/weather", nil)
	req.Header.Set("X-PAYMENT", testPayload(t))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.True(t, handlerCalled)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-PAYMENT-RESPONSE"))
}

func TestPaymentMiddlewareRejectsInvalidPayment(t *testing.T) {
	facilitatorServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(x402.VerificationResponse{IsValid: false, InvalidReason: "nonce already used"})
	}))
	defer facilitatorServer.Close()

	client := resourceserver.NewFacilitatorClient(resourceserver.FacilitatorClientConfig{BaseURL: facilitatorServer.URL})

	handler := resourceserver.PaymentMiddleware(big.NewFloat(0.01), "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb", 6,
		resourceserver.WithFacilitatorClient(client),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run on invalid payment")
	}))

	req := httptest.NewRequest(http.MethodGet, "/weather", nil)
	req.Header.Set("X-PAYMENT", testPayload(t))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

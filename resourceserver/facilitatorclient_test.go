package resourceserver_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402 "github.com/niklabh/x402-rs"
	"github.com/niklabh/x402-rs/resourceserver"
)

func TestVerifyAndSettleSucceeds(t *testing.T) {
	var verifyCalled, settleCalled bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/verify":
			verifyCalled = true
			json.NewEncoder(w).Encode(x402.VerificationResponse{IsValid: true})
		case "/settle":
			settleCalled = true
			json.NewEncoder(w).Encode(x402.SettlementResponse{TxHash: "0xabc", BlockNumber: 1})
		}
	}))
	defer server.Close()

	client := resourceserver.NewFacilitatorClient(resourceserver.FacilitatorClientConfig{BaseURL: server.URL})

	resp, err := client.VerifyAndSettle(context.Background(), x402.PaymentPayload{}, x402.PaymentRequirements{})
	require.NoError(t, err)
	assert.Equal(t, "0xabc", resp.TxHash)
	assert.True(t, verifyCalled)
	assert.True(t, settleCalled)
}

func TestVerifyAndSettleStopsAtFailedVerify(t *testing.T) {
	var settleCalled bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/verify":
			json.NewEncoder(w).Encode(x402.VerificationResponse{IsValid: false, InvalidReason: "bad signature"})
		case "/settle":
			settleCalled = true
		}
	}))
	defer server.Close()

	client := resourceserver.NewFacilitatorClient(resourceserver.FacilitatorClientConfig{BaseURL: server.URL})

	_, err := client.VerifyAndSettle(context.Background(), x402.PaymentPayload{}, x402.PaymentRequirements{})
	require.Error(t, err)
	kind, ok := x402.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, x402.KindVerificationFailed, kind)
	assert.False(t, settleCalled)
}

func TestVerifyPropagatesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := resourceserver.NewFacilitatorClient(resourceserver.FacilitatorClientConfig{BaseURL: server.URL})

	_, err := client.Verify(context.Background(), x402.PaymentPayload{}, x402.PaymentRequirements{})
	require.Error(t, err)
	kind, ok := x402.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, x402.KindHTTPError, kind)
}

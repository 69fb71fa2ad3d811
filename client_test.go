package x402_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402 "github.com/niklabh/x402-rs"
)

type fakeScheme struct{}

func (fakeScheme) Name() string { return "exact" }

func (fakeScheme) GeneratePayload(ctx context.Context, requirements x402.PaymentRequirements, payerPrivateKey, rpcURL string) (*x402.PaymentPayload, error) {
	return &x402.PaymentPayload{
		X402Version: x402.X402Version,
		Scheme:      "exact",
		Network:     requirements.Network,
		Payload:     json.RawMessage(`{"from":"0xpayer","to":"` + requirements.PayTo + `","value":"` + requirements.MaxAmountRequired + `"}`),
	}, nil
}

func (fakeScheme) Verify(ctx context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements, rpcURL string) (bool, error) {
	return true, nil
}

func (fakeScheme) Settle(ctx context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements, rpcURL, facilitatorPrivateKey string) (string, uint64, error) {
	return "0xdeadbeef", 0, nil
}

func TestRequestWithPaymentRetriesOnceAfter402(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("X-PAYMENT") == "" {
			w.WriteHeader(http.StatusPaymentRequired)
			json.NewEncoder(w).Encode(x402.PaymentRequiredResponse{
				X402Version: x402.X402Version,
				Accepts: []x402.PaymentRequirements{{
					Scheme:            "exact",
					Network:           "8453",
					MaxAmountRequired: "10000",
					Resource:          "/weather",
					PayTo:             "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb",
					MaxTimeoutSeconds: 300,
					Asset:             "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
				}},
			})
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	registry := x402.NewRegistry()
	registry.Register(fakeScheme{})

	req, err := http.NewRequest(http.MethodGet, server.URL+"/weather", nil)
	require.NoError(t, err)

	resp, err := x402.RequestWithPayment(context.Background(), x402.ClientConfig{
		PayerPrivateKey: "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
		RPCURL:          "https://rpc.example/",
		Schemes:         registry,
	}, req)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, calls)
}

func TestRequestWithPaymentPassesThroughNon402(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL+"/weather", nil)
	require.NoError(t, err)

	resp, err := x402.RequestWithPayment(context.Background(), x402.ClientConfig{Schemes: x402.NewRegistry()}, req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestWithPaymentNoSuitableRequirement(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(x402.PaymentRequiredResponse{
			X402Version: x402.X402Version,
			Accepts: []x402.PaymentRequirements{{
				Scheme:  "upto",
				Network: "8453",
			}},
		})
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL+"/weather", nil)
	require.NoError(t, err)

	_, err = x402.RequestWithPayment(context.Background(), x402.ClientConfig{
		PreferredScheme: "exact",
		Schemes:         x402.NewRegistry(),
	}, req)
	require.Error(t, err)
	kind, ok := x402.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, x402.KindNoSuitableRequirement, kind)
}

// Package resourceserver implements the resource-server role: deciding the
// price of a request, issuing a 402 with PaymentRequirements, and brokering
// verification and settlement to a remote facilitator over HTTP.
package resourceserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	x402 "github.com/niklabh/x402-rs"
)

// DefaultTimeout bounds how long a single facilitator round trip may take.
const DefaultTimeout = 30 * time.Second

// FacilitatorClientConfig configures a FacilitatorClient.
type FacilitatorClientConfig struct {
	// BaseURL is the facilitator's HTTP endpoint, e.g. "https://facilitator.example.com".
	BaseURL string
	Timeout time.Duration
}

// FacilitatorClient calls a remote facilitator's /verify and /settle endpoints.
type FacilitatorClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewFacilitatorClient builds a FacilitatorClient from cfg.
func NewFacilitatorClient(cfg FacilitatorClientConfig) *FacilitatorClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &FacilitatorClient{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Verify asks the facilitator whether payload satisfies requirements.
func (c *FacilitatorClient) Verify(ctx context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements) (*x402.VerificationResponse, error) {
	header, err := x402.Encode(payload)
	if err != nil {
		return nil, err
	}
	var resp x402.VerificationResponse
	if err := c.doRequest(ctx, "/verify", x402.VerificationRequest{PaymentHeader: header, PaymentRequirements: requirements}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Settle asks the facilitator to submit payload on-chain. Call only after
// Verify has reported the payload valid.
func (c *FacilitatorClient) Settle(ctx context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements) (*x402.SettlementResponse, error) {
	header, err := x402.Encode(payload)
	if err != nil {
		return nil, err
	}
	var resp x402.SettlementResponse
	if err := c.doRequest(ctx, "/settle", x402.SettlementRequest{PaymentHeader: header, PaymentRequirements: requirements}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyAndSettle verifies payload and, if valid, settles it in sequence.
func (c *FacilitatorClient) VerifyAndSettle(ctx context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements) (*x402.SettlementResponse, error) {
	verification, err := c.Verify(ctx, payload, requirements)
	if err != nil {
		return nil, x402.NewError(x402.KindHTTPError, "verify request failed: %v", err)
	}
	if !verification.IsValid {
		return nil, x402.NewError(x402.KindVerificationFailed, "%s", verification.InvalidReason)
	}

	settlement, err := c.Settle(ctx, payload, requirements)
	if err != nil {
		return nil, x402.NewError(x402.KindHTTPError, "settle request failed: %v", err)
	}
	if settlement.Error != "" {
		return nil, x402.NewError(x402.KindSettlementError, "%s", settlement.Error)
	}
	return settlement, nil
}

func (c *FacilitatorClient) doRequest(ctx context.Context, path string, body, result interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return x402.NewError(x402.KindJSONError, "marshaling request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return x402.NewError(x402.KindHTTPError, "building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return x402.NewError(x402.KindHTTPError, "sending request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return x402.NewError(x402.KindHTTPError, "reading response: %v", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return x402.NewError(x402.KindHTTPError, "facilitator returned %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return x402.NewError(x402.KindJSONError, "decoding response: %v", err)
	}
	return nil
}

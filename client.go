package x402

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// ClientConfig configures the pay-and-retry HTTP client helper.
type ClientConfig struct {
	PayerPrivateKey string
	RPCURL          string
	HTTPClient      *http.Client

	// PreferredScheme and PreferredNetwork narrow requirement selection, if set.
	PreferredScheme  string
	PreferredNetwork string

	Schemes *Registry
}

func (c *ClientConfig) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// RequestWithPayment sends req. If the response is not 402, it is returned
// unchanged. On 402, it parses the PaymentRequiredResponse, selects a
// requirement matching config's preferences, signs a payload via the
// registered scheme, attaches it as X-PAYMENT, and resends the identical
// request exactly once.
func RequestWithPayment(ctx context.Context, config ClientConfig, req *http.Request) (*http.Response, error) {
	var bodyBytes []byte
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, newError(KindHTTPError, "%v", err)
		}
		bodyBytes = b
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}

	resp, err := config.httpClient().Do(req.WithContext(ctx))
	if err != nil {
		return nil, newError(KindHTTPError, "%v", err)
	}
	if resp.StatusCode != http.StatusPaymentRequired {
		return resp, nil
	}
	defer resp.Body.Close()

	var required PaymentRequiredResponse
	if err := json.NewDecoder(resp.Body).Decode(&required); err != nil {
		return nil, newError(KindJSONError, "decoding 402 body: %v", err)
	}

	requirement, err := config.selectRequirement(required.Accepts)
	if err != nil {
		return nil, err
	}

	scheme, err := config.Schemes.Lookup(requirement.Scheme)
	if err != nil {
		return nil, err
	}

	payload, err := scheme.GeneratePayload(ctx, requirement, config.PayerPrivateKey, config.RPCURL)
	if err != nil {
		return nil, err
	}

	header, err := Encode(payload)
	if err != nil {
		return nil, err
	}

	retry, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, newError(KindHTTPError, "%v", err)
	}
	retry.Header = req.Header.Clone()
	retry.Header.Set("X-PAYMENT", header)

	retryResp, err := config.httpClient().Do(retry)
	if err != nil {
		return nil, newError(KindHTTPError, "%v", err)
	}
	return retryResp, nil
}

// selectRequirement retains entries matching PreferredScheme/PreferredNetwork
// (if set) and returns the first survivor, or NoSuitableRequirement.
func (c *ClientConfig) selectRequirement(accepts []PaymentRequirements) (PaymentRequirements, error) {
	for _, r := range accepts {
		if c.PreferredScheme != "" && r.Scheme != c.PreferredScheme {
			continue
		}
		if c.PreferredNetwork != "" && r.Network != c.PreferredNetwork {
			continue
		}
		return r, nil
	}
	return PaymentRequirements{}, newError(KindNoSuitableRequirement, "no requirement matched scheme=%q network=%q", c.PreferredScheme, c.PreferredNetwork)
}

package resourceserver

import (
	"encoding/json"
	"math/big"
	"net/http"

	x402 "github.com/niklabh/x402-rs"
)

// PaymentOptions configures PaymentMiddleware.
type PaymentOptions struct {
	Description       string
	MimeType          string
	MaxTimeoutSeconds int
	OutputSchema      json.RawMessage
	Resource          string
	ResourceRootURL   string
	Network           string
	Asset             string
	FacilitatorClient *FacilitatorClient
}

// Option mutates a PaymentOptions.
type Option func(*PaymentOptions)

func WithDescription(description string) Option {
	return func(o *PaymentOptions) { o.Description = description }
}

func WithMimeType(mimeType string) Option {
	return func(o *PaymentOptions) { o.MimeType = mimeType }
}

func WithMaxTimeoutSeconds(seconds int) Option {
	return func(o *PaymentOptions) { o.MaxTimeoutSeconds = seconds }
}

func WithOutputSchema(schema json.RawMessage) Option {
	return func(o *PaymentOptions) { o.OutputSchema = schema }
}

func WithResource(resource string) Option {
	return func(o *PaymentOptions) { o.Resource = resource }
}

func WithResourceRootURL(rootURL string) Option {
	return func(o *PaymentOptions) { o.ResourceRootURL = rootURL }
}

func WithNetwork(network string) Option {
	return func(o *PaymentOptions) { o.Network = network }
}

func WithAsset(asset string) Option {
	return func(o *PaymentOptions) { o.Asset = asset }
}

func WithFacilitatorClient(client *FacilitatorClient) Option {
	return func(o *PaymentOptions) { o.FacilitatorClient = client }
}

// PriceToMaxAmountRequired converts a decimal USD price into the smallest
// unit of an asset with the given number of decimals (e.g. 0.01 USDC, 6
// decimals, -> "10000").
func PriceToMaxAmountRequired(priceUSD *big.Float, decimals int) string {
	multiplier := new(big.Float).SetFloat64(pow10(decimals))
	scaled := new(big.Float).Mul(priceUSD, multiplier)
	amount, _ := scaled.Int(nil)
	return amount.String()
}

func pow10(n int) float64 {
	result := 1.0
	for i := 0; i < n; i++ {
		result *= 10
	}
	return result
}

// CreatePaymentRequiredResponse builds the 402 body advertising requirements
// as the sole accepted option.
func CreatePaymentRequiredResponse(errMsg string, requirements x402.PaymentRequirements) x402.PaymentRequiredResponse {
	return x402.PaymentRequiredResponse{
		X402Version: x402.X402Version,
		Accepts:     []x402.PaymentRequirements{requirements},
		Error:       errMsg,
	}
}

// PaymentMiddleware wraps an http.Handler so that it demands priceUSD (in
// dollars, e.g. 0.01 for one cent) paid to payTo before the wrapped handler
// runs. It decodes X-PAYMENT, verifies and settles it against the
// configured facilitator, and sets X-PAYMENT-RESPONSE on success.
func PaymentMiddleware(priceUSD *big.Float, payTo string, decimals int, opts ...Option) func(http.Handler) http.Handler {
	options := &PaymentOptions{
		MaxTimeoutSeconds: 60,
		Network:           "8453",
	}
	for _, opt := range opts {
		opt(options)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resource := options.Resource
			if resource == "" {
				resource = options.ResourceRootURL + r.URL.Path
			}

			requirements := x402.PaymentRequirements{
				Scheme:            "exact",
				Network:           options.Network,
				MaxAmountRequired: PriceToMaxAmountRequired(priceUSD, decimals),
				Resource:          resource,
				Description:       options.Description,
				MimeType:          options.MimeType,
				PayTo:             payTo,
				MaxTimeoutSeconds: options.MaxTimeoutSeconds,
				Asset:             options.Asset,
				OutputSchema:      options.OutputSchema,
			}

			header := r.Header.Get("X-PAYMENT")
			if header == "" {
				writePaymentRequired(w, "X-PAYMENT header is required", requirements)
				return
			}

			payload, err := x402.DecodePaymentPayload(header)
			if err != nil {
				writePaymentRequired(w, err.Error(), requirements)
				return
			}

			settlement, err := options.FacilitatorClient.VerifyAndSettle(r.Context(), *payload, requirements)
			if err != nil {
				writePaymentRequired(w, err.Error(), requirements)
				return
			}

			responseHeader, err := x402.EncodePaymentResponse(x402.PaymentResponse{TxHash: settlement.TxHash})
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("X-PAYMENT-RESPONSE", responseHeader)

			next.ServeHTTP(w, r)
		})
	}
}

func writePaymentRequired(w http.ResponseWriter, errMsg string, requirements x402.PaymentRequirements) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	json.NewEncoder(w).Encode(CreatePaymentRequiredResponse(errMsg, requirements))
}

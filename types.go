package x402

import "encoding/json"

// X402Version is the protocol version this module implements.
const X402Version = 1

// PaymentRequirements is the server-advertised offer for one resource.
type PaymentRequirements struct {
	Scheme            string          `json:"scheme"`
	Network           string          `json:"network"`
	MaxAmountRequired string          `json:"maxAmountRequired"`
	Resource          string          `json:"resource"`
	Description       string          `json:"description,omitempty"`
	MimeType          string          `json:"mimeType,omitempty"`
	OutputSchema      json.RawMessage `json:"outputSchema,omitempty"`
	PayTo             string          `json:"payTo"`
	MaxTimeoutSeconds int             `json:"maxTimeoutSeconds"`
	Asset             string          `json:"asset"`
	Extra             json.RawMessage `json:"extra,omitempty"`
}

// PaymentRequiredResponse is the 402 response body.
type PaymentRequiredResponse struct {
	X402Version int                   `json:"x402Version"`
	Accepts     []PaymentRequirements `json:"accepts"`
	Error       string                `json:"error,omitempty"`
}

// PaymentPayload is the client-signed envelope carried in the X-PAYMENT header.
type PaymentPayload struct {
	X402Version int             `json:"x402Version"`
	Scheme      string          `json:"scheme"`
	Network     string          `json:"network"`
	Payload     json.RawMessage `json:"payload"`
}

// TransferAuthorization is the "exact"/EVM scheme's payload: EIP-3009
// transferWithAuthorization parameters plus the EIP-712 signature.
type TransferAuthorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
	Signature   string `json:"signature"`
}

// VerificationRequest is sent to the facilitator's /verify endpoint.
type VerificationRequest struct {
	PaymentHeader       string              `json:"paymentHeader"`
	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`
}

// VerificationResponse is returned by the facilitator's /verify endpoint.
type VerificationResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
}

// SettlementRequest is sent to the facilitator's /settle endpoint.
type SettlementRequest struct {
	PaymentHeader       string              `json:"paymentHeader"`
	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`
}

// SettlementResponse is returned by the facilitator's /settle endpoint.
type SettlementResponse struct {
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber,omitempty"`
	Error       string `json:"error,omitempty"`
}

// PaymentResponse is the body of the X-PAYMENT-RESPONSE header, sent on 200
// after successful settlement.
type PaymentResponse struct {
	TxHash    string          `json:"txHash"`
	SettledAt string          `json:"settledAt,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// SupportedKind is one (scheme, network) combination the facilitator recognizes.
type SupportedKind struct {
	Scheme  string   `json:"scheme"`
	Network string   `json:"network"`
	Assets  []string `json:"assets,omitempty"`
}

// SupportedResponse is returned by the facilitator's /supported endpoint.
type SupportedResponse struct {
	Supported []SupportedKind `json:"supported"`
}

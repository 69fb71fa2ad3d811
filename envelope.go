package x402

import (
	"encoding/base64"
	"encoding/json"
)

// Encode serializes v as canonical JSON and base64-standard-encodes the
// UTF-8 bytes, for the X-PAYMENT / X-PAYMENT-RESPONSE headers.
func Encode(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", newError(KindJSONError, "%v", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Decode reverses Encode: base64-standard-decode, then JSON-unmarshal into v.
func Decode(encoded string, v interface{}) error {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return newError(KindBase64Error, "%v", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return newError(KindJSONError, "%v", err)
	}
	return nil
}

// DecodePaymentPayload decodes the X-PAYMENT header value into a PaymentPayload.
func DecodePaymentPayload(encoded string) (*PaymentPayload, error) {
	var p PaymentPayload
	if err := Decode(encoded, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// EncodePaymentResponse encodes a PaymentResponse for the X-PAYMENT-RESPONSE header.
func EncodePaymentResponse(r PaymentResponse) (string, error) {
	return Encode(r)
}

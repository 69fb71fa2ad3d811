package evmexact

import (
	"crypto/rand"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	x402 "github.com/niklabh/x402-rs"
)

// GenerateNonce draws a fresh 32-byte cryptographically random nonce for an
// EIP-3009 authorization, returned as 0x-prefixed hex.
func GenerateNonce() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", x402Err(x402.KindInvalidPayload, "generating nonce: %v", err)
	}
	return BytesToHex(b[:]), nil
}

// BytesToHex renders b as 0x-prefixed lowercase hex.
func BytesToHex(b []byte) string {
	return "0x" + common.Bytes2Hex(b)
}

// HexToBytes decodes a hex string (with or without 0x prefix) to bytes.
func HexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 != 0 {
		return nil, x402Err(x402.KindInvalidPayload, "odd-length hex string: %q", s)
	}
	return common.FromHex("0x" + s), nil
}

// Nonce32 decodes a nonce string into exactly 32 bytes, per spec.md's
// invariant that nonces are exactly 64 hex chars (optionally 0x-prefixed).
func Nonce32(s string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(trimmed) != 64 {
		return out, x402Err(x402.KindInvalidPayload, "nonce must be 64 hex chars, got %d", len(trimmed))
	}
	b, err := HexToBytes(s)
	if err != nil {
		return out, x402Err(x402.KindInvalidPayload, "invalid nonce: %v", err)
	}
	copy(out[:], b)
	return out, nil
}

// ParseAddress validates and normalizes an EVM address, accepted with or
// without a 0x prefix, and returns its checksummed common.Address.
func ParseAddress(addr string) (common.Address, error) {
	candidate := addr
	if !strings.HasPrefix(candidate, "0x") && !strings.HasPrefix(candidate, "0X") {
		candidate = "0x" + candidate
	}
	if !common.IsHexAddress(candidate) {
		return common.Address{}, x402Err(x402.KindInvalidAddress, "%q is not a valid address", addr)
	}
	return common.HexToAddress(candidate), nil
}

// ParseAmount parses a decimal string, or a hex string with a 0x/0X prefix,
// into a *big.Int. Anything else is InvalidAmount.
func ParseAmount(s string) (*big.Int, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			return nil, x402Err(x402.KindInvalidAmount, "cannot parse %q as hex uint256", s)
		}
		return v, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, x402Err(x402.KindInvalidAmount, "cannot parse %q as decimal uint256", s)
	}
	return v, nil
}

// DollarToTokenAmount converts a USD price to the smallest token unit:
// round(priceUSD / tokenUSDPrice * 10^decimals).
func DollarToTokenAmount(priceUSD float64, decimals int, tokenUSDPrice float64) (string, error) {
	if tokenUSDPrice <= 0 {
		return "", x402Err(x402.KindInvalidAmount, "token price must be positive, got %v", tokenUSDPrice)
	}
	tokenAmount := priceUSD / tokenUSDPrice
	multiplier := math.Pow(10, float64(decimals))
	smallestUnit := math.Round(tokenAmount * multiplier)
	return strconv.FormatUint(uint64(smallestUnit), 10), nil
}

// CurrentTimestamp returns the current Unix time in seconds.
func CurrentTimestamp() uint64 {
	return uint64(time.Now().Unix())
}

// IsTimestampValid reports whether now falls within [validAfter, validBefore].
func IsTimestampValid(validAfter, validBefore, now uint64) bool {
	return now >= validAfter && now <= validBefore
}

func x402Err(kind x402.Kind, format string, args ...interface{}) error {
	return x402.NewError(kind, format, args...)
}

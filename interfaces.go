package x402

import "context"

// Scheme is a polymorphic payment mechanism: a name plus three asynchronous
// operations. "exact" over EVM is the one scheme this module ships; a
// future scheme (e.g. "upto", or "exact" on a non-EVM chain) is a pure-data
// addition to the Registry, not a change to any of the three roles below.
type Scheme interface {
	// Name returns the scheme identifier (e.g. "exact").
	Name() string

	// GeneratePayload produces a payload whose scheme/network/x402Version
	// fields match requirements, signed with payerPrivateKey.
	GeneratePayload(ctx context.Context, requirements PaymentRequirements, payerPrivateKey, rpcURL string) (*PaymentPayload, error)

	// Verify reports whether payload authorizes the exact transfer demanded
	// by requirements and has not yet been consumed on-chain. It returns
	// false, not an error, for nearly all semantic mismatches; it raises
	// only for transport/RPC failures and for NonceUsed.
	Verify(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements, rpcURL string) (bool, error)

	// Settle submits the transaction, waits for inclusion, and returns the
	// transaction hash (and, if available, the block number it landed in).
	// It raises SettlementError on any failure.
	Settle(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements, rpcURL, facilitatorPrivateKey string) (txHash string, blockNumber uint64, err error)
}

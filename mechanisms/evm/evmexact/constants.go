// Package evmexact implements the "exact" payment scheme over EIP-3009 on
// EVM-compatible chains: EIP-712 typed-data signing of a
// transferWithAuthorization call, with facilitator-side verification and
// on-chain settlement.
package evmexact

// SchemeName is the value returned by (*Scheme).Name.
const SchemeName = "exact"

// Defaults for the EIP-712 domain when PaymentRequirements.Extra doesn't
// carry its own {"name","version"}.
const (
	DefaultDomainName    = "USD Coin"
	DefaultDomainVersion = "2"
)

// transferWithAuthorizationABI is the EIP-3009 ABI fragment for the
// gasless-transfer call the facilitator submits at settlement.
const transferWithAuthorizationABI = `[{
	"type": "function",
	"name": "transferWithAuthorization",
	"inputs": [
		{"name": "from", "type": "address"},
		{"name": "to", "type": "address"},
		{"name": "value", "type": "uint256"},
		{"name": "validAfter", "type": "uint256"},
		{"name": "validBefore", "type": "uint256"},
		{"name": "nonce", "type": "bytes32"},
		{"name": "v", "type": "uint8"},
		{"name": "r", "type": "bytes32"},
		{"name": "s", "type": "bytes32"}
	],
	"outputs": []
}]`

// authorizationStateABI is the EIP-3009 view call used to check whether a
// nonce has already been consumed on-chain.
const authorizationStateABI = `[{
	"type": "function",
	"name": "authorizationState",
	"stateMutability": "view",
	"inputs": [
		{"name": "authorizer", "type": "address"},
		{"name": "nonce", "type": "bytes32"}
	],
	"outputs": [{"name": "", "type": "bool"}]
}]`

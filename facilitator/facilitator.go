// Package facilitator implements the x402 facilitator role: it holds the
// signing key and chain access a resource server does not want to manage
// itself, and exposes /verify, /settle, /supported, and /health over gin.
package facilitator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	x402 "github.com/niklabh/x402-rs"
)

// Kind identifies a supported (scheme, network) pair, mirroring the wire
// shape of x402.SupportedKind.
type Kind struct {
	Scheme  string
	Network string
	Asset   string
}

// Config configures a Service: the key it settles with, the RPC endpoint it
// reaches chains through, and the (scheme, network) pairs it is willing to
// verify and settle.
// Policy toward an authorizationState RPC failure (as opposed to a
// successful call reporting the nonce consumed) is a property of the
// registered scheme, not of the facilitator itself: build the registry with
// evmexact.NewWithOptions(failOpen) to control it.
type Config struct {
	SigningPrivateKey string
	RPCURL            string
	Supported         []Kind
	Schemes           *x402.Registry
}

// Service is a running facilitator: RPC-connected, key-holding, and tracking
// which EIP-3009 nonces it has already settled.
type Service struct {
	cfg Config

	mu         sync.RWMutex
	usedNonces map[string]struct{}
}

// New builds a Service from cfg.
func New(cfg Config) *Service {
	log.Printf("facilitator: starting up, rpc=%s, %d supported kind(s)", cfg.RPCURL, len(cfg.Supported))
	return &Service{
		cfg:        cfg,
		usedNonces: make(map[string]struct{}),
	}
}

// Close releases any resources held by the service. Settlement and
// verification dial the chain per call rather than holding a connection
// open, so there is nothing to release today; it exists so callers have a
// place to log and hook cleanup as the service grows.
func (s *Service) Close() {
	log.Printf("facilitator: shutting down")
}

func (s *Service) isSupported(scheme, network string) bool {
	for _, k := range s.cfg.Supported {
		if k.Scheme == scheme && k.Network == network {
			return true
		}
	}
	return false
}

func (s *Service) nonceFromPayload(payload x402.PaymentPayload) (string, bool) {
	var transfer x402.TransferAuthorization
	if err := json.Unmarshal(payload.Payload, &transfer); err != nil {
		return "", false
	}
	return transfer.Nonce, transfer.Nonce != ""
}

func (s *Service) nonceUsedLocally(nonce string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, used := s.usedNonces[nonce]
	return used
}

func (s *Service) markNonceUsed(nonce string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usedNonces[nonce] = struct{}{}
}

// Verify decides whether a payment payload authorizes the exact transfer
// demanded by requirements and has not already been settled by this
// facilitator.
func (s *Service) Verify(ctx context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements) x402.VerificationResponse {
	if !s.isSupported(payload.Scheme, payload.Network) {
		log.Printf("facilitator: verify rejected, unsupported scheme/network: %s/%s", payload.Scheme, payload.Network)
		return x402.VerificationResponse{
			IsValid:       false,
			InvalidReason: fmt.Sprintf("unsupported scheme/network: %s/%s", payload.Scheme, payload.Network),
		}
	}

	scheme, err := s.cfg.Schemes.Lookup(payload.Scheme)
	if err != nil {
		log.Printf("facilitator: verify scheme lookup failed: %v", err)
		return x402.VerificationResponse{IsValid: false, InvalidReason: err.Error()}
	}

	if nonce, ok := s.nonceFromPayload(payload); ok && s.nonceUsedLocally(nonce) {
		log.Printf("facilitator: verify rejected, nonce already used locally: %s", nonce)
		return x402.VerificationResponse{IsValid: false, InvalidReason: "nonce already used"}
	}

	valid, err := scheme.Verify(ctx, payload, requirements, s.cfg.RPCURL)
	if err != nil {
		log.Printf("facilitator: verify error for %s/%s: %v", payload.Scheme, payload.Network, err)
		return x402.VerificationResponse{IsValid: false, InvalidReason: err.Error()}
	}
	if !valid {
		log.Printf("facilitator: verify rejected payload for resource %s", requirements.Resource)
		return x402.VerificationResponse{IsValid: false, InvalidReason: "verification failed"}
	}

	return x402.VerificationResponse{IsValid: true}
}

// Settle re-verifies payload and, if still valid, submits it on-chain. The
// nonce is recorded locally only once settlement succeeds, so a verify
// failure or a reverted transaction leaves the nonce free to retry.
func (s *Service) Settle(ctx context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements) x402.SettlementResponse {
	verification := s.Verify(ctx, payload, requirements)
	if !verification.IsValid {
		log.Printf("facilitator: settle aborted, verify failed: %s", verification.InvalidReason)
		return x402.SettlementResponse{Error: verification.InvalidReason}
	}

	scheme, err := s.cfg.Schemes.Lookup(payload.Scheme)
	if err != nil {
		log.Printf("facilitator: settle scheme lookup failed: %v", err)
		return x402.SettlementResponse{Error: err.Error()}
	}

	txHash, blockNumber, err := scheme.Settle(ctx, payload, requirements, s.cfg.RPCURL, s.cfg.SigningPrivateKey)
	if err != nil {
		log.Printf("facilitator: settle failed for %s/%s: %v", payload.Scheme, payload.Network, err)
		return x402.SettlementResponse{Error: err.Error()}
	}

	if nonce, ok := s.nonceFromPayload(payload); ok {
		s.markNonceUsed(nonce)
	}

	log.Printf("facilitator: settled tx=%s block=%d", txHash, blockNumber)
	return x402.SettlementResponse{TxHash: txHash, BlockNumber: blockNumber}
}

// Supported lists the (scheme, network) pairs this facilitator accepts.
func (s *Service) Supported() x402.SupportedResponse {
	kinds := make([]x402.SupportedKind, 0, len(s.cfg.Supported))
	for _, k := range s.cfg.Supported {
		assets := []string(nil)
		if k.Asset != "" {
			assets = []string{k.Asset}
		}
		kinds = append(kinds, x402.SupportedKind{Scheme: k.Scheme, Network: k.Network, Assets: assets})
	}
	return x402.SupportedResponse{Supported: kinds}
}

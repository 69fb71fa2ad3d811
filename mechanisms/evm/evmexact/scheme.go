package evmexact

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	x402 "github.com/niklabh/x402-rs"
)

// validBeforeSafetyMarginSeconds is the minimum slack Verify requires
// between now and an authorization's validBefore, so a payload accepted at
// verify time still has room to be mined before it expires on-chain.
const validBeforeSafetyMarginSeconds = 6

// domainExtra is the optional {"name","version"} carried in
// PaymentRequirements.Extra to override the EIP-712 domain for tokens other
// than the default USDC-style deployment.
type domainExtra struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Scheme implements x402.Scheme for EIP-3009 transferWithAuthorization
// payments on EVM-compatible chains.
type Scheme struct {
	// FailOpenOnRPCError treats an authorizationState call that fails at
	// the transport level as "not yet used" instead of rejecting the
	// payment outright. Defaults to false: a facilitator that can't reach
	// the chain should not guess that a nonce is still fresh.
	FailOpenOnRPCError bool
}

// New returns the "exact" EVM scheme, ready to register with an
// x402.Registry.
func New() *Scheme {
	return &Scheme{}
}

// NewWithOptions returns the "exact" EVM scheme with failOpenOnRPCError
// controlling its behavior when the authorizationState RPC call itself
// fails (as opposed to succeeding and reporting the nonce as consumed).
func NewWithOptions(failOpenOnRPCError bool) *Scheme {
	return &Scheme{FailOpenOnRPCError: failOpenOnRPCError}
}

func (*Scheme) Name() string { return SchemeName }

func domainFromExtra(extra json.RawMessage) (name, version string) {
	name, version = DefaultDomainName, DefaultDomainVersion
	if len(extra) == 0 {
		return name, version
	}
	var d domainExtra
	if err := json.Unmarshal(extra, &d); err != nil {
		return name, version
	}
	if d.Name != "" {
		name = d.Name
	}
	if d.Version != "" {
		version = d.Version
	}
	return name, version
}

// GeneratePayload signs a fresh EIP-3009 authorization transferring
// requirements.MaxAmountRequired from the payer to requirements.PayTo.
func (s *Scheme) GeneratePayload(ctx context.Context, requirements x402.PaymentRequirements, payerPrivateKey, rpcURL string) (*x402.PaymentPayload, error) {
	privHex := strings.TrimPrefix(payerPrivateKey, "0x")
	privateKey, err := crypto.HexToECDSA(privHex)
	if err != nil {
		return nil, x402.NewError(x402.KindSignatureError, "invalid payer private key: %v", err)
	}
	from := crypto.PubkeyToAddress(privateKey.PublicKey)

	to, err := ParseAddress(requirements.PayTo)
	if err != nil {
		return nil, err
	}
	value, err := ParseAmount(requirements.MaxAmountRequired)
	if err != nil {
		return nil, err
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, x402.NewError(x402.KindBlockchainError, "dialing rpc: %v", err)
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, x402.NewError(x402.KindBlockchainError, "fetching chain id: %v", err)
	}

	nonce, err := GenerateNonce()
	if err != nil {
		return nil, err
	}

	now := CurrentTimestamp()
	validAfter := now
	validBefore := now + uint64(requirements.MaxTimeoutSeconds)

	auth := Authorization{
		From:        from.Hex(),
		To:          to.Hex(),
		Value:       value.String(),
		ValidAfter:  big.NewInt(int64(validAfter)).String(),
		ValidBefore: big.NewInt(int64(validBefore)).String(),
		Nonce:       nonce,
	}

	tokenName, tokenVersion := domainFromExtra(requirements.Extra)
	digest, err := HashAuthorization(auth, chainID, requirements.Asset, tokenName, tokenVersion)
	if err != nil {
		return nil, err
	}

	sig, err := crypto.Sign(digest, privateKey)
	if err != nil {
		return nil, x402.NewError(x402.KindSignatureError, "signing authorization: %v", err)
	}
	sig[64] += 27

	transfer := x402.TransferAuthorization{
		From:        auth.From,
		To:          auth.To,
		Value:       auth.Value,
		ValidAfter:  auth.ValidAfter,
		ValidBefore: auth.ValidBefore,
		Nonce:       nonce,
		Signature:   BytesToHex(sig),
	}
	raw, err := json.Marshal(transfer)
	if err != nil {
		return nil, x402.NewError(x402.KindJSONError, "marshaling authorization: %v", err)
	}

	return &x402.PaymentPayload{
		X402Version: x402.X402Version,
		Scheme:      SchemeName,
		Network:     requirements.Network,
		Payload:     raw,
	}, nil
}

// Verify checks a payment payload against requirements and the token
// contract's on-chain nonce state, without submitting any transaction.
func (s *Scheme) Verify(ctx context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements, rpcURL string) (bool, error) {
	if payload.Scheme != SchemeName {
		return false, nil
	}
	if payload.Network != requirements.Network {
		return false, nil
	}

	var transfer x402.TransferAuthorization
	if err := json.Unmarshal(payload.Payload, &transfer); err != nil {
		return false, nil
	}

	to, err := ParseAddress(transfer.To)
	if err != nil {
		return false, nil
	}
	wantTo, err := ParseAddress(requirements.PayTo)
	if err != nil {
		return false, nil
	}
	if to != wantTo {
		return false, nil
	}

	value, err := ParseAmount(transfer.Value)
	if err != nil {
		return false, nil
	}
	required, err := ParseAmount(requirements.MaxAmountRequired)
	if err != nil {
		return false, nil
	}
	if value.Cmp(required) != 0 {
		return false, nil
	}

	validAfter, err := ParseAmount(transfer.ValidAfter)
	if err != nil {
		return false, nil
	}
	validBefore, err := ParseAmount(transfer.ValidBefore)
	if err != nil {
		return false, nil
	}
	now := CurrentTimestamp()
	if !IsTimestampValid(validAfter.Uint64(), validBefore.Uint64(), now) {
		return false, nil
	}
	if now+validBeforeSafetyMarginSeconds > validBefore.Uint64() {
		return false, nil
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return false, x402.NewError(x402.KindBlockchainError, "dialing rpc: %v", err)
	}
	defer client.Close()

	used, rpcErr := s.authorizationState(ctx, client, requirements.Asset, transfer.From, transfer.Nonce)
	if rpcErr != nil {
		if s.FailOpenOnRPCError {
			used = false
		} else {
			return false, x402.NewError(x402.KindNonceUsed, "checking authorization state: %v", rpcErr)
		}
	}
	if used {
		return false, x402.NewError(x402.KindNonceUsed, "nonce %s already used", transfer.Nonce)
	}

	from, err := ParseAddress(transfer.From)
	if err != nil {
		return false, nil
	}
	tokenName, tokenVersion := domainFromExtra(requirements.Extra)
	auth := Authorization{
		From:        from.Hex(),
		To:          to.Hex(),
		Value:       transfer.Value,
		ValidAfter:  transfer.ValidAfter,
		ValidBefore: transfer.ValidBefore,
		Nonce:       transfer.Nonce,
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return false, x402.NewError(x402.KindBlockchainError, "fetching chain id: %v", err)
	}
	digest, err := HashAuthorization(auth, chainID, requirements.Asset, tokenName, tokenVersion)
	if err != nil {
		return false, nil
	}

	sig, err := HexToBytes(transfer.Signature)
	if err != nil {
		return false, nil
	}
	if len(sig) != 65 {
		return false, nil
	}
	recoverSig := make([]byte, 65)
	copy(recoverSig, sig)
	if recoverSig[64] >= 27 {
		recoverSig[64] -= 27
	}
	pub, err := crypto.SigToPub(digest, recoverSig)
	if err != nil {
		return false, nil
	}
	signer := crypto.PubkeyToAddress(*pub)
	if signer != from {
		return false, nil
	}

	return true, nil
}

// Settle submits the authorized transferWithAuthorization call on-chain and
// waits for it to be mined. Every failure is reported as SettlementError.
func (s *Scheme) Settle(ctx context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements, rpcURL, facilitatorPrivateKey string) (txHash string, blockNumber uint64, err error) {
	defer func() {
		if err == nil {
			return
		}
		if kind, ok := x402.KindOf(err); !ok || kind != x402.KindSettlementError {
			err = x402.NewError(x402.KindSettlementError, "%v", err)
		}
	}()

	var transfer x402.TransferAuthorization
	if err := json.Unmarshal(payload.Payload, &transfer); err != nil {
		return "", 0, x402.NewError(x402.KindJSONError, "decoding payload: %v", err)
	}

	privHex := strings.TrimPrefix(facilitatorPrivateKey, "0x")
	privateKey, err := crypto.HexToECDSA(privHex)
	if err != nil {
		return "", 0, x402.NewError(x402.KindSignatureError, "invalid facilitator private key: %v", err)
	}
	facilitatorAddr := crypto.PubkeyToAddress(privateKey.PublicKey)

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return "", 0, x402.NewError(x402.KindBlockchainError, "dialing rpc: %v", err)
	}
	defer client.Close()

	from, err := ParseAddress(transfer.From)
	if err != nil {
		return "", 0, err
	}
	to, err := ParseAddress(transfer.To)
	if err != nil {
		return "", 0, err
	}
	value, err := ParseAmount(transfer.Value)
	if err != nil {
		return "", 0, err
	}
	validAfter, err := ParseAmount(transfer.ValidAfter)
	if err != nil {
		return "", 0, err
	}
	validBefore, err := ParseAmount(transfer.ValidBefore)
	if err != nil {
		return "", 0, err
	}
	nonce, err := Nonce32(transfer.Nonce)
	if err != nil {
		return "", 0, err
	}
	sig, err := HexToBytes(transfer.Signature)
	if err != nil || len(sig) != 65 {
		return "", 0, x402.NewError(x402.KindSignatureError, "invalid signature")
	}
	r := [32]byte{}
	sBytes := [32]byte{}
	copy(r[:], sig[0:32])
	copy(sBytes[:], sig[32:64])
	v := sig[64]

	parsedABI, err := abi.JSON(strings.NewReader(transferWithAuthorizationABI))
	if err != nil {
		return "", 0, x402.NewError(x402.KindConfigError, "parsing transferWithAuthorization ABI: %v", err)
	}
	data, err := parsedABI.Pack("transferWithAuthorization", from, to, value, validAfter, validBefore, nonce, v, r, sBytes)
	if err != nil {
		return "", 0, x402.NewError(x402.KindBlockchainError, "packing transferWithAuthorization call: %v", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return "", 0, x402.NewError(x402.KindBlockchainError, "fetching chain id: %v", err)
	}
	nonceAt, err := client.PendingNonceAt(ctx, facilitatorAddr)
	if err != nil {
		return "", 0, x402.NewError(x402.KindBlockchainError, "fetching facilitator nonce: %v", err)
	}
	tip, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		tip = big.NewInt(100_000_000)
	}
	header, err := client.HeaderByNumber(ctx, nil)
	baseFee := big.NewInt(1_000_000_000)
	if err == nil && header.BaseFee != nil {
		baseFee = header.BaseFee
	}
	maxFee := new(big.Int).Add(new(big.Int).Mul(big.NewInt(2), baseFee), tip)

	asset, err := ParseAddress(requirements.Asset)
	if err != nil {
		return "", 0, err
	}

	gasLimit, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From: facilitatorAddr,
		To:   &asset,
		Data: data,
	})
	if err != nil {
		gasLimit = 150_000
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonceAt,
		GasTipCap: tip,
		GasFeeCap: maxFee,
		Gas:       gasLimit,
		To:        &asset,
		Data:      data,
	})

	signer := types.LatestSignerForChainID(chainID)
	signedTx, err := types.SignTx(tx, signer, privateKey)
	if err != nil {
		return "", 0, x402.NewError(x402.KindSignatureError, "signing settlement transaction: %v", err)
	}

	if err := client.SendTransaction(ctx, signedTx); err != nil {
		return "", 0, x402.NewError(x402.KindSettlementError, "broadcasting transaction: %v", err)
	}

	receipt, err := waitMined(ctx, client, signedTx.Hash())
	if err != nil {
		return "", 0, x402.NewError(x402.KindSettlementError, "waiting for receipt: %v", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", 0, x402.NewError(x402.KindSettlementError, "transaction %s reverted", signedTx.Hash().Hex())
	}

	return signedTx.Hash().Hex(), receipt.BlockNumber.Uint64(), nil
}

func (s *Scheme) authorizationState(ctx context.Context, client *ethclient.Client, tokenAddress, authorizer, nonce string) (bool, error) {
	parsedABI, err := abi.JSON(strings.NewReader(authorizationStateABI))
	if err != nil {
		return true, x402.NewError(x402.KindConfigError, "parsing authorizationState ABI: %v", err)
	}

	authorizerAddr, err := ParseAddress(authorizer)
	if err != nil {
		return true, err
	}
	nonceBytes, err := Nonce32(nonce)
	if err != nil {
		return true, err
	}

	data, err := parsedABI.Pack("authorizationState", authorizerAddr, nonceBytes)
	if err != nil {
		return true, x402.NewError(x402.KindBlockchainError, "packing authorizationState call: %v", err)
	}

	asset, err := ParseAddress(tokenAddress)
	if err != nil {
		return true, err
	}

	result, err := client.CallContract(ctx, ethereum.CallMsg{To: &asset, Data: data}, nil)
	if err != nil {
		return true, x402.NewError(x402.KindBlockchainError, "calling authorizationState: %v", err)
	}

	outputs, err := parsedABI.Unpack("authorizationState", result)
	if err != nil || len(outputs) == 0 {
		return true, x402.NewError(x402.KindBlockchainError, "unpacking authorizationState result: %v", err)
	}
	used, ok := outputs[0].(bool)
	if !ok {
		return true, x402.NewError(x402.KindBlockchainError, "unexpected authorizationState result type")
	}
	return used, nil
}

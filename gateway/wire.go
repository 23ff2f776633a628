package gateway

import (
	"bytes"
	"context"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
)

// ReceiveInvoiceResult is what the gateway returns for a ReceiveInvoice
// request: the preimage decrypted for the wrapped HTLC, the same outcome
// HandleHtlcIncoming reports to a streaming Lightning node.
type ReceiveInvoiceResult struct {
	Preimage []byte
}

// receiveInvoice handles an incoming-HTLC webhook delivered over the
// gateway's request channel rather than the gRPC streaming path RouteHtlcs
// opens — the shape a CLN-style Lightning plugin uses to hand off an
// accepted HTLC over HTTP instead of a long-lived stream. Both paths settle
// through the same buyPreimageInternal recovery logic.
func (g *LnGateway) receiveInvoice(ctx context.Context, req ReceiveInvoicePayload) (*ReceiveInvoiceResult, error) {
	resp, err := g.HandleHtlcIncoming(ctx, req.Htlc)
	if err != nil {
		return nil, err
	}
	return &ReceiveInvoiceResult{Preimage: resp.Preimage}, nil
}

// BalanceResult is what the gateway returns for a Balance request.
type BalanceResult struct {
	AmountMsat int64
}

func (g *LnGateway) balance(ctx context.Context) (*BalanceResult, error) {
	if err := g.federation.FetchAllCoins(ctx); err != nil {
		return nil, federationClientError(err)
	}

	amount, err := g.federation.Balance(ctx)
	if err != nil {
		return nil, federationClientError(err)
	}
	return &BalanceResult{AmountMsat: amount}, nil
}

// DepositAddressResult is what the gateway returns for a DepositAddress
// request: a bitcoin address the caller can send funds to.
type DepositAddressResult struct {
	Address string
}

func (g *LnGateway) depositAddress(ctx context.Context) (*DepositAddressResult, error) {
	addr, err := g.federation.NewPegInAddress(ctx)
	if err != nil {
		return nil, federationClientError(err)
	}
	return &DepositAddressResult{Address: addr}, nil
}

// DepositResult is what the gateway returns for a Deposit request.
type DepositResult struct {
	TransactionID [32]byte
}

// deposit decodes a consensus-encoded bitcoin transaction and hands it off
// to the federation's wallet module. This handler receives the raw
// consensus-encoded bytes; in the webserver's JSON request body TxBytes is
// a []byte field, so it travels base64-encoded, not as hex.
func (g *LnGateway) deposit(ctx context.Context, req DepositPayload) (*DepositResult, error) {
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(req.TxBytes)); err != nil {
		return nil, clientError("malformed deposit transaction: %v", err)
	}

	txid, err := g.federation.PegIn(ctx, &tx)
	if err != nil {
		return nil, federationClientError(err)
	}
	return &DepositResult{TransactionID: txid}, nil
}

// WithdrawResult is what the gateway returns for a Withdraw request.
type WithdrawResult struct {
	TransactionID [32]byte
}

func (g *LnGateway) withdraw(ctx context.Context, req WithdrawPayload) (*WithdrawResult, error) {
	if _, err := btcutil.DecodeAddress(req.Address, &chaincfg.MainNetParams); err != nil {
		return nil, clientError("invalid withdrawal address: %v", err)
	}

	txid, err := g.federation.PegOut(ctx, req.AmountSat, req.Address)
	if err != nil {
		return nil, federationClientError(err)
	}
	return &WithdrawResult{TransactionID: txid}, nil
}

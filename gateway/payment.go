package gateway

import (
	"context"
)

// paymentState names each stage of the outgoing payment state machine. The
// control flow itself is encoded directly in PayInvoice rather than as an
// explicit state table; PayInvoice uses only stateSaved, as the state label
// it writes to the contract store.
type paymentState int

const (
	stateFetched paymentState = iota
	stateValidated
	stateSaved
	statePayingInternal
	statePayingExternal
	stateClaimed
	stateAwaited
	stateAborted
)

func (s paymentState) String() string {
	switch s {
	case stateFetched:
		return "fetched"
	case stateValidated:
		return "validated"
	case stateSaved:
		return "saved"
	case statePayingInternal:
		return "paying_internal"
	case statePayingExternal:
		return "paying_external"
	case stateClaimed:
		return "claimed"
	case stateAwaited:
		return "awaited"
	case stateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// PayInvoice drives a contract through fetch -> validate -> save ->
// pay(internal|external) -> claim. Any failure along the way aborts the
// contract on the federation side before the original error is returned,
// so a contract is never left half-settled.
func (g *LnGateway) PayInvoice(ctx context.Context, id ContractID) (outpoint [32]byte, err error) {
	abortOnFailure := func(origErr error) ([32]byte, error) {
		if abortErr := g.federation.AbortOutgoingContract(ctx, id); abortErr != nil {
			htlcLog.Errorf("failed to abort contract %x after error %v: %v", id, origErr, abortErr)
		}
		return [32]byte{}, origErr
	}

	contract, err := g.federation.FetchOutgoingContract(ctx, id)
	if err != nil {
		return abortOnFailure(federationClientError(err))
	}

	params, err := g.federation.ValidateOutgoingContract(ctx, contract)
	if err != nil {
		return abortOnFailure(clientError("invalid contract: %v", err))
	}

	if g.store != nil {
		if err := g.store.Save(contract, stateSaved.String()); err != nil {
			htlcLog.Warnf("best-effort save of contract %x failed: %v", id, err)
		}
	}

	internal := params.MaybeInternal
	if internal {
		exists, offerErr := g.federation.OfferExists(ctx, params.PaymentHash)
		if offerErr != nil {
			htlcLog.Warnf("offer_exists lookup failed, treating as false: %v", offerErr)
			exists = false
		}
		internal = exists
	}

	var preimage []byte
	if internal {
		preimage, err = g.buyPreimageInternal(ctx, params.PaymentHash, params.InvoiceAmount)
		if err != nil {
			return abortOnFailure(federationClientError(err))
		}
	} else {
		resp, payErr := g.lnClient.Pay(ctx, PayInvoiceRequest{
			Invoice:       contract.Invoice,
			MaxDelay:      params.MaxDelay,
			MaxFeePercent: params.MaxFeePercent,
		})
		if payErr != nil {
			return abortOnFailure(couldNotRoute(payErr))
		}
		preimage = resp.Preimage
	}

	outpoint, err = g.federation.ClaimOutgoingContract(ctx, id, preimage)
	if err != nil {
		return abortOnFailure(federationClientError(err))
	}

	return outpoint, nil
}

// AwaitOutgoingContractClaimed blocks until the claim from PayInvoice is
// confirmed by consensus.
func (g *LnGateway) AwaitOutgoingContractClaimed(ctx context.Context, id ContractID, outpoint [32]byte) error {
	return g.federation.AwaitOutgoingContractClaimed(ctx, id, outpoint)
}

// buyPreimageInternal buys and decrypts an internal preimage offer,
// requesting a refund of the escrowed incoming contract if decryption
// fails. Both the outgoing payment's internal branch and the incoming
// HTLC handler share this recovery path rather than each reimplementing
// it.
func (g *LnGateway) buyPreimageInternal(ctx context.Context, hash PaymentHash, amount int64) ([]byte, error) {
	preimage, incomingID, err := g.federation.BuyPreimageInternal(ctx, hash, amount)
	if err != nil {
		if incomingID != (ContractID{}) {
			if refundErr := g.federation.RefundIncomingContract(ctx, incomingID); refundErr != nil {
				htlcLog.Errorf("failed to refund incoming contract %x after decrypt failure: %v", incomingID, refundErr)
			}
		}
		return nil, err
	}
	return preimage, nil
}

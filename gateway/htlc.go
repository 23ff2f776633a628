package gateway

import "context"

// HandleHtlcIncoming buys the preimage for an accepted inbound HTLC from
// the federation and returns it to the caller, which is responsible for
// forwarding it to the Lightning node to settle the HTLC. This reuses the
// same internal preimage-buy path the outgoing payment state machine uses
// for its internal branch, including the refund-on-decrypt-failure step.
func (g *LnGateway) HandleHtlcIncoming(ctx context.Context, req InterceptHtlcRequest) (InterceptHtlcResponse, error) {
	preimage, err := g.buyPreimageInternal(
		ctx, PaymentHash(req.PaymentHash), req.AmountMsat,
	)
	if err != nil {
		htlcLog.Errorf("failed to buy preimage for htlc %x: %v", req.PaymentHash, err)
		return InterceptHtlcResponse{PaymentHash: req.PaymentHash, Fail: true}, federationClientError(err)
	}

	return InterceptHtlcResponse{
		PaymentHash: req.PaymentHash,
		Preimage:    preimage,
	}, nil
}

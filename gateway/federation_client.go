package gateway

import (
	"context"

	"github.com/btcsuite/btcd/wire"
)

// ContractID identifies a federation-side escrow contract.
type ContractID [32]byte

// PaymentHash is the SHA-256 hash whose preimage settles a Lightning HTLC.
type PaymentHash [32]byte

// OutgoingContract is the federation-side escrow record fetched at the
// start of the outgoing payment state machine.
type OutgoingContract struct {
	ID            ContractID
	Invoice       string
	ExpectedAmount int64
}

// OutgoingContractParams is what ValidateOutgoingContract extracts from an
// OutgoingContract before committing to a payment path.
type OutgoingContractParams struct {
	PaymentHash    PaymentHash
	InvoiceAmount  int64
	MaxDelay       uint32
	MaxFeePercent  float64
	MaybeInternal  bool
}

// FederationClient is the gateway's view of the federation it bridges:
// fetching and claiming contracts, buying and decrypting preimages, and
// driving the periodic coin-issuance fetch. Both the outgoing payment
// state machine and the incoming HTLC handler depend only on this
// interface, never on a concrete federation transport.
type FederationClient interface {
	// FetchOutgoingContract fetches the escrow contract by id.
	FetchOutgoingContract(ctx context.Context, id ContractID) (*OutgoingContract, error)

	// ValidateOutgoingContract extracts payment parameters from a fetched
	// contract.
	ValidateOutgoingContract(ctx context.Context, c *OutgoingContract) (*OutgoingContractParams, error)

	// OfferExists reports whether this federation already holds an offer
	// for the given payment hash, i.e. whether the "internal" payment
	// path applies. A lookup error is treated as false by callers, never
	// propagated as a hard failure.
	OfferExists(ctx context.Context, hash PaymentHash) (bool, error)

	// BuyPreimageInternal offers to buy the preimage for hash directly
	// from the federation for amount, blocking until it decrypts or the
	// attempt fails. The returned incoming contract id is the zero
	// ContractID if no incoming contract was ever escrowed (the offer
	// itself was rejected), and non-zero if escrow succeeded but
	// decryption then failed — the caller uses it to request a refund.
	BuyPreimageInternal(ctx context.Context, hash PaymentHash, amount int64) (preimage []byte, incomingContractID ContractID, err error)

	// RefundIncomingContract requests the federation return the escrowed
	// funds for an incoming contract whose preimage could not be
	// decrypted, so a failed preimage purchase never leaves a contract
	// silently unsettled.
	RefundIncomingContract(ctx context.Context, id ContractID) error

	// ClaimOutgoingContract claims the contract once a preimage has been
	// obtained, returning the resulting outpoint.
	ClaimOutgoingContract(ctx context.Context, id ContractID, preimage []byte) ([32]byte, error)

	// AwaitOutgoingContractClaimed blocks until the claim above is
	// confirmed by consensus.
	AwaitOutgoingContractClaimed(ctx context.Context, id ContractID, outpoint [32]byte) error

	// AbortOutgoingContract is called on any failure in the state machine
	// to ensure the contract is never left partially settled.
	AbortOutgoingContract(ctx context.Context, id ContractID) error

	// FetchAllCoins drives the federation-side half of the main loop's
	// periodic maintenance: reconciling any outstanding coin issuances.
	FetchAllCoins(ctx context.Context) error

	// Register registers this gateway instance with the federation. A
	// failure here is fatal at startup.
	Register(ctx context.Context) error

	// Balance reports this gateway's total balance held with the
	// federation's wallet module.
	Balance(ctx context.Context) (int64, error)

	// NewPegInAddress returns a fresh on-chain address this gateway can
	// be deposited into.
	NewPegInAddress(ctx context.Context) (string, error)

	// PegIn submits a deposited on-chain transaction to the federation's
	// wallet module, returning the transaction id the federation records
	// the deposit under.
	PegIn(ctx context.Context, tx *wire.MsgTx) ([32]byte, error)

	// PegOut requests an on-chain withdrawal of amountSat to address,
	// returning the federation-side transaction id.
	PegOut(ctx context.Context, amountSat int64, address string) ([32]byte, error)
}

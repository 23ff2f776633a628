package gateway

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/queue"
	"github.com/stretchr/testify/require"
)

type fakeFederationClient struct {
	contract           *OutgoingContract
	params             *OutgoingContractParams
	offerExists        bool
	offerErr           error
	preimage           []byte
	buyErr             error
	incomingContractID ContractID
	refunded           []ContractID
	claimOutpoint      [32]byte
	claimErr           error
	aborted            []ContractID

	balanceMsat  int64
	balanceErr   error
	pegInAddr    string
	pegInAddrErr error
	pegInTxID    [32]byte
	pegInErr     error
	pegOutTxID   [32]byte
	pegOutErr    error
}

func (f *fakeFederationClient) FetchOutgoingContract(ctx context.Context, id ContractID) (*OutgoingContract, error) {
	return f.contract, nil
}

func (f *fakeFederationClient) ValidateOutgoingContract(ctx context.Context, c *OutgoingContract) (*OutgoingContractParams, error) {
	return f.params, nil
}

func (f *fakeFederationClient) OfferExists(ctx context.Context, hash PaymentHash) (bool, error) {
	return f.offerExists, f.offerErr
}

func (f *fakeFederationClient) BuyPreimageInternal(ctx context.Context, hash PaymentHash, amount int64) ([]byte, ContractID, error) {
	return f.preimage, f.incomingContractID, f.buyErr
}

func (f *fakeFederationClient) RefundIncomingContract(ctx context.Context, id ContractID) error {
	f.refunded = append(f.refunded, id)
	return nil
}

func (f *fakeFederationClient) ClaimOutgoingContract(ctx context.Context, id ContractID, preimage []byte) ([32]byte, error) {
	return f.claimOutpoint, f.claimErr
}

func (f *fakeFederationClient) AwaitOutgoingContractClaimed(ctx context.Context, id ContractID, outpoint [32]byte) error {
	return nil
}

func (f *fakeFederationClient) AbortOutgoingContract(ctx context.Context, id ContractID) error {
	f.aborted = append(f.aborted, id)
	return nil
}

func (f *fakeFederationClient) FetchAllCoins(ctx context.Context) error { return nil }
func (f *fakeFederationClient) Register(ctx context.Context) error     { return nil }

func (f *fakeFederationClient) Balance(ctx context.Context) (int64, error) {
	return f.balanceMsat, f.balanceErr
}

func (f *fakeFederationClient) NewPegInAddress(ctx context.Context) (string, error) {
	return f.pegInAddr, f.pegInAddrErr
}

func (f *fakeFederationClient) PegIn(ctx context.Context, tx *wire.MsgTx) ([32]byte, error) {
	return f.pegInTxID, f.pegInErr
}

func (f *fakeFederationClient) PegOut(ctx context.Context, amountSat int64, address string) ([32]byte, error) {
	return f.pegOutTxID, f.pegOutErr
}

type fakeLnClient struct {
	payResp   *PayInvoiceResponse
	payErr    error
	completed []InterceptHtlcResponse
}

func (f *fakeLnClient) Info(ctx context.Context) (*NodeInfo, error) { return &NodeInfo{}, nil }
func (f *fakeLnClient) RouteHints(ctx context.Context) (*RouteHints, error) {
	return &RouteHints{}, nil
}
func (f *fakeLnClient) Pay(ctx context.Context, req PayInvoiceRequest) (*PayInvoiceResponse, error) {
	return f.payResp, f.payErr
}
func (f *fakeLnClient) RouteHtlcs(ctx context.Context) (<-chan InterceptHtlcRequest, error) {
	ch := make(chan InterceptHtlcRequest)
	close(ch)
	return ch, nil
}
func (f *fakeLnClient) CompleteHtlc(ctx context.Context, resp InterceptHtlcResponse) error {
	f.completed = append(f.completed, resp)
	return nil
}

func newTestGateway(t *testing.T, federation FederationClient, lnClient ILnRpcClient) *LnGateway {
	t.Helper()
	return &LnGateway{
		federation: federation,
		lnClient:   lnClient,
		requests:   make(chan gatewayRequest, requestChanCapacity),
		htlcs:      queue.NewConcurrentQueue(htlcQueueBufferSize),
		quit:       make(chan struct{}),
	}
}

func TestPayInvoiceInternalPath(t *testing.T) {
	federation := &fakeFederationClient{
		contract:      &OutgoingContract{ID: ContractID{1}, Invoice: "lnbc1..."},
		params:        &OutgoingContractParams{MaybeInternal: true},
		offerExists:   true,
		preimage:      []byte("preimage"),
		claimOutpoint: [32]byte{9},
	}
	g := newTestGateway(t, federation, &fakeLnClient{})

	outpoint, err := g.PayInvoice(context.Background(), ContractID{1})
	require.NoError(t, err)
	require.Equal(t, [32]byte{9}, outpoint)
	require.Empty(t, federation.aborted)
}

func TestPayInvoiceFallsBackExternalWhenNoOffer(t *testing.T) {
	federation := &fakeFederationClient{
		contract:      &OutgoingContract{ID: ContractID{2}, Invoice: "lnbc2..."},
		params:        &OutgoingContractParams{MaybeInternal: true},
		offerExists:   false,
		claimOutpoint: [32]byte{7},
	}
	lnClient := &fakeLnClient{payResp: &PayInvoiceResponse{Preimage: []byte("ext-preimage")}}
	g := newTestGateway(t, federation, lnClient)

	outpoint, err := g.PayInvoice(context.Background(), ContractID{2})
	require.NoError(t, err)
	require.Equal(t, [32]byte{7}, outpoint)
}

func TestPayInvoiceTreatsOfferExistsErrorAsFalse(t *testing.T) {
	federation := &fakeFederationClient{
		contract:      &OutgoingContract{ID: ContractID{3}},
		params:        &OutgoingContractParams{MaybeInternal: true},
		offerErr:      require.AnError,
		claimOutpoint: [32]byte{3},
	}
	lnClient := &fakeLnClient{payResp: &PayInvoiceResponse{Preimage: []byte("ext")}}
	g := newTestGateway(t, federation, lnClient)

	outpoint, err := g.PayInvoice(context.Background(), ContractID{3})
	require.NoError(t, err)
	require.Equal(t, [32]byte{3}, outpoint, "an offer_exists error must fall back to the external path, not abort")
}

func TestPayInvoiceAbortsOnExternalPaymentFailure(t *testing.T) {
	federation := &fakeFederationClient{
		contract: &OutgoingContract{ID: ContractID{4}},
		params:   &OutgoingContractParams{MaybeInternal: false},
	}
	lnClient := &fakeLnClient{payErr: require.AnError}
	g := newTestGateway(t, federation, lnClient)

	_, err := g.PayInvoice(context.Background(), ContractID{4})
	require.Error(t, err)
	require.Equal(t, []ContractID{{4}}, federation.aborted)
}

func TestPayInvoiceAbortsOnClaimFailure(t *testing.T) {
	federation := &fakeFederationClient{
		contract:    &OutgoingContract{ID: ContractID{5}},
		params:      &OutgoingContractParams{MaybeInternal: true},
		offerExists: true,
		preimage:    []byte("preimage"),
		claimErr:    require.AnError,
	}
	g := newTestGateway(t, federation, &fakeLnClient{})

	_, err := g.PayInvoice(context.Background(), ContractID{5})
	require.Error(t, err)
	require.Equal(t, []ContractID{{5}}, federation.aborted)
}

func TestPayInvoiceRefundsIncomingContractOnDecryptFailure(t *testing.T) {
	incomingID := ContractID{6, 6}
	federation := &fakeFederationClient{
		contract:           &OutgoingContract{ID: ContractID{6}},
		params:             &OutgoingContractParams{MaybeInternal: true},
		offerExists:        true,
		buyErr:             require.AnError,
		incomingContractID: incomingID,
	}
	g := newTestGateway(t, federation, &fakeLnClient{})

	_, err := g.PayInvoice(context.Background(), ContractID{6})
	require.Error(t, err)
	require.Equal(t, []ContractID{incomingID}, federation.refunded)
	require.Equal(t, []ContractID{{6}}, federation.aborted, "the outgoing contract must still be aborted on top of the incoming refund")
}

func TestPayInvoiceSkipsRefundWhenNoIncomingContractWasEscrowed(t *testing.T) {
	federation := &fakeFederationClient{
		contract:    &OutgoingContract{ID: ContractID{7}},
		params:      &OutgoingContractParams{MaybeInternal: true},
		offerExists: true,
		buyErr:      require.AnError,
	}
	g := newTestGateway(t, federation, &fakeLnClient{})

	_, err := g.PayInvoice(context.Background(), ContractID{7})
	require.Error(t, err)
	require.Empty(t, federation.refunded, "no incoming contract id means the offer was never escrowed, so there is nothing to refund")
}

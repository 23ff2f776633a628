package gateway

import (
	"bytes"
	"context"
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

func TestDepositAddressReturnsFederationAddress(t *testing.T) {
	federation := &fakeFederationClient{pegInAddr: "bc1qexampleaddress"}
	g := newTestGateway(t, federation, &fakeLnClient{})

	result, err := g.depositAddress(context.Background())
	require.NoError(t, err)
	require.Equal(t, "bc1qexampleaddress", result.Address)
}

func TestDepositForwardsDecodedTxToPegIn(t *testing.T) {
	wantTxID := [32]byte{1, 2, 3}
	federation := &fakeFederationClient{pegInTxID: wantTxID}
	g := newTestGateway(t, federation, &fakeLnClient{})

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(1000, nil))
	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))

	result, err := g.deposit(context.Background(), DepositPayload{TxBytes: buf.Bytes()})
	require.NoError(t, err)
	require.Equal(t, wantTxID, result.TransactionID)
}

func TestDepositRejectsMalformedTransaction(t *testing.T) {
	g := newTestGateway(t, &fakeFederationClient{}, &fakeLnClient{})

	_, err := g.deposit(context.Background(), DepositPayload{TxBytes: []byte("not a transaction")})
	require.Error(t, err)
}

func TestWithdrawRejectsInvalidAddress(t *testing.T) {
	g := newTestGateway(t, &fakeFederationClient{}, &fakeLnClient{})

	_, err := g.withdraw(context.Background(), WithdrawPayload{Address: "not-an-address", AmountSat: 1000})
	require.Error(t, err)
}

func TestWithdrawForwardsToPegOut(t *testing.T) {
	wantTxID := [32]byte{4, 5, 6}
	federation := &fakeFederationClient{pegOutTxID: wantTxID}
	g := newTestGateway(t, federation, &fakeLnClient{})

	result, err := g.withdraw(context.Background(), WithdrawPayload{
		Address:   "1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2",
		AmountSat: 50000,
	})
	require.NoError(t, err)
	require.Equal(t, wantTxID, result.TransactionID)
}

func TestReceiveInvoiceDelegatesToHandleHtlcIncoming(t *testing.T) {
	federation := &fakeFederationClient{preimage: []byte("receive-secret")}
	g := newTestGateway(t, federation, &fakeLnClient{})

	result, err := g.receiveInvoice(context.Background(), ReceiveInvoicePayload{
		Htlc: InterceptHtlcRequest{PaymentHash: [32]byte{8}, AmountMsat: 2000},
	})
	require.NoError(t, err)
	require.Equal(t, []byte("receive-secret"), result.Preimage)
}

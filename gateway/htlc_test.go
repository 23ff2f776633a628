package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleHtlcIncomingReturnsPreimage(t *testing.T) {
	federation := &fakeFederationClient{preimage: []byte("secret")}
	g := newTestGateway(t, federation, &fakeLnClient{})

	resp, err := g.HandleHtlcIncoming(context.Background(), InterceptHtlcRequest{
		PaymentHash: [32]byte{1},
		AmountMsat:  1000,
	})
	require.NoError(t, err)
	require.Equal(t, []byte("secret"), resp.Preimage)
	require.False(t, resp.Fail)
}

func TestHandleHtlcIncomingFailsWhenPreimageUnavailable(t *testing.T) {
	federation := &fakeFederationClient{buyErr: require.AnError}
	g := newTestGateway(t, federation, &fakeLnClient{})

	resp, err := g.HandleHtlcIncoming(context.Background(), InterceptHtlcRequest{
		PaymentHash: [32]byte{2},
		AmountMsat:  1000,
	})
	require.Error(t, err)
	require.True(t, resp.Fail)
}

func TestHandleHtlcIncomingRefundsIncomingContractOnDecryptFailure(t *testing.T) {
	incomingID := ContractID{9, 9}
	federation := &fakeFederationClient{
		buyErr:             require.AnError,
		incomingContractID: incomingID,
	}
	g := newTestGateway(t, federation, &fakeLnClient{})

	_, err := g.HandleHtlcIncoming(context.Background(), InterceptHtlcRequest{
		PaymentHash: [32]byte{3},
		AmountMsat:  1000,
	})
	require.Error(t, err)
	require.Equal(t, []ContractID{incomingID}, federation.refunded)
}

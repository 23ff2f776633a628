package main

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/kvdb"
	"github.com/stretchr/testify/require"
)

// fakeModule is a minimal Module whose input/output amounts and pubkeys are
// baked in at construction, enough to drive the admission pipeline's
// funding-invariant and signature checks without a real module behind it.
type fakeModule struct {
	inputAmount  int64
	outputAmount int64
	pubKey       []byte
	failInput    bool
	failOutput   bool
}

func (m *fakeModule) BuildVerificationCache(inputs []Input) VerificationCache { return nil }

func (m *fakeModule) ValidateInput(tx kvdb.RTx, cache VerificationCache, input Input) (*InputOutcome, error) {
	if m.failInput {
		return nil, badRequest("input rejected")
	}
	return &InputOutcome{Amount: m.inputAmount, PubKeys: [][]byte{m.pubKey}}, nil
}

func (m *fakeModule) ValidateOutput(tx kvdb.RTx, output Output) (*OutputOutcome, error) {
	if m.failOutput {
		return nil, badRequest("output rejected")
	}
	return &OutputOutcome{Amount: m.outputAmount}, nil
}

func (m *fakeModule) OutputStatus(tx kvdb.RTx, out OutPoint) (interface{}, error) {
	return "spent", nil
}

type fakeSink struct {
	submitted []AdmissionMessage
}

func (s *fakeSink) Submit(msg AdmissionMessage) error {
	s.submitted = append(s.submitted, msg)
	return nil
}

func newTestPipeline(t *testing.T, mod Module) (*AdmissionPipeline, *fakeSink) {
	t.Helper()

	db := newTestDatabase(t)
	modules := NewModuleRegistry()
	modules.RegisterModule(0, mod)

	statuser := NewTxStatusReader(db, modules)
	sink := &fakeSink{}

	return NewAdmissionPipeline(db, modules, sink, statuser), sink
}

func signedTestTx(t *testing.T, priv *btcec.PrivateKey, inAmount, outAmount int64) *Transaction {
	t.Helper()

	pubKey := schnorr.SerializePubKey(priv.PubKey())
	tx := &Transaction{
		Inputs:  []Input{{ModuleID: 0, Payload: []byte("in")}},
		Outputs: []Output{{ModuleID: 0, Payload: []byte("out")}},
	}

	txid, err := tx.TxID()
	require.NoError(t, err)

	sig, err := schnorr.Sign(priv, txid[:])
	require.NoError(t, err)
	tx.Signatures = [][]byte{sig.Serialize()}

	return tx
}

func TestAdmissionPipelineAcceptsFundedTransaction(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	mod := &fakeModule{inputAmount: 100, outputAmount: 100, pubKey: schnorr.SerializePubKey(priv.PubKey())}
	pipeline, sink := newTestPipeline(t, mod)

	tx := signedTestTx(t, priv, 100, 100)

	_, err = pipeline.SubmitTransaction(tx)
	require.NoError(t, err)
	require.Len(t, sink.submitted, 1)
}

func TestAdmissionPipelineRejectsUnderfundedTransaction(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	mod := &fakeModule{inputAmount: 50, outputAmount: 100, pubKey: schnorr.SerializePubKey(priv.PubKey())}
	pipeline, sink := newTestPipeline(t, mod)

	tx := signedTestTx(t, priv, 50, 100)

	_, err = pipeline.SubmitTransaction(tx)
	require.Error(t, err)
	require.Empty(t, sink.submitted, "an underfunded transaction must never reach the sink")
}

func TestAdmissionPipelineRejectsBadSignature(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	other, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	// The module reports a different pubkey than the one that actually
	// signed, so signature verification must fail.
	mod := &fakeModule{inputAmount: 100, outputAmount: 100, pubKey: schnorr.SerializePubKey(other.PubKey())}
	pipeline, sink := newTestPipeline(t, mod)

	tx := signedTestTx(t, priv, 100, 100)

	_, err = pipeline.SubmitTransaction(tx)
	require.Error(t, err)
	require.Empty(t, sink.submitted)
}

func TestAdmissionPipelineSignatureErrorTakesPrecedenceOverOutputError(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	other, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	// Both the signature and the output are invalid; the signature check
	// must be the one that actually surfaces, since it runs first.
	mod := &fakeModule{
		inputAmount:  100,
		outputAmount: 100,
		pubKey:       schnorr.SerializePubKey(other.PubKey()),
		failOutput:   true,
	}
	pipeline, sink := newTestPipeline(t, mod)

	tx := signedTestTx(t, priv, 100, 100)

	_, err = pipeline.SubmitTransaction(tx)
	require.Error(t, err)
	require.Empty(t, sink.submitted)

	var apiErr *ApiError
	require.ErrorAs(t, err, &apiErr)
	require.Contains(t, apiErr.Msg, "signature", "signature validation runs before output validation and must be the error that surfaces")
}

func TestAdmissionPipelineRejectsUnknownModule(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	db := newTestDatabase(t)
	modules := NewModuleRegistry()
	statuser := NewTxStatusReader(db, modules)
	sink := &fakeSink{}
	pipeline := NewAdmissionPipeline(db, modules, sink, statuser)

	tx := signedTestTx(t, priv, 100, 100)

	_, err = pipeline.SubmitTransaction(tx)
	require.Error(t, err)
}

func TestAdmissionPipelineIsIdempotentOnceAccepted(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	db := newTestDatabase(t)
	modules := NewModuleRegistry()
	mod := &fakeModule{inputAmount: 100, outputAmount: 100, pubKey: schnorr.SerializePubKey(priv.PubKey())}
	modules.RegisterModule(0, mod)
	statuser := NewTxStatusReader(db, modules)
	sink := &fakeSink{}
	pipeline := NewAdmissionPipeline(db, modules, sink, statuser)

	tx := signedTestTx(t, priv, 100, 100)

	txid1, err := pipeline.SubmitTransaction(tx)
	require.NoError(t, err)
	require.Len(t, sink.submitted, 1)

	// Simulate the out-of-scope consensus collaborator having committed
	// the transaction between the two submissions.
	require.NoError(t, statuser.recordAcceptedTransaction(chainhash.Hash(txid1), []ModuleInstanceID{0, 0}))

	txid2, err := pipeline.SubmitTransaction(tx)
	require.NoError(t, err)
	require.Equal(t, txid1, txid2)
	require.Len(t, sink.submitted, 1, "an already-accepted transaction must not be resubmitted")
}

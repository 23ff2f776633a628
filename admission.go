package main

import (
	"github.com/davecgh/go-spew/spew"
	"github.com/lightningnetwork/lnd/kvdb"
)

// AdmissionMessage is one of the tagged messages the admission channel
// carries to the consensus collaborator.
type AdmissionMessage interface {
	isAdmissionMessage()
}

// SubmitTransactionMsg wraps a fully-validated transaction on its way to
// consensus.
type SubmitTransactionMsg struct {
	Tx *Transaction
}

// UpgradeSignalMsg requests a coordinated upgrade across the federation.
type UpgradeSignalMsg struct{}

// ForceProcessOutcomeMsg forces a decoded epoch outcome to be processed
// immediately, bypassing the normal consensus schedule.
type ForceProcessOutcomeMsg struct {
	Outcome []byte
}

func (SubmitTransactionMsg) isAdmissionMessage()   {}
func (UpgradeSignalMsg) isAdmissionMessage()       {}
func (ForceProcessOutcomeMsg) isAdmissionMessage() {}

// AdmissionSink is the out-of-scope consensus collaborator's inbound side:
// a bounded many-producer, single-consumer channel. Production code wires
// this to the real consensus engine; tests wire it to a fake sink that
// simply records what it received.
type AdmissionSink interface {
	Submit(msg AdmissionMessage) error
}

// chanAdmissionSink is the concrete, channel-backed AdmissionSink used at
// runtime: a bounded MPSC channel whose single consumer lives entirely
// outside this package.
type chanAdmissionSink struct {
	ch chan AdmissionMessage
}

// NewChanAdmissionSink returns an AdmissionSink backed by a channel with
// the given capacity; producers suspend (this call blocks) once it fills.
func NewChanAdmissionSink(capacity int) *chanAdmissionSink {
	return &chanAdmissionSink{ch: make(chan AdmissionMessage, capacity)}
}

func (s *chanAdmissionSink) Submit(msg AdmissionMessage) error {
	s.ch <- msg
	return nil
}

// Messages exposes the receive side for the (out-of-scope) consensus
// collaborator to drain.
func (s *chanAdmissionSink) Messages() <-chan AdmissionMessage {
	return s.ch
}

// AdmissionPipeline validates and forwards transactions to consensus. It
// is constructed once per node and is safe for concurrent use by API
// handlers.
type AdmissionPipeline struct {
	db       *Database
	modules  *ModuleRegistry
	sink     AdmissionSink
	statuser *TxStatusReader
}

// NewAdmissionPipeline wires together the dependencies a submit_transaction
// call needs.
func NewAdmissionPipeline(db *Database, modules *ModuleRegistry, sink AdmissionSink, statuser *TxStatusReader) *AdmissionPipeline {
	return &AdmissionPipeline{db: db, modules: modules, sink: sink, statuser: statuser}
}

// SubmitTransaction validates tx and, on success, forwards it to consensus.
// It is idempotent with respect to already-committed transactions: if the
// txid is already accepted, it returns the txid immediately without
// re-validating.
func (p *AdmissionPipeline) SubmitTransaction(tx *Transaction) (txid [32]byte, err error) {
	id, err := tx.TxID()
	if err != nil {
		return txid, badRequest("unable to compute txid: %v", err)
	}
	copy(txid[:], id[:])

	if status, statusErr := p.statuser.TransactionStatus(id); statusErr == nil && status != nil {
		return txid, nil
	}

	var (
		allPubKeys  [][]byte
		inputTotal  int64
		outputTotal int64
	)

	viewErr := p.db.View(func(dbtx kvdb.RTx) error {
		caches := make(map[ModuleInstanceID]VerificationCache)

		for _, in := range tx.Inputs {
			mod, ok := p.modules.LookupModule(in.ModuleID)
			if !ok {
				return badRequest("unknown module instance %d", in.ModuleID)
			}

			cache, ok := caches[in.ModuleID]
			if !ok {
				cache = mod.BuildVerificationCache([]Input{in})
				caches[in.ModuleID] = cache
			}

			scoped := newPrefixedRTx(dbtx, in.ModuleID)
			outcome, err := mod.ValidateInput(scoped, cache, in)
			if err != nil {
				return badRequest("input validation failed: %v", err)
			}

			allPubKeys = append(allPubKeys, outcome.PubKeys...)
			inputTotal += outcome.Amount
		}

		if err := verifySignatures(id, allPubKeys, tx.Signatures); err != nil {
			return err
		}

		for _, out := range tx.Outputs {
			mod, ok := p.modules.LookupModule(out.ModuleID)
			if !ok {
				return badRequest("unknown module instance %d", out.ModuleID)
			}

			scoped := newPrefixedRTx(dbtx, out.ModuleID)
			outcome, err := mod.ValidateOutput(scoped, out)
			if err != nil {
				return badRequest("output validation failed: %v", err)
			}

			outputTotal += outcome.Amount
		}

		return nil
	})
	if viewErr != nil {
		apiLog.Tracef("rejected transaction %x: %v", id, newLogClosure(func() string {
			return spew.Sdump(tx)
		}))
		if apiErr, ok := viewErr.(*ApiError); ok {
			return txid, apiErr
		}
		return txid, serverError(viewErr)
	}

	if inputTotal < outputTotal {
		return txid, badRequest(
			"funding shortfall: inputs %d < outputs %d", inputTotal, outputTotal,
		)
	}

	if err := p.sink.Submit(SubmitTransactionMsg{Tx: tx}); err != nil {
		admittedTxCounter.WithLabelValues("rejected").Inc()
		return txid, serverError(err)
	}

	admittedTxCounter.WithLabelValues("accepted").Inc()
	return txid, nil
}

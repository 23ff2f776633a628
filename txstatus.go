package main

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/kvdb"
)

var acceptedTxPrefix = []byte("accepted-tx")

// TransactionStatus is the composed view returned by both the single-shot
// and the blocking status queries. Epoch is always 0: historical epoch
// attribution is deliberately not tracked here, per the design note this
// node carries forward unchanged from the original service.
type TransactionStatus struct {
	TxID    chainhash.Hash
	Epoch   uint64
	Outputs []interface{}
}

// TxStatusReader serves transaction_status and wait_transaction_status. It
// holds no mutable state of its own beyond its database and module
// registry handles; the accepted-transaction record itself is written by
// the (out-of-scope) consensus collaborator, not by this reader.
type TxStatusReader struct {
	db      *Database
	modules *ModuleRegistry
}

// NewTxStatusReader constructs a reader over db and modules.
func NewTxStatusReader(db *Database, modules *ModuleRegistry) *TxStatusReader {
	return &TxStatusReader{db: db, modules: modules}
}

// recordAcceptedTransaction is called by the consensus collaborator (or,
// in tests, simulated directly) once a transaction commits; it is not part
// of the client-facing contract.
func (r *TxStatusReader) recordAcceptedTransaction(txid chainhash.Hash, moduleIDs []ModuleInstanceID) error {
	return r.db.Update(func(tx kvdb.RwTx) error {
		bucket, err := rwBucket(tx)
		if err != nil {
			return err
		}
		nested, err := bucket.CreateBucketIfNotExists(acceptedTxPrefix)
		if err != nil {
			return err
		}

		buf := make([]byte, 2*len(moduleIDs))
		for i, id := range moduleIDs {
			binary.BigEndian.PutUint16(buf[i*2:], uint16(id))
		}

		return nested.Put(txid[:], buf)
	})
}

func decodeModuleIDs(raw []byte) []ModuleInstanceID {
	ids := make([]ModuleInstanceID, len(raw)/2)
	for i := range ids {
		ids[i] = ModuleInstanceID(binary.BigEndian.Uint16(raw[i*2:]))
	}
	return ids
}

// TransactionStatus is a single-shot read: if the accepted-transaction
// record for txid is absent, it returns (nil, nil) — "none", not an error.
func (r *TxStatusReader) TransactionStatus(txid chainhash.Hash) (*TransactionStatus, error) {
	var moduleIDs []ModuleInstanceID

	err := r.db.View(func(tx kvdb.RTx) error {
		bucket := readBucket(tx)
		if bucket == nil {
			return nil
		}
		nested := bucket.NestedReadBucket(acceptedTxPrefix)
		if nested == nil {
			return nil
		}

		raw := nested.Get(txid[:])
		if raw == nil {
			return nil
		}
		moduleIDs = decodeModuleIDs(raw)
		return nil
	})
	if err != nil {
		return nil, serverError(err)
	}
	if moduleIDs == nil {
		return nil, nil
	}

	return r.composeStatus(txid, moduleIDs)
}

// WaitTransactionStatus blocks until the accepted-transaction record
// appears, then composes the same status a single-shot read would.
func (r *TxStatusReader) WaitTransactionStatus(txid chainhash.Hash) (*TransactionStatus, error) {
	var moduleIDs []ModuleInstanceID

	err := r.db.WaitKeyExists(func() (bool, error) {
		found := false
		viewErr := r.db.View(func(tx kvdb.RTx) error {
			bucket := readBucket(tx)
			if bucket == nil {
				return nil
			}
			nested := bucket.NestedReadBucket(acceptedTxPrefix)
			if nested == nil {
				return nil
			}
			raw := nested.Get(txid[:])
			if raw == nil {
				return nil
			}
			moduleIDs = decodeModuleIDs(raw)
			found = true
			return nil
		})
		return found, viewErr
	})
	if err != nil {
		return nil, serverError(err)
	}

	return r.composeStatus(txid, moduleIDs)
}

// composeStatus pairs each recorded module-id with its output index and
// queries output_status for it. A module's failure to answer here is an
// invariant violation: an accepted transaction must always have queryable
// outputs.
func (r *TxStatusReader) composeStatus(txid chainhash.Hash, moduleIDs []ModuleInstanceID) (*TransactionStatus, error) {
	status := &TransactionStatus{
		TxID:    txid,
		Epoch:   0,
		Outputs: make([]interface{}, len(moduleIDs)),
	}

	err := r.db.View(func(tx kvdb.RTx) error {
		for idx, modID := range moduleIDs {
			mod, ok := r.modules.LookupModule(modID)
			if !ok {
				return fmt.Errorf("no module registered for instance %d", modID)
			}

			scoped := newPrefixedRTx(tx, modID)
			outcome, err := mod.OutputStatus(scoped, OutPoint{TxID: txid, OutputIdx: uint32(idx)})
			if err != nil {
				cnssLog.Criticalf(
					"invariant violated: accepted output %d of %s has no status: %v",
					idx, txid, err,
				)
				return err
			}

			status.Outputs[idx] = outcome
		}
		return nil
	})
	if err != nil {
		return nil, serverError(err)
	}

	return status, nil
}

package main

import (
	"sync"

	"github.com/lightningnetwork/lnd/kvdb"
)

// rootBucket is the single top-level bucket the node's key space lives
// under; module prefixes and the well-known contractual keys described in
// the external-interfaces section are all nested paths beneath it.
var rootBucket = []byte("fedd")

// Database wraps a kvdb.Backend with the scoped-prefix transactions modules
// need and a WaitKeyExists primitive built from a local broadcast, since the
// underlying store is not assumed to offer key-subscription itself.
type Database struct {
	backend kvdb.Backend

	mu        sync.Mutex
	writeCond *sync.Cond
}

// NewDatabase opens (creating if absent) the bolt-backed store at dataDir,
// following the teacher's channeldb.Open convention of one file per node.
func NewDatabase(dataDir string) (*Database, error) {
	backend, err := kvdb.Create(
		kvdb.BoltBackendName, dataDir+"/fedd.db", true, kvdb.DefaultDBTimeout,
	)
	if err != nil {
		return nil, err
	}

	db := &Database{backend: backend}
	db.writeCond = sync.NewCond(&db.mu)
	return db, nil
}

// Close releases the underlying backend.
func (d *Database) Close() error {
	return d.backend.Close()
}

// View runs f against a read-only snapshot of the database. All module
// validation during admission runs inside one such snapshot so every input
// in a transaction is checked against the same point-in-time view.
func (d *Database) View(f func(tx kvdb.RTx) error) error {
	return kvdb.View(d.backend, f, func() {})
}

// Update runs f against a read-write transaction and wakes any goroutine
// blocked in WaitKeyExists once f returns successfully, on the assumption
// that f may have written the key being waited on.
func (d *Database) Update(f func(tx kvdb.RwTx) error) error {
	err := kvdb.Update(d.backend, func(tx kvdb.RwTx) error {
		return f(tx)
	}, func() {})
	if err == nil {
		d.mu.Lock()
		d.writeCond.Broadcast()
		d.mu.Unlock()
	}
	return err
}

// rwBucket fetches (creating if necessary) the top-level bucket every key
// in this package is namespaced under.
func rwBucket(tx kvdb.RwTx) (kvdb.RwBucket, error) {
	return tx.CreateTopLevelBucket(rootBucket)
}

func readBucket(tx kvdb.RTx) kvdb.RBucket {
	return tx.ReadBucket(rootBucket)
}

// WaitKeyExists blocks until a call to exists(key) observes true, then
// returns. Each write anywhere in the database wakes every waiter, which
// simply re-checks its own predicate and goes back to sleep if it still
// doesn't hold — a plain polling-plus-local-notification implementation of
// the "wait for key presence" primitive the storage layer is contracted to
// provide, without requiring the backend itself to support subscriptions.
func (d *Database) WaitKeyExists(exists func() (bool, error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for {
		ok, err := exists()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		d.writeCond.Wait()
	}
}

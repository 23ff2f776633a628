package main

import (
	"encoding/binary"

	"github.com/lightningnetwork/lnd/kvdb"
)

// modulePrefix derives the key-prefix a module is confined to: all of a
// module's state lives under this byte string, so two modules can never
// collide even if they pick identical logical key names.
func modulePrefix(id ModuleInstanceID) []byte {
	var prefix [2]byte
	binary.BigEndian.PutUint16(prefix[:], uint16(id))
	return prefix[:]
}

// prefixedRTx wraps a kvdb.RTx so that Get only ever sees keys beneath one
// module's prefix, without exposing the rest of the shared transaction's
// key space. It implements the narrow read-only subset of kvdb.RTx that
// module validation needs.
type prefixedRTx struct {
	kvdb.RTx

	prefix []byte
}

func newPrefixedRTx(tx kvdb.RTx, id ModuleInstanceID) kvdb.RTx {
	return &prefixedRTx{RTx: tx, prefix: modulePrefix(id)}
}

// ReadBucket returns the root bucket's nested bucket for this module's
// prefix, so any further Get/NestedReadBucket calls on it are automatically
// scoped.
func (p *prefixedRTx) ReadBucket(key []byte) kvdb.RBucket {
	root := p.RTx.ReadBucket(rootBucket)
	if root == nil {
		return nil
	}

	scoped := root.NestedReadBucket(p.prefix)
	if scoped == nil {
		return nil
	}
	return scoped.NestedReadBucket(key)
}

// prefixedRwTx is the read-write counterpart, scoping writes to a logical
// namespace rather than a module with the same prefixing mechanism. Nothing
// in this package constructs one: the backup store and the download counter
// create their nested buckets directly.
type prefixedRwTx struct {
	kvdb.RwTx

	prefix []byte
}

func newPrefixedRwTx(tx kvdb.RwTx, prefix []byte) *prefixedRwTx {
	return &prefixedRwTx{RwTx: tx, prefix: prefix}
}

func (p *prefixedRwTx) bucket() (kvdb.RwBucket, error) {
	root, err := p.RwTx.CreateTopLevelBucket(rootBucket)
	if err != nil {
		return nil, err
	}
	return root.CreateBucketIfNotExists(p.prefix)
}

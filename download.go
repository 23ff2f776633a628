package main

import (
	"encoding/binary"

	"github.com/lightningnetwork/lnd/kvdb"
)

var downloadCounterPrefix = []byte("download-token")

// ConnectionInfo is what a client presents when asking to download the
// node's configuration: a single opaque download token.
type ConnectionInfo struct {
	DownloadToken string
}

// DownloadGate rate-limits config downloads by token, per §4.5: a token
// that doesn't match the node's configured value is rejected outright; a
// matching token's use count is incremented inside a read-write
// transaction and compared against an optional limit.
type DownloadGate struct {
	db            *Database
	token         string
	limit         uint64 // 0 means unlimited
	clientConfig  interface{}
}

// NewDownloadGate constructs a gate bound to this node's configured token,
// optional limit, and the client_config value it serves on success.
func NewDownloadGate(db *Database, token string, limit uint64, clientConfig interface{}) *DownloadGate {
	return &DownloadGate{db: db, token: token, limit: limit, clientConfig: clientConfig}
}

// DownloadClientConfig implements the download_client_config contract. The
// increment happens inside a single read-write transaction; the storage
// engine is required to give that transaction serializable isolation on
// the counter key, so the only allowed race is two concurrent requests at
// the limit edge both observing `limit` and both being rejected — never
// both succeeding.
func (g *DownloadGate) DownloadClientConfig(info ConnectionInfo) (interface{}, error) {
	if info.DownloadToken != g.token {
		return nil, badRequest("download token not found")
	}

	var rejected bool

	err := g.db.Update(func(tx kvdb.RwTx) error {
		bucket, err := rwBucket(tx)
		if err != nil {
			return err
		}
		nested, err := bucket.CreateBucketIfNotExists(downloadCounterPrefix)
		if err != nil {
			return err
		}

		key := []byte(g.token)
		count := uint64(0)
		if raw := nested.Get(key); raw != nil {
			count = binary.BigEndian.Uint64(raw)
		}
		count++

		if g.limit != 0 && count > g.limit {
			rejected = true
			// Still persist the increment: two concurrent callers at the
			// edge may both observe `limit`, both increment past it, and
			// both be rejected. That's an accepted outcome, not a bug.
			return nested.Put(key, encodeUint64(count))
		}

		return nested.Put(key, encodeUint64(count))
	})
	if err != nil {
		return nil, serverError(err)
	}
	if rejected {
		return nil, badRequest("download token used too many times")
	}

	return g.clientConfig, nil
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

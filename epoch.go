package main

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/lightningnetwork/lnd/kvdb"
	"github.com/tv42/zbase32"
)

var (
	epochHistoryPrefix       = []byte("epoch-history")
	lastEpochKey             = []byte("last-epoch")
	clientConfigSignatureKey = []byte("client-config-signature")
)

// FetchEpochHistory looks up the signed epoch outcome recorded for epoch;
// absent is reported as NotFound.
func (a *ConsensusApi) FetchEpochHistory(epoch uint64) ([]byte, error) {
	var raw []byte

	err := a.db.View(func(tx kvdb.RTx) error {
		bucket := readBucket(tx)
		if bucket == nil {
			return nil
		}
		nested := bucket.NestedReadBucket(epochHistoryPrefix)
		if nested == nil {
			return nil
		}
		if v := nested.Get(epochKeyBytes(epoch)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, serverError(err)
	}
	if raw == nil {
		return nil, notFound("no epoch history for epoch %d", epoch)
	}
	return raw, nil
}

// fetchEpochCount returns last-epoch + 1, or 0 if no epoch has ever been
// recorded.
func (a *ConsensusApi) fetchEpochCount() (uint64, error) {
	var count uint64

	err := a.db.View(func(tx kvdb.RTx) error {
		bucket := readBucket(tx)
		if bucket == nil {
			return nil
		}
		raw := bucket.Get(lastEpochKey)
		if raw == nil {
			return nil
		}
		count = binary.BigEndian.Uint64(raw) + 1
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func epochKeyBytes(epoch uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, epoch)
	return buf
}

// clientConfigSignaturePresent reports whether the singleton
// ClientConfigSignatureKey has been written yet; the config endpoint waits
// on this before serving a download.
func (a *ConsensusApi) clientConfigSignaturePresent() (bool, error) {
	present := false
	err := a.db.View(func(tx kvdb.RTx) error {
		bucket := readBucket(tx)
		if bucket == nil {
			return nil
		}
		present = bucket.Get(clientConfigSignatureKey) != nil
		return nil
	})
	return present, err
}

// configHash returns the sha256 of the consensus-relevant portion of the
// node's configuration, the value the config_hash endpoint reports. It
// only ever covers a.cfg.Consensus: two peers with identical federation
// parameters but different local download tokens must still agree here.
func (a *ConsensusApi) configHash() [sha256.Size]byte {
	summary := fmt.Sprintf(
		"%s|%d|%v",
		a.cfg.Consensus.FederationName,
		a.cfg.Consensus.Threshold,
		a.cfg.Consensus.PeerListenAddrs,
	)
	return sha256.Sum256([]byte(summary))
}

// connectionCode renders a human-readable connect string for this node,
// zbase32-encoding the listen address the way lnd encodes connection
// identifiers for display.
func connectionCode(cfg *config) string {
	return zbase32.EncodeToString([]byte(cfg.Local.ListenAddr))
}

package main

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/kvdb"
)

var backupPrefix = []byte("client-backup")

// SignedBackupRequest is a client backup update: the payload, a strictly
// increasing timestamp, and a signature binding both to the holder of the
// private key matching PubKey.
type SignedBackupRequest struct {
	PubKey    []byte // x-only
	Timestamp uint64
	Data      []byte
	Signature []byte
}

// BackupSnapshot is what recover(id) returns.
type BackupSnapshot struct {
	Timestamp uint64
	Data      []byte
}

// BackupStore implements §4.6: accept signed, timestamp-monotonic client
// backups and serve them back by public key.
type BackupStore struct {
	db *Database
}

// NewBackupStore constructs a store over db.
func NewBackupStore(db *Database) *BackupStore {
	return &BackupStore{db: db}
}

// Backup verifies the request's signature, rejects it if its timestamp does
// not strictly increase over the previous record for this key, and
// otherwise writes the new record unconditionally.
func (s *BackupStore) Backup(req SignedBackupRequest) error {
	sigMsg := backupSigMessage(req.PubKey, req.Timestamp, req.Data)
	if err := verifyBackupSignature(req.PubKey, sigMsg, req.Signature); err != nil {
		return badRequest("invalid request: %v", err)
	}

	return s.db.Update(func(tx kvdb.RwTx) error {
		bucket, err := rwBucket(tx)
		if err != nil {
			return err
		}
		nested, err := bucket.CreateBucketIfNotExists(backupPrefix)
		if err != nil {
			return err
		}

		if raw := nested.Get(req.PubKey); raw != nil {
			prevTimestamp := binary.BigEndian.Uint64(raw[:8])
			if req.Timestamp <= prevTimestamp {
				return badRequest("timestamp too small")
			}
		}

		value := make([]byte, 8+len(req.Data))
		binary.BigEndian.PutUint64(value[:8], req.Timestamp)
		copy(value[8:], req.Data)

		return nested.Put(req.PubKey, value)
	})
}

// Recover is a plain database lookup by public key.
func (s *BackupStore) Recover(pubKey []byte) (*BackupSnapshot, error) {
	var snap *BackupSnapshot

	err := s.db.View(func(tx kvdb.RTx) error {
		bucket := readBucket(tx)
		if bucket == nil {
			return nil
		}
		nested := bucket.NestedReadBucket(backupPrefix)
		if nested == nil {
			return nil
		}

		raw := nested.Get(pubKey)
		if raw == nil {
			return nil
		}

		data := make([]byte, len(raw)-8)
		copy(data, raw[8:])
		snap = &BackupSnapshot{
			Timestamp: binary.BigEndian.Uint64(raw[:8]),
			Data:      data,
		}
		return nil
	})
	if err != nil {
		return nil, serverError(err)
	}

	return snap, nil
}

func backupSigMessage(pubKey []byte, timestamp uint64, data []byte) []byte {
	msg := make([]byte, 0, len(pubKey)+8+len(data))
	msg = append(msg, pubKey...)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], timestamp)
	msg = append(msg, ts[:]...)
	msg = append(msg, data...)
	return chainhash.HashB(msg)
}

func verifyBackupSignature(rawPubKey, msg, rawSig []byte) error {
	pubKey, err := schnorr.ParsePubKey(rawPubKey)
	if err != nil {
		return err
	}
	sig, err := schnorr.ParseSignature(rawSig)
	if err != nil {
		return err
	}
	if !sig.Verify(msg, pubKey) {
		return badRequest("signature verification failed")
	}
	return nil
}

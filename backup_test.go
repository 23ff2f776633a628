package main

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/stretchr/testify/require"
)

func signBackupRequest(t *testing.T, priv *btcec.PrivateKey, timestamp uint64, data []byte) SignedBackupRequest {
	t.Helper()

	pubKey := schnorr.SerializePubKey(priv.PubKey())
	msg := backupSigMessage(pubKey, timestamp, data)

	sig, err := schnorr.Sign(priv, msg)
	require.NoError(t, err)

	return SignedBackupRequest{
		PubKey:    pubKey,
		Timestamp: timestamp,
		Data:      data,
		Signature: sig.Serialize(),
	}
}

func TestBackupStoreAcceptsMonotonicTimestamps(t *testing.T) {
	db := newTestDatabase(t)
	store := NewBackupStore(db)

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	req := signBackupRequest(t, priv, 100, []byte("snapshot-a"))
	require.NoError(t, store.Backup(req))

	req2 := signBackupRequest(t, priv, 101, []byte("snapshot-b"))
	require.NoError(t, store.Backup(req2))

	snap, err := store.Recover(req.PubKey)
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.Equal(t, uint64(101), snap.Timestamp)
	require.Equal(t, []byte("snapshot-b"), snap.Data)
}

func TestBackupStoreRejectsNonIncreasingTimestamp(t *testing.T) {
	db := newTestDatabase(t)
	store := NewBackupStore(db)

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	req := signBackupRequest(t, priv, 100, []byte("snapshot-a"))
	require.NoError(t, store.Backup(req))

	sameTimestamp := signBackupRequest(t, priv, 100, []byte("snapshot-c"))
	require.Error(t, store.Backup(sameTimestamp), "equal timestamps must not overwrite the prior snapshot")

	snap, err := store.Recover(req.PubKey)
	require.NoError(t, err)
	require.Equal(t, []byte("snapshot-a"), snap.Data)
}

func TestBackupStoreRejectsBadSignature(t *testing.T) {
	db := newTestDatabase(t)
	store := NewBackupStore(db)

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	req := signBackupRequest(t, priv, 100, []byte("snapshot-a"))
	req.Data = []byte("tampered")

	require.Error(t, store.Backup(req))
}

func TestBackupStoreRecoverUnknownKeyReturnsNil(t *testing.T) {
	db := newTestDatabase(t)
	store := NewBackupStore(db)

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pubKey := schnorr.SerializePubKey(priv.PubKey())

	snap, err := store.Recover(pubKey)
	require.NoError(t, err)
	require.Nil(t, snap)
}

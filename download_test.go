package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDownloadGateRejectsWrongToken(t *testing.T) {
	db := newTestDatabase(t)
	gate := NewDownloadGate(db, "correct-token", 0, "config-bytes")

	_, err := gate.DownloadClientConfig(ConnectionInfo{DownloadToken: "wrong-token"})
	require.Error(t, err)

	var apiErr *ApiError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, KindBadRequest, apiErr.Kind)
}

func TestDownloadGateEnforcesLimit(t *testing.T) {
	db := newTestDatabase(t)
	gate := NewDownloadGate(db, "tok", 3, "config-bytes")

	for i := 0; i < 3; i++ {
		cfg, err := gate.DownloadClientConfig(ConnectionInfo{DownloadToken: "tok"})
		require.NoError(t, err, "download %d should be allowed", i+1)
		require.Equal(t, "config-bytes", cfg)
	}

	_, err := gate.DownloadClientConfig(ConnectionInfo{DownloadToken: "tok"})
	require.Error(t, err, "the fourth download should exceed the limit of 3")
}

func TestDownloadGateUnlimitedWhenZero(t *testing.T) {
	db := newTestDatabase(t)
	gate := NewDownloadGate(db, "tok", 0, "config-bytes")

	for i := 0; i < 10; i++ {
		_, err := gate.DownloadClientConfig(ConnectionInfo{DownloadToken: "tok"})
		require.NoError(t, err)
	}
}

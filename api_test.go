package main

import (
	"crypto/sha256"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeConnections struct {
	snapshot map[PeerID]ConnectionState
}

func (f *fakeConnections) Snapshot() map[PeerID]ConnectionState { return f.snapshot }

func newTestAPI(t *testing.T) *ConsensusApi {
	t.Helper()

	db := newTestDatabase(t)
	modules := NewModuleRegistry()
	sink := &fakeSink{}
	conns := &fakeConnections{snapshot: map[PeerID]ConnectionState{}}

	cfg := &config{
		Local:              localConfig{DownloadToken: "tok", DownloadTokenLimit: 0},
		Private:            privateConfig{APIAuth: "secret"},
		Consensus:          consensusConfig{FederationName: "test-federation", Threshold: 2},
		GraceWindowSeconds: 30,
	}

	return NewConsensusApi(cfg, db, modules, sink, conns, versionSummary{ConsensusVersion: 1, APIVersion: 1})
}

func TestDispatchUnknownEndpoint(t *testing.T) {
	api := newTestAPI(t)

	_, err := api.Dispatch("no-such-endpoint", "", nil)
	require.Error(t, err)

	var apiErr *ApiError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, KindNotFound, apiErr.Kind)
}

func TestDispatchRejectsMissingAuthOnGatedEndpoint(t *testing.T) {
	api := newTestAPI(t)

	_, err := api.Dispatch("upgrade", "", nil)
	require.Error(t, err)

	var apiErr *ApiError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, KindUnauthorized, apiErr.Kind)
}

func TestDispatchAllowsCorrectAuthOnGatedEndpoint(t *testing.T) {
	api := newTestAPI(t)

	_, err := api.Dispatch("upgrade", "secret", nil)
	require.NoError(t, err)
}

func TestDispatchVersionNeedsNoAuth(t *testing.T) {
	api := newTestAPI(t)

	out, err := api.Dispatch("version", "", nil)
	require.NoError(t, err)
	require.Equal(t, versionSummary{ConsensusVersion: 1, APIVersion: 1}, out)
}

func TestDispatchStatusReportsEmptyPeerSet(t *testing.T) {
	api := newTestAPI(t)

	out, err := api.Dispatch("status", "", nil)
	require.NoError(t, err)

	resp, ok := out.(*statusResponse)
	require.True(t, ok)
	require.Equal(t, 0, resp.Consensus.PeersOnline)
}

func TestFetchEpochCountStartsAtZero(t *testing.T) {
	api := newTestAPI(t)

	out, err := api.Dispatch("fetch_epoch_count", "", nil)
	require.NoError(t, err)
	require.Equal(t, uint64(0), out)
}

func TestHandleStatusIsCached(t *testing.T) {
	api := newTestAPI(t)

	first, err := api.handleStatus(&ApiEndpointContext{api: api}, nil)
	require.NoError(t, err)

	api.peers.Record(1, 5, time.Now())

	second, err := api.handleStatus(&ApiEndpointContext{api: api}, nil)
	require.NoError(t, err)
	require.Same(t, first.(*statusResponse).Consensus, second.(*statusResponse).Consensus, "the 5s status cache should return the same report on a second call")
}

func TestConfigHashIgnoresLocalSettings(t *testing.T) {
	apiA := newTestAPI(t)

	apiB := newTestAPI(t)
	apiB.cfg.Local.DownloadToken = "a-completely-different-token"

	require.Equal(t, apiA.configHash(), apiB.configHash(), "config_hash must depend only on the shared consensus config, not per-node local settings")
}

func TestConfigHashChangesWithConsensusConfig(t *testing.T) {
	apiA := newTestAPI(t)

	apiB := newTestAPI(t)
	apiB.cfg.Consensus.Threshold = 3

	require.NotEqual(t, apiA.configHash(), apiB.configHash())
}

func TestHandleVerifyConfigHashCoversKnownPeers(t *testing.T) {
	api := newTestAPI(t)
	api.peers.Record(1, 5, time.Now())
	api.peers.Record(2, 7, time.Now())

	out, err := api.handleVerifyConfigHash(&ApiEndpointContext{api: api}, nil)
	require.NoError(t, err)

	hashes, ok := out.(map[PeerID][sha256.Size]byte)
	require.True(t, ok)
	require.Len(t, hashes, 2)
	require.Contains(t, hashes, PeerID(1))
	require.Contains(t, hashes, PeerID(2))
	require.NotEqual(t, hashes[PeerID(1)], hashes[PeerID(2)], "each peer must get a distinct hash")
}

func TestHandleVerifyConfigHashEmptyWithNoKnownPeers(t *testing.T) {
	api := newTestAPI(t)

	out, err := api.handleVerifyConfigHash(&ApiEndpointContext{api: api}, nil)
	require.NoError(t, err)
	require.Empty(t, out)
}

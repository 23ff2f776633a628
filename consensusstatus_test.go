package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCalculateConsensusStatusAllHealthy(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	grace := 30 * time.Second

	contributions := map[PeerID]Contribution{
		1: {Value: 10, Time: now},
		2: {Value: 10, Time: now},
	}
	connections := map[PeerID]ConnectionState{
		1: StateConnected,
		2: StateConnected,
	}

	status := calculateConsensusStatus(contributions, 10, connections, grace, now)

	require.Equal(t, 2, status.PeersOnline)
	require.Equal(t, 0, status.PeersOffline)
	require.Equal(t, 0, status.PeersFlagged)
}

func TestCalculateConsensusStatusRecentContributionSavesOfflinePeer(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	grace := 30 * time.Second

	contributions := map[PeerID]Contribution{
		1: {Value: 5, Time: now.Add(-5 * time.Second)},
	}
	connections := map[PeerID]ConnectionState{
		1: StateDisconnected,
	}

	status := calculateConsensusStatus(contributions, 10, connections, grace, now)

	require.Equal(t, 0, status.PeersOnline)
	require.Equal(t, 1, status.PeersOffline)
	require.Equal(t, 0, status.PeersFlagged, "a recent contribution should excuse a disconnected peer")
}

func TestCalculateConsensusStatusZeroGraceFlagsEveryone(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	contributions := map[PeerID]Contribution{
		1: {Value: 9, Time: now.Add(-time.Second)},
	}
	connections := map[PeerID]ConnectionState{
		1: StateConnected,
	}

	status := calculateConsensusStatus(contributions, 10, connections, 0, now)

	require.Equal(t, 1, status.PeersFlagged, "zero grace means any non-instantaneous contribution is stale")
}

func TestCalculateConsensusStatusConnectionErrorTreatedAsDisconnected(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	grace := 30 * time.Second

	contributions := map[PeerID]Contribution{
		1: {Value: 10, Time: now.Add(-time.Minute)},
	}
	connections := map[PeerID]ConnectionState{
		1: StateError,
	}

	status := calculateConsensusStatus(contributions, 10, connections, grace, now)

	require.Equal(t, 0, status.PeersOnline)
	require.Equal(t, 1, status.PeersOffline)
	require.Equal(t, 1, status.PeersFlagged)
}

func TestCalculateConsensusStatusUnknownPeerIsFlagged(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	grace := 30 * time.Second

	connections := map[PeerID]ConnectionState{
		7: StateConnected,
	}

	status := calculateConsensusStatus(nil, 10, connections, grace, now)

	require.Equal(t, 1, status.PeersFlagged, "a peer with no recorded contribution is always flagged")
}

package main

import (
	"sync"
	"time"

	"golang.org/x/exp/maps"
)

// PeerID identifies a federation peer by its member index.
type PeerID uint16

// ConnectionState mirrors the tri-state a peer's transport can report.
type ConnectionState int

const (
	StateConnected ConnectionState = iota
	StateDisconnected
	StateError
)

// Contribution is the last epoch number a peer has contributed along with
// the wall-clock instant it was observed, the sole unit the consensus
// status calculator reasons about per peer.
type Contribution struct {
	Value uint64
	Time  time.Time
}

// PeerStatus is the per-peer row of a ConsensusStatus report.
type PeerStatus struct {
	LastContribution   uint64
	LastContributionAt int64 // unix seconds, 0 if never contributed
	Connection         ConnectionState
	Flagged            bool
}

// ConsensusStatus is the aggregate health report the status endpoint
// returns, wrapping the per-peer detail with rollup counts.
type ConsensusStatus struct {
	LastContribution uint64
	PeersOnline      int
	PeersOffline     int
	PeersFlagged     int
	StatusByPeer     map[PeerID]PeerStatus
}

// calculateConsensusStatus is a pure function: given the two input maps,
// this node's own contribution count, and the grace window, it returns the
// health report without consulting any other state. Keeping it pure is
// what makes the scenarios in the testable-properties section exact and
// deterministic.
func calculateConsensusStatus(
	contributions map[PeerID]Contribution,
	ourLastContribution uint64,
	connections map[PeerID]ConnectionState,
	grace time.Duration,
	now time.Time,
) ConsensusStatus {

	peerSet := make(map[PeerID]struct{})
	for p := range contributions {
		peerSet[p] = struct{}{}
	}
	for p := range connections {
		peerSet[p] = struct{}{}
	}

	result := ConsensusStatus{
		LastContribution: ourLastContribution,
		StatusByPeer:     make(map[PeerID]PeerStatus, len(peerSet)),
	}

	for _, peer := range maps.Keys(peerSet) {
		var (
			hasRecent bool
			flagged   bool
			status    PeerStatus
		)

		if contrib, ok := contributions[peer]; ok {
			hasRecent = now.Sub(contrib.Time) <= grace
			isBehind := contrib.Value < ourLastContribution
			flagged = isBehind && !hasRecent
			status.LastContribution = contrib.Value
			status.LastContributionAt = contrib.Time.Unix()
		} else {
			hasRecent = false
			flagged = true
		}

		switch conn, ok := connections[peer]; {
		case ok && conn == StateConnected:
			status.Connection = StateConnected
		case ok && conn == StateError:
			cnssLog.Warnf("peer %d reported a connection error", peer)
			status.Connection = StateDisconnected
			flagged = flagged || !hasRecent
		default:
			// Disconnected, or entirely absent from the connection map.
			status.Connection = StateDisconnected
			flagged = flagged || !hasRecent
		}

		status.Flagged = flagged
		result.StatusByPeer[peer] = status

		if status.Connection == StateConnected {
			result.PeersOnline++
		} else {
			result.PeersOffline++
		}
		if flagged {
			result.PeersFlagged++
		}
	}

	return result
}

// PeerContributionMap is the ephemeral, single-writer-many-reader state
// tracking each peer's last known contribution. The consensus collaborator
// is the sole writer; API handlers only ever read a cheap clone.
type PeerContributionMap struct {
	mu            sync.RWMutex
	contributions map[PeerID]Contribution
}

// NewPeerContributionMap returns an empty map.
func NewPeerContributionMap() *PeerContributionMap {
	return &PeerContributionMap{contributions: make(map[PeerID]Contribution)}
}

// Record is called by the consensus collaborator whenever a peer's
// contribution advances.
func (m *PeerContributionMap) Record(peer PeerID, value uint64, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.contributions[peer] = Contribution{Value: value, Time: at}
}

// Snapshot returns a cheap clone safe for the caller to range over without
// holding the map's lock.
func (m *PeerContributionMap) Snapshot() map[PeerID]Contribution {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clone := make(map[PeerID]Contribution, len(m.contributions))
	for k, v := range m.contributions {
		clone[k] = v
	}
	return clone
}

// ConnectionStatusSource is implemented by whatever transport layer tracks
// live peer connections; the consensus status calculator only needs a
// snapshot of it.
type ConnectionStatusSource interface {
	Snapshot() map[PeerID]ConnectionState
}

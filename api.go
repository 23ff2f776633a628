package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// ApiEndpointContext is handed to every endpoint handler. It exposes
// whether the caller presented a valid auth token and the blocking
// key-presence primitive. It does not expose a database transaction;
// handlers reach the database through the ConsensusApi's own components.
type ApiEndpointContext struct {
	api       *ConsensusApi
	authToken string
}

// HasAuth reports whether the request's attached auth-token equals the
// node's configured api_auth.
func (c *ApiEndpointContext) HasAuth() bool {
	return c.authToken != "" && c.authToken == c.api.cfg.Private.APIAuth
}

// WaitKeyExists blocks until exists reports true.
func (c *ApiEndpointContext) WaitKeyExists(exists func() (bool, error)) error {
	return c.api.db.WaitKeyExists(exists)
}

// endpointHandler is the shape every entry in the endpoint catalogue
// implements.
type endpointHandler func(ctx *ApiEndpointContext, input interface{}) (interface{}, error)

// endpoint is one row of the fixed catalogue described in the component
// design: a name, whether it requires auth, and the handler it dispatches
// to.
type endpoint struct {
	name       string
	requiresAuth bool
	handler    endpointHandler
}

// ConsensusApi ties together every component an incoming client request
// might touch and exposes the fixed endpoint catalogue over Dispatch.
type ConsensusApi struct {
	started int32 // atomic
	shutdown int32 // atomic

	cfg *config

	db        *Database
	modules   *ModuleRegistry
	admission *AdmissionPipeline
	statuser  *TxStatusReader
	cache     *ExpiringCache
	gate      *DownloadGate
	backups   *BackupStore
	peers     *PeerContributionMap
	conns     ConnectionStatusSource
	sink      AdmissionSink

	graceWindow   time.Duration
	versionSummary interface{}

	endpointsMu sync.RWMutex
	endpoints   map[string]endpoint
}

// NewConsensusApi wires the full set of request-plane components together
// and registers the fixed endpoint catalogue from §4.7.
func NewConsensusApi(
	cfg *config,
	db *Database,
	modules *ModuleRegistry,
	sink AdmissionSink,
	conns ConnectionStatusSource,
	versionSummary interface{},
) *ConsensusApi {

	statuser := NewTxStatusReader(db, modules)

	api := &ConsensusApi{
		cfg:            cfg,
		db:             db,
		modules:        modules,
		statuser:       statuser,
		admission:      NewAdmissionPipeline(db, modules, sink, statuser),
		cache:          NewExpiringCache(5 * time.Second),
		gate:           NewDownloadGate(db, cfg.Local.DownloadToken, cfg.Local.DownloadTokenLimit, nil),
		backups:        NewBackupStore(db),
		peers:          NewPeerContributionMap(),
		conns:          conns,
		sink:           sink,
		graceWindow:    time.Duration(cfg.GraceWindowSeconds) * time.Second,
		versionSummary: versionSummary,
		endpoints:      make(map[string]endpoint),
	}
	api.registerEndpoints()
	return api
}

// registerEndpoints builds the fixed catalogue described in §4.7. The
// table is immutable after construction; Dispatch only ever reads it.
func (a *ConsensusApi) registerEndpoints() {
	table := []endpoint{
		{name: "version", requiresAuth: false, handler: a.handleVersion},
		{name: "transaction", requiresAuth: false, handler: a.handleTransaction},
		{name: "fetch_transaction", requiresAuth: false, handler: a.handleFetchTransaction},
		{name: "wait_transaction", requiresAuth: false, handler: a.handleWaitTransaction},
		{name: "fetch_epoch_history", requiresAuth: false, handler: a.handleFetchEpochHistory},
		{name: "fetch_epoch_count", requiresAuth: false, handler: a.handleFetchEpochCount},
		{name: "connection_code", requiresAuth: false, handler: a.handleConnectionCode},
		{name: "config", requiresAuth: false, handler: a.handleConfig},
		{name: "config_hash", requiresAuth: false, handler: a.handleConfigHash},
		{name: "upgrade", requiresAuth: true, handler: a.handleUpgrade},
		{name: "process_outcome", requiresAuth: true, handler: a.handleProcessOutcome},
		{name: "status", requiresAuth: false, handler: a.handleStatus},
		{name: "get_verify_config_hash", requiresAuth: true, handler: a.handleVerifyConfigHash},
		{name: "backup", requiresAuth: false, handler: a.handleBackup},
		{name: "recover", requiresAuth: false, handler: a.handleRecover},
	}

	a.endpointsMu.Lock()
	defer a.endpointsMu.Unlock()
	for _, e := range table {
		a.endpoints[e.name] = e
	}
}

// Dispatch looks up name in the endpoint catalogue, enforces its auth
// requirement, and invokes its handler. Calling an auth-gated endpoint
// without a matching token fails with Unauthorized before the handler ever
// runs.
func (a *ConsensusApi) Dispatch(name string, authToken string, input interface{}) (interface{}, error) {
	a.endpointsMu.RLock()
	e, ok := a.endpoints[name]
	a.endpointsMu.RUnlock()
	if !ok {
		return nil, notFound("unknown endpoint %q", name)
	}

	ctx := &ApiEndpointContext{api: a, authToken: authToken}
	if e.requiresAuth && !ctx.HasAuth() {
		return nil, unauthorized()
	}

	return e.handler(ctx, input)
}

func (a *ConsensusApi) handleVersion(ctx *ApiEndpointContext, _ interface{}) (interface{}, error) {
	return a.versionSummary, nil
}

func (a *ConsensusApi) handleTransaction(ctx *ApiEndpointContext, input interface{}) (interface{}, error) {
	tx, ok := input.(*Transaction)
	if !ok {
		return nil, badRequest("expected a decoded transaction")
	}

	txid, err := a.admission.SubmitTransaction(tx)
	if err != nil {
		return nil, err
	}
	return txid, nil
}

func (a *ConsensusApi) handleFetchTransaction(ctx *ApiEndpointContext, input interface{}) (interface{}, error) {
	txid, ok := input.(chainhash.Hash)
	if !ok {
		return nil, badRequest("expected a txid")
	}
	return a.statuser.TransactionStatus(txid)
}

func (a *ConsensusApi) handleWaitTransaction(ctx *ApiEndpointContext, input interface{}) (interface{}, error) {
	txid, ok := input.(chainhash.Hash)
	if !ok {
		return nil, badRequest("expected a txid")
	}
	return a.statuser.WaitTransactionStatus(txid)
}

func (a *ConsensusApi) handleFetchEpochHistory(ctx *ApiEndpointContext, input interface{}) (interface{}, error) {
	epoch, ok := input.(uint64)
	if !ok {
		return nil, badRequest("expected an epoch number")
	}
	return a.FetchEpochHistory(epoch)
}

func (a *ConsensusApi) handleFetchEpochCount(ctx *ApiEndpointContext, _ interface{}) (interface{}, error) {
	return a.fetchEpochCount()
}

func (a *ConsensusApi) handleConnectionCode(ctx *ApiEndpointContext, _ interface{}) (interface{}, error) {
	return connectionCode(a.cfg), nil
}

func (a *ConsensusApi) handleConfig(ctx *ApiEndpointContext, input interface{}) (interface{}, error) {
	info, ok := input.(ConnectionInfo)
	if !ok {
		return nil, badRequest("expected connection info")
	}

	if err := ctx.WaitKeyExists(func() (bool, error) {
		return a.clientConfigSignaturePresent()
	}); err != nil {
		return nil, serverError(err)
	}

	return a.gate.DownloadClientConfig(info)
}

func (a *ConsensusApi) handleConfigHash(ctx *ApiEndpointContext, _ interface{}) (interface{}, error) {
	return a.configHash(), nil
}

func (a *ConsensusApi) handleUpgrade(ctx *ApiEndpointContext, _ interface{}) (interface{}, error) {
	if err := a.sink.Submit(UpgradeSignalMsg{}); err != nil {
		return nil, serverError(err)
	}
	return nil, nil
}

func (a *ConsensusApi) handleProcessOutcome(ctx *ApiEndpointContext, input interface{}) (interface{}, error) {
	outcome, ok := input.([]byte)
	if !ok {
		return nil, badRequest("expected an encoded epoch outcome")
	}
	if err := a.sink.Submit(ForceProcessOutcomeMsg{Outcome: outcome}); err != nil {
		return nil, serverError(err)
	}
	return nil, nil
}

// statusResponse is what the status endpoint returns: a server summary and
// a consensus-health report. handleStatus always fills in both.
type statusResponse struct {
	Server    interface{}
	Consensus *ConsensusStatus
}

func (a *ConsensusApi) handleStatus(ctx *ApiEndpointContext, _ interface{}) (interface{}, error) {
	result, err := a.cache.Get(func() (interface{}, error) {
		cacheRefreshCounter.Inc()

		contributions := a.peers.Snapshot()
		connections := a.conns.Snapshot()
		status := calculateConsensusStatus(
			contributions, a.ourLastContribution(), connections,
			a.graceWindow, time.Now(),
		)

		peersOnlineGauge.Set(float64(status.PeersOnline))
		peersFlaggedGauge.Set(float64(status.PeersFlagged))

		return &status, nil
	})
	if err != nil {
		return nil, serverError(err)
	}

	return &statusResponse{
		Server:    a.versionSummary,
		Consensus: result.(*ConsensusStatus),
	}, nil
}

// handleVerifyConfigHash reports, for every peer this node currently has a
// recorded contribution from, a hash binding that peer's identity to this
// node's own consensus config hash — so a caller can tell whether every
// known peer is (from this node's point of view) running the same
// federation parameters, without a dedicated per-peer key-material model.
func (a *ConsensusApi) handleVerifyConfigHash(ctx *ApiEndpointContext, _ interface{}) (interface{}, error) {
	consensusHash := a.configHash()
	peers := a.peers.Snapshot()

	hashes := make(map[PeerID][sha256.Size]byte, len(peers))
	for peer := range peers {
		var buf bytes.Buffer
		buf.Write(consensusHash[:])
		binary.Write(&buf, binary.BigEndian, peer)
		hashes[peer] = sha256.Sum256(buf.Bytes())
	}
	return hashes, nil
}

func (a *ConsensusApi) handleBackup(ctx *ApiEndpointContext, input interface{}) (interface{}, error) {
	req, ok := input.(SignedBackupRequest)
	if !ok {
		return nil, badRequest("expected a signed backup request")
	}
	return nil, a.backups.Backup(req)
}

func (a *ConsensusApi) handleRecover(ctx *ApiEndpointContext, input interface{}) (interface{}, error) {
	pubKey, ok := input.([]byte)
	if !ok {
		return nil, badRequest("expected an x-only public key")
	}
	return a.backups.Recover(pubKey)
}

// ourLastContribution reads this node's own epoch count, following the
// same last-epoch-plus-one convention fetch_epoch_count exposes.
func (a *ConsensusApi) ourLastContribution() uint64 {
	count, err := a.fetchEpochCount()
	if err != nil {
		apiLog.Errorf("unable to read epoch count: %v", err)
		return 0
	}
	return count
}

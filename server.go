package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// apiServer is the thin HTTP frontend over a ConsensusApi. Request framing
// and content negotiation are treated as an external collaborator's
// concern; this type only needs to get a decoded request to Dispatch and
// a response back out.
type apiServer struct {
	started  int32 // atomic
	shutdown int32 // atomic

	cfg *config
	api *ConsensusApi

	httpServer *http.Server

	wg   sync.WaitGroup
	quit chan struct{}
}

func newAPIServer(cfg *config, api *ConsensusApi) *apiServer {
	return &apiServer{
		cfg:  cfg,
		api:  api,
		quit: make(chan struct{}),
	}
}

// dispatchRequest is the JSON envelope every HTTP call carries.
type dispatchRequest struct {
	Endpoint string      `json:"endpoint"`
	Auth     string      `json:"auth"`
	Input    interface{} `json:"input"`
}

// handleDispatch is a minimal illustrative binding: real endpoint-specific
// decoding of the JSON input into the typed value each handler expects
// (txid, *Transaction, ConnectionInfo, ...) belongs to the wire-protocol
// layer, which is out of scope here.
func (s *apiServer) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, badRequest("malformed request body: %v", err))
		return
	}

	result, err := s.api.Dispatch(req.Endpoint, req.Auth, req.Input)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if encErr := json.NewEncoder(w).Encode(result); encErr != nil {
		apiLog.Errorf("unable to encode response for %s: %v", req.Endpoint, encErr)
	}
}

func writeAPIError(w http.ResponseWriter, err error) {
	apiErr, ok := err.(*ApiError)
	if !ok {
		apiErr = serverError(err)
	}

	status := http.StatusInternalServerError
	switch apiErr.Kind {
	case KindBadRequest:
		status = http.StatusBadRequest
	case KindUnauthorized:
		status = http.StatusUnauthorized
	case KindNotFound:
		status = http.StatusNotFound
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiErr)
}

// Start generates (if needed) the node's self-signed TLS cert and begins
// serving, following the teacher's atomic started-guard idiom.
func (s *apiServer) Start() error {
	if atomic.AddInt32(&s.started, 1) != 1 {
		return nil
	}

	if err := genCertPair(s.cfg); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/dispatch", s.handleDispatch)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:    s.cfg.Local.ListenAddr,
		Handler: mux,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		apiLog.Infof("consensus API listening on %s", s.cfg.Local.ListenAddr)
		err := s.httpServer.ListenAndServeTLS(s.cfg.TLSCertPath, s.cfg.TLSKeyPath)
		if err != nil && err != http.ErrServerClosed {
			apiLog.Errorf("http server exited: %v", err)
		}
	}()

	return nil
}

// Stop closes the HTTP listener and its open connections immediately and
// waits for the serving goroutine to exit.
func (s *apiServer) Stop() error {
	if atomic.AddInt32(&s.shutdown, 1) != 1 {
		return nil
	}

	close(s.quit)
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	s.wg.Wait()
	return nil
}

package main

import (
	"fmt"
	"os"
	"runtime"

	flags "github.com/jessevdk/go-flags"
)

var (
	cfg             *config
	shutdownChannel = make(chan struct{})
)

// versionSummary is what the version endpoint returns: the set of
// protocol/module versions this build was compiled to understand.
type versionSummary struct {
	ConsensusVersion int `json:"consensus_version"`
	APIVersion       int `json:"api_version"`
}

// feddMain is the true entry point for fedd. It is a separate function
// from main so that deferred cleanup still runs on every return path, even
// though main itself calls os.Exit on error.
func feddMain() error {
	loadedConfig, err := loadConfig()
	if err != nil {
		return err
	}
	cfg = loadedConfig
	defer backendLog.Flush()

	setLogLevels(cfg.DebugLevel)
	initLogRotator(cfg.LogDir + "/" + defaultLogFilename)

	fddLog.Infof("Starting fedd, data dir %s", cfg.DataDir)

	db, err := NewDatabase(cfg.DataDir)
	if err != nil {
		fddLog.Errorf("unable to open database: %v", err)
		return err
	}
	defer db.Close()

	modules := NewModuleRegistry()
	sink := NewChanAdmissionSink(64)
	conns := NewPeerContributionMap() // also satisfies ConnectionStatusSource via a wrapper below

	api := NewConsensusApi(cfg, db, modules, sink, connectionStatusAdapter{conns}, versionSummary{
		ConsensusVersion: 2,
		APIVersion:       1,
	})

	srv := newAPIServer(cfg, api)
	if err := srv.Start(); err != nil {
		fddLog.Errorf("unable to start API server: %v\n", err)
		return err
	}

	addInterruptHandler(func() {
		fddLog.Infof("Gracefully shutting down the server...")
		srv.Stop()
	})

	<-shutdownChannel
	fddLog.Info("Shutdown complete")
	return nil
}

// connectionStatusAdapter is a placeholder ConnectionStatusSource used at
// startup before the out-of-scope consensus collaborator has wired in a
// real peer-transport view; it always reports every known peer as
// disconnected, which is the conservative default.
type connectionStatusAdapter struct {
	peers *PeerContributionMap
}

func (c connectionStatusAdapter) Snapshot() map[PeerID]ConnectionState {
	contributions := c.peers.Snapshot()
	result := make(map[PeerID]ConnectionState, len(contributions))
	for peer := range contributions {
		result[peer] = StateDisconnected
	}
	return result
}

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	if err := feddMain(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

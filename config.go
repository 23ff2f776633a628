package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	flags "github.com/jessevdk/go-flags"
	"github.com/lightningnetwork/lnd/cert"
)

// appDataDir mirrors cmd/lncli's use of btcutil.AppDataDir for picking a
// sane, per-OS default home directory.
func appDataDir(appName string) string {
	return btcutil.AppDataDir(appName, false)
}

const (
	defaultConfigFilename = "fedd.conf"
	defaultDataDirname    = "data"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "fedd.log"
	defaultTLSCertFilename = "tls.cert"
	defaultTLSKeyFilename  = "tls.key"

	defaultMaxLogFiles    = 3
	defaultGraceWindowSec = 60
)

var fddHomeDir = appDataDir("fedd")

// localConfig holds the node's public-facing settings: the values that are
// safe to share with any client that asks for the running configuration.
type localConfig struct {
	DownloadToken      string `long:"download-token" description:"token clients must present to download the client config"`
	DownloadTokenLimit uint64 `long:"download-token-limit" description:"maximum number of times the download token may be used; 0 means unlimited"`
	ListenAddr         string `long:"listenaddr" description:"address the consensus API listens on"`
}

// privateConfig holds settings that must never be echoed back to a client.
type privateConfig struct {
	APIAuth string `long:"api-auth" description:"shared secret required on auth-gated endpoints"`
}

// consensusConfig holds the federation-wide parameters every peer is
// expected to run with byte-identical values; unlike localConfig, this is
// exactly the portion of the configuration config_hash is supposed to
// attest to, since two honest peers disagreeing here means a genuine
// federation misconfiguration rather than a harmless local preference.
type consensusConfig struct {
	FederationName  string   `long:"federation-name" description:"human readable name shared by the whole federation"`
	Threshold       uint32   `long:"threshold" description:"number of peer signatures required for consensus"`
	PeerListenAddrs []string `long:"peer" description:"listen address of a federation peer; repeatable"`
}

// config is the top-level, parsed configuration for the fedd daemon,
// following the same flags+ini layering lnd uses for its own config.
type config struct {
	ConfigFile string `short:"C" long:"configfile" description:"path to configuration file"`
	DataDir    string `short:"d" long:"datadir" description:"directory to store the node database"`
	LogDir     string `long:"logdir" description:"directory to log output"`
	DebugLevel string `long:"debuglevel" description:"logging level"`

	TLSCertPath string `long:"tlscertpath" description:"path to write the self-signed TLS certificate"`
	TLSKeyPath  string `long:"tlskeypath" description:"path to write the TLS private key"`

	GraceWindowSeconds int64 `long:"grace-window" description:"seconds a peer contribution is still considered recent"`

	Local     localConfig
	Private   privateConfig
	Consensus consensusConfig
}

// defaultConfig returns a config populated with the teacher's usual
// AppDataDir-rooted defaults.
func defaultConfig() config {
	return config{
		ConfigFile:         filepath.Join(fddHomeDir, defaultConfigFilename),
		DataDir:            filepath.Join(fddHomeDir, defaultDataDirname),
		LogDir:             filepath.Join(fddHomeDir, defaultLogDirname),
		DebugLevel:         "info",
		TLSCertPath:        filepath.Join(fddHomeDir, defaultTLSCertFilename),
		TLSKeyPath:         filepath.Join(fddHomeDir, defaultTLSKeyFilename),
		GraceWindowSeconds: defaultGraceWindowSec,
	}
}

// loadConfig parses command line flags, layering them on top of the
// defaults and any ini-style config file found on disk.
func loadConfig() (*config, error) {
	cfg := defaultConfig()

	preCfg := cfg
	if _, err := flags.Parse(&preCfg); err != nil {
		return nil, err
	}

	if _, err := os.Stat(preCfg.ConfigFile); err == nil {
		parser := flags.NewParser(&cfg, flags.Default)
		if err := flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	if _, err := flags.Parse(&cfg); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("unable to create data directory: %v", err)
	}
	if err := os.MkdirAll(cfg.LogDir, 0700); err != nil {
		return nil, fmt.Errorf("unable to create log directory: %v", err)
	}

	return &cfg, nil
}

// genCertPair generates the self-signed TLS certificate used by the node's
// HTTP listener, following the teacher's lnd/cert helper.
func genCertPair(cfg *config) error {
	if fileExists(cfg.TLSCertPath) && fileExists(cfg.TLSKeyPath) {
		return nil
	}

	certBytes, keyBytes, err := cert.GenCertPair(
		"fedd autogenerated cert", nil, nil, false,
		cert.DefaultAutogenValidity,
	)
	if err != nil {
		return err
	}

	return cert.WriteCertPair(
		cfg.TLSCertPath, cfg.TLSKeyPath, certBytes, keyBytes,
	)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

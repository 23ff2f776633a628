package gateway

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "gatewayd.conf"
	defaultDataDirname    = "data"
	defaultListenAddr     = ":8180"
	defaultFederationAddr = "https://localhost:8443"
	defaultDBDriver       = "sqlite"
)

func appDataDir(appName string) string {
	return btcutil.AppDataDir(appName, false)
}

var gatewayHomeDir = appDataDir("gatewayd")

// Config is the gatewayd daemon's parsed configuration: where its local
// bookkeeping lives, who its Lightning node and federation collaborators
// are, and what it listens on.
type Config struct {
	ConfigFile string `short:"C" long:"configfile" description:"path to configuration file"`
	DataDir    string `short:"d" long:"datadir" description:"directory to store gateway state"`
	DebugLevel string `long:"debuglevel" description:"logging level"`

	ListenAddr string `long:"listenaddr" description:"address the gateway webserver listens on"`

	LightningRPCAddr string `long:"lnd-rpc-addr" description:"address of the Lightning node's RPC listener"`

	FederationAPIAddr   string `long:"federation-addr" description:"base URL of the consensus node's dispatch API"`
	FederationAuthToken string `long:"federation-auth" description:"auth token presented to the consensus node's gated endpoints"`

	DBDriver string `long:"db-driver" description:"sqlite or pgx"`
	DBDSN    string `long:"db-dsn" description:"data source name for the contract store"`
}

func DefaultConfig() Config {
	return Config{
		ConfigFile:        filepath.Join(gatewayHomeDir, defaultConfigFilename),
		DataDir:           filepath.Join(gatewayHomeDir, defaultDataDirname),
		DebugLevel:        "info",
		ListenAddr:        defaultListenAddr,
		FederationAPIAddr: defaultFederationAddr,
		DBDriver:          defaultDBDriver,
	}
}

// LoadConfig layers command-line flags on top of the defaults and any
// ini-style config file found on disk, mirroring the consensus node's own
// loadConfig.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

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

	if cfg.DBDSN == "" && cfg.DBDriver == defaultDBDriver {
		cfg.DBDSN = filepath.Join(cfg.DataDir, "gateway.db")
	}

	return &cfg, nil
}

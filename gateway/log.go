package gateway

import (
	"os"

	"github.com/btcsuite/btclog"
)

var (
	backendLog = btclog.NewBackend(gwLogWriter{})

	gwLog   = backendLog.Logger("GWAY")
	htlcLog = backendLog.Logger("HTLC")
	payLog  = backendLog.Logger("PAY")
)

type gwLogWriter struct{}

func (gwLogWriter) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}

// SetLogLevel sets the level for every gateway subsystem logger; the
// gatewayd binary wires this to its own --debuglevel flag.
func SetLogLevel(level string) {
	lvl := btclog.LevelFromString(level)
	gwLog.SetLevel(lvl)
	htlcLog.SetLevel(lvl)
	payLog.SetLevel(lvl)
}

package main

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli"
	"golang.org/x/term"
	"gopkg.in/macaroon-bakery.v2/bakery/checkers"
	macaroon "gopkg.in/macaroon.v2"
)

const (
	defaultTLSCertFilename  = "tls.cert"
	defaultMacaroonFilename = "admin.macaroon"
)

var (
	fddHomeDir          = appDataDir("fedd")
	defaultTLSCertPath  = filepath.Join(fddHomeDir, defaultTLSCertFilename)
	defaultMacaroonPath = filepath.Join(fddHomeDir, defaultMacaroonFilename)
)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[fedcli] %v\n", err)
	os.Exit(1)
}

// apiClient is the dispatch-endpoint counterpart of lncli's gRPC
// connection: a single HTTPS client carrying the node's self-signed cert
// and, unless disabled, a bearer token unwrapped from a serialized
// macaroon.
type apiClient struct {
	baseURL string
	auth    string
	http    *http.Client
}

func getClient(ctx *cli.Context) *apiClient {
	tlsCertPath := cleanAndExpandPath(ctx.GlobalString("tlscertpath"))
	certBytes, err := ioutil.ReadFile(tlsCertPath)
	if err != nil {
		fatal(err)
	}

	pool := newCertPoolFromPEM(certBytes)
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{RootCAs: pool},
	}

	var auth string
	if !ctx.GlobalBool("no-macaroons") {
		macPath := cleanAndExpandPath(ctx.GlobalString("macaroonpath"))
		macBytes, err := ioutil.ReadFile(macPath)
		if err != nil {
			fatal(err)
		}
		mac := &macaroon.Macaroon{}
		if err := mac.UnmarshalBinary(macBytes); err != nil {
			fatal(err)
		}

		// Add a time-before caveat the way cmd/lncli does before
		// dialing. Only the macaroon's identifier is sent below, so the
		// caveat stays on the local copy and does not limit how long the
		// token is accepted.
		timeout := time.Duration(ctx.GlobalInt64("macaroontimeout")) * time.Second
		deadline := time.Now().Add(timeout)
		timeCaveat := checkers.TimeBeforeCaveat(deadline)
		if err := mac.AddFirstPartyCaveat([]byte(timeCaveat.Condition)); err != nil {
			fatal(err)
		}

		// fedd's auth gate is a plain shared-secret token rather than a
		// full caveat-checking macaroon verifier; the macaroon's
		// identifier carries that token so operators can still issue and
		// revoke credentials via the macaroon tooling they're used to.
		auth = string(mac.Id())
	} else if term.IsTerminal(int(os.Stdin.Fd())) {
		// Without a macaroon the shared-secret token has to come from
		// somewhere; read it without echoing it to the terminal or
		// leaving it sitting in shell history.
		fmt.Fprint(os.Stderr, "auth token: ")
		tokenBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			fatal(err)
		}
		auth = string(tokenBytes)
	}

	return &apiClient{
		baseURL: "https://" + ctx.GlobalString("rpcserver"),
		auth:    auth,
		http:    &http.Client{Transport: transport, Timeout: 30 * time.Second},
	}
}

func (c *apiClient) dispatch(endpoint string, input, out interface{}) error {
	body, err := json.Marshal(struct {
		Endpoint string      `json:"endpoint"`
		Auth     string      `json:"auth,omitempty"`
		Input    interface{} `json:"input,omitempty"`
	}{endpoint, c.auth, input})
	if err != nil {
		return err
	}

	resp, err := c.http.Post(c.baseURL+"/dispatch", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func main() {
	app := cli.NewApp()
	app.Name = "fedcli"
	app.Version = "0.1"
	app.Usage = "control plane for a federation consensus node (fedd)"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rpcserver",
			Value: "localhost:8443",
			Usage: "host:port of the consensus API",
		},
		cli.StringFlag{
			Name:  "tlscertpath",
			Value: defaultTLSCertPath,
			Usage: "path to TLS certificate",
		},
		cli.BoolFlag{
			Name:  "no-macaroons",
			Usage: "disable macaroon authentication",
		},
		cli.StringFlag{
			Name:  "macaroonpath",
			Value: defaultMacaroonPath,
			Usage: "path to macaroon file",
		},
		cli.Int64Flag{
			Name:  "macaroontimeout",
			Value: 60,
			Usage: "anti-replay macaroon validity time in seconds",
		},
	}
	app.Commands = []cli.Command{
		versionCommand,
		statusCommand,
		submitTransactionCommand,
		fetchTransactionCommand,
		waitTransactionCommand,
		configCommand,
		configHashCommand,
		connectionCodeCommand,
		backupCommand,
		recoverCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

func cleanAndExpandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(fddHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}
	return filepath.Clean(os.ExpandEnv(path))
}

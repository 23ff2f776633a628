package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli"
)

func printJSON(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(b))
}

var versionCommand = cli.Command{
	Name:  "version",
	Usage: "display the node's consensus and API version",
	Action: func(ctx *cli.Context) error {
		client := getClient(ctx)
		var out interface{}
		if err := client.dispatch("version", nil, &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

var statusCommand = cli.Command{
	Name:  "status",
	Usage: "display consensus liveness status for all peers",
	Action: func(ctx *cli.Context) error {
		client := getClient(ctx)
		var out interface{}
		if err := client.dispatch("status", nil, &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

var submitTransactionCommand = cli.Command{
	Name:      "submittx",
	Usage:     "submit a hex-encoded transaction for admission",
	ArgsUsage: "tx_hex",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return cli.ShowCommandHelp(ctx, "submittx")
		}
		txBytes, err := hex.DecodeString(ctx.Args().First())
		if err != nil {
			return fmt.Errorf("invalid tx hex: %v", err)
		}

		client := getClient(ctx)
		var out interface{}
		if err := client.dispatch("transaction", struct {
			TxBytes []byte `json:"tx_bytes"`
		}{txBytes}, &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

var fetchTransactionCommand = cli.Command{
	Name:      "fetchtx",
	Usage:     "fetch the current status of a submitted transaction",
	ArgsUsage: "txid_hex",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return cli.ShowCommandHelp(ctx, "fetchtx")
		}
		return fetchOrWait(ctx, "fetch_transaction")
	},
}

var waitTransactionCommand = cli.Command{
	Name:      "waittx",
	Usage:     "block until a submitted transaction is finalized",
	ArgsUsage: "txid_hex",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return cli.ShowCommandHelp(ctx, "waittx")
		}
		return fetchOrWait(ctx, "wait_transaction")
	},
}

func fetchOrWait(ctx *cli.Context, endpoint string) error {
	txid, err := hex.DecodeString(ctx.Args().First())
	if err != nil {
		return fmt.Errorf("invalid txid hex: %v", err)
	}

	client := getClient(ctx)
	var out interface{}
	if err := client.dispatch(endpoint, struct {
		TxID []byte `json:"txid"`
	}{txid}, &out); err != nil {
		return err
	}
	printJSON(out)
	return nil
}

var configCommand = cli.Command{
	Name:  "config",
	Usage: "download the node's client configuration",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "download_token"},
	},
	Action: func(ctx *cli.Context) error {
		client := getClient(ctx)
		var out interface{}
		if err := client.dispatch("config", struct {
			DownloadToken string `json:"download_token"`
		}{ctx.String("download_token")}, &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

var configHashCommand = cli.Command{
	Name:  "confighash",
	Usage: "fetch the hash of the federation's consensus configuration",
	Action: func(ctx *cli.Context) error {
		client := getClient(ctx)
		var out interface{}
		if err := client.dispatch("config_hash", nil, &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

var connectionCodeCommand = cli.Command{
	Name:  "connectioncode",
	Usage: "fetch this node's zbase32 connection code",
	Action: func(ctx *cli.Context) error {
		client := getClient(ctx)
		var out interface{}
		if err := client.dispatch("connection_code", nil, &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

var backupCommand = cli.Command{
	Name:      "backup",
	Usage:     "push a signed client backup snapshot",
	ArgsUsage: "pubkey_hex timestamp data_hex signature_hex",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 4 {
			return cli.ShowCommandHelp(ctx, "backup")
		}

		pubKey, err := hex.DecodeString(ctx.Args().Get(0))
		if err != nil {
			return fmt.Errorf("invalid pubkey hex: %v", err)
		}
		data, err := hex.DecodeString(ctx.Args().Get(2))
		if err != nil {
			return fmt.Errorf("invalid data hex: %v", err)
		}
		sig, err := hex.DecodeString(ctx.Args().Get(3))
		if err != nil {
			return fmt.Errorf("invalid signature hex: %v", err)
		}

		client := getClient(ctx)
		var out interface{}
		if err := client.dispatch("backup", struct {
			PubKey    []byte `json:"pubkey"`
			Timestamp string `json:"timestamp"`
			Data      []byte `json:"data"`
			Signature []byte `json:"signature"`
		}{pubKey, ctx.Args().Get(1), data, sig}, &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

var recoverCommand = cli.Command{
	Name:      "recover",
	Usage:     "fetch the latest backup snapshot for a pubkey",
	ArgsUsage: "pubkey_hex",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return cli.ShowCommandHelp(ctx, "recover")
		}
		pubKey, err := hex.DecodeString(ctx.Args().First())
		if err != nil {
			return fmt.Errorf("invalid pubkey hex: %v", err)
		}

		client := getClient(ctx)
		var out interface{}
		if err := client.dispatch("recover", struct {
			PubKey []byte `json:"pubkey"`
		}{pubKey}, &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

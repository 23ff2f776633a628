package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/ecashfed/fedd/gateway"
)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[gatewayd] %v\n", err)
	os.Exit(1)
}

func main() {
	cfg, err := gateway.LoadConfig()
	if err != nil {
		fatal(err)
	}

	gateway.SetLogLevel(cfg.DebugLevel)

	store, err := gateway.OpenContractStore(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		fatal(fmt.Errorf("unable to open contract store: %v", err))
	}
	defer store.Close()

	lnClient := gateway.NewNetworkLnRpcClient(cfg.LightningRPCAddr)
	federation := gateway.NewHTTPFederationClient(cfg.FederationAPIAddr, cfg.FederationAuthToken)

	g := gateway.NewLnGateway(federation, lnClient, store, cfg.ListenAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := g.Start(ctx); err != nil {
		fatal(fmt.Errorf("unable to start gateway: %v", err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	<-sigChan

	if err := g.Stop(); err != nil {
		fatal(err)
	}
}

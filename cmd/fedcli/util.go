package main

import (
	"crypto/x509"

	"github.com/btcsuite/btcd/btcutil"
)

func appDataDir(appName string) string {
	return btcutil.AppDataDir(appName, false)
}

func newCertPoolFromPEM(pem []byte) *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(pem)
	return pool
}

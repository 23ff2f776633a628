package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/btcsuite/btcd/wire"
)

// lightningModuleID and walletModuleID are the well-known module-instance
// ids the federation assigns to its Lightning and on-chain wallet modules;
// the gateway has no need to discover them dynamically since it only ever
// bridges one of each per federation connection.
const (
	lightningModuleID = uint16(0)
	walletModuleID    = uint16(1)
)

// dispatchEnvelope mirrors the consensus API's own request/response
// envelope (see server.go's dispatchRequest) so the gateway can talk to it
// without sharing a package.
type dispatchEnvelope struct {
	Endpoint string      `json:"endpoint"`
	Auth     string      `json:"auth,omitempty"`
	Input    interface{} `json:"input,omitempty"`
}

// HTTPFederationClient is the gateway's real FederationClient: it speaks to
// one federation member's consensus API over HTTPS, encoding every
// Lightning-module-specific operation as a generic module call against the
// lightning module instance.
type HTTPFederationClient struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

func NewHTTPFederationClient(baseURL, authToken string) *HTTPFederationClient {
	return &HTTPFederationClient{
		baseURL:   baseURL,
		authToken: authToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *HTTPFederationClient) call(ctx context.Context, endpoint string, input, out interface{}) error {
	body, err := json.Marshal(dispatchEnvelope{
		Endpoint: endpoint,
		Auth:     c.authToken,
		Input:    input,
	})
	if err != nil {
		return federationClientError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/dispatch", bytes.NewReader(body))
	if err != nil {
		return federationClientError(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return federationClientError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return federationClientError(fmt.Errorf("%s: %s", resp.Status, apiErr.Error))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// moduleCallInput wraps a Lightning-module-specific call in the shape the
// lightning module's ValidateInput/ValidateOutput decoder expects: an
// opaque, module-owned payload next to the module id routing it there.
type moduleCallInput struct {
	ModuleID uint16          `json:"module_id"`
	Op       string          `json:"op"`
	Args     json.RawMessage `json:"args"`
}

func (c *HTTPFederationClient) moduleCall(ctx context.Context, moduleID uint16, op string, args, out interface{}) error {
	argsBytes, err := json.Marshal(args)
	if err != nil {
		return federationClientError(err)
	}
	return c.call(ctx, "transaction", moduleCallInput{
		ModuleID: moduleID,
		Op:       op,
		Args:     argsBytes,
	}, out)
}

func (c *HTTPFederationClient) FetchOutgoingContract(ctx context.Context, id ContractID) (*OutgoingContract, error) {
	var out OutgoingContract
	if err := c.moduleCall(ctx, lightningModuleID, "fetch_outgoing_contract", struct {
		ID ContractID `json:"id"`
	}{id}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPFederationClient) ValidateOutgoingContract(ctx context.Context, contract *OutgoingContract) (*OutgoingContractParams, error) {
	var out OutgoingContractParams
	if err := c.moduleCall(ctx, lightningModuleID, "validate_outgoing_contract", contract, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPFederationClient) OfferExists(ctx context.Context, hash PaymentHash) (bool, error) {
	var out struct {
		Exists bool `json:"exists"`
	}
	if err := c.moduleCall(ctx, lightningModuleID, "offer_exists", struct {
		Hash PaymentHash `json:"hash"`
	}{hash}, &out); err != nil {
		return false, err
	}
	return out.Exists, nil
}

func (c *HTTPFederationClient) BuyPreimageInternal(ctx context.Context, hash PaymentHash, amount int64) ([]byte, ContractID, error) {
	var out struct {
		Preimage           []byte     `json:"preimage"`
		IncomingContractID ContractID `json:"incoming_contract_id"`
	}
	if err := c.moduleCall(ctx, lightningModuleID, "buy_preimage_internal", struct {
		Hash   PaymentHash `json:"hash"`
		Amount int64       `json:"amount_msat"`
	}{hash, amount}, &out); err != nil {
		return nil, out.IncomingContractID, err
	}
	return out.Preimage, out.IncomingContractID, nil
}

func (c *HTTPFederationClient) RefundIncomingContract(ctx context.Context, id ContractID) error {
	return c.moduleCall(ctx, lightningModuleID, "refund_incoming_contract", struct {
		ID ContractID `json:"id"`
	}{id}, nil)
}

func (c *HTTPFederationClient) ClaimOutgoingContract(ctx context.Context, id ContractID, preimage []byte) ([32]byte, error) {
	var out struct {
		Outpoint [32]byte `json:"outpoint"`
	}
	if err := c.moduleCall(ctx, lightningModuleID, "claim_outgoing_contract", struct {
		ID       ContractID `json:"id"`
		Preimage []byte     `json:"preimage"`
	}{id, preimage}, &out); err != nil {
		return [32]byte{}, err
	}
	return out.Outpoint, nil
}

func (c *HTTPFederationClient) AwaitOutgoingContractClaimed(ctx context.Context, id ContractID, outpoint [32]byte) error {
	return c.call(ctx, "wait_transaction", struct {
		TxID [32]byte `json:"txid"`
	}{outpoint}, nil)
}

func (c *HTTPFederationClient) AbortOutgoingContract(ctx context.Context, id ContractID) error {
	return c.moduleCall(ctx, lightningModuleID, "abort_outgoing_contract", struct {
		ID ContractID `json:"id"`
	}{id}, nil)
}

func (c *HTTPFederationClient) FetchAllCoins(ctx context.Context) error {
	return c.moduleCall(ctx, lightningModuleID, "fetch_all_coins", struct{}{}, nil)
}

// Register calls the consensus API's version endpoint and returns its
// error, if any. The consensus API has no registration endpoint, so this
// checks that the federation member answers; it does not record the
// gateway anywhere on the federation side.
func (c *HTTPFederationClient) Register(ctx context.Context) error {
	var out struct {
		OK bool `json:"ok"`
	}
	return c.call(ctx, "version", nil, &out)
}

func (c *HTTPFederationClient) Balance(ctx context.Context) (int64, error) {
	var out struct {
		AmountMsat int64 `json:"amount_msat"`
	}
	if err := c.moduleCall(ctx, walletModuleID, "balance", struct{}{}, &out); err != nil {
		return 0, err
	}
	return out.AmountMsat, nil
}

func (c *HTTPFederationClient) NewPegInAddress(ctx context.Context) (string, error) {
	var out struct {
		Address string `json:"address"`
	}
	if err := c.moduleCall(ctx, walletModuleID, "new_pegin_address", struct{}{}, &out); err != nil {
		return "", err
	}
	return out.Address, nil
}

func (c *HTTPFederationClient) PegIn(ctx context.Context, tx *wire.MsgTx) ([32]byte, error) {
	var txBytes bytes.Buffer
	if err := tx.Serialize(&txBytes); err != nil {
		return [32]byte{}, federationClientError(err)
	}

	var out struct {
		TxID [32]byte `json:"txid"`
	}
	if err := c.moduleCall(ctx, walletModuleID, "peg_in", struct {
		TxBytes []byte `json:"tx"`
	}{txBytes.Bytes()}, &out); err != nil {
		return [32]byte{}, err
	}
	return out.TxID, nil
}

func (c *HTTPFederationClient) PegOut(ctx context.Context, amountSat int64, address string) ([32]byte, error) {
	var out struct {
		TxID [32]byte `json:"txid"`
	}
	if err := c.moduleCall(ctx, walletModuleID, "peg_out", struct {
		AmountSat int64  `json:"amount_sat"`
		Address   string `json:"address"`
	}{amountSat, address}, &out); err != nil {
		return [32]byte{}, err
	}
	return out.TxID, nil
}

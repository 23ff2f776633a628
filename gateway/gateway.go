package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/queue"
	"github.com/lightningnetwork/lnd/ticker"
	"golang.org/x/sync/errgroup"
)

// htlcQueueBufferSize is the channel buffer size of the intercepted-HTLC
// queue. queue.ConcurrentQueue keeps anything beyond it in an internal
// overflow list, so it does not cap the backlog of HTLCs waiting for the
// main loop to buy their preimage.
const htlcQueueBufferSize = 50

// loopInterval is the fixed minimum period of one main-loop iteration: long
// enough to avoid busy-spinning when idle, short enough that queued
// requests are still drained eagerly.
const loopInterval = 100 * time.Millisecond

// requestChanCapacity bounds the gateway's inbound request channel; HTTP
// handlers suspend once it's full, same as the admission channel on the
// consensus-API side.
const requestChanCapacity = 64

// ReceiveInvoicePayload wraps an accepted inbound HTLC delivered as a
// webhook rather than over the RouteHtlcs gRPC stream — the event shape a
// CLN-style Lightning plugin hands the gateway over HTTP.
type ReceiveInvoicePayload struct {
	Htlc InterceptHtlcRequest
}

// PayInvoicePayload asks the gateway to pay an invoice on the caller's
// behalf.
type PayInvoicePayload struct {
	ContractID ContractID
}

// BalancePayload asks for the gateway's current balance.
type BalancePayload struct{}

// DepositAddressPayload asks for a fresh deposit address.
type DepositAddressPayload struct{}

// DepositPayload submits an on-chain deposit transaction.
type DepositPayload struct {
	TxBytes []byte
}

// WithdrawPayload requests an on-chain withdrawal.
type WithdrawPayload struct {
	Address   string
	AmountSat int64
}

// gatewayReply is what every queued request eventually receives on its
// oneshot reply channel.
type gatewayReply struct {
	result interface{}
	err    error
}

// gatewayRequest pairs an arbitrary typed payload with the oneshot reply
// channel its HTTP handler is waiting on — the same query-channel shape
// the teacher uses for serializing link-registration requests into a
// single goroutine.
type gatewayRequest struct {
	payload interface{}
	reply   chan gatewayReply
}

// LnGateway is the single cooperative task owning the federation client,
// the Lightning RPC client, the bounded request-receiver, and the
// webserver task handle.
type LnGateway struct {
	started  int32 // atomic
	shutdown int32 // atomic

	federation FederationClient
	lnClient   ILnRpcClient
	store      *ContractStore

	requests chan gatewayRequest
	htlcs    *queue.ConcurrentQueue

	webserver *webserver

	wg   sync.WaitGroup
	quit chan struct{}
}

// NewLnGateway constructs a gateway over the given federation and
// Lightning RPC clients; store may be nil, in which case contract
// bookkeeping is skipped entirely rather than best-effort.
func NewLnGateway(federation FederationClient, lnClient ILnRpcClient, store *ContractStore, addr string) *LnGateway {
	g := &LnGateway{
		federation: federation,
		lnClient:   lnClient,
		store:      store,
		requests:   make(chan gatewayRequest, requestChanCapacity),
		htlcs:      queue.NewConcurrentQueue(htlcQueueBufferSize),
		quit:       make(chan struct{}),
	}
	g.webserver = newWebserver(addr, g)
	return g
}

// Start registers the gateway with the federation and launches the main
// loop and webserver. A registration failure is fatal, per the design
// note that soft-retry is an open issue for a future iteration.
//
// TODO: soft-retry registration instead of failing hard on the first
// attempt.
func (g *LnGateway) Start(ctx context.Context) error {
	if atomic.AddInt32(&g.started, 1) != 1 {
		return nil
	}

	if err := g.federation.Register(ctx); err != nil {
		return federationClientError(err)
	}

	htlcStream, err := g.lnClient.RouteHtlcs(ctx)
	if err != nil {
		return otherError(err)
	}

	g.htlcs.Start()

	g.wg.Add(1)
	go g.forwardHtlcs(htlcStream)

	// The webserver and the main loop have no dependency on each other at
	// startup, so bring both up concurrently and surface whichever fails
	// first rather than serializing two independent steps.
	var eg errgroup.Group
	eg.Go(g.webserver.Start)
	eg.Go(func() error {
		g.wg.Add(1)
		go g.run(ctx)
		return nil
	})
	if err := eg.Wait(); err != nil {
		return otherError(err)
	}

	return nil
}

// forwardHtlcs copies every message off the Lightning node's intercepted-HTLC
// stream onto the gateway's own queue. The queue has no capacity limit, so
// HTLCs that arrive during a slow main-loop iteration wait in it rather than
// being dropped.
func (g *LnGateway) forwardHtlcs(htlcStream <-chan InterceptHtlcRequest) {
	defer g.wg.Done()

	for {
		select {
		case req, ok := <-htlcStream:
			if !ok {
				return
			}
			select {
			case g.htlcs.ChanIn() <- req:
			case <-g.quit:
				return
			}
		case <-g.quit:
			return
		}
	}
}

// Stop aborts and joins the webserver task and the main loop, mirroring the
// contract that dropping the gateway must not leak either.
func (g *LnGateway) Stop() error {
	if atomic.AddInt32(&g.shutdown, 1) != 1 {
		return nil
	}

	close(g.quit)
	g.wg.Wait()
	g.htlcs.Stop()

	return g.webserver.Stop()
}

// run is the cooperative main loop: on every tick of a loopInterval ticker
// it runs one iteration (federation-side maintenance, then non-blocking
// drains of pending gateway requests and queued HTLCs), until quit is
// closed.
func (g *LnGateway) run(ctx context.Context) {
	defer g.wg.Done()

	loopTicker := ticker.New(loopInterval)
	loopTicker.Resume()
	defer loopTicker.Stop()

	for {
		select {
		case <-g.quit:
			return
		case <-loopTicker.Ticks:
			g.runIteration(ctx)
		}
	}
}

// runIteration executes one pass of the loop body described in the
// component design: federation fetch first, so replies reflect fresh coin
// state, then a non-blocking drain of the request channel and the
// intercepted-HTLC queue.
func (g *LnGateway) runIteration(ctx context.Context) {
	if err := g.federation.FetchAllCoins(ctx); err != nil {
		gwLog.Errorf("fetch_all_coins failed: %v", err)
	}

	g.drainRequests(ctx)
	g.drainHtlcs(ctx)
}

func (g *LnGateway) drainRequests(ctx context.Context) {
	for {
		select {
		case req := <-g.requests:
			g.dispatch(ctx, req)
		default:
			return
		}
	}
}

func (g *LnGateway) drainHtlcs(ctx context.Context) {
	for {
		select {
		case msg := <-g.htlcs.ChanOut():
			g.settleHtlc(ctx, msg.(InterceptHtlcRequest))
		default:
			return
		}
	}
}

// settleHtlc answers one intercepted HTLC: buy its preimage from the
// federation and report the outcome back to the Lightning node, failing the
// HTLC if no preimage could be bought.
func (g *LnGateway) settleHtlc(ctx context.Context, req InterceptHtlcRequest) {
	resp, err := g.HandleHtlcIncoming(ctx, req)
	if err != nil {
		htlcLog.Errorf("htlc %x not settled: %v", req.PaymentHash, err)
	}

	if err := g.lnClient.CompleteHtlc(ctx, resp); err != nil {
		htlcLog.Errorf("failed to report outcome for htlc %x: %v", req.PaymentHash, err)
	}
}

// dispatch routes one queued request to its handler and replies on its
// oneshot channel without blocking. The reply channel has room for one
// reply, so the send succeeds whether or not the requester is still
// waiting; the warning is logged only when that buffer is already full. A
// requester that has stopped waiting is not detected.
func (g *LnGateway) dispatch(ctx context.Context, req gatewayRequest) {
	var (
		result interface{}
		err    error
	)

	switch payload := req.payload.(type) {
	case PayInvoicePayload:
		var outpoint [32]byte
		outpoint, err = g.PayInvoice(ctx, payload.ContractID)
		result = outpoint

	case ReceiveInvoicePayload:
		result, err = g.receiveInvoice(ctx, payload)

	case BalancePayload:
		result, err = g.balance(ctx)

	case DepositAddressPayload:
		result, err = g.depositAddress(ctx)

	case DepositPayload:
		result, err = g.deposit(ctx, payload)

	case WithdrawPayload:
		result, err = g.withdraw(ctx, payload)

	default:
		err = clientError("unrecognized gateway request")
	}

	select {
	case req.reply <- gatewayReply{result: result, err: err}:
	default:
		gwLog.Warnf("dropped reply for request %T: receiver hung up", req.payload)
	}
}

// submit enqueues a request and blocks for its reply, the shape every
// webserver handler uses to talk to the single-consumer main loop.
func (g *LnGateway) submit(payload interface{}) (interface{}, error) {
	reply := make(chan gatewayReply, 1)

	select {
	case g.requests <- gatewayRequest{payload: payload, reply: reply}:
	case <-g.quit:
		return nil, otherError(nil)
	}

	r := <-reply
	return r.result, r.err
}

package gateway

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// webserver is the gateway's HTTP front door: every handler simply decodes
// its payload and calls LnGateway.submit, which enqueues onto the single
// consumer main loop and blocks for the oneshot reply.
type webserver struct {
	started  int32 // atomic
	shutdown int32 // atomic

	addr    string
	gateway *LnGateway
	limiter *rate.Limiter

	httpServer *http.Server
	wg         sync.WaitGroup
}

func newWebserver(addr string, g *LnGateway) *webserver {
	return &webserver{
		addr:    addr,
		gateway: g,
		limiter: rate.NewLimiter(rate.Limit(50), 100),
	}
}

func (w *webserver) throttle(next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !w.limiter.Allow() {
			http.Error(rw, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(rw, r)
	}
}

func (w *webserver) Start() error {
	if atomic.AddInt32(&w.started, 1) != 1 {
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/pay_invoice", w.throttle(handle[PayInvoicePayload](w)))
	mux.HandleFunc("/receive_invoice", w.throttle(handle[ReceiveInvoicePayload](w)))
	mux.HandleFunc("/balance", w.throttle(handle[BalancePayload](w)))
	mux.HandleFunc("/deposit_address", w.throttle(handle[DepositAddressPayload](w)))
	mux.HandleFunc("/deposit", w.throttle(handle[DepositPayload](w)))
	mux.HandleFunc("/withdraw", w.throttle(handle[WithdrawPayload](w)))

	w.httpServer = &http.Server{Addr: w.addr, Handler: mux}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			gwLog.Errorf("gateway webserver exited: %v", err)
		}
	}()

	return nil
}

// Stop aborts and joins the listener goroutine, the explicit close()
// equivalent to "drop" the design notes call for in a language without
// destructors.
func (w *webserver) Stop() error {
	if atomic.AddInt32(&w.shutdown, 1) != 1 {
		return nil
	}

	if w.httpServer != nil {
		_ = w.httpServer.Close()
	}
	w.wg.Wait()
	return nil
}

// handle decodes the request body into a fresh zero-valued P, submits it to
// the gateway, and maps every resulting error to HTTP 500 with a
// debug-rendered body, per the IntoResponse behavior carried forward from
// the original gateway. Decoding into *P directly, rather than into an
// interface{} holding a P, is what lets dispatch's type switch see the
// concrete payload type instead of a decoded map[string]interface{}.
func handle[P any](w *webserver) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		var payload P
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				http.Error(rw, err.Error(), http.StatusBadRequest)
				return
			}
		}

		result, err := w.gateway.submit(payload)
		if err != nil {
			rw.Header().Set("Content-Type", "application/json")
			rw.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(rw).Encode(map[string]string{"error": err.Error()})
			return
		}

		rw.Header().Set("Content-Type", "application/json")
		json.NewEncoder(rw).Encode(result)
	}
}

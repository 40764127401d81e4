package mining

import (
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/kadena-community/pact-toolbox-sub005/eventbus"
	"github.com/kadena-community/pact-toolbox-sub005/pactlog"
)

// RouteRegistrar is the minimal surface the orchestrator needs from an
// already-constructed HTTP app, per spec.md §9: MT never owns a listener,
// only registers its route on a router the caller built and will serve
// itself.
type RouteRegistrar interface {
	Handle(path string, handler http.Handler) *mux.Route
}

// sendRoutePattern is the gorilla/mux path template for the proxy's one
// route. {chainId} is left unconstrained so a non-numeric segment still
// reaches the handler: mux would otherwise answer a regexp mismatch with
// its own bare 404 before ParseChainID ever runs, short-circuiting
// spec.md §4.3 step 1's "reject non-integer or out-of-range with 400."
// ParseChainID (below) does both checks and is the sole source of that 400.
const sendRoutePattern = "/chainweb/0.0/{networkId}/chain/{chainId}/pact/api/v1/send"

// requestHeaderSkip and responseHeaderSkip are the case-insensitive header
// names spec.md §4.3 steps 3-4 say must never be forwarded.
var requestHeaderSkip = map[string]struct{}{
	"host":               {},
	"transfer-encoding":   {},
	"connection":         {},
}

var responseHeaderSkip = map[string]struct{}{
	"transfer-encoding":              {},
	"access-control-allow-origin":    {},
}

// ProxyErrorBody is the synthesized JSON body written on a proxy-transport
// failure, resolving spec.md §9's open question about the source
// dereferencing a null error.response.data: this is always a well-formed
// body, never a crash.
type ProxyErrorBody struct {
	Error string `json:"error"`
}

// TransactionProxy is the HTTP handler for spec.md §4.3's /send route.
type TransactionProxy struct {
	downstreamBase string
	downstream     *http.Client
	scheduler      *Scheduler
	activity       *ActivitySignal
	bus            *eventbus.Bus
	logger         pactlog.Logger

	transactionBatchPeriod  time.Duration
	defaultConfirmationCount int
}

// NewTransactionProxy builds a TransactionProxy. downstream is a shared,
// thread-safe *http.Client used to forward requests verbatim.
func NewTransactionProxy(
	downstreamBase string,
	downstream *http.Client,
	scheduler *Scheduler,
	activity *ActivitySignal,
	bus *eventbus.Bus,
	logger pactlog.Logger,
	transactionBatchPeriod time.Duration,
	defaultConfirmationCount int,
) *TransactionProxy {
	return &TransactionProxy{
		downstreamBase:           strings.TrimSuffix(downstreamBase, "/"),
		downstream:               downstream,
		scheduler:                scheduler,
		activity:                 activity,
		bus:                      bus,
		logger:                   logger,
		transactionBatchPeriod:   transactionBatchPeriod,
		defaultConfirmationCount: defaultConfirmationCount,
	}
}

// Register wires the /send route onto r, wrapped in CORS middleware so
// browser-origin devnet tooling can call the proxy directly. r is owned by
// the caller; Register never calls ListenAndServe.
func (p *TransactionProxy) Register(r RouteRegistrar) {
	handler := cors.AllowAll().Handler(http.HandlerFunc(p.ServeHTTP))
	r.Handle(sendRoutePattern, handler)
}

func (p *TransactionProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	networkID := vars["networkId"]

	chainID, err := ParseChainID(vars["chainId"])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(ProxyErrorBody{Error: err.Error()})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		p.emitError(ContextTransactionProxy, &chainID, err)
		p.writeTransportError(w)
		return
	}

	p.bus.Emit(eventbus.TransactionReceived, TransactionReceivedPayload{
		NetworkID: networkID,
		ChainID:   chainID,
		Body:      body,
	})

	downstreamURL := p.downstreamBase + "/chainweb/0.0/" + networkID + "/chain/" + chainID.String() + "/pact/api/v1/send"
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, downstreamURL, strings.NewReader(string(body)))
	if err != nil {
		p.emitError(ContextTransactionProxy, &chainID, err)
		p.writeTransportError(w)
		return
	}
	copyHeaders(req.Header, r.Header, requestHeaderSkip)

	resp, err := p.downstream.Do(req)
	if err != nil {
		p.emitError(ContextTransactionProxy, &chainID, err)
		p.writeTransportError(w)
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		p.emitError(ContextTransactionProxy, &chainID, err)
		p.writeTransportError(w)
		return
	}

	copyHeaders(w.Header(), resp.Header, responseHeaderSkip)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(respBody)

	p.bus.Emit(eventbus.TransactionProxied, TransactionProxiedPayload{
		NetworkID:    networkID,
		ChainID:      chainID,
		Status:       resp.StatusCode,
		ResponseBody: respBody,
	})

	if resp.StatusCode == http.StatusOK && p.defaultConfirmationCount > 0 {
		p.scheduler.Push(p.transactionBatchPeriod, chainID, p.defaultConfirmationCount)
		p.activity.Signal()
	}
}

func (p *TransactionProxy) emitError(ctx ErrorContext, chainID *ChainId, err error) {
	p.logger.Warn("transaction proxy error", "context", ctx, "err", err)
	p.bus.Emit(eventbus.Error, ErrorPayload{Context: ctx, ChainID: chainID, Err: err})
}

// writeTransportError synthesizes a 502 with an explicit JSON body, per
// spec.md §4.3 step 7 and §9's resolved open question.
func (p *TransactionProxy) writeTransportError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	_ = json.NewEncoder(w).Encode(ProxyErrorBody{Error: "proxy transport error"})
}

func copyHeaders(dst, src http.Header, skip map[string]struct{}) {
	for name, values := range src {
		if _, ok := skip[strings.ToLower(name)]; ok {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

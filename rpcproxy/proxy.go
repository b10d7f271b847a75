// Package rpcproxy is a local JSON-RPC-over-HTTP server a test harness points its RPC URL at. eth_call and
// eth_sendTransaction are routed through an interceptor.Interceptor; every other method is forwarded to the
// upstream node untouched, so any RPC client can be traced without being modified.
package rpcproxy

import (
	"encoding/json"
	"net/http"

	"github.com/covtrace/covtrace/interceptor"
	"github.com/covtrace/covtrace/rpcclient"
	"github.com/pkg/errors"
)

// request is a JSON-RPC 2.0 request object.
type request struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

// response is a JSON-RPC 2.0 response object. Exactly one of Result or Error is populated.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Handler is an http.Handler that intercepts eth_call/eth_sendTransaction through an Interceptor and forwards
// everything else to the wrapped provider.
type Handler struct {
	interceptor *interceptor.Interceptor
	provider    *rpcclient.Provider
}

// New constructs a Handler intercepting through ic, forwarding passthrough methods via provider.
func New(ic *interceptor.Interceptor, provider *rpcclient.Provider) *Handler {
	return &Handler{interceptor: ic, provider: provider}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, errors.WithMessage(err, "decoding JSON-RPC request"))
		return
	}

	result, err := h.dispatch(r, req)
	if err != nil {
		writeError(w, req.ID, err)
		return
	}

	writeResult(w, req.ID, result)
}

func (h *Handler) dispatch(r *http.Request, req request) (interface{}, error) {
	ctx := r.Context()

	switch req.Method {
	case "eth_call":
		tx, err := decodeCallTransaction(req.Params)
		if err != nil {
			return nil, err
		}
		result, err := h.interceptor.Call(ctx, tx)
		if err != nil {
			return nil, err
		}
		return "0x" + result, nil
	case "eth_sendTransaction":
		tx, err := decodeCallTransaction(req.Params)
		if err != nil {
			return nil, err
		}
		hash, err := h.interceptor.SendTransaction(ctx, tx)
		if err != nil {
			return nil, err
		}
		return hash, nil
	default:
		params := make([]interface{}, len(req.Params))
		for i, p := range req.Params {
			params[i] = p
		}
		return h.provider.Raw(ctx, req.Method, params...)
	}
}

func decodeCallTransaction(params []json.RawMessage) (rpcclient.CallTransaction, error) {
	var tx rpcclient.CallTransaction
	if len(params) == 0 {
		return tx, errors.New("missing transaction argument")
	}
	if err := json.Unmarshal(params[0], &tx); err != nil {
		return tx, errors.WithMessage(err, "decoding transaction argument")
	}
	return tx, nil
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result interface{}) {
	payload, err := json.Marshal(result)
	if err != nil {
		writeError(w, id, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response{JSONRPC: "2.0", ID: id, Result: payload})
}

func writeError(w http.ResponseWriter, id json.RawMessage, err error) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: -32000, Message: err.Error()}})
}

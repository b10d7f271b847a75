// Package rpcclient is the JSON-RPC provider the attribution engine drives, a thin wrapper over go-ethereum's
// *rpc.Client.
package rpcclient

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
)

// maxRetries bounds the retry loop a transient RPC failure (dropped connection, node momentarily busy) goes
// through before the error is surfaced to the caller.
const maxRetries = 3

// caller is the subset of *rpc.Client this package depends on, so tests can supply an in-memory fake instead of
// dialing a real node.
type caller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// Provider answers the JSON-RPC methods the trace crawler and interceptor consume, retrying transient failures
// with linear backoff.
type Provider struct {
	client caller
}

// Dial connects to an Ethereum-compatible JSON-RPC endpoint.
func Dial(endpoint string) (*Provider, error) {
	client, err := rpc.Dial(endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing rpc endpoint %s", endpoint)
	}
	return &Provider{client: client}, nil
}

// New wraps an already-constructed RPC caller (typically a *rpc.Client, or a fake in tests).
func New(client caller) *Provider {
	return &Provider{client: client}
}

func (p *Provider) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = p.client.CallContext(ctx, result, method, args...)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 100 * time.Millisecond):
		}
	}
	return errors.Wrapf(err, "rpc method %s failed after %d attempts", method, maxRetries)
}

// Transaction is the subset of eth_getTransactionByHash's result the trace crawler needs.
type Transaction struct {
	To    *string `json:"to"`
	Input string  `json:"input"`
}

// TransactionByHash calls eth_getTransactionByHash.
func (p *Provider) TransactionByHash(ctx context.Context, txHash string) (*Transaction, error) {
	var tx Transaction
	if err := p.call(ctx, &tx, "eth_getTransactionByHash", txHash); err != nil {
		return nil, err
	}
	return &tx, nil
}

// StructLog is one entry of a debug_traceTransaction's structLogs array.
type StructLog struct {
	Depth   int               `json:"depth"`
	Op      string            `json:"op"`
	PC      uint64            `json:"pc"`
	Stack   []string          `json:"stack"`
	Memory  []string          `json:"memory"`
	Storage map[string]string `json:"storage"`
}

// traceResult is the top-level shape of a debug_traceTransaction response using the default (structLog) tracer.
type traceResult struct {
	StructLogs []StructLog `json:"structLogs"`
}

// TraceTransaction calls debug_traceTransaction with the default struct-log tracer and returns its structLogs.
func (p *Provider) TraceTransaction(ctx context.Context, txHash string) ([]StructLog, error) {
	var result traceResult
	if err := p.call(ctx, &result, "debug_traceTransaction", txHash, struct{}{}); err != nil {
		return nil, err
	}
	return result.StructLogs, nil
}

// GetCode calls eth_getCode and returns the code hex without a "0x" prefix.
func (p *Provider) GetCode(ctx context.Context, address string) (string, error) {
	var code string
	if err := p.call(ctx, &code, "eth_getCode", address, "latest"); err != nil {
		return "", err
	}
	return trimHexPrefix(code), nil
}

// CallTransaction is the argument shape accepted by eth_call and eth_sendTransaction.
type CallTransaction struct {
	From  string `json:"from,omitempty"`
	To    string `json:"to,omitempty"`
	Data  string `json:"data,omitempty"`
	Value string `json:"value,omitempty"`
	Gas   string `json:"gas,omitempty"`
}

// Call calls eth_call and returns the returned hex payload without a "0x" prefix.
func (p *Provider) Call(ctx context.Context, tx CallTransaction) (string, error) {
	var result string
	if err := p.call(ctx, &result, "eth_call", tx, "latest"); err != nil {
		return "", err
	}
	return trimHexPrefix(result), nil
}

// SendTransaction calls eth_sendTransaction and returns the resulting transaction hash.
func (p *Provider) SendTransaction(ctx context.Context, tx CallTransaction) (string, error) {
	var hash string
	if err := p.call(ctx, &hash, "eth_sendTransaction", tx); err != nil {
		return "", err
	}
	return hash, nil
}

// PendingBlock is the subset of eth_getBlockByNumber("pending", false)'s result the interceptor needs.
type PendingBlock struct {
	Transactions []string `json:"transactions"`
}

// PendingBlock calls eth_getBlockByNumber("pending", false).
func (p *Provider) PendingBlock(ctx context.Context) (*PendingBlock, error) {
	var block PendingBlock
	if err := p.call(ctx, &block, "eth_getBlockByNumber", "pending", false); err != nil {
		return nil, err
	}
	return &block, nil
}

// Snapshot calls evm_snapshot and returns the opaque snapshot id.
func (p *Provider) Snapshot(ctx context.Context) (string, error) {
	var id string
	if err := p.call(ctx, &id, "evm_snapshot"); err != nil {
		return "", err
	}
	return id, nil
}

// Revert calls evm_revert with a previously-obtained snapshot id.
func (p *Provider) Revert(ctx context.Context, snapshotID string) (bool, error) {
	var ok bool
	if err := p.call(ctx, &ok, "evm_revert", snapshotID); err != nil {
		return false, err
	}
	return ok, nil
}

// Raw forwards an arbitrary JSON-RPC method call to the underlying client, for methods the proxy has no reason to
// special-case (the bulk of what a test harness's RPC traffic looks like).
func (p *Provider) Raw(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	var result json.RawMessage
	if err := p.call(ctx, &result, method, params...); err != nil {
		return nil, err
	}
	return result, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

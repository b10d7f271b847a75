// Package interceptor wraps a JSON-RPC provider so that a test harness can be pointed at an Interceptor in place
// of a plain rpcclient.Provider: every state-changing call a test run makes is traced and folded into a running
// Coverage report, without the test harness itself knowing anything about tracing.
package interceptor

import (
	"context"
	"sync"

	"github.com/covtrace/covtrace/coverage"
	"github.com/covtrace/covtrace/rpcclient"
	"github.com/covtrace/covtrace/sources"
	"github.com/covtrace/covtrace/trace"
	"github.com/pkg/errors"
)

// Interceptor wraps an rpcclient.Provider, overriding eth_call and eth_sendTransaction so that every transaction a
// test run produces is traced and accumulated into a shared Report. All other methods pass through to the wrapped
// provider untouched.
type Interceptor struct {
	provider *rpcclient.Provider
	sources  *sources.Sources
	coverage *coverage.Coverage

	mu     sync.Mutex
	report *coverage.Report

	// traceErrors tolerates per-transaction trace failures: a transaction that fails to trace or attribute does
	// not abort the run, but is recorded here for the caller to inspect afterward.
	traceErrors []error
}

// New constructs an Interceptor wrapping provider, tracing against src and accumulating into cov.
func New(provider *rpcclient.Provider, src *sources.Sources, cov *coverage.Coverage) *Interceptor {
	return &Interceptor{provider: provider, sources: src, coverage: cov}
}

// Report returns the coverage accumulated so far. The returned value is live and will keep accumulating as further
// calls/transactions are intercepted.
func (i *Interceptor) Report() *coverage.Report {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.report
}

// TraceErrors returns every per-transaction trace/attribution failure tolerated so far.
func (i *Interceptor) TraceErrors() []error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]error(nil), i.traceErrors...)
}

// SendTransaction forwards tx to eth_sendTransaction, then, if the node's pending block is now empty (the
// transaction was mined synchronously), attempts to trace and report it. Trace failures are tolerated: the
// transaction hash is still returned to the caller even if attribution failed.
func (i *Interceptor) SendTransaction(ctx context.Context, tx rpcclient.CallTransaction) (string, error) {
	hash, err := i.provider.SendTransaction(ctx, tx)
	if err != nil {
		return "", err
	}

	pending, err := i.provider.PendingBlock(ctx)
	if err == nil && len(pending.Transactions) == 0 {
		i.traceAndReport(ctx, hash)
	}

	return hash, nil
}

// Call forwards tx to eth_call to obtain the call's result, then reproduces a trace for it by taking a snapshot,
// re-sending the same call as a transaction, and reverting the snapshot, so the call's execution can be traced
// without leaving any state change behind. The original eth_call result is returned regardless of how (or whether)
// tracing succeeds.
//
// Caveat: the returned result is the one eth_call produced, captured before the replay transaction is sent. If the
// node orders state differently between an isolated eth_call and a mined transaction, the replay's trace can
// diverge from the result actually returned to the caller.
func (i *Interceptor) Call(ctx context.Context, tx rpcclient.CallTransaction) (string, error) {
	result, err := i.provider.Call(ctx, tx)
	if err != nil {
		return "", err
	}

	snapshotID, err := i.provider.Snapshot(ctx)
	if err != nil {
		return result, nil
	}

	hash, sendErr := i.provider.SendTransaction(ctx, tx)
	if sendErr == nil {
		i.traceAndReport(ctx, hash)
	}

	if _, revertErr := i.provider.Revert(ctx, snapshotID); revertErr != nil {
		i.recordTraceError(errors.WithMessage(revertErr, "reverting eth_call replay snapshot"))
	}

	return result, nil
}

func (i *Interceptor) traceAndReport(ctx context.Context, txHash string) {
	tr, err := trace.Crawl(ctx, i.provider, i.sources, txHash)
	if err != nil {
		i.recordTraceError(errors.WithMessagef(err, "tracing transaction %s", txHash))
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	report, err := i.coverage.Report(tr.Logs, i.report)
	if err != nil {
		i.traceErrors = append(i.traceErrors, errors.WithMessagef(err, "attributing transaction %s", txHash))
		return
	}
	i.report = report
}

func (i *Interceptor) recordTraceError(err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.traceErrors = append(i.traceErrors, err)
}

package rpcclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var errFakeTransient = errors.New("transient rpc failure")

// fakeCaller is an in-memory stand-in for *rpc.Client, so these tests carry no live network dependency.
type fakeCaller struct {
	calls     int
	failUntil int
	respond   func(result interface{}, method string, args ...interface{}) error
}

func (f *fakeCaller) CallContext(_ context.Context, result interface{}, method string, args ...interface{}) error {
	f.calls++
	if f.calls <= f.failUntil {
		return errFakeTransient
	}
	return f.respond(result, method, args...)
}

func TestGetCodeTrimsPrefix(t *testing.T) {
	fake := &fakeCaller{
		respond: func(result interface{}, method string, args ...interface{}) error {
			require.Equal(t, "eth_getCode", method)
			*(result.(*string)) = "0x6080"
			return nil
		},
	}
	p := New(fake)

	code, err := p.GetCode(context.Background(), "0xabc")
	require.NoError(t, err)
	require.Equal(t, "6080", code)
}

func TestTraceTransactionReturnsStructLogs(t *testing.T) {
	fake := &fakeCaller{
		respond: func(result interface{}, method string, args ...interface{}) error {
			require.Equal(t, "debug_traceTransaction", method)
			res := result.(*traceResult)
			res.StructLogs = []StructLog{{Depth: 1, Op: "PUSH1", PC: 0}}
			return nil
		},
	}
	p := New(fake)

	logs, err := p.TraceTransaction(context.Background(), "0xhash")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, "PUSH1", logs[0].Op)
}

func TestCallRetriesOnTransientFailure(t *testing.T) {
	fake := &fakeCaller{
		failUntil: 2,
		respond: func(result interface{}, method string, args ...interface{}) error {
			*(result.(*string)) = "0xdeadbeef"
			return nil
		},
	}
	p := New(fake)

	result, err := p.Call(context.Background(), CallTransaction{To: "0xabc"})
	require.NoError(t, err)
	require.Equal(t, "deadbeef", result)
	require.Equal(t, 3, fake.calls)
}

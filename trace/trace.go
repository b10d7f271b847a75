// Package trace reconstructs a transaction's call-frame stack from the flat per-opcode log
// debug_traceTransaction returns, tagging every opcode with the deployed bytecode (or, mid-constructor, the
// in-flight creation bytecode) that executed it.
//
// Reconstruction works non-invasively from the already-recorded struct logs; there is no in-process EVM hook
// here, so any node answering debug_traceTransaction can be attributed against.
package trace

import (
	"context"
	"strconv"
	"strings"

	"github.com/covtrace/covtrace/rpcclient"
	"github.com/covtrace/covtrace/sources"
	"github.com/covtrace/covtrace/utils"
	"github.com/pkg/errors"
)

// TaggedLog is one struct log paired with exactly one of the two ways to resolve the bytecode that executed it:
// the address it ran at (ordinary execution), or the bytecode itself (execution still inside a CREATE/CREATE2
// constructor, before the new contract has an on-chain address to query eth_getCode with).
type TaggedLog struct {
	rpcclient.StructLog

	// Address is set when this opcode executed as part of already-deployed code.
	Address string

	// Bytecode is set instead of Address when this opcode executed inside an in-flight CREATE/CREATE2 constructor.
	Bytecode string
}

// Trace is the reconstructed result of one transaction: every opcode tagged with its executing code, plus the
// address->bytecode map accumulated along the way.
type Trace struct {
	Logs              []TaggedLog
	AddressToBytecode map[string]string
}

// TraceInconsistencyError reports a struct-log sequence the EVM itself never produces (a CREATE/CREATE2 that did not
// increase call depth, a depth below 1 or a pop past the root frame, a depth increase on any other opcode, or a
// stack or memory too small for the operands read); seeing one means the trace is corrupt or was generated by an
// incompatible tracer.
type TraceInconsistencyError struct {
	Reason string
}

func (e *TraceInconsistencyError) Error() string {
	return "trace inconsistency: " + e.Reason
}

type frame struct {
	address  string
	bytecode string
}

// Crawl fetches a transaction's struct logs and reconstructs its call stack. It also fetches eth_getCode for every
// distinct address observed, sequentially, filling the returned Trace.AddressToBytecode map and merging it into
// sources via Sources.LoadAddresses.
func Crawl(ctx context.Context, provider *rpcclient.Provider, src *sources.Sources, txHash string) (*Trace, error) {
	tx, err := provider.TransactionByHash(ctx, txHash)
	if err != nil {
		return nil, errors.WithMessagef(err, "fetching transaction %s", txHash)
	}

	logs, err := provider.TraceTransaction(ctx, txHash)
	if err != nil {
		return nil, errors.WithMessagef(err, "tracing transaction %s", txHash)
	}

	rootAddress := ""
	if tx.To != nil {
		rootAddress = strings.ToLower(*tx.To)
	}

	stack := []frame{{address: rootAddress}}
	tagged := make([]TaggedLog, 0, len(logs))
	addresses := map[string]struct{}{}

	for i, log := range logs {
		if log.Depth < 1 {
			return nil, &TraceInconsistencyError{Reason: "struct log depth below 1"}
		}

		top := stack[len(stack)-1]
		t := TaggedLog{StructLog: log}
		if top.bytecode != "" {
			t.Bytecode = top.bytecode
		} else {
			t.Address = top.address
			addresses[top.address] = struct{}{}
		}
		tagged = append(tagged, t)

		var next *rpcclient.StructLog
		if i+1 < len(logs) {
			next = &logs[i+1]
		}

		newFrame, popped, err := advance(log, next)
		if err != nil {
			return nil, err
		}
		if newFrame != nil {
			stack = append(stack, *newFrame)
		} else if popped {
			if len(stack) <= 1 {
				return nil, &TraceInconsistencyError{Reason: "call stack popped past root frame"}
			}
			stack = stack[:len(stack)-1]
		}
	}

	if utils.CheckContextDone(ctx) {
		return nil, ctx.Err()
	}

	addressToBytecode := make(map[string]string, len(addresses))
	if rootAddress == "" {
		// A contract-creation transaction: the initial frame's code is the transaction's own input, not something
		// eth_getCode can answer (the contract does not exist at any address yet).
		addressToBytecode[""] = strings.TrimPrefix(tx.Input, "0x")
	}
	for addr := range addresses {
		if addr == "" {
			continue
		}
		code, err := provider.GetCode(ctx, addr)
		if err != nil {
			return nil, errors.WithMessagef(err, "fetching code for %s", addr)
		}
		addressToBytecode[addr] = code
	}

	src.LoadAddresses(addressToBytecode)

	return &Trace{Logs: tagged, AddressToBytecode: addressToBytecode}, nil
}

// advance computes the call-stack transition for one opcode. It returns a non-nil frame when a
// new frame should be pushed, or popped=true when the current frame should be popped; both may be false/nil,
// meaning the stack is unchanged.
func advance(pre rpcclient.StructLog, post *rpcclient.StructLog) (*frame, bool, error) {
	postDepth := pre.Depth
	if post != nil {
		postDepth = post.Depth
	}

	switch pre.Op {
	case "CALL", "CALLCODE", "DELEGATECALL", "STATICCALL":
		if postDepth == pre.Depth+1 {
			addr, err := stackAddress(pre.Stack, 1)
			if err != nil {
				return nil, false, err
			}
			return &frame{address: addr}, false, nil
		}
		// Depth did not increase: a precompile or a plain value transfer with no code, so no frame was entered.
		return nil, false, nil

	case "CREATE", "CREATE2":
		if postDepth != pre.Depth+1 {
			return nil, false, &TraceInconsistencyError{Reason: "CREATE/CREATE2 did not increase call depth"}
		}
		bytecode, err := createdBytecode(pre)
		if err != nil {
			return nil, false, err
		}
		return &frame{bytecode: bytecode}, false, nil

	default:
		if postDepth > pre.Depth {
			return nil, false, &TraceInconsistencyError{Reason: "call depth increased on a non-call, non-create opcode"}
		}
		if postDepth < pre.Depth {
			return nil, true, nil
		}
		return nil, false, nil
	}
}

// stackAddress extracts an address from the 32-byte hex word `fromTop` positions down the EVM stack (0 = top), per
// the CALL family's argument layout where the callee address is the low 20 bytes of that word.
func stackAddress(stack []string, fromTop int) (string, error) {
	idx := len(stack) - 1 - fromTop
	if idx < 0 || idx >= len(stack) {
		return "", &TraceInconsistencyError{Reason: "stack too shallow for call target"}
	}
	addr, err := utils.HexStringToAddress(stack[idx])
	if err != nil {
		return "", errors.WithMessage(err, "parsing call target address")
	}
	return strings.ToLower(addr.Hex()), nil
}

// createdBytecode extracts the to-be-deployed bytecode a CREATE/CREATE2 reads from memory, per the offset/length
// operands at the top of the pre-opcode stack.
func createdBytecode(log rpcclient.StructLog) (string, error) {
	var offsetIdx, lengthIdx int
	switch log.Op {
	case "CREATE":
		// stack: [value, offset, length] top-to-bottom -> offset at 1, length at 2.
		offsetIdx, lengthIdx = 1, 2
	case "CREATE2":
		// stack: [value, offset, length, salt] top-to-bottom -> offset at 1, length at 2.
		offsetIdx, lengthIdx = 1, 2
	}

	offset, err := stackUint(log.Stack, offsetIdx)
	if err != nil {
		return "", err
	}
	length, err := stackUint(log.Stack, lengthIdx)
	if err != nil {
		return "", err
	}

	memory := strings.Join(log.Memory, "")
	start := offset * 2
	end := start + length*2
	if end > uint64(len(memory)) {
		return "", &TraceInconsistencyError{Reason: "CREATE/CREATE2 memory slice out of bounds"}
	}
	return memory[start:end], nil
}

func stackUint(stack []string, fromTop int) (uint64, error) {
	idx := len(stack) - 1 - fromTop
	if idx < 0 || idx >= len(stack) {
		return 0, &TraceInconsistencyError{Reason: "stack too shallow for create operands"}
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(stack[idx], "0x"), 16, 64)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return v, nil
}

// Package sourcemap decodes the compiler's packed source-map strings and walks deployed bytecode to recover, for
// each program counter, the source range the compiler attributes to the instruction at that offset.
//
// Reference: https://docs.soliditylang.org/en/latest/internals/source_mappings.html
package sourcemap

import (
	"fmt"
	"strconv"
	"strings"
)

// SourceRange identifies a half-open byte region [Start, Start+Length) within a specific compiler source file.
type SourceRange struct {
	// Start is the byte offset marking the beginning of the source range.
	Start int

	// Length is the byte length of the range. A Length of zero means no source is attributable.
	Length int

	// SourceIndex identifies the CompilerSource (by its output.id) that Start/Length are relative to. A negative
	// value indicates compiler-internal code with no associated source file.
	SourceIndex int
}

// End returns the exclusive end offset of the range.
func (r SourceRange) End() int {
	return r.Start + r.Length
}

// HasSource returns false if the range has no attributable source, either because its length is zero or its
// source index is unset.
func (r SourceRange) HasSource() bool {
	return r.Length > 0 && r.SourceIndex >= 0
}

// UnknownProgramCounter is returned when a pc does not mark the start of any decoded instruction.
type UnknownProgramCounter struct {
	PC   int
	FQDN string
}

func (e *UnknownProgramCounter) Error() string {
	return fmt.Sprintf("%s: program counter %d is not an instruction boundary", e.FQDN, e.PC)
}

// UnknownInstructionIndex is returned when an instruction index has no associated source map entry.
type UnknownInstructionIndex struct {
	Index int
	FQDN  string
}

func (e *UnknownInstructionIndex) Error() string {
	return fmt.Sprintf("%s: instruction index %d has no source range", e.FQDN, e.Index)
}

// SourceMap maps a contract's deployed bytecode program counters to the source ranges the compiler attributes to
// them, via an intermediate instruction-index space.
type SourceMap struct {
	// FQDN is the fully-qualified name ("<path>:<contract>") this source map belongs to, used only to annotate
	// lookup errors.
	FQDN string

	// Bytecode is the decoded bytecode byte stream this source map was built from.
	Bytecode []byte

	// pcToInstructionIndex maps every instruction-start program counter to its ordinal instruction index.
	pcToInstructionIndex map[int]int

	// instructionIndexToRange maps instruction index (0..N-1, N = number of semicolon-separated entries in the
	// compressed source map) to the source range the compiler recorded for it.
	instructionIndexToRange []SourceRange
}

// Parse decodes a compiler-emitted bytecode hex string (without the "0x" prefix) and its compressed source-map
// string into a SourceMap.
func Parse(fqdn string, bytecodeHex string, compressedSourceMap string) (*SourceMap, error) {
	bytecode, err := decodeHex(bytecodeHex)
	if err != nil {
		return nil, fmt.Errorf("%s: could not decode bytecode: %w", fqdn, err)
	}

	ranges, err := parseCompressedSourceMap(compressedSourceMap)
	if err != nil {
		return nil, fmt.Errorf("%s: could not parse source map: %w", fqdn, err)
	}

	pcToIndex, err := buildPCToInstructionIndices(bytecode)
	if err != nil {
		return nil, fmt.Errorf("%s: could not index bytecode: %w", fqdn, err)
	}

	return &SourceMap{
		FQDN:                    fqdn,
		Bytecode:                bytecode,
		pcToInstructionIndex:    pcToIndex,
		instructionIndexToRange: ranges,
	}, nil
}

// parseCompressedSourceMap parses the compiler's ";"-separated, field-inheriting source map grammar into one
// SourceRange per semicolon entry (one per instruction, in instruction-index order).
//
// Each entry has up to five colon-delimited fields "s:l:f:j:m"; only s (offset), l (length) and f (source index) are
// retained here. Jump-type and modifier-depth are not modeled by this attribution engine. An empty field inherits
// the previous entry's value for that field; state begins at {s:0, l:0, f:0}.
func parseCompressedSourceMap(compressed string) ([]SourceRange, error) {
	if len(compressed) == 0 {
		return nil, nil
	}

	entries := strings.Split(compressed, ";")
	ranges := make([]SourceRange, 0, len(entries))

	current := SourceRange{Start: 0, Length: 0, SourceIndex: 0}
	for _, entry := range entries {
		if len(entry) == 0 {
			ranges = append(ranges, current)
			continue
		}

		fields := strings.Split(entry, ":")

		if len(fields) > 0 && fields[0] != "" {
			v, err := strconv.Atoi(fields[0])
			if err != nil {
				return nil, err
			}
			current.Start = v
		}
		if len(fields) > 1 && fields[1] != "" {
			v, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, err
			}
			current.Length = v
		}
		if len(fields) > 2 && fields[2] != "" {
			v, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, err
			}
			current.SourceIndex = v
		}
		// Fields 3 (jump type) and 4 (modifier depth) are intentionally ignored; this attribution engine never
		// needs to distinguish jump kinds, only source ranges.

		ranges = append(ranges, current)
	}

	return ranges, nil
}

// buildPCToInstructionIndices walks the decoded bytecode byte stream and records, for every instruction start, its
// program counter and ordinal instruction index. Iteration is over bytes throughout, and pc positions are byte
// offsets, never hex-character offsets.
func buildPCToInstructionIndices(bytecode []byte) (map[int]int, error) {
	pcToIndex := make(map[int]int)

	pc, i := 0, 0
	for pc < len(bytecode) {
		pcToIndex[pc] = i

		length, err := instructionLength(bytecode, pc)
		if err != nil {
			return nil, err
		}

		pc += length
		i++
	}

	return pcToIndex, nil
}

// instructionLength returns the total byte length (opcode plus any immediate push data) of the instruction starting
// at pc. PUSH1..PUSH32 (0x60-0x7f) carry 1-32 bytes of immediate data; every other opcode occupies a single byte.
func instructionLength(bytecode []byte, pc int) (int, error) {
	op := bytecode[pc]
	if op < 0x60 || op > 0x7f {
		return 1, nil
	}

	pushSize := int(op) - 0x60 + 1
	length := pushSize + 1

	// Truncated PUSH data at end-of-code is padded defensively rather than rejected, so a partially-received or
	// deliberately truncated bytecode blob does not abort the whole attribution.
	if pc+length > len(bytecode) {
		length = len(bytecode) - pc
	}
	return length, nil
}

// PCToInstructionIndex returns the instruction index for a given program counter.
func (sm *SourceMap) PCToInstructionIndex(pc int) (int, error) {
	idx, ok := sm.pcToInstructionIndex[pc]
	if !ok {
		return 0, &UnknownProgramCounter{PC: pc, FQDN: sm.FQDN}
	}
	return idx, nil
}

// InstructionIndexToRange returns the source range recorded for a given instruction index.
func (sm *SourceMap) InstructionIndexToRange(index int) (SourceRange, error) {
	if index < 0 || index >= len(sm.instructionIndexToRange) {
		return SourceRange{}, &UnknownInstructionIndex{Index: index, FQDN: sm.FQDN}
	}
	return sm.instructionIndexToRange[index], nil
}

// PCToRange composes PCToInstructionIndex and InstructionIndexToRange to map a program counter directly to a
// source range.
func (sm *SourceMap) PCToRange(pc int) (SourceRange, error) {
	idx, err := sm.PCToInstructionIndex(pc)
	if err != nil {
		return SourceRange{}, err
	}
	return sm.InstructionIndexToRange(idx)
}

// InstructionCount returns the number of instructions this source map was parsed with, which equals the number of
// semicolon-separated source-map entries.
func (sm *SourceMap) InstructionCount() int {
	return len(sm.instructionIndexToRange)
}

// decodeHex decodes a hex string without a leading "0x" prefix into bytes.
func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("hex string has odd length %d", len(s))
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		b, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(b)
	}
	return out, nil
}

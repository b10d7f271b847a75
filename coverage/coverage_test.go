package coverage

import (
	"testing"

	"github.com/covtrace/covtrace/sourcemap"
	"github.com/stretchr/testify/require"
)

func fixtureReport(t *testing.T, table *SyntaxTable) *PathReport {
	t.Helper()
	report := newReport(map[string]*SyntaxTable{table.Path: table})
	pr, ok := report.Path(table.Path)
	require.True(t, ok)
	return pr
}

// TestAccumulateOpcodeDedupesLineWithinOneOpcode: one opcode whose range spans several bytes on the same line
// increments that line's counter by exactly one.
func TestAccumulateOpcodeDedupesLineWithinOneOpcode(t *testing.T) {
	table := buildFixtureTable(t)
	pr := fixtureReport(t, table)

	require.NoError(t, accumulateOpcode(table, pr, sourcemap.SourceRange{Start: 42, Length: 6}, "PUSH1", table.Path))
	require.Equal(t, 1, pr.L[1])
}

// TestAccumulateOpcodeTwoOpcodesSameLineCountsTwice: the line dedup is per-opcode, so two consecutive opcodes on
// the same line still count twice.
func TestAccumulateOpcodeTwoOpcodesSameLineCountsTwice(t *testing.T) {
	table := buildFixtureTable(t)
	pr := fixtureReport(t, table)

	require.NoError(t, accumulateOpcode(table, pr, sourcemap.SourceRange{Start: 39, Length: 1}, "PUSH1", table.Path))
	require.NoError(t, accumulateOpcode(table, pr, sourcemap.SourceRange{Start: 44, Length: 1}, "PUSH1", table.Path))
	require.Equal(t, 2, pr.L[1])
}

// TestAccumulateOpcodeBranchCountsOncePerOpcode covers the branch dedup rule: a single opcode's range counts its
// first branch feature once, and a second opcode over the same range counts it again.
func TestAccumulateOpcodeBranchCountsOncePerOpcode(t *testing.T) {
	table := buildFixtureTable(t)
	pr := fixtureReport(t, table)

	require.NoError(t, accumulateOpcode(table, pr, sourcemap.SourceRange{Start: 42, Length: 6}, "PUSH1", table.Path))
	require.Equal(t, []int{1}, pr.B[0])

	require.NoError(t, accumulateOpcode(table, pr, sourcemap.SourceRange{Start: 42, Length: 6}, "PUSH1", table.Path))
	require.Equal(t, []int{2}, pr.B[0], "a second opcode hitting the same branch still increments it")
}

// TestAccumulateOpcodeFunctionOnlyAtJumpdest covers the function dedup rule: functions are credited only at
// JUMPDEST, and only the first JUMPDEST within one opcode's range counts.
func TestAccumulateOpcodeFunctionOnlyAtJumpdest(t *testing.T) {
	table := buildFixtureTable(t)
	pr := fixtureReport(t, table)

	require.NoError(t, accumulateOpcode(table, pr, sourcemap.SourceRange{Start: 13, Length: 38}, "PUSH1", table.Path))
	require.Equal(t, 0, pr.F[0], "a non-JUMPDEST opcode must not credit the function")

	require.NoError(t, accumulateOpcode(table, pr, sourcemap.SourceRange{Start: 13, Length: 38}, "JUMPDEST", table.Path))
	require.Equal(t, 1, pr.F[0])

	require.NoError(t, accumulateOpcode(table, pr, sourcemap.SourceRange{Start: 13, Length: 38}, "JUMPDEST", table.Path))
	require.Equal(t, 2, pr.F[0], "a second JUMPDEST hit still increments the function counter")
}

// TestAccumulateOpcodeStatementCountsEveryOccurrence covers the no-dedup statement rule.
func TestAccumulateOpcodeStatementCountsEveryOccurrence(t *testing.T) {
	table := buildFixtureTable(t)
	pr := fixtureReport(t, table)

	for i := 0; i < 3; i++ {
		require.NoError(t, accumulateOpcode(table, pr, sourcemap.SourceRange{Start: 44, Length: 1}, "PUSH1", table.Path))
	}
	require.Equal(t, 3, pr.S[2])
}

func TestAccumulateOpcodeSkipsZeroLengthRange(t *testing.T) {
	table := buildFixtureTable(t)
	pr := fixtureReport(t, table)

	require.NoError(t, accumulateOpcode(table, pr, sourcemap.SourceRange{Start: 0, Length: 0}, "PUSH1", table.Path))
	for line, count := range pr.L {
		require.Zero(t, count, "line %d must remain unexecuted", line)
	}
}

// TestAccumulateOpcodeRejectsOutOfRangeOrdinarySource: a range running past an ordinary source's content means the
// source map and the indexed content disagree, which must surface rather than be silently truncated.
func TestAccumulateOpcodeRejectsOutOfRangeOrdinarySource(t *testing.T) {
	table := buildFixtureTable(t)
	pr := fixtureReport(t, table)

	err := accumulateOpcode(table, pr, sourcemap.SourceRange{Start: 40, Length: 100}, "PUSH1", table.Path)
	require.Error(t, err)
}

// TestAccumulateOpcodeToleratesGeneratedSourceOverrun: generated-source maps sometimes point past the synthetic
// source, so the same overrun on a "#" path counts the in-bounds prefix and stops without error.
func TestAccumulateOpcodeToleratesGeneratedSourceOverrun(t *testing.T) {
	_, features := buildOffsetPositionsAndLines("x")
	table := &SyntaxTable{
		Path:         "#utility.yul",
		Content:      "x",
		Features:     features,
		BranchMap:    make(map[int]BranchDescriptor),
		FnMap:        make(map[int]FunctionDescriptor),
		StatementMap: make(map[int]StatementDescriptor),
	}
	pr := fixtureReport(t, table)

	require.NoError(t, accumulateOpcode(table, pr, sourcemap.SourceRange{Start: 0, Length: 5}, "PUSH1", table.Path))
	require.Equal(t, 1, pr.L[1], "the in-bounds prefix is still counted")
}

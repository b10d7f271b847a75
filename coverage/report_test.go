package coverage

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewReportSeedsZeroedCountersPerPath(t *testing.T) {
	table := buildFixtureTable(t)
	syntax := map[string]*SyntaxTable{table.Path: table}

	report := newReport(syntax)
	pr, ok := report.Path(table.Path)
	require.True(t, ok)
	require.Equal(t, table.BranchMap, pr.BranchMap)

	// Every feature the syntax table describes gets a zero-valued counter up front, so unexecuted code shows up
	// in the output as 0 rather than being absent.
	require.Equal(t, []int{0}, pr.B[0])
	require.Equal(t, map[int]int{0: 0}, pr.F)
	require.Equal(t, map[int]int{0: 0, 1: 0, 2: 0}, pr.S)
	require.Equal(t, map[int]int{1: 0}, pr.L, "the single-line fixture has exactly one significant line")
}

func TestLinesHitReportsUnexecutedSignificantLines(t *testing.T) {
	table := buildFixtureTable(t)
	report := newReport(map[string]*SyntaxTable{table.Path: table})

	hit, total := report.LinesHit()
	require.Equal(t, 0, hit)
	require.Equal(t, 1, total, "an untraced report still totals its significant lines")
}

func TestReportMarshalJSONUsesIstanbulSchema(t *testing.T) {
	table := buildFixtureTable(t)
	report := newReport(map[string]*SyntaxTable{table.Path: table})
	pr, _ := report.Path(table.Path)
	pr.L[1] = 5
	pr.B[0] = []int{1}
	pr.F[0] = 2
	pr.S[0] = 3

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	file, ok := decoded[table.Path]
	require.True(t, ok)
	require.Contains(t, file, "branchMap")
	require.Contains(t, file, "fnMap")
	require.Contains(t, file, "statementMap")
	require.Contains(t, file, "l")
	require.Contains(t, file, "b")
	require.Contains(t, file, "f")
	require.Contains(t, file, "s")

	l := file["l"].(map[string]interface{})
	require.Equal(t, float64(5), l["1"])
}

func TestReportFilteredDropsGeneratedAndDuplicateSources(t *testing.T) {
	table := buildFixtureTable(t)
	generated := &SyntaxTable{Path: "#utility.yul", BranchMap: map[int]BranchDescriptor{}, FnMap: map[int]FunctionDescriptor{}, StatementMap: map[int]StatementDescriptor{}}
	duplicate := &SyntaxTable{Path: "Fixture.sol:1", BranchMap: map[int]BranchDescriptor{}, FnMap: map[int]FunctionDescriptor{}, StatementMap: map[int]StatementDescriptor{}}

	report := newReport(map[string]*SyntaxTable{
		table.Path:     table,
		generated.Path: generated,
		duplicate.Path: duplicate,
	})

	filtered := report.Filtered()
	paths := filtered.Paths()
	require.Len(t, paths, 1)
	require.Equal(t, table.Path, paths[0])
}

func TestReportFilteredOnlyKeepsSignificantLines(t *testing.T) {
	table := buildFixtureTable(t)
	report := newReport(map[string]*SyntaxTable{table.Path: table})
	pr, _ := report.Path(table.Path)
	// Line 1 carries the function/branch/statement features from the fixture; record a hit on it plus a bogus
	// line with no installed feature.
	pr.L[1] = 4
	pr.L[99] = 1

	filtered := report.Filtered()
	fpr, ok := filtered.Path(table.Path)
	require.True(t, ok)
	require.Equal(t, 4, fpr.L[1])
	_, hasBogusLine := fpr.L[99]
	require.False(t, hasBogusLine)
}

func TestReportFilteredKeepsBranchAlternativeLineNotDeclarationLine(t *testing.T) {
	// A multi-line if/else: the branch descriptor's own Line (3, the "if") differs from both alternatives' start
	// lines (4 and 6), which is where installBranch actually installs the Branch feature.
	table := &SyntaxTable{
		Path: "MultiLine.sol",
		BranchMap: map[int]BranchDescriptor{
			0: {
				Line: 3,
				Type: "if",
				Locations: []LocationRange{
					{Start: Position{Line: 4}},
					{Start: Position{Line: 6}},
				},
			},
		},
		FnMap:        map[int]FunctionDescriptor{},
		StatementMap: map[int]StatementDescriptor{},
	}

	report := newReport(map[string]*SyntaxTable{table.Path: table})
	pr, _ := report.Path(table.Path)
	pr.L[4] = 1
	pr.L[6] = 0
	pr.L[3] = 9 // the "if" line itself carries no installed feature and must not survive filtering

	filtered := report.Filtered()
	fpr, ok := filtered.Path(table.Path)
	require.True(t, ok)

	_, hasIfLine := fpr.L[3]
	require.False(t, hasIfLine, "the if statement's own line has no significant feature and must be dropped")
	require.Equal(t, 1, fpr.L[4])
	require.Equal(t, 0, fpr.L[6])
}

func TestReportLinesHit(t *testing.T) {
	table := buildFixtureTable(t)
	report := newReport(map[string]*SyntaxTable{table.Path: table})
	pr, _ := report.Path(table.Path)
	pr.L[1] = 3
	pr.L[2] = 0
	pr.L[3] = 5

	hit, total := report.LinesHit()
	require.Equal(t, 2, hit)
	require.Equal(t, 3, total)
}

func TestWriteLCOVEmitsRecordPerPath(t *testing.T) {
	table := buildFixtureTable(t)
	report := newReport(map[string]*SyntaxTable{table.Path: table})
	pr, _ := report.Path(table.Path)
	pr.L[1] = 2
	pr.F[0] = 1

	var buf strings.Builder
	require.NoError(t, report.WriteLCOV(&buf))

	out := buf.String()
	require.Contains(t, out, "SF:Fixture.sol")
	require.Contains(t, out, "DA:1,2")
	require.Contains(t, out, "FN:1,f")
	require.Contains(t, out, "FNDA:1,f")
	require.Contains(t, out, "end_of_record")
}

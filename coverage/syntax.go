// Package coverage builds per-source syntax tables from compiler ASTs and turns tagged trace logs into Istanbul-
// schema coverage reports.
package coverage

import (
	"fmt"
	"regexp"

	"github.com/Masterminds/semver"
)

// solcVersionPattern extracts the bare major.minor.patch triple from a solc version string, which in practice
// carries build metadata semver's own parser may reject ("0.8.19+commit.7dd6d404.Linux.g++").
var solcVersionPattern = regexp.MustCompile(`\d+\.\d+\.\d+`)

// predatesYulIR reports whether v is older than 0.5.0, the earliest solc release that can emit Yul-IR AST nodes
// (https://docs.soliditylang.org/en/latest/ir-breaking-changes.html). walkNode already recognizes the common Yul
// node kinds; this gate only changes the diagnostic issued for a Yul-prefixed node kind it does NOT recognize (a
// newer solc release's yet-unmodeled Yul construct, or an internal inconsistency) when it's known the reporting
// compiler predates Yul-IR entirely.
func predatesYulIR(v *semver.Version) bool {
	if v.Major() > 0 {
		return false
	}
	return v.Minor() < 5
}

// UnexpectedYulNodeWarning is emitted in place of the generic UnknownAstNodeWarning when a Yul-IR-only node kind
// is encountered against a compiler version that predates Yul-IR codegen: the node itself is still tolerated (no
// children walked), but the diagnostic calls out the version mismatch rather than reporting it as a plain
// unrecognized node kind.
type UnexpectedYulNodeWarning struct {
	Path            string
	NodeType        string
	CompilerVersion string
}

func (w *UnexpectedYulNodeWarning) Error() string {
	return fmt.Sprintf("%s: encountered Yul-IR node %q from a compiler reporting version %s, which predates Yul-IR codegen",
		w.Path, w.NodeType, w.CompilerVersion)
}

// ParseCompilerVersion parses the solc version string an artifacts.BuildInfo records (e.g. "0.8.19+commit.7dd6d404")
// into a semver.Version usable for gating version-sensitive AST handling. An empty or unparseable string returns a
// nil version, which callers treat as "unknown, don't gate."
func ParseCompilerVersion(raw string) *semver.Version {
	bare := solcVersionPattern.FindString(raw)
	if bare == "" {
		return nil
	}
	v, err := semver.NewVersion(bare)
	if err != nil {
		return nil
	}
	return v
}

// Position is a 1-based line, 0-based column location within a source file.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// LocationRange is a half-open [Start, End) region expressed as line/column positions, used by branch and function
// map entries in the output report.
type LocationRange struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// FeatureKind discriminates the four coverage feature variants a source byte can carry.
type FeatureKind int

const (
	FeatureLine FeatureKind = iota
	FeatureBranch
	FeatureFunction
	FeatureStatement
)

// Feature is one coverage-relevant fact about a source byte. Every byte's feature list begins with exactly one
// FeatureLine feature (installed during offset->position layout); branch/function/statement features are appended
// by the AST walk.
type Feature struct {
	Kind FeatureKind

	// Line is set for FeatureLine.
	Line int

	// BranchID/AltIndex are set for FeatureBranch.
	BranchID int
	AltIndex int

	// FunctionID is set for FeatureFunction.
	FunctionID int

	// StatementID is set for FeatureStatement.
	StatementID int
}

// BranchDescriptor describes one branch construct (if/conditional/switch) for the output branchMap.
type BranchDescriptor struct {
	Line      int
	Type      string
	Locations []LocationRange
}

// FunctionDescriptor describes one function/modifier definition for the output fnMap.
type FunctionDescriptor struct {
	Name string
	Line int
	Loc  LocationRange
	Skip bool
}

// StatementDescriptor describes one statement for the output statementMap.
type StatementDescriptor struct {
	Start Position
	End   Position
	Skip  bool
}

// SyntaxTable is the per-source product of walking one compiler source's AST: a feature list per byte offset, plus
// the branch/function/statement descriptor maps those features reference.
type SyntaxTable struct {
	Path    string
	Content string

	// Features[i] lists every feature installed at source byte i. Index 0 is always a FeatureLine feature.
	Features [][]Feature

	BranchMap    map[int]BranchDescriptor
	FnMap        map[int]FunctionDescriptor
	StatementMap map[int]StatementDescriptor

	nextBranchID    int
	nextFunctionID  int
	nextStatementID int
}

// buildOffsetPositionsAndLines walks content byte-by-byte, producing offsetToPosition and seeding Features[i] with
// the line feature for every byte. Line numbers are 1-based and advance after a '\n' byte; columns are 0-based.
func buildOffsetPositionsAndLines(content string) (positions []Position, features [][]Feature) {
	positions = make([]Position, len(content))
	features = make([][]Feature, len(content))

	line, column := 1, 0
	for i := 0; i < len(content); i++ {
		positions[i] = Position{Line: line, Column: column}
		features[i] = []Feature{{Kind: FeatureLine, Line: line}}

		if content[i] == '\n' {
			line++
			column = 0
		} else {
			column++
		}
	}
	return positions, features
}

func (t *SyntaxTable) allocBranchID() int {
	id := t.nextBranchID
	t.nextBranchID++
	return id
}

func (t *SyntaxTable) allocFunctionID() int {
	id := t.nextFunctionID
	t.nextFunctionID++
	return id
}

func (t *SyntaxTable) allocStatementID() int {
	id := t.nextStatementID
	t.nextStatementID++
	return id
}

// installFeature appends a feature at byte offset start, provided the range it describes has nonzero length; a
// zero-length node installs no feature.
func (t *SyntaxTable) installFeature(start int, length int, feature Feature) {
	if length <= 0 || start < 0 || start >= len(t.Features) {
		return
	}
	t.Features[start] = append(t.Features[start], feature)
}

func (t *SyntaxTable) positionOf(offset int, offsetToPosition []Position) Position {
	if offset < 0 || offset >= len(offsetToPosition) {
		return Position{}
	}
	return offsetToPosition[offset]
}

func (t *SyntaxTable) locationRange(start int, length int, offsetToPosition []Position) LocationRange {
	return LocationRange{
		Start: t.positionOf(start, offsetToPosition),
		End:   t.positionOf(start+length, offsetToPosition),
	}
}

func (t *SyntaxTable) lineOf(offset int, offsetToPosition []Position) int {
	return t.positionOf(offset, offsetToPosition).Line
}

// UnknownAstNodeWarning is emitted (non-fatally) for an AST node kind the walker has no handling entry for.
type UnknownAstNodeWarning struct {
	Path     string
	NodeType string
}

func (w *UnknownAstNodeWarning) Error() string {
	return fmt.Sprintf("%s: unrecognized AST node type %q, treated as having no children", w.Path, w.NodeType)
}

package coverage

import (
	"strings"
	"sync"

	"github.com/covtrace/covtrace/sourcemap"
	"github.com/covtrace/covtrace/sources"
	"github.com/covtrace/covtrace/trace"
	"github.com/pkg/errors"
)

// Coverage ties a Sources registry to the syntax tables built from it, and accumulates tagged trace logs into
// Report counters under per-opcode deduplication rules (see accumulateOpcode).
type Coverage struct {
	sources *sources.Sources

	mu     sync.Mutex
	syntax map[string]*SyntaxTable
}

// New constructs a Coverage bound to a Sources registry. Call Cover before Report.
func New(src *sources.Sources) *Coverage {
	return &Coverage{sources: src, syntax: make(map[string]*SyntaxTable)}
}

// SourceContents returns the exact source text for every path Cover has built a syntax table for, for callers
// (the HTML report writer) that need to render source lines alongside hit counts.
func (c *Coverage) SourceContents() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	contents := make(map[string]string, len(c.syntax))
	for path, table := range c.syntax {
		contents[path] = table.Content
	}
	return contents
}

// Cover builds a SyntaxTable for every path currently known to Sources, by walking each source's AST. It is safe
// to call again after further Sources.Crawl calls; existing syntax tables are left untouched and only new paths
// are added.
func (c *Coverage) Cover() []error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var diagnostics []error
	for _, path := range c.sources.Paths() {
		if _, ok := c.syntax[path]; ok {
			continue
		}

		cs, ok := c.sources.Source(path)
		if !ok {
			continue
		}

		offsetToPosition, features := buildOffsetPositionsAndLines(cs.Content)
		table := &SyntaxTable{
			Path:         path,
			Content:      cs.Content,
			Features:     features,
			BranchMap:    make(map[int]BranchDescriptor),
			FnMap:        make(map[int]FunctionDescriptor),
			StatementMap: make(map[int]StatementDescriptor),
		}

		root := decodeNode(cs.AST)
		compilerVersion := ParseCompilerVersion(cs.CompilerVersion)
		diagnostics = append(diagnostics, walkAST(table, offsetToPosition, root, path, compilerVersion)...)

		c.syntax[path] = table
	}
	return diagnostics
}

// Report converts a set of tagged logs into report counters, accumulating into acc if non-nil or allocating a
// fresh zero-initialized Report otherwise.
func (c *Coverage) Report(logs []trace.TaggedLog, acc *Report) (*Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	report := acc
	if report == nil {
		report = newReport(c.syntax)
	}

	for _, log := range logs {
		if err := c.applyLog(report, log); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (c *Coverage) applyLog(report *Report, log trace.TaggedLog) error {
	bytecode := log.Bytecode
	if bytecode == "" {
		resolved, err := c.sources.AddressToBytecode(log.Address)
		if err != nil {
			return err
		}
		bytecode = resolved
	}

	sm, err := c.sources.BytecodeToSourceMap(bytecode)
	if err != nil {
		return err
	}

	rng, err := sm.PCToRange(int(log.PC))
	if err != nil {
		return err
	}
	if rng.Length == 0 {
		return nil
	}

	path, err := c.sources.CompilerSourcePath(bytecode, rng.SourceIndex)
	if err != nil {
		return err
	}

	table, ok := c.syntax[path]
	if !ok {
		return nil
	}
	pathReport := report.paths[path]
	if pathReport == nil {
		return nil
	}

	return accumulateOpcode(table, pathReport, rng, log.Op, path)
}

// accumulateOpcode applies one opcode's covered byte range to a path's report counters, enforcing the four
// per-opcode deduplication rules: the first distinct line counts once, the first branch counts once, functions
// only count at JUMPDEST and only once, statements count every occurrence. The report must have been seeded by
// newReport, so every branch/function/statement id a feature references already has a counter.
func accumulateOpcode(table *SyntaxTable, report *PathReport, rng sourcemap.SourceRange, op string, path string) error {
	lastLine := -1
	branchCounted := false
	functionCounted := false

	for i := rng.Start; i < rng.Start+rng.Length; i++ {
		if i < 0 || i >= len(table.Features) {
			// Generated-source maps sometimes point past the synthetic source; tolerate that there. For an
			// ordinary source the map and the indexed content disagree, which the caller should hear about.
			if strings.HasPrefix(path, "#") {
				return nil
			}
			return errors.Errorf("source range [%d, %d) runs past %s (%d bytes)", rng.Start, rng.End(), path, len(table.Features))
		}

		for _, feature := range table.Features[i] {
			switch feature.Kind {
			case FeatureLine:
				if feature.Line != lastLine {
					report.L[feature.Line]++
					lastLine = feature.Line
				}
			case FeatureBranch:
				if !branchCounted {
					report.B[feature.BranchID][feature.AltIndex]++
					branchCounted = true
				}
			case FeatureFunction:
				if op == "JUMPDEST" && !functionCounted {
					report.F[feature.FunctionID]++
					functionCounted = true
				}
			case FeatureStatement:
				report.S[feature.StatementID]++
			}
		}
	}
	return nil
}

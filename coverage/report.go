package coverage

import "strings"

// PathReport is one source path's accumulated hit counters, mirroring the Istanbul coverage schema: a line-number
// counter map, a per-branch per-alternative counter slice, a per-function counter map, and a per-statement
// counter map, alongside the descriptor maps needed to interpret them.
type PathReport struct {
	Path string

	BranchMap    map[int]BranchDescriptor
	FnMap        map[int]FunctionDescriptor
	StatementMap map[int]StatementDescriptor

	L map[int]int
	B map[int][]int
	F map[int]int
	S map[int]int
}

// Report is the full accumulated coverage result, keyed by source path. Counters are monotone: report never
// decreases any counter, even when Coverage.Report is invoked repeatedly with the same logs.
type Report struct {
	paths map[string]*PathReport
}

// newReport allocates a report covering every path currently in syntax, with a zero-valued counter for every
// statement, function, branch alternative, and significant line the path's syntax table describes. Pre-seeding the
// counters is what makes unexecuted code visible: a consumer dividing hit entries by total entries only sees
// uncovered features if they are present with a count of zero, not absent.
func newReport(syntax map[string]*SyntaxTable) *Report {
	report := &Report{paths: make(map[string]*PathReport, len(syntax))}
	for path, table := range syntax {
		pr := &PathReport{
			Path:         path,
			BranchMap:    table.BranchMap,
			FnMap:        table.FnMap,
			StatementMap: table.StatementMap,
			L:            make(map[int]int),
			B:            make(map[int][]int, len(table.BranchMap)),
			F:            make(map[int]int, len(table.FnMap)),
			S:            make(map[int]int, len(table.StatementMap)),
		}
		for id, branch := range table.BranchMap {
			pr.B[id] = make([]int, len(branch.Locations))
		}
		for id := range table.FnMap {
			pr.F[id] = 0
		}
		for id := range table.StatementMap {
			pr.S[id] = 0
		}
		for line := range significantLines(pr) {
			pr.L[line] = 0
		}
		report.paths[path] = pr
	}
	return report
}

// Paths returns every source path this report covers, in no particular order.
func (r *Report) Paths() []string {
	paths := make([]string, 0, len(r.paths))
	for path := range r.paths {
		paths = append(paths, path)
	}
	return paths
}

// Path returns the accumulated counters for one source path.
func (r *Report) Path(path string) (*PathReport, bool) {
	p, ok := r.paths[path]
	return p, ok
}

// LinesHit totals, across every path in the report, how many L entries were hit at least once and how many exist
// at all, for a console summary line (e.g. "123/456 lines covered"). Callers typically compute this on a Filtered
// report so generated/disambiguated paths and insignificant lines don't skew the ratio.
func (r *Report) LinesHit() (hit int, total int) {
	for _, pr := range r.paths {
		for _, count := range pr.L {
			total++
			if count > 0 {
				hit++
			}
		}
	}
	return hit, total
}

// Filtered returns a shallow copy of r that omits generated sources (paths starting with "#") and disambiguated
// duplicate sources (paths containing ":"), and that only retains l[line] entries for lines with at least one
// significant feature (a branch, a non-skip function, or a non-skip statement), so that declarations and comments
// do not appear as "uncovered".
func (r *Report) Filtered() *Report {
	filtered := &Report{paths: make(map[string]*PathReport)}

	for path, pr := range r.paths {
		if strings.HasPrefix(path, "#") || strings.Contains(path, ":") {
			continue
		}

		significantLines := significantLines(pr)
		l := make(map[int]int, len(pr.L))
		for line, count := range pr.L {
			if significantLines[line] {
				l[line] = count
			}
		}

		filtered.paths[path] = &PathReport{
			Path:         pr.Path,
			BranchMap:    pr.BranchMap,
			FnMap:        pr.FnMap,
			StatementMap: pr.StatementMap,
			L:            l,
			B:            pr.B,
			F:            pr.F,
			S:            pr.S,
		}
	}
	return filtered
}

// significantLines determines, for one path's report, which line numbers have at least one non-skip function or
// statement, or any branch, attached to them. Line number is derived from each descriptor's recorded Line/Start,
// except for branches: installBranch (ast.go) installs the Branch feature at each alternative's start byte, not
// at the branch node's own start, so a branch's significant lines are its alternatives' start lines, not its own.
func significantLines(pr *PathReport) map[int]bool {
	lines := make(map[int]bool)
	for _, branch := range pr.BranchMap {
		for _, loc := range branch.Locations {
			lines[loc.Start.Line] = true
		}
	}
	for _, fn := range pr.FnMap {
		if !fn.Skip {
			lines[fn.Line] = true
		}
	}
	for _, stmt := range pr.StatementMap {
		if !stmt.Skip {
			lines[stmt.Start.Line] = true
		}
	}
	return lines
}

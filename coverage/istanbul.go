package coverage

import (
	"encoding/json"
	"strconv"
)

// istanbulReport is the on-disk shape of a Report: one entry per source path, keyed by path, matching the
// Istanbul coverage JSON schema.
type istanbulReport map[string]istanbulFileReport

type istanbulFileReport struct {
	Path         string                       `json:"path"`
	BranchMap    map[string]istanbulBranch    `json:"branchMap"`
	FnMap        map[string]istanbulFunction  `json:"fnMap"`
	StatementMap map[string]istanbulStatement `json:"statementMap"`
	L            map[string]int               `json:"l"`
	B            map[string][]int             `json:"b"`
	F            map[string]int               `json:"f"`
	S            map[string]int               `json:"s"`
}

type istanbulBranch struct {
	Line      int             `json:"line"`
	Type      string          `json:"type"`
	Locations []LocationRange `json:"locations"`
}

type istanbulFunction struct {
	Name string        `json:"name"`
	Line int           `json:"line"`
	Loc  LocationRange `json:"loc"`
	Skip bool          `json:"skip,omitempty"`
}

type istanbulStatement struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
	Skip  bool     `json:"skip,omitempty"`
}

// MarshalJSON renders the report in the Istanbul coverage JSON schema: a top-level object keyed by
// source path, each value carrying branchMap/fnMap/statementMap descriptors alongside l/b/f/s hit counters.
func (r *Report) MarshalJSON() ([]byte, error) {
	out := make(istanbulReport, len(r.paths))
	for path, pr := range r.paths {
		out[path] = toIstanbulFileReport(pr)
	}
	return json.Marshal(out)
}

func toIstanbulFileReport(pr *PathReport) istanbulFileReport {
	file := istanbulFileReport{
		Path:         pr.Path,
		BranchMap:    make(map[string]istanbulBranch, len(pr.BranchMap)),
		FnMap:        make(map[string]istanbulFunction, len(pr.FnMap)),
		StatementMap: make(map[string]istanbulStatement, len(pr.StatementMap)),
		L:            make(map[string]int, len(pr.L)),
		B:            make(map[string][]int, len(pr.B)),
		F:            make(map[string]int, len(pr.F)),
		S:            make(map[string]int, len(pr.S)),
	}

	for id, branch := range pr.BranchMap {
		file.BranchMap[intKey(id)] = istanbulBranch{Line: branch.Line, Type: branch.Type, Locations: branch.Locations}
	}
	for id, fn := range pr.FnMap {
		file.FnMap[intKey(id)] = istanbulFunction{Name: fn.Name, Line: fn.Line, Loc: fn.Loc, Skip: fn.Skip}
	}
	for id, stmt := range pr.StatementMap {
		file.StatementMap[intKey(id)] = istanbulStatement{Start: stmt.Start, End: stmt.End, Skip: stmt.Skip}
	}
	for line, count := range pr.L {
		file.L[intKey(line)] = count
	}
	for id, counts := range pr.B {
		file.B[intKey(id)] = counts
	}
	for id, count := range pr.F {
		file.F[intKey(id)] = count
	}
	for id, count := range pr.S {
		file.S[intKey(id)] = count
	}
	return file
}

// intKey renders an int as a decimal string; JSON object keys must be strings regardless of the Go map's key type.
func intKey(id int) string {
	return strconv.Itoa(id)
}

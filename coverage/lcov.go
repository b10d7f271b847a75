package coverage

import (
	"fmt"
	"io"
	"sort"
)

// WriteLCOV renders the report in the LCOV text format (the geninfo tracefile format), supplementing the Istanbul
// JSON export with a format consumable by editor/CI LCOV tooling. One TN/SF/DA.../FN.../FNDA.../end_of_record block
// is emitted per source path, sorted by path for deterministic output.
func (r *Report) WriteLCOV(w io.Writer) error {
	paths := r.Paths()
	sort.Strings(paths)

	if _, err := io.WriteString(w, "TN:\n"); err != nil {
		return err
	}

	for _, path := range paths {
		pr := r.paths[path]
		if err := writeLCOVFile(w, pr); err != nil {
			return err
		}
	}
	return nil
}

func writeLCOVFile(w io.Writer, pr *PathReport) error {
	if _, err := fmt.Fprintf(w, "SF:%s\n", pr.Path); err != nil {
		return err
	}

	lines := make([]int, 0, len(pr.L))
	for line := range pr.L {
		lines = append(lines, line)
	}
	sort.Ints(lines)

	for _, line := range lines {
		// DA:<line number>,<execution count>
		if _, err := fmt.Fprintf(w, "DA:%d,%d\n", line, pr.L[line]); err != nil {
			return err
		}
	}

	functionIDs := make([]int, 0, len(pr.FnMap))
	for id := range pr.FnMap {
		functionIDs = append(functionIDs, id)
	}
	sort.Ints(functionIDs)

	for _, id := range functionIDs {
		fn := pr.FnMap[id]
		if fn.Skip || fn.Name == "" {
			continue
		}
		hit := pr.F[id]
		// FN:<line number>,<function name>
		if _, err := fmt.Fprintf(w, "FN:%d,%s\n", fn.Line, fn.Name); err != nil {
			return err
		}
		// FNDA:<execution count>,<function name>
		if _, err := fmt.Fprintf(w, "FNDA:%d,%s\n", hit, fn.Name); err != nil {
			return err
		}
	}

	_, err := io.WriteString(w, "end_of_record\n")
	return err
}

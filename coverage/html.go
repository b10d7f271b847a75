package coverage

import (
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/covtrace/covtrace/utils"
)

//go:embed report.gohtml
var htmlReportTemplate []byte

// htmlFile is the per-source view model handed to the report template: every source line alongside its hit count,
// where a nil Count means the line carries no coverable feature.
type htmlFile struct {
	Path  string
	Lines []htmlLine
}

type htmlLine struct {
	Number  int
	Text    string
	Covered bool
	Count   *int
}

// WriteHTML renders a human-browsable coverage report to outputPath: one source listing per path, each line
// colored by whether it was covered, with the line's hit count annotated in the margin.
func (r *Report) WriteHTML(outputPath string, sourceContents map[string]string) error {
	funcs := template.FuncMap{
		"percentage": func(covered, total int) string {
			if total == 0 {
				return "100.0"
			}
			return fmt.Sprintf("%.1f", float64(covered)/float64(total)*100)
		},
	}

	tmpl, err := template.New("report.gohtml").Funcs(funcs).Parse(string(htmlReportTemplate))
	if err != nil {
		return fmt.Errorf("could not parse coverage report template: %w", err)
	}

	if err := utils.MakeDirectory(filepath.Dir(outputPath)); err != nil {
		return err
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("could not create coverage report file: %w", err)
	}
	defer file.Close()

	view := r.htmlView(sourceContents)
	return tmpl.Execute(file, view)
}

type htmlView struct {
	Files        []htmlFile
	LinesTotal   int
	LinesCovered int
}

func (r *Report) htmlView(sourceContents map[string]string) htmlView {
	filtered := r.Filtered()

	paths := filtered.Paths()
	sort.Strings(paths)

	view := htmlView{Files: make([]htmlFile, 0, len(paths))}

	for _, path := range paths {
		pr := filtered.paths[path]
		content := sourceContents[path]
		lines := strings.Split(content, "\n")

		hf := htmlFile{Path: path, Lines: make([]htmlLine, len(lines))}
		for i, text := range lines {
			lineNo := i + 1
			hl := htmlLine{Number: lineNo, Text: text}
			if count, ok := pr.L[lineNo]; ok {
				c := count
				hl.Count = &c
				hl.Covered = count > 0
				view.LinesTotal++
				if count > 0 {
					view.LinesCovered++
				}
			}
			hf.Lines[i] = hl
		}
		view.Files = append(view.Files, hf)
	}
	return view
}

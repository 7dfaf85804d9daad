package worker

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Summary is the outcome of a run. Every skipped, conflicting, or failed
// item is accounted for.
type Summary struct {
	Organized int
	Converted int
	Skipped   int
	Extras    int
	Conflicts int
	Failures  []Failure
}

// Failure records one item that could not be processed.
type Failure struct {
	Path string
	Err  error
}

func (s *Summary) fail(path string, err error) {
	s.Failures = append(s.Failures, Failure{Path: path, Err: err})
}

func (s *Summary) merge(other *Summary) {
	s.Organized += other.Organized
	s.Converted += other.Converted
	s.Skipped += other.Skipped
	s.Extras += other.Extras
	s.Conflicts += other.Conflicts
	s.Failures = append(s.Failures, other.Failures...)
}

// Render writes the run summary as a table, followed by one row per failure.
func (s *Summary) Render(w io.Writer) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle("Run Summary")
	tw.AppendRow(table.Row{"Organized", s.Organized})
	tw.AppendRow(table.Row{"Converted", s.Converted})
	tw.AppendRow(table.Row{"Skipped", s.Skipped})
	tw.AppendRow(table.Row{"Extras", s.Extras})
	tw.AppendRow(table.Row{"Conflicts", s.Conflicts})
	tw.AppendRow(table.Row{"Failures", len(s.Failures)})
	tw.Render()

	if len(s.Failures) == 0 {
		return
	}

	ft := table.NewWriter()
	ft.SetOutputMirror(w)
	ft.SetTitle("Failures")
	ft.AppendHeader(table.Row{"Path", "Error"})
	for _, failure := range s.Failures {
		ft.AppendRow(table.Row{failure.Path, failure.Err.Error()})
	}
	ft.Render()
}

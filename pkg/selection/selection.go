package selection

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/luccast/runarr/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// ErrNoSelection is returned when the user declines every candidate.
var ErrNoSelection = errors.New("no selection made")

// Selector resolves a suspended series resolution by choosing one candidate.
// Choose returns the index into candidates.
type Selector interface {
	Choose(ctx context.Context, query string, candidates []*models.CatalogSeries) (int, error)
}

// TerminalSelector prompts interactively: it renders the candidates as a
// table and reads a 1-based choice, where 0 skips the folder.
type TerminalSelector struct {
	In  io.Reader
	Out io.Writer
}

func (s *TerminalSelector) Choose(ctx context.Context, query string, candidates []*models.CatalogSeries) (int, error) {
	tw := table.NewWriter()
	tw.SetOutputMirror(s.Out)
	tw.SetTitle("Matches for %q", query)
	tw.AppendHeader(table.Row{"#", "Series", "Year", "Issues", "Link"})
	for i, cand := range candidates {
		tw.AppendRow(table.Row{i + 1, cand.Name, cand.StartYear, cand.IssueCount, cand.SiteURL})
	}
	tw.Render()

	fmt.Fprintf(s.Out, "Select series [1-%d, 0 to skip]: ", len(candidates))

	scanner := bufio.NewScanner(s.In)
	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		choice, err := strconv.Atoi(input)
		if err != nil || choice < 0 || choice > len(candidates) {
			fmt.Fprintf(s.Out, "Enter a number between 0 and %d: ", len(candidates))
			continue
		}
		if choice == 0 {
			return 0, errors.WithStack(ErrNoSelection)
		}
		return choice - 1, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, errors.WithStack(err)
	}
	return 0, errors.WithStack(ErrNoSelection)
}

// AutoSelector always takes the top-ranked candidate and logs the decision;
// used with the --yes flag.
type AutoSelector struct{}

func (s *AutoSelector) Choose(ctx context.Context, query string, candidates []*models.CatalogSeries) (int, error) {
	if len(candidates) == 0 {
		return 0, errors.WithStack(ErrNoSelection)
	}

	log := logger.FromContext(ctx)
	log.Info("auto-selected series", logger.Data{
		"query":  query,
		"series": candidates[0].Name,
		"year":   candidates[0].StartYear,
		"id":     candidates[0].ID,
	})
	return 0, nil
}

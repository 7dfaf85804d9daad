package seriesjson

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/luccast/runarr/pkg/htmlutil"
	"github.com/luccast/runarr/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
)

const (
	Filename        = "series.json"
	documentVersion = "1.0.3"

	bookTypePrint   = "Print"
	bookTypeOneShot = "One-Shot"

	statusContinuing = "Continuing"
	statusEnded      = "Ended"

	// A series is still Continuing when its latest issue is at most this old.
	continuingWindow = 90 * 24 * time.Hour
)

// Document is the series.json sidecar written next to organized issues.
type Document struct {
	Version  string   `json:"version"`
	Metadata Metadata `json:"metadata"`
}

type Metadata struct {
	Type                 string `json:"type"`
	Publisher            string `json:"publisher,omitempty"`
	Imprint              string `json:"imprint,omitempty"`
	Name                 string `json:"name"`
	ComicID              int    `json:"comicid"`
	Year                 int    `json:"year"`
	DescriptionText      string `json:"description_text,omitempty"`
	DescriptionFormatted string `json:"description_formatted,omitempty"`
	ComicImage           string `json:"comic_image,omitempty"`
	TotalIssues          int    `json:"total_issues"`
	PublicationRun       string `json:"publication_run"`
	BookType             string `json:"booktype"`
	Status               string `json:"status"`
}

// Generate builds the sidecar document for a pinned series. lastCover is the
// cover date of the most recent issue, zero when unknown.
func Generate(series *models.CatalogSeries, lastCover models.CoverDate, now time.Time) *Document {
	bookType := bookTypePrint
	if series.IssueCount == 1 {
		bookType = bookTypeOneShot
	}

	status := statusEnded
	if continuing(series, lastCover, now) {
		status = statusContinuing
	}

	return &Document{
		Version: documentVersion,
		Metadata: Metadata{
			Type:                 "comicSeries",
			Publisher:            series.Publisher,
			Name:                 series.Name,
			ComicID:              series.ID,
			Year:                 series.StartYear,
			DescriptionText:      htmlutil.StripTags(series.Description),
			DescriptionFormatted: series.Description,
			ComicImage:           series.ImageURL,
			TotalIssues:          series.IssueCount,
			PublicationRun:       publicationRun(series, lastCover, status),
			BookType:             bookType,
			Status:               status,
		},
	}
}

// continuing reports whether the series should be marked Continuing: no
// issues published yet, or the latest cover date is recent enough.
func continuing(series *models.CatalogSeries, lastCover models.CoverDate, now time.Time) bool {
	if series.IssueCount == 0 {
		return true
	}
	if lastCover.IsZero() {
		return true
	}

	month := lastCover.Month
	if month == 0 {
		month = 1
	}
	day := lastCover.Day
	if day == 0 {
		day = 1
	}
	last := time.Date(lastCover.Year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return now.Sub(last) < continuingWindow
}

func publicationRun(series *models.CatalogSeries, lastCover models.CoverDate, status string) string {
	start := "Unknown"
	if series.StartYear != 0 {
		start = fmt.Sprintf("%d", series.StartYear)
	}

	end := "Present"
	if status == statusEnded && lastCover.Year != 0 {
		if lastCover.Month != 0 {
			end = fmt.Sprintf("%s %d", time.Month(lastCover.Month), lastCover.Year)
		} else {
			end = fmt.Sprintf("%d", lastCover.Year)
		}
	}

	return start + " - " + end
}

// Write stores the document as series.json in dir. In dry-run mode the write
// is logged and skipped.
func Write(ctx context.Context, dir string, doc *Document, dryRun bool) error {
	log := logger.FromContext(ctx)
	path := filepath.Join(dir, Filename)

	if dryRun {
		log.Info("would write series sidecar", logger.Data{"path": path, "series": doc.Metadata.Name})
		return nil
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WithStack(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WithStack(err)
	}

	log.Info("wrote series sidecar", logger.Data{"path": path, "series": doc.Metadata.Name})
	return nil
}

// Load reads an existing sidecar from dir. Returns nil without error when the
// file does not exist; a pinned sidecar lets a folder skip series resolution
// entirely.
func Load(dir string) (*Document, error) {
	data, err := os.ReadFile(filepath.Join(dir, Filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}

	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, errors.Wrap(err, "parse series.json")
	}
	return doc, nil
}

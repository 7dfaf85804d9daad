package models

// CoverDate is the publication date printed on the cover. Month and Day may
// be zero when the catalog only knows the year.
type CoverDate struct {
	Year  int `json:"year"`
	Month int `json:"month,omitempty"`
	Day   int `json:"day,omitempty"`
}

// IsZero reports whether no date component is known.
func (d CoverDate) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// CatalogIssue is a canonical issue record from the catalog.
type CatalogIssue struct {
	ID          int       `json:"id"`
	SeriesID    int       `json:"series_id"`
	Number      string    `json:"number"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	CoverDate   CoverDate `json:"cover_date"`
	Credits     []Credit  `json:"credits,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Characters  []string  `json:"characters,omitempty"`
	Teams       []string  `json:"teams,omitempty"`
	Locations   []string  `json:"locations,omitempty"`
	WebLinks    []string  `json:"web_links,omitempty"`
	GTIN        string    `json:"gtin,omitempty"`
	SiteURL     string    `json:"site_url,omitempty"`
}

// ResolvedMatch ties a local file to the series and issue it resolved to.
type ResolvedMatch struct {
	Path       string
	Series     *CatalogSeries
	Issue      *CatalogIssue
	Annual     bool
	Confidence float64
}

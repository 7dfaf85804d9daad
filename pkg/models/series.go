package models

// CatalogSeries is a canonical series (Comic Vine "volume") record.
type CatalogSeries struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	StartYear   int    `json:"start_year"`
	IssueCount  int    `json:"issue_count"`
	Publisher   string `json:"publisher,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	SiteURL     string `json:"site_url,omitempty"`
}

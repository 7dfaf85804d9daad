package comicvine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/luccast/runarr/pkg/errcodes"
	"github.com/luccast/runarr/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
)

const (
	defaultBaseURL = "https://comicvine.gamespot.com/api"
	userAgent      = "runarr/1.0"

	// Comic Vine resource type prefixes.
	volumePrefix = "4050"
	issuePrefix  = "4000"
)

// Client issues catalog lookups under the shared request budget. It holds no
// state across calls besides the budget counter.
type Client struct {
	apiKey       string
	baseURL      string
	maxRetries   int
	retryBackoff time.Duration
	budget       *Budget
	httpClient   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithMaxRetries overrides the bounded retry count.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// New creates a catalog client. The budget must not be nil; it is owned by
// the process and shared across every client call.
func New(apiKey string, budget *Budget, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("comicvine api key required")
	}
	if budget == nil {
		return nil, errors.New("request budget required")
	}
	client := &Client{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		maxRetries:   3,
		retryBackoff: time.Second,
		budget:       budget,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// SearchSeries queries the catalog for series matching the given name. The
// year, when known, is used by the matcher for ranking, not by the API.
func (c *Client) SearchSeries(ctx context.Context, name string) ([]*models.CatalogSeries, error) {
	params := url.Values{}
	params.Set("query", name)
	params.Set("resources", "volume")

	var payload searchResponse
	if err := c.get(ctx, "/search/", params, &payload); err != nil {
		return nil, err
	}

	series := make([]*models.CatalogSeries, 0, len(payload.Results))
	for _, res := range payload.Results {
		series = append(series, res.toSeries())
	}
	return series, nil
}

// FetchSeries fetches full details for a single series.
func (c *Client) FetchSeries(ctx context.Context, seriesID int) (*models.CatalogSeries, error) {
	params := url.Values{}
	params.Set("field_list", "id,name,start_year,publisher,description,count_of_issues,image,last_issue,site_detail_url")

	var payload volumeResponse
	path := fmt.Sprintf("/volume/%s-%d/", volumePrefix, seriesID)
	if err := c.get(ctx, path, params, &payload); err != nil {
		return nil, err
	}
	return payload.Results.toSeries(), nil
}

// FetchSeriesIssues fetches the summary list of every issue in a series.
func (c *Client) FetchSeriesIssues(ctx context.Context, seriesID int) ([]models.CatalogIssue, error) {
	params := url.Values{}
	params.Set("field_list", "issues")

	var payload volumeIssuesResponse
	path := fmt.Sprintf("/volume/%s-%d/", volumePrefix, seriesID)
	if err := c.get(ctx, path, params, &payload); err != nil {
		return nil, err
	}

	issues := make([]models.CatalogIssue, 0, len(payload.Results.Issues))
	for _, sum := range payload.Results.Issues {
		issues = append(issues, models.CatalogIssue{
			ID:       sum.ID,
			SeriesID: seriesID,
			Number:   sum.IssueNumber,
			Title:    sum.Name,
			SiteURL:  sum.SiteDetailURL,
		})
	}
	return issues, nil
}

// FetchIssue fetches the full record for a single issue.
func (c *Client) FetchIssue(ctx context.Context, seriesID, issueID int) (*models.CatalogIssue, error) {
	params := url.Values{}
	params.Set("field_list", "id,name,issue_number,description,cover_date,isbn,volume,person_credits,concept_credits,character_credits,team_credits,location_credits,story_arc_credits,site_detail_url")

	var payload issueResponse
	path := fmt.Sprintf("/issue/%s-%d/", issuePrefix, issueID)
	if err := c.get(ctx, path, params, &payload); err != nil {
		return nil, err
	}
	return payload.Results.toIssue(seriesID), nil
}

// get performs a budgeted GET with bounded retries. Transport failures and
// rate-limit/server rejections back off exponentially; exhausting the
// attempts surfaces a catalog_unavailable error.
func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	log := logger.FromContext(ctx)

	params.Set("api_key", c.apiKey)
	params.Set("format", "json")

	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return errors.WithStack(err)
	}
	endpoint.RawQuery = params.Encode()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * c.retryBackoff
			log.Warn("retrying catalog request", logger.Data{"path": path, "attempt": attempt, "backoff": backoff.String()})
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return errors.WithStack(ctx.Err())
			case <-timer.C:
			}
		}

		if err := c.budget.Wait(ctx); err != nil {
			return err
		}

		lastErr = c.doOnce(ctx, endpoint.String(), out)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
	}

	return errors.WithStack(errcodes.CatalogUnavailable(lastErr.Error()))
}

// statusError marks HTTP statuses worth retrying.
type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return "comicvine returned " + strconv.Itoa(e.status)
}

// transportError marks network-level failures worth retrying.
type transportError struct {
	err error
}

func (e *transportError) Error() string {
	return e.err.Error()
}

func (e *transportError) Unwrap() error {
	return e.err
}

func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		// 420 is Comic Vine's legacy rate-limit rejection.
		return se.status == http.StatusTooManyRequests || se.status == 420 || se.status >= 500
	}
	var te *transportError
	return errors.As(err, &te)
}

func (c *Client) doOnce(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errors.WithStack(ctx.Err())
		}
		return &transportError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &statusError{status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "decode comicvine response")
	}

	return nil
}

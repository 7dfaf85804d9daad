package resolvecache

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/luccast/runarr/pkg/mediafile"
	"github.com/luccast/runarr/pkg/models"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
	"golang.org/x/sync/singleflight"
)

// Catalog is the remote lookup surface the cache delegates to on a miss.
// *comicvine.Client satisfies it.
type Catalog interface {
	SearchSeries(ctx context.Context, name string) ([]*models.CatalogSeries, error)
	FetchSeries(ctx context.Context, seriesID int) (*models.CatalogSeries, error)
	FetchSeriesIssues(ctx context.Context, seriesID int) ([]models.CatalogIssue, error)
	FetchIssue(ctx context.Context, seriesID, issueID int) (*models.CatalogIssue, error)
}

// Service is the durable resolution cache. Every catalog lookup goes through
// it; results are stored before being returned, entries never auto-expire,
// and concurrent requests for the same key coalesce into one network call.
type Service struct {
	db      *bun.DB
	catalog Catalog
	group   singleflight.Group
}

func NewService(db *bun.DB, catalog Catalog) *Service {
	return &Service{db: db, catalog: catalog}
}

// SearchKey returns the normalized cache key for a series search.
func SearchKey(name string, year int) string {
	key := "search:" + mediafile.Normalize(name)
	if year > 0 {
		key += ":" + strconv.Itoa(year)
	}
	return key
}

// SeriesKey returns the cache key for a series detail lookup.
func SeriesKey(seriesID int) string {
	return fmt.Sprintf("series:%d", seriesID)
}

// IssuesKey returns the cache key for a series issue-list lookup.
func IssuesKey(seriesID int) string {
	return fmt.Sprintf("issues:%d", seriesID)
}

// IssueKey returns the cache key for a single issue lookup. Annual issues
// live on a separate track so a regular #5 and an annual #5 never share a
// key.
func IssueKey(seriesID int, number string, annual bool) string {
	key := fmt.Sprintf("issue:%d:%s", seriesID, mediafile.Normalize(number))
	if annual {
		key += ":annual"
	}
	return key
}

// SearchSeries returns catalog candidates for a series name, cached.
func (svc *Service) SearchSeries(ctx context.Context, name string, year int) ([]*models.CatalogSeries, error) {
	var series []*models.CatalogSeries
	err := svc.getOrFetch(ctx, SearchKey(name, year), &series, func(ctx context.Context) (interface{}, error) {
		return svc.catalog.SearchSeries(ctx, name)
	})
	return series, err
}

// Series returns full details for a series, cached.
func (svc *Service) Series(ctx context.Context, seriesID int) (*models.CatalogSeries, error) {
	series := &models.CatalogSeries{}
	err := svc.getOrFetch(ctx, SeriesKey(seriesID), series, func(ctx context.Context) (interface{}, error) {
		return svc.catalog.FetchSeries(ctx, seriesID)
	})
	return series, err
}

// SeriesIssues returns the issue summaries for a series, cached.
func (svc *Service) SeriesIssues(ctx context.Context, seriesID int) ([]models.CatalogIssue, error) {
	var issues []models.CatalogIssue
	err := svc.getOrFetch(ctx, IssuesKey(seriesID), &issues, func(ctx context.Context) (interface{}, error) {
		return svc.catalog.FetchSeriesIssues(ctx, seriesID)
	})
	return issues, err
}

// Issue returns the full record for one issue, cached under the
// (series, number, annual) key so identical inputs resolve identically.
func (svc *Service) Issue(ctx context.Context, seriesID, issueID int, number string, annual bool) (*models.CatalogIssue, error) {
	issue := &models.CatalogIssue{}
	err := svc.getOrFetch(ctx, IssueKey(seriesID, number, annual), issue, func(ctx context.Context) (interface{}, error) {
		return svc.catalog.FetchIssue(ctx, seriesID, issueID)
	})
	return issue, err
}

// InvalidateSearch drops cached search results for a series name
// (force-refresh, before the series is known).
func (svc *Service) InvalidateSearch(ctx context.Context, name string) error {
	_, err := svc.db.NewDelete().
		Model((*models.CacheEntry)(nil)).
		Where("query_key LIKE ?", "search:"+mediafile.Normalize(name)+"%").
		Exec(ctx)
	return errors.WithStack(err)
}

// InvalidateSeries drops every cached entry scoped to a series id
// (force-refresh, once the series is pinned).
func (svc *Service) InvalidateSeries(ctx context.Context, seriesID int) error {
	_, err := svc.db.NewDelete().
		Model((*models.CacheEntry)(nil)).
		Where("query_key = ?", SeriesKey(seriesID)).
		WhereOr("query_key = ?", IssuesKey(seriesID)).
		WhereOr("query_key LIKE ?", fmt.Sprintf("issue:%d:%%", seriesID)).
		Exec(ctx)
	return errors.WithStack(err)
}

// getOrFetch reads the payload for key, delegating to fetch on a miss.
// Misses coalesce per key: concurrent callers share one network call and all
// unmarshal the same stored payload.
func (svc *Service) getOrFetch(ctx context.Context, key string, out interface{}, fetch func(ctx context.Context) (interface{}, error)) error {
	payload, ok, err := svc.lookup(ctx, key)
	if err != nil {
		return err
	}
	if ok {
		return errors.WithStack(json.Unmarshal(payload, out))
	}

	shared, err, _ := svc.group.Do(key, func() (interface{}, error) {
		// Double-check under the flight: another caller may have stored the
		// entry between our lookup and this one.
		payload, ok, err := svc.lookup(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			return payload, nil
		}

		result, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(result)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		if err := svc.store(ctx, key, data); err != nil {
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		return err
	}

	return errors.WithStack(json.Unmarshal(shared.([]byte), out))
}

func (svc *Service) lookup(ctx context.Context, key string) ([]byte, bool, error) {
	entry := &models.CacheEntry{}
	err := svc.db.NewSelect().
		Model(entry).
		Where("query_key = ?", key).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, errors.WithStack(err)
	}
	return []byte(entry.Payload), true, nil
}

func (svc *Service) store(ctx context.Context, key string, payload []byte) error {
	entry := &models.CacheEntry{
		QueryKey:  key,
		Payload:   string(payload),
		FetchedAt: time.Now(),
	}
	_, err := svc.db.NewInsert().
		Model(entry).
		On("CONFLICT (query_key) DO UPDATE").
		Set("payload = EXCLUDED.payload").
		Set("fetched_at = EXCLUDED.fetched_at").
		Exec(ctx)
	return errors.WithStack(err)
}

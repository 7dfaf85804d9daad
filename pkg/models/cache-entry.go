package models

import (
	"time"

	"github.com/uptrace/bun"
)

// CacheEntry is a durable catalog lookup result keyed by normalized query.
// Entries are never auto-expired; force-refresh invalidates them explicitly.
type CacheEntry struct {
	bun.BaseModel `bun:"table:cache_entries,alias:ce"`

	ID        int       `bun:",pk,nullzero" json:"id"`
	QueryKey  string    `bun:",nullzero" json:"query_key"`
	Payload   string    `bun:",nullzero" json:"payload"`
	FetchedAt time.Time `json:"fetched_at"`
}

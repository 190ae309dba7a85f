// Package skipcache keeps a sliding prefetch window of per-URL scrape
// statuses so the orchestrator can decide skippability without a store
// read per URL.
//
// The window always covers [cacheStart, cacheEnd]. A lookup inside
// [cacheStart, cacheEnd - PrefetchBuffer] is answered from memory; lookups
// beyond the buffer trigger a batch prefetch that slides the window forward
// and evicts entries that fell behind it. Callers must not retain entries
// across lookups: any prefetch may evict them.
package skipcache

import (
	"context"
	"fmt"

	"github.com/hoganho/kingsroom-sub012/internal/game"
	"github.com/hoganho/kingsroom-sub012/internal/store"
)

const (
	// PrefetchBatchSize is how many ids one prefetch loads.
	PrefetchBatchSize = 100
	// PrefetchBuffer is how close to the window's end a lookup may get
	// before the next batch is prefetched.
	PrefetchBuffer = 20
)

// Ranger is the slice of the ScrapeURL store the cache needs.
type Ranger interface {
	Range(ctx context.Context, entityID string, startID, endID int) ([]store.ScrapeURL, error)
}

// Entry is a cached per-URL status.
type Entry struct {
	Found            bool
	LastScrapeStatus game.ScrapeStatus
	GameStatus       string
	DoNotScrape      bool
}

// Skippable reports whether the cached record says the URL should not be
// fetched. Older records carry the terminal status on gameStatus instead of
// lastScrapeStatus, so both are consulted.
func (e Entry) Skippable() bool {
	if !e.Found {
		return false
	}
	if e.DoNotScrape {
		return true
	}
	if isTerminalStatus(string(e.LastScrapeStatus)) {
		return true
	}
	return isTerminalStatus(e.GameStatus)
}

func isTerminalStatus(s string) bool {
	switch s {
	case string(game.ScrapeNotFound), string(game.ScrapeNotPublished), string(game.ScrapeBlank):
		return true
	}
	return false
}

// Stats counts cache traffic for the status report.
type Stats struct {
	Hits       int `json:"hits"`
	Misses     int `json:"misses"`
	Prefetches int `json:"prefetches"`
}

// Cache is a single-goroutine prefetch window for one entity.
type Cache struct {
	ranger   Ranger
	entityID string

	cacheStart int // 0 means no window yet
	cacheEnd   int
	entries    map[int]Entry
	stats      Stats
}

// New creates an empty cache for an entity.
func New(ranger Ranger, entityID string) *Cache {
	return &Cache{
		ranger:   ranger,
		entityID: entityID,
		entries:  make(map[int]Entry),
	}
}

// GetStatus returns the cached entry for a tournament id, prefetching a
// fresh batch when the id falls outside the effective window.
func (c *Cache) GetStatus(ctx context.Context, tournamentID int) (Entry, error) {
	if c.needsPrefetch(tournamentID) {
		if err := c.prefetch(ctx, tournamentID); err != nil {
			return Entry{}, err
		}
	}

	entry, ok := c.entries[tournamentID]
	if !ok {
		c.stats.Misses++
		return Entry{Found: false}, nil
	}
	c.stats.Hits++
	return entry, nil
}

// needsPrefetch reports whether a lookup at id can be served from the
// current window. Ids within [cacheStart, cacheEnd-PrefetchBuffer] never
// touch the store.
func (c *Cache) needsPrefetch(id int) bool {
	if c.cacheStart == 0 {
		return true
	}
	return id < c.cacheStart || id > c.cacheEnd-PrefetchBuffer
}

// prefetch loads [startID, startID+PrefetchBatchSize-1] and slides the
// window, evicting entries older than startID-PrefetchBuffer.
func (c *Cache) prefetch(ctx context.Context, startID int) error {
	endID := startID + PrefetchBatchSize - 1

	recs, err := c.ranger.Range(ctx, c.entityID, startID, endID)
	if err != nil {
		return fmt.Errorf("prefetching scrape statuses: %w", err)
	}
	c.stats.Prefetches++

	floor := startID - PrefetchBuffer
	for id := range c.entries {
		if id < floor {
			delete(c.entries, id)
		}
	}

	for _, rec := range recs {
		gameStatus := ""
		if rec.GameStatus != nil {
			gameStatus = *rec.GameStatus
		}
		c.entries[rec.TournamentID] = Entry{
			Found:            true,
			LastScrapeStatus: rec.LastScrapeStatus,
			GameStatus:       gameStatus,
			DoNotScrape:      rec.DoNotScrape,
		}
	}

	c.cacheStart = startID
	c.cacheEnd = endID
	return nil
}

// Stats returns a copy of the traffic counters.
func (c *Cache) Stats() Stats {
	return c.stats
}

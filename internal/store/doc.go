// Package store persists every durable record: scrape URLs, blob version
// records, games and their financials, scraper state and jobs, and social
// posts with their extracted data and game links.
//
// All mutable records carry a monotonic version column. Updates are
// optimistic: they match on the version read and fail with
// ErrVersionConflict when the row moved underneath the caller. Callers are
// expected to re-read and retry once before escalating.
package store

// Package scraper drives the range walk over sequential tournament ids
// for one entity.
//
// A run acquires the entity's persisted run lock, walks ids from
// max(lastScannedId, highest stored tournament id)+1, and pushes each URL
// through skip-cache, parser, and consolidation. Exactly one event is
// published per URL. The walk terminates on consecutive blank pages, on
// the new-game cap, on the job's wall-clock budget, or when an operator
// clears the run flag.
package scraper

// Package parser turns one tournament URL into a tagged parse outcome.
//
// A Parse call fetches the page (with a conditional GET against the stored
// etag), archives the raw HTML as a new blob version, and extracts a
// normalized tournament record. Expected page conditions (missing,
// unpublished, blank) come back as statuses, not errors; only
// infrastructure failures surface as ERROR, TIMEOUT, or RATE_LIMITED, all
// of which the orchestrator treats as retryable.
package parser

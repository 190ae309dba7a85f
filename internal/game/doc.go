// Package game defines the tournament domain model shared by the scraping,
// consolidation, financial, and social subsystems.
//
// A Game is one real-world tournament instance. Multi-day and multi-flight
// tournaments are represented as a parent Game plus child Games linked by
// ParentGameID; children carry their day number or flight letter while the
// parent carries consolidated totals. Statuses arriving from upstream pages
// drift in spelling, so every boundary normalizes through NormalizeStatus.
package game

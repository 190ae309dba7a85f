// Package cli implements the command-line interface for kingsroom.
//
// The cli package provides the Cobra-based CLI with commands for running
// scraping walks, executing scraper control operations, projecting game
// financials, processing social posts, and serving the HTTP control
// surface. It wires the store, parser, consolidation, financial, and
// social packages into one application graph.
package cli

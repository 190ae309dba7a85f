// Package consolidation groups per-flight and per-day scrape records into a
// single parent tournament.
//
// The engine runs a fixed pipeline: detect the multi-day pattern, derive a
// deterministic consolidation key, locate or create the parent, project
// aggregate totals over the candidate and its siblings, then commit.
// Preview runs the same pipeline but stops after projection and performs no
// writes, so two previews over the same store state return equal results.
package consolidation

// Package filter decides which files an ingest sees.
//
// Exclusion layers, in order: default directory skips (.git,
// node_modules, vendor, and friends), the repository's .gitignore,
// user exclude patterns, hidden files, binary content sniffing, and
// the oversize policy. The walker returns included paths in sorted
// order plus every skip with its reason, so skips stay inspectable
// rather than silent.
package filter

// Package metadata exposes the remote plugin metadata snapshots (update center, health
// scores, installation statistics and version table) as fetch-or-cache lookups backed by
// the cache package, together with per-plugin accessors used by the modernization workflow.
package metadata

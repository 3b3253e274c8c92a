// Package plugin models one modernization target: its identity, the version-control
// stage it reached, build progress, accumulated errors, and collected metadata.
//
// Workflow actions delegate to a VersionControl or Builder passed per call, so the
// entity never owns the services that act on it.
package plugin

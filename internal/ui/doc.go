// Package ui provides helpers for formatting human-readable console output.
//
// The helpers translate command events and the end-of-run plugin summary into
// concise lines so that feedback remains actionable for CLI users while
// detailed telemetry continues to flow through structured loggers.
package ui

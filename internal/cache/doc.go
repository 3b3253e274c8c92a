// Package cache implements the on-disk key/path addressed store shared by the
// remote metadata snapshots and per-plugin working state.
//
// A Manager owns one root directory and persists values as checksummed JSON
// envelopes written through an atomic rename, so concurrent writers of the same
// location end with one complete file. Entry wraps a typed value together with
// its logical identity and offers save, refresh, delete, move, and copy.
package cache

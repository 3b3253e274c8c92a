// Package vcs implements the version-control stages of plugin modernization: forking the
// upstream repository, cloning the fork, branching, committing, pushing and opening a pull
// request. Every stage is idempotent so an interrupted batch can simply be run again.
package vcs

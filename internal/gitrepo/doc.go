// Package gitrepo contains helpers for interrogating and manipulating Git repositories.
//
// It exposes RepositoryManager for cloning, branching, committing and pushing plugin
// working copies, along with remote URL parsing consumed by the version-control service.
package gitrepo

// Package githubcli wraps the GitHub CLI for the hosted repository operations of the
// modernization workflow: forks, repository lookups, pull requests and fork removal.
//
// Every invocation passes through a shared token bucket so concurrent workers stay
// within the provider's rate limits, and receives its credential through GH_TOKEN.
package githubcli

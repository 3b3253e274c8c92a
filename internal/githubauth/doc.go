// Package githubauth resolves credentials for the hosted Git provider. Tokens come from
// explicit configuration, a GitHub App installation, or the environment, and are exposed
// as oauth2 token sources so callers can refresh them transparently.
package githubauth

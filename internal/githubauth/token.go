package githubauth

import (
	"errors"
	"os"
	"strings"
)

// Environment variable names used by GitHub authentication helpers.
const (
	EnvGitHubCLIToken = "GH_TOKEN"
	EnvGitHubToken    = "GITHUB_TOKEN"
	EnvGitHubAPIToken = "GITHUB_API_TOKEN"

	tokenNotFoundMessageConstant = "no GitHub token found in GH_TOKEN, GITHUB_TOKEN or GITHUB_API_TOKEN"
)

// ErrTokenNotFound indicates that no credential source produced a token.
var ErrTokenNotFound = errors.New(tokenNotFoundMessageConstant)

var tokenPreference = []string{
	EnvGitHubCLIToken,
	EnvGitHubToken,
	EnvGitHubAPIToken,
}

// EnvironmentLookup obtains an environment variable value.
type EnvironmentLookup func(key string) (string, bool)

// ResolveToken returns the first non-empty token observed in environment, falling back to lookup.
// A nil lookup consults the process environment.
func ResolveToken(environment map[string]string, lookup EnvironmentLookup) (string, bool) {
	for _, key := range tokenPreference {
		if value, found := trimmedValue(environment[key]); found {
			return value, true
		}
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, key := range tokenPreference {
		value, exists := lookup(key)
		if !exists {
			continue
		}
		if trimmed, found := trimmedValue(value); found {
			return trimmed, true
		}
	}
	return "", false
}

func trimmedValue(value string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	return trimmed, len(trimmed) > 0
}

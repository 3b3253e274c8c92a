package metadata

import (
	"context"
	"strings"

	"github.com/temirov/pluginmodernizer/internal/plugin"
	"github.com/temirov/pluginmodernizer/internal/versions"
)

const (
	// UnknownScore is returned when a plugin has no health score.
	UnknownScore = -1.0
	// UnknownInstallations is returned when a plugin has no installation statistics.
	UnknownInstallations = -1
	// MaximumScore is the best attainable health score.
	MaximumScore = 100.0

	apiPluginLabelConstant = "api-plugin"
	scmSeparatorConstant   = "/"
	gitSuffixConstant      = ".git"
)

// RepositoryNameFromSCM returns the substring after the last "/" of scm.
// A URL without "/" or ending with one is malformed.
func RepositoryNameFromSCM(pluginName string, scm string) (string, error) {
	trimmed := strings.TrimSpace(scm)
	separatorIndex := strings.LastIndex(trimmed, scmSeparatorConstant)
	if separatorIndex < 0 || separatorIndex == len(trimmed)-1 {
		return "", MalformedSCMError{Plugin: pluginName, SCM: scm}
	}
	return strings.TrimSuffix(trimmed[separatorIndex+1:], gitSuffixConstant), nil
}

// ExtractRepoName returns the hosted repository name of target. An absent plugin is recorded
// on target and yields an empty name; a malformed SCM URL is returned as MalformedSCMError.
func (service *Service) ExtractRepoName(executionContext context.Context, target *plugin.Plugin) (string, error) {
	record, found, lookupError := service.updateCenterRecord(executionContext, target)
	if lookupError != nil || !found {
		return "", lookupError
	}
	return RepositoryNameFromSCM(target.Name(), record.SCM)
}

// IsDeprecated reports whether the registry lists target as deprecated.
func (service *Service) IsDeprecated(executionContext context.Context, target *plugin.Plugin) (bool, error) {
	snapshot, snapshotError := service.UpdateCenter(executionContext)
	if snapshotError != nil {
		return false, snapshotError
	}
	if _, deprecated := snapshot.Deprecations[target.Name()]; deprecated {
		return true, nil
	}
	if _, found := snapshot.Plugins[target.Name()]; !found {
		target.AddError(plugin.NotFoundError{Plugin: target.Name(), Source: plugin.SourceUpdateCenter})
	}
	return false, nil
}

// IsAPIPlugin reports whether target carries the api-plugin label.
func (service *Service) IsAPIPlugin(executionContext context.Context, target *plugin.Plugin) (bool, error) {
	record, found, lookupError := service.updateCenterRecord(executionContext, target)
	if lookupError != nil || !found {
		return false, lookupError
	}
	for _, label := range record.Labels {
		if strings.EqualFold(label, apiPluginLabelConstant) {
			return true, nil
		}
	}
	return false, nil
}

// ExtractVersion returns the latest released version of target.
func (service *Service) ExtractVersion(executionContext context.Context, target *plugin.Plugin) (string, error) {
	record, found, lookupError := service.updateCenterRecord(executionContext, target)
	if lookupError != nil || !found {
		return "", lookupError
	}
	return record.Version, nil
}

// ExtractDefaultBranch returns the default branch of target's repository.
func (service *Service) ExtractDefaultBranch(executionContext context.Context, target *plugin.Plugin) (string, error) {
	record, found, lookupError := service.updateCenterRecord(executionContext, target)
	if lookupError != nil || !found {
		return "", lookupError
	}
	return record.DefaultBranch, nil
}

// ExtractRequiredCore returns the core version the latest release of target requires.
func (service *Service) ExtractRequiredCore(executionContext context.Context, target *plugin.Plugin) (string, error) {
	record, found, lookupError := service.updateCenterRecord(executionContext, target)
	if lookupError != nil || !found {
		return "", lookupError
	}
	return record.RequiredCore, nil
}

// ExtractScore returns the health score of target, or UnknownScore when it is not scored.
func (service *Service) ExtractScore(executionContext context.Context, target *plugin.Plugin) (float64, error) {
	snapshot, snapshotError := service.HealthScores(executionContext)
	if snapshotError != nil {
		return UnknownScore, snapshotError
	}
	score, found := snapshot.Plugins[target.Name()]
	if !found {
		target.AddError(plugin.NotFoundError{Plugin: target.Name(), Source: plugin.SourceHealthScores})
		return UnknownScore, nil
	}
	return score.Value, nil
}

// HasLowScore reports whether target is scored below threshold. Unscored plugins are not low
// and are not recorded as failures.
func (service *Service) HasLowScore(executionContext context.Context, target *plugin.Plugin, threshold float64) (bool, error) {
	score, scored, scoreError := service.lookupScore(executionContext, target)
	if scoreError != nil || !scored {
		return false, scoreError
	}
	return score < threshold, nil
}

// HasMaximumScore reports whether target already has the best attainable score.
// Unscored plugins do not have it.
func (service *Service) HasMaximumScore(executionContext context.Context, target *plugin.Plugin) (bool, error) {
	score, scored, scoreError := service.lookupScore(executionContext, target)
	if scoreError != nil || !scored {
		return false, scoreError
	}
	return score >= MaximumScore, nil
}

func (service *Service) lookupScore(executionContext context.Context, target *plugin.Plugin) (float64, bool, error) {
	snapshot, snapshotError := service.HealthScores(executionContext)
	if snapshotError != nil {
		return UnknownScore, false, snapshotError
	}
	score, found := snapshot.Plugins[target.Name()]
	if !found {
		return UnknownScore, false, nil
	}
	return score.Value, true, nil
}

// ExtractInstallations returns the installation count of target, or UnknownInstallations.
func (service *Service) ExtractInstallations(executionContext context.Context, target *plugin.Plugin) (int, error) {
	snapshot, snapshotError := service.InstallationStats(executionContext)
	if snapshotError != nil {
		return UnknownInstallations, snapshotError
	}
	count, found := snapshot.Plugins[target.Name()]
	if !found {
		target.AddError(plugin.NotFoundError{Plugin: target.Name(), Source: plugin.SourceInstallationStats})
		return UnknownInstallations, nil
	}
	return count, nil
}

// HasNoKnownInstallations reports whether the statistics report no installations of target.
// Absence from the report is the answer itself and is not recorded as an error.
func (service *Service) HasNoKnownInstallations(executionContext context.Context, target *plugin.Plugin) (bool, error) {
	snapshot, snapshotError := service.InstallationStats(executionContext)
	if snapshotError != nil {
		return false, snapshotError
	}
	return snapshot.Plugins[target.Name()] <= 0, nil
}

// ExtractVersionRequiredCore returns the core version required by a specific release of target.
func (service *Service) ExtractVersionRequiredCore(executionContext context.Context, target *plugin.Plugin, version string) (string, error) {
	snapshot, snapshotError := service.PluginVersions(executionContext)
	if snapshotError != nil {
		return "", snapshotError
	}
	releases, found := snapshot.Plugins[target.Name()]
	if !found {
		target.AddError(plugin.NotFoundError{Plugin: target.Name(), Source: plugin.SourcePluginVersions})
		return "", nil
	}
	release, found := releases[version]
	if !found {
		return "", nil
	}
	return release.RequiredCore, nil
}

// ExtractLatestRelease returns the newest release of target in the version table.
func (service *Service) ExtractLatestRelease(executionContext context.Context, target *plugin.Plugin) (PluginVersion, bool, error) {
	snapshot, snapshotError := service.PluginVersions(executionContext)
	if snapshotError != nil {
		return PluginVersion{}, false, snapshotError
	}
	releases, found := snapshot.Plugins[target.Name()]
	if !found || len(releases) == 0 {
		target.AddError(plugin.NotFoundError{Plugin: target.Name(), Source: plugin.SourcePluginVersions})
		return PluginVersion{}, false, nil
	}

	latestVersion := ""
	for version := range releases {
		if len(latestVersion) == 0 || versions.Compare(version, latestVersion) > 0 {
			latestVersion = version
		}
	}
	return releases[latestVersion], true, nil
}

func (service *Service) updateCenterRecord(executionContext context.Context, target *plugin.Plugin) (UpdateCenterPlugin, bool, error) {
	snapshot, snapshotError := service.UpdateCenter(executionContext)
	if snapshotError != nil {
		return UpdateCenterPlugin{}, false, snapshotError
	}
	record, found := snapshot.Plugins[target.Name()]
	if !found {
		target.AddError(plugin.NotFoundError{Plugin: target.Name(), Source: plugin.SourceUpdateCenter})
		return UpdateCenterPlugin{}, false, nil
	}
	return record, true, nil
}

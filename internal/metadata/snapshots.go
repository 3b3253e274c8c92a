package metadata

// Snapshot keys under the cache root.
const (
	UpdateCenterKey      = "update-center.json"
	HealthScoresKey      = "plugin-health-scores.json"
	InstallationStatsKey = "plugin-installation-stats.json"
	PluginVersionsKey    = "plugin-versions.json"
)

// UpdateCenterPlugin is one registry record.
type UpdateCenterPlugin struct {
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	SCM           string   `json:"scm"`
	DefaultBranch string   `json:"defaultBranch"`
	GAV           string   `json:"gav"`
	RequiredCore  string   `json:"requiredCore"`
	Labels        []string `json:"labels"`
}

// Deprecation describes why a plugin is deprecated.
type Deprecation struct {
	URL string `json:"url"`
}

// UpdateCenter is the registry snapshot.
type UpdateCenter struct {
	Plugins      map[string]UpdateCenterPlugin `json:"plugins"`
	Deprecations map[string]Deprecation        `json:"deprecations"`
}

// HealthScore is the health score record of one plugin.
type HealthScore struct {
	Value float64 `json:"value"`
}

// HealthScores is the health score snapshot.
type HealthScores struct {
	Plugins map[string]HealthScore `json:"plugins"`
}

// InstallationStats maps a plugin name to its installation count.
type InstallationStats struct {
	Plugins map[string]int `json:"plugins"`
}

// PluginVersion is one released version of a plugin.
type PluginVersion struct {
	Version          string `json:"version"`
	RequiredCore     string `json:"requiredCore"`
	URL              string `json:"url"`
	ReleaseTimestamp string `json:"releaseTimestamp"`
}

// PluginVersions maps a plugin name to its releases keyed by version.
type PluginVersions struct {
	Plugins map[string]map[string]PluginVersion `json:"plugins"`
}

// Keys lists every snapshot key in the order they are preloaded.
func Keys() []string {
	return []string{UpdateCenterKey, HealthScoresKey, InstallationStatsKey, PluginVersionsKey}
}

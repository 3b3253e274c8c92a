package plugin

import (
	"strings"
	"sync"

	"github.com/temirov/pluginmodernizer/internal/jdk"
)

// Plugin is the in-memory descriptor of one modernization target. It survives the whole
// batch so its errors can be reported; all accessors are safe for concurrent use.
type Plugin struct {
	mutex             sync.RWMutex
	name              string
	repositoryName    string
	hasCommits        bool
	stage             Stage
	buildStep         BuildStep
	skipReason        string
	errors            []error
	localRepository   string
	targetCoreVersion string
	toolchain         *jdk.JDK
	toolchainHome     string
	metadata          *Metadata
}

// New creates a plugin from its registry name. The repository name defaults to the name.
func New(name string) *Plugin {
	trimmedName := strings.TrimSpace(name)
	return &Plugin{name: trimmedName, repositoryName: trimmedName}
}

// Name returns the registry identifier.
func (plugin *Plugin) Name() string {
	return plugin.name
}

// WithRepositoryName sets the hosted repository name.
func (plugin *Plugin) WithRepositoryName(repositoryName string) *Plugin {
	plugin.mutex.Lock()
	defer plugin.mutex.Unlock()
	plugin.repositoryName = strings.TrimSpace(repositoryName)
	return plugin
}

// RepositoryName returns the hosted repository name.
func (plugin *Plugin) RepositoryName() string {
	plugin.mutex.RLock()
	defer plugin.mutex.RUnlock()
	return plugin.repositoryName
}

// WithCommits marks the plugin as having produced commits.
func (plugin *Plugin) WithCommits() *Plugin {
	plugin.mutex.Lock()
	defer plugin.mutex.Unlock()
	plugin.hasCommits = true
	return plugin
}

// WithoutCommits marks the plugin as having produced no changes.
func (plugin *Plugin) WithoutCommits() *Plugin {
	plugin.mutex.Lock()
	defer plugin.mutex.Unlock()
	plugin.hasCommits = false
	return plugin
}

// HasCommits reports whether a commit-producing stage found changes.
func (plugin *Plugin) HasCommits() bool {
	plugin.mutex.RLock()
	defer plugin.mutex.RUnlock()
	return plugin.hasCommits
}

// WithLocalRepository sets the working copy directory.
func (plugin *Plugin) WithLocalRepository(directory string) *Plugin {
	plugin.mutex.Lock()
	defer plugin.mutex.Unlock()
	plugin.localRepository = directory
	return plugin
}

// LocalRepository returns the working copy directory.
func (plugin *Plugin) LocalRepository() string {
	plugin.mutex.RLock()
	defer plugin.mutex.RUnlock()
	return plugin.localRepository
}

// WithTargetCoreVersion sets the core version the plugin declares it builds against.
func (plugin *Plugin) WithTargetCoreVersion(coreVersion string) *Plugin {
	plugin.mutex.Lock()
	defer plugin.mutex.Unlock()
	plugin.targetCoreVersion = strings.TrimSpace(coreVersion)
	return plugin
}

// TargetCoreVersion returns the declared core version.
func (plugin *Plugin) TargetCoreVersion() string {
	plugin.mutex.RLock()
	defer plugin.mutex.RUnlock()
	return plugin.targetCoreVersion
}

// WithJDK records the toolchain selected for the build and where it is installed.
func (plugin *Plugin) WithJDK(toolchain jdk.JDK, home string) *Plugin {
	plugin.mutex.Lock()
	defer plugin.mutex.Unlock()
	plugin.toolchain = &toolchain
	plugin.toolchainHome = home
	return plugin
}

// JDK returns the selected toolchain, or nil before selection.
func (plugin *Plugin) JDK() *jdk.JDK {
	plugin.mutex.RLock()
	defer plugin.mutex.RUnlock()
	if plugin.toolchain == nil {
		return nil
	}
	toolchain := *plugin.toolchain
	return &toolchain
}

// JDKHome returns the installation directory of the selected toolchain.
func (plugin *Plugin) JDKHome() string {
	plugin.mutex.RLock()
	defer plugin.mutex.RUnlock()
	return plugin.toolchainHome
}

// Stage returns the last version-control stage reached.
func (plugin *Plugin) Stage() Stage {
	plugin.mutex.RLock()
	defer plugin.mutex.RUnlock()
	return plugin.stage
}

// AdvanceTo moves the plugin forward to stage. Stages never move backwards.
func (plugin *Plugin) AdvanceTo(stage Stage) {
	plugin.mutex.Lock()
	defer plugin.mutex.Unlock()
	if stage > plugin.stage {
		plugin.stage = stage
	}
}

// BuildStep returns the last build step completed.
func (plugin *Plugin) BuildStep() BuildStep {
	plugin.mutex.RLock()
	defer plugin.mutex.RUnlock()
	return plugin.buildStep
}

// CompleteBuildStep records step as completed. Steps never move backwards.
func (plugin *Plugin) CompleteBuildStep(step BuildStep) {
	plugin.mutex.Lock()
	defer plugin.mutex.Unlock()
	if step > plugin.buildStep {
		plugin.buildStep = step
	}
}

// Skip marks the plugin as deliberately not processed further without recording an error.
func (plugin *Plugin) Skip(reason string) {
	plugin.mutex.Lock()
	defer plugin.mutex.Unlock()
	plugin.skipReason = reason
}

// SkipReason returns why the plugin was skipped, or an empty string.
func (plugin *Plugin) SkipReason() string {
	plugin.mutex.RLock()
	defer plugin.mutex.RUnlock()
	return plugin.skipReason
}

// Skipped reports whether the plugin was skipped.
func (plugin *Plugin) Skipped() bool {
	return len(plugin.SkipReason()) > 0
}

// AddError appends a failure. The list is never cleared.
func (plugin *Plugin) AddError(failure error) {
	if failure == nil {
		return
	}
	plugin.mutex.Lock()
	defer plugin.mutex.Unlock()
	plugin.errors = append(plugin.errors, failure)
}

// Errors returns a copy of the recorded failures in order.
func (plugin *Plugin) Errors() []error {
	plugin.mutex.RLock()
	defer plugin.mutex.RUnlock()
	return append([]error{}, plugin.errors...)
}

// HasErrors reports whether any failure was recorded.
func (plugin *Plugin) HasErrors() bool {
	plugin.mutex.RLock()
	defer plugin.mutex.RUnlock()
	return len(plugin.errors) > 0
}

// FirstError returns the earliest recorded failure, or nil.
func (plugin *Plugin) FirstError() error {
	plugin.mutex.RLock()
	defer plugin.mutex.RUnlock()
	if len(plugin.errors) == 0 {
		return nil
	}
	return plugin.errors[0]
}

// Metadata returns the collected metadata, or nil before collection.
func (plugin *Plugin) Metadata() *Metadata {
	plugin.mutex.RLock()
	defer plugin.mutex.RUnlock()
	return plugin.metadata
}

// WithMetadata attaches collected metadata and adopts its declared core version when none is set.
func (plugin *Plugin) WithMetadata(metadata Metadata) *Plugin {
	plugin.mutex.Lock()
	defer plugin.mutex.Unlock()
	plugin.metadata = &metadata
	if len(plugin.targetCoreVersion) == 0 {
		plugin.targetCoreVersion = metadata.JenkinsVersion
	}
	return plugin
}

package plugin

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/beevik/etree"

	"github.com/temirov/pluginmodernizer/internal/cache"
)

const (
	// MetadataCacheKey is the cache key under which collected plugin metadata is stored.
	MetadataCacheKey = "plugin-metadata.json"

	projectFileNameConstant          = "pom.xml"
	jenkinsfileNameConstant          = "Jenkinsfile"
	codeOwnersRelativePathConstant   = ".github/CODEOWNERS"
	workingCacheDirectoryConstant    = "target"
	projectElementConstant           = "project"
	parentElementConstant            = "parent"
	propertiesElementConstant        = "properties"
	groupIDElementConstant           = "groupId"
	artifactIDElementConstant        = "artifactId"
	versionElementConstant           = "version"
	nameElementConstant              = "name"
	packagingElementConstant         = "packaging"
	jenkinsVersionPropertyConstant   = "jenkins.version"
	javaLevelPropertyConstant        = "java.level"
	dependencyManagementPathConstant = "./dependencyManagement/dependencies/dependency"
	bomGroupIDConstant               = "io.jenkins.tools.bom"
	bomArtifactPrefixConstant        = "bom-"
	missingProjectElementMessage     = "missing project element"
)

var propertyReferencePattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Metadata is the per-plugin accumulator of facts discovered in the working copy.
// Each plugin owns its own instance; nothing about it is shared between workers.
type Metadata struct {
	PluginName     string            `json:"pluginName"`
	GroupID        string            `json:"groupId,omitempty"`
	ArtifactID     string            `json:"artifactId,omitempty"`
	Version        string            `json:"version,omitempty"`
	Packaging      string            `json:"packaging,omitempty"`
	ParentGroupID  string            `json:"parentGroupId,omitempty"`
	ParentVersion  string            `json:"parentVersion,omitempty"`
	JenkinsVersion string            `json:"jenkinsVersion,omitempty"`
	JavaLevel      string            `json:"javaLevel,omitempty"`
	BOMArtifactID  string            `json:"bomArtifactId,omitempty"`
	BOMVersion     string            `json:"bomVersion,omitempty"`
	HasJenkinsfile bool              `json:"hasJenkinsfile"`
	HasCodeOwners  bool              `json:"hasCodeOwners"`
	Properties     map[string]string `json:"properties,omitempty"`
}

// UsesBOM reports whether the project imports the plugin bill of materials.
func (metadata Metadata) UsesBOM() bool {
	return len(metadata.BOMArtifactID) > 0
}

// ParseProjectFile reads the subset of a pom.xml the workflow relies on.
// Property references such as ${jenkins.baseline} are resolved against the file's own properties.
func ParseProjectFile(reader io.Reader) (Metadata, error) {
	document := etree.NewDocument()
	if _, readError := document.ReadFrom(reader); readError != nil {
		return Metadata{}, readError
	}
	project := document.SelectElement(projectElementConstant)
	if project == nil {
		return Metadata{}, errors.New(missingProjectElementMessage)
	}

	metadata := Metadata{Properties: map[string]string{}}
	if properties := project.SelectElement(propertiesElementConstant); properties != nil {
		for _, property := range properties.ChildElements() {
			metadata.Properties[property.Tag] = strings.TrimSpace(property.Text())
		}
	}

	resolve := func(value string) string {
		return resolvePropertyReferences(value, metadata.Properties)
	}

	metadata.GroupID = resolve(childText(project, groupIDElementConstant))
	metadata.ArtifactID = resolve(childText(project, artifactIDElementConstant))
	metadata.Version = resolve(childText(project, versionElementConstant))
	metadata.Packaging = resolve(childText(project, packagingElementConstant))
	metadata.PluginName = metadata.ArtifactID
	if parent := project.SelectElement(parentElementConstant); parent != nil {
		metadata.ParentGroupID = resolve(childText(parent, groupIDElementConstant))
		metadata.ParentVersion = resolve(childText(parent, versionElementConstant))
	}
	metadata.JenkinsVersion = resolve(metadata.Properties[jenkinsVersionPropertyConstant])
	metadata.JavaLevel = resolve(metadata.Properties[javaLevelPropertyConstant])

	for _, dependency := range project.FindElements(dependencyManagementPathConstant) {
		if childText(dependency, groupIDElementConstant) != bomGroupIDConstant {
			continue
		}
		artifactID := childText(dependency, artifactIDElementConstant)
		if !strings.HasPrefix(artifactID, bomArtifactPrefixConstant) {
			continue
		}
		metadata.BOMArtifactID = resolve(artifactID)
		metadata.BOMVersion = resolve(childText(dependency, versionElementConstant))
		break
	}
	return metadata, nil
}

// CollectMetadata inspects the plugin working copy and attaches the result to the plugin.
// It does not persist anything; see PublishMetadata.
func (plugin *Plugin) CollectMetadata() (Metadata, error) {
	directory := plugin.LocalRepository()
	projectFilePath := filepath.Join(directory, projectFileNameConstant)

	projectFile, openError := os.Open(projectFilePath)
	if openError != nil {
		return Metadata{}, ProjectFileError{Location: projectFilePath, Cause: openError}
	}
	defer projectFile.Close()

	metadata, parseError := ParseProjectFile(projectFile)
	if parseError != nil {
		return Metadata{}, ProjectFileError{Location: projectFilePath, Cause: parseError}
	}
	metadata.PluginName = plugin.Name()
	metadata.HasJenkinsfile = fileExists(filepath.Join(directory, jenkinsfileNameConstant))
	metadata.HasCodeOwners = fileExists(filepath.Join(directory, filepath.FromSlash(codeOwnersRelativePathConstant)))

	plugin.WithMetadata(metadata)
	return metadata, nil
}

// PublishMetadata writes the collected metadata into a cache rooted in the working copy's
// target directory and moves it into the shared cache at path <plugin name>.
func (plugin *Plugin) PublishMetadata(sharedCache *cache.Manager) (*cache.Entry[Metadata], error) {
	metadata := plugin.Metadata()
	if metadata == nil {
		collected, collectError := plugin.CollectMetadata()
		if collectError != nil {
			return nil, collectError
		}
		metadata = &collected
	}

	workingCache, managerError := cache.NewManager(filepath.Join(plugin.LocalRepository(), workingCacheDirectoryConstant), nil)
	if managerError != nil {
		return nil, managerError
	}
	workingEntry := cache.NewEntry(workingCache, cache.RootPath, MetadataCacheKey, *metadata)
	if saveError := workingEntry.Save(); saveError != nil {
		return nil, saveError
	}
	return workingEntry.Move(sharedCache, plugin.Name(), MetadataCacheKey)
}

// LoadMetadata returns previously published metadata for pluginName, or nil when none was stored.
func LoadMetadata(sharedCache *cache.Manager, pluginName string) (*Metadata, error) {
	entry, loadError := cache.Load[Metadata](sharedCache, pluginName, MetadataCacheKey)
	if loadError != nil || entry == nil {
		return nil, loadError
	}
	return &entry.Value, nil
}

func childText(element *etree.Element, tag string) string {
	child := element.SelectElement(tag)
	if child == nil {
		return ""
	}
	return strings.TrimSpace(child.Text())
}

func resolvePropertyReferences(value string, properties map[string]string) string {
	return propertyReferencePattern.ReplaceAllStringFunc(value, func(reference string) string {
		name := propertyReferencePattern.FindStringSubmatch(reference)[1]
		if resolved, found := properties[name]; found && !strings.Contains(resolved, "${") {
			return resolved
		}
		return reference
	})
}

func fileExists(path string) bool {
	info, statError := os.Stat(path)
	return statError == nil && !info.IsDir()
}

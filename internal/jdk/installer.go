package jdk

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	// DefaultImplementation names the distribution downloaded when none is configured.
	DefaultImplementation = "temurin"
	// DefaultDownloadURLTemplate addresses the Adoptium binary API. Placeholders: {major}, {os}, {arch}.
	DefaultDownloadURLTemplate = "https://api.adoptium.net/v3/binary/latest/{major}/ga/{os}/{arch}/jdk/hotspot/normal/eclipse"

	toolchainsDirectoryNameConstant = ".jdks"
	toolchainDirectoryTemplate      = "%s-jdk-%d"
	majorPlaceholderConstant        = "{major}"
	operatingSystemPlaceholder      = "{os}"
	architecturePlaceholderConstant = "{arch}"
	javaExecutableRelativePath      = "bin/java"
	macOSHomeRelativePath           = "Contents/Home"
	directoryPermissionsConstant    = 0o755
	stagingDirectoryPattern         = ".staging-*"
	downloadStatusTemplateConstant  = "unexpected status %d downloading %s"
	unsafeArchivePathTemplate       = "archive entry %q escapes the toolchain directory"
	unsupportedPlatformTemplate     = "unsupported platform %s/%s"
	installErrorTemplateConstant    = "install %s: %v"
	logMessageDownloadingToolchain  = "Downloading toolchain"
	logMessageInstalledToolchain    = "Installed toolchain"
	logMessageUsingConfiguredHome   = "Using configured toolchain home"
	logFieldMajorConstant           = "jdk_major"
	logFieldURLConstant             = "url"
	logFieldHomeConstant            = "java_home"
)

var (
	operatingSystemNames = map[string]string{"linux": "linux", "darwin": "mac"}
	architectureNames    = map[string]string{"amd64": "x64", "arm64": "aarch64"}
)

// InstallError wraps a failure to download or unpack a toolchain.
type InstallError struct {
	Toolchain JDK
	Cause     error
}

// Error describes the failed installation.
func (installError InstallError) Error() string {
	return fmt.Sprintf(installErrorTemplateConstant, installError.Toolchain, installError.Cause)
}

// Unwrap exposes the underlying cause.
func (installError InstallError) Unwrap() error {
	return installError.Cause
}

// InstallerOptions configures an Installer.
type InstallerOptions struct {
	CacheRoot           string
	Implementation      string
	DownloadURLTemplate string
	// ConfiguredHomes maps majors to existing installations that take precedence over downloads.
	ConfiguredHomes map[int]string
	OperatingSystem string
	Architecture    string
}

// Installer locates toolchains and downloads missing ones into <cacheRoot>/.jdks/<impl>-jdk-<major>.
type Installer struct {
	options    InstallerOptions
	httpClient *http.Client
	logger     *zap.Logger
}

// NewInstaller constructs an Installer. Empty options fall back to the defaults and the running platform.
func NewInstaller(options InstallerOptions, httpClient *http.Client, logger *zap.Logger) *Installer {
	if len(strings.TrimSpace(options.Implementation)) == 0 {
		options.Implementation = DefaultImplementation
	}
	if len(strings.TrimSpace(options.DownloadURLTemplate)) == 0 {
		options.DownloadURLTemplate = DefaultDownloadURLTemplate
	}
	if len(options.OperatingSystem) == 0 {
		options.OperatingSystem = runtime.GOOS
	}
	if len(options.Architecture) == 0 {
		options.Architecture = runtime.GOARCH
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Installer{options: options, httpClient: httpClient, logger: logger}
}

// Directory returns the cache directory dedicated to toolchain.
func (installer *Installer) Directory(toolchain JDK) string {
	return filepath.Join(installer.options.CacheRoot, toolchainsDirectoryNameConstant, fmt.Sprintf(toolchainDirectoryTemplate, installer.options.Implementation, toolchain.Major))
}

// Home returns an existing installation for toolchain: a configured home first, then the cache directory.
func (installer *Installer) Home(toolchain JDK) (string, bool) {
	if configuredHome, configured := installer.options.ConfiguredHomes[toolchain.Major]; configured && hasJavaExecutable(configuredHome) {
		return configuredHome, true
	}

	directory := installer.Directory(toolchain)
	for _, candidate := range []string{directory, filepath.Join(directory, macOSHomeRelativePath)} {
		if hasJavaExecutable(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// Ensure returns the toolchain home, downloading and unpacking it when absent.
func (installer *Installer) Ensure(executionContext context.Context, toolchain JDK) (string, error) {
	if home, found := installer.Home(toolchain); found {
		installer.logger.Debug(logMessageUsingConfiguredHome, zap.Int(logFieldMajorConstant, toolchain.Major), zap.String(logFieldHomeConstant, home))
		return home, nil
	}

	downloadURL, urlError := installer.downloadURL(toolchain)
	if urlError != nil {
		return "", InstallError{Toolchain: toolchain, Cause: urlError}
	}

	installer.logger.Info(logMessageDownloadingToolchain, zap.Int(logFieldMajorConstant, toolchain.Major), zap.String(logFieldURLConstant, downloadURL))
	if installError := installer.install(executionContext, downloadURL, installer.Directory(toolchain)); installError != nil {
		return "", InstallError{Toolchain: toolchain, Cause: installError}
	}

	home, found := installer.Home(toolchain)
	if !found {
		return "", InstallError{Toolchain: toolchain, Cause: os.ErrNotExist}
	}
	installer.logger.Info(logMessageInstalledToolchain, zap.Int(logFieldMajorConstant, toolchain.Major), zap.String(logFieldHomeConstant, home))
	return home, nil
}

func (installer *Installer) downloadURL(toolchain JDK) (string, error) {
	operatingSystem, knownOperatingSystem := operatingSystemNames[installer.options.OperatingSystem]
	architecture, knownArchitecture := architectureNames[installer.options.Architecture]
	if !knownOperatingSystem || !knownArchitecture {
		return "", fmt.Errorf(unsupportedPlatformTemplate, installer.options.OperatingSystem, installer.options.Architecture)
	}
	replacer := strings.NewReplacer(
		majorPlaceholderConstant, strconv.Itoa(toolchain.Major),
		operatingSystemPlaceholder, operatingSystem,
		architecturePlaceholderConstant, architecture,
	)
	return replacer.Replace(installer.options.DownloadURLTemplate), nil
}

// install unpacks into a staging directory and renames it into place so a partial download
// never looks like an installation.
func (installer *Installer) install(executionContext context.Context, downloadURL string, destination string) error {
	parentDirectory := filepath.Dir(destination)
	if mkdirError := os.MkdirAll(parentDirectory, directoryPermissionsConstant); mkdirError != nil {
		return mkdirError
	}

	request, requestError := http.NewRequestWithContext(executionContext, http.MethodGet, downloadURL, nil)
	if requestError != nil {
		return requestError
	}
	response, responseError := installer.httpClient.Do(request)
	if responseError != nil {
		return responseError
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return fmt.Errorf(downloadStatusTemplateConstant, response.StatusCode, downloadURL)
	}

	stagingDirectory, stagingError := os.MkdirTemp(parentDirectory, stagingDirectoryPattern)
	if stagingError != nil {
		return stagingError
	}
	defer os.RemoveAll(stagingDirectory)

	if extractError := extractTarGzip(response.Body, stagingDirectory); extractError != nil {
		return extractError
	}

	if removeError := os.RemoveAll(destination); removeError != nil {
		return removeError
	}
	return os.Rename(stagingDirectory, destination)
}

// extractTarGzip unpacks archive into destination, dropping the single top-level directory
// that distribution archives wrap their contents in.
func extractTarGzip(archive io.Reader, destination string) error {
	gzipReader, gzipError := gzip.NewReader(archive)
	if gzipError != nil {
		return gzipError
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)
	for {
		header, headerError := tarReader.Next()
		if errors.Is(headerError, io.EOF) {
			return nil
		}
		if headerError != nil {
			return headerError
		}

		relativePath := stripFirstComponent(header.Name)
		if len(relativePath) == 0 {
			continue
		}
		targetPath := filepath.Join(destination, relativePath)
		if !strings.HasPrefix(targetPath, filepath.Clean(destination)+string(filepath.Separator)) {
			return fmt.Errorf(unsafeArchivePathTemplate, header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if mkdirError := os.MkdirAll(targetPath, directoryPermissionsConstant); mkdirError != nil {
				return mkdirError
			}
		case tar.TypeReg:
			if writeError := writeArchiveFile(tarReader, targetPath, os.FileMode(header.Mode).Perm()); writeError != nil {
				return writeError
			}
		case tar.TypeSymlink:
			if filepath.IsAbs(header.Linkname) {
				return fmt.Errorf(unsafeArchivePathTemplate, header.Linkname)
			}
			if mkdirError := os.MkdirAll(filepath.Dir(targetPath), directoryPermissionsConstant); mkdirError != nil {
				return mkdirError
			}
			if linkError := os.Symlink(header.Linkname, targetPath); linkError != nil {
				return linkError
			}
		}
	}
}

func writeArchiveFile(source io.Reader, targetPath string, mode os.FileMode) error {
	if mkdirError := os.MkdirAll(filepath.Dir(targetPath), directoryPermissionsConstant); mkdirError != nil {
		return mkdirError
	}
	file, createError := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if createError != nil {
		return createError
	}
	if _, copyError := io.Copy(file, source); copyError != nil {
		file.Close()
		return copyError
	}
	return file.Close()
}

func stripFirstComponent(archivePath string) string {
	cleaned := strings.TrimPrefix(filepath.ToSlash(filepath.Clean(archivePath)), "./")
	separatorIndex := strings.Index(cleaned, "/")
	if separatorIndex < 0 {
		return ""
	}
	return cleaned[separatorIndex+1:]
}

func hasJavaExecutable(home string) bool {
	if len(strings.TrimSpace(home)) == 0 {
		return false
	}
	info, statError := os.Stat(filepath.Join(home, filepath.FromSlash(javaExecutableRelativePath)))
	return statError == nil && !info.IsDir()
}

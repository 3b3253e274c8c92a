package jdk_test

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/pluginmodernizer/internal/jdk"
)

type archiveMember struct {
	name     string
	body     string
	typeflag byte
	linkname string
}

func buildToolchainArchive(testInstance *testing.T, members []archiveMember) []byte {
	testInstance.Helper()
	var archive bytes.Buffer
	gzipWriter := gzip.NewWriter(&archive)
	tarWriter := tar.NewWriter(gzipWriter)
	for _, member := range members {
		header := &tar.Header{Name: member.name, Typeflag: member.typeflag, Mode: 0o755, Size: int64(len(member.body)), Linkname: member.linkname}
		if member.typeflag != tar.TypeReg {
			header.Size = 0
		}
		require.NoError(testInstance, tarWriter.WriteHeader(header))
		if member.typeflag == tar.TypeReg {
			_, writeError := tarWriter.Write([]byte(member.body))
			require.NoError(testInstance, writeError)
		}
	}
	require.NoError(testInstance, tarWriter.Close())
	require.NoError(testInstance, gzipWriter.Close())
	return archive.Bytes()
}

func TestInstallerEnsureDownloadsOnce(testInstance *testing.T) {
	archive := buildToolchainArchive(testInstance, []archiveMember{
		{name: "jdk-17.0.12+7/", typeflag: tar.TypeDir},
		{name: "jdk-17.0.12+7/bin/java", body: "#!/bin/sh\n", typeflag: tar.TypeReg},
		{name: "jdk-17.0.12+7/release", body: "JAVA_VERSION=\"17.0.12\"\n", typeflag: tar.TypeReg},
	})

	var requestCount atomic.Int32
	var requestedPath atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		requestCount.Add(1)
		requestedPath.Store(request.URL.Path)
		_, _ = responseWriter.Write(archive)
	}))
	defer server.Close()

	cacheRoot := testInstance.TempDir()
	installer := jdk.NewInstaller(jdk.InstallerOptions{
		CacheRoot:           cacheRoot,
		DownloadURLTemplate: server.URL + "/{major}/{os}/{arch}",
		OperatingSystem:     "linux",
		Architecture:        "amd64",
	}, server.Client(), zap.NewNop())

	toolchain := *jdk.Get(17)
	home, ensureError := installer.Ensure(context.Background(), toolchain)
	require.NoError(testInstance, ensureError)
	require.Equal(testInstance, filepath.Join(cacheRoot, ".jdks", "temurin-jdk-17"), home)
	require.FileExists(testInstance, filepath.Join(home, "bin", "java"))
	require.Equal(testInstance, "/17/linux/x64", requestedPath.Load())

	_, ensureError = installer.Ensure(context.Background(), toolchain)
	require.NoError(testInstance, ensureError)
	require.Equal(testInstance, int32(1), requestCount.Load())
}

func TestInstallerPrefersConfiguredHome(testInstance *testing.T) {
	configuredHome := testInstance.TempDir()
	require.NoError(testInstance, os.MkdirAll(filepath.Join(configuredHome, "bin"), 0o755))
	require.NoError(testInstance, os.WriteFile(filepath.Join(configuredHome, "bin", "java"), []byte("java"), 0o755))

	installer := jdk.NewInstaller(jdk.InstallerOptions{
		CacheRoot:       testInstance.TempDir(),
		ConfiguredHomes: map[int]string{21: configuredHome},
	}, nil, nil)

	home, found := installer.Home(*jdk.Get(21))
	require.True(testInstance, found)
	require.Equal(testInstance, configuredHome, home)

	_, found = installer.Home(*jdk.Get(11))
	require.False(testInstance, found)
}

func TestInstallerRejectsUnsafeArchives(testInstance *testing.T) {
	archive := buildToolchainArchive(testInstance, []archiveMember{
		{name: "jdk/../../../escape", body: "x", typeflag: tar.TypeReg},
	})
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		_, _ = responseWriter.Write(archive)
	}))
	defer server.Close()

	installer := jdk.NewInstaller(jdk.InstallerOptions{
		CacheRoot:           testInstance.TempDir(),
		DownloadURLTemplate: server.URL + "/{major}",
		OperatingSystem:     "linux",
		Architecture:        "arm64",
	}, server.Client(), zap.NewNop())

	_, ensureError := installer.Ensure(context.Background(), *jdk.Get(11))
	require.Error(testInstance, ensureError)
	require.IsType(testInstance, jdk.InstallError{}, ensureError)
}

func TestInstallerReportsHTTPFailures(testInstance *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		responseWriter.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	installer := jdk.NewInstaller(jdk.InstallerOptions{
		CacheRoot:           testInstance.TempDir(),
		DownloadURLTemplate: server.URL + "/{major}",
		OperatingSystem:     "darwin",
		Architecture:        "arm64",
	}, server.Client(), zap.NewNop())

	_, ensureError := installer.Ensure(context.Background(), *jdk.Get(21))
	require.Error(testInstance, ensureError)
	require.Contains(testInstance, ensureError.Error(), "unexpected status 404")

	unsupported := jdk.NewInstaller(jdk.InstallerOptions{CacheRoot: testInstance.TempDir(), OperatingSystem: "plan9", Architecture: "amd64"}, nil, zap.NewNop())
	_, ensureError = unsupported.Ensure(context.Background(), *jdk.Get(21))
	require.ErrorContains(testInstance, ensureError, "unsupported platform plan9/amd64")
}

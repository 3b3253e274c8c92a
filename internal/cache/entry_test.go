package cache_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/pluginmodernizer/internal/cache"
)

func TestEntrySaveAndRefresh(testInstance *testing.T) {
	manager := newTestManager(testInstance)
	entry := cache.NewEntry(manager, testPluginPathConstant, testMetadataKeyConstant, snapshotFixture{Count: 3})

	_, missingError := entry.Refresh()
	require.ErrorIs(testInstance, missingError, cache.ErrEntryNotFound)

	require.NoError(testInstance, entry.Save())
	entry.Value.Count = 99

	refreshed, refreshError := entry.Refresh()
	require.NoError(testInstance, refreshError)
	require.NotSame(testInstance, entry, refreshed)
	require.Equal(testInstance, 3, refreshed.Value.Count)
	require.Equal(testInstance, entry.Key(), refreshed.Key())
	require.Equal(testInstance, entry.Path(), refreshed.Path())

	require.NoError(testInstance, refreshed.Delete())
	loaded, loadError := cache.Load[snapshotFixture](manager, testPluginPathConstant, testMetadataKeyConstant)
	require.NoError(testInstance, loadError)
	require.Nil(testInstance, loaded)
}

func TestEntryMoveAndCopy(testInstance *testing.T) {
	testCases := []struct {
		name         string
		relocate     func(entry *cache.Entry[snapshotFixture], destination *cache.Manager) (*cache.Entry[snapshotFixture], error)
		expectSource bool
	}{
		{
			name: "move",
			relocate: func(entry *cache.Entry[snapshotFixture], destination *cache.Manager) (*cache.Entry[snapshotFixture], error) {
				return entry.Move(destination, testPluginPathConstant, testMetadataKeyConstant)
			},
			expectSource: false,
		},
		{
			name: "copy",
			relocate: func(entry *cache.Entry[snapshotFixture], destination *cache.Manager) (*cache.Entry[snapshotFixture], error) {
				return entry.Copy(destination, testPluginPathConstant, testMetadataKeyConstant)
			},
			expectSource: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			source := newTestManager(testInstance)
			destination := newTestManager(testInstance)

			entry := cache.NewEntry(source, cache.RootPath, "working.json", snapshotFixture{Count: 5, Plugins: map[string]string{"git": "1"}})
			require.NoError(testInstance, entry.Save())
			entry.Value.Count = 42

			relocated, relocateError := testCase.relocate(entry, destination)
			require.NoError(testInstance, relocateError)
			require.Same(testInstance, destination, relocated.Manager())
			require.Equal(testInstance, testPluginPathConstant, relocated.Path())
			require.Equal(testInstance, testMetadataKeyConstant, relocated.Key())
			require.Equal(testInstance, 5, relocated.Value.Count)

			destinationEntry, destinationError := cache.Load[snapshotFixture](destination, testPluginPathConstant, testMetadataKeyConstant)
			require.NoError(testInstance, destinationError)
			require.NotNil(testInstance, destinationEntry)

			sourceEntry, sourceError := cache.Load[snapshotFixture](source, cache.RootPath, "working.json")
			require.NoError(testInstance, sourceError)
			if testCase.expectSource {
				require.NotNil(testInstance, sourceEntry)
				require.Equal(testInstance, destinationEntry.Value, sourceEntry.Value)
			} else {
				require.Nil(testInstance, sourceEntry)
			}
		})
	}
}

func TestEntryMoveOntoItselfKeepsValue(testInstance *testing.T) {
	manager := newTestManager(testInstance)
	entry := cache.NewEntry(manager, testPluginPathConstant, testMetadataKeyConstant, snapshotFixture{Count: 1})
	require.NoError(testInstance, entry.Save())

	moved, moveError := entry.Move(manager, testPluginPathConstant, testMetadataKeyConstant)
	require.NoError(testInstance, moveError)
	require.Equal(testInstance, 1, moved.Value.Count)

	exists, existsError := manager.Exists(testPluginPathConstant, testMetadataKeyConstant)
	require.NoError(testInstance, existsError)
	require.True(testInstance, exists)
}

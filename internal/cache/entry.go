package cache

import (
	"encoding/json"
)

const (
	operationMoveConstant = "move"
	operationCopyConstant = "copy"
)

// Entry couples a typed value with its logical identity (manager, path, key).
// The manager owns the stored file; the entry owns only the in-memory view.
type Entry[T any] struct {
	manager *Manager
	path    string
	key     string
	Value   T
}

// NewEntry builds an unsaved entry with the supplied identity.
func NewEntry[T any](manager *Manager, path string, key string, value T) *Entry[T] {
	return &Entry[T]{manager: manager, path: path, key: key, Value: value}
}

// Load returns the entry stored at (path, key), or nil without error when nothing is stored there.
func Load[T any](manager *Manager, path string, key string) (*Entry[T], error) {
	return load[T](manager, path, key, true)
}

func load[T any](manager *Manager, path string, key string, useMemo bool) (*Entry[T], error) {
	if manager == nil {
		return nil, ErrRootNotConfigured
	}
	location, locationError := manager.Location(path, key)
	if locationError != nil {
		return nil, locationError
	}

	payload, found, readError := manager.readPayload(location, useMemo)
	if readError != nil {
		return nil, readError
	}
	if !found {
		return nil, nil
	}

	var value T
	if decodeError := json.Unmarshal(payload, &value); decodeError != nil {
		return nil, IOError{Operation: operationDecodeConstant, Location: location, Cause: decodeError}
	}
	return NewEntry(manager, path, key, value), nil
}

// Key returns the entry key.
func (entry *Entry[T]) Key() string {
	return entry.key
}

// Path returns the entry directory relative to the cache root.
func (entry *Entry[T]) Path() string {
	return entry.path
}

// Manager returns the owning manager.
func (entry *Entry[T]) Manager() *Manager {
	return entry.manager
}

// Location returns the file backing the entry.
func (entry *Entry[T]) Location() (string, error) {
	if entry.manager == nil {
		return "", ErrRootNotConfigured
	}
	return entry.manager.Location(entry.path, entry.key)
}

// Save persists the current value, overwriting what is stored.
func (entry *Entry[T]) Save() error {
	if entry.manager == nil {
		return ErrRootNotConfigured
	}
	return entry.manager.Put(entry.path, entry.key, entry.Value)
}

// Refresh re-reads the stored value from disk into a new entry sharing this identity.
func (entry *Entry[T]) Refresh() (*Entry[T], error) {
	refreshed, loadError := load[T](entry.manager, entry.path, entry.key, false)
	if loadError != nil {
		return nil, loadError
	}
	if refreshed == nil {
		return nil, ErrEntryNotFound
	}
	return refreshed, nil
}

// Delete removes the stored value.
func (entry *Entry[T]) Delete() error {
	if entry.manager == nil {
		return ErrRootNotConfigured
	}
	return entry.manager.Remove(entry.path, entry.key)
}

// Move relocates the stored value to (manager, path, key) and removes the source.
// The returned entry carries the new identity.
func (entry *Entry[T]) Move(manager *Manager, path string, key string) (*Entry[T], error) {
	return entry.relocate(manager, path, key, true)
}

// Copy stores the current on-disk value at (manager, path, key) and leaves the source in place.
func (entry *Entry[T]) Copy(manager *Manager, path string, key string) (*Entry[T], error) {
	return entry.relocate(manager, path, key, false)
}

func (entry *Entry[T]) relocate(manager *Manager, path string, key string, removeSource bool) (*Entry[T], error) {
	operation := operationCopyConstant
	if removeSource {
		operation = operationMoveConstant
	}
	if manager == nil {
		return nil, IOError{Operation: operation, Location: key, Cause: ErrRootNotConfigured}
	}

	current, refreshError := entry.Refresh()
	if refreshError != nil {
		return nil, refreshError
	}

	sourceLocation, sourceError := entry.Location()
	if sourceError != nil {
		return nil, sourceError
	}
	destinationLocation, destinationError := manager.Location(path, key)
	if destinationError != nil {
		return nil, destinationError
	}

	relocated := NewEntry(manager, path, key, current.Value)
	if sourceLocation == destinationLocation {
		return relocated, nil
	}
	if saveError := relocated.Save(); saveError != nil {
		return nil, saveError
	}
	if removeSource {
		if deleteError := entry.Delete(); deleteError != nil {
			return nil, deleteError
		}
	}
	return relocated, nil
}

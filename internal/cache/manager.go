package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const (
	// RootPath addresses entries stored directly under the cache root.
	RootPath = "."

	defaultMemoSizeConstant         = 256
	directoryPermissionsConstant    = 0o755
	filePermissionsConstant         = 0o644
	temporaryFilePatternTemplate    = ".%s.*.tmp"
	checksumTemplateConstant        = "%016x"
	parentDirectoryLiteralConstant  = ".."
	operationInitConstant           = "init"
	operationReadConstant           = "read"
	operationWriteConstant          = "write"
	operationEncodeConstant         = "encode"
	operationDecodeConstant         = "decode"
	operationRemoveConstant         = "remove"
	emptyKeyMessageConstant         = "key must not be empty"
	keySeparatorMessageConstant     = "key must not contain path separators"
	absolutePathMessageConstant     = "path must be relative to the cache root"
	escapingPathMessageConstant     = "path must stay within the cache root"
	checksumMismatchMessageConstant = "checksum mismatch"
	missingPayloadMessageConstant   = "payload missing"
	logMessageStoredConstant        = "Stored cache entry"
	logMessageRemovedConstant       = "Removed cache entry"
	logMessageCreatedRootConstant   = "Prepared cache root"
	logFieldLocationConstant        = "location"
	logFieldRootConstant            = "cache_root"
	logFieldPayloadBytesConstant    = "payload_bytes"
)

type envelope struct {
	Checksum string          `json:"checksum"`
	Payload  json.RawMessage `json:"payload"`
}

// Manager owns one cache root directory and performs typed get/put/remove by (path, key).
// It is safe for concurrent use; it does not serialize logical writers of the same location.
type Manager struct {
	root   string
	logger *zap.Logger
	memo   *lru.Cache[string, []byte]
}

// NewManager constructs a manager rooted at root. The directory is created lazily by Init or the first Put.
func NewManager(root string, logger *zap.Logger) (*Manager, error) {
	trimmedRoot := strings.TrimSpace(root)
	if len(trimmedRoot) == 0 {
		return nil, ErrRootNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	memo, memoError := lru.New[string, []byte](defaultMemoSizeConstant)
	if memoError != nil {
		return nil, memoError
	}

	absoluteRoot, absoluteError := filepath.Abs(trimmedRoot)
	if absoluteError != nil {
		return nil, IOError{Operation: operationInitConstant, Location: trimmedRoot, Cause: absoluteError}
	}

	return &Manager{root: absoluteRoot, logger: logger, memo: memo}, nil
}

// Init creates the root directory when it does not exist.
func (manager *Manager) Init() error {
	if mkdirError := os.MkdirAll(manager.root, directoryPermissionsConstant); mkdirError != nil {
		return IOError{Operation: operationInitConstant, Location: manager.root, Cause: mkdirError}
	}
	manager.logger.Debug(logMessageCreatedRootConstant, zap.String(logFieldRootConstant, manager.root))
	return nil
}

// Root returns the absolute cache root directory.
func (manager *Manager) Root() string {
	return manager.root
}

// Location returns the file that stores (path, key).
func (manager *Manager) Location(path string, key string) (string, error) {
	directory, directoryError := manager.Directory(path)
	if directoryError != nil {
		return "", InvalidLocationError{Path: path, Key: key, Message: directoryError.Error()}
	}

	trimmedKey := strings.TrimSpace(key)
	switch {
	case len(trimmedKey) == 0:
		return "", InvalidLocationError{Path: path, Key: key, Message: emptyKeyMessageConstant}
	case strings.ContainsAny(trimmedKey, `/\`) || trimmedKey == RootPath || trimmedKey == parentDirectoryLiteralConstant:
		return "", InvalidLocationError{Path: path, Key: key, Message: keySeparatorMessageConstant}
	}

	return filepath.Join(directory, trimmedKey), nil
}

// Directory returns the directory under the root addressed by path.
func (manager *Manager) Directory(path string) (string, error) {
	trimmedPath := strings.TrimSpace(path)
	if len(trimmedPath) == 0 {
		trimmedPath = RootPath
	}
	if filepath.IsAbs(trimmedPath) {
		return "", errors.New(absolutePathMessageConstant)
	}

	cleanedPath := filepath.Clean(trimmedPath)
	if cleanedPath == parentDirectoryLiteralConstant || strings.HasPrefix(cleanedPath, parentDirectoryLiteralConstant+string(filepath.Separator)) {
		return "", errors.New(escapingPathMessageConstant)
	}
	return filepath.Join(manager.root, cleanedPath), nil
}

// Exists reports whether (path, key) is stored.
func (manager *Manager) Exists(path string, key string) (bool, error) {
	location, locationError := manager.Location(path, key)
	if locationError != nil {
		return false, locationError
	}
	if _, statError := os.Stat(location); statError != nil {
		if errors.Is(statError, os.ErrNotExist) {
			return false, nil
		}
		return false, IOError{Operation: operationReadConstant, Location: location, Cause: statError}
	}
	return true, nil
}

// Put serializes value and stores it at (path, key), overwriting any existing entry.
func (manager *Manager) Put(path string, key string, value any) error {
	location, locationError := manager.Location(path, key)
	if locationError != nil {
		return locationError
	}

	payload, encodeError := json.Marshal(value)
	if encodeError != nil {
		return IOError{Operation: operationEncodeConstant, Location: location, Cause: encodeError}
	}
	encoded, envelopeError := json.Marshal(envelope{Checksum: checksum(payload), Payload: payload})
	if envelopeError != nil {
		return IOError{Operation: operationEncodeConstant, Location: location, Cause: envelopeError}
	}

	if writeError := writeFileAtomically(location, encoded); writeError != nil {
		return IOError{Operation: operationWriteConstant, Location: location, Cause: writeError}
	}

	manager.memo.Add(location, payload)
	manager.logger.Debug(logMessageStoredConstant, zap.String(logFieldLocationConstant, location), zap.Int(logFieldPayloadBytesConstant, len(payload)))
	return nil
}

// Remove deletes (path, key). Removing an absent entry is not an error.
func (manager *Manager) Remove(path string, key string) error {
	location, locationError := manager.Location(path, key)
	if locationError != nil {
		return locationError
	}

	manager.memo.Remove(location)
	if removeError := os.Remove(location); removeError != nil && !errors.Is(removeError, os.ErrNotExist) {
		return IOError{Operation: operationRemoveConstant, Location: location, Cause: removeError}
	}
	manager.logger.Debug(logMessageRemovedConstant, zap.String(logFieldLocationConstant, location))
	return nil
}

// RemovePath deletes every entry stored under path. The root itself cannot be removed this way.
func (manager *Manager) RemovePath(path string) error {
	directory, directoryError := manager.Directory(path)
	if directoryError != nil {
		return InvalidLocationError{Path: path, Message: directoryError.Error()}
	}
	if directory == manager.root {
		return InvalidLocationError{Path: path, Message: escapingPathMessageConstant}
	}

	manager.memo.Purge()
	if removeError := os.RemoveAll(directory); removeError != nil {
		return IOError{Operation: operationRemoveConstant, Location: directory, Cause: removeError}
	}
	manager.logger.Debug(logMessageRemovedConstant, zap.String(logFieldLocationConstant, directory))
	return nil
}

// readPayload returns the raw JSON payload stored at location. When useMemo is false the
// memo is bypassed and refreshed from disk.
func (manager *Manager) readPayload(location string, useMemo bool) ([]byte, bool, error) {
	if useMemo {
		if payload, cached := manager.memo.Get(location); cached {
			return payload, true, nil
		}
	}

	contents, readError := os.ReadFile(location)
	if readError != nil {
		if errors.Is(readError, os.ErrNotExist) {
			manager.memo.Remove(location)
			return nil, false, nil
		}
		return nil, false, IOError{Operation: operationReadConstant, Location: location, Cause: readError}
	}

	var stored envelope
	if decodeError := json.Unmarshal(contents, &stored); decodeError != nil {
		return nil, false, IOError{Operation: operationDecodeConstant, Location: location, Cause: decodeError}
	}
	if len(stored.Payload) == 0 {
		return nil, false, CorruptEntryError{Location: location, Reason: missingPayloadMessageConstant}
	}
	if checksum(stored.Payload) != stored.Checksum {
		return nil, false, CorruptEntryError{Location: location, Reason: checksumMismatchMessageConstant}
	}

	manager.memo.Add(location, stored.Payload)
	return stored.Payload, true, nil
}

func checksum(payload []byte) string {
	return fmt.Sprintf(checksumTemplateConstant, xxhash.Sum64(payload))
}

func writeFileAtomically(location string, contents []byte) error {
	directory := filepath.Dir(location)
	if mkdirError := os.MkdirAll(directory, directoryPermissionsConstant); mkdirError != nil {
		return mkdirError
	}

	temporaryFile, createError := os.CreateTemp(directory, fmt.Sprintf(temporaryFilePatternTemplate, filepath.Base(location)))
	if createError != nil {
		return createError
	}
	temporaryPath := temporaryFile.Name()

	_, writeError := temporaryFile.Write(contents)
	if writeError == nil {
		writeError = temporaryFile.Sync()
	}
	closeError := temporaryFile.Close()
	if writeError == nil {
		writeError = closeError
	}
	if writeError == nil {
		writeError = os.Chmod(temporaryPath, filePermissionsConstant)
	}
	if writeError == nil {
		writeError = os.Rename(temporaryPath, location)
	}
	if writeError != nil {
		_ = os.Remove(temporaryPath)
		return writeError
	}
	return nil
}

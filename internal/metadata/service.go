package metadata

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/temirov/pluginmodernizer/internal/cache"
)

const (
	// DefaultUpdateCenterURL is the production registry snapshot.
	DefaultUpdateCenterURL = "https://updates.jenkins.io/current/update-center.actual.json"
	// DefaultHealthScoresURL is the production health score snapshot.
	DefaultHealthScoresURL = "https://plugin-health.jenkins.io/api/scores"
	// DefaultInstallationStatsURL is the monthly installation report; {month} expands to the previous month as YYYYMM.
	DefaultInstallationStatsURL = "https://raw.githubusercontent.com/jenkins-infra/infra-statistics/gh-pages/jenkins-stats/svg/{month}-plugins.csv"
	// DefaultPluginVersionsURL is the production version table.
	DefaultPluginVersionsURL = "https://updates.jenkins.io/current/plugin-versions.json"

	// SourceCache marks a snapshot served from the cache.
	SourceCache = "cache"
	// SourceRemote marks a snapshot fetched from its endpoint.
	SourceRemote = "remote"

	monthPlaceholderConstant = "{month}"
	monthLayoutConstant      = "200601"

	cacheMissingErrorMessageConstant   = "metadata cache manager must be provided"
	fetcherMissingErrorMessageConstant = "metadata fetcher must be provided"

	logMessageSnapshotFetchedConstant = "Fetched metadata snapshot"
	logMessageSnapshotCachedConstant  = "Using cached metadata snapshot"
	logMessageSnapshotsRefreshed      = "Removed cached metadata snapshots"
	logFieldSnapshotConstant          = "snapshot"
	logFieldURLConstant               = "url"
	logFieldBytesConstant             = "bytes"
	logFieldCacheRootConstant         = "cache_root"
)

// ErrCacheNotConfigured indicates the service was created without a cache manager.
var ErrCacheNotConfigured = errors.New(cacheMissingErrorMessageConstant)

// ErrFetcherNotConfigured indicates the service was created without a fetcher.
var ErrFetcherNotConfigured = errors.New(fetcherMissingErrorMessageConstant)

// Endpoints holds the remote location of every snapshot.
type Endpoints struct {
	UpdateCenterURL      string
	HealthScoresURL      string
	InstallationStatsURL string
	PluginVersionsURL    string
}

// DefaultEndpoints returns the production endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		UpdateCenterURL:      DefaultUpdateCenterURL,
		HealthScoresURL:      DefaultHealthScoresURL,
		InstallationStatsURL: DefaultInstallationStatsURL,
		PluginVersionsURL:    DefaultPluginVersionsURL,
	}
}

func (endpoints Endpoints) withDefaults() Endpoints {
	defaults := DefaultEndpoints()
	if len(strings.TrimSpace(endpoints.UpdateCenterURL)) == 0 {
		endpoints.UpdateCenterURL = defaults.UpdateCenterURL
	}
	if len(strings.TrimSpace(endpoints.HealthScoresURL)) == 0 {
		endpoints.HealthScoresURL = defaults.HealthScoresURL
	}
	if len(strings.TrimSpace(endpoints.InstallationStatsURL)) == 0 {
		endpoints.InstallationStatsURL = defaults.InstallationStatsURL
	}
	if len(strings.TrimSpace(endpoints.PluginVersionsURL)) == 0 {
		endpoints.PluginVersionsURL = defaults.PluginVersionsURL
	}
	return endpoints
}

// FetchObserver is notified every time a snapshot is resolved.
type FetchObserver interface {
	SnapshotResolved(snapshot string, source string)
}

// ServiceConfiguration wires the collaborators of a Service.
type ServiceConfiguration struct {
	Cache     *cache.Manager
	Fetcher   Fetcher
	Endpoints Endpoints
	Observer  FetchObserver
	Clock     func() time.Time
}

// Service resolves snapshots with get-or-fetch-and-cache semantics. Concurrent first-time
// lookups of the same snapshot share one fetch.
type Service struct {
	logger       *zap.Logger
	cache        *cache.Manager
	fetcher      Fetcher
	endpoints    Endpoints
	observer     FetchObserver
	clock        func() time.Time
	requestGroup singleflight.Group
	mutex        sync.RWMutex
	resolved     map[string]any
}

// NewService validates configuration and constructs a Service.
func NewService(logger *zap.Logger, configuration ServiceConfiguration) (*Service, error) {
	if configuration.Cache == nil {
		return nil, ErrCacheNotConfigured
	}
	if configuration.Fetcher == nil {
		return nil, ErrFetcherNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := configuration.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		logger:    logger,
		cache:     configuration.Cache,
		fetcher:   configuration.Fetcher,
		endpoints: configuration.Endpoints.withDefaults(),
		observer:  configuration.Observer,
		clock:     clock,
		resolved:  map[string]any{},
	}, nil
}

// UpdateCenter returns the registry snapshot.
func (service *Service) UpdateCenter(executionContext context.Context) (UpdateCenter, error) {
	return resolveSnapshot(executionContext, service, UpdateCenterKey, service.endpoints.UpdateCenterURL, DecodeUpdateCenter)
}

// HealthScores returns the health score snapshot.
func (service *Service) HealthScores(executionContext context.Context) (HealthScores, error) {
	return resolveSnapshot(executionContext, service, HealthScoresKey, service.endpoints.HealthScoresURL, DecodeHealthScores)
}

// InstallationStats returns the installation statistics snapshot.
func (service *Service) InstallationStats(executionContext context.Context) (InstallationStats, error) {
	return resolveSnapshot(executionContext, service, InstallationStatsKey, service.installationStatsURL(), DecodeInstallationStats)
}

// PluginVersions returns the version table snapshot.
func (service *Service) PluginVersions(executionContext context.Context) (PluginVersions, error) {
	return resolveSnapshot(executionContext, service, PluginVersionsKey, service.endpoints.PluginVersionsURL, DecodePluginVersions)
}

// Preload resolves all four snapshots so workers only read them afterwards.
func (service *Service) Preload(executionContext context.Context) error {
	group, groupContext := errgroup.WithContext(executionContext)
	group.Go(func() error {
		_, resolveError := service.UpdateCenter(groupContext)
		return resolveError
	})
	group.Go(func() error {
		_, resolveError := service.HealthScores(groupContext)
		return resolveError
	})
	group.Go(func() error {
		_, resolveError := service.InstallationStats(groupContext)
		return resolveError
	})
	group.Go(func() error {
		_, resolveError := service.PluginVersions(groupContext)
		return resolveError
	})
	return group.Wait()
}

// Refresh removes every cached snapshot so the next lookup fetches it again.
func (service *Service) Refresh() error {
	service.mutex.Lock()
	service.resolved = map[string]any{}
	service.mutex.Unlock()

	var removalErrors []error
	for _, key := range Keys() {
		if removeError := service.cache.Remove(cache.RootPath, key); removeError != nil {
			removalErrors = append(removalErrors, removeError)
		}
	}
	if joinedError := errors.Join(removalErrors...); joinedError != nil {
		return joinedError
	}
	service.logger.Info(logMessageSnapshotsRefreshed, zap.String(logFieldCacheRootConstant, service.cache.Root()))
	return nil
}

func (service *Service) installationStatsURL() string {
	previousMonth := service.clock().UTC().AddDate(0, -1, 0)
	return strings.ReplaceAll(service.endpoints.InstallationStatsURL, monthPlaceholderConstant, previousMonth.Format(monthLayoutConstant))
}

func (service *Service) remembered(key string) (any, bool) {
	service.mutex.RLock()
	defer service.mutex.RUnlock()
	value, found := service.resolved[key]
	return value, found
}

func (service *Service) remember(key string, value any) {
	service.mutex.Lock()
	defer service.mutex.Unlock()
	service.resolved[key] = value
}

func (service *Service) observe(key string, source string) {
	if service.observer != nil {
		service.observer.SnapshotResolved(key, source)
	}
}

func resolveSnapshot[T any](executionContext context.Context, service *Service, key string, url string, decode func([]byte) (T, error)) (T, error) {
	if value, found := service.remembered(key); found {
		return value.(T), nil
	}

	result, resolveError, _ := service.requestGroup.Do(key, func() (any, error) {
		if value, found := service.remembered(key); found {
			return value, nil
		}

		entry, loadError := cache.Load[T](service.cache, cache.RootPath, key)
		if loadError != nil {
			return nil, loadError
		}
		if entry != nil {
			service.logger.Debug(logMessageSnapshotCachedConstant, zap.String(logFieldSnapshotConstant, key))
			service.observe(key, SourceCache)
			service.remember(key, entry.Value)
			return entry.Value, nil
		}

		payload, fetchError := service.fetcher.Fetch(executionContext, url)
		if fetchError != nil {
			return nil, fetchError
		}
		value, decodeError := decode(payload)
		if decodeError != nil {
			return nil, decodeError
		}
		if saveError := cache.NewEntry(service.cache, cache.RootPath, key, value).Save(); saveError != nil {
			return nil, saveError
		}

		service.logger.Info(logMessageSnapshotFetchedConstant,
			zap.String(logFieldSnapshotConstant, key),
			zap.String(logFieldURLConstant, url),
			zap.Int(logFieldBytesConstant, len(payload)),
		)
		service.observe(key, SourceRemote)
		service.remember(key, value)
		return value, nil
	})
	if resolveError != nil {
		var zero T
		return zero, resolveError
	}
	return result.(T), nil
}

// Package resolver maps an asset's persistent storage locator to a
// transient, playable URL. Locally stored content is materialized through
// the engine's blob endpoint backed by the content-addressed store; any
// other locator is treated as a remote object key and proxied through the
// storage gateway URL template.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/cutroom/cutroom-engine/internal/config"
	"github.com/cutroom/cutroom-engine/internal/store"
)

// LocalScheme prefixes locators whose payload lives in the local
// content-addressed store.
const LocalScheme = "local:"

var (
	// ErrResolution indicates a locator could not be turned into a playable
	// URL. Consumers degrade gracefully: the filmstrip engine shows an error
	// state and the audio engine skips the clip's track.
	ErrResolution = errors.New("url resolution failed")

	// ErrSecurityBlocked indicates a locator failed the URL validation
	// policy. Surfaced distinctly from generic failures so callers can
	// explain "blocked for security" rather than "broken file".
	ErrSecurityBlocked = errors.New("url blocked by security policy")
)

// Resolution is a playable URL plus the credentials mode consumers should
// use when fetching it.
type Resolution struct {
	URL string
	// Anonymous is set under the custom policy for cross-origin URLs that
	// should be fetched with anonymous credentials.
	Anonymous bool
}

// Resolver caches resolutions per asset id so batch resolution of a whole
// timeline runs concurrently without duplicate work.
type Resolver struct {
	store          *store.Store
	baseURL        string
	gatewayURL     string
	policy         string
	allowedOrigins map[string]bool
	logger         *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	once sync.Once
	res  Resolution
	err  error
}

type Options struct {
	// BaseURL is the engine's own address, used for local blob URLs.
	BaseURL string
	// GatewayURLTemplate expands a remote object key via %s.
	GatewayURLTemplate string
	// Policy is one of config.PolicyStrict, PolicyPermissive, PolicyCustom.
	Policy string
	// AllowedOrigins lists cross-origin hosts that are always allowed.
	AllowedOrigins []string
}

func New(st *store.Store, opts Options, logger *slog.Logger) *Resolver {
	origins := make(map[string]bool, len(opts.AllowedOrigins))
	for _, o := range opts.AllowedOrigins {
		origins[strings.ToLower(o)] = true
	}
	policy := opts.Policy
	if policy == "" {
		policy = config.PolicyStrict
	}
	return &Resolver{
		store:          st,
		baseURL:        strings.TrimSuffix(opts.BaseURL, "/"),
		gatewayURL:     opts.GatewayURLTemplate,
		policy:         policy,
		allowedOrigins: origins,
		logger:         logger,
		entries:        make(map[string]*entry),
	}
}

// Resolve turns a locator into a playable URL, caching per asset id.
// Concurrent calls for the same asset share one resolution.
func (r *Resolver) Resolve(ctx context.Context, assetID, locator string) (Resolution, error) {
	r.mu.Lock()
	e, ok := r.entries[assetID]
	if !ok {
		e = &entry{}
		r.entries[assetID] = e
	}
	r.mu.Unlock()

	e.once.Do(func() {
		e.res, e.err = r.resolve(ctx, locator)
		if e.err != nil {
			// Failed resolutions are not cached; a later call may succeed
			// once the store or gateway recovers.
			r.mu.Lock()
			delete(r.entries, assetID)
			r.mu.Unlock()
		}
	})
	return e.res, e.err
}

// ResolveAll resolves every asset in the batch concurrently, returning the
// resolutions that succeeded. Individual failures are logged and skipped;
// one broken asset must not block the rest of the timeline.
func (r *Resolver) ResolveAll(ctx context.Context, locators map[string]string) map[string]Resolution {
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		out = make(map[string]Resolution, len(locators))
	)
	for assetID, locator := range locators {
		wg.Add(1)
		go func(assetID, locator string) {
			defer wg.Done()
			res, err := r.Resolve(ctx, assetID, locator)
			if err != nil {
				if r.logger != nil {
					r.logger.Warn("asset resolution failed", "asset_id", assetID, "error", err)
				}
				return
			}
			mu.Lock()
			out[assetID] = res
			mu.Unlock()
		}(assetID, locator)
	}
	wg.Wait()
	return out
}

// Invalidate drops the cached resolution for an asset. Called when the
// asset is removed or its backing object changes.
func (r *Resolver) Invalidate(assetID string) {
	r.mu.Lock()
	delete(r.entries, assetID)
	r.mu.Unlock()
}

func (r *Resolver) resolve(ctx context.Context, locator string) (Resolution, error) {
	if locator == "" {
		return Resolution{}, fmt.Errorf("%w: empty locator", ErrResolution)
	}

	if objectID, ok := strings.CutPrefix(locator, LocalScheme); ok {
		return r.resolveLocal(objectID)
	}
	return r.resolveRemote(locator)
}

func (r *Resolver) resolveLocal(objectID string) (Resolution, error) {
	if !r.store.Exists(objectID) {
		return Resolution{}, fmt.Errorf("%w: object %s missing from local store", ErrResolution, objectID)
	}
	result, err := r.store.Validate(objectID)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: %v", ErrResolution, err)
	}
	if !result.Valid {
		return Resolution{}, fmt.Errorf("%w: object %s failed integrity check: %s", ErrResolution, objectID, result.Reason)
	}
	return Resolution{URL: fmt.Sprintf("%s/v1/blobs/%s", r.baseURL, objectID)}, nil
}

func (r *Resolver) resolveRemote(key string) (Resolution, error) {
	var raw string
	if strings.Contains(key, "://") {
		raw = key
	} else {
		if r.gatewayURL == "" {
			return Resolution{}, fmt.Errorf("%w: no storage gateway configured for key %q", ErrResolution, key)
		}
		raw = fmt.Sprintf(r.gatewayURL, key)
	}

	return r.validate(raw)
}

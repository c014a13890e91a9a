package searchcore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// FlagState is the settings service's answer for one flag.
type FlagState struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// FlagResolver answers flag lookups from a Redis cache backed by the
// settings service. A lookup that fails resolves to the flag's configured
// fail-safe default, or disabled when none is set. Gates protecting
// visibility restrictions (the hidden filter) must carry an enabled
// default so moderation does not fail open on an infrastructure outage.
type FlagResolver struct {
	redis      *redis.Client
	baseURL    string
	cacheTTL   time.Duration
	httpClient *http.Client
	defaults   map[string]bool
	log        Logger
}

// FlagResolverConfig configures the resolver.
type FlagResolverConfig struct {
	Redis      *redis.Client   // Redis client for caching
	BaseURL    string          // Settings service URL (e.g., "http://settings:8080")
	CacheTTL   time.Duration   // Cache TTL (default: 1h)
	HTTPClient *http.Client    // HTTP client for settings calls (optional)
	Defaults   map[string]bool // Per-flag answer when lookups fail (optional)
	Logger     Logger
}

// NewFlagResolver creates a resolver with Redis caching.
func NewFlagResolver(cfg FlagResolverConfig) (*FlagResolver, error) {
	if cfg.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("settings service URL is required")
	}

	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Hour
	}

	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{
			Timeout: 5 * time.Second,
		}
	}

	return &FlagResolver{
		redis:      cfg.Redis,
		baseURL:    cfg.BaseURL,
		cacheTTL:   cfg.CacheTTL,
		httpClient: cfg.HTTPClient,
		defaults:   cfg.Defaults,
		log:        safeLogger(cfg.Logger),
	}, nil
}

// Enabled reports whether the named flag is on.
func (r *FlagResolver) Enabled(ctx context.Context, flag string) bool {
	state, err := r.getFromCache(ctx, flag)
	if err == nil {
		return state.Enabled
	}

	state, err = r.fetchFromSettings(ctx, flag)
	if err != nil {
		fallback := r.defaults[flag]
		r.log.DebugWithCtx(ctx, "flag lookup failed, using fail-safe default",
			"flag", flag, "default", fallback, "error", err)
		return fallback
	}

	// Save to cache asynchronously with timeout
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = r.saveToCache(ctx, flag, state)
	}()

	return state.Enabled
}

// InvalidateCache removes the cached state of one flag.
func (r *FlagResolver) InvalidateCache(ctx context.Context, flag string) error {
	return r.redis.Del(ctx, cacheKey(flag)).Err()
}

func cacheKey(flag string) string {
	return fmt.Sprintf("search_flag_%s", flag)
}

func (r *FlagResolver) getFromCache(ctx context.Context, flag string) (*FlagState, error) {
	val, err := r.redis.Get(ctx, cacheKey(flag)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.New("cache miss")
		}
		return nil, errors.Wrap(err, "redis get failed")
	}

	var state FlagState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal cached flag")
	}

	return &state, nil
}

func (r *FlagResolver) saveToCache(ctx context.Context, flag string, state *FlagState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "failed to marshal flag state")
	}

	if err := r.redis.Set(ctx, cacheKey(flag), data, r.cacheTTL).Err(); err != nil {
		return errors.Wrap(err, "redis set failed")
	}

	return nil
}

func (r *FlagResolver) fetchFromSettings(ctx context.Context, flag string) (*FlagState, error) {
	url := fmt.Sprintf("%s/v1/flags/%s", r.baseURL, flag)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create HTTP request")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "HTTP request to settings service failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("settings service returned status %d: %s", resp.StatusCode, string(body))
	}

	var state FlagState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings response")
	}

	return &state, nil
}

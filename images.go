package underlog

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"sync"

	// Dimension sniffing for the formats the image store accepts.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/sync/singleflight"
)

// Dimensions is a natural image size in pixels.
type Dimensions struct {
	Width  int
	Height int
}

// ImageResolver resolves the natural dimensions of a logical image
// name. A missing image is reported by an error wrapping
// ErrImageNotFound; any other error is a load failure.
type ImageResolver interface {
	Resolve(ctx context.Context, name string) (Dimensions, error)
}

// ResolutionState is the lifecycle of one cache entry.
type ResolutionState int

const (
	StateAbsent ResolutionState = iota
	StatePending
	StateResolved
	StateFailed
)

// DimensionCache caches resolved image dimensions per logical name.
// At most one resolution is in flight per name; concurrent callers
// await the same result. The cache outlives individual layout passes
// and is invalidated externally when the underlying image is renamed
// or deleted.
type DimensionCache struct {
	resolver ImageResolver
	group    singleflight.Group

	mu      sync.Mutex
	entries map[string]*cacheEntry
	gens    map[string]uint64
}

type cacheEntry struct {
	state ResolutionState
	dims  Dimensions
	err   error
}

// NewDimensionCache creates an empty cache backed by the resolver.
func NewDimensionCache(resolver ImageResolver) *DimensionCache {
	return &DimensionCache{
		resolver: resolver,
		entries:  make(map[string]*cacheEntry),
		gens:     make(map[string]uint64),
	}
}

// Lookup is the non-blocking query used inside a layout pass. On a
// miss it kicks off an asynchronous resolution and reports pending;
// the pass then lays the image out with placeholder dimensions and a
// later pass picks up the resolved value. The pass itself is never
// patched in flight.
func (c *DimensionCache) Lookup(name string) (Dimensions, ResolutionState) {
	c.mu.Lock()
	e, ok := c.entries[name]
	if ok {
		dims, state := e.dims, e.state
		c.mu.Unlock()
		return dims, state
	}
	c.entries[name] = &cacheEntry{state: StatePending}
	c.mu.Unlock()

	go func() {
		// Detached from any request context: the result must land in
		// the cache even when the triggering pass has finished.
		_, _ = c.Resolve(context.Background(), name)
	}()
	return Dimensions{}, StatePending
}

// Resolve blocks until the dimensions for name are known. Concurrent
// callers for the same name share one underlying resolution.
func (c *DimensionCache) Resolve(ctx context.Context, name string) (Dimensions, error) {
	c.mu.Lock()
	if e, ok := c.entries[name]; ok {
		switch e.state {
		case StateResolved:
			c.mu.Unlock()
			return e.dims, nil
		case StateFailed:
			c.mu.Unlock()
			return Dimensions{}, e.err
		}
	} else {
		c.entries[name] = &cacheEntry{state: StatePending}
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(name, func() (any, error) {
		c.mu.Lock()
		gen := c.gens[name]
		c.mu.Unlock()

		dims, err := c.resolver.Resolve(ctx, name)

		c.mu.Lock()
		// An invalidation racing the resolution wins: the stale result
		// must not resurrect the entry.
		if c.gens[name] == gen {
			if err != nil {
				c.entries[name] = &cacheEntry{state: StateFailed, err: err}
			} else {
				c.entries[name] = &cacheEntry{state: StateResolved, dims: dims}
			}
		}
		c.mu.Unlock()
		return dims, err
	})
	if err != nil {
		return Dimensions{}, err
	}
	return v.(Dimensions), nil
}

// State reports the current lifecycle state of a name, with its error
// when failed.
func (c *DimensionCache) State(name string) (ResolutionState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[name]
	if !ok {
		return StateAbsent, nil
	}
	return e.state, e.err
}

// Invalidate drops entries so the next pass re-resolves them. Called
// by the image store on rename and delete.
func (c *DimensionCache) Invalidate(names ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range names {
		delete(c.entries, name)
		c.gens[name]++
		c.group.Forget(name)
	}
}

// InvalidateAll empties the cache.
func (c *DimensionCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name := range c.entries {
		c.gens[name]++
		c.group.Forget(name)
	}
	c.entries = make(map[string]*cacheEntry)
}

// notFoundResolver is the default resolver when no image store is
// wired: every image is missing.
type notFoundResolver struct{}

func (notFoundResolver) Resolve(_ context.Context, name string) (Dimensions, error) {
	return Dimensions{}, fmt.Errorf("%w: %s", ErrImageNotFound, name)
}

// BlobSource supplies raw image bytes for a logical name. A missing
// name must be reported with an error wrapping ErrImageNotFound.
type BlobSource interface {
	GetImage(ctx context.Context, name string) ([]byte, error)
}

// BlobResolver derives dimensions by sniffing the image header of a
// stored blob.
type BlobResolver struct {
	Source BlobSource
}

// Resolve fetches the blob and decodes its dimensions.
func (r *BlobResolver) Resolve(ctx context.Context, name string) (Dimensions, error) {
	blob, err := r.Source.GetImage(ctx, name)
	if err != nil {
		return Dimensions{}, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(blob))
	if err != nil {
		return Dimensions{}, fmt.Errorf("decoding image %q: %w", name, err)
	}
	return Dimensions{Width: cfg.Width, Height: cfg.Height}, nil
}

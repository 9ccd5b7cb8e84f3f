package source

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	chlog "github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	// formats a playlist may reference
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	defaultCapacity = 16
	defaultTimeout  = 30 * time.Second
)

// Library loads and caches decoded images. A ref is an opaque string:
// http(s) URLs are fetched, anything else is treated as a filesystem
// path.
type Library struct {
	client *http.Client
	group  singleflight.Group

	mu       sync.RWMutex
	cache    map[string]image.Image
	capacity int
}

// Opt defines a library option
type Opt func(*Library)

// WithHTTPClient configures the client used for URL refs
func WithHTTPClient(client *http.Client) Opt {
	return func(l *Library) {
		l.client = client
	}
}

// WithCapacity configures how many decoded images are kept in memory
func WithCapacity(capacity int) Opt {
	return func(l *Library) {
		if capacity > 0 {
			l.capacity = capacity
		}
	}
}

// New returns a Library with an empty cache.
func New(opts ...Opt) *Library {
	l := &Library{
		client:   &http.Client{Timeout: defaultTimeout},
		cache:    make(map[string]image.Image),
		capacity: defaultCapacity,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the decoded image behind ref, fetching and decoding it
// on first use. Concurrent loads of the same ref collapse into a
// single fetch; the fetch runs detached from the caller's context so
// a result shared between callers cannot be cancelled by one of them.
func (l *Library) Load(ctx context.Context, ref string) (image.Image, error) {
	if img, ok := l.cached(ref); ok {
		return img, nil
	}

	v, err, _ := l.group.Do(ref, func() (interface{}, error) {
		// a racing flight may have landed between the miss above and
		// joining the group
		if img, ok := l.cached(ref); ok {
			return img, nil
		}
		img, err := l.fetch(context.WithoutCancel(ctx), ref)
		if err != nil {
			return nil, err
		}
		l.store(ref, img)
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(image.Image), nil
}

func (l *Library) cached(ref string) (image.Image, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	img, ok := l.cache[ref]
	return img, ok
}

// Prefetch warms the cache for ref without reporting the outcome. A
// failed prefetch only means the next transition loads on demand.
func (l *Library) Prefetch(ref string) {
	if ref == "" {
		return
	}
	go func() {
		if _, err := l.Load(context.Background(), ref); err != nil {
			chlog.Debug("prefetch failed", "ref", ref, "err", err)
		}
	}()
}

func (l *Library) fetch(ctx context.Context, ref string) (image.Image, error) {
	var reader io.ReadCloser
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
		if err != nil {
			return nil, err
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("fetch %s: unexpected status %s", ref, resp.Status)
		}
		reader = resp.Body
	} else {
		f, err := os.Open(ref)
		if err != nil {
			return nil, err
		}
		reader = f
	}
	defer reader.Close()

	img, _, err := image.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ref, err)
	}
	return img, nil
}

func (l *Library) store(ref string, img image.Image) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.cache) >= l.capacity {
		// drop an arbitrary entry; playlists are small and anything
		// evicted reloads on its next rotation slot
		for k := range l.cache {
			delete(l.cache, k)
			break
		}
	}
	l.cache[ref] = img
}

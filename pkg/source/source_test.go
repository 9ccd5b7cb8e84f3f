package source

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writeTempPNG(t *testing.T, c color.NRGBA) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image.png")
	require.NoError(t, os.WriteFile(path, pngBytes(t, c), 0644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	path := writeTempPNG(t, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	img, err := New().Load(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 4, 4), img.Bounds())
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := New().Load(context.Background(), filepath.Join(t.TempDir(), "nope.png"))
	require.Error(t, err)
}

func TestLoadDecodeFailure(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0644))

	_, err := New().Load(context.Background(), path)
	require.ErrorContains(t, err, "decode")
}

func TestLoadFromURLCachesDecodedImage(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write(pngBytes(t, color.NRGBA{R: 1, G: 2, B: 3, A: 255}))
	}))
	defer server.Close()

	library := New(WithHTTPClient(server.Client()))
	for i := 0; i < 3; i++ {
		img, err := library.Load(context.Background(), server.URL+"/bg.png")
		require.NoError(t, err)
		require.Equal(t, 4, img.Bounds().Dx())
	}
	require.EqualValues(t, 1, hits.Load())
}

func TestConcurrentLoadsCollapse(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write(pngBytes(t, color.NRGBA{R: 7, G: 7, B: 7, A: 255}))
	}))
	defer server.Close()

	library := New()
	errs := make([]error, 4)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = library.Load(context.Background(), server.URL+"/shared.png")
		}(i)
	}

	// every caller is parked behind the one in-flight fetch
	require.Eventually(t, func() bool {
		return hits.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, hits.Load())
}

func TestLoadSurvivesCancelledCaller(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(pngBytes(t, color.NRGBA{R: 3, G: 3, B: 3, A: 255}))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// the fetch is shared between callers, so one caller's deadline
	// must not tear it down
	img, err := New(WithHTTPClient(server.Client())).Load(ctx, server.URL+"/bg.png")
	require.NoError(t, err)
	require.NotNil(t, img)
}

func TestLoadURLStatusError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := New().Load(context.Background(), server.URL+"/missing.png")
	require.ErrorContains(t, err, "unexpected status")
}

func TestPrefetchWarmsCache(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write(pngBytes(t, color.NRGBA{R: 9, G: 9, B: 9, A: 255}))
	}))
	defer server.Close()

	library := New()
	library.Prefetch(server.URL + "/next.png")
	require.Eventually(t, func() bool {
		return hits.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// the rotation that follows the prefetch is served from cache
	_, err := library.Load(context.Background(), server.URL+"/next.png")
	require.NoError(t, err)
	require.EqualValues(t, 1, hits.Load())
}

func TestPrefetchIgnoresEmptyRef(t *testing.T) {
	t.Parallel()

	New().Prefetch("")
}

func TestCapacityEviction(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write(pngBytes(t, color.NRGBA{R: 5, G: 5, B: 5, A: 255}))
	}))
	defer server.Close()

	library := New(WithCapacity(1))
	ctx := context.Background()

	_, err := library.Load(ctx, server.URL+"/a.png")
	require.NoError(t, err)
	_, err = library.Load(ctx, server.URL+"/b.png")
	require.NoError(t, err)

	// a.png was evicted to make room for b.png
	_, err = library.Load(ctx, server.URL+"/a.png")
	require.NoError(t, err)
	require.EqualValues(t, 3, hits.Load())
}

package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang-price-watcher/internal/tracker/config"
	"golang-price-watcher/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRenderer struct {
	html  string
	err   error
	calls int
}

func (r *fakeRenderer) Render(ctx context.Context, url string, timeout time.Duration) (string, error) {
	r.calls++
	return r.html, r.err
}

func (r *fakeRenderer) Close() error { return nil }

func testConfig() config.Tracker {
	return config.Tracker{
		FetchTimeout:  5 * time.Second,
		RenderTimeout: 5 * time.Second,
		RenderBackoff: time.Minute,
	}
}

func TestFetch_PlainSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>product page</body></html>")
	}))
	defer srv.Close()

	renderer := &fakeRenderer{html: "<html>rendered</html>"}
	f := New(testConfig(), renderer, logger.NewNop())

	res, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.False(t, res.Rendered)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.HTML, "product page")
	assert.Zero(t, renderer.calls)
}

func TestFetch_BlockedStatusEscalates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	renderer := &fakeRenderer{html: "<html><body>real content</body></html>"}
	f := New(testConfig(), renderer, logger.NewNop())

	res, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, res.Rendered)
	assert.Contains(t, res.HTML, "real content")
	assert.Equal(t, 1, renderer.calls)
}

func TestFetch_ChallengePageEscalates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><title>Just a moment...</title></html>")
	}))
	defer srv.Close()

	renderer := &fakeRenderer{html: "<html><body>real content</body></html>"}
	f := New(testConfig(), renderer, logger.NewNop())

	res, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, res.Rendered)
	assert.Equal(t, 1, renderer.calls)
}

func TestFetch_RenderRequiredHostSkipsPlain(t *testing.T) {
	plainHits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		plainHits++
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.RenderRequiredHosts = []string{"127.0.0.1"}

	renderer := &fakeRenderer{html: "<html><body>rendered only</body></html>"}
	f := New(cfg, renderer, logger.NewNop())

	res, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, res.Rendered)
	assert.Zero(t, plainHits)
	assert.Equal(t, 1, renderer.calls)
}

func TestFetch_BlockedWithoutRendererFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := New(testConfig(), nil, logger.NewNop())

	_, err := f.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestRerender_OncePerCheck(t *testing.T) {
	renderer := &fakeRenderer{html: "<html><body>rendered</body></html>"}
	f := New(testConfig(), renderer, logger.NewNop())

	res, err := f.Rerender(context.Background(), "https://example.com/p/1", &Result{Rendered: false})
	require.NoError(t, err)
	assert.True(t, res.Rendered)
	assert.Equal(t, 1, renderer.calls)

	// A result that already went through the renderer never re-renders.
	_, err = f.Rerender(context.Background(), "https://example.com/p/1", res)
	assert.Error(t, err)
	assert.Equal(t, 1, renderer.calls)
}

func TestRender_ChallengeBackoff(t *testing.T) {
	renderer := &fakeRenderer{html: "<html><title>Just a moment...</title></html>"}
	f := New(testConfig(), renderer, logger.NewNop())

	// First attempt renders and finds the challenge never cleared.
	_, err := f.render(context.Background(), "https://blocked.example.com/p/1")
	require.Error(t, err)
	assert.Equal(t, 1, renderer.calls)

	// The host is now backed off; the renderer is not touched again.
	_, err = f.render(context.Background(), "https://blocked.example.com/p/1")
	require.Error(t, err)
	assert.Equal(t, 1, renderer.calls)
}

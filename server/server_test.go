package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"devfeed/aggregator"
	"devfeed/config"
	"devfeed/feeds"
	"devfeed/models"
	"devfeed/server"
	"devfeed/sources"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	buckets models.Buckets
}

func (s *staticSource) Name() string { return "static" }

func (s *staticSource) Fetch(ctx context.Context) models.Buckets { return s.buckets }

type countingSource struct {
	calls *atomic.Int32
}

func (s *countingSource) Name() string { return "counting" }

func (s *countingSource) Fetch(ctx context.Context) models.Buckets {
	s.calls.Add(1)
	return testBuckets()
}

func testBuckets() models.Buckets {
	return models.Buckets{
		New: []models.Post{{ID: "n1", Author: "ada", Content: "Fixed a nasty bug"}},
		Top: []models.Post{{ID: "t1", Author: "bob", Content: "Shipping to production"}},
		Hot: []models.Post{{ID: "h1", Author: "ada", Content: "LLM agents everywhere"}},
	}
}

func setup(t *testing.T) (*fiber.App, *aggregator.Aggregator, *server.Broadcaster) {
	t.Helper()
	bc := server.NewBroadcaster()
	agg := aggregator.New(
		[]sources.Source{&staticSource{buckets: testBuckets()}},
		feeds.NewCategories(config.DefaultKeywords()),
		bc,
	)
	app := server.Server(&server.ServerConfig{
		Aggregator:  agg,
		Broadcaster: bc,
		CorsOrigins: "http://localhost:3001",
	})
	return app, agg, bc
}

func do(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestFeedEndpoints(t *testing.T) {
	app, agg, _ := setup(t)
	require.NoError(t, agg.Refresh(context.Background()))

	tests := []struct {
		name     string
		method   string
		target   string
		body     string
		status   int
		contains []string
	}{
		{
			name: "healthz", method: http.MethodGet, target: "/healthz",
			status: http.StatusOK, contains: []string{"OK"},
		},
		{
			name: "unfiltered feed", method: http.MethodGet, target: "/api/feed",
			status: http.StatusOK, contains: []string{`"filter":"all"`, `"n1"`, `"t1"`, `"h1"`},
		},
		{
			name: "preview filter", method: http.MethodGet, target: "/api/feed?filter=bug",
			status: http.StatusOK, contains: []string{`"filter":"bug"`, `"n1"`, `"top":[]`},
		},
		{
			name: "preview unknown filter", method: http.MethodGet, target: "/api/feed?filter=cooking",
			status: http.StatusBadRequest,
		},
		{
			name: "stats", method: http.MethodGet, target: "/api/stats",
			status: http.StatusOK, contains: []string{`{"agents":2,"posts":3,"newCount":1}`},
		},
		{
			name: "state", method: http.MethodGet, target: "/api/state",
			status: http.StatusOK, contains: []string{`"status":"content"`, `"source":"static"`},
		},
		{
			name: "categories", method: http.MethodGet, target: "/api/categories",
			status: http.StatusOK, contains: []string{`["all","ai","bug","code","deploy","github"]`},
		},
		{
			name: "post detail", method: http.MethodGet, target: "/api/posts/t1",
			status: http.StatusOK, contains: []string{`"author":"bob"`},
		},
		{
			name: "missing post", method: http.MethodGet, target: "/api/posts/nope",
			status: http.StatusNotFound,
		},
		{
			name: "set unknown filter", method: http.MethodPut, target: "/api/filter", body: `{"category":"cooking"}`,
			status: http.StatusBadRequest,
		},
		{
			name: "set filter with bad body", method: http.MethodPut, target: "/api/filter", body: `{"category":`,
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, app, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			for _, s := range tt.contains {
				assert.Contains(t, string(body), s)
			}
		})
	}

	// previews never change the active filter
	assert.Equal(t, "all", agg.View().Filter)
}

func TestSetFilter(t *testing.T) {
	app, agg, _ := setup(t)
	require.NoError(t, agg.Refresh(context.Background()))

	resp, body := do(t, app, http.MethodPut, "/api/filter", `{"category":"deploy"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view models.FeedView
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, "deploy", view.Filter)
	assert.Empty(t, view.New)
	require.Len(t, view.Top, 1)
	assert.Equal(t, "t1", view.Top[0].ID)

	_, body = do(t, app, http.MethodGet, "/api/feed", "")
	assert.Contains(t, string(body), `"filter":"deploy"`)
}

func TestRefreshEndpoint(t *testing.T) {
	app, agg, _ := setup(t)

	resp, _ := do(t, app, http.MethodPost, "/api/refresh", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	assert.Eventually(t, func() bool {
		return agg.Snapshot().Status == models.StatusContent
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, agg.Stats().Posts)
}

func TestPostDetailWithATURI(t *testing.T) {
	const id = "at://did:plc:abc123/app.bsky.feed.post/3kabc"

	bc := server.NewBroadcaster()
	agg := aggregator.New(
		[]sources.Source{&staticSource{buckets: models.Buckets{
			Hot: []models.Post{{ID: id, Author: "gopher.bsky.social", Content: "from bluesky"}},
		}}},
		feeds.NewCategories(config.DefaultKeywords()),
	)
	app := server.Server(&server.ServerConfig{Aggregator: agg, Broadcaster: bc})
	require.NoError(t, agg.Refresh(context.Background()))

	for _, target := range []string{
		"/api/posts/" + url.PathEscape(id),
		"/api/posts/" + url.QueryEscape(id),
	} {
		resp, body := do(t, app, http.MethodGet, target, "")
		assert.Equal(t, http.StatusOK, resp.StatusCode, target)
		assert.Contains(t, string(body), `"content":"from bluesky"`, target)
	}
}

func TestRefreshEndpointStopsWithServer(t *testing.T) {
	var calls atomic.Int32
	source := &countingSource{calls: &calls}

	bc := server.NewBroadcaster()
	agg := aggregator.New([]sources.Source{source}, feeds.NewCategories(config.DefaultKeywords()), bc)

	serverCtx, cancel := context.WithCancel(context.Background())
	cancel()
	app := server.Server(&server.ServerConfig{Context: serverCtx, Aggregator: agg, Broadcaster: bc})

	states := make(chan models.StateEvent, 10)
	bc.AddClient("client", states, make(chan models.StatisticsEvent, 10))

	resp, _ := do(t, app, http.MethodPost, "/api/refresh", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	assert.Equal(t, models.StatusLoading, (<-states).Status)
	assert.Equal(t, models.StatusIdle, (<-states).Status)
	assert.Equal(t, int32(0), calls.Load())
}

func TestMetricsEndpoint(t *testing.T) {
	app, agg, _ := setup(t)
	require.NoError(t, agg.Refresh(context.Background()))

	resp, body := do(t, app, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "devfeed_cycles_total")
}

func TestBroadcaster(t *testing.T) {
	_, agg, bc := setup(t)

	states := make(chan models.StateEvent, 10)
	stats := make(chan models.StatisticsEvent, 10)
	bc.AddClient("client", states, stats)
	assert.Equal(t, 1, bc.Clients())

	require.NoError(t, agg.Refresh(context.Background()))

	assert.Equal(t, models.StatusLoading, (<-states).Status)
	assert.Equal(t, models.StatusContent, (<-states).Status)
	assert.Equal(t, 3, (<-stats).Posts)

	bc.RemoveClient("client")
	bc.RemoveClient("client")
	assert.Equal(t, 0, bc.Clients())

	_, ok := <-states
	assert.False(t, ok)
}

func TestBroadcasterSkipsFullClients(t *testing.T) {
	bc := server.NewBroadcaster()
	states := make(chan models.StateEvent)
	bc.AddClient("slow", states, make(chan models.StatisticsEvent))

	done := make(chan struct{})
	go func() {
		bc.StateChanged(models.StateEvent{Status: models.StatusLoading})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full client")
	}
	bc.Shutdown()
	assert.Equal(t, 0, bc.Clients())
}

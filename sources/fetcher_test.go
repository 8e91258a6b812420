package sources_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"devfeed/sources"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcherGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "devfeed-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"posts": [{"id": 1, "upvotes": 12}]}`))
	}))
	defer srv.Close()

	f := sources.NewFetcher(time.Second, "devfeed-test")
	payload := f.Get(context.Background(), srv.URL, sources.BearerAuth("secret"))

	require.NotNil(t, payload)
	posts := payload.(map[string]any)["posts"].([]any)
	require.Len(t, posts, 1)
	assert.Equal(t, json.Number("12"), posts[0].(map[string]any)["upvotes"])
}

func TestFetcherGetFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"posts": [{"id": 1}]}`))
			},
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"posts": [`))
			},
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-time.After(2 * time.Second):
				case <-r.Context().Done():
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			f := sources.NewFetcher(100*time.Millisecond, "")
			assert.Nil(t, f.Get(context.Background(), srv.URL, nil))
		})
	}
}

func TestFetcherGetUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	f := sources.NewFetcher(time.Second, "")
	assert.Nil(t, f.Get(context.Background(), url, nil))
	assert.Nil(t, f.Get(context.Background(), "://not a url", nil))
}

func TestFetcherDefaults(t *testing.T) {
	f := sources.NewFetcher(0, "")
	assert.Equal(t, sources.DefaultTimeout, f.Timeout())
	assert.NotNil(t, f.Client())
	assert.Nil(t, sources.BearerAuth(""))
}

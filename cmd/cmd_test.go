package cmd_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"devfeed/cmd"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "devfeed.toml")
	content := fmt.Sprintf(`
post_limit = 5
timeout = "1s"

[keywords]
go = ["golang", "gopher"]

[[sources]]
name = "local"
type = "endpoints"
base_url = %q
auth = true
new = "/new"
top = "/top"
`, baseURL)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := cmd.RootApp()
	app.Writer = &out
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"devfeed"}, args...))
	return out.String(), err
}

func TestFetchCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/new":
			fmt.Fprint(w, `{"posts": [{"id": "1", "author": "ada", "content": "A gopher walks into a bar"}, {"id": "2", "author": "bob", "content": "Rust again"}]}`)
		case "/top":
			fmt.Fprint(w, `[{"id": "3", "author": "ada", "content": "golang 1.24 released"}]`)
		}
	}))
	defer srv.Close()

	out, err := run(t, "--config", writeConfig(t, srv.URL), "--api-key", "secret", "fetch", "--filter", "go")
	require.NoError(t, err)

	var result struct {
		State struct {
			Status string `json:"status"`
			Source string `json:"source"`
		} `json:"state"`
		Stats map[string]int `json:"stats"`
		Feed  struct {
			Filter string           `json:"filter"`
			New    []map[string]any `json:"new"`
			Top    []map[string]any `json:"top"`
			Hot    []map[string]any `json:"hot"`
		} `json:"feed"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))

	assert.Equal(t, "content", result.State.Status)
	assert.Equal(t, "local", result.State.Source)
	assert.Equal(t, map[string]int{"agents": 2, "posts": 3, "newCount": 2}, result.Stats)
	assert.Equal(t, "go", result.Feed.Filter)
	assert.Len(t, result.Feed.New, 1)
	assert.Len(t, result.Feed.Top, 1)
	assert.Empty(t, result.Feed.Hot)
}

func TestFetchCommandUnknownFilter(t *testing.T) {
	_, err := run(t, "fetch", "--filter", "cooking")
	assert.ErrorContains(t, err, `unknown category "cooking"`)
}

func TestFetchCommandExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := run(t, "--config", writeConfig(t, srv.URL), "fetch")
	assert.ErrorContains(t, err, "All feed sources are unreachable or returned no posts.")
}

func TestCategoriesCommand(t *testing.T) {
	out, err := run(t, "categories")
	require.NoError(t, err)

	assert.Contains(t, out, "all        every post")
	assert.Contains(t, out, "deploy     deploy, ship, release, launch, production, devops")
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := run(t, "--log-level", "loud", "categories")
	assert.ErrorContains(t, err, "invalid log level")
}

package bluesky

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/bluesky-social/indigo/xrpc"
)

const DefaultPDSHost = "https://bsky.social"

const searchPostsMethod = "app.bsky.feed.searchPosts"

// searchPosts rejects larger pages
const MaxSearchLimit = 100

type Credentials struct {
	Identifier string
	Password   string
}

func (c *Credentials) Empty() bool {
	return c == nil || c.Identifier == "" || c.Password == ""
}

type Client struct {
	xrpc *xrpc.Client
}

// AnonymousClient talks to a public AppView without a session
func AnonymousClient(host string, httpClient *http.Client) *Client {
	return &Client{xrpc: &xrpc.Client{Host: host, Client: httpClient}}
}

func ClientFromCredentials(ctx context.Context, host string, creds *Credentials, httpClient *http.Client) (*Client, error) {
	auth, err := atproto.ServerCreateSession(ctx, &xrpc.Client{Host: host, Client: httpClient}, &atproto.ServerCreateSession_Input{
		Identifier: creds.Identifier,
		Password:   creds.Password,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	xrpcClient := &xrpc.Client{
		Host: host,
		Auth: &xrpc.AuthInfo{
			AccessJwt:  auth.AccessJwt,
			RefreshJwt: auth.RefreshJwt,
			Handle:     auth.Handle,
			Did:        auth.Did,
		},
		Client: httpClient,
	}

	return &Client{xrpc: xrpcClient}, nil
}

// SearchQuery are the searchPosts parameters we use
type SearchQuery struct {
	Q     string
	Sort  string // latest or top
	Since time.Time
	Limit int
}

func (q SearchQuery) params() map[string]interface{} {
	params := map[string]interface{}{
		"q":     q.Q,
		"limit": min(q.Limit, MaxSearchLimit),
	}
	if q.Sort != "" {
		params["sort"] = q.Sort
	}
	if !q.Since.IsZero() {
		params["since"] = FormatTime(q.Since)
	}
	return params
}

// SearchPosts returns the raw response so post views go through the same
// normalizer as every other provider
func (c *Client) SearchPosts(ctx context.Context, q SearchQuery) (any, error) {
	var out map[string]interface{}
	if err := c.xrpc.Do(ctx, xrpc.Query, "", searchPostsMethod, q.params(), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to search posts: %w", err)
	}
	return out, nil
}

// IsAuthError reports whether err means the session is no longer accepted
func IsAuthError(err error) bool {
	var xerr *xrpc.Error
	if !errors.As(err, &xerr) {
		return false
	}
	if xerr.StatusCode == http.StatusUnauthorized {
		return true
	}
	var body *xrpc.XRPCError
	if errors.As(err, &body) {
		return body.ErrStr == "ExpiredToken" || body.ErrStr == "InvalidToken"
	}
	return false
}

// PostURL maps a post AT-URI to its bsky.app web link
func PostURL(uri string) (string, bool) {
	parsed, err := syntax.ParseATURI(uri)
	if err != nil {
		return "", false
	}
	rkey := parsed.RecordKey().String()
	if rkey == "" {
		return "", false
	}
	return fmt.Sprintf("https://bsky.app/profile/%s/post/%s", parsed.Authority().String(), rkey), true
}

// FormatTime formats a time.Time into the format expected by AT Protocol
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

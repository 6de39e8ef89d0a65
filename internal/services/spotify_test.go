package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
	tu "github.com/desertthunder/spotx/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, tokens TokenSource, handler http.HandlerFunc) *SpotifyService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewSpotifyService(tokens, SpotifyOptions{BaseURL: srv.URL, HTTPClient: srv.Client()}, shared.NewLogger(io.Discard))
}

func TestCatalog(t *testing.T) {
	t.Run("every resource resolves", func(t *testing.T) {
		for _, name := range Resources() {
			desc, err := Describe(name, 50)
			require.NoError(t, err, name)
			assert.Equal(t, name, desc.Resource)
			assert.NotEmpty(t, desc.Endpoint)
		}
	})

	t.Run("artists use cursor envelope", func(t *testing.T) {
		desc, err := Describe("artists", 20)
		require.NoError(t, err)
		assert.Equal(t, models.CursorMode, desc.Mode)
		assert.Equal(t, "artists", desc.Envelope)
		assert.Equal(t, "artist", desc.Query["type"])
		assert.Equal(t, 20, desc.PageSize)
	})

	t.Run("playlists have child tracks", func(t *testing.T) {
		desc, err := Describe("playlists", 0)
		require.NoError(t, err)
		require.NotNil(t, desc.Child)
		assert.Equal(t, MaxPageSize, desc.PageSize)

		child := desc.Child.Describe("37i9dQZF1DXcBWIGoYBM5M")
		assert.Equal(t, "/playlists/37i9dQZF1DXcBWIGoYBM5M/tracks", child.Endpoint)
		assert.Contains(t, child.Query["fields"], "total")
		assert.Contains(t, child.Query["fields"], "added_by.id")
	})

	t.Run("unknown resource", func(t *testing.T) {
		_, err := DescribeAll([]string{"tracks", "podcasts"}, 50)
		assert.ErrorIs(t, err, shared.ErrUnknownResource)
	})
}

func TestSpotifyService(t *testing.T) {
	tokens := tu.NewStaticTokens(models.Credential{AccessToken: "tok", TokenType: "Bearer"})

	t.Run("FetchPage offset", func(t *testing.T) {
		svc := newTestService(t, tokens, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/me/tracks", r.URL.Path)
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			assert.Equal(t, "50", r.URL.Query().Get("limit"))
			assert.Equal(t, "100", r.URL.Query().Get("offset"))
			tu.WriteJSON(w, http.StatusOK, map[string]any{
				"items": []map[string]any{{"track": map[string]string{"id": "a"}}},
				"total": 101,
				"next":  nil,
			})
		})

		desc, _ := Describe("tracks", 50)
		page, err := svc.FetchPage(context.Background(), desc, models.PageRequest{Limit: 50, Offset: 100})
		require.NoError(t, err)
		assert.Equal(t, 101, page.Total)
		assert.Len(t, page.Items, 1)
		assert.Empty(t, page.After)
	})

	t.Run("FetchPage cursor envelope", func(t *testing.T) {
		svc := newTestService(t, tokens, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/me/following", r.URL.Path)
			assert.Equal(t, "artist", r.URL.Query().Get("type"))
			assert.Equal(t, "abc", r.URL.Query().Get("after"))
			assert.False(t, r.URL.Query().Has("offset"))
			tu.WriteJSON(w, http.StatusOK, map[string]any{
				"artists": map[string]any{
					"items":   []map[string]string{{"id": "x"}, {"id": "y"}},
					"total":   10,
					"cursors": map[string]any{"after": "y"},
				},
			})
		})

		desc, _ := Describe("artists", 2)
		page, err := svc.FetchPage(context.Background(), desc, models.PageRequest{Limit: 2, After: "abc"})
		require.NoError(t, err)
		assert.Equal(t, "y", page.After)
		assert.Equal(t, 10, page.Total)

		var first map[string]string
		require.NoError(t, json.Unmarshal(page.Items[0], &first))
		assert.Equal(t, "x", first["id"])
	})

	t.Run("missing envelope", func(t *testing.T) {
		svc := newTestService(t, tokens, func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(w, http.StatusOK, map[string]any{"items": []any{}})
		})
		desc, _ := Describe("artists", 50)
		_, err := svc.FetchPage(context.Background(), desc, models.PageRequest{Limit: 50})
		assert.ErrorIs(t, err, shared.ErrAPIRequest)
	})

	t.Run("status mapping", func(t *testing.T) {
		tc := []struct {
			status int
			want   error
		}{
			{status: http.StatusUnauthorized, want: shared.ErrTokenExpired},
			{status: http.StatusTooManyRequests, want: shared.ErrRateLimited},
			{status: http.StatusNotFound, want: shared.ErrAPIRequest},
			{status: http.StatusBadGateway, want: shared.ErrAPIRequest},
		}

		for _, tt := range tc {
			t.Run(http.StatusText(tt.status), func(t *testing.T) {
				svc := newTestService(t, tokens, func(w http.ResponseWriter, r *http.Request) {
					w.Header().Set("Retry-After", "3")
					tu.WriteJSON(w, tt.status, map[string]any{"error": map[string]any{"status": tt.status, "message": "nope"}})
				})
				desc, _ := Describe("albums", 50)
				_, err := svc.FetchPage(context.Background(), desc, models.PageRequest{Limit: 50})
				assert.ErrorIs(t, err, tt.want)
			})
		}
	})

	t.Run("token source failure stops request", func(t *testing.T) {
		var hits atomic.Int32
		failing := tu.NewStaticTokens(models.Credential{})
		failing.Err = shared.ErrRefreshFailed
		svc := newTestService(t, failing, func(w http.ResponseWriter, r *http.Request) { hits.Add(1) })

		_, err := svc.UserProfile(context.Background())
		assert.ErrorIs(t, err, shared.ErrRefreshFailed)
		assert.Zero(t, hits.Load())
	})

	t.Run("EnsureFresh before every request", func(t *testing.T) {
		counting := tu.NewStaticTokens(models.Credential{AccessToken: "tok", TokenType: "Bearer"})
		svc := newTestService(t, counting, func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(w, http.StatusOK, map[string]any{"id": "me", "display_name": "Me"})
		})

		for range 3 {
			_, err := svc.UserProfile(context.Background())
			require.NoError(t, err)
		}
		assert.Equal(t, int32(3), counting.Calls())
	})

	t.Run("transport failure", func(t *testing.T) {
		svc := NewSpotifyService(tokens, SpotifyOptions{
			HTTPClient: &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection reset"))},
		}, shared.NewLogger(io.Discard))

		_, err := svc.UserProfile(context.Background())
		assert.ErrorIs(t, err, shared.ErrNetwork)
	})

	t.Run("undecodable body", func(t *testing.T) {
		svc := NewSpotifyService(tokens, SpotifyOptions{
			HTTPClient: &http.Client{Transport: tu.NewMockRoundTripper(&http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader("<html>")),
				Header:     make(http.Header),
			}, nil)},
		}, shared.NewLogger(io.Discard))

		_, err := svc.UserProfile(context.Background())
		assert.ErrorIs(t, err, shared.ErrAPIRequest)
	})
}

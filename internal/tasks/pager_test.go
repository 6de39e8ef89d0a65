package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/services"
	"github.com/desertthunder/spotx/internal/shared"
	tu "github.com/desertthunder/spotx/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// offsetServer serves total items in pages, honoring the requested offset and limit.
func offsetServer(prefix string, total int) tu.PageFunc {
	return func(_ models.PageDescriptor, req models.PageRequest) (*models.Page, error) {
		n := max(0, min(req.Limit, total-req.Offset))
		return &models.Page{Items: tu.Items(prefix, req.Offset, n), Total: total}, nil
	}
}

func ids(t *testing.T, items []json.RawMessage) []string {
	t.Helper()
	out := make([]string, 0, len(items))
	for _, raw := range items {
		var obj struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(raw, &obj))
		out = append(out, obj.ID)
	}
	return out
}

func TestPagerOffset(t *testing.T) {
	t.Run("total 120 page 50", func(t *testing.T) {
		fetcher := &tu.MockFetcher{Respond: offsetServer("t", 120)}
		desc, err := services.Describe("tracks", 50)
		require.NoError(t, err)

		col, err := NewPager(fetcher, nil).FetchAll(context.Background(), desc)
		require.NoError(t, err)

		calls := fetcher.Calls()
		require.Len(t, calls, 3)
		assert.Equal(t, 0, calls[0].Request.Offset)
		assert.Equal(t, 50, calls[1].Request.Offset)
		assert.Equal(t, 100, calls[2].Request.Offset)
		for _, c := range calls {
			assert.Equal(t, 50, c.Request.Limit)
		}

		assert.Equal(t, 120, col.Len())
		assert.Equal(t, 120, col.Total)
		got := ids(t, col.Items)
		assert.Equal(t, "t0", got[0])
		assert.Equal(t, "t50", got[50])
		assert.Equal(t, "t119", got[119])
	})

	t.Run("empty collection", func(t *testing.T) {
		fetcher := &tu.MockFetcher{Respond: offsetServer("t", 0)}
		desc, _ := services.Describe("albums", 50)

		col, err := NewPager(fetcher, nil).FetchAll(context.Background(), desc)
		require.NoError(t, err)
		assert.Equal(t, 0, col.Len())
		assert.NotNil(t, col.Items)
		assert.Len(t, fetcher.Calls(), 1)
	})

	t.Run("zero progress", func(t *testing.T) {
		fetcher := &tu.MockFetcher{Respond: func(_ models.PageDescriptor, req models.PageRequest) (*models.Page, error) {
			if req.Offset == 0 {
				return &models.Page{Items: tu.Items("t", 0, 50), Total: 120}, nil
			}
			return &models.Page{Total: 120}, nil
		}}
		desc, _ := services.Describe("tracks", 50)

		_, err := NewPager(fetcher, nil).FetchAll(context.Background(), desc)
		assert.ErrorIs(t, err, shared.ErrPagination)
		assert.Len(t, fetcher.Calls(), 2)
	})

	t.Run("latest total wins", func(t *testing.T) {
		fetcher := &tu.MockFetcher{Respond: func(_ models.PageDescriptor, req models.PageRequest) (*models.Page, error) {
			if req.Offset == 0 {
				return &models.Page{Items: tu.Items("t", 0, 2), Total: 5}, nil
			}
			return &models.Page{Items: tu.Items("t", req.Offset, 1), Total: 3}, nil
		}}
		desc, _ := services.Describe("tracks", 2)

		col, err := NewPager(fetcher, nil).FetchAll(context.Background(), desc)
		require.NoError(t, err)
		assert.Equal(t, 3, col.Total)
		assert.Equal(t, 3, col.Len())
	})

	t.Run("fetch error carries position", func(t *testing.T) {
		fetcher := &tu.MockFetcher{Respond: func(_ models.PageDescriptor, req models.PageRequest) (*models.Page, error) {
			if req.Offset == 50 {
				return nil, shared.ErrTokenExpired
			}
			return &models.Page{Items: tu.Items("t", 0, 50), Total: 100}, nil
		}}
		desc, _ := services.Describe("tracks", 50)

		_, err := NewPager(fetcher, nil).FetchAll(context.Background(), desc)
		assert.ErrorIs(t, err, shared.ErrTokenExpired)
		assert.Contains(t, err.Error(), "offset 50")
	})

	t.Run("progress callback", func(t *testing.T) {
		fetcher := &tu.MockFetcher{Respond: offsetServer("t", 75)}
		desc, _ := services.Describe("tracks", 50)

		var seen []int
		_, err := NewPager(fetcher, func(resource string, fetched, total int) {
			assert.Equal(t, "tracks", resource)
			assert.Equal(t, 75, total)
			seen = append(seen, fetched)
		}).FetchAll(context.Background(), desc)
		require.NoError(t, err)
		assert.Equal(t, []int{50, 75}, seen)
	})

	t.Run("cancelled context", func(t *testing.T) {
		fetcher := &tu.MockFetcher{Respond: offsetServer("t", 10)}
		desc, _ := services.Describe("tracks", 50)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewPager(fetcher, nil).FetchAll(ctx, desc)
		assert.ErrorIs(t, err, shared.ErrTimeout)
		assert.Empty(t, fetcher.Calls())
	})
}

func TestPagerCursor(t *testing.T) {
	desc, err := services.Describe("artists", 2)
	require.NoError(t, err)

	t.Run("follows cursor to total", func(t *testing.T) {
		fetcher := &tu.MockFetcher{Respond: func(_ models.PageDescriptor, req models.PageRequest) (*models.Page, error) {
			switch req.After {
			case "":
				return &models.Page{Items: tu.Items("a", 0, 2), Total: 5, After: "a1"}, nil
			case "a1":
				return &models.Page{Items: tu.Items("a", 2, 2), Total: 5, After: "a3"}, nil
			default:
				return &models.Page{Items: tu.Items("a", 4, 1), Total: 5, After: "a4"}, nil
			}
		}}

		col, err := NewPager(fetcher, nil).FetchAll(context.Background(), desc)
		require.NoError(t, err)
		assert.Equal(t, []string{"a0", "a1", "a2", "a3", "a4"}, ids(t, col.Items))

		calls := fetcher.Calls()
		require.Len(t, calls, 3)
		assert.Equal(t, "", calls[0].Request.After)
		assert.Equal(t, "a1", calls[1].Request.After)
		assert.Equal(t, "a3", calls[2].Request.After)
	})

	t.Run("stops when cursor omitted", func(t *testing.T) {
		fetcher := &tu.MockFetcher{Respond: func(_ models.PageDescriptor, req models.PageRequest) (*models.Page, error) {
			if req.After == "" {
				return &models.Page{Items: tu.Items("a", 0, 2), Total: 10, After: "a1"}, nil
			}
			return &models.Page{Items: tu.Items("a", 2, 2), Total: 10}, nil
		}}

		col, err := NewPager(fetcher, nil).FetchAll(context.Background(), desc)
		require.NoError(t, err)
		assert.Equal(t, 4, col.Len())
		assert.Equal(t, 10, col.Total)
		assert.Len(t, fetcher.Calls(), 2)
	})

	t.Run("empty page with cursor", func(t *testing.T) {
		fetcher := &tu.MockFetcher{Respond: func(_ models.PageDescriptor, req models.PageRequest) (*models.Page, error) {
			return &models.Page{Total: 10, After: "same"}, nil
		}}

		_, err := NewPager(fetcher, nil).FetchAll(context.Background(), desc)
		assert.ErrorIs(t, err, shared.ErrPagination)
	})
}

func TestPagerChild(t *testing.T) {
	playlists, err := services.Describe("playlists", 2)
	require.NoError(t, err)

	fetcher := &tu.MockFetcher{Respond: func(desc models.PageDescriptor, req models.PageRequest) (*models.Page, error) {
		switch {
		case desc.Endpoint == "/me/playlists":
			items := []json.RawMessage{
				json.RawMessage(`{"id":"p1","name":"One","tracks":{"href":"x","total":3}}`),
				json.RawMessage(`{"id":"p2","name":"Two"}`),
				json.RawMessage(`{"name":"no id"}`),
			}
			return &models.Page{Items: items, Total: 3}, nil
		case strings.HasPrefix(desc.Endpoint, "/playlists/p1/"):
			return offsetServer("p1-t", 3)(desc, req)
		case strings.HasPrefix(desc.Endpoint, "/playlists/p2/"):
			return offsetServer("p2-t", 0)(desc, req)
		}
		return nil, errors.New("unexpected endpoint " + desc.Endpoint)
	}}

	col, err := NewPager(fetcher, nil).FetchAll(context.Background(), playlists)
	require.NoError(t, err)
	require.Equal(t, 3, col.Len())

	var first struct {
		ID     string `json:"id"`
		Tracks struct {
			Total int               `json:"total"`
			Items []json.RawMessage `json:"items"`
		} `json:"tracks"`
	}
	require.NoError(t, json.Unmarshal(col.Items[0], &first))
	assert.Equal(t, "p1", first.ID)
	assert.Equal(t, 3, first.Tracks.Total)
	assert.Equal(t, []string{"p1-t0", "p1-t1", "p1-t2"}, ids(t, first.Tracks.Items))

	assert.Len(t, fetcher.CallsTo("/playlists/p1/tracks"), 2, "child collection pages at the parent page size")
	assert.Len(t, fetcher.CallsTo("/playlists/p2/tracks"), 1)
	assert.JSONEq(t, `{"name":"no id"}`, string(col.Items[2]))

	t.Run("child failure fails the parent", func(t *testing.T) {
		failing := &tu.MockFetcher{Respond: func(desc models.PageDescriptor, req models.PageRequest) (*models.Page, error) {
			if desc.Endpoint == "/me/playlists" {
				return &models.Page{Items: []json.RawMessage{json.RawMessage(`{"id":"p1"}`)}, Total: 1}, nil
			}
			return nil, shared.ErrRateLimited
		}}

		_, err := NewPager(failing, nil).FetchAll(context.Background(), playlists)
		assert.ErrorIs(t, err, shared.ErrRateLimited)
		assert.Contains(t, err.Error(), "p1")
	})
}

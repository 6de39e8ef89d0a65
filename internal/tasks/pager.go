package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
)

// PageFetcher retrieves a single page. [services.SpotifyService] implements it.
type PageFetcher interface {
	FetchPage(ctx context.Context, desc models.PageDescriptor, req models.PageRequest) (*models.Page, error)
}

// PageProgress is called after each top-level page with the running count and declared total.
type PageProgress func(resource string, fetched, total int)

// Pager drains paged collections through a [PageFetcher].
type Pager struct {
	fetcher PageFetcher
	onPage  PageProgress
}

// NewPager creates a pager. onPage may be nil.
func NewPager(fetcher PageFetcher, onPage PageProgress) *Pager {
	return &Pager{fetcher: fetcher, onPage: onPage}
}

// FetchAll requests pages of desc until the declared total is reached (or, in cursor mode, the
// server stops returning a cursor) and returns every item in server order.
//
// A page that adds no items while the collection is still short of its total fails with
// [shared.ErrPagination] instead of looping. When desc has a child descriptor, each item's nested
// collection is fetched through the same fetcher and attached before the item is kept.
func (p *Pager) FetchAll(ctx context.Context, desc models.PageDescriptor) (*models.Collection, error) {
	return p.fetchAll(ctx, desc, p.onPage)
}

func (p *Pager) fetchAll(ctx context.Context, desc models.PageDescriptor, onPage PageProgress) (*models.Collection, error) {
	col := &models.Collection{Resource: desc.Resource, Items: []json.RawMessage{}}
	req := models.PageRequest{Limit: desc.PageSize}

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", shared.ErrTimeout, desc.Endpoint, err)
		}

		if desc.Mode == models.OffsetMode {
			req.Offset = len(col.Items)
		}

		page, err := p.fetcher.FetchPage(ctx, desc, req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", desc.Endpoint, position(desc.Mode, req), err)
		}

		items, err := p.expand(ctx, desc, page.Items)
		if err != nil {
			return nil, err
		}
		col.Items = append(col.Items, items...)
		col.Total = page.Total

		if onPage != nil {
			onPage(desc.Resource, len(col.Items), col.Total)
		}

		if len(col.Items) >= col.Total {
			return col, nil
		}
		if desc.Mode == models.CursorMode && page.After == "" {
			return col, nil
		}
		if len(page.Items) == 0 {
			return nil, fmt.Errorf("%w: %s returned no items at %s with %d of %d fetched",
				shared.ErrPagination, desc.Endpoint, position(desc.Mode, req), len(col.Items), col.Total)
		}

		req.After = page.After
	}
}

// expand attaches each item's child collection under the child field.
func (p *Pager) expand(ctx context.Context, desc models.PageDescriptor, items []json.RawMessage) ([]json.RawMessage, error) {
	if desc.Child == nil || len(items) == 0 {
		return items, nil
	}

	out := make([]json.RawMessage, 0, len(items))
	for _, raw := range items {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
			out = append(out, raw)
			continue
		}

		var id string
		if err := json.Unmarshal(obj["id"], &id); err != nil || id == "" {
			out = append(out, raw)
			continue
		}

		child, err := p.fetchAll(ctx, desc.Child.Describe(id), nil)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", desc.Resource, id, err)
		}

		nested, err := json.Marshal(child)
		if err != nil {
			return nil, fmt.Errorf("encode %s of %s: %w", desc.Child.Field, id, err)
		}
		obj[desc.Child.Field] = nested

		merged, err := json.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", desc.Resource, id, err)
		}
		out = append(out, merged)
	}
	return out, nil
}

func position(mode models.PaginationMode, req models.PageRequest) string {
	if mode == models.CursorMode {
		if req.After == "" {
			return "first cursor page"
		}
		return "after " + req.After
	}
	return fmt.Sprintf("offset %d", req.Offset)
}

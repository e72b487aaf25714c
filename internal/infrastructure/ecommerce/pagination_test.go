package ecommerce

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storesync/backend/internal/domain/integration"
)

func TestParseNextLink(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"empty header", "", ""},
		{"next only", `<https://s.myshopify.com/admin/api/2024-10/orders.json?page_info=abc&limit=250>; rel="next"`,
			"https://s.myshopify.com/admin/api/2024-10/orders.json?page_info=abc&limit=250"},
		{"previous only", `<https://s.myshopify.com/a.json?page_info=p>; rel="previous"`, ""},
		{"previous and next", `<https://s/a.json?page_info=p>; rel="previous", <https://s/a.json?page_info=n>; rel="next"`,
			"https://s/a.json?page_info=n"},
		{"unquoted rel", `<https://s/a.json?page_info=n>; rel=next`, "https://s/a.json?page_info=n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseNextLink(tt.header))
		})
	}
}

// fixturePages serves n pages; every page but the last links to the next.
func fixturePages(n int, failOn int) (PageFetcher, *[]string) {
	var requested []string
	fetcher := PageFetcherFunc(func(ctx context.Context, url string) (*RawPage, error) {
		requested = append(requested, url)
		idx := len(requested)
		if idx == failOn {
			return nil, &integration.UpstreamFetchError{URL: url, StatusCode: 500}
		}
		page := &RawPage{URL: url, Body: []byte(fmt.Sprintf(`{"products":[{"id":%d}]}`, idx))}
		if idx < n {
			page.Next = fmt.Sprintf("page-%d", idx+1)
		}
		return page, nil
	})
	return fetcher, &requested
}

func TestCursor_ThreePagesTerminates(t *testing.T) {
	fetcher, requested := fixturePages(3, 0)
	cursor := NewCursor(fetcher, "page-1")

	pages := 0
	for cursor.Next(context.Background()) {
		pages++
		assert.Equal(t, pages, cursor.Number())
	}

	require.NoError(t, cursor.Err())
	assert.Equal(t, 3, pages)
	assert.Equal(t, 3, cursor.Fetches())
	assert.Equal(t, []string{"page-1", "page-2", "page-3"}, *requested)
	assert.Empty(t, cursor.Cursor())

	// exhausted cursors do not fetch again
	assert.False(t, cursor.Next(context.Background()))
	assert.Equal(t, 3, cursor.Fetches())
}

func TestCursor_StopsOnFailedFetch(t *testing.T) {
	fetcher, requested := fixturePages(3, 2)
	cursor := NewCursor(fetcher, "page-1")

	pages := 0
	for cursor.Next(context.Background()) {
		pages++
	}

	assert.Equal(t, 1, pages)
	assert.Equal(t, 2, cursor.Fetches())
	assert.Len(t, *requested, 2)

	var fetchErr *integration.UpstreamFetchError
	require.True(t, errors.As(cursor.Err(), &fetchErr))
	assert.Equal(t, 500, fetchErr.StatusCode)
	// the failed page stays the resume point
	assert.Equal(t, "page-2", cursor.Cursor())
}

func TestCursor_ResumesFromSavedCursor(t *testing.T) {
	fetcher, requested := fixturePages(3, 0)
	cursor := NewCursor(fetcher, "page-2")
	*requested = append(*requested, "page-1") // page 1 already consumed by an earlier walk

	pages := 0
	for cursor.Next(context.Background()) {
		pages++
	}
	require.NoError(t, cursor.Err())
	assert.Equal(t, 2, pages)
}

func TestCursor_CancelledContext(t *testing.T) {
	fetcher, requested := fixturePages(3, 0)
	cursor := NewCursor(fetcher, "page-1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, cursor.Next(ctx))
	assert.Empty(t, *requested)
	assert.ErrorIs(t, cursor.Err(), context.Canceled)
}

func TestPageIterator_DecodesAndMaps(t *testing.T) {
	fetcher, _ := fixturePages(3, 0)
	it := newPageIterator(NewCursor(fetcher, "page-1"), decodeProducts, func(p ShopifyProduct) string {
		return p.ID.String()
	})

	var ids []string
	for it.Next(context.Background()) {
		ids = append(ids, it.Page().Records...)
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []string{"1", "2", "3"}, ids)
}

func TestPageIterator_UndecodablePageStops(t *testing.T) {
	calls := 0
	fetcher := PageFetcherFunc(func(ctx context.Context, url string) (*RawPage, error) {
		calls++
		return &RawPage{URL: url, Body: []byte(`<html>maintenance</html>`), Next: "again"}, nil
	})
	it := newPageIterator(NewCursor(fetcher, "page-1"), decodeProducts, func(p ShopifyProduct) ShopifyProduct { return p })

	assert.False(t, it.Next(context.Background()))
	assert.False(t, it.Next(context.Background()))
	assert.Equal(t, 1, calls)

	var fetchErr *integration.UpstreamFetchError
	assert.True(t, errors.As(it.Err(), &fetchErr))
}

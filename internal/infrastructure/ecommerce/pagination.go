package ecommerce

import (
	"context"
	"regexp"

	"github.com/storesync/backend/internal/domain/integration"
)

// linkNextPattern extracts the next-page URL from a Link header such as
// `<https://shop/admin/api/2024-10/orders.json?page_info=abc>; rel="next"`.
var linkNextPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="?next"?`)

// ParseNextLink returns the rel=next URL of a Link header, or "" when absent
func ParseNextLink(header string) string {
	m := linkNextPattern.FindStringSubmatch(header)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// RawPage is one undecoded upstream response
type RawPage struct {
	URL  string
	Body []byte
	Next string
}

// PageFetcher fetches one page by absolute URL
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (*RawPage, error)
}

// PageFetcherFunc adapts a function to PageFetcher
type PageFetcherFunc func(ctx context.Context, url string) (*RawPage, error)

// FetchPage implements PageFetcher
func (f PageFetcherFunc) FetchPage(ctx context.Context, url string) (*RawPage, error) {
	return f(ctx, url)
}

// Cursor follows rel=next links from a first URL until no link is returned
// or a fetch fails. It fetches nothing until Next is called.
type Cursor struct {
	fetcher PageFetcher
	next    string
	started bool
	page    *RawPage
	number  int
	fetches int
	err     error
}

// NewCursor creates a cursor starting at firstURL. Passing a URL saved from
// Cursor() resumes an interrupted walk.
func NewCursor(fetcher PageFetcher, firstURL string) *Cursor {
	return &Cursor{fetcher: fetcher, next: firstURL}
}

// Next fetches the next page. It returns false when the collection is
// exhausted or the fetch failed.
func (c *Cursor) Next(ctx context.Context) bool {
	if c.err != nil || (c.started && c.next == "") {
		return false
	}
	c.started = true
	if err := ctx.Err(); err != nil {
		c.err = &integration.UpstreamFetchError{URL: c.next, Err: err}
		return false
	}

	c.fetches++
	page, err := c.fetcher.FetchPage(ctx, c.next)
	if err != nil {
		c.err = err
		c.page = nil
		return false
	}
	c.page = page
	c.number++
	c.next = page.Next
	return true
}

// Page returns the page fetched by the last successful Next
func (c *Cursor) Page() *RawPage { return c.page }

// Number is the 1-based index of the current page
func (c *Cursor) Number() int { return c.number }

// Fetches counts issued requests, including a failed one
func (c *Cursor) Fetches() int { return c.fetches }

// Cursor returns the URL the next call would fetch; "" once exhausted
func (c *Cursor) Cursor() string { return c.next }

// Err returns the fetch error that stopped the walk, if any
func (c *Cursor) Err() error { return c.err }

// ---------------------------------------------------------------------------
// Typed iterator
// ---------------------------------------------------------------------------

// pageIterator decodes each raw page into wire records and maps them to
// domain records. A page that does not decode stops the walk like a failed fetch.
type pageIterator[W, T any] struct {
	cursor *Cursor
	decode func(body []byte) ([]W, error)
	mapFn  func(W) T
	page   integration.Page[T]
	err    error
}

func newPageIterator[W, T any](cursor *Cursor, decode func([]byte) ([]W, error), mapFn func(W) T) *pageIterator[W, T] {
	return &pageIterator[W, T]{cursor: cursor, decode: decode, mapFn: mapFn}
}

func (it *pageIterator[W, T]) Next(ctx context.Context) bool {
	if it.err != nil || !it.cursor.Next(ctx) {
		return false
	}
	raw := it.cursor.Page()
	wires, err := it.decode(raw.Body)
	if err != nil {
		it.err = &integration.UpstreamFetchError{URL: raw.URL, Err: err}
		return false
	}
	records := make([]T, 0, len(wires))
	for _, w := range wires {
		records = append(records, it.mapFn(w))
	}
	it.page = integration.Page[T]{Number: it.cursor.Number(), Records: records}
	return true
}

func (it *pageIterator[W, T]) Page() integration.Page[T] { return it.page }

func (it *pageIterator[W, T]) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.cursor.Err()
}

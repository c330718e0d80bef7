package crawler

import (
	"context"
)

// PageFetcher retrieves the raw content of one page. ok is false when there
// is no content, for whatever reason; the driver treats that as the end of
// the listing.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (body string, ok bool)
}

// FetchFunc adapts a function to PageFetcher.
type FetchFunc func(ctx context.Context, url string) (string, bool)

func (f FetchFunc) Fetch(ctx context.Context, url string) (string, bool) {
	return f(ctx, url)
}

package monitor

import (
	"context"
	"ldmonitor/internal/identity"
)

type RawFetcher interface {
	FetchRaw(ctx context.Context, link string) (string, error)
}

// ForumPage downloads the forum home page to resolve identity from, the way a
// content script would see it.
type ForumPage struct {
	Fetcher      RawFetcher
	Url          string
	LocalStorage map[string]string
}

func (p ForumPage) Page(ctx context.Context) (identity.Page, error) {
	contents, err := p.Fetcher.FetchRaw(ctx, p.Url)
	if err != nil {
		return identity.Page{}, err
	}
	return identity.NewPage([]byte(contents), p.Url, p.LocalStorage)
}

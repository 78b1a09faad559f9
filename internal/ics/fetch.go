package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	appLog "vnsched/internal/log"
)

// maxBodySize bounds a single calendar download.
const maxBodySize = 10 << 20

// Source is one subscribed calendar.
type Source struct {
	ID  string
	URL string
}

// FetchResult is the body of a source, fresh or cached.
type FetchResult struct {
	Source    Source
	Body      []byte
	FromCache bool // body reused after a 304 or a failed request
}

type cacheEntry struct {
	etag         string
	lastModified string
	body         []byte
}

// Fetcher downloads calendars with ETag / Last-Modified revalidation. The
// last good body of every URL is kept in memory and served when the remote
// is unreachable.
type Fetcher struct {
	client *http.Client

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewFetcher creates a Fetcher. A nil client gets a 15s timeout default.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client, cache: map[string]cacheEntry{}}
}

// FetchOne fetches a single source.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, errors.New("source URL is empty")
	}

	f.mu.Lock()
	cached, hasCache := f.cache[src.URL]
	f.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	if cached.etag != "" {
		req.Header.Set("If-None-Match", cached.etag)
	}
	if cached.lastModified != "" {
		req.Header.Set("If-Modified-Since", cached.lastModified)
	}

	appLog.Debug("ics fetch start", "id", src.ID, "url", redactURL(src.URL))

	fromCache := func(reason error) (FetchResult, error) {
		if !hasCache {
			return FetchResult{}, reason
		}
		appLog.Warn("ics fetch failed, using cached body", "id", src.ID, "url", redactURL(src.URL), "err", reason)
		return FetchResult{Source: src, Body: cached.body, FromCache: true}, nil
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fromCache(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return fromCache(err)
		}
		f.mu.Lock()
		f.cache[src.URL] = cacheEntry{
			etag:         resp.Header.Get("ETag"),
			lastModified: resp.Header.Get("Last-Modified"),
			body:         body,
		}
		f.mu.Unlock()
		appLog.Info("ics fetch success", "id", src.ID, "url", redactURL(src.URL), "bytes", len(body))
		return FetchResult{Source: src, Body: body}, nil

	case http.StatusNotModified:
		if !hasCache {
			return FetchResult{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Debug("ics fetch not modified", "id", src.ID, "url", redactURL(src.URL))
		return FetchResult{Source: src, Body: cached.body, FromCache: true}, nil

	default:
		return fromCache(fmt.Errorf("unexpected status %s", resp.Status))
	}
}

// redactURL keeps scheme and host only; subscription URLs usually carry a
// secret in the path or query.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}

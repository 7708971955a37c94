// Package fetchhash turns an image URL into a 64-bit perceptual hash code.
// Fetches go through an RFC 7234 caching transport, computed hashes are
// additionally memoized by URL so a repost never hits the network twice.
package fetchhash

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/corona10/goimagehash"
	"github.com/gregjones/httpcache"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/cufee/botto-guardian/config"
)

// ErrFetch - Network-level failure, the caller decides whether to retry
var ErrFetch = errors.New("image fetch failed")

// ErrDecode - Body is not a supported image or is over the size bound
var ErrDecode = errors.New("image decode failed")

// Fetcher - Cached URL to perceptual hash resolver
type Fetcher struct {
	client   *http.Client
	cache    *expirable.LRU[string, uint64]
	maxBytes int64
}

// New - Build a fetcher with a bounded per-request timeout
func New(timeout time.Duration, maxBytes int64) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Transport: httpcache.NewMemoryCacheTransport(),
			Timeout:   timeout,
		},
		cache:    expirable.NewLRU[string, uint64](config.UrlCacheSize, nil, config.UrlCacheTTL),
		maxBytes: maxBytes,
	}
}

// HashFor - Resolve a URL to its perceptual hash, serving from cache when possible
func (f *Fetcher) HashFor(ctx context.Context, url string) (uint64, error) {
	if code, ok := f.cache.Get(url); ok {
		return code, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: unexpected status %d", ErrFetch, resp.StatusCode)
	}
	if resp.ContentLength > f.maxBytes {
		return 0, fmt.Errorf("%w: %d bytes over the %d limit", ErrDecode, resp.ContentLength, f.maxBytes)
	}

	// Not all origins send Content-Length, so bound the read as well.
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if int64(len(data)) > f.maxBytes {
		return 0, fmt.Errorf("%w: body over the %d byte limit", ErrDecode, f.maxBytes)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	code := hash.GetHash()
	f.cache.Add(url, code)
	return code, nil
}

package httpds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"taxietl/internal/datasource"
	"taxietl/internal/etlerr"
)

// Source opens one object by URL.
type Source struct {
	url    string
	client *Client
}

// New returns a Source for url. A nil client gets NewClient(Config{MaxRetries: 3}).
func New(url string, c *Client) *Source {
	if c == nil {
		c = NewClient(Config{MaxRetries: 3})
	}
	return &Source{url: url, client: c}
}

// Open issues a HEAD for the object size and returns a reader that fetches
// each ReadAt with a Range request. The server must support byte ranges.
func (s *Source) Open(ctx context.Context) (datasource.Object, error) {
	resp, err := s.client.Head(ctx, s.url)
	if err != nil {
		return nil, etlerr.Connectivity("head "+s.url, err)
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("httpds: %s: not found", s.url)
	case resp.StatusCode != http.StatusOK:
		return nil, etlerr.Connectivity("head "+s.url, fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.ContentLength < 0 {
		return nil, fmt.Errorf("httpds: %s: server did not report a content length", s.url)
	}
	if err := datasource.CheckSize(s.url, resp.ContentLength); err != nil {
		return nil, err
	}
	if ar := resp.Header.Get("Accept-Ranges"); !strings.EqualFold(ar, "bytes") {
		zap.S().Warnf("httpds: %s: Accept-Ranges=%q; range reads may fail", s.url, ar)
	}

	size := resp.ContentLength
	zap.S().Infof("httpds: opened %s size=%d", s.url, size)
	return datasource.NewRanged(ctx, s.url, size, s.fetch, nil), nil
}

func (s *Source) fetch(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	resp, err := s.client.GetRange(ctx, s.url, off, length)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		return nil, fmt.Errorf("range %d+%d: status %d, want 206", off, length, resp.StatusCode)
	}
	return resp.Body, nil
}

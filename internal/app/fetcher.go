package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"vodfetch/internal/domain"
)

const fetchUserAgent = "vodfetch"

// SegmentFetcher performs one network retrieval per call and classifies
// failures as transient or permanent. It never retries: the retry budget
// belongs to the scheduler.
type SegmentFetcher struct {
	client  *http.Client
	timeout time.Duration
}

func NewSegmentFetcher(client *http.Client, timeout time.Duration) *SegmentFetcher {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SegmentFetcher{client: client, timeout: timeout}
}

// Fetch retrieves url, honoring a byte range when one is given.
func (f *SegmentFetcher) Fetch(ctx context.Context, rawURL string, byteRange domain.ByteRange) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Transient: false, Err: err}
	}
	req.Header.Set("User-Agent", fetchUserAgent)
	if !byteRange.IsZero() {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", byteRange.Offset, byteRange.Offset+byteRange.Length-1))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		// Transport-level failures (timeouts, resets, refused connections)
		// are all worth another attempt.
		return nil, &domain.FetchError{URL: rawURL, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	if err := classifyStatus(rawURL, resp.StatusCode, !byteRange.IsZero()); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Transient: true, Err: err}
	}
	return body, nil
}

func classifyStatus(rawURL string, status int, ranged bool) error {
	switch {
	case status == http.StatusOK && ranged:
		// The server ignored the range request; the body would not match
		// the descriptor. Not worth retrying.
		return &domain.FetchError{URL: rawURL, StatusCode: status, Transient: false,
			Err: fmt.Errorf("expected partial content, got 200")}
	case status == http.StatusOK || status == http.StatusPartialContent:
		return nil
	case status == http.StatusTooManyRequests || status >= 500:
		return &domain.FetchError{URL: rawURL, StatusCode: status, Transient: true}
	default:
		return &domain.FetchError{URL: rawURL, StatusCode: status, Transient: false}
	}
}

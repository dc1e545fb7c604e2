// Package zhszjj retrieves and parses the Zhuhai presale listing feed.
package zhszjj

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/summerlia/zhuhaibay/models"
	"github.com/summerlia/zhuhaibay/utils"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	referer = "https://fdcjy.zhszjj.com/"

	maxBodyBytes = 32 << 20
)

// Fetcher retrieves one bulk page of the feed.
type Fetcher interface {
	Fetch(ctx context.Context, offset, size int) (models.RawPayload, error)
}

// HTTPFetcher fetches the feed with a plain HTTP GET.
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
	logger  *utils.Logger
}

// NewHTTPFetcher creates an HTTPFetcher whose requests give up after timeout.
func NewHTTPFetcher(baseURL string, timeout time.Duration, logger *utils.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Fetch issues a single request for up to size entries starting at offset.
// Transport failures and non-2xx statuses come back as *models.NetworkError.
func (f *HTTPFetcher) Fetch(ctx context.Context, offset, size int) (models.RawPayload, error) {
	target := FeedURL(f.baseURL, offset, size)
	f.logger.Info("[fetcher] GET %s", target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return models.RawPayload{}, &models.NetworkError{URL: target, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	req.Header.Set("Referer", referer)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return models.RawPayload{}, &models.NetworkError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return models.RawPayload{}, &models.NetworkError{URL: target, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return models.RawPayload{}, &models.NetworkError{URL: target, Err: fmt.Errorf("read body: %w", err)}
	}

	payload := DecodePayload(body)
	f.logger.Info("[fetcher] %d bytes in %v (%s)", len(body), time.Since(start).Round(time.Millisecond), payload.Kind)
	return payload, nil
}

// FeedURL builds the bulk listing query.
func FeedURL(baseURL string, offset, size int) string {
	q := url.Values{}
	q.Set("keywords", "presale")
	q.Set("tabkey", "all")
	q.Set("searchcode", "")
	q.Set("start", strconv.Itoa(offset))
	q.Set("count", strconv.Itoa(size))
	return baseURL + "?" + q.Encode()
}

// DecodePayload tags body as JSON when it is a JSON object and as markup otherwise.
func DecodePayload(body []byte) models.RawPayload {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		var obj map[string]any
		if err := dec.Decode(&obj); err == nil && obj != nil {
			return models.JSONPayload(obj)
		}
	}
	return models.HTMLPayload(string(body))
}

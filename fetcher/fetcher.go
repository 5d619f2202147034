package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cnosuke/agent-fetch/classifier"
	"github.com/cnosuke/agent-fetch/types"
	"go.uber.org/zap"
)

type Config struct {
	Timeout      int // seconds
	UserAgent    string
	MaxBodyBytes int64
}

const defaultMaxBodyBytes = 10 * 1024 * 1024

// Network failure classifications surfaced on FetchResult.ErrorMessage.
const (
	ErrTimeout         = "timeout"
	ErrConnectionError = "connection-error"
	ErrUnknown         = "unknown"
)

// Fetcher issues a single GET against a URL and returns a classified result.
// Fetch never fails: network-level errors and HTTP error statuses are carried
// as data on the FetchResult.
type Fetcher interface {
	Fetch(urlStr string) *types.FetchResult
}

// httpFetcher implements the Fetcher interface using HTTP.
type httpFetcher struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
	classifier   *classifier.Classifier
	now          func() time.Time
}

// NewHTTPFetcher creates a new httpFetcher.
func NewHTTPFetcher(cfg *Config, cl *classifier.Classifier) (Fetcher, error) {
	zap.S().Infow("creating new HTTP fetcher",
		"timeout", cfg.Timeout,
		"user_agent", cfg.UserAgent,
		"max_body_bytes", cfg.MaxBodyBytes)

	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}

	client := &http.Client{
		Timeout: time.Duration(cfg.Timeout) * time.Second,
	}

	return &httpFetcher{
		client:       client,
		userAgent:    cfg.UserAgent,
		maxBodyBytes: maxBodyBytes,
		classifier:   cl,
		now:          time.Now,
	}, nil
}

type rawResponse struct {
	status      int
	body        []byte
	contentType string
	errKind     string // one of ErrTimeout, ErrConnectionError, ErrUnknown; "" on success
}

func (f *httpFetcher) fetch(urlStr string) *rawResponse {
	req, err := http.NewRequest(http.MethodGet, urlStr, nil)
	if err != nil {
		zap.S().Debugw("failed to create request", "url", urlStr, "error", err)
		return &rawResponse{errKind: ErrUnknown}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		kind := classifyNetworkError(err)
		zap.S().Debugw("request failed", "url", urlStr, "kind", kind, "error", err)
		return &rawResponse{errKind: kind}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		kind := classifyNetworkError(err)
		zap.S().Debugw("failed to read response body", "url", urlStr, "kind", kind, "error", err)
		return &rawResponse{errKind: kind}
	}

	zap.S().Debugw("response received",
		"url", urlStr,
		"status", resp.StatusCode,
		"bytes", len(body),
		"content_type", resp.Header.Get("Content-Type"))

	return &rawResponse{
		status:      resp.StatusCode,
		body:        body,
		contentType: resp.Header.Get("Content-Type"),
	}
}

// Fetch issues one GET with the configured timeout and returns the outcome
// as data. HTTP error statuses (4xx/5xx) are valid, non-exceptional results.
func (f *httpFetcher) Fetch(urlStr string) *types.FetchResult {
	result := &types.FetchResult{
		SourceURL:         urlStr,
		DerivedIdentifier: DeriveIdentifier(urlStr),
		Timestamp:         types.FormatTimestamp(f.now()),
	}

	zap.S().Infow("fetching", "url", urlStr, "identifier", result.DerivedIdentifier)

	resp := f.fetch(urlStr)
	if resp.errKind != "" {
		result.ErrorMessage = resp.errKind
		return result
	}

	status := resp.status
	result.StatusCode = &status
	result.ContentType = resp.contentType
	if result.ContentType == "" {
		result.ContentType = "unknown"
	}
	result.ResponseSize = len(resp.body)

	switch {
	case result.Succeeded():
		result.Data = f.classifier.Classify(resp.body, resp.contentType, urlStr)
	case status == http.StatusNotFound:
		result.ErrorMessage = "Agent not found (404). The URL may be invalid or the agent may not be publicly accessible."
	case status == http.StatusForbidden:
		result.ErrorMessage = "Access forbidden (403). Authentication may be required."
	default:
		result.ErrorMessage = fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
	}

	return result
}

// classifyNetworkError maps a transport-level error to one of the fixed
// failure classifications.
func classifyNetworkError(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrConnectionError
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnectionError
	}

	return ErrUnknown
}

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/bytelense/internal/common"
)

const (
	maxResponseBytes = 4 << 20
	defaultRetryWait = 500 * time.Millisecond
	maxRetryWait     = 2 * time.Second
)

// HTTPError is a non-2xx collaborator response.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("non-2xx status: %d", e.Status)
}

// Retryable reports whether the collaborator asked us to back off.
func (e *HTTPError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status == http.StatusServiceUnavailable
}

// SendJSON posts a JSON body to a full URL and returns the raw response body.
// A 429 or 503 is retried once after Retry-After (capped at 2s) unless ctx ends
// first. Callers decide the URL and headers.
func SendJSON(ctx context.Context, client *http.Client, url string, body any, headers map[string]string, logger *slog.Logger) ([]byte, int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 45 * time.Second}
	}
	reqID := uuid.NewString()
	logger = logger.With("req_id", reqID)
	if scanID := common.ScanIDFromContext(ctx); scanID != "" {
		logger = logger.With("scan_id", scanID)
	}

	bs, err := json.Marshal(body)
	if err != nil {
		logger.Error("llm.http.encode_error", "error", err)
		return nil, 0, fmt.Errorf("encode json: %w", err)
	}

	raw, status, wait, err := post(ctx, client, url, bs, headers, logger)
	var he *HTTPError
	if err == nil || !errors.As(err, &he) || !he.Retryable() {
		return raw, status, err
	}

	logger.Warn("llm.http.retry", "status", status, "wait_ms", wait.Milliseconds())
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return raw, status, fmt.Errorf("%w (retry abandoned: %v)", err, ctx.Err())
	case <-t.C:
	}
	raw, status, _, err = post(ctx, client, url, bs, headers, logger)
	return raw, status, err
}

func post(ctx context.Context, client *http.Client, url string, bs []byte, headers map[string]string, logger *slog.Logger) ([]byte, int, time.Duration, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		logger.Error("llm.http.build_request_error", "error", err)
		return nil, 0, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	logger.Info("llm.http.request", "url", url, "content_length", len(bs))

	resp, err := client.Do(req)
	if err != nil {
		logger.Error("llm.http.send_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, 0, err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logger.Warn("llm.http.response_body_close_error", "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		logger.Error("llm.http.read_error", "status", resp.StatusCode, "error", err)
		return nil, resp.StatusCode, 0, fmt.Errorf("read response: %w", err)
	}

	logger.Info("llm.http.response",
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return raw, resp.StatusCode, retryAfter(resp.Header.Get("Retry-After")), &HTTPError{Status: resp.StatusCode, Body: string(raw)}
	}
	return raw, resp.StatusCode, 0, nil
}

// retryAfter reads a delay-seconds Retry-After header.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return defaultRetryWait
	}
	if d := time.Duration(secs) * time.Second; d < maxRetryWait {
		return d
	}
	return maxRetryWait
}

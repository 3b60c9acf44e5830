package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultUserAgent = "octopyenergy/0.1"
	DefaultTimeout   = 30 * time.Second

	requestIDHeader = "X-Request-Id"
	maxErrorBody    = 512
)

// Transport performs JSON requests against one Octopus API. Every non-2xx
// status is an error; there is no retry.
type Transport struct {
	api       string
	client    *http.Client
	userAgent string
	logger    *zap.Logger
	metrics   *Metrics
	authorize func(*http.Request)
}

// NewTransport wraps client. authorize, when non-nil, is applied to every
// outgoing request. A nil metrics records into DefaultMetrics.
func NewTransport(api string, client *http.Client, userAgent string, logger *zap.Logger, metrics *Metrics, authorize func(*http.Request)) *Transport {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = DefaultMetrics()
	}
	return &Transport{
		api:       api,
		client:    client,
		userAgent: userAgent,
		logger:    logger,
		metrics:   metrics,
		authorize: authorize,
	}
}

func (t *Transport) API() string {
	return t.api
}

func (t *Transport) GetJSON(ctx context.Context, endpoint string, dest any) error {
	body, err := t.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return t.decode(endpoint, body, dest)
}

func (t *Transport) PostJSON(ctx context.Context, endpoint string, payload, dest any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", t.api, err)
	}
	body, err := t.do(ctx, http.MethodPost, endpoint, encoded)
	if err != nil {
		return err
	}
	return t.decode(endpoint, body, dest)
}

func (t *Transport) decode(endpoint string, body []byte, dest any) error {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(dest); err != nil {
		return &TransportError{API: t.api, URL: endpoint, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (t *Transport) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &TransportError{API: t.api, URL: endpoint, Err: err}
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set(requestIDHeader, requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.authorize != nil {
		t.authorize(req)
	}

	logger := t.logger.With(
		zap.String("api", t.api),
		zap.String("method", method),
		zap.String("url", endpoint),
		zap.String("request_id", requestID),
	)

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		t.metrics.observeUpstream(t.api, "error", time.Since(start))
		logger.Debug("request failed", zap.Error(err))
		return nil, &TransportError{API: t.api, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	t.metrics.observeUpstream(t.api, strconv.Itoa(resp.StatusCode), elapsed)
	if err != nil {
		return nil, &TransportError{API: t.api, URL: endpoint, StatusCode: resp.StatusCode, Status: resp.Status, Err: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		logger.Warn("request returned error status",
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", elapsed),
		)
		return nil, &TransportError{
			API:        t.api,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       truncate(strings.TrimSpace(string(body)), maxErrorBody),
		}
	}

	logger.Debug("request complete",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", elapsed),
	)
	return body, nil
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}

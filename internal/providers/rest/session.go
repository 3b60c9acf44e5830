package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"octopyenergy/internal/providers"
)

const (
	defaultBaseURL = "https://api.octopus.energy/"
	apiName        = "rest"
)

var (
	ErrAPIKeyRequired = errors.New("rest: api key is required")
	ErrAuthOverride   = errors.New("rest: invalid header Authorization, please only provide the API key")
)

type Config struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	UserAgent string
	// Headers are sent with every request. Authentication cannot be set here.
	Headers map[string]string
}

type Option func(*Session)

func WithHTTPClient(client *http.Client) Option {
	return func(s *Session) {
		s.client = client
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithMetrics records into metrics instead of providers.DefaultMetrics.
func WithMetrics(metrics *providers.Metrics) Option {
	return func(s *Session) {
		s.metrics = metrics
	}
}

// Session is the REST façade. It authenticates with HTTP basic auth (API key as
// user name) and treats every non-2xx response as an error.
type Session struct {
	config     Config
	baseURL    *url.URL
	client     *http.Client
	ownsClient bool
	logger     *zap.Logger
	metrics    *providers.Metrics
	transport  *providers.Transport
}

func NewWithConfig(cfg Config, opts ...Option) (*Session, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrAPIKeyRequired
	}
	for key := range cfg.Headers {
		if http.CanonicalHeaderKey(strings.TrimSpace(key)) == "Authorization" {
			return nil, ErrAuthOverride
		}
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = providers.DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = providers.DefaultUserAgent
	}

	// Kept apart from the HTTP client: pagination links are absolute and must
	// not be resolved against it.
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("rest: invalid base url %q: %w", cfg.BaseURL, err)
	}
	if !baseURL.IsAbs() {
		return nil, fmt.Errorf("rest: base url %q is not absolute", cfg.BaseURL)
	}

	s := &Session{
		config:  cfg,
		baseURL: baseURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: cfg.Timeout}
		s.ownsClient = true
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.metrics == nil {
		s.metrics = providers.DefaultMetrics()
	}
	s.transport = providers.NewTransport(apiName, s.client, cfg.UserAgent, s.logger, s.metrics, s.authorize)
	return s, nil
}

func (s *Session) Name() string {
	return apiName
}

func (s *Session) authorize(req *http.Request) {
	for key, value := range s.config.Headers {
		req.Header.Set(key, value)
	}
	req.SetBasicAuth(s.config.APIKey, "")
}

// APIURL resolves a relative API path against the base URL. Absolute URLs are
// returned unchanged.
func (s *Session) APIURL(ref string) (*url.URL, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("rest: invalid url %q: %w", ref, err)
	}
	if parsed.IsAbs() {
		return parsed, nil
	}
	return s.baseURL.ResolveReference(parsed), nil
}

func (s *Session) GetJSON(ctx context.Context, endpoint string, dest any) error {
	return s.transport.GetJSON(ctx, endpoint, dest)
}

// Close releases idle connections of the session's own HTTP client. A client
// passed with WithHTTPClient is left untouched. Readers created by the session
// must not be used afterwards.
func (s *Session) Close() error {
	if s.ownsClient {
		s.client.CloseIdleConnections()
	}
	return nil
}

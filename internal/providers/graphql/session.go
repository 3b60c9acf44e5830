package graphql

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"octopyenergy/internal/providers"
)

const (
	defaultURL      = "https://api.octopus.energy/v1/graphql/"
	defaultLookback = 16 * 7 * 24 * time.Hour
	apiName         = "graphql"
)

var (
	ErrAPIKeyRequired = errors.New("graphql: api key is required")
	ErrSessionClosed  = errors.New("graphql: session is closed")
)

type Config struct {
	URL       string
	APIKey    string
	Timeout   time.Duration
	UserAgent string
	// Lookback is how far before now the consumption query starts. It must
	// cover at least one complete quarter.
	Lookback time.Duration
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

// WithClock replaces time.Now when computing the lookback window.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// Session is an authenticated GraphQL session. It is created by Open, which
// exchanges the API key for a token, and is unusable after Close.
type Session struct {
	config     Config
	client     *http.Client
	ownsClient bool
	logger     *zap.Logger
	metrics    *providers.Metrics
	now        func() time.Time
	transport  *providers.Transport
	token      string
	closed     atomic.Bool
}

var (
	_ providers.TariffProvider   = (*Session)(nil)
	_ providers.SnapshotProvider = (*Session)(nil)
)

// Open obtains a token for cfg.APIKey and returns a session that sends it on
// every request. Any failure of the exchange is an AuthenticationError.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Session, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrAPIKeyRequired
	}
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = defaultURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = providers.DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = providers.DefaultUserAgent
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = defaultLookback
	}

	s := &Session{config: cfg}
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
	if s.now == nil {
		s.now = time.Now
	}

	anonymous := providers.NewTransport(apiName, s.client, cfg.UserAgent, s.logger, s.metrics, nil)
	token, err := s.obtainToken(ctx, anonymous)
	if err != nil {
		return nil, &providers.AuthenticationError{Err: err}
	}
	s.token = token
	s.transport = providers.NewTransport(apiName, s.client, cfg.UserAgent, s.logger, s.metrics, s.authorize)
	s.logger.Debug("graphql session opened", zap.String("url", cfg.URL))
	return s, nil
}

// WithSession opens a session, runs fn and closes the session on every path.
func WithSession(ctx context.Context, cfg Config, fn func(*Session) error, opts ...Option) error {
	s, err := Open(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func (s *Session) Name() string {
	return apiName
}

// Close releases the session. It is safe to call more than once. Idle
// connections are only closed when the session created its HTTP client.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.ownsClient {
		s.client.CloseIdleConnections()
	}
	s.logger.Debug("graphql session closed")
	return nil
}

func (s *Session) authorize(req *http.Request) {
	req.Header.Set("Authorization", s.token)
}

func (s *Session) obtainToken(ctx context.Context, anonymous *providers.Transport) (string, error) {
	data, err := execute(ctx, anonymous, s.config.URL, tokenMutation, map[string]any{"apikey": s.config.APIKey})
	if err != nil {
		return "", err
	}
	result, err := objectAt(data, "obtainKrakenToken", "token mutation")
	if err != nil {
		return "", err
	}
	token, ok := result["token"].(string)
	if !ok || strings.TrimSpace(token) == "" {
		return "", errors.New("empty token in response")
	}
	return token, nil
}

// Execute runs query with variables and returns the decoded "data" object.
// A non-empty "errors" array is returned as a TransportError wrapping a
// QueryError.
func (s *Session) Execute(ctx context.Context, query string, variables map[string]any) (map[string]any, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	return execute(ctx, s.transport, s.config.URL, query, variables)
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type response struct {
	Data   map[string]any `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func execute(ctx context.Context, transport *providers.Transport, endpoint, query string, variables map[string]any) (map[string]any, error) {
	var resp response
	if err := transport.PostJSON(ctx, endpoint, request{Query: query, Variables: variables}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		messages := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			messages = append(messages, e.Message)
		}
		return nil, &providers.TransportError{
			API:        transport.API(),
			URL:        endpoint,
			StatusCode: http.StatusOK,
			Status:     "200 OK",
			Err:        &providers.QueryError{Messages: messages},
		}
	}
	if resp.Data == nil {
		return nil, &providers.TransportError{
			API:        transport.API(),
			URL:        endpoint,
			StatusCode: http.StatusOK,
			Err:        errors.New("response has no data"),
		}
	}
	return resp.Data, nil
}

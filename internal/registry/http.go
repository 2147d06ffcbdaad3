package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/vehicle-clearance/internal/resilience"
)

// HTTPConfig configures a live registry API client.
type HTTPConfig struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration // per request, default 10s
	RatePerSec  float64       // <= 0 disables limiting
	Burst       int
	MaxAttempts int // default 3
}

// HTTPSource queries a registry API at GET {BaseURL}/registries/{name}/lookup.
type HTTPSource struct {
	name    Name
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	backoff resilience.Backoff
	logger  *slog.Logger
}

type HTTPOption func(*HTTPSource)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		if hc != nil {
			s.client = hc
		}
	}
}

// WithBackoff replaces the retry schedule for transient failures.
func WithBackoff(b resilience.Backoff) HTTPOption {
	return func(s *HTTPSource) {
		s.backoff = b
	}
}

func NewHTTPSource(name Name, cfg HTTPConfig, logger *slog.Logger, opts ...HTTPOption) *HTTPSource {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	b := resilience.DefaultBackoff()
	b.Attempts = cfg.MaxAttempts
	b.OnRetry = resilience.LogRetries(logger, "registry.http."+string(name))

	s := &HTTPSource{
		name:    name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		backoff: b,
		logger:  logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type lookupResponse struct {
	Problem *Record `json:"problem"`
	Valid   *Record `json:"valid"`
}

func (s *HTTPSource) Find(ctx context.Context, c Claim) (Hits, error) {
	return resilience.RetryValue(ctx, s.backoff, func(ctx context.Context) (Hits, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return Hits{}, fmt.Errorf("rate limit wait: %w", err)
		}
		return s.lookupOnce(ctx, c)
	})
}

func (s *HTTPSource) lookupOnce(ctx context.Context, c Claim) (Hits, error) {
	q := url.Values{}
	for k, v := range map[string]string{
		"plate":   c.PlateNumber,
		"policy":  c.PolicyNumber,
		"engine":  c.EngineNumber,
		"chassis": c.ChassisNumber,
	} {
		if v != "" {
			q.Set(k, v)
		}
	}
	endpoint := fmt.Sprintf("%s/registries/%s/lookup?%s", s.baseURL, url.PathEscape(string(s.name)), q.Encode())

	reqID := uuid.New().String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Hits{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("registry.http.send_error", "req_id", reqID, "registry", s.name, "error", err)
		if ctx.Err() != nil {
			return Hits{}, err
		}
		return Hits{}, resilience.Transient(fmt.Errorf("send request: %w", err), 0)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			s.logger.Warn("registry.http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Hits{}, resilience.Transient(fmt.Errorf("read response: %w", err), resp.StatusCode)
	}
	s.logger.Debug("registry.http.response",
		"req_id", reqID,
		"registry", s.name,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		err := fmt.Errorf("registry %s returned status %d", s.name, resp.StatusCode)
		if resilience.IsTransientStatus(resp.StatusCode) {
			return Hits{}, resilience.Transient(err, resp.StatusCode)
		}
		return Hits{}, err
	}

	if err := validateJSON(lookupResponseSchema, raw); err != nil {
		return Hits{}, errors.Join(ErrBadResponse, err)
	}
	var out lookupResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Hits{}, errors.Join(ErrBadResponse, err)
	}
	return Hits{Problem: out.Problem, Valid: out.Valid}, nil
}

// ErrBadResponse marks a registry reply that does not match the lookup schema.
var ErrBadResponse = errors.New("malformed registry response")

package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sudhir1041/nursery-orders/pkg/backoff"
	pkgerrors "github.com/sudhir1041/nursery-orders/pkg/errors"
	"github.com/sudhir1041/nursery-orders/pkg/logger"
	"github.com/sudhir1041/nursery-orders/pkg/metrics"
)

const (
	defaultTimeout      = 30 * time.Second
	errorBodyReadLimit  = 1024
	responseBodyMaxSize = 32 << 20
)

// Authorizer decorates an outgoing request with source credentials.
type Authorizer func(req *http.Request)

// Request describes one upstream call relative to the transport base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Response is a successful upstream reply. NoData marks a 204 or empty body,
// which is a success and distinct from any failure.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	NoData     bool
}

// Decode unmarshals the body into v. It is an error to decode a NoData response.
func (r Response) Decode(v any) error {
	if r.NoData {
		return pkgerrors.New(pkgerrors.CodeData, "upstream returned no data")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeData, err, "decode upstream response")
	}
	return nil
}

// Transport performs paced, retrying JSON calls against one upstream.
type Transport struct {
	source     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	policy     backoff.Policy
	sleeper    backoff.Sleeper
	authorize  Authorizer
	metrics    *metrics.SyncMetrics
	logg       *logger.Logger
}

// Option configures optional transport behavior.
type Option func(*Transport)

func WithHTTPClient(client *http.Client) Option {
	return func(t *Transport) {
		if client != nil {
			t.httpClient = client
		}
	}
}

// WithBaseURL overrides the base URL derived from configuration.
func WithBaseURL(baseURL string) Option {
	return func(t *Transport) {
		trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
		if trimmed != "" {
			t.baseURL = trimmed
		}
	}
}

// WithTimeout sets the per-attempt timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithRateLimit paces calls to rps requests per second. Zero disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(t *Transport) {
		if rps <= 0 {
			t.limiter = nil
			return
		}
		if burst <= 0 {
			burst = max(1, int(rps))
		}
		t.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithPolicy(p backoff.Policy) Option {
	return func(t *Transport) { t.policy = p.Normalize() }
}

func WithSleeper(s backoff.Sleeper) Option {
	return func(t *Transport) {
		if s != nil {
			t.sleeper = s
		}
	}
}

func WithAuthorizer(a Authorizer) Option {
	return func(t *Transport) { t.authorize = a }
}

func WithMetrics(m *metrics.SyncMetrics) Option {
	return func(t *Transport) { t.metrics = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(t *Transport) { t.logg = l }
}

// NewTransport builds a transport rooted at baseURL. source labels logs and metrics.
func NewTransport(source, baseURL string, opts ...Option) *Transport {
	t := &Transport{
		source:     source,
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		policy:     backoff.Default(),
		sleeper:    backoff.RealSleeper,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Policy returns the retry policy in effect.
func (t *Transport) Policy() backoff.Policy { return t.policy }

// Do executes req. 429, 5xx and network failures are retried per the policy
// and surface as TRANSIENT_API_ERROR once attempts run out; any other 4xx
// fails immediately with PERMANENT_API_ERROR.
func (t *Transport) Do(ctx context.Context, req Request) (Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var payload []byte
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return Response{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode upstream request body")
		}
		payload = encoded
	}

	target := t.buildURL(req.Path, req.Query)

	for attempt := 0; ; attempt++ {
		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				return Response{}, pkgerrors.Wrap(pkgerrors.CodeTransientAPI, err, "waiting for upstream rate limit")
			}
		}

		resp, hint, err := t.attempt(ctx, method, target, payload)
		if err == nil {
			t.metrics.UpstreamRequest(t.source, "success")
			return resp, nil
		}
		if !pkgerrors.IsCode(err, pkgerrors.CodeTransientAPI) {
			t.metrics.UpstreamRequest(t.source, "permanent")
			return Response{}, err
		}
		if ctx.Err() != nil || !t.policy.HasNext(attempt) {
			t.metrics.UpstreamRequest(t.source, "exhausted")
			return Response{}, pkgerrors.Wrap(pkgerrors.CodeTransientAPI, err,
				fmt.Sprintf("%s %s failed after %d attempts", method, req.Path, attempt+1))
		}

		delay := t.policy.Delay(attempt, hint)
		t.metrics.UpstreamRetry(t.source)
		if t.logg != nil {
			logCtx := t.logg.WithFields(ctx, map[string]any{
				"source":  t.source,
				"path":    req.Path,
				"attempt": attempt + 1,
				"delay":   delay.String(),
				"reason":  err.Error(),
			})
			t.logg.Warn(logCtx, "upstream call failed, retrying")
		}
		if err := t.sleeper.Sleep(ctx, delay); err != nil {
			return Response{}, pkgerrors.Wrap(pkgerrors.CodeTransientAPI, err, "retry wait interrupted")
		}
	}
}

func (t *Transport) attempt(ctx context.Context, method, target string, payload []byte) (Response, time.Duration, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return Response{}, 0, pkgerrors.Wrap(pkgerrors.CodePermanentAPI, err, "build upstream request")
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if t.authorize != nil {
		t.authorize(httpReq)
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, 0, pkgerrors.Wrap(pkgerrors.CodeTransientAPI, err, "execute upstream request")
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return Response{}, retryAfter(resp.Header, time.Now()), pkgerrors.New(pkgerrors.CodeTransientAPI, "upstream rate limited the request")
	case resp.StatusCode >= http.StatusInternalServerError:
		return Response{}, 0, pkgerrors.Wrap(pkgerrors.CodeTransientAPI, statusError(resp), "upstream server error")
	case resp.StatusCode >= http.StatusBadRequest:
		return Response{}, 0, pkgerrors.Wrap(pkgerrors.CodePermanentAPI, statusError(resp), "upstream rejected the request")
	case resp.StatusCode >= http.StatusMultipleChoices:
		return Response{}, 0, pkgerrors.Wrap(pkgerrors.CodePermanentAPI, statusError(resp), "unexpected upstream redirect")
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyMaxSize))
	if err != nil {
		return Response{}, 0, pkgerrors.Wrap(pkgerrors.CodeTransientAPI, err, "read upstream response")
	}

	out := Response{StatusCode: resp.StatusCode, Header: resp.Header.Clone(), Body: raw}
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 {
		out.NoData = true
		out.Body = nil
	}
	return out, 0, nil
}

func (t *Transport) buildURL(path string, query url.Values) string {
	target := t.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}

// StatusError carries the upstream status code and a truncated body.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

func statusError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(h http.Header, now time.Time) time.Duration {
	value := strings.TrimSpace(h.Get("Retry-After"))
	if value == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// IsNotFound reports whether err is a permanent 404 from the upstream.
func IsNotFound(err error) bool {
	if !pkgerrors.IsCode(err, pkgerrors.CodePermanentAPI) {
		return false
	}
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nrana15/clio/internal/common"
	"github.com/nrana15/clio/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTimeout = 15 * time.Second

	maxErrorBody = 1 << 20
	tracerName   = "github.com/nrana15/clio/internal/client/client"
)

var (
	startErrors = statusErrors{
		http.StatusTooManyRequests:     ErrRateLimited,
		http.StatusUnprocessableEntity: ErrInvalidIdentifier,
		http.StatusBadRequest:          ErrInvalidIdentifier,
	}
	verifyErrors = statusErrors{
		http.StatusUnauthorized:        ErrInvalidCode,
		http.StatusBadRequest:          ErrInvalidCode,
		http.StatusGone:                ErrOtpExpired,
		http.StatusTooManyRequests:     ErrAttemptsExceeded,
		http.StatusUnprocessableEntity: ErrInvalidIdentifier,
	}
	authErrors = statusErrors{
		http.StatusUnauthorized: ErrUnauthorized,
		http.StatusForbidden:    ErrUnauthorized,
	}
)

// HTTPClient is the identity service client.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	log        logging.Logger
	tracer     trace.Tracer
	now        func() time.Time

	tokens    TokenSource
	onRevoked func(ctx context.Context)

	refreshGroup singleflight.Group
	revokeMu     sync.Mutex
}

var _ Client = (*HTTPClient)(nil)

type Option func(*HTTPClient)

// WithTimeout bounds every call. Non-positive values are ignored so the
// timeout can never be disabled.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.httpClient = hc }
}

func WithLogger(l logging.Logger) Option {
	return func(c *HTTPClient) { c.log = l.With("module", "client") }
}

// WithTokenSource sets the credentials Do authenticates with.
func WithTokenSource(ts TokenSource) Option {
	return func(c *HTTPClient) { c.tokens = ts }
}

// WithOnRevoked registers fn to run after a failed refresh has cleared the
// token source.
func WithOnRevoked(fn func(ctx context.Context)) Option {
	return func(c *HTTPClient) { c.onRevoked = fn }
}

func withClock(now func() time.Time) Option {
	return func(c *HTTPClient) { c.now = now }
}

func New(baseURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		log:        logging.Discard(),
		tracer:     otel.Tracer(tracerName),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetTokenSource replaces the token source after construction. The token
// source usually wraps a store built after the client.
func (c *HTTPClient) SetTokenSource(ts TokenSource) {
	c.tokens = ts
}

func (c *HTTPClient) SetOnRevoked(fn func(ctx context.Context)) {
	c.onRevoked = fn
}

func (c *HTTPClient) RequestOtp(ctx context.Context, id Identifier) (*OtpChallenge, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var resp otpStartResponse
	if err := c.doRequest(ctx, http.MethodPost, "/auth/otp/start", "", id, &resp); err != nil {
		return nil, fmt.Errorf("client.RequestOtp: %w", startErrors.mapError(err))
	}

	expires := resp.ExpiresInSeconds
	if expires <= 0 {
		expires = common.OtpLifetimeSeconds
	}
	return &OtpChallenge{
		Identifier:        id,
		RequestedAt:       c.now(),
		ExpiresInSeconds:  expires,
		AttemptsRemaining: common.OtpMaxAttempts,
		DevCode:           resp.OtpCode,
	}, nil
}

func (c *HTTPClient) VerifyOtp(ctx context.Context, id Identifier, code string) (*Tokens, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateCode(code); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var resp otpVerifyResponse
	req := otpVerifyRequest{Identifier: id, OtpCode: code}
	if err := c.doRequest(ctx, http.MethodPost, "/auth/otp/verify", "", req, &resp); err != nil {
		return nil, fmt.Errorf("client.VerifyOtp: %w", verifyErrors.mapError(err))
	}
	if resp.Tokens.AccessToken == "" || resp.Tokens.RefreshToken == "" {
		return nil, fmt.Errorf("client.VerifyOtp: %w: response carries no tokens", ErrUnavailable)
	}

	return resp.Tokens.toTokens(resp.User.ID, c.now()), nil
}

// Refresh exchanges refreshToken for a new pair. When the service does not
// rotate the refresh token the old one is returned in its place. Every
// failure wraps ErrRefreshFailed.
func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", ErrRefreshFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var resp tokenPair
	if err := c.doRequest(ctx, http.MethodPost, "/auth/refresh", "", refreshRequest{RefreshToken: refreshToken}, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, authErrors.mapError(err))
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("%w: response carries no access token", ErrRefreshFailed)
	}
	if resp.RefreshToken == "" {
		resp.RefreshToken = refreshToken
	}

	return resp.toTokens("", c.now()), nil
}

// Logout revokes the session remotely. Failures are logged and dropped.
func (c *HTTPClient) Logout(ctx context.Context, accessToken string) {
	if accessToken == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var refresh string
	if c.tokens != nil {
		_, refresh, _ = c.tokens.Tokens(ctx)
	}
	if err := c.doRequest(ctx, http.MethodPost, "/auth/logout", accessToken, logoutRequest{RefreshToken: refresh}, nil); err != nil {
		c.log.Debug(ctx, "remote logout failed", "error", err)
	}
}

// Me returns the profile of the authenticated user.
func (c *HTTPClient) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.Do(ctx, http.MethodGet, "/users/me", nil, &u); err != nil {
		return nil, fmt.Errorf("client.Me: %w", err)
	}
	return &u, nil
}

// Do performs an authenticated request. A 401 triggers one refresh and one
// retry; a second 401 or a failed refresh returns ErrUnauthorized.
func (c *HTTPClient) Do(ctx context.Context, method, path string, body, out any) error {
	if c.tokens == nil {
		return fmt.Errorf("%w: no token source", ErrUnauthorized)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	access, refresh, err := c.tokens.Tokens(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if access == "" {
		return ErrUnauthorized
	}

	err = c.doRequest(ctx, method, path, access, body, out)
	if !IsStatus(err, http.StatusUnauthorized) {
		return authErrors.mapError(err)
	}

	fresh, err := c.refreshShared(ctx, access, refresh)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	return authErrors.mapError(c.doRequest(ctx, method, path, fresh, body, out))
}

// refreshShared runs at most one refresh per refresh token at a time.
// Callers that saw a 401 for a token already replaced get the replacement
// without another round trip.
func (c *HTTPClient) refreshShared(ctx context.Context, staleAccess, refresh string) (string, error) {
	v, err, shared := c.refreshGroup.Do(refresh, func() (any, error) {
		// The refresh outlives the caller that started it, since others may
		// be waiting on the result.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		current, currentRefresh, err := c.tokens.Tokens(rctx)
		if err != nil {
			return nil, err
		}
		if current == "" {
			return nil, fmt.Errorf("%w: session already revoked", ErrRefreshFailed)
		}
		if current != staleAccess {
			return current, nil
		}

		t, err := c.Refresh(rctx, currentRefresh)
		if err != nil {
			c.revoke(rctx, err)
			return nil, err
		}
		if err := c.tokens.Update(rctx, t.AccessToken, t.RefreshToken); err != nil {
			return nil, fmt.Errorf("store refreshed tokens: %w", err)
		}
		c.log.Info(rctx, "access token refreshed")
		return t.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		c.log.Debug(ctx, "joined in-flight refresh")
	}
	return v.(string), nil
}

func (c *HTTPClient) revoke(ctx context.Context, cause error) {
	c.revokeMu.Lock()
	defer c.revokeMu.Unlock()

	c.log.Warn(ctx, "refresh failed, clearing session", "error", cause)
	if err := c.tokens.Clear(ctx); err != nil {
		c.log.Error(ctx, "clear tokens after failed refresh", "error", err)
	}
	if c.onRevoked != nil {
		c.onRevoked(ctx)
	}
}

func (c *HTTPClient) doRequest(ctx context.Context, method, path, bearer string, body any, out any) (err error) {
	requestID := uuid.NewString()

	ctx, span := c.tracer.Start(ctx, method+" "+path, trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
		attribute.String("clio.request_id", requestID),
	)

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(common.RequestIDHeaderName, requestID)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	if bearer != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+bearer)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug(ctx, "identity request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.log.Debug(ctx, "identity request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"elapsed", time.Since(start),
	)

	if resp.StatusCode >= 400 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if readErr != nil {
			return &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
		}
		var apiErr struct {
			Error  string `json:"error"`
			Detail string `json:"detail"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil {
			if apiErr.Detail != "" {
				return &HTTPError{StatusCode: resp.StatusCode, Message: apiErr.Detail}
			}
			if apiErr.Error != "" {
				return &HTTPError{StatusCode: resp.StatusCode, Message: apiErr.Error}
			}
		}
		return &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Package fineract fetches raw KYC records from the Fineract client KYC
// extension over REST.
package fineract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-retryablehttp"

	"kycstatus/internal/kyc/domain"
	"kycstatus/internal/kyc/ports"
)

const (
	// TenantHeader selects the Fineract tenant database.
	TenantHeader = "Fineract-Platform-TenantId"

	DefaultTenant  = "default"
	DefaultTimeout = 10 * time.Second
	DefaultRetries = 2

	maxBodyBytes = 1 << 20
)

// Client implements ports.StatusFetcher against GET /v1/clients/{id}/extend/kyc.
type Client struct {
	baseURL  *url.URL
	tenant   string
	username string
	password string
	timeout  time.Duration
	retries  int
	waitMin  time.Duration
	waitMax  time.Duration
	logger   *slog.Logger
	http     *http.Client
}

type Option func(*Client)

func WithTenant(tenant string) Option {
	return func(c *Client) {
		c.tenant = tenant
	}
}

// WithBasicAuth sets the credentials sent with every request.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithTimeout bounds each attempt, retries excluded.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRetries sets how many times a failed attempt is retried.
func WithRetries(n int) Option {
	return func(c *Client) {
		c.retries = n
	}
}

// WithRetryWait sets the backoff bounds between attempts.
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(c *Client) {
		c.waitMin = minWait
		c.waitMax = maxWait
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the Fineract instance at baseURL, for example
// https://fineract.example.com/fineract-provider/api.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse fineract base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("fineract base url %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL: u,
		tenant:  DefaultTenant,
		timeout: DefaultTimeout,
		retries: DefaultRetries,
		waitMin: 100 * time.Millisecond,
		waitMax: 2 * time.Second,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = c.retries
	rc.RetryWaitMin = c.waitMin
	rc.RetryWaitMax = c.waitMax
	rc.HTTPClient.Timeout = c.timeout
	rc.Logger = c.logger
	// Keep the final response so status codes can be categorized.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	c.http = rc.StandardClient()

	return c, nil
}

// kycResponse is the subset of the Fineract KYC payload this service reads.
type kycResponse struct {
	ClientID               int64           `json:"clientId"`
	PANVerified            *bool           `json:"panVerified"`
	AadhaarVerified        *bool           `json:"aadhaarVerified"`
	DrivingLicenseVerified *bool           `json:"drivingLicenseVerified"`
	VoterIDVerified        *bool           `json:"voterIdVerified"`
	PassportVerified       *bool           `json:"passportVerified"`
	LastVerifiedOn         json.RawMessage `json:"lastVerifiedOn"`
}

// FetchStatus returns the client's KYC record, or nil when Fineract has none.
func (c *Client) FetchStatus(ctx context.Context, id domain.ClientID) (*domain.RawRecord, error) {
	endpoint := c.baseURL.JoinPath("v1", "clients", id.String(), "extend", "kyc")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), http.NoBody)
	if err != nil {
		return nil, ports.NewLookupError(ports.CategoryInternal, id, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(TenantHeader, c.tenant)
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		req.Header.Set(middleware.RequestIDHeader, reqID)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, ports.NewLookupError(ports.CategoryTimeout, id, "fineract request timed out", err)
		}
		return nil, ports.NewLookupError(ports.CategoryOutage, id, "fineract unreachable", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.WarnContext(ctx, "failed to close fineract response body", "error", err)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ports.NewLookupError(ports.CategoryRateLimited, id, "fineract rate limited", nil)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, ports.NewLookupError(ports.CategoryOutage, id, fmt.Sprintf("fineract returned %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return nil, ports.NewLookupError(ports.CategoryInternal, id, fmt.Sprintf("fineract returned %d", resp.StatusCode), nil)
	}

	var body kycResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return nil, ports.NewLookupError(ports.CategoryBadData, id, "decode kyc response", err)
	}

	return &domain.RawRecord{
		PANVerified:            body.PANVerified,
		AadhaarVerified:        body.AadhaarVerified,
		DrivingLicenseVerified: body.DrivingLicenseVerified,
		VoterIDVerified:        body.VoterIDVerified,
		PassportVerified:       body.PassportVerified,
		LastVerifiedOn:         parseDate(body.LastVerifiedOn),
	}, nil
}

// parseDate accepts Jackson's array form [yyyy, m, d] as well as "yyyy-mm-dd".
// Any other value, including a short array, leaves the date unset; the
// verification flags still count.
func parseDate(raw json.RawMessage) *domain.Date {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var parts []int
	if err := json.Unmarshal(raw, &parts); err == nil {
		if d, ok := domain.DateFromParts(parts); ok {
			return &d
		}
		return nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	d, err := domain.ParseDate(s)
	if err != nil {
		return nil
	}
	return &d
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

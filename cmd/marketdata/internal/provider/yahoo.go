package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Summary modules merged into Info. Earlier modules win on field collisions.
var summaryModules = []string{"financialData", "price", "summaryDetail"}

// DefaultCookieURL hands out the session cookie the crumb endpoint requires.
const DefaultCookieURL = "https://fc.yahoo.com"

// ErrNoCrumb means the session handshake did not yield a crumb.
var ErrNoCrumb = errors.New("upstream crumb unavailable")

// StatusError is a non-2xx answer from the upstream.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// YahooClient reads chart and quoteSummary data from Yahoo Finance style endpoints.
// quoteSummary only answers requests carrying a session cookie and its matching crumb;
// the crumb is fetched lazily and renewed once when the upstream rejects it.
type YahooClient struct {
	baseURL    string
	cookieURL  string
	userAgent  string
	httpClient *http.Client
	logger     *zap.Logger

	crumbMu sync.Mutex
	crumb   string
}

var _ Provider = (*YahooClient)(nil)

type YahooOption func(*YahooClient)

func WithHTTPClient(hc *http.Client) YahooOption {
	return func(c *YahooClient) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) YahooOption {
	return func(c *YahooClient) { c.httpClient.Timeout = d }
}

func WithUserAgent(ua string) YahooOption {
	return func(c *YahooClient) { c.userAgent = ua }
}

func WithCookieURL(u string) YahooOption {
	return func(c *YahooClient) { c.cookieURL = u }
}

func NewYahooClient(baseURL string, logger *zap.Logger, opts ...YahooOption) *YahooClient {
	c := &YahooClient{
		baseURL:    baseURL,
		cookieURL:  DefaultCookieURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient.Jar == nil {
		// cookiejar.New only fails on a bad public suffix list, and none is given.
		jar, _ := cookiejar.New(nil)
		c.httpClient.Jar = jar
	}
	return c
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta map[string]any `json:"meta"`
		} `json:"result"`
	} `json:"chart"`
}

// LastPrice reads meta.regularMarketPrice from the one-day chart.
func (c *YahooClient) LastPrice(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("range", "1d")
	q.Set("interval", "1d")

	var resp chartResponse
	if err := c.get(ctx, "/v8/finance/chart/"+url.PathEscape(symbol), q, &resp); err != nil {
		return 0, err
	}
	if len(resp.Chart.Result) == 0 {
		return 0, ErrNoData
	}

	price, ok := UsablePrice(resp.Chart.Result[0].Meta["regularMarketPrice"])
	if !ok {
		return 0, ErrNoData
	}
	return price, nil
}

type summaryResponse struct {
	QuoteSummary struct {
		Result []map[string]map[string]any `json:"result"`
	} `json:"quoteSummary"`
}

// Info fetches the summary modules and flattens them into one field map.
// Formatted values ({"raw": 1.5, "fmt": "1.50"}) are reduced to their raw number.
func (c *YahooClient) Info(ctx context.Context, symbol string) (Info, error) {
	path := "/v10/finance/quoteSummary/" + url.PathEscape(symbol)

	var resp summaryResponse
	err := c.getSummary(ctx, path, &resp)
	if isAuthError(err) {
		c.logger.Debug("Crumb rejected, renewing session", zap.String("symbol", symbol))
		c.dropCrumb()
		resp = summaryResponse{}
		err = c.getSummary(ctx, path, &resp)
	}
	if err != nil {
		return nil, err
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, ErrNoData
	}

	result := resp.QuoteSummary.Result[0]
	info := make(Info)
	for _, module := range summaryModules {
		for field, raw := range result[module] {
			if _, seen := info[field]; seen {
				continue
			}
			if v, ok := unwrapRaw(raw); ok {
				info[field] = v
			}
		}
	}
	if len(info) == 0 {
		return nil, ErrNoData
	}
	return info, nil
}

func (c *YahooClient) getSummary(ctx context.Context, path string, out *summaryResponse) error {
	crumb, err := c.sessionCrumb(ctx)
	if err != nil {
		return err
	}

	q := url.Values{}
	q.Set("modules", strings.Join(summaryModules, ","))
	q.Set("crumb", crumb)
	return c.get(ctx, path, q, out)
}

// sessionCrumb returns the cached crumb, running the cookie + getcrumb handshake when there is none.
// Concurrent callers wait for a single handshake.
func (c *YahooClient) sessionCrumb(ctx context.Context) (string, error) {
	c.crumbMu.Lock()
	defer c.crumbMu.Unlock()

	if c.crumb != "" {
		return c.crumb, nil
	}

	if err := c.primeCookie(ctx); err != nil {
		return "", err
	}

	body, status, err := c.fetch(ctx, c.baseURL+"/v1/test/getcrumb")
	if err != nil {
		return "", fmt.Errorf("fetch crumb: %w", err)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("%w: getcrumb returned %d", ErrNoCrumb, status)
	}

	crumb := strings.TrimSpace(string(body))
	if crumb == "" || strings.ContainsAny(crumb, "<{") {
		return "", fmt.Errorf("%w: unexpected getcrumb body", ErrNoCrumb)
	}

	c.crumb = crumb
	c.logger.Debug("Upstream session established")
	return crumb, nil
}

// primeCookie visits the cookie URL so the jar holds a session cookie. The page itself
// often answers 404; only the Set-Cookie header matters.
func (c *YahooClient) primeCookie(ctx context.Context) error {
	if c.cookieURL == "" {
		return nil
	}
	if _, _, err := c.fetch(ctx, c.cookieURL); err != nil {
		return fmt.Errorf("fetch session cookie: %w", err)
	}
	return nil
}

func (c *YahooClient) dropCrumb() {
	c.crumbMu.Lock()
	defer c.crumbMu.Unlock()
	c.crumb = ""
}

func isAuthError(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden
}

func (c *YahooClient) fetch(ctx context.Context, fullURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (c *YahooClient) get(ctx context.Context, path string, query url.Values, out any) error {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	body, status, err := c.fetch(ctx, fullURL)
	if err != nil {
		return err
	}

	if status == http.StatusNotFound {
		c.logger.Debug("Upstream has no such symbol", zap.String("path", path))
		return ErrNoData
	}
	if status >= 400 {
		return &StatusError{StatusCode: status, Body: body}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func unwrapRaw(v any) (any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case map[string]any:
		raw, ok := val["raw"]
		if !ok || raw == nil {
			return nil, false
		}
		return raw, true
	default:
		return val, true
	}
}

// Package graphclient implements core.ElementRepository against a remote
// graph store that exposes elements over a JSON HTTP API.
package graphclient

import (
	"bytes"
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

	"github.com/hashicorp/go-retryablehttp"

	"github.com/JonMunkholm/catalog-import/internal/core"
)

// Options configures a Client.
type Options struct {
	BaseURL  string
	Token    string
	Timeout  time.Duration
	RetryMax int
	Logger   *slog.Logger
}

// Client talks to the graph store. Transient failures (network errors, 429
// and 5xx responses) are retried by the underlying retryablehttp client and
// surface as core.ErrBackendUnavailable once retries run out.
type Client struct {
	baseURL *url.URL
	token   string
	http    *retryablehttp.Client
}

var _ core.ElementRepository = (*Client)(nil)

// New validates opts and builds a Client.
func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid repository url: %q", raw)
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if opts.Timeout > 0 {
		rc.HTTPClient.Timeout = opts.Timeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rc.Logger = logger.With("component", "graphclient")

	return &Client{
		baseURL: u,
		token:   strings.TrimSpace(opts.Token),
		http:    rc,
	}, nil
}

type elementDTO struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes,omitempty"`
	UpdatedAt  time.Time      `json:"updatedAt,omitempty"`
}

func (d elementDTO) element() *core.Element {
	return &core.Element{
		ID:         d.ID,
		Type:       d.Type,
		Name:       d.Name,
		Attributes: d.Attributes,
		UpdatedAt:  d.UpdatedAt,
	}
}

type upsertRequest struct {
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
}

type upsertResponse struct {
	ID string `json:"id"`
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// statusError is returned for non-2xx responses that are not mapped to a
// core sentinel.
type statusError struct {
	Status int
	API    apiError
	Body   string
}

func (e *statusError) Error() string {
	if e.API.Message != "" {
		return fmt.Sprintf("graph store status=%d: %s (%s)", e.Status, e.API.Message, e.API.Code)
	}
	return fmt.Sprintf("graph store status=%d body=%s", e.Status, e.Body)
}

// FindByKey asks the graph store for the oldest element whose field matches
// value. The store answers 404 when nothing matches.
func (c *Client) FindByKey(ctx context.Context, elementType, field, value string) (*core.Element, error) {
	q := url.Values{}
	q.Set("type", elementType)
	q.Set("field", field)
	q.Set("value", value)

	var out elementDTO
	err := c.doJSON(ctx, http.MethodGet, "/elements", q, nil, &out)
	if errors.Is(err, core.ErrElementNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find element by %s: %w", field, err)
	}
	return out.element(), nil
}

func (c *Client) GetElement(ctx context.Context, id string) (*core.Element, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: empty id", core.ErrElementNotFound)
	}
	var out elementDTO
	if err := c.doJSON(ctx, http.MethodGet, "/elements/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("get element %s: %w", id, err)
	}
	return out.element(), nil
}

// Upsert POSTs a new element when elementID is empty and PUTs to the
// element's path otherwise.
func (c *Client) Upsert(ctx context.Context, elementType, elementID string, attributes map[string]any) (string, error) {
	body := upsertRequest{Type: elementType, Attributes: attributes}

	method, path := http.MethodPost, "/elements"
	if elementID != "" {
		method, path = http.MethodPut, "/elements/"+url.PathEscape(elementID)
	}

	var out upsertResponse
	if err := c.doJSON(ctx, method, path, nil, body, &out); err != nil {
		return "", fmt.Errorf("upsert element: %w", err)
	}
	if out.ID == "" {
		if elementID == "" {
			return "", errors.New("upsert element: graph store returned no id")
		}
		return elementID, nil
	}
	return out.ID, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, reqBody, out any) error {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s %s: %v", core.ErrBackendUnavailable, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", core.ErrBackendUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusErr(resp.StatusCode, respBody)
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusErr(status int, body []byte) error {
	se := &statusError{Status: status, Body: strings.TrimSpace(string(body))}
	_ = json.Unmarshal(body, &se.API)

	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %v", core.ErrElementNotFound, se)
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: %v", core.ErrBackendUnavailable, se)
	}
	return se
}

// Package remote is the HTTP client for the remote resource and auth APIs.
package remote

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

	"github.com/roach88/listsync/internal/record"
	"github.com/roach88/listsync/internal/session"
)

// DefaultTimeout bounds every request. The engine itself never times out.
const DefaultTimeout = 10 * time.Second

// StatusError is a non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// StatusOf returns the HTTP status of err, or 0 if err is not a StatusError.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsNotFound reports a 404 response.
func IsNotFound(err error) bool { return StatusOf(err) == http.StatusNotFound }

// IsUnauthorized reports a 401 or 403 response.
func IsUnauthorized(err error) bool {
	code := StatusOf(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// Reason returns the server's message for err, or err.Error() otherwise.
func Reason(err error) string {
	var se *StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return err.Error()
}

// Client talks to one remote store.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client, e.g. httptest's.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Client for baseURL with a DefaultTimeout.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server root.
func (c *Client) BaseURL() string { return c.baseURL }

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges credentials for a session via POST /api/login.
func (c *Client) Login(ctx context.Context, username, password string) (session.Session, error) {
	body, err := json.Marshal(credentials{Username: username, Password: password})
	if err != nil {
		return session.Session{}, err
	}

	var s session.Session
	if err := c.do(ctx, http.MethodPost, "/api/login", "", body, func(data []byte) error {
		return json.Unmarshal(data, &s)
	}); err != nil {
		return session.Session{}, err
	}
	return s, nil
}

// Resource returns the collection client for path, e.g. "/api/persons".
func (c *Client) Resource(path string) *Resource {
	return &Resource{client: c, path: "/" + strings.Trim(path, "/")}
}

// Resource is one remote collection.
type Resource struct {
	client *Client
	path   string
}

// Path returns the collection path.
func (r *Resource) Path() string { return r.path }

// List fetches the whole collection.
func (r *Resource) List(ctx context.Context) ([]record.Record, error) {
	var list []record.Record
	err := r.client.do(ctx, http.MethodGet, r.path, "", nil, func(data []byte) error {
		return json.Unmarshal(data, &list)
	})
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []record.Record{}
	}
	return list, nil
}

// Create posts a new record and returns it with its server-assigned id.
func (r *Resource) Create(ctx context.Context, token string, fields record.Fields) (record.Record, error) {
	body, err := record.MarshalFields(fields)
	if err != nil {
		return record.Record{}, err
	}
	return r.one(ctx, http.MethodPost, r.path, token, body)
}

// Update replaces the record with the given id.
func (r *Resource) Update(ctx context.Context, token, id string, fields record.Fields) (record.Record, error) {
	body, err := record.MarshalFields(fields)
	if err != nil {
		return record.Record{}, err
	}
	return r.one(ctx, http.MethodPut, r.itemPath(id), token, body)
}

// Delete removes the record with the given id.
func (r *Resource) Delete(ctx context.Context, token, id string) error {
	return r.client.do(ctx, http.MethodDelete, r.itemPath(id), token, nil, nil)
}

func (r *Resource) itemPath(id string) string {
	return r.path + "/" + url.PathEscape(id)
}

func (r *Resource) one(ctx context.Context, method, path, token string, body []byte) (record.Record, error) {
	var rec record.Record
	err := r.client.do(ctx, method, path, token, body, func(data []byte) error {
		return json.Unmarshal(data, &rec)
	})
	return rec, err
}

type errorBody struct {
	Error string `json:"error"`
}

// do sends one request. decode is called with the body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path, token string, body []byte, decode func([]byte) error) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	c.logger.Debug("request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil && eb.Error != "" {
			se.Message = eb.Error
		} else {
			se.Message = strings.TrimSpace(string(data))
		}
		return se
	}

	if decode == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := decode(data); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

// Package client is a Go client for the QMS workflow HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// DefaultTenantHeader is the header carrying the organization id.
const DefaultTenantHeader = "X-Organization-ID"

// Client calls the workflow API on behalf of one actor.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	token        string
	tenantID     uuid.UUID
	tenantHeader string
	retries      uint64
	retryWait    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTenant sends the organization id in header.
// An empty header uses DefaultTenantHeader.
func WithTenant(tenantID uuid.UUID, header string) Option {
	return func(c *Client) {
		c.tenantID = tenantID
		if header != "" {
			c.tenantHeader = header
		}
	}
}

// WithRetries sets how often reads are retried on transport errors and 5xx
// responses. Writes are never retried.
func WithRetries(n uint64, initialWait time.Duration) Option {
	return func(c *Client) {
		c.retries = n
		c.retryWait = initialWait
	}
}

// New creates a Client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		tenantHeader: DefaultTenantHeader,
		retries:      2,
		retryWait:    200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx answer of the API.
type APIError struct {
	Status  int
	Reason  string
	Message string
	Fields  []string
	Errors  []FieldError
}

// FieldError is one field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("api: %d %s: %s", e.Status, e.Reason, e.Message)
	}
	return fmt.Sprintf("api: %d: %s", e.Status, e.Message)
}

// RejectReason exposes the rejection reason to boardsync.
func (e *APIError) RejectReason() (string, []string) {
	return e.Reason, e.Fields
}

// IsNotFound reports whether err is a 404 answer.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusNotFound
}

type errorBody struct {
	Reason string       `json:"reason"`
	Error  string       `json:"error"`
	Fields []string     `json:"fields"`
	Errors []FieldError `json:"errors"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
	}

	call := func() error {
		err := c.send(ctx, method, path, payload, out)
		if err == nil {
			return nil
		}
		var ae *APIError
		if errors.As(err, &ae) && ae.Status < http.StatusInternalServerError {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	if method != http.MethodGet || c.retries == 0 {
		return c.send(ctx, method, path, payload, out)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryWait
	return backoff.Retry(call, backoff.WithContext(backoff.WithMaxRetries(policy, c.retries), ctx))
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("client: new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.tenantID != uuid.Nil {
		req.Header.Set(c.tenantHeader, c.tenantID.String())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	ae := &APIError{Status: resp.StatusCode}

	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		ae.Reason = body.Reason
		ae.Message = body.Error
		ae.Fields = body.Fields
		ae.Errors = body.Errors
	} else {
		ae.Message = strings.TrimSpace(string(raw))
	}
	if ae.Message == "" {
		ae.Message = http.StatusText(resp.StatusCode)
	}
	return ae
}

// ---------------------------------------------------------------------------
// Processes
// ---------------------------------------------------------------------------

// ListProcesses returns the processes of the tenant with their states.
func (c *Client) ListProcesses(ctx context.Context, includeInactive bool) ([]Process, error) {
	q := url.Values{"include": {"states"}}
	if includeInactive {
		q.Set("inactive", "true")
	}
	var out []Process
	if err := c.do(ctx, http.MethodGet, "/api/processes?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetProcess returns the process graph.
func (c *Client) GetProcess(ctx context.Context, processID uuid.UUID) (*Graph, error) {
	var out Graph
	if err := c.do(ctx, http.MethodGet, "/api/processes/"+processID.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateProcess creates a complete process. Requires an admin token.
func (c *Client) CreateProcess(ctx context.Context, req CreateProcessRequest) (*Graph, error) {
	var out Graph
	if err := c.do(ctx, http.MethodPost, "/api/processes", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeactivateProcess hides a process from listings.
func (c *Client) DeactivateProcess(ctx context.Context, processID uuid.UUID) error {
	return c.do(ctx, http.MethodPost, "/api/processes/"+processID.String()+"/deactivate", nil, nil)
}

// ReorderStates sets the display order of all states of a process.
func (c *Client) ReorderStates(ctx context.Context, processID uuid.UUID, ordered []uuid.UUID) error {
	body := struct {
		OrderedStateIDs []uuid.UUID `json:"orderedStateIds"`
	}{ordered}
	return c.do(ctx, http.MethodPatch, "/api/processes/"+processID.String()+"/states/order", body, nil)
}

// DefineField creates or replaces a template field.
func (c *Client) DefineField(ctx context.Context, processID uuid.UUID, f Field) (*Field, error) {
	var out Field
	path := "/api/processes/" + processID.String() + "/fields/" + url.PathEscape(f.Name)
	if err := c.do(ctx, http.MethodPut, path, f, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBoard returns every column of a process with its cards.
func (c *Client) GetBoard(ctx context.Context, processID uuid.UUID) (*Board, error) {
	var out Board
	if err := c.do(ctx, http.MethodGet, "/api/processes/"+processID.String()+"/board", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListByState returns the active records of a state in board order.
func (c *Client) ListByState(ctx context.Context, processID, stateID uuid.UUID) ([]Record, error) {
	var out []Record
	path := fmt.Sprintf("/api/processes/%s/states/%s/records", processID, stateID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Records
// ---------------------------------------------------------------------------

// CreateRecord creates a record in an initial state of its process.
func (c *Client) CreateRecord(ctx context.Context, req CreateRecordRequest) (*Record, error) {
	var out Record
	if err := c.do(ctx, http.MethodPost, "/api/records", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetRecord returns a record with its history.
func (c *Client) GetRecord(ctx context.Context, recordID uuid.UUID) (*Record, error) {
	var out Record
	if err := c.do(ctx, http.MethodGet, "/api/records/"+recordID.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateRecord changes non-workflow attributes of a record.
func (c *Client) UpdateRecord(ctx context.Context, recordID uuid.UUID, req UpdateRecordRequest) (*Record, error) {
	var out Record
	if err := c.do(ctx, http.MethodPatch, "/api/records/"+recordID.String(), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ArchiveRecord soft-deletes a record.
func (c *Client) ArchiveRecord(ctx context.Context, recordID uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/records/"+recordID.String(), nil, nil)
}

// ListChildren returns the direct sub-records of a record.
func (c *Client) ListChildren(ctx context.Context, recordID uuid.UUID) ([]Record, error) {
	var out []Record
	if err := c.do(ctx, http.MethodGet, "/api/records/"+recordID.String()+"/children", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// History returns the state changes of a record, oldest first.
func (c *Client) History(ctx context.Context, recordID uuid.UUID) ([]HistoryEntry, error) {
	var out []HistoryEntry
	if err := c.do(ctx, http.MethodGet, "/api/records/"+recordID.String()+"/history", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Move moves a record. A rejected move returns an *APIError whose Reason is
// UnknownState, IllegalTransition, MissingRequiredFields, Conflict or NotFound.
func (c *Client) Move(ctx context.Context, recordID uuid.UUID, req MoveRequest) (*Record, error) {
	var out Record
	if err := c.do(ctx, http.MethodPatch, "/api/records/"+recordID.String()+"/move", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

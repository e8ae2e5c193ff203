package portalsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal citizen portal HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

type Attachment struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type,omitempty"`
	Kind string `json:"kind,omitempty"`
}

type TimelineEvent struct {
	Date        string `json:"date"`
	Status      string `json:"status"`
	Description string `json:"description"`
	By          string `json:"by,omitempty"`
}

// Request is the API request model (partial).
type Request struct {
	ReferenceID         string          `json:"referenceId"`
	FullName            string          `json:"fullName"`
	Category            string          `json:"category"`
	ServiceType         string          `json:"serviceType"`
	Priority            string          `json:"priority"`
	Title               string          `json:"title"`
	Status              string          `json:"status"`
	Progress            int             `json:"progress"`
	SubmittedAt         string          `json:"submittedAt"`
	LastUpdated         string          `json:"lastUpdated"`
	AssignedTo          string          `json:"assignedTo,omitempty"`
	EstimatedCompletion string          `json:"estimatedCompletion,omitempty"`
	Attachments         []Attachment    `json:"attachments"`
	Timeline            []TimelineEvent `json:"timeline"`
}

// Submission is the citizen-facing intake form.
type Submission struct {
	ReferenceID      string       `json:"referenceId,omitempty"`
	FullName         string       `json:"fullName"`
	Phone            string       `json:"phone"`
	Email            string       `json:"email,omitempty"`
	NationalID       string       `json:"nationalId"`
	PreferredContact string       `json:"preferredContact"`
	Category         string       `json:"category"`
	ServiceType      string       `json:"serviceType"`
	Priority         string       `json:"priority"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	Attachments      []Attachment `json:"attachments,omitempty"`
}

type SubmitResult struct {
	ReferenceID         string  `json:"referenceId"`
	Request             Request `json:"request"`
	RejectedAttachments []struct {
		Name   string `json:"name"`
		Reason string `json:"reason"`
	} `json:"rejectedAttachments"`
	Replayed bool `json:"replayed"`
}

type Transition struct {
	Status              string `json:"status"`
	Progress            *int   `json:"progress,omitempty"`
	Description         string `json:"description,omitempty"`
	By                  string `json:"by,omitempty"`
	AssignedTo          string `json:"assignedTo,omitempty"`
	Notes               string `json:"notes,omitempty"`
	EstimatedCompletion string `json:"estimatedCompletion,omitempty"`
}

// Event represents an audit log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityID   string         `json:"entity_id"`
	EntityKind string         `json:"entity_kind"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Retryable reports whether the server asked the caller to try again later.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusServiceUnavailable || e.StatusCode == http.StatusTooManyRequests
}

// PaginatedRequests wraps list responses with cursors.
type PaginatedRequests struct {
	Items      []Request `json:"items"`
	NextCursor string    `json:"next_cursor"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// NewReference reserves a reference id so a submission can be retried safely.
func (c *Client) NewReference(ctx context.Context) (string, error) {
	var resp struct {
		ReferenceID string `json:"referenceId"`
	}
	err := c.do(ctx, http.MethodPost, "v0/references", nil, &resp)
	return resp.ReferenceID, err
}

// Submit sends an intake form.
func (c *Client) Submit(ctx context.Context, s Submission) (SubmitResult, error) {
	var resp SubmitResult
	err := c.do(ctx, http.MethodPost, "v0/requests", s, &resp)
	return resp, err
}

// Lookup fetches a request by reference id.
func (c *Client) Lookup(ctx context.Context, referenceID string) (Request, string, error) {
	var resp struct {
		Request Request `json:"request"`
		Source  string  `json:"source"`
	}
	err := c.do(ctx, http.MethodGet, "v0/requests/"+url.PathEscape(referenceID), nil, &resp)
	return resp.Request, resp.Source, err
}

// Login exchanges staff credentials for a bearer token and keeps it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "v0/staff/login", map[string]string{"email": email, "password": password}, &resp); err != nil {
		return "", err
	}
	c.BearerToken = resp.Token
	return resp.Token, nil
}

// Transition moves a request to a new status.
func (c *Client) Transition(ctx context.Context, referenceID string, t Transition) (Request, error) {
	var resp Request
	endpoint := fmt.Sprintf("v0/staff/requests/%s/transitions", url.PathEscape(referenceID))
	err := c.do(ctx, http.MethodPost, endpoint, t, &resp)
	return resp, err
}

// AddDocument attaches a staff document to a request.
func (c *Client) AddDocument(ctx context.Context, referenceID string, doc Attachment) (Attachment, error) {
	var resp struct {
		Attachment Attachment `json:"attachment"`
	}
	endpoint := fmt.Sprintf("v0/staff/requests/%s/documents", url.PathEscape(referenceID))
	err := c.do(ctx, http.MethodPost, endpoint, doc, &resp)
	return resp.Attachment, err
}

// List returns one page of requests, newest first.
func (c *Client) List(ctx context.Context, status string, limit int, cursor string) (PaginatedRequests, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var resp PaginatedRequests
	err := c.do(ctx, http.MethodGet, withQuery("v0/staff/requests", q), nil, &resp)
	return resp, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, withQuery("v0/staff/events", q), nil, &resp)
	return resp, err
}

func withQuery(endpoint string, q url.Values) string {
	if len(q) == 0 {
		return endpoint
	}
	return endpoint + "?" + q.Encode()
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

// Package azuredevops implements the workflow provider contract against the
// Azure DevOps work item tracking REST API. It is the system-of-record
// boundary: the engine core never talks HTTP directly.
package azuredevops

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"log/slog"

	"github.com/MuiGoku123432/adoflow/internal/logging"
	"github.com/MuiGoku123432/adoflow/pkg/domain"
	"github.com/cenkalti/backoff/v4"
)

const (
	defaultBaseURL = "https://dev.azure.com"
	apiVersion     = "7.1"
)

// Config carries the connection settings for one ADO organization/project.
type Config struct {
	Organization string
	Project      string
	PAT          string

	// BaseURL overrides the ADO endpoint, used by tests and on-prem servers.
	BaseURL string

	// MaxElapsed bounds the retry window for transient failures (429/5xx).
	// Zero disables retries entirely.
	MaxElapsed time.Duration
}

// Client implements ports.WorkflowProvider and ports.IdentityResolver.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger configures a logger for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates an ADO client for the given organization and project.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// workItemResponse is the subset of the work item payload the engine needs.
type workItemResponse struct {
	ID     int            `json:"id"`
	Rev    int            `json:"rev"`
	Fields map[string]any `json:"fields"`
}

// GetWorkItem fetches the current snapshot of a work item.
func (c *Client) GetWorkItem(ctx context.Context, id int) (*domain.WorkItemRef, error) {
	endpoint := fmt.Sprintf("%s/%s/%s/_apis/wit/workitems/%d?api-version=%s",
		c.cfg.BaseURL, url.PathEscape(c.cfg.Organization), url.PathEscape(c.cfg.Project), id, apiVersion)

	var wi workItemResponse
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &wi); err != nil {
		return nil, fmt.Errorf("failed to fetch work item %d: %w", id, err)
	}

	return &domain.WorkItemRef{
		ID:           wi.ID,
		CurrentState: fieldString(wi.Fields, "System.State", "New"),
		WorkItemType: fieldString(wi.Fields, "System.WorkItemType", "Task"),
		Rev:          wi.Rev,
	}, nil
}

// transitionListResponse mirrors the workitemtransitions payload.
type transitionListResponse struct {
	Count int `json:"count"`
	Value []struct {
		ID                int    `json:"id"`
		StateOnTransition string `json:"stateOnTransition"`
	} `json:"value"`
}

// QueryNextState asks ADO for the next state of the item and, when one
// exists, discovers the fields required to enter it via a validate-only
// update. The first transition ADO reports for the item wins.
func (c *Client) QueryNextState(ctx context.Context, item *domain.WorkItemRef) (*domain.NextState, error) {
	endpoint := fmt.Sprintf("%s/%s/_apis/wit/workitemtransitions?ids=%d&api-version=%s",
		c.cfg.BaseURL, url.PathEscape(c.cfg.Organization), item.ID, apiVersion)

	var transitions transitionListResponse
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &transitions); err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}

	targetState := ""
	for _, t := range transitions.Value {
		if t.ID == item.ID && t.StateOnTransition != "" {
			targetState = t.StateOnTransition
			break
		}
	}
	if targetState == "" {
		return nil, nil
	}

	specs, err := c.discoverRequiredFields(ctx, item.ID, targetState)
	if err != nil {
		return nil, err
	}

	return &domain.NextState{TargetState: targetState, RequiredFields: specs}, nil
}

// discoverRequiredFields performs a validate-only state change and parses
// the validation failure (if any) into field specs. A clean validation means
// no additional fields are needed.
func (c *Client) discoverRequiredFields(ctx context.Context, id int, targetState string) ([]domain.FieldSpec, error) {
	ops := []patchOp{{Op: "replace", Path: "/fields/System.State", Value: targetState}}

	err := c.patchWorkItem(ctx, id, ops, true)
	if err == nil {
		return nil, nil
	}

	var remoteErr *remoteError
	if !errors.As(err, &remoteErr) || remoteErr.StatusCode != http.StatusBadRequest {
		return nil, fmt.Errorf("validate-only update failed: %w", err)
	}

	names := parseRequiredFields(remoteErr.Message)
	if len(names) == 0 {
		// A 400 without field requirements means the transition itself is
		// invalid; surface that instead of an empty prompt list.
		return nil, fmt.Errorf("transition validation failed: %s", remoteErr.Message)
	}

	specs := make([]domain.FieldSpec, 0, len(names))
	for _, name := range names {
		specs = append(specs, domain.FieldSpec{RefName: name, Required: true})
	}

	c.logger.Debug("discovered required fields from validation",
		"work_item_id", id,
		"target_state", targetState,
		"fields", len(specs),
	)
	return specs, nil
}

// ApplyTransition submits the state change plus field values as one JSON
// Patch document. A non-zero rev adds a test op for optimistic concurrency.
func (c *Client) ApplyTransition(ctx context.Context, id int, rev int, targetState string, fields map[string]any) error {
	ops := make([]patchOp, 0, len(fields)+2)
	if rev > 0 {
		ops = append(ops, patchOp{Op: "test", Path: "/rev", Value: rev})
	}
	ops = append(ops, patchOp{Op: "replace", Path: "/fields/System.State", Value: targetState})
	for _, name := range sortedKeys(fields) {
		ops = append(ops, patchOp{Op: "replace", Path: "/fields/" + name, Value: fields[name]})
	}

	if err := c.patchWorkItem(ctx, id, ops, false); err != nil {
		return fmt.Errorf("failed to update work item %d: %w", id, err)
	}

	c.logger.Info("work item updated",
		"work_item_id", id,
		"target_state", targetState,
		"fields", len(fields),
	)
	return nil
}

// connectionDataResponse is the subset of connectionData the resolver needs.
type connectionDataResponse struct {
	AuthenticatedUser struct {
		ProviderDisplayName string `json:"providerDisplayName"`
		Properties          struct {
			Account struct {
				Value string `json:"$value"`
			} `json:"Account"`
		} `json:"properties"`
	} `json:"authenticatedUser"`
}

// CurrentUser resolves the identity behind the configured PAT, used to
// default identity fields at submission time.
func (c *Client) CurrentUser(ctx context.Context) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/_apis/connectionData?api-version=%s",
		c.cfg.BaseURL, url.PathEscape(c.cfg.Organization), apiVersion)

	var data connectionDataResponse
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &data); err != nil {
		return "", fmt.Errorf("failed to resolve current user: %w", err)
	}

	if account := data.AuthenticatedUser.Properties.Account.Value; account != "" {
		return account, nil
	}
	if name := data.AuthenticatedUser.ProviderDisplayName; name != "" {
		return name, nil
	}
	return "", fmt.Errorf("connection data did not identify the authenticated user")
}

func (c *Client) patchWorkItem(ctx context.Context, id int, ops []patchOp, validateOnly bool) error {
	endpoint := fmt.Sprintf("%s/%s/%s/_apis/wit/workitems/%d?api-version=%s&suppressNotifications=true",
		c.cfg.BaseURL, url.PathEscape(c.cfg.Organization), url.PathEscape(c.cfg.Project), id, apiVersion)
	if validateOnly {
		endpoint += "&validateOnly=true"
	}

	body, err := json.Marshal(ops)
	if err != nil {
		return fmt.Errorf("failed to marshal patch document: %w", err)
	}
	return c.do(ctx, http.MethodPatch, endpoint, body, "application/json-patch+json", nil)
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body []byte, out any) error {
	return c.do(ctx, method, endpoint, body, "application/json", out)
}

// do performs one request with PAT auth, retrying transient failures when a
// retry window is configured. 4xx responses are permanent.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, contentType string, out any) error {
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Basic "+basicAuth(c.cfg.PAT))
		req.Header.Set("Accept", "application/json")
		if len(body) > 0 {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err // transport failure, retryable
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if out == nil {
				return nil
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
			}
			return nil
		}

		remote := newRemoteError(resp.StatusCode, resp.Body)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return remote
		}
		return backoff.Permanent(remote)
	}

	if c.cfg.MaxElapsed <= 0 {
		return unwrapPermanent(attempt())
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.cfg.MaxElapsed
	return unwrapPermanent(backoff.Retry(attempt, backoff.WithContext(bo, ctx)))
}

// unwrapPermanent strips the backoff wrapper so callers see the underlying
// remote error regardless of whether retries were enabled.
func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

// remoteError preserves the provider's refusal verbatim for the caller.
type remoteError struct {
	StatusCode int
	Message    string
}

func (e *remoteError) Error() string {
	return fmt.Sprintf("ado responded %d: %s", e.StatusCode, e.Message)
}

func newRemoteError(status int, body io.Reader) *remoteError {
	raw, _ := io.ReadAll(io.LimitReader(body, 64*1024))

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Message != "" {
		return &remoteError{StatusCode: status, Message: payload.Message}
	}
	return &remoteError{StatusCode: status, Message: string(raw)}
}

func basicAuth(pat string) string {
	return base64.StdEncoding.EncodeToString([]byte(":" + pat))
}

func fieldString(fields map[string]any, name, fallback string) string {
	if v, ok := fields[name].(string); ok && v != "" {
		return v
	}
	return fallback
}

// sortedKeys keeps the patch document order deterministic.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

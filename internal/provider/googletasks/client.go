// Package googletasks implements the provider.Provider interface using
// the Google Tasks API.
package googletasks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"tasksync/internal/config"
	"tasksync/internal/model"
	"tasksync/internal/provider"
)

const (
	// DefaultListID is the special ID for the default list.
	DefaultListID = "@default"

	// PageSize is the number of tasks per page.
	PageSize = 100

	// APITimeout is the timeout for API calls.
	APITimeout = 30 * time.Second

	// OAuth scope for Google Tasks
	tasksScope = "https://www.googleapis.com/auth/tasks"
)

// Client implements provider.Provider using the Google Tasks API.
//
// The underlying service is built lazily on first use, so the daemon can
// start before the OAuth files exist; calls made without them fail with
// provider.ErrAuthExpired.
type Client struct {
	cfg *config.Config

	mu  sync.Mutex
	svc *tasks.Service
}

// New creates a Google Tasks client over the OAuth files in the config
// directory.
func New(cfg *config.Config) *Client {
	return &Client{cfg: cfg}
}

// NewWithHTTPClient creates a client with a custom HTTP client (for testing).
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client) (*Client, error) {
	svc, err := tasks.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}
	return &Client{svc: svc}, nil
}

// service returns the Tasks API service, building it from the stored
// OAuth client config and token on first call.
func (c *Client) service(ctx context.Context) (*tasks.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.svc != nil {
		return c.svc, nil
	}

	clientJSON, err := os.ReadFile(c.cfg.OAuthClientPath())
	if err != nil {
		return nil, fmt.Errorf("read oauth_client.json: %w", provider.ErrAuthExpired)
	}

	oauthConfig, err := google.ConfigFromJSON(clientJSON, tasksScope)
	if err != nil {
		return nil, fmt.Errorf("invalid oauth_client.json: %w", err)
	}

	tokenData, err := os.ReadFile(c.cfg.TokenPath())
	if err != nil {
		return nil, fmt.Errorf("read token.json: %w", provider.ErrAuthExpired)
	}

	var token oauth2.Token
	if err := json.Unmarshal(tokenData, &token); err != nil {
		return nil, fmt.Errorf("invalid token.json: %w", err)
	}

	// Token source auto-refreshes using the refresh token.
	tokenSource := oauthConfig.TokenSource(context.Background(), &token)
	httpClient := oauth2.NewClient(context.Background(), tokenSource)

	svc, err := tasks.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create tasks service: %w", err)
	}

	c.svc = svc
	return c.svc, nil
}

// FetchItems returns every task in the list, completed and hidden tasks
// included. Completion propagation needs to see completed tasks.
func (c *Client) FetchItems(ctx context.Context, listID string) ([]model.Item, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}
	if listID == "" {
		listID = DefaultListID
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	var items []model.Item
	err = svc.Tasks.List(listID).
		MaxResults(PageSize).
		ShowCompleted(true).
		ShowHidden(true).
		ShowDeleted(false).
		Context(ctx).
		Pages(ctx, func(resp *tasks.Tasks) error {
			for _, t := range resp.Items {
				items = append(items, toItem(t))
			}
			return nil
		})
	if err != nil {
		return nil, wrapError(err)
	}
	return items, nil
}

// CreateItem creates a task and returns its assigned ID.
func (c *Client) CreateItem(ctx context.Context, listID string, item model.Item) (string, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return "", err
	}
	if listID == "" {
		listID = DefaultListID
	}
	if strings.TrimSpace(item.Title) == "" {
		return "", fmt.Errorf("task title is empty: %w", provider.ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	created, err := svc.Tasks.Insert(listID, fromItem(item)).Context(ctx).Do()
	if err != nil {
		return "", wrapError(err)
	}
	return created.Id, nil
}

// UpdateItem applies a partial field update via Patch.
func (c *Client) UpdateItem(ctx context.Context, listID, externalID string, fields model.Fields) error {
	svc, err := c.service(ctx)
	if err != nil {
		return err
	}
	if listID == "" {
		listID = DefaultListID
	}

	patch := &tasks.Task{}
	if fields.Title != nil {
		patch.Title = *fields.Title
	}
	if fields.SetNotes {
		if fields.Notes != nil {
			patch.Notes = *fields.Notes
		} else {
			patch.NullFields = append(patch.NullFields, "Notes")
		}
	}
	if fields.SetDue {
		if fields.DueAt != nil {
			patch.Due = fields.DueAt.UTC().Format(time.RFC3339)
		} else {
			patch.NullFields = append(patch.NullFields, "Due")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	if _, err := svc.Tasks.Patch(listID, externalID, patch).Context(ctx).Do(); err != nil {
		return wrapError(err)
	}
	return nil
}

// CompleteItem marks a task completed.
func (c *Client) CompleteItem(ctx context.Context, listID, externalID string) error {
	svc, err := c.service(ctx)
	if err != nil {
		return err
	}
	if listID == "" {
		listID = DefaultListID
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	_, err = svc.Tasks.Patch(listID, externalID, &tasks.Task{
		Status: "completed",
	}).Context(ctx).Do()
	if err != nil {
		return wrapError(err)
	}
	return nil
}

// ListLists returns all task lists in API order, the default list first
// normalized to @default.
func (c *Client) ListLists(ctx context.Context) ([]provider.List, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	// Resolve the default list's real ID so it can be flagged.
	defaultList, err := svc.Tasklists.Get(DefaultListID).Context(ctx).Do()
	if err != nil {
		return nil, wrapError(err)
	}
	defaultRealID := defaultList.Id

	var result []provider.List
	err = svc.Tasklists.List().MaxResults(100).Pages(ctx, func(resp *tasks.TaskLists) error {
		for _, list := range resp.Items {
			isDefault := list.Id == defaultRealID
			id := list.Id
			if isDefault {
				id = DefaultListID
			}
			result = append(result, provider.List{
				ID:        id,
				Name:      list.Title,
				IsDefault: isDefault,
			})
		}
		return nil
	})
	if err != nil {
		return nil, wrapError(err)
	}
	return result, nil
}

// toItem converts an API task to the normalized item model.
func toItem(t *tasks.Task) model.Item {
	item := model.Item{
		ExternalID: t.Id,
		Title:      t.Title,
		Completed:  t.Status == "completed",
		Source:     model.SourceTasks,
	}
	if t.Notes != "" {
		notes := t.Notes
		item.Notes = &notes
	}
	if t.Due != "" {
		if due, err := time.Parse(time.RFC3339, t.Due); err == nil {
			item.DueAt = &due
		}
	}
	if t.Updated != "" {
		if updated, err := time.Parse(time.RFC3339, t.Updated); err == nil {
			item.UpdatedAt = updated
		}
	}
	return item
}

// fromItem converts a normalized item to an API task for insertion.
func fromItem(item model.Item) *tasks.Task {
	t := &tasks.Task{
		Title:  item.Title,
		Status: "needsAction",
	}
	if item.Completed {
		t.Status = "completed"
	}
	if item.Notes != nil {
		t.Notes = *item.Notes
	}
	if item.DueAt != nil {
		t.Due = item.DueAt.UTC().Format(time.RFC3339)
	}
	return t
}

// wrapError classifies API errors into the provider taxonomy.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	errStr := err.Error()

	if strings.Contains(errStr, "context deadline exceeded") {
		return fmt.Errorf("request timed out: %w", provider.ErrUnavailable)
	}
	if strings.Contains(errStr, "401") || strings.Contains(errStr, "403") {
		return fmt.Errorf("token expired or revoked: %w", provider.ErrAuthExpired)
	}
	if strings.Contains(errStr, "404") {
		return fmt.Errorf("%w: %v", provider.ErrNotFound, err)
	}
	if strings.Contains(errStr, "400") {
		return fmt.Errorf("%w: %v", provider.ErrValidation, err)
	}

	return fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
}

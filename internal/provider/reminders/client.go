// Package reminders implements the provider.Provider interface against
// the local Apple Reminders store.
//
// Go cannot call EventKit directly, so the adapter drives a small helper
// process that owns the EventKit session. Each call spawns the helper,
// writes one JSON request to its stdin, and reads one JSON response from
// its stdout. The helper enforces its own permission prompts; this side
// enforces a deadline so a stuck helper never hangs a cycle.
package reminders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"tasksync/internal/config"
	"tasksync/internal/model"
	"tasksync/internal/provider"
)

// BridgeTimeout bounds one helper invocation, permission prompt included.
const BridgeTimeout = 30 * time.Second

// Client implements provider.Provider by shelling out to the reminders
// bridge helper.
type Client struct {
	command string
}

// New creates a client using the bridge command from the config.
func New(cfg *config.Config) *Client {
	return &Client{command: cfg.BridgeCommand()}
}

// NewWithCommand creates a client invoking an explicit command (for testing).
func NewWithCommand(command string) *Client {
	return &Client{command: command}
}

type bridgeRequest struct {
	Op     string        `json:"op"`
	ListID string        `json:"list_id,omitempty"`
	ItemID string        `json:"item_id,omitempty"`
	Item   *bridgeItem   `json:"item,omitempty"`
	Fields *bridgeFields `json:"fields,omitempty"`
}

type bridgeItem struct {
	ID        string     `json:"id,omitempty"`
	Title     string     `json:"title"`
	Notes     *string    `json:"notes,omitempty"`
	DueAt     *time.Time `json:"due_at,omitempty"`
	Completed bool       `json:"completed"`
	UpdatedAt time.Time  `json:"updated_at"`
	LinkID    string     `json:"link_id,omitempty"`
}

type bridgeFields struct {
	Title    *string    `json:"title,omitempty"`
	SetNotes bool       `json:"set_notes,omitempty"`
	Notes    *string    `json:"notes,omitempty"`
	SetDue   bool       `json:"set_due,omitempty"`
	DueAt    *time.Time `json:"due_at,omitempty"`
}

type bridgeList struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Default bool   `json:"default,omitempty"`
}

type bridgeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type bridgeResponse struct {
	Items []bridgeItem `json:"items,omitempty"`
	Lists []bridgeList `json:"lists,omitempty"`
	ID    string       `json:"id,omitempty"`
	Error *bridgeError `json:"error,omitempty"`
}

// FetchItems returns all reminders in the list, completed included.
func (c *Client) FetchItems(ctx context.Context, listID string) ([]model.Item, error) {
	resp, err := c.invoke(ctx, bridgeRequest{Op: "fetch", ListID: listID})
	if err != nil {
		return nil, err
	}

	items := make([]model.Item, 0, len(resp.Items))
	for _, bi := range resp.Items {
		items = append(items, model.Item{
			ExternalID: bi.ID,
			Title:      bi.Title,
			Notes:      bi.Notes,
			DueAt:      bi.DueAt,
			Completed:  bi.Completed,
			UpdatedAt:  bi.UpdatedAt,
			Source:     model.SourceReminders,
			LinkID:     bi.LinkID,
		})
	}
	return items, nil
}

// CreateItem creates a reminder and returns its EventKit identifier. The
// source item's external ID is passed as the link so the bridge can
// record the cross-reference on the reminder.
func (c *Client) CreateItem(ctx context.Context, listID string, item model.Item) (string, error) {
	resp, err := c.invoke(ctx, bridgeRequest{
		Op:     "create",
		ListID: listID,
		Item: &bridgeItem{
			Title:     item.Title,
			Notes:     item.Notes,
			DueAt:     item.DueAt,
			Completed: item.Completed,
			UpdatedAt: item.UpdatedAt,
			LinkID:    item.ExternalID,
		},
	})
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// UpdateItem applies a partial field update to a reminder.
func (c *Client) UpdateItem(ctx context.Context, listID, externalID string, fields model.Fields) error {
	_, err := c.invoke(ctx, bridgeRequest{
		Op:     "update",
		ListID: listID,
		ItemID: externalID,
		Fields: &bridgeFields{
			Title:    fields.Title,
			SetNotes: fields.SetNotes,
			Notes:    fields.Notes,
			SetDue:   fields.SetDue,
			DueAt:    fields.DueAt,
		},
	})
	return err
}

// CompleteItem marks a reminder completed.
func (c *Client) CompleteItem(ctx context.Context, listID, externalID string) error {
	_, err := c.invoke(ctx, bridgeRequest{
		Op:     "complete",
		ListID: listID,
		ItemID: externalID,
	})
	return err
}

// ListLists returns the reminder lists known to the device.
func (c *Client) ListLists(ctx context.Context) ([]provider.List, error) {
	resp, err := c.invoke(ctx, bridgeRequest{Op: "list_lists"})
	if err != nil {
		return nil, err
	}

	lists := make([]provider.List, 0, len(resp.Lists))
	for _, bl := range resp.Lists {
		lists = append(lists, provider.List{
			ID:        bl.ID,
			Name:      bl.Name,
			IsDefault: bl.Default,
		})
	}
	return lists, nil
}

// invoke runs one bridge round trip.
func (c *Client) invoke(ctx context.Context, req bridgeRequest) (*bridgeResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode bridge request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, BridgeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.command)
	cmd.Stdin = bytes.NewReader(payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("bridge timed out: %w", provider.ErrUnavailable)
		}
		return nil, fmt.Errorf("bridge %s failed: %v: %w",
			req.Op, firstLine(stderr.String()), provider.ErrUnavailable)
	}

	var resp bridgeResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("malformed bridge response: %w", provider.ErrUnavailable)
	}
	if resp.Error != nil {
		return nil, wrapBridgeError(resp.Error)
	}
	return &resp, nil
}

// wrapBridgeError maps bridge error codes onto the provider taxonomy.
func wrapBridgeError(be *bridgeError) error {
	var sentinel error
	switch be.Code {
	case "permission_denied":
		sentinel = provider.ErrAuthExpired
	case "not_found":
		sentinel = provider.ErrNotFound
	case "invalid_item":
		sentinel = provider.ErrValidation
	default:
		sentinel = provider.ErrUnavailable
	}
	return fmt.Errorf("%s: %w", be.Message, sentinel)
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

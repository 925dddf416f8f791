// Package remote talks to the remote system of record over its action-based
// HTTP endpoint. Any non-2xx response or transport error is a plain failure;
// the outbox treats all failure classes uniformly.
package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/quillgit/trader-pos-sub000/internal/model"
)

// Client is the remote endpoint surface used by the sync engine. Push doubles
// as the outbox Sender.
type Client interface {
	Push(ctx context.Context, item *model.QueueItem) error
	PushSettings(ctx context.Context, settings map[string]any) error
	FetchMaster(ctx context.Context) (*MasterData, error)
	PullTransactions(ctx context.Context, since time.Time) (*TransactionBatch, error)
}

// MasterData is the combined getMaster response.
type MasterData struct {
	Products  []model.Product  `json:"products"`
	Partners  []model.Partner  `json:"partners"`
	Employees []model.Employee `json:"employees"`
	Settings  map[string]any   `json:"settings"`
}

// TransactionBatch is the pull_transactions response. ServerTime advances the
// local watermark after a fully successful merge.
type TransactionBatch struct {
	Transactions []model.Transaction `json:"transactions"`
	Expenses     []model.Expense     `json:"expenses"`
	ServerTime   time.Time           `json:"server_time"`
}

// APIClient is a resty-backed Client.
type APIClient struct {
	http *resty.Client
}

// NewClient builds the endpoint client. endpoint is the full script URL; all
// operations select behavior through the action query parameter.
func NewClient(endpoint string, timeout time.Duration) *APIClient {
	c := resty.New().
		SetBaseURL(endpoint).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	return &APIClient{http: c}
}

// Send implements outbox.Sender.
func (c *APIClient) Send(ctx context.Context, item *model.QueueItem) error {
	return c.Push(ctx, item)
}

// Push posts one queue item. A 2xx status is success regardless of body.
func (c *APIClient) Push(ctx context.Context, item *model.QueueItem) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("action", "sync").
		SetBody(item).
		Post("")
	if err != nil {
		return fmt.Errorf("remote: push %s: %w", item.ID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("remote: push %s: status %d", item.ID, resp.StatusCode())
	}
	return nil
}

// PushSettings posts the settings document through the sync action.
func (c *APIClient) PushSettings(ctx context.Context, settings map[string]any) error {
	body := map[string]any{
		"action":  "update",
		"type":    "settings",
		"payload": settings,
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("action", "sync").
		SetBody(body).
		Post("")
	if err != nil {
		return fmt.Errorf("remote: push settings: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("remote: push settings: status %d", resp.StatusCode())
	}
	return nil
}

// FetchMaster pulls the combined master dataset.
func (c *APIClient) FetchMaster(ctx context.Context) (*MasterData, error) {
	var out MasterData
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("action", "getMaster").
		SetResult(&out).
		Get("")
	if err != nil {
		return nil, fmt.Errorf("remote: get master: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("remote: get master: status %d", resp.StatusCode())
	}
	return &out, nil
}

// PullTransactions pulls transaction/expense records newer than since.
func (c *APIClient) PullTransactions(ctx context.Context, since time.Time) (*TransactionBatch, error) {
	var out TransactionBatch
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("action", "pull_transactions").
		SetQueryParam("since", since.UTC().Format(time.RFC3339)).
		SetResult(&out).
		Get("")
	if err != nil {
		return nil, fmt.Errorf("remote: pull transactions: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("remote: pull transactions: status %d", resp.StatusCode())
	}
	return &out, nil
}

var _ Client = (*APIClient)(nil)

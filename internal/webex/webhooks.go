package webex

import (
	"context"
	"net/http"
	"net/url"
)

// Webhook is a registered event subscription.
type Webhook struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	TargetURL string `json:"targetUrl"`
	Resource  string `json:"resource"`
	Event     string `json:"event"`
	Filter    string `json:"filter,omitempty"`
	Secret    string `json:"secret,omitempty"`
	Status    string `json:"status,omitempty"`
}

type webhookList struct {
	Items []Webhook `json:"items"`
}

// ListWebhooks returns every webhook owned by the token.
func (c *Client) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	var out webhookList
	if err := c.do(ctx, http.MethodGet, "/webhooks", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// CreateWebhook registers w; ID and Status are ignored on input.
func (c *Client) CreateWebhook(ctx context.Context, w Webhook) (*Webhook, error) {
	w.ID = ""
	w.Status = ""
	var out Webhook
	if err := c.do(ctx, http.MethodPost, "/webhooks", nil, w, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteWebhook removes a webhook by id.
func (c *Client) DeleteWebhook(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/webhooks/"+url.PathEscape(id), nil, nil, nil)
}

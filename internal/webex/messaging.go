package webex

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// Person is the subset of /people fields the bot reads.
type Person struct {
	ID          string   `json:"id"`
	Emails      []string `json:"emails,omitempty"`
	DisplayName string   `json:"displayName,omitempty"`
	OrgID       string   `json:"orgId,omitempty"`
}

// Message is a chat message.
type Message struct {
	ID          string       `json:"id,omitempty"`
	RoomID      string       `json:"roomId,omitempty"`
	PersonID    string       `json:"personId,omitempty"`
	PersonEmail string       `json:"personEmail,omitempty"`
	Text        string       `json:"text,omitempty"`
	Markdown    string       `json:"markdown,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment wraps an adaptive card sent with a message.
type Attachment struct {
	ContentType string `json:"contentType"`
	Content     *Card  `json:"content"`
}

// AttachmentAction is a submitted card.
type AttachmentAction struct {
	ID        string            `json:"id"`
	Type      string            `json:"type,omitempty"`
	MessageID string            `json:"messageId,omitempty"`
	PersonID  string            `json:"personId,omitempty"`
	RoomID    string            `json:"roomId,omitempty"`
	Inputs    map[string]string `json:"inputs,omitempty"`
}

// Input returns the trimmed value of a submitted field and whether it was present.
func (a *AttachmentAction) Input(key string) (string, bool) {
	if a == nil || a.Inputs == nil {
		return "", false
	}
	v, ok := a.Inputs[key]
	return strings.TrimSpace(v), ok
}

// Membership links a person to a room.
type Membership struct {
	ID          string `json:"id"`
	RoomID      string `json:"roomId"`
	PersonID    string `json:"personId"`
	PersonEmail string `json:"personEmail"`
}

// MembershipQuery filters GET /memberships.
type MembershipQuery struct {
	RoomID      string
	PersonID    string
	PersonEmail string
}

type membershipList struct {
	Items []Membership `json:"items"`
}

// Me resolves the identity behind the client's token.
func (c *Client) Me(ctx context.Context) (*Person, error) {
	var p Person
	if err := c.do(ctx, http.MethodGet, "/people/me", nil, nil, &p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.ID) == "" {
		return nil, ErrMalformedResponse
	}
	return &p, nil
}

// CreateMessage posts text (and optionally a card) to a room.
func (c *Client) CreateMessage(ctx context.Context, roomID, text string, card *Card) (*Message, error) {
	req := Message{RoomID: roomID, Text: text}
	if card != nil {
		req.Attachments = []Attachment{{ContentType: CardContentType, Content: card}}
	}
	var out Message
	if err := c.do(ctx, http.MethodPost, "/messages", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetMessage loads a message by id. Webhook payloads only carry ids.
func (c *Client) GetMessage(ctx context.Context, id string) (*Message, error) {
	var out Message
	if err := c.do(ctx, http.MethodGet, "/messages/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAttachmentAction loads a card submission by id.
func (c *Client) GetAttachmentAction(ctx context.Context, id string) (*AttachmentAction, error) {
	var out AttachmentAction
	if err := c.do(ctx, http.MethodGet, "/attachment/actions/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMemberships lists room memberships matching q.
func (c *Client) ListMemberships(ctx context.Context, q MembershipQuery) ([]Membership, error) {
	query := url.Values{}
	if q.RoomID != "" {
		query.Set("roomId", q.RoomID)
	}
	if q.PersonID != "" {
		query.Set("personId", q.PersonID)
	}
	if q.PersonEmail != "" {
		query.Set("personEmail", q.PersonEmail)
	}
	var out membershipList
	if err := c.do(ctx, http.MethodGet, "/memberships", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

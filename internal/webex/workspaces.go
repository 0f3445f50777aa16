package webex

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// Workspace is a physical space resource in the device-management API.
type Workspace struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	OrgID       string `json:"orgId,omitempty"`
}

// ActivationCode is a short-lived device registration code.
type ActivationCode struct {
	Code       string `json:"code"`
	ExpiryTime string `json:"expiryTime,omitempty"`
}

// workspaceList keeps Items as a pointer so a payload without "items"
// is distinguishable from an empty collection.
type workspaceList struct {
	Items *[]Workspace `json:"items"`
}

// ListWorkspaces lists workspaces in orgID, optionally filtered by exact display name.
// A 2xx body without an "items" field yields ErrMalformedResponse.
func (c *Client) ListWorkspaces(ctx context.Context, orgID, displayName string) ([]Workspace, error) {
	query := url.Values{}
	if orgID != "" {
		query.Set("orgId", orgID)
	}
	if displayName != "" {
		query.Set("displayName", displayName)
	}
	var out workspaceList
	if err := c.do(ctx, http.MethodGet, "/workspaces", query, nil, &out); err != nil {
		return nil, err
	}
	if out.Items == nil {
		return nil, ErrMalformedResponse
	}
	return *out.Items, nil
}

// CreateWorkspace creates a workspace named displayName in orgID.
func (c *Client) CreateWorkspace(ctx context.Context, orgID, displayName string) (*Workspace, error) {
	req := map[string]string{"displayName": displayName, "orgId": orgID}
	var out Workspace
	if err := c.do(ctx, http.MethodPost, "/workspaces", nil, req, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, ErrMalformedResponse
	}
	return &out, nil
}

// CreateActivationCode requests a device activation code for workspaceID.
// model is an optional device-model hint.
func (c *Client) CreateActivationCode(ctx context.Context, orgID, workspaceID, model string) (*ActivationCode, error) {
	req := map[string]string{"workspaceId": workspaceID}
	if m := strings.TrimSpace(model); m != "" {
		req["model"] = m
	}
	query := url.Values{}
	if orgID != "" {
		query.Set("orgId", orgID)
	}
	var out ActivationCode
	if err := c.do(ctx, http.MethodPost, "/devices/activationCode", query, req, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Code) == "" {
		return nil, ErrMalformedResponse
	}
	return &out, nil
}

// Package directory maps between person ids and emails using a room's
// membership list.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/KafClaw/boardbot/internal/webex"
)

// ErrNotMember is returned when nobody in the room matches the query.
var ErrNotMember = errors.New("directory: person is not a member of the room")

// Directory resolves people through room memberships. It uses the bot's
// own token since the bot is a member of every room it serves.
type Directory struct {
	api *webex.Client
}

// New returns a Directory backed by api.
func New(api *webex.Client) *Directory {
	return &Directory{api: api}
}

// IDFromEmail returns the person id of the room member with email.
func (d *Directory) IDFromEmail(ctx context.Context, email, roomID string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrNotMember
	}
	items, err := d.api.ListMemberships(ctx, webex.MembershipQuery{RoomID: roomID, PersonEmail: email})
	if err != nil {
		return "", fmt.Errorf("lookup %s in room: %w", email, err)
	}
	id := ""
	for _, m := range items {
		if m.PersonID != "" {
			id = m.PersonID
		}
	}
	if id == "" {
		return "", ErrNotMember
	}
	return id, nil
}

// EmailFromID returns the email of the room member with personID.
func (d *Directory) EmailFromID(ctx context.Context, personID, roomID string) (string, error) {
	personID = strings.TrimSpace(personID)
	if personID == "" {
		return "", ErrNotMember
	}
	items, err := d.api.ListMemberships(ctx, webex.MembershipQuery{RoomID: roomID, PersonID: personID})
	if err != nil {
		return "", fmt.Errorf("lookup person in room: %w", err)
	}
	email := ""
	for _, m := range items {
		if m.PersonEmail != "" {
			email = m.PersonEmail
		}
	}
	if email == "" {
		return "", ErrNotMember
	}
	return email, nil
}

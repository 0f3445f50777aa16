package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KafClaw/boardbot/internal/admin"
)

// State is the persisted registry document.
type State struct {
	BotName         string                       `json:"bot_name"`
	BotToken        string                       `json:"bot_token"`
	BotEmail        string                       `json:"bot_email"`
	Orgs            []string                     `json:"orgs"`
	RoomAdmin       map[string]admin.Record      `json:"room_admin"`
	OrgAllowedUsers map[string][]string          `json:"org_allowed_users"`
	RoomToOrg       map[string]string            `json:"room_to_org"`
	OrgIDToEmail    map[string]map[string]string `json:"org_id_to_email"`
}

// EmptyState returns a document with every collection initialized.
func EmptyState() *State {
	return &State{
		Orgs:            []string{},
		RoomAdmin:       map[string]admin.Record{},
		OrgAllowedUsers: map[string][]string{},
		RoomToOrg:       map[string]string{},
		OrgIDToEmail:    map[string]map[string]string{},
	}
}

func (s *State) fill() {
	if s.Orgs == nil {
		s.Orgs = []string{}
	}
	if s.RoomAdmin == nil {
		s.RoomAdmin = map[string]admin.Record{}
	}
	if s.OrgAllowedUsers == nil {
		s.OrgAllowedUsers = map[string][]string{}
	}
	if s.RoomToOrg == nil {
		s.RoomToOrg = map[string]string{}
	}
	if s.OrgIDToEmail == nil {
		s.OrgIDToEmail = map[string]map[string]string{}
	}
}

// Store loads and saves the registry document.
type Store interface {
	Load() (*State, error)
	Save(*State) error
}

// FileStore keeps the document as a JSON file.
type FileStore struct {
	Path string
}

// Load reads the file. A missing file yields an empty document.
func (f FileStore) Load() (*State, error) {
	path := strings.TrimSpace(f.Path)
	if path == "" {
		return EmptyState(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return EmptyState(), nil
		}
		return nil, err
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse state %s: %w", path, err)
	}
	st.fill()
	return &st, nil
}

// Save writes the document through a temp file and rename.
func (f FileStore) Save(st *State) error {
	path := strings.TrimSpace(f.Path)
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Package webextest provides an in-memory Webex API for tests.
package webextest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/KafClaw/boardbot/internal/webex"
)

// Sent is a message recorded by POST /messages.
type Sent struct {
	RoomID string
	Text   string
	Card   *webex.Card
}

// Server is a fake Webex API. Exported maps may be seeded before use;
// guard later mutations with Lock/Unlock.
type Server struct {
	*httptest.Server
	sync.Mutex

	// People maps access token -> person id. Unknown tokens get 401.
	People map[string]string
	// OrgTokens maps org id -> tokens allowed to list its workspaces.
	OrgTokens map[string][]string
	// Members maps room id -> person id -> email.
	Members map[string]map[string]string
	// Workspaces maps org id -> display name -> workspace id.
	Workspaces map[string]map[string]string
	// Messages maps message id -> message returned by GET /messages/{id}.
	Messages map[string]webex.Message
	// Actions maps action id -> submission returned by GET /attachment/actions/{id}.
	Actions map[string]webex.AttachmentAction
	// Webhooks is the registered subscription set.
	Webhooks map[string]webex.Webhook
	// Code is returned by POST /devices/activationCode.
	Code string

	Sent            []Sent
	Calls           map[string]int
	ActivationModel string
	nextID          int
}

// New starts a fake API and closes it with the test.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		People:     map[string]string{},
		OrgTokens:  map[string][]string{},
		Members:    map[string]map[string]string{},
		Workspaces: map[string]map[string]string{},
		Messages:   map[string]webex.Message{},
		Actions:    map[string]webex.AttachmentAction{},
		Webhooks:   map[string]webex.Webhook{},
		Code:       "1234567890123456",
		Calls:      map[string]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Client returns a client for token pointed at the fake.
func (s *Server) Client(token string) *webex.Client {
	return webex.NewClient(token, webex.WithBaseURL(s.URL))
}

// AddMember seeds a room membership.
func (s *Server) AddMember(roomID, personID, email string) {
	s.Lock()
	defer s.Unlock()
	if s.Members[roomID] == nil {
		s.Members[roomID] = map[string]string{}
	}
	s.Members[roomID][personID] = email
}

// GrantOrg lets token act on orgID and gives it identity personID.
func (s *Server) GrantOrg(token, orgID, personID string) {
	s.Lock()
	defer s.Unlock()
	s.People[token] = personID
	s.OrgTokens[orgID] = append(s.OrgTokens[orgID], token)
}

// SentTexts returns the texts posted to roomID in order.
func (s *Server) SentTexts(roomID string) []string {
	s.Lock()
	defer s.Unlock()
	var out []string
	for _, m := range s.Sent {
		if m.RoomID == roomID {
			out = append(out, m.Text)
		}
	}
	return out
}

// LastSent returns the most recent message posted to roomID.
func (s *Server) LastSent(roomID string) (Sent, bool) {
	s.Lock()
	defer s.Unlock()
	for i := len(s.Sent) - 1; i >= 0; i-- {
		if s.Sent[i].RoomID == roomID {
			return s.Sent[i], true
		}
	}
	return Sent{}, false
}

// CallCount returns how often "METHOD /path" was hit.
func (s *Server) CallCount(key string) int {
	s.Lock()
	defer s.Unlock()
	return s.Calls[key]
}

func (s *Server) id(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s%d", prefix, s.nextID)
}

func (s *Server) tokenAllowed(orgID, token string) bool {
	for _, t := range s.OrgTokens[orgID] {
		if t == token {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.Lock()
	defer s.Unlock()

	path := r.URL.Path
	key := r.Method + " " + path
	switch {
	case strings.HasPrefix(path, "/messages/"):
		key = r.Method + " /messages/{id}"
	case strings.HasPrefix(path, "/attachment/actions/"):
		key = r.Method + " /attachment/actions/{id}"
	case strings.HasPrefix(path, "/webhooks/"):
		key = r.Method + " /webhooks/{id}"
	}
	s.Calls[key]++

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	personID, known := s.People[token]
	if !known {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid token"})
		return
	}
	q := r.URL.Query()

	switch key {
	case "GET /people/me":
		writeJSON(w, http.StatusOK, webex.Person{ID: personID})

	case "POST /messages":
		var m webex.Message
		_ = json.NewDecoder(r.Body).Decode(&m)
		sent := Sent{RoomID: m.RoomID, Text: m.Text}
		if len(m.Attachments) > 0 {
			sent.Card = m.Attachments[0].Content
		}
		s.Sent = append(s.Sent, sent)
		m.ID = s.id("M")
		writeJSON(w, http.StatusOK, m)

	case "GET /messages/{id}":
		m, ok := s.Messages[strings.TrimPrefix(path, "/messages/")]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
			return
		}
		writeJSON(w, http.StatusOK, m)

	case "GET /attachment/actions/{id}":
		a, ok := s.Actions[strings.TrimPrefix(path, "/attachment/actions/")]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
			return
		}
		writeJSON(w, http.StatusOK, a)

	case "GET /memberships":
		var items []webex.Membership
		for pid, email := range s.Members[q.Get("roomId")] {
			if e := q.Get("personEmail"); e != "" && !strings.EqualFold(e, email) {
				continue
			}
			if p := q.Get("personId"); p != "" && p != pid {
				continue
			}
			items = append(items, webex.Membership{RoomID: q.Get("roomId"), PersonID: pid, PersonEmail: email})
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})

	case "GET /workspaces":
		org := q.Get("orgId")
		if !s.tokenAllowed(org, token) {
			writeJSON(w, http.StatusForbidden, map[string]string{"message": "forbidden"})
			return
		}
		items := []webex.Workspace{}
		for name, id := range s.Workspaces[org] {
			if dn := q.Get("displayName"); dn != "" && dn != name {
				continue
			}
			items = append(items, webex.Workspace{ID: id, DisplayName: name, OrgID: org})
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})

	case "POST /workspaces":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		org := body["orgId"]
		if !s.tokenAllowed(org, token) {
			writeJSON(w, http.StatusForbidden, map[string]string{"message": "forbidden"})
			return
		}
		if s.Workspaces[org] == nil {
			s.Workspaces[org] = map[string]string{}
		}
		id := s.id("W")
		s.Workspaces[org][body["displayName"]] = id
		writeJSON(w, http.StatusOK, webex.Workspace{ID: id, DisplayName: body["displayName"], OrgID: org})

	case "POST /devices/activationCode":
		if !s.tokenAllowed(q.Get("orgId"), token) {
			writeJSON(w, http.StatusForbidden, map[string]string{"message": "forbidden"})
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.ActivationModel = body["model"]
		writeJSON(w, http.StatusOK, webex.ActivationCode{Code: s.Code})

	case "GET /webhooks":
		items := []webex.Webhook{}
		for _, wh := range s.Webhooks {
			items = append(items, wh)
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})

	case "POST /webhooks":
		var wh webex.Webhook
		_ = json.NewDecoder(r.Body).Decode(&wh)
		wh.ID = s.id("H")
		wh.Status = "active"
		s.Webhooks[wh.ID] = wh
		writeJSON(w, http.StatusOK, wh)

	case "DELETE /webhooks/{id}":
		id := strings.TrimPrefix(path, "/webhooks/")
		if _, ok := s.Webhooks[id]; !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
			return
		}
		delete(s.Webhooks, id)
		w.WriteHeader(http.StatusNoContent)

	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "unknown route " + key})
	}
}

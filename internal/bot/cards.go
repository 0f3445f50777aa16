package bot

import (
	"strings"

	"github.com/KafClaw/boardbot/internal/webex"
)

// Form input ids.
const (
	InputOrgID       = "org_id"
	InputAccessToken = "access_token"
	InputWorkspace   = "workspace"
	InputModel       = "model"
)

// InitCard asks for the organization id and an admin access token.
func InitCard() *webex.Card {
	return webex.NewCard("Please initialize bot for this space:").
		TextInput(InputOrgID, "Enter organization ID").
		TextInput(InputAccessToken, "Enter your personal access token").
		Submit("Init")
}

// CodeCard asks for the workspace to provision, and the device model when askModel is set.
func CodeCard(askModel bool) *webex.Card {
	c := webex.NewCard("Get an activation code:").
		TextInput(InputWorkspace, "Enter Workspace Name")
	if askModel {
		c.TextInput(InputModel, "Enter Device Model (Optional)")
	}
	return c.Submit("Provision")
}

// SplitCode groups code into dash-separated blocks of four for readability.
func SplitCode(code string) string {
	var parts []string
	for len(code) > 4 {
		parts = append(parts, code[:4])
		code = code[4:]
	}
	parts = append(parts, code)
	return strings.Join(parts, "-")
}

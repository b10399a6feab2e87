// internal/domain/models/rostermember.go

package models

// SlackbotID is Slack's built-in system account.
const SlackbotID = "USLACKBOT"

// RosterMember is a workspace user as reported by Slack users.list.
// It is never persisted; the roster cache stores it as JSON.
type RosterMember struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	RealName    string `json:"real_name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	IsBot       bool   `json:"is_bot,omitempty"`
	IsAppUser   bool   `json:"is_app_user,omitempty"`
	Deleted     bool   `json:"deleted,omitempty"`
}

// Label is the name shown on an answer button.
func (m RosterMember) Label() string {
	switch {
	case m.RealName != "":
		return m.RealName
	case m.DisplayName != "":
		return m.DisplayName
	default:
		return m.Name
	}
}

// Playable reports whether the member may take part in a round.
func (m RosterMember) Playable() bool {
	return !m.IsBot && !m.IsAppUser && !m.Deleted && m.ID != SlackbotID && m.ID != ""
}

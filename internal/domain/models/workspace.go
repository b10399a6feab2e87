// internal/domain/models/workspace.go

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Workspace is one connected Slack workspace (tenant).
// Groups, games and every game record carry its workspace_id.
//
// BotToken is the OAuth bot token issued when the workspace installed the app.
// It never leaves the server and is never logged.
type Workspace struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	Name   string `bson:"name" json:"name"`
	NameCI string `bson:"name_ci" json:"name_ci"` // Case-insensitive for search

	// Slack installation
	SlackTeamID string `bson:"slack_team_id" json:"slack_team_id"`
	BotToken    string `bson:"bot_token" json:"-"`
	BotUserID   string `bson:"bot_user_id,omitempty" json:"bot_user_id,omitempty"`

	// Status: "active" or "disabled"
	Status string `bson:"status" json:"status"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// HasToken reports whether the workspace can make Slack calls.
func (w Workspace) HasToken() bool {
	return w.BotToken != ""
}

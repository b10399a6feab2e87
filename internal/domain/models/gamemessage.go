// internal/domain/models/gamemessage.go

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GameMessage is one interactive message shown to a recipient about a subject.
// Exactly one document per (game_session_id, recipient_id, subject_id).
//
// The record is written before the Slack send so its ID can travel in the
// payload. A record with an empty ProviderMessageID was never delivered.
type GameMessage struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GameSessionID primitive.ObjectID `bson:"game_session_id" json:"game_session_id"`
	WorkspaceID   primitive.ObjectID `bson:"workspace_id" json:"workspace_id"`

	RecipientID string `bson:"recipient_id" json:"recipient_id"` // Slack user shown the photo
	SubjectID   string `bson:"subject_id" json:"subject_id"`     // Slack user in the photo
	ChannelID   string `bson:"channel_id" json:"channel_id"`

	ProviderMessageID string     `bson:"provider_message_id,omitempty" json:"provider_message_id,omitempty"` // Slack ts
	SentAt            *time.Time `bson:"sent_at,omitempty" json:"sent_at,omitempty"`

	Responded bool `bson:"responded" json:"responded"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Delivered reports whether Slack accepted the message.
func (m GameMessage) Delivered() bool {
	return m.ProviderMessageID != ""
}

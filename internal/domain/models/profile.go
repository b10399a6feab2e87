// internal/domain/models/profile.go

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Profile is a member's onboarding profile. The onboarding sender only DMs
// members without a completed profile.
type Profile struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	WorkspaceID primitive.ObjectID `bson:"workspace_id" json:"workspace_id"`
	SlackUserID string             `bson:"slack_user_id" json:"slack_user_id"`
	Completed   bool               `bson:"completed" json:"completed"`

	// LinkSentAt records the last onboarding DM.
	LinkSentAt *time.Time `bson:"link_sent_at,omitempty" json:"link_sent_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

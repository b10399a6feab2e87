// internal/domain/models/gameresponse.go

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Action kinds
const (
	ActionCorrect   = "correct"
	ActionIncorrect = "incorrect"
)

// Points awarded per action kind.
const (
	PointsCorrect   = 10
	PointsIncorrect = 0
)

// GameResponse is one user's answer to one GameMessage. Immutable once written;
// exactly one document per (game_message_id, responder_id).
type GameResponse struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GameMessageID primitive.ObjectID `bson:"game_message_id" json:"game_message_id"`
	WorkspaceID   primitive.ObjectID `bson:"workspace_id" json:"workspace_id"`
	ResponderID   string             `bson:"responder_id" json:"responder_id"`

	ActionKind   string `bson:"action_kind" json:"action_kind"` // "correct" | "incorrect"
	ChosenOption string `bson:"chosen_option" json:"chosen_option"`
	Points       int    `bson:"points" json:"points"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

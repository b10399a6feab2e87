// internal/domain/models/gamesession.go

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Game session statuses
const (
	SessionStatusScheduled = "scheduled"
	SessionStatusSent      = "sent"
	SessionStatusCompleted = "completed"
)

// GameSession is one calendar day's execution of a game.
// Exactly one document per (game_id, date).
type GameSession struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GameID      primitive.ObjectID `bson:"game_id" json:"game_id"`
	WorkspaceID primitive.ObjectID `bson:"workspace_id" json:"workspace_id"`
	Date        string             `bson:"date" json:"date"` // YYYY-MM-DD in the game's timezone

	Status     string     `bson:"status" json:"status"`
	LastSentAt *time.Time `bson:"last_sent_at,omitempty" json:"last_sent_at,omitempty"`
	Rounds     int        `bson:"rounds" json:"rounds"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// LastActivity is the reference instant for frequency gating.
func (s GameSession) LastActivity() time.Time {
	if s.LastSentAt != nil {
		return *s.LastSentAt
	}
	return s.CreatedAt
}

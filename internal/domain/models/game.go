// internal/domain/models/game.go

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Schedule types
const (
	ScheduleWeekly  = "weekly"  // ScheduledDays are weekdays, 0 (Sunday) – 6 (Saturday)
	ScheduleMonthly = "monthly" // ScheduledDays are days of the month, 1 – 31
)

// Game lifecycle statuses. Only GameStatusScheduled is selected for dispatch;
// nothing in the engine moves a game between statuses.
const (
	GameStatusScheduled = "scheduled"
	GameStatusActive    = "active"
	GameStatusCompleted = "completed"
	GameStatusCancelled = "cancelled"
)

// DefaultTimezone is used when a game has no timezone configured.
const DefaultTimezone = "UTC"

// Game is a recurring engagement configuration owned by a Group.
type Game struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	WorkspaceID primitive.ObjectID `bson:"workspace_id" json:"workspace_id"`
	GroupID     primitive.ObjectID `bson:"group_id" json:"group_id"`
	TemplateID  primitive.ObjectID `bson:"template_id" json:"template_id"`
	Name        string             `bson:"name" json:"name"`

	// Schedule
	ScheduleType  string `bson:"schedule_type" json:"schedule_type"`   // "weekly" | "monthly"
	ScheduledDays []int  `bson:"scheduled_days" json:"scheduled_days"` // see ScheduleWeekly / ScheduleMonthly
	ScheduledTime string `bson:"scheduled_time" json:"scheduled_time"` // "HH:mm", 24h
	Timezone      string `bson:"timezone,omitempty" json:"timezone,omitempty"`

	// FrequencyMinutes repeats rounds within a trigger day once the window opens.
	// nil means one round per trigger day.
	FrequencyMinutes *int `bson:"frequency_minutes,omitempty" json:"frequency_minutes,omitempty"`

	Status   string `bson:"status" json:"status"`
	IsActive bool   `bson:"is_active" json:"is_active"` // soft-delete flag

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Location returns the configured IANA zone name, defaulting to UTC.
func (g Game) Location() string {
	if g.Timezone == "" {
		return DefaultTimezone
	}
	return g.Timezone
}

// Frequency returns the repeat frequency and whether one is configured.
func (g Game) Frequency() (time.Duration, bool) {
	if g.FrequencyMinutes == nil || *g.FrequencyMinutes <= 0 {
		return 0, false
	}
	return time.Duration(*g.FrequencyMinutes) * time.Minute, true
}

// internal/app/engine/dispatch/report.go

package dispatch

import (
	"time"
)

// SkipReason names why a game did not produce a round.
type SkipReason string

const (
	SkipNotDue            SkipReason = "not_due"
	SkipInvalidSchedule   SkipReason = "invalid_schedule"
	SkipWorkspaceMissing  SkipReason = "workspace_missing"
	SkipWorkspaceNoToken  SkipReason = "workspace_no_token"
	SkipTemplateMissing   SkipReason = "template_missing"
	SkipTemplateUnknown   SkipReason = "template_unknown"
	SkipGroupMissing      SkipReason = "group_missing"
	SkipAlreadyDispatched SkipReason = "already_dispatched"
	SkipFrequencyWait     SkipReason = "frequency_wait"
	SkipRosterUnavailable SkipReason = "roster_unavailable"
	SkipTooFewCandidates  SkipReason = "too_few_candidates"
	SkipNoPairs           SkipReason = "no_pairs"
	SkipStoreError        SkipReason = "store_error"
	SkipPanic             SkipReason = "panic"
)

// Report summarizes one orchestrator run.
type Report struct {
	TickID      string    `json:"tick_id"`
	WorkspaceID string    `json:"workspace_id,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`

	GamesEvaluated  int                `json:"games_evaluated"`
	GamesDue        int                `json:"games_due"`
	Skipped         map[SkipReason]int `json:"skipped,omitempty"`
	SessionsCreated int                `json:"sessions_created"`
	Rounds          int                `json:"rounds"`
	PairsSelected   int                `json:"pairs_selected"`
	MessagesSent    int                `json:"messages_sent"`
	MessagesFailed  int                `json:"messages_failed"`
	DuplicatePairs  int                `json:"duplicate_pairs"`
	OnboardingDMs   int                `json:"onboarding_dms"`

	// Error is set only when the game list itself could not be loaded.
	Error string `json:"error,omitempty"`
}

func (r *Report) skip(reason SkipReason) {
	if r.Skipped == nil {
		r.Skipped = make(map[SkipReason]int)
	}
	r.Skipped[reason]++
}

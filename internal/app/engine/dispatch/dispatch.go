// internal/app/engine/dispatch/dispatch.go

// Package dispatch runs scheduler ticks: for every dispatchable game it
// checks the trigger window, gates on the day's session, and sends one
// interactive message per selected pair.
//
// Games and pairs are processed sequentially so a slow or rate-limited
// Slack call throttles the round instead of fanning out. Nothing here
// returns an error to the caller; the next tick is the retry.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/whosthat/internal/app/engine/ledger"
	"github.com/dalemusser/whosthat/internal/app/engine/pairing"
	"github.com/dalemusser/whosthat/internal/app/engine/payload"
	"github.com/dalemusser/whosthat/internal/app/engine/window"
	"github.com/dalemusser/whosthat/internal/app/system/timeouts"
	gametemplatestore "github.com/dalemusser/whosthat/internal/app/store/gametemplates"
	groupstore "github.com/dalemusser/whosthat/internal/app/store/groups"
	workspacestore "github.com/dalemusser/whosthat/internal/app/store/workspaces"
	"github.com/dalemusser/whosthat/internal/domain/models"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type GameSource interface {
	ListDispatchable(ctx context.Context, workspaceID *primitive.ObjectID) ([]models.Game, error)
}

type WorkspaceSource interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Workspace, error)
}

type GroupSource interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error)
}

type TemplateSource interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.GameTemplate, error)
}

// RosterSource returns the workspace's member list, possibly cached.
type RosterSource interface {
	FetchRoster(ctx context.Context, token string) ([]models.RosterMember, error)
}

// Messenger is the outbound half of the messaging provider.
type Messenger interface {
	OpenDirectChannel(ctx context.Context, token, userID string) (string, error)
	PostInteractiveMessage(ctx context.Context, token, channelID string, msg payload.Message) (string, error)
}

// OnboardingSender delivers onboarding links to members without a profile.
type OnboardingSender interface {
	SendOnboardingDMs(ctx context.Context, workspaceID primitive.ObjectID) (int, error)
}

// Auditor receives dispatch audit events. *auditlog.Logger satisfies it.
type Auditor interface {
	DispatchRoundCompleted(ctx context.Context, game models.Game, sess models.GameSession, tickID string, sent, failed int)
	GameMessageSent(ctx context.Context, gameID primitive.ObjectID, msg models.GameMessage)
	GameMessageFailed(ctx context.Context, game models.Game, sessionID primitive.ObjectID, recipientID, subjectID, reason string)
}

// Deps collects the orchestrator's collaborators.
type Deps struct {
	Games      GameSource
	Workspaces WorkspaceSource
	Groups     GroupSource
	Templates  TemplateSource
	Ledger     *ledger.Ledger
	Selector   *pairing.Selector
	Builder    *payload.Builder
	Roster     RosterSource
	Messenger  Messenger
	Onboarding OnboardingSender
	Audit      Auditor          // optional
	Now        func() time.Time // optional, defaults to time.Now
	Log        *zap.Logger
}

type Orchestrator struct {
	d Deps
}

func New(d Deps) *Orchestrator {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Audit == nil {
		d.Audit = nopAuditor{}
	}
	return &Orchestrator{d: d}
}

// RunTick evaluates every dispatchable game in every workspace.
func (o *Orchestrator) RunTick(ctx context.Context) Report {
	return o.run(ctx, nil)
}

// RunWorkspace evaluates the dispatchable games of one workspace. It goes
// through exactly the same path as RunTick.
func (o *Orchestrator) RunWorkspace(ctx context.Context, workspaceID primitive.ObjectID) Report {
	return o.run(ctx, &workspaceID)
}

// tick carries per-run state.
type tick struct {
	id         string
	now        time.Time
	report     *Report
	log        *zap.Logger
	workspaces map[primitive.ObjectID]models.Workspace
}

func (o *Orchestrator) run(ctx context.Context, workspaceID *primitive.ObjectID) (rep Report) {
	now := o.d.Now()
	rep = Report{TickID: uuid.NewString(), StartedAt: now.UTC()}
	log := o.d.Log.With(zap.String("tick_id", rep.TickID))
	if workspaceID != nil {
		rep.WorkspaceID = workspaceID.Hex()
		log = log.With(zap.String("workspace_id", rep.WorkspaceID))
	}

	var pc panics.Catcher
	pc.Try(func() {
		t := &tick{
			id:         rep.TickID,
			now:        now,
			report:     &rep,
			log:        log,
			workspaces: make(map[primitive.ObjectID]models.Workspace),
		}
		o.runGames(ctx, t, workspaceID)
	})
	if r := pc.Recovered(); r != nil {
		log.Error("dispatch tick panicked", zap.Any("panic", r.Value), zap.String("stack", string(r.Stack)))
		rep.Error = fmt.Sprintf("panic: %v", r.Value)
	}

	rep.FinishedAt = o.d.Now().UTC()
	log.Info("dispatch tick finished",
		zap.Int("games_evaluated", rep.GamesEvaluated),
		zap.Int("games_due", rep.GamesDue),
		zap.Int("messages_sent", rep.MessagesSent),
		zap.Int("messages_failed", rep.MessagesFailed),
		zap.Duration("took", rep.FinishedAt.Sub(rep.StartedAt)))
	return rep
}

func (o *Orchestrator) runGames(ctx context.Context, t *tick, workspaceID *primitive.ObjectID) {
	lctx, cancel := context.WithTimeout(ctx, timeouts.DB())
	games, err := o.d.Games.ListDispatchable(lctx, workspaceID)
	cancel()
	if err != nil {
		t.log.Error("list dispatchable games failed", zap.Error(err))
		t.report.Error = err.Error()
		return
	}

	for _, g := range games {
		t.report.GamesEvaluated++
		glog := t.log.With(zap.String("game_id", g.ID.Hex()), zap.String("workspace_id", g.WorkspaceID.Hex()))

		var reason SkipReason
		var pc panics.Catcher
		pc.Try(func() { reason = o.runGame(ctx, t, g, glog) })
		if r := pc.Recovered(); r != nil {
			glog.Error("game dispatch panicked", zap.Any("panic", r.Value), zap.String("stack", string(r.Stack)))
			reason = SkipPanic
		}
		if reason != "" {
			t.report.skip(reason)
		}
	}
}

// runGame handles one game and returns the skip reason, or "" when a round
// was dispatched.
func (o *Orchestrator) runGame(ctx context.Context, t *tick, g models.Game, log *zap.Logger) SkipReason {
	if err := window.Validate(g); err != nil {
		log.Warn("skipping game with malformed schedule", zap.Error(err))
		return SkipInvalidSchedule
	}
	if !window.IsDue(g, t.now) {
		return SkipNotDue
	}
	t.report.GamesDue++

	ws, reason := o.workspace(ctx, t, g.WorkspaceID, log)
	if reason != "" {
		return reason
	}

	tpl, err := o.lookupTemplate(ctx, g.TemplateID)
	if err != nil {
		if errors.Is(err, gametemplatestore.ErrNotFound) {
			log.Warn("game template missing", zap.String("template_id", g.TemplateID.Hex()))
			return SkipTemplateMissing
		}
		log.Error("load game template failed", zap.Error(err))
		return SkipStoreError
	}
	kind := tpl.Kind()
	if kind == models.TemplateKindUnknown {
		log.Warn("game template has an unrecognised kind",
			zap.String("template_id", tpl.ID.Hex()),
			zap.String("kind", tpl.KindName))
		return SkipTemplateUnknown
	}

	var group models.Group
	if kind == models.TemplateKindPairing {
		gctx, cancel := context.WithTimeout(ctx, timeouts.DB())
		group, err = o.d.Groups.GetByID(gctx, g.GroupID)
		cancel()
		if err != nil {
			if errors.Is(err, groupstore.ErrNotFound) {
				log.Warn("game group missing", zap.String("group_id", g.GroupID.Hex()))
				return SkipGroupMissing
			}
			log.Error("load group failed", zap.Error(err))
			return SkipStoreError
		}
	}

	dateKey, err := window.DateKey(g, t.now)
	if err != nil {
		log.Warn("date key", zap.Error(err))
		return SkipInvalidSchedule
	}
	sctx, cancel := context.WithTimeout(ctx, timeouts.DB())
	sess, created, err := o.d.Ledger.EnsureSession(sctx, g.ID, g.WorkspaceID, dateKey, t.now)
	cancel()
	if err != nil {
		log.Error("ensure session failed", zap.Error(err))
		return SkipStoreError
	}
	if created {
		t.report.SessionsCreated++
	}
	if !ledger.AllowDispatch(sess, created, g.FrequencyMinutes, t.now) {
		if _, ok := g.Frequency(); ok {
			return SkipFrequencyWait
		}
		return SkipAlreadyDispatched
	}

	log = log.With(zap.String("session_id", sess.ID.Hex()), zap.String("template_kind", kind.String()))

	switch kind {
	case models.TemplateKindOnboardingLink:
		return o.runOnboarding(ctx, t, g, sess, log)
	case models.TemplateKindPairing:
		return o.runPairing(ctx, t, g, ws, tpl, group, sess, log)
	default:
		panic(fmt.Sprintf("unhandled template kind %d", kind))
	}
}

func (o *Orchestrator) workspace(ctx context.Context, t *tick, id primitive.ObjectID, log *zap.Logger) (models.Workspace, SkipReason) {
	ws, ok := t.workspaces[id]
	if !ok {
		wctx, cancel := context.WithTimeout(ctx, timeouts.DB())
		var err error
		ws, err = o.d.Workspaces.GetByID(wctx, id)
		cancel()
		if err != nil {
			if errors.Is(err, workspacestore.ErrNotFound) {
				log.Warn("game references a missing workspace")
				return models.Workspace{}, SkipWorkspaceMissing
			}
			log.Error("load workspace failed", zap.Error(err))
			return models.Workspace{}, SkipStoreError
		}
		t.workspaces[id] = ws
	}
	if !ws.HasToken() {
		log.Warn("workspace has no bot token")
		return models.Workspace{}, SkipWorkspaceNoToken
	}
	return ws, ""
}

func (o *Orchestrator) lookupTemplate(ctx context.Context, id primitive.ObjectID) (models.GameTemplate, error) {
	tctx, cancel := context.WithTimeout(ctx, timeouts.DB())
	defer cancel()
	return o.d.Templates.GetByID(tctx, id)
}

// runOnboarding hands the round to the onboarding collaborator. The session
// is finalized whatever the count; the collaborator skips users who already
// completed, so the next due tick repeating the call is harmless.
func (o *Orchestrator) runOnboarding(ctx context.Context, t *tick, g models.Game, sess models.GameSession, log *zap.Logger) SkipReason {
	n, err := o.d.Onboarding.SendOnboardingDMs(ctx, g.WorkspaceID)
	if err != nil {
		log.Warn("onboarding DMs incomplete", zap.Int("sent", n), zap.Error(err))
	}
	t.report.OnboardingDMs += n
	o.finalize(ctx, t, g, sess, n, 0, log)
	return ""
}

func (o *Orchestrator) runPairing(ctx context.Context, t *tick, g models.Game, ws models.Workspace, tpl models.GameTemplate, group models.Group, sess models.GameSession, log *zap.Logger) SkipReason {
	rctx, cancel := context.WithTimeout(ctx, timeouts.Slack())
	roster, err := o.d.Roster.FetchRoster(rctx, ws.BotToken)
	cancel()
	if err != nil {
		// No partial roster is ever acted on.
		log.Warn("roster unavailable, skipping game this tick", zap.Error(err))
		return SkipRosterUnavailable
	}

	var inGroup []models.RosterMember
	for _, m := range roster {
		if group.HasMember(m.ID) {
			inGroup = append(inGroup, m)
		}
	}
	candidates := pairing.Candidates(inGroup)
	if len(candidates) < 2 {
		log.Info("not enough active candidates", zap.Int("candidates", len(candidates)))
		return SkipTooFewCandidates
	}

	pairs, err := o.d.Selector.SelectPairs(ctx, candidates, sess.ID)
	if err != nil {
		log.Error("pair selection failed", zap.Error(err))
		return SkipStoreError
	}
	if len(pairs) == 0 {
		log.Info("no fresh pairs left in session")
		o.finalize(ctx, t, g, sess, 0, 0, log)
		return SkipNoPairs
	}
	t.report.PairsSelected += len(pairs)

	sent, failed := 0, 0
	for _, p := range pairs {
		switch err := o.sendPair(ctx, t, g, ws, tpl, sess, p, candidates, log); {
		case err == nil:
			sent++
		case errors.Is(err, ledger.ErrDuplicateMessage):
			t.report.DuplicatePairs++
		default:
			failed++
		}
	}
	t.report.MessagesSent += sent
	t.report.MessagesFailed += failed

	o.finalize(ctx, t, g, sess, sent, failed, log)
	return ""
}

// sendPair delivers one message. The record is written before the send so
// a crash in between leaves an undelivered row, never an unscoreable message.
func (o *Orchestrator) sendPair(ctx context.Context, t *tick, g models.Game, ws models.Workspace, tpl models.GameTemplate, sess models.GameSession, p pairing.Pair, candidates []models.RosterMember, log *zap.Logger) error {
	plog := log.With(zap.String("recipient_id", p.Recipient.ID), zap.String("subject_id", p.Subject.ID))
	fail := func(stage string, err error) error {
		plog.Warn("pair not delivered", zap.String("stage", stage), zap.Error(err))
		o.d.Audit.GameMessageFailed(ctx, g, sess.ID, p.Recipient.ID, p.Subject.ID, stage+": "+err.Error())
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, timeouts.Slack())
	channelID, err := o.d.Messenger.OpenDirectChannel(cctx, ws.BotToken, p.Recipient.ID)
	cancel()
	if err != nil {
		return fail("open_channel", err)
	}

	mctx, cancel := context.WithTimeout(ctx, timeouts.DB())
	msg, err := o.d.Ledger.RecordMessage(mctx, ledger.MessageRecord{
		SessionID:   sess.ID,
		WorkspaceID: g.WorkspaceID,
		RecipientID: p.Recipient.ID,
		SubjectID:   p.Subject.ID,
		ChannelID:   channelID,
	}, t.now)
	cancel()
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateMessage) {
			plog.Warn("pair already recorded in session, skipping")
			return err
		}
		return fail("record_message", err)
	}

	body := o.d.Builder.Build(tpl, msg.ID, p.Recipient, p.Subject, candidates)

	pctx, cancel := context.WithTimeout(ctx, timeouts.Slack())
	providerID, err := o.d.Messenger.PostInteractiveMessage(pctx, ws.BotToken, channelID, body)
	cancel()
	if err != nil {
		return fail("post_message", err)
	}

	sentAt := o.d.Now()
	actx, cancel := context.WithTimeout(ctx, timeouts.DB())
	err = o.d.Ledger.AttachProviderMessage(actx, msg.ID, providerID, sentAt)
	cancel()
	if err != nil {
		// Delivered; only the handle is missing.
		plog.Error("attach provider message failed", zap.String("message_id", msg.ID.Hex()), zap.Error(err))
	}
	msg.ProviderMessageID = providerID
	o.d.Audit.GameMessageSent(ctx, g.ID, msg)
	return nil
}

func (o *Orchestrator) finalize(ctx context.Context, t *tick, g models.Game, sess models.GameSession, sent, failed int, log *zap.Logger) {
	fctx, cancel := context.WithTimeout(ctx, timeouts.DB())
	err := o.d.Ledger.MarkSessionDispatched(fctx, sess.ID, sent, t.now)
	cancel()
	if err != nil {
		log.Error("mark session dispatched failed", zap.Error(err))
		return
	}
	t.report.Rounds++
	o.d.Audit.DispatchRoundCompleted(ctx, g, sess, t.id, sent, failed)
	log.Info("dispatch round completed", zap.Int("sent", sent), zap.Int("failed", failed))
}

type nopAuditor struct{}

func (nopAuditor) DispatchRoundCompleted(context.Context, models.Game, models.GameSession, string, int, int) {
}
func (nopAuditor) GameMessageSent(context.Context, primitive.ObjectID, models.GameMessage) {}
func (nopAuditor) GameMessageFailed(context.Context, models.Game, primitive.ObjectID, string, string, string) {
}

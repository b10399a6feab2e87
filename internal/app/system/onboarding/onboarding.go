// internal/app/system/onboarding/onboarding.go

// Package onboarding DMs group members a link to create their game profile.
package onboarding

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/dalemusser/whosthat/internal/app/system/status"
	"github.com/dalemusser/whosthat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type WorkspaceSource interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Workspace, error)
}

type GroupLister interface {
	ListByWorkspace(ctx context.Context, workspaceID primitive.ObjectID) ([]models.Group, error)
}

type ProfileStore interface {
	CompletedAmong(ctx context.Context, workspaceID primitive.ObjectID, userIDs []string) (map[string]bool, error)
	MarkLinkSent(ctx context.Context, workspaceID primitive.ObjectID, userID string, at time.Time) error
}

// DirectMessenger is the slice of the Slack client the sender needs.
type DirectMessenger interface {
	OpenDirectChannel(ctx context.Context, token, userID string) (string, error)
	PostText(ctx context.Context, token, channelID, text string) (string, error)
}

type Sender struct {
	workspaces WorkspaceSource
	groups     GroupLister
	profiles   ProfileStore
	dm         DirectMessenger
	baseURL    string
	now        func() time.Time
	log        *zap.Logger
}

func NewSender(workspaces WorkspaceSource, groups GroupLister, profiles ProfileStore, dm DirectMessenger, baseURL string, log *zap.Logger) *Sender {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sender{
		workspaces: workspaces,
		groups:     groups,
		profiles:   profiles,
		dm:         dm,
		baseURL:    strings.TrimRight(baseURL, "/"),
		now:        time.Now,
		log:        log,
	}
}

// Link is the onboarding URL for one member.
func (s *Sender) Link(workspaceID primitive.ObjectID, userID string) string {
	q := url.Values{}
	q.Set("workspace", workspaceID.Hex())
	q.Set("user", userID)
	return s.baseURL + "/onboarding?" + q.Encode()
}

func messageText(link string) string {
	return fmt.Sprintf(":wave: Welcome to Who's That! Add a photo to your game profile so teammates can guess who you are: <%s|Set up my profile>", link)
}

// SendOnboardingDMs messages every member of the workspace's active groups
// who has not completed a profile. It returns the number of DMs delivered.
// A failed DM is logged and skipped; lookup failures abort.
func (s *Sender) SendOnboardingDMs(ctx context.Context, workspaceID primitive.ObjectID) (int, error) {
	ws, err := s.workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		return 0, fmt.Errorf("load workspace: %w", err)
	}
	if !ws.HasToken() {
		return 0, fmt.Errorf("workspace %s has no bot token", workspaceID.Hex())
	}

	groups, err := s.groups.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return 0, fmt.Errorf("list groups: %w", err)
	}
	members := activeMembers(groups)
	if len(members) == 0 {
		return 0, nil
	}

	done, err := s.profiles.CompletedAmong(ctx, workspaceID, members)
	if err != nil {
		return 0, fmt.Errorf("load profiles: %w", err)
	}

	log := s.log.With(zap.String("workspace_id", workspaceID.Hex()))
	sent := 0
	for _, userID := range members {
		if done[userID] {
			continue
		}
		if err := s.sendOne(ctx, ws, userID); err != nil {
			log.Warn("onboarding dm failed", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		sent++
	}
	log.Info("onboarding dms sent", zap.Int("sent", sent), zap.Int("members", len(members)))
	return sent, nil
}

func (s *Sender) sendOne(ctx context.Context, ws models.Workspace, userID string) error {
	ch, err := s.dm.OpenDirectChannel(ctx, ws.BotToken, userID)
	if err != nil {
		return err
	}
	if _, err := s.dm.PostText(ctx, ws.BotToken, ch, messageText(s.Link(ws.ID, userID))); err != nil {
		return err
	}
	if err := s.profiles.MarkLinkSent(ctx, ws.ID, userID, s.now().UTC()); err != nil {
		s.log.Warn("record onboarding link failed", zap.String("user_id", userID), zap.Error(err))
	}
	return nil
}

// activeMembers returns the sorted union of members across non-disabled groups.
func activeMembers(groups []models.Group) []string {
	seen := map[string]struct{}{}
	for _, g := range groups {
		if g.Status == status.Disabled {
			continue
		}
		for _, m := range g.Members {
			if m != "" {
				seen[m] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// internal/testutil/fixtures.go

package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/dalemusser/whosthat/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

func (f *Fixtures) insert(ctx context.Context, coll string, doc any) {
	f.t.Helper()
	if _, err := f.db.Collection(coll).InsertOne(ctx, doc); err != nil {
		f.t.Fatalf("failed to insert test %s: %v", coll, err)
	}
}

// CreateWorkspace creates an active workspace with a bot token.
func (f *Fixtures) CreateWorkspace(ctx context.Context, name, teamID string) models.Workspace {
	f.t.Helper()

	now := time.Now().UTC()
	ws := models.Workspace{
		ID:          primitive.NewObjectID(),
		Name:        name,
		NameCI:      text.Fold(name),
		SlackTeamID: teamID,
		BotToken:    "xoxb-test-" + teamID,
		Status:      "active",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.insert(ctx, "workspaces", ws)
	return ws
}

// CreateGroup creates a group in the workspace with the given Slack members.
func (f *Fixtures) CreateGroup(ctx context.Context, name string, workspaceID primitive.ObjectID, members ...string) models.Group {
	f.t.Helper()

	now := time.Now().UTC()
	g := models.Group{
		ID:          primitive.NewObjectID(),
		WorkspaceID: workspaceID,
		Name:        name,
		NameCI:      text.Fold(name),
		Members:     members,
		Status:      "active",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.insert(ctx, "groups", g)
	return g
}

// CreateTemplate creates a game template of the given kind.
func (f *Fixtures) CreateTemplate(ctx context.Context, name string, kind models.TemplateKind) models.GameTemplate {
	f.t.Helper()

	tpl := models.GameTemplate{
		ID:       primitive.NewObjectID(),
		Name:     name,
		KindName: kind.String(),
	}
	f.insert(ctx, "game_templates", tpl)
	return tpl
}

// CreateWeeklyGame creates an active, scheduled weekly game.
func (f *Fixtures) CreateWeeklyGame(ctx context.Context, group models.Group, tpl models.GameTemplate, days []int, at string) models.Game {
	f.t.Helper()

	now := time.Now().UTC()
	g := models.Game{
		ID:            primitive.NewObjectID(),
		WorkspaceID:   group.WorkspaceID,
		GroupID:       group.ID,
		TemplateID:    tpl.ID,
		Name:          "Weekly " + group.Name,
		ScheduleType:  models.ScheduleWeekly,
		ScheduledDays: days,
		ScheduledTime: at,
		Status:        models.GameStatusScheduled,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	f.insert(ctx, "games", g)
	return g
}

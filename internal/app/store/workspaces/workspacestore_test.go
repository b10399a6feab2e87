package workspacestore_test

import (
	"errors"
	"testing"

	workspacestore "github.com/dalemusser/whosthat/internal/app/store/workspaces"
	"github.com/dalemusser/whosthat/internal/domain/models"
	"github.com/dalemusser/whosthat/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := workspacestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.Workspace{Name: "Acme Corp", SlackTeamID: " T123 ", BotToken: "xoxb-1"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID == primitive.NilObjectID {
		t.Error("expected ID to be assigned")
	}
	if created.NameCI == "" {
		t.Error("expected NameCI to be set")
	}
	if created.SlackTeamID != "T123" {
		t.Errorf("SlackTeamID = %q, want trimmed", created.SlackTeamID)
	}
	if created.Status != "active" {
		t.Errorf("expected status 'active', got %q", created.Status)
	}

	got, err := store.GetByTeamID(ctx, "T123")
	if err != nil || got.ID != created.ID {
		t.Fatalf("GetByTeamID: %+v, %v", got, err)
	}
	if !got.HasToken() {
		t.Error("bot token should round-trip")
	}
}

func TestStore_Create_DuplicateTeam(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := workspacestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.Workspace{Name: "One", SlackTeamID: "T1"}); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	_, err := store.Create(ctx, models.Workspace{Name: "Two", SlackTeamID: "T1"})
	if !errors.Is(err, workspacestore.ErrDuplicateTeam) {
		t.Errorf("expected ErrDuplicateTeam, got %v", err)
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := workspacestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.GetByID(ctx, primitive.NewObjectID()); !errors.Is(err, workspacestore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.UpdateToken(ctx, primitive.NewObjectID(), "x", "U"); !errors.Is(err, workspacestore.ErrNotFound) {
		t.Errorf("UpdateToken on missing workspace: %v", err)
	}
}

func TestStore_ListActive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := workspacestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, ws := range []models.Workspace{
		{Name: "Zeta", SlackTeamID: "T3"},
		{Name: "alpha", SlackTeamID: "T1"},
		{Name: "Off", SlackTeamID: "T2", Status: "disabled"},
	} {
		if _, err := store.Create(ctx, ws); err != nil {
			t.Fatal(err)
		}
	}

	list, err := store.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(list) != 2 || list[0].Name != "alpha" || list[1].Name != "Zeta" {
		t.Errorf("unexpected list: %+v", list)
	}
}

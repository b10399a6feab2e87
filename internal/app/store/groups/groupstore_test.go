package groupstore_test

import (
	"errors"
	"reflect"
	"testing"

	groupstore "github.com/dalemusser/whosthat/internal/app/store/groups"
	"github.com/dalemusser/whosthat/internal/domain/models"
	"github.com/dalemusser/whosthat/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_CreateDedupesMembers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := groupstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	wsID := primitive.NewObjectID()
	g, err := store.Create(ctx, models.Group{WorkspaceID: wsID, Name: "Engineering", Members: []string{"UA", " UB", "", "UA"}})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if want := []string{"UA", "UB"}; !reflect.DeepEqual(g.Members, want) {
		t.Errorf("Members = %v, want %v", g.Members, want)
	}

	got, err := store.GetByID(ctx, g.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !got.HasMember("UB") || got.HasMember("UC") {
		t.Errorf("unexpected members %v", got.Members)
	}
}

func TestStore_DuplicateName(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := groupstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	wsID := primitive.NewObjectID()
	if _, err := store.Create(ctx, models.Group{WorkspaceID: wsID, Name: "Sales"}); err != nil {
		t.Fatal(err)
	}
	_, err := store.Create(ctx, models.Group{WorkspaceID: wsID, Name: "SALES"})
	if !errors.Is(err, groupstore.ErrDuplicateGroupName) {
		t.Errorf("expected ErrDuplicateGroupName, got %v", err)
	}

	// Same name in another workspace is fine.
	if _, err := store.Create(ctx, models.Group{WorkspaceID: primitive.NewObjectID(), Name: "Sales"}); err != nil {
		t.Errorf("other workspace: %v", err)
	}
}

func TestStore_SetMembersAndList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := groupstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	wsID := primitive.NewObjectID()
	a, _ := store.Create(ctx, models.Group{WorkspaceID: wsID, Name: "b-team"})
	_, _ = store.Create(ctx, models.Group{WorkspaceID: wsID, Name: "a-team"})
	_, _ = store.Create(ctx, models.Group{WorkspaceID: wsID, Name: "retired", Status: "disabled"})

	if err := store.SetMembers(ctx, a.ID, []string{"U1", "U1", "U2"}); err != nil {
		t.Fatalf("SetMembers: %v", err)
	}
	if err := store.SetMembers(ctx, primitive.NewObjectID(), nil); !errors.Is(err, groupstore.ErrNotFound) {
		t.Errorf("SetMembers on missing group: %v", err)
	}

	list, err := store.ListByWorkspace(ctx, wsID)
	if err != nil {
		t.Fatalf("ListByWorkspace: %v", err)
	}
	if len(list) != 2 || list[0].Name != "a-team" || list[1].Name != "b-team" {
		t.Fatalf("unexpected list: %+v", list)
	}
	if len(list[1].Members) != 2 {
		t.Errorf("members = %v", list[1].Members)
	}

	n, err := store.Delete(ctx, a.ID)
	if err != nil || n != 1 {
		t.Errorf("Delete = %d, %v", n, err)
	}
}

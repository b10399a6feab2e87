package profilestore_test

import (
	"testing"
	"time"

	profilestore "github.com/dalemusser/whosthat/internal/app/store/profiles"
	"github.com/dalemusser/whosthat/internal/domain/models"
	"github.com/dalemusser/whosthat/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_LinkSentThenCompleted(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := profilestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	wsID := primitive.NewObjectID()
	at := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	if err := store.MarkLinkSent(ctx, wsID, "UA", at); err != nil {
		t.Fatalf("MarkLinkSent: %v", err)
	}
	if err := store.MarkLinkSent(ctx, wsID, "UA", at.Add(time.Hour)); err != nil {
		t.Fatalf("second MarkLinkSent: %v", err)
	}
	if err := store.MarkCompleted(ctx, wsID, "UB"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	done, err := store.CompletedAmong(ctx, wsID, []string{"UA", "UB", "UC"})
	if err != nil {
		t.Fatalf("CompletedAmong: %v", err)
	}
	if len(done) != 1 || !done["UB"] {
		t.Errorf("completed = %v, want only UB", done)
	}

	var p models.Profile
	if err := db.Collection("profiles").FindOne(ctx, bson.M{"workspace_id": wsID, "slack_user_id": "UA"}).Decode(&p); err != nil {
		t.Fatalf("find profile: %v", err)
	}
	if p.LinkSentAt == nil || !p.LinkSentAt.Equal(at.Add(time.Hour)) {
		t.Errorf("LinkSentAt = %v", p.LinkSentAt)
	}
	n, _ := db.Collection("profiles").CountDocuments(ctx, bson.M{"workspace_id": wsID})
	if n != 2 {
		t.Errorf("profile rows = %d, want 2", n)
	}
}

func TestStore_CompletedAmong_Empty(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := profilestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	done, err := store.CompletedAmong(ctx, primitive.NewObjectID(), nil)
	if err != nil || len(done) != 0 {
		t.Errorf("got %v, %v", done, err)
	}
}

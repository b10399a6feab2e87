package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/whosthat/internal/app/engine/ledger"
	"github.com/dalemusser/whosthat/internal/app/engine/ledger/ledgertest"
	"github.com/dalemusser/whosthat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func intp(v int) *int { return &v }

var monday9 = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func TestEnsureSession_Idempotent(t *testing.T) {
	sessions := ledgertest.NewSessions()
	l := ledger.New(sessions, ledgertest.NewMessages())
	ctx := context.Background()
	gameID, wsID := primitive.NewObjectID(), primitive.NewObjectID()

	first, created, err := l.EnsureSession(ctx, gameID, wsID, "2024-01-01", monday9)
	if err != nil || !created {
		t.Fatalf("first EnsureSession: created=%v err=%v", created, err)
	}
	second, created, err := l.EnsureSession(ctx, gameID, wsID, "2024-01-01", monday9.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("second EnsureSession must not report created")
	}
	if first.ID != second.ID {
		t.Errorf("session ids differ: %s vs %s", first.ID.Hex(), second.ID.Hex())
	}
	if sessions.Inserts != 1 {
		t.Errorf("inserts = %d, want 1", sessions.Inserts)
	}
}

func TestEnsureSession_ConcurrentCallersShareOneRow(t *testing.T) {
	sessions := ledgertest.NewSessions()
	l := ledger.New(sessions, ledgertest.NewMessages())
	gameID, wsID := primitive.NewObjectID(), primitive.NewObjectID()

	const n = 16
	var wg sync.WaitGroup
	ids := make([]primitive.ObjectID, n)
	createdCount := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, created, err := l.EnsureSession(context.Background(), gameID, wsID, "2024-01-01", monday9)
			if err != nil {
				t.Error(err)
				return
			}
			ids[i] = s.ID
			createdCount[i] = created
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := range ids {
		if ids[i] != ids[0] {
			t.Fatalf("caller %d got a different session", i)
		}
		if createdCount[i] {
			winners++
		}
	}
	if winners != 1 || sessions.Inserts != 1 {
		t.Errorf("winners=%d inserts=%d, want 1 and 1", winners, sessions.Inserts)
	}
}

func TestEnsureSession_DifferentDays(t *testing.T) {
	l := ledger.New(ledgertest.NewSessions(), ledgertest.NewMessages())
	gameID, wsID := primitive.NewObjectID(), primitive.NewObjectID()
	a, _, _ := l.EnsureSession(context.Background(), gameID, wsID, "2024-01-01", monday9)
	b, created, _ := l.EnsureSession(context.Background(), gameID, wsID, "2024-01-08", monday9.AddDate(0, 0, 7))
	if !created || a.ID == b.ID {
		t.Error("a new date must get a new session")
	}
}

func TestAllowDispatch(t *testing.T) {
	last30 := monday9.Add(-30 * time.Minute)
	last61 := monday9.Add(-61 * time.Minute)
	last60 := monday9.Add(-60 * time.Minute)

	tests := []struct {
		name    string
		sess    models.GameSession
		created bool
		freq    *int
		want    bool
	}{
		{"created this tick", models.GameSession{CreatedAt: monday9}, true, nil, true},
		{"existing without frequency", models.GameSession{CreatedAt: last61}, false, nil, false},
		{"30 of 60 minutes", models.GameSession{CreatedAt: last61, LastSentAt: &last30}, false, intp(60), false},
		{"61 of 60 minutes", models.GameSession{CreatedAt: last61, LastSentAt: &last61}, false, intp(60), true},
		{"exactly 60 minutes", models.GameSession{CreatedAt: last61, LastSentAt: &last60}, false, intp(60), true},
		{"never sent uses created_at", models.GameSession{CreatedAt: last30}, false, intp(60), false},
		{"zero frequency means none", models.GameSession{CreatedAt: last61}, false, intp(0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ledger.AllowDispatch(tt.sess, tt.created, tt.freq, monday9); got != tt.want {
				t.Errorf("AllowDispatch = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecordMessage_DuplicateTriple(t *testing.T) {
	l := ledger.New(ledgertest.NewSessions(), ledgertest.NewMessages())
	rec := ledger.MessageRecord{
		SessionID:   primitive.NewObjectID(),
		WorkspaceID: primitive.NewObjectID(),
		RecipientID: "A",
		SubjectID:   "B",
		ChannelID:   "D1",
	}
	m, err := l.RecordMessage(context.Background(), rec, monday9)
	if err != nil {
		t.Fatal(err)
	}
	if m.ID.IsZero() {
		t.Error("recorded message needs an id before send")
	}
	if _, err := l.RecordMessage(context.Background(), rec, monday9); !errors.Is(err, ledger.ErrDuplicateMessage) {
		t.Errorf("second RecordMessage err = %v, want ErrDuplicateMessage", err)
	}

	seen, err := l.SeenSubjects(context.Background(), rec.SessionID, "A")
	if err != nil || len(seen) != 1 || seen[0] != "B" {
		t.Errorf("SeenSubjects = %v, %v", seen, err)
	}
}

func TestMarkSessionDispatched(t *testing.T) {
	sessions := ledgertest.NewSessions()
	l := ledger.New(sessions, ledgertest.NewMessages())
	ctx := context.Background()
	sess, _, _ := l.EnsureSession(ctx, primitive.NewObjectID(), primitive.NewObjectID(), "2024-01-01", monday9)

	// Zero sent: status stays, last_sent_at still moves.
	if err := l.MarkSessionDispatched(ctx, sess.ID, 0, monday9); err != nil {
		t.Fatal(err)
	}
	got := sessions.All()[0]
	if got.Status != models.SessionStatusScheduled {
		t.Errorf("status = %s, want scheduled", got.Status)
	}
	if got.LastSentAt == nil || !got.LastSentAt.Equal(monday9) {
		t.Errorf("last_sent_at = %v, want %v", got.LastSentAt, monday9)
	}

	later := monday9.Add(30 * time.Minute)
	if err := l.MarkSessionDispatched(ctx, sess.ID, 3, later); err != nil {
		t.Fatal(err)
	}
	got = sessions.All()[0]
	if got.Status != models.SessionStatusSent || !got.LastSentAt.Equal(later) || got.Rounds != 2 {
		t.Errorf("after send: %+v", got)
	}
}

package ingest_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/whosthat/internal/app/engine/ingest"
	"github.com/dalemusser/whosthat/internal/app/engine/ledger/ledgertest"
	"github.com/dalemusser/whosthat/internal/app/engine/payload"
	gameresponsestore "github.com/dalemusser/whosthat/internal/app/store/gameresponses"
	"github.com/dalemusser/whosthat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type respKey struct {
	msg       primitive.ObjectID
	responder string
}

type memResponses struct {
	mu   sync.Mutex
	rows map[respKey]models.GameResponse
}

func newMemResponses() *memResponses {
	return &memResponses{rows: map[respKey]models.GameResponse{}}
}

func (m *memResponses) Create(_ context.Context, r models.GameResponse) (models.GameResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := respKey{r.GameMessageID, r.ResponderID}
	if _, ok := m.rows[k]; ok {
		return models.GameResponse{}, gameresponsestore.ErrDuplicateResponse
	}
	r.ID = primitive.NewObjectID()
	m.rows[k] = r
	return r, nil
}

func (m *memResponses) GetByMessageResponder(_ context.Context, msgID primitive.ObjectID, responder string) (models.GameResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[respKey{msgID, responder}]
	if !ok {
		return models.GameResponse{}, gameresponsestore.ErrNotFound
	}
	return r, nil
}

func (m *memResponses) all() []models.GameResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.GameResponse, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	return out
}

// syncQueue runs tasks inline so tests can observe them.
type syncQueue struct {
	mu     sync.Mutex
	names  []string
	errs   []error
	closed bool
}

func (q *syncQueue) Enqueue(name string, fn func(context.Context) error) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.names = append(q.names, name)
	q.errs = append(q.errs, fn(context.Background()))
	return true
}

type recordingPoster struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (p *recordingPoster) PostFollowUp(_ context.Context, _ string, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts = append(p.texts, text)
	return p.err
}

type fixture struct {
	messages  *ledgertest.Messages
	responses *memResponses
	queue     *syncQueue
	poster    *recordingPoster
	ing       *ingest.Ingestor
	msg       models.GameMessage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		messages:  ledgertest.NewMessages(),
		responses: newMemResponses(),
		queue:     &syncQueue{},
		poster:    &recordingPoster{},
	}
	msg, err := f.messages.Create(context.Background(), models.GameMessage{
		GameSessionID: primitive.NewObjectID(),
		WorkspaceID:   primitive.NewObjectID(),
		RecipientID:   "A",
		SubjectID:     "B",
		ChannelID:     "D-A",
	})
	if err != nil {
		t.Fatal(err)
	}
	f.msg = msg
	f.ing = ingest.New(f.messages, f.responses, f.queue, f.poster, nil, nil).
		WithClock(func() time.Time { return time.Date(2024, 1, 1, 9, 5, 0, 0, time.UTC) })
	return f
}

func (f *fixture) click(action, value string) ingest.Callback {
	return ingest.Callback{
		ResponderID:   "A",
		ActionID:      action,
		Value:         value,
		CorrelationID: payload.EncodeCorrelation(f.msg.ID),
		ResponseURL:   "https://hooks.slack.test/actions/1",
	}
}

func TestHandle_CorrectThenReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.ing.Handle(ctx, f.click("correct_0", "Name B"))
	if err != nil || out != ingest.OutcomeRecorded {
		t.Fatalf("first Handle = %s, %v", out, err)
	}
	rows := f.responses.all()
	if len(rows) != 1 || rows[0].Points != 10 || rows[0].ActionKind != models.ActionCorrect || rows[0].ChosenOption != "Name B" {
		t.Fatalf("responses = %+v", rows)
	}
	m, _ := f.messages.GetByID(ctx, f.msg.ID)
	if !m.Responded {
		t.Error("message should be marked responded")
	}

	out, err = f.ing.Handle(ctx, f.click("correct_0", "Name B"))
	if err != nil || out != ingest.OutcomeDuplicate {
		t.Fatalf("replay Handle = %s, %v", out, err)
	}
	if len(f.responses.all()) != 1 {
		t.Error("replay must not create a second response")
	}

	if len(f.poster.texts) != 2 {
		t.Fatalf("follow-ups = %v", f.poster.texts)
	}
	if !strings.Contains(f.poster.texts[0], "<@B>") || !strings.Contains(f.poster.texts[0], "Correct") {
		t.Errorf("feedback = %q", f.poster.texts[0])
	}
	if f.poster.texts[1] != ingest.AlreadyAnsweredText {
		t.Errorf("duplicate notice = %q", f.poster.texts[1])
	}
}

func TestHandle_IncorrectScoresZero(t *testing.T) {
	f := newFixture(t)
	out, err := f.ing.Handle(context.Background(), f.click("incorrect_2", "Name C"))
	if err != nil || out != ingest.OutcomeRecorded {
		t.Fatalf("Handle = %s, %v", out, err)
	}
	r := f.responses.all()[0]
	if r.Points != 0 || r.ActionKind != models.ActionIncorrect {
		t.Errorf("response = %+v", r)
	}
	if !strings.HasPrefix(f.poster.texts[0], "Not quite") {
		t.Errorf("feedback = %q", f.poster.texts[0])
	}
}

func TestHandle_UnrelatedCallbacksIgnored(t *testing.T) {
	f := newFixture(t)
	for _, corr := range []string{"", "settings_block", payload.EncodeCorrelation(primitive.NewObjectID())} {
		cb := f.click("correct_0", "x")
		cb.CorrelationID = corr
		out, err := f.ing.Handle(context.Background(), cb)
		if err != nil || out != ingest.OutcomeIgnored {
			t.Errorf("correlation %q: %s, %v", corr, out, err)
		}
	}
	if len(f.responses.all()) != 0 || len(f.poster.texts) != 0 {
		t.Error("ignored callbacks must have no side effects")
	}
}

func TestHandle_FollowUpFailureDoesNotSurface(t *testing.T) {
	f := newFixture(t)
	f.poster.err = errors.New("response_url expired")

	out, err := f.ing.Handle(context.Background(), f.click("correct_1", "Name B"))
	if err != nil || out != ingest.OutcomeRecorded {
		t.Fatalf("Handle = %s, %v", out, err)
	}
	if len(f.queue.errs) != 1 || f.queue.errs[0] == nil {
		t.Error("the follow-up error stays inside the queue")
	}
}

func TestHandle_ClosedQueueStillRecords(t *testing.T) {
	f := newFixture(t)
	f.queue.closed = true
	out, err := f.ing.Handle(context.Background(), f.click("correct_0", "Name B"))
	if err != nil || out != ingest.OutcomeRecorded || len(f.responses.all()) != 1 {
		t.Errorf("Handle = %s, %v", out, err)
	}
}

func TestHandle_ConcurrentDeliveriesScoreOnce(t *testing.T) {
	f := newFixture(t)

	const n = 12
	var wg sync.WaitGroup
	outcomes := make([]ingest.Outcome, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := f.ing.Handle(context.Background(), f.click("correct_0", "Name B"))
			if err != nil {
				t.Error(err)
			}
			outcomes[i] = out
		}(i)
	}
	wg.Wait()

	recorded := 0
	for _, o := range outcomes {
		if o == ingest.OutcomeRecorded {
			recorded++
		} else if o != ingest.OutcomeDuplicate {
			t.Errorf("unexpected outcome %s", o)
		}
	}
	if recorded != 1 || len(f.responses.all()) != 1 {
		t.Errorf("recorded=%d rows=%d, want 1 and 1", recorded, len(f.responses.all()))
	}
}

func TestHandle_NoResponseURL(t *testing.T) {
	f := newFixture(t)
	cb := f.click("correct_0", "Name B")
	cb.ResponseURL = ""
	if _, err := f.ing.Handle(context.Background(), cb); err != nil {
		t.Fatal(err)
	}
	if len(f.queue.names) != 0 {
		t.Error("nothing to post without a response URL")
	}
}

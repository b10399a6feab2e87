package interactions_test

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/dalemusser/whosthat/internal/app/engine/ingest"
	"github.com/dalemusser/whosthat/internal/app/features/interactions"
	"github.com/dalemusser/whosthat/internal/testutil"
	"go.uber.org/zap"
)

const secret = "test-signing-secret"

const clickPayload = `{
	"type": "block_actions",
	"team": {"id": "T1"},
	"user": {"id": "U1"},
	"response_url": "https://hooks.slack.com/actions/T1/1/abc",
	"actions": [{"type": "button", "action_id": "correct_0", "block_id": "gm_65a000000000000000000001", "value": "U2"}]
}`

type fakeResponder struct {
	mu  sync.Mutex
	got []ingest.Callback
}

func (f *fakeResponder) Handle(_ context.Context, cb ingest.Callback) (ingest.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, cb)
	return ingest.OutcomeRecorded, nil
}

// heldQueue keeps tasks until run is called, like a queue whose workers are
// busy.
type heldQueue struct {
	full  bool
	tasks []func(context.Context) error
}

func (q *heldQueue) Enqueue(_ string, fn func(context.Context) error) bool {
	if q.full {
		return false
	}
	q.tasks = append(q.tasks, fn)
	return true
}

func (q *heldQueue) run() {
	for _, fn := range q.tasks {
		_ = fn(context.Background())
	}
}

func TestServe_AcknowledgesBeforeIngesting(t *testing.T) {
	resp := &fakeResponder{}
	q := &heldQueue{}
	h := interactions.NewHandler(secret, resp, q, zap.NewNop())

	rec := testutil.NewRecorder()
	h.Serve(rec, testutil.NewSlackInteraction("/slack/interactions", secret, clickPayload))

	rec.AssertStatus(t, http.StatusOK)
	if len(resp.got) != 0 {
		t.Fatal("response must not be ingested before the ack")
	}
	if len(q.tasks) != 1 {
		t.Fatalf("queued = %d, want 1", len(q.tasks))
	}

	q.run()
	if len(resp.got) != 1 {
		t.Fatal("queued task should ingest the click")
	}
	cb := resp.got[0]
	if cb.ResponderID != "U1" || cb.ActionID != "correct_0" || cb.CorrelationID != "gm_65a000000000000000000001" {
		t.Errorf("callback = %+v", cb)
	}
}

func TestServe_BadSignature(t *testing.T) {
	resp := &fakeResponder{}
	q := &heldQueue{}
	h := interactions.NewHandler(secret, resp, q, zap.NewNop())

	rec := testutil.NewRecorder()
	h.Serve(rec, testutil.NewSlackInteraction("/slack/interactions", "wrong-secret", clickPayload))

	rec.AssertStatus(t, http.StatusUnauthorized)
	if len(q.tasks) != 0 {
		t.Error("unsigned request must not be queued")
	}
}

func TestServe_NonGamePayloadIsNoOp(t *testing.T) {
	q := &heldQueue{}
	h := interactions.NewHandler(secret, &fakeResponder{}, q, zap.NewNop())

	rec := testutil.NewRecorder()
	h.Serve(rec, testutil.NewSlackInteraction("/slack/interactions", secret, `{"type":"shortcut","user":{"id":"U1"}}`))

	rec.AssertStatus(t, http.StatusOK)
	if len(q.tasks) != 0 {
		t.Error("non block_actions payloads are ignored")
	}
}

func TestServe_MalformedPayload(t *testing.T) {
	h := interactions.NewHandler(secret, &fakeResponder{}, &heldQueue{}, zap.NewNop())
	rec := testutil.NewRecorder()
	h.Serve(rec, testutil.NewSlackInteraction("/slack/interactions", secret, "{oops"))
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestServe_FullQueueHandlesInline(t *testing.T) {
	resp := &fakeResponder{}
	h := interactions.NewHandler(secret, resp, &heldQueue{full: true}, zap.NewNop())

	rec := testutil.NewRecorder()
	h.Serve(rec, testutil.NewSlackInteraction("/slack/interactions", secret, clickPayload))

	rec.AssertStatus(t, http.StatusOK)
	if len(resp.got) != 1 {
		t.Error("a saturated queue should fall back to inline handling")
	}
}

func TestRoutes(t *testing.T) {
	resp := &fakeResponder{}
	r := interactions.Routes(interactions.NewHandler(secret, resp, &heldQueue{full: true}, zap.NewNop()))

	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, testutil.NewSlackInteraction("/interactions", secret, clickPayload))
	rec.AssertStatus(t, http.StatusOK)

	rec = testutil.NewRecorder()
	r.ServeHTTP(rec, testutil.NewRequest(http.MethodGet, "/interactions", nil))
	rec.AssertStatus(t, http.StatusMethodNotAllowed)
}

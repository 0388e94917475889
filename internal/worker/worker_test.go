package worker_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/tripplanner/internal/completion"
	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/identity"
	"github.com/pkordes/tripplanner/internal/merge"
	"github.com/pkordes/tripplanner/internal/notify"
	"github.com/pkordes/tripplanner/internal/queue"
	"github.com/pkordes/tripplanner/internal/service"
	"github.com/pkordes/tripplanner/internal/worker"
)

// fakeNotifier records every notification per connection.
type fakeNotifier struct {
	mu   sync.Mutex
	sent map[string][]domain.Notification
}

func (f *fakeNotifier) Notify(_ context.Context, id string, n domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sent == nil {
		f.sent = map[string][]domain.Notification{}
	}
	f.sent[id] = append(f.sent[id], n)
	return nil
}

func (f *fakeNotifier) actions(id string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent[id]))
	for _, n := range f.sent[id] {
		out = append(out, n.Action)
	}
	return out
}

func (f *fakeNotifier) last(id string) domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[id][len(f.sent[id])-1]
}

var _ notify.Notifier = (*fakeNotifier)(nil)

// fakeDelivery is a queue.Delivery that records acknowledgement.
type fakeDelivery struct {
	data   []byte
	acked  bool
	nakked bool
}

func (d *fakeDelivery) Data() []byte { return d.data }
func (d *fakeDelivery) Ack() error   { d.acked = true; return nil }
func (d *fakeDelivery) Nak() error   { d.nakked = true; return nil }

var _ queue.Delivery = (*fakeDelivery)(nil)

// fakeCompleter answers by request: a plan for creation, regenerated days
// for modification, and an error when the instruction mentions "explode".
type fakeCompleter struct{}

func (fakeCompleter) Complete(_ context.Context, instruction string, _ []domain.Image, opts ...completion.CallOption) (completion.Result, error) {
	if strings.Contains(instruction, "explode") {
		return completion.Result{}, &completion.HTTPError{StatusCode: 503, Body: "overloaded"}
	}
	if len(opts) > 0 {
		return completion.Result{Parsed: json.RawMessage(`{"days":{"1":{"schedules":[{"id":"1-9","name":"Museum","category":"attraction"}]}}}`)}, nil
	}
	return completion.Result{Parsed: json.RawMessage(`{"title":"Trip","days":[{"day":1,"schedules":[]}]}`)}, nil
}

// memoryRepo is an in-memory repo.PlanRepo.
type memoryRepo struct {
	mu    sync.Mutex
	plans []domain.TravelPlan
}

func (m *memoryRepo) Put(_ context.Context, p domain.TravelPlan) (domain.TravelPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans = append(m.plans, p)
	return p, nil
}
func (m *memoryRepo) Get(context.Context, string, string) (domain.TravelPlan, error) {
	return domain.TravelPlan{}, domain.ErrNotFound
}
func (m *memoryRepo) ListByUser(context.Context, string, domain.PaginationParams) ([]domain.TravelPlan, int64, error) {
	return nil, 0, nil
}
func (m *memoryRepo) Delete(context.Context, string, string) error { return domain.ErrNotFound }

// ---- helpers ---------------------------------------------------------------

func newWorker(t *testing.T) (*worker.Worker, *fakeNotifier, *memoryRepo) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := &memoryRepo{}
	svc := service.NewPlanService(store, fakeCompleter{}, identity.NewPermissive("test-token", "dev@example.com", logger), nil, logger)
	n := &fakeNotifier{}
	return worker.New(svc, n, nil, logger), n, store
}

func delivery(t *testing.T, id, kind, body string) *fakeDelivery {
	t.Helper()
	data, err := json.Marshal(domain.QueueMessage{ConnectionID: id, RequestData: json.RawMessage(body), Kind: kind})
	require.NoError(t, err)
	return &fakeDelivery{data: data}
}

// assertSequence checks for at least one status_update followed by exactly
// one terminal notification.
func assertSequence(t *testing.T, actions []string, terminal string) {
	t.Helper()
	require.GreaterOrEqual(t, len(actions), 2)
	for _, a := range actions[:len(actions)-1] {
		assert.Equal(t, domain.ActionStatusUpdate, a)
	}
	assert.Equal(t, terminal, actions[len(actions)-1])
}

// ---- tests -----------------------------------------------------------------

func TestWorker_CreateSequence(t *testing.T) {
	w, n, store := newWorker(t)
	d := delivery(t, "abc123", domain.KindCreate, `{"query":"food tour","startDate":"2025-05-12","endDate":"2025-05-14","adults":2}`)

	w.HandleBatch(context.Background(), []queue.Delivery{d})

	assertSequence(t, n.actions("abc123"), domain.ActionPlanCreated)
	last := n.last("abc123")
	assert.Regexp(t, `^plan-\d+$`, last.PlanID)
	assert.Equal(t, "/planner/"+last.PlanID, last.RedirectURL)
	assert.True(t, d.acked)
	assert.Len(t, store.plans, 1)
}

func TestWorker_ModifySequence(t *testing.T) {
	w, n, _ := newWorker(t)
	body := `{"need":"more museums","plans":{"planId":"plan-7","start_date":"2025-07-05","day_order":["1"],
		"travel_plans":{"1":{"schedules":[{"id":"f-1","type":"Flight_OneWay"},{"id":"1-1","category":"meal"}]}}}}`
	d := delivery(t, "abc123", domain.KindModify, body)

	w.HandleBatch(context.Background(), []queue.Delivery{d})

	assertSequence(t, n.actions("abc123"), domain.ActionPlanModified)
	last := n.last("abc123")
	assert.Equal(t, "plan-7", last.PlanID)
	require.NotNil(t, last.IsRoundTrip)
	view, ok := last.Plan.(merge.PlanView)
	require.True(t, ok)
	require.Len(t, view.Days, 1)
	assert.Equal(t, "f-1", view.Days[0].Schedules[0].ID)
	assert.Equal(t, "1-9", view.Days[0].Schedules[1].ID)
	assert.True(t, d.acked)
}

func TestWorker_FailureIsTerminalErrorAndAcked(t *testing.T) {
	w, n, store := newWorker(t)
	d := delivery(t, "abc123", domain.KindCreate, `{"query":"explode","startDate":"2025-05-12","endDate":"2025-05-14"}`)

	w.HandleBatch(context.Background(), []queue.Delivery{d})

	assertSequence(t, n.actions("abc123"), domain.ActionError)
	last := n.last("abc123")
	assert.Equal(t, worker.MessageCreateFailed, last.Message)
	assert.Contains(t, last.ErrorDetails, "503")
	assert.True(t, d.acked, "failed plans are not redelivered")
	assert.Empty(t, store.plans)
}

func TestWorker_BatchContinuesAfterFailure(t *testing.T) {
	w, n, _ := newWorker(t)
	bad := delivery(t, "c1", domain.KindCreate, `{"query":"explode","startDate":"2025-05-12","endDate":"2025-05-14"}`)
	invalid := &fakeDelivery{data: []byte(`{"connectionId":"c2","requestData":"{not json"}`)}
	good := delivery(t, "c3", domain.KindCreate, `{"startDate":"2025-05-12","endDate":"2025-05-14"}`)

	w.HandleBatch(context.Background(), []queue.Delivery{bad, invalid, good})

	assert.Equal(t, domain.ActionError, n.last("c1").Action)
	assert.Equal(t, domain.ActionError, n.last("c2").Action)
	assert.Equal(t, domain.ActionPlanCreated, n.last("c3").Action)
	assert.True(t, bad.acked && invalid.acked && good.acked)
}

func TestWorker_MissingDatesIsError(t *testing.T) {
	w, n, _ := newWorker(t)
	d := delivery(t, "abc123", domain.KindCreate, `{"query":"x"}`)

	w.HandleBatch(context.Background(), []queue.Delivery{d})

	assert.Equal(t, domain.ActionError, n.last("abc123").Action)
	assert.Contains(t, n.last("abc123").ErrorDetails, "startDate")
}

func TestWorker_UndecodableMessageIsNakked(t *testing.T) {
	w, n, _ := newWorker(t)
	d := &fakeDelivery{data: []byte(`garbage`)}

	w.HandleBatch(context.Background(), []queue.Delivery{d})

	assert.True(t, d.nakked)
	assert.False(t, d.acked)
	assert.Empty(t, n.sent)
}

func TestTerminal_CreateCarriesWarning(t *testing.T) {
	n := worker.Terminal(service.Outcome{
		Mode:    service.ModeCreate,
		Plan:    domain.TravelPlan{PlanID: "plan-1"},
		Warning: service.WarningUnparsed,
	})

	assert.Equal(t, domain.ActionPlanCreated, n.Action)
	assert.Equal(t, "/planner/plan-1", n.RedirectURL)
	assert.Equal(t, service.WarningUnparsed, n.Warning)
	assert.Nil(t, n.IsRoundTrip)
}

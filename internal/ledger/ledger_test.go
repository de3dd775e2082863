package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GonzaJCalderon/EatAndRun-Back/internal/auth"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/tracking"
	"github.com/GonzaJCalderon/EatAndRun-Back/jobs"
)

type fakeStore struct {
	owners     map[int64]int64
	statuses   map[int64]Status
	history    []Entry
	failures   []error
	txCalls    int
	lastChange time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		owners:     map[int64]int64{1: 100},
		statuses:   map[int64]Status{1: StatusPendiente},
		lastChange: time.Date(2025, 8, 11, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	f.txCalls++
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return err
	}
	tx := &fakeTx{store: f, statuses: map[int64]Status{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, s := range tx.statuses {
		f.statuses[id] = s
	}
	f.history = append(f.history, tx.appended...)
	return nil
}

func (f *fakeStore) History(_ context.Context, orderID int64) ([]Entry, error) {
	var out []Entry
	for _, e := range f.history {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) OrderOwner(_ context.Context, orderID int64) (int64, error) {
	owner, ok := f.owners[orderID]
	if !ok {
		return 0, ErrNotFound
	}
	return owner, nil
}

type fakeTx struct {
	store    *fakeStore
	statuses map[int64]Status
	appended []Entry
}

func (t *fakeTx) UpdateOrderStatus(_ context.Context, orderID int64, status Status) (int64, error) {
	owner, ok := t.store.owners[orderID]
	if !ok {
		return 0, ErrNotFound
	}
	t.statuses[orderID] = status
	return owner, nil
}

func (t *fakeTx) AppendHistory(_ context.Context, e Entry) (Entry, error) {
	t.store.lastChange = t.store.lastChange.Add(time.Microsecond)
	e.ID = int64(len(t.store.history) + len(t.appended) + 1)
	e.ChangedAt = t.store.lastChange
	t.appended = append(t.appended, e)
	return e, nil
}

type recordingPublisher struct{ events []tracking.Event }

func (p *recordingPublisher) Publish(_ context.Context, e tracking.Event) error {
	p.events = append(p.events, e)
	return nil
}

type failingNotifier struct{ payloads []jobs.StatusChangedPayload }

func (n *failingNotifier) EnqueueStatusChanged(_ context.Context, p jobs.StatusChangedPayload) (*asynq.TaskInfo, error) {
	n.payloads = append(n.payloads, p)
	return nil, errors.New("redis down")
}

func newTestService(store Store) *Service {
	return NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)), 10)
}

func TestParseStatusVariants(t *testing.T) {
	for raw, want := range map[string]Status{
		"pendiente":    StatusPendiente,
		"En Camino":    StatusEnCamino,
		"en_camino":    StatusEnCamino,
		"no entregado": StatusNoEntregado,
		"NO_ENTREGADO": StatusNoEntregado,
		" entregado ":  StatusEntregado,
	} {
		got, ok := ParseStatus(raw)
		require.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	_, ok := ParseStatus("perdido")
	assert.False(t, ok)
}

func TestTransitionUpdatesStatusAndHistoryTogether(t *testing.T) {
	store := newFakeStore()
	pub := &recordingPublisher{}
	notifier := &failingNotifier{}
	svc := newTestService(store)
	svc.SetPublisher(pub)
	svc.SetNotifier(notifier)

	entry, err := svc.Transition(context.Background(), TransitionInput{OrderID: 1, Status: StatusEnCamino, Actor: 5, RequestID: "req-1"})
	require.NoError(t, err)
	assert.Equal(t, StatusEnCamino, store.statuses[1])
	require.Len(t, store.history, 1)
	assert.Equal(t, entry, store.history[0])
	require.NotNil(t, entry.ChangedBy)
	assert.Equal(t, int64(5), *entry.ChangedBy)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "en camino", pub.events[0].Status)
	require.Len(t, notifier.payloads, 1)
	assert.Equal(t, "req-1", notifier.payloads[0].RequestID)
}

func TestTransitionHistoryIsMonotonic(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	for _, s := range []Status{StatusPreparando, StatusEnCamino, StatusEntregado} {
		_, err := svc.Transition(context.Background(), TransitionInput{OrderID: 1, Status: s})
		require.NoError(t, err)
	}
	history, err := svc.History(context.Background(), 1, 100, false)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i := 1; i < len(history); i++ {
		assert.True(t, history[i].ChangedAt.After(history[i-1].ChangedAt))
	}
}

func TestTransitionValidation(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.Transition(ctx, TransitionInput{OrderID: 1, Status: Status("perdido")})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.Transition(ctx, TransitionInput{OrderID: 1, Status: StatusNoEntregado, Reason: "   corto   "})
	assert.ErrorIs(t, err, ErrReasonTooShort)
	assert.Zero(t, store.txCalls)

	entry, err := svc.Transition(ctx, TransitionInput{OrderID: 1, Status: StatusNoEntregado, Reason: "  nadie en el domicilio "})
	require.NoError(t, err)
	require.NotNil(t, entry.Reason)
	assert.Equal(t, "nadie en el domicilio", *entry.Reason)

	_, err = svc.Transition(ctx, TransitionInput{OrderID: 404, Status: StatusEntregado})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionRetriesSerializationFailures(t *testing.T) {
	store := newFakeStore()
	store.failures = []error{&pgconn.PgError{Code: "40001"}}
	svc := newTestService(store)

	_, err := svc.Transition(context.Background(), TransitionInput{OrderID: 1, Status: StatusPreparando})
	require.NoError(t, err)
	assert.Equal(t, 2, store.txCalls)

	store.failures = []error{errors.New("connection reset")}
	_, err = svc.Transition(context.Background(), TransitionInput{OrderID: 1, Status: StatusEntregado})
	assert.Error(t, err)
	assert.Equal(t, 3, store.txCalls)
}

func TestHistoryAuthorization(t *testing.T) {
	svc := newTestService(newFakeStore())
	ctx := context.Background()

	_, err := svc.History(ctx, 1, 999, false)
	assert.ErrorIs(t, err, ErrForbidden)

	entries, err := svc.History(ctx, 1, 999, true)
	require.NoError(t, err)
	assert.NotNil(t, entries)

	_, err = svc.History(ctx, 2, 100, true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionEndpoint(t *testing.T) {
	store := newFakeStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	issuer := auth.NewIssuer("ledger-secret", time.Hour)
	mw := auth.Middleware{Issuer: issuer, Logger: logger}
	h := NewHandler(logger, newTestService(store), mw)
	r := chi.NewRouter()
	r.Route("/orders", func(r chi.Router) {
		r.Use(mw.Authenticate)
		h.MountRoutes(r)
	})

	do := func(role auth.Role, body string) *httptest.ResponseRecorder {
		token, err := issuer.Issue(100, role)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPut, "/orders/1", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusForbidden, do(auth.RoleUsuario, `{"status":"entregado"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(auth.RoleDelivery, `{"status":"volando"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(auth.RoleDelivery, `{"status":"no_entregado","motivo":"no"}`).Code)

	rr := do(auth.RoleDelivery, `{"status":"en camino"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, StatusEnCamino, store.statuses[1])

	token, err := issuer.Issue(100, auth.RoleUsuario)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/orders/1/history", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	hist := httptest.NewRecorder()
	r.ServeHTTP(hist, req)
	require.Equal(t, http.StatusOK, hist.Code)
	assert.Contains(t, hist.Body.String(), `"status":"en camino"`)
}

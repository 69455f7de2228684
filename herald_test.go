package herald_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/heraldhq/herald"
	"github.com/heraldhq/herald/catalog"
	"github.com/heraldhq/herald/delivery"
	"github.com/heraldhq/herald/history"
	"github.com/heraldhq/herald/id"
	"github.com/heraldhq/herald/signature"
	"github.com/heraldhq/herald/store/memory"
	"github.com/heraldhq/herald/webhook"
)

func ctx() context.Context { return context.Background() }

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// setup builds a Herald tuned for fast tests: 10ms polling, 10ms initial
// backoff capped at 50ms.
func setup(t *testing.T, opts ...herald.Option) (*herald.Herald, *memory.Store) {
	t.Helper()
	s := memory.New()
	opts = append([]herald.Option{
		herald.WithStore(s),
		herald.WithPollInterval(10 * time.Millisecond),
		herald.WithBackoff(10*time.Millisecond, 2.0, 50*time.Millisecond),
		herald.WithRequestTimeout(2 * time.Second),
	}, opts...)
	h, err := herald.New(opts...)
	if err != nil {
		t.Fatal(err)
	}
	return h, s
}

func register(t *testing.T, h *herald.Herald, url string, events ...string) *webhook.Webhook {
	t.Helper()
	wh, err := h.Webhooks().Register(ctx(), webhook.Input{URL: url, Events: events})
	if err != nil {
		t.Fatal(err)
	}
	return wh
}

func start(t *testing.T, h *herald.Herald) {
	t.Helper()
	if err := h.Start(ctx()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { h.Stop(ctx()) })
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestTriggerEventFanOut(t *testing.T) {
	h, s := setup(t)

	register(t, h, "https://example.com/a", "query.completed")
	register(t, h, "https://example.com/b", "query.completed", "query.failed")
	register(t, h, "https://example.com/c", "other.event")

	evt, matched, err := h.TriggerEvent(ctx(), "query.completed", map[string]any{"rows": 42})
	if err != nil {
		t.Fatal(err)
	}
	if matched != 2 {
		t.Fatalf("expected 2 matches, got %d", matched)
	}
	if evt.ID.IsNil() {
		t.Fatal("expected event id to be assigned")
	}
	if h.PendingCount() != 2 {
		t.Fatalf("expected 2 pending deliveries, got %d", h.PendingCount())
	}

	// The event is persisted for audit even before any attempt runs.
	events := s.Events()
	if len(events) != 1 || events[0].Type != "query.completed" {
		t.Fatalf("expected 1 persisted event, got %v", events)
	}
}

func TestTriggerEventNoMatches(t *testing.T) {
	h, s := setup(t)

	register(t, h, "https://example.com/a", "other.event")

	_, matched, err := h.TriggerEvent(ctx(), "query.completed", nil)
	if err != nil {
		t.Fatal(err)
	}
	if matched != 0 {
		t.Fatalf("expected 0 matches, got %d", matched)
	}
	if h.PendingCount() != 0 {
		t.Fatalf("expected empty queue, got %d", h.PendingCount())
	}
	if len(s.Events()) != 1 {
		t.Fatal("expected event persisted despite no matches")
	}
}

func TestTriggerEventEmptyType(t *testing.T) {
	h, _ := setup(t)

	_, _, err := h.TriggerEvent(ctx(), "", nil)

	var verr *herald.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestTriggerEventInactiveExcluded(t *testing.T) {
	h, _ := setup(t)

	wh := register(t, h, "https://example.com/a", "query.completed")
	if _, err := h.Webhooks().Pause(ctx(), wh.ID); err != nil {
		t.Fatal(err)
	}

	_, matched, err := h.TriggerEvent(ctx(), "query.completed", nil)
	if err != nil {
		t.Fatal(err)
	}
	if matched != 0 {
		t.Fatalf("expected paused webhook to be excluded, matched %d", matched)
	}
}

func TestDeliverySuccess(t *testing.T) {
	var gotSig, gotEvent, gotDelivery string
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Webhook-Signature")
		gotEvent = r.Header.Get("X-Webhook-Event")
		gotDelivery = r.Header.Get("X-Webhook-Delivery")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h, s := setup(t)
	wh := register(t, h, srv.URL, "query.completed")
	start(t, h)

	if _, _, err := h.TriggerEvent(ctx(), "query.completed", map[string]any{"rows": 1}); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 3*time.Second, "delivery to complete", func() bool {
		st, err := h.History().Stats(wh.ID)
		return err == nil && st.TotalDeliveries == 1
	})

	st, err := h.History().Stats(wh.ID)
	if err != nil {
		t.Fatal(err)
	}
	if st.SuccessfulDeliveries != 1 || st.FailedDeliveries != 0 {
		t.Fatalf("expected 1 success, got %+v", st)
	}
	if st.SuccessRate != 1.0 {
		t.Fatalf("expected success rate 1.0, got %f", st.SuccessRate)
	}
	if st.LastDeliveryStatus != "success" || st.LastDeliveryAt == nil {
		t.Fatalf("expected last delivery bookkeeping, got %+v", st)
	}

	// The signature covers the exact body bytes.
	if !signature.Verify(body, wh.Secret, gotSig) {
		t.Fatal("signature did not verify against the request body")
	}
	if gotEvent != "query.completed" {
		t.Fatalf("expected X-Webhook-Event header, got %q", gotEvent)
	}
	if gotDelivery == "" {
		t.Fatal("expected X-Webhook-Delivery header")
	}

	recs := h.History().List(wh.ID, history.ListOpts{})
	if len(recs) != 1 || recs[0].Status != delivery.StatusSuccess || recs[0].Attempts != 1 {
		t.Fatalf("expected one success record with 1 attempt, got %v", recs)
	}

	// Mirrored to the store best-effort.
	waitFor(t, time.Second, "record mirrored to store", func() bool {
		return len(s.DeliveryRecords()) == 1
	})
}

func TestDeliveryRetryThenSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h, _ := setup(t)
	wh := register(t, h, srv.URL, "query.completed")
	start(t, h)

	if _, _, err := h.TriggerEvent(ctx(), "query.completed", nil); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 3*time.Second, "delivery to complete", func() bool {
		st, err := h.History().Stats(wh.ID)
		return err == nil && st.TotalDeliveries == 1
	})

	st, _ := h.History().Stats(wh.ID)
	if st.SuccessfulDeliveries != 1 {
		t.Fatalf("expected eventual success, got %+v", st)
	}

	recs := h.History().List(wh.ID, history.ListOpts{})
	if len(recs) != 1 || recs[0].Attempts != 3 {
		t.Fatalf("expected one record with 3 attempts, got %v", recs)
	}
}

func TestDeliveryExhaustsRetryBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	h, _ := setup(t)
	wh := register(t, h, srv.URL, "query.completed")
	start(t, h)

	if _, _, err := h.TriggerEvent(ctx(), "query.completed", nil); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 5*time.Second, "delivery to exhaust", func() bool {
		st, err := h.History().Stats(wh.ID)
		return err == nil && st.TotalDeliveries == 1
	})

	st, _ := h.History().Stats(wh.ID)
	if st.FailedDeliveries != 1 || st.SuccessfulDeliveries != 0 {
		t.Fatalf("expected 1 failure, got %+v", st)
	}
	if st.LastDeliveryStatus != "failed" {
		t.Fatalf("expected failed status, got %q", st.LastDeliveryStatus)
	}

	if got := calls.Load(); got != 5 {
		t.Fatalf("expected 5 attempts, got %d", got)
	}

	recs := h.History().List(wh.ID, history.ListOpts{})
	if len(recs) != 1 || recs[0].Status != delivery.StatusFailed || recs[0].Attempts != 5 {
		t.Fatalf("expected failed record with 5 attempts, got %v", recs)
	}
	if h.PendingCount() != 0 {
		t.Fatalf("expected empty queue after terminal outcome, got %d", h.PendingCount())
	}
}

func TestDelivery4xxIsDelivered(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	h, _ := setup(t)
	wh := register(t, h, srv.URL, "query.completed")
	start(t, h)

	if _, _, err := h.TriggerEvent(ctx(), "query.completed", nil); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 3*time.Second, "delivery to complete", func() bool {
		st, err := h.History().Stats(wh.ID)
		return err == nil && st.TotalDeliveries == 1
	})

	// 4xx means the receiver rejected the payload; retrying cannot help.
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", got)
	}
	st, _ := h.History().Stats(wh.ID)
	if st.SuccessfulDeliveries != 1 {
		t.Fatalf("expected 4xx to count as delivered, got %+v", st)
	}
}

func TestRedeliverFailedRecord(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h, _ := setup(t, herald.WithMaxRetries(1))
	wh := register(t, h, srv.URL, "query.completed")
	start(t, h)

	if _, _, err := h.TriggerEvent(ctx(), "query.completed", nil); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 3*time.Second, "first delivery to fail", func() bool {
		st, err := h.History().Stats(wh.ID)
		return err == nil && st.FailedDeliveries == 1
	})

	recs := h.History().List(wh.ID, history.ListOpts{Status: delivery.StatusFailed})
	if len(recs) != 1 {
		t.Fatalf("expected 1 failed record, got %d", len(recs))
	}

	failing.Store(false)
	if _, err := h.History().Redeliver(ctx(), recs[0].ID); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 3*time.Second, "redelivery to succeed", func() bool {
		st, err := h.History().Stats(wh.ID)
		return err == nil && st.SuccessfulDeliveries == 1
	})

	st, _ := h.History().Stats(wh.ID)
	if st.TotalDeliveries != 2 || st.FailedDeliveries != 1 {
		t.Fatalf("expected redelivery to add a second outcome, got %+v", st)
	}
}

func TestTestWebhookDoesNotMutate(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("X-Webhook-Event") != herald.TestEventType {
			t.Errorf("expected test event type header, got %q", r.Header.Get("X-Webhook-Event"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h, _ := setup(t)
	wh := register(t, h, srv.URL, "query.completed")

	res, err := h.TestWebhook(ctx(), wh.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.StatusCode != http.StatusOK {
		t.Fatalf("expected successful test result, got %+v", res)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly one request, got %d", calls.Load())
	}

	// No stat mutation, no history, no queueing.
	st, _ := h.History().Stats(wh.ID)
	if st.TotalDeliveries != 0 {
		t.Fatalf("expected untouched stats, got %+v", st)
	}
	if len(h.History().List(wh.ID, history.ListOpts{})) != 0 {
		t.Fatal("expected no history record")
	}
	if h.PendingCount() != 0 {
		t.Fatal("expected no pending delivery")
	}
}

func TestTestWebhookUnknownID(t *testing.T) {
	h, _ := setup(t)

	_, err := h.TestWebhook(ctx(), id.NewWebhookID())
	if !errors.Is(err, herald.ErrWebhookNotFound) {
		t.Fatalf("expected ErrWebhookNotFound, got %v", err)
	}
}

func TestTestWebhookFailureReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	h, _ := setup(t)
	wh := register(t, h, srv.URL, "query.completed")

	res, err := h.TestWebhook(ctx(), wh.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Success {
		t.Fatal("expected 503 to report failure")
	}
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.StatusCode)
	}
}

func TestStrictCatalogRejectsUnknown(t *testing.T) {
	h, _ := setup(t, herald.WithStrictCatalog())

	_, _, err := h.TriggerEvent(ctx(), "never.registered", nil)
	if !errors.Is(err, herald.ErrEventTypeNotFound) {
		t.Fatalf("expected ErrEventTypeNotFound, got %v", err)
	}

	if _, err := h.RegisterEventType(catalog.Definition{Name: "known.event"}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := h.TriggerEvent(ctx(), "known.event", nil); err != nil {
		t.Fatal(err)
	}
}

func TestStrictCatalogRejectsDeprecated(t *testing.T) {
	h, _ := setup(t, herald.WithStrictCatalog())

	if _, err := h.RegisterEventType(catalog.Definition{Name: "old.event"}); err != nil {
		t.Fatal(err)
	}
	if err := h.Catalog().Deprecate("old.event"); err != nil {
		t.Fatal(err)
	}

	_, _, err := h.TriggerEvent(ctx(), "old.event", nil)
	if !errors.Is(err, herald.ErrEventTypeDeprecated) {
		t.Fatalf("expected ErrEventTypeDeprecated, got %v", err)
	}
}

func TestSchemaValidationOnTrigger(t *testing.T) {
	h, _ := setup(t)

	_, err := h.RegisterEventType(catalog.Definition{
		Name: "validated.event",
		Schema: mustJSON(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"amount": map[string]any{"type": "number"},
			},
			"required": []any{"amount"},
		}),
	})
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = h.TriggerEvent(ctx(), "validated.event", map[string]any{"other": "x"})
	if !errors.Is(err, herald.ErrPayloadValidationFailed) {
		t.Fatalf("expected ErrPayloadValidationFailed, got %v", err)
	}

	if _, _, err := h.TriggerEvent(ctx(), "validated.event", map[string]any{"amount": 42.5}); err != nil {
		t.Fatal(err)
	}

	// Unregistered types still flow through in permissive mode.
	if _, _, err := h.TriggerEvent(ctx(), "unregistered.event", map[string]any{"x": 1}); err != nil {
		t.Fatal(err)
	}
}

func TestDefaultStoreIsMemory(t *testing.T) {
	h, err := herald.New()
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Store().Ping(ctx()); err != nil {
		t.Fatal(err)
	}
	if _, ok := h.Store().(*memory.Store); !ok {
		t.Fatalf("expected default memory store, got %T", h.Store())
	}
}

func TestStopDrainsInFlight(t *testing.T) {
	release := make(chan struct{})
	var entered, done atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		entered.Store(true)
		<-release
		done.Store(true)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h, _ := setup(t)
	register(t, h, srv.URL, "query.completed")
	if err := h.Start(ctx()); err != nil {
		t.Fatal(err)
	}

	if _, _, err := h.TriggerEvent(ctx(), "query.completed", nil); err != nil {
		t.Fatal(err)
	}

	// Wait until the attempt is in flight, then stop while it blocks.
	waitFor(t, 2*time.Second, "attempt to start", func() bool {
		return entered.Load()
	})

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()

	h.Stop(ctx())

	if !done.Load() {
		t.Fatal("expected Stop to wait for the in-flight attempt")
	}
}

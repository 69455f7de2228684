package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/heraldhq/herald"
	"github.com/heraldhq/herald/api"
	"github.com/heraldhq/herald/webhook"
)

func newHandler(t *testing.T, opts ...herald.Option) (*api.Handler, *herald.Herald) {
	t.Helper()
	opts = append([]herald.Option{
		herald.WithPollInterval(10 * time.Millisecond),
		herald.WithBackoff(10*time.Millisecond, 2.0, 50*time.Millisecond),
	}, opts...)
	h, err := herald.New(opts...)
	if err != nil {
		t.Fatal(err)
	}
	return api.NewHandler(h, nil), h
}

// do runs one request through the handler and decodes the JSON response
// into out when it is non-nil.
func do(t *testing.T, a *api.Handler, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	a.ServeHTTP(w, req)

	if out != nil && w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s %s response: %v: %s", method, path, err, w.Body.String())
		}
	}
	return w
}

func registerWebhook(t *testing.T, a *api.Handler, url string, events ...string) map[string]any {
	t.Helper()
	var created map[string]any
	w := do(t, a, http.MethodPost, "/webhooks", webhook.Input{URL: url, Events: events}, &created)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	return created
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error envelope: %v: %s", err, w.Body.String())
	}
	return body.Error.Code
}

func TestWebhookCRUD(t *testing.T) {
	a, _ := newHandler(t)

	created := registerWebhook(t, a, "https://example.com/hooks", "invoice.created")
	whID, _ := created["id"].(string)
	if !strings.HasPrefix(whID, "wh_") {
		t.Fatalf("expected wh_ id, got %q", whID)
	}
	secret, _ := created["secret"].(string)
	if secret == "" {
		t.Fatal("expected registration response to expose the secret")
	}

	// Reads never expose the secret.
	var got map[string]any
	if w := do(t, a, http.MethodGet, "/webhooks/"+whID, nil, &got); w.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", w.Code)
	}
	if _, leaked := got["secret"]; leaked {
		t.Fatal("secret leaked from GET")
	}

	// Update the description.
	var updated map[string]any
	w := do(t, a, http.MethodPut, "/webhooks/"+whID, map[string]any{"description": "billing hooks"}, &updated)
	if w.Code != http.StatusOK || updated["description"] != "billing hooks" {
		t.Fatalf("update: expected description change, got %d %v", w.Code, updated)
	}

	var listed []map[string]any
	if w := do(t, a, http.MethodGet, "/webhooks", nil, &listed); w.Code != http.StatusOK || len(listed) != 1 {
		t.Fatalf("list: expected 1 webhook, got %d %v", w.Code, listed)
	}

	if w := do(t, a, http.MethodDelete, "/webhooks/"+whID, nil, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", w.Code)
	}
	if w := do(t, a, http.MethodGet, "/webhooks/"+whID, nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", w.Code)
	}
}

func TestRegisterWebhookValidation(t *testing.T) {
	a, _ := newHandler(t)

	w := do(t, a, http.MethodPost, "/webhooks", webhook.Input{URL: "not a url", Events: []string{"x"}}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if code := errorCode(t, w); code != "validation_failed" {
		t.Fatalf("expected validation_failed, got %q", code)
	}

	w = do(t, a, http.MethodPost, "/webhooks", webhook.Input{URL: "https://example.com"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing events, got %d", w.Code)
	}
}

func TestInvalidWebhookID(t *testing.T) {
	a, _ := newHandler(t)

	w := do(t, a, http.MethodGet, "/webhooks/not-an-id", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if code := errorCode(t, w); code != "invalid_id" {
		t.Fatalf("expected invalid_id, got %q", code)
	}
}

func TestPauseResumeRotate(t *testing.T) {
	a, _ := newHandler(t)

	created := registerWebhook(t, a, "https://example.com/hooks", "invoice.created")
	whID := created["id"].(string)

	var paused map[string]any
	if w := do(t, a, http.MethodPost, "/webhooks/"+whID+"/pause", nil, &paused); w.Code != http.StatusOK {
		t.Fatalf("pause: expected 200, got %d", w.Code)
	}
	if paused["active"] != false {
		t.Fatalf("expected paused webhook inactive, got %v", paused["active"])
	}

	var resumed map[string]any
	do(t, a, http.MethodPost, "/webhooks/"+whID+"/resume", nil, &resumed)
	if resumed["active"] != true {
		t.Fatalf("expected resumed webhook active, got %v", resumed["active"])
	}

	var rotated map[string]string
	if w := do(t, a, http.MethodPost, "/webhooks/"+whID+"/rotate-secret", nil, &rotated); w.Code != http.StatusOK {
		t.Fatalf("rotate: expected 200, got %d", w.Code)
	}
	if rotated["secret"] == "" || rotated["secret"] == created["secret"] {
		t.Fatal("expected a fresh secret")
	}
}

func TestTriggerAndHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a, h := newHandler(t)
	if err := h.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { h.Stop(context.Background()) })

	created := registerWebhook(t, a, srv.URL, "invoice.created")
	whID := created["id"].(string)

	var trig struct {
		Matched int `json:"matched"`
		Event   struct {
			ID string `json:"id"`
		} `json:"event"`
	}
	w := do(t, a, http.MethodPost, "/events", map[string]any{
		"type":    "invoice.created",
		"payload": map[string]any{"amount": 12.5},
	}, &trig)
	if w.Code != http.StatusAccepted {
		t.Fatalf("trigger: expected 202, got %d: %s", w.Code, w.Body.String())
	}
	if trig.Matched != 1 || !strings.HasPrefix(trig.Event.ID, "evt_") {
		t.Fatalf("unexpected trigger response: %+v", trig)
	}

	// Poll the stats endpoint until the delivery lands.
	deadline := time.Now().Add(3 * time.Second)
	for {
		var stats struct {
			TotalDeliveries      int64   `json:"total_deliveries"`
			SuccessfulDeliveries int64   `json:"successful_deliveries"`
			SuccessRate          float64 `json:"success_rate"`
		}
		do(t, a, http.MethodGet, "/webhooks/"+whID+"/stats", nil, &stats)
		if stats.TotalDeliveries == 1 {
			if stats.SuccessfulDeliveries != 1 || stats.SuccessRate != 1.0 {
				t.Fatalf("unexpected stats: %+v", stats)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for delivery")
		}
		time.Sleep(10 * time.Millisecond)
	}

	var recs []map[string]any
	if w := do(t, a, http.MethodGet, "/webhooks/"+whID+"/deliveries", nil, &recs); w.Code != http.StatusOK {
		t.Fatalf("deliveries: expected 200, got %d", w.Code)
	}
	if len(recs) != 1 || recs[0]["status"] != "success" {
		t.Fatalf("expected one success record, got %v", recs)
	}
}

func TestRedeliverEndpoint(t *testing.T) {
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

	a, h := newHandler(t, herald.WithMaxRetries(1))
	if err := h.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { h.Stop(context.Background()) })

	created := registerWebhook(t, a, srv.URL, "invoice.created")
	whID := created["id"].(string)

	do(t, a, http.MethodPost, "/events", map[string]any{"type": "invoice.created"}, nil)

	var recs []map[string]any
	deadline := time.Now().Add(3 * time.Second)
	for len(recs) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for failed delivery")
		}
		time.Sleep(10 * time.Millisecond)
		do(t, a, http.MethodGet, "/webhooks/"+whID+"/deliveries?status=failed", nil, &recs)
	}

	failing.Store(false)
	recID := recs[0]["id"].(string)
	if w := do(t, a, http.MethodPost, "/deliveries/"+recID+"/redeliver", nil, nil); w.Code != http.StatusAccepted {
		t.Fatalf("redeliver: expected 202, got %d: %s", w.Code, w.Body.String())
	}

	// Redelivering a success is rejected once it lands.
	deadline = time.Now().Add(3 * time.Second)
	for {
		var stats struct {
			SuccessfulDeliveries int64 `json:"successful_deliveries"`
		}
		do(t, a, http.MethodGet, "/webhooks/"+whID+"/stats", nil, &stats)
		if stats.SuccessfulDeliveries == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for redelivery")
		}
		time.Sleep(10 * time.Millisecond)
	}

	var succ []map[string]any
	do(t, a, http.MethodGet, "/webhooks/"+whID+"/deliveries?status=success", nil, &succ)
	if len(succ) != 1 {
		t.Fatalf("expected 1 success record, got %d", len(succ))
	}
	w := do(t, a, http.MethodPost, "/deliveries/"+succ[0]["id"].(string)+"/redeliver", nil, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for success redelivery, got %d", w.Code)
	}
}

func TestTestEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	a, _ := newHandler(t)
	created := registerWebhook(t, a, srv.URL, "invoice.created")

	var res struct {
		Success    bool   `json:"success"`
		StatusCode int    `json:"status_code"`
		Response   string `json:"response"`
	}
	w := do(t, a, http.MethodPost, "/webhooks/"+created["id"].(string)+"/test", nil, &res)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !res.Success || res.StatusCode != http.StatusOK || res.Response != "ok" {
		t.Fatalf("unexpected test result: %+v", res)
	}
}

func TestEventTypes(t *testing.T) {
	a, _ := newHandler(t)

	var created map[string]any
	w := do(t, a, http.MethodPost, "/event-types", map[string]any{
		"name":        "invoice.created",
		"description": "Invoice was created",
		"group":       "billing",
	}, &created)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	if w := do(t, a, http.MethodPost, "/event-types", map[string]any{"description": "nameless"}, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for nameless definition, got %d", w.Code)
	}

	var listed []map[string]any
	do(t, a, http.MethodGet, "/event-types", nil, &listed)
	if len(listed) != 1 {
		t.Fatalf("expected 1 event type, got %d", len(listed))
	}

	listed = nil
	do(t, a, http.MethodGet, "/event-types?match=invoice.*", nil, &listed)
	if len(listed) != 1 {
		t.Fatalf("expected match=invoice.* to list 1 type, got %d", len(listed))
	}
	listed = nil
	do(t, a, http.MethodGet, "/event-types?match=payment.*", nil, &listed)
	if len(listed) != 0 {
		t.Fatalf("expected match=payment.* to list none, got %v", listed)
	}

	var got map[string]any
	if w := do(t, a, http.MethodGet, "/event-types/invoice.created", nil, &got); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	if w := do(t, a, http.MethodDelete, "/event-types/invoice.created", nil, nil); w.Code != http.StatusNoContent {
		t.Fatalf("deprecate: expected 204, got %d", w.Code)
	}

	// Deprecated types disappear from the default listing but stay
	// resolvable.
	listed = nil
	do(t, a, http.MethodGet, "/event-types", nil, &listed)
	if len(listed) != 0 {
		t.Fatalf("expected deprecated type hidden, got %v", listed)
	}
	listed = nil
	do(t, a, http.MethodGet, "/event-types?include_deprecated=true", nil, &listed)
	if len(listed) != 1 {
		t.Fatalf("expected deprecated type listed, got %v", listed)
	}

	if w := do(t, a, http.MethodGet, "/event-types/never.registered", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestStrictTriggerRejection(t *testing.T) {
	a, _ := newHandler(t, herald.WithStrictCatalog())

	w := do(t, a, http.MethodPost, "/events", map[string]any{"type": "never.registered"}, nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	if code := errorCode(t, w); code != "event_type_not_found" {
		t.Fatalf("expected event_type_not_found, got %q", code)
	}
}

func TestHealthz(t *testing.T) {
	a, _ := newHandler(t)

	var body map[string]string
	w := do(t, a, http.MethodGet, "/healthz", nil, &body)
	if w.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("expected healthy, got %d %v", w.Code, body)
	}
}

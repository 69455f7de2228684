// Package herald provides an embeddable webhook delivery subsystem for Go.
//
// Herald is a library, not a service. Import it to get webhook
// registration, HMAC-SHA256 signed deliveries, retries with exponential
// backoff, per-webhook delivery history and stats, and an optional event
// type catalog with JSON Schema payload validation. An admin HTTP handler
// (package api) and a standalone daemon (cmd/heraldd) build on the same
// facade.
//
// The in-memory state is authoritative: webhooks, pending deliveries, and
// history live in the process, and the configured store mirrors them for
// durability across restarts.
//
// Quick start:
//
//	h, err := herald.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := h.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer h.Stop(ctx)
//
//	wh, err := h.Webhooks().Register(ctx, webhook.Input{
//	    URL:    "https://example.com/hooks",
//	    Events: []string{"invoice.created"},
//	})
//
//	h.TriggerEvent(ctx, "invoice.created", map[string]any{
//	    "invoice_id": "inv_123",
//	})
package herald

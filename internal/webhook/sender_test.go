package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/orrn/printfarm/internal/db"
)

func newTestStore(t *testing.T) *db.Store {
	t.Helper()
	conn, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return db.NewStore(conn)
}

func TestSenderDeliversSignedPayload(t *testing.T) {
	received := make(chan *http.Request, 1)
	bodies := make(chan []byte, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies <- body
		received <- r
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := newTestStore(t)
	secret := "hunter2"
	hook := &db.Webhook{
		Name:       "test",
		URL:        server.URL,
		Secret:     secret,
		EventsJSON: `["job_started"]`,
		Enabled:    true,
	}
	if err := store.Webhooks.Create(context.Background(), hook); err != nil {
		t.Fatalf("failed to create webhook: %v", err)
	}

	sender := NewSender(store, Config{WorkerCount: 1, QueueSize: 4})
	sender.Start()
	defer sender.Stop()

	job := &db.Job{ID: 7, Name: "benchy", State: db.JobStatePrinting}
	sender.JobStateChanged(job, db.JobStateWaiting, db.JobStatePrinting)

	var req *http.Request
	var body []byte
	select {
	case req = <-received:
		body = <-bodies
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for webhook delivery")
	}

	if got := req.Header.Get("X-Webhook-Event"); got != string(EventJobStarted) {
		t.Errorf("expected event header %q, got %q", EventJobStarted, got)
	}
	if req.Header.Get("X-Webhook-Delivery") == "" {
		t.Error("expected a delivery id header")
	}

	var payload struct {
		Event     string          `json:"event"`
		Signature string          `json:"signature"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload.Event != string(EventJobStarted) {
		t.Errorf("expected event %q in payload, got %q", EventJobStarted, payload.Event)
	}

	// The signature covers the data document, keyed with the webhook's
	// secret.
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload.Data)
	expected := hex.EncodeToString(mac.Sum(nil))
	if payload.Signature != expected {
		t.Errorf("signature mismatch: expected %s, got %s", expected, payload.Signature)
	}
}

func TestSenderSkipsUnsubscribedEvents(t *testing.T) {
	hits := make(chan struct{}, 8)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := newTestStore(t)
	hook := &db.Webhook{
		Name:       "printer-only",
		URL:        server.URL,
		EventsJSON: `["printer_state_changed"]`,
		Enabled:    true,
	}
	if err := store.Webhooks.Create(context.Background(), hook); err != nil {
		t.Fatalf("failed to create webhook: %v", err)
	}

	sender := NewSender(store, Config{WorkerCount: 1, QueueSize: 4})
	sender.Start()
	defer sender.Stop()

	job := &db.Job{ID: 1, Name: "benchy"}
	sender.JobStateChanged(job, db.JobStateWaiting, db.JobStatePrinting)

	select {
	case <-hits:
		t.Fatal("expected no delivery for an unsubscribed event")
	case <-time.After(200 * time.Millisecond):
	}

	printer := &db.Printer{ID: 1, Name: "p1", SerialNumber: "SN-1"}
	sender.PrinterStateChanged(printer, db.PrinterStateOffline, db.PrinterStateIdle)

	select {
	case <-hits:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for subscribed delivery")
	}
}

package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orrn/printfarm/internal/db"
)

type Event string

const (
	EventJobEnqueued         Event = "job_enqueued"
	EventJobStarted          Event = "job_started"
	EventJobFinished         Event = "job_finished"
	EventJobDone             Event = "job_done"
	EventPrinterStateChanged Event = "printer_state_changed"
)

type Payload struct {
	DeliveryID string      `json:"delivery_id"`
	Event      string      `json:"event"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       interface{} `json:"data"`
	Signature  string      `json:"signature,omitempty"`
}

type JobEventData struct {
	JobID         int64  `json:"job_id"`
	Name          string `json:"name"`
	PreviousState string `json:"previous_state"`
	NewState      string `json:"new_state"`
	Retries       int    `json:"retries"`
	Succeeded     *bool  `json:"succeeded,omitempty"`
}

type PrinterEventData struct {
	PrinterID     int64  `json:"printer_id"`
	Name          string `json:"name"`
	SerialNumber  string `json:"serial_number"`
	PreviousState string `json:"previous_state"`
	NewState      string `json:"new_state"`
}

type Config struct {
	RetryCount  int
	RetryDelay  time.Duration
	Timeout     time.Duration
	WorkerCount int
	QueueSize   int
}

// DeliveryRecorder observes final delivery outcomes. Satisfied by the
// metrics collector.
type DeliveryRecorder interface {
	WebhookDelivery(event string, success bool)
}

type task struct {
	webhookID int64
	event     Event
	payload   *Payload
	attempt   int
}

// Sender delivers HMAC-signed event notifications to the registered
// webhooks. Deliveries run on a bounded worker pool; a full queue drops
// the delivery rather than blocking the state transition that caused it.
type Sender struct {
	store       *db.Store
	httpClient  *http.Client
	retryCount  int
	retryDelay  time.Duration
	workerCount int
	queue       chan *task
	stopCh      chan struct{}
	wg          sync.WaitGroup
	recorder    DeliveryRecorder
}

// SetRecorder attaches a delivery outcome observer. Must be called
// before Start.
func (s *Sender) SetRecorder(r DeliveryRecorder) {
	s.recorder = r
}

func NewSender(store *db.Store, config Config) *Sender {
	if config.RetryCount <= 0 {
		config.RetryCount = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 5 * time.Second
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 3
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 100
	}

	return &Sender{
		store: store,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		retryCount:  config.RetryCount,
		retryDelay:  config.RetryDelay,
		workerCount: config.WorkerCount,
		queue:       make(chan *task, config.QueueSize),
		stopCh:      make(chan struct{}),
	}
}

func (s *Sender) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

func (s *Sender) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// JobStateChanged implements the core event sink.
func (s *Sender) JobStateChanged(job *db.Job, from, to db.JobState) {
	event := jobEvent(to)
	if event == "" {
		return
	}
	s.enqueue(event, &JobEventData{
		JobID:         job.ID,
		Name:          job.Name,
		PreviousState: string(from),
		NewState:      string(to),
		Retries:       job.Retries,
		Succeeded:     job.Succeeded,
	})
}

// PrinterStateChanged implements the core event sink.
func (s *Sender) PrinterStateChanged(printer *db.Printer, from, to db.PrinterState) {
	s.enqueue(EventPrinterStateChanged, &PrinterEventData{
		PrinterID:     printer.ID,
		Name:          printer.Name,
		SerialNumber:  printer.SerialNumber,
		PreviousState: string(from),
		NewState:      string(to),
	})
}

func jobEvent(to db.JobState) Event {
	switch to {
	case db.JobStateWaiting:
		return EventJobEnqueued
	case db.JobStatePrinting:
		return EventJobStarted
	case db.JobStateFinished:
		return EventJobFinished
	case db.JobStateDone:
		return EventJobDone
	default:
		return ""
	}
}

func (s *Sender) enqueue(event Event, data interface{}) {
	webhooks, err := s.store.Webhooks.ListForEvent(context.Background(), string(event))
	if err != nil {
		log.Printf("[webhook] failed to get webhooks for event %s: %v", event, err)
		return
	}

	for _, webhook := range webhooks {
		if !webhook.Enabled {
			continue
		}
		t := &task{
			webhookID: webhook.ID,
			event:     event,
			payload: &Payload{
				DeliveryID: uuid.NewString(),
				Event:      string(event),
				Timestamp:  time.Now(),
				Data:       data,
			},
		}

		select {
		case s.queue <- t:
		default:
			log.Printf("[webhook] queue full, dropping webhook %d for event %s", webhook.ID, event)
		}
	}
}

func (s *Sender) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		case t := <-s.queue:
			err := s.sendWithRetry(t)
			if err != nil {
				log.Printf("[webhook worker %d] failed to send webhook %d for event %s after %d attempts: %v",
					id, t.webhookID, t.event, t.attempt, err)
			}
			if s.recorder != nil {
				s.recorder.WebhookDelivery(string(t.event), err == nil)
			}
		}
	}
}

func (s *Sender) sendWithRetry(t *task) error {
	webhook, err := s.store.Webhooks.GetByID(context.Background(), t.webhookID)
	if err != nil {
		return fmt.Errorf("get webhook: %w", err)
	}

	var lastErr error
	for t.attempt < s.retryCount {
		t.attempt++

		err := s.sendRequest(webhook, t.payload)
		if err == nil {
			return nil
		}

		lastErr = err

		if isClientError(err) {
			log.Printf("[webhook] client error for webhook %d, not retrying: %v", webhook.ID, err)
			return err
		}

		if t.attempt < s.retryCount {
			backoff := s.retryDelay * time.Duration(1<<(t.attempt-1))
			log.Printf("[webhook] retry %d/%d for webhook %d in %v: %v",
				t.attempt, s.retryCount, webhook.ID, backoff, err)

			select {
			case <-s.stopCh:
				return fmt.Errorf("shutdown requested")
			case <-time.After(backoff):
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (s *Sender) sendRequest(webhook *db.Webhook, payload *Payload) error {
	dataBytes, err := json.Marshal(payload.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	if webhook.Secret != "" {
		payload.Signature = signPayload(dataBytes, webhook.Secret)
	}

	fullPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequest("POST", webhook.URL, bytes.NewReader(fullPayload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", payload.Signature)
	req.Header.Set("X-Webhook-Event", payload.Event)
	req.Header.Set("X-Webhook-Delivery", payload.DeliveryID)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("http error: %d", resp.StatusCode)
	}

	return nil
}

func signPayload(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func isClientError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "http error: 4")
}

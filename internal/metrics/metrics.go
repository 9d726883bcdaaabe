package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orrn/printfarm/internal/db"
)

// Collector exposes the fleet's operational counters. It implements the
// core event sink so transition counts track the committed state changes.
type Collector struct {
	jobTransitions     *prometheus.CounterVec
	printerTransitions *prometheus.CounterVec
	queueWaiting       prometheus.Gauge
	queuePrintable     prometheus.Gauge
	webhookDeliveries  *prometheus.CounterVec
}

func NewCollector() *Collector {
	return &Collector{
		jobTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "printfarm_job_transitions_total",
			Help: "Job state transitions by source and destination state.",
		}, []string{"from", "to"}),
		printerTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "printfarm_printer_transitions_total",
			Help: "Printer state transitions by source and destination state.",
		}, []string{"from", "to"}),
		queueWaiting: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "printfarm_queue_waiting_jobs",
			Help: "Number of jobs currently waiting in the queue.",
		}),
		queuePrintable: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "printfarm_queue_printable_jobs",
			Help: "Number of waiting jobs that can be printed right now.",
		}),
		webhookDeliveries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "printfarm_webhook_deliveries_total",
			Help: "Webhook delivery attempts by event and final outcome.",
		}, []string{"event", "outcome"}),
	}
}

func (c *Collector) JobStateChanged(job *db.Job, from, to db.JobState) {
	c.jobTransitions.WithLabelValues(string(from), string(to)).Inc()
}

func (c *Collector) PrinterStateChanged(printer *db.Printer, from, to db.PrinterState) {
	c.printerTransitions.WithLabelValues(string(from), string(to)).Inc()
}

// WebhookDelivery records the final outcome of a webhook delivery,
// after retries.
func (c *Collector) WebhookDelivery(event string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	c.webhookDeliveries.WithLabelValues(event, outcome).Inc()
}

// SetQueueDepth records the current queue counters. Called by the API
// layer after queue-affecting operations.
func (c *Collector) SetQueueDepth(waiting, printable int) {
	c.queueWaiting.Set(float64(waiting))
	c.queuePrintable.Set(float64(printable))
}

// Handler serves the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/aigoflow/complaint-classifier/internal/config"
)

const (
	busyReportInterval = time.Second
	idleReportInterval = 10 * time.Second
)

// MonitoringService counts the complaints held by the queue workers and
// publishes the load on the monitoring topic.
type MonitoringService struct {
	nats    *nats.Conn
	config  *config.Config
	pending atomic.Int64 // fetched from the stream, not yet settled
	active  atomic.Int64 // inside a classification call
}

// BackpressureReport is one load sample of the complaints queue.
type BackpressureReport struct {
	Subject          string    `json:"subject"`
	PendingMessages  int64     `json:"pending_messages"`
	ActiveProcessing int64     `json:"active_processing"`
	Timestamp        time.Time `json:"timestamp"`
	WorkerCount      int       `json:"worker_count"`
	QueueCapacity    int       `json:"queue_capacity"`
	Status           string    `json:"status"` // healthy, warning, critical
}

func NewMonitoringService(natsConn *nats.Conn, cfg *config.Config) *MonitoringService {
	return &MonitoringService{
		nats:   natsConn,
		config: cfg,
	}
}

func (m *MonitoringService) Start(ctx context.Context) error {
	slog.Info("Queue load reporting started",
		"topic", m.config.MonitoringTopic,
		"subject", m.config.Subject,
		"threshold", m.config.BackpressureThreshold)

	go m.publishLoop(ctx)
	return nil
}

// publishLoop samples every second while complaints are queued and every
// ten seconds when the queue is idle.
func (m *MonitoringService) publishLoop(ctx context.Context) {
	timer := time.NewTimer(idleReportInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			pending, active := m.Load()
			m.publish(m.report(pending, active))
			timer.Reset(reportInterval(pending))
		}
	}
}

func reportInterval(pending int64) time.Duration {
	if pending > 0 {
		return busyReportInterval
	}
	return idleReportInterval
}

func (m *MonitoringService) report(pending, active int64) BackpressureReport {
	return BackpressureReport{
		Subject:          m.config.Subject,
		PendingMessages:  pending,
		ActiveProcessing: active,
		Timestamp:        time.Now(),
		WorkerCount:      m.config.Concurrency,
		QueueCapacity:    m.config.MaxMsgs,
		Status:           m.level(pending, active),
	}
}

func (m *MonitoringService) publish(report BackpressureReport) {
	if m.nats == nil {
		return
	}
	data, err := json.Marshal(report)
	if err != nil {
		slog.Error("Failed to encode queue load", "error", err)
		return
	}
	if err := m.nats.Publish(m.config.MonitoringTopic, data); err != nil {
		slog.Warn("Failed to publish queue load", "topic", m.config.MonitoringTopic, "error", err)
		return
	}
	if report.Status != "healthy" {
		slog.Info("Complaint queue under load",
			"pending", report.PendingMessages,
			"active", report.ActiveProcessing,
			"status", report.Status)
	}
}

// level grades the load against BACKPRESSURE_THRESHOLD.
func (m *MonitoringService) level(pending, active int64) string {
	held := pending + active
	switch {
	case held == 0:
		return "healthy"
	case held < int64(m.config.BackpressureThreshold):
		return "warning"
	default:
		return "critical"
	}
}

// Fetched marks a complaint handed to a worker.
func (m *MonitoringService) Fetched() { m.pending.Add(1) }

// Settled marks a complaint acknowledged or terminated.
func (m *MonitoringService) Settled() { m.pending.Add(-1) }

// Started marks the beginning of a classification call.
func (m *MonitoringService) Started() { m.active.Add(1) }

// Finished marks the end of a classification call.
func (m *MonitoringService) Finished() { m.active.Add(-1) }

// Load returns the current pending and active counts.
func (m *MonitoringService) Load() (pending, active int64) {
	return m.pending.Load(), m.active.Load()
}

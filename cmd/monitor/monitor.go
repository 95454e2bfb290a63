package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/aigoflow/complaint-classifier/internal/services"
	"github.com/aigoflow/complaint-classifier/pkg/client"
)

const staleAfter = 2 * time.Minute

// ServiceStatus is the last heartbeat of one classifier instance.
type ServiceStatus struct {
	client.HealthStatus
	FirstSeen time.Time     `json:"first_seen"`
	LastSeen  time.Time     `json:"last_seen"`
	Uptime    time.Duration `json:"uptime"`
	RTT       time.Duration `json:"rtt,omitempty"`
}

// Snapshot is everything the monitor currently knows.
type Snapshot struct {
	Services []ServiceStatus               `json:"services"`
	Queues   []services.BackpressureReport `json:"queues"`
}

// MonitorService follows heartbeats and backpressure reports published by
// classifier instances.
type MonitorService struct {
	nats            *nats.Conn
	healthTopic     string
	monitoringTopic string
	now             func() time.Time

	mu        sync.RWMutex
	instances map[string]*ServiceStatus
	queues    map[string]services.BackpressureReport
	listeners []chan Snapshot
}

func NewMonitorService(conn *nats.Conn, healthTopic, monitoringTopic string) *MonitorService {
	return &MonitorService{
		nats:            conn,
		healthTopic:     healthTopic,
		monitoringTopic: monitoringTopic,
		now:             time.Now,
		instances:       make(map[string]*ServiceStatus),
		queues:          make(map[string]services.BackpressureReport),
	}
}

func (m *MonitorService) Start(ctx context.Context) error {
	heartbeatTopic := m.healthTopic + ".heartbeat"
	if _, err := m.nats.Subscribe(heartbeatTopic, func(msg *nats.Msg) {
		if err := m.handleHeartbeat(msg.Data); err != nil {
			slog.Warn("Failed to parse heartbeat", "subject", msg.Subject, "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to subscribe to heartbeats: %w", err)
	}

	if _, err := m.nats.Subscribe(m.monitoringTopic, func(msg *nats.Msg) {
		if err := m.handleReport(msg.Data); err != nil {
			slog.Warn("Failed to parse backpressure report", "subject", msg.Subject, "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to subscribe to monitoring topic: %w", err)
	}

	slog.Info("Monitor started", "heartbeats", heartbeatTopic, "monitoring", m.monitoringTopic)

	go m.discover(ctx)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.markStale()
			}
		}
	}()

	return nil
}

// discover asks for a health status right away instead of waiting for the
// first heartbeat.
func (m *MonitorService) discover(ctx context.Context) {
	status, err := m.QueryHealth(ctx)
	if err != nil {
		slog.Debug("No classifier answered the health topic", "error", err)
		return
	}
	m.track(*status)
}

func (m *MonitorService) handleHeartbeat(data []byte) error {
	var status ServiceStatus
	if err := json.Unmarshal(data, &status.HealthStatus); err != nil {
		return err
	}
	m.track(status)
	return nil
}

func (m *MonitorService) track(status ServiceStatus) {
	now := m.now()
	key := status.Service + "@" + status.Endpoint

	m.mu.Lock()
	status.LastSeen = now
	if existing, ok := m.instances[key]; ok {
		status.FirstSeen = existing.FirstSeen
		if status.RTT == 0 {
			status.RTT = existing.RTT
		}
	} else {
		status.FirstSeen = now
	}
	status.Uptime = now.Sub(status.FirstSeen)
	m.instances[key] = &status
	m.mu.Unlock()

	m.notifyListeners()
}

func (m *MonitorService) handleReport(data []byte) error {
	var report services.BackpressureReport
	if err := json.Unmarshal(data, &report); err != nil {
		return err
	}
	m.mu.Lock()
	m.queues[report.Subject] = report
	m.mu.Unlock()

	m.notifyListeners()
	return nil
}

// markStale flags instances whose heartbeat stopped as offline.
func (m *MonitorService) markStale() {
	now := m.now()
	changed := false

	m.mu.Lock()
	for key, instance := range m.instances {
		if now.Sub(instance.LastSeen) > staleAfter && instance.Status != "offline" {
			instance.Status = "offline"
			changed = true
			slog.Info("Marked classifier as offline", "instance", key)
		}
	}
	m.mu.Unlock()

	if changed {
		m.notifyListeners()
	}
}

func (m *MonitorService) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		Services: make([]ServiceStatus, 0, len(m.instances)),
		Queues:   make([]services.BackpressureReport, 0, len(m.queues)),
	}
	for _, instance := range m.instances {
		snap.Services = append(snap.Services, *instance)
	}
	for _, report := range m.queues {
		snap.Queues = append(snap.Queues, report)
	}

	sort.Slice(snap.Services, func(i, j int) bool {
		return snap.Services[i].Endpoint < snap.Services[j].Endpoint
	})
	sort.Slice(snap.Queues, func(i, j int) bool {
		return snap.Queues[i].Subject < snap.Queues[j].Subject
	})
	return snap
}

// QueryHealth sends one request on the health topic and measures the RTT.
func (m *MonitorService) QueryHealth(ctx context.Context) (*ServiceStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	resp, err := m.nats.RequestWithContext(ctx, m.healthTopic, []byte("{}"))
	if err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}

	var status ServiceStatus
	if err := json.Unmarshal(resp.Data, &status.HealthStatus); err != nil {
		return nil, fmt.Errorf("failed to parse health response: %w", err)
	}
	status.RTT = time.Since(start)
	return &status, nil
}

func (m *MonitorService) AddListener() chan Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan Snapshot, 10)
	m.listeners = append(m.listeners, ch)
	return ch
}

func (m *MonitorService) RemoveListener(ch chan Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, l := range m.listeners {
		if l == ch {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			return
		}
	}
}

func (m *MonitorService) notifyListeners() {
	snap := m.Snapshot()

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range m.listeners {
		select {
		case ch <- snap:
		default:
			// slow listener, drop the update
		}
	}
}

func (m *MonitorService) Close() {
	if m.nats != nil {
		m.nats.Close()
	}
}

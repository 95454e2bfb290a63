package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/aigoflow/complaint-classifier/internal/config"
)

type HealthService struct {
	nats       *nats.Conn
	config     *config.Config
	complaints *ComplaintService
	monitoring *MonitoringService
}

type HealthStatus struct {
	Service      string    `json:"service"`
	Status       string    `json:"status"` // online, degraded, busy
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	Ready        bool      `json:"ready"`
	LastActivity time.Time `json:"last_activity"`
	Endpoint     string    `json:"endpoint"`
	NATSTopic    string    `json:"nats_topic"`
}

func NewHealthService(natsConn *nats.Conn, cfg *config.Config, complaints *ComplaintService, monitoring *MonitoringService) *HealthService {
	return &HealthService{
		nats:       natsConn,
		config:     cfg,
		complaints: complaints,
		monitoring: monitoring,
	}
}

func (h *HealthService) Start(ctx context.Context) error {
	_, err := h.nats.Subscribe(h.config.HealthTopic, func(msg *nats.Msg) {
		statusData, err := json.Marshal(h.getHealthStatus())
		if err != nil {
			slog.Error("Failed to marshal health status", "error", err)
			return
		}

		if err := msg.Respond(statusData); err != nil {
			slog.Error("Failed to respond to health check", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to health topic: %w", err)
	}

	slog.Info("Health service started", "topic", h.config.HealthTopic)

	go h.publishHeartbeats(ctx)

	return nil
}

func (h *HealthService) publishHeartbeats(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	heartbeatTopic := h.config.HealthTopic + ".heartbeat"

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			statusData, err := json.Marshal(h.getHealthStatus())
			if err != nil {
				continue
			}

			if err := h.nats.Publish(heartbeatTopic, statusData); err != nil {
				slog.Warn("Failed to publish heartbeat", "error", err)
			}
		}
	}
}

func (h *HealthService) getHealthStatus() HealthStatus {
	status := "online"
	ready := h.complaints.Ready()
	if !ready {
		status = "degraded"
	} else if h.monitoring != nil {
		if pending, active := h.monitoring.Load(); pending+active >= int64(h.config.BackpressureThreshold) {
			status = "busy"
		}
	}

	return HealthStatus{
		Service:      "complaint-classifier",
		Status:       status,
		Provider:     h.config.Provider,
		Model:        h.complaints.ModelName(),
		Ready:        ready,
		LastActivity: time.Now(),
		Endpoint:     fmt.Sprintf("http://localhost%s/api/Clasificador", h.config.HTTPAddr),
		NATSTopic:    h.config.Subject,
	}
}

package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"

	"github.com/aigoflow/complaint-classifier/internal/config"
	"github.com/aigoflow/complaint-classifier/internal/models"
)

// generateWorkerID creates a unique worker ID using timestamp and random bytes
func generateWorkerID() string {
	timestamp := time.Now().UnixNano()
	randomBytes := make([]byte, 4)
	rand.Read(randomBytes)
	randomHex := hex.EncodeToString(randomBytes)
	return fmt.Sprintf("worker-%d-%s", timestamp, randomHex)
}

// NATSService consumes complaints from a JetStream work queue and replies
// with the classification on the subject named in each message.
type NATSService struct {
	conn       *nats.Conn
	js         nats.JetStreamContext
	complaints *ComplaintService
	cfg        *config.Config
	monitoring *MonitoringService
	publish    func(subject string, data []byte) error
}

// delivery is the settlement side of a JetStream message.
type delivery interface {
	Ack(opts ...nats.AckOpt) error
	Term(opts ...nats.AckOpt) error
}

func NewNATSService(cfg *config.Config, complaints *ComplaintService) (*NATSService, error) {
	conn, err := nats.Connect(cfg.NatsURL, nats.Name("complaint-classifier"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &NATSService{
		conn:       conn,
		js:         js,
		complaints: complaints,
		cfg:        cfg,
		monitoring: NewMonitoringService(conn, cfg),
		publish:    conn.Publish,
	}, nil
}

// GetConnection returns the underlying NATS connection
func (s *NATSService) GetConnection() *nats.Conn {
	return s.conn
}

// GetMonitoringService returns the backpressure monitor fed by the workers
func (s *NATSService) GetMonitoringService() *MonitoringService {
	return s.monitoring
}

func (s *NATSService) Start(ctx context.Context) error {
	if err := s.ensureStream(); err != nil {
		return fmt.Errorf("failed to ensure stream: %w", err)
	}

	consumer, err := s.createConsumer()
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	slog.Info("NATS service starting",
		"stream", s.cfg.Stream,
		"subject", s.cfg.Subject,
		"consumer", s.cfg.Durable,
		"concurrency", s.cfg.Concurrency)

	go s.monitoring.Start(ctx)

	var workers sync.WaitGroup
	for i := 0; i < s.cfg.Concurrency; i++ {
		workers.Add(1)
		go func(workerID string) {
			defer workers.Done()
			s.worker(ctx, consumer, workerID)
		}(generateWorkerID())
	}

	<-ctx.Done()
	slog.Info("NATS service shutting down, waiting for workers")

	workers.Wait()
	s.conn.Close()
	return nil
}

func (s *NATSService) ensureStream() error {
	streamInfo, err := s.js.StreamInfo(s.cfg.Stream)
	if err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			return fmt.Errorf("failed to get stream info: %w", err)
		}
		_, err = s.js.AddStream(&nats.StreamConfig{
			Name:      s.cfg.Stream,
			Subjects:  []string{s.cfg.Subject},
			MaxMsgs:   int64(s.cfg.MaxMsgs),
			MaxAge:    s.cfg.MaxAge,
			Storage:   nats.FileStorage,
			Retention: nats.WorkQueuePolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
		slog.Info("Created NATS stream", "name", s.cfg.Stream)
		return nil
	}

	for _, subject := range streamInfo.Config.Subjects {
		if subject == s.cfg.Subject {
			slog.Info("NATS stream already exists", "name", s.cfg.Stream, "messages", streamInfo.State.Msgs)
			return nil
		}
	}

	newConfig := streamInfo.Config
	newConfig.Subjects = append(newConfig.Subjects, s.cfg.Subject)
	if _, err = s.js.UpdateStream(&newConfig); err != nil {
		return fmt.Errorf("failed to update stream with new subject: %w", err)
	}
	slog.Info("Updated NATS stream with new subject", "name", s.cfg.Stream, "subject", s.cfg.Subject)
	return nil
}

func (s *NATSService) createConsumer() (*nats.Subscription, error) {
	sub, err := s.js.PullSubscribe(s.cfg.Subject, s.cfg.Durable,
		nats.ManualAck(),
		nats.MaxDeliver(s.cfg.MaxDeliver))
	if err != nil {
		return nil, fmt.Errorf("failed to create pull consumer: %w", err)
	}

	slog.Info("Created NATS consumer", "durable", s.cfg.Durable, "max_deliver", s.cfg.MaxDeliver)
	return sub, nil
}

func (s *NATSService) worker(ctx context.Context, consumer *nats.Subscription, workerID string) {
	slog.Info("NATS worker starting", "worker_id", workerID)

	for {
		select {
		case <-ctx.Done():
			slog.Info("NATS worker shutting down", "worker_id", workerID)
			return
		default:
			msgs, err := consumer.Fetch(1, nats.MaxWait(time.Second))
			if err != nil {
				if errors.Is(err, nats.ErrTimeout) {
					continue
				}
				slog.Error("Failed to fetch messages", "worker_id", workerID, "error", err)
				time.Sleep(time.Second)
				continue
			}

			for _, msg := range msgs {
				s.monitoring.Fetched()
				s.processMessage(ctx, msg.Subject, msg.Data, msg, workerID)
				s.monitoring.Settled()
			}
		}
	}
}

// processMessage classifies one delivery, replies, and settles it. Payloads
// that cannot be decoded are terminated so they are never redelivered.
func (s *NATSService) processMessage(ctx context.Context, subject string, data []byte, msg delivery, workerID string) {
	s.monitoring.Started()
	defer s.monitoring.Finished()

	start := time.Now()
	source := fmt.Sprintf("nats.%s", subject)

	req, reply, err := s.handleComplaintMessage(ctx, data, source)
	if err != nil {
		slog.Error("Dropping undecodable complaint message",
			"worker_id", workerID,
			"error", err,
			"data", string(data))
		if err := msg.Term(); err != nil {
			slog.Error("Failed to terminate message", "worker_id", workerID, "error", err)
		}
		return
	}

	if req.ReplyTo != "" {
		s.sendReply(req, reply, workerID)
	}

	if err := msg.Ack(); err != nil {
		slog.Error("Failed to acknowledge message", "worker_id", workerID, "req_id", req.ReqID, "error", err)
	}

	slog.Info("NATS complaint processed",
		"worker_id", workerID,
		"req_id", req.ReqID,
		"category", reply.Category,
		"error", reply.Error,
		"duration_ms", time.Since(start).Milliseconds())
}

func (s *NATSService) sendReply(req models.ComplaintMessage, reply models.ComplaintReply, workerID string) {
	responseData, err := json.Marshal(reply)
	if err != nil {
		slog.Error("Failed to marshal reply", "worker_id", workerID, "req_id", req.ReqID, "error", err)
		return
	}
	if err := s.publish(req.ReplyTo, responseData); err != nil {
		slog.Error("Failed to publish reply",
			"worker_id", workerID,
			"req_id", req.ReqID,
			"reply_subject", req.ReplyTo,
			"error", err)
	}
}

// handleComplaintMessage classifies one queued complaint. It returns an error
// only when the payload cannot be decoded; classification problems are
// reported to the requester in the reply's error field.
func (s *NATSService) handleComplaintMessage(ctx context.Context, data []byte, source string) (models.ComplaintMessage, models.ComplaintReply, error) {
	var req models.ComplaintMessage
	if err := json.Unmarshal(data, &req); err != nil {
		return req, models.ComplaintReply{}, fmt.Errorf("decode complaint message: %w", err)
	}
	if req.ReqID == "" {
		req.ReqID = ulid.Make().String()
	}

	reply := models.ComplaintReply{ReqID: req.ReqID}
	outcome, err := s.complaints.Classify(ctx, models.ComplaintRequest{Text: req.Text}, source)
	switch {
	case err == nil:
		reply.ClassificationResult = outcome.Result
	case errors.Is(err, ErrEmptyComplaint):
		reply.Error = UsageHint
	case errors.Is(err, ErrNotConfigured):
		reply.Error = NotConfiguredMessage
	default:
		reply.Error = ClassificationFailedMessage
	}
	return req, reply, nil
}

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"
)

const (
	DefaultSubject     = "complaints.classify"
	DefaultHealthTopic = "complaints.health"
)

// NATSClient publishes complaints to the work queue and waits for the reply
// on a per-request subject.
type NATSClient struct {
	conn        *nats.Conn
	clientID    string
	subject     string
	healthTopic string
	timeout     time.Duration
}

// NewNATSClient connects to natsURL. An empty clientID defaults to
// "classify-client".
func NewNATSClient(natsURL, clientID string) (*NATSClient, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	if clientID == "" {
		clientID = "classify-client"
	}

	return &NATSClient{
		conn:        conn,
		clientID:    clientID,
		subject:     DefaultSubject,
		healthTopic: DefaultHealthTopic,
		timeout:     30 * time.Second,
	}, nil
}

// replySubject names the inbox a single request's answer is published to.
func (c *NATSClient) replySubject(reqID string) string {
	return fmt.Sprintf("complaints.reply.%s.%s", c.clientID, reqID)
}

func (c *NATSClient) Classify(ctx context.Context, complaint string) (*ClassificationResponse, error) {
	reqID := ulid.Make().String()
	request := ClassificationRequest{
		ReqID:   reqID,
		Queja:   complaint,
		ReplyTo: c.replySubject(reqID),
	}

	requestBytes, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Subscribe before publishing so a fast reply is not lost.
	replyChan := make(chan *nats.Msg, 1)
	sub, err := c.conn.Subscribe(request.ReplyTo, func(msg *nats.Msg) {
		replyChan <- msg
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to reply: %w", err)
	}
	defer sub.Unsubscribe()

	if err := c.conn.Publish(c.subject, requestBytes); err != nil {
		return nil, fmt.Errorf("failed to publish request: %w", err)
	}

	slog.Debug("Published complaint, waiting for reply", "req_id", reqID, "reply_subject", request.ReplyTo)

	select {
	case msg := <-replyChan:
		var response ClassificationResponse
		if err := json.Unmarshal(msg.Data, &response); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		if response.Error != "" {
			return &response, errors.New(response.Error)
		}
		return &response, nil
	case <-time.After(c.timeout):
		return nil, fmt.Errorf("request timeout after %v", c.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CheckHealth asks the service for its current status.
func (c *NATSClient) CheckHealth(ctx context.Context) (*HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	msg, err := c.conn.RequestWithContext(ctx, c.healthTopic, nil)
	if err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}

	var health HealthStatus
	if err := json.Unmarshal(msg.Data, &health); err != nil {
		return nil, fmt.Errorf("failed to parse health response: %w", err)
	}
	return &health, nil
}

func (c *NATSClient) Close() error {
	if c.conn != nil {
		c.conn.Close()
	}
	return nil
}

// SetTimeout configures how long Classify waits for a reply.
func (c *NATSClient) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// SetHealthTopic overrides the topic CheckHealth queries; it must match the
// server's HEALTH_TOPIC.
func (c *NATSClient) SetHealthTopic(topic string) {
	c.healthTopic = topic
}

// SetSubject overrides the work queue subject.
func (c *NATSClient) SetSubject(subject string) {
	c.subject = subject
}

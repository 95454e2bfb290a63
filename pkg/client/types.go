package client

import "time"

// ComplaintRequest is the JSON body accepted by the HTTP endpoint.
type ComplaintRequest struct {
	Queja string `json:"Queja"`
}

// ClassificationRequest is published on the complaints work queue.
type ClassificationRequest struct {
	ReqID   string `json:"req_id"`
	Queja   string `json:"Queja"`
	ReplyTo string `json:"reply_to,omitempty"`
}

// ClassificationResponse is the result of classifying one complaint.
type ClassificationResponse struct {
	ReqID            string `json:"req_id,omitempty"`
	Category         string `json:"categoria"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
	TotalTokens      int64  `json:"total_tokens"`
	Error            string `json:"error,omitempty"`
}

// HealthStatus is the answer of the service health topic.
type HealthStatus struct {
	Service      string    `json:"service"`
	Status       string    `json:"status"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	Ready        bool      `json:"ready"`
	LastActivity time.Time `json:"last_activity"`
	Endpoint     string    `json:"endpoint"`
	NATSTopic    string    `json:"nats_topic"`
}

package models

import (
	"bytes"
	"encoding/json"
)

// ComplaintRequest carries the complaint text extracted from a request
type ComplaintRequest struct {
	Text string `json:"Queja"`
}

// ClassificationResult is returned to callers and stored as the log artifact.
// Field order is part of the wire format.
type ClassificationResult struct {
	Category         string `json:"categoria"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
	TotalTokens      int64  `json:"total_tokens"`
}

// EncodeResult serializes a result with two-space indentation, leaving
// non-ASCII characters and HTML-significant runes unescaped.
func EncodeResult(result ClassificationResult) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ComplaintMessage is the work-queue payload accepted over NATS
type ComplaintMessage struct {
	ReqID   string `json:"req_id"`
	Text    string `json:"Queja"`
	ReplyTo string `json:"reply_to,omitempty"`
}

// ComplaintReply is published to a ComplaintMessage's reply subject
type ComplaintReply struct {
	ReqID string `json:"req_id"`
	ClassificationResult
	Error string `json:"error,omitempty"`
}

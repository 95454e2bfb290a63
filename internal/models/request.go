package models

import "time"

// ClassificationLog represents one logged classification attempt
type ClassificationLog struct {
	Timestamp        time.Time `json:"ts"`
	ReqID            string    `json:"req_id"`
	Source           string    `json:"source"`
	Complaint        string    `json:"complaint"`
	Category         string    `json:"categoria"`
	PromptTokens     int64     `json:"prompt_tokens"`
	CompletionTokens int64     `json:"completion_tokens"`
	TotalTokens      int64     `json:"total_tokens"`
	ArtifactKey      string    `json:"artifact_key"`
	Model            string    `json:"model"`
	DurationMs       float64   `json:"dur_ms"`
	Status           string    `json:"status"`
	Error            string    `json:"error"`
}

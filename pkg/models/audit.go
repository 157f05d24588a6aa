package models

import "time"

// AuditEntry records one routing decision.
type AuditEntry struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Mode        ChatMode  `json:"mode"`
	Question    string    `json:"question"`
	Source      Source    `json:"source"`
	Distance    float64   `json:"distance"`
	HasDistance bool      `json:"has_distance"`
	Answer      string    `json:"answer,omitempty"`
	Outcome     string    `json:"outcome,omitempty"`
	LatencyMs   int64     `json:"latency_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// AuditConfig controls the decision log.
type AuditConfig struct {
	Enabled        bool   `yaml:"enabled"`
	DBPath         string `yaml:"db_path"`
	RetentionDays  int    `yaml:"retention_days"`
	IncludeAnswers bool   `yaml:"include_answers"`
	MaxBodySize    int    `yaml:"max_body_size"` // bytes
}

// AuditQueryOpts specifies filters for querying audit entries.
type AuditQueryOpts struct {
	ID        string
	SessionID string
	Source    Source
	Since     time.Time
	Limit     int
}

// AuditStat holds aggregate counts for a source/day combination.
type AuditStat struct {
	Source Source
	Day    string
	Count  int
}

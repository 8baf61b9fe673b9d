package model

import "time"

// LogEntry is one operation recorded in a client's diagnostic buffer
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Provider   Provider       `json:"provider,omitempty"`
	Action     string         `json:"action"`
	Data       map[string]any `json:"data"`
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
	DurationMS *int64         `json:"responseTime,omitempty"`
}

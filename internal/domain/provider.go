package domain

import "time"

type ProviderInfo struct {
	Engine  SearchEngine `json:"engine"`
	Label   string       `json:"label"`
	Kind    string       `json:"kind"`
	Enabled bool         `json:"enabled"`
}

type ProviderDiagnostics struct {
	Engine              SearchEngine `json:"engine"`
	Label               string       `json:"label"`
	Kind                string       `json:"kind"`
	Enabled             bool         `json:"enabled"`
	ConsecutiveFailures int          `json:"consecutiveFailures"`
	BlockedUntil        *time.Time   `json:"blockedUntil,omitempty"`
	LastError           string       `json:"lastError,omitempty"`
	LastSuccessAt       *time.Time   `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *time.Time   `json:"lastFailureAt,omitempty"`
	LastLatencyMS       int64        `json:"lastLatencyMs,omitempty"`
	LastTimeout         bool         `json:"lastTimeout,omitempty"`
	LastQuery           string       `json:"lastQuery,omitempty"`
	TotalRequests       int64        `json:"totalRequests,omitempty"`
	TotalFailures       int64        `json:"totalFailures,omitempty"`
	TimeoutCount        int64        `json:"timeoutCount,omitempty"`
}

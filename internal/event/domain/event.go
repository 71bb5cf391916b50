package domain

import "time"

// Event is a security event emitted by the auth service (tenant-scoped, optional
// user/session). Serialized as JSON on the wire (Kafka message value, Loki line).
type Event struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	UserID    string    `json:"user_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	IP        string    `json:"ip,omitempty"`
	Metadata  []byte    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

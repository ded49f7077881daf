package types

// Notification represents a notification message structure
type Notification struct {
	Type    string         `json:"type,omitempty"`    // Notification type, e.g. "upload_initiated", "chunk_received", etc.
	Title   string         `json:"title,omitempty"`   // Notification title
	Message string         `json:"message,omitempty"` // Notification message/content
	Data    map[string]any `json:"data,omitempty"`    // Additional data fields
}

const (
	NotifyTypeUploadInitiated = "upload_initiated"
	NotifyTypeChunkReceived   = "chunk_received"
	NotifyTypeUploadCompleted = "upload_completed"
	NotifyTypeUploadFailed    = "upload_failed"
	NotifyTypeSessionExpired  = "session_expired"
)

// NotifyHub broadcasts notifications to connected clients (e.g. WebSocket).
type NotifyHub interface {
	Broadcast(notification *Notification)
}

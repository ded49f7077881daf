package types

import "time"

// InitiateRequest is the body of POST /api/upload/v1/initiate.
type InitiateRequest struct {
	FileName      string `json:"fileName"`
	FileSizeBytes int64  `json:"fileSizeBytes"`
	FileHash      string `json:"fileHash"`
	TotalChunks   int    `json:"totalChunks"`
}

// InitiateResult is returned once the backend accepted a new upload session.
// Target carries whatever upload target info the assembler handed back.
type InitiateResult struct {
	SessionId string         `json:"sessionId"`
	ExpiresAt time.Time      `json:"expiresAt"`
	Target    map[string]any `json:"-"`
}

// Body flattens the result and the assembler info into one response object.
func (r *InitiateResult) Body() map[string]any {
	body := make(map[string]any, len(r.Target)+2)
	for k, v := range r.Target {
		body[k] = v
	}
	body["sessionId"] = r.SessionId
	body["expiresAt"] = r.ExpiresAt
	return body
}

// ChunkAck acknowledges one stored chunk. A retried chunk gets the ack of its first receipt.
type ChunkAck struct {
	SessionId  string    `json:"sessionId"`
	ChunkIndex int       `json:"chunkIndex"`
	Size       int       `json:"size"`
	SHA256     string    `json:"sha256"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// UploadStatus is the read-only progress snapshot used by clients to resume.
type UploadStatus struct {
	SessionId      string       `json:"sessionId"`
	FileName       string       `json:"fileName"`
	ReceivedCount  int          `json:"receivedCount"`
	TotalChunks    int          `json:"totalChunks"`
	State          SessionState `json:"state"`
	MissingIndices []int        `json:"missingIndices,omitempty"`
	ExpiresAt      time.Time    `json:"expiresAt"`
}

// CompleteRequest is the body of POST /api/upload/v1/complete.
type CompleteRequest struct {
	SessionId any `json:"sessionId"`
}

// CompleteResult is the outcome of a successful finalization.
type CompleteResult struct {
	SessionId    string         `json:"sessionId"`
	State        SessionState   `json:"state"`
	FileName     string         `json:"fileName"`
	TotalChunks  int            `json:"totalChunks"`
	FileHash     string         `json:"fileHash"`
	ComputedHash string         `json:"computedHash,omitempty"`
	ResultUrl    string         `json:"resultUrl,omitempty"`
	CompletedAt  time.Time      `json:"completedAt"`
	Backend      map[string]any `json:"backend,omitempty"`
}

// AssemblerSession is what the backend assembler returns for a new upload.
type AssemblerSession struct {
	UploadId string
	Info     map[string]any
}

// AssemblerResult is what the backend assembler returns on finalize.
type AssemblerResult struct {
	ComputedHash string
	ResultUrl    string
	Raw          map[string]any
}

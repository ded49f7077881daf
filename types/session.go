package types

import (
	"maps"
	"time"
)

// SessionState is the lifecycle state of an UploadSession.
type SessionState string

const (
	StateInitiated  SessionState = "initiated"
	StateInProgress SessionState = "in_progress"
	StateCompleted  SessionState = "completed"
	StateExpired    SessionState = "expired"
	StateFailed     SessionState = "failed"
)

// Terminal reports whether no further chunk or complete calls can change the session.
func (s SessionState) Terminal() bool {
	return s == StateCompleted || s == StateExpired || s == StateFailed
}

// AcceptsChunks reports whether chunk writes are allowed in this state.
func (s SessionState) AcceptsChunks() bool {
	return s == StateInitiated || s == StateInProgress
}

// UploadSession is the server-side record of one in-progress chunked upload.
type UploadSession struct {
	SessionId       string
	BackendUploadId string
	FileName        string
	FileSizeBytes   int64
	FileHash        string
	TotalChunks     int
	ReceivedChunks  map[int]ChunkAck
	State           SessionState
	Finalizing      bool
	Result          *CompleteResult
	FailureReason   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ExpiresAt       time.Time
}

// Clone returns a deep copy so callers never share the stored chunk set.
func (s *UploadSession) Clone() *UploadSession {
	if s == nil {
		return nil
	}
	copied := *s
	copied.ReceivedChunks = make(map[int]ChunkAck, len(s.ReceivedChunks))
	maps.Copy(copied.ReceivedChunks, s.ReceivedChunks)
	if s.Result != nil {
		result := *s.Result
		copied.Result = &result
	}
	return &copied
}

// ExpiredAt reports whether the session is garbage at the given instant.
func (s *UploadSession) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// MissingIndices lists the chunk indices not yet received, ascending.
func (s *UploadSession) MissingIndices() []int {
	missing := make([]int, 0, s.TotalChunks-len(s.ReceivedChunks))
	for i := 0; i < s.TotalChunks; i++ {
		if _, ok := s.ReceivedChunks[i]; !ok {
			missing = append(missing, i)
		}
	}
	return missing
}

// Status builds the progress snapshot for this session.
func (s *UploadSession) Status() *UploadStatus {
	return &UploadStatus{
		SessionId:      s.SessionId,
		FileName:       s.FileName,
		ReceivedCount:  len(s.ReceivedChunks),
		TotalChunks:    s.TotalChunks,
		State:          s.State,
		MissingIndices: s.MissingIndices(),
		ExpiresAt:      s.ExpiresAt,
	}
}

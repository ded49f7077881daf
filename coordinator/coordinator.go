// Package coordinator drives the resumable chunked-upload protocol:
// initiate, chunk, status and complete.
//
// The coordinator never stores file bytes itself. Every chunk is forwarded to
// the backend assembler and the local session only records an index once the
// backend has accepted it, so local state never claims more progress than the
// backend holds.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ttlworker "github.com/FloatTech/ttl"
	"golang.org/x/sync/singleflight"

	"github.com/moyoez/scangate/session"
	"github.com/moyoez/scangate/tool"
	"github.com/moyoez/scangate/types"
)

// Assembler is the external backend that receives chunks and finalizes uploads.
type Assembler interface {
	Initiate(ctx context.Context, ident types.Identity, sessionId string, req types.InitiateRequest) (*types.AssemblerSession, error)
	UploadChunk(ctx context.Context, ident types.Identity, uploadId string, index int, data []byte) error
	Complete(ctx context.Context, ident types.Identity, uploadId string, declaredHash string) (*types.AssemblerResult, error)
}

type Config struct {
	SessionTTL       time.Duration
	ResultRetention  time.Duration
	MaxTotalChunks   int   // 0 means unlimited
	MaxFileSizeBytes int64 // 0 means unlimited
}

const (
	defaultSessionTTL      = 24 * time.Hour
	defaultResultRetention = time.Hour
)

type Coordinator struct {
	store     session.Store
	assembler Assembler
	cfg       Config
	now       func() time.Time
	notify    func(*types.Notification)

	chunkFlight    singleflight.Group
	completeFlight singleflight.Group
	// results keeps finished uploads after their session is destroyed so a
	// repeated complete or status call still gets the same answer.
	results *ttlworker.Cache[string, *types.CompleteResult]
}

type Option func(*Coordinator)

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithNotifier sets the sink for upload lifecycle events.
func WithNotifier(fn func(*types.Notification)) Option {
	return func(c *Coordinator) {
		c.notify = fn
	}
}

func New(store session.Store, assembler Assembler, cfg Config, opts ...Option) *Coordinator {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.ResultRetention <= 0 {
		cfg.ResultRetention = defaultResultRetention
	}
	c := &Coordinator{
		store:     store,
		assembler: assembler,
		cfg:       cfg,
		now:       time.Now,
		notify:    func(*types.Notification) {},
		results:   ttlworker.NewCache[string, *types.CompleteResult](cfg.ResultRetention),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initiate validates the declared file, registers it with the backend and
// creates the session. Nothing is created when validation or the backend fails.
func (c *Coordinator) Initiate(ctx context.Context, ident types.Identity, req types.InitiateRequest) (*types.InitiateResult, error) {
	if err := c.validateInitiate(req); err != nil {
		return nil, err
	}

	sessionId := tool.GenerateRandomUUID()
	backend, err := c.assembler.Initiate(ctx, ident, sessionId, req)
	if err != nil {
		tool.DefaultLogger.Errorf("[Initiate] Backend rejected session %s: %v", sessionId, err)
		return nil, upstreamError("initiate upload", err)
	}

	now := c.now()
	s := &types.UploadSession{
		SessionId:       sessionId,
		BackendUploadId: sessionId,
		FileName:        req.FileName,
		FileSizeBytes:   req.FileSizeBytes,
		FileHash:        req.FileHash,
		TotalChunks:     req.TotalChunks,
		ReceivedChunks:  make(map[int]types.ChunkAck, req.TotalChunks),
		State:           types.StateInitiated,
		CreatedAt:       now,
		UpdatedAt:       now,
		ExpiresAt:       now.Add(c.cfg.SessionTTL),
	}
	var target map[string]any
	if backend != nil {
		if backend.UploadId != "" {
			s.BackendUploadId = backend.UploadId
		}
		target = backend.Info
	}
	if err := c.store.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("store upload session %s: %w", sessionId, err)
	}

	tool.DefaultLogger.Infof("[Initiate] Created session %s for %s (%d bytes, %d chunks)",
		sessionId, req.FileName, req.FileSizeBytes, req.TotalChunks)
	c.notify(&types.Notification{
		Type:    types.NotifyTypeUploadInitiated,
		Title:   "Upload Initiated",
		Message: fmt.Sprintf("Upload of %s started", req.FileName),
		Data: map[string]any{
			"sessionId":   sessionId,
			"fileName":    req.FileName,
			"totalChunks": req.TotalChunks,
		},
	})

	return &types.InitiateResult{
		SessionId: sessionId,
		ExpiresAt: s.ExpiresAt,
		Target:    target,
	}, nil
}

func (c *Coordinator) validateInitiate(req types.InitiateRequest) error {
	switch {
	case strings.TrimSpace(req.FileName) == "":
		return validationError("fileName is required")
	case req.FileSizeBytes <= 0:
		return validationError("fileSizeBytes must be > 0")
	case strings.TrimSpace(req.FileHash) == "":
		return validationError("fileHash is required")
	case req.TotalChunks <= 0:
		return validationError("totalChunks must be > 0")
	case int64(req.TotalChunks) > req.FileSizeBytes:
		return validationError("totalChunks %d exceeds fileSizeBytes %d", req.TotalChunks, req.FileSizeBytes)
	case c.cfg.MaxTotalChunks > 0 && req.TotalChunks > c.cfg.MaxTotalChunks:
		return validationError("totalChunks must be <= %d", c.cfg.MaxTotalChunks)
	case c.cfg.MaxFileSizeBytes > 0 && req.FileSizeBytes > c.cfg.MaxFileSizeBytes:
		return validationError("fileSizeBytes must be <= %d", c.cfg.MaxFileSizeBytes)
	}
	return nil
}

// Chunk forwards one chunk to the backend and records its index.
// A chunk whose index was already received is acknowledged again without
// touching the backend.
func (c *Coordinator) Chunk(ctx context.Context, ident types.Identity, sessionId string, index int, data []byte) (*types.ChunkAck, error) {
	if sessionId == "" {
		return nil, validationError("sessionId is required")
	}
	s, err := c.store.Get(ctx, sessionId)
	if err != nil {
		// completed sessions are evicted but their result is still cached
		if errors.Is(err, session.ErrNotFound) && c.results.Get(sessionId) != nil {
			return nil, invalidStateError(sessionId, types.StateCompleted, "upload chunk to")
		}
		return nil, c.mapStoreError(sessionId, err)
	}
	if !s.State.AcceptsChunks() {
		return nil, invalidStateError(sessionId, s.State, "upload chunk to")
	}
	if ack, ok := s.ReceivedChunks[index]; ok {
		if len(data) > 0 && ack.SHA256 != tool.SHA256Hex(data) {
			tool.DefaultLogger.Warnf("[Chunk] Retry of chunk %d for session %s carries different bytes, keeping first receipt", index, sessionId)
		}
		tool.DefaultLogger.Debugf("[Chunk] Duplicate chunk %d for session %s", index, sessionId)
		return &ack, nil
	}
	if index < 0 || index >= s.TotalChunks {
		return nil, validationError("chunkIndex %d out of range [0, %d)", index, s.TotalChunks)
	}
	if len(data) == 0 {
		return nil, validationError("chunk is empty")
	}

	key := sessionId + "/" + strconv.Itoa(index)
	v, err, _ := c.chunkFlight.Do(key, func() (any, error) {
		return c.storeChunk(ctx, ident, sessionId, index, data)
	})
	if err != nil {
		return nil, err
	}
	ack := v.(types.ChunkAck)
	return &ack, nil
}

func (c *Coordinator) storeChunk(ctx context.Context, ident types.Identity, sessionId string, index int, data []byte) (types.ChunkAck, error) {
	// a flight for this index may have finished between the caller's read and now
	current, err := c.getSession(ctx, sessionId)
	if err != nil {
		return types.ChunkAck{}, err
	}
	if !current.State.AcceptsChunks() {
		return types.ChunkAck{}, invalidStateError(sessionId, current.State, "upload chunk to")
	}
	if ack, ok := current.ReceivedChunks[index]; ok {
		return ack, nil
	}

	if err := c.assembler.UploadChunk(ctx, ident, current.BackendUploadId, index, data); err != nil {
		tool.DefaultLogger.Errorf("[Chunk] Backend failed to store chunk %d of session %s: %v", index, sessionId, err)
		return types.ChunkAck{}, upstreamError(fmt.Sprintf("upload chunk %d", index), err)
	}

	ack := types.ChunkAck{
		SessionId:  sessionId,
		ChunkIndex: index,
		Size:       len(data),
		SHA256:     tool.SHA256Hex(data),
		ReceivedAt: c.now(),
	}
	updated, err := c.store.Update(ctx, sessionId, func(s *types.UploadSession) error {
		if !s.State.AcceptsChunks() {
			return invalidStateError(sessionId, s.State, "upload chunk to")
		}
		if existing, ok := s.ReceivedChunks[index]; ok {
			ack = existing
			return nil
		}
		s.ReceivedChunks[index] = ack
		if s.State == types.StateInitiated {
			s.State = types.StateInProgress
		}
		return nil
	})
	if err != nil {
		return types.ChunkAck{}, c.mapStoreError(sessionId, err)
	}

	tool.DefaultLogger.Debugf("[Chunk] Stored chunk %d of session %s (%d/%d)",
		index, sessionId, len(updated.ReceivedChunks), updated.TotalChunks)
	c.notify(&types.Notification{
		Type:    types.NotifyTypeChunkReceived,
		Title:   "Chunk Received",
		Message: fmt.Sprintf("Chunk %d of %s received", index, updated.FileName),
		Data: map[string]any{
			"sessionId":     sessionId,
			"chunkIndex":    index,
			"receivedCount": len(updated.ReceivedChunks),
			"totalChunks":   updated.TotalChunks,
		},
	})
	return ack, nil
}

// Status returns the progress snapshot of a session. Finished uploads are
// answered from the result cache after their session has been destroyed.
func (c *Coordinator) Status(ctx context.Context, sessionId string) (*types.UploadStatus, error) {
	if sessionId == "" {
		return nil, validationError("sessionId is required")
	}
	s, err := c.store.Get(ctx, sessionId)
	if err == nil {
		return s.Status(), nil
	}
	if !errors.Is(err, session.ErrNotFound) {
		return nil, fmt.Errorf("load upload session %s: %w", sessionId, err)
	}
	if result := c.results.Get(sessionId); result != nil {
		return &types.UploadStatus{
			SessionId:     result.SessionId,
			FileName:      result.FileName,
			ReceivedCount: result.TotalChunks,
			TotalChunks:   result.TotalChunks,
			State:         types.StateCompleted,
		}, nil
	}
	return nil, notFoundError(sessionId)
}

// Complete asks the backend to assemble and verify the upload. Concurrent
// calls for one session share a single finalization.
func (c *Coordinator) Complete(ctx context.Context, ident types.Identity, sessionId string) (*types.CompleteResult, error) {
	if sessionId == "" {
		return nil, validationError("sessionId is required")
	}
	v, err, shared := c.completeFlight.Do(sessionId, func() (any, error) {
		return c.finalize(ctx, ident, sessionId)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		tool.DefaultLogger.Debugf("[Complete] Joined in-flight finalization of session %s", sessionId)
	}
	result := *(v.(*types.CompleteResult))
	return &result, nil
}

// errAlreadyCompleted aborts the claim update without storing anything.
var errAlreadyCompleted = errors.New("already completed")

func (c *Coordinator) finalize(ctx context.Context, ident types.Identity, sessionId string) (*types.CompleteResult, error) {
	if result := c.results.Get(sessionId); result != nil {
		return result, nil
	}

	var previous *types.CompleteResult
	claimed, err := c.store.Update(ctx, sessionId, func(s *types.UploadSession) error {
		switch {
		case s.State == types.StateCompleted && s.Result != nil:
			previous = s.Result
			return errAlreadyCompleted
		case !s.State.AcceptsChunks():
			return invalidStateError(sessionId, s.State, "complete")
		case s.Finalizing:
			return &Error{Kind: KindInvalidState, Message: fmt.Sprintf("session %s is already being finalized", sessionId)}
		}
		if len(s.ReceivedChunks) != s.TotalChunks {
			return incompleteError(sessionId, s.MissingIndices())
		}
		s.Finalizing = true
		return nil
	})
	switch {
	case errors.Is(err, errAlreadyCompleted):
		return previous, nil
	case err != nil:
		return nil, c.mapStoreError(sessionId, err)
	}

	tool.DefaultLogger.Infof("[Complete] Finalizing session %s (%s)", sessionId, claimed.FileName)
	res, err := c.assembler.Complete(ctx, ident, claimed.BackendUploadId, claimed.FileHash)
	if err != nil {
		var be *types.BackendError
		if errors.As(err, &be) && be.IntegrityMismatch() {
			return nil, c.fail(ctx, claimed, "", err)
		}
		tool.DefaultLogger.Errorf("[Complete] Backend finalization of session %s failed: %v", sessionId, err)
		c.release(ctx, sessionId)
		return nil, upstreamError("complete upload", err)
	}
	if res == nil {
		res = &types.AssemblerResult{}
	}
	if res.ComputedHash != "" && !strings.EqualFold(res.ComputedHash, claimed.FileHash) {
		return nil, c.fail(ctx, claimed, res.ComputedHash, nil)
	}

	result := &types.CompleteResult{
		SessionId:    sessionId,
		State:        types.StateCompleted,
		FileName:     claimed.FileName,
		TotalChunks:  claimed.TotalChunks,
		FileHash:     claimed.FileHash,
		ComputedHash: res.ComputedHash,
		ResultUrl:    res.ResultUrl,
		CompletedAt:  c.now(),
		Backend:      res.Raw,
	}
	if _, err := c.store.Update(ctx, sessionId, func(s *types.UploadSession) error {
		s.State = types.StateCompleted
		s.Finalizing = false
		s.Result = result
		return nil
	}); err != nil {
		tool.DefaultLogger.Warnf("[Complete] Failed to mark session %s completed: %v", sessionId, err)
	}
	c.results.Set(sessionId, result)
	if err := c.store.Delete(ctx, sessionId); err != nil && !errors.Is(err, session.ErrNotFound) {
		tool.DefaultLogger.Warnf("[Complete] Failed to evict session %s: %v", sessionId, err)
	}

	tool.DefaultLogger.Infof("[Complete] Session %s completed", sessionId)
	c.notify(&types.Notification{
		Type:    types.NotifyTypeUploadCompleted,
		Title:   "Upload Completed",
		Message: fmt.Sprintf("Upload of %s completed", claimed.FileName),
		Data: map[string]any{
			"sessionId": sessionId,
			"fileName":  claimed.FileName,
			"resultUrl": res.ResultUrl,
		},
	})
	return result, nil
}

// fail moves a claimed session to failed after an integrity mismatch.
func (c *Coordinator) fail(ctx context.Context, claimed *types.UploadSession, computed string, cause error) error {
	sessionId := claimed.SessionId
	ierr := integrityError(sessionId, claimed.FileHash, computed, cause)
	if _, err := c.store.Update(ctx, sessionId, func(s *types.UploadSession) error {
		s.State = types.StateFailed
		s.Finalizing = false
		s.FailureReason = ierr.Message
		return nil
	}); err != nil {
		tool.DefaultLogger.Errorf("[Complete] Failed to mark session %s failed: %v", sessionId, err)
	}
	tool.DefaultLogger.Warnf("[Complete] Integrity mismatch for session %s: %s", sessionId, ierr.Message)
	c.notify(&types.Notification{
		Type:    types.NotifyTypeUploadFailed,
		Title:   "Upload Failed",
		Message: ierr.Message,
		Data: map[string]any{
			"sessionId": sessionId,
			"fileName":  claimed.FileName,
		},
	})
	return ierr
}

// release drops the finalization claim so the client may retry complete.
func (c *Coordinator) release(ctx context.Context, sessionId string) {
	if _, err := c.store.Update(ctx, sessionId, func(s *types.UploadSession) error {
		s.Finalizing = false
		return nil
	}); err != nil {
		tool.DefaultLogger.Warnf("[Complete] Failed to release finalization claim on %s: %v", sessionId, err)
	}
}

// Result returns the cached outcome of a completed upload.
func (c *Coordinator) Result(sessionId string) (*types.CompleteResult, bool) {
	result := c.results.Get(sessionId)
	if result == nil {
		return nil, false
	}
	copied := *result
	return &copied, true
}

// Sweep implements sweeper.Sweepable by reclaiming expired sessions.
func (c *Coordinator) Sweep(ctx context.Context, now time.Time) (int, error) {
	return c.store.Sweep(ctx, now)
}

func (c *Coordinator) getSession(ctx context.Context, sessionId string) (*types.UploadSession, error) {
	s, err := c.store.Get(ctx, sessionId)
	if err != nil {
		return nil, c.mapStoreError(sessionId, err)
	}
	return s, nil
}

func (c *Coordinator) mapStoreError(sessionId string, err error) error {
	var cerr *Error
	switch {
	case errors.As(err, &cerr):
		return cerr
	case errors.Is(err, session.ErrNotFound):
		return notFoundError(sessionId)
	default:
		return fmt.Errorf("upload session %s: %w", sessionId, err)
	}
}

// ExpiredNotifier returns a session.ExpireFunc that publishes session_expired
// events through notify.
func ExpiredNotifier(notify func(*types.Notification)) session.ExpireFunc {
	return func(s *types.UploadSession) {
		if s.State != types.StateExpired {
			return
		}
		tool.DefaultLogger.Infof("[Sweep] Session %s expired with %d/%d chunks", s.SessionId, len(s.ReceivedChunks), s.TotalChunks)
		notify(&types.Notification{
			Type:    types.NotifyTypeSessionExpired,
			Title:   "Session Expired",
			Message: fmt.Sprintf("Upload of %s expired", s.FileName),
			Data: map[string]any{
				"sessionId":     s.SessionId,
				"receivedCount": len(s.ReceivedChunks),
				"totalChunks":   s.TotalChunks,
			},
		})
	}
}

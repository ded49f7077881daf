package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/moyoez/scangate/api/models"
	"github.com/moyoez/scangate/coordinator"
	"github.com/moyoez/scangate/tool"
	"github.com/moyoez/scangate/types"
)

// multipartOverhead is the room left for form fields and part headers on top
// of the chunk bytes themselves.
const multipartOverhead = 64 * 1024

// maxFormMemory is how much of a multipart body is kept in memory before
// parts spill to temporary files.
const maxFormMemory = 32 << 20

// UploadService is the upload protocol behind the HTTP routes.
type UploadService interface {
	Initiate(ctx context.Context, ident types.Identity, req types.InitiateRequest) (*types.InitiateResult, error)
	Chunk(ctx context.Context, ident types.Identity, sessionId string, index int, data []byte) (*types.ChunkAck, error)
	Status(ctx context.Context, sessionId string) (*types.UploadStatus, error)
	Complete(ctx context.Context, ident types.Identity, sessionId string) (*types.CompleteResult, error)
	Result(sessionId string) (*types.CompleteResult, bool)
}

type UploadController struct {
	service       UploadService
	maxChunkBytes int64
}

// NewUploadController builds the controller. maxChunkBytes <= 0 disables the
// per-request chunk cap.
func NewUploadController(service UploadService, maxChunkBytes int64) *UploadController {
	return &UploadController{
		service:       service,
		maxChunkBytes: maxChunkBytes,
	}
}

// HandleInitiate handles POST /api/upload/v1/initiate.
func (ctrl *UploadController) HandleInitiate(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		tool.DefaultLogger.Errorf("[Initiate] Failed to read request body: %v", err)
		c.JSON(http.StatusBadRequest, validationBody("Failed to read request body"))
		return
	}
	request, err := models.ParseInitiateRequest(body)
	if err != nil {
		tool.DefaultLogger.Debugf("[Initiate] %v", err)
		c.JSON(http.StatusBadRequest, validationBody("Invalid request body"))
		return
	}

	result, err := ctrl.service.Initiate(c.Request.Context(), IdentityFromRequest(c), *request)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result.Body())
}

// HandleChunk handles POST /api/upload/v1/chunk (multipart: sessionId, chunkIndex, chunk).
func (ctrl *UploadController) HandleChunk(c *gin.Context) {
	if ctrl.maxChunkBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, ctrl.maxChunkBytes+multipartOverhead)
	}
	if err := c.Request.ParseMultipartForm(maxFormMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, validationBody("Chunk too large"))
			return
		}
		tool.DefaultLogger.Debugf("[Chunk] Failed to parse multipart form: %v", err)
		c.JSON(http.StatusBadRequest, validationBody("Invalid multipart body"))
		return
	}

	sessionId := strings.TrimSpace(c.Request.PostFormValue("sessionId"))
	if sessionId == "" {
		c.JSON(http.StatusBadRequest, validationBody("Missing required field: sessionId"))
		return
	}
	index, err := strconv.Atoi(strings.TrimSpace(c.Request.PostFormValue("chunkIndex")))
	if err != nil {
		c.JSON(http.StatusBadRequest, validationBody("chunkIndex must be an integer"))
		return
	}

	file, _, err := c.Request.FormFile("chunk")
	if err != nil {
		c.JSON(http.StatusBadRequest, validationBody("Missing required file part: chunk"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		tool.DefaultLogger.Errorf("[Chunk] Failed to read chunk %d of session %s: %v", index, sessionId, err)
		c.JSON(http.StatusBadRequest, validationBody("Failed to read chunk"))
		return
	}
	if ctrl.maxChunkBytes > 0 && int64(len(data)) > ctrl.maxChunkBytes {
		c.JSON(http.StatusRequestEntityTooLarge, validationBody("Chunk too large"))
		return
	}

	ack, err := ctrl.service.Chunk(c.Request.Context(), IdentityFromRequest(c), sessionId, index, data)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ack)
}

// HandleStatus handles GET /api/upload/v1/status?sessionId=.
func (ctrl *UploadController) HandleStatus(c *gin.Context) {
	sessionId := strings.TrimSpace(c.Query("sessionId"))
	if sessionId == "" {
		c.JSON(http.StatusBadRequest, validationBody("Missing required parameter: sessionId"))
		return
	}
	status, err := ctrl.service.Status(c.Request.Context(), sessionId)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// HandleComplete handles POST /api/upload/v1/complete.
func (ctrl *UploadController) HandleComplete(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, validationBody("Failed to read request body"))
		return
	}
	sessionId, err := models.ParseCompleteRequest(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, validationBody(err.Error()))
		return
	}

	result, err := ctrl.service.Complete(c.Request.Context(), IdentityFromRequest(c), sessionId)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// IdentityFromRequest collects what the gateway forwards about the caller.
func IdentityFromRequest(c *gin.Context) types.Identity {
	clientIP := tool.ResolveClientIdentifier(c.Request.Header)
	if clientIP == tool.UnknownClient {
		clientIP = c.RemoteIP()
	}
	return types.Identity{
		BearerToken:  tool.BearerToken(c.Request.Header),
		ClientIP:     clientIP,
		ForwardedFor: c.GetHeader(tool.HeaderForwardedFor),
		Origin:       c.GetHeader("Origin"),
		Referer:      c.GetHeader("Referer"),
	}
}

// writeError answers with the status of a coordinator error and a body of
// {"error", "kind", ...details}.
func writeError(c *gin.Context, err error) {
	status := coordinator.HTTPStatus(err)
	var cerr *coordinator.Error
	if !errors.As(err, &cerr) {
		tool.DefaultLogger.Errorf("[Upload] Internal error on %s: %v", c.FullPath(), err)
		c.JSON(status, tool.FastReturnErrorKind("Internal server error", "internal", nil))
		return
	}

	details := map[string]any{}
	switch cerr.Kind {
	case coordinator.KindIncompleteUpload:
		details["missingIndices"] = cerr.Missing
	case coordinator.KindUpstream:
		if cerr.Status != 0 {
			details["backendStatus"] = cerr.Status
		}
	}
	if status >= http.StatusInternalServerError {
		tool.DefaultLogger.Errorf("[Upload] %s failed: %v", c.FullPath(), err)
	}
	c.JSON(status, tool.FastReturnErrorKind(cerr.Message, string(cerr.Kind), details))
}

func validationBody(msg string) gin.H {
	return tool.FastReturnErrorKind(msg, string(coordinator.KindValidation), nil)
}

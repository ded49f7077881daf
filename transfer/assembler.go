package transfer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"

	"github.com/moyoez/scangate/tool"
	"github.com/moyoez/scangate/types"
)

// maxBackendBody caps how much of a backend response is read.
const maxBackendBody = 1 << 20

// HTTPAssembler talks to the scanning backend that stores chunks and
// assembles the final file.
type HTTPAssembler struct {
	baseURL   string
	client    *http.Client
	forwarder *Forwarder
}

func NewHTTPAssembler(cfg types.BackendConfig, client *http.Client, forwarder *Forwarder) *HTTPAssembler {
	if client == nil {
		client = tool.NewHTTPClient(cfg.Timeout())
	}
	if forwarder == nil {
		forwarder = NewForwarder(cfg)
	}
	return &HTTPAssembler{
		baseURL:   cfg.BaseURL,
		client:    client,
		forwarder: forwarder,
	}
}

type initiatePayload struct {
	SessionId     string `json:"sessionId"`
	FileName      string `json:"fileName"`
	FileSizeBytes int64  `json:"fileSizeBytes"`
	FileHash      string `json:"fileHash"`
	TotalChunks   int    `json:"totalChunks"`
}

type completePayload struct {
	FileHash string `json:"fileHash"`
}

// Initiate registers a new upload with the backend. The backend id is read
// from "uploadId" (or "id"); the whole response is kept as upload target info.
func (a *HTTPAssembler) Initiate(ctx context.Context, ident types.Identity, sessionId string, req types.InitiateRequest) (*types.AssemblerSession, error) {
	url, err := tool.BuildInitiateURL(a.baseURL)
	if err != nil {
		return nil, &types.BackendError{Op: "initiate", Err: err}
	}
	payload, err := sonic.Marshal(initiatePayload{
		SessionId:     sessionId,
		FileName:      req.FileName,
		FileSizeBytes: req.FileSizeBytes,
		FileHash:      req.FileHash,
		TotalChunks:   req.TotalChunks,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal initiate request: %v", err)
	}

	body, err := a.do(ctx, ident, "initiate", url, "application/json", payload)
	if err != nil {
		return nil, err
	}
	info, err := decodeObject(body)
	if err != nil {
		return nil, &types.BackendError{Op: "initiate", Status: http.StatusBadGateway, Message: "invalid initiate response", Err: err}
	}
	uploadId := stringField(info, "uploadId")
	if uploadId == "" {
		uploadId = stringField(info, "id")
	}
	return &types.AssemblerSession{UploadId: uploadId, Info: info}, nil
}

// UploadChunk sends one chunk as multipart form data.
func (a *HTTPAssembler) UploadChunk(ctx context.Context, ident types.Identity, uploadId string, index int, data []byte) error {
	url, err := tool.BuildChunkURL(a.baseURL, uploadId)
	if err != nil {
		return &types.BackendError{Op: "upload chunk", Err: err}
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("chunkIndex", strconv.Itoa(index)); err != nil {
		return fmt.Errorf("failed to write chunkIndex field: %v", err)
	}
	part, err := writer.CreateFormFile("chunk", fmt.Sprintf("chunk-%d", index))
	if err != nil {
		return fmt.Errorf("failed to create chunk part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("failed to write chunk part: %v", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close multipart writer: %v", err)
	}

	_, err = a.do(ctx, ident, "upload chunk", url, writer.FormDataContentType(), buf.Bytes())
	return err
}

// Complete asks the backend to assemble the upload and verify declaredHash.
func (a *HTTPAssembler) Complete(ctx context.Context, ident types.Identity, uploadId string, declaredHash string) (*types.AssemblerResult, error) {
	url, err := tool.BuildCompleteURL(a.baseURL, uploadId)
	if err != nil {
		return nil, &types.BackendError{Op: "complete", Err: err}
	}
	payload, err := sonic.Marshal(completePayload{FileHash: declaredHash})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal complete request: %v", err)
	}

	body, err := a.do(ctx, ident, "complete", url, "application/json", payload)
	if err != nil {
		return nil, err
	}
	raw, err := decodeObject(body)
	if err != nil {
		return nil, &types.BackendError{Op: "complete", Status: http.StatusBadGateway, Message: "invalid complete response", Err: err}
	}
	if code := stringField(raw, "code"); code != "" {
		be := &types.BackendError{Op: "complete", Status: http.StatusOK, Code: code, Message: stringField(raw, "error")}
		if be.IntegrityMismatch() {
			return nil, be
		}
	}
	return &types.AssemblerResult{
		ComputedHash: stringField(raw, "computedHash"),
		ResultUrl:    stringField(raw, "resultUrl"),
		Raw:          raw,
	}, nil
}

// do sends one POST and returns the response body of a 2xx answer.
// Every failure comes back as a *types.BackendError.
func (a *HTTPAssembler) do(ctx context.Context, ident types.Identity, op, url, contentType string, payload []byte) ([]byte, error) {
	if err := a.forwarder.Wait(ctx); err != nil {
		return nil, &types.BackendError{Op: op, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &types.BackendError{Op: op, Err: fmt.Errorf("failed to create request: %v", err)}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	a.forwarder.Apply(req, ident)

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &types.BackendError{Op: op, Err: fmt.Errorf("request cancelled: %w", ctx.Err())}
		}
		return nil, &types.BackendError{Op: op, Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			tool.DefaultLogger.Errorf("Failed to close response body: %v", err)
		}
	}()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBackendBody))
	if readErr != nil {
		tool.DefaultLogger.Warnf("[Backend] Failed to read %s response body: %v", op, readErr)
	}
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return body, nil
	}

	be := &types.BackendError{Op: op, Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	if fields, err := decodeObject(body); err == nil {
		be.Code = stringField(fields, "code")
		if msg := stringField(fields, "error"); msg != "" {
			be.Message = msg
		} else if msg := stringField(fields, "message"); msg != "" {
			be.Message = msg
		}
	}
	tool.DefaultLogger.Debugf("[Backend] %s %s answered %d: %s", op, url, resp.StatusCode, be.Message)
	return nil, be
}

func decodeObject(body []byte) (map[string]any, error) {
	out := make(map[string]any)
	if len(bytes.TrimSpace(body)) == 0 {
		return out, nil
	}
	if err := sonic.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

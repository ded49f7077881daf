package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/moyoez/scangate/tool"
	"github.com/moyoez/scangate/types"
)

// APIError is a non-2xx answer of the gateway.
type APIError struct {
	Status     int
	Kind       string
	Message    string
	Missing    []int
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("gateway error (%d %s): %s", e.Status, e.Kind, e.Message)
	}
	return fmt.Sprintf("gateway error (%d): %s", e.Status, e.Message)
}

// Retryable reports whether sending the same request again may succeed.
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// APIClient talks to the gateway upload routes.
type APIClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewAPIClient(baseURL, token string, timeout time.Duration) *APIClient {
	return &APIClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: tool.NewHTTPClient(timeout),
	}
}

type InitiateResponse struct {
	SessionId string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (c *APIClient) Initiate(ctx context.Context, req types.InitiateRequest) (*InitiateResponse, error) {
	body, err := sonic.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal initiate request: %w", err)
	}
	var out InitiateResponse
	if err := c.do(ctx, http.MethodPost, "/api/upload/v1/initiate", "application/json", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) UploadChunk(ctx context.Context, sessionId string, index int, data []byte) (*types.ChunkAck, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("sessionId", sessionId); err != nil {
		return nil, err
	}
	if err := writer.WriteField("chunkIndex", strconv.Itoa(index)); err != nil {
		return nil, err
	}
	part, err := writer.CreateFormFile("chunk", fmt.Sprintf("chunk-%d", index))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	var ack types.ChunkAck
	if err := c.do(ctx, http.MethodPost, "/api/upload/v1/chunk", writer.FormDataContentType(), buf.Bytes(), &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

func (c *APIClient) Status(ctx context.Context, sessionId string) (*types.UploadStatus, error) {
	var out types.UploadStatus
	path := "/api/upload/v1/status?sessionId=" + url.QueryEscape(sessionId)
	if err := c.do(ctx, http.MethodGet, path, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) Complete(ctx context.Context, sessionId string) (*types.CompleteResult, error) {
	body, err := sonic.Marshal(map[string]string{"sessionId": sessionId})
	if err != nil {
		return nil, err
	}
	var out types.CompleteResult
	if err := c.do(ctx, http.MethodPost, "/api/upload/v1/complete", "application/json", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) do(ctx context.Context, method, path, contentType string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	req.Header.Set("User-Agent", "scangate-upload/"+tool.Version)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decodeAPIError(resp, payload)
	}
	if err := sonic.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response, payload []byte) *APIError {
	apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(payload))}
	var body struct {
		Error          string `json:"error"`
		Kind           string `json:"kind"`
		MissingIndices []int  `json:"missingIndices"`
	}
	if err := sonic.Unmarshal(payload, &body); err == nil {
		apiErr.Kind = body.Kind
		apiErr.Missing = body.MissingIndices
		if body.Error != "" {
			apiErr.Message = body.Error
		}
	}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		apiErr.RetryAfter = time.Duration(secs) * time.Second
	}
	return apiErr
}

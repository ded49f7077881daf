package transfer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyoez/scangate/types"
)

func newTestAssembler(t *testing.T, handler http.HandlerFunc) *HTTPAssembler {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := types.BackendConfig{BaseURL: srv.URL + "/api/v1", APIKey: "key-1"}
	return NewHTTPAssembler(cfg, srv.Client(), nil)
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	body, err := sonic.Marshal(v)
	require.NoError(t, err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func TestAssemblerInitiate(t *testing.T) {
	a := newTestAssembler(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/uploads/initiate", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get(HeaderAPIKey))

		var got initiatePayload
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, sonic.Unmarshal(body, &got))
		assert.Equal(t, "sess-1", got.SessionId)
		assert.Equal(t, "a.dll", got.FileName)
		assert.Equal(t, int64(1024), got.FileSizeBytes)
		assert.Equal(t, 2, got.TotalChunks)
		writeJSON(t, w, http.StatusCreated, map[string]any{"uploadId": "b-77", "bucket": "scans"})
	})

	res, err := a.Initiate(context.Background(), types.Identity{BearerToken: "user-token"}, "sess-1",
		types.InitiateRequest{FileName: "a.dll", FileSizeBytes: 1024, FileHash: "abc123", TotalChunks: 2})
	require.NoError(t, err)
	assert.Equal(t, "b-77", res.UploadId)
	assert.Equal(t, "scans", res.Info["bucket"])
}

func TestAssemblerUploadChunkMultipart(t *testing.T) {
	a := newTestAssembler(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/uploads/b-77/chunks", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get(HeaderAPIKey))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "3", r.FormValue("chunkIndex"))
		file, _, err := r.FormFile("chunk")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "payload", string(data))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, a.UploadChunk(context.Background(), types.Identity{}, "b-77", 3, []byte("payload")))
}

func TestAssemblerErrorsCarryBackendStatus(t *testing.T) {
	a := newTestAssembler(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusServiceUnavailable, map[string]any{"error": "scanner busy"})
	})

	err := a.UploadChunk(context.Background(), types.Identity{}, "b-77", 0, []byte("x"))
	var be *types.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusServiceUnavailable, be.Status)
	assert.Equal(t, "scanner busy", be.Message)
	assert.False(t, be.IntegrityMismatch())
}

func TestAssemblerCompleteHashMismatch(t *testing.T) {
	tests := map[string]int{"as error status": http.StatusUnprocessableEntity, "as 200 body": http.StatusOK}
	for name, status := range tests {
		t.Run(name, func(t *testing.T) {
			a := newTestAssembler(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/uploads/b-77/complete", r.URL.Path)
				writeJSON(t, w, status, map[string]any{"code": types.BackendCodeHashMismatch, "error": "hash differs"})
			})
			_, err := a.Complete(context.Background(), types.Identity{}, "b-77", "abc123")
			var be *types.BackendError
			require.ErrorAs(t, err, &be)
			assert.True(t, be.IntegrityMismatch())
		})
	}
}

func TestAssemblerComplete(t *testing.T) {
	a := newTestAssembler(t, func(w http.ResponseWriter, r *http.Request) {
		var got completePayload
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, sonic.Unmarshal(body, &got))
		assert.Equal(t, "abc123", got.FileHash)
		writeJSON(t, w, http.StatusOK, map[string]any{
			"computedHash": "ABC123",
			"resultUrl":    "https://scan.example/r/1",
			"verdict":      "clean",
		})
	})

	res, err := a.Complete(context.Background(), types.Identity{}, "b-77", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "ABC123", res.ComputedHash)
	assert.Equal(t, "https://scan.example/r/1", res.ResultUrl)
	assert.Equal(t, "clean", res.Raw["verdict"])
}

func TestAssemblerUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	a := NewHTTPAssembler(types.BackendConfig{BaseURL: srv.URL}, nil, nil)

	_, err := a.Initiate(context.Background(), types.Identity{}, "s", types.InitiateRequest{FileName: "f", FileSizeBytes: 1, FileHash: "h", TotalChunks: 1})
	var be *types.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 0, be.Status)
	assert.NotNil(t, errors.Unwrap(be))
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/moyoez/scangate/tool"
	"github.com/moyoez/scangate/types"
)

const defaultChunkSize = 4 * 1024 * 1024

// PushOptions tune one push run.
type PushOptions struct {
	ChunkSize int64
	// SessionId resumes an existing session instead of initiating a new one.
	SessionId string
	Retries   int
	// MaxBackoff caps the wait between retries, Retry-After included.
	MaxBackoff time.Duration
}

// Push uploads the file at path and returns the completion result. Chunks the
// gateway already holds are skipped, so an interrupted push can be resumed
// with the printed session id.
func Push(ctx context.Context, client *APIClient, path string, opts PushOptions, out io.Writer) (*types.CompleteResult, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}

	name, size, hash, err := tool.GetFileInfoFromPath(path)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}
	total := tool.ChunkCount(size, opts.ChunkSize)

	sessionId := opts.SessionId
	if sessionId == "" {
		var initiated *InitiateResponse
		err := withRetry(ctx, opts, func() error {
			var err error
			initiated, err = client.Initiate(ctx, types.InitiateRequest{
				FileName:      name,
				FileSizeBytes: size,
				FileHash:      hash,
				TotalChunks:   total,
			})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("initiate: %w", err)
		}
		sessionId = initiated.SessionId
		fmt.Fprintf(out, "Session %s (%d chunks, expires %s)\n", sessionId, total, initiated.ExpiresAt.Format(time.RFC3339))
	}

	var status *types.UploadStatus
	err = withRetry(ctx, opts, func() error {
		var err error
		status, err = client.Status(ctx, sessionId)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	if status.TotalChunks != total {
		return nil, fmt.Errorf("session %s expects %d chunks, file splits into %d with chunk size %d",
			sessionId, status.TotalChunks, total, opts.ChunkSize)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	missing := status.MissingIndices
	if status.State == types.StateCompleted {
		missing = nil
	}
	for n, index := range missing {
		data, err := tool.ReadChunk(file, size, opts.ChunkSize, index)
		if err != nil {
			return nil, err
		}
		err = withRetry(ctx, opts, func() error {
			_, err := client.UploadChunk(ctx, sessionId, index, data)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("chunk %d (resume with --session %s): %w", index, sessionId, err)
		}
		fmt.Fprintf(out, "Sent chunk %d (%d/%d)\n", index, status.ReceivedCount+n+1, total)
	}

	var result *types.CompleteResult
	err = withRetry(ctx, opts, func() error {
		var err error
		result, err = client.Complete(ctx, sessionId)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("complete: %w", err)
	}
	fmt.Fprintf(out, "Upload %s completed", sessionId)
	if result.ResultUrl != "" {
		fmt.Fprintf(out, ", result: %s", result.ResultUrl)
	}
	fmt.Fprintln(out)
	return result, nil
}

// withRetry retries fn on gateway answers that may succeed later.
func withRetry(ctx context.Context, opts PushOptions, fn func() error) error {
	backoff := 500 * time.Millisecond
	for attempt := 0; ; attempt++ {
		err := fn()
		var apiErr *APIError
		if err == nil || attempt >= opts.Retries || !errors.As(err, &apiErr) || !apiErr.Retryable() {
			return err
		}
		wait := backoff
		if apiErr.RetryAfter > 0 {
			wait = apiErr.RetryAfter
		}
		wait = min(wait, opts.MaxBackoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		backoff *= 2
	}
}

func newPushCommand() *cobra.Command {
	opts := PushOptions{}
	cmd := &cobra.Command{
		Use:   "push [file_path]",
		Short: "Upload a file to the gateway in resumable chunks",
		Long: `Hashes the file, opens an upload session and sends every chunk the
gateway does not hold yet, then asks the gateway to finalize it.

Example:
  scangate-upload push build/app.dll --chunk-size 8388608
  scangate-upload push build/app.dll --session 2b7e...  # resume`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}
			_, err = Push(cmd.Context(), client, args[0], opts, cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().Int64VarP(&opts.ChunkSize, "chunk-size", "c", defaultChunkSize, "Chunk size in bytes")
	cmd.Flags().StringVar(&opts.SessionId, "session", "", "Resume an existing upload session")
	cmd.Flags().IntVarP(&opts.Retries, "retries", "r", 3, "Retries per request on 429/5xx answers")
	cmd.Flags().DurationVar(&opts.MaxBackoff, "max-backoff", 30*time.Second, "Longest wait between retries")
	return cmd
}

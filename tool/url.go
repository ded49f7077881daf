package tool

import (
	"fmt"
	"net/url"
)

// BuildInitiateURL builds the backend {base}/uploads/initiate URL.
func BuildInitiateURL(base string) (string, error) {
	return joinBackendURL(base, "uploads", "initiate")
}

// BuildChunkURL builds the backend {base}/uploads/{uploadId}/chunks URL.
func BuildChunkURL(base, uploadId string) (string, error) {
	if uploadId == "" {
		return "", fmt.Errorf("uploadId must not be empty")
	}
	return joinBackendURL(base, "uploads", uploadId, "chunks")
}

// BuildCompleteURL builds the backend {base}/uploads/{uploadId}/complete URL.
func BuildCompleteURL(base, uploadId string) (string, error) {
	if uploadId == "" {
		return "", fmt.Errorf("uploadId must not be empty")
	}
	return joinBackendURL(base, "uploads", uploadId, "complete")
}

func joinBackendURL(base string, elem ...string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("failed to parse backend URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("backend URL must be http or https, got %q", base)
	}
	escaped := make([]string, len(elem))
	for i, e := range elem {
		escaped[i] = url.PathEscape(e)
	}
	return u.JoinPath(escaped...).String(), nil
}

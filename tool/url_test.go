package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildBackendURLs(t *testing.T) {
	base := "https://scan.example.com/api/v1/"

	initiate, err := BuildInitiateURL(base)
	require.NoError(t, err)
	assert.Equal(t, "https://scan.example.com/api/v1/uploads/initiate", initiate)

	chunk, err := BuildChunkURL(base, "up-1")
	require.NoError(t, err)
	assert.Equal(t, "https://scan.example.com/api/v1/uploads/up-1/chunks", chunk)

	complete, err := BuildCompleteURL("http://127.0.0.1:9000", "up-1")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9000/uploads/up-1/complete", complete)
}

func TestBuildBackendURLsEscapeUploadId(t *testing.T) {
	u, err := BuildChunkURL("http://backend", "a/../b")
	require.NoError(t, err)
	assert.Equal(t, "http://backend/uploads/a%2F..%2Fb/chunks", u)
}

func TestBuildBackendURLsRejectBadInput(t *testing.T) {
	_, err := BuildChunkURL("http://backend", "")
	assert.Error(t, err)
	_, err = BuildCompleteURL("http://backend", "")
	assert.Error(t, err)
	_, err = BuildInitiateURL("ftp://backend")
	assert.Error(t, err)
	_, err = BuildInitiateURL("://bad")
	assert.Error(t, err)
}

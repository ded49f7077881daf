package transfer

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyoez/scangate/types"
)

func newRequest(t *testing.T) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, "http://backend.local/uploads/initiate", nil)
	require.NoError(t, err)
	return req
}

func TestForwarderAuthPriority(t *testing.T) {
	cfg := types.BackendConfig{APIKey: "key-1", ServiceToken: "svc-cfg"}

	tests := []struct {
		name       string
		cfg        types.BackendConfig
		ident      types.Identity
		wantAuth   string
		wantAPIKey string
	}{
		{"bearer suppresses configured credentials", cfg, types.Identity{BearerToken: "user"}, "Bearer user", ""},
		{"caller service token", cfg, types.Identity{ServiceToken: "svc-call"}, "Bearer svc-call", ""},
		{"configured service token", cfg, types.Identity{}, "Bearer svc-cfg", ""},
		{"api key fallback", types.BackendConfig{APIKey: "key-1"}, types.Identity{}, "", "key-1"},
		{"nothing configured", types.BackendConfig{}, types.Identity{}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest(t)
			req.Header.Set(HeaderAPIKey, "stale")
			NewForwarder(tt.cfg).Apply(req, tt.ident)
			assert.Equal(t, tt.wantAuth, req.Header.Get("Authorization"))
			assert.Equal(t, tt.wantAPIKey, req.Header.Get(HeaderAPIKey))
			assert.LessOrEqual(t, len(req.Header.Values("Authorization"))+len(req.Header.Values(HeaderAPIKey)), 1)
		})
	}
}

func TestForwarderIdentityHeaders(t *testing.T) {
	req := newRequest(t)
	NewForwarder(types.BackendConfig{}).Apply(req, types.Identity{
		ClientIP:     "203.0.113.9",
		ForwardedFor: "203.0.113.9, 10.0.0.1",
		Origin:       "https://app.example",
		Referer:      "https://app.example/upload",
	})
	assert.Equal(t, "https://app.example", req.Header.Get("Origin"))
	assert.Equal(t, "https://app.example/upload", req.Header.Get("Referer"))
	assert.Equal(t, "203.0.113.9, 10.0.0.1, 203.0.113.9", req.Header.Get("X-Forwarded-For"))
	assert.Contains(t, req.Header.Get("User-Agent"), "scangate/")
}

func TestMergeForwardedFor(t *testing.T) {
	assert.Equal(t, "1.1.1.1", MergeForwardedFor("", "1.1.1.1"))
	assert.Equal(t, "1.1.1.1, 2.2.2.2", MergeForwardedFor("1.1.1.1", "2.2.2.2"))
	assert.Equal(t, "1.1.1.1, 2.2.2.2", MergeForwardedFor(" 1.1.1.1 ,, 2.2.2.2", "2.2.2.2"))
	assert.Equal(t, "1.1.1.1", MergeForwardedFor("1.1.1.1", "unknown"))
	assert.Equal(t, "", MergeForwardedFor("", ""))
}

func TestForwarderWaitPaces(t *testing.T) {
	f := NewForwarder(types.BackendConfig{RatePerSecond: 1, Burst: 1})
	ctx := context.Background()
	require.NoError(t, f.Wait(ctx))

	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	assert.Error(t, f.Wait(short))

	assert.NoError(t, NewForwarder(types.BackendConfig{}).Wait(ctx))
}

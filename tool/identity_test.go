package tool

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveClientIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{
			name: "forwarded for wins",
			headers: map[string]string{
				HeaderForwardedFor:   " 203.0.113.7 , 10.0.0.1",
				HeaderRealIP:         "198.51.100.2",
				HeaderCFConnectingIP: "192.0.2.9",
			},
			want: "203.0.113.7",
		},
		{
			name: "empty forwarded hops are skipped",
			headers: map[string]string{
				HeaderForwardedFor: " , 203.0.113.8",
			},
			want: "203.0.113.8",
		},
		{
			name: "real ip",
			headers: map[string]string{
				HeaderRealIP:         "198.51.100.2",
				HeaderCFConnectingIP: "192.0.2.9",
			},
			want: "198.51.100.2",
		},
		{
			name:    "cloudflare",
			headers: map[string]string{HeaderCFConnectingIP: "192.0.2.9"},
			want:    "192.0.2.9",
		},
		{
			name:    "nothing",
			headers: map[string]string{},
			want:    UnknownClient,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			assert.Equal(t, tt.want, ResolveClientIdentifier(h))
		})
	}
}

func TestSplitForwardedFor(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitForwardedFor(" a,, b ,c "))
	assert.Empty(t, SplitForwardedFor(""))
}

func TestBearerToken(t *testing.T) {
	h := http.Header{}
	assert.Empty(t, BearerToken(h))

	h.Set("Authorization", "Bearer abc.def")
	assert.Equal(t, "abc.def", BearerToken(h))

	h.Set("Authorization", "bearer   spaced ")
	assert.Equal(t, "spaced", BearerToken(h))

	h.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Empty(t, BearerToken(h))

	h.Set("Authorization", "Bearer")
	assert.Empty(t, BearerToken(h))
}

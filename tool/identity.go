package tool

import (
	"net/http"
	"strings"
)

// UnknownClient is the shared bucket for requests without any identifying header.
const UnknownClient = "unknown"

const (
	HeaderForwardedFor   = "X-Forwarded-For"
	HeaderRealIP         = "X-Real-IP"
	HeaderCFConnectingIP = "CF-Connecting-IP"
)

// ResolveClientIdentifier picks the client key: first X-Forwarded-For entry,
// then X-Real-IP, then CF-Connecting-IP, then "unknown".
func ResolveClientIdentifier(h http.Header) string {
	if first := FirstForwardedFor(h.Get(HeaderForwardedFor)); first != "" {
		return first
	}
	if ip := strings.TrimSpace(h.Get(HeaderRealIP)); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(h.Get(HeaderCFConnectingIP)); ip != "" {
		return ip
	}
	return UnknownClient
}

// FirstForwardedFor returns the first non-empty hop of an X-Forwarded-For chain.
func FirstForwardedFor(chain string) string {
	for _, hop := range strings.Split(chain, ",") {
		if hop = strings.TrimSpace(hop); hop != "" {
			return hop
		}
	}
	return ""
}

// SplitForwardedFor returns the non-empty hops of an X-Forwarded-For chain in order.
func SplitForwardedFor(chain string) []string {
	parts := strings.Split(chain, ",")
	hops := make([]string, 0, len(parts))
	for _, hop := range parts {
		if hop = strings.TrimSpace(hop); hop != "" {
			hops = append(hops, hop)
		}
	}
	return hops
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(h http.Header) string {
	auth := strings.TrimSpace(h.Get("Authorization"))
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(auth[7:])
}

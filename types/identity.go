package types

// Identity is what the gateway knows about the caller of one inbound request.
// It is never stored with a session; every backend call forwards the identity
// of the request that triggered it.
type Identity struct {
	BearerToken  string // from the inbound Authorization header
	ServiceToken string // caller-supplied service credential, used when no bearer is present
	ClientIP     string // resolved real client IP
	ForwardedFor string // inbound X-Forwarded-For chain, untouched
	Origin       string
	Referer      string
}

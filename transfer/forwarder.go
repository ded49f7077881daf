package transfer

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/moyoez/scangate/tool"
	"github.com/moyoez/scangate/types"
)

const HeaderAPIKey = "X-API-Key"

// Forwarder attaches identity and credentials to every outbound backend call.
type Forwarder struct {
	apiKey       string
	serviceToken string
	userAgent    string
	limiter      *rate.Limiter
}

// NewForwarder builds a Forwarder from the backend config. RatePerSecond <= 0
// disables outbound pacing.
func NewForwarder(cfg types.BackendConfig) *Forwarder {
	f := &Forwarder{
		apiKey:       cfg.APIKey,
		serviceToken: cfg.ServiceToken,
		userAgent:    tool.UserAgent(),
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return f
}

// Apply sets auth and identity headers on req. Exactly one credential is
// attached: the inbound bearer token, else a service token, else the API key.
func (f *Forwarder) Apply(req *http.Request, ident types.Identity) {
	req.Header.Del("Authorization")
	req.Header.Del(HeaderAPIKey)

	serviceToken := ident.ServiceToken
	if serviceToken == "" {
		serviceToken = f.serviceToken
	}
	switch {
	case ident.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+ident.BearerToken)
	case serviceToken != "":
		req.Header.Set("Authorization", "Bearer "+serviceToken)
	case f.apiKey != "":
		req.Header.Set(HeaderAPIKey, f.apiKey)
	}

	if ident.Origin != "" {
		req.Header.Set("Origin", ident.Origin)
	}
	if ident.Referer != "" {
		req.Header.Set("Referer", ident.Referer)
	}
	if chain := MergeForwardedFor(ident.ForwardedFor, ident.ClientIP); chain != "" {
		req.Header.Set(tool.HeaderForwardedFor, chain)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
}

// Wait blocks until the outbound pacer admits one more call.
func (f *Forwarder) Wait(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("backend rate limiter: %w", err)
	}
	return nil
}

// MergeForwardedFor keeps the inbound proxy chain and appends clientIP unless
// it is already the last hop.
func MergeForwardedFor(chain, clientIP string) string {
	hops := tool.SplitForwardedFor(chain)
	clientIP = strings.TrimSpace(clientIP)
	if clientIP != "" && clientIP != tool.UnknownClient {
		if len(hops) == 0 || hops[len(hops)-1] != clientIP {
			hops = append(hops, clientIP)
		}
	}
	return strings.Join(hops, ", ")
}

package models

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/moyoez/scangate/types"
)

func ParseInitiateRequest(body []byte) (*types.InitiateRequest, error) {
	var request types.InitiateRequest
	if err := sonic.Unmarshal(body, &request); err != nil {
		return nil, fmt.Errorf("failed to parse initiate request: %v", err)
	}
	return &request, nil
}

// ParseCompleteRequest returns the session id of a complete request. The id
// must be a non-empty JSON string.
func ParseCompleteRequest(body []byte) (string, error) {
	var request types.CompleteRequest
	if err := sonic.Unmarshal(body, &request); err != nil {
		return "", fmt.Errorf("failed to parse complete request: %v", err)
	}
	sessionId, ok := request.SessionId.(string)
	if !ok || strings.TrimSpace(sessionId) == "" {
		return "", fmt.Errorf("sessionId must be a non-empty string")
	}
	return sessionId, nil
}

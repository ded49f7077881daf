// Package notify publishes upload lifecycle events to connected observers.
package notify

import (
	"sync"

	"github.com/bytedance/sonic"

	"github.com/moyoez/scangate/tool"
	"github.com/moyoez/scangate/types"
)

// MaxNotifyPayload is the largest event sent as-is; bigger events lose their Data.
const MaxNotifyPayload = 32 * 1024 // 32KB

var (
	mu        sync.RWMutex
	hub       types.NotifyHub
	wsEnabled = true
)

// SetHub sets the hub events are broadcast to. nil disables broadcasting.
func SetHub(h types.NotifyHub) {
	mu.Lock()
	defer mu.Unlock()
	hub = h
}

// SetNotifyWSEnabled switches websocket broadcasting on or off.
func SetNotifyWSEnabled(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	wsEnabled = enabled
}

// NotifyWSEnabled reports whether events reach websocket clients.
func NotifyWSEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return wsEnabled && hub != nil
}

// Publish broadcasts the notification when a hub is set and enabled.
func Publish(notification *types.Notification) {
	if notification == nil {
		return
	}
	mu.RLock()
	h, enabled := hub, wsEnabled
	mu.RUnlock()
	if h == nil || !enabled {
		return
	}

	if payload, err := sonic.Marshal(notification); err == nil && len(payload) > MaxNotifyPayload {
		tool.DefaultLogger.Warnf("[Notify] %s payload too large (%d bytes), dropping data", notification.Type, len(payload))
		trimmed := *notification
		trimmed.Data = nil
		notification = &trimmed
	}
	tool.DefaultLogger.Debugf("[Notify] %s - %s", notification.Type, notification.Title)
	h.Broadcast(notification)
}

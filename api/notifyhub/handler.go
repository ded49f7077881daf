package notifyhub

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/moyoez/scangate/tool"
)

const maxClientMessage = 4096

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the route sits behind OnlyAllowLocal
	},
}

// HandleNotifyWS upgrades an observer connection and keeps it registered with
// hub until the client goes away.
func HandleNotifyWS(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			tool.DefaultLogger.Debugf("[NotifyWS] Upgrade failed: %v", err)
			return
		}
		defer func() {
			if err := conn.Close(); err != nil {
				tool.DefaultLogger.Debugf("[NotifyWS] Failed to close connection: %v", err)
			}
		}()

		// observers only listen; anything they send is read and dropped
		conn.SetReadLimit(maxClientMessage)
		hub.Register(conn)
		defer hub.Unregister(conn)
		tool.DefaultLogger.Debugf("[NotifyWS] Observer %s connected (%d total)", conn.RemoteAddr(), hub.Len())

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}
}

package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/choregate/internal/auth"
)

// HandleWebSocket upgrades a request already authenticated by
// middleware.RequireActor and streams that user's events.
func HandleWebSocket(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	logger = logger.With("component", "websocket")
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := auth.FromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		// The server only listens on the household LAN.
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			logger.Warn("websocket accept failed", "user_id", actor.UserID, "error", err)
			return
		}
		defer conn.CloseNow()

		logger.Debug("client connected", "user_id", actor.UserID)
		if err := NewClient(hub, conn, actor.UserID).Run(r.Context()); err != nil {
			logger.Debug("client disconnected", "user_id", actor.UserID, "error", err)
			return
		}
		conn.Close(ws.StatusNormalClosure, "")
	}
}

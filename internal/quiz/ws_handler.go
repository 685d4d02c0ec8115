package quiz

import (
	"net/http"

	"github.com/classpulse/classpulse/internal/server"
	"github.com/classpulse/classpulse/pkg/http/ws"
)

// HandleWebSocket upgrades an HTTP request to a WebSocket connection and
// hands it to the message router. There is no authentication: the session
// code inside each command is the only credential.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := server.WSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.HandleConnection(ws.NewConnection(conn, h.logger))
}

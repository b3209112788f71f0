package handler

import (
	"net/http"

	"notesync/internal/logging"
	"notesync/internal/middleware"
	"notesync/internal/websocket"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	manager  *websocket.Manager
	auth     middleware.Authenticator
	logger   logging.Logger
	upgrader ws.Upgrader
}

func NewWebSocketHandler(manager *websocket.Manager, auth middleware.Authenticator, logger logging.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		manager: manager,
		auth:    auth,
		logger:  logger.With("component", "ws_handler"),
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleConnection upgrades an authenticated request to a notification
// stream. The token comes from the "token" query parameter, which browsers
// can set, or from the Authorization header.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = middleware.BearerToken(r)
	}
	if token == "" {
		http.Error(w, "missing authorization token", http.StatusUnauthorized)
		return
	}

	identity, err := h.auth.Authenticate(ctx, token, false)
	if err != nil {
		h.logger.Debug(ctx, "websocket auth failed", "error", err)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	deviceID := identity.DeviceID
	if deviceID == "" {
		deviceID = r.URL.Query().Get("device_id")
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(ctx, "websocket upgrade failed", "error", err)
		return
	}

	client := websocket.NewClient(uuid.New().String(), identity.UserID, deviceID, conn, h.manager)
	h.manager.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

// WebSocketMessageHandler answers the few messages clients send upstream.
type WebSocketMessageHandler struct {
	manager *websocket.Manager
}

func NewWebSocketMessageHandler(manager *websocket.Manager) *WebSocketMessageHandler {
	return &WebSocketMessageHandler{manager: manager}
}

func (h *WebSocketMessageHandler) HandleWebSocketMessage(client *websocket.Client, msg *websocket.Message) error {
	switch msg.Type {
	case websocket.TypePing:
		pong, err := websocket.NewMessage(websocket.TypePong, nil)
		if err != nil {
			return err
		}
		return h.manager.SendToClient(client, pong)
	}
	return nil
}

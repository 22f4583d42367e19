package handlers

import (
	"log"
	"net/http"

	"github.com/Dosada05/stage-engine/brackets"
	"github.com/Dosada05/stage-engine/services"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin filtering happens in the CORS layer for the REST routes;
		// subscription streams carry no payload, so any origin may listen.
		return true
	},
}

type WebSocketHandler struct {
	hub          *brackets.Hub
	stageService services.StageService
}

func NewWebSocketHandler(hub *brackets.Hub, ss services.StageService) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, stageService: ss}
}

// ServeWs handles GET /ws/stages/{stageID}: upgrades the connection and
// subscribes the client to the stage's change-class events.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	stageID, err := getIDFromURL(r, "stageID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	// Reject subscriptions to stages that do not exist before upgrading.
	if _, err := h.stageService.GetStage(r.Context(), stageID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		log.Printf("failed to upgrade connection for stage %d: %v", stageID, err)
		return
	}

	client := brackets.NewClient(h.hub, conn, stageID)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

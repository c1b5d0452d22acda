package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/pageza/nutricalc/backend/internal/service"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EventHub fans meal events out to websocket clients.
type EventHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// HubStats reports the number of connected clients.
type HubStats struct {
	WSClients int `json:"ws_clients"`
}

// eventMessage is the wire form of a meal event
type eventMessage struct {
	Type  string            `json:"type"`
	Kind  service.EventKind `json:"kind"`
	Names []string          `json:"names,omitempty"`
}

func NewEventHub() *EventHub {
	return &EventHub{clients: make(map[*websocket.Conn]struct{})}
}

// Listen subscribes the hub to meal and returns the unsubscribe func.
func (h *EventHub) Listen(meal service.IMealService) func() {
	return meal.Subscribe(func(e service.Event) {
		h.BroadcastJSON(eventMessage{Type: "event", Kind: e.Kind, Names: e.Names})
	})
}

func (h *EventHub) AddWS(ws *websocket.Conn) {
	h.mu.Lock()
	h.clients[ws] = struct{}{}
	h.mu.Unlock()
}

func (h *EventHub) RemoveWS(ws *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, ws)
	h.mu.Unlock()
	_ = ws.Close()
}

// BroadcastJSON writes v to every client, dropping the ones that fail.
func (h *EventHub) BroadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("[ws] failed to marshal broadcast: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for ws := range h.clients {
		if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
			_ = ws.Close()
			delete(h.clients, ws)
		}
	}
}

func (h *EventHub) Stats() HubStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HubStats{WSClients: len(h.clients)}
}

// WSHandler upgrades the request and streams meal events until the client goes away.
func WSHandler(hub *EventHub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[ws] upgrade failed: %v", err)
			return
		}

		// welcome goes out before the client is registered so it is always the first frame
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"welcome","transport":"websocket"}`))
		hub.AddWS(ws)
		log.Println("[ws] client connected")

		// incoming frames are ignored
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		hub.RemoveWS(ws)
		log.Println("[ws] client disconnected")
	}
}

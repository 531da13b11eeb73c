package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/alexbotov/tokenburner/internal/domain"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsReadLimit  = 4096
)

// WSMessage is the envelope of every WebSocket message in both directions
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsClient is one connection playing one game
type wsClient struct {
	conn    *websocket.Conn
	send    chan []byte
	gameID  string
	agentID string
}

// HandleWebSocket handles GET /games/{gameId}/ws.
// The game must exist and still be playing when the connection opens.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameId"]

	state, err := h.game.Status(r.Context(), gameID)
	if err != nil {
		h.respondGameError(w, err)
		return
	}
	if state.Status != domain.GameStatusPlaying {
		respondError(w, http.StatusBadRequest, "GAME_NOT_PLAYING", "Game is not in playing state")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("websocket upgrade error: %v", err)
		return
	}

	c := &wsClient{
		conn:    conn,
		send:    make(chan []byte, 256),
		gameID:  gameID,
		agentID: agentFromContext(r.Context()),
	}

	go c.writePump()
	h.readPump(c)
}

// writePump moves queued messages to the connection and keeps it alive with pings
func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump handles incoming messages until the connection closes.
// It is the only sender on c.send and closes it on return.
func (h *Handler) readPump(c *wsClient) {
	defer close(c.send)

	c.conn.SetReadLimit(wsReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	h.sendMessage(c, "connected", map[string]string{"gameId": c.gameID})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Printf("websocket error: %v", err)
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.sendError(c, "INVALID_MESSAGE", "Invalid message format")
			continue
		}
		h.handleWSMessage(c, &msg)
	}
}

func (h *Handler) handleWSMessage(c *wsClient, msg *WSMessage) {
	ctx := context.Background()

	switch msg.Type {
	case "action":
		var payload actionRequest
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			h.sendError(c, "INVALID_PAYLOAD", "Invalid action payload")
			return
		}
		if _, code, message, blocked := accessError(h.control.CheckAccess(c.agentID)); blocked {
			h.sendError(c, code, message)
			return
		}
		result, err := h.game.PerformAction(ctx, c.gameID, payload.Method)
		if err != nil {
			h.sendGameError(c, err)
			return
		}
		h.sendMessage(c, "action_result", result)

	case "status":
		state, err := h.game.Status(ctx, c.gameID)
		if err != nil {
			h.sendGameError(c, err)
			return
		}
		h.sendMessage(c, "status", state)

	case "finish":
		result, err := h.game.Finish(ctx, c.gameID)
		if err != nil {
			h.sendGameError(c, err)
			return
		}
		h.sendMessage(c, "finished", result)

	case "ping":
		h.sendMessage(c, "pong", map[string]int64{"timestamp": time.Now().Unix()})

	default:
		h.sendError(c, "UNKNOWN_MESSAGE", "Unknown message type: "+msg.Type)
	}
}

// sendMessage queues a message, dropping it when the client is too slow to keep up
func (h *Handler) sendMessage(c *wsClient, msgType string, payload interface{}) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		h.logger.Printf("websocket encode error: %v", err)
		return
	}
	msgBytes, _ := json.Marshal(WSMessage{Type: msgType, Payload: payloadBytes})

	select {
	case c.send <- msgBytes:
	default:
	}
}

func (h *Handler) sendError(c *wsClient, code, message string) {
	h.sendMessage(c, "error", APIError{Error: message, Code: code})
}

func (h *Handler) sendGameError(c *wsClient, err error) {
	status, code, message := gameError(err)
	if status == http.StatusInternalServerError {
		h.logger.Printf("game error: %v", err)
	}
	h.sendError(c, code, message)
}

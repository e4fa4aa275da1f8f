package server

import (
	"context"
	stdjson "encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	eventbus "github.com/shaipe/async-graphql/internal/eventbus"
	events "github.com/shaipe/async-graphql/internal/events"
	executor "github.com/shaipe/async-graphql/internal/executor"
	language "github.com/shaipe/async-graphql/internal/language"
	reqid "github.com/shaipe/async-graphql/internal/reqid"
)

// graphql-transport-ws message types.
const (
	msgConnectionInit = "connection_init"
	msgConnectionAck  = "connection_ack"
	msgPing           = "ping"
	msgPong           = "pong"
	msgSubscribe      = "subscribe"
	msgNext           = "next"
	msgError          = "error"
	msgComplete       = "complete"
)

const (
	// heartbeatInterval is how often the server pings an idle connection.
	heartbeatInterval = 5 * time.Second
	// clientTimeout closes the connection when the peer stays silent this long.
	clientTimeout = 10 * time.Second
	// initTimeout bounds how long a connection may stay unacknowledged.
	initTimeout = 10 * time.Second
)

type wsMessage struct {
	ID      string             `json:"id,omitempty"`
	Type    string             `json:"type"`
	Payload stdjson.RawMessage `json:"payload,omitempty"`
}

// WebsocketHandler serves GraphQL subscriptions (and one-shot operations)
// over the graphql-transport-ws protocol.
type WebsocketHandler struct {
	exec     *executor.Executor
	upgrader websocket.Upgrader
}

// NewWebsocket builds a websocket endpoint sharing the HTTP handler's
// executor.
func NewWebsocket(h *Handler) *WebsocketHandler {
	return &WebsocketHandler{
		exec: h.Executor(),
		upgrader: websocket.Upgrader{
			Subprotocols:    []string{"graphql-transport-ws"},
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Origin policy is enforced by the surrounding HTTP stack.
				return true
			},
		},
	}
}

func (h *WebsocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	ctx, _ = reqid.NewContext(ctx)
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	started := time.Now()
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: http.StatusSwitchingProtocols, Duration: time.Since(started)})
	}()

	c := &wsConn{
		conn:    conn,
		exec:    h.exec,
		ctx:     ctx,
		cancel:  cancel,
		streams: make(map[string]context.CancelFunc),
	}
	c.run()
}

// wsConn is the per-connection state: one writer lock, one stream registry.
type wsConn struct {
	conn   *websocket.Conn
	exec   *executor.Executor
	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex

	mu      sync.Mutex
	acked   bool
	streams map[string]context.CancelFunc
}

func (c *wsConn) run() {
	defer c.close()

	c.conn.SetReadLimit(1 << 20)
	_ = c.conn.SetReadDeadline(time.Now().Add(initTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(clientTimeout))
	})

	go c.heartbeat()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(clientTimeout))

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.closeWithReason(websocket.CloseInvalidFramePayloadData, "invalid message")
			return
		}

		switch msg.Type {
		case msgConnectionInit:
			c.mu.Lock()
			already := c.acked
			c.acked = true
			c.mu.Unlock()
			if already {
				c.closeWithReason(4429, "too many initialisation requests")
				return
			}
			c.send(wsMessage{Type: msgConnectionAck})
		case msgPing:
			c.send(wsMessage{Type: msgPong})
		case msgPong:
			// Keepalive only.
		case msgSubscribe:
			if !c.isAcked() {
				c.closeWithReason(4401, "unauthorized")
				return
			}
			c.handleSubscribe(msg)
		case msgComplete:
			c.stopStream(msg.ID)
		default:
			c.closeWithReason(websocket.CloseProtocolError, "unexpected message type "+msg.Type)
			return
		}
	}
}

func (c *wsConn) heartbeat() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(heartbeatInterval))
			c.writeMu.Unlock()
			if err != nil {
				c.cancel()
				return
			}
		}
	}
}

func (c *wsConn) handleSubscribe(msg wsMessage) {
	var req GraphQLRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil || req.Query == "" {
		c.sendError(msg.ID, "invalid subscribe payload")
		return
	}

	doc, err := language.ParseQuery(req.Query)
	if err != nil {
		c.sendError(msg.ID, err.Error())
		return
	}

	opDef := doc.Operations.ForName(req.OperationName)
	if opDef == nil && len(doc.Operations) == 1 {
		opDef = doc.Operations[0]
	}

	c.mu.Lock()
	if _, exists := c.streams[msg.ID]; exists {
		c.mu.Unlock()
		c.closeWithReason(4409, "subscriber already exists: "+msg.ID)
		return
	}
	streamCtx, stop := context.WithCancel(c.ctx)
	c.streams[msg.ID] = stop
	c.mu.Unlock()

	if opDef == nil || opDef.Operation != language.Subscription {
		// One-shot operation over the socket.
		go func() {
			defer c.stopStream(msg.ID)
			resp := c.exec.ExecuteRequest(streamCtx, doc, req.OperationName, req.Variables, nil)
			c.sendResponse(msg.ID, resp)
			c.send(wsMessage{ID: msg.ID, Type: msgComplete})
		}()
		return
	}

	ch, err := c.exec.ExecuteSubscription(streamCtx, doc, req.OperationName, req.Variables)
	if err != nil {
		c.stopStream(msg.ID)
		c.sendError(msg.ID, err.Error())
		return
	}

	go func() {
		defer c.stopStream(msg.ID)
		for resp := range ch {
			c.sendResponse(msg.ID, resp)
		}
		c.send(wsMessage{ID: msg.ID, Type: msgComplete})
	}()
}

func (c *wsConn) sendResponse(id string, resp *executor.Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		c.sendError(id, err.Error())
		return
	}
	c.send(wsMessage{ID: id, Type: msgNext, Payload: payload})
}

func (c *wsConn) sendError(id, message string) {
	payload, _ := json.Marshal([]map[string]any{{"message": message}})
	c.send(wsMessage{ID: id, Type: msgError, Payload: payload})
}

func (c *wsConn) send(msg wsMessage) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.WriteJSON(msg)
}

func (c *wsConn) isAcked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acked
}

func (c *wsConn) stopStream(id string) {
	c.mu.Lock()
	stop, ok := c.streams[id]
	if ok {
		delete(c.streams, id)
	}
	c.mu.Unlock()
	if ok {
		stop()
	}
}

func (c *wsConn) closeWithReason(code int, reason string) {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	c.writeMu.Unlock()
}

func (c *wsConn) close() {
	c.cancel()
	c.mu.Lock()
	for id, stop := range c.streams {
		delete(c.streams, id)
		stop()
	}
	c.mu.Unlock()
	_ = c.conn.Close()
}

// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, the per-connection authentication state machine, and
// lifecycle control for each connection.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/campfire-chat/campfire/internal/protocol"
	"github.com/campfire-chat/campfire/internal/userdir"
)

// Client represents a WebSocket client connection in the chat system. A
// connection is anonymous until a register event succeeds, authenticated
// while it holds a session in the hub, and closed once unregistered; the
// hub's session map is the single source of truth for that state.
type Client struct {
	id             string
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	addr           string
	closed         bool
	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      RateLimitConfig
}

// NewClient creates a new Client instance with the provided WebSocket
// connection, hub reference, and client address. The client's send channel
// is buffered to handle message queuing.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	limiter := newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval)

	return &Client{
		id:             uuid.NewString(),
		conn:           conn,
		send:           make(chan []byte, 256),
		hub:            hub,
		addr:           addr,
		closed:         false,
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    limiter,
		rateLimit:      cfg.RateLimit,
	}
}

// GetSendChan returns the client's send channel for reading outgoing messages.
// This channel is read-only from the caller's perspective.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

// enqueue queues a payload directly onto the send channel, for pushes that
// must happen before the hub has processed the client's registration (the
// serverInfo greeting). Full buffers drop the payload.
func (c *Client) enqueue(payload []byte) {
	select {
	case c.send <- payload:
	default:
	}
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		log.Printf("Error setting initial read deadline for %s: %v", c.addr, err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			log.Printf("Error setting read deadline in pong handler for %s: %v", c.addr, err)
		}
		return nil
	})
}

// handleReadError logs appropriate error messages based on the error type
// and returns true if the read loop should break
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, websocket.ErrReadLimit) {
		log.Printf("Message from %s exceeded maximum size of %d bytes", c.addr, c.maxMessageSize)
		return true
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		log.Printf("Client %s disconnected: %v", c.addr, err)
		return true
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		log.Printf("Client %s connection closed: %v", c.addr, err)
		return true
	}

	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig) {
		log.Printf("Unexpected WebSocket error from %s: %v", c.addr, err)
		return true
	}

	log.Printf("WebSocket read error from %s: %v", c.addr, err)
	return true
}

// checkRateLimit verifies if the client has exceeded rate limits
// and returns true if the message should be processed
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		log.Printf("Rate limit exceeded for %s (%d messages per %s); discarding message", c.addr, c.rateLimit.Burst, c.rateLimit.RefillInterval)
		return false
	}
	return true
}

// processMessage decodes an inbound envelope and dispatches it by event
// name. Register is the only event an anonymous connection can perform;
// every other event is authorized against the hub's session map and dropped
// silently when the connection is unbound. Unknown events are ignored.
func (c *Client) processMessage(rawMessage []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(rawMessage, &env); err != nil {
		log.Printf("Invalid message from %s: %v", c.addr, err)
		return
	}

	switch env.Event {
	case protocol.EventRegister:
		c.handleRegister(env.Data)
	case protocol.EventChat:
		c.handleChat(env.Data)
	case protocol.EventTyping:
		c.handleTyping(env.Data)
	case protocol.EventFile:
		c.handleFile(env.Data)
	case protocol.EventVideo:
		c.handleVideo(env.Data)
	}
}

// handleRegister authenticates the connection. On success the session is
// bound and, in order: the full message history and a welcome go to this
// connection, a join notice goes to everyone else, the refreshed user list
// goes to everyone, and the ack confirms to the sender. On failure the
// connection stays anonymous and the ack carries the reason.
func (c *Client) handleRegister(data json.RawMessage) {
	var req protocol.RegisterRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.hub.SendEvent(c, protocol.EventRegisterAck, protocol.Ack{Success: false, Message: "Invalid registration payload"})
		return
	}

	record, err := c.hub.users.AuthenticateOrCreate(req.Username, req.Password)
	if err != nil {
		c.hub.SendEvent(c, protocol.EventRegisterAck, protocol.Ack{Success: false, Message: registrationFailure(err)})
		return
	}

	c.hub.Bind(c, record.Username)

	c.hub.SendEvent(c, protocol.EventMessageHistory, c.hub.messages.LoadAll())
	c.hub.SendEvent(c, protocol.EventInfo, fmt.Sprintf("Welcome %s!", record.Username))

	log.Printf("%s has joined the chat", record.Username)
	c.hub.BroadcastEvent(c, protocol.EventInfo, record.Username+" has joined the chat")
	c.hub.BroadcastEvent(nil, protocol.EventUserList, c.hub.Presence())

	c.hub.SendEvent(c, protocol.EventRegisterAck, protocol.Ack{Success: true})
}

// registrationFailure maps an authentication error to the client-facing ack
// message. Validation and credential errors carry their own safe text;
// anything else is reported generically.
func registrationFailure(err error) string {
	var vErr *userdir.ValidationError
	if errors.As(err, &vErr) || errors.Is(err, userdir.ErrBadCredentials) {
		return err.Error()
	}
	log.Printf("Error in user registration: %v", err)
	return "Internal server error"
}

// handleChat persists a text message and broadcasts it to every connection,
// the sender included.
func (c *Client) handleChat(data json.RawMessage) {
	sender, ok := c.hub.Resolve(c)
	if !ok {
		return
	}

	var req protocol.ChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		log.Printf("Invalid chat payload from %s: %v", c.addr, err)
		return
	}

	msg := protocol.NewTextMessage(sender, req.Message)
	if err := c.hub.messages.Append(msg); err != nil {
		// The message was still broadcast live; only replayed history loses it.
		log.Printf("Error saving message: %v", err)
	}

	log.Printf("%s: %s", sender, req.Message)
	c.hub.BroadcastEvent(nil, protocol.EventChat, msg)
}

// handleTyping relays a typing indicator to everyone but the sender. The
// payload is the username while typing and null once the sender stops.
// Typing state is never persisted.
func (c *Client) handleTyping(data json.RawMessage) {
	sender, ok := c.hub.Resolve(c)
	if !ok {
		return
	}

	var typing bool
	if err := json.Unmarshal(data, &typing); err != nil {
		log.Printf("Invalid typing payload from %s: %v", c.addr, err)
		return
	}

	var name *string
	if typing {
		name = &sender
	}
	c.hub.BroadcastEvent(c, protocol.EventTyping, name)
}

// handleFile persists a file message built from upload metadata and
// announces it to every connection except the sender.
func (c *Client) handleFile(data json.RawMessage) {
	sender, ok := c.hub.Resolve(c)
	if !ok {
		return
	}

	var info protocol.FileInfo
	if err := json.Unmarshal(data, &info); err != nil {
		log.Printf("Invalid file payload from %s: %v", c.addr, err)
		return
	}

	msg := protocol.NewFileMessage(sender, info)
	if err := c.hub.messages.Append(msg); err != nil {
		log.Printf("Error saving file message: %v", err)
	}

	c.hub.BroadcastEvent(c, protocol.EventNewFile, msg)
}

// handleVideo persists a video message, announces it to the other
// connections, and confirms to the sender with a distinct video-sent event
// plus an explicit ack.
func (c *Client) handleVideo(data json.RawMessage) {
	sender, ok := c.hub.Resolve(c)
	if !ok {
		return
	}

	var req protocol.VideoRequest
	if err := json.Unmarshal(data, &req); err != nil {
		log.Printf("Invalid video payload from %s: %v", c.addr, err)
		return
	}

	msg := protocol.NewVideoMessage(sender, req)
	if err := c.hub.messages.Append(msg); err != nil {
		log.Printf("Error saving video message: %v", err)
	}

	c.hub.BroadcastEvent(c, protocol.EventVideo, msg)
	c.hub.SendEvent(c, protocol.EventVideoSent, msg)
	c.hub.SendEvent(c, protocol.EventVideoAck, protocol.Ack{Success: true})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		if err := c.conn.Close(); err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("Error closing connection in readPump: %v", err)
			}
		}
	}()

	c.setupReadConnection()

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			if c.handleReadError(err) {
				break
			}
		}

		if !c.checkRateLimit() {
			continue
		}

		c.processMessage(rawMessage)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil {
		// Only log unexpected connection close errors
		if !isExpectedCloseError(err) {
			log.Printf("Error closing connection in writePump: %v", err)
		}
	}
}

// handleMessage processes outgoing messages and returns false if the connection should be closed
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		log.Printf("Error setting write deadline for %s: %v", c.addr, err)
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	return c.writeTextMessage(message)
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing close message to %s: %v", c.addr, err)
		}
	}
	return false
}

// writeTextMessage writes a single text frame. Queued frames are flushed
// one per frame so envelope boundaries stay intact for the client decoder.
func (c *Client) writeTextMessage(message []byte) bool {
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		log.Printf("Error creating writer for %s: %v", c.addr, err)
		return false
	}

	if _, err := w.Write(message); err != nil {
		log.Printf("Error writing message to %s: %v", c.addr, err)
		return false
	}

	if err := w.Close(); err != nil {
		log.Printf("Error closing writer for %s: %v", c.addr, err)
		return false
	}
	return true
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		log.Printf("Error setting write deadline for ping to %s: %v", c.addr, err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		log.Printf("Error writing ping message to %s: %v", c.addr, err)
		return false
	}
	return true
}

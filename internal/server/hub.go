// Package server coordinates client registration, session tracking, message
// broadcast, and connection cleanup for the Campfire WebSocket service via
// the Hub type.
package server

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/campfire-chat/campfire/internal/protocol"
	"github.com/campfire-chat/campfire/internal/store"
	"github.com/campfire-chat/campfire/internal/userdir"
)

// Hub manages all WebSocket client connections, the connection-to-username
// session map, and the presence set, and routes every broadcast to its
// audience. All shared maps are guarded by the hub mutex.
//
// The session map assumes at most one live connection per username: a
// disconnect removes the username from the presence set unconditionally,
// so a second login for the same name would evict the first's presence.
type Hub struct {
	clients    map[*Client]bool
	sessions   map[*Client]string
	presence   map[string]struct{}
	users      *userdir.Directory
	messages   *store.Log
	broadcast  chan BroadcastMessage
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a Hub bound to the given user directory and message log.
// The returned Hub is ready to manage WebSocket connections once Run is
// started in its own goroutine.
func NewHub(users *userdir.Directory, messages *store.Log) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]bool),
		sessions:   make(map[*Client]string),
		presence:   make(map[string]struct{}),
		users:      users,
		messages:   messages,
		broadcast:  make(chan BroadcastMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// GetRegisterChan returns the channel used for registering new clients to the hub.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients from the hub.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// GetBroadcastChan returns the channel used for broadcasting messages.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetBroadcastChan() chan<- BroadcastMessage {
	return h.broadcast
}

// Bind records the session for an authenticated connection and adds the
// username to the presence set. Binding the same connection twice
// overwrites the previous session.
func (h *Hub) Bind(client *Client, username string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if prev, ok := h.sessions[client]; ok {
		delete(h.presence, prev)
	}
	h.sessions[client] = username
	h.presence[username] = struct{}{}
}

// Unbind removes the session for a connection and reports the username it
// was bound to. The username leaves the presence set unconditionally (see
// the single-session invariant on Hub). Unbinding an unbound connection is
// a no-op.
func (h *Hub) Unbind(client *Client) (string, bool) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	username, ok := h.sessions[client]
	if !ok {
		return "", false
	}
	delete(h.sessions, client)
	delete(h.presence, username)
	return username, true
}

// Resolve reports the username bound to a connection. Every post-auth event
// is authorized through Resolve; callers silently drop events from unbound
// connections.
func (h *Hub) Resolve(client *Client) (string, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	username, ok := h.sessions[client]
	return username, ok
}

// Presence returns a sorted snapshot of all usernames with a live session.
func (h *Hub) Presence() []string {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	names := make([]string, 0, len(h.presence))
	for username := range h.presence {
		names = append(names, username)
	}
	sort.Strings(names)
	return names
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in safeSend: %v", r)
		}
	}()

	// Hold the lock during the entire send operation to prevent race conditions
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	_, exists := h.clients[client]
	if !exists || client.closed {
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// SendEvent encodes an event envelope and queues it to a single connection,
// the sender-only audience. Delivery failures are logged and absorbed.
func (h *Hub) SendEvent(client *Client, event string, payload any) {
	data, err := protocol.Encode(event, payload)
	if err != nil {
		log.Printf("Error encoding %s event: %v", event, err)
		return
	}
	if !h.safeSend(client, data) {
		log.Printf("Dropped %s event for %s: client unavailable", event, client.addr)
	}
}

// BroadcastEvent encodes an event envelope and queues it for broadcast.
// A nil sender addresses every connection; a non-nil sender addresses every
// connection except the sender, matching the per-event audience table.
func (h *Hub) BroadcastEvent(sender *Client, event string, payload any) {
	data, err := protocol.Encode(event, payload)
	if err != nil {
		log.Printf("Error encoding %s event: %v", event, err)
		return
	}
	h.broadcast <- BroadcastMessage{Sender: sender, Payload: data}
}

// Run starts the hub's main event loop, handling client registration,
// unregistration with presence teardown, and message broadcasting. This
// method should be called in a separate goroutine as it runs indefinitely.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil client registration; skipping")
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mutex.Unlock()
			log.Printf("Client connected from %s. Total clients: %d", client.addr, clientCount)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.disconnect(client)

		case broadcastMsg := <-h.broadcast:
			h.handleBroadcast(broadcastMsg)
		}
	}
}

// disconnect removes a client from the hub and, if it held a session,
// announces the departure and the refreshed user list to everyone left.
// Safe to call for clients that were already removed.
func (h *Hub) disconnect(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.closed = true
		clientCount := len(h.clients)
		h.mutex.Unlock()
		// Close the channel after releasing the lock
		close(client.send)
		log.Printf("Client disconnected from %s. Total clients: %d", client.addr, clientCount)
	} else {
		h.mutex.Unlock()
	}

	username, bound := h.Unbind(client)
	if !bound {
		return
	}

	log.Printf("%s has left the chat", username)
	h.publishEvent(nil, protocol.EventInfo, username+" has left the chat")
	h.publishEvent(nil, protocol.EventUserList, h.Presence())
}

// publishEvent is BroadcastEvent for use inside the Run loop, where sending
// to the hub's own broadcast channel would deadlock.
func (h *Hub) publishEvent(sender *Client, event string, payload any) {
	data, err := protocol.Encode(event, payload)
	if err != nil {
		log.Printf("Error encoding %s event: %v", event, err)
		return
	}
	h.handleBroadcast(BroadcastMessage{Sender: sender, Payload: data})
}

// handleBroadcast delivers a broadcast message to its audience: every
// client when Sender is nil, every client but the sender otherwise.
func (h *Hub) handleBroadcast(broadcastMsg BroadcastMessage) {
	clients := h.getClientSnapshot()

	clientsToRemove := h.broadcastToClients(clients, broadcastMsg)
	h.removeFailedClients(clientsToRemove)
}

// getClientSnapshot returns a thread-safe snapshot of all current clients
func (h *Hub) getClientSnapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// broadcastToClients sends the message to the computed audience and returns
// the clients whose send buffers were full.
func (h *Hub) broadcastToClients(clients []*Client, broadcastMsg BroadcastMessage) []*Client {
	var clientsToRemove []*Client

	for _, client := range clients {
		if broadcastMsg.Sender != nil && client == broadcastMsg.Sender {
			continue
		}
		if !h.safeSend(client, broadcastMsg.Payload) {
			clientsToRemove = append(clientsToRemove, client)
		}
	}

	return clientsToRemove
}

// removeFailedClients removes clients that failed to receive messages and closes their channels
func (h *Hub) removeFailedClients(clientsToRemove []*Client) {
	if len(clientsToRemove) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range clientsToRemove {
		if _, exists := h.clients[client]; exists {
			delete(h.clients, client)
			client.closed = true
			channelsToClose = append(channelsToClose, client.send)
			log.Printf("Client from %s removed due to full send buffer", client.addr)
		}
	}
	h.mutex.Unlock()

	// Close channels after releasing the lock
	for _, ch := range channelsToClose {
		close(ch)
	}
}

// shutdownClients gracefully closes all active client connections
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error closing client connection from %s: %v", client.addr, err)
				}
			}
		}
	}

	log.Printf("Closed %d client connections", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	// Signal shutdown
	h.cancel()

	// Wait for Run() to complete
	<-h.done

	// Wait for all client goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}

package server

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/campfire-chat/campfire/internal/store"
	"github.com/campfire-chat/campfire/internal/userdir"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	dir := t.TempDir()
	return NewHub(
		userdir.Open(filepath.Join(dir, "users.json")),
		store.Open(filepath.Join(dir, "messages.json")),
	)
}

// TestNewHub verifies that NewHub returns a properly initialized Hub with
// all necessary channels and data structures.
func TestNewHub(t *testing.T) {
	h := newTestHub(t)

	if h == nil {
		t.Fatal("NewHub() returned nil")
	}

	if h.GetRegisterChan() == nil {
		t.Error("Register channel is nil")
	}
	if h.GetUnregisterChan() == nil {
		t.Error("Unregister channel is nil")
	}
	if h.GetBroadcastChan() == nil {
		t.Error("Broadcast channel is nil")
	}
}

// TestBindResolvePresence tests the session lifecycle: an authenticated
// binding is resolvable and visible in presence until unbound.
func TestBindResolvePresence(t *testing.T) {
	h := newTestHub(t)
	client := NewClient(nil, h, "test-addr")

	if _, ok := h.Resolve(client); ok {
		t.Error("Resolve succeeded for an unbound connection")
	}

	h.Bind(client, "alice")

	username, ok := h.Resolve(client)
	if !ok || username != "alice" {
		t.Errorf("Resolve = (%q, %v), want (alice, true)", username, ok)
	}
	if got := h.Presence(); !reflect.DeepEqual(got, []string{"alice"}) {
		t.Errorf("Presence = %v, want [alice]", got)
	}

	unbound, ok := h.Unbind(client)
	if !ok || unbound != "alice" {
		t.Errorf("Unbind = (%q, %v), want (alice, true)", unbound, ok)
	}
	if got := h.Presence(); len(got) != 0 {
		t.Errorf("Presence after unbind = %v, want empty", got)
	}
}

// TestUnbindIdempotent verifies that unbinding a connection with no session
// is a no-op and never panics.
func TestUnbindIdempotent(t *testing.T) {
	h := newTestHub(t)
	client := NewClient(nil, h, "test-addr")

	if _, ok := h.Unbind(client); ok {
		t.Error("Unbind reported a session for a never-bound connection")
	}

	h.Bind(client, "alice")
	h.Unbind(client)

	if _, ok := h.Unbind(client); ok {
		t.Error("second Unbind reported a session")
	}
}

// TestRebindOverwrites verifies that binding the same connection twice
// replaces the previous session instead of accumulating presence entries.
func TestRebindOverwrites(t *testing.T) {
	h := newTestHub(t)
	client := NewClient(nil, h, "test-addr")

	h.Bind(client, "alice")
	h.Bind(client, "alice2")

	username, ok := h.Resolve(client)
	if !ok || username != "alice2" {
		t.Errorf("Resolve = (%q, %v), want (alice2, true)", username, ok)
	}
	if got := h.Presence(); !reflect.DeepEqual(got, []string{"alice2"}) {
		t.Errorf("Presence = %v, want [alice2]", got)
	}
}

// TestPresenceSorted verifies the user list snapshot is deterministic.
func TestPresenceSorted(t *testing.T) {
	h := newTestHub(t)

	h.Bind(NewClient(nil, h, "c-addr"), "carol")
	h.Bind(NewClient(nil, h, "a-addr"), "alice")
	h.Bind(NewClient(nil, h, "b-addr"), "bob")

	want := []string{"alice", "bob", "carol"}
	if got := h.Presence(); !reflect.DeepEqual(got, want) {
		t.Errorf("Presence = %v, want %v", got, want)
	}
}

// TestHubShutdown verifies that Shutdown terminates the run loop within the
// timeout when no clients are connected.
func TestHubShutdown(t *testing.T) {
	h := newTestHub(t)
	go h.Run()

	if err := h.Shutdown(time.Second); err != nil {
		t.Errorf("Shutdown returned %v, want nil", err)
	}
}

// Package store persists the chat message log. The log is a single ordered
// sequence of messages written as a whole-file JSON snapshot on every
// append, matching the on-disk layout {"messages": [...]}.
package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/campfire-chat/campfire/internal/protocol"
)

type snapshot struct {
	Messages []protocol.Message `json:"messages"`
}

// Log is an append-only message log backed by a JSON snapshot file. Every
// append reloads the file, appends, and rewrites the full snapshot; the
// mutex is held across the whole cycle so concurrent appends from different
// connections serialize instead of overwriting each other.
type Log struct {
	mu   sync.Mutex
	path string
}

// Open returns a Log backed by the given file. The file and its directory
// are created on first append; a missing file reads as an empty log.
func Open(path string) *Log {
	return &Log{path: path}
}

// Append adds a message to the end of the log and rewrites the snapshot.
// The returned error reports I/O failure only; the caller is expected to
// log it and continue, since the message has already been broadcast live.
func (l *Log) Append(msg protocol.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := l.load()
	snap.Messages = append(snap.Messages, msg)
	return l.write(snap)
}

// LoadAll returns every message in append order. Read or parse failures
// yield an empty slice: losing history is non-fatal to session start. The
// result is never nil so an empty history serializes as [].
func (l *Log) LoadAll() []protocol.Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	messages := l.load().Messages
	if messages == nil {
		messages = []protocol.Message{}
	}
	return messages
}

func (l *Log) load() snapshot {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Error loading messages from %s: %v", l.path, err)
		}
		return snapshot{}
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Printf("Error parsing messages in %s: %v", l.path, err)
		return snapshot{}
	}
	return snap
}

func (l *Log) write(snap snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding message log: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return fmt.Errorf("writing message log: %w", err)
	}
	return nil
}

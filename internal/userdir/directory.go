// Package userdir owns the durable credential and profile table, keyed by
// username. Records live in a single JSON snapshot file ({"users": {...}})
// that is reloaded and rewritten whole on every successful authentication.
package userdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrBadCredentials is returned when a known username is presented with the
// wrong password. Its text is safe to relay to the client.
var ErrBadCredentials = errors.New("Incorrect password")

// ValidationError reports a malformed username or password. Its text is the
// client-facing failure reason carried in the registration ack.
type ValidationError struct {
	reason string
}

func (e *ValidationError) Error() string { return e.reason }

var (
	errMissingCredentials = &ValidationError{"Username and password are required"}
	errUsernameTooLong    = &ValidationError{"Username is too long (max 20 characters)"}
	errUsernameInvalid    = &ValidationError{"Username can only contain letters, numbers, underscores, and hyphens"}
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// UserRecord is one credential/profile entry. The password hash keeps the
// JSON key "password" so existing table files remain readable. Timestamps
// are wall-clock milliseconds.
type UserRecord struct {
	Username     string         `json:"-"`
	PasswordHash string         `json:"password"`
	CreatedAt    int64          `json:"created"`
	LastLoginAt  int64          `json:"lastLogin"`
	LoginCount   int            `json:"loginCount"`
	Preferences  map[string]any `json:"preferences"`
}

type table struct {
	Users map[string]*UserRecord `json:"users"`
}

// Directory authenticates users against the snapshot file, creating
// accounts on first sight. The mutex spans the whole load-mutate-store so
// two concurrent registrations for the same new username cannot race.
type Directory struct {
	mu   sync.Mutex
	path string
}

// Open returns a Directory backed by the given file. A missing or
// unreadable file reads as an empty table.
func Open(path string) *Directory {
	return &Directory{path: path}
}

// AuthenticateOrCreate validates the pair, then either creates a new record
// (loginCount 1) or verifies the password and bumps the login bookkeeping.
// Validation failures and credential mismatches leave the table untouched;
// every successful call rewrites the full snapshot.
func (d *Directory) AuthenticateOrCreate(username, password string) (*UserRecord, error) {
	username = strings.TrimSpace(username)

	if username == "" || password == "" {
		return nil, errMissingCredentials
	}
	if len(username) > 20 {
		return nil, errUsernameTooLong
	}
	if !usernamePattern.MatchString(username) {
		return nil, errUsernameInvalid
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	tab := d.load()
	now := time.Now().UnixMilli()

	record, exists := tab.Users[username]
	if exists {
		if bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(password)) != nil {
			return nil, ErrBadCredentials
		}
		record.LastLoginAt = now
		record.LoginCount++
	} else {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hashing password: %w", err)
		}
		record = &UserRecord{
			PasswordHash: string(hash),
			CreatedAt:    now,
			LastLoginAt:  now,
			LoginCount:   1,
			Preferences:  map[string]any{},
		}
		tab.Users[username] = record
	}

	// A failed write is logged but does not fail the login; the session is
	// live either way and the next successful call rewrites the table.
	if err := d.write(tab); err != nil {
		log.Printf("Error saving user data: %v", err)
	}

	out := *record
	out.Username = username
	return &out, nil
}

func (d *Directory) load() table {
	tab := table{Users: map[string]*UserRecord{}}

	data, err := os.ReadFile(d.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Error loading user data from %s: %v", d.path, err)
		}
		return tab
	}
	if err := json.Unmarshal(data, &tab); err != nil {
		log.Printf("Error parsing user data in %s: %v", d.path, err)
		return table{Users: map[string]*UserRecord{}}
	}
	if tab.Users == nil {
		tab.Users = map[string]*UserRecord{}
	}
	return tab
}

func (d *Directory) write(tab table) error {
	data, err := json.MarshalIndent(tab, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding user table: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(d.path, data, 0o644); err != nil {
		return fmt.Errorf("writing user table: %w", err)
	}
	return nil
}

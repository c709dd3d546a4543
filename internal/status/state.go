// Package status tracks the WhatsApp login state and serves it over HTTP so
// the bot can be paired from a browser.
package status

import (
	"sync"
	"time"
)

// LoginState holds the current pairing QR code and whether the session is
// connected. Setting one clears the other.
type LoginState struct {
	mu        sync.RWMutex
	qr        string
	connected bool
	updated   time.Time
}

func NewLoginState() *LoginState {
	return &LoginState{updated: time.Now()}
}

// SetQR stores a fresh pairing code and marks the session disconnected.
func (s *LoginState) SetQR(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.qr = code
	s.connected = false
	s.updated = time.Now()
}

// SetConnected records a successful login or a lost connection.
func (s *LoginState) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
	if connected {
		s.qr = ""
	}
	s.updated = time.Now()
}

// Snapshot is a consistent view of a LoginState.
type Snapshot struct {
	QR        string    `json:"-"`
	Connected bool      `json:"connected"`
	HasQR     bool      `json:"has_qr"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *LoginState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{QR: s.qr, Connected: s.connected, HasQR: s.qr != "", UpdatedAt: s.updated}
}

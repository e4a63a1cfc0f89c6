// Package session tracks upload sessions and maps each one to its isolated
// vector-store namespace.
package session

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidSessionID is returned for ids that fail shape validation.
	ErrInvalidSessionID = errors.New("invalid session id")

	// ErrSessionExists is returned when creating a session whose id already
	// addresses a completed (Ready) document.
	ErrSessionExists = errors.New("session id already in use")

	// ErrSessionNotFound is returned when no session exists for the id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionNotReady is returned when a session exists but is not Ready
	// to serve queries.
	ErrSessionNotReady = errors.New("session is not ready")
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusCreated   Status = "created"
	StatusIngesting Status = "ingesting"
	StatusReady     Status = "ready"
	StatusFailed    Status = "failed"
)

// Session is one upload and its namespace.
type Session struct {
	ID         string
	Namespace  string
	Status     Status
	FailReason string
	CreatedAt  time.Time
}

// sessionIDPattern constrains client-supplied ids: ids travel in URLs, logs,
// and namespace derivation, so only a conservative charset is accepted.
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// namespaceRoot seeds deterministic namespace derivation. Changing it
// invalidates every existing namespace.
var namespaceRoot = uuid.MustParse("9b1c4f52-7d36-4e36-9f0e-2f4a8ec3a5d1")

// Namespace deterministically derives the vector-store namespace for a
// session id. The same id always maps to the same namespace.
func Namespace(sessionID string) string {
	return "doc_" + uuid.NewSHA1(namespaceRoot, []byte(sessionID)).String()
}

// Manager owns the session registry. All methods are safe for concurrent
// use; the lock only guards session metadata, never I/O.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty session registry.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Create registers a session for the given client-supplied id and returns
// its namespace. Calling Create again for an id still Created or Ingesting
// is idempotent. An id that already reached Ready is rejected with
// ErrSessionExists so a stored document can never be silently replaced; a
// Failed session may be re-created for another attempt.
func (m *Manager) Create(sessionID string) (string, error) {
	if !sessionIDPattern.MatchString(sessionID) {
		return "", fmt.Errorf("%w: must be 1-128 chars of [A-Za-z0-9._-]", ErrInvalidSessionID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[sessionID]; ok {
		switch existing.Status {
		case StatusCreated, StatusIngesting:
			return existing.Namespace, nil
		case StatusFailed:
			// Fall through to re-create.
		default:
			return "", fmt.Errorf("%w: %s", ErrSessionExists, sessionID)
		}
	}

	s := &Session{
		ID:        sessionID,
		Namespace: Namespace(sessionID),
		Status:    StatusCreated,
		CreatedAt: time.Now(),
	}
	m.sessions[sessionID] = s
	return s.Namespace, nil
}

// MarkIngesting transitions a session from Created to Ingesting.
func (m *Manager) MarkIngesting(sessionID string) error {
	return m.transition(sessionID, StatusIngesting, StatusCreated)
}

// MarkReady transitions a session from Ingesting to Ready. Only the
// ingestion pipeline calls this, and only after every chunk is upserted.
func (m *Manager) MarkReady(sessionID string) error {
	return m.transition(sessionID, StatusReady, StatusIngesting)
}

// MarkFailed moves a session to Failed with a reason, from any non-Ready
// state. A Ready session cannot regress.
func (m *Manager) MarkFailed(sessionID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if s.Status == StatusReady {
		return fmt.Errorf("session %s is ready, cannot mark failed", sessionID)
	}
	s.Status = StatusFailed
	s.FailReason = reason
	return nil
}

// Resolve returns the namespace for a Ready session. Sessions still
// ingesting or failed are never resolvable for queries, so chat can never
// be served against a partial index.
func (m *Manager) Resolve(sessionID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if s.Status != StatusReady {
		return "", fmt.Errorf("%w: %s is %s", ErrSessionNotReady, sessionID, s.Status)
	}
	return s.Namespace, nil
}

// Get returns a copy of the session record.
func (m *Manager) Get(sessionID string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return *s, nil
}

func (m *Manager) transition(sessionID string, to Status, from ...Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	for _, f := range from {
		if s.Status == f {
			s.Status = to
			return nil
		}
	}
	return fmt.Errorf("session %s: illegal transition %s -> %s", sessionID, s.Status, to)
}

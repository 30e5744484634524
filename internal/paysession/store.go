// Package paysession binds one payment attempt to one generated artifact per
// session. State is process-lifetime only.
package paysession

import (
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/wakilihq/paygate/internal/clock"
)

var ErrStaleBinding = errors.New("stale_binding")

// PaymentRecord is the single active payment attempt for a session.
type PaymentRecord struct {
	ArtifactID        string
	CheckoutRequestID string
	EncryptedPhone    string
	PhoneHash         string
	AccountReference  string
	Amount            int64
	CreatedAt         time.Time
	Verified          bool
}

// BindRequest associates a gateway acknowledgment with the current artifact.
type BindRequest struct {
	ArtifactID        string
	CheckoutRequestID string
	EncryptedPhone    string
	PhoneHash         string
	AccountReference  string
	Amount            int64
}

// Store keeps one payment session per session ID. Each session carries its own
// lock so unrelated sessions never serialize on each other.
type Store struct {
	genID *snowflake.Node
	clock clock.Clock

	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	mu         sync.Mutex
	artifactID string
	record     *PaymentRecord
}

// New builds an empty store.
func New(genID *snowflake.Node, clk clock.Clock) *Store {
	return &Store{
		genID:    genID,
		clock:    clk,
		sessions: make(map[string]*session),
	}
}

func (s *Store) session(id string) *session {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok = s.sessions[id]; ok {
		return sess
	}
	sess = &session{}
	s.sessions[id] = sess
	return sess
}

// StartNewArtifact invalidates any prior record and mints a fresh artifact ID.
// A verified flag never survives into a new artifact.
func (s *Store) StartNewArtifact(sessionID string) string {
	sess := s.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.artifactID = "doc_" + s.genID.Generate().String()
	sess.record = nil
	return sess.artifactID
}

// CurrentArtifactID returns the session's active artifact, if any.
func (s *Store) CurrentArtifactID(sessionID string) (string, bool) {
	sess := s.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.artifactID == "" {
		return "", false
	}
	return sess.artifactID, true
}

// BindPayment creates or overwrites the session's active record. Binding
// against anything but the current artifact is a programming error.
func (s *Store) BindPayment(sessionID string, req BindRequest) error {
	sess := s.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.artifactID == "" || req.ArtifactID != sess.artifactID {
		return ErrStaleBinding
	}

	sess.record = &PaymentRecord{
		ArtifactID:        req.ArtifactID,
		CheckoutRequestID: req.CheckoutRequestID,
		EncryptedPhone:    req.EncryptedPhone,
		PhoneHash:         req.PhoneHash,
		AccountReference:  req.AccountReference,
		Amount:            req.Amount,
		CreatedAt:         s.clock.Now(),
	}
	return nil
}

// Record returns a copy of the session's active record.
func (s *Store) Record(sessionID string) (PaymentRecord, bool) {
	sess := s.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.record == nil {
		return PaymentRecord{}, false
	}
	return *sess.record, true
}

// MarkVerified flips the verified flag, but only for the matching artifact.
func (s *Store) MarkVerified(sessionID, artifactID string) bool {
	sess := s.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.record == nil || sess.record.ArtifactID != artifactID {
		return false
	}
	sess.record.Verified = true
	return true
}

// ClearRecord discards the session's active record.
func (s *Store) ClearRecord(sessionID string) {
	sess := s.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.record = nil
}

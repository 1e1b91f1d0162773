package otp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dalemusser/mukhalis/internal/app/store/otpsessions"
	"github.com/dalemusser/mukhalis/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memStore is an in-memory SessionStore.
type memStore struct {
	mu       sync.Mutex
	sessions map[primitive.ObjectID]*models.OTPSession
	expiry   time.Duration
	now      func() time.Time
	failFind error
}

func newMemStore() *memStore {
	return &memStore{
		sessions: make(map[primitive.ObjectID]*models.OTPSession),
		expiry:   otpsessions.DefaultExpiry,
		now:      time.Now,
	}
}

func (s *memStore) Create(_ context.Context, phone, code string) (*models.OTPSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if sess.Phone == phone {
			delete(s.sessions, id)
		}
	}
	now := s.now()
	sess := &models.OTPSession{
		ID:        primitive.NewObjectID(),
		Phone:     phone,
		Code:      code,
		SessionID: otpsessions.NewSessionID(),
		ExpiresAt: now.Add(s.expiry),
		CreatedAt: now,
	}
	s.sessions[sess.ID] = sess
	cp := *sess
	return &cp, nil
}

func (s *memStore) Find(_ context.Context, phone, sessionID string) (*models.OTPSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFind != nil {
		return nil, s.failFind
	}
	for _, sess := range s.sessions {
		if sess.Phone == phone && sess.SessionID == sessionID && !sess.Verified {
			cp := *sess
			return &cp, nil
		}
	}
	return nil, otpsessions.ErrNotFound
}

func (s *memStore) IncrementAttempts(_ context.Context, id primitive.ObjectID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return 0, otpsessions.ErrNotFound
	}
	sess.Attempts++
	return sess.Attempts, nil
}

func (s *memStore) SetCode(_ context.Context, id primitive.ObjectID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return otpsessions.ErrNotFound
	}
	sess.Code = code
	return nil
}

func (s *memStore) Reset(_ context.Context, id primitive.ObjectID, code string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return time.Time{}, otpsessions.ErrNotFound
	}
	sess.Attempts = 0
	sess.ExpiresAt = s.now().Add(s.expiry)
	sess.Code = code
	return sess.ExpiresAt, nil
}

func (s *memStore) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *memStore) DeleteForSession(_ context.Context, phone, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if sess.Phone == phone && sess.SessionID == sessionID {
			delete(s.sessions, id)
		}
	}
	return nil
}

func (s *memStore) count(phone string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.Phone == phone {
			n++
		}
	}
	return n
}

func (s *memStore) get(phone, sessionID string) *models.OTPSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.Phone == phone && sess.SessionID == sessionID {
			cp := *sess
			return &cp
		}
	}
	return nil
}

// stubProvider records calls and returns canned results.
type stubProvider struct {
	sendErr  error
	checkErr error
	approve  bool
	sends    int
	checks   int
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Send(context.Context, string) (string, error) {
	p.sends++
	return "", p.sendErr
}

func (p *stubProvider) Check(context.Context, string, string, string) (bool, error) {
	p.checks++
	return p.approve, p.checkErr
}

var errBoom = errors.New("boom")

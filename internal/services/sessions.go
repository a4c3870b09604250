package services

import (
	"errors"
	"sync"
	"time"

	"github.com/BerylCAtieno/unitydesk-api/internal/utils"
	"github.com/BerylCAtieno/unitydesk-api/internal/workflow"
)

// Session is one server-side submission wizard.
type Session struct {
	ID string

	mu        sync.Mutex
	machine   *workflow.Machine
	expiresAt time.Time
}

// Do runs fn with exclusive access to the session's machine.
func (s *Session) Do(fn func(m *workflow.Machine) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.machine)
}

// SessionStore keeps wizard sessions in memory. Every access extends a session's
// lifetime by the TTL; expired sessions are evicted lazily.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	deps     workflow.Deps
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionStore(deps workflow.Deps, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		deps:     deps,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (st *SessionStore) Create(variant workflow.Variant) (*Session, error) {
	m, err := workflow.New(variant, st.deps)
	if err != nil {
		return nil, utils.NewBadRequestError("variant must be \"image\" or \"text\"")
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	st.evictLocked(now)

	sess := &Session{
		ID:        utils.GenerateID(),
		machine:   m,
		expiresAt: now.Add(st.ttl),
	}
	st.sessions[sess.ID] = sess
	return sess, nil
}

func (st *SessionStore) Get(id string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	sess, ok := st.sessions[id]
	if !ok {
		return nil, utils.NewNotFoundError("Submission not found or expired")
	}
	if !now.Before(sess.expiresAt) {
		delete(st.sessions, id)
		return nil, utils.NewNotFoundError("Submission not found or expired")
	}

	sess.expiresAt = now.Add(st.ttl)
	return sess, nil
}

func (st *SessionStore) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

func (st *SessionStore) evictLocked(now time.Time) {
	for id, sess := range st.sessions {
		if !now.Before(sess.expiresAt) {
			delete(st.sessions, id)
		}
	}
}

// WorkflowError maps wizard errors onto HTTP-facing errors. AppErrors and
// rejections raised by the analysis step pass through unchanged.
func WorkflowError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *utils.AppError
	var rejected *RejectedError
	switch {
	case errors.As(err, &rejected), errors.As(err, &appErr):
		return err
	case errors.Is(err, workflow.ErrInvalidTransition), errors.Is(err, workflow.ErrTerminal):
		return utils.NewConflictError(err.Error())
	case errors.Is(err, workflow.ErrNoImages),
		errors.Is(err, workflow.ErrInputTooShort),
		errors.Is(err, workflow.ErrInvalidField):
		return utils.NewBadRequestError(err.Error())
	case errors.Is(err, workflow.ErrImageRejected):
		return utils.NewUnprocessableError(err.Error())
	}
	return utils.WrapInternalError("Submission step failed", err)
}

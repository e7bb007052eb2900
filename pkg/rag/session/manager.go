package session

import (
	"sync"
	"time"

	"paperchat-be/internal/pkg/logger"
	"paperchat-be/internal/repository/memory"
	"paperchat-be/pkg/rag/ragerr"
	"paperchat-be/pkg/store"

	"github.com/google/uuid"
)

// Manager guards the per-conversation turn state machine. All transitions
// go through it under one mutex, so at most one generation is ever in
// flight per conversation regardless of how many handlers race.
type Manager struct {
	mu          sync.Mutex
	sessionRepo *memory.SessionRepository
	logger      logger.ILogger
}

func NewManager(sessionRepo *memory.SessionRepository, log logger.ILogger) *Manager {
	return &Manager{
		sessionRepo: sessionRepo,
		logger:      log,
	}
}

// State reports the current state of a conversation. Unknown conversations
// are idle: memory is ephemeral and a restart resets everything.
func (m *Manager) State(conversationId uuid.UUID) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, found := m.sessionRepo.Get(conversationId.String())
	if !found {
		return store.StateIdle
	}
	return session.State
}

// BeginTurn claims the conversation for a new generation. It fails with
// ErrTurnInFlight when a turn is already loading, streaming, or updating
// citations; error states do not block a retry.
func (m *Manager) BeginTurn(conversationId, clientId uuid.UUID, query string) (*store.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := conversationId.String()
	session, found := m.sessionRepo.Get(id)
	if found && store.Busy(session.State) {
		return nil, ragerr.ErrTurnInFlight
	}

	session = &store.Session{
		ConversationID: id,
		ClientID:       clientId.String(),
		State:          store.StateLoading,
		LastQuery:      query,
		StartedAt:      time.Now(),
	}
	m.sessionRepo.Save(session)

	m.logger.Debug("Session", "turn claimed", map[string]interface{}{
		"conversation_id": id,
		"state":           session.State,
	})
	return session, nil
}

// AttachPendingMessage records the optimistically persisted user message
// so a failing turn knows what to roll back.
func (m *Manager) AttachPendingMessage(conversationId, messageId uuid.UUID) {
	m.transition(conversationId, func(s *store.Session) {
		s.PendingUserMessageID = messageId.String()
	})
}

// MarkStreaming moves loading -> streaming once the first token arrived.
func (m *Manager) MarkStreaming(conversationId uuid.UUID) {
	m.transition(conversationId, func(s *store.Session) {
		s.State = store.StateStreaming
	})
}

// MarkUpdatingCitations moves streaming -> updating-citations while the
// ledger and rendered text are being committed.
func (m *Manager) MarkUpdatingCitations(conversationId uuid.UUID) {
	m.transition(conversationId, func(s *store.Session) {
		s.State = store.StateUpdatingCitations
	})
}

// Complete returns the conversation to idle and clears the pending marker.
func (m *Manager) Complete(conversationId uuid.UUID) {
	m.transition(conversationId, func(s *store.Session) {
		s.State = store.StateIdle
		s.PendingUserMessageID = ""
	})
}

// FailSend parks the conversation in send-error. The caller has already
// rolled back the optimistic user message by the time this runs.
func (m *Manager) FailSend(conversationId uuid.UUID) {
	m.transition(conversationId, func(s *store.Session) {
		s.State = store.StateSendError
		s.PendingUserMessageID = ""
	})
}

// FailResume parks the conversation in resume-error after a failed load.
// Nothing was written, so there is nothing to roll back.
func (m *Manager) FailResume(conversationId, clientId uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := conversationId.String()
	session, found := m.sessionRepo.Get(id)
	if !found {
		session = &store.Session{
			ConversationID: id,
			ClientID:       clientId.String(),
		}
	}
	session.State = store.StateResumeError
	m.sessionRepo.Save(session)
}

// PendingMessageID returns the optimistic user message id of the running
// turn, if any.
func (m *Manager) PendingMessageID(conversationId uuid.UUID) (uuid.UUID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, found := m.sessionRepo.Get(conversationId.String())
	if !found || session.PendingUserMessageID == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(session.PendingUserMessageID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Release drops the conversation back to untracked idle, used on deletion.
func (m *Manager) Release(conversationId uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionRepo.Delete(conversationId.String())
}

func (m *Manager) transition(conversationId uuid.UUID, apply func(*store.Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := conversationId.String()
	session, found := m.sessionRepo.Get(id)
	if !found {
		// transition on an untracked conversation, nothing to update
		m.logger.Warn("Session", "transition on unknown conversation", map[string]interface{}{
			"conversation_id": id,
		})
		return
	}
	apply(session)
	m.sessionRepo.Save(session)
}

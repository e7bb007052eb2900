package session

import (
	"errors"
	"sync"
	"testing"

	"paperchat-be/internal/repository/memory"
	"paperchat-be/pkg/rag/ragerr"
	"paperchat-be/pkg/store"

	"github.com/google/uuid"
)

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }

func newTestManager() *Manager {
	return NewManager(memory.NewSessionRepository(), nopLogger{})
}

func TestBeginTurnRejectsWhileBusy(t *testing.T) {
	m := newTestManager()
	convId, clientId := uuid.New(), uuid.New()

	if _, err := m.BeginTurn(convId, clientId, "first"); err != nil {
		t.Fatalf("first BeginTurn: %v", err)
	}

	busyStates := []struct {
		name string
		prep func()
	}{
		{"loading", func() {}},
		{"streaming", func() { m.MarkStreaming(convId) }},
		{"updating citations", func() { m.MarkUpdatingCitations(convId) }},
	}

	for _, tt := range busyStates {
		t.Run(tt.name, func(t *testing.T) {
			tt.prep()
			_, err := m.BeginTurn(convId, clientId, "second")
			if !errors.Is(err, ragerr.ErrTurnInFlight) {
				t.Errorf("err = %v, want ErrTurnInFlight", err)
			}
		})
	}
}

func TestErrorStatesAllowRetry(t *testing.T) {
	m := newTestManager()
	convId, clientId := uuid.New(), uuid.New()

	if _, err := m.BeginTurn(convId, clientId, "q"); err != nil {
		t.Fatalf("BeginTurn: %v", err)
	}
	m.FailSend(convId)

	if got := m.State(convId); got != store.StateSendError {
		t.Fatalf("State = %q, want send-error", got)
	}
	if _, err := m.BeginTurn(convId, clientId, "retry"); err != nil {
		t.Errorf("retry after send-error: %v", err)
	}

	m.FailResume(convId, clientId)
	if got := m.State(convId); got != store.StateResumeError {
		t.Fatalf("State = %q, want resume-error", got)
	}
	if _, err := m.BeginTurn(convId, clientId, "retry"); err != nil {
		t.Errorf("retry after resume-error: %v", err)
	}
}

func TestFullTurnLifecycle(t *testing.T) {
	m := newTestManager()
	convId, clientId := uuid.New(), uuid.New()
	msgId := uuid.New()

	if _, err := m.BeginTurn(convId, clientId, "q"); err != nil {
		t.Fatalf("BeginTurn: %v", err)
	}
	m.AttachPendingMessage(convId, msgId)

	if got, ok := m.PendingMessageID(convId); !ok || got != msgId {
		t.Errorf("PendingMessageID = %v/%v, want %v/true", got, ok, msgId)
	}

	m.MarkStreaming(convId)
	if got := m.State(convId); got != store.StateStreaming {
		t.Errorf("State = %q, want streaming", got)
	}

	m.MarkUpdatingCitations(convId)
	if got := m.State(convId); got != store.StateUpdatingCitations {
		t.Errorf("State = %q, want updating-citations", got)
	}

	m.Complete(convId)
	if got := m.State(convId); got != store.StateIdle {
		t.Errorf("State = %q, want idle", got)
	}
	if _, ok := m.PendingMessageID(convId); ok {
		t.Error("pending message should clear on completion")
	}
}

func TestUnknownConversationIsIdle(t *testing.T) {
	m := newTestManager()
	if got := m.State(uuid.New()); got != store.StateIdle {
		t.Errorf("State = %q, want idle", got)
	}
}

func TestConversationsAreIndependent(t *testing.T) {
	m := newTestManager()
	clientId := uuid.New()
	a, b := uuid.New(), uuid.New()

	if _, err := m.BeginTurn(a, clientId, "qa"); err != nil {
		t.Fatalf("BeginTurn(a): %v", err)
	}
	if _, err := m.BeginTurn(b, clientId, "qb"); err != nil {
		t.Errorf("busy conversation a must not block b: %v", err)
	}
}

func TestBeginTurnAtMostOnceUnderRace(t *testing.T) {
	m := newTestManager()
	convId, clientId := uuid.New(), uuid.New()

	const goroutines = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	won := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.BeginTurn(convId, clientId, "race"); err == nil {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if won != 1 {
		t.Errorf("%d goroutines claimed the turn, want exactly 1", won)
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sickco/sickco-backend/internal/domain"
	"github.com/sickco/sickco-backend/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fakeGate resolves every call to user, or fails with err.
type fakeGate struct {
	user  string
	err   error
	calls int
}

func (g *fakeGate) RequireUser(context.Context) (string, error) {
	g.calls++
	return g.user, g.err
}

// recordingStore is an in-memory TurnStore + HistoryStore that records calls
// and can be told to fail individual operations.
type recordingStore struct {
	mu    sync.Mutex
	turns []domain.Turn
	calls []string

	createErr error
	attachErr error
	listErr   error
	clearErr  error
	noID      bool
}

func (s *recordingStore) record(call string) {
	s.calls = append(s.calls, call)
}

func (s *recordingStore) CreateTurn(_ context.Context, userID, msg string) (*domain.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("CreateTurn(" + userID + "," + msg + ")")
	if s.createErr != nil {
		return nil, s.createErr
	}
	if s.noID {
		return &domain.Turn{}, nil
	}
	now := time.Now().UTC()
	t := domain.Turn{ID: fmt.Sprintf("t%d", len(s.turns)+1), UserID: userID, UserMessage: msg, CreatedAt: now, UpdatedAt: now}
	s.turns = append(s.turns, t)
	return &t, nil
}

func (s *recordingStore) AttachReply(_ context.Context, turnID string, reply domain.StructuredReply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("AttachReply(" + turnID + ")")
	if s.attachErr != nil {
		return s.attachErr
	}
	for i := range s.turns {
		if s.turns[i].ID == turnID && s.turns[i].AIReply == nil {
			r := reply
			s.turns[i].AIReply = &r
			return nil
		}
	}
	return repo.ErrNotFound
}

func (s *recordingStore) GetTurn(_ context.Context, id, userID string) (*domain.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("GetTurn(" + id + ")")
	for _, t := range s.turns {
		if t.ID == id && t.UserID == userID && !t.IsDeleted {
			cp := t
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (s *recordingStore) visible(userID string) []domain.Turn {
	out := []domain.Turn{}
	for _, t := range s.turns {
		if t.UserID == userID && !t.IsDeleted {
			out = append(out, t)
		}
	}
	return out
}

func (s *recordingStore) ListTurns(_ context.Context, userID string) ([]domain.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("ListTurns(" + userID + ")")
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.visible(userID), nil
}

func (s *recordingStore) CountTurns(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("CountTurns(" + userID + ")")
	if s.listErr != nil {
		return 0, s.listErr
	}
	return int64(len(s.visible(userID))), nil
}

func (s *recordingStore) ListTurnsPage(_ context.Context, userID string, offset, limit int) ([]domain.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(fmt.Sprintf("ListTurnsPage(%s,%d,%d)", userID, offset, limit))
	v := s.visible(userID)
	if offset >= len(v) {
		return []domain.Turn{}, nil
	}
	end := offset + limit
	if end > len(v) {
		end = len(v)
	}
	return v[offset:end], nil
}

func (s *recordingStore) SoftDeleteAll(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("SoftDeleteAll(" + userID + ")")
	if s.clearErr != nil {
		return 0, s.clearErr
	}
	var n int64
	for i := range s.turns {
		if s.turns[i].UserID == userID && !s.turns[i].IsDeleted {
			s.turns[i].IsDeleted = true
			n++
		}
	}
	return n, nil
}

func (s *recordingStore) TurnsStats(_ context.Context, userID string) (int64, *time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("TurnsStats(" + userID + ")")
	if s.listErr != nil {
		return 0, nil, s.listErr
	}
	v := s.visible(userID)
	if len(v) == 0 {
		return 0, nil, nil
	}
	at := v[len(v)-1].UpdatedAt
	return int64(len(v)), &at, nil
}

// fakeGenerator returns reply or err and records the texts it was given.
type fakeGenerator struct {
	reply domain.StructuredReply
	err   error
	got   []string
}

func (g *fakeGenerator) Generate(_ context.Context, msg string) (domain.StructuredReply, error) {
	g.got = append(g.got, msg)
	if g.err != nil {
		return domain.StructuredReply{}, g.err
	}
	return g.reply, nil
}

// memIdempotency is an in-memory IdempotencyStore.
type memIdempotency struct {
	m         map[string]string
	lookupErr error
}

func (m *memIdempotency) Lookup(_ context.Context, userID, key string) (string, error) {
	if m.lookupErr != nil {
		return "", m.lookupErr
	}
	id, ok := m.m[userID+"|"+key]
	if !ok {
		return "", repo.ErrNotFound
	}
	return id, nil
}

func (m *memIdempotency) Remember(_ context.Context, userID, key, turnID string) error {
	if m.m == nil {
		m.m = map[string]string{}
	}
	m.m[userID+"|"+key] = turnID
	return nil
}

var errBoom = errors.New("boom")

func sampleReply() domain.StructuredReply {
	return domain.StructuredReply{
		Empathy:          "I'm sorry you're dealing with that.",
		Information:      "A headache with a slight fever is commonly caused by a viral infection.",
		Disclaimer:       "This is general information, not a diagnosis.",
		FollowUpQuestion: "How long have you had these symptoms?",
	}
}

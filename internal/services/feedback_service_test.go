package services

import (
	"context"
	"errors"
	"testing"

	"github.com/sickco/sickco-backend/internal/domain"
	"github.com/sickco/sickco-backend/internal/repo"
)

func seedCompletedTurn(t *testing.T, svcStore *repo.TurnStore, userID string) *domain.Turn {
	t.Helper()
	ctx := context.Background()
	turn, err := svcStore.CreateTurn(ctx, userID, "hello")
	if err != nil {
		t.Fatalf("seed turn: %v", err)
	}
	if err := svcStore.AttachReply(ctx, turn.ID, sampleReply()); err != nil {
		t.Fatalf("seed reply: %v", err)
	}
	return turn
}

func TestFeedback_Leave_InvalidValue(t *testing.T) {
	gate := &fakeGate{user: "u1"}
	svc := &FeedbackService{DB: newTestDB(t), Gate: gate}

	err := svc.Leave(context.Background(), "t1", 0) // not -1 or 1
	if !errors.Is(err, ErrInvalidFeedback) || !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrInvalidFeedback, got %v", err)
	}
	if gate.calls != 0 {
		t.Fatalf("gate should not be consulted for invalid input")
	}
}

func TestFeedback_Leave_Unauthorized(t *testing.T) {
	svc := &FeedbackService{DB: newTestDB(t), Gate: &fakeGate{err: errBoom}}
	if err := svc.Leave(context.Background(), "t1", 1); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestFeedback_Leave_TurnNotFound(t *testing.T) {
	svc := &FeedbackService{DB: newTestDB(t), Gate: &fakeGate{user: "u1"}}
	if err := svc.Leave(context.Background(), "missing", 1); !errors.Is(err, ErrTurnNotFound) {
		t.Fatalf("expected ErrTurnNotFound, got %v", err)
	}
}

func TestFeedback_Leave_NotOwner(t *testing.T) {
	db := newTestDB(t)
	turn := seedCompletedTurn(t, repo.NewTurnStore(db), "owner")

	svc := &FeedbackService{DB: db, Gate: &fakeGate{user: "intruder"}}
	if err := svc.Leave(context.Background(), turn.ID, 1); !errors.Is(err, ErrTurnNotFound) {
		t.Fatalf("expected ErrTurnNotFound for foreign turn, got %v", err)
	}
}

func TestFeedback_Leave_ClearedTurn(t *testing.T) {
	db := newTestDB(t)
	store := repo.NewTurnStore(db)
	turn := seedCompletedTurn(t, store, "u1")
	if _, err := store.SoftDeleteAll(context.Background(), "u1"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	svc := &FeedbackService{DB: db, Gate: &fakeGate{user: "u1"}}
	if err := svc.Leave(context.Background(), turn.ID, 1); !errors.Is(err, ErrTurnNotFound) {
		t.Fatalf("expected ErrTurnNotFound for cleared turn, got %v", err)
	}
}

func TestFeedback_Leave_PendingTurn(t *testing.T) {
	db := newTestDB(t)
	turn, err := repo.CreateTurn(context.Background(), db, "u1", "hello")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := &FeedbackService{DB: db, Gate: &fakeGate{user: "u1"}}
	if err := svc.Leave(context.Background(), turn.ID, -1); !errors.Is(err, ErrReplyPending) {
		t.Fatalf("expected ErrReplyPending, got %v", err)
	}
}

func TestFeedback_Leave_SuccessThenDuplicate(t *testing.T) {
	db := newTestDB(t)
	turn := seedCompletedTurn(t, repo.NewTurnStore(db), "u1")
	svc := &FeedbackService{DB: db, Gate: &fakeGate{user: "u1"}}

	if err := svc.Leave(context.Background(), turn.ID, 1); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	fb, err := repo.GetFeedback(context.Background(), db, turn.ID)
	if err != nil || fb.Value != 1 || fb.UserID != "u1" {
		t.Fatalf("feedback row: %+v, %v", fb, err)
	}

	if err := svc.Leave(context.Background(), turn.ID, -1); !errors.Is(err, ErrDuplicateFeedback) {
		t.Fatalf("expected ErrDuplicateFeedback, got %v", err)
	}
}

func TestFeedback_Leave_StoreFailure(t *testing.T) {
	db := newTestDB(t)
	turn := seedCompletedTurn(t, repo.NewTurnStore(db), "u1")
	if err := db.Migrator().DropTable(&domain.Feedback{}); err != nil {
		t.Fatalf("drop: %v", err)
	}

	svc := &FeedbackService{DB: db, Gate: &fakeGate{user: "u1"}}
	err := svc.Leave(context.Background(), turn.ID, 1)
	if !errors.Is(err, ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
}

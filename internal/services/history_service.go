// Package services – HistoryService
//
// This file implements HistoryService, which lists a user's visible turns
// oldest first and clears them by soft delete. Both operations resolve the
// caller through the AuthGate before touching the store.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/sickco/sickco-backend/internal/domain"
	"github.com/sickco/sickco-backend/internal/utils"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// HistoryStore is the read/clear side of the message store.
type HistoryStore interface {
	ListTurns(ctx context.Context, userID string) ([]domain.Turn, error)
	CountTurns(ctx context.Context, userID string) (int64, error)
	ListTurnsPage(ctx context.Context, userID string, offset, limit int) ([]domain.Turn, error)
	SoftDeleteAll(ctx context.Context, userID string) (int64, error)
	TurnsStats(ctx context.Context, userID string) (int64, *time.Time, error)
}

// HistoryService implements the history pipeline.
type HistoryService struct {
	Gate  AuthGate
	Store HistoryStore
}

// NewHistoryService wires a HistoryService.
func NewHistoryService(gate AuthGate, store HistoryStore) *HistoryService {
	return &HistoryService{Gate: gate, Store: store}
}

// List returns every visible turn of the caller, oldest first. An empty
// history is a valid result.
func (s *HistoryService) List(ctx context.Context) ([]domain.Turn, error) {
	const op = "list"
	ctx, span := otel.Tracer("services/HistoryService").Start(ctx, "List")
	defer span.End()

	userID, err := s.user(ctx, op, span)
	if err != nil {
		return nil, err
	}
	turns, err := s.Store.ListTurns(ctx, userID)
	if err != nil {
		loggerFrom(ctx).Error().Str("user_id", userID).Str("collaborator", CollabMessageStore).Err(err).Msg("list turns failed")
		return nil, storeFailure(op, "", err)
	}
	if turns == nil {
		turns = []domain.Turn{}
	}
	return turns, nil
}

// ListPage returns one page of the caller's history and the total number of
// visible turns. Out-of-range page values fall back to defaults; page sizes
// above 100 are capped.
func (s *HistoryService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Turn, int64, error) {
	const op = "list"
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	page, pageSize = utils.ClampPage(page, pageSize, maxPageSize)

	ctx, span := otel.Tracer("services/HistoryService").Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	userID, err := s.user(ctx, op, span)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Store.CountTurns(ctx, userID)
	if err != nil {
		return nil, 0, storeFailure(op, "", err)
	}
	if total == 0 {
		return []domain.Turn{}, 0, nil
	}
	items, err := s.Store.ListTurnsPage(ctx, userID, utils.Offset(page, pageSize), pageSize)
	if err != nil {
		loggerFrom(ctx).Error().Str("user_id", userID).Str("collaborator", CollabMessageStore).Err(err).Msg("list turns page failed")
		return nil, 0, storeFailure(op, "", err)
	}
	return items, total, nil
}

// Stats returns the caller's visible turn count and latest update time for
// conditional responses.
func (s *HistoryService) Stats(ctx context.Context) (int64, *time.Time, error) {
	const op = "list"
	ctx, span := otel.Tracer("services/HistoryService").Start(ctx, "Stats")
	defer span.End()

	userID, err := s.user(ctx, op, span)
	if err != nil {
		return 0, nil, err
	}
	n, at, err := s.Store.TurnsStats(ctx, userID)
	if err != nil {
		return 0, nil, storeFailure(op, "", err)
	}
	return n, at, nil
}

// Clear soft-deletes every visible turn of the caller in one bulk update.
// Clearing an already empty history succeeds and changes nothing.
func (s *HistoryService) Clear(ctx context.Context) error {
	const op = "clear"
	ctx, span := otel.Tracer("services/HistoryService").Start(ctx, "Clear")
	defer span.End()

	userID, err := s.user(ctx, op, span)
	if err != nil {
		return err
	}
	n, err := s.Store.SoftDeleteAll(ctx, userID)
	if err != nil {
		loggerFrom(ctx).Error().Str("user_id", userID).Str("collaborator", CollabMessageStore).Err(err).Msg("clear history failed")
		return storeFailure(op, "", err)
	}
	span.SetAttributes(attribute.Int64("turns.cleared", n))
	historyClearedTotal.Add(float64(n))
	loggerFrom(ctx).Info().Str("user_id", userID).Int64("turns_cleared", n).Msg("history cleared")
	return nil
}

func (s *HistoryService) user(ctx context.Context, op string, span trace.Span) (string, error) {
	userID, err := s.Gate.RequireUser(ctx)
	if err == nil && userID == "" {
		err = errors.New("empty user id")
	}
	if err != nil {
		return "", authFailure(op, err)
	}
	span.SetAttributes(attribute.String("user.id", userID))
	return userID, nil
}

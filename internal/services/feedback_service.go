// Package services – FeedbackService
//
// This file implements FeedbackService, which lets a user rate the reply of
// one of their own turns with -1 or +1. Rules: the turn must exist, belong to
// the caller, be visible (not cleared) and have a reply; a turn is rated at
// most once. The checks and the insert run in one transaction.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/sickco/sickco-backend/internal/repo"
)

// FeedbackService implements the use-cases around reply feedback.
type FeedbackService struct {
	// DB is the database handle used for all feedback operations.
	DB   *gorm.DB
	Gate AuthGate
}

// Leave records value for turnID on behalf of the caller.
//
// Errors:
//   - ErrInvalidFeedback when value is not -1 or 1.
//   - ErrUnauthorized (as *PipelineError) when the caller is unknown.
//   - ErrTurnNotFound when the turn is missing, cleared or not the caller's.
//   - ErrReplyPending when the turn has no reply yet.
//   - ErrDuplicateFeedback when the turn was already rated.
//   - ErrStore (as *PipelineError) for unexpected DB failures.
func (s *FeedbackService) Leave(ctx context.Context, turnID string, value int) error {
	const op = "feedback"
	if value != -1 && value != 1 {
		return ErrInvalidFeedback
	}
	userID, err := s.Gate.RequireUser(ctx)
	if err == nil && userID == "" {
		err = errors.New("empty user id")
	}
	if err != nil {
		return authFailure(op, err)
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		turn, err := repo.GetTurn(ctx, tx, turnID, userID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrTurnNotFound
			}
			return err
		}
		if turn.Pending() {
			return ErrReplyPending
		}
		if _, err := repo.CreateFeedback(ctx, tx, turnID, userID, value); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return ErrDuplicateFeedback
			}
			return err
		}
		return nil
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTurnNotFound), errors.Is(err, ErrReplyPending), errors.Is(err, ErrDuplicateFeedback):
		return err
	default:
		loggerFrom(ctx).Error().Str("user_id", userID).Str("turn_id", turnID).Str("collaborator", CollabMessageStore).Err(err).Msg("leave feedback failed")
		return storeFailure(op, turnID, err)
	}
}

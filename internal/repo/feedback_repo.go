// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Feedback
// model: one +1/-1 rating per turn.
//
// Error semantics:
//   - A second rating for the same turn violates the unique index and is
//     returned as ErrDuplicate.
//   - On other DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sickco/sickco-backend/internal/domain"
)

// ErrDuplicate indicates that a uniquely-keyed row already exists.
var ErrDuplicate = errors.New("duplicate")

// CreateFeedback inserts a rating for turnID authored by userID. Value range
// and ownership are enforced by the service layer and the DB check constraint.
func CreateFeedback(ctx context.Context, db *gorm.DB, turnID, userID string, value int) (*domain.Feedback, error) {
	now := time.Now().UTC()
	fb := &domain.Feedback{
		ID:        uuid.NewString(),
		TurnID:    turnID,
		UserID:    userID,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(fb).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return fb, nil
}

// GetFeedback returns the rating left on turnID, or ErrNotFound.
func GetFeedback(ctx context.Context, db *gorm.DB, turnID string) (*domain.Feedback, error) {
	var fb domain.Feedback
	if err := db.WithContext(ctx).Where("turn_id = ?", turnID).First(&fb).Error; err != nil {
		return nil, err
	}
	return &fb, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// glebarez/sqlite often returns plain-text errors for UNIQUE violations;
	// Postgres reports SQLSTATE 23505.
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "sqlstate 23505") ||
		strings.Contains(low, "duplicate key value")
}

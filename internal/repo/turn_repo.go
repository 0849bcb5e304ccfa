// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Turn model,
// the message store behind the chat and history pipelines.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only
// persistence and query composition.
//
// Error semantics:
//   - When a turn is not found (or not owned by the caller), functions return
//     gorm.ErrRecordNotFound (also exported here as ErrNotFound).
//   - On DB errors the raw gorm error is propagated.
//
// Visibility: reads only return rows with is_deleted = false. Rows are never
// physically removed; SoftDeleteAll flips the flag instead.
package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sickco/sickco-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateTurn inserts a reply-pending turn owned by userID. The ID is a random
// UUID and CreatedAt is set to UTC. The row is committed before it returns.
func CreateTurn(ctx context.Context, db *gorm.DB, userID, userMessage string) (*domain.Turn, error) {
	now := time.Now().UTC()
	t := &domain.Turn{
		ID:          uuid.NewString(),
		UserID:      userID,
		UserMessage: userMessage,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

// AttachReply stores reply on a turn that has none yet. A second attachment
// to the same turn, or an unknown id, affects no rows and yields ErrNotFound.
func AttachReply(ctx context.Context, db *gorm.DB, turnID string, reply domain.StructuredReply) error {
	raw, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	res := db.WithContext(ctx).
		Model(&domain.Turn{}).
		Where("id = ? AND ai_reply IS NULL", turnID).
		Updates(map[string]any{
			"ai_reply":   string(raw),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetTurn fetches a visible turn by id and owner.
func GetTurn(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Turn, error) {
	var t domain.Turn
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND is_deleted = ?", id, userID, false).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTurns returns every visible turn of userID, oldest first. Ties on
// created_at are broken by id so the order is deterministic.
func ListTurns(ctx context.Context, db *gorm.DB, userID string) ([]domain.Turn, error) {
	out := []domain.Turn{}
	err := visibleTurns(ctx, db, userID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// CountTurns returns the number of visible turns owned by userID.
func CountTurns(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := visibleTurns(ctx, db, userID).Count(&total).Error
	return total, err
}

// ListTurnsPage returns a slice of visible turns ordered like ListTurns.
// The caller computes offset and limit (e.g., (page-1)*pageSize).
func ListTurnsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Turn, error) {
	out := []domain.Turn{}
	err := visibleTurns(ctx, db, userID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// SoftDeleteAll marks every visible turn of userID as deleted in a single
// UPDATE statement and returns how many rows changed. A second call is a
// no-op returning 0.
func SoftDeleteAll(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Turn{}).
		Where("user_id = ? AND is_deleted = ?", userID, false).
		Updates(map[string]any{
			"is_deleted": true,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func visibleTurns(ctx context.Context, db *gorm.DB, userID string) *gorm.DB {
	return db.WithContext(ctx).
		Model(&domain.Turn{}).
		Where("user_id = ? AND is_deleted = ?", userID, false)
}

// TurnStore adapts the functions above to a value that services can hold
// behind an interface.
type TurnStore struct {
	DB *gorm.DB
}

// NewTurnStore returns a TurnStore bound to db.
func NewTurnStore(db *gorm.DB) *TurnStore { return &TurnStore{DB: db} }

func (s *TurnStore) CreateTurn(ctx context.Context, userID, userMessage string) (*domain.Turn, error) {
	return CreateTurn(ctx, s.DB, userID, userMessage)
}

func (s *TurnStore) AttachReply(ctx context.Context, turnID string, reply domain.StructuredReply) error {
	return AttachReply(ctx, s.DB, turnID, reply)
}

func (s *TurnStore) GetTurn(ctx context.Context, id, userID string) (*domain.Turn, error) {
	return GetTurn(ctx, s.DB, id, userID)
}

func (s *TurnStore) ListTurns(ctx context.Context, userID string) ([]domain.Turn, error) {
	return ListTurns(ctx, s.DB, userID)
}

func (s *TurnStore) CountTurns(ctx context.Context, userID string) (int64, error) {
	return CountTurns(ctx, s.DB, userID)
}

func (s *TurnStore) ListTurnsPage(ctx context.Context, userID string, offset, limit int) ([]domain.Turn, error) {
	return ListTurnsPage(ctx, s.DB, userID, offset, limit)
}

func (s *TurnStore) SoftDeleteAll(ctx context.Context, userID string) (int64, error) {
	return SoftDeleteAll(ctx, s.DB, userID)
}

func (s *TurnStore) TurnsStats(ctx context.Context, userID string) (int64, *time.Time, error) {
	return TurnsStats(ctx, s.DB, userID)
}

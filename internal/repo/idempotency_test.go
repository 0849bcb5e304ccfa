package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sickco/sickco-backend/internal/domain"
)

func newIdemDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Use a unique in-memory database per test to avoid schema leakage across tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestGetIdempotency_BlankKey_ReturnsNotFound(t *testing.T) {
	db := newIdemDB(t, &domain.Idempotency{})
	rec, err := GetIdempotency(context.Background(), db, "u1", "   ", time.Now().UTC())
	if rec != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected (nil, ErrNotFound) for blank key, got (%v, %v)", rec, err)
	}
}

func TestGetIdempotency_ExpiredOrMissing_ReturnsNotFound(t *testing.T) {
	db := newIdemDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	exp := &domain.Idempotency{ID: "expired", UserID: "u1", Key: "k1", TurnID: "t1", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	if err := db.Create(exp).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	if rec, err := GetIdempotency(context.Background(), db, "u1", "k1", now); rec != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired record should be ErrNotFound, got (%v, %v)", rec, err)
	}
	if rec, err := GetIdempotency(context.Background(), db, "u1", "other", now); rec != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing record should be ErrNotFound, got (%v, %v)", rec, err)
	}
}

func TestGetIdempotency_NoTable_ReturnsRawError(t *testing.T) {
	db := newIdemDB(t)
	_, err := GetIdempotency(context.Background(), db, "u1", "k1", time.Now().UTC())
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected raw DB error, got %v", err)
	}
}

func TestPutIdempotency_InsertThenOverwrite(t *testing.T) {
	db := newIdemDB(t, &domain.Idempotency{})
	ctx := context.Background()

	if _, err := PutIdempotency(ctx, db, "u1", "k1", "t1", time.Hour); err != nil {
		t.Fatalf("PutIdempotency #1: %v", err)
	}
	rec, err := GetIdempotency(ctx, db, "u1", "k1", time.Now().UTC())
	if err != nil || rec.TurnID != "t1" {
		t.Fatalf("after #1: %+v, %v", rec, err)
	}

	if _, err := PutIdempotency(ctx, db, "u1", "k1", "t2", time.Hour); err != nil {
		t.Fatalf("PutIdempotency #2: %v", err)
	}
	rec, err = GetIdempotency(ctx, db, "u1", "k1", time.Now().UTC())
	if err != nil || rec.TurnID != "t2" {
		t.Fatalf("after #2 expected t2, got %+v, %v", rec, err)
	}

	var n int64
	db.Model(&domain.Idempotency{}).Where("user_id = ? AND key = ?", "u1", "k1").Count(&n)
	if n != 1 {
		t.Fatalf("expected a single row for (u1,k1), got %d", n)
	}

	// scoped per user
	if _, err := GetIdempotency(ctx, db, "u2", "k1", time.Now().UTC()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("key must not leak across users: %v", err)
	}
}

func TestPutIdempotency_RevivesExpiredKey(t *testing.T) {
	db := newIdemDB(t, &domain.Idempotency{})
	ctx := context.Background()
	now := time.Now().UTC()
	old := &domain.Idempotency{ID: "old", UserID: "u1", Key: "k1", TurnID: "t0", CreatedAt: now.Add(-3 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	if err := db.Create(old).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := PutIdempotency(ctx, db, "u1", "k1", "t9", time.Hour); err != nil {
		t.Fatalf("PutIdempotency: %v", err)
	}
	rec, err := GetIdempotency(ctx, db, "u1", "k1", time.Now().UTC())
	if err != nil || rec.TurnID != "t9" {
		t.Fatalf("expected revived record pointing at t9, got %+v, %v", rec, err)
	}
}

func TestPurgeExpiredIdempotency(t *testing.T) {
	db := newIdemDB(t, &domain.Idempotency{})
	now := time.Now().UTC()
	rows := []*domain.Idempotency{
		{ID: "a", UserID: "u1", Key: "old", TurnID: "t1", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)},
		{ID: "b", UserID: "u1", Key: "live", TurnID: "t2", CreatedAt: now, ExpiresAt: now.Add(time.Hour)},
	}
	for _, r := range rows {
		if err := db.Create(r).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	n, err := PurgeExpiredIdempotency(context.Background(), db, now)
	if err != nil || n != 1 {
		t.Fatalf("PurgeExpiredIdempotency = %d, %v; want 1", n, err)
	}
	if _, err := GetIdempotency(context.Background(), db, "u1", "live", now); err != nil {
		t.Fatalf("live record should survive: %v", err)
	}
}

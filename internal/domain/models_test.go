package domain

import (
	"encoding/json"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:domain_models?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func TestTableNames(t *testing.T) {
	if (Turn{}).TableName() != "turns" {
		t.Fatalf("Turn.TableName() = %q; want %q", (Turn{}).TableName(), "turns")
	}
	if (Feedback{}).TableName() != "feedback" {
		t.Fatalf("Feedback.TableName() = %q; want %q", (Feedback{}).TableName(), "feedback")
	}
}

func TestMigrations_Indexes_ReplyRoundTrip_AndCascade(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(&Turn{}, &Feedback{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()
	for _, tbl := range []any{&Turn{}, &Feedback{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}
	if !m.HasIndex(&Turn{}, "idx_user_turns") {
		t.Fatalf("expected index idx_user_turns on turns")
	}
	if !m.HasIndex(&Feedback{}, "ux_feedback_turn") {
		t.Fatalf("expected unique index ux_feedback_turn on feedback")
	}

	now := time.Now().UTC()
	pending := &Turn{ID: "t1", UserID: "u1", UserMessage: "hello", CreatedAt: now, UpdatedAt: now}
	reply := &StructuredReply{Empathy: "e", Information: "i", Disclaimer: "d", FollowUpQuestion: "f?"}
	done := &Turn{ID: "t2", UserID: "u1", UserMessage: "again", AIReply: reply, CreatedAt: now, UpdatedAt: now}
	if err := db.Create(pending).Error; err != nil {
		t.Fatalf("insert pending: %v", err)
	}
	if err := db.Create(done).Error; err != nil {
		t.Fatalf("insert done: %v", err)
	}

	var gotPending, gotDone Turn
	if err := db.First(&gotPending, "id = ?", "t1").Error; err != nil {
		t.Fatalf("load pending: %v", err)
	}
	if !gotPending.Pending() || gotPending.IsDeleted {
		t.Fatalf("expected pending, visible turn, got %+v", gotPending)
	}
	if err := db.First(&gotDone, "id = ?", "t2").Error; err != nil {
		t.Fatalf("load done: %v", err)
	}
	if gotDone.Pending() || *gotDone.AIReply != *reply {
		t.Fatalf("reply round-trip mismatch: %+v", gotDone.AIReply)
	}

	if err := db.Create(&Feedback{ID: "f1", TurnID: "t2", UserID: "u1", Value: 1, CreatedAt: now}).Error; err != nil {
		t.Fatalf("insert feedback: %v", err)
	}
	if err := db.Create(&Feedback{ID: "f2", TurnID: "t2", UserID: "u1", Value: -1, CreatedAt: now}).Error; err == nil {
		t.Fatalf("expected unique violation for second feedback on same turn")
	}
	if err := db.Create(&Feedback{ID: "f3", TurnID: "t1", UserID: "u1", Value: 5, CreatedAt: now}).Error; err == nil {
		t.Fatalf("expected check violation for value=5")
	}

	// CASCADE: physically deleting a turn removes its feedback
	if err := db.Delete(&Turn{}, "id = ?", "t2").Error; err != nil {
		t.Fatalf("delete t2: %v", err)
	}
	var cnt int64
	if err := db.Model(&Feedback{}).Where("turn_id = ?", "t2").Count(&cnt).Error; err != nil {
		t.Fatalf("count feedback: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected feedback to cascade-delete, got count=%d", cnt)
	}
}

func TestReply_JSONShape(t *testing.T) {
	r := Reply{TurnID: "t1", StructuredReply: StructuredReply{Empathy: "e", Information: "i", Disclaimer: "d", FollowUpQuestion: "q"}}
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for k, want := range map[string]string{"turn_id": "t1", "empathy": "e", "information": "i", "disclaimer": "d", "follow_up_question": "q"} {
		if m[k] != want {
			t.Fatalf("%s = %q; want %q (body=%s)", k, m[k], want, b)
		}
	}
}

func TestTurn_PendingOmitsReplyInJSON(t *testing.T) {
	b, _ := json.Marshal(Turn{ID: "t1", UserID: "u1", UserMessage: "hi", IsDeleted: true})
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	if _, ok := m["ai_reply"]; ok {
		t.Fatalf("pending turn should omit ai_reply: %s", b)
	}
	if _, ok := m["is_deleted"]; ok {
		t.Fatalf("soft delete flag should not be serialized: %s", b)
	}
}

// Package domain defines the persistence models for chat turns and the
// records that hang off them. These types are mapped with GORM and shared
// by the repository, service and HTTP layers.
package domain

import "time"

// StructuredReply is the generated answer to one turn. All four fields are
// always present in a valid reply, although any of them may be empty.
type StructuredReply struct {
	Empathy          string `json:"empathy"`
	Information      string `json:"information"`
	Disclaimer       string `json:"disclaimer"`
	FollowUpQuestion string `json:"follow_up_question"`
}

// Reply is a StructuredReply correlated with the turn that produced it.
type Reply struct {
	TurnID string `json:"turn_id"`
	StructuredReply
}

// Turn is one user message plus its optional generated reply.
//
// Fields:
//   - ID: UUID primary key assigned by the store at creation.
//   - UserID: owner; immutable.
//   - UserMessage: trimmed, normalized text; immutable.
//   - AIReply: nil while the turn is reply-pending. Stored as JSON text.
//   - IsDeleted: soft delete marker set by clearing history. Rows are never
//     physically removed.
//   - CreatedAt / UpdatedAt: UTC timestamps.
type Turn struct {
	ID          string           `json:"id"                 gorm:"type:char(36);primaryKey"`
	UserID      string           `json:"user_id"            gorm:"type:varchar(64);not null;index:idx_user_turns,priority:1"`
	UserMessage string           `json:"user_message"       gorm:"type:text;not null"`
	AIReply     *StructuredReply `json:"ai_reply,omitempty" gorm:"type:text;serializer:json"`
	IsDeleted   bool             `json:"-"                  gorm:"not null;default:false;index:idx_user_turns,priority:2"`
	CreatedAt   time.Time        `json:"created_at"         gorm:"index:idx_user_turns,priority:3"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// TableName returns the database table name for Turn.
func (Turn) TableName() string { return "turns" }

// Pending reports whether the turn is still waiting for its reply.
func (t *Turn) Pending() bool { return t.AIReply == nil }

// Feedback is a user's +1/-1 rating of a turn's reply. A turn can be rated
// at most once (enforced by unique index).
type Feedback struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	TurnID    string    `json:"turn_id"    gorm:"type:char(36);not null;uniqueIndex:ux_feedback_turn"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);not null;index"`
	Value     int       `json:"value"      gorm:"not null;check:value IN (-1,1)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Turn is the rated turn. Feedback is cascade-deleted if the turn row
	// is ever physically removed.
	Turn Turn `json:"-" gorm:"foreignKey:TurnID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Feedback.
func (Feedback) TableName() string { return "feedback" }

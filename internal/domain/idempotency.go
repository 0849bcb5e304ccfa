package domain

import "time"

// Idempotency maps a client-supplied Idempotency-Key, scoped to its user,
// to the turn created by the request that first carried it. A replay is only
// served while the record is unexpired and the referenced turn has a reply.
type Idempotency struct {
	ID        string    `gorm:"type:varchar(36);not null;primaryKey"`
	UserID    string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_user_key,priority:1"`
	Key       string    `gorm:"type:varchar(200);not null;uniqueIndex:ux_user_key,priority:2"`
	TurnID    string    `gorm:"type:char(36);not null"`
	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }

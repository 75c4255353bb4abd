package models

import (
	"time"

	"gorm.io/datatypes"
)

// User is the narrow slice of the user directory the engine needs: identity,
// role gate, phone for notifications and the credit balance it settles into.
type User struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Email         string    `gorm:"uniqueIndex;not null" json:"email"`
	Name          string    `json:"name"`
	Role          string    `gorm:"default:student" json:"role"` // student, instructor, admin
	Phone         string    `json:"phone,omitempty"`
	CreditBalance int       `gorm:"default:0" json:"credit_balance"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// UserXP is the specialization-scoped experience counter.
type UserXP struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;index:idx_xp_user_spec,unique" json:"user_id"`
	Specialization string    `gorm:"not null;index:idx_xp_user_spec,unique" json:"specialization"`
	XP             int       `gorm:"default:0" json:"xp"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (UserXP) TableName() string {
	return "user_xp"
}

// CreditTransaction is one ledger entry; written atomically with the balance
// update it describes.
type CreditTransaction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	Amount      int       `gorm:"not null" json:"amount"`
	Kind        string    `gorm:"not null" json:"kind"` // e.g. tournament_reward
	Description string    `json:"description"`
	LinkedType  string    `json:"linked_type,omitempty"`
	LinkedID    uint      `json:"linked_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (CreditTransaction) TableName() string {
	return "credit_transactions"
}

// Badge is minted once per (user, tournament, rank) when the reward policy
// configures one.
type Badge struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index" json:"user_id"`
	TournamentID uint      `gorm:"not null;index" json:"tournament_id"`
	Rank         int       `json:"rank"`
	Label        string    `gorm:"not null" json:"label"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Badge) TableName() string {
	return "badges"
}

// AuditLog rows are fire-and-forget within the caller's transaction.
type AuditLog struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Action       string         `gorm:"not null;index" json:"action"`
	UserID       uint           `json:"user_id"`
	ResourceType string         `json:"resource_type"`
	ResourceID   uint           `json:"resource_id"`
	Details      datatypes.JSON `gorm:"type:jsonb" json:"details,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

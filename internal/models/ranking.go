package models

import (
	"time"

	"gorm.io/datatypes"
)

// Participant types
const (
	ParticipantIndividual = "INDIVIDUAL"
	ParticipantTeam       = "TEAM"
)

// TournamentRanking is the derived per-participant standing. Exactly one of
// UserID / TeamID is set. Rows are recomputed through the finalizer path only.
type TournamentRanking struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	TournamentID    uint      `gorm:"not null;index;uniqueIndex:idx_ranking_tournament_user;uniqueIndex:idx_ranking_tournament_team" json:"tournament_id"`
	UserID          *uint     `gorm:"uniqueIndex:idx_ranking_tournament_user" json:"user_id,omitempty"`
	TeamID          *uint     `gorm:"uniqueIndex:idx_ranking_tournament_team" json:"team_id,omitempty"`
	ParticipantType string    `gorm:"not null;default:INDIVIDUAL" json:"participant_type"`
	Points          float64   `json:"points"`
	Wins            int       `gorm:"default:0" json:"wins"`
	Losses          int       `gorm:"default:0" json:"losses"`
	Draws           int       `gorm:"default:0" json:"draws"`
	Rank            *int      `json:"rank,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (TournamentRanking) TableName() string {
	return "tournament_rankings"
}

// RewardDistribution is the idempotency ledger: at most one row per
// tournament, created atomically with the last credit write.
type RewardDistribution struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	TournamentID  uint           `gorm:"not null;uniqueIndex" json:"tournament_id"`
	DistributedAt time.Time      `json:"distributed_at"`
	DistributedBy uint           `json:"distributed_by"`
	TotalCredits  int            `json:"total_credits"`
	TotalXP       int            `json:"total_xp"`
	Items         datatypes.JSON `gorm:"type:jsonb" json:"items"`
	CreatedAt     time.Time      `json:"created_at"`
}

func (RewardDistribution) TableName() string {
	return "reward_distributions"
}

// RewardItem is one line of a distribution, serialized into Items.
type RewardItem struct {
	UserID  int64  `json:"user_id"`
	Rank    int    `json:"rank"`
	Label   string `json:"label"` // policy key used: "1", "2", ... or "participant"
	Credits int    `json:"credits"`
	XP      int    `json:"xp"`
	Badge   string `json:"badge,omitempty"`
}

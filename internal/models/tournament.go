package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Tournament formats
const (
	FormatIndividualRanking = "INDIVIDUAL_RANKING"
	FormatHeadToHead        = "HEAD_TO_HEAD"
)

// Head-to-head tournament type codes
const (
	TypeLeague        = "league"
	TypeKnockout      = "knockout"
	TypeGroupKnockout = "group_knockout"
	TypeSwiss         = "swiss" // reserved, rejected by the strategy factory
)

// Scoring types (INDIVIDUAL_RANKING only)
const (
	ScoringTimeBased     = "TIME_BASED"
	ScoringScoreBased    = "SCORE_BASED"
	ScoringRoundsBased   = "ROUNDS_BASED"
	ScoringDistanceBased = "DISTANCE_BASED"
	ScoringPlacement     = "PLACEMENT"
)

// Ranking directions
const (
	DirectionAsc  = "ASC"
	DirectionDesc = "DESC"
)

// Tournament statuses
const (
	StatusDraft              = "DRAFT"
	StatusSeekingInstructor  = "SEEKING_INSTRUCTOR"
	StatusReadyForEnrollment = "READY_FOR_ENROLLMENT"
	StatusOngoing            = "ONGOING"
	StatusInProgress         = "IN_PROGRESS"
	StatusCompleted          = "COMPLETED"
	StatusCancelled          = "CANCELLED"
)

type Tournament struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	Name           string `gorm:"not null" json:"name"`
	Code           string `gorm:"index" json:"code"`
	Specialization string `json:"specialization"`
	AgeGroup       string `json:"age_group"`

	StartDate time.Time `gorm:"not null" json:"start_date"`
	EndDate   time.Time `gorm:"not null" json:"end_date"`
	// IANA zone name the naive session times are interpreted in.
	Timezone string `gorm:"default:Europe/Budapest" json:"timezone"`

	Format           string `gorm:"not null" json:"tournament_format"` // INDIVIDUAL_RANKING or HEAD_TO_HEAD
	TypeCode         string `json:"tournament_type_code"`              // league, knockout, group_knockout
	ScoringType      string `json:"scoring_type"`
	RankingDirection string `json:"ranking_direction"`
	MeasurementUnit  string `json:"measurement_unit"`

	MatchDurationMinutes int `gorm:"default:30" json:"match_duration_minutes"`
	BreakDurationMinutes int `gorm:"default:10" json:"break_duration_minutes"`
	ParallelFields       int `gorm:"default:1" json:"parallel_fields"`

	Status             string `gorm:"not null;default:DRAFT;index" json:"tournament_status"`
	MasterInstructorID *uint  `json:"master_instructor_id,omitempty"`

	EnrollmentSnapshot *EnrollmentSnapshot `gorm:"type:jsonb" json:"enrollment_snapshot,omitempty"`
	Config             *TournamentConfig   `gorm:"type:jsonb" json:"tournament_config_obj,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Owned rows; cascade on delete.
	Enrollments         []TournamentEnrollment `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Sessions            []Session              `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Rankings            []TournamentRanking    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	StatusHistory       []StatusHistoryEntry   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CampusConfigs       []CampusScheduleConfig `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	RewardDistributions []RewardDistribution   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (Tournament) TableName() string {
	return "tournaments"
}

// DefaultRankingDirection derives the direction from the scoring type: lower
// is better for times and placements, higher is better everywhere else.
func DefaultRankingDirection(scoringType string) string {
	switch scoringType {
	case ScoringTimeBased, ScoringPlacement:
		return DirectionAsc
	default:
		return DirectionDesc
	}
}

// ResolvedRankingDirection returns the tournament's explicit direction if set,
// otherwise the default for its scoring type.
func (t *Tournament) ResolvedRankingDirection() string {
	if t.RankingDirection != "" {
		return t.RankingDirection
	}
	return DefaultRankingDirection(t.ScoringType)
}

func (t *Tournament) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusCancelled
}

// AcceptsResults reports whether result submissions are currently allowed.
func (t *Tournament) AcceptsResults() bool {
	return t.Status == StatusOngoing || t.Status == StatusInProgress
}

// RewardEntry is one line of the reward policy: what a given final rank earns.
type RewardEntry struct {
	Credits int    `json:"credits"`
	XP      int    `json:"xp"`
	Badge   string `json:"badge,omitempty"`
}

// RewardPolicy maps rank labels ("1", "2", ...) to rewards, with a
// "participant" fallback entry for everyone off the podium.
type RewardPolicy map[string]RewardEntry

// TournamentConfig is the free-form per-tournament configuration blob.
type TournamentConfig struct {
	RewardPolicy RewardPolicy `json:"reward_policy,omitempty"`
	GroupCount   int          `json:"group_count,omitempty"`
	TotalRounds  int          `json:"total_rounds,omitempty"`
}

func (tc *TournamentConfig) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return fmt.Errorf("cannot scan %T into TournamentConfig", value)
		}
	}
	return json.Unmarshal(bytes, tc)
}

func (tc TournamentConfig) Value() (driver.Value, error) {
	return json.Marshal(tc)
}

// GroupStandingRow is one line of a group table.
type GroupStandingRow struct {
	UserID         int64  `json:"user_id"`
	Name           string `json:"name,omitempty"`
	Points         int    `json:"points"`
	Wins           int    `json:"wins"`
	Draws          int    `json:"draws"`
	Losses         int    `json:"losses"`
	GoalsFor       int    `json:"goals_for"`
	GoalsAgainst   int    `json:"goals_against"`
	GoalDifference int    `json:"goal_difference"`
	MatchesPlayed  int    `json:"matches_played"`
	Rank           int    `json:"rank"`
}

// EnrollmentSnapshot is the immutable audit blob written when the group stage
// closes.
type EnrollmentSnapshot struct {
	Timestamp             time.Time                     `json:"timestamp"`
	Phase                 string                        `json:"phase"`
	GroupStandings        map[string][]GroupStandingRow `json:"group_standings"`
	QualifiedParticipants []int64                       `json:"qualified_participants"`
	QualificationRule     string                        `json:"qualification_rule"`
	TotalGroups           int                           `json:"total_groups"`
	TotalQualified        int                           `json:"total_qualified"`
}

func (s *EnrollmentSnapshot) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if str, ok := value.(string); ok {
			bytes = []byte(str)
		} else {
			return fmt.Errorf("cannot scan %T into EnrollmentSnapshot", value)
		}
	}
	return json.Unmarshal(bytes, s)
}

func (s EnrollmentSnapshot) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// StatusHistoryEntry records one lifecycle transition; written in the same
// transaction as the status update it describes.
type StatusHistoryEntry struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	TournamentID uint           `gorm:"not null;index" json:"tournament_id"`
	OldStatus    string         `gorm:"not null" json:"old_status"`
	NewStatus    string         `gorm:"not null" json:"new_status"`
	ChangedBy    uint           `json:"changed_by"`
	Reason       string         `json:"reason"`
	Metadata     datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (StatusHistoryEntry) TableName() string {
	return "tournament_status_history"
}

// CampusScheduleConfig overrides the tournament-level schedule parameters for
// sessions held at one campus.
type CampusScheduleConfig struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	TournamentID         uint      `gorm:"not null;index:idx_campus_tournament,unique" json:"tournament_id"`
	CampusID             uint      `gorm:"not null;index:idx_campus_tournament,unique" json:"campus_id"`
	MatchDurationMinutes int       `json:"match_duration_minutes"`
	BreakDurationMinutes int       `json:"break_duration_minutes"`
	ParallelFields       int       `json:"parallel_fields"`
	VenueLabel           string    `json:"venue_label"`
	IsActive             bool      `gorm:"default:true" json:"is_active"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (CampusScheduleConfig) TableName() string {
	return "campus_schedule_configs"
}

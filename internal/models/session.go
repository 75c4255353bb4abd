package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Tournament phases
const (
	PhaseGroupStage        = "GROUP_STAGE"
	PhaseKnockout          = "KNOCKOUT"
	PhaseIndividualRanking = "INDIVIDUAL_RANKING"
)

// Match formats
const (
	MatchIndividualRanking = "INDIVIDUAL_RANKING"
	MatchHeadToHead        = "HEAD_TO_HEAD"
	MatchTeamMatch         = "TEAM_MATCH"
	MatchTimeBased         = "TIME_BASED"
	MatchSkillRating       = "SKILL_RATING"
)

// Session is one match or round slot on the schedule. DateStart/DateEnd are
// naive wall-clock strings in the tournament's timezone; the storage layer
// never converts them.
type Session struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	TournamentID uint   `gorm:"not null;index" json:"tournament_id"`
	Title        string `json:"title"`

	DateStart string `gorm:"not null" json:"date_start"` // "2006-01-02T15:04:05"
	DateEnd   string `gorm:"not null" json:"date_end"`

	CampusID   *uint  `json:"campus_id,omitempty"`
	VenueLabel string `json:"venue_label,omitempty"`
	FieldIndex int    `json:"field_index"`

	IsTournamentGame bool    `gorm:"default:true" json:"is_tournament_game"`
	Phase            string  `gorm:"not null" json:"tournament_phase"`
	Round            int     `gorm:"not null" json:"tournament_round"` // 1 = earliest round
	GroupIdentifier  *string `json:"group_identifier,omitempty"`      // "Group A", nil outside group stage

	MatchFormat string `gorm:"not null" json:"match_format"`
	ScoringType string `json:"scoring_type"`

	ParticipantUserIDs pq.Int64Array `gorm:"type:integer[]" json:"participant_user_ids"`

	RoundsData  *RoundsData  `gorm:"type:jsonb" json:"rounds_data,omitempty"`
	GameResults *GameResults `gorm:"type:jsonb" json:"game_results,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Session) TableName() string {
	return "sessions"
}

// SessionWallClock is the storage format for naive session timestamps.
const SessionWallClock = "2006-01-02T15:04:05"

// IsComplete reports whether the session has recorded final results.
func (s *Session) IsComplete() bool {
	return s.GameResults != nil
}

// RoundsData tracks per-round measurements for an INDIVIDUAL_RANKING session.
// Measured values stay strings to preserve operator input ("12.5s", "11 pts").
type RoundsData struct {
	TotalRounds     int                          `json:"total_rounds"`
	CompletedRounds int                          `json:"completed_rounds"`
	RoundResults    map[string]map[string]string `json:"round_results"` // round number -> user id -> value
}

func (rd *RoundsData) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return fmt.Errorf("cannot scan %T into RoundsData", value)
		}
	}
	return json.Unmarshal(bytes, rd)
}

func (rd RoundsData) Value() (driver.Value, error) {
	return json.Marshal(rd)
}

// AllRoundsComplete reports whether every planned round has been recorded.
func (rd *RoundsData) AllRoundsComplete() bool {
	return rd.TotalRounds >= 1 && rd.CompletedRounds == rd.TotalRounds
}

// DerivedRanking is one participant's final placement inside game_results.
type DerivedRanking struct {
	UserID          int64   `json:"user_id"`
	Rank            int     `json:"rank"`
	FinalValue      float64 `json:"final_value"`
	MeasurementUnit string  `json:"measurement_unit,omitempty"`
	IsTied          bool    `json:"is_tied"`
}

// MatchParticipant is one side of a head-to-head result.
type MatchParticipant struct {
	UserID int64   `json:"user_id"`
	Score  float64 `json:"score"`
	Result string  `json:"result"` // win, loss, draw
}

// GameResults is written exactly once per session at finalization.
type GameResults struct {
	RecordedAt     time.Time `json:"recorded_at"`
	RecordedByID   uint      `json:"recorded_by_id"`
	RecordedByName string    `json:"recorded_by_name,omitempty"`

	TournamentFormat  string `json:"tournament_format,omitempty"`
	MatchFormat       string `json:"match_format,omitempty"`
	ScoringType       string `json:"scoring_type,omitempty"`
	MeasurementUnit   string `json:"measurement_unit,omitempty"`
	RankingDirection  string `json:"ranking_direction,omitempty"`
	TotalRounds       int    `json:"total_rounds,omitempty"`
	AggregationMethod string `json:"aggregation_method,omitempty"` // MIN_VALUE, MAX_VALUE, SUM, SUM_PLACEMENT

	RoundsData          *RoundsData      `json:"rounds_data,omitempty"`
	DerivedRankings     []DerivedRanking `json:"derived_rankings,omitempty"`
	PerformanceRankings []DerivedRanking `json:"performance_rankings,omitempty"`
	WinsRankings        []DerivedRanking `json:"wins_rankings,omitempty"` // reserved

	// Head-to-head payload
	RoundNumber  int                `json:"round_number,omitempty"`
	Participants []MatchParticipant `json:"participants,omitempty"`
	RawResults   json.RawMessage    `json:"raw_results,omitempty"`
}

func (gr *GameResults) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return fmt.Errorf("cannot scan %T into GameResults", value)
		}
	}
	return json.Unmarshal(bytes, gr)
}

func (gr GameResults) Value() (driver.Value, error) {
	return json.Marshal(gr)
}

// WinnerID returns the winning side of a head-to-head result, or 0 on a draw.
func (gr *GameResults) WinnerID() int64 {
	for _, p := range gr.Participants {
		if p.Result == "win" {
			return p.UserID
		}
	}
	return 0
}

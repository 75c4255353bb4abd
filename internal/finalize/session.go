package finalize

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/academyhq/tournament-engine/internal/models"
	"github.com/academyhq/tournament-engine/internal/ranking"
	"github.com/academyhq/tournament-engine/pkg/utils"
)

// SessionFinalizer closes an INDIVIDUAL_RANKING session: derives the final
// rankings from the recorded rounds and writes game_results plus the
// tournament ranking rows. It never distributes rewards.
type SessionFinalizer struct {
	db      *gorm.DB
	ranking *ranking.Service
	log     *logrus.Logger
}

func NewSessionFinalizer(db *gorm.DB, rankingService *ranking.Service, log *logrus.Logger) *SessionFinalizer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SessionFinalizer{db: db, ranking: rankingService, log: log}
}

// Finalize closes one ranking session. Both guards run inside the same
// transaction so a retry can never write twice.
func (f *SessionFinalizer) Finalize(tournamentID, sessionID uint, actor uint, actorName string) (*models.GameResults, error) {
	var result *models.GameResults
	err := f.db.Transaction(func(tx *gorm.DB) error {
		var tournament models.Tournament
		if err := tx.First(&tournament, tournamentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewAppError(utils.ErrCodeNotFound, "Tournament not found", "")
			}
			return err
		}
		var session models.Session
		if err := tx.Where("id = ? AND tournament_id = ?", sessionID, tournamentID).
			First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewAppError(utils.ErrCodeNotFound, "Session not found", "")
			}
			return err
		}

		// Guard 1: results written exactly once.
		if session.GameResults != nil {
			return utils.NewAppError(utils.ErrCodeAlreadyFinalized,
				"Session already finalized", fmt.Sprintf("session_id=%d", session.ID))
		}
		// Guard 2: no ranking rows may exist yet; a second finalization path
		// already ran otherwise.
		var existingRankings int64
		if err := tx.Model(&models.TournamentRanking{}).
			Where("tournament_id = ?", tournamentID).Count(&existingRankings).Error; err != nil {
			return err
		}
		if existingRankings > 0 {
			return utils.NewAppError(utils.ErrCodeAlreadyFinalized,
				"Tournament rankings already exist",
				fmt.Sprintf("rows=%d", existingRankings))
		}

		if session.MatchFormat != models.MatchIndividualRanking ||
			tournament.Format != models.FormatIndividualRanking {
			return utils.NewAppError(utils.ErrCodeInvalidResult,
				"Only individual ranking sessions can be finalized here",
				fmt.Sprintf("match_format=%s tournament_format=%s", session.MatchFormat, tournament.Format))
		}
		if session.RoundsData == nil || !session.RoundsData.AllRoundsComplete() {
			completed, total := 0, 0
			if session.RoundsData != nil {
				completed, total = session.RoundsData.CompletedRounds, session.RoundsData.TotalRounds
			}
			return utils.NewAppError(utils.ErrCodeIncompleteStage,
				"Not all rounds are complete",
				fmt.Sprintf("completed=%d total=%d", completed, total))
		}

		direction := tournament.ResolvedRankingDirection()
		groups, err := f.ranking.CalculateRankings(tournament.ScoringType,
			session.RoundsData.RoundResults, session.ParticipantUserIDs, direction)
		if err != nil {
			return err
		}
		label, err := f.ranking.AggregationLabel(tournament.ScoringType, direction)
		if err != nil {
			return err
		}

		derived := ranking.Flatten(groups, tournament.MeasurementUnit)
		gameResults := &models.GameResults{
			RecordedAt:          time.Now().UTC(),
			RecordedByID:        actor,
			RecordedByName:      actorName,
			TournamentFormat:    tournament.Format,
			MatchFormat:         session.MatchFormat,
			ScoringType:         tournament.ScoringType,
			MeasurementUnit:     tournament.MeasurementUnit,
			RankingDirection:    direction,
			TotalRounds:         session.RoundsData.TotalRounds,
			AggregationMethod:   label,
			RoundsData:          session.RoundsData,
			DerivedRankings:     derived,
			PerformanceRankings: derived,
		}
		if err := tx.Model(&models.Session{}).Where("id = ?", session.ID).
			Update("game_results", gameResults).Error; err != nil {
			return err
		}

		// One ranking row per participant; points carry the final value, the
		// rank ordering is recomputed across the whole tournament.
		for _, d := range derived {
			userID := uint(d.UserID)
			rank := d.Rank
			row := models.TournamentRanking{
				TournamentID:    tournamentID,
				UserID:          &userID,
				ParticipantType: models.ParticipantIndividual,
				Points:          d.FinalValue,
				Rank:            &rank,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		if err := recomputeRankOrdering(tx, tournamentID, direction); err != nil {
			return err
		}

		f.log.WithFields(logrus.Fields{
			"tournament_id": tournamentID,
			"session_id":    sessionID,
			"participants":  len(derived),
			"aggregation":   label,
		}).Info("Ranking session finalized")

		result = gameResults
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// recomputeRankOrdering reorders all ranking rows of a tournament by points in
// the given direction, sharing ranks on equal points with rank skipping.
func recomputeRankOrdering(tx *gorm.DB, tournamentID uint, direction string) error {
	order := "points DESC"
	if direction == models.DirectionAsc {
		order = "points ASC"
	}
	var rows []models.TournamentRanking
	if err := tx.Where("tournament_id = ?", tournamentID).Order(order).Find(&rows).Error; err != nil {
		return err
	}
	rank := 1
	for i := 0; i < len(rows); {
		j := i
		for j < len(rows) && rows[j].Points == rows[i].Points {
			r := rank
			if err := tx.Model(&models.TournamentRanking{}).Where("id = ?", rows[j].ID).
				Update("rank", r).Error; err != nil {
				return err
			}
			j++
		}
		rank += j - i
		i = j
	}
	return nil
}
